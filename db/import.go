package db

import (
	"context"
	"errors"
	"fmt"
	"io"

	"college-roster-go/logger"
	"github.com/xuri/excelize/v2"
)

// ImportResult summarizes an Excel import.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// ImportStudents reads the first sheet of an Excel workbook, maps each row
// through the header row into a Record and adds it to store. Rows the store
// rejects are skipped and counted; store failures of any other kind stop
// the import.
func ImportStudents(ctx context.Context, store Store, file io.Reader, log logger.Logger) (ImportResult, error) {
	var res ImportResult
	if log == nil {
		log = logger.Discard()
	}

	f, err := excelize.OpenReader(file)
	if err != nil {
		return res, fmt.Errorf("%w: failed to open excel file: %v", ErrValidation, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Warn(ctx, "error closing excel file", logger.Error(err))
		}
	}()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return res, fmt.Errorf("%w: excel file does not contain any sheets", ErrValidation)
	}
	records, err := sheetRecords(f, sheetName)
	if err != nil {
		return res, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	for i, rec := range records {
		st, err := store.AddStudent(ctx, rec)
		switch {
		case err == nil:
			res.Imported++
			log.Debug(ctx, "imported student", logger.Int("studentNum", st.StudentNum))
		case errors.Is(err, ErrValidation), errors.Is(err, ErrConflict):
			res.Skipped++
			log.Warn(ctx, "skipping row", logger.Int("row", i+2), logger.Error(err))
		default:
			return res, err
		}
	}

	log.Info(ctx, "excel import finished",
		logger.String("sheet", sheetName), logger.Int("imported", res.Imported), logger.Int("skipped", res.Skipped))
	return res, nil
}
