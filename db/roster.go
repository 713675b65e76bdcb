package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"college-roster-go/models"
	"github.com/xuri/excelize/v2"
)

// Roster source file names inside a data directory.
const (
	WorkbookFile = "roster.xlsx"
	StudentsFile = "students.json"
	CoursesFile  = "courses.json"

	studentsSheet = "students"
	coursesSheet  = "courses"
)

// MaxStudentNum is the largest student number (and course id) a roster may
// hold. Bolt keys are ten digits wide and Redis scores are float64, so every
// backend orders and stores keys up to this bound exactly.
const MaxStudentNum = 999_999_999

// Roster is the full dataset loaded from a source.
type Roster struct {
	Students []models.Student
	Courses  []models.Course
}

// LoadRoster reads a roster from fsys. A roster.xlsx workbook is preferred;
// otherwise students.json and courses.json are read. Every failure wraps
// ErrInitialization.
func LoadRoster(fsys fs.FS) (*Roster, error) {
	var (
		r   *Roster
		err error
	)
	if _, statErr := fs.Stat(fsys, WorkbookFile); statErr == nil {
		r, err = loadWorkbook(fsys)
	} else {
		r, err = loadJSON(fsys)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInitialization, err)
	}
	if err := r.normalize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInitialization, err)
	}
	return r, nil
}

func loadJSON(fsys fs.FS) (*Roster, error) {
	r := &Roster{}
	if err := readJSON(fsys, StudentsFile, &r.Students); err != nil {
		return nil, err
	}
	if err := readJSON(fsys, CoursesFile, &r.Courses); err != nil {
		return nil, err
	}
	return r, nil
}

func readJSON(fsys fs.FS, name string, v any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

func loadWorkbook(fsys fs.FS) (*Roster, error) {
	file, err := fsys.Open(WorkbookFile)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", WorkbookFile, err)
	}
	defer file.Close()

	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	studentRows, err := sheetRecords(f, studentsSheet)
	if err != nil {
		return nil, err
	}
	courseRows, err := sheetRecords(f, coursesSheet)
	if err != nil {
		return nil, err
	}

	r := &Roster{
		Students: make([]models.Student, 0, len(studentRows)),
		Courses:  make([]models.Course, 0, len(courseRows)),
	}
	for i, rec := range studentRows {
		s, err := studentFromRow(rec)
		if err != nil {
			// +2: one-based rows and the header
			return nil, fmt.Errorf("sheet %s row %d: %w", studentsSheet, i+2, err)
		}
		r.Students = append(r.Students, s)
	}
	for i, rec := range courseRows {
		c, err := courseFromRow(rec)
		if err != nil {
			return nil, fmt.Errorf("sheet %s row %d: %w", coursesSheet, i+2, err)
		}
		r.Courses = append(r.Courses, c)
	}
	return r, nil
}

// sheetRecords maps every data row of sheet through its header row.
// Blank rows are skipped.
func sheetRecords(f *excelize.File, sheet string) ([]Record, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return rowsToRecords(rows), nil
}

func rowsToRecords(rows [][]string) []Record {
	if len(rows) == 0 {
		return nil
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = canonicalField(h)
	}

	out := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := Record{}
		blank := true
		for i, cell := range row {
			if i >= len(header) || header[i] == "" {
				continue
			}
			if strings.TrimSpace(cell) != "" {
				blank = false
			}
			rec[header[i]] = cell
		}
		if !blank {
			out = append(out, rec)
		}
	}
	return out
}

func studentFromRow(rec Record) (models.Student, error) {
	num, err := strconv.Atoi(rec.Get("studentNum"))
	if err != nil {
		return models.Student{}, fmt.Errorf("studentNum %q is not an integer", rec.Get("studentNum"))
	}
	course, err := strconv.Atoi(rec.Get("course"))
	if err != nil {
		return models.Student{}, fmt.Errorf("course %q is not an integer", rec.Get("course"))
	}
	return models.Student{
		StudentNum:      num,
		FirstName:       rec.Get("firstName"),
		LastName:        rec.Get("lastName"),
		Email:           rec.Get("email"),
		AddressStreet:   rec.Get("addressStreet"),
		AddressCity:     rec.Get("addressCity"),
		AddressProvince: rec.Get("addressProvince"),
		TA:              parseBool(rec.Get("TA")),
		Status:          rec.Get("status"),
		Course:          course,
	}, nil
}

func courseFromRow(rec Record) (models.Course, error) {
	id, err := strconv.Atoi(rec.Get("courseId"))
	if err != nil {
		return models.Course{}, fmt.Errorf("courseId %q is not an integer", rec.Get("courseId"))
	}
	return models.Course{
		CourseID:          id,
		CourseCode:        rec.Get("courseCode"),
		CourseDescription: rec.Get("courseDescription"),
	}, nil
}

// normalize sorts both collections by key and rejects non-positive or
// duplicate keys.
func (r *Roster) normalize() error {
	if r.Students == nil {
		r.Students = []models.Student{}
	}
	if r.Courses == nil {
		r.Courses = []models.Course{}
	}
	sort.SliceStable(r.Students, func(i, j int) bool { return r.Students[i].StudentNum < r.Students[j].StudentNum })
	sort.SliceStable(r.Courses, func(i, j int) bool { return r.Courses[i].CourseID < r.Courses[j].CourseID })

	for i, s := range r.Students {
		if s.StudentNum <= 0 || s.StudentNum > MaxStudentNum {
			return fmt.Errorf("student number %d must be between 1 and %d", s.StudentNum, MaxStudentNum)
		}
		if i > 0 && r.Students[i-1].StudentNum == s.StudentNum {
			return fmt.Errorf("duplicate student number %d", s.StudentNum)
		}
	}
	for i, c := range r.Courses {
		if c.CourseID <= 0 || c.CourseID > MaxStudentNum {
			return fmt.Errorf("course id %d must be between 1 and %d", c.CourseID, MaxStudentNum)
		}
		if i > 0 && r.Courses[i-1].CourseID == c.CourseID {
			return fmt.Errorf("duplicate course id %d", c.CourseID)
		}
	}
	return nil
}

// parseKey accepts only the canonical decimal rendering of a positive key,
// so "007" or "+7" never match student 7.
func parseKey(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || strconv.Itoa(n) != s {
		return 0, false
	}
	return n, true
}

func filterByCourse(students []models.Student, courseID string) []models.Student {
	out := []models.Student{}
	for _, s := range students {
		if strconv.Itoa(s.Course) == courseID {
			out = append(out, s)
		}
	}
	return out
}

func filterTAs(students []models.Student) []models.Student {
	out := []models.Student{}
	for _, s := range students {
		if s.TA {
			out = append(out, s)
		}
	}
	return out
}

// resolveNumber assigns or checks the number of a new student. max is the
// highest number on the roster (0 when empty); taken reports whether a
// number is already in use and is consulted for assigned numbers too.
func resolveNumber(s *models.Student, max int, taken func(n int) (bool, error)) error {
	if s.StudentNum == 0 {
		if max >= MaxStudentNum {
			return fmt.Errorf("%w: no student numbers left above %d", ErrConflict, max)
		}
		s.StudentNum = max + 1
	}
	if s.StudentNum <= 0 || s.StudentNum > MaxStudentNum {
		return fieldError("studentNum", fmt.Sprintf("must be between 1 and %d", MaxStudentNum))
	}
	used, err := taken(s.StudentNum)
	if err != nil {
		return err
	}
	if used {
		return fmt.Errorf("%w: %d", ErrConflict, s.StudentNum)
	}
	return nil
}

func unknownCourse(course int) error {
	return fieldError("course", fmt.Sprintf("unknown course %d", course))
}

func notFound(num string) error {
	return fmt.Errorf("student %q: %w", num, ErrNotFound)
}

var errAlreadyInitialized = errors.New("already initialized")
