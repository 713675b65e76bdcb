package db

import (
	"bytes"
	"testing"
	"testing/fstest"

	"github.com/xuri/excelize/v2"
)

const studentsJSON = `[
  {"studentNum":3,"firstName":"Ana","lastName":"Silva","email":"ana@example.com","addressStreet":"1 Bay St","addressCity":"Toronto","addressProvince":"ON","TA":true,"status":"Full Time","course":1},
  {"studentNum":1,"firstName":"Joshua","lastName":"Hawkins","email":"jhawkins@example.com","addressStreet":"84 Yonge St","addressCity":"Toronto","addressProvince":"ON","TA":false,"status":"Part Time","course":2},
  {"studentNum":2,"firstName":"Mia","lastName":"Chen","email":"mia@example.com","addressStreet":"9 King St","addressCity":"Ottawa","addressProvince":"ON","TA":true,"status":"Full Time","course":2},
  {"studentNum":4,"firstName":"Liam","lastName":"Brown","email":"liam@example.com","addressStreet":"22 Main St","addressCity":"Halifax","addressProvince":"NS","TA":false,"status":"Full Time","course":1}
]`

const coursesJSON = `[
  {"courseId":2,"courseCode":"WEB322","courseDescription":"Web Programming Tools and Frameworks"},
  {"courseId":1,"courseCode":"WEB700","courseDescription":"Web Programming Foundations"},
  {"courseId":3,"courseCode":"DBS311","courseDescription":"Advanced Database Services"}
]`

func jsonSource() fstest.MapFS {
	return fstest.MapFS{
		StudentsFile: {Data: []byte(studentsJSON)},
		CoursesFile:  {Data: []byte(coursesJSON)},
	}
}

var studentHeader = []interface{}{
	"studentNum", "firstName", "lastName", "email", "addressStreet",
	"addressCity", "addressProvince", "TA", "status", "course",
}

// fixtureStudentRows matches studentsJSON.
var fixtureStudentRows = [][]interface{}{
	{3, "Ana", "Silva", "ana@example.com", "1 Bay St", "Toronto", "ON", "TRUE", "Full Time", 1},
	{1, "Joshua", "Hawkins", "jhawkins@example.com", "84 Yonge St", "Toronto", "ON", "FALSE", "Part Time", 2},
	{2, "Mia", "Chen", "mia@example.com", "9 King St", "Ottawa", "ON", "TRUE", "Full Time", 2},
	{4, "Liam", "Brown", "liam@example.com", "22 Main St", "Halifax", "NS", "FALSE", "Full Time", 1},
}

var fixtureCourseRows = [][]interface{}{
	{2, "WEB322", "Web Programming Tools and Frameworks"},
	{1, "WEB700", "Web Programming Foundations"},
	{3, "DBS311", "Advanced Database Services"},
}

// buildWorkbook writes sheets (name -> header + rows) into an xlsx buffer.
// Sheets are created in the order given by names.
func buildWorkbook(t *testing.T, names []string, sheets map[string][][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, name := range names {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			t.Fatalf("new sheet: %v", err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				t.Fatalf("set row: %v", err)
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func rosterWorkbook(t *testing.T) []byte {
	t.Helper()
	students := append([][]interface{}{studentHeader}, fixtureStudentRows...)
	courses := append([][]interface{}{{"courseId", "courseCode", "courseDescription"}}, fixtureCourseRows...)
	return buildWorkbook(t, []string{studentsSheet, coursesSheet}, map[string][][]interface{}{
		studentsSheet: students,
		coursesSheet:  courses,
	})
}

func validRecord() Record {
	return Record{
		"firstName":       "Noah",
		"lastName":        "Wilson",
		"email":           "noah@example.com",
		"addressStreet":   "5 Queen St",
		"addressCity":     "Toronto",
		"addressProvince": "ON",
		"status":          "Part Time",
		"course":          "3",
	}
}
