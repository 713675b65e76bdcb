package models

// Student status values accepted by the roster.
const (
	StatusFullTime = "Full Time"
	StatusPartTime = "Part Time"
)

// Course represents a course offered by the college
type Course struct {
	CourseID          int    `json:"courseId"`          // Unique course ID
	CourseCode        string `json:"courseCode"`        // Short code, e.g. WEB700
	CourseDescription string `json:"courseDescription"` // Display name
}

// Student represents a student on the roster. Students with TA set are
// also listed as teaching assistants.
type Student struct {
	StudentNum      int    `json:"studentNum"` // Unique student number
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	AddressStreet   string `json:"addressStreet"`
	AddressCity     string `json:"addressCity"`
	AddressProvince string `json:"addressProvince"`
	TA              bool   `json:"TA"`
	Status          string `json:"status"`
	Course          int    `json:"course"` // ID of the course the student is enrolled in
}
