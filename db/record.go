package db

import (
	"reflect"
	"strconv"
	"strings"

	"college-roster-go/models"
	"github.com/go-playground/validator/v10"
)

// Record is an untyped field-name-to-value mapping as submitted by a form,
// before validation. Keys are the JSON field names of models.Student.
type Record map[string]string

// studentInput is the typed shape a Record is converted into before the
// validator runs.
type studentInput struct {
	StudentNum      int    `json:"studentNum" validate:"gte=0,lte=999999999"`
	FirstName       string `json:"firstName" validate:"required,max=100"`
	LastName        string `json:"lastName" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email,max=254"`
	AddressStreet   string `json:"addressStreet" validate:"max=200"`
	AddressCity     string `json:"addressCity" validate:"max=100"`
	AddressProvince string `json:"addressProvince" validate:"max=100"`
	TA              bool   `json:"TA"`
	Status          string `json:"status" validate:"oneof='Full Time' 'Part Time'"`
	Course          int    `json:"course" validate:"required,gt=0"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// canonicalFields maps lower-cased field names to their JSON spelling so
// spreadsheet headers and form keys match regardless of case.
var canonicalFields = map[string]string{
	"studentnum":      "studentNum",
	"firstname":       "firstName",
	"lastname":        "lastName",
	"email":           "email",
	"addressstreet":   "addressStreet",
	"addresscity":     "addressCity",
	"addressprovince": "addressProvince",
	"ta":              "TA",
	"status":          "status",
	"course":          "course",
}

func canonicalField(name string) string {
	if c, ok := canonicalFields[strings.ToLower(strings.TrimSpace(name))]; ok {
		return c
	}
	return strings.TrimSpace(name)
}

// Get looks a field up case-insensitively and trims it.
func (r Record) Get(field string) string {
	if v, ok := r[field]; ok {
		return strings.TrimSpace(v)
	}
	// several spellings of one field: the lowest key wins
	want := canonicalField(field)
	match, found := "", false
	for k := range r {
		if canonicalField(k) == want && (!found || k < match) {
			match, found = k, true
		}
	}
	if !found {
		return ""
	}
	return strings.TrimSpace(r[match])
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// ToStudent validates the record and converts it into a Student.
// StudentNum is zero when the record leaves the number to the store.
func (r Record) ToStudent() (models.Student, error) {
	bad := map[string]string{}
	in := studentInput{
		FirstName:       r.Get("firstName"),
		LastName:        r.Get("lastName"),
		Email:           r.Get("email"),
		AddressStreet:   r.Get("addressStreet"),
		AddressCity:     r.Get("addressCity"),
		AddressProvince: r.Get("addressProvince"),
		TA:              parseBool(r.Get("TA")),
		Status:          r.Get("status"),
	}
	if in.Status == "" {
		in.Status = models.StatusFullTime
	}

	if v := r.Get("studentNum"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			bad["studentNum"] = "must be a positive integer"
		} else {
			in.StudentNum = n
		}
	}
	if v := r.Get("course"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			bad["course"] = "must be an integer course id"
		} else {
			in.Course = n
		}
	}

	if err := validate.Struct(in); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return models.Student{}, err
		}
		for _, fe := range verrs {
			if _, seen := bad[fe.Field()]; !seen {
				bad[fe.Field()] = describe(fe)
			}
		}
	}
	if len(bad) > 0 {
		return models.Student{}, &ValidationError{Fields: bad}
	}

	return models.Student{
		StudentNum:      in.StudentNum,
		FirstName:       in.FirstName,
		LastName:        in.LastName,
		Email:           in.Email,
		AddressStreet:   in.AddressStreet,
		AddressCity:     in.AddressCity,
		AddressProvince: in.AddressProvince,
		TA:              in.TA,
		Status:          in.Status,
		Course:          in.Course,
	}, nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gt", "gte":
		return "must be positive"
	case "lte":
		return "must be at most " + fe.Param()
	}
	return "failed " + fe.Tag()
}
