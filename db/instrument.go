package db

import (
	"context"
	"time"

	"college-roster-go/metrics"
	"college-roster-go/models"
)

// Instrumented wraps a Store so every call is recorded in the metrics
// package and the roster size gauges follow Initialize and AddStudent.
func Instrumented(s Store) Store {
	return &instrumentedStore{next: s}
}

type instrumentedStore struct {
	next Store
}

func observe(op string, start time.Time, err error) {
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeError
	}
	metrics.RecordStoreOperation(op, outcome, float64(time.Since(start).Microseconds())/1000)
}

func (s *instrumentedStore) refreshSize(ctx context.Context) {
	c, ok := s.next.(Counter)
	if !ok {
		return
	}
	if students, courses, err := c.Counts(ctx); err == nil {
		metrics.SetRosterSize(students, courses)
	}
}

func (s *instrumentedStore) Initialize(ctx context.Context) error {
	start := time.Now()
	err := s.next.Initialize(ctx)
	observe("initialize", start, err)
	if err == nil {
		s.refreshSize(ctx)
	}
	return err
}

func (s *instrumentedStore) GetAllStudents(ctx context.Context) ([]models.Student, error) {
	start := time.Now()
	out, err := s.next.GetAllStudents(ctx)
	observe("get_all_students", start, err)
	return out, err
}

func (s *instrumentedStore) GetStudentsByCourse(ctx context.Context, courseID string) ([]models.Student, error) {
	start := time.Now()
	out, err := s.next.GetStudentsByCourse(ctx, courseID)
	observe("get_students_by_course", start, err)
	return out, err
}

func (s *instrumentedStore) GetStudentByNum(ctx context.Context, num string) (models.Student, error) {
	start := time.Now()
	out, err := s.next.GetStudentByNum(ctx, num)
	observe("get_student_by_num", start, err)
	return out, err
}

func (s *instrumentedStore) GetTAs(ctx context.Context) ([]models.Student, error) {
	start := time.Now()
	out, err := s.next.GetTAs(ctx)
	observe("get_tas", start, err)
	return out, err
}

func (s *instrumentedStore) GetCourses(ctx context.Context) ([]models.Course, error) {
	start := time.Now()
	out, err := s.next.GetCourses(ctx)
	observe("get_courses", start, err)
	return out, err
}

func (s *instrumentedStore) AddStudent(ctx context.Context, record Record) (models.Student, error) {
	start := time.Now()
	out, err := s.next.AddStudent(ctx, record)
	observe("add_student", start, err)
	if err == nil {
		s.refreshSize(ctx)
	}
	return out, err
}

func (s *instrumentedStore) Close() error {
	return s.next.Close()
}
