// Package db is the roster's data access layer: the Store contract and its
// memory, bbolt and Redis backends.
package db

import (
	"context"
	"fmt"

	"college-roster-go/logger"
	"college-roster-go/models"
)

// Store owns the roster. Initialize must succeed before any other call.
// Implementations are safe for concurrent use.
type Store interface {
	Initialize(ctx context.Context) error
	GetAllStudents(ctx context.Context) ([]models.Student, error)
	GetStudentsByCourse(ctx context.Context, courseID string) ([]models.Student, error)
	GetStudentByNum(ctx context.Context, num string) (models.Student, error)
	GetTAs(ctx context.Context) ([]models.Student, error)
	GetCourses(ctx context.Context) ([]models.Course, error)
	AddStudent(ctx context.Context, record Record) (models.Student, error)
	Close() error
}

// Counter is implemented by stores that can report their size cheaply.
type Counter interface {
	Counts(ctx context.Context) (students, courses int, err error)
}

// Option configures a store.
type Option func(*storeOptions)

type storeOptions struct {
	log logger.Logger
}

// WithLogger sets the logger used by a store.
func WithLogger(l logger.Logger) Option {
	return func(o *storeOptions) {
		if l != nil {
			o.log = l
		}
	}
}

func applyOptions(opts []Option) storeOptions {
	o := storeOptions{log: logger.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func initErr(err error) error {
	return fmt.Errorf("%w: %v", ErrInitialization, err)
}
