package db

import (
	"errors"
	"sort"
	"strings"
)

// Sentinel error kinds returned (wrapped) by every Store implementation.
var (
	ErrInitialization = errors.New("roster initialization failed")
	ErrNotInitialized = errors.New("roster not initialized")
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("invalid student record")
	ErrConflict       = errors.New("student number already exists")
)

// ValidationError lists the rejected fields of a record, keyed by JSON
// field name. errors.Is(err, ErrValidation) holds for it.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func fieldError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
