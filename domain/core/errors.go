package core

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound        = errors.New("resource not found")
	ErrModelNotFound   = fmt.Errorf("%w: model", ErrNotFound)
	ErrMetricsNotFound = fmt.Errorf("%w: model metrics", ErrNotFound)
	ErrColumnNotFound  = fmt.Errorf("%w: column", ErrNotFound)

	// Schema errors
	ErrSchemaIncompatible = errors.New("schema incompatible")
	ErrNoColumnsInCommon  = fmt.Errorf("%w: no columns in common with the training set", ErrSchemaIncompatible)
	ErrIncompatibleColumn = fmt.Errorf("%w: incompatible column", ErrSchemaIncompatible)

	// Build and scoring errors
	ErrInvalidParameters = errors.New("invalid model parameters")
	ErrInvalidKey        = errors.New("invalid key")
	ErrUnimplemented     = errors.New("unimplemented")
	ErrScoringCancelled  = errors.New("scoring cancelled")

	// Checksum errors indicate a defect in a declared configuration type
	ErrChecksumField = errors.New("checksum field access failed")
)

// Error constructors with context
func NewNotFoundError(resource string, key Key) error {
	return fmt.Errorf("%w: %s with key %s", ErrNotFound, resource, key)
}

// ColumnMismatch describes one numeric/categorical mismatch.
type ColumnMismatch struct {
	Column  string
	Trained string
	Passed  string
}

func (c ColumnMismatch) String() string {
	return fmt.Sprintf("'%s', expected (trained on) %s, was passed a %s", c.Column, c.Trained, c.Passed)
}

// NewIncompatibleColumnError reports a numeric/categorical mismatch for one column.
func NewIncompatibleColumnError(column, trained, passed string) error {
	return NewIncompatibleColumnsError([]ColumnMismatch{{Column: column, Trained: trained, Passed: passed}})
}

// NewIncompatibleColumnsError folds several column mismatches into one error so
// callers see every offending column at once.
func NewIncompatibleColumnsError(cols []ColumnMismatch) error {
	details := make([]string, len(cols))
	for i, c := range cols {
		details[i] = c.String()
	}
	if len(details) == 1 {
		return fmt.Errorf("%w: %s", ErrIncompatibleColumn, details[0])
	}
	return fmt.Errorf("%w: %d columns: %s", ErrIncompatibleColumn, len(details), strings.Join(details, "; "))
}

func NewUnimplementedError(what string) error {
	return fmt.Errorf("%w: %s", ErrUnimplemented, what)
}

func NewChecksumFieldError(field string, value interface{}) error {
	return fmt.Errorf("%w: field %s has unhashable type %T", ErrChecksumField, field, value)
}

func NewInvalidParametersError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidParameters, field, reason)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsSchemaError(err error) bool {
	return errors.Is(err, ErrSchemaIncompatible)
}

func IsUnimplemented(err error) bool {
	return errors.Is(err, ErrUnimplemented)
}

func IsCancelled(err error) bool {
	return errors.Is(err, ErrScoringCancelled)
}
