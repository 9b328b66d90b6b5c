package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("record conflict")
	ErrIncompleteRange   = errors.New("incomplete range")
	ErrNotFound          = errors.New("not found")
	ErrLocked            = errors.New("date is locked by another writer")
)

type SourceUnavailableError struct {
	Date string
	Err  error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("%s for %s: %v", ErrSourceUnavailable, e.Date, e.Err)
}

func (e *SourceUnavailableError) Unwrap() []error { return []error{ErrSourceUnavailable, e.Err} }

type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Msg)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func Invalidf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// ConflictError reports a write whose digest differs from the stored record.
type ConflictError struct {
	Date           string
	ExistingDigest string
	NewDigest      string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s on %s: stored %s, got %s", ErrConflict, e.Date, short(e.ExistingDigest), short(e.NewDigest))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// IncompleteRangeError is non-fatal: the bucket it accompanies is still valid.
type IncompleteRangeError struct {
	Kind     string
	Key      string
	Expected int
	Present  int
	Missing  []string
}

func (e *IncompleteRangeError) Error() string {
	return fmt.Sprintf("%s: %s %s has %d of %d (missing %s)",
		ErrIncompleteRange, e.Kind, e.Key, e.Present, e.Expected, strings.Join(e.Missing, ", "))
}

func (e *IncompleteRangeError) Unwrap() error { return ErrIncompleteRange }

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
