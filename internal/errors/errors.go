// Package errors provides domain-specific error types and sentinel errors
// for improved error handling across the application.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common scenarios.
// Use errors.Is() to check these errors in your code.
var (
	// ErrUnknownCurriculum indicates a curriculum name outside the registry.
	ErrUnknownCurriculum = errors.New("unknown curriculum")

	// ErrSyncInProgress indicates an overlapping sync is already running.
	ErrSyncInProgress = errors.New("sync already in progress")
)

// ValidationError represents input validation failures.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// FetchError indicates that every candidate source location for a curriculum
// document failed. Callers recover locally by using the fallback catalog;
// a FetchError must never abort a multi-curriculum sync.
type FetchError struct {
	Curriculum string
	Attempts   []FetchAttempt
}

// FetchAttempt records one failed source location.
type FetchAttempt struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "all %d source locations failed for curriculum %q", len(e.Attempts), e.Curriculum)
	for _, a := range e.Attempts {
		if a.StatusCode > 0 {
			fmt.Fprintf(&b, "; %s (status=%d): %v", a.URL, a.StatusCode, a.Err)
		} else {
			fmt.Fprintf(&b, "; %s: %v", a.URL, a.Err)
		}
	}
	return b.String()
}

// Unwrap exposes the last attempt's cause for errors.Is/As chains.
func (e *FetchError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// NewFetchError creates a FetchError from per-location attempts.
func NewFetchError(curriculum string, attempts []FetchAttempt) *FetchError {
	return &FetchError{Curriculum: curriculum, Attempts: attempts}
}

// IsFetchError reports whether err is (or wraps) a FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// LineParseError reports a source line that could not be turned into a
// course record. Extraction catches these per line, counts them, and keeps
// scanning; a malformed line must never abort the document.
type LineParseError struct {
	Line    int
	Content string
	Err     error
}

func (e *LineParseError) Error() string {
	content := e.Content
	if len(content) > 80 {
		content = content[:80] + "..."
	}
	return fmt.Sprintf("cannot parse line %d (%q): %v", e.Line, content, e.Err)
}

func (e *LineParseError) Unwrap() error {
	return e.Err
}

// NewLineParseError creates a LineParseError for the given source line.
func NewLineParseError(line int, content string, err error) *LineParseError {
	return &LineParseError{Line: line, Content: content, Err: err}
}

// RecordValidationError reports an extracted record that failed validation,
// such as a name below the minimum length. The record is dropped and the
// scan continues.
type RecordValidationError struct {
	Name   string
	Reason string
}

func (e *RecordValidationError) Error() string {
	return fmt.Sprintf("invalid course record %q: %s", e.Name, e.Reason)
}

// NewRecordValidationError creates a RecordValidationError.
func NewRecordValidationError(name, reason string) *RecordValidationError {
	return &RecordValidationError{Name: name, Reason: reason}
}

// PersistenceError represents a storage write failure during sync. Unlike
// FetchError it propagates as a hard failure: partial writes would corrupt
// displayed state.
type PersistenceError struct {
	Curriculum string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed for curriculum %q: %v", e.Curriculum, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError creates a new persistence error.
func NewPersistenceError(curriculum string, err error) *PersistenceError {
	return &PersistenceError{Curriculum: curriculum, Err: err}
}
