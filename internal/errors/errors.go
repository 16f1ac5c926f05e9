package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrPrecondition signals a stage precondition that the caller must
	// resolve before retrying (missing voice, missing brief, ...).
	ErrPrecondition = errors.New("precondition failed")
)

// StageErrorCategory identifies which precondition a stage rejected on, so
// callers can branch without parsing the message.
type StageErrorCategory string

const (
	CategoryVoiceMissing    StageErrorCategory = "voice_missing"
	CategoryBriefMissing    StageErrorCategory = "brief_missing"
	CategoryProviderMissing StageErrorCategory = "provider_missing"
	CategoryOutputMissing   StageErrorCategory = "output_missing"
	CategoryOutlineMissing  StageErrorCategory = "outline_missing"
)

// StageError is a categorized precondition failure raised by a pipeline
// stage. It unwraps to ErrPrecondition.
type StageError struct {
	Category StageErrorCategory
	Message  string
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *StageError) Unwrap() error { return ErrPrecondition }

// NewStageError builds a StageError with a formatted message.
func NewStageError(cat StageErrorCategory, format string, args ...interface{}) *StageError {
	return &StageError{Category: cat, Message: fmt.Sprintf(format, args...)}
}

// StageCategory extracts the category from err, if it is (or wraps) a
// StageError.
func StageCategory(err error) (StageErrorCategory, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Category, true
	}
	return "", false
}
