package domain

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an error for callers that map failures to responses.
type Kind string

const (
	KindNotFound     Kind = "NotFound"
	KindInvalidGraph Kind = "InvalidGraph"
	KindOutOfRange   Kind = "OutOfRange"
	KindConflict     Kind = "Conflict"
	KindTimeout      Kind = "Timeout"
	KindValidation   Kind = "ValidationError"
	KindInternal     Kind = "Internal"
)

var (
	// ErrNotFound is the root of every "referenced entity is absent" error.
	ErrNotFound = errors.New("not found")
	// ErrInvalidGraph reports malformed authored story content.
	ErrInvalidGraph = errors.New("invalid story graph")
	// ErrOutOfRange reports a bad scene or option index.
	ErrOutOfRange = errors.New("index out of range")
	// ErrConflict means a concurrent ledger or leaderboard write won the race; retry.
	ErrConflict = errors.New("concurrent update conflict")
	// ErrTimeout means the backing store did not answer within its bound.
	ErrTimeout = errors.New("store timeout")
	// ErrValidation reports a missing or malformed request field.
	ErrValidation = errors.New("validation failed")
)

var (
	ErrUserNotFound  = fmt.Errorf("user %w", ErrNotFound)
	ErrStoryNotFound = fmt.Errorf("story %w", ErrNotFound)
	ErrLevelNotFound = fmt.Errorf("level %w", ErrNotFound)
	ErrTopicNotFound = fmt.Errorf("topic %w", ErrNotFound)
	ErrQuizNotFound  = fmt.Errorf("quiz %w", ErrNotFound)

	// ErrLevelLocked is returned when a story of a locked level is completed.
	ErrLevelLocked = fmt.Errorf("level is locked: %w", ErrValidation)
)

// Validationf builds a validation error with a field-specific message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// InvalidGraphf builds an invalid-graph error naming the offending story element.
func InvalidGraphf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidGraph, fmt.Sprintf(format, args...))
}

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidGraph):
		return KindInvalidGraph
	case errors.Is(err, ErrOutOfRange):
		return KindOutOfRange
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrValidation):
		return KindValidation
	default:
		return KindInternal
	}
}
