package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrEditsNotAllowed is returned when a subscription's edit/skip permission flag
// denies the requested change.
var ErrEditsNotAllowed = errors.New("edits are not allowed for this subscription")

// ValidationError marks malformed input. Nothing is persisted when it is returned.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func NewValidationError(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// InvalidTransitionError is returned when an order status change is not in the
// transition table. The order is left unmodified.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order transition %s -> %s", e.From, e.To)
}

func IsInvalidTransition(err error) bool {
	var te *InvalidTransitionError
	return errors.As(err, &te)
}

// DependencyError marks a referenced collaborator record that is missing or
// unusable (inactive product, no resolvable delivery address).
type DependencyError struct {
	Resource string
	Id       int
	Reason   string
}

func (e *DependencyError) Error() string {
	if e.Id > 0 {
		return fmt.Sprintf("%s %d unavailable: %s", e.Resource, e.Id, e.Reason)
	}
	return fmt.Sprintf("%s unavailable: %s", e.Resource, e.Reason)
}

func IsDependencyError(err error) bool {
	var de *DependencyError
	return errors.As(err, &de)
}

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
