package utils

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
)

// OperatorTimezone is the single deployment timezone all cycle/cutoff math runs in.
// Override with OPERATOR_TIMEZONE.
func OperatorTimezone() *time.Location {
	tz := os.Getenv("OPERATOR_TIMEZONE")
	if tz == "" {
		tz = "Asia/Yangon"
	}
	location, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return location
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

// DateOnly strips the time-of-day in the given location.
func DateOnly(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// SameDay reports whether two instants fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	return DateOnly(a, loc).Equal(DateOnly(b, loc))
}

// FormatOrderNumber builds the human-readable order number:
// prefix + yymmdd + zero-padded daily sequence, e.g. GRO2608290041.
func FormatOrderNumber(prefix string, day time.Time, seq int64) string {
	return fmt.Sprintf("%s%s%04d", prefix, day.Format("060102"), seq)
}

// ProcessValidationErrors flattens binding errors into a field -> tag map.
// Non-validator errors (malformed JSON) come back under a single "error" key.
func ProcessValidationErrors(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return map[string]string{"error": err.Error()}
	}

	errorResponse := make(map[string]string)
	for _, fieldErr := range validationErrors {
		errorResponse[fieldErr.Field()] = fieldErr.Tag()
	}
	return errorResponse
}
