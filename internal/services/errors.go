package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSourceFailure = errors.New("source failure")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
	ErrCancelled     = errors.New("cancelled")
)

var markers = []error{
	ErrSourceFailure,
	ErrValidation,
	ErrConfiguration,
	ErrNotFound,
	ErrTimeout,
	ErrCancelled,
	ErrTransient,
}

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorDetails summarizes a wrapped error for API payloads and logs.
type ErrorDetails struct {
	Kind    string
	Message string
	Cause   error
}

// Details classifies err by its marker. Context deadline and cancellation
// errors map to the timeout and cancelled kinds even when unwrapped.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: "unknown", Message: err.Error(), Cause: errors.Unwrap(err)}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		details.Kind = kindName(ErrTimeout)
		return details
	case errors.Is(err, context.Canceled):
		details.Kind = kindName(ErrCancelled)
		return details
	}
	for _, marker := range markers {
		if errors.Is(err, marker) {
			details.Kind = kindName(marker)
			break
		}
	}
	return details
}

// IsTimeout reports whether err represents an expired deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

func kindName(marker error) string {
	return strings.ReplaceAll(marker.Error(), " ", "_")
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
