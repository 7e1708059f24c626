package domain

import (
	"fmt"
	"strings"
)

// ErrorKind classifies pipeline failures. Validation and resource errors are
// reported synchronously with a field-scoped reason; internal errors surface
// only a generic message to the caller.
type ErrorKind int

const (
	// KindResourceUnavailable means the backing model or scaler artifact is
	// missing or failed to load.
	KindResourceUnavailable ErrorKind = iota
	// KindMissingFields means required payload fields are absent.
	KindMissingFields
	// KindInvalidValue means a field failed type coercion or a range/enum
	// constraint.
	KindInvalidValue
	// KindImageProcessing means an uploaded image could not be decoded or
	// transformed.
	KindImageProcessing
	// KindInternal covers anything unanticipated during scoring or
	// normalization.
	KindInternal
)

// Error is the typed failure carried through the pipeline. The HTTP layer
// maps Kind to a status class (400 for caller input, 500 for resource and
// internal errors).
type Error struct {
	Kind   ErrorKind
	Field  string   // set for KindInvalidValue
	Fields []string // set for KindMissingFields
	Reason string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindResourceUnavailable:
		return e.Reason
	case KindMissingFields:
		return "Missing required fields: " + strings.Join(e.Fields, ", ")
	case KindInvalidValue:
		return "Invalid input data: " + e.Reason
	case KindImageProcessing:
		return "Image processing failed: " + e.Reason
	default:
		return "Internal server error"
	}
}

// Unavailable reports a missing or unloadable model artifact for a domain.
func Unavailable(d Domain) *Error {
	return &Error{
		Kind:   KindResourceUnavailable,
		Reason: fmt.Sprintf("%s model not loaded", d),
	}
}

// MissingFields reports the exact set of required fields absent from the
// payload, in schema order.
func MissingFields(fields []string) *Error {
	return &Error{Kind: KindMissingFields, Fields: fields}
}

// InvalidValue reports a field-scoped type or range violation.
func InvalidValue(field, format string, args ...any) *Error {
	return &Error{
		Kind:   KindInvalidValue,
		Field:  field,
		Reason: fmt.Sprintf(format, args...),
	}
}

// ImageError reports an image decode or transform failure.
func ImageError(format string, args ...any) *Error {
	return &Error{Kind: KindImageProcessing, Reason: fmt.Sprintf(format, args...)}
}

// Internal wraps an unanticipated failure. The underlying detail is kept for
// logging; callers only ever see the generic message.
func Internal(err error) *Error {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	return &Error{Kind: KindInternal, Reason: reason}
}
