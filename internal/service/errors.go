package service

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorType int

const (
	ErrUnknown ErrorType = iota
	ErrNotFound
	ErrNotReady
	ErrExtraction
	ErrAnalysis
	ErrRender
	ErrArtifactMissing
	ErrStorage
)

// AuditError is the service-level error carrying a coarse classification the
// HTTP layer maps onto response codes.
type AuditError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func NewError(t ErrorType, format string, args ...any) *AuditError {
	return &AuditError{
		Type:    t,
		Message: fmt.Sprintf(format, args...),
	}
}

func WrapError(t ErrorType, message string, cause error) *AuditError {
	return &AuditError{
		Type:    t,
		Message: message,
		Cause:   cause,
	}
}

func (e *AuditError) Error() string {
	parts := []string{fmt.Sprintf("[%s]", e.Type)}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *AuditError) Unwrap() error {
	return e.Cause
}

// TypeOf extracts the classification from any error in the chain; plain
// errors classify as ErrUnknown.
func TypeOf(err error) ErrorType {
	var auditErr *AuditError
	if errors.As(err, &auditErr) {
		return auditErr.Type
	}
	return ErrUnknown
}

func (t ErrorType) String() string {
	switch t {
	case ErrNotFound:
		return "NotFound"
	case ErrNotReady:
		return "NotReady"
	case ErrExtraction:
		return "Extraction"
	case ErrAnalysis:
		return "Analysis"
	case ErrRender:
		return "Render"
	case ErrArtifactMissing:
		return "ArtifactMissing"
	case ErrStorage:
		return "Storage"
	default:
		return "Unknown"
	}
}
