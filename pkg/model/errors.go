package model

import "fmt"

// MalformedStrategyError is returned when a strategy string's grammar is
// violated: a rule without 2 or 3 colon-separated fields, an empty stage,
// an empty mapper or reference field, or whitespace inside a rule. An empty
// strategy yields EmptyStrategyError instead.
type MalformedStrategyError struct {
	Strategy string
	Reason   string
}

func (e *MalformedStrategyError) Error() string {
	return fmt.Sprintf("malformed strategy %q: %s", e.Strategy, e.Reason)
}

// EmptyStrategyError is returned when a strategy string parses to zero
// map rules.
type EmptyStrategyError struct {
	Strategy string
}

func (e *EmptyStrategyError) Error() string {
	return fmt.Sprintf("strategy %q produced no map rules", e.Strategy)
}

// UnknownReferenceError is returned when a strategy or rule names a
// reference absent from the registry.
type UnknownReferenceError struct {
	RefName string
	Species string
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("unknown reference %q for species %q", e.RefName, e.Species)
}

// MissingSequenceError is returned when a registered reference has no
// sequence path.
type MissingSequenceError struct {
	RefName string
}

func (e *MissingSequenceError) Error() string {
	return fmt.Sprintf("reference %q has no sequence path", e.RefName)
}

// DuplicateArtifactError is returned when two MapRules in the same sample
// resolve to the same out_path (including the "same out_name twice in one
// strategy" case).
type DuplicateArtifactError struct {
	SampleID string
	OutPath  string
}

func (e *DuplicateArtifactError) Error() string {
	return fmt.Sprintf("sample %q: duplicate artifact %q", e.SampleID, e.OutPath)
}

// DanglingSymlinkError is returned when a SymlinkRule's LinkSrc does not
// match any MapRule's OutName in the same sample.
type DanglingSymlinkError struct {
	SampleID string
	LinkSrc  string
}

func (e *DanglingSymlinkError) Error() string {
	return fmt.Sprintf("sample %q: symlink source %q matches no map rule", e.SampleID, e.LinkSrc)
}

// UnknownArtifactError is returned by the query surface when asked about a
// path the planner did not produce.
type UnknownArtifactError struct {
	Path string
}

func (e *UnknownArtifactError) Error() string {
	return fmt.Sprintf("unknown artifact %q", e.Path)
}

// ErrorCode represents a structured API error code.
type ErrorCode string

const (
	ErrValidation   ErrorCode = "VALIDATION_ERROR"
	ErrNotFound     ErrorCode = "NOT_FOUND"
	ErrConflict     ErrorCode = "CONFLICT"
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
)

// APIError is a structured error returned by the planner's REST API.
type APIError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewValidationError creates an APIError with validation details.
func NewValidationError(msg string, details ...FieldError) *APIError {
	return &APIError{Code: ErrValidation, Message: msg, Details: details}
}

// NewNotFoundError creates a NOT_FOUND APIError.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s %q not found", resource, id),
	}
}

// NewInternalError wraps an unexpected error as an INTERNAL_ERROR APIError.
func NewInternalError(err error) *APIError {
	return &APIError{Code: ErrInternal, Message: err.Error()}
}
