package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Kind classifies an error independently of its transport status.
type Kind string

const (
	KindBadRequest      Kind = "bad_request"
	KindNotFound        Kind = "not_found"
	KindValidation      Kind = "validation"
	KindConflict        Kind = "conflict"
	KindInternal        Kind = "internal"
	KindInvalidArgument Kind = "invalid_argument"
	KindShapeMismatch   Kind = "shape_mismatch"
)

// APIError is the error shape every layer hands to the error middleware.
type APIError struct {
	Status   int               `json:"-"`
	Kind     Kind              `json:"kind"`
	Message  string            `json:"error"`
	Fields   map[string]string `json:"fields,omitempty"`
	Internal error             `json:"-"`
}

func (e *APIError) Error() string {
	if e.Internal != nil {
		return e.Message + ": " + e.Internal.Error()
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Internal
}

// Is matches another *APIError by kind, so sentinel comparisons work with
// errors.Is regardless of message.
func (e *APIError) Is(target error) bool {
	var t *APIError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// WithMessage returns a copy of the APIError with a custom message
func (e *APIError) WithMessage(msg string) *APIError {
	return &APIError{
		Status:   e.Status,
		Kind:     e.Kind,
		Message:  msg,
		Fields:   e.Fields,
		Internal: e.Internal,
	}
}

func New(status int, kind Kind, message string, err error) *APIError {
	return &APIError{
		Status:   status,
		Kind:     kind,
		Message:  message,
		Internal: err,
	}
}

func BadRequest(message string, err error) *APIError {
	return New(http.StatusBadRequest, KindBadRequest, message, err)
}

func NotFound(message string, err error) *APIError {
	return New(http.StatusNotFound, KindNotFound, message, err)
}

func Conflict(message string, err error) *APIError {
	return New(http.StatusConflict, KindConflict, message, err)
}

func UnprocessableEntity(message string, err error) *APIError {
	return New(http.StatusUnprocessableEntity, KindValidation, message, err)
}

func Internal(err error) *APIError {
	return New(http.StatusInternalServerError, KindInternal, "Internal server error", err)
}

// InvalidArgument reports a request the editor state refuses to apply, such
// as a reorder sequence that is not a permutation of the siblings.
func InvalidArgument(message string, err error) *APIError {
	return New(http.StatusUnprocessableEntity, KindInvalidArgument, message, err)
}

// ShapeMismatch reports table content whose rows do not match its headers.
func ShapeMismatch(message string, err error) *APIError {
	return New(http.StatusUnprocessableEntity, KindShapeMismatch, message, err)
}

// NewValidationError converts binding errors into a 422 with per-field messages.
func NewValidationError(err error) *APIError {
	apiErr := UnprocessableEntity("Validation failed", err)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		apiErr.Fields = make(map[string]string, len(verrs))
		for _, fe := range verrs {
			apiErr.Fields[strings.ToLower(fe.Field())] = describe(fe)
		}
	}
	return apiErr
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "url":
		return "must be a valid URL"
	case "subnode_type":
		return "must be one of [headline image description table]"
	case "view_mode":
		return "must be one of [writeup mindmap]"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// KindOf extracts the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindInternal
}
