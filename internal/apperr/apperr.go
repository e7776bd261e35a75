// Package apperr defines the closed error taxonomy every failure in the
// service is funneled through before it crosses a module boundary. Upstream
// adapters, middleware, and the response envelope all trade in *Record; no
// raw transport or parse error ever reaches the HTTP boundary unclassified.
package apperr

import (
	"fmt"
	"net/http"
)

// Kind is one value from the closed failure taxonomy.
type Kind string

const (
	ValidationError            Kind = "ValidationError"
	MissingRequiredField       Kind = "MissingRequiredField"
	UnauthorizedAccess         Kind = "UnauthorizedAccess"
	NotFound                   Kind = "NotFound"
	BusinessRuleViolation      Kind = "BusinessRuleViolation"
	ExternalServiceTimeout     Kind = "ExternalServiceTimeout"
	ExternalServiceUnavailable Kind = "ExternalServiceUnavailable"
	ExternalServiceError       Kind = "ExternalServiceError"
	DataFormatError            Kind = "DataFormatError"
	InternalError              Kind = "InternalError"
)

// StatusFor maps a Kind to the HTTP status returned to the client. The
// mapping is total and deterministic; a kind never maps to two statuses.
func StatusFor(kind Kind) int {
	switch kind {
	case ValidationError, MissingRequiredField, BusinessRuleViolation:
		return http.StatusBadRequest
	case UnauthorizedAccess:
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	case ExternalServiceTimeout, ExternalServiceUnavailable, ExternalServiceError:
		return http.StatusBadGateway
	default: // DataFormatError, InternalError, and anything unknown
		return http.StatusInternalServerError
	}
}

// retryableFor reports whether failures of this kind are transient enough to
// retry. Retryability is a function of the kind, not a separate list.
func retryableFor(kind Kind) bool {
	switch kind {
	case ExternalServiceTimeout, ExternalServiceUnavailable, ExternalServiceError:
		return true
	default:
		return false
	}
}

// Record is the canonical, classified representation of any failure.
// It is constructed once at the point of classification and never mutated;
// derived variants are produced with WithDetail.
type Record struct {
	Kind       Kind           `json:"kind"`
	HTTPStatus int            `json:"httpStatus"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	Retryable  bool           `json:"retryable"`

	cause error // raw error this record was classified from; never serialized
}

// New builds a Record for kind. HTTPStatus and Retryable are derived from the
// kind so the taxonomy invariants cannot be violated by a caller.
func New(kind Kind, message string, details map[string]any) *Record {
	return &Record{
		Kind:       kind,
		HTTPStatus: StatusFor(kind),
		Message:    message,
		Details:    details,
		Retryable:  retryableFor(kind),
	}
}

// Error implements the error interface.
func (r *Record) Error() string {
	return fmt.Sprintf("%s: %s", r.Kind, r.Message)
}

// Cause returns the raw error this record was classified from, if any. It is
// kept off the wire shape; terminal log sites forward it to the logging sink.
func (r *Record) Cause() error { return r.cause }

// WithDetail returns a copy of r with one extra detail entry. The receiver is
// left untouched so already-propagated records stay immutable.
func (r *Record) WithDetail(key string, value any) *Record {
	details := make(map[string]any, len(r.Details)+1)
	for k, v := range r.Details {
		details[k] = v
	}
	details[key] = value
	clone := *r
	clone.Details = details
	return &clone
}

// HTTPError represents an upstream service that responded, but with a
// non-2xx status. Adapters return it from individual attempts; Classify maps
// the status onto the taxonomy.
type HTTPError struct {
	Status int
	URL    string
	Body   []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream %s returned HTTP %d", e.URL, e.Status)
}

// ShapeError represents an upstream response body that failed structural
// validation: unparseable JSON, a missing required field, or a wrong type.
type ShapeError struct {
	Reason string
	Cause  error
}

func (e *ShapeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("upstream response shape invalid: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("upstream response shape invalid: %s", e.Reason)
}

func (e *ShapeError) Unwrap() error { return e.Cause }
