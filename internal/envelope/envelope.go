// Package envelope builds the uniform wire response shape. Every response the
// service emits, success or failure, carries the same envelope, stamped with
// the request identifier captured when the request began. The identifier is
// read from the bound request context at this boundary, so it stays consistent
// no matter how deep in the adapter chain a failure originated.
package envelope

import (
	"context"
	"time"

	"github.com/yourorg/ops-backend/internal/apperr"
	"github.com/yourorg/ops-backend/internal/reqctx"
)

// Envelope is the outward response shape.
type Envelope struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorBody `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	RequestID string     `json:"requestId"`
}

// ErrorBody is the error half of the envelope.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Kinds whose cause must never leak to a client, even when a record was built
// directly with a specific message instead of going through Classify.
var genericMessages = map[apperr.Kind]string{
	apperr.InternalError:   apperr.GenericInternalMessage,
	apperr.DataFormatError: apperr.GenericDataFormatMessage,
}

// Success wraps data in a success envelope.
func Success(ctx context.Context, data any) Envelope {
	return Envelope{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
		RequestID: reqctx.RequestID(ctx),
	}
}

// Error wraps a classified record in an error envelope.
func Error(ctx context.Context, rec *apperr.Record) Envelope {
	message := rec.Message
	if generic, ok := genericMessages[rec.Kind]; ok {
		message = generic
	}
	return Envelope{
		Success: false,
		Error: &ErrorBody{
			Code:    string(rec.Kind),
			Message: message,
			Details: rec.Details,
		},
		Timestamp: time.Now().UTC(),
		RequestID: reqctx.RequestID(ctx),
	}
}
