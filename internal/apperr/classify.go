package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
)

// Outward messages for kinds whose real cause must not leak to clients. The
// raw cause rides on the record (Cause); it reaches the logging sink at the
// terminal failure site, never the wire.
const (
	GenericInternalMessage   = "an internal error occurred"
	GenericDataFormatMessage = "upstream service returned an unexpected response"
)

func newClassified(kind Kind, message string, details map[string]any, cause error) *Record {
	rec := New(kind, message, details)
	rec.cause = cause
	return rec
}

// Classify turns any failure into a *Record. Rules are evaluated in priority
// order and the first match wins:
//
//  1. connection-level failure (refused, reset, DNS) -> ExternalServiceUnavailable
//  2. client-side timeout or cancellation           -> ExternalServiceTimeout
//  3. upstream HTTP status (HTTPError)              -> per-status mapping
//  4. response shape failure (ShapeError)           -> DataFormatError
//  5. anything else                                 -> InternalError
//
// An already-classified *Record passes through unchanged, so classification
// is idempotent along the propagation path.
func Classify(err error) *Record {
	if err == nil {
		return nil
	}

	var rec *Record
	if errors.As(err, &rec) {
		return rec
	}

	if isConnectionFailure(err) {
		return newClassified(ExternalServiceUnavailable,
			fmt.Sprintf("upstream service unreachable: %v", err), nil, err)
	}

	if isTimeout(err) {
		return newClassified(ExternalServiceTimeout, "upstream service did not respond in time", nil, err)
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return classifyStatus(httpErr)
	}

	var shapeErr *ShapeError
	if errors.As(err, &shapeErr) {
		return newClassified(DataFormatError, GenericDataFormatMessage, nil, err)
	}

	return newClassified(InternalError, GenericInternalMessage, nil, err)
}

func classifyStatus(e *HTTPError) *Record {
	switch {
	case e.Status == http.StatusBadRequest:
		return newClassified(ValidationError, "upstream rejected the request as invalid", nil, e)
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		return newClassified(UnauthorizedAccess, "upstream rejected the request as unauthorized", nil, e)
	case e.Status == http.StatusNotFound:
		return newClassified(NotFound, "requested resource not found", nil, e)
	case e.Status == http.StatusRequestTimeout || e.Status == http.StatusTooManyRequests || e.Status >= 500:
		return newClassified(ExternalServiceError,
			fmt.Sprintf("upstream service failed with HTTP %d", e.Status),
			map[string]any{"upstreamStatus": e.Status}, e)
	case e.Status >= 400 && e.Status < 500:
		return newClassified(ValidationError,
			fmt.Sprintf("upstream rejected the request with HTTP %d", e.Status), nil, e)
	default:
		return newClassified(InternalError, GenericInternalMessage, nil, e)
	}
}

// isConnectionFailure matches errors raised before any response arrived:
// refused or reset connections and DNS resolution failures. Checked ahead of
// timeouts because a DNS failure may also report Timeout() == true.
func isConnectionFailure(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.EHOSTUNREACH) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
