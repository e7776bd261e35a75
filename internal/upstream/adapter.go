// Package upstream defines the contract every external-service adapter
// implements and the shared HTTP machinery behind it: per-adapter
// configuration resolved once at construction, retries driven by the error
// taxonomy, a correlation header on every outbound call, a hard per-attempt
// timeout, and defensive structural validation of upstream payloads.
// Adapters normalize every failure into a classified *apperr.Record; callers
// above this layer never see a raw transport or parse error.
package upstream

import (
	"context"
	"net/url"
)

// Request describes one call to an upstream service.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any // marshaled as JSON when non-nil
}

// Result is the normalized outcome of a successful upstream call.
type Result struct {
	StatusCode int            `json:"statusCode"`
	Data       map[string]any `json:"data"`
	Mocked     bool           `json:"mocked,omitempty"`
}

// Adapter is implemented by each upstream integration. Call fails with a
// classified *apperr.Record, never a raw error. When the resolved
// configuration has MockMode set, Call must serve a deterministic synthetic
// response without touching the network; the shared Client refuses transport
// calls in mock mode.
type Adapter interface {
	Name() string
	Call(ctx context.Context, req Request) (*Result, error)
}
