// Package reqctx binds an immutable snapshot of request metadata to the call
// chain of one logical request. The snapshot rides on context.Context, so any
// code running on behalf of the request can read it without the identifier
// being threaded through every signature, and two concurrently in-flight
// requests can never observe each other's values.
package reqctx

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yourorg/ops-backend/internal/requestid"
)

// HeaderOperator carries the acting operator's identity on business routes.
const HeaderOperator = "ny-operator"

// maxCapturedBody bounds how much of an inbound body is kept on the snapshot.
const maxCapturedBody = 64 << 10

// Context is the metadata of one inbound request for its entire lifetime.
// It is created once by the entry middleware and never mutated afterwards.
type Context struct {
	RequestID string            `json:"requestId"`
	Timestamp time.Time         `json:"timestamp"`
	Method    string            `json:"method"`
	URL       string            `json:"url"`
	ShopID    int               `json:"shopId,omitempty"` // 0 when the route carries none
	Operator  string            `json:"operator,omitempty"`
	UserAgent string            `json:"userAgent,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"` // sanitized copy
	Body      map[string]any    `json:"body,omitempty"`    // sanitized copy
}

type ctxKey struct{}

// With returns a context carrying rc. Binding replaces any previously bound
// snapshot; snapshots themselves are never edited in place.
func With(ctx context.Context, rc *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, rc)
}

// From returns the snapshot bound to the current logical request, if any.
func From(ctx context.Context) (*Context, bool) {
	rc, ok := ctx.Value(ctxKey{}).(*Context)
	return rc, ok
}

// RequestID returns the bound request identifier, or "" when no snapshot is
// bound. Convenience for boundary code that only needs the identifier.
func RequestID(ctx context.Context) string {
	if rc, ok := From(ctx); ok {
		return rc.RequestID
	}
	return ""
}

// FromRequest builds the snapshot for an inbound HTTP request.
//
// An inbound x-request-id header is reused only when it matches the canonical
// format; invalid or absent values fall back to a freshly generated one. The
// system never adopts untrusted input as its own identifier.
func FromRequest(r *http.Request) *Context {
	id := r.Header.Get(requestid.Header)
	if !requestid.Validate(id) {
		id = requestid.Generate()
	}

	rc := &Context{
		RequestID: id,
		Timestamp: time.Now().UTC(),
		Method:    r.Method,
		URL:       r.URL.String(),
		Operator:  strings.TrimSpace(r.Header.Get(HeaderOperator)),
		UserAgent: r.UserAgent(),
		IP:        clientIP(r),
		Headers:   sanitizeHeaders(r.Header),
	}

	if shopID, err := strconv.Atoi(r.URL.Query().Get("shopId")); err == nil {
		rc.ShopID = shopID
	}

	rc.Body = captureBody(r)
	return rc
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("x-forwarded-for"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// captureBody reads a JSON body for the snapshot and restores it on the
// request so the handler can still bind it. Non-JSON and oversized bodies are
// not captured.
func captureBody(r *http.Request) map[string]any {
	if r.Body == nil || !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return nil
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxCapturedBody+1))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(strings.NewReader(string(raw)), r.Body), r.Body}
	if err != nil || len(raw) == 0 || len(raw) > maxCapturedBody {
		return nil
	}
	var body map[string]any
	if json.Unmarshal(raw, &body) != nil {
		return nil
	}
	return sanitizeBody(body)
}
