// Package mock provides a fake upstream adapter for tests: calls are counted,
// and behavior is injected through CallFunc.
package mock

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/yourorg/ops-backend/internal/upstream"
)

// Adapter implements upstream.Adapter with injectable behavior.
type Adapter struct {
	AdapterName string
	CallFunc    func(ctx context.Context, req upstream.Request) (*upstream.Result, error)

	calls atomic.Int64
}

var _ upstream.Adapter = (*Adapter)(nil)

// New creates a mock adapter. Without a CallFunc it returns an empty
// successful result.
func New(name string) *Adapter {
	return &Adapter{AdapterName: name}
}

// Name implements upstream.Adapter.
func (a *Adapter) Name() string { return a.AdapterName }

// Call implements upstream.Adapter and records the invocation.
func (a *Adapter) Call(ctx context.Context, req upstream.Request) (*upstream.Result, error) {
	a.calls.Add(1)
	if a.CallFunc != nil {
		return a.CallFunc(ctx, req)
	}
	return &upstream.Result{StatusCode: http.StatusOK, Data: map[string]any{}, Mocked: true}, nil
}

// Calls reports how many times Call was invoked.
func (a *Adapter) Calls() int {
	return int(a.calls.Load())
}
