// Package notification integrates the notification lookup upstream. All
// operations are read-only, so the adapter inherits the full retry budget.
//
// Mock mode contract: when MOCK_MODE or NOTIFICATION_MOCK_MODE is enabled,
// Lookup never touches the network and branches deterministically on the
// requested identifier. This branching is part of the adapter's observable
// contract in test environments:
//
//   - an identifier ending in "999404" resolves to a NotFound record with
//     details.notificationId set to the identifier
//   - an identifier ending in "111000" resolves to a minimal payload carrying
//     only the identifier
//   - every other identifier resolves to a representative full payload
package notification

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/yourorg/ops-backend/internal/apperr"
	"github.com/yourorg/ops-backend/internal/config"
	"github.com/yourorg/ops-backend/internal/upstream"
)

// Service is the name used for configuration resolution and metrics labels.
const Service = "notification"

const (
	mockNotFoundSuffix = "999404"
	mockMinimalSuffix  = "111000"
)

// responseSchema is the structural contract a real upstream payload must
// satisfy before it leaves the adapter.
const responseSchema = `{
	"type": "object",
	"required": ["id", "title", "status"],
	"properties": {
		"id": {"type": ["integer", "string"]},
		"title": {"type": "string"},
		"status": {"type": "string"},
		"channel": {"type": "string"},
		"sentAt": {"type": "string"}
	}
}`

// Adapter looks up notifications on the upstream notification service.
type Adapter struct {
	client *upstream.Client
}

var _ upstream.Adapter = (*Adapter)(nil)

// New resolves configuration for the notification upstream and builds the
// adapter. Options are forwarded to the underlying client.
func New(opts ...upstream.Option) (*Adapter, error) {
	cfg, err := config.Resolve(Service, false)
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg, opts...)
}

// NewWithConfig builds the adapter from an already-resolved configuration.
func NewWithConfig(cfg config.AdapterConfig, opts ...upstream.Option) (*Adapter, error) {
	client, err := upstream.NewClient(cfg, responseSchema, opts...)
	if err != nil {
		return nil, err
	}
	return &Adapter{client: client}, nil
}

// Name implements upstream.Adapter.
func (a *Adapter) Name() string { return Service }

// Call implements upstream.Adapter.
func (a *Adapter) Call(ctx context.Context, req upstream.Request) (*upstream.Result, error) {
	if a.client.MockMode() {
		return a.mockResult(req.Path)
	}
	return a.client.Do(ctx, req)
}

// Lookup fetches one notification by identifier.
func (a *Adapter) Lookup(ctx context.Context, id string) (*upstream.Result, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.New(apperr.MissingRequiredField, "notification id is required", nil)
	}
	return a.Call(ctx, upstream.Request{
		Method: http.MethodGet,
		Path:   "/notifications/" + id,
	})
}

func (a *Adapter) mockResult(path string) (*upstream.Result, error) {
	id := path[strings.LastIndexByte(path, '/')+1:]

	switch {
	case strings.HasSuffix(id, mockNotFoundSuffix):
		return nil, apperr.New(apperr.NotFound,
			fmt.Sprintf("notification %s not found", id),
			map[string]any{"notificationId": numericID(id)})
	case strings.HasSuffix(id, mockMinimalSuffix):
		return &upstream.Result{
			StatusCode: http.StatusOK,
			Data:       map[string]any{"id": numericID(id)},
			Mocked:     true,
		}, nil
	default:
		return &upstream.Result{
			StatusCode: http.StatusOK,
			Data: map[string]any{
				"id":      numericID(id),
				"title":   "scheduled maintenance",
				"status":  "SENT",
				"channel": "email",
				"sentAt":  "2024-01-01T12:00:00Z",
			},
			Mocked: true,
		}, nil
	}
}

// numericID keeps numeric identifiers numeric in synthetic payloads so mock
// responses mirror the upstream's JSON types.
func numericID(id string) any {
	if n, err := strconv.Atoi(id); err == nil {
		return n
	}
	return id
}
