package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel"

	"github.com/yourorg/ops-backend/internal/apperr"
	"github.com/yourorg/ops-backend/internal/config"
	"github.com/yourorg/ops-backend/internal/policy"
	"github.com/yourorg/ops-backend/internal/reqctx"
	"github.com/yourorg/ops-backend/internal/requestid"
	"github.com/yourorg/ops-backend/internal/retry"
)

const maxResponseBody = 4 << 20

// Client is the shared transport base concrete adapters embed. Configuration
// is resolved once at construction and read-only afterwards.
type Client struct {
	cfg        config.AdapterConfig
	httpClient *http.Client
	retryCfg   retry.Config
	enforcer   *policy.Enforcer
	schema     *gojsonschema.Schema
}

// Option configures a Client at construction.
type Option func(*Client)

// WithHTTPClient substitutes the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithPolicyEnforcer installs retry opt-in rules consulted per call.
func WithPolicyEnforcer(e *policy.Enforcer) Option {
	return func(c *Client) { c.enforcer = e }
}

// NewClient builds the shared base for one upstream service. responseSchema,
// when non-empty, is a JSON schema every successful payload is validated
// against before it is returned; a mismatch surfaces as DataFormatError.
func NewClient(cfg config.AdapterConfig, responseSchema string, opts ...Option) (*Client, error) {
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
	}

	c.retryCfg = retry.DefaultConfig()
	c.retryCfg.MaxAttempts = cfg.MaxRetries

	if responseSchema != "" {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(responseSchema))
		if err != nil {
			return nil, fmt.Errorf("upstream %s: compiling response schema: %w", cfg.Service, err)
		}
		c.schema = schema
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the resolved adapter configuration.
func (c *Client) Config() config.AdapterConfig { return c.cfg }

// MockMode reports whether the adapter must bypass the network.
func (c *Client) MockMode() bool { return c.cfg.MockMode }

// Do executes one upstream call under the retry policy. All failures come
// back as a classified *apperr.Record. In mock mode Do refuses to run: the
// synthetic branch lives in the concrete adapter, and an adapter that reaches
// the transport anyway must fail loudly rather than leak network I/O.
func (c *Client) Do(ctx context.Context, req Request) (*Result, error) {
	if c.cfg.MockMode {
		return nil, apperr.New(apperr.InternalError,
			fmt.Sprintf("upstream %s: mock mode is enabled, the adapter must serve a synthetic response", c.cfg.Service), nil)
	}

	ctx, span := otel.Tracer("upstream").Start(ctx, c.cfg.Service+".call")
	defer span.End()

	retryCfg := c.retryCfg
	if c.enforcer != nil {
		decision, err := c.enforcer.Evaluate(map[string]any{
			"method":   req.Method,
			"mutating": c.cfg.Mutating,
			"service":  c.cfg.Service,
		})
		if err != nil {
			return nil, apperr.Classify(err)
		}
		if !decision.AllowRetry {
			retryCfg.MaxAttempts = 1
		}
	}

	requestsTotal.WithLabelValues(c.cfg.Service).Inc()
	start := time.Now()

	result, err := retry.DoValue(ctx, retryCfg, func(ctx context.Context) (*Result, error) {
		return c.attempt(ctx, req)
	})

	callDuration.WithLabelValues(c.cfg.Service).Observe(time.Since(start).Seconds())

	if err != nil {
		rec := apperr.Classify(err)
		failuresTotal.WithLabelValues(c.cfg.Service, string(rec.Kind)).Inc()
		span.RecordError(rec)
		attrs := []any{
			"adapter", c.cfg.Service,
			"kind", string(rec.Kind),
			"requestId", reqctx.RequestID(ctx),
			"error", rec.Message,
		}
		// The raw cause goes to the sink only; the envelope keeps the
		// generic message.
		if cause := rec.Cause(); cause != nil {
			attrs = append(attrs, "cause", cause.Error())
		}
		slog.Warn("upstream call failed", attrs...)
		return nil, rec
	}
	return result, nil
}

// attempt performs a single HTTP exchange. The timeout applies to this
// attempt alone, not across the whole retry budget.
func (c *Client) attempt(ctx context.Context, req Request) (*Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	target := strings.TrimSuffix(c.cfg.BaseURL, "/") + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var bodyReader io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, apperr.New(apperr.InternalError, "failed to encode upstream request", nil)
		}
		bodyReader = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, target, bodyReader)
	if err != nil {
		return nil, apperr.New(apperr.InternalError, "failed to build upstream request", nil)
	}
	httpReq.Header.Set("Accept", "application/json")
	if bodyReader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if id := reqctx.RequestID(ctx); id != "" {
		httpReq.Header.Set(requestid.Header, id)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.withTimeoutDetail(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		// The per-attempt deadline can also fire mid-body.
		return nil, c.withTimeoutDetail(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &apperr.HTTPError{Status: resp.StatusCode, URL: target, Body: raw}
	}

	data, err := c.decode(raw)
	if err != nil {
		return nil, err
	}
	return &Result{StatusCode: resp.StatusCode, Data: data}, nil
}

// withTimeoutDetail stamps the configured per-attempt timeout onto records
// classified as ExternalServiceTimeout; other errors pass through unchanged
// for the retry engine to classify.
func (c *Client) withTimeoutDetail(err error) error {
	if rec := apperr.Classify(err); rec.Kind == apperr.ExternalServiceTimeout {
		return rec.WithDetail("timeout", c.cfg.Timeout.Milliseconds())
	}
	return err
}

// decode parses and structurally validates an upstream payload. Any shape
// mismatch becomes a ShapeError so classification lands on DataFormatError
// instead of a raw parse failure escaping the adapter.
func (c *Client) decode(raw []byte) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, &apperr.ShapeError{Reason: "response body is not a JSON object", Cause: err}
	}

	if c.schema != nil {
		result, err := c.schema.Validate(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return nil, &apperr.ShapeError{Reason: "response body could not be validated", Cause: err}
		}
		if !result.Valid() {
			reasons := make([]string, 0, len(result.Errors()))
			for _, desc := range result.Errors() {
				reasons = append(reasons, desc.String())
			}
			return nil, &apperr.ShapeError{Reason: strings.Join(reasons, "; ")}
		}
	}
	return data, nil
}
