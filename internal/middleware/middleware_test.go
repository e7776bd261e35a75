package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/ops-backend/internal/apperr"
	"github.com/yourorg/ops-backend/internal/envelope"
	"github.com/yourorg/ops-backend/internal/reqctx"
	"github.com/yourorg/ops-backend/internal/requestid"
	"github.com/yourorg/ops-backend/internal/upstream"
	upstreammock "github.com/yourorg/ops-backend/internal/upstream/mock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testEngine() *gin.Engine {
	r := gin.New()
	r.Use(Timing(slog.New(slog.NewJSONHandler(io.Discard, nil))), RequestContext())
	return r
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope.Envelope {
	t.Helper()
	var env envelope.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestRequestContext_BindsSnapshotAndEchoesHeader(t *testing.T) {
	r := testEngine()
	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = reqctx.RequestID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assert.NotEmpty(t, seen)
	assert.True(t, requestid.Validate(seen))
	assert.Equal(t, seen, w.Header().Get(requestid.Header))
}

func TestRequestContext_ReusesValidInboundID(t *testing.T) {
	r := testEngine()
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	id := requestid.Generate()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(requestid.Header, id)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, id, w.Header().Get(requestid.Header))
}

func TestRequireOperator_RejectsBeforeAdapterRuns(t *testing.T) {
	adapter := upstreammock.New("notification")

	r := testEngine()
	r.GET("/api/notifications/:id", RequireOperator(), func(c *gin.Context) {
		res, err := adapter.Call(c.Request.Context(), upstream.Request{Method: "GET", Path: c.Param("id")})
		if err != nil {
			Respond(c, 0, nil, err)
			return
		}
		Respond(c, http.StatusOK, res.Data, nil)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/notifications/1", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	env := decodeEnvelope(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, "UnauthorizedAccess", env.Error.Code)
	assert.Equal(t, 0, adapter.Calls(), "the adapter must never run without an operator")
}

func TestRequireOperator_BlankValueRejected(t *testing.T) {
	r := testEngine()
	r.GET("/", RequireOperator(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(reqctx.HeaderOperator, "   ")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireOperator_AllowsRequestThrough(t *testing.T) {
	r := testEngine()
	r.GET("/", RequireOperator(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(reqctx.HeaderOperator, "ops-alice")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRespond_SuccessEnvelope(t *testing.T) {
	r := testEngine()
	r.GET("/", func(c *gin.Context) {
		Respond(c, http.StatusOK, map[string]any{"id": 7}, nil)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.True(t, env.Success)
	assert.Equal(t, w.Header().Get(requestid.Header), env.RequestID)
}

func TestRespond_ClassifiesRawErrors(t *testing.T) {
	r := testEngine()
	r.GET("/", func(c *gin.Context) {
		Respond(c, 0, nil, errors.New("unexpected failure"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "InternalError", env.Error.Code)
}

// A request that fails deep inside a retried adapter call must still carry
// the identifier captured at request start.
func TestEnvelopeIdentifierConsistency_DeepFailure(t *testing.T) {
	adapter := upstreammock.New("notification")
	adapter.CallFunc = func(ctx context.Context, _ upstream.Request) (*upstream.Result, error) {
		// The failure surfaces three frames down, after retries; the record
		// carries no identifier of its own.
		return nil, apperr.New(apperr.ExternalServiceUnavailable, "upstream unreachable", nil).
			WithDetail("retryCount", 3)
	}

	r := testEngine()
	r.GET("/api/notifications/:id", func(c *gin.Context) {
		_, err := adapter.Call(c.Request.Context(), upstream.Request{Method: "GET", Path: c.Param("id")})
		Respond(c, 0, nil, err)
	})

	id := requestid.Generate()
	req := httptest.NewRequest("GET", "/api/notifications/1", nil)
	req.Header.Set(requestid.Header, id)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, id, env.RequestID, "envelope identifier must equal the one captured at request start")
	assert.Equal(t, "ExternalServiceUnavailable", env.Error.Code)
}
