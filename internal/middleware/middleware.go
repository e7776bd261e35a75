// Package middleware wires the request-context and envelope machinery into
// the gin request pipeline.
package middleware

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourorg/ops-backend/internal/apperr"
	"github.com/yourorg/ops-backend/internal/envelope"
	"github.com/yourorg/ops-backend/internal/reqctx"
	"github.com/yourorg/ops-backend/internal/requestid"
)

// RequestContext creates the immutable metadata snapshot for the inbound
// request, binds it to the request's context chain, and echoes the request
// identifier on the response header. Must run before any handler that reads
// the snapshot.
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		rc := reqctx.FromRequest(c.Request)
		c.Writer.Header().Set(requestid.Header, rc.RequestID)
		c.Request = c.Request.WithContext(reqctx.With(c.Request.Context(), rc))
		c.Next()
	}
}

// RequireOperator rejects business-route requests without a ny-operator
// header before any adapter call is attempted.
func RequireOperator() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.TrimSpace(c.GetHeader(reqctx.HeaderOperator)) == "" {
			rec := apperr.New(apperr.UnauthorizedAccess, "ny-operator header is required", nil)
			c.AbortWithStatusJSON(rec.HTTPStatus, envelope.Error(c.Request.Context(), rec))
			return
		}
		c.Next()
	}
}

// Timing wraps the handler invocation, measures its duration, and emits one
// structured log line per request.
func Timing(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"durationMs", time.Since(start).Milliseconds(),
		}
		if rc, ok := reqctx.From(c.Request.Context()); ok {
			attrs = append(attrs, "requestId", rc.RequestID)
			if rc.Operator != "" {
				attrs = append(attrs, "operator", rc.Operator)
			}
		}
		logger.Info("request completed", attrs...)
	}
}

// Respond translates a handler outcome into the wire envelope. This is the
// single point where errors become responses; handlers never build status
// codes or error bodies themselves.
func Respond(c *gin.Context, status int, data any, err error) {
	ctx := c.Request.Context()
	if err != nil {
		rec := apperr.Classify(err)
		c.JSON(rec.HTTPStatus, envelope.Error(ctx, rec))
		return
	}
	c.JSON(status, envelope.Success(ctx, data))
}
