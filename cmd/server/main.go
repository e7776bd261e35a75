package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/yourorg/ops-backend/internal/middleware"
	"github.com/yourorg/ops-backend/internal/policy"
	"github.com/yourorg/ops-backend/internal/upstream"
	"github.com/yourorg/ops-backend/internal/upstream/notification"
)

// notificationLookup is the slice of the notification adapter the routes
// need; tests substitute their own implementation.
type notificationLookup interface {
	Lookup(ctx context.Context, id string) (*upstream.Result, error)
}

func getNotificationHandler(notifications notificationLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := notifications.Lookup(c.Request.Context(), c.Param("id"))
		if err != nil {
			middleware.Respond(c, 0, nil, err)
			return
		}
		middleware.Respond(c, http.StatusOK, res.Data, nil)
	}
}

func setupRouter(logger *slog.Logger, notifications notificationLookup) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		otelgin.Middleware("ops-backend"),
		middleware.Timing(logger),
		middleware.RequestContext(),
	)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", middleware.RequireOperator())
	api.GET("/notifications/:id", getNotificationHandler(notifications))

	return r
}

// initTracing installs a stdout span exporter. Used in development; the
// returned shutdown flushes pending spans.
func initTracing() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if enabled, _ := strconv.ParseBool(os.Getenv("TRACE_STDOUT")); enabled {
		shutdown, err := initTracing()
		if err != nil {
			log.Fatalf("failed to initialize tracing: %v", err)
		}
		defer func() {
			_ = shutdown(context.Background())
		}()
	}

	enforcer, err := policy.NewEnforcer(policy.DefaultRules())
	if err != nil {
		log.Fatalf("failed to build policy enforcer: %v", err)
	}

	notifications, err := notification.New(upstream.WithPolicyEnforcer(enforcer))
	if err != nil {
		log.Fatalf("failed to build notification adapter: %v", err)
	}
	logger.Info("notification adapter ready", "adapter", notifications.Name())

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}

	router := setupRouter(logger, notifications)
	logger.Info("starting server", "addr", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}
