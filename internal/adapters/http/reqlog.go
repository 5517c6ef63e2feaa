package http

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/ridepass/internal/pkg/telemetry"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	loggerKey    ctxKey = "logger"
)

// RequestIDLogMiddleware stores a request-scoped *slog.Logger carrying the
// Fiber request ID in the user context, and opens a server span around the
// request so session and feed spans nest under it.
func RequestIDLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		ridStr, _ := c.Locals("requestid").(string)
		if ridStr != "" {
			ctx = context.WithValue(ctx, requestIDKey, ridStr)
			ctx = context.WithValue(ctx, loggerKey, slog.Default().With("request_id", ridStr))
		}

		ctx, span := telemetry.Tracer().Start(ctx, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("http.request_id", ridStr)),
		)
		defer span.End()
		c.SetUserContext(ctx)

		err := c.Next()
		span.SetAttributes(attribute.Int("http.status_code", c.Response().StatusCode()))
		return err
	}
}

// LoggerFromCtx extracts the per-request slog.Logger from a context.
// Falls back to the default logger if none is set.
func LoggerFromCtx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
