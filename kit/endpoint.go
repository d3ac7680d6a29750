// Package kit holds the transport-neutral pieces shared by the HTTP handlers,
// the MCP tools and the CLI: context keys, the Endpoint signature and its
// middleware chain.
package kit

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Endpoint is one operation, decoupled from its transport.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares so the first one is the outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// Coder is implemented by errors that carry a stable machine-readable code.
type Coder interface {
	Code() string
}

// Logging logs every call with its duration, transport and outcome.
func Logging(logger *slog.Logger, name string) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			attrs := []any{
				"endpoint", name,
				"transport", GetTransport(ctx),
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if id := GetRequestID(ctx); id != "" {
				attrs = append(attrs, "request_id", id)
			}
			if op := GetOperation(ctx); op != "" {
				attrs = append(attrs, "operation", op)
			}
			if err != nil {
				var c Coder
				if errors.As(err, &c) {
					attrs = append(attrs, "code", c.Code())
				}
				logger.WarnContext(ctx, "endpoint failed", append(attrs, "error", err)...)
				return resp, err
			}
			logger.InfoContext(ctx, "endpoint done", attrs...)
			return resp, nil
		}
	}
}
