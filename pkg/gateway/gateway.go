package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"video-rag-be/internal/pkg/logger"
	"video-rag-be/pkg/llm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultMaxAttempts = 4
	defaultBaseDelay   = time.Second
	module             = "Gateway"
)

var ErrNoCredentials = errors.New("gateway: credential pool is empty")

// Config is the explicit configuration for a Gateway.
type Config struct {
	Credentials []string
	MaxAttempts int           // total attempts per call, defaults to 4
	BaseDelay   time.Duration // delay before retry n is BaseDelay << n
}

// Gateway wraps an Invoker with round-robin credential rotation and
// exponential backoff on rate-limit failures. Safe for concurrent use.
type Gateway struct {
	invoker     llm.Invoker
	credentials []string
	maxAttempts int
	baseDelay   time.Duration
	cursor      atomic.Uint64
	sleeper     func(time.Duration)
	logger      logger.ILogger
	tracer      trace.Tracer
}

var _ llm.Completer = (*Gateway)(nil)

type Option func(*Gateway)

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(g *Gateway) {
		g.sleeper = sleeper
	}
}

func WithLogger(l logger.ILogger) Option {
	return func(g *Gateway) {
		g.logger = l
	}
}

func New(cfg Config, invoker llm.Invoker, opts ...Option) (*Gateway, error) {
	if len(cfg.Credentials) == 0 {
		return nil, ErrNoCredentials
	}
	if invoker == nil {
		return nil, errors.New("gateway: nil invoker")
	}

	g := &Gateway{
		invoker:     invoker,
		credentials: append([]string(nil), cfg.Credentials...),
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		logger:      logger.NewNopLogger(),
		tracer:      otel.Tracer("video-rag-be/gateway"),
	}
	if g.maxAttempts <= 0 {
		g.maxAttempts = defaultMaxAttempts
	}
	if g.baseDelay <= 0 {
		g.baseDelay = defaultBaseDelay
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Size returns the number of credentials in the pool.
func (g *Gateway) Size() int {
	return len(g.credentials)
}

// next advances the shared cursor exactly once per invocation.
func (g *Gateway) next() (int, string) {
	n := g.cursor.Add(1) - 1
	idx := int(n % uint64(len(g.credentials)))
	return idx, g.credentials[idx]
}

// Call invokes the model, rotating to a fresh credential on every attempt.
// Rate-limit failures are retried after BaseDelay<<attempt; anything else
// is returned at once. After the last attempt the final error is returned.
func (g *Gateway) Call(ctx context.Context, req llm.Request) (string, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.Call", trace.WithAttributes(
		attribute.String("llm.model", req.Model),
		attribute.Int("llm.parts", len(req.Parts)),
	))
	defer span.End()

	var lastErr error
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		idx, credential := g.next()

		out, err := g.invoker.Invoke(ctx, credential, req)
		if err == nil {
			span.SetAttributes(attribute.Int("gateway.attempts", attempt+1))
			return out, nil
		}
		lastErr = err

		if !llm.IsRateLimited(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "non-retryable failure")
			return "", err
		}

		g.logger.Warn(module, "Rate limited, rotating credential", map[string]interface{}{
			"model":      req.Model,
			"attempt":    attempt + 1,
			"credential": idx,
			"pool_size":  len(g.credentials),
		})

		if attempt == g.maxAttempts-1 {
			break
		}
		if err := g.sleep(ctx, g.backoffDelay(attempt)); err != nil {
			span.RecordError(err)
			return "", err
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "rate limit persisted")
	g.logger.Error(module, "Retries exhausted", map[string]interface{}{
		"model":    req.Model,
		"attempts": g.maxAttempts,
		"error":    lastErr.Error(),
	})
	return "", fmt.Errorf("gateway: failed after %d attempts: %w", g.maxAttempts, lastErr)
}

// attempt 0 -> base, attempt 1 -> base*2, attempt 2 -> base*4, ...
func (g *Gateway) backoffDelay(attempt int) time.Duration {
	return g.baseDelay << uint(attempt)
}

func (g *Gateway) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if g.sleeper != nil {
		g.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
