// Package middleware enforces per-caller request budgets on the authenticated
// API. Counters live in a BucketStore; when the primary store keeps failing,
// a circuit breaker switches checks to an in-memory fallback.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mywill/internal/ratelimit/metrics"
	"mywill/internal/ratelimit/models"
	"mywill/pkg/platform/circuit"
	"mywill/pkg/platform/httputil"
	"mywill/pkg/requestcontext"
)

// BucketStore counts requests per key in a sliding window.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

// HeaderStatus is set to "degraded" while the fallback store answers.
const HeaderStatus = "X-RateLimit-Status"

type Middleware struct {
	primary  BucketStore
	fallback BucketStore
	breaker  *circuit.Breaker
	limits   models.Limits
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithDisabled turns every check into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// WithFallback answers checks from fallback while breaker is open.
func WithFallback(fallback BucketStore, breaker *circuit.Breaker) Option {
	return func(m *Middleware) {
		m.fallback = fallback
		m.breaker = breaker
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(mw *Middleware) {
		mw.metrics = m
	}
}

func New(primary BucketStore, limits models.Limits, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		primary: primary,
		limits:  limits,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// ClassifyRequest maps a request to its endpoint class. Adding a trusted
// person may send mail, so it has its own budget.
func ClassifyRequest(r *http.Request) models.EndpointClass {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return models.ClassRead
	}
	if r.Method == http.MethodPost && strings.TrimSuffix(r.URL.Path, "/") == "/trusted-people" {
		return models.ClassInvite
	}
	return models.ClassWrite
}

// RateLimitAuthenticated limits by caller email. It must run after the auth
// middleware; requests without a caller pass through.
func (m *Middleware) RateLimitAuthenticated() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			caller := requestcontext.CallerEmail(ctx)
			class := ClassifyRequest(r)
			limit, ok := m.limits[class]
			if caller == "" || !ok {
				next.ServeHTTP(w, r)
				return
			}

			result, degraded, err := m.check(ctx, models.NewCallerKey(caller, class), limit)
			if err != nil {
				m.logger.ErrorContext(ctx, "failed to check rate limit",
					"error", err,
					"class", class,
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if degraded {
				w.Header().Set(HeaderStatus, "degraded")
			}
			if !result.Allowed {
				if m.metrics != nil {
					m.metrics.Denied.WithLabelValues(string(class)).Inc()
				}
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"caller_email", caller,
					"class", class,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeRateLimitExceeded(w, result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// check asks the primary store and falls back per the breaker. A primary
// error with no fallback fails open.
func (m *Middleware) check(ctx context.Context, key string, limit models.Limit) (*models.RateLimitResult, bool, error) {
	result, err := m.primary.Allow(ctx, key, limit.Requests, limit.Window)
	if m.fallback == nil || m.breaker == nil {
		if err != nil && m.metrics != nil {
			m.metrics.StoreErrors.Inc()
		}
		return result, false, err
	}

	if err != nil {
		if m.metrics != nil {
			m.metrics.StoreErrors.Inc()
		}
		useFallback, change := m.breaker.RecordFailure()
		if change.Opened {
			m.logger.WarnContext(ctx, "rate limit store degraded, using in-memory fallback", "error", err)
		}
		if !useFallback {
			return nil, false, err
		}
		return m.fromFallback(ctx, key, limit)
	}

	usePrimary, change := m.breaker.RecordSuccess()
	if change.Closed {
		m.logger.InfoContext(ctx, "rate limit store recovered")
	}
	if usePrimary {
		return result, false, nil
	}
	return m.fromFallback(ctx, key, limit)
}

func (m *Middleware) fromFallback(ctx context.Context, key string, limit models.Limit) (*models.RateLimitResult, bool, error) {
	if m.metrics != nil {
		m.metrics.FallbackChecks.Inc()
	}
	result, err := m.fallback.Allow(ctx, key, limit.Requests, limit.Window)
	return result, true, err
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:            "rate_limit_exceeded",
		ErrorDescription: "too many requests, try again later",
		RetryAfter:       result.RetryAfter,
	})
}
