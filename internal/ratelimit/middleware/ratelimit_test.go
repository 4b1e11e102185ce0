package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"mywill/internal/ratelimit/metrics"
	"mywill/internal/ratelimit/models"
	"mywill/internal/ratelimit/store/bucket"
	"mywill/pkg/platform/circuit"
	pkgtestutil "mywill/pkg/testutil"
)

type failingStore struct {
	calls int
	err   error
}

func (f *failingStore) Allow(context.Context, string, int, time.Duration) (*models.RateLimitResult, error) {
	f.calls++
	return nil, f.err
}

type MiddlewareSuite struct {
	suite.Suite
	logger  *slog.Logger
	metrics *metrics.Metrics
	next    http.Handler
}

func TestMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(MiddlewareSuite))
}

func (s *MiddlewareSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	s.metrics = metrics.NewWithRegistry(prometheus.NewRegistry())
	s.next = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func (s *MiddlewareSuite) limits() models.Limits {
	return models.Limits{
		models.ClassRead:   {Requests: 5, Window: time.Minute},
		models.ClassWrite:  {Requests: 5, Window: time.Minute},
		models.ClassInvite: {Requests: 2, Window: time.Hour},
	}
}

func (s *MiddlewareSuite) invite(h http.Handler, caller string) int {
	req := pkgtestutil.NewJSONRequest(s.T(), http.MethodPost, "/trusted-people", map[string]string{"email": "t1@example.com"})
	return pkgtestutil.DoRequest(h, pkgtestutil.WithCaller(req, caller)).Code
}

func (s *MiddlewareSuite) TestLimitsInvitesPerCaller() {
	mw := New(bucket.New(), s.limits(), s.logger, WithMetrics(s.metrics))
	h := mw.RateLimitAuthenticated()(s.next)

	s.Equal(http.StatusNoContent, s.invite(h, "owner@example.com"))
	s.Equal(http.StatusNoContent, s.invite(h, "owner@example.com"))

	req := pkgtestutil.WithCaller(
		pkgtestutil.NewJSONRequest(s.T(), http.MethodPost, "/trusted-people/", map[string]string{"email": "t3@example.com"}),
		"owner@example.com")
	rr := pkgtestutil.DoRequest(h, req)
	pkgtestutil.AssertStatus(s.T(), rr, http.StatusTooManyRequests)
	body := pkgtestutil.UnmarshalResponse[models.RateLimitExceededResponse](s.T(), rr)
	s.Equal("rate_limit_exceeded", body.Error)
	s.Positive(body.RetryAfter)
	s.NotEmpty(rr.Header().Get("Retry-After"))
	s.Equal("0", rr.Header().Get("X-RateLimit-Remaining"))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Denied.WithLabelValues(string(models.ClassInvite))))

	s.Equal(http.StatusNoContent, s.invite(h, "other@example.com"), "budgets are per caller")

	read := pkgtestutil.WithCaller(pkgtestutil.NewRequest(s.T(), http.MethodGet, "/trusted-people"), "owner@example.com")
	s.Equal(http.StatusNoContent, pkgtestutil.DoRequest(h, read).Code, "classes have separate budgets")
}

func (s *MiddlewareSuite) TestAnonymousAndDisabledPassThrough() {
	mw := New(&failingStore{err: errors.New("unreachable")}, s.limits(), s.logger)
	rr := pkgtestutil.DoRequest(mw.RateLimitAuthenticated()(s.next),
		pkgtestutil.NewRequest(s.T(), http.MethodGet, "/wills"))
	s.Equal(http.StatusNoContent, rr.Code)

	store := &failingStore{}
	disabled := New(store, s.limits(), s.logger, WithDisabled(true))
	h := disabled.RateLimitAuthenticated()(s.next)
	for range 10 {
		s.Equal(http.StatusNoContent, s.invite(h, "owner@example.com"))
	}
	s.Zero(store.calls)
}

func (s *MiddlewareSuite) TestFailsOpenWithoutFallback() {
	mw := New(&failingStore{err: errors.New("redis down")}, s.limits(), s.logger, WithMetrics(s.metrics))
	h := mw.RateLimitAuthenticated()(s.next)

	s.Equal(http.StatusNoContent, s.invite(h, "owner@example.com"))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.StoreErrors))
}

func (s *MiddlewareSuite) TestFallbackAfterBreakerOpens() {
	primary := &failingStore{err: errors.New("redis down")}
	breaker := circuit.New("ratelimit", circuit.WithFailureThreshold(1))
	mw := New(primary, s.limits(), s.logger,
		WithFallback(bucket.New(), breaker),
		WithMetrics(s.metrics),
	)
	h := mw.RateLimitAuthenticated()(s.next)

	req := pkgtestutil.WithCaller(pkgtestutil.NewRequest(s.T(), http.MethodPost, "/trusted-people"), "owner@example.com")
	rr := pkgtestutil.DoRequest(h, req)
	s.Equal(http.StatusNoContent, rr.Code)
	s.Equal("degraded", rr.Header().Get(HeaderStatus))
	s.True(breaker.IsOpen())

	s.Equal(http.StatusNoContent, s.invite(h, "owner@example.com"))
	s.Equal(http.StatusTooManyRequests, s.invite(h, "owner@example.com"), "fallback still enforces the budget")
	s.Equal(3.0, testutil.ToFloat64(s.metrics.FallbackChecks))
}

func TestClassifyRequest(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   models.EndpointClass
	}{
		{http.MethodGet, "/wills/abc", models.ClassRead},
		{http.MethodPost, "/trusted-people", models.ClassInvite},
		{http.MethodPost, "/trusted-people/", models.ClassInvite},
		{http.MethodPost, "/trusted-people/confirm/o@example.com", models.ClassWrite},
		{http.MethodDelete, "/trusted-people/abc", models.ClassWrite},
		{http.MethodPatch, "/profile", models.ClassWrite},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, tt.path, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ClassifyRequest(req))
		})
	}
}
