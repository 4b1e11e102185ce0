package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccessors(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, CallerEmail(ctx))
	assert.Empty(t, RequestID(ctx))

	ctx = WithCallerEmail(ctx, "owner@example.com")
	ctx = WithRequestID(ctx, "req-1")
	assert.Equal(t, "owner@example.com", CallerEmail(ctx))
	assert.Equal(t, "req-1", RequestID(ctx))
}

func TestNow(t *testing.T) {
	fixed := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, fixed, Now(WithTime(context.Background(), fixed)))

	before := time.Now()
	got := Now(context.Background())
	assert.False(t, got.Before(before))
}
