package email

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"mywill/pkg/email/mocks"
	"mywill/pkg/platform/circuit"
)

func TestBreakerMailer(t *testing.T) {
	ctx := context.Background()
	relayDown := errors.New("connection refused")

	t.Run("primary success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		primary := mocks.NewMockMailer(ctrl)
		fallback := mocks.NewMockMailer(ctrl)
		primary.EXPECT().Send(ctx, "t1@example.com", "s", "b").Return(nil)

		m := NewBreakerMailer(primary, fallback, circuit.New("smtp"), nil)
		assert.NoError(t, m.Send(ctx, "t1@example.com", "s", "b"))
	})

	t.Run("failures below threshold surface the error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		primary := mocks.NewMockMailer(ctrl)
		fallback := mocks.NewMockMailer(ctrl)
		primary.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(relayDown)

		m := NewBreakerMailer(primary, fallback, circuit.New("smtp", circuit.WithFailureThreshold(2)), nil)
		assert.ErrorIs(t, m.Send(ctx, "t1@example.com", "s", "b"), relayDown)
	})

	t.Run("open circuit routes to fallback", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		primary := mocks.NewMockMailer(ctrl)
		fallback := mocks.NewMockMailer(ctrl)
		primary.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(relayDown).Times(2)
		fallback.EXPECT().Send(ctx, "t2@example.com", "s", "b").Return(nil)

		breaker := circuit.New("smtp", circuit.WithFailureThreshold(2))
		m := NewBreakerMailer(primary, fallback, breaker, nil)
		assert.Error(t, m.Send(ctx, "t1@example.com", "s", "b"))
		assert.NoError(t, m.Send(ctx, "t2@example.com", "s", "b"))
		assert.True(t, breaker.IsOpen())
	})
}
