package circuit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outcome int

const (
	fail outcome = iota
	ok
)

func TestBreaker_Defaults(t *testing.T) {
	b := New("smtp")
	assert.Equal(t, "smtp", b.Name())
	assert.Equal(t, StateClosed, b.State())

	for range 4 {
		useFallback, _ := b.RecordFailure()
		assert.False(t, useFallback)
	}
	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback, "opens on the fifth consecutive failure")
	assert.True(t, change.Opened)

	usePrimary, _ := b.RecordSuccess()
	assert.False(t, usePrimary)
	usePrimary, change = b.RecordSuccess()
	assert.True(t, usePrimary, "closes on the second consecutive success")
	assert.True(t, change.Closed)
}

func TestBreaker_Sequences(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		successes int
		calls     []outcome
		wantState State
		wantOpens int
		wantClose int
	}{
		{
			name:      "failures below threshold stay closed",
			failures:  3,
			calls:     []outcome{fail, fail},
			wantState: StateClosed,
		},
		{
			name:      "threshold opens once",
			failures:  3,
			calls:     []outcome{fail, fail, fail, fail, fail},
			wantState: StateOpen,
			wantOpens: 1,
		},
		{
			name:      "a success resets the failure streak",
			failures:  3,
			calls:     []outcome{fail, fail, ok, fail, fail},
			wantState: StateClosed,
		},
		{
			name:      "recovery needs consecutive successes",
			failures:  1,
			successes: 3,
			calls:     []outcome{fail, ok, ok, fail, ok, ok},
			wantState: StateOpen,
			wantOpens: 1,
		},
		{
			name:      "open then recover then open again",
			failures:  1,
			successes: 2,
			calls:     []outcome{fail, ok, ok, ok, fail},
			wantState: StateOpen,
			wantOpens: 2,
			wantClose: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("ratelimit", WithFailureThreshold(tt.failures), WithSuccessThreshold(tt.successes))
			var opens, closes int
			for _, c := range tt.calls {
				var change StateChange
				if c == fail {
					_, change = b.RecordFailure()
				} else {
					_, change = b.RecordSuccess()
				}
				if change.Opened {
					opens++
				}
				if change.Closed {
					closes++
				}
			}
			assert.Equal(t, tt.wantState, b.State())
			assert.Equal(t, tt.wantOpens, opens)
			assert.Equal(t, tt.wantClose, closes)
		})
	}
}

func TestBreaker_OpenKeepsAnsweringFallback(t *testing.T) {
	b := New("ratelimit", WithFailureThreshold(1))
	b.RecordFailure()

	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.Equal(t, StateChange{}, change)

	b.Reset()
	assert.False(t, b.IsOpen())
	useFallback, _ = b.RecordFailure()
	assert.True(t, useFallback, "reset clears counters, so the next failure reopens")
}

func TestBreaker_IgnoresNonPositiveThresholds(t *testing.T) {
	b := New("smtp", WithFailureThreshold(0), WithSuccessThreshold(-1))
	for range 4 {
		b.RecordFailure()
	}
	assert.False(t, b.IsOpen())
}

func TestBreaker_ConcurrentFailuresOpenOnce(t *testing.T) {
	b := New("ratelimit", WithFailureThreshold(10))

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		opens int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, change := b.RecordFailure(); change.Opened {
				mu.Lock()
				opens++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.True(t, b.IsOpen())
	assert.Equal(t, 1, opens)
}
