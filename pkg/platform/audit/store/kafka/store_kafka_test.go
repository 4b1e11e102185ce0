package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "mywill/pkg/platform/audit"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		f.records = append(f.records, r)
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func TestStore_Append(t *testing.T) {
	fake := &fakeProducer{}
	store := &Store{producer: fake, topic: "mywill.audit"}
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	err := store.Append(context.Background(), audit.Event{
		Category:   audit.CategoryCompliance,
		Timestamp:  ts,
		OwnerEmail: "owner@example.com",
		ActorEmail: "alice@example.com",
		Action:     string(audit.EventDeathConfirmed),
	})
	require.NoError(t, err)
	require.Len(t, fake.records, 1)

	rec := fake.records[0]
	assert.Equal(t, "mywill.audit", rec.Topic)
	assert.Equal(t, []byte("owner@example.com"), rec.Key)

	var got record
	require.NoError(t, json.Unmarshal(rec.Value, &got))
	assert.Equal(t, "death_confirmed", got.Action)
	assert.Equal(t, "alice@example.com", got.ActorEmail)
	assert.True(t, ts.Equal(got.Timestamp))
}

func TestStore_AppendProduceError(t *testing.T) {
	fake := &fakeProducer{err: errors.New("broker down")}
	store := &Store{producer: fake, topic: "mywill.audit"}

	err := store.Append(context.Background(), audit.Event{OwnerEmail: "owner@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestConnect_RequiresBrokers(t *testing.T) {
	_, err := Connect(nil)
	require.Error(t, err)
}
