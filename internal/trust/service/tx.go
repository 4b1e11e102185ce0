package service

import (
	"context"
	"sync"
	"time"

	dErrors "mywill/pkg/domain-errors"
)

// Stores groups the stores an owner-scoped transaction may touch.
type Stores struct {
	Owners        OwnerStore
	TrustedPeople TrustedPersonStore
}

// TrustStoreTx runs fn atomically with respect to every other mutation of the
// same owner. Implementations wrap a database transaction that row-locks the
// owner or, in memory, a per-owner shard lock. fn must use the ctx it is given.
type TrustStoreTx interface {
	RunInTx(ctx context.Context, ownerEmail string, fn func(ctx context.Context, stores Stores) error) error
}

// numTrustShards spreads owners across independent mutexes so unrelated
// owners rarely contend.
const numTrustShards = 128

// DefaultTxTimeout is the maximum duration of an owner transaction when the
// caller's context has no deadline.
const DefaultTxTimeout = 5 * time.Second

type shardedTrustTx struct {
	shards  [numTrustShards]sync.Mutex
	stores  Stores
	timeout time.Duration
}

// NewShardedTx returns the in-memory transaction runner.
func NewShardedTx(stores Stores) TrustStoreTx {
	return &shardedTrustTx{stores: stores, timeout: DefaultTxTimeout}
}

func (t *shardedTrustTx) RunInTx(ctx context.Context, ownerEmail string, fn func(ctx context.Context, stores Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = DefaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := &t.shards[shardFor(ownerEmail)]
	shard.Lock()
	defer shard.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx, t.stores)
}

func shardFor(ownerEmail string) uint32 {
	return hashOwner(ownerEmail) % numTrustShards
}

// hashOwner is FNV-1a over the owner email.
func hashOwner(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
