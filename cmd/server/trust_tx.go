package main

import (
	"context"
	"database/sql"
	"time"

	trustservice "mywill/internal/trust/service"
	ownerstore "mywill/internal/trust/store/owner"
	dErrors "mywill/pkg/domain-errors"
	txcontext "mywill/pkg/platform/tx"
)

const defaultTrustTxTimeout = 5 * time.Second

// trustPostgresTx serializes owner-scoped mutations across instances by
// row-locking the owner inside a database transaction.
type trustPostgresTx struct {
	db      *sql.DB
	owners  *ownerstore.PostgresStore
	stores  trustservice.Stores
	timeout time.Duration
}

func newTrustPostgresTx(db *sql.DB, owners *ownerstore.PostgresStore, people trustservice.TrustedPersonStore) *trustPostgresTx {
	return &trustPostgresTx{
		db:     db,
		owners: owners,
		stores: trustservice.Stores{Owners: owners, TrustedPeople: people},
	}
}

func (t *trustPostgresTx) RunInTx(ctx context.Context, ownerEmail string, fn func(ctx context.Context, stores trustservice.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTrustTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return txcontext.Run(ctx, t.db, nil, func(ctx context.Context) error {
		if err := t.owners.LockForUpdate(ctx, ownerEmail); err != nil {
			return err
		}
		return fn(ctx, t.stores)
	})
}
