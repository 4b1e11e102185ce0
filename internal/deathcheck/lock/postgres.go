package lock

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// Postgres implements Provider on the scheduler_locks table. A row is taken
// over only once its lock_until has passed, so a crashed holder blocks others
// for at most atMost.
type Postgres struct {
	db       *sql.DB
	identity string
	now      func() time.Time
}

func NewPostgres(db *sql.DB) *Postgres {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return &Postgres{db: db, identity: host, now: time.Now}
}

func (p *Postgres) Acquire(ctx context.Context, name string, atMost, atLeast time.Duration) (Lease, bool, error) {
	if err := validate(atMost, atLeast); err != nil {
		return nil, false, err
	}
	now := p.now().UTC()
	lockedBy := p.identity + "/" + uuid.NewString()

	query := `
		INSERT INTO scheduler_locks (name, lock_until, locked_at, locked_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			lock_until = EXCLUDED.lock_until,
			locked_at = EXCLUDED.locked_at,
			locked_by = EXCLUDED.locked_by
		WHERE scheduler_locks.lock_until <= EXCLUDED.locked_at
	`
	result, err := p.db.ExecContext(ctx, query, name, now.Add(atMost), now, lockedBy)
	if err != nil {
		return nil, false, fmt.Errorf("acquire postgres lock %s: %w", name, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("acquire postgres lock rows affected: %w", err)
	}
	if rows == 0 {
		return nil, false, nil
	}
	return &postgresLease{p: p, name: name, lockedBy: lockedBy, lockedAt: now, atLeast: atLeast}, true, nil
}

type postgresLease struct {
	p        *Postgres
	name     string
	lockedBy string
	lockedAt time.Time
	atLeast  time.Duration
}

func (l *postgresLease) Release(ctx context.Context) error {
	until := releaseUntil(l.lockedAt, l.p.now().UTC(), l.atLeast)
	_, err := l.p.db.ExecContext(ctx,
		`UPDATE scheduler_locks SET lock_until = $3 WHERE name = $1 AND locked_by = $2`,
		l.name, l.lockedBy, until)
	if err != nil {
		return fmt.Errorf("release postgres lock %s: %w", l.name, err)
	}
	return nil
}
