package owner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"mywill/internal/trust/models"
	"mywill/pkg/platform/sentinel"
	txcontext "mywill/pkg/platform/tx"
)

// PostgresStore persists owners in PostgreSQL. Queries join the transaction
// carried in ctx when there is one.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const ownerColumns = `email, is_dead, death_confirmed_at, death_timeout_seconds, created_at`

func (s *PostgresStore) Create(ctx context.Context, owner *models.Owner) error {
	query := `
		INSERT INTO owners (email, is_dead, death_confirmed_at, death_timeout_seconds, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO NOTHING
	`
	result, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		owner.Email,
		owner.IsDead,
		owner.DeathConfirmedAt,
		owner.DeathTimeoutSeconds,
		owner.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create owner: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("create owner rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("owner %s: %w", owner.Email, sentinel.ErrConflict)
	}
	return nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Owner, error) {
	query := `SELECT ` + ownerColumns + ` FROM owners WHERE email = $1`
	owner, err := scanOwner(txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("owner %s: %w", email, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find owner: %w", err)
	}
	return owner, nil
}

// LockForUpdate takes a row lock on the owner for the rest of the enclosing
// transaction. A missing owner is not an error.
func (s *PostgresStore) LockForUpdate(ctx context.Context, email string) error {
	if _, ok := txcontext.From(ctx); !ok {
		return errors.New("lock owner: no transaction in context")
	}
	var locked string
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT email FROM owners WHERE email = $1 FOR UPDATE`, email).Scan(&locked)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("lock owner: %w", err)
	}
	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM owners WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("owner exists: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Update(ctx context.Context, owner *models.Owner) error {
	query := `
		UPDATE owners
		SET is_dead = $2,
		    death_confirmed_at = $3,
		    death_timeout_seconds = $4
		WHERE email = $1
	`
	result, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		owner.Email,
		owner.IsDead,
		owner.DeathConfirmedAt,
		owner.DeathTimeoutSeconds,
	)
	if err != nil {
		return fmt.Errorf("update owner: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update owner rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("owner %s: %w", owner.Email, sentinel.ErrNotFound)
	}
	return nil
}

// Delete removes the owner. The schema cascades to trusted_people and wills.
func (s *PostgresStore) Delete(ctx context.Context, email string) error {
	result, err := txcontext.Executor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM owners WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("delete owner: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete owner rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("owner %s: %w", email, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListPendingDeath(ctx context.Context) ([]*models.Owner, error) {
	query := `
		SELECT ` + ownerColumns + `
		FROM owners
		WHERE death_confirmed_at IS NOT NULL AND is_dead = FALSE
		ORDER BY death_confirmed_at
	`
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list pending owners: %w", err)
	}
	defer rows.Close()

	var owners []*models.Owner
	for rows.Next() {
		owner, err := scanOwner(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending owner: %w", err)
		}
		owners = append(owners, owner)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending owners: %w", err)
	}
	return owners, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOwner(row rowScanner) (*models.Owner, error) {
	var (
		owner       models.Owner
		confirmedAt sql.NullTime
	)
	if err := row.Scan(
		&owner.Email,
		&owner.IsDead,
		&confirmedAt,
		&owner.DeathTimeoutSeconds,
		&owner.CreatedAt,
	); err != nil {
		return nil, err
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		owner.DeathConfirmedAt = &t
	}
	return &owner, nil
}
