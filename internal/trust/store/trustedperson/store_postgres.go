package trustedperson

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"mywill/internal/trust/models"
	"mywill/pkg/platform/sentinel"
	txcontext "mywill/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists trusted-person edges in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const personColumns = `id, owner_email, email, confirmed_death, created_at`

func (s *PostgresStore) Create(ctx context.Context, person *models.TrustedPerson) error {
	query := `
		INSERT INTO trusted_people (id, owner_email, email, confirmed_death, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		person.ID,
		person.OwnerEmail,
		person.Email,
		person.ConfirmedDeath,
		person.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("trusted person %s for %s: %w", person.Email, person.OwnerEmail, sentinel.ErrConflict)
		}
		return fmt.Errorf("create trusted person: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.TrustedPerson, error) {
	query := `SELECT ` + personColumns + ` FROM trusted_people WHERE id = $1`
	p, err := scanPerson(txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("trusted person %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find trusted person: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) FindByOwnerAndEmail(ctx context.Context, ownerEmail, email string) (*models.TrustedPerson, error) {
	query := `SELECT ` + personColumns + ` FROM trusted_people WHERE owner_email = $1 AND email = $2`
	p, err := scanPerson(txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, ownerEmail, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("trusted person %s for %s: %w", email, ownerEmail, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find trusted person: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerEmail string) ([]*models.TrustedPerson, error) {
	query := `
		SELECT ` + personColumns + `
		FROM trusted_people
		WHERE owner_email = $1
		ORDER BY created_at, email
	`
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, query, ownerEmail)
	if err != nil {
		return nil, fmt.Errorf("list trusted people: %w", err)
	}
	defer rows.Close()

	var people []*models.TrustedPerson
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trusted person: %w", err)
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trusted people: %w", err)
	}
	return people, nil
}

func (s *PostgresStore) ListOwnersTrusting(ctx context.Context, email string) ([]string, error) {
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx,
		`SELECT owner_email FROM trusted_people WHERE email = $1 ORDER BY owner_email`, email)
	if err != nil {
		return nil, fmt.Errorf("list owners trusting: %w", err)
	}
	defer rows.Close()

	owners := []string{}
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("scan owner email: %w", err)
		}
		owners = append(owners, owner)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate owners trusting: %w", err)
	}
	return owners, nil
}

func (s *PostgresStore) Update(ctx context.Context, person *models.TrustedPerson) error {
	result, err := txcontext.Executor(ctx, s.db).ExecContext(ctx,
		`UPDATE trusted_people SET confirmed_death = $2 WHERE id = $1`,
		person.ID, person.ConfirmedDeath)
	if err != nil {
		return fmt.Errorf("update trusted person: %w", err)
	}
	return requireRow(result, person.ID)
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := txcontext.Executor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM trusted_people WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete trusted person: %w", err)
	}
	return requireRow(result, id)
}

func (s *PostgresStore) DeleteByOwner(ctx context.Context, ownerEmail string) error {
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM trusted_people WHERE owner_email = $1`, ownerEmail)
	if err != nil {
		return fmt.Errorf("delete trusted people by owner: %w", err)
	}
	return nil
}

func (s *PostgresStore) ResetConfirmations(ctx context.Context, ownerEmail string) error {
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx,
		`UPDATE trusted_people SET confirmed_death = FALSE WHERE owner_email = $1`, ownerEmail)
	if err != nil {
		return fmt.Errorf("reset confirmations: %w", err)
	}
	return nil
}

func requireRow(result sql.Result, id uuid.UUID) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("trusted person %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (*models.TrustedPerson, error) {
	var p models.TrustedPerson
	if err := row.Scan(&p.ID, &p.OwnerEmail, &p.Email, &p.ConfirmedDeath, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
