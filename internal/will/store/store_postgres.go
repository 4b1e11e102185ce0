package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"mywill/internal/will/models"
	"mywill/pkg/platform/sentinel"
	txcontext "mywill/pkg/platform/tx"
)

// PostgresStore persists wills and their allow-lists in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectWills = `
	SELECT w.id, w.owner_email, w.title, w.content, w.created_at, w.updated_at,
	       COALESCE(array_agg(a.email ORDER BY a.email) FILTER (WHERE a.email IS NOT NULL), '{}') AS allowed
	FROM wills w
	LEFT JOIN will_access_emails a ON a.will_id = w.id
`

// Create inserts the will and its allow-list in one transaction.
func (s *PostgresStore) Create(ctx context.Context, will *models.Will) error {
	return txcontext.Run(ctx, s.db, nil, func(ctx context.Context) error {
		exec := txcontext.Executor(ctx, s.db)
		_, err := exec.ExecContext(ctx, `
			INSERT INTO wills (id, owner_email, title, content, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, will.ID, will.OwnerEmail, will.Title, will.Content, will.CreatedAt, will.UpdatedAt)
		if err != nil {
			return fmt.Errorf("create will: %w", err)
		}
		if len(will.AllowedEmails) == 0 {
			return nil
		}
		_, err = exec.ExecContext(ctx, `
			INSERT INTO will_access_emails (will_id, email)
			SELECT $1, unnest($2::text[])
			ON CONFLICT DO NOTHING
		`, will.ID, pq.Array(will.AllowedEmails))
		if err != nil {
			return fmt.Errorf("create will access emails: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Will, error) {
	query := selectWills + ` WHERE w.id = $1 GROUP BY w.id`
	will, err := scanWill(txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("will %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find will: %w", err)
	}
	return will, nil
}

func (s *PostgresStore) Update(ctx context.Context, will *models.Will) error {
	result, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE wills SET title = $2, content = $3, updated_at = $4 WHERE id = $1
	`, will.ID, will.Title, will.Content, will.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update will: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update will rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("will %s: %w", will.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) AddAllowedEmail(ctx context.Context, id uuid.UUID, email string) error {
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO will_access_emails (will_id, email)
		SELECT id, $2 FROM wills WHERE id = $1
		ON CONFLICT DO NOTHING
	`, id, email)
	if err != nil {
		return fmt.Errorf("add allowed email: %w", err)
	}
	return nil
}

// DeleteByOwner removes the owner's wills; allow-list rows cascade.
func (s *PostgresStore) DeleteByOwner(ctx context.Context, ownerEmail string) error {
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM wills WHERE owner_email = $1`, ownerEmail)
	if err != nil {
		return fmt.Errorf("delete wills by owner: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerEmail string) ([]*models.Will, error) {
	query := selectWills + ` WHERE w.owner_email = $1 GROUP BY w.id ORDER BY w.created_at, w.id`
	return s.query(ctx, query, ownerEmail)
}

func (s *PostgresStore) ListSharedWith(ctx context.Context, email string) ([]*models.Will, error) {
	query := selectWills + `
		WHERE w.id IN (SELECT will_id FROM will_access_emails WHERE email = $1)
		GROUP BY w.id
		ORDER BY w.created_at, w.id
	`
	return s.query(ctx, query, email)
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*models.Will, error) {
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list wills: %w", err)
	}
	defer rows.Close()

	wills := []*models.Will{}
	for rows.Next() {
		will, err := scanWill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan will: %w", err)
		}
		wills = append(wills, will)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wills: %w", err)
	}
	return wills, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWill(row rowScanner) (*models.Will, error) {
	var (
		w       models.Will
		allowed pq.StringArray
	)
	if err := row.Scan(&w.ID, &w.OwnerEmail, &w.Title, &w.Content, &w.CreatedAt, &w.UpdatedAt, &allowed); err != nil {
		return nil, err
	}
	w.AllowedEmails = []string(allowed)
	if w.AllowedEmails == nil {
		w.AllowedEmails = []string{}
	}
	return &w, nil
}
