package tx

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := sql.Open("sqlite", "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS t (id INTEGER PRIMARY KEY, v TEXT);`)
	require.NoError(t, err)
	return db
}

func countRows(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n))
	return n
}

func TestRun_CommitsOnSuccess(t *testing.T) {
	db := setupDB(t)

	err := Run(context.Background(), db, nil, func(ctx context.Context) error {
		_, err := Executor(ctx, db).ExecContext(ctx, `INSERT INTO t(v) VALUES ('ok')`)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 1, countRows(t, db))
}

func TestRun_RollbackOnFnError(t *testing.T) {
	db := setupDB(t)

	err := Run(context.Background(), db, nil, func(ctx context.Context) error {
		_, e := Executor(ctx, db).ExecContext(ctx, `INSERT INTO t(v) VALUES ('fail')`)
		require.NoError(t, e)
		return errors.New("boom")
	})
	require.Error(t, err)
	require.Equal(t, 0, countRows(t, db))
}

func TestRun_RollbackOnPanic(t *testing.T) {
	db := setupDB(t)

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic to propagate")
		}
		require.Equal(t, 0, countRows(t, db))
	}()

	_ = Run(context.Background(), db, nil, func(ctx context.Context) error {
		_, e := Executor(ctx, db).ExecContext(ctx, `INSERT INTO t(v) VALUES ('panic')`)
		require.NoError(t, e)
		panic("kaput")
	})
}

func TestRun_NestedReusesOuterTx(t *testing.T) {
	db := setupDB(t)

	err := Run(context.Background(), db, nil, func(ctx context.Context) error {
		outer, _ := From(ctx)
		return Run(ctx, db, nil, func(inner context.Context) error {
			got, ok := From(inner)
			require.True(t, ok)
			require.Same(t, outer, got)
			_, err := Executor(inner, db).ExecContext(inner, `INSERT INTO t(v) VALUES ('nested')`)
			return err
		})
	})
	require.NoError(t, err)
	require.Equal(t, 1, countRows(t, db))
}

func TestRun_BeginError(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Close())

	err := Run(context.Background(), db, nil, func(context.Context) error { return nil })
	require.Error(t, err)
}

func TestExecutor_FallsBackToDB(t *testing.T) {
	db := setupDB(t)
	require.Equal(t, DBTX(db), Executor(context.Background(), db))
}
