package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLiteAppliesMigrations(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db")

	db, err := Open(ctx, "sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(1) FROM schema_migrations`).Scan(&count))
	assert.Equal(t, 2, count)

	_, err = db.ExecContext(ctx, `INSERT INTO audit_events (id, action, created_at) VALUES ('a', 'x', 1)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO audit_events (id, action, created_at) VALUES ('a', 'x', 1)`)
	assert.True(t, IsUniqueViolation(err))

	// reopening is idempotent
	require.NoError(t, db.Close())
	db2, err := Open(ctx, "sqlite", dsn)
	require.NoError(t, err)
	defer db2.Close()
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "dsn")
	assert.Error(t, err)
	_, err = Open(context.Background(), "sqlite", " ")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &DB{Dialect: Postgres}
	lite := &DB{Dialect: SQLite}
	q := `UPDATE tasks SET status = ? WHERE id = ? AND status = ?`

	assert.Equal(t, `UPDATE tasks SET status = $1 WHERE id = $2 AND status = $3`, pg.Rebind(q))
	assert.Equal(t, q, lite.Rebind(q))
}

func TestIsUniqueViolationPlainError(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}
