package store

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================
// Migration Tests
// ============================================

func TestRunMigrations_InFileOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS users")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE orders DROP CONSTRAINT IF EXISTS orders_user_id_fkey")).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, RunMigrations(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrations_OrdersNotBoundToLocalUsers(t *testing.T) {
	body, err := migrationsFS.ReadFile("migrations/001_init.sql")
	require.NoError(t, err)

	ddl := string(body)
	start := strings.Index(ddl, "CREATE TABLE IF NOT EXISTS orders")
	require.GreaterOrEqual(t, start, 0)
	end := strings.Index(ddl[start:], ");")
	require.Greater(t, end, 0)

	assert.NotContains(t, ddl[start:start+end], "REFERENCES users")
}
