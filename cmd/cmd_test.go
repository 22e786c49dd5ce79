package cmd

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmehdipour/customers-api/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return sqlx.NewDb(mockDB, "mysql"), mock
}

func TestRunMigrations(t *testing.T) {
	t.Run("create only", func(t *testing.T) {
		dbx, mock := newMockDB(t)
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS customers`).WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, runMigrations(context.Background(), dbx, false))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("fresh drops first", func(t *testing.T) {
		dbx, mock := newMockDB(t)
		mock.ExpectExec(regexp.QuoteMeta("DROP TABLE IF EXISTS customers")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS customers`).WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, runMigrations(context.Background(), dbx, true))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exec failure", func(t *testing.T) {
		dbx, mock := newMockDB(t)
		mock.ExpectExec(`CREATE TABLE`).WillReturnError(assert.AnError)

		err := runMigrations(context.Background(), dbx, false)
		assert.ErrorIs(t, err, assert.AnError)
		assert.Contains(t, err.Error(), "001_init")
	})
}

func TestSeedCustomers(t *testing.T) {
	dbx, mock := newMockDB(t)

	mock.ExpectBegin()
	for range demoCustomers {
		mock.ExpectExec(`ON DUPLICATE KEY UPDATE`).WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	n, err := seedCustomers(context.Background(), dbx, repository.NewCustomersRepository(dbx, nil))
	require.NoError(t, err)
	assert.Equal(t, len(demoCustomers), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedCustomers_RollsBackOnFailure(t *testing.T) {
	dbx, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`ON DUPLICATE KEY UPDATE`).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := seedCustomers(context.Background(), dbx, repository.NewCustomersRepository(dbx, nil))
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRootCommandWiring(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["migrate"])
	assert.True(t, names["seed"])

	f := migrateCmd.Flags().Lookup("fresh")
	require.NotNil(t, f)
	assert.Equal(t, "false", f.DefValue)
}
