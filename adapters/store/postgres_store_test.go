package store

import (
	"context"
	"os"
	"testing"

	"github.com/layer-3/walletauth/internal/ids"
	"github.com/stretchr/testify/require"
)

// Set WALLETAUTH_TEST_DATABASE_URL to run against a disposable database.
func newTestPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("WALLETAUTH_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("WALLETAUTH_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := ConnectPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewPostgresStore(db, ids.MustGenerator(3))
	require.NoError(t, s.EnsureSchema(ctx))
	_, err = db.ExecContext(ctx, `TRUNCATE sessions, linked_addresses, accounts, consumed_challenges`)
	require.NoError(t, err)
	return s
}

func TestPostgresStore(t *testing.T) {
	s := newTestPostgresStore(t)
	ctx := context.Background()

	t.Run("registry", func(t *testing.T) {
		testRegistry(t, s)
	})

	t.Run("sessions", func(t *testing.T) {
		n := 0
		testSessionStore(t, s, func() int64 {
			n++
			account, _, err := s.CreateAccount(ctx, []string{
				"0x4444444444444444444444444444444444444444",
				"0x5555555555555555555555555555555555555555",
			}[n-1], "eth")
			require.NoError(t, err)
			return account.ID
		})
	})

	t.Run("challenges", func(t *testing.T) {
		testChallengeLedger(t, s)
	})

	t.Run("schema is idempotent", func(t *testing.T) {
		require.NoError(t, s.EnsureSchema(ctx))
	})
}
