package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/internal/ids"
	"github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
  id BIGINT PRIMARY KEY,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS linked_addresses (
  id BIGINT PRIMARY KEY,
  account_id BIGINT NOT NULL REFERENCES accounts(id),
  address TEXT NOT NULL,
  network_id TEXT NOT NULL,
  can_auth BOOLEAN NOT NULL DEFAULT false,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  UNIQUE (address, network_id)
);
CREATE INDEX IF NOT EXISTS idx_linked_addresses_account ON linked_addresses(account_id);
CREATE TABLE IF NOT EXISTS sessions (
  seq BIGSERIAL,
  id TEXT PRIMARY KEY,
  account_id BIGINT NOT NULL REFERENCES accounts(id),
  address TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  expires_at TIMESTAMPTZ,
  is_active BOOLEAN NOT NULL DEFAULT true
);
CREATE INDEX IF NOT EXISTS idx_sessions_account ON sessions(account_id, seq);
CREATE TABLE IF NOT EXISTS consumed_challenges (
  id TEXT PRIMARY KEY,
  expires_at TIMESTAMPTZ NOT NULL
);
`

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

type addressRow struct {
	ID        int64     `db:"id"`
	AccountID int64     `db:"account_id"`
	Address   string    `db:"address"`
	NetworkID string    `db:"network_id"`
	CanAuth   bool      `db:"can_auth"`
	CreatedAt time.Time `db:"created_at"`
}

func (r addressRow) toCore() core.LinkedAddress {
	return core.LinkedAddress{
		ID:        r.ID,
		AccountID: r.AccountID,
		Address:   r.Address,
		NetworkID: r.NetworkID,
		CanAuth:   r.CanAuth,
		CreatedAt: r.CreatedAt,
	}
}

type sessionRow struct {
	ID        string       `db:"id"`
	AccountID int64        `db:"account_id"`
	Address   string       `db:"address"`
	CreatedAt time.Time    `db:"created_at"`
	ExpiresAt sql.NullTime `db:"expires_at"`
	IsActive  bool         `db:"is_active"`
}

func (r sessionRow) toCore() core.Session {
	return core.Session{
		ID:        r.ID,
		AccountID: r.AccountID,
		Address:   r.Address,
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt.Time,
		Active:    r.IsActive,
	}
}

const addressColumns = `id, account_id, address, network_id, can_auth, created_at`
const sessionColumns = `id, account_id, address, created_at, expires_at, is_active`

// PostgresStore implements the Registry, SessionStore and ChallengeLedger
// ports on Postgres. Uniqueness is enforced by constraints and per-account
// mutations lock the account row.
type PostgresStore struct {
	db  *sqlx.DB
	ids *ids.Generator
}

// ConnectPostgres opens a pool and verifies connectivity with a ping
func ConnectPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// NewPostgresStore creates a new Postgres store
func NewPostgresStore(db *sqlx.DB, gen *ids.Generator) *PostgresStore {
	return &PostgresStore{db: db, ids: gen}
}

// EnsureSchema creates the tables if they do not exist (idempotent)
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// withTx runs fn in a transaction, committing only when fn succeeds
func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	// no-op after a successful commit
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return core.ErrAlreadyLinked
		case pqForeignKeyViolation:
			return core.ErrAccountNotFound
		}
	}
	return err
}

// lockAddress serializes account creation and linking of one address
// until the transaction ends.
func lockAddress(ctx context.Context, tx *sqlx.Tx, address string) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, address); err != nil {
		return fmt.Errorf("lock address: %w", err)
	}
	return nil
}

// CreateAccount creates an account owning address with can_auth set.
// An address linked on any network already has an owner.
func (s *PostgresStore) CreateAccount(ctx context.Context, address, networkID string) (core.Account, core.LinkedAddress, error) {
	account := core.Account{ID: s.ids.NextID()}
	var row addressRow

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockAddress(ctx, tx, address); err != nil {
			return err
		}
		var owned bool
		if err := tx.GetContext(ctx, &owned,
			`SELECT EXISTS (SELECT 1 FROM linked_addresses WHERE address = $1)`, address); err != nil {
			return fmt.Errorf("check address: %w", err)
		}
		if owned {
			return core.ErrAlreadyLinked
		}

		if err := tx.GetContext(ctx, &account.CreatedAt,
			`INSERT INTO accounts (id) VALUES ($1) RETURNING created_at`, account.ID); err != nil {
			return fmt.Errorf("insert account: %w", err)
		}
		err := tx.GetContext(ctx, &row,
			`INSERT INTO linked_addresses (id, account_id, address, network_id, can_auth)
			 VALUES ($1, $2, $3, $4, true) RETURNING `+addressColumns,
			s.ids.NextID(), account.ID, address, networkID)
		if err != nil {
			return translate(err)
		}
		return nil
	})
	if err != nil {
		return core.Account{}, core.LinkedAddress{}, err
	}
	return account, row.toCore(), nil
}

// LinkAddress links address to the account with can_auth unset
func (s *PostgresStore) LinkAddress(ctx context.Context, accountID int64, address, networkID string) (core.LinkedAddress, error) {
	var row addressRow
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockAddress(ctx, tx, address); err != nil {
			return err
		}
		err := tx.GetContext(ctx, &row,
			`INSERT INTO linked_addresses (id, account_id, address, network_id, can_auth)
			 VALUES ($1, $2, $3, $4, false) RETURNING `+addressColumns,
			s.ids.NextID(), accountID, address, networkID)
		return translate(err)
	})
	if err != nil {
		return core.LinkedAddress{}, err
	}
	return row.toCore(), nil
}

// ListAddresses returns the account's addresses in creation order
func (s *PostgresStore) ListAddresses(ctx context.Context, accountID int64) ([]core.LinkedAddress, error) {
	return listAddresses(ctx, s.db, accountID)
}

func listAddresses(ctx context.Context, q sqlx.QueryerContext, accountID int64) ([]core.LinkedAddress, error) {
	var rows []addressRow
	err := sqlx.SelectContext(ctx, q, &rows,
		`SELECT `+addressColumns+` FROM linked_addresses WHERE account_id = $1 ORDER BY id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	out := make([]core.LinkedAddress, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCore())
	}
	return out, nil
}

// FindAddress returns the record for (address, network)
func (s *PostgresStore) FindAddress(ctx context.Context, address, networkID string) (core.LinkedAddress, error) {
	var row addressRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+addressColumns+` FROM linked_addresses WHERE address = $1 AND network_id = $2`, address, networkID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.LinkedAddress{}, core.ErrAddressNotFound
		}
		return core.LinkedAddress{}, fmt.Errorf("find address: %w", err)
	}
	return row.toCore(), nil
}

// FindByAddress returns every record of address across networks
func (s *PostgresStore) FindByAddress(ctx context.Context, address string) ([]core.LinkedAddress, error) {
	var rows []addressRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+addressColumns+` FROM linked_addresses WHERE address = $1 ORDER BY id`, address)
	if err != nil {
		return nil, fmt.Errorf("find address: %w", err)
	}
	out := make([]core.LinkedAddress, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCore())
	}
	return out, nil
}

// SetCanAuth flips can_auth on the account's records of address while holding the account row lock
func (s *PostgresStore) SetCanAuth(ctx context.Context, accountID int64, address string, enable bool, loginNetwork string) ([]core.LinkedAddress, error) {
	var updated []core.LinkedAddress

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var locked int64
		if err := tx.GetContext(ctx, &locked, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, accountID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return core.ErrAccountNotFound
			}
			return fmt.Errorf("lock account: %w", err)
		}

		var rows []addressRow
		if err := tx.SelectContext(ctx, &rows,
			`UPDATE linked_addresses SET can_auth = $3 WHERE account_id = $1 AND address = $2 RETURNING `+addressColumns,
			accountID, address, enable); err != nil {
			return fmt.Errorf("update can_auth: %w", err)
		}
		if len(rows) == 0 {
			return core.ErrAddressNotFound
		}

		if !enable {
			all, err := listAddresses(ctx, tx, accountID)
			if err != nil {
				return err
			}
			if err := core.EnsureAuthRemains(all, loginNetwork); err != nil {
				return err
			}
		}

		for _, r := range rows {
			updated = append(updated, r.toCore())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Put stores a session
func (s *PostgresStore) Put(ctx context.Context, session core.Session) error {
	expires := sql.NullTime{Time: session.ExpiresAt, Valid: !session.ExpiresAt.IsZero()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, account_id, address, created_at, expires_at, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		session.ID, session.AccountID, session.Address, session.CreatedAt, expires, session.Active)
	if err != nil {
		return fmt.Errorf("insert session: %w", translate(err))
	}
	return nil
}

// Get returns a session by id
func (s *PostgresStore) Get(ctx context.Context, id string) (core.Session, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Session{}, core.ErrSessionNotFound
		}
		return core.Session{}, fmt.Errorf("get session: %w", err)
	}
	return row.toCore(), nil
}

// ListByAccount returns the account's sessions in creation order
func (s *PostgresStore) ListByAccount(ctx context.Context, accountID int64) ([]core.Session, error) {
	var rows []sessionRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+sessionColumns+` FROM sessions WHERE account_id = $1 ORDER BY seq`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]core.Session, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCore())
	}
	return out, nil
}

// MarkRevoked deactivates a session owned by accountID
func (s *PostgresStore) MarkRevoked(ctx context.Context, accountID int64, id string) (core.Session, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row,
		`UPDATE sessions SET is_active = false WHERE id = $1 AND account_id = $2 RETURNING `+sessionColumns,
		id, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Session{}, core.ErrSessionNotFound
		}
		return core.Session{}, fmt.Errorf("revoke session: %w", err)
	}
	return row.toCore(), nil
}

// Consume marks a challenge as used
func (s *PostgresStore) Consume(ctx context.Context, challengeID string, ttl time.Duration) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM consumed_challenges WHERE expires_at < NOW()`); err != nil {
		return fmt.Errorf("purge challenges: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO consumed_challenges (id, expires_at) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		challengeID, time.Now().Add(ttl))
	if err != nil {
		return fmt.Errorf("consume challenge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume challenge: %w", err)
	}
	if n == 0 {
		return core.ErrChallengeUsed
	}
	return nil
}
