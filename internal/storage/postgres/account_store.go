package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"fit-token/internal/domain"
	"fit-token/internal/storage"
)

// AccountStore implements storage.AccountStore using PostgreSQL.
// Optimistic concurrency is enforced per row through the version column.
type AccountStore struct {
	pool *Pool
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(pool *Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AccountStore = (*AccountStore)(nil)

// Get retrieves an account by key. Returns ErrNotFound if not exists.
func (s *AccountStore) Get(ctx context.Context, key domain.Pubkey) (acct *domain.Account, err error) {
	defer func(start time.Time) { observeQuery("get_account", start, err) }(time.Now())

	query := `
		SELECT key, owner, data, version
		FROM accounts
		WHERE key = $1
	`

	acct, err = scanAccount(s.pool.QueryRow(ctx, query, key.Bytes()))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return acct, nil
}

// GetMany retrieves several accounts. Missing keys are absent from the result.
func (s *AccountStore) GetMany(ctx context.Context, keys []domain.Pubkey) (_ map[domain.Pubkey]*domain.Account, err error) {
	result := make(map[domain.Pubkey]*domain.Account, len(keys))
	if len(keys) == 0 {
		return result, nil
	}
	defer func(start time.Time) { observeQuery("get_accounts", start, err) }(time.Now())

	raw := make([][]byte, len(keys))
	for i, k := range keys {
		raw[i] = k.Bytes()
	}

	query := `
		SELECT key, owner, data, version
		FROM accounts
		WHERE key = ANY($1)
	`

	rows, err := s.pool.Query(ctx, query, raw)
	if err != nil {
		return nil, fmt.Errorf("get accounts: %w", err)
	}
	defer rows.Close()

	accts, err := scanAccounts(rows)
	if err != nil {
		return nil, err
	}
	for _, a := range accts {
		result[a.Key] = a
	}
	return result, nil
}

// GetByOwner retrieves all accounts owned by a program, ordered by key.
func (s *AccountStore) GetByOwner(ctx context.Context, owner domain.Pubkey) (_ []*domain.Account, err error) {
	defer func(start time.Time) { observeQuery("get_accounts_by_owner", start, err) }(time.Now())

	query := `
		SELECT key, owner, data, version
		FROM accounts
		WHERE owner = $1
		ORDER BY key ASC
	`

	rows, err := s.pool.Query(ctx, query, owner.Bytes())
	if err != nil {
		return nil, fmt.Errorf("get accounts by owner: %w", err)
	}
	defer rows.Close()

	return scanAccounts(rows)
}

// Apply commits a batch of writes in one database transaction.
// A write with ExpectedVersion 0 inserts; any other updates only when the
// stored version still matches. A miss on either path rolls back the batch.
func (s *AccountStore) Apply(ctx context.Context, writes []domain.AccountWrite) (err error) {
	if len(writes) == 0 {
		return nil
	}

	seen := make(map[domain.Pubkey]struct{}, len(writes))
	for _, w := range writes {
		if w.Account == nil {
			return storage.ErrInvalidInput
		}
		if _, dup := seen[w.Account.Key]; dup {
			return storage.ErrInvalidInput
		}
		seen[w.Account.Key] = struct{}{}
	}
	defer func(start time.Time) { observeQuery("apply", start, err) }(time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	insertQuery := `
		INSERT INTO accounts (key, owner, data, version, updated_at)
		VALUES ($1, $2, $3, 1, NOW())
		ON CONFLICT (key) DO NOTHING
	`
	updateQuery := `
		UPDATE accounts
		SET owner = $2, data = $3, version = version + 1, updated_at = NOW()
		WHERE key = $1 AND version = $4
	`

	for _, w := range writes {
		a := w.Account
		data := a.Data
		if data == nil {
			data = []byte{}
		}

		var affected int64
		if w.ExpectedVersion == 0 {
			tag, err := tx.Exec(ctx, insertQuery, a.Key.Bytes(), a.Owner.Bytes(), data)
			if err != nil {
				return fmt.Errorf("insert account %s: %w", a.Key, err)
			}
			affected = tag.RowsAffected()
		} else {
			tag, err := tx.Exec(ctx, updateQuery, a.Key.Bytes(), a.Owner.Bytes(), data, int64(w.ExpectedVersion))
			if err != nil {
				return fmt.Errorf("update account %s: %w", a.Key, err)
			}
			affected = tag.RowsAffected()
		}
		if affected == 0 {
			return storage.ErrVersionConflict
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// scanAccount scans a single row into an Account.
func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		key, owner []byte
		data       []byte
		version    int64
	)
	if err := row.Scan(&key, &owner, &data, &version); err != nil {
		return nil, err
	}
	return toAccount(key, owner, data, version)
}

// scanAccounts scans multiple rows into a slice of Account.
func scanAccounts(rows pgx.Rows) ([]*domain.Account, error) {
	var accts []*domain.Account

	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account row: %w", err)
		}
		accts = append(accts, acct)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account rows: %w", err)
	}

	return accts, nil
}

func toAccount(key, owner, data []byte, version int64) (*domain.Account, error) {
	k, err := domain.PubkeyFromBytes(key)
	if err != nil {
		return nil, fmt.Errorf("account key: %w", err)
	}
	o, err := domain.PubkeyFromBytes(owner)
	if err != nil {
		return nil, fmt.Errorf("account owner: %w", err)
	}
	return &domain.Account{
		Key:     k,
		Owner:   o,
		Data:    data,
		Version: uint64(version),
	}, nil
}
