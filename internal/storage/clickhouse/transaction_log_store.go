package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"fit-token/internal/domain"
	"fit-token/internal/storage"
)

// TransactionLogStore implements storage.TransactionLogStore using ClickHouse.
type TransactionLogStore struct {
	conn *Conn
}

// NewTransactionLogStore creates a new TransactionLogStore.
func NewTransactionLogStore(conn *Conn) *TransactionLogStore {
	return &TransactionLogStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TransactionLogStore = (*TransactionLogStore)(nil)

const selectColumns = `
	signature, slot, block_time, signers, programs, status, err, error_name, error_index, error_code, logs, written_count, created_at
`

// Insert adds a record. Returns ErrDuplicateKey if signature exists.
// MergeTree does not enforce uniqueness, so existence is checked first.
func (s *TransactionLogStore) Insert(ctx context.Context, r *domain.TransactionRecord) (err error) {
	if r == nil || r.Signature == "" {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observeQuery("insert_transaction", start, err) }(time.Now())

	exists, err := s.exists(ctx, r.Signature)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO transactions (`+selectColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		r.Signature, r.Slot, r.BlockTime,
		nonNil(r.Signers), nonNil(r.Programs),
		r.Status, r.Err, r.ErrorName, r.ErrorIndex, r.ErrorCode, nonNil(r.Logs),
		uint32(r.WrittenCount), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetBySignature retrieves a record. Returns ErrNotFound if not exists.
func (s *TransactionLogStore) GetBySignature(ctx context.Context, signature string) (_ *domain.TransactionRecord, err error) {
	defer func(start time.Time) { observeQuery("get_transaction", start, err) }(time.Now())

	query := `SELECT ` + selectColumns + ` FROM transactions WHERE signature = ? LIMIT 1`

	rows, err := s.conn.Query(ctx, query, signature)
	if err != nil {
		return nil, fmt.Errorf("query by signature: %w", err)
	}
	defer rows.Close()

	records, err := scanTransactions(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, storage.ErrNotFound
	}
	return records[0], nil
}

// GetBySlotRange retrieves records within [start, end] (inclusive), ordered by slot ASC.
func (s *TransactionLogStore) GetBySlotRange(ctx context.Context, start, end uint64) (_ []*domain.TransactionRecord, err error) {
	defer func(begin time.Time) { observeQuery("get_transactions", begin, err) }(time.Now())

	query := `SELECT ` + selectColumns + `
		FROM transactions
		WHERE slot >= ? AND slot <= ?
		ORDER BY slot ASC, signature ASC
	`

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by slot range: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func (s *TransactionLogStore) exists(ctx context.Context, signature string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM transactions WHERE signature = ?`, signature).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanTransactions(rows driver.Rows) ([]*domain.TransactionRecord, error) {
	var records []*domain.TransactionRecord

	for rows.Next() {
		var (
			r       domain.TransactionRecord
			written uint32
		)
		err := rows.Scan(
			&r.Signature, &r.Slot, &r.BlockTime,
			&r.Signers, &r.Programs,
			&r.Status, &r.Err, &r.ErrorName, &r.ErrorIndex, &r.ErrorCode, &r.Logs,
			&written, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		r.WrittenCount = int(written)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}

	return records, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
