package migrations

import (
	"context"
	"fmt"
)

// ClickhouseDB executes one statement at a time, like clickhouse-go's driver.Conn.
type ClickhouseDB interface {
	Exec(ctx context.Context, query string, args ...any) error
}

// ApplyClickhouse applies every embedded ClickHouse migration. The
// statements are idempotent, so no version table is kept.
func ApplyClickhouse(ctx context.Context, db ClickhouseDB) error {
	migrations, err := Load(ClickhouseFS, "clickhouse")
	if err != nil {
		return err
	}

	for _, m := range migrations {
		stmts, err := m.Statements()
		if err != nil {
			return err
		}
		for _, stmt := range stmts {
			if err := db.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", m.Version, err)
			}
		}
	}
	return nil
}
