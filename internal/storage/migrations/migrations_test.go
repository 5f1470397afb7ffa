package migrations

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_OrderAndFiltering(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/002_b.sql": {Data: []byte("CREATE TABLE b (id INT);")},
		"sql/001_a.sql": {Data: []byte("CREATE TABLE a (id INT);")},
		"sql/003_c.sql": {Data: []byte("  \n")},
		"sql/README.md": {Data: []byte("not sql")},
		"sql/sub/x.sql": {Data: []byte("CREATE TABLE x (id INT);")},
		"other/9_z.sql": {Data: []byte("CREATE TABLE z (id INT);")},
	}

	got, err := Load(fsys, "sql")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "001_a.sql", got[0].Version)
	assert.Equal(t, "002_b.sql", got[1].Version)

	_, err = Load(fsys, "missing")
	assert.Error(t, err)
}

func TestEmbeddedMigrations(t *testing.T) {
	pg, err := Load(PostgresFS, "postgres")
	require.NoError(t, err)
	require.NotEmpty(t, pg)
	assert.Equal(t, "001_accounts.sql", pg[0].Version)

	ch, err := Load(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	for _, m := range ch {
		stmts, err := m.Statements()
		require.NoError(t, err, m.Version)
		assert.NotEmpty(t, stmts, m.Version)
	}
}

func TestStatements(t *testing.T) {
	m := Migration{Version: "001.sql", SQL: `
-- header comment; with a semicolon
CREATE TABLE a (s String DEFAULT 'it''s');

CREATE TABLE b (id UInt8)
ENGINE = Memory;
`}
	stmts, err := m.Statements()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"CREATE TABLE a (s String DEFAULT 'it''s')",
		"CREATE TABLE b (id UInt8)\nENGINE = Memory",
	}, stmts)
}

func TestStatements_RejectsQuotedSemicolon(t *testing.T) {
	_, err := Migration{Version: "bad.sql", SQL: "INSERT INTO t VALUES ('a;b');"}.Statements()
	assert.ErrorContains(t, err, "bad.sql")
}

type recordingDB struct {
	stmts []string
	fail  string
}

func (r *recordingDB) Exec(_ context.Context, query string, _ ...any) error {
	if r.fail != "" && query == r.fail {
		return errors.New("boom")
	}
	r.stmts = append(r.stmts, query)
	return nil
}

func TestApplyClickhouse(t *testing.T) {
	db := &recordingDB{}
	require.NoError(t, ApplyClickhouse(context.Background(), db))
	require.NotEmpty(t, db.stmts)
	assert.Contains(t, db.stmts[0], "CREATE TABLE IF NOT EXISTS transactions")

	failing := &recordingDB{fail: db.stmts[0]}
	assert.ErrorContains(t, ApplyClickhouse(context.Background(), failing), "apply migration")
}
