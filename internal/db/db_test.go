package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSqliteDB_Memory_Defaults(t *testing.T) {
	database, err := NewSqliteDB()
	require.NoError(t, err)
	defer database.Close()

	_, err = database.Exec("CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT);")
	require.NoError(t, err)

	// single connection, so the table is visible on the next query
	var count int
	require.NoError(t, database.Get(&count, "SELECT COUNT(*) FROM t"))
	assert.Equal(t, 0, count)
}

func TestNewSqliteDB_File_CreatesParent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "state.db")

	database, err := NewSqliteDB(WithPath(dbPath))
	require.NoError(t, err)
	defer database.Close()

	assert.DirExists(t, filepath.Dir(dbPath))
}

func TestMigrate_Idempotent(t *testing.T) {
	database, err := NewSqliteDB()
	require.NoError(t, err)
	defer database.Close()

	schema := `CREATE TABLE IF NOT EXISTS kv (k TEXT PRIMARY KEY, v TEXT);`
	require.NoError(t, Migrate(database, schema))
	require.NoError(t, Migrate(database, schema))

	_, err = database.Exec("INSERT INTO kv (k, v) VALUES ('a', 'b')")
	assert.NoError(t, err)
}

func TestMigrate_RollsBackOnError(t *testing.T) {
	database, err := NewSqliteDB()
	require.NoError(t, err)
	defer database.Close()

	err = Migrate(database, `CREATE TABLE ok (id INTEGER);`, `THIS IS NOT SQL;`)
	require.Error(t, err)

	var count int
	require.NoError(t, database.Get(&count, "SELECT COUNT(*) FROM sqlite_master WHERE name = 'ok'"))
	assert.Equal(t, 0, count)
}
