package database_test

import (
	"context"
	"path/filepath"
	"slices"
	"testing"

	"github.com/pseudomuto/dbmaint/pkg/config"
	. "github.com/pseudomuto/dbmaint/pkg/database"
	"github.com/pseudomuto/dbmaint/pkg/utils"
	"github.com/stretchr/testify/require"
)

const fixtureSQL = `
CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL);
CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER REFERENCES users(id));
CREATE TABLE countries (code TEXT);
CREATE VIEW named_users AS SELECT name FROM users;
CREATE TRIGGER users_audit AFTER INSERT ON users BEGIN UPDATE users SET name = name WHERE id = NEW.id; END;
INSERT INTO users (name) VALUES ('ada');
INSERT INTO orders (user_id) VALUES (1);
INSERT INTO countries (code) VALUES ('CA');
`

func sqliteDatabase(t *testing.T) *Database {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Connect(context.Background(), config.Database{
		Name:    "main",
		Dialect: "sqlite",
		URL:     "file:" + path + "?_foreign_keys=on",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func loadFixture(t *testing.T, db *Database) {
	t.Helper()

	stmts, err := parserStatements(db, fixtureSQL)
	require.NoError(t, err)

	for _, stmt := range stmts {
		require.NoError(t, db.ExecuteStatement(context.Background(), stmt))
	}
}

func objectNames(t *testing.T, db *Database, kind ObjectKind) []string {
	t.Helper()

	objects, err := db.Dialect.ListObjects(context.Background(), db.DB, db.DefaultSchema(), kind)
	require.NoError(t, err)

	names := make([]string, len(objects))
	for i, obj := range objects {
		names[i] = obj.Name
	}
	slices.Sort(names)

	return names
}

func count(t *testing.T, db *Database, table string) int {
	t.Helper()

	var n int
	require.NoError(t, db.DB.QueryRow("SELECT count(*) FROM "+utils.DoubleQuoteIdentifier(table)).Scan(&n))
	return n
}

func TestConnect(t *testing.T) {
	db := sqliteDatabase(t)

	require.Equal(t, "main", db.Name)
	require.Equal(t, "sqlite", db.Dialect.Name())
	require.Equal(t, []string{"main"}, db.Schemas)
	require.Equal(t, "main", db.DefaultSchema())
	require.True(t, db.Enabled)
}

func TestConnectUnknownDialect(t *testing.T) {
	_, err := Connect(context.Background(), config.Database{Name: "x", Dialect: "oracle"}, nil)
	require.ErrorContains(t, err, "database x: oracle: unknown dialect")
}

func TestParserOptionsOverride(t *testing.T) {
	db := sqliteDatabase(t)
	require.False(t, db.ParserOptions().BackslashEscaping)
	require.Zero(t, db.ParserOptions().Separator)

	path := filepath.Join(t.TempDir(), "override.db")
	overridden, err := Connect(context.Background(), config.Database{
		Name:              "main",
		Dialect:           "sqlite",
		URL:               path,
		BackslashEscaping:  utils.Ptr(true),
		StatementSeparator: "/",
	}, nil)
	require.NoError(t, err)
	defer overridden.Close()

	require.True(t, overridden.ParserOptions().BackslashEscaping)
	require.Equal(t, '/', overridden.ParserOptions().Separator)
}

func TestListObjects(t *testing.T) {
	db := sqliteDatabase(t)
	loadFixture(t, db)

	require.Equal(t, []string{"countries", "orders", "users"}, objectNames(t, db, Table))
	require.Equal(t, []string{"named_users"}, objectNames(t, db, View))

	triggers, err := db.Dialect.ListObjects(context.Background(), db.DB, "main", Trigger)
	require.NoError(t, err)
	require.Equal(t, []Object{{Name: "users_audit", Parent: "users"}}, triggers)

	_, err = db.Dialect.ListObjects(context.Background(), db.DB, "main", Sequence)
	require.ErrorContains(t, err, "sqlite does not support listing sequence objects")
}

func TestDropAllObjects(t *testing.T) {
	db := sqliteDatabase(t)
	loadFixture(t, db)

	require.NoError(t, db.DropAllObjects(context.Background(), "main", NewPreserve("main.countries")))

	require.Equal(t, []string{"countries"}, objectNames(t, db, Table))
	require.Empty(t, objectNames(t, db, View))
	require.Empty(t, objectNames(t, db, Trigger))
	require.Equal(t, 1, count(t, db, "countries"))
}

func TestCleanSchema(t *testing.T) {
	db := sqliteDatabase(t)
	loadFixture(t, db)

	require.NoError(t, db.DisableReferentialConstraints(context.Background(), "main", nil))
	require.NoError(t, db.CleanSchema(context.Background(), "main", NewPreserve("countries")))

	require.Zero(t, count(t, db, "users"))
	require.Zero(t, count(t, db, "orders"))
	require.Equal(t, 1, count(t, db, "countries"))
	require.Equal(t, []string{"countries", "orders", "users"}, objectNames(t, db, Table))
}

func TestResetIdentityColumns(t *testing.T) {
	db := sqliteDatabase(t)
	loadFixture(t, db)

	require.NoError(t, db.ResetIdentityColumns(context.Background(), "main", 1000, nil))

	var seq int64
	require.NoError(t, db.DB.QueryRow("SELECT seq FROM sqlite_sequence WHERE name = 'users'").Scan(&seq))
	require.Equal(t, int64(1000), seq)

	// Values above the lowest value are left alone.
	require.NoError(t, db.ResetIdentityColumns(context.Background(), "main", 10, nil))
	require.NoError(t, db.DB.QueryRow("SELECT seq FROM sqlite_sequence WHERE name = 'users'").Scan(&seq))
	require.Equal(t, int64(1000), seq)
}

func TestResetIdentityColumnsPreserved(t *testing.T) {
	db := sqliteDatabase(t)
	loadFixture(t, db)

	require.NoError(t, db.ResetIdentityColumns(context.Background(), "main", 1000, NewPreserve("users")))

	var seq int64
	require.NoError(t, db.DB.QueryRow("SELECT seq FROM sqlite_sequence WHERE name = 'users'").Scan(&seq))
	require.Equal(t, int64(1), seq)
}

func TestResetIdentityColumnsWithoutSequenceTable(t *testing.T) {
	db := sqliteDatabase(t)
	require.NoError(t, db.ResetIdentityColumns(context.Background(), "main", 1000, nil))
}

func TestUnsupportedOperationsAreSkipped(t *testing.T) {
	db := sqliteDatabase(t)
	loadFixture(t, db)

	require.NoError(t, db.ResetSequences(context.Background(), "main", 1000))
	require.NoError(t, db.DisableValueConstraints(context.Background(), "main", nil))

	_, err := db.DB.Exec("INSERT INTO users (name) VALUES (NULL)")
	require.Error(t, err, "not null constraint should still be enforced")
}

func TestDatabases(t *testing.T) {
	main := sqliteDatabase(t)
	disabled := &Database{Name: "legacy"}

	dbs, err := NewDatabases(main, disabled)
	require.NoError(t, err)

	require.Same(t, main, dbs.Default())
	require.Equal(t, []string{"main", "legacy"}, dbs.Names())
	require.Equal(t, []*Database{main}, dbs.Enabled())
	require.Len(t, dbs.All(), 2)

	db, enabled, err := dbs.Get("")
	require.NoError(t, err)
	require.True(t, enabled)
	require.Same(t, main, db)

	db, enabled, err = dbs.Get("legacy")
	require.NoError(t, err)
	require.False(t, enabled)
	require.Same(t, disabled, db)

	_, _, err = dbs.Get("missing")
	require.EqualError(t, err, "unknown database missing")
}

func TestNewDatabasesErrors(t *testing.T) {
	_, err := NewDatabases()
	require.EqualError(t, err, "at least one database is required")

	_, err = NewDatabases(&Database{Name: "main"})
	require.EqualError(t, err, "database main: the default database cannot be disabled")

	_, err = NewDatabases(&Database{Name: "a", Enabled: true}, &Database{Name: "a", Enabled: true})
	require.EqualError(t, err, "duplicate database name a")
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	dbs, err := Open(context.Background(), []config.Database{
		{Name: "main", Dialect: "sqlite", URL: filepath.Join(dir, "main.db")},
		{Name: "legacy", Dialect: "sqlite", URL: filepath.Join(dir, "legacy.db"), Included: utils.Ptr(false)},
	}, nil)
	require.NoError(t, err)
	defer dbs.Close()

	require.Len(t, dbs.Enabled(), 1)

	legacy, enabled, err := dbs.Get("legacy")
	require.NoError(t, err)
	require.False(t, enabled)
	require.Nil(t, legacy.DB)
}

func TestDatabasesUtilities(t *testing.T) {
	main := sqliteDatabase(t)
	loadFixture(t, main)

	dbs, err := NewDatabases(main)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, dbs.UpdateSequences(ctx, 500, nil))
	require.NoError(t, dbs.DisableConstraints(ctx, nil))
	require.NoError(t, dbs.Clean(ctx, NewPreserve("countries")))
	require.Zero(t, count(t, main, "users"))

	require.NoError(t, dbs.Clear(ctx, NewPreserve("countries")))
	require.Equal(t, []string{"countries"}, objectNames(t, main, Table))
}
