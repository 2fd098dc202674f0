package database

import (
	"context"
	"database/sql"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/pseudomuto/dbmaint/pkg/config"
	"github.com/pseudomuto/dbmaint/pkg/parser"
	"github.com/pseudomuto/dbmaint/pkg/utils"
)

// SQLite is the SQLite dialect. Schemas are the attached database names,
// main by default.
type SQLite struct{}

var sqliteObjectTypes = map[ObjectKind]string{
	Table:   "table",
	View:    "view",
	Trigger: "trigger",
}

func (*SQLite) Name() string { return "sqlite" }

func (*SQLite) Capabilities() Capabilities {
	return Capabilities{
		Triggers:               true,
		IdentityColumns:        true,
		ReferentialConstraints: true,
	}
}

func (*SQLite) ParserOptions() parser.Options {
	return parser.Options{
		IdentifierQuote: '`',
		CompoundBlocks:  true,
	}
}

func (*SQLite) Quote(name string) string {
	return utils.DoubleQuoteIdentifier(name)
}

func (*SQLite) Placeholder(int) string { return "?" }

// Open limits the pool to a single connection. Pragmas such as foreign_keys
// apply per connection.
func (*SQLite) Open(db config.Database) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", db.URL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open sqlite database %s", db.Name)
	}

	conn.SetMaxOpenConns(1)
	return conn, nil
}

func (*SQLite) Prepare(context.Context, Querier) error { return nil }

func (*SQLite) DefaultSchema(context.Context, Querier) (string, error) {
	return "main", nil
}

func (s *SQLite) ListObjects(ctx context.Context, q Querier, schema string, kind ObjectKind) ([]Object, error) {
	typ, ok := sqliteObjectTypes[kind]
	if !ok {
		return nil, errors.Errorf("sqlite does not support listing %s objects", kind)
	}

	query := "SELECT name, tbl_name FROM " + utils.QualifiedName(s.Quote, schema, "sqlite_master") +
		" WHERE type = ? AND name NOT LIKE 'sqlite!_%' ESCAPE '!'"

	objects, err := queryObjects(ctx, q, query, typ)
	if err != nil {
		return nil, err
	}

	if kind != Trigger {
		for i := range objects {
			objects[i].Parent = ""
		}
	}

	return objects, nil
}

func (s *SQLite) DropObjectSQL(schema string, kind ObjectKind, obj Object) string {
	return utils.NewSQLBuilder(s.Quote).Drop(kind.Keyword()).IfExists().QualifiedName(schema, obj.Name).String()
}

func (s *SQLite) CleanTablesSQL(schema string, tables []string) []string {
	stmts := make([]string, 0, len(tables))
	for _, table := range tables {
		stmts = append(stmts, deleteSQL(s.Quote, schema, table, ""))
	}

	return stmts
}

// DisableReferentialConstraints turns off foreign key enforcement since
// SQLite cannot drop constraints from an existing table.
func (*SQLite) DisableReferentialConstraints(context.Context, Querier, string, Filter) ([]string, error) {
	return []string{"PRAGMA foreign_keys = OFF"}, nil
}

func (*SQLite) DisableValueConstraints(context.Context, Querier, string, Filter) ([]string, error) {
	return nil, nil
}

func (*SQLite) UpdateSequences(context.Context, Querier, string, int64) ([]string, error) {
	return nil, nil
}

// UpdateIdentityColumns raises the AUTOINCREMENT counters kept in
// sqlite_sequence. The table only exists once an AUTOINCREMENT table has been
// created.
func (s *SQLite) UpdateIdentityColumns(ctx context.Context, q Querier, schema string, lowest int64, skip Filter) ([]string, error) {
	master := utils.QualifiedName(s.Quote, schema, "sqlite_master")
	sequences := utils.QualifiedName(s.Quote, schema, "sqlite_sequence")

	found, err := queryStrings(ctx, q, "SELECT name FROM "+master+" WHERE type = 'table' AND name = 'sqlite_sequence'")
	if err != nil || len(found) == 0 {
		return nil, err
	}

	counters, err := queryCounters(ctx, q, "SELECT name, '', seq FROM "+sequences)
	if err != nil {
		return nil, err
	}

	var stmts []string
	for _, c := range counters {
		if c.value >= lowest || skipped(skip, c.name) {
			continue
		}

		stmts = append(stmts, "UPDATE "+sequences+" SET seq = "+strconv.FormatInt(lowest, 10)+
			" WHERE name = "+utils.EscapeString(c.name))
	}

	return stmts, nil
}

func (s *SQLite) RegistryTableDDL(schema, table string) string {
	return "CREATE TABLE IF NOT EXISTS " + utils.QualifiedName(s.Quote, schema, table) + ` (
	file_name TEXT,
	file_last_modified_at INTEGER,
	checksum TEXT,
	executed_at INTEGER,
	finished_at INTEGER,
	succeeded INTEGER
)`
}

func (s *SQLite) DeleteSQL(schema, table, where string) string {
	return deleteSQL(s.Quote, schema, table, where)
}
