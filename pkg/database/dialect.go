package database

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"
	"github.com/pseudomuto/dbmaint/pkg/config"
	"github.com/pseudomuto/dbmaint/pkg/parser"
)

type (
	// Capabilities describe the optional features of a dialect. They are
	// checked before an optional operation is attempted.
	Capabilities struct {
		Schemas                bool
		Cascade                bool
		Sequences              bool
		Triggers               bool
		Types                  bool
		StoredProcedures       bool
		MaterializedViews      bool
		IdentityColumns        bool
		ReferentialConstraints bool
		ValueConstraints       bool
	}

	// ObjectKind is a kind of schema object that can be listed and dropped.
	ObjectKind int

	// Object is a schema object returned by Dialect.ListObjects.
	Object struct {
		Name string

		// Parent is the table a trigger belongs to.
		Parent string

		// Signature is the argument list identifying an overloaded function.
		Signature string
	}

	// Querier is the subset of *sql.DB used by the dialects.
	Querier interface {
		ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
		QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	}

	// Filter reports whether the named table must be left alone.
	Filter func(table string) bool

	// Dialect generates and issues the engine specific SQL used to maintain a
	// database. Implementations hold no connection; the Querier is passed to
	// every method that needs to inspect the database.
	Dialect interface {
		// Name returns the configuration name of the dialect.
		Name() string

		// Capabilities reports the optional features the dialect supports.
		Capabilities() Capabilities

		// ParserOptions returns the statement parser settings for scripts.
		ParserOptions() parser.Options

		// Quote quotes a single identifier.
		Quote(name string) string

		// Placeholder returns the bind parameter marker for the nth argument,
		// starting at 1.
		Placeholder(n int) string

		// Open connects to the database described by db.
		Open(db config.Database) (*sql.DB, error)

		// Prepare inspects the connected server, e.g. to detect its version.
		Prepare(ctx context.Context, q Querier) error

		// DefaultSchema returns the schema used when none is configured.
		DefaultSchema(ctx context.Context, q Querier) (string, error)

		// ListObjects returns the objects of a kind found in schema.
		ListObjects(ctx context.Context, q Querier, schema string, kind ObjectKind) ([]Object, error)

		// DropObjectSQL returns the statement dropping obj.
		DropObjectSQL(schema string, kind ObjectKind, obj Object) string

		// CleanTablesSQL returns the statements deleting all rows of tables.
		CleanTablesSQL(schema string, tables []string) []string

		// DisableReferentialConstraints returns the statements removing
		// foreign keys from every table not matched by skip.
		DisableReferentialConstraints(ctx context.Context, q Querier, schema string, skip Filter) ([]string, error)

		// DisableValueConstraints returns the statements removing not null,
		// check and unique constraints from every table not matched by skip.
		DisableValueConstraints(ctx context.Context, q Querier, schema string, skip Filter) ([]string, error)

		// UpdateSequences returns the statements raising every sequence below
		// lowest to lowest.
		UpdateSequences(ctx context.Context, q Querier, schema string, lowest int64) ([]string, error)

		// UpdateIdentityColumns returns the statements raising every identity
		// column of a table not matched by skip to at least lowest.
		UpdateIdentityColumns(ctx context.Context, q Querier, schema string, lowest int64, skip Filter) ([]string, error)

		// RegistryTableDDL returns the statement creating the executed scripts
		// table.
		RegistryTableDDL(schema, table string) string

		// DeleteSQL returns a statement deleting the rows of table matching
		// where. An empty where deletes every row.
		DeleteSQL(schema, table, where string) string
	}
)

const (
	Table ObjectKind = iota
	View
	MaterializedView
	Sequence
	Trigger
	Function
	Procedure
	Type
)

// ErrUnknownDialect is returned by NewDialect for unsupported names.
var ErrUnknownDialect = errors.New("unknown dialect")

var objectKindNames = map[ObjectKind]string{
	Table:            "table",
	View:             "view",
	MaterializedView: "materialized view",
	Sequence:         "sequence",
	Trigger:          "trigger",
	Function:         "function",
	Procedure:        "procedure",
	Type:             "type",
}

func (k ObjectKind) String() string {
	if name, ok := objectKindNames[k]; ok {
		return name
	}

	return "unknown"
}

// Keyword returns the SQL keyword used to drop objects of this kind.
func (k ObjectKind) Keyword() string {
	return strings.ToUpper(k.String())
}

// Supports reports whether objects of kind exist in a dialect with these
// capabilities.
func (c Capabilities) Supports(kind ObjectKind) bool {
	switch kind {
	case MaterializedView:
		return c.MaterializedViews
	case Sequence:
		return c.Sequences
	case Trigger:
		return c.Triggers
	case Function, Procedure:
		return c.StoredProcedures
	case Type:
		return c.Types
	default:
		return true
	}
}

// NewDialect returns the dialect registered under name.
//
// Supported dialects are postgres, mysql, sqlite and clickhouse.
func NewDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql":
		return &Postgres{}, nil
	case "mysql", "mariadb":
		return &MySQL{}, nil
	case "sqlite", "sqlite3":
		return &SQLite{}, nil
	case "clickhouse":
		return &ClickHouse{}, nil
	default:
		return nil, errors.Wrap(ErrUnknownDialect, name)
	}
}

func queryStrings(ctx context.Context, q Querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to execute query: %s", query)
	}
	defer func() { _ = rows.Close() }()

	var values []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}
		values = append(values, value)
	}

	return values, errors.Wrap(rows.Err(), "failed to read rows")
}

func queryObjects(ctx context.Context, q Querier, query string, args ...any) ([]Object, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to execute query: %s", query)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read columns")
	}

	var objects []Object
	for rows.Next() {
		var obj Object
		dest := []any{&obj.Name, &obj.Parent, &obj.Signature}[:len(columns)]
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}
		objects = append(objects, obj)
	}

	return objects, errors.Wrap(rows.Err(), "failed to read rows")
}

func queryPairs(ctx context.Context, q Querier, query string, args ...any) ([][2]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to execute query: %s", query)
	}
	defer func() { _ = rows.Close() }()

	var pairs [][2]string
	for rows.Next() {
		var pair [2]string
		if err := rows.Scan(&pair[0], &pair[1]); err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}
		pairs = append(pairs, pair)
	}

	return pairs, errors.Wrap(rows.Err(), "failed to read rows")
}

type counter struct {
	name   string
	column string
	value  int64
}

func queryCounters(ctx context.Context, q Querier, query string, args ...any) ([]counter, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to execute query: %s", query)
	}
	defer func() { _ = rows.Close() }()

	var counters []counter
	for rows.Next() {
		var c counter
		if err := rows.Scan(&c.name, &c.column, &c.value); err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}
		counters = append(counters, c)
	}

	return counters, errors.Wrap(rows.Err(), "failed to read rows")
}

func skipped(skip Filter, table string) bool {
	return skip != nil && skip(table)
}
