package database

import (
	"context"
	"database/sql"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/hashicorp/go-version"
	"github.com/pkg/errors"
	"github.com/pseudomuto/dbmaint/pkg/config"
	"github.com/pseudomuto/dbmaint/pkg/parser"
	"github.com/pseudomuto/dbmaint/pkg/utils"
)

// ClickHouse is the ClickHouse dialect. Schemas are ClickHouse databases.
type ClickHouse struct {
	version *version.Version
}

// Lightweight DELETE FROM became generally available in 23.3. Older servers
// fall back to a synchronous ALTER TABLE ... DELETE mutation.
var lightweightDeleteVersion = version.Must(version.NewVersion("23.3"))

const clickhouseTablesQuery = `SELECT name FROM system.tables
	WHERE database = ? AND is_temporary = 0 AND name NOT LIKE '.inner%'`

var clickhouseEngineFilters = map[ObjectKind]string{
	Table:            ` AND engine NOT IN ('View', 'MaterializedView', 'Dictionary')`,
	View:             ` AND engine = 'View'`,
	MaterializedView: ` AND engine = 'MaterializedView'`,
}

func (*ClickHouse) Name() string { return "clickhouse" }

func (*ClickHouse) Capabilities() Capabilities {
	return Capabilities{
		Schemas:           true,
		MaterializedViews: true,
	}
}

func (*ClickHouse) ParserOptions() parser.Options {
	return parser.Options{
		BackslashEscaping: true,
		IdentifierQuote:   '`',
	}
}

func (*ClickHouse) Quote(name string) string {
	return utils.BacktickIdentifier(name)
}

func (*ClickHouse) Placeholder(int) string { return "?" }

// Open parses the clickhouse:// DSN and applies the configured TLS files.
func (*ClickHouse) Open(db config.Database) (*sql.DB, error) {
	opts, err := clickhouse.ParseDSN(db.URL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid clickhouse dsn for database %s", db.Name)
	}

	if db.TLS != nil {
		tlsConfig, err := GetTLSConfig(*db.TLS)
		if err != nil {
			return nil, err
		}
		opts.TLS = tlsConfig
	}

	return clickhouse.OpenDB(opts), nil
}

// Prepare records the server version used to pick the DELETE syntax.
func (c *ClickHouse) Prepare(ctx context.Context, q Querier) error {
	raw, err := firstString(ctx, q, "SELECT version()")
	if err != nil {
		return errors.Wrap(err, "failed to query ClickHouse version")
	}

	v, err := ParseServerVersion(raw)
	if err != nil {
		return err
	}

	c.version = v
	return nil
}

func (*ClickHouse) DefaultSchema(ctx context.Context, q Querier) (string, error) {
	return firstString(ctx, q, "SELECT currentDatabase()")
}

func (*ClickHouse) ListObjects(ctx context.Context, q Querier, schema string, kind ObjectKind) ([]Object, error) {
	filter, ok := clickhouseEngineFilters[kind]
	if !ok {
		return nil, errors.Errorf("clickhouse does not support listing %s objects", kind)
	}

	return queryObjects(ctx, q, clickhouseTablesQuery+filter, schema)
}

// DropObjectSQL drops synchronously so a rebuild can reuse the name at once.
func (c *ClickHouse) DropObjectSQL(schema string, kind ObjectKind, obj Object) string {
	keyword := "TABLE"
	if kind == View || kind == MaterializedView {
		keyword = "VIEW"
	}

	return utils.NewSQLBuilder(c.Quote).Drop(keyword).IfExists().QualifiedName(schema, obj.Name).Raw("SYNC").String()
}

func (c *ClickHouse) CleanTablesSQL(schema string, tables []string) []string {
	stmts := make([]string, 0, len(tables))
	for _, table := range tables {
		stmts = append(stmts, utils.NewSQLBuilder(c.Quote).Truncate("TABLE").IfExists().QualifiedName(schema, table).String())
	}

	return stmts
}

func (*ClickHouse) DisableReferentialConstraints(context.Context, Querier, string, Filter) ([]string, error) {
	return nil, nil
}

func (*ClickHouse) DisableValueConstraints(context.Context, Querier, string, Filter) ([]string, error) {
	return nil, nil
}

func (*ClickHouse) UpdateSequences(context.Context, Querier, string, int64) ([]string, error) {
	return nil, nil
}

func (*ClickHouse) UpdateIdentityColumns(context.Context, Querier, string, int64, Filter) ([]string, error) {
	return nil, nil
}

func (c *ClickHouse) RegistryTableDDL(schema, table string) string {
	return "CREATE TABLE IF NOT EXISTS " + utils.QualifiedName(c.Quote, schema, table) + ` (
	file_name String,
	file_last_modified_at Int64,
	checksum String,
	executed_at Int64,
	finished_at Int64,
	succeeded Int64
) ENGINE = MergeTree ORDER BY file_name`
}

// DeleteSQL uses a lightweight delete when the server supports it, otherwise
// a mutation that waits for completion.
func (c *ClickHouse) DeleteSQL(schema, table, where string) string {
	if where == "" {
		where = "1 = 1"
	}

	if c.version == nil || c.version.GreaterThanOrEqual(lightweightDeleteVersion) {
		return deleteSQL(c.Quote, schema, table, where)
	}

	return utils.NewSQLBuilder(c.Quote).
		Alter("TABLE").
		QualifiedName(schema, table).
		Raw("DELETE WHERE " + where).
		Raw("SETTINGS mutations_sync = 2").
		String()
}

// ParseServerVersion parses the string returned by SELECT version(). Build
// suffixes and descriptions are ignored:
//   - "23.8.2.7" (standard)
//   - "21.10.3.9-testing" (with suffix)
//   - "21.10.3.9 (official build)" (with description)
func ParseServerVersion(raw string) (*version.Version, error) {
	cleaned := strings.TrimSpace(raw)
	if i := strings.IndexAny(cleaned, " -"); i != -1 {
		cleaned = cleaned[:i]
	}

	v, err := version.NewVersion(cleaned)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse ClickHouse version: %s", raw)
	}

	return v, nil
}
