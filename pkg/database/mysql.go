package database

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"github.com/pseudomuto/dbmaint/pkg/config"
	"github.com/pseudomuto/dbmaint/pkg/parser"
	"github.com/pseudomuto/dbmaint/pkg/utils"
)

// MySQL is the MySQL and MariaDB dialect.
//
// MySQL has no CASCADE on DROP TABLE, so foreign keys are dropped before the
// tables are.
type MySQL struct {
	schema string
}

var mysqlObjectQueries = map[ObjectKind]string{
	Table:     `SELECT table_name FROM information_schema.tables WHERE table_schema = ? AND table_type = 'BASE TABLE'`,
	View:      `SELECT table_name FROM information_schema.tables WHERE table_schema = ? AND table_type = 'VIEW'`,
	Trigger:   `SELECT trigger_name, event_object_table FROM information_schema.triggers WHERE trigger_schema = ?`,
	Function:  `SELECT routine_name FROM information_schema.routines WHERE routine_schema = ? AND routine_type = 'FUNCTION'`,
	Procedure: `SELECT routine_name FROM information_schema.routines WHERE routine_schema = ? AND routine_type = 'PROCEDURE'`,
}

var mysqlConstraintDrops = map[string]string{
	"FOREIGN KEY": "DROP FOREIGN KEY",
	"UNIQUE":      "DROP INDEX",
	"CHECK":       "DROP CHECK",
}

const (
	mysqlConstraintsQuery = `SELECT table_name, constraint_name, constraint_type FROM information_schema.table_constraints
		WHERE table_schema = ? AND constraint_type IN `

	mysqlNotNullQuery = `SELECT c.table_name, c.column_name, c.column_type FROM information_schema.columns c
		JOIN information_schema.tables t ON t.table_schema = c.table_schema AND t.table_name = c.table_name
		WHERE c.table_schema = ? AND t.table_type = 'BASE TABLE' AND c.is_nullable = 'NO' AND c.column_key <> 'PRI'`

	mysqlAutoIncrementQuery = `SELECT table_name, '', auto_increment FROM information_schema.tables
		WHERE table_schema = ? AND auto_increment IS NOT NULL`
)

func (*MySQL) Name() string { return "mysql" }

func (*MySQL) Capabilities() Capabilities {
	return Capabilities{
		Schemas:                true,
		Triggers:               true,
		StoredProcedures:       true,
		IdentityColumns:        true,
		ReferentialConstraints: true,
		ValueConstraints:       true,
	}
}

func (*MySQL) ParserOptions() parser.Options {
	return parser.Options{
		BackslashEscaping: true,
		IdentifierQuote:   '`',
		CompoundBlocks:    true,
	}
}

func (*MySQL) Quote(name string) string {
	return utils.BacktickIdentifier(name)
}

func (*MySQL) Placeholder(int) string { return "?" }

// Open parses the DSN with the driver's own parser so the database name can
// serve as the default schema.
func (m *MySQL) Open(db config.Database) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(db.URL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid mysql dsn for database %s", db.Name)
	}

	m.schema = cfg.DBName

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create mysql connector for database %s", db.Name)
	}

	return sql.OpenDB(connector), nil
}

func (*MySQL) Prepare(context.Context, Querier) error { return nil }

func (m *MySQL) DefaultSchema(ctx context.Context, q Querier) (string, error) {
	if m.schema != "" {
		return m.schema, nil
	}

	return firstString(ctx, q, "SELECT COALESCE(DATABASE(), '')")
}

func (*MySQL) ListObjects(ctx context.Context, q Querier, schema string, kind ObjectKind) ([]Object, error) {
	query, ok := mysqlObjectQueries[kind]
	if !ok {
		return nil, errors.Errorf("mysql does not support listing %s objects", kind)
	}

	return queryObjects(ctx, q, query, schema)
}

func (m *MySQL) DropObjectSQL(schema string, kind ObjectKind, obj Object) string {
	return utils.NewSQLBuilder(m.Quote).Drop(kind.Keyword()).IfExists().QualifiedName(schema, obj.Name).String()
}

func (m *MySQL) CleanTablesSQL(schema string, tables []string) []string {
	stmts := make([]string, 0, len(tables))
	for _, table := range tables {
		stmts = append(stmts, deleteSQL(m.Quote, schema, table, ""))
	}

	return stmts
}

func (m *MySQL) DisableReferentialConstraints(ctx context.Context, q Querier, schema string, skip Filter) ([]string, error) {
	return m.dropConstraints(ctx, q, mysqlConstraintsQuery+"('FOREIGN KEY')", schema, skip)
}

func (m *MySQL) DisableValueConstraints(ctx context.Context, q Querier, schema string, skip Filter) ([]string, error) {
	stmts, err := m.dropConstraints(ctx, q, mysqlConstraintsQuery+"('UNIQUE', 'CHECK')", schema, skip)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, mysqlNotNullQuery, schema)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to execute query: %s", mysqlNotNullQuery)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var table, column, columnType string
		if err := rows.Scan(&table, &column, &columnType); err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}

		if skipped(skip, table) {
			continue
		}

		stmts = append(stmts, utils.NewSQLBuilder(m.Quote).
			Alter("TABLE").
			QualifiedName(schema, table).
			Raw("MODIFY").
			Name(column).
			Raw(columnType+" NULL").
			String())
	}

	return stmts, errors.Wrap(rows.Err(), "failed to read rows")
}

func (*MySQL) UpdateSequences(context.Context, Querier, string, int64) ([]string, error) {
	return nil, nil
}

func (m *MySQL) UpdateIdentityColumns(ctx context.Context, q Querier, schema string, lowest int64, skip Filter) ([]string, error) {
	counters, err := queryCounters(ctx, q, mysqlAutoIncrementQuery, schema)
	if err != nil {
		return nil, err
	}

	var stmts []string
	for _, c := range counters {
		if c.value >= lowest || skipped(skip, c.name) {
			continue
		}

		stmts = append(stmts, utils.NewSQLBuilder(m.Quote).
			Alter("TABLE").
			QualifiedName(schema, c.name).
			Raw("AUTO_INCREMENT = "+strconv.FormatInt(lowest, 10)).
			String())
	}

	return stmts, nil
}

func (m *MySQL) RegistryTableDDL(schema, table string) string {
	return "CREATE TABLE IF NOT EXISTS " + utils.QualifiedName(m.Quote, schema, table) + ` (
	file_name VARCHAR(150),
	file_last_modified_at BIGINT,
	checksum VARCHAR(50),
	executed_at BIGINT,
	finished_at BIGINT,
	succeeded BIGINT
)`
}

func (m *MySQL) DeleteSQL(schema, table, where string) string {
	return deleteSQL(m.Quote, schema, table, where)
}

func (m *MySQL) dropConstraints(ctx context.Context, q Querier, query, schema string, skip Filter) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, schema)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to execute query: %s", query)
	}
	defer func() { _ = rows.Close() }()

	var stmts []string
	for rows.Next() {
		var table, name, kind string
		if err := rows.Scan(&table, &name, &kind); err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}

		if skipped(skip, table) {
			continue
		}

		stmts = append(stmts, utils.NewSQLBuilder(m.Quote).
			Alter("TABLE").
			QualifiedName(schema, table).
			Raw(mysqlConstraintDrops[kind]).
			Name(name).
			String())
	}

	return stmts, errors.Wrap(rows.Err(), "failed to read rows")
}
