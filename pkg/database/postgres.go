package database

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pseudomuto/dbmaint/pkg/config"
	"github.com/pseudomuto/dbmaint/pkg/parser"
	"github.com/pseudomuto/dbmaint/pkg/utils"
)

// Postgres is the PostgreSQL dialect.
type Postgres struct{}

var postgresObjectQueries = map[ObjectKind]string{
	Table:            `SELECT table_name FROM information_schema.tables WHERE table_schema = $1 AND table_type = 'BASE TABLE'`,
	View:             `SELECT table_name FROM information_schema.views WHERE table_schema = $1`,
	MaterializedView: `SELECT matviewname FROM pg_matviews WHERE schemaname = $1`,
	Sequence:         `SELECT sequence_name FROM information_schema.sequences WHERE sequence_schema = $1`,
	Trigger:          `SELECT DISTINCT trigger_name, event_object_table FROM information_schema.triggers WHERE trigger_schema = $1`,
	Function:         postgresRoutineQuery + ` AND p.prokind = 'f'`,
	Procedure:        postgresRoutineQuery + ` AND p.prokind = 'p'`,
	Type: `SELECT t.typname FROM pg_type t JOIN pg_namespace n ON n.oid = t.typnamespace
		WHERE n.nspname = $1 AND t.typtype IN ('c', 'e')
		AND (t.typrelid = 0 OR (SELECT c.relkind FROM pg_class c WHERE c.oid = t.typrelid) = 'c')`,
}

// Routines owned by an extension are dropped with the extension.
const postgresRoutineQuery = `SELECT p.proname, '', pg_get_function_identity_arguments(p.oid)
	FROM pg_proc p JOIN pg_namespace n ON n.oid = p.pronamespace
	WHERE n.nspname = $1
	AND NOT EXISTS (SELECT 1 FROM pg_depend d WHERE d.objid = p.oid AND d.deptype = 'e')`

const (
	postgresForeignKeysQuery = `SELECT table_name, constraint_name FROM information_schema.table_constraints
		WHERE table_schema = $1 AND constraint_type = 'FOREIGN KEY'`

	postgresValueConstraintsQuery = `SELECT cl.relname, con.conname FROM pg_constraint con
		JOIN pg_class cl ON cl.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = cl.relnamespace
		WHERE n.nspname = $1 AND con.contype IN ('c', 'u')`

	postgresNotNullQuery = `SELECT c.table_name, c.column_name FROM information_schema.columns c
		JOIN information_schema.tables t ON t.table_schema = c.table_schema AND t.table_name = c.table_name
		WHERE c.table_schema = $1 AND t.table_type = 'BASE TABLE' AND c.is_nullable = 'NO'
		AND NOT EXISTS (
			SELECT 1 FROM information_schema.key_column_usage k
			JOIN information_schema.table_constraints tc
				ON tc.constraint_schema = k.constraint_schema AND tc.constraint_name = k.constraint_name
			WHERE tc.constraint_type = 'PRIMARY KEY'
			AND k.table_schema = c.table_schema AND k.table_name = c.table_name AND k.column_name = c.column_name
		)`

	postgresSequencesQuery = `SELECT sequencename, '', COALESCE(last_value, start_value) FROM pg_sequences WHERE schemaname = $1`
)

func (*Postgres) Name() string { return "postgres" }

func (*Postgres) Capabilities() Capabilities {
	return Capabilities{
		Schemas:                true,
		Cascade:                true,
		Sequences:              true,
		Triggers:               true,
		Types:                  true,
		StoredProcedures:       true,
		MaterializedViews:      true,
		ReferentialConstraints: true,
		ValueConstraints:       true,
	}
}

func (*Postgres) ParserOptions() parser.Options {
	return parser.Options{DollarQuoting: true}
}

func (*Postgres) Quote(name string) string {
	return utils.DoubleQuoteIdentifier(name)
}

func (*Postgres) Placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func (*Postgres) Open(db config.Database) (*sql.DB, error) {
	connector, err := pq.NewConnector(db.URL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid postgres url for database %s", db.Name)
	}

	return sql.OpenDB(connector), nil
}

func (*Postgres) Prepare(context.Context, Querier) error { return nil }

func (*Postgres) DefaultSchema(ctx context.Context, q Querier) (string, error) {
	return firstString(ctx, q, "SELECT current_schema()")
}

func (*Postgres) ListObjects(ctx context.Context, q Querier, schema string, kind ObjectKind) ([]Object, error) {
	query, ok := postgresObjectQueries[kind]
	if !ok {
		return nil, errors.Errorf("postgres does not support listing %s objects", kind)
	}

	return queryObjects(ctx, q, query, schema)
}

func (p *Postgres) DropObjectSQL(schema string, kind ObjectKind, obj Object) string {
	b := utils.NewSQLBuilder(p.Quote).Drop(kind.Keyword()).IfExists()

	switch kind {
	case Trigger:
		b.Name(obj.Name).On(schema, obj.Parent)
	case Function, Procedure:
		b.Raw(utils.QualifiedName(p.Quote, schema, obj.Name) + "(" + obj.Signature + ")")
	default:
		b.QualifiedName(schema, obj.Name)
	}

	return b.Raw("CASCADE").String()
}

func (p *Postgres) CleanTablesSQL(schema string, tables []string) []string {
	if len(tables) == 0 {
		return nil
	}

	return []string{utils.NewSQLBuilder(p.Quote).Truncate("TABLE").QualifiedNames(schema, tables...).String()}
}

func (p *Postgres) DisableReferentialConstraints(ctx context.Context, q Querier, schema string, skip Filter) ([]string, error) {
	return p.dropConstraints(ctx, q, postgresForeignKeysQuery, schema, skip)
}

func (p *Postgres) DisableValueConstraints(ctx context.Context, q Querier, schema string, skip Filter) ([]string, error) {
	stmts, err := p.dropConstraints(ctx, q, postgresValueConstraintsQuery, schema, skip)
	if err != nil {
		return nil, err
	}

	columns, err := queryPairs(ctx, q, postgresNotNullQuery, schema)
	if err != nil {
		return nil, err
	}

	for _, c := range columns {
		if skipped(skip, c[0]) {
			continue
		}

		stmts = append(stmts, utils.NewSQLBuilder(p.Quote).
			Alter("TABLE").
			QualifiedName(schema, c[0]).
			Raw("ALTER COLUMN").
			Name(c[1]).
			Raw("DROP NOT NULL").
			String())
	}

	return stmts, nil
}

func (p *Postgres) UpdateSequences(ctx context.Context, q Querier, schema string, lowest int64) ([]string, error) {
	counters, err := queryCounters(ctx, q, postgresSequencesQuery, schema)
	if err != nil {
		return nil, err
	}

	var stmts []string
	for _, c := range counters {
		if c.value >= lowest {
			continue
		}

		name := utils.EscapeString(utils.QualifiedName(p.Quote, schema, c.name))
		stmts = append(stmts, "SELECT setval("+name+", "+strconv.FormatInt(lowest, 10)+", false)")
	}

	return stmts, nil
}

func (*Postgres) UpdateIdentityColumns(context.Context, Querier, string, int64, Filter) ([]string, error) {
	return nil, nil
}

func (p *Postgres) RegistryTableDDL(schema, table string) string {
	return "CREATE TABLE IF NOT EXISTS " + utils.QualifiedName(p.Quote, schema, table) + ` (
	file_name VARCHAR(150),
	file_last_modified_at BIGINT,
	checksum VARCHAR(50),
	executed_at BIGINT,
	finished_at BIGINT,
	succeeded BIGINT
)`
}

func (p *Postgres) DeleteSQL(schema, table, where string) string {
	return deleteSQL(p.Quote, schema, table, where)
}

func (p *Postgres) dropConstraints(ctx context.Context, q Querier, query, schema string, skip Filter) ([]string, error) {
	constraints, err := queryPairs(ctx, q, query, schema)
	if err != nil {
		return nil, err
	}

	var stmts []string
	for _, c := range constraints {
		if skipped(skip, c[0]) {
			continue
		}

		stmts = append(stmts, utils.NewSQLBuilder(p.Quote).
			Alter("TABLE").
			QualifiedName(schema, c[0]).
			Raw("DROP CONSTRAINT IF EXISTS").
			Name(c[1]).
			Raw("CASCADE").
			String())
	}

	return stmts, nil
}

func deleteSQL(quote utils.Quoter, schema, table, where string) string {
	b := utils.NewSQLBuilder(quote).Delete().QualifiedName(schema, table)
	if where != "" {
		b.Raw("WHERE " + where)
	}

	return b.String()
}

func firstString(ctx context.Context, q Querier, query string) (string, error) {
	values, err := queryStrings(ctx, q, query)
	if err != nil {
		return "", err
	}

	if len(values) == 0 {
		return "", errors.Errorf("query returned no rows: %s", query)
	}

	return values[0], nil
}
