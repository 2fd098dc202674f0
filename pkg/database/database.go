package database

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"github.com/pseudomuto/dbmaint/pkg/config"
	"github.com/pseudomuto/dbmaint/pkg/parser"
)

type (
	// Database is one connected target database.
	Database struct {
		// Name is the configured database name.
		Name string

		Dialect Dialect
		DB      *sql.DB

		// Schemas are the managed schemas, the default schema first.
		Schemas []string

		// Enabled is false for databases excluded from the run.
		Enabled bool

		Logger *slog.Logger

		backslash *bool
		separator rune
	}

	// Preserve is a set of objects that clear and clean never touch. Entries
	// are "schema.object" or "object", compared case-insensitively.
	Preserve map[string]bool
)

// clearOrder drops dependants before the objects they depend on.
var clearOrder = []ObjectKind{View, MaterializedView, Trigger, Table, Sequence, Function, Procedure, Type}

// NewPreserve builds a Preserve set from names.
func NewPreserve(names ...string) Preserve {
	p := make(Preserve, len(names))
	for _, name := range names {
		p[strings.ToLower(name)] = true
	}

	return p
}

// Contains reports whether schema.name is preserved.
func (p Preserve) Contains(schema, name string) bool {
	name = strings.ToLower(name)
	return p[name] || p[strings.ToLower(schema)+"."+name]
}

// With returns a copy of p that also holds names.
func (p Preserve) With(names ...string) Preserve {
	out := make(Preserve, len(p)+len(names))
	for k := range p {
		out[k] = true
	}
	for _, name := range names {
		out[strings.ToLower(name)] = true
	}

	return out
}

// DefaultSchema returns the first managed schema.
func (d *Database) DefaultSchema() string {
	if len(d.Schemas) == 0 {
		return ""
	}

	return d.Schemas[0]
}

// ParserOptions returns the dialect parser settings with the configured
// backslash and separator overrides applied.
func (d *Database) ParserOptions() parser.Options {
	opts := d.Dialect.ParserOptions()
	if d.backslash != nil {
		opts.BackslashEscaping = *d.backslash
	}
	if d.separator != 0 {
		opts.Separator = d.separator
	}

	return opts
}

// ExecuteStatement executes one parsed statement.
func (d *Database) ExecuteStatement(ctx context.Context, stmt string) error {
	d.logger().Debug("Executing statement", "database", d.Name, "sql", stmt)
	if _, err := d.DB.ExecContext(ctx, stmt); err != nil {
		return errors.Wrapf(err, "failed to execute statement on database %s", d.Name)
	}

	return nil
}

// DropAllObjects drops every object of schema that is not preserved.
// Dialects without CASCADE get their foreign keys removed first.
func (d *Database) DropAllObjects(ctx context.Context, schema string, preserve Preserve) error {
	caps := d.Dialect.Capabilities()
	if !caps.Cascade && caps.ReferentialConstraints {
		if err := d.DisableReferentialConstraints(ctx, schema, preserve); err != nil {
			return err
		}
	}

	for _, kind := range clearOrder {
		if !caps.Supports(kind) {
			d.logger().Debug("Skipping unsupported object kind", "database", d.Name, "kind", kind.String())
			continue
		}

		objects, err := d.Dialect.ListObjects(ctx, d.DB, schema, kind)
		if err != nil {
			return errors.Wrapf(err, "failed to list %s objects in %s", kind, schema)
		}

		for _, obj := range objects {
			if preserve.Contains(schema, obj.Name) {
				continue
			}

			if err := d.ExecuteStatement(ctx, d.Dialect.DropObjectSQL(schema, kind, obj)); err != nil {
				return errors.Wrapf(err, "failed to drop %s %s.%s", kind, schema, obj.Name)
			}
		}
	}

	return nil
}

// CleanSchema deletes all rows of every table in schema that is not
// preserved.
func (d *Database) CleanSchema(ctx context.Context, schema string, preserve Preserve) error {
	objects, err := d.Dialect.ListObjects(ctx, d.DB, schema, Table)
	if err != nil {
		return errors.Wrapf(err, "failed to list tables in %s", schema)
	}

	var tables []string
	for _, obj := range objects {
		if !preserve.Contains(schema, obj.Name) {
			tables = append(tables, obj.Name)
		}
	}

	return d.execAll(ctx, d.Dialect.CleanTablesSQL(schema, tables))
}

// DisableReferentialConstraints removes foreign keys from the tables of
// schema that are not preserved.
func (d *Database) DisableReferentialConstraints(ctx context.Context, schema string, preserve Preserve) error {
	if !d.Dialect.Capabilities().ReferentialConstraints {
		d.logger().Debug("Referential constraints not supported", "database", d.Name)
		return nil
	}

	stmts, err := d.Dialect.DisableReferentialConstraints(ctx, d.DB, schema, preserveFilter(schema, preserve))
	if err != nil {
		return errors.Wrapf(err, "failed to inspect referential constraints in %s", schema)
	}

	return d.execAll(ctx, stmts)
}

// DisableValueConstraints removes not null, check and unique constraints
// from the tables of schema that are not preserved.
func (d *Database) DisableValueConstraints(ctx context.Context, schema string, preserve Preserve) error {
	if !d.Dialect.Capabilities().ValueConstraints {
		d.logger().Debug("Value constraints not supported", "database", d.Name)
		return nil
	}

	stmts, err := d.Dialect.DisableValueConstraints(ctx, d.DB, schema, preserveFilter(schema, preserve))
	if err != nil {
		return errors.Wrapf(err, "failed to inspect value constraints in %s", schema)
	}

	return d.execAll(ctx, stmts)
}

// ResetSequences raises every sequence of schema below value to value.
func (d *Database) ResetSequences(ctx context.Context, schema string, value int64) error {
	if !d.Dialect.Capabilities().Sequences {
		d.logger().Debug("Sequences not supported", "database", d.Name)
		return nil
	}

	stmts, err := d.Dialect.UpdateSequences(ctx, d.DB, schema, value)
	if err != nil {
		return errors.Wrapf(err, "failed to inspect sequences in %s", schema)
	}

	return d.execAll(ctx, stmts)
}

// ResetIdentityColumns raises every identity column of schema below value to
// value. Preserved tables are left alone.
func (d *Database) ResetIdentityColumns(ctx context.Context, schema string, value int64, preserve Preserve) error {
	if !d.Dialect.Capabilities().IdentityColumns {
		d.logger().Debug("Identity columns not supported", "database", d.Name)
		return nil
	}

	stmts, err := d.Dialect.UpdateIdentityColumns(ctx, d.DB, schema, value, preserveFilter(schema, preserve))
	if err != nil {
		return errors.Wrapf(err, "failed to inspect identity columns in %s", schema)
	}

	return d.execAll(ctx, stmts)
}

// Close closes the connection pool.
func (d *Database) Close() error {
	if d.DB == nil {
		return nil
	}

	return d.DB.Close()
}

func (d *Database) execAll(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if err := d.ExecuteStatement(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}

func (d *Database) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}

	return d.Logger
}

func preserveFilter(schema string, preserve Preserve) Filter {
	return func(table string) bool {
		return preserve.Contains(schema, table)
	}
}

// Connect opens the database described by cfg and resolves its schemas.
func Connect(ctx context.Context, cfg config.Database, logger *slog.Logger) (*Database, error) {
	dialect, err := NewDialect(cfg.Dialect)
	if err != nil {
		return nil, errors.Wrapf(err, "database %s", cfg.Name)
	}

	conn, err := dialect.Open(cfg)
	if err != nil {
		return nil, err
	}

	db := &Database{
		Name:      cfg.Name,
		Dialect:   dialect,
		DB:        conn,
		Schemas:   cfg.Schemas,
		Enabled:   cfg.Enabled(),
		Logger:    logger,
		backslash: cfg.BackslashEscaping,
		separator: cfg.Separator(),
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, errors.Wrapf(err, "failed to connect to database %s", cfg.Name)
	}

	if err := dialect.Prepare(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, errors.Wrapf(err, "failed to inspect database %s", cfg.Name)
	}

	if len(db.Schemas) == 0 {
		schema, err := dialect.DefaultSchema(ctx, conn)
		if err != nil {
			_ = conn.Close()
			return nil, errors.Wrapf(err, "failed to determine default schema of database %s", cfg.Name)
		}
		db.Schemas = []string{schema}
	}

	return db, nil
}
