package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"github.com/pseudomuto/dbmaint/pkg/consts"
	"github.com/pseudomuto/dbmaint/pkg/database"
)

type (
	// ExecutedScript is one row of the executed scripts table.
	ExecutedScript struct {
		// FileName is the script path relative to its location.
		FileName string

		// FileLastModifiedAt is the script's modification time in unix
		// milliseconds when it was executed.
		FileLastModifiedAt int64

		// Checksum is the h1 checksum of the executed content.
		Checksum string

		// ExecutedAt and FinishedAt are unix milliseconds.
		ExecutedAt int64
		FinishedAt int64

		// Succeeded is false when the script failed.
		Succeeded bool
	}

	// Config configures a Registry.
	Config struct {
		// Database holds the table, normally the default database.
		Database *database.Database

		// Schema defaults to the database's default schema.
		Schema string

		// Table defaults to consts.DefaultRegistryTable.
		Table string

		// AutoCreate creates the table when it does not exist.
		AutoCreate bool

		Logger *slog.Logger
	}

	// Registry reads and writes the executed scripts table. It never reads
	// script content; checksums are supplied by the caller.
	Registry struct {
		db         *database.Database
		schema     string
		table      string
		autoCreate bool
		logger     *slog.Logger
	}

	// RegistryError reports a missing or unreadable executed scripts table.
	RegistryError struct {
		Table string
		Err   error
	}
)

// ErrTableMissing is wrapped by a RegistryError when the table does not exist
// and auto-create is disabled.
var ErrTableMissing = errors.New("executed scripts table does not exist")

const columns = "file_name, file_last_modified_at, checksum, executed_at, finished_at, succeeded"

func (e *RegistryError) Error() string {
	return fmt.Sprintf("registry table %s: %v", e.Table, e.Err)
}

func (e *RegistryError) Unwrap() error {
	return e.Err
}

// New creates a Registry for the configured table.
func New(cfg Config) *Registry {
	r := &Registry{
		db:         cfg.Database,
		schema:     cfg.Schema,
		table:      cfg.Table,
		autoCreate: cfg.AutoCreate,
		logger:     cfg.Logger,
	}

	if r.schema == "" {
		r.schema = cfg.Database.DefaultSchema()
	}
	if r.table == "" {
		r.table = consts.DefaultRegistryTable
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}

	return r
}

// Schema returns the schema holding the table.
func (r *Registry) Schema() string {
	return r.schema
}

// Table returns the table name.
func (r *Registry) Table() string {
	return r.table
}

// QualifiedTable returns "schema.table", the form used in preserve lists.
func (r *Registry) QualifiedTable() string {
	if r.schema == "" {
		return r.table
	}

	return r.schema + "." + r.table
}

// Exists reports whether the table exists.
func (r *Registry) Exists(ctx context.Context) (bool, error) {
	tables, err := r.db.Dialect.ListObjects(ctx, r.db.DB, r.schema, database.Table)
	if err != nil {
		return false, r.wrap(err)
	}

	for _, t := range tables {
		if strings.EqualFold(t.Name, r.table) {
			return true, nil
		}
	}

	return false, nil
}

// Init makes sure the table exists. A missing table is created when
// auto-create is enabled, otherwise a *RegistryError wrapping ErrTableMissing
// is returned.
func (r *Registry) Init(ctx context.Context) error {
	exists, err := r.Exists(ctx)
	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	if !r.autoCreate {
		return r.wrap(ErrTableMissing)
	}

	r.logger.Info("Creating executed scripts table", "table", r.QualifiedTable())
	if err := r.db.ExecuteStatement(ctx, r.db.Dialect.RegistryTableDDL(r.schema, r.table)); err != nil {
		return r.wrap(err)
	}

	return nil
}

// IsEmpty reports whether no script has been recorded yet. A missing table
// counts as empty.
func (r *Registry) IsEmpty(ctx context.Context) (bool, error) {
	exists, err := r.Exists(ctx)
	if err != nil || !exists {
		return true, err
	}

	records, err := r.Records(ctx)
	if err != nil {
		return false, err
	}

	return len(records) == 0, nil
}

// Records returns every record ordered by execution time then file name.
func (r *Registry) Records(ctx context.Context) ([]*ExecutedScript, error) {
	return r.query(ctx, "")
}

// ErrorRecords returns the records of failed scripts.
func (r *Registry) ErrorRecords(ctx context.Context) ([]*ExecutedScript, error) {
	return r.query(ctx, "WHERE succeeded = 0")
}

// Record stores the outcome of executing a script, replacing any earlier
// record with the same file name.
func (r *Registry) Record(ctx context.Context, rec *ExecutedScript) error {
	if err := r.Remove(ctx, rec.FileName); err != nil {
		return err
	}

	values := make([]string, 6)
	for i := range values {
		values[i] = r.db.Dialect.Placeholder(i + 1)
	}

	stmt := "INSERT INTO " + r.qualifiedName() + " (" + columns + ") VALUES (" + strings.Join(values, ", ") + ")"

	succeeded := int64(0)
	if rec.Succeeded {
		succeeded = 1
	}

	if _, err := r.db.DB.ExecContext(ctx, stmt,
		rec.FileName,
		rec.FileLastModifiedAt,
		rec.Checksum,
		rec.ExecutedAt,
		rec.FinishedAt,
		succeeded,
	); err != nil {
		return r.wrap(errors.Wrapf(err, "failed to record script %s", rec.FileName))
	}

	r.logger.Debug("Recorded script", "script", rec.FileName, "succeeded", rec.Succeeded)
	return nil
}

// Remove deletes the record of the named script.
func (r *Registry) Remove(ctx context.Context, fileName string) error {
	stmt := r.db.Dialect.DeleteSQL(r.schema, r.table, "file_name = "+r.db.Dialect.Placeholder(1))
	if _, err := r.db.DB.ExecContext(ctx, stmt, fileName); err != nil {
		return r.wrap(errors.Wrapf(err, "failed to remove record of %s", fileName))
	}

	return nil
}

// Clear deletes every record.
func (r *Registry) Clear(ctx context.Context) error {
	if _, err := r.db.DB.ExecContext(ctx, r.db.Dialect.DeleteSQL(r.schema, r.table, "")); err != nil {
		return r.wrap(errors.Wrap(err, "failed to clear records"))
	}

	return nil
}

// MarkErrorScriptsAsSuccessful flips every failed record to successful
// without executing anything. It returns the updated records.
func (r *Registry) MarkErrorScriptsAsSuccessful(ctx context.Context) ([]*ExecutedScript, error) {
	records, err := r.ErrorRecords(ctx)
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		rec.Succeeded = true
		if err := r.Record(ctx, rec); err != nil {
			return nil, err
		}
	}

	return records, nil
}

// RemoveErrorScripts deletes every failed record so the scripts run again. It
// returns the removed records.
func (r *Registry) RemoveErrorScripts(ctx context.Context) ([]*ExecutedScript, error) {
	records, err := r.ErrorRecords(ctx)
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		if err := r.Remove(ctx, rec.FileName); err != nil {
			return nil, err
		}
	}

	return records, nil
}

func (r *Registry) query(ctx context.Context, where string) ([]*ExecutedScript, error) {
	stmt := "SELECT " + columns + " FROM " + r.qualifiedName()
	if where != "" {
		stmt += " " + where
	}
	stmt += " ORDER BY executed_at, file_name"

	rows, err := r.db.DB.QueryContext(ctx, stmt)
	if err != nil {
		return nil, r.wrap(errors.Wrap(err, "failed to read records"))
	}
	defer func() { _ = rows.Close() }()

	var records []*ExecutedScript
	for rows.Next() {
		var (
			rec       ExecutedScript
			succeeded int64
		)

		if err := rows.Scan(
			&rec.FileName,
			&rec.FileLastModifiedAt,
			&rec.Checksum,
			&rec.ExecutedAt,
			&rec.FinishedAt,
			&succeeded,
		); err != nil {
			return nil, r.wrap(errors.Wrap(err, "failed to scan record"))
		}

		rec.Succeeded = succeeded != 0
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, r.wrap(errors.Wrap(err, "failed to read records"))
	}

	return records, nil
}

func (r *Registry) qualifiedName() string {
	if r.schema == "" {
		return r.db.Dialect.Quote(r.table)
	}

	return r.db.Dialect.Quote(r.schema) + "." + r.db.Dialect.Quote(r.table)
}

func (r *Registry) wrap(err error) error {
	return &RegistryError{Table: r.QualifiedTable(), Err: err}
}
