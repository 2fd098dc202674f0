package maintainer

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/pseudomuto/dbmaint/pkg/consts"
	"github.com/pseudomuto/dbmaint/pkg/database"
	"github.com/pseudomuto/dbmaint/pkg/executor"
	"github.com/pseudomuto/dbmaint/pkg/registry"
	"github.com/pseudomuto/dbmaint/pkg/repository"
)

type (
	// Config contains the collaborators and options of a Maintainer.
	Config struct {
		// Databases are the configured target databases.
		Databases *database.Databases

		// Registry stores the executed scripts.
		Registry *registry.Registry

		// Repository is the script catalog. It is only required by
		// UpdateDatabase and MarkDatabaseAsUpToDate.
		Repository *repository.Repository

		Policy Policy

		// CleanDB deletes all data before scripts are executed.
		CleanDB bool

		// DisableConstraints removes constraints after a successful update.
		DisableConstraints bool

		// UpdateSequences raises sequences and identity columns after a
		// successful update.
		UpdateSequences     bool
		LowestSequenceValue int64

		// Preserve names objects that clear and clean never touch. The
		// executed scripts table is always preserved.
		Preserve []string

		// Parameters are substituted in script statements.
		Parameters map[string]string

		// Clock defaults to time.Now.
		Clock func() time.Time

		Logger *slog.Logger
	}

	// Maintainer keeps a set of databases consistent with a script catalog.
	//
	// Each operation works on one logical run against exclusive connections.
	// No locking is done; only one maintainer may run against a database at a
	// time.
	//
	// Example usage:
	//
	//	m := maintainer.New(maintainer.Config{
	//		Databases:  dbs,
	//		Registry:   reg,
	//		Repository: repo,
	//		Policy:     maintainer.Policy{UseLastModifiedDates: true},
	//	})
	//
	//	result, err := m.UpdateDatabase(ctx, false)
	//	if err != nil {
	//		return err
	//	}
	//
	//	return maintainer.WriteReport(os.Stdout, result.Plan)
	Maintainer struct {
		databases  *database.Databases
		registry   *registry.Registry
		repository *repository.Repository
		policy     Policy
		config     Config
		now        func() time.Time
		logger     *slog.Logger
	}

	// Result is the outcome of an update run.
	Result struct {
		// RunID identifies the run in log output.
		RunID string

		// DryRun is set when nothing was executed or recorded.
		DryRun bool

		Plan *Plan

		// Executions hold one result per executed script, in order. The last
		// one is the failing script when the run failed.
		Executions []*executor.ExecutionResult

		// Skipped are pending scripts targeting a disabled database.
		Skipped []string
	}
)

// New creates a Maintainer.
func New(cfg Config) *Maintainer {
	m := &Maintainer{
		databases:  cfg.Databases,
		registry:   cfg.Registry,
		repository: cfg.Repository,
		policy:     cfg.Policy,
		config:     cfg,
		now:        cfg.Clock,
		logger:     cfg.Logger,
	}

	if m.databases != nil && m.policy.DisabledDatabases == nil {
		for _, db := range m.databases.All() {
			if !db.Enabled {
				m.policy.DisabledDatabases = append(m.policy.DisabledDatabases, db.Name)
			}
		}
	}

	if m.now == nil {
		m.now = time.Now
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}

	return m
}

// UpdateDatabase brings the databases up to date with the catalog.
//
// With dryRun set the run stops after analysis: the returned result holds the
// plan and nothing is executed or recorded. Otherwise the registry table is
// created when needed, the databases are recreated when the plan requires it,
// and the pending scripts execute in order until the first failure. The
// failing script is recorded as failed and its error returned together with
// the result.
func (m *Maintainer) UpdateDatabase(ctx context.Context, dryRun bool) (*Result, error) {
	if m.repository == nil {
		return nil, errors.New("a script repository is required to update the database")
	}

	result := &Result{RunID: uuid.NewString(), DryRun: dryRun}
	logger := m.logger.With("run_id", result.RunID)

	records, err := m.records(ctx, dryRun)
	if err != nil {
		return nil, err
	}

	logger.Info("Analyzing database", "scripts", m.repository.Len(), "records", len(records))

	plan, err := Analyze(m.repository.Scripts(), records, m.policy)
	if err != nil {
		return nil, err
	}
	result.Plan = plan

	for _, s := range plan.Skipped() {
		logger.Info("Skipping script of disabled database", "script", s.Name, "database", s.TargetDatabase)
		result.Skipped = append(result.Skipped, s.Name)
	}

	if dryRun {
		logger.Info("Dry run complete", "pending", len(plan.Pending()), "from_scratch", plan.FromScratch)
		return result, nil
	}

	if plan.FromScratch {
		for _, reason := range plan.FromScratchReasons {
			logger.Warn("Recreating database from scratch", "script", reason.Script, "reason", string(reason.Reason))
		}

		if err := m.databases.Clear(ctx, m.preserve()); err != nil {
			return result, errors.Wrap(err, "failed to clear databases")
		}
		if err := m.registry.Clear(ctx); err != nil {
			return result, err
		}
	}

	for _, rec := range plan.Deleted {
		logger.Info("Removing deleted script from registry", "script", rec.FileName)
		if err := m.registry.Remove(ctx, rec.FileName); err != nil {
			return result, err
		}
	}

	for _, rec := range plan.Refreshed {
		if err := m.registry.Record(ctx, rec); err != nil {
			return result, err
		}
	}

	if plan.UpToDate() {
		logger.Info("Database is up to date")
		return result, nil
	}

	if m.config.CleanDB && !plan.FromScratch {
		if err := m.databases.Clean(ctx, m.preserve()); err != nil {
			return result, errors.Wrap(err, "failed to clean databases")
		}
	}

	var tasks []executor.Task
	for _, s := range plan.Pending() {
		db, enabled, err := m.databases.Get(s.TargetDatabase)
		if err != nil {
			return result, errors.Wrapf(err, "script %s", s.Name)
		}

		if !enabled {
			logger.Info("Skipping script of disabled database", "script", s.Name, "database", db.Name)
			result.Skipped = append(result.Skipped, s.Name)
			continue
		}

		tasks = append(tasks, executor.Task{Script: s, Database: db})
	}

	exec := executor.New(executor.Config{
		Recorder:   m.registry,
		Parameters: m.config.Parameters,
		Clock:      m.now,
		Logger:     logger,
	})

	result.Executions = exec.ExecuteAll(ctx, tasks)
	if n := len(result.Executions); n > 0 && result.Executions[n-1].Status == executor.StatusFailed {
		return result, result.Executions[n-1].Error
	}

	logger.Info("Database updated", "executed", len(result.Executions), "skipped", len(result.Skipped))

	if m.config.DisableConstraints {
		if err := m.DisableConstraints(ctx); err != nil {
			return result, err
		}
	}

	if m.config.UpdateSequences {
		if err := m.UpdateSequences(ctx); err != nil {
			return result, err
		}
	}

	return result, nil
}

// MarkDatabaseAsUpToDate replaces the registry content with a successful
// record for every script of the catalog without executing anything. It
// returns the number of scripts recorded.
func (m *Maintainer) MarkDatabaseAsUpToDate(ctx context.Context) (int, error) {
	if m.repository == nil {
		return 0, errors.New("a script repository is required to mark the database as up to date")
	}

	if err := m.registry.Init(ctx); err != nil {
		return 0, err
	}

	if err := m.registry.Clear(ctx); err != nil {
		return 0, err
	}

	now := m.now().UnixMilli()
	for _, s := range m.repository.Scripts() {
		checksum, err := s.Checksum()
		if err != nil {
			return 0, err
		}

		rec := &registry.ExecutedScript{
			FileName:           s.Name,
			FileLastModifiedAt: s.ModifiedAt,
			Checksum:           checksum,
			ExecutedAt:         now,
			FinishedAt:         now,
			Succeeded:          true,
		}
		if err := m.registry.Record(ctx, rec); err != nil {
			return 0, err
		}
	}

	m.logger.Info("Marked database as up to date", "scripts", m.repository.Len())
	return m.repository.Len(), nil
}

// MarkErrorScriptPerformed records the failed scripts as successful. Use it
// after the failed statements were applied by hand.
func (m *Maintainer) MarkErrorScriptPerformed(ctx context.Context) ([]*registry.ExecutedScript, error) {
	if err := m.registry.Init(ctx); err != nil {
		return nil, err
	}

	marked, err := m.registry.MarkErrorScriptsAsSuccessful(ctx)
	if err != nil {
		return nil, err
	}

	if len(marked) == 0 {
		return nil, ErrNoErrorScripts
	}

	for _, rec := range marked {
		m.logger.Info("Marked script as performed", "script", rec.FileName)
	}

	return marked, nil
}

// MarkErrorScriptReverted removes the failed scripts from the registry so the
// next update executes them again. Use it after the changes of the failed
// script were rolled back by hand.
func (m *Maintainer) MarkErrorScriptReverted(ctx context.Context) ([]*registry.ExecutedScript, error) {
	if err := m.registry.Init(ctx); err != nil {
		return nil, err
	}

	removed, err := m.registry.RemoveErrorScripts(ctx)
	if err != nil {
		return nil, err
	}

	if len(removed) == 0 {
		return nil, ErrNoErrorScripts
	}

	for _, rec := range removed {
		m.logger.Info("Marked script as reverted", "script", rec.FileName)
	}

	return removed, nil
}

// ClearDatabase drops every object of the enabled databases except the
// preserved ones and empties the registry.
func (m *Maintainer) ClearDatabase(ctx context.Context) error {
	if err := m.databases.Clear(ctx, m.preserve()); err != nil {
		return errors.Wrap(err, "failed to clear databases")
	}

	exists, err := m.registry.Exists(ctx)
	if err != nil || !exists {
		return err
	}

	return m.registry.Clear(ctx)
}

// CleanDatabase deletes the data of every table except the preserved ones and
// the executed scripts table.
func (m *Maintainer) CleanDatabase(ctx context.Context) error {
	return errors.Wrap(m.databases.Clean(ctx, m.preserve()), "failed to clean databases")
}

// DisableConstraints removes referential and value constraints from every
// table of the enabled databases.
func (m *Maintainer) DisableConstraints(ctx context.Context) error {
	return errors.Wrap(m.databases.DisableConstraints(ctx, m.preserve()), "failed to disable constraints")
}

// UpdateSequences raises sequences and identity columns below the configured
// lowest value.
func (m *Maintainer) UpdateSequences(ctx context.Context) error {
	return errors.Wrap(
		m.databases.UpdateSequences(ctx, m.lowestSequenceValue(), m.preserve()),
		"failed to update sequences",
	)
}

func (m *Maintainer) records(ctx context.Context, dryRun bool) ([]*registry.ExecutedScript, error) {
	if !dryRun {
		if err := m.registry.Init(ctx); err != nil {
			return nil, err
		}

		return m.registry.Records(ctx)
	}

	exists, err := m.registry.Exists(ctx)
	if err != nil || !exists {
		return nil, err
	}

	return m.registry.Records(ctx)
}

func (m *Maintainer) preserve() database.Preserve {
	return database.NewPreserve(m.config.Preserve...).With(m.registry.QualifiedTable())
}

func (m *Maintainer) lowestSequenceValue() int64 {
	if m.config.LowestSequenceValue <= 0 {
		return consts.DefaultLowestSequenceValue
	}

	return m.config.LowestSequenceValue
}
