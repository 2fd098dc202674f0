package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/pseudomuto/dbmaint/pkg/parser"
	"github.com/pseudomuto/dbmaint/pkg/registry"
	"github.com/pseudomuto/dbmaint/pkg/script"
)

type (
	// Database is the target a script's statements are executed against.
	// *database.Database satisfies it.
	Database interface {
		ExecuteStatement(ctx context.Context, stmt string) error
		ParserOptions() parser.Options
	}

	// Recorder persists the outcome of an executed script. *registry.Registry
	// satisfies it.
	Recorder interface {
		Record(ctx context.Context, rec *registry.ExecutedScript) error
	}

	// Executor runs scripts statement by statement and records every outcome.
	//
	// A script is parsed completely before its first statement is executed so
	// an unterminated literal never leaves a script half applied. On the first
	// failing statement the script is recorded as failed and the error is
	// returned as a *ScriptExecutionError.
	//
	// Example usage:
	//
	//	exec := executor.New(executor.Config{
	//		Recorder:   reg,
	//		Parameters: cfg.Scripts.Parameters,
	//	})
	//
	//	results := exec.ExecuteAll(ctx, []executor.Task{{Script: s, Database: db}})
	//	for _, result := range results {
	//		fmt.Printf("Script %s: %s\n", result.Script, result.Status)
	//	}
	Executor struct {
		recorder   Recorder
		parameters map[string]string
		now        func() time.Time
		logger     *slog.Logger
	}

	// Config contains configuration options for creating a new Executor.
	Config struct {
		// Recorder stores execution outcomes.
		Recorder Recorder

		// Parameters are substituted for ${name} in every statement.
		Parameters map[string]string

		// Clock returns the current time. Defaults to time.Now.
		Clock func() time.Time

		Logger *slog.Logger
	}

	// Task pairs a script with the database it targets.
	Task struct {
		Script   *script.Script
		Database Database
	}

	// ExecutionResult contains the result of executing a single script.
	ExecutionResult struct {
		// Script is the name of the executed script.
		Script string

		// Status indicates the outcome of the execution.
		Status ExecutionStatus

		// Error contains any error that occurred during execution.
		Error error

		// ExecutionTime records how long the script took to execute.
		ExecutionTime time.Duration

		// StatementsApplied indicates how many statements were executed
		// successfully.
		StatementsApplied int

		// TotalStatements is the number of statements in the script.
		TotalStatements int

		// Record is the registry row written for this execution.
		Record *registry.ExecutedScript
	}

	// ExecutionStatus represents the outcome of a script execution.
	ExecutionStatus string

	// ScriptExecutionError reports the statement that failed and the
	// underlying database error.
	ScriptExecutionError struct {
		Script    string
		Statement string
		Err       error
	}
)

const (
	// StatusSuccess indicates the script was executed successfully
	StatusSuccess ExecutionStatus = "success"

	// StatusFailed indicates the script execution failed
	StatusFailed ExecutionStatus = "failed"

	// StatusSkipped indicates the script was not executed
	StatusSkipped ExecutionStatus = "skipped"
)

func (e *ScriptExecutionError) Error() string {
	if e.Statement == "" {
		return fmt.Sprintf("script %s failed: %v", e.Script, e.Err)
	}

	return fmt.Sprintf("script %s failed executing statement %q: %v", e.Script, e.Statement, e.Err)
}

func (e *ScriptExecutionError) Unwrap() error {
	return e.Err
}

// New creates a new script executor with the provided configuration.
func New(config Config) *Executor {
	e := &Executor{
		recorder:   config.Recorder,
		parameters: config.Parameters,
		now:        config.Clock,
		logger:     config.Logger,
	}

	if e.now == nil {
		e.now = time.Now
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}

	return e
}

// ExecuteAll executes the tasks in order and stops at the first failure. The
// failing script's result is the last one returned.
func (e *Executor) ExecuteAll(ctx context.Context, tasks []Task) []*ExecutionResult {
	results := make([]*ExecutionResult, 0, len(tasks))

	for _, task := range tasks {
		result := e.Execute(ctx, task.Script, task.Database)
		results = append(results, result)

		// Stop execution on first failure
		if result.Status == StatusFailed {
			break
		}
	}

	return results
}

// Execute runs every statement of s against db and records the outcome.
//
// A failure to write the registry row after a successful execution is
// reported as a failed result, since the next run would otherwise execute the
// script again.
func (e *Executor) Execute(ctx context.Context, s *script.Script, db Database) *ExecutionResult {
	startTime := e.now()
	result := &ExecutionResult{Script: s.Name, Status: StatusSuccess}

	e.logger.Info("Executing script", "script", s.Name, "kind", s.Kind.String())

	checksum, err := s.Checksum()
	if err != nil {
		return e.fail(result, startTime, &ScriptExecutionError{Script: s.Name, Err: err})
	}

	stmts, err := e.statements(s, db)
	if err != nil {
		result.Error = &ScriptExecutionError{Script: s.Name, Err: err}
		result.Status = StatusFailed
	}
	result.TotalStatements = len(stmts)

	for _, stmt := range stmts {
		if err := db.ExecuteStatement(ctx, stmt); err != nil {
			result.Error = &ScriptExecutionError{Script: s.Name, Statement: stmt, Err: errors.Cause(err)}
			result.Status = StatusFailed
			break
		}

		result.StatementsApplied++
	}

	finishTime := e.now()
	result.ExecutionTime = finishTime.Sub(startTime)
	result.Record = &registry.ExecutedScript{
		FileName:           s.Name,
		FileLastModifiedAt: s.ModifiedAt,
		Checksum:           checksum,
		ExecutedAt:         startTime.UnixMilli(),
		FinishedAt:         finishTime.UnixMilli(),
		Succeeded:          result.Status == StatusSuccess,
	}

	if err := e.recorder.Record(ctx, result.Record); err != nil {
		if result.Error == nil {
			result.Error = errors.Wrapf(err, "failed to record execution of %s", s.Name)
			result.Status = StatusFailed
		} else {
			e.logger.Error("Failed to record failed script", "script", s.Name, "err", err)
		}
	}

	if result.Status == StatusFailed {
		e.logger.Error("Script failed", "script", s.Name, "err", result.Error)
	}

	return result
}

func (e *Executor) statements(s *script.Script, db Database) ([]string, error) {
	r, err := s.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	opts := db.ParserOptions()
	opts.Parameters = e.parameters

	var stmts []string
	p := parser.New(r, opts)
	for {
		stmt, err := p.Next()
		if errors.Is(err, io.EOF) {
			return stmts, nil
		}
		if err != nil {
			return nil, err
		}

		stmts = append(stmts, stmt)
	}
}

func (e *Executor) fail(result *ExecutionResult, startTime time.Time, err error) *ExecutionResult {
	result.Status = StatusFailed
	result.Error = err
	result.ExecutionTime = e.now().Sub(startTime)

	e.logger.Error("Script failed", "script", result.Script, "err", err)
	return result
}
