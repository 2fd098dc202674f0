// Package executor runs scripts against their target database and records
// each outcome in the executed scripts registry.
//
// # Core Components
//
//   - Executor: parses a script and executes its statements in order
//   - Config: configuration options for executor creation
//   - ExecutionResult: outcome, timing and statement counts of one script
//   - ScriptExecutionError: the failing statement and the database error
//
// Execution stops at the first failing statement. The script is recorded as
// failed and no further scripts run; the registry then reflects exactly the
// scripts that completed before the failure.
//
// # Usage Example
//
//	exec := executor.New(executor.Config{Recorder: reg})
//
//	result := exec.Execute(ctx, s, db)
//	if result.Status == executor.StatusFailed {
//		return result.Error
//	}
package executor
