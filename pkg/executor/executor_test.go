package executor_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/pkg/errors"
	. "github.com/pseudomuto/dbmaint/pkg/executor"
	"github.com/pseudomuto/dbmaint/pkg/parser"
	"github.com/pseudomuto/dbmaint/pkg/registry"
	"github.com/pseudomuto/dbmaint/pkg/script"
	"github.com/stretchr/testify/require"
)

type mockDatabase struct {
	opts     parser.Options
	executed []string
	failOn   string
}

func (m *mockDatabase) ExecuteStatement(_ context.Context, stmt string) error {
	if m.failOn != "" && stmt == m.failOn {
		return errors.Wrap(errors.New("syntax error"), "failed to execute statement on database main")
	}

	m.executed = append(m.executed, stmt)
	return nil
}

func (m *mockDatabase) ParserOptions() parser.Options {
	return m.opts
}

type mockRecorder struct {
	records []*registry.ExecutedScript
	err     error
}

func (m *mockRecorder) Record(_ context.Context, rec *registry.ExecutedScript) error {
	if m.err != nil {
		return m.err
	}

	m.records = append(m.records, rec)
	return nil
}

func fixedClock() func() time.Time {
	now := time.UnixMilli(1_700_000_000_000)
	return func() time.Time {
		now = now.Add(5 * time.Millisecond)
		return now
	}
}

func newScript(t *testing.T, name, content string) *script.Script {
	t.Helper()

	s, err := script.FromString(name, 42, content, script.Options{})
	require.NoError(t, err)
	return s
}

func TestExecute(t *testing.T) {
	db := &mockDatabase{}
	rec := &mockRecorder{}
	exec := New(Config{Recorder: rec, Clock: fixedClock()})

	s := newScript(t, "01_create.sql", "CREATE TABLE a (id INT);\n-- comment\nCREATE TABLE b (id INT);")
	result := exec.Execute(context.Background(), s, db)

	require.Equal(t, StatusSuccess, result.Status)
	require.NoError(t, result.Error)
	require.Equal(t, "01_create.sql", result.Script)
	require.Equal(t, 2, result.StatementsApplied)
	require.Equal(t, 2, result.TotalStatements)
	require.Equal(t, 5*time.Millisecond, result.ExecutionTime)
	require.Equal(t, []string{"CREATE TABLE a (id INT)", "CREATE TABLE b (id INT)"}, db.executed)

	checksum, err := s.Checksum()
	require.NoError(t, err)

	require.Len(t, rec.records, 1)
	require.Equal(t, &registry.ExecutedScript{
		FileName:           "01_create.sql",
		FileLastModifiedAt: 42,
		Checksum:           checksum,
		ExecutedAt:         1_700_000_000_005,
		FinishedAt:         1_700_000_000_010,
		Succeeded:          true,
	}, rec.records[0])
}

func TestExecuteParameters(t *testing.T) {
	db := &mockDatabase{}
	exec := New(Config{
		Recorder:   &mockRecorder{},
		Parameters: map[string]string{"owner": "app"},
	})

	result := exec.Execute(context.Background(), newScript(t, "grants.sql", "GRANT SELECT ON t TO ${owner};"), db)
	require.Equal(t, StatusSuccess, result.Status)
	require.Equal(t, []string{"GRANT SELECT ON t TO app"}, db.executed)
}

func TestExecuteStatementFailure(t *testing.T) {
	db := &mockDatabase{failOn: "INSERT INTO a VALUES (1)"}
	rec := &mockRecorder{}
	exec := New(Config{Recorder: rec})

	s := newScript(t, "01_create.sql", "CREATE TABLE a (id INT); INSERT INTO a VALUES (1); INSERT INTO a VALUES (2);")
	result := exec.Execute(context.Background(), s, db)

	require.Equal(t, StatusFailed, result.Status)
	require.Equal(t, 1, result.StatementsApplied)
	require.Equal(t, 3, result.TotalStatements)
	require.Equal(t, []string{"CREATE TABLE a (id INT)"}, db.executed)

	var execErr *ScriptExecutionError
	require.True(t, errors.As(result.Error, &execErr))
	require.Equal(t, "01_create.sql", execErr.Script)
	require.Equal(t, "INSERT INTO a VALUES (1)", execErr.Statement)
	require.EqualError(t, execErr, `script 01_create.sql failed executing statement "INSERT INTO a VALUES (1)": syntax error`)

	require.Len(t, rec.records, 1)
	require.False(t, rec.records[0].Succeeded)
}

func TestExecuteParseFailure(t *testing.T) {
	db := &mockDatabase{}
	rec := &mockRecorder{}
	exec := New(Config{Recorder: rec})

	result := exec.Execute(context.Background(), newScript(t, "01_create.sql", "CREATE TABLE a (id INT); SELECT 'open"), db)

	require.Equal(t, StatusFailed, result.Status)
	require.Empty(t, db.executed, "no statement runs when the script cannot be parsed")

	var parseErr *parser.ParseError
	require.True(t, errors.As(result.Error, &parseErr))

	require.Len(t, rec.records, 1)
	require.False(t, rec.records[0].Succeeded)
}

func TestExecuteContentFailure(t *testing.T) {
	s, err := script.New("01_create.sql", 0, func() (io.ReadCloser, error) {
		return nil, errors.New("permission denied")
	}, script.Options{})
	require.NoError(t, err)

	rec := &mockRecorder{}
	result := New(Config{Recorder: rec}).Execute(context.Background(), s, &mockDatabase{})

	require.Equal(t, StatusFailed, result.Status)
	require.ErrorContains(t, result.Error, "permission denied")
	require.Empty(t, rec.records)
}

func TestExecuteRecordFailure(t *testing.T) {
	rec := &mockRecorder{err: errors.New("disk full")}
	result := New(Config{Recorder: rec}).Execute(context.Background(), newScript(t, "01_a.sql", "SELECT 1;"), &mockDatabase{})

	require.Equal(t, StatusFailed, result.Status)
	require.EqualError(t, result.Error, "failed to record execution of 01_a.sql: disk full")
}

func TestExecuteAll(t *testing.T) {
	db := &mockDatabase{failOn: "BROKEN"}
	rec := &mockRecorder{}
	exec := New(Config{Recorder: rec})

	results := exec.ExecuteAll(context.Background(), []Task{
		{Script: newScript(t, "01_a.sql", "SELECT 1;"), Database: db},
		{Script: newScript(t, "02_b.sql", "BROKEN;"), Database: db},
		{Script: newScript(t, "03_c.sql", "SELECT 3;"), Database: db},
	})

	require.Len(t, results, 2)
	require.Equal(t, StatusSuccess, results[0].Status)
	require.Equal(t, StatusFailed, results[1].Status)
	require.Equal(t, []string{"SELECT 1"}, db.executed)
	require.Len(t, rec.records, 2)
}
