package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/pseudomuto/dbmaint/pkg/config"
	"github.com/pseudomuto/dbmaint/pkg/executor"
	"github.com/pseudomuto/dbmaint/pkg/maintainer"
	"github.com/urfave/cli/v3"
)

// check creates the check command, which reports the pending changes without
// executing or recording anything.
//
// Example usage:
//
//	dbmaint check
//	dbmaint check --location build/scripts.zip
func check(src *config.Source) *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Show the scripts an update would execute",
		Description: `Compare the scripts with the executed scripts table and report what an
update would do: the scripts to execute, the records to remove and whether the
database must be recreated from scratch. Nothing is executed or recorded.`,
		Before: requireConfig(src),
		Flags:  []cli.Flag{locationFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runUpdate(ctx, cmd, src, true)
		},
	}
}

// update creates the update command, which brings the databases up to date
// with the scripts.
//
// Example usage:
//
//	# Execute all new and changed scripts
//	dbmaint update
//
//	# Show what would be executed without applying
//	dbmaint update --dry-run
func update(src *config.Source) *cli.Command {
	return &cli.Command{
		Name:  "update",
		Usage: "Execute new and changed scripts",
		Description: `Execute every new or changed script in order and record it in the executed
scripts table.

Indexed scripts run once, in index order. Repeatable scripts run again whenever
they change and postprocessing scripts run last. When an executed indexed
script changed, or a script was added out of sequence, the update fails unless
update.from_scratch is enabled, in which case every object is dropped and all
scripts are executed again.

The update stops at the first failing statement. The failing script is
recorded as failed and no later update runs until it is marked as performed or
reverted.`,
		Before: requireConfig(src),
		Flags: []cli.Flag{
			locationFlag(),
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Show what would be executed without applying changes",
				Value: false,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runUpdate(ctx, cmd, src, cmd.Bool("dry-run"))
		},
	}
}

func runUpdate(ctx context.Context, cmd *cli.Command, src *config.Source, dryRun bool) error {
	s, err := openSession(ctx, cmd, src, true)
	if err != nil {
		return err
	}
	defer s.Close()

	result, err := s.maintainer.UpdateDatabase(ctx, dryRun)
	if result != nil {
		if dryRun {
			if werr := maintainer.WriteReport(output(cmd), result.Plan); werr != nil {
				return werr
			}
		} else {
			reportResults(output(cmd), result)
		}
	}

	return err
}

func reportResults(w io.Writer, result *maintainer.Result) {
	if result.Plan.UpToDate() {
		fmt.Fprintln(w, "The database is up to date.")
		return
	}

	if result.Plan.FromScratch {
		fmt.Fprintln(w, "Recreated the database from scratch.")
	}

	for _, exec := range result.Executions {
		switch exec.Status {
		case executor.StatusSuccess:
			fmt.Fprintf(w, "  ✓ %s (%d statements, %s)\n", exec.Script, exec.StatementsApplied, exec.ExecutionTime)
		case executor.StatusFailed:
			fmt.Fprintf(w, "  ✗ %s (failed after %d/%d statements)\n", exec.Script, exec.StatementsApplied, exec.TotalStatements)
		}
	}

	for _, name := range result.Skipped {
		fmt.Fprintf(w, "  - %s (database disabled)\n", name)
	}

	executed := 0
	for _, exec := range result.Executions {
		if exec.Status == executor.StatusSuccess {
			executed++
		}
	}

	fmt.Fprintf(w, "Executed %d script(s)\n", executed)
}
