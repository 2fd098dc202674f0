package cmd

import (
	"context"
	"fmt"

	"github.com/pseudomuto/dbmaint/pkg/config"
	"github.com/pseudomuto/dbmaint/pkg/maintainer"
	"github.com/pseudomuto/dbmaint/pkg/registry"
	"github.com/urfave/cli/v3"
)

// markUpToDate creates the mark-up-to-date command. It records every script
// as executed without executing anything, which is how an existing database
// is brought under management.
func markUpToDate(src *config.Source) *cli.Command {
	return &cli.Command{
		Name:  "mark-up-to-date",
		Usage: "Record every script as executed without executing it",
		Description: `Replace the content of the executed scripts table with a successful record
for every script. Use it when the database already matches the scripts, for
example when dbmaint is introduced on an existing database.`,
		Before: requireConfig(src),
		Flags:  []cli.Flag{locationFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := openSession(ctx, cmd, src, true)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.maintainer.MarkDatabaseAsUpToDate(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(output(cmd), "Marked %d script(s) as executed\n", n)
			return nil
		},
	}
}

// markErrorPerformed creates the mark-error-performed command.
func markErrorPerformed(src *config.Source) *cli.Command {
	return &cli.Command{
		Name:  "mark-error-performed",
		Usage: "Record the failed script as successful",
		Description: `Mark the script that failed during the last update as successfully executed.
Use it after the remaining statements of the script were applied by hand.`,
		Before: requireConfig(src),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runMark(ctx, cmd, src, "performed", (*maintainer.Maintainer).MarkErrorScriptPerformed)
		},
	}
}

// markErrorReverted creates the mark-error-reverted command.
func markErrorReverted(src *config.Source) *cli.Command {
	return &cli.Command{
		Name:  "mark-error-reverted",
		Usage: "Forget the failed script so the next update executes it again",
		Description: `Remove the script that failed during the last update from the executed
scripts table. Use it after the changes the script made were rolled back by
hand. The next update executes the script again.`,
		Before: requireConfig(src),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runMark(ctx, cmd, src, "reverted", (*maintainer.Maintainer).MarkErrorScriptReverted)
		},
	}
}

func runMark(
	ctx context.Context,
	cmd *cli.Command,
	src *config.Source,
	verb string,
	mark func(*maintainer.Maintainer, context.Context) ([]*registry.ExecutedScript, error),
) error {
	s, err := openSession(ctx, cmd, src, false)
	if err != nil {
		return err
	}
	defer s.Close()

	records, err := mark(s.maintainer, ctx)
	if err != nil {
		return err
	}

	for _, rec := range records {
		fmt.Fprintf(output(cmd), "Marked %s as %s\n", rec.FileName, verb)
	}

	return nil
}
