package cmd

import (
	"context"
	"fmt"

	"github.com/pseudomuto/dbmaint/pkg/config"
	"github.com/pseudomuto/dbmaint/pkg/maintainer"
	"github.com/urfave/cli/v3"
)

// clearCmd creates the clear command, which drops every database object.
func clearCmd(src *config.Source) *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Drop all database objects",
		Description: `Drop every table, view, trigger, sequence, routine and type in the managed
schemas of every enabled database, and empty the executed scripts table.
Objects listed in clear.preserve and the executed scripts table itself are kept.`,
		Before: requireConfig(src),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runUtility(ctx, cmd, src, "Cleared the database", (*maintainer.Maintainer).ClearDatabase)
		},
	}
}

// cleanCmd creates the clean command, which deletes every row.
func cleanCmd(src *config.Source) *cli.Command {
	return &cli.Command{
		Name:  "clean",
		Usage: "Delete all data",
		Description: `Delete the rows of every table in the managed schemas of every enabled
database. Tables listed in clear.preserve and the executed scripts table are
left untouched.`,
		Before: requireConfig(src),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runUtility(ctx, cmd, src, "Cleaned the database", (*maintainer.Maintainer).CleanDatabase)
		},
	}
}

func disableConstraints(src *config.Source) *cli.Command {
	return &cli.Command{
		Name:  "disable-constraints",
		Usage: "Remove foreign key and not null constraints",
		Description: `Remove referential and value constraints from every table so test data can
be loaded in any order. Databases that cannot drop a kind of constraint are
skipped for that kind.`,
		Before: requireConfig(src),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runUtility(ctx, cmd, src, "Disabled constraints", (*maintainer.Maintainer).DisableConstraints)
		},
	}
}

func updateSequences(src *config.Source) *cli.Command {
	return &cli.Command{
		Name:  "update-sequences",
		Usage: "Raise sequences and identity columns to the lowest sequence value",
		Description: `Set every sequence and identity column whose value is below
update.lowest_sequence_value to that value, so generated keys never collide
with fixed keys used in test data.`,
		Before: requireConfig(src),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runUtility(ctx, cmd, src, "Updated sequences", (*maintainer.Maintainer).UpdateSequences)
		},
	}
}

func runUtility(
	ctx context.Context,
	cmd *cli.Command,
	src *config.Source,
	done string,
	op func(*maintainer.Maintainer, context.Context) error,
) error {
	s, err := openSession(ctx, cmd, src, false)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := op(s.maintainer, ctx); err != nil {
		return err
	}

	fmt.Fprintln(output(cmd), done)
	return nil
}
