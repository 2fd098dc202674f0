package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/pseudomuto/dbmaint/pkg/config"
	"github.com/pseudomuto/dbmaint/pkg/consts"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

type (
	Params struct {
		fx.In

		Args       []string
		Commands   []*cli.Command `group:"commands"`
		Ctx        context.Context
		Lifecycle  fx.Lifecycle
		Shutdowner fx.Shutdowner
		Source     *config.Source
		Version    *Version
	}

	Version struct {
		Version   string
		Commit    string
		Timestamp string
	}
)

// Run creates and executes the main dbmaint CLI application with the given
// version and command-line arguments.
//
// The function creates a CLI application with:
//   - Global --dir flag for specifying the project directory
//   - Global --config flag naming the configuration file
//   - Global --verbose flag enabling debug logging
//   - Command registration and routing
//
// The working directory is changed to --dir before the configuration file is
// resolved, so relative script locations in the configuration are relative to
// the project directory.
//
// Example usage:
//
//	dbmaint --dir /path/to/project check
//	dbmaint --config staging.yaml update --dry-run
func Run(p Params) {
	cli.VersionPrinter = func(cmd *cli.Command) {
		fmt.Fprintln(cmd.Writer, "Version:", p.Version.Version)
		fmt.Fprintln(cmd.Writer, "Commit:", p.Version.Commit)
		fmt.Fprintln(cmd.Writer, "Date:", p.Version.Timestamp)
	}

	app := &cli.Command{
		Name:  "dbmaint",
		Usage: "Keep databases consistent with versioned SQL scripts",
		Description: `dbmaint executes versioned SQL scripts against one or more databases and
records every execution in an executed scripts table. Each run compares the
scripts with that table and executes only what is new or changed, refusing to
continue when an executed script changed unless recreating the database from
scratch is enabled.`,
		Version:  p.Version.Version,
		Flags:    rootFlags(),
		Before:   before(p.Source),
		Commands: p.Commands,
	}

	p.Lifecycle.Append(fx.StartHook(func() {
		if err := app.Run(p.Ctx, p.Args); err != nil {
			slog.Error("Error running command", "err", err)
			_ = p.Shutdowner.Shutdown(fx.ExitCode(1))
			return
		}

		_ = p.Shutdowner.Shutdown(fx.ExitCode(0))
	}))
}

func rootFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "dir",
			Aliases:     []string{"d"},
			Usage:       "the project directory",
			Value:       ".",
			DefaultText: "Current directory",
			Config: cli.StringConfig{
				TrimSpace: true,
			},
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "the dbmaint config file",
			Sources: cli.EnvVars("DBMAINT_CONFIG"),
			Value:   consts.DefaultConfigFile,
			Config: cli.StringConfig{
				TrimSpace: true,
			},
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable debug logging",
		},
	}
}

func before(src *config.Source) cli.BeforeFunc {
	return func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
		if err := os.Chdir(cmd.String("dir")); err != nil {
			return ctx, errors.Wrap(err, "failed to change to project directory")
		}

		src.Path = cmd.String("config")

		if cmd.Bool("verbose") {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}

		return ctx, nil
	}
}

// requireConfig fails the command when the configuration file does not
// exist or cannot be loaded.
func requireConfig(src *config.Source) cli.BeforeFunc {
	return func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
		cfg, err := src.Load()
		if err != nil {
			return ctx, err
		}

		if cfg == nil {
			return ctx, errors.Errorf("%s not found", src.Path)
		}

		return ctx, nil
	}
}
