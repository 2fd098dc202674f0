package cmd

import (
	"context"
	"io"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/pseudomuto/dbmaint/pkg/config"
	"github.com/pseudomuto/dbmaint/pkg/database"
	"github.com/pseudomuto/dbmaint/pkg/maintainer"
	"github.com/pseudomuto/dbmaint/pkg/registry"
	"github.com/pseudomuto/dbmaint/pkg/repository"
	"github.com/pseudomuto/dbmaint/pkg/script"
	"github.com/urfave/cli/v3"
)

func locationFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:    "location",
		Aliases: []string{"l"},
		Usage:   "script directory or archive, overrides scripts.locations",
	}
}

// session holds the open databases and the maintainer built from them for
// one command.
type session struct {
	dbs        *database.Databases
	maintainer *maintainer.Maintainer
}

// openSession connects the configured databases and builds a maintainer.
// When withScripts is set the script repository is loaded too, from the
// --location flag when given.
func openSession(ctx context.Context, cmd *cli.Command, src *config.Source, withScripts bool) (*session, error) {
	cfg, err := src.Load()
	if err != nil {
		return nil, err
	}

	if cfg == nil {
		return nil, errors.Errorf("%s not found", src.Path)
	}

	var repo *repository.Repository
	if withScripts {
		locations := cfg.Scripts.Locations
		if override := cmd.StringSlice("location"); len(override) > 0 {
			locations = override
		}

		if repo, err = loadRepository(cfg, locations); err != nil {
			return nil, err
		}
	}

	dbs, err := database.Open(ctx, cfg.Databases, slog.Default())
	if err != nil {
		return nil, err
	}

	reg := registry.New(registry.Config{
		Database:   dbs.Default(),
		Table:      cfg.Registry.Table,
		AutoCreate: cfg.Registry.AutoCreateTable(),
	})

	m := maintainer.New(maintainer.Config{
		Databases:  dbs,
		Registry:   reg,
		Repository: repo,
		Policy: maintainer.Policy{
			FromScratchEnabled:        cfg.Update.FromScratch,
			AllowOutOfSequencePatches: cfg.Update.AllowOutOfSequencePatches,
			UseLastModifiedDates:      cfg.Update.LastModifiedFastPath(),
			Script:                    scriptOptions(cfg),
		},
		CleanDB:             cfg.Update.CleanDB,
		DisableConstraints:  cfg.Update.DisableConstraints,
		UpdateSequences:     cfg.Update.UpdateSequences,
		LowestSequenceValue: cfg.Update.LowestSequenceValue,
		Preserve:            cfg.Clear.Preserve,
		Parameters:          cfg.Scripts.Parameters,
	})

	return &session{dbs: dbs, maintainer: m}, nil
}

func (s *session) Close() {
	if err := s.dbs.Close(); err != nil {
		slog.Warn("Failed to close database connections", "err", err)
	}
}

func loadRepository(cfg *config.Config, locations []string) (*repository.Repository, error) {
	if len(locations) == 0 {
		return nil, errors.New("no script locations configured")
	}

	locs, err := repository.OpenLocations(locations, repository.LocationOptions{
		Extensions: cfg.Scripts.Extensions,
		Encoding:   cfg.Scripts.Encoding,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open script locations")
	}

	repo, err := repository.Load(repository.Options{
		Locations:          locs,
		Script:             scriptOptions(cfg),
		Qualifiers:         cfg.Scripts.Qualifiers,
		IncludedQualifiers: cfg.Scripts.IncludedQualifiers,
		ExcludedQualifiers: cfg.Scripts.ExcludedQualifiers,
		Databases:          cfg.DatabaseNames(),
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Loaded scripts", "locations", locations, "count", repo.Len())
	return repo, nil
}

func scriptOptions(cfg *config.Config) script.Options {
	return script.Options{
		PostProcessingDir: cfg.Scripts.PostProcessingDir,
		PatchQualifiers:   cfg.Scripts.PatchQualifiers,
	}
}

// output returns the writer of the root command.
func output(cmd *cli.Command) io.Writer {
	return cmd.Root().Writer
}
