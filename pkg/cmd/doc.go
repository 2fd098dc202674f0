// Package cmd provides CLI commands for the dbmaint tool.
//
// Each command is implemented as a function that returns a *cli.Command,
// following the urfave/cli/v3 pattern, and is registered with the
// application through an fx value group. Commands read the configuration
// through a *config.Source so that the --dir and --config flags are applied
// before the file is loaded.
//
// # Available Commands
//
//   - check: report the pending changes without executing anything
//   - update: execute new and changed scripts (--dry-run reports only)
//   - mark-up-to-date: record every script as executed
//   - mark-error-performed: record the failed script as successful
//   - mark-error-reverted: forget the failed script so it runs again
//   - clear: drop all database objects
//   - clean: delete all data
//   - disable-constraints: remove foreign key and not null constraints
//   - update-sequences: raise sequences to update.lowest_sequence_value
//
// # Global Options
//
// All commands support global flags:
//   - --dir, -d: Specify project directory (defaults to current directory)
//   - --config, -c: Specify the configuration file (defaults to dbmaint.yaml)
//   - --verbose: Enable debug logging
//   - --help, -h: Display command help
//   - --version: Display version information
//
// # Example Usage
//
//	dbmaint check                              # Show pending scripts
//	dbmaint update                             # Execute pending scripts
//	dbmaint update --location build/db.zip     # Execute scripts from an archive
//	dbmaint --dir ./project mark-error-reverted
//
// Any error is logged and the process exits with status 1.
package cmd
