// Package maintainer keeps databases consistent with a catalog of versioned
// SQL scripts.
//
// A run reconciles the script repository with the executed scripts registry
// and decides what to do: nothing, an incremental update, or a recreation
// from scratch. The decision is made by Analyze, a pure function over the
// catalog and the registry records, so every rule can be tested without a
// database.
//
// # Reconciliation Rules
//
//   - An indexed script runs once. Changing it afterwards, adding a script
//     with an index not higher than an executed one, or deleting it is a
//     conflict.
//   - Patch scripts are exempt from those conflicts when out of sequence
//     patches are allowed; they run in place.
//   - Repeatable scripts run again whenever their content changes.
//   - Postprocessing scripts run last, when they changed or when any other
//     script runs. Deleted postprocessing scripts are removed from the
//     registry.
//   - A conflict recreates the databases from scratch when that is enabled,
//     otherwise the run fails with a *ScriptConflictError before anything is
//     executed.
//   - A script recorded as failed blocks every run with a
//     *PendingErrorScriptError until it is marked as performed or reverted.
//
// # Usage Example
//
//	m := maintainer.New(maintainer.Config{
//		Databases:  dbs,
//		Registry:   reg,
//		Repository: repo,
//		Policy: maintainer.Policy{
//			FromScratchEnabled:        cfg.Update.FromScratch,
//			AllowOutOfSequencePatches: cfg.Update.AllowOutOfSequencePatches,
//			UseLastModifiedDates:      cfg.Update.LastModifiedFastPath(),
//		},
//	})
//
//	result, err := m.UpdateDatabase(ctx, dryRun)
//	if err != nil {
//		return err
//	}
//
//	return maintainer.WriteReport(os.Stdout, result.Plan)
package maintainer
