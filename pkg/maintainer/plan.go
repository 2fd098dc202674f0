package maintainer

import (
	"slices"

	"github.com/pseudomuto/dbmaint/pkg/registry"
	"github.com/pseudomuto/dbmaint/pkg/script"
)

type (
	// Action is what a run does with a script.
	Action int

	// Reason explains the action chosen for a script.
	Reason string

	// Policy holds the rules used to reconcile the catalog with the registry.
	Policy struct {
		// FromScratchEnabled recreates the database when a conflict is found
		// instead of failing.
		FromScratchEnabled bool

		// AllowOutOfSequencePatches executes patch scripts in place when they
		// are added out of sequence, changed or deleted.
		AllowOutOfSequencePatches bool

		// UseLastModifiedDates treats a script as unchanged without reading it
		// when its modification time equals the recorded one.
		UseLastModifiedDates bool

		// Script controls how recorded file names are interpreted.
		Script script.Options

		// DisabledDatabases are the target databases scripts are not executed
		// against. Their scripts stay pending without being classified.
		DisabledDatabases []string
	}

	// PlanEntry is the decision taken for one script of the catalog.
	PlanEntry struct {
		Script *script.Script
		Action Action
		Reason Reason
	}

	// Plan is the outcome of reconciling the catalog with the registry.
	//
	// Example usage:
	//
	//	plan, err := maintainer.Analyze(repo.Scripts(), records, policy)
	//	if err != nil {
	//		return err
	//	}
	//
	//	for _, s := range plan.Pending() {
	//		fmt.Println(s.Name)
	//	}
	Plan struct {
		// Entries hold one entry per catalog script, in execution order.
		Entries []PlanEntry

		// Deleted are records of scripts no longer in the catalog that are
		// removed from the registry without a conflict.
		Deleted []*registry.ExecutedScript

		// Refreshed are records of unchanged scripts whose modification time
		// moved. Their stored modification time is updated.
		Refreshed []*registry.ExecutedScript

		// FromScratch is set when the database is cleared and every script is
		// executed again.
		FromScratch bool

		// FromScratchReasons are the conflicts that triggered the recreation.
		FromScratchReasons []*ScriptConflictError

		// Initial is set when the registry holds no record yet.
		Initial bool
	}
)

const (
	// Skip leaves the script alone.
	Skip Action = iota
	// Execute runs the script.
	Execute
)

// Reasons recorded on plan entries.
const (
	ReasonUpToDate           Reason = "up to date"
	ReasonNew                Reason = "new"
	ReasonChanged            Reason = "changed"
	ReasonOutOfSequencePatch Reason = "out-of-sequence patch"
	ReasonPostProcessing     Reason = "postprocessing"
	ReasonFromScratch        Reason = "from scratch"
	ReasonDatabaseDisabled   Reason = "database disabled"
)

func (a Action) String() string {
	if a == Execute {
		return "execute"
	}

	return "skip"
}

// Skipped returns the scripts left pending because their database is
// disabled.
func (p *Plan) Skipped() []*script.Script {
	var skipped []*script.Script
	for _, e := range p.Entries {
		if e.Reason == ReasonDatabaseDisabled {
			skipped = append(skipped, e.Script)
		}
	}

	return skipped
}

// Pending returns the scripts to execute in execution order.
func (p *Plan) Pending() []*script.Script {
	var pending []*script.Script
	for _, e := range p.Entries {
		if e.Action == Execute {
			pending = append(pending, e.Script)
		}
	}

	return pending
}

// UpToDate reports whether the run has nothing to do.
func (p *Plan) UpToDate() bool {
	return !p.FromScratch && len(p.Deleted) == 0 && !slices.ContainsFunc(p.Entries, func(e PlanEntry) bool {
		return e.Action == Execute
	})
}

// Analyze reconciles the catalog with the registry records and decides, per
// script, whether it runs. It performs no I/O beyond reading script content
// for checksums.
//
// Recorded failures are checked first and returned as a
// *PendingErrorScriptError. Conflicts trigger a from-scratch plan when the
// policy allows it, otherwise the first one is returned as a
// *ScriptConflictError. From-scratch is a whole-run decision: once triggered,
// every script executes and patch exemptions no longer matter.
//
// Example usage:
//
//	plan, err := maintainer.Analyze(repo.Scripts(), records, maintainer.Policy{
//		FromScratchEnabled:        false,
//		AllowOutOfSequencePatches: true,
//		UseLastModifiedDates:      true,
//	})
func Analyze(scripts []*script.Script, records []*registry.ExecutedScript, policy Policy) (*Plan, error) {
	for _, rec := range records {
		if !rec.Succeeded {
			return nil, &PendingErrorScriptError{Script: rec.FileName}
		}
	}

	scripts = slices.Clone(scripts)
	slices.SortFunc(scripts, script.Compare)

	recorded := make(map[string]*registry.ExecutedScript, len(records))
	for _, rec := range records {
		recorded[rec.FileName] = rec
	}

	disabled := func(s *script.Script) bool {
		return s.TargetDatabase != "" && slices.Contains(policy.DisabledDatabases, s.TargetDatabase)
	}

	var executed []script.Index
	for _, s := range scripts {
		if _, ok := recorded[s.Name]; ok && s.Kind == script.Indexed && !disabled(s) {
			executed = append(executed, s.Index)
		}
	}
	highest := script.Max(executed...)

	plan := &Plan{Initial: len(records) == 0}
	var conflicts []*ScriptConflictError

	patchAllowed := func(s *script.Script) bool {
		return s.IsPatch() && policy.AllowOutOfSequencePatches
	}

	for _, s := range scripts {
		entry := PlanEntry{Script: s, Action: Execute, Reason: ReasonNew}

		rec, ok := recorded[s.Name]
		switch {
		case disabled(s):
			entry.Action, entry.Reason = Skip, ReasonDatabaseDisabled
		case ok:
			same, err := unchanged(s, rec, policy)
			if err != nil {
				return nil, err
			}

			if same {
				entry.Action, entry.Reason = Skip, ReasonUpToDate
				if rec.FileLastModifiedAt != s.ModifiedAt {
					refreshed := *rec
					refreshed.FileLastModifiedAt = s.ModifiedAt
					plan.Refreshed = append(plan.Refreshed, &refreshed)
				}
				break
			}

			entry.Reason = ReasonChanged
			if s.Kind == script.Indexed && !patchAllowed(s) {
				conflicts = append(conflicts, &ScriptConflictError{Script: s.Name, Reason: ConflictChanged})
			}
		case s.Kind == script.Indexed && highest != nil && s.Index.Compare(highest) <= 0:
			if !patchAllowed(s) {
				conflicts = append(conflicts, &ScriptConflictError{Script: s.Name, Reason: ConflictOutOfSequence})
			}
			entry.Reason = ReasonOutOfSequencePatch
		}

		plan.Entries = append(plan.Entries, entry)
	}

	catalog := make(map[string]bool, len(scripts))
	for _, s := range scripts {
		catalog[s.Name] = true
	}

	for _, rec := range records {
		if catalog[rec.FileName] {
			continue
		}

		gone, err := script.New(rec.FileName, rec.FileLastModifiedAt, nil, policy.Script)
		if err == nil && gone.Kind != script.PostProcessing && !patchAllowed(gone) {
			conflicts = append(conflicts, &ScriptConflictError{Script: rec.FileName, Reason: ConflictDeleted})
			continue
		}

		plan.Deleted = append(plan.Deleted, rec)
	}

	if len(conflicts) > 0 {
		if !policy.FromScratchEnabled {
			return nil, conflicts[0]
		}

		plan.FromScratch = true
		plan.FromScratchReasons = conflicts
		plan.Deleted = nil
		plan.Refreshed = nil
		for i, e := range plan.Entries {
			if e.Reason == ReasonDatabaseDisabled {
				continue
			}

			plan.Entries[i].Action = Execute
			plan.Entries[i].Reason = ReasonFromScratch
		}

		return plan, nil
	}

	rerun := slices.ContainsFunc(plan.Entries, func(e PlanEntry) bool {
		return e.Action == Execute && e.Script.Kind != script.PostProcessing
	})

	if rerun {
		for i, e := range plan.Entries {
			if e.Script.Kind == script.PostProcessing && e.Reason == ReasonUpToDate {
				plan.Entries[i].Action = Execute
				plan.Entries[i].Reason = ReasonPostProcessing
			}
		}
	}

	return plan, nil
}

func unchanged(s *script.Script, rec *registry.ExecutedScript, policy Policy) (bool, error) {
	if policy.UseLastModifiedDates && rec.FileLastModifiedAt == s.ModifiedAt {
		return true, nil
	}

	checksum, err := s.Checksum()
	if err != nil {
		return false, err
	}

	return checksum == rec.Checksum, nil
}
