package repository

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/pseudomuto/dbmaint/pkg/consts"
	"github.com/pseudomuto/dbmaint/pkg/script"
)

type (
	// Options configure how the catalog is built.
	Options struct {
		// Locations are scanned in order.
		Locations []Location

		// Script controls how script paths are interpreted.
		Script script.Options

		// Qualifiers is the registered qualifier vocabulary. Patch qualifiers
		// are always registered.
		Qualifiers []string

		// IncludedQualifiers, when not empty, limits the catalog to scripts
		// carrying at least one of them.
		IncludedQualifiers []string

		// ExcludedQualifiers removes scripts carrying any of them.
		ExcludedQualifiers []string

		// Databases are the configured database names. A script targeting a
		// database outside this list is rejected. Nil disables the check.
		Databases []string

		Logger *slog.Logger
	}

	// Repository is the ordered catalog of scripts.
	Repository struct {
		scripts []*script.Script
		byName  map[string]*script.Script
	}
)

// Load scans every location and builds the catalog.
//
// The catalog holds indexed scripts ordered by index path then name, then
// repeatable scripts by name, then postprocessing scripts by index path then
// name. Loading fails with a *RepositoryError when a name cannot be parsed,
// a qualifier or target database is unknown, a path appears in two locations,
// or two included indexed scripts share an index path.
//
// Example usage:
//
//	loc, err := repository.OpenLocation("db/scripts", repository.LocationOptions{})
//	if err != nil {
//		return err
//	}
//
//	repo, err := repository.Load(repository.Options{Locations: []repository.Location{loc}})
//	if err != nil {
//		return err
//	}
//
//	for _, s := range repo.Scripts() {
//		fmt.Println(s.Name)
//	}
func Load(opts Options) (*Repository, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	vocabulary := make(map[string]bool)
	for _, q := range slices.Concat(opts.Qualifiers, opts.Script.PatchQualifiers, opts.IncludedQualifiers, opts.ExcludedQualifiers) {
		vocabulary[strings.ToLower(q)] = true
	}
	if len(opts.Script.PatchQualifiers) == 0 {
		vocabulary[consts.DefaultPatchQualifier] = true
	}

	repo := &Repository{byName: make(map[string]*script.Script)}
	origin := make(map[string]string)

	for _, loc := range opts.Locations {
		entries, err := loc.Entries()
		if err != nil {
			return nil, err
		}

		for _, entry := range entries {
			s, err := script.New(entry.Path, entry.ModifiedAt, entry.Open, opts.Script)
			if err != nil {
				return nil, &RepositoryError{Script: entry.Path, Reason: ReasonUnparsableName, Err: err}
			}

			for _, q := range s.Qualifiers {
				if !vocabulary[q] {
					return nil, &RepositoryError{Script: s.Name, Reason: ReasonUnknownQualifier, Detail: q}
				}
			}

			if s.TargetDatabase != "" && opts.Databases != nil && !slices.Contains(opts.Databases, s.TargetDatabase) {
				return nil, &RepositoryError{Script: s.Name, Reason: ReasonUnknownDatabase, Detail: s.TargetDatabase}
			}

			if other, ok := origin[s.Name]; ok {
				return nil, &RepositoryError{
					Script: s.Name,
					Reason: ReasonDuplicateScript,
					Detail: "found in " + other + " and " + loc.Name(),
				}
			}
			origin[s.Name] = loc.Name()

			if !included(s, opts) {
				logger.Debug("Excluding script", "script", s.Name, "qualifiers", s.Qualifiers)
				continue
			}

			repo.scripts = append(repo.scripts, s)
			repo.byName[s.Name] = s
		}
	}

	slices.SortFunc(repo.scripts, script.Compare)

	for i := 1; i < len(repo.scripts); i++ {
		prev, cur := repo.scripts[i-1], repo.scripts[i]
		if prev.Kind == script.Indexed && cur.Kind == script.Indexed && prev.Index.Compare(cur.Index) == 0 {
			return nil, &RepositoryError{
				Script: cur.Name,
				Reason: ReasonDuplicateIndex,
				Detail: "index " + cur.Index.String() + " is also used by " + prev.Name,
			}
		}
	}

	logger.Debug("Loaded script repository", "scripts", len(repo.scripts))
	return repo, nil
}

// New builds a repository from already created scripts. It is mostly useful
// in tests; no validation is applied beyond ordering.
func New(scripts ...*script.Script) *Repository {
	repo := &Repository{
		scripts: slices.Clone(scripts),
		byName:  make(map[string]*script.Script, len(scripts)),
	}

	slices.SortFunc(repo.scripts, script.Compare)
	for _, s := range repo.scripts {
		repo.byName[s.Name] = s
	}

	return repo
}

// Scripts returns the catalog in execution order.
func (r *Repository) Scripts() []*script.Script {
	return slices.Clone(r.scripts)
}

// Lookup returns the script with the given path.
func (r *Repository) Lookup(name string) (*script.Script, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// Len returns the number of scripts in the catalog.
func (r *Repository) Len() int {
	return len(r.scripts)
}

// IndexedScripts returns the indexed scripts in index order.
func (r *Repository) IndexedScripts() []*script.Script {
	return r.ofKind(script.Indexed)
}

// RepeatableScripts returns the repeatable scripts in name order.
func (r *Repository) RepeatableScripts() []*script.Script {
	return r.ofKind(script.Repeatable)
}

// PostProcessingScripts returns the postprocessing scripts in order.
func (r *Repository) PostProcessingScripts() []*script.Script {
	return r.ofKind(script.PostProcessing)
}

func (r *Repository) ofKind(kind script.Kind) []*script.Script {
	var scripts []*script.Script
	for _, s := range r.scripts {
		if s.Kind == kind {
			scripts = append(scripts, s)
		}
	}

	return scripts
}

func included(s *script.Script, opts Options) bool {
	for _, q := range opts.ExcludedQualifiers {
		if s.HasQualifier(q) {
			return false
		}
	}

	if len(opts.IncludedQualifiers) == 0 {
		return true
	}

	for _, q := range opts.IncludedQualifiers {
		if s.HasQualifier(q) {
			return true
		}
	}

	return false
}
