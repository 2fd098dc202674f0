package database

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/pseudomuto/dbmaint/pkg/config"
)

// Databases is the set of configured target databases. The first database is
// the default one; it holds the executed scripts table.
type Databases struct {
	all    []*Database
	byName map[string]*Database
}

// NewDatabases collects already connected databases. The first entry is the
// default database and must be enabled.
func NewDatabases(dbs ...*Database) (*Databases, error) {
	if len(dbs) == 0 {
		return nil, errors.New("at least one database is required")
	}

	if !dbs[0].Enabled {
		return nil, errors.Errorf("database %s: the default database cannot be disabled", dbs[0].Name)
	}

	d := &Databases{byName: make(map[string]*Database, len(dbs))}
	for _, db := range dbs {
		if _, ok := d.byName[db.Name]; ok {
			return nil, errors.Errorf("duplicate database name %s", db.Name)
		}

		d.all = append(d.all, db)
		d.byName[db.Name] = db
	}

	return d, nil
}

// Open connects every configured database. Disabled databases are connected
// too so their names resolve, but no script is executed against them.
//
// Example usage:
//
//	dbs, err := database.Open(ctx, cfg.Databases, slog.Default())
//	if err != nil {
//		return err
//	}
//	defer dbs.Close()
func Open(ctx context.Context, cfgs []config.Database, logger *slog.Logger) (*Databases, error) {
	var dbs []*Database
	for _, cfg := range cfgs {
		if !cfg.Enabled() {
			dbs = append(dbs, &Database{Name: cfg.Name, Schemas: cfg.Schemas, Logger: logger})
			continue
		}

		db, err := Connect(ctx, cfg, logger)
		if err != nil {
			for _, opened := range dbs {
				_ = opened.Close()
			}
			return nil, err
		}

		dbs = append(dbs, db)
	}

	return NewDatabases(dbs...)
}

// Default returns the default database.
func (d *Databases) Default() *Database {
	return d.all[0]
}

// Get returns the database with the given name. An empty name selects the
// default database. The second result reports whether the database is
// enabled.
func (d *Databases) Get(name string) (*Database, bool, error) {
	if name == "" {
		return d.Default(), true, nil
	}

	db, ok := d.byName[name]
	if !ok {
		return nil, false, errors.Errorf("unknown database %s", name)
	}

	return db, db.Enabled, nil
}

// All returns every database in configuration order.
func (d *Databases) All() []*Database {
	return d.all
}

// Enabled returns the databases scripts are executed against.
func (d *Databases) Enabled() []*Database {
	var enabled []*Database
	for _, db := range d.all {
		if db.Enabled {
			enabled = append(enabled, db)
		}
	}

	return enabled
}

// Names returns the configured database names.
func (d *Databases) Names() []string {
	names := make([]string, len(d.all))
	for i, db := range d.all {
		names[i] = db.Name
	}

	return names
}

// Close closes every connection and returns the first error.
func (d *Databases) Close() error {
	var first error
	for _, db := range d.all {
		if err := db.Close(); err != nil && first == nil {
			first = err
		}
	}

	return first
}
