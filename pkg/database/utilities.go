package database

import "context"

// Clear drops every object in every schema of every enabled database except
// the preserved ones.
func (d *Databases) Clear(ctx context.Context, preserve Preserve) error {
	return d.eachSchema(func(db *Database, schema string) error {
		db.logger().Info("Clearing schema", "database", db.Name, "schema", schema)
		return db.DropAllObjects(ctx, schema, preserve)
	})
}

// Clean deletes the data of every table except the preserved ones.
func (d *Databases) Clean(ctx context.Context, preserve Preserve) error {
	return d.eachSchema(func(db *Database, schema string) error {
		db.logger().Info("Cleaning schema", "database", db.Name, "schema", schema)
		return db.CleanSchema(ctx, schema, preserve)
	})
}

// DisableConstraints removes referential and value constraints from every
// table except the preserved ones.
func (d *Databases) DisableConstraints(ctx context.Context, preserve Preserve) error {
	return d.eachSchema(func(db *Database, schema string) error {
		db.logger().Info("Disabling constraints", "database", db.Name, "schema", schema)
		if err := db.DisableReferentialConstraints(ctx, schema, preserve); err != nil {
			return err
		}

		return db.DisableValueConstraints(ctx, schema, preserve)
	})
}

// UpdateSequences raises sequences and identity columns below lowest to
// lowest.
func (d *Databases) UpdateSequences(ctx context.Context, lowest int64, preserve Preserve) error {
	return d.eachSchema(func(db *Database, schema string) error {
		db.logger().Info("Updating sequences", "database", db.Name, "schema", schema, "lowest", lowest)
		if err := db.ResetSequences(ctx, schema, lowest); err != nil {
			return err
		}

		return db.ResetIdentityColumns(ctx, schema, lowest, preserve)
	})
}

func (d *Databases) eachSchema(fn func(db *Database, schema string) error) error {
	for _, db := range d.Enabled() {
		for _, schema := range db.Schemas {
			if err := fn(db, schema); err != nil {
				return err
			}
		}
	}

	return nil
}
