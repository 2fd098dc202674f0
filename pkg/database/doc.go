// Package database connects to the target databases and performs the
// maintenance operations that need dialect specific SQL.
//
// A Dialect describes one database engine. Optional features are advertised
// through Capabilities and checked before an operation is attempted, so a
// dialect without sequences simply skips the sequence pass instead of
// failing:
//
//	db, err := database.Connect(ctx, cfg.Databases[0], logger)
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//
//	// Drops views, triggers, tables, sequences, routines and types.
//	err = db.DropAllObjects(ctx, db.DefaultSchema(), database.NewPreserve("countries"))
//
// The supported dialects are PostgreSQL (lib/pq), MySQL (go-sql-driver),
// SQLite (mattn/go-sqlite3) and ClickHouse (clickhouse-go).
package database
