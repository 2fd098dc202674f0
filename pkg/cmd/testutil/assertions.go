package testutil

import (
	"context"
	"testing"

	"github.com/pseudomuto/dbmaint/pkg/consts"
	"github.com/pseudomuto/dbmaint/pkg/database"
	"github.com/pseudomuto/dbmaint/pkg/registry"
	"github.com/stretchr/testify/require"
)

// RequireTables asserts that exactly the given tables exist in the default
// schema, ignoring the executed scripts table.
func RequireTables(t *testing.T, db *database.Database, expected ...string) {
	t.Helper()

	objects, err := db.Dialect.ListObjects(context.Background(), db.DB, db.DefaultSchema(), database.Table)
	require.NoError(t, err, "Failed to list tables")

	var tables []string
	for _, obj := range objects {
		if obj.Name != consts.DefaultRegistryTable {
			tables = append(tables, obj.Name)
		}
	}

	require.ElementsMatch(t, expected, tables, "Unexpected tables")
}

// RequireRecords asserts the executed scripts table holds the given scripts
// with their outcome.
func RequireRecords(t *testing.T, db *database.Database, expected map[string]bool) {
	t.Helper()

	records, err := registry.New(registry.Config{Database: db}).Records(context.Background())
	require.NoError(t, err, "Failed to read executed scripts")

	actual := make(map[string]bool, len(records))
	for _, rec := range records {
		actual[rec.FileName] = rec.Succeeded
	}

	require.Equal(t, expected, actual, "Unexpected executed scripts")
}
