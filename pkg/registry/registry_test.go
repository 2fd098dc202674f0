package registry_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/pseudomuto/dbmaint/pkg/config"
	"github.com/pseudomuto/dbmaint/pkg/consts"
	"github.com/pseudomuto/dbmaint/pkg/database"
	. "github.com/pseudomuto/dbmaint/pkg/registry"
	"github.com/stretchr/testify/require"
)

func testDatabase(t *testing.T) *database.Database {
	t.Helper()

	db, err := database.Connect(context.Background(), config.Database{
		Name:    "main",
		Dialect: "sqlite",
		URL:     filepath.Join(t.TempDir(), "registry.db"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func newRegistry(t *testing.T) *Registry {
	t.Helper()

	reg := New(Config{Database: testDatabase(t), AutoCreate: true})
	require.NoError(t, reg.Init(context.Background()))
	return reg
}

func TestNewDefaults(t *testing.T) {
	reg := New(Config{Database: testDatabase(t)})

	require.Equal(t, "main", reg.Schema())
	require.Equal(t, consts.DefaultRegistryTable, reg.Table())
	require.Equal(t, "main."+consts.DefaultRegistryTable, reg.QualifiedTable())
}

func TestInit(t *testing.T) {
	t.Run("auto create", func(t *testing.T) {
		ctx := context.Background()
		reg := New(Config{Database: testDatabase(t), Table: "history", AutoCreate: true})

		exists, err := reg.Exists(ctx)
		require.NoError(t, err)
		require.False(t, exists)

		empty, err := reg.IsEmpty(ctx)
		require.NoError(t, err)
		require.True(t, empty)

		require.NoError(t, reg.Init(ctx))
		require.NoError(t, reg.Init(ctx))

		exists, err = reg.Exists(ctx)
		require.NoError(t, err)
		require.True(t, exists)
	})

	t.Run("missing table", func(t *testing.T) {
		reg := New(Config{Database: testDatabase(t)})

		err := reg.Init(context.Background())
		require.Error(t, err)

		var regErr *RegistryError
		require.True(t, errors.As(err, &regErr))
		require.Equal(t, "main.dbmaintain_scripts", regErr.Table)
		require.True(t, errors.Is(err, ErrTableMissing))
		require.EqualError(t, err, "registry table main.dbmaintain_scripts: executed scripts table does not exist")
	})
}

func TestRecord(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	empty, err := reg.IsEmpty(ctx)
	require.NoError(t, err)
	require.True(t, empty)

	first := &ExecutedScript{
		FileName:           "01_create.sql",
		FileLastModifiedAt: 100,
		Checksum:           "h1:abc",
		ExecutedAt:         1000,
		FinishedAt:         1001,
		Succeeded:          true,
	}
	second := &ExecutedScript{
		FileName:   "02_add.sql",
		Checksum:   "h1:def",
		ExecutedAt: 2000,
		FinishedAt: 2001,
	}

	require.NoError(t, reg.Record(ctx, second))
	require.NoError(t, reg.Record(ctx, first))

	records, err := reg.Records(ctx)
	require.NoError(t, err)
	require.Equal(t, []*ExecutedScript{first, second}, records)

	empty, err = reg.IsEmpty(ctx)
	require.NoError(t, err)
	require.False(t, empty)

	// Recording again overwrites the existing row.
	updated := *second
	updated.Checksum = "h1:xyz"
	updated.Succeeded = true
	require.NoError(t, reg.Record(ctx, &updated))

	records, err = reg.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "h1:xyz", records[1].Checksum)
	require.True(t, records[1].Succeeded)
}

func TestRemoveAndClear(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	require.NoError(t, reg.Record(ctx, &ExecutedScript{FileName: "01_a.sql", ExecutedAt: 1, Succeeded: true}))
	require.NoError(t, reg.Record(ctx, &ExecutedScript{FileName: "02_b.sql", ExecutedAt: 2, Succeeded: true}))

	require.NoError(t, reg.Remove(ctx, "01_a.sql"))
	records, err := reg.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "02_b.sql", records[0].FileName)

	require.NoError(t, reg.Remove(ctx, "missing.sql"))

	require.NoError(t, reg.Clear(ctx))
	empty, err := reg.IsEmpty(ctx)
	require.NoError(t, err)
	require.True(t, empty)
}

func TestErrorRecords(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T) *Registry {
		reg := newRegistry(t)
		require.NoError(t, reg.Record(ctx, &ExecutedScript{FileName: "01_a.sql", ExecutedAt: 1, Succeeded: true}))
		require.NoError(t, reg.Record(ctx, &ExecutedScript{FileName: "02_b.sql", ExecutedAt: 2, Succeeded: false}))
		return reg
	}

	t.Run("list", func(t *testing.T) {
		reg := seed(t)

		records, err := reg.ErrorRecords(ctx)
		require.NoError(t, err)
		require.Len(t, records, 1)
		require.Equal(t, "02_b.sql", records[0].FileName)
	})

	t.Run("mark successful", func(t *testing.T) {
		reg := seed(t)

		marked, err := reg.MarkErrorScriptsAsSuccessful(ctx)
		require.NoError(t, err)
		require.Len(t, marked, 1)

		records, err := reg.ErrorRecords(ctx)
		require.NoError(t, err)
		require.Empty(t, records)

		all, err := reg.Records(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		require.True(t, all[1].Succeeded)
	})

	t.Run("remove", func(t *testing.T) {
		reg := seed(t)

		removed, err := reg.RemoveErrorScripts(ctx)
		require.NoError(t, err)
		require.Len(t, removed, 1)
		require.Equal(t, "02_b.sql", removed[0].FileName)

		all, err := reg.Records(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		require.Equal(t, "01_a.sql", all[0].FileName)
	})
}
