package maintainer_test

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	. "github.com/pseudomuto/dbmaint/pkg/maintainer"
	"github.com/pseudomuto/dbmaint/pkg/registry"
	"github.com/pseudomuto/dbmaint/pkg/script"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/golden"
)

func TestWriteReport(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = noColor })

	create := newScript(t, "01_create.sql", 10, "CREATE TABLE a (id INT);")
	users := newScript(t, "02_users.sql", 10, "CREATE TABLE users (id INT);")
	view := newScript(t, "views.sql", 10, "CREATE VIEW v AS SELECT 1;")
	grants := newScript(t, "postprocessing/01_grants.sql", 10, "GRANT 1;")

	tests := []struct {
		name    string
		scripts []*script.Script
		records []*registry.ExecutedScript
		policy  Policy
	}{
		{
			name:    "up_to_date",
			scripts: []*script.Script{create},
			records: []*registry.ExecutedScript{executed(t, create)},
		},
		{
			name:    "initial",
			scripts: []*script.Script{create},
		},
		{
			name: "update",
			scripts: []*script.Script{
				create,
				users,
				newScript(t, "views.sql", 20, "CREATE VIEW v AS SELECT 2;"),
				grants,
			},
			records: []*registry.ExecutedScript{
				executed(t, create),
				executed(t, view),
				executed(t, grants),
				executed(t, newScript(t, "postprocessing/old.sql", 10, "SELECT 1;")),
			},
		},
		{
			name:    "from_scratch",
			scripts: []*script.Script{newScript(t, "01_create.sql", 20, "CREATE TABLE b (id INT);"), users},
			records: []*registry.ExecutedScript{executed(t, create)},
			policy:  Policy{FromScratchEnabled: true},
		},
		{
			name: "disabled_database",
			scripts: []*script.Script{
				create,
				newScript(t, "03_@analytics_events.sql", 10, "CREATE TABLE events (id INT);"),
				users,
			},
			records: []*registry.ExecutedScript{executed(t, create)},
			policy:  Policy{DisabledDatabases: []string{"analytics"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Analyze(tt.scripts, tt.records, tt.policy)
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, WriteReport(&buf, plan))
			golden.Assert(t, buf.String(), tt.name+".golden")
		})
	}
}
