package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pseudomuto/dbmaint/pkg/config"
	"github.com/pseudomuto/dbmaint/pkg/consts"
	"github.com/pseudomuto/dbmaint/pkg/database"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// ProjectFixture represents a test project: a configuration file, a script
// directory and a SQLite database, all inside a temp directory.
type ProjectFixture struct {
	Dir    string
	Config *config.Config
	t      *testing.T
}

// TestProject creates an isolated temp directory with a dbmaint.yaml
// targeting a SQLite database. Modification times are not trusted so scripts
// rewritten within the same millisecond are still detected as changed.
func TestProject(t *testing.T) *ProjectFixture {
	t.Helper()

	tmpDir := t.TempDir()
	scriptsDir := filepath.Join(tmpDir, "db", "scripts")
	require.NoError(t, os.MkdirAll(scriptsDir, consts.ModeDir), "Failed to create scripts directory")

	trustModTimes := false
	fixture := &ProjectFixture{
		Dir: tmpDir,
		Config: &config.Config{
			Databases: []config.Database{{
				Name:    "main",
				Dialect: "sqlite",
				URL:     filepath.Join(tmpDir, "main.db"),
			}},
			Scripts: config.Scripts{Locations: []string{scriptsDir}},
			Update:  config.Update{UseLastModifiedDates: &trustModTimes},
		},
		t: t,
	}

	require.NoError(t, fixture.writeConfig(), "Failed to write config")
	return fixture
}

// WithConfig applies fn to the configuration and writes it back to disk.
func (p *ProjectFixture) WithConfig(fn func(*config.Config)) *ProjectFixture {
	p.t.Helper()

	fn(p.Config)
	require.NoError(p.t, p.writeConfig(), "Failed to write updated config")

	return p
}

// WithScripts writes scripts, keyed by their path below the scripts
// directory.
func (p *ProjectFixture) WithScripts(files map[string]string) *ProjectFixture {
	p.t.Helper()

	for path, content := range files {
		fullPath := filepath.Join(p.ScriptsDir(), filepath.FromSlash(path))

		dir := filepath.Dir(fullPath)
		require.NoError(p.t, os.MkdirAll(dir, consts.ModeDir), "Failed to create directory: %s", dir)
		require.NoError(p.t, os.WriteFile(fullPath, []byte(content), consts.ModeFile), "Failed to write script: %s", path)
	}

	return p
}

// RemoveScript deletes a script from the scripts directory.
func (p *ProjectFixture) RemoveScript(path string) *ProjectFixture {
	p.t.Helper()

	require.NoError(p.t, os.Remove(filepath.Join(p.ScriptsDir(), filepath.FromSlash(path))))
	return p
}

// Source returns a fresh configuration source for the fixture's config file.
func (p *ProjectFixture) Source() *config.Source {
	return &config.Source{Path: p.ConfigPath()}
}

// Database connects to the fixture's default database.
func (p *ProjectFixture) Database() *database.Database {
	p.t.Helper()

	db, err := database.Connect(context.Background(), p.Config.Databases[0], nil)
	require.NoError(p.t, err, "Failed to connect to test database")
	p.t.Cleanup(func() { _ = db.Close() })

	return db
}

// ConfigPath returns the path to the dbmaint.yaml file
func (p *ProjectFixture) ConfigPath() string {
	return filepath.Join(p.Dir, consts.DefaultConfigFile)
}

// ScriptsDir returns the path to the scripts directory
func (p *ProjectFixture) ScriptsDir() string {
	return filepath.Join(p.Dir, "db", "scripts")
}

// writeConfig writes the configuration to a file
func (p *ProjectFixture) writeConfig() error {
	file, err := os.Create(p.ConfigPath())
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := yaml.NewEncoder(file)
	defer encoder.Close()

	return encoder.Encode(p.Config)
}
