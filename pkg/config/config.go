package config

import (
	"bytes"
	"io"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/pseudomuto/dbmaint/pkg/consts"
	"github.com/pseudomuto/dbmaint/pkg/utils"
	"gopkg.in/yaml.v3"
)

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

type (
	// TLS holds the client certificate settings for a database connection.
	TLS struct {
		CAFile   string `yaml:"ca_file,omitempty"`
		CertFile string `yaml:"cert_file,omitempty"`
		KeyFile  string `yaml:"key_file,omitempty"`
	}

	// Database describes one target database.
	//
	// The first database in the configuration is the default database. It
	// holds the executed scripts table and receives every script that does not
	// name a target database with @name.
	Database struct {
		// Name identifies the database in script names (@name).
		Name string `yaml:"name"`

		// Dialect is one of postgres, mysql, sqlite or clickhouse.
		Dialect string `yaml:"dialect"`

		// URL is the driver specific connection string.
		URL string `yaml:"url"`

		// Schemas are the managed schemas. The first is the default schema.
		// When empty the dialect's current schema is used.
		Schemas []string `yaml:"schemas,omitempty"`

		// Included marks the database as enabled. Scripts targeting a database
		// that is not included are skipped. Defaults to true.
		Included *bool `yaml:"included,omitempty"`

		// BackslashEscaping overrides the dialect default for string literals.
		BackslashEscaping *bool `yaml:"backslash_escaping,omitempty"`

		// StatementSeparator is the single character ending a statement,
		// ';' when empty.
		StatementSeparator string `yaml:"statement_separator,omitempty"`

		TLS *TLS `yaml:"tls,omitempty"`
	}

	// Scripts controls where scripts are found and how they are interpreted.
	Scripts struct {
		Locations          []string          `yaml:"locations"`
		Extensions         []string          `yaml:"extensions,omitempty"`
		Encoding           string            `yaml:"encoding,omitempty"`
		PostProcessingDir  string            `yaml:"postprocessing_dir,omitempty"`
		Qualifiers         []string          `yaml:"qualifiers,omitempty"`
		PatchQualifiers    []string          `yaml:"patch_qualifiers,omitempty"`
		IncludedQualifiers []string          `yaml:"included_qualifiers,omitempty"`
		ExcludedQualifiers []string          `yaml:"excluded_qualifiers,omitempty"`
		Parameters         map[string]string `yaml:"parameters,omitempty"`
		ParameterFile      string            `yaml:"parameter_file,omitempty"`
	}

	// Update holds the consistency policy of an update run.
	Update struct {
		// FromScratch allows the database to be cleared and rebuilt when an
		// executed script changed or a script was added out of sequence.
		FromScratch bool `yaml:"from_scratch"`

		// AllowOutOfSequencePatches lets patch scripts run out of sequence.
		AllowOutOfSequencePatches bool `yaml:"allow_out_of_sequence_patches"`

		// UseLastModifiedDates skips hashing scripts whose modification time
		// matches the recorded one. Defaults to true.
		UseLastModifiedDates *bool `yaml:"use_last_modified_dates,omitempty"`

		// CleanDB deletes all data before the scripts are executed.
		CleanDB bool `yaml:"clean_db"`

		// DisableConstraints drops foreign key and not null constraints after
		// a successful update.
		DisableConstraints bool `yaml:"disable_constraints"`

		// UpdateSequences raises sequences and identity columns to
		// LowestSequenceValue after a successful update.
		UpdateSequences bool `yaml:"update_sequences"`

		LowestSequenceValue int64 `yaml:"lowest_sequence_value,omitempty"`
	}

	// Registry configures the executed scripts table.
	Registry struct {
		Table      string `yaml:"table,omitempty"`
		AutoCreate *bool  `yaml:"auto_create,omitempty"`
	}

	// Clear configures the clear and clean passes.
	Clear struct {
		// Preserve lists "schema.object" or "object" names that are never
		// dropped or emptied.
		Preserve []string `yaml:"preserve,omitempty"`
	}

	// Config is the dbmaint project configuration.
	Config struct {
		Databases []Database `yaml:"databases"`
		Scripts   Scripts    `yaml:"scripts"`
		Update    Update     `yaml:"update"`
		Registry  Registry   `yaml:"registry"`
		Clear     Clear      `yaml:"clear"`
	}
)

// LoadConfig parses a configuration from the provided io.Reader.
//
// ${VAR} references are expanded from the process environment before the
// YAML is decoded. Any other $ is kept as is. Missing values are filled from pkg/consts and the result is
// validated.
//
// Example:
//
//	yamlData := `
//	databases:
//	  - name: main
//	    dialect: postgres
//	    url: ${DATABASE_URL}
//	scripts:
//	  locations: [db/scripts]
//	`
//
//	cfg, err := config.LoadConfig(strings.NewReader(yamlData))
//	if err != nil {
//		panic(err)
//	}
//
//	fmt.Printf("Default database: %s\n", cfg.DefaultDatabase().Name)
func LoadConfig(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config")
	}

	var cfg Config
	if err := yaml.NewDecoder(bytes.NewReader([]byte(expandEnv(string(data))))).Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadConfigFile loads a configuration from the specified file path.
//
// A .env file next to the configuration is loaded first without overriding
// variables already set. A relative parameter_file is resolved against the
// configuration's directory and merged over the inline parameters.
//
// Example:
//
//	cfg, err := config.LoadConfigFile("dbmaint.yaml")
//	if err != nil {
//		log.Fatal("Failed to load config:", err)
//	}
func LoadConfigFile(path string) (*Config, error) {
	dir := filepath.Dir(path)

	envFile := filepath.Join(dir, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, errors.Wrapf(err, "failed to load env file: %s", envFile)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open file: %s", path)
	}
	defer func() { _ = f.Close() }()

	cfg, err := LoadConfig(f)
	if err != nil {
		return nil, err
	}

	if pf := cfg.Scripts.ParameterFile; pf != "" {
		if !filepath.IsAbs(pf) {
			pf = filepath.Join(dir, pf)
		}

		if err := cfg.Scripts.mergeParameterFile(pf); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate reports configuration errors that would prevent a run.
func (c *Config) Validate() error {
	if len(c.Databases) == 0 {
		return errors.New("at least one database must be configured")
	}

	seen := make(map[string]bool, len(c.Databases))
	for i, db := range c.Databases {
		if db.Name == "" {
			return errors.Errorf("databases[%d]: name is required", i)
		}

		if seen[db.Name] {
			return errors.Errorf("databases[%d]: duplicate database name %s", i, db.Name)
		}
		seen[db.Name] = true

		if db.Dialect == "" {
			return errors.Errorf("database %s: dialect is required", db.Name)
		}

		if sep := db.StatementSeparator; sep != "" && utf8.RuneCountInString(sep) != 1 {
			return errors.Errorf("database %s: statement_separator must be a single character, got %q", db.Name, sep)
		}
	}

	if !c.Databases[0].Enabled() {
		return errors.Errorf("database %s: the default database cannot be excluded", c.Databases[0].Name)
	}

	if c.Update.LowestSequenceValue < 0 {
		return errors.New("update.lowest_sequence_value must not be negative")
	}

	return nil
}

// DefaultDatabase returns the first configured database.
func (c *Config) DefaultDatabase() Database {
	return c.Databases[0]
}

// DatabaseNames returns the names of all configured databases.
func (c *Config) DatabaseNames() []string {
	names := make([]string, len(c.Databases))
	for i, db := range c.Databases {
		names[i] = db.Name
	}

	return names
}

// Separator returns the configured statement separator, zero for the
// default.
func (d Database) Separator() rune {
	if d.StatementSeparator == "" {
		return 0
	}

	r, _ := utf8.DecodeRuneInString(d.StatementSeparator)
	return r
}

// Enabled reports whether scripts are executed against the database.
func (d Database) Enabled() bool {
	return d.Included == nil || *d.Included
}

// LastModifiedFastPath reports whether unchanged modification times skip
// hashing.
func (u Update) LastModifiedFastPath() bool {
	return u.UseLastModifiedDates == nil || *u.UseLastModifiedDates
}

// AutoCreateTable reports whether the executed scripts table is created when
// missing.
func (r Registry) AutoCreateTable() bool {
	return r.AutoCreate == nil || *r.AutoCreate
}

func (c *Config) applyDefaults() {
	if len(c.Scripts.Extensions) == 0 {
		c.Scripts.Extensions = consts.DefaultScriptExtensions
	}
	if c.Scripts.Encoding == "" {
		c.Scripts.Encoding = consts.DefaultEncoding
	}
	if c.Scripts.PostProcessingDir == "" {
		c.Scripts.PostProcessingDir = consts.DefaultPostProcessingDir
	}
	if len(c.Scripts.PatchQualifiers) == 0 {
		c.Scripts.PatchQualifiers = []string{consts.DefaultPatchQualifier}
	}
	if c.Update.LowestSequenceValue == 0 {
		c.Update.LowestSequenceValue = consts.DefaultLowestSequenceValue
	}
	if c.Registry.Table == "" {
		c.Registry.Table = consts.DefaultRegistryTable
	}
	if c.Registry.AutoCreate == nil {
		c.Registry.AutoCreate = utils.Ptr(true)
	}
	if c.Update.UseLastModifiedDates == nil {
		c.Update.UseLastModifiedDates = utils.Ptr(true)
	}

	for i := range c.Databases {
		c.Databases[i].Dialect = strings.ToLower(c.Databases[i].Dialect)
		if c.Databases[i].Included == nil {
			c.Databases[i].Included = utils.Ptr(true)
		}
	}
}

// expandEnv replaces ${NAME} references with the value of the environment
// variable, empty when unset.
func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(ref string) string {
		return os.Getenv(envPattern.FindStringSubmatch(ref)[1])
	})
}

func (s *Scripts) mergeParameterFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read parameter file: %s", path)
	}

	var params map[string]string
	if err := yaml.Unmarshal([]byte(expandEnv(string(data))), &params); err != nil {
		return errors.Wrapf(err, "failed to unmarshal parameter file: %s", path)
	}

	if s.Parameters == nil {
		s.Parameters = make(map[string]string, len(params))
	}
	maps.Copy(s.Parameters, params)

	return nil
}
