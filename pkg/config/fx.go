package config

import (
	"os"
	"sync"

	"github.com/pseudomuto/dbmaint/pkg/consts"
	"go.uber.org/fx"
)

var Module = fx.Module("config", fx.Provide(NewSource))

// Source resolves the configuration file once the working directory and the
// --config flag are known. The file is read on the first call to Load.
type Source struct {
	// Path is the configuration file. Defaults to consts.DefaultConfigFile.
	Path string

	once sync.Once
	cfg  *Config
	err  error
}

// NewSource returns a Source for the default configuration file.
func NewSource() *Source {
	return &Source{Path: consts.DefaultConfigFile}
}

// Load returns the configuration. A missing file yields a nil config and no
// error, allowing commands that don't require config (like help or version)
// to function properly.
func (s *Source) Load() (*Config, error) {
	s.once.Do(func() {
		if _, err := os.Stat(s.Path); os.IsNotExist(err) {
			return
		}

		s.cfg, s.err = LoadConfigFile(s.Path)
	})

	return s.cfg, s.err
}
