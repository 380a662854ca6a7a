package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/agentpkg/relic/pkg/abs"
	"github.com/agentpkg/relic/pkg/logging"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. RELIC_DATA_DIR.
const EnvPrefix = "RELIC"

const appName = "relic"

// Viper keys. The file-backed keys match the relic.yaml field names.
const (
	KeyConfigDir = "config-dir"
	KeyDataDir   = "data-dir"
	KeyLogLevel  = "log-level"
	KeyDebug     = "debug"
	KeyQuiet     = "quiet"
	KeyBaseURL   = "baseurl"
	KeyRepos     = "repos"
)

// flagNames maps viper keys to the CLI flags bound to them, where the two
// differ.
var flagNames = map[string]string{
	KeyBaseURL: "base-url",
}

// Settings is the fully resolved runtime configuration. It is resolved with
// Viper precedence: CLI flags > RELIC_* environment > relic.yaml > defaults.
type Settings struct {
	ConfigDir string   `mapstructure:"config-dir"`
	DataDir   string   `mapstructure:"data-dir"`
	LogLevel  string   `mapstructure:"log-level"`
	Debug     bool     `mapstructure:"debug"`
	Quiet     bool     `mapstructure:"quiet"`
	BaseURL   string   `mapstructure:"baseurl"`
	Repos     []string `mapstructure:"repos"`
}

// LoadSettings resolves settings for the given flag set, defaulting the
// directories to the XDG base directories.
func LoadSettings(flags *pflag.FlagSet) (*Settings, error) {
	return loadSettings(flags, filepath.Join(xdg.ConfigHome, appName), filepath.Join(xdg.DataHome, appName))
}

// loadSettings is the internal implementation that accepts explicit default
// directories, making it testable without touching the real home directory.
func loadSettings(flags *pflag.FlagSet, defaultConfigDir, defaultDataDir string) (*Settings, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv(KeyBaseURL, EnvPrefix+"_BASE_URL"); err != nil {
		return nil, err
	}

	v.SetDefault(KeyConfigDir, defaultConfigDir)
	v.SetDefault(KeyDataDir, defaultDataDir)
	v.SetDefault(KeyLogLevel, logging.DefaultLevel)
	v.SetDefault(KeyBaseURL, abs.DefaultBaseURL)

	if flags != nil {
		for _, key := range []string{KeyConfigDir, KeyDataDir, KeyLogLevel, KeyDebug, KeyQuiet, KeyBaseURL, KeyRepos} {
			name := key
			if n, ok := flagNames[key]; ok {
				name = n
			}
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding --%s: %w", name, err)
				}
			}
		}
	}

	// The config file lives in the config dir, so that has to be settled
	// before the file is read.
	configFile := filepath.Join(v.GetString(KeyConfigDir), ConfigFileName)
	if _, err := os.Stat(configFile); err == nil {
		if _, err := LoadFile(configFile); err != nil {
			return nil, err
		}
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", configFile, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("checking %s: %w", configFile, err)
	}

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("unmarshaling settings: %w", err)
	}

	if s.Debug {
		s.LogLevel = "debug"
	}

	return s, nil
}

// ConfigFile returns the path of relic.yaml.
func (s *Settings) ConfigFile() string {
	return filepath.Join(s.ConfigDir, ConfigFileName)
}

// LockFile returns the path of the lock file.
func (s *Settings) LockFile() string {
	return filepath.Join(s.DataDir, LockFileName)
}

// PackageDir returns the default destination for a fetched package.
func (s *Settings) PackageDir(pkg string) string {
	return filepath.Join(s.DataDir, "abs", pkg)
}

// Catalog builds the ordered repository catalog.
func (s *Settings) Catalog() (abs.Catalog, error) {
	return abs.NewCatalog(s.BaseURL, s.Repos)
}

// Config returns the persistable subset of the settings. The default base
// URL is left out so the file keeps following it.
func (s *Settings) Config() *Config {
	cfg := Default()
	if s.BaseURL != abs.DefaultBaseURL {
		cfg.BaseURL = s.BaseURL
	}
	cfg.Repos = s.Repos
	return cfg
}
