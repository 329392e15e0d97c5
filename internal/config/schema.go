package config

import (
	"path/filepath"
	"strings"
)

// Config is the top-level libractl configuration.
type Config struct {
	Local    LocalConfig    `mapstructure:"local" yaml:"local"`
	Remote   RemoteConfig   `mapstructure:"remote" yaml:"remote"`
	Metadata MetadataConfig `mapstructure:"metadata" yaml:"metadata"`
	Serve    ServeConfig    `mapstructure:"serve" yaml:"serve"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// LocalConfig selects the local key-value store.
type LocalConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // "file" or "sqlite"
	Path    string `mapstructure:"path" yaml:"path"`
}

// RemoteConfig selects the remote document store mirror.
type RemoteConfig struct {
	Backend  string `mapstructure:"backend" yaml:"backend"` // "none", "http" or "mongo"
	URL      string `mapstructure:"url" yaml:"url"`
	TokenEnv string `mapstructure:"token_env" yaml:"token_env"`
	Database string `mapstructure:"database" yaml:"database"`
	Token    string `mapstructure:"-" yaml:"-"` // resolved at runtime, never written
}

// MetadataConfig points at the public book-metadata API.
type MetadataConfig struct {
	APIBase    string `mapstructure:"api_base" yaml:"api_base"`
	MaxResults int    `mapstructure:"max_results" yaml:"max_results"`
}

// ServeConfig holds settings for the bundled document server.
type ServeConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	DSN  string `mapstructure:"dsn" yaml:"dsn"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// EffectiveBackend returns the local backend, defaulting to "file".
func (l *LocalConfig) EffectiveBackend() string {
	switch strings.ToLower(l.Backend) {
	case "sqlite":
		return "sqlite"
	default:
		return "file"
	}
}

// EffectivePath returns the local store path. File stores use a directory,
// SQLite stores a database file inside dataDir.
func (l *LocalConfig) EffectivePath(dataDir string) string {
	if l.Path != "" {
		return l.Path
	}
	if l.EffectiveBackend() == "sqlite" {
		return filepath.Join(dataDir, "library.db")
	}
	return filepath.Join(dataDir, "store")
}

// EffectiveBackend returns the remote backend, defaulting to "none".
func (r *RemoteConfig) EffectiveBackend() string {
	switch strings.ToLower(r.Backend) {
	case "http", "mongo":
		return strings.ToLower(r.Backend)
	default:
		return "none"
	}
}

// EffectiveDatabase returns the Mongo database name.
func (r *RemoteConfig) EffectiveDatabase() string {
	if r.Database != "" {
		return r.Database
	}
	return "libractl"
}

// EffectiveMaxResults caps search results; the public API default is 10.
func (m *MetadataConfig) EffectiveMaxResults() int {
	if m.MaxResults <= 0 || m.MaxResults > 40 {
		return 10
	}
	return m.MaxResults
}

// EffectiveDSN returns the document server DSN. A bare path means SQLite.
func (s *ServeConfig) EffectiveDSN(dataDir string) string {
	if s.DSN != "" {
		return s.DSN
	}
	return filepath.Join(dataDir, "docstore.db")
}
