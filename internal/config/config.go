package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultPath returns the default config file path.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "libractl", "config.yml")
}

// DataDir returns the directory holding the local store and ledgers.
func DataDir() string {
	if d := os.Getenv("LIBRACTL_DATA_DIR"); d != "" {
		return ExpandHome(d)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "libractl")
}

// Load reads the config from disk (or env). Returns defaults if no file
// exists yet; init populates it.
func Load(path string) (*Config, error) {
	// A .env next to the working directory is optional.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	v := viper.New()

	v.SetDefault("local.backend", "file")
	v.SetDefault("remote.backend", "none")
	v.SetDefault("remote.token_env", "LIBRACTL_REMOTE_TOKEN")
	v.SetDefault("remote.database", "libractl")
	v.SetDefault("metadata.api_base", "https://www.googleapis.com/books/v1")
	v.SetDefault("metadata.max_results", 10)
	v.SetDefault("serve.host", "127.0.0.1")
	v.SetDefault("serve.port", 8080)
	v.SetDefault("log.level", "warn")

	v.SetEnvPrefix("LIBRACTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv("LIBRACTL_CONFIG")
	}
	if path == "" {
		path = DefaultPath()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		// Not finding the config file is fine.
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Resolve token from env (never stored in file).
	tokenEnv := cfg.Remote.TokenEnv
	if tokenEnv == "" {
		tokenEnv = "LIBRACTL_REMOTE_TOKEN"
	}
	cfg.Remote.Token = os.Getenv(tokenEnv)

	cfg.Local.Path = ExpandHome(cfg.Local.Path)
	cfg.Serve.DSN = ExpandHome(cfg.Serve.DSN)

	return &cfg, nil
}

// Save writes the config to path (the default path when empty).
func Save(cfg *Config, path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	return enc.Encode(cfg)
}

// ExpandHome expands a leading ~/ in a path.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
