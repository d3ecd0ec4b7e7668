package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alexanderramin/wbsledger/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// LogConfig controls use-case logging on stderr.
type LogConfig struct {
	UseCases bool   `yaml:"use_cases"`
	Format   string `yaml:"format"`
}

// Config holds everything the binary needs before wiring services.
type Config struct {
	DBPath   string    `yaml:"db_path"`
	User     string    `yaml:"user"`
	Currency string    `yaml:"currency"`
	Log      LogConfig `yaml:"log"`
}

// Default returns a Config rooted at ~/.wbsledger. The user defaults to the
// login name so audit columns are never blank.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		DBPath:   filepath.Join(home, ".wbsledger", "wbsledger.db"),
		User:     domain.CoalesceStr(os.Getenv("USER"), "system"),
		Currency: "USD",
		Log:      LogConfig{Format: LogFormatText},
	}
}

// DefaultPath is where Load looks when neither an explicit path nor
// WBSLEDGER_CONFIG is given.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".wbsledger", "config.yaml")
	}
	return filepath.Join(home, ".wbsledger", "config.yaml")
}

// Load layers defaults, the YAML file at path and WBSLEDGER_* environment
// variables, then validates the result. A missing file is not an error
// unless the path was given explicitly.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		if v := os.Getenv("WBSLEDGER_CONFIG"); v != "" {
			path, explicit = v, true
		} else {
			path = DefaultPath()
		}
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Currency = strings.ToUpper(strings.TrimSpace(cfg.Currency))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("WBSLEDGER_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("WBSLEDGER_USER"); v != "" {
		cfg.User = v
	}
	if v := os.Getenv("WBSLEDGER_CURRENCY"); v != "" {
		cfg.Currency = v
	}
	if v := os.Getenv("WBSLEDGER_LOG_USE_CASES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("WBSLEDGER_LOG_USE_CASES: %w", err)
		}
		cfg.Log.UseCases = b
	}
	if v := os.Getenv("WBSLEDGER_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	return nil
}

// Validate rejects configurations the services cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("config: db_path is required")
	}
	if strings.TrimSpace(c.User) == "" {
		return errors.New("config: user is required")
	}
	if err := domain.ValidateCurrency(c.Currency); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Log.Format {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("config: unknown log format %q (want %s or %s)", c.Log.Format, LogFormatText, LogFormatJSON)
	}
	return nil
}
