package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"k8s.io/client-go/util/homedir"
)

const (
	ProviderHTTP   = "http"
	ProviderReplay = "replay"

	DefaultEndpoint = "http://localhost:8000/api/analyze"
)

// Config holds all labellens configuration.
type Config struct {
	// Remote analysis service
	Service ServiceConfig `yaml:"service"`

	// Path of the YAML profile read at request-build time
	ProfilePath string `yaml:"profile_path"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ServiceConfig configures how requests reach the analysis service.
type ServiceConfig struct {
	Provider   string `yaml:"provider"` // http, replay
	Endpoint   string `yaml:"endpoint"`
	Timeout    string `yaml:"timeout"`     // empty means no timeout
	ReplayFile string `yaml:"replay_file"` // recorded reply served by the replay provider
}

// LoggingConfig configures diagnostics. The rendered result always goes to stdout.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// Dir is where labellens keeps its files, ~/.labellens by default.
func Dir() string {
	if home := homedir.HomeDir(); home != "" {
		return filepath.Join(home, ".labellens")
	}
	return ".labellens"
}

func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Provider: ProviderHTTP,
			Endpoint: DefaultEndpoint,
		},
		ProfilePath: filepath.Join(Dir(), "profile.yaml"),
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and validates.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LABELLENS_PROVIDER"); v != "" {
		c.Service.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("LABELLENS_ENDPOINT"); v != "" {
		c.Service.Endpoint = v
	}
	if v := os.Getenv("LABELLENS_TIMEOUT"); v != "" {
		c.Service.Timeout = v
	}
	if v := os.Getenv("LABELLENS_REPLAY_FILE"); v != "" {
		c.Service.ReplayFile = v
		if os.Getenv("LABELLENS_PROVIDER") == "" {
			c.Service.Provider = ProviderReplay
		}
	}
	if v := os.Getenv("LABELLENS_PROFILE"); v != "" {
		c.ProfilePath = v
	}
	if v := os.Getenv("LABELLENS_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

func (c *Config) Validate() error {
	switch c.Service.Provider {
	case ProviderHTTP:
		u, err := url.Parse(c.Service.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid service endpoint %q", c.Service.Endpoint)
		}
	case ProviderReplay:
		if c.Service.ReplayFile == "" {
			return fmt.Errorf("replay provider needs service.replay_file")
		}
	default:
		return fmt.Errorf("unsupported provider: %s (supported: http, replay)", c.Service.Provider)
	}

	if _, err := c.Service.TimeoutDuration(); err != nil {
		return err
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}
	return nil
}

// TimeoutDuration parses Timeout. Zero means requests never time out.
func (s ServiceConfig) TimeoutDuration() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid service timeout %q: %w", s.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid service timeout %q: must not be negative", s.Timeout)
	}
	return d, nil
}
