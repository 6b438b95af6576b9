// Package config loads the ATD server configuration from a YAML file and
// applies environment variable overrides for deployment-sensitive values.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Brokerage API endpoints. The sandbox host serves the brokerage's paper
// trading environment; both are overridable from config for tests.
const (
	DefaultLiveBaseURL    = "https://openapi.koreainvestment.com:9443"
	DefaultSandboxBaseURL = "https://openapivts.koreainvestment.com:29443"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the ATD signal relay.
type Config struct {
	Server  Server  `yaml:"server"`
	Auth    Auth    `yaml:"auth"`
	Store   Store   `yaml:"store"`
	KIS     KIS     `yaml:"kis"`
	Discord Discord `yaml:"discord"`
	Trading Trading `yaml:"trading"`
	Logging Logging `yaml:"logging"`
}

// Server holds network listener configuration.
type Server struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
}

// Auth holds the basic-auth credentials guarding the admin API.
type Auth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Store selects and locates the credential store backend.
type Store struct {
	// Backend is "file" (JSON, full rewrite on change) or "sqlite".
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// KIS holds the brokerage API endpoints.
type KIS struct {
	BaseURL    string `yaml:"base_url"`
	SandboxURL string `yaml:"sandbox_url"`
}

// Discord holds the notification webhook endpoint.
type Discord struct {
	WebhookURL string `yaml:"webhook_url"`
}

// Trading defines order pipeline timing parameters.
type Trading struct {
	// PostOrderBalanceDelaySec is how long after a placed order the
	// follow-up balance snapshot is taken.
	PostOrderBalanceDelaySec int `yaml:"post_order_balance_delay_sec"`
}

// Logging configures the application logger.
type Logging struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// PostOrderBalanceDelay returns the configured delay as a duration,
// defaulting to 5 seconds.
func (t Trading) PostOrderBalanceDelay() time.Duration {
	if t.PostOrderBalanceDelaySec <= 0 {
		return 5 * time.Second
	}
	return time.Duration(t.PostOrderBalanceDelaySec) * time.Second
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies defaults, and then applies environment variable
// overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 80
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "file"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "data/apikeys.json"
	}
	if cfg.KIS.BaseURL == "" {
		cfg.KIS.BaseURL = DefaultLiveBaseURL
	}
	if cfg.KIS.SandboxURL == "" {
		cfg.KIS.SandboxURL = DefaultSandboxBaseURL
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set. Secrets should come
// in through here rather than the YAML file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ATD_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("ATD_AUTH_USERNAME"); v != "" {
		cfg.Auth.Username = v
	}
	if v := os.Getenv("ATD_AUTH_PASSWORD"); v != "" {
		cfg.Auth.Password = v
	}
	if v := os.Getenv("ATD_DISCORD_WEBHOOK"); v != "" {
		cfg.Discord.WebhookURL = v
	}
	if v := os.Getenv("ATD_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
