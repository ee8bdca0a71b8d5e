package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/bcnelson/psm-connector/internal/domain"
	"github.com/caarlos0/env/v9"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the connector.
type Config struct {
	Appliance ApplianceConfig `yaml:"appliance"`
	Session   SessionConfig   `yaml:"session"`
	Log       LogConfig       `yaml:"log"`
}

// ApplianceConfig identifies the PSM appliance and the credentials used on it.
type ApplianceConfig struct {
	ServerAddress string `env:"PSM_SERVER_ADDRESS" yaml:"server_address"`
	Port          int    `env:"PSM_PORT" envDefault:"443" yaml:"port"`
	Username      string `env:"PSM_USERNAME" yaml:"username"`
	Password      string `env:"PSM_PASSWORD" yaml:"password"`
	Tenant        string `env:"PSM_TENANT" yaml:"tenant"`
	Protocol      string `env:"PSM_PROTOCOL" envDefault:"https" yaml:"protocol"`
	VerifySSL     bool   `env:"PSM_VERIFY_SSL" envDefault:"true" yaml:"verify_ssl"`
	ConfigID      string `env:"PSM_CONFIG_ID" yaml:"config_id"`
}

// SessionConfig selects where session state is persisted between invocations.
type SessionConfig struct {
	Store         string `env:"PSM_SESSION_STORE" envDefault:"file" yaml:"store"` // file, sqlite3, postgres, redis, memory
	TmpFileRoot   string `env:"PSM_TMP_FILE_ROOT" yaml:"tmp_file_root"`
	DSN           string `env:"PSM_SESSION_DSN" yaml:"dsn"`
	RedisAddr     string `env:"PSM_REDIS_ADDR" envDefault:"localhost:6379" yaml:"redis_addr"`
	RedisPassword string `env:"PSM_REDIS_PASSWORD" yaml:"redis_password"`
	RedisDB       int    `env:"PSM_REDIS_DB" envDefault:"0" yaml:"redis_db"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `env:"PSM_LOG_LEVEL" envDefault:"info" yaml:"level"`
	Format string `env:"PSM_LOG_FORMAT" envDefault:"text" yaml:"format"` // text or json
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(&cfg.Appliance); err != nil {
		return nil, fmt.Errorf("parsing appliance config: %w", err)
	}
	if err := env.Parse(&cfg.Session); err != nil {
		return nil, fmt.Errorf("parsing session config: %w", err)
	}
	if err := env.Parse(&cfg.Log); err != nil {
		return nil, fmt.Errorf("parsing log config: %w", err)
	}

	return cfg, nil
}

// LoadFile loads configuration from the environment and overlays the keys
// present in the YAML file at path.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks that every field needed to reach the appliance is present.
// It never touches the network.
func (c *ApplianceConfig) Validate() error {
	var missing []string
	if strings.TrimSpace(c.ServerAddress) == "" {
		missing = append(missing, "server_address")
	}
	if c.Port <= 0 {
		missing = append(missing, "port")
	}
	if strings.TrimSpace(c.Username) == "" {
		missing = append(missing, "username")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}
	if strings.TrimSpace(c.Tenant) == "" {
		missing = append(missing, "tenant")
	}
	if strings.TrimSpace(c.Protocol) == "" {
		missing = append(missing, "protocol")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required parameters: %s", domain.ErrConfiguration, strings.Join(missing, ", "))
	}

	switch c.Scheme() {
	case "http", "https":
	default:
		return fmt.Errorf("%w: unsupported protocol %q", domain.ErrConfiguration, c.Protocol)
	}
	return nil
}

// Scheme returns the lower-cased URL scheme.
func (c *ApplianceConfig) Scheme() string {
	return strings.ToLower(strings.TrimSpace(c.Protocol))
}

// BaseURL returns protocol://server_address:port.
func (c *ApplianceConfig) BaseURL() string {
	return fmt.Sprintf("%s://%s", c.Scheme(), net.JoinHostPort(c.ServerAddress, strconv.Itoa(c.Port)))
}

// SessionKey returns the identifier session state is stored under.
func (c *ApplianceConfig) SessionKey() string {
	if id := strings.TrimSpace(c.ConfigID); id != "" {
		return id
	}
	return domain.DefaultConfigID
}

// Validate checks the session store selection.
func (c *SessionConfig) Validate() error {
	switch c.Store {
	case "file", "memory", "redis":
		return nil
	case "sqlite3", "postgres":
		if c.DSN == "" {
			return fmt.Errorf("%w: PSM_SESSION_DSN is required for the %s session store", domain.ErrConfiguration, c.Store)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown session store %q", domain.ErrConfiguration, c.Store)
	}
}

// SlogLevel maps the configured level name to a slog level.
func (c *LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}
