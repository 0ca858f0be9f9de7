package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Probe       ProbeConfig       `mapstructure:"probe"`
	Browser     BrowserConfig     `mapstructure:"browser"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// CatalogConfig holds metadata catalog client configuration.
type CatalogConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	RequestTimeout int    `mapstructure:"request_timeout"` // seconds
}

// ProbeConfig holds media probe configuration.
type ProbeConfig struct {
	FFprobePath string `mapstructure:"ffprobe_path"`
	Timeout     int    `mapstructure:"timeout"` // seconds
}

// BrowserConfig holds filesystem browser configuration.
type BrowserConfig struct {
	AllowedRoots []string `mapstructure:"allowed_roots"`
}

// MaintenanceConfig holds scheduled maintenance configuration.
type MaintenanceConfig struct {
	LogRetentionDays int `mapstructure:"log_retention_days"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Path: "./data/mediastow.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Catalog: CatalogConfig{
			BaseURL:        "https://api.themoviedb.org/3",
			RequestTimeout: 15,
		},
		Probe: ProbeConfig{
			Timeout: 10,
		},
		Browser: BrowserConfig{
			AllowedRoots: defaultAllowedRoots(),
		},
		Maintenance: MaintenanceConfig{
			LogRetentionDays: 90,
		},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.mediastow")
	}

	// Environment variable settings
	v.SetEnvPrefix("MEDIASTOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults + env vars
	}

	// Unmarshal into struct
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.api_key", "")

	// Database defaults
	v.SetDefault("database.path", "./data/mediastow.db")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)

	// Catalog defaults
	v.SetDefault("catalog.base_url", "https://api.themoviedb.org/3")
	v.SetDefault("catalog.request_timeout", 15)

	// Probe defaults
	v.SetDefault("probe.ffprobe_path", "")
	v.SetDefault("probe.timeout", 10)

	// Filesystem browser defaults
	v.SetDefault("browser.allowed_roots", defaultAllowedRoots())

	// Maintenance defaults
	v.SetDefault("maintenance.log_retention_days", 90)
}

// defaultAllowedRoots lists the top-level paths the filesystem browser
// may expose. Matches the mount points commonly used for media storage.
func defaultAllowedRoots() []string {
	return []string{
		"/",
		"/mnt",
		"/media",
		"/home",
		"/data",
		"/opt",
		"/srv",
		"/storage",
		"/nas",
		"/volume1",
		"/shares",
	}
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
