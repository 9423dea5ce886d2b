package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Environment string `mapstructure:"environment"`
	DataDir     string `mapstructure:"data_dir"`
	LogLevel    string `mapstructure:"logging.level"`
	LogFormat   string `mapstructure:"logging.format"`
	Matriz      MatrizConfig
	Agency      AgencyConfig
	Collector   CollectorConfig
	Redis       RedisConfig
}

// MatrizConfig holds the central ledger service configuration
type MatrizConfig struct {
	Address string `mapstructure:"matriz.address"`
}

// AgencyConfig holds per-agency configuration, including the
// periodic inventory push towards the collector
type AgencyConfig struct {
	Name           string        `mapstructure:"agency.name"`
	Address        string        `mapstructure:"agency.address"`
	CollectorURL   string        `mapstructure:"agency.collector_url"`
	SyncInterval   time.Duration `mapstructure:"agency.sync_interval"`
	PublishTimeout time.Duration `mapstructure:"agency.publish_timeout"`
}

// CollectorConfig holds the collector service configuration
type CollectorConfig struct {
	Address string `mapstructure:"collector.address"`
	LogFile string `mapstructure:"collector.log_file"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"redis.host"`
	Port     int    `mapstructure:"redis.port"`
	Password string `mapstructure:"redis.password"`
	DB       int    `mapstructure:"redis.db"`
	Enabled  bool   `mapstructure:"redis.enabled"`
}

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Setup configuration paths
	v.AddConfigPath(path)
	v.AddConfigPath("./config")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
		// Continue without a config file - ENV vars and defaults apply
	}

	// Enable environment variables to override config
	v.SetEnvPrefix("JQMOTORS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to unmarshal config: %w", err)
	}

	return config, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Core settings
	v.SetDefault("environment", "development")
	v.SetDefault("data_dir", "")

	// Matriz ledger service settings
	v.SetDefault("matriz.address", "0.0.0.0:5002")

	// Agency settings
	v.SetDefault("agency.name", "AGENCIA")
	v.SetDefault("agency.address", "0.0.0.0:5003")
	v.SetDefault("agency.collector_url", "http://localhost:8080/inventario")
	v.SetDefault("agency.sync_interval", "60s")
	v.SetDefault("agency.publish_timeout", "10s")

	// Collector settings
	v.SetDefault("collector.address", "0.0.0.0:8080")
	v.SetDefault("collector.log_file", "inventario_render.json")

	// Redis settings
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.enabled", false)

	// Logging settings
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// ResolveDataDir returns the base data directory, defaulting to
// $HOME/Archivos when none is configured
func (c Config) ResolveDataDir() (string, error) {
	if c.DataDir != "" {
		return c.DataDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("unable to resolve home directory: %w", err)
	}
	return filepath.Join(home, "Archivos"), nil
}

// EnsureDataDirs creates the Excel and Export directories under the
// data directory and returns both paths
func (c Config) EnsureDataDirs() (excelDir, exportDir string, err error) {
	base, err := c.ResolveDataDir()
	if err != nil {
		return "", "", err
	}
	excelDir = filepath.Join(base, "Excel")
	exportDir = filepath.Join(base, "Export")
	for _, dir := range []string{excelDir, exportDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", "", fmt.Errorf("unable to create data directory %s: %w", dir, err)
		}
	}
	return excelDir, exportDir, nil
}
