// Package config loads application configuration from file, environment
// and defaults using Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"

	"github.com/medclaims-analyzer-server/internal/domain"
)

// Manager loads and holds the application configuration.
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources.
func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/medclaims-analyzer/")

	viper.SetEnvPrefix("MEDCLAIMS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults and env vars apply when absent.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values.
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.rate_per_second", 20)
	viper.SetDefault("server.rate_burst", 40)

	// Store defaults
	viper.SetDefault("store.backend", "sqlite")
	viper.SetDefault("store.sqlite_path", "./data/claims.db")
	viper.SetDefault("store.write_attempts", 3)
	viper.SetDefault("store.write_backoff", "200ms")

	// Database defaults (postgres backend)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "medclaims")
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("database.auto_migrate", false)
	viper.SetDefault("database.migrations_path", "migrations")

	// Redis defaults
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttl", "10m")

	// LLM defaults
	viper.SetDefault("llm.enabled", false)
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.timeout", "30s")
	viper.SetDefault("llm.max_attempts", 2)
	viper.SetDefault("llm.cache_size", 256)

	// Validation defaults
	viper.SetDefault("validation.amount_ceiling", 500000)
	viper.SetDefault("validation.line_item_tolerance", 0.01)
	viper.SetDefault("validation.max_stay_days", 60)

	// Scoring defaults
	viper.SetDefault("scoring.critical_penalty", 30)
	viper.SetDefault("scoring.warning_penalty", 10)
	viper.SetDefault("scoring.duplicate_weight", 40)
	viper.SetDefault("scoring.watchlist_weight", 35)
	viper.SetDefault("scoring.round_amount_weight", 15)
	viper.SetDefault("scoring.weekend_weight", 10)
	viper.SetDefault("scoring.round_amount_threshold", 50000)
	viper.SetDefault("scoring.duplicate_window_days", 30)
	viper.SetDefault("scoring.heuristic_weight", 0.6)
	viper.SetDefault("scoring.fraud_weight", 0.4)
	viper.SetDefault("scoring.band_low", 80)
	viper.SetDefault("scoring.band_medium", 60)
	viper.SetDefault("scoring.band_high", 40)

	// Decision defaults
	viper.SetDefault("decision.overridable_rules", []string{})

	// Report defaults
	viper.SetDefault("report.output_dir", "./reports")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// GetConfig returns the complete configuration.
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration.
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetStoreConfig returns claim store configuration.
func (m *Manager) GetStoreConfig() *domain.StoreConfig {
	return &m.config.Store
}

// Reload reloads the configuration.
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration.
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Store.Backend {
	case "sqlite":
		if config.Store.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for sqlite backend")
		}
	case "postgres":
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required for postgres backend")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required for postgres backend")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required for postgres backend")
		}
	default:
		return fmt.Errorf("unknown store backend: %s", config.Store.Backend)
	}

	if config.Store.WriteAttempts < 1 {
		return fmt.Errorf("store write attempts must be at least 1")
	}

	if config.LLM.Enabled && config.LLM.APIKey == "" {
		return fmt.Errorf("llm api key is required when llm extraction is enabled")
	}

	if config.Scoring.HeuristicWeight+config.Scoring.FraudWeight <= 0 {
		return fmt.Errorf("scoring weights must sum to a positive value")
	}
	if !(config.Scoring.BandLow > config.Scoring.BandMedium && config.Scoring.BandMedium > config.Scoring.BandHigh) {
		return fmt.Errorf("risk band cutoffs must be strictly descending (low > medium > high)")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string.
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// GetDatabaseURL returns the database connection in URL form, as the
// migration tooling requires.
func (m *Manager) GetDatabaseURL() string {
	db := m.config.Database
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(db.Username), url.QueryEscape(db.Password),
		db.Host, db.Port, db.Database, db.SSLMode)
}

// GetRedisAddr returns the Redis address in host:port form.
func (m *Manager) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", m.config.Redis.Host, m.config.Redis.Port)
}

// IsProduction returns true if running in production mode.
func (m *Manager) IsProduction() bool {
	return strings.ToLower(viper.GetString("environment")) == "production"
}
