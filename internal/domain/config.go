package domain

import "time"

// Config represents the main application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Validation ValidationConfig `mapstructure:"validation"`
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	Decision   DecisionConfig   `mapstructure:"decision"`
	Report     ReportConfig     `mapstructure:"report"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	RateBurst     int           `mapstructure:"rate_burst"`
}

// StoreConfig selects and configures the claim store backend.
type StoreConfig struct {
	Backend       string        `mapstructure:"backend"` // "sqlite" or "postgres"
	SQLitePath    string        `mapstructure:"sqlite_path"`
	WriteAttempts int           `mapstructure:"write_attempts"`
	WriteBackoff  time.Duration `mapstructure:"write_backoff"`
}

// DatabaseConfig represents PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// RedisConfig represents the optional history/watchlist cache.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// LLMConfig represents the LLM extraction fallback.
type LLMConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	CacheSize   int           `mapstructure:"cache_size"`
}

// ValidationConfig holds the tunable thresholds of the validation rules.
type ValidationConfig struct {
	AmountCeiling      float64 `mapstructure:"amount_ceiling"`
	LineItemTolerance  float64 `mapstructure:"line_item_tolerance"`
	MaxStayDays        int     `mapstructure:"max_stay_days"`
	DeprecatedDiagCode []string `mapstructure:"deprecated_diagnosis_codes"`
}

// ScoringConfig holds penalty weights, fraud weights and band cutoffs.
type ScoringConfig struct {
	CriticalPenalty      float64 `mapstructure:"critical_penalty"`
	WarningPenalty       float64 `mapstructure:"warning_penalty"`
	DuplicateWeight      float64 `mapstructure:"duplicate_weight"`
	WatchlistWeight      float64 `mapstructure:"watchlist_weight"`
	RoundAmountWeight    float64 `mapstructure:"round_amount_weight"`
	WeekendWeight        float64 `mapstructure:"weekend_weight"`
	RoundAmountThreshold float64 `mapstructure:"round_amount_threshold"`
	DuplicateWindowDays  int     `mapstructure:"duplicate_window_days"`
	HeuristicWeight      float64 `mapstructure:"heuristic_weight"`
	FraudWeight          float64 `mapstructure:"fraud_weight"`
	BandLow              float64 `mapstructure:"band_low"`
	BandMedium           float64 `mapstructure:"band_medium"`
	BandHigh             float64 `mapstructure:"band_high"`
}

// DecisionConfig holds the decision policy knobs.
type DecisionConfig struct {
	// OverridableRules lists critical rule IDs that may be downgraded to
	// manual review when the risk band is low.
	OverridableRules []string `mapstructure:"overridable_rules"`
}

// ReportConfig controls report artifact rendering.
type ReportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "text"
}
