package config

import "time"

// CollectorConfig is the root configuration for a collector instance.
type CollectorConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Kite     KiteConfig     `yaml:"kite"`
	Database DatabaseConfig `yaml:"database"`
	Market   MarketConfig   `yaml:"market"`
	Universe UniverseConfig `yaml:"universe"`
	Health   HealthConfig   `yaml:"health"`
}

// InstanceConfig identifies this collector.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// KiteConfig holds Kite Connect API settings. The access token is expected
// to be produced by an external login flow and supplied via config or env.
type KiteConfig struct {
	APIKey         string        `yaml:"api_key"`
	AccessToken    string        `yaml:"access_token"`
	BaseURL        string        `yaml:"base_url"` // Optional override, e.g. a mock server in tests
	Timeout        time.Duration `yaml:"timeout"`
	QuoteBatchSize int           `yaml:"quote_batch_size"` // Max instruments per quote call
}

// DatabaseConfig holds the PostgreSQL connection for the history log.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MarketConfig holds session boundaries and collection cadence.
// Boundaries are wall-clock "HH:MM" strings interpreted in Timezone.
type MarketConfig struct {
	Timezone   string `yaml:"timezone"`
	Underlying string `yaml:"underlying"`  // Option underlying, e.g. "NIFTY"
	SpotSymbol string `yaml:"spot_symbol"` // Spot index trading symbol, e.g. "NIFTY 50"

	PreMarketOpen string `yaml:"pre_market_open"`
	MarketOpen    string `yaml:"market_open"`
	MarketClose   string `yaml:"market_close"`

	PreMarketInterval  time.Duration `yaml:"pre_market_interval"`
	MarketInterval     time.Duration `yaml:"market_interval"`
	AfterHoursInterval time.Duration `yaml:"after_hours_interval"`

	CoverageAttempts int           `yaml:"coverage_attempts"`
	CoverageBackoff  time.Duration `yaml:"coverage_backoff"`

	// StampWindow is the trailing window over which the business date is
	// retroactively applied after a change-bearing batch.
	StampWindow time.Duration `yaml:"stamp_window"`
}

// UniverseConfig holds instrument universe sync settings.
type UniverseConfig struct {
	Exchange    string `yaml:"exchange"`     // Instrument dump segment, e.g. "NFO"
	RefreshCron string `yaml:"refresh_cron"` // Daily refresh schedule (cron, collector timezone)
}

// HealthConfig holds the health endpoint settings.
type HealthConfig struct {
	Port int `yaml:"port"`
}
