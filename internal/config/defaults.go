package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultKiteTimeout    = 30 * time.Second
	DefaultQuoteBatchSize = 500 // Kite quote API ceiling per request

	DefaultDBPort    = 5432
	DefaultDBSSLMode = "prefer"
	DefaultMaxConns  = 10
	DefaultMinConns  = 2

	DefaultTimezone   = "Asia/Kolkata"
	DefaultUnderlying = "NIFTY"
	DefaultSpotSymbol = "NIFTY 50"

	DefaultPreMarketOpen = "06:00"
	DefaultMarketOpen    = "09:15"
	DefaultMarketClose   = "15:30"

	DefaultPreMarketInterval  = 3 * time.Minute
	DefaultMarketInterval     = 1 * time.Minute
	DefaultAfterHoursInterval = 60 * time.Minute

	DefaultCoverageAttempts = 3
	DefaultCoverageBackoff  = 5 * time.Second
	DefaultStampWindow      = 24 * time.Hour

	DefaultExchange    = "NFO"
	DefaultRefreshCron = "45 6 * * *" // Daily, before the pre-market window tightens

	DefaultHealthPort = 8080
)

func (c *CollectorConfig) applyDefaults() {
	// Kite defaults
	if c.Kite.Timeout == 0 {
		c.Kite.Timeout = DefaultKiteTimeout
	}
	if c.Kite.QuoteBatchSize == 0 {
		c.Kite.QuoteBatchSize = DefaultQuoteBatchSize
	}

	// Database defaults
	applyDBDefaults(&c.Database.Postgres)

	// Market defaults
	if c.Market.Timezone == "" {
		c.Market.Timezone = DefaultTimezone
	}
	if c.Market.Underlying == "" {
		c.Market.Underlying = DefaultUnderlying
	}
	if c.Market.SpotSymbol == "" {
		c.Market.SpotSymbol = DefaultSpotSymbol
	}
	if c.Market.PreMarketOpen == "" {
		c.Market.PreMarketOpen = DefaultPreMarketOpen
	}
	if c.Market.MarketOpen == "" {
		c.Market.MarketOpen = DefaultMarketOpen
	}
	if c.Market.MarketClose == "" {
		c.Market.MarketClose = DefaultMarketClose
	}
	if c.Market.PreMarketInterval == 0 {
		c.Market.PreMarketInterval = DefaultPreMarketInterval
	}
	if c.Market.MarketInterval == 0 {
		c.Market.MarketInterval = DefaultMarketInterval
	}
	if c.Market.AfterHoursInterval == 0 {
		c.Market.AfterHoursInterval = DefaultAfterHoursInterval
	}
	if c.Market.CoverageAttempts == 0 {
		c.Market.CoverageAttempts = DefaultCoverageAttempts
	}
	if c.Market.CoverageBackoff == 0 {
		c.Market.CoverageBackoff = DefaultCoverageBackoff
	}
	if c.Market.StampWindow == 0 {
		c.Market.StampWindow = DefaultStampWindow
	}

	// Universe defaults
	if c.Universe.Exchange == "" {
		c.Universe.Exchange = DefaultExchange
	}
	if c.Universe.RefreshCron == "" {
		c.Universe.RefreshCron = DefaultRefreshCron
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
