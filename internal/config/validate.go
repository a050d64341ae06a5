package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate checks that all required fields are set and values are valid.
func (c *CollectorConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Kite.APIKey == "" {
		return errors.New("kite.api_key is required")
	}
	if c.Kite.QuoteBatchSize < 1 {
		return errors.New("kite.quote_batch_size must be >= 1")
	}

	if err := c.Database.Postgres.validate("database.postgres"); err != nil {
		return err
	}

	if _, err := time.LoadLocation(c.Market.Timezone); err != nil {
		return fmt.Errorf("market.timezone %q: %w", c.Market.Timezone, err)
	}
	for _, b := range []struct{ field, value string }{
		{"market.pre_market_open", c.Market.PreMarketOpen},
		{"market.market_open", c.Market.MarketOpen},
		{"market.market_close", c.Market.MarketClose},
	} {
		if _, err := time.Parse("15:04", b.value); err != nil {
			return fmt.Errorf("%s must be HH:MM, got %q", b.field, b.value)
		}
	}
	if c.Market.PreMarketInterval <= 0 || c.Market.MarketInterval <= 0 || c.Market.AfterHoursInterval <= 0 {
		return errors.New("market intervals must be positive")
	}
	if c.Market.CoverageAttempts < 1 {
		return errors.New("market.coverage_attempts must be >= 1")
	}
	if c.Market.StampWindow <= 0 {
		return errors.New("market.stamp_window must be positive")
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
