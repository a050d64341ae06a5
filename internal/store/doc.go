// Package store provides PostgreSQL access for the collector.
//
// Tables:
//   - instruments: the tracked option universe plus the spot index
//   - quote_history: the append-only circuit-limit change log
//   - spot_history: one row per index per trading day
//
// quote_history rows are immutable once written; the single exception is
// the retroactive business-date stamp, which is idempotent.
package store
