// Package ingest implements the change-tracking ingestion pipeline.
//
// A batch of fresh snapshots is diffed against the latest persisted row
// per (instrument, expiry) key; only snapshots whose circuit-limit pair
// actually changed become new rows. Sequencing is computed against
// committed state immediately before insert, and the whole batch commits
// in one transaction. A change-bearing batch triggers business-date
// re-resolution and a retroactive stamp over the trailing window.
//
// The circuit-limit pair is the complete dedup key. OHLC and last price
// are recorded but never compared: this log is a band-change history,
// and widening the key would change its row-count semantics.
package ingest
