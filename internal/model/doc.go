// Package model defines shared data types used across the circuit-limit collector.
//
// All types mirror the database schema defined in migrations/schema.sql.
//
// Conventions:
//   - Prices and circuit limits: float64 rupees, as delivered by the quote API
//   - Expiry and business date: date-only values (midnight, location preserved)
//   - IDs: uint32 instrument tokens, uuid.UUID for collection (tick) IDs
package model
