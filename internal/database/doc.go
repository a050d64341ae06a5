// Package database provides connection pool management for PostgreSQL.
//
// The collector uses a single database holding the instrument universe,
// the append-only quote history log, and daily spot history.
package database
