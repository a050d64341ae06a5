// Package universe maintains the tracked option universe.
//
// The Kite instrument dump lists every contract on an exchange segment;
// the syncer filters it down to the configured underlying's options,
// upserts them with first-seen/last-fetched stamps, and recomputes the
// expired flag against the current business date. It runs at startup
// when the universe is empty and on a daily cron thereafter.
package universe
