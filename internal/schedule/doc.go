// Package schedule implements the adaptive collection scheduler.
//
// The trading session is split into three regimes — pre-market, market
// hours and after-hours — each with its own collection interval. The
// regime is a pure function of the wall clock: nothing is persisted, so
// a restart resumes the correct cadence immediately.
//
// One tick runs to completion before the next delay is computed; ticks
// never overlap. A tick failure is logged and the loop continues at the
// current regime's interval. Only context cancellation stops the loop.
package schedule
