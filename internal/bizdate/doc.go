// Package bizdate resolves the logical trading date in effect "now".
//
// The wall-clock date and the trading date disagree around session
// boundaries: pre-market collection runs before today's session has
// printed a trade, and after-hours collection runs once it is over. The
// resolver walks a fixed priority chain, each step an ordinary
// found/not-found branch:
//
//  1. strike-LTT: the last-trade date of the option strike nearest the
//     reference spot price
//  2. the most recent historical spot day
//  3. the previous weekday
//
// The chain always yields a value; step 3 cannot fail. Resolution errors
// along the way degrade to the next step, never to the caller.
package bizdate
