// Package quote fetches market quotes from the Kite Connect API.
//
// The quote endpoint accepts at most 500 instruments per call, so option
// universe fetches are split into batches and fanned out concurrently.
// Instruments missing from a response are treated as partial coverage,
// not as an error; the caller decides whether to retry.
package quote
