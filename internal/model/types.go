package model

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the canonical date-only format used for keys and logs.
const DateLayout = "2006-01-02"

// OptionType classifies a tracked instrument.
type OptionType string

const (
	OptionTypeCall  OptionType = "CE"
	OptionTypePut   OptionType = "PE"
	OptionTypeIndex OptionType = "IDX"
)

// Day truncates t to its date, preserving the location.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// InstrumentKey identifies one contract in the history log: the same
// instrument token is reused by the exchange across expiries, so the
// expiry date is part of the identity. Expiry is held as a formatted
// date string so keys are comparable and usable as map keys.
type InstrumentKey struct {
	Token  uint32
	Expiry string
}

// NewKey builds an InstrumentKey from a token and an expiry timestamp.
func NewKey(token uint32, expiry time.Time) InstrumentKey {
	return InstrumentKey{Token: token, Expiry: expiry.Format(DateLayout)}
}

func (k InstrumentKey) String() string {
	return strconv.FormatUint(uint64(k.Token), 10) + "@" + k.Expiry
}

// Instrument is one tradable contract (or the spot index) in the tracked universe.
type Instrument struct {
	Token         uint32     // Stable exchange-assigned id
	TradingSymbol string     // e.g. "NIFTY24SEP24000CE"
	Underlying    string     // e.g. "NIFTY"
	Strike        float64    // 0 for the index itself
	OptionType    OptionType // CE, PE, or IDX
	Expiry        time.Time  // Date-only; zero for the index
	FirstSeen     time.Time  // When the universe sync first observed it
	LastFetched   time.Time  // Last universe sync that still listed it
	Expired       bool       // Recomputed against the current business date
}

// Key returns the history-log key for this instrument.
func (i Instrument) Key() InstrumentKey {
	return NewKey(i.Token, i.Expiry)
}

// OHLC holds a day's open/high/low/close prices.
type OHLC struct {
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// ActivelyTrading reports whether the OHLC describes a live session: the
// quote API zeroes open/high/low until the first trade of the day.
func (o OHLC) ActivelyTrading() bool {
	return o.Open > 0 && o.High > 0 && o.Low > 0
}

// QuoteSnapshot is one freshly fetched quote, not yet persisted.
type QuoteSnapshot struct {
	Token         uint32
	TradingSymbol string
	Underlying    string
	Strike        float64
	OptionType    OptionType
	Expiry        time.Time
	OHLC          OHLC
	LastPrice     float64
	LowerCircuit  float64
	UpperCircuit  float64
	LastTradeTime time.Time // Zero when the contract has not traded
	ReceivedAt    time.Time
}

// Key returns the history-log key for this snapshot.
func (s QuoteSnapshot) Key() InstrumentKey {
	return NewKey(s.Token, s.Expiry)
}

// HasTraded reports whether the snapshot carries a real last-trade time.
func (s QuoteSnapshot) HasTraded() bool {
	return !s.LastTradeTime.IsZero() && s.LastTradeTime.Year() > 1980
}

// QuoteRecord is one immutable row in the append-only circuit-limit history.
type QuoteRecord struct {
	Token         uint32
	TradingSymbol string
	Strike        float64
	OptionType    OptionType
	Expiry        time.Time
	OHLC          OHLC
	LastPrice     float64
	LowerCircuit  float64
	UpperCircuit  float64
	LastTradeTime time.Time
	RecordedAt    time.Time // Wall clock at ingestion
	BusinessDate  time.Time // Logical trading day; bulk-patched retroactively
	DaySeq        int64     // Starts at 1 per (key, business date)
	GlobalSeq     int64     // Starts at 1 per key, never resets while the expiry is active
	CollectionID  uuid.UUID // Tick that produced the row
}

// Key returns the history-log key for this record.
func (r QuoteRecord) Key() InstrumentKey {
	return NewKey(r.Token, r.Expiry)
}

// SameBand reports whether the snapshot carries the same circuit-limit
// pair as this record. The pair is the full dedup key; OHLC and last
// price movement alone never produce a new history row.
func (r QuoteRecord) SameBand(s QuoteSnapshot) bool {
	return r.LowerCircuit == s.LowerCircuit && r.UpperCircuit == s.UpperCircuit
}

// SpotDay is one row of daily spot history for an index, used by the
// business-date resolver's historical fallback.
type SpotDay struct {
	Index       string
	TradingDate time.Time
	OHLC        OHLC
	LastUpdated time.Time
}
