package core

import "time"

// EmissionRate controls how often the metrics tracker emits packets.
type EmissionRate string

const (
	EmissionDaily  EmissionRate = "daily"
	EmissionMinute EmissionRate = "minute"
)

// Valid reports whether the rate is one of the known emission rates.
func (r EmissionRate) Valid() bool {
	return r == EmissionDaily || r == EmissionMinute
}

// Asset identifies a tradable instrument.
type Asset struct {
	Sid    int64
	Symbol string
	// Multiplier scales price into exposure; 1 for plain equities.
	Multiplier float64
}

// ExposureMultiplier returns the multiplier, defaulting to 1 when unset so
// zero-valued Assets behave like equities.
func (a Asset) ExposureMultiplier() float64 {
	if a.Multiplier == 0 {
		return 1
	}
	return a.Multiplier
}

// Transaction is a fill to be applied to the ledger. Amount is signed:
// positive buys, negative sells.
type Transaction struct {
	Asset   Asset
	Amount  float64
	Price   float64
	DT      time.Time
	OrderID string
}

// Order is an order event recorded against the current session.
type Order struct {
	ID         string
	Asset      Asset
	Amount     float64
	Filled     float64
	Commission float64
	DT         time.Time
}

// Commission is a brokerage cost charged against a fill.
type Commission struct {
	Asset   Asset
	OrderID string
	Cost    float64
}

// Split adjusts a position's share count and cost basis. Ratio is the price
// adjustment ratio: a 2-for-1 split has ratio 0.5.
type Split struct {
	Asset Asset
	Ratio float64
}

// Dividend is a per-share cash distribution. Holders as of ExDate are owed
// Amount per share, paid on PayDate.
type Dividend struct {
	Asset   Asset
	Amount  float64
	ExDate  time.Time
	PayDate time.Time
}

// OHLCV is a single price bar.
type OHLCV struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
	Time   time.Time
}
