package model

import "fmt"

// Bar is an OHLCV record for one timeframe bucket. A closed Bar is immutable;
// the in-progress ("open") bucket is mutated in place by the Aggregator and
// lives outside the closed series until it rolls over.
type Bar struct {
	EpochStart int64   `json:"epoch_start"` // unix seconds, aligned to the timeframe width
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	Volume     float64 `json:"volume"`
	// Synthetic marks a gap-fill bar inserted because no ticks arrived during
	// the bucket. Downstream volume statistics must ignore these.
	Synthetic bool `json:"synthetic"`
}

// Validate checks the OHLCV invariant from the data model: low <= min(open,close)
// <= max(open,close) <= high, volume >= 0.
func (b Bar) Validate() error {
	lo := b.Open
	if b.Close < lo {
		lo = b.Close
	}
	hi := b.Open
	if b.Close > hi {
		hi = b.Close
	}
	if !(b.Low <= lo && lo <= hi && hi <= b.High) {
		return fmt.Errorf("bar invariant violated: low=%v open=%v close=%v high=%v", b.Low, b.Open, b.Close, b.High)
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar invariant violated: volume=%v < 0", b.Volume)
	}
	return nil
}

// Side is a trade direction.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)
