// Package micro implements MicroStream (spec §4.5): it folds trade and
// orderbook events into a CVD/spread/depth microstructure snapshot, swapped
// atomically so readers never observe a torn record. Single-writer,
// atomic-pointer-swap discipline mirrors the teacher's premove CVD state in
// internal/premove/cvd_resid.go.
package micro

import (
	"sync/atomic"
	"time"

	"github.com/sawpanic/sentinel/internal/model"
)

// Side is the aggressor side of a trade event.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// TradeEvent is one executed trade.
type TradeEvent struct {
	EpochMicros int64
	Price       float64
	Size        float64
	Side        Side
}

// Level is one orderbook price level.
type Level struct {
	Price float64
	Size  float64
}

// BookEvent is one full orderbook snapshot (top N levels per side).
type BookEvent struct {
	EpochMicros int64
	Bids        []Level
	Asks        []Level
}

// Stream maintains microstructure state for one instrument.
type Stream struct {
	depthLevels int
	stalenessMs int64

	snap atomic.Pointer[model.MicroSnapshot]

	cvd        float64
	cvdSamples []cvdSample
	lastUpdate int64 // epoch micros of most recent event, for staleness
}

type cvdSample struct {
	epochMicros int64
	cvd         float64
}

const cvdWindow = 30

// New creates a Stream that keeps the top depthLevels of book on each side
// and flips Available=false after staleMs without an update.
func New(depthLevels int, staleMs int64) *Stream {
	if depthLevels <= 0 {
		depthLevels = 10
	}
	if staleMs <= 0 {
		staleMs = 5000
	}
	s := &Stream{depthLevels: depthLevels, stalenessMs: staleMs}
	s.snap.Store(&model.MicroSnapshot{Available: false})
	return s
}

// OnTrade folds a trade event into CVD state and republishes the snapshot.
func (s *Stream) OnTrade(t TradeEvent) {
	switch t.Side {
	case SideBuy:
		s.cvd += t.Size
	case SideSell:
		s.cvd -= t.Size
	}
	s.cvdSamples = append(s.cvdSamples, cvdSample{epochMicros: t.EpochMicros, cvd: s.cvd})
	if len(s.cvdSamples) > cvdWindow {
		s.cvdSamples = s.cvdSamples[len(s.cvdSamples)-cvdWindow:]
	}
	s.lastUpdate = t.EpochMicros

	prev := s.snap.Load()
	next := *prev
	next.CVD = s.cvd
	next.CVDSlope = cvdSlope(s.cvdSamples)
	next.LastTradePrice = t.Price
	next.EpochMicros = t.EpochMicros
	next.Available = true
	s.snap.Store(&next)
}

// OnBook folds an orderbook snapshot into spread/depth/imbalance state and
// republishes the snapshot.
func (s *Stream) OnBook(b BookEvent) {
	if len(b.Bids) == 0 || len(b.Asks) == 0 {
		return
	}
	bestBid, bestAsk := b.Bids[0].Price, b.Asks[0].Price
	mid := (bestBid + bestAsk) / 2

	bidDepth := sumDepth(b.Bids, s.depthLevels)
	askDepth := sumDepth(b.Asks, s.depthLevels)

	var spreadBps, imbalance float64
	if mid != 0 {
		spreadBps = (bestAsk - bestBid) / mid * 10000
	}
	if bidDepth+askDepth != 0 {
		imbalance = (bidDepth - askDepth) / (bidDepth + askDepth)
	}
	s.lastUpdate = b.EpochMicros

	prev := s.snap.Load()
	next := *prev
	next.Mid = mid
	next.Bid = bestBid
	next.Ask = bestAsk
	next.SpreadBPS = spreadBps
	next.BidDepth = bidDepth
	next.AskDepth = askDepth
	next.LadderImbalance = imbalance
	next.EpochMicros = b.EpochMicros
	next.Available = true
	s.snap.Store(&next)
}

// Snapshot returns the current microstructure state. Available flips to
// false if nowMicros is more than stalenessMs past the last event.
func (s *Stream) Snapshot(nowMicros int64) model.MicroSnapshot {
	snap := *s.snap.Load()
	if !snap.Available {
		return snap
	}
	ageMs := (nowMicros - s.lastUpdate) / 1000
	if ageMs > s.stalenessMs {
		snap.Available = false
	}
	return snap
}

func sumDepth(levels []Level, n int) float64 {
	if n > len(levels) {
		n = len(levels)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += levels[i].Size
	}
	return sum
}

// cvdSlope computes the linear-regression slope of CVD against sample
// index over the retained window.
func cvdSlope(samples []cvdSample) float64 {
	n := len(samples)
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, sm := range samples {
		x := float64(i)
		y := sm.cvd
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	nf := float64(n)
	denom := nf*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (nf*sumXY - sumX*sumY) / denom
}

// NowMicros is a small time source wrapper so callers needn't import time
// directly for the common case.
func NowMicros() int64 { return time.Now().UnixMicro() }
