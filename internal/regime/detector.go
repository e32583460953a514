// Package regime implements a pluggable trending/choppy/high-vol
// classifier (the ScalpCard regime tag), grounded on the teacher's
// internal/application/regime/detector.go decision shape: a cacheable
// snapshot rather than an inline slope check repeated on every scoring
// pass.
package regime

import "github.com/sawpanic/sentinel/internal/model"

// Regime is the classified market state.
type Regime string

const (
	RegimeTrending Regime = "trending"
	RegimeChoppy   Regime = "choppy"
	RegimeHighVol  Regime = "high_vol"
)

// Snapshot is the regime detector's cacheable output.
type Snapshot struct {
	Regime     Regime  `json:"regime"`
	Confidence float64 `json:"confidence"`
}

// Detector classifies the current regime from a 1D indicator snapshot.
type Detector struct {
	highVolATRRatio float64 // atr14/price threshold above which the market is "high_vol"
}

// New creates a Detector. highVolATRRatio default 0.02 (2%).
func New(highVolATRRatio float64) *Detector {
	if highVolATRRatio <= 0 {
		highVolATRRatio = 0.02
	}
	return &Detector{highVolATRRatio: highVolATRRatio}
}

// Classify derives a Snapshot from the 1D bar and its indicator snapshot.
func (d *Detector) Classify(bar model.Bar, snap model.IndicatorSnapshot) Snapshot {
	if !snap.Available || bar.Close == 0 {
		return Snapshot{Regime: RegimeChoppy, Confidence: 0}
	}

	atrRatio := snap.ATR14 / bar.Close
	if atrRatio >= d.highVolATRRatio {
		return Snapshot{Regime: RegimeHighVol, Confidence: clamp(atrRatio/d.highVolATRRatio, 0, 1)}
	}

	trendStrength := 0.0
	if snap.EMASlow != 0 {
		trendStrength = abs(snap.EMAFast-snap.EMASlow) / snap.EMASlow
	}
	if trendStrength >= 0.01 {
		return Snapshot{Regime: RegimeTrending, Confidence: clamp(trendStrength/0.03, 0, 1)}
	}
	return Snapshot{Regime: RegimeChoppy, Confidence: clamp(1-trendStrength/0.01, 0, 1)}
}

// TrendAgrees reports whether the 1D trend (EMA9 vs EMA38) agrees with
// side. mtf.Score makes the same comparison for its macro gate itself and
// does not call this function.
func TrendAgrees(snap model.IndicatorSnapshot, side model.Side) bool {
	if !snap.Available {
		return false
	}
	if side == model.SideLong {
		return snap.EMAFast > snap.EMASlow
	}
	return snap.EMAFast < snap.EMASlow
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
