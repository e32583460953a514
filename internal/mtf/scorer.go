// Package mtf implements the confluence scorer and per-instrument state
// machine of spec §4.7. Scoring combines higher-timeframe context (EMA
// alignment, oscillator agreement, macro trend gate) with lower-timeframe
// micro confirmation (breakout quality, 1m impulse, tape, veto hygiene)
// into a single 0-100 final score and execution Tier.
package mtf

import "github.com/sawpanic/sentinel/internal/model"

// Weights mirrors config.MTFWeights, decoupled from the config package.
type Weights struct {
	EMAAlignment        float64
	OscillatorAgreement float64
	MacroGate           float64
	Trigger5m           float64
	Impulse1m           float64
	TapeMicro           float64
	VetoHygiene         float64
	ContextWeight       float64
	MicroWeight         float64
	TapeSlopeThreshold  float64
}

// ContextInputs carries the higher-timeframe readings the context group
// scores against.
type ContextInputs struct {
	EMAFast1h, EMASlow1h float64
	EMAFast4h, EMASlow4h float64
	RSI15m, RSI1h        float64
	EMAFast1d, EMASlow1d float64
}

// MicroInputs carries the lower-timeframe/tape readings the micro group
// scores against.
type MicroInputs struct {
	BreakoutExcess float64 // |close[j]-breakout_level|
	ATR5           float64 // normalizer for BreakoutExcess
	Impulse1mBars  []model.Bar // last up-to-5 1m bars, oldest-first
	CVDSlope       float64
	Vetoes         model.VetoSet
}

// Score computes the full MTFConfluence for side using the given weights.
func Score(w Weights, side model.Side, ctx ContextInputs, mic MicroInputs) model.MTFConfluence {
	long := side == model.SideLong

	emaAlign := alignmentScore(agrees(ctx.EMAFast1h, ctx.EMASlow1h, long), agrees(ctx.EMAFast4h, ctx.EMASlow4h, long))
	oscAgree := alignmentScore(rsiAgrees(ctx.RSI15m, long), rsiAgrees(ctx.RSI1h, long))
	macro := 0.0
	if agrees(ctx.EMAFast1d, ctx.EMASlow1d, long) {
		macro = 100
	}

	contextTotal := (emaAlign*w.EMAAlignment + oscAgree*w.OscillatorAgreement + macro*w.MacroGate) / 100

	trigger := clamp(normalizeBreakout(mic.BreakoutExcess, mic.ATR5)*100, 0, 100)
	impulse := impulseScore(mic.Impulse1mBars, long)
	tape := tapeScore(mic.CVDSlope, w.TapeSlopeThreshold, long)
	hygiene := clamp(100-25*float64(len(mic.Vetoes)), 0, 100)

	microTotal := (trigger*w.Trigger5m + impulse*w.Impulse1m + tape*w.TapeMicro + hygiene*w.VetoHygiene) / 100

	final := w.ContextWeight*contextTotal + w.MicroWeight*microTotal

	var out model.MTFConfluence
	out.Context.Total = contextTotal
	out.Context.Scores = model.ContextScores{EMAAlignment: emaAlign, OscillatorAgreement: oscAgree, MacroGate: macro}
	out.Micro.Total = microTotal
	out.Micro.Scores = model.MicroScores{Trigger5m: trigger, Impulse1m: impulse, TapeMicro: tape, VetoHygiene: hygiene}
	out.Final = model.FinalScore{FinalScore: final, Tier: model.TierFor(final)}
	return out
}

func agrees(fast, slow float64, long bool) bool {
	if long {
		return fast > slow
	}
	return fast < slow
}

func rsiAgrees(rsi float64, long bool) bool {
	if long {
		return rsi > 50
	}
	return rsi < 50
}

// alignmentScore interpolates 0/50/100 by how many of two checks agree.
func alignmentScore(a, b bool) float64 {
	n := 0
	if a {
		n++
	}
	if b {
		n++
	}
	return float64(n) / 2 * 100
}

func normalizeBreakout(excess, atr5 float64) float64 {
	if atr5 == 0 {
		return 0
	}
	return excess / atr5
}

func impulseScore(bars []model.Bar, long bool) float64 {
	if len(bars) < 2 {
		return 0
	}
	agree := 0
	total := 0
	for i := 1; i < len(bars); i++ {
		total++
		moved := bars[i].Close - bars[i-1].Close
		if (long && moved > 0) || (!long && moved < 0) {
			agree++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(agree) / float64(total) * 100
}

func tapeScore(cvdSlope, threshold float64, long bool) float64 {
	if threshold == 0 {
		threshold = 1
	}
	aligned := (long && cvdSlope > 0) || (!long && cvdSlope < 0)
	if !aligned {
		return 0
	}
	mag := abs(cvdSlope) / threshold
	if mag > 1 {
		mag = 1
	}
	return 50 + 50*mag
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
