// Package veto implements VetoEvaluator (spec §4.6): a pure predicate over
// the latest bar, its indicator snapshot, the current MicroSnapshot, and
// trade side, producing a VetoSet of stable-named reasons. Modeled on the
// teacher's gate-evaluation style in internal/domain/gates/evaluate.go.
package veto

import "github.com/sawpanic/sentinel/internal/model"

// Thresholds carries the configurable scalar gates; the reason names
// themselves are a stable contract independent of these values.
type Thresholds struct {
	DepthImbalanceMin float64 // |ladder_imbalance| opposing trade direction, default 0.5
	MarkDivergenceMin float64 // |mark-last_trade|/mark, default 0.0015
	OBVZSigma         float64 // OBV Z-score divergence, default 1.5
	SpreadBpsMax      float64 // default 10
	RSIHigh           float64 // default 80
	RSILow            float64 // default 20
	LiqGapATRMult     float64 // default 4
	LiqGapFeeMult     float64 // default 10
	TakerFeeBps       float64
}

// Evaluate produces the VetoSet for a candidate/signal under review.
// killSwitch is an external input (caller-owned flag); riskDistance is
// |entry-stop_loss| for the liq_gap check.
func Evaluate(th Thresholds, bar model.Bar, ind model.IndicatorSnapshot, mk model.MicroSnapshot,
	side model.Side, killSwitch bool, riskDistance float64) model.VetoSet {

	out := model.VetoSet{}

	if killSwitch {
		out[model.VetoKill] = 1
	}

	if mk.Available {
		opposing := (side == model.SideLong && mk.LadderImbalance <= -th.DepthImbalanceMin) ||
			(side == model.SideShort && mk.LadderImbalance >= th.DepthImbalanceMin)
		if opposing {
			out[model.VetoDepth] = mk.LadderImbalance
		}

		if mk.Mid != 0 && mk.LastTradePrice != 0 {
			divergence := abs(mk.Mid-mk.LastTradePrice) / mk.Mid
			if divergence >= th.MarkDivergenceMin {
				out[model.VetoImbalance] = divergence
			}
		}

		if mk.SpreadBPS >= th.SpreadBpsMax {
			out[model.VetoSpread] = mk.SpreadBPS
		}
	}

	if ind.Available {
		obvDivergesAgainstSide := (side == model.SideLong && ind.OBVZ10 <= -th.OBVZSigma) ||
			(side == model.SideShort && ind.OBVZ10 >= th.OBVZSigma)
		if obvDivergesAgainstSide {
			out[model.VetoOBV] = ind.OBVZ10
		}

		if (side == model.SideLong && ind.RSI14 >= th.RSIHigh) ||
			(side == model.SideShort && ind.RSI14 <= th.RSILow) {
			out[model.VetoRSIExtreme] = ind.RSI14
		}

		atrFloor := th.LiqGapATRMult * ind.ATR14
		feeFloor := th.LiqGapFeeMult * th.TakerFeeBps / 10000 * bar.Close
		if riskDistance < atrFloor || riskDistance < feeFloor {
			out[model.VetoLiqGap] = riskDistance
		}
	}

	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
