package veto

import (
	"testing"

	"github.com/sawpanic/sentinel/internal/model"
)

func defaultThresholds() Thresholds {
	return Thresholds{
		DepthImbalanceMin: 0.5, MarkDivergenceMin: 0.0015, OBVZSigma: 1.5,
		SpreadBpsMax: 10, RSIHigh: 80, RSILow: 20,
		LiqGapATRMult: 4, LiqGapFeeMult: 10, TakerFeeBps: 10,
	}
}

func TestKillSwitchAlwaysVetoes(t *testing.T) {
	out := Evaluate(defaultThresholds(), model.Bar{}, model.IndicatorSnapshot{}, model.MicroSnapshot{}, model.SideLong, true, 10)
	if _, ok := out[model.VetoKill]; !ok {
		t.Fatal("expected kill veto")
	}
}

func TestDepthVetoOpposesLong(t *testing.T) {
	th := defaultThresholds()
	mk := model.MicroSnapshot{Available: true, LadderImbalance: -0.7}
	out := Evaluate(th, model.Bar{Close: 100}, model.IndicatorSnapshot{}, mk, model.SideLong, false, 10)
	if _, ok := out[model.VetoDepth]; !ok {
		t.Fatal("expected depth veto when ladder imbalance opposes a long")
	}
}

func TestSpreadVeto(t *testing.T) {
	th := defaultThresholds()
	mk := model.MicroSnapshot{Available: true, SpreadBPS: 12}
	out := Evaluate(th, model.Bar{Close: 100}, model.IndicatorSnapshot{}, mk, model.SideLong, false, 10)
	if _, ok := out[model.VetoSpread]; !ok {
		t.Fatal("expected spread veto")
	}
}

func TestRSIExtremeVetoLong(t *testing.T) {
	th := defaultThresholds()
	ind := model.IndicatorSnapshot{Available: true, RSI14: 85}
	out := Evaluate(th, model.Bar{Close: 100}, ind, model.MicroSnapshot{}, model.SideLong, false, 10)
	if _, ok := out[model.VetoRSIExtreme]; !ok {
		t.Fatal("expected rsi_extreme veto for long when RSI14>=80")
	}
}

func TestLiqGapVetoWhenRiskTooTight(t *testing.T) {
	th := defaultThresholds()
	ind := model.IndicatorSnapshot{Available: true, ATR14: 5}
	out := Evaluate(th, model.Bar{Close: 100}, ind, model.MicroSnapshot{}, model.SideLong, false, 0.1)
	if _, ok := out[model.VetoLiqGap]; !ok {
		t.Fatal("expected liq_gap veto when risk distance is far below 4xATR14")
	}
}

func TestEmptySetWhenNothingFires(t *testing.T) {
	th := defaultThresholds()
	ind := model.IndicatorSnapshot{Available: true, ATR14: 0.1, RSI14: 50, OBVZ10: 0}
	mk := model.MicroSnapshot{Available: true, LadderImbalance: 0, SpreadBPS: 2, Mid: 100, LastTradePrice: 100}
	out := Evaluate(th, model.Bar{Close: 100}, ind, mk, model.SideLong, false, 5)
	if !out.Empty() {
		t.Fatalf("expected empty veto set, got %+v", out)
	}
}
