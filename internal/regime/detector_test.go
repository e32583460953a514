package regime

import (
	"testing"

	"github.com/sawpanic/sentinel/internal/model"
)

func TestClassifyHighVol(t *testing.T) {
	d := New(0.02)
	snap := model.IndicatorSnapshot{Available: true, ATR14: 5, EMAFast: 100, EMASlow: 100}
	got := d.Classify(model.Bar{Close: 100}, snap)
	if got.Regime != RegimeHighVol {
		t.Fatalf("expected high_vol for atr14/price=5%%, got %v", got.Regime)
	}
}

func TestClassifyTrending(t *testing.T) {
	d := New(0.02)
	snap := model.IndicatorSnapshot{Available: true, ATR14: 0.5, EMAFast: 105, EMASlow: 100}
	got := d.Classify(model.Bar{Close: 100}, snap)
	if got.Regime != RegimeTrending {
		t.Fatalf("expected trending, got %v", got.Regime)
	}
}

func TestClassifyChoppyWhenUnavailable(t *testing.T) {
	d := New(0.02)
	got := d.Classify(model.Bar{Close: 100}, model.IndicatorSnapshot{Available: false})
	if got.Regime != RegimeChoppy || got.Confidence != 0 {
		t.Fatalf("expected choppy/0 confidence when indicators unavailable, got %+v", got)
	}
}

func TestTrendAgreesWithLongWhenEMAFastAboveSlow(t *testing.T) {
	snap := model.IndicatorSnapshot{Available: true, EMAFast: 105, EMASlow: 100}
	if !TrendAgrees(snap, model.SideLong) {
		t.Fatal("expected long trend agreement when EMAFast>EMASlow")
	}
	if TrendAgrees(snap, model.SideShort) {
		t.Fatal("expected short trend disagreement when EMAFast>EMASlow")
	}
}
