package indicators

import (
	"math"
	"testing"

	"github.com/sawpanic/sentinel/internal/model"
)

func mkBars(closes []float64) []model.Bar {
	bars := make([]model.Bar, len(closes))
	prev := closes[0]
	for i, c := range closes {
		hi := math.Max(prev, c) + 0.5
		lo := math.Min(prev, c) - 0.5
		bars[i] = model.Bar{EpochStart: int64(i * 300), Open: prev, High: hi, Low: lo, Close: c, Volume: 10}
		prev = c
	}
	return bars
}

func TestAvailableFalseDuringWarmup(t *testing.T) {
	bars := mkBars([]float64{100, 101, 102, 103, 104})
	snaps := Rebuild(bars)
	for i, s := range snaps {
		if s.Available {
			t.Fatalf("index %d: expected Available=false during warmup, short history of %d bars", i, len(bars))
		}
	}
}

func TestAvailableTrueAfterWarmup(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i%5)
	}
	bars := mkBars(closes)
	snaps := Rebuild(bars)
	if !snaps[len(snaps)-1].Available {
		t.Fatal("expected Available=true once every indicator has warmed up")
	}
}

func TestWilderATRPositive(t *testing.T) {
	closes := []float64{100, 102, 101, 105, 103, 107, 104, 108, 106, 110, 109, 112, 111, 115, 113}
	bars := mkBars(closes)
	snaps := Rebuild(bars)
	last := snaps[len(snaps)-1]
	if last.ATR14 <= 0 {
		t.Fatalf("expected positive ATR14, got %v", last.ATR14)
	}
}

func TestRSIBoundedZeroToHundred(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i) // strictly rising: RSI should approach 100
	}
	bars := mkBars(closes)
	snaps := Rebuild(bars)
	last := snaps[len(snaps)-1]
	if last.RSI14 < 0 || last.RSI14 > 100 {
		t.Fatalf("RSI14 out of bounds: %v", last.RSI14)
	}
	if last.RSI14 < 90 {
		t.Fatalf("expected RSI14 near 100 for a strictly rising series, got %v", last.RSI14)
	}
}

func TestBollingerWidthNonNegative(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100 + float64(i%7)
	}
	bars := mkBars(closes)
	snaps := Rebuild(bars)
	for i := bbPeriod - 1; i < len(snaps); i++ {
		if snaps[i].BBWidth < 0 {
			t.Fatalf("index %d: expected non-negative BBWidth, got %v", i, snaps[i].BBWidth)
		}
		if snaps[i].BBUpper < snaps[i].BBLower {
			t.Fatalf("index %d: BBUpper %v < BBLower %v", i, snaps[i].BBUpper, snaps[i].BBLower)
		}
	}
}

func TestOBVMonotonicOnStrictRise(t *testing.T) {
	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	bars := mkBars(closes)
	snaps := Rebuild(bars)
	for i := 1; i < len(snaps); i++ {
		if snaps[i].OBV <= snaps[i-1].OBV {
			t.Fatalf("index %d: expected strictly increasing OBV on a rising series", i)
		}
	}
}

func TestLocalExtremaRequiresFullWindow(t *testing.T) {
	closes := make([]float64, 2*extremaWindow)
	for i := range closes {
		closes[i] = 100
	}
	closes[extremaWindow] = 200 // spike in the middle
	bars := mkBars(closes)
	snaps := Rebuild(bars)
	for _, s := range snaps {
		if s.IsLocalHigh || s.IsLocalLow {
			t.Fatal("expected no decided extrema: history too short to have window on both sides")
		}
	}
}

func TestLocalExtremaDetectsSpike(t *testing.T) {
	n := 4*extremaWindow + 1
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100
	}
	mid := n / 2
	closes[mid] = 200
	bars := mkBars(closes)
	snaps := Rebuild(bars)
	if !snaps[mid].IsLocalHigh {
		t.Fatalf("expected index %d to be flagged as a local high", mid)
	}
}

func TestSyntheticBarsExcludedFromVolumeZ(t *testing.T) {
	closes := make([]float64, 55)
	for i := range closes {
		closes[i] = 100 + float64(i%3)
	}
	bars := mkBars(closes)
	bars[54].Synthetic = true
	bars[54].Volume = 0
	snaps := Rebuild(bars)
	// A synthetic bar's own VolZ50 is left at zero rather than computed.
	if snaps[54].VolZ50 != 0 {
		t.Fatalf("expected synthetic bar VolZ50 to be suppressed, got %v", snaps[54].VolZ50)
	}
}

func TestEngineUpdateMatchesRebuild(t *testing.T) {
	closes := make([]float64, 45)
	for i := range closes {
		closes[i] = 100 + float64(i%9)
	}
	bars := mkBars(closes)

	e := New()
	var last model.IndicatorSnapshot
	for _, b := range bars {
		last = e.Update(b)
	}
	full := Rebuild(bars)
	want := full[len(full)-1]
	if last != want {
		t.Fatalf("Engine.Update result diverged from Rebuild: got %+v want %+v", last, want)
	}
	if e.Len() != len(bars) {
		t.Fatalf("expected Len()=%d, got %d", len(bars), e.Len())
	}
}
