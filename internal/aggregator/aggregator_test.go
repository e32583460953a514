package aggregator

import (
	"testing"

	"github.com/sawpanic/sentinel/internal/candle"
	"github.com/sawpanic/sentinel/internal/model"
)

func TestSingleBucketFold(t *testing.T) {
	store := candle.New(10)
	a := New(model.TF5m, store)

	a.Ingest(Tick{EpochMicros: 0, Price: 100, Size: 1})
	a.Ingest(Tick{EpochMicros: 60_000_000, Price: 105, Size: 2})
	a.Ingest(Tick{EpochMicros: 120_000_000, Price: 98, Size: 1})
	a.FlushOpen()

	bars := store.All(model.TF5m)
	if len(bars) != 1 {
		t.Fatalf("expected 1 closed bar, got %d", len(bars))
	}
	b := bars[0]
	if b.Open != 100 || b.High != 105 || b.Low != 98 || b.Close != 98 || b.Volume != 4 {
		t.Fatalf("unexpected bar: %+v", b)
	}
}

func TestBucketRollover(t *testing.T) {
	store := candle.New(10)
	a := New(model.TF5m, store)

	a.Ingest(Tick{EpochMicros: 0, Price: 100, Size: 1})
	a.Ingest(Tick{EpochMicros: 301_000_000, Price: 110, Size: 1}) // next 5m bucket
	a.FlushOpen()

	bars := store.All(model.TF5m)
	if len(bars) != 2 {
		t.Fatalf("expected 2 closed bars, got %d", len(bars))
	}
	if bars[0].EpochStart != 0 || bars[1].EpochStart != 300 {
		t.Fatalf("unexpected epochs: %+v", bars)
	}
}

func TestGapFillSynthetic(t *testing.T) {
	store := candle.New(10)
	a := New(model.TF5m, store)

	a.Ingest(Tick{EpochMicros: 0, Price: 100, Size: 1})
	// Skip two whole buckets (300s, 600s) and land in the one starting at 900s.
	a.Ingest(Tick{EpochMicros: 901_000_000, Price: 120, Size: 1})
	a.FlushOpen()

	bars := store.All(model.TF5m)
	if len(bars) != 4 {
		t.Fatalf("expected 4 closed bars (2 real + 2 synthetic), got %d: %+v", len(bars), bars)
	}
	if !bars[1].Synthetic || bars[1].Volume != 0 || bars[1].Open != 100 || bars[1].Close != 100 {
		t.Fatalf("unexpected synthetic gap bar: %+v", bars[1])
	}
	if !bars[2].Synthetic {
		t.Fatalf("expected second gap bucket to also be synthetic: %+v", bars[2])
	}
}

func TestLateTickDropped(t *testing.T) {
	store := candle.New(10)
	a := New(model.TF5m, store)

	a.Ingest(Tick{EpochMicros: 301_000_000, Price: 110, Size: 1})
	a.Ingest(Tick{EpochMicros: 0, Price: 100, Size: 1}) // earlier than current bucket
	if a.DroppedLate() != 1 {
		t.Fatalf("expected 1 dropped late tick, got %d", a.DroppedLate())
	}
}
