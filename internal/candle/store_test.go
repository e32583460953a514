package candle

import (
	"testing"

	"github.com/sawpanic/sentinel/internal/model"
)

func bar(epoch int64, o, h, l, c, v float64) model.Bar {
	return model.Bar{EpochStart: epoch, Open: o, High: h, Low: l, Close: c, Volume: v}
}

func TestAppendMonotonic(t *testing.T) {
	s := New(10)
	if err := s.Append(model.TF5m, bar(300, 1, 1, 1, 1, 1)); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if err := s.Append(model.TF5m, bar(300, 1, 1, 1, 1, 1)); err == nil {
		t.Fatal("expected rejection of non-increasing epoch_start")
	}
	if err := s.Append(model.TF5m, bar(600, 1, 1, 1, 1, 1)); err != nil {
		t.Fatalf("second append: %v", err)
	}
	if s.Size(model.TF5m) != 2 {
		t.Fatalf("expected size 2, got %d", s.Size(model.TF5m))
	}
	if s.DroppedOutOfOrder(model.TF5m) != 1 {
		t.Fatalf("expected 1 dropped, got %d", s.DroppedOutOfOrder(model.TF5m))
	}
}

func TestAppendRejectsMisalignedEpoch(t *testing.T) {
	s := New(10)
	if err := s.Append(model.TF5m, bar(301, 1, 1, 1, 1, 1)); err == nil {
		t.Fatal("expected rejection of misaligned epoch_start")
	}
}

func TestAppendRejectsInvalidOHLC(t *testing.T) {
	s := New(10)
	bad := bar(300, 5, 4, 1, 5, 1) // high < open
	if err := s.Append(model.TF5m, bad); err == nil {
		t.Fatal("expected rejection of invalid OHLC")
	}
}

func TestBoundedEviction(t *testing.T) {
	s := New(3)
	for i := int64(1); i <= 5; i++ {
		if err := s.Append(model.TF5m, bar(i*300, 1, 1, 1, 1, 1)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if s.Size(model.TF5m) != 3 {
		t.Fatalf("expected capped size 3, got %d", s.Size(model.TF5m))
	}
	latest := s.Latest(model.TF5m, 10)
	if latest[0].EpochStart != 900 || latest[2].EpochStart != 1500 {
		t.Fatalf("unexpected eviction order: %+v", latest)
	}
}

func TestLatestOldestFirst(t *testing.T) {
	s := New(10)
	for i := int64(1); i <= 4; i++ {
		_ = s.Append(model.TF5m, bar(i*300, 1, 1, 1, 1, 1))
	}
	got := s.Latest(model.TF5m, 2)
	if len(got) != 2 || got[0].EpochStart != 900 || got[1].EpochStart != 1200 {
		t.Fatalf("unexpected latest(2): %+v", got)
	}
}

func TestOpenBarNotInClosedSeries(t *testing.T) {
	s := New(10)
	s.SetOpen(model.TF5m, bar(300, 1, 1, 1, 1, 1))
	if s.Size(model.TF5m) != 0 {
		t.Fatalf("open bar should not count toward closed size, got %d", s.Size(model.TF5m))
	}
	open, ok := s.GetOpen(model.TF5m)
	if !ok || open.EpochStart != 300 {
		t.Fatalf("unexpected open bar: %+v ok=%v", open, ok)
	}
}

func TestResetClearsAllTimeframes(t *testing.T) {
	s := New(10)
	_ = s.Append(model.TF5m, bar(300, 1, 1, 1, 1, 1))
	_ = s.Append(model.TF1h, bar(3600, 1, 1, 1, 1, 1))
	s.Reset()
	if s.Size(model.TF5m) != 0 || s.Size(model.TF1h) != 0 {
		t.Fatal("expected reset to clear all timeframe slots")
	}
}
