package service

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/sawpanic/sentinel/internal/backtest"
	"github.com/sawpanic/sentinel/internal/config"
	"github.com/sawpanic/sentinel/internal/model"
)

func testService() *Service {
	cfg := config.Default()
	return New(cfg, nil, zerolog.Nop())
}

// flatBars builds n synthetic 5m bars with a small deterministic wiggle so
// ATR/BB/volume indicators become non-zero without any randomness.
func flatBars(n int, startEpoch int64) []model.Bar {
	bars := make([]model.Bar, n)
	price := 100.0
	for i := 0; i < n; i++ {
		wiggle := float64(i%5) * 0.05
		o := price
		h := price + 0.3 + wiggle
		l := price - 0.3 - wiggle
		c := price + wiggle - 0.1
		bars[i] = model.Bar{
			EpochStart: startEpoch + int64(i)*int64(model.TF5m),
			Open:       o, High: h, Low: l, Close: c,
			Volume: 1000 + float64(i%7)*50,
		}
		price = c
	}
	return bars
}

func TestDataStatusEmptyBeforeUpload(t *testing.T) {
	s := testService()
	st := s.DataStatus()
	if st.Loaded || st.Count != 0 {
		t.Fatalf("expected empty status, got %+v", st)
	}
}

func TestUploadCSVLoadsValidRows(t *testing.T) {
	s := testService()
	csv := "time,open,high,low,close,Volume\n" +
		"300,100,101,99,100.5,1000\n" +
		"600,100.5,102,100,101.5,1200\n" +
		"900,abc,102,100,101.5,1200\n" // malformed row, should be skipped

	res, err := s.UploadCSV([]byte(csv))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.Rows != 2 {
		t.Fatalf("expected 2 loaded rows, got %d (%s)", res.Rows, res.Message)
	}
	if !res.Success {
		t.Fatalf("expected success=true")
	}

	st := s.DataStatus()
	if st.Count != 2 {
		t.Fatalf("expected store count 2, got %d", st.Count)
	}
}

func TestSignalsLatestInsufficientHistoryErrors(t *testing.T) {
	s := testService()
	for _, b := range flatBars(5, 300) {
		if err := s.store.Append(model.TF5m, b); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if _, err := s.SignalsLatest(SignalParams{}); err == nil {
		t.Fatalf("expected insufficient-history error with only 5 bars loaded")
	}
}

func TestScalpCardReportsMessageWhenNoSignal(t *testing.T) {
	s := testService()
	res, err := s.ScalpCard(false, false)
	if err == nil {
		t.Fatalf("expected error when no bars are loaded")
	}
	if res.Message == "" {
		t.Fatalf("expected a message explaining the failure")
	}
}

func TestBacktestRunsAndIsRetrievableByID(t *testing.T) {
	s := testService()
	for _, b := range flatBars(80, 300) {
		if err := s.store.Append(model.TF5m, b); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	cfg := backtest.Config{
		InitialCapital: 10000, RiskPerTrade: 0.01,
		TP1R: 1, TP2R: 2, TP3R: 3.5,
		TP1Scale: 0.4, TP2Scale: 0.3, TP3Scale: 0.3,
		BarTimeout: 50, FeeBufferBps: 5, BarsPerYear: 105120,
	}

	res, err := s.Backtest(cfg)
	if err != nil {
		t.Fatalf("backtest: %v", err)
	}
	if res.BacktestID == "" {
		t.Fatalf("expected a non-empty backtest id")
	}

	got, ok := s.BacktestByID(res.BacktestID)
	if !ok {
		t.Fatalf("expected backtest %s to be retrievable", res.BacktestID)
	}
	if got.Statistics.FinalBalance == 0 {
		t.Fatalf("expected a populated final balance, got %+v", got.Statistics)
	}
}

func TestBacktestByIDUnknownReturnsFalse(t *testing.T) {
	s := testService()
	if _, ok := s.BacktestByID("does-not-exist"); ok {
		t.Fatalf("expected unknown backtest id to report ok=false")
	}
}

func TestMTFConfluenceNoneAvailableReturnsFalse(t *testing.T) {
	s := testService()
	if _, ok := s.MTFConfluence(); ok {
		t.Fatalf("expected no confluence to be available on a fresh service")
	}
}

func TestStreamStartStopToggle(t *testing.T) {
	s := testService()
	if s.StreamRunning() {
		t.Fatalf("expected stream to start stopped")
	}
	s.StreamStart()
	if !s.StreamRunning() {
		t.Fatalf("expected stream running after StreamStart")
	}
	s.StreamStop()
	if s.StreamRunning() {
		t.Fatalf("expected stream stopped after StreamStop")
	}
}
