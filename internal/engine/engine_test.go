package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/sentinel/internal/aggregator"
	"github.com/sawpanic/sentinel/internal/config"
	"github.com/sawpanic/sentinel/internal/model"
)

func testEngine() *Engine {
	cfg := config.Default()
	return New(cfg, nil, zerolog.Nop())
}

func TestDedupeTimeframesRemovesRepeats(t *testing.T) {
	in := []model.Timeframe{model.TF5m, model.TF1m, model.TF5m, model.TF1h}
	out := dedupeTimeframes(in)
	if len(out) != 3 {
		t.Fatalf("expected 3 unique timeframes, got %d: %v", len(out), out)
	}
}

func TestNewEngineStartsNotRunning(t *testing.T) {
	e := testEngine()
	st := e.Status()
	if st.Running {
		t.Fatalf("expected a freshly built engine to report Running=false")
	}
	if st.CandlesCount != 0 {
		t.Fatalf("expected 0 candles before any ticks, got %d", st.CandlesCount)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	e := testEngine()
	ctx := context.Background()
	if err := e.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !e.Status().Running {
		t.Fatalf("expected Running=true after Start")
	}
	if err := e.Start(ctx); err == nil {
		t.Fatalf("expected second Start to report already-running")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if e.Status().Running {
		t.Fatalf("expected Running=false after Stop")
	}
}

func TestIngestTickDropsOldestUnderBackpressure(t *testing.T) {
	e := testEngine()
	ch := e.tickChs[model.TF5m]
	bufCap := cap(ch)

	for i := 0; i < bufCap; i++ {
		e.IngestTick(model.TF5m, aggregator.Tick{EpochMicros: int64(i), Price: 100, Size: 1})
	}
	if len(ch) != bufCap {
		t.Fatalf("expected channel full at capacity %d, got %d", bufCap, len(ch))
	}

	e.IngestTick(model.TF5m, aggregator.Tick{EpochMicros: 999999, Price: 101, Size: 1})
	if len(ch) != bufCap {
		t.Fatalf("expected channel to remain bounded at capacity %d after overflow ingest, got %d", bufCap, len(ch))
	}
}

func TestMicroSnapshotUnavailableBeforeAnyEvent(t *testing.T) {
	e := testEngine()
	snap := e.MicroSnapshot()
	if snap.Available {
		t.Fatalf("expected unavailable microsnapshot before any trade/book event")
	}
}

func TestMTFStateStartsIdle(t *testing.T) {
	e := testEngine()
	if e.MTFState().State != model.StateIdle {
		t.Fatalf("expected fresh engine's MTF state machine to start IDLE, got %v", e.MTFState().State)
	}
}
