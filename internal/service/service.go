// Package service implements the transport-agnostic request surface of
// spec §6 as a single Go type: no HTTP/WebSocket server lives in this
// module (live exchange and client connectivity are external
// collaborators) — a deployment mounts Service behind whatever transport
// it needs. cmd/sentinel drives it directly for local CLI use.
package service

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sawpanic/sentinel/internal/backtest"
	"github.com/sawpanic/sentinel/internal/candle"
	"github.com/sawpanic/sentinel/internal/config"
	"github.com/sawpanic/sentinel/internal/csvimport"
	"github.com/sawpanic/sentinel/internal/detector"
	"github.com/sawpanic/sentinel/internal/engine"
	"github.com/sawpanic/sentinel/internal/eventbus"
	"github.com/sawpanic/sentinel/internal/indicators"
	"github.com/sawpanic/sentinel/internal/metrics"
	"github.com/sawpanic/sentinel/internal/model"
	"github.com/sawpanic/sentinel/internal/persistence"
	"github.com/sawpanic/sentinel/internal/regime"
	"github.com/sawpanic/sentinel/internal/scalpcard"
	"github.com/sawpanic/sentinel/internal/sentinelerr"
	"github.com/sawpanic/sentinel/internal/veto"
)

// UploadResult is the response shape of upload_csv.
type UploadResult struct {
	Rows    int      `json:"rows"`
	Columns []string `json:"columns"`
	Success bool     `json:"success"`
	Message string   `json:"message"`
}

// DataStatus is the response shape of data_status.
type DataStatus struct {
	Loaded bool `json:"loaded"`
	Count  int  `json:"count"`
}

// SignalParams overrides the detector thresholds for one signals_latest
// call; zero-valued fields fall back to the Service's configured defaults.
type SignalParams struct {
	ATRMin          float64
	VolZMin         float64
	BBWMin          float64
	ConfirmWindow   int
	BreakoutATRMult float64
	VolMult         float64
	EnableMicroGate bool
}

// ScalpCardResult is the response shape of scalp_card.
type ScalpCardResult struct {
	Card    *model.ScalpCard `json:"card,omitempty"`
	Message string           `json:"message,omitempty"`
	Veto    model.VetoSet    `json:"veto,omitempty"`
}

// LiveStatus is the response shape of live/status.
type LiveStatus = engine.Status

// MTFStatus is the response shape of mtf/status.
type MTFStatus = model.MTFState

// BacktestResult is the response shape of backtest(...) and backtest/{id}.
type BacktestResult struct {
	BacktestID string        `json:"backtest_id"`
	Statistics model.Stats   `json:"statistics"`
	Trades     []model.Trade `json:"trades,omitempty"`
}

// Service implements every operation of spec §6 over one instrument.
type Service struct {
	cfg   *config.Config
	store *candle.Store
	eng   *engine.Engine
	log   zerolog.Logger

	mu        sync.RWMutex
	backtests map[string]BacktestResult
	streamRun bool
}

// New builds a Service. sink may be nil (defaults to an in-memory
// persistence.RecordSink inside the engine).
func New(cfg *config.Config, sink persistence.RecordSink, log zerolog.Logger) *Service {
	return &Service{
		cfg:       cfg,
		store:     candle.New(cfg.CandleHistoryCap),
		eng:       engine.New(cfg, sink, log),
		log:       log.With().Str("component", "service").Logger(),
		backtests: make(map[string]BacktestResult),
	}
}

// Engine exposes the underlying engine for transports that need direct
// EventBus access (stream_snapshot/signals_stream subscriptions).
func (s *Service) Engine() *engine.Engine { return s.eng }

// UploadCSV parses bytes as the spec §6 CSV format and loads every valid
// row into the service's own CandleStore under the 5m timeframe.
func (s *Service) UploadCSV(data []byte) (UploadResult, error) {
	results, err := csvimport.Import(bytes.NewReader(data), s.cfg.CSVMaxRows)
	if err != nil {
		return UploadResult{}, err
	}

	loaded := 0
	var firstErr error
	for _, r := range results {
		if r.Err != nil {
			if firstErr == nil {
				firstErr = r.Err
			}
			continue
		}
		if err := s.store.Append(model.TF5m, r.Bar); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		loaded++
	}

	msg := "ok"
	if firstErr != nil {
		msg = firstErr.Error()
	}
	return UploadResult{
		Rows:    loaded,
		Columns: []string{"time", "open", "high", "low", "close", "Volume"},
		Success: loaded > 0,
		Message: msg,
	}, nil
}

// DataStatus reports the CandleStore's current load state.
func (s *Service) DataStatus() DataStatus {
	n := s.store.Size(model.TF5m)
	return DataStatus{Loaded: n > 0, Count: n}
}

// ResetData clears the loaded CandleStore (CSV re-import idempotence, spec §8).
func (s *Service) ResetData() { s.store.Reset() }

// SignalsLatest runs the two-stage SignalDetector once over the currently
// loaded bars using params (falling back to config defaults for zero
// fields) and returns the most recently confirmed signal, if any.
func (s *Service) SignalsLatest(params SignalParams) (model.Signal, error) {
	th := s.thresholdsFrom(params)
	bars := s.store.All(model.TF5m)

	ind := indicators.New()
	var snaps []model.IndicatorSnapshot
	for _, b := range bars {
		snaps = append(snaps, ind.Update(b))
	}

	det := detector.New(model.TF5m, th)
	signals, _, err := det.Process(bars, snaps)
	if err != nil {
		return model.Signal{}, err
	}
	if len(signals) == 0 {
		return model.Signal{}, sentinelerr.New(sentinelerr.KindNoSignal, "no signal", nil)
	}
	return signals[len(signals)-1], nil
}

func (s *Service) thresholdsFrom(p SignalParams) detector.Thresholds {
	th := detector.Thresholds{
		ATRMin: s.cfg.ATRMin, VolZMin: s.cfg.VolZMin, BBWMin: s.cfg.BBWMin,
		ConfirmWindow: s.cfg.ConfirmWindow, BreakoutATRMult: s.cfg.BreakoutATRMult, VolMult: s.cfg.VolMult,
		TP1R: s.cfg.TP1R, TP2R: s.cfg.TP2R, TP3R: s.cfg.TP3R,
	}
	if p.ATRMin != 0 {
		th.ATRMin = p.ATRMin
	}
	if p.VolZMin != 0 {
		th.VolZMin = p.VolZMin
	}
	if p.BBWMin != 0 {
		th.BBWMin = p.BBWMin
	}
	if p.ConfirmWindow != 0 {
		th.ConfirmWindow = p.ConfirmWindow
	}
	if p.BreakoutATRMult != 0 {
		th.BreakoutATRMult = p.BreakoutATRMult
	}
	if p.VolMult != 0 {
		th.VolMult = p.VolMult
	}
	return th
}

// ScalpCard runs SignalsLatest, then (when enableMicroGate is set) the
// VetoEvaluator, and composes a ScalpCard from the result. A non-empty
// VetoSet returns "vetoed" without a card unless force is set.
func (s *Service) ScalpCard(enableMicroGate, force bool) (ScalpCardResult, error) {
	sig, err := s.SignalsLatest(SignalParams{EnableMicroGate: enableMicroGate})
	if err != nil {
		return ScalpCardResult{Message: err.Error()}, err
	}

	mkSnap := s.eng.MicroSnapshot()
	bars := s.store.All(model.TF5m)
	ind := indicators.New()
	var snap model.IndicatorSnapshot
	for _, b := range bars {
		snap = ind.Update(b)
	}

	vetoes := model.VetoSet{}
	if enableMicroGate && len(bars) > 0 {
		vth := veto.Thresholds{
			DepthImbalanceMin: s.cfg.VetoDepthImbalance, MarkDivergenceMin: s.cfg.VetoMarkDivergence,
			OBVZSigma: s.cfg.VetoOBVZ, SpreadBpsMax: s.cfg.VetoSpreadBps,
			RSIHigh: s.cfg.VetoRSIHigh, RSILow: s.cfg.VetoRSILow,
			LiqGapATRMult: s.cfg.VetoLiqGapATRMult, LiqGapFeeMult: 10, TakerFeeBps: s.cfg.TakerFeeBps,
		}
		vetoes = veto.Evaluate(vth, bars[len(bars)-1], snap, mkSnap, sig.Side, false, sig.Risk())
	}

	if !force && !vetoes.Empty() {
		return ScalpCardResult{Message: "vetoed", Veto: vetoes}, nil
	}

	regimeSnap := regime.New(0).Classify(bars[len(bars)-1], snap)
	card := scalpcard.Compose(s.cfg.Symbol, sig, vetoes, mkSnap, string(regimeSnap.Regime),
		s.cfg.OrderPath, s.cfg.VetoSpreadBps, s.cfg.BreakoutATRMult, s.cfg.VolMult)
	return ScalpCardResult{Card: &card}, nil
}

// StreamSnapshot returns the current microstructure snapshot.
func (s *Service) StreamSnapshot() model.MicroSnapshot { return s.eng.MicroSnapshot() }

// LiveStart starts the live ingest+detect pipeline.
func (s *Service) LiveStart(ctx context.Context) error { return s.eng.Start(ctx) }

// LiveStop stops the live pipeline.
func (s *Service) LiveStop(ctx context.Context) error { return s.eng.Stop(ctx) }

// LiveStatusOp reports the live pipeline's status.
func (s *Service) LiveStatusOp() LiveStatus { return s.eng.Status() }

// MTFStart and MTFStop are no-ops: the MTF state machine runs as part of
// the same engine and starts and stops with live/start|stop; these change
// nothing about it. Kept as explicit operations to match the spec's stable
// request-name contract.
func (s *Service) MTFStart() error { return nil }
func (s *Service) MTFStop() error  { return nil }

// MTFStatusOp reports the MTF state machine's current state.
func (s *Service) MTFStatusOp() MTFStatus { return s.eng.MTFState() }

// MTFConfluence is not separately cached by the engine today — it is
// published on TopicState at evaluation time. Transports needing every
// value subscribe to that topic directly via Engine().Bus(); this method
// reports ok=false when none has been published since the caller
// subscribed.
func (s *Service) MTFConfluence() (model.MTFConfluence, bool) {
	sub := s.eng.Bus().Subscribe(eventbus.TopicState)
	defer s.eng.Bus().Unsubscribe(sub)
	select {
	case env := <-sub.C():
		if c, ok := env.Payload.(model.MTFConfluence); ok {
			return c, true
		}
	default:
	}
	return model.MTFConfluence{}, false
}

// StreamStart/StreamStop control the microstructure ingestor's logical
// on/off flag. The actual feed connection is an external collaborator
// (internal/micro/wsfeed.Feed); this flag governs whether a transport
// should be forwarding trade/book events into the engine at all.
func (s *Service) StreamStart() { s.mu.Lock(); s.streamRun = true; s.mu.Unlock() }
func (s *Service) StreamStop()  { s.mu.Lock(); s.streamRun = false; s.mu.Unlock() }
func (s *Service) StreamRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streamRun
}

// Backtest runs a full BacktestSimulator pass over the currently loaded
// bars and stores the result under a generated id for later retrieval.
func (s *Service) Backtest(cfg backtest.Config) (BacktestResult, error) {
	bars := s.store.All(model.TF5m)
	th := detector.Thresholds{
		ATRMin: s.cfg.ATRMin, VolZMin: s.cfg.VolZMin, BBWMin: s.cfg.BBWMin,
		ConfirmWindow: s.cfg.ConfirmWindow, BreakoutATRMult: s.cfg.BreakoutATRMult, VolMult: s.cfg.VolMult,
		TP1R: cfg.TP1R, TP2R: cfg.TP2R, TP3R: cfg.TP3R,
	}
	trades, stats, err := backtest.Run(bars, model.TF5m, th, cfg)
	if err != nil {
		return BacktestResult{}, err
	}
	metrics.BacktestRuns.Inc()

	id := uuid.NewString()
	result := BacktestResult{BacktestID: id, Statistics: stats, Trades: trades}

	s.mu.Lock()
	s.backtests[id] = result
	s.mu.Unlock()

	return BacktestResult{BacktestID: id, Statistics: stats}, nil
}

// BacktestByID retrieves a previously run backtest's full result,
// including its trade ledger.
func (s *Service) BacktestByID(id string) (BacktestResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.backtests[id]
	return r, ok
}
