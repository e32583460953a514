// Package engine wires every subsystem of spec §2 into one live pipeline:
// per-timeframe CandleStore/Aggregator pairs feed IndicatorEngines, the 5m
// IndicatorEngine feeds the SignalDetector, confirmed signals run through
// the MTF confluence scorer/state-machine and VetoEvaluator, and executable,
// clean signals are composed into ScalpCards and published on the
// EventBus. Lifecycle follows the teacher's RunUntilSignal shape
// (CRun/src/interfaces/http/server.go) generalized from one HTTP server to
// N per-timeframe worker goroutines under a shared context and WaitGroup.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sawpanic/sentinel/internal/aggregator"
	"github.com/sawpanic/sentinel/internal/candle"
	"github.com/sawpanic/sentinel/internal/config"
	"github.com/sawpanic/sentinel/internal/detector"
	"github.com/sawpanic/sentinel/internal/eventbus"
	"github.com/sawpanic/sentinel/internal/indicators"
	"github.com/sawpanic/sentinel/internal/metrics"
	"github.com/sawpanic/sentinel/internal/micro"
	"github.com/sawpanic/sentinel/internal/model"
	"github.com/sawpanic/sentinel/internal/mtf"
	"github.com/sawpanic/sentinel/internal/persistence"
	"github.com/sawpanic/sentinel/internal/regime"
	"github.com/sawpanic/sentinel/internal/scalpcard"
	"github.com/sawpanic/sentinel/internal/sentinelerr"
	"github.com/sawpanic/sentinel/internal/veto"
)

// contextTimeframes are the timeframes the MTF scorer reads beyond the 5m
// detection timeframe itself: 1m for the micro group's impulse score, and
// 15m/1h/4h/1d for the context group.
var contextTimeframes = []model.Timeframe{model.TF1m, model.TF15m, model.TF1h, model.TF4h, model.TF1d}

const detectTimeframe = model.TF5m

// defaultTickBuffer bounds each timeframe's inbound tick buffer (spec §5
// backpressure: default 10 000, drop-oldest on overflow).
const defaultTickBuffer = 10000

// Engine owns the full live pipeline for one instrument.
type Engine struct {
	cfg *config.Config
	log zerolog.Logger

	store       *candle.Store
	aggregators map[model.Timeframe]*aggregator.Aggregator
	indEngines  map[model.Timeframe]*indicators.Engine
	tickChs     map[model.Timeframe]chan aggregator.Tick

	det       *detector.Detector
	microStrm *micro.Stream
	regimeDet *regime.Detector
	mtfFSM    *mtf.StateMachine
	mtfW      mtf.Weights
	bus       *eventbus.Bus
	sink      persistence.RecordSink

	killSwitch atomic.Bool
	seenStage1 map[int]struct{} // extremum_index already announced to the MTF FSM
	seenMu     sync.Mutex

	wg      sync.WaitGroup
	cancel  context.CancelFunc
	running atomic.Bool
}

// Status is the observable summary returned by live/status (spec §6).
type Status struct {
	Running      bool    `json:"running"`
	LastPrice    float64 `json:"last_price"`
	CandlesCount int     `json:"candles_count"`
}

// New builds an Engine from cfg. sink may be nil, in which case an
// in-memory persistence.MemSink is used.
func New(cfg *config.Config, sink persistence.RecordSink, log zerolog.Logger) *Engine {
	if sink == nil {
		sink = persistence.NewMemSink()
	}

	store := candle.New(cfg.CandleHistoryCap)
	aggs := make(map[model.Timeframe]*aggregator.Aggregator)
	inds := make(map[model.Timeframe]*indicators.Engine)
	chans := make(map[model.Timeframe]chan aggregator.Tick)

	timeframes := append([]model.Timeframe{detectTimeframe}, contextTimeframes...)
	for _, tf := range dedupeTimeframes(timeframes) {
		aggs[tf] = aggregator.New(tf, store)
		inds[tf] = indicators.New()
		chans[tf] = make(chan aggregator.Tick, defaultTickBuffer)
	}

	th := detector.Thresholds{
		ATRMin: cfg.ATRMin, VolZMin: cfg.VolZMin, BBWMin: cfg.BBWMin,
		ConfirmWindow: cfg.ConfirmWindow, BreakoutATRMult: cfg.BreakoutATRMult, VolMult: cfg.VolMult,
		TP1R: cfg.TP1R, TP2R: cfg.TP2R, TP3R: cfg.TP3R,
	}

	return &Engine{
		cfg:         cfg,
		log:         log.With().Str("component", "engine").Logger(),
		store:       store,
		aggregators: aggs,
		indEngines:  inds,
		tickChs:     chans,
		det:         detector.New(detectTimeframe, th),
		microStrm:   micro.New(cfg.DepthLevels, cfg.StalenessMs),
		regimeDet:   regime.New(0.02),
		mtfFSM:      mtf.New(int64(cfg.MTF.ConfirmTimeoutBars) * detectTimeframe.Seconds()),
		mtfW: mtf.Weights{
			EMAAlignment: cfg.MTF.EMAAlignment, OscillatorAgreement: cfg.MTF.OscillatorAgreement,
			MacroGate: cfg.MTF.MacroGate, Trigger5m: cfg.MTF.Trigger5m, Impulse1m: cfg.MTF.Impulse1m,
			TapeMicro: cfg.MTF.TapeMicro, VetoHygiene: cfg.MTF.VetoHygiene,
			ContextWeight: cfg.MTF.ContextWeight, MicroWeight: cfg.MTF.MicroWeight, TapeSlopeThreshold: 1,
		},
		bus:        eventbus.New(cfg.SubscriberBuffer),
		sink:       sink,
		seenStage1: make(map[int]struct{}),
	}
}

func dedupeTimeframes(tfs []model.Timeframe) []model.Timeframe {
	seen := make(map[model.Timeframe]bool, len(tfs))
	out := make([]model.Timeframe, 0, len(tfs))
	for _, tf := range tfs {
		if !seen[tf] {
			seen[tf] = true
			out = append(out, tf)
		}
	}
	return out
}

// Bus exposes the event bus for subscribers (stream_snapshot, signals_stream).
func (e *Engine) Bus() *eventbus.Bus { return e.bus }

// SetKillSwitch toggles the external kill-switch input consulted by every
// veto evaluation.
func (e *Engine) SetKillSwitch(on bool) { e.killSwitch.Store(on) }

// Start spawns one consumer goroutine per configured timeframe plus the MTF
// timeout ticker, all bound to ctx. Start returns an error if already running.
func (e *Engine) Start(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return sentinelerr.New(sentinelerr.KindBadInput, "engine already running", nil)
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	for tf := range e.tickChs {
		tf := tf
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.runTimeframe(runCtx, tf)
		}()
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runMTFTicker(runCtx)
	}()

	e.log.Info().Str("symbol", e.cfg.Symbol).Msg("engine started")
	return nil
}

// Stop cancels every worker goroutine and waits for them to exit.
func (e *Engine) Stop(ctx context.Context) error {
	if !e.running.CompareAndSwap(true, false) {
		return nil
	}
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		e.log.Info().Msg("engine stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status reports the live pipeline's observable state.
func (e *Engine) Status() Status {
	last := e.store.Latest(detectTimeframe, 1)
	price := 0.0
	if len(last) > 0 {
		price = last[0].Close
	}
	return Status{
		Running:      e.running.Load(),
		LastPrice:    price,
		CandlesCount: e.store.Size(detectTimeframe),
	}
}

// IngestTick feeds one tick to timeframe tf's aggregator, dropping the
// oldest buffered tick under backpressure (spec §5).
func (e *Engine) IngestTick(tf model.Timeframe, t aggregator.Tick) {
	ch, ok := e.tickChs[tf]
	if !ok {
		return
	}
	select {
	case ch <- t:
	default:
		select {
		case <-ch:
		default:
		}
		metrics.DroppedTicks.WithLabelValues(tf.String()).Inc()
		select {
		case ch <- t:
		default:
		}
	}
}

// IngestTrade feeds a microstructure trade event directly into the
// MicroStream (the stream's own atomic-swap discipline makes a bounded
// buffer unnecessary here, unlike the bar-aggregation path).
func (e *Engine) IngestTrade(t micro.TradeEvent) { e.microStrm.OnTrade(t) }

// IngestBook feeds a microstructure book event into the MicroStream.
func (e *Engine) IngestBook(b micro.BookEvent) { e.microStrm.OnBook(b) }

// MicroSnapshot returns the current microstructure snapshot.
func (e *Engine) MicroSnapshot() model.MicroSnapshot {
	snap := e.microStrm.Snapshot(micro.NowMicros())
	if !snap.Available {
		metrics.MicroStale.Set(1)
	} else {
		metrics.MicroStale.Set(0)
	}
	return snap
}

// MTFState returns the current MTF state machine snapshot.
func (e *Engine) MTFState() model.MTFState { return e.mtfFSM.Snapshot() }

func (e *Engine) runTimeframe(ctx context.Context, tf model.Timeframe) {
	agg := e.aggregators[tf]
	ind := e.indEngines[tf]
	ch := e.tickChs[tf]
	lastSize := 0

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ch:
			agg.Ingest(t)
			newSize := e.store.Size(tf)
			metrics.CandlesCount.WithLabelValues(tf.String()).Set(float64(newSize))
			if newSize <= lastSize {
				continue
			}
			for _, bar := range e.store.Latest(tf, newSize-lastSize) {
				snap := ind.Update(bar)
				if tf == detectTimeframe {
					e.onDetectBarClosed(bar, snap)
				}
			}
			lastSize = newSize
		}
	}
}

func (e *Engine) runMTFTicker(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			before := e.mtfFSM.Snapshot().State
			after := e.mtfFSM.Tick(time.Now().Unix())
			if after != before {
				metrics.MTFTransitions.WithLabelValues(string(after)).Inc()
			}
		}
	}
}

// onDetectBarClosed runs the detector on every newly closed 5m bar and
// drives the MTF state machine and veto/scalp-card pipeline from its
// output.
func (e *Engine) onDetectBarClosed(bar model.Bar, snap model.IndicatorSnapshot) {
	bars := e.store.All(detectTimeframe)
	snaps := allSnapshots(e.indEngines[detectTimeframe], len(bars))

	signals, expired, err := e.det.Process(bars, snaps)
	if err != nil {
		return // insufficient history; detector will retry as more bars close
	}

	e.announceNewCandidates(bar.EpochStart)
	for range expired {
		metrics.CandidatesExpired.Inc()
	}

	for _, sig := range signals {
		metrics.SignalsConfirmed.WithLabelValues(string(sig.Side)).Inc()
		e.mtfFSM.Confirm(bar.EpochStart)
		e.evaluateAndPublish(sig, bar, snap)
	}
}

// announceNewCandidates diffs the detector's currently open Stage 1
// candidates against those already announced to the MTF FSM, so each
// candidate enters CANDIDATE exactly once.
func (e *Engine) announceNewCandidates(epoch int64) {
	e.seenMu.Lock()
	defer e.seenMu.Unlock()
	for _, c := range e.det.Open() {
		if _, ok := e.seenStage1[c.ExtremumIndex]; ok {
			continue
		}
		e.seenStage1[c.ExtremumIndex] = struct{}{}
		metrics.CandidatesDetected.WithLabelValues(string(c.Side)).Inc()
		e.mtfFSM.NewCandidate(c, epoch)
	}
}

func (e *Engine) evaluateAndPublish(sig model.Signal, bar model.Bar, snap model.IndicatorSnapshot) {
	riskDistance := sig.Risk()
	vth := veto.Thresholds{
		DepthImbalanceMin: e.cfg.VetoDepthImbalance, MarkDivergenceMin: e.cfg.VetoMarkDivergence,
		OBVZSigma: e.cfg.VetoOBVZ, SpreadBpsMax: e.cfg.VetoSpreadBps,
		RSIHigh: e.cfg.VetoRSIHigh, RSILow: e.cfg.VetoRSILow,
		LiqGapATRMult: e.cfg.VetoLiqGapATRMult, LiqGapFeeMult: 10, TakerFeeBps: e.cfg.TakerFeeBps,
	}
	mkSnap := e.MicroSnapshot()
	vetoes := veto.Evaluate(vth, bar, snap, mkSnap, sig.Side, e.killSwitch.Load(), riskDistance)
	for reason := range vetoes {
		metrics.Vetoes.WithLabelValues(string(reason)).Inc()
	}

	// The veto_hygiene sub-score folds the same VetoSet the FSM decides on,
	// so confluence and decisive evaluation always agree on which vetoes fired.
	ctx := e.buildContextInputs(sig.Side)
	mic := e.buildMicroInputs(sig, snap, mkSnap, vetoes)
	confluence := mtf.Score(e.mtfW, sig.Side, ctx, mic)

	state := e.mtfFSM.EvaluateConfluence(confluence, vetoes, e.cfg.MTF.ContextMin, e.cfg.MTF.MicroMin)
	metrics.MTFTransitions.WithLabelValues(string(state)).Inc()

	e.bus.Publish(eventbus.TopicState, confluence)
	if state != model.StateExecutable {
		return
	}

	oneD, _ := e.indEngines[model.TF1d].Latest()
	regimeSnap := e.regimeDet.Classify(bar, oneD)
	card := scalpcard.Compose(e.cfg.Symbol, sig, vetoes, mkSnap, string(regimeSnap.Regime),
		e.cfg.OrderPath, e.cfg.VetoSpreadBps, e.cfg.BreakoutATRMult, e.cfg.VolMult)

	e.bus.Publish(eventbus.TopicSignals, card)
	if e.sink != nil {
		e.persistCard(card)
	}
}

func (e *Engine) persistCard(card model.ScalpCard) {
	// Best-effort: persistence failures are logged, never block the live
	// pipeline (spec §7 propagation policy: ingestor-class failures don't
	// halt detection).
	key := cardKey(card)
	payload, err := marshalCard(card)
	if err != nil {
		e.log.Warn().Err(err).Msg("failed to marshal scalp card for persistence")
		return
	}
	if err := e.sink.Put(context.Background(), key, payload); err != nil {
		e.log.Warn().Err(err).Msg("failed to persist scalp card")
	}
}

func (e *Engine) buildContextInputs(side model.Side) mtf.ContextInputs {
	h1, _ := e.indEngines[model.TF1h].Latest()
	h4, _ := e.indEngines[model.TF4h].Latest()
	m15, _ := e.indEngines[model.TF15m].Latest()
	d1, _ := e.indEngines[model.TF1d].Latest()
	return mtf.ContextInputs{
		EMAFast1h: h1.EMAFast, EMASlow1h: h1.EMASlow,
		EMAFast4h: h4.EMAFast, EMASlow4h: h4.EMASlow,
		RSI15m: m15.RSI14, RSI1h: h1.RSI14,
		EMAFast1d: d1.EMAFast, EMASlow1d: d1.EMASlow,
	}
}

func (e *Engine) buildMicroInputs(sig model.Signal, snap model.IndicatorSnapshot, mk model.MicroSnapshot, vetoes model.VetoSet) mtf.MicroInputs {
	level := sig.CandidateRef.ExtremumPrice + e.cfg.BreakoutATRMult*snap.ATR5
	if sig.Side == model.SideShort {
		level = sig.CandidateRef.ExtremumPrice - e.cfg.BreakoutATRMult*snap.ATR5
	}
	breakout := sig.Entry - level
	if breakout < 0 {
		breakout = -breakout
	}
	return mtf.MicroInputs{
		BreakoutExcess: breakout,
		ATR5:           snap.ATR5,
		Impulse1mBars:  e.store.Latest(model.TF1m, 5),
		CVDSlope:       mk.CVDSlope,
		Vetoes:         vetoes,
	}
}

func cardKey(card model.ScalpCard) string {
	return fmt.Sprintf("scalpcard:%s:%s:%d", card.Symbol, uuid.NewString(), time.Now().UnixNano())
}

func marshalCard(card model.ScalpCard) ([]byte, error) {
	return json.Marshal(card)
}

func allSnapshots(eng *indicators.Engine, n int) []model.IndicatorSnapshot {
	out := make([]model.IndicatorSnapshot, n)
	for i := 0; i < n; i++ {
		s, _ := eng.Snapshot(i)
		out[i] = s
	}
	return out
}
