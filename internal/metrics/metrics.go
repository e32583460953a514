// Package metrics registers the engine's Prometheus instrumentation,
// following the package-level var-block registration style of
// chidi150c-coinbase/metrics.go: counters/gauges declared once, registered
// in init(), updated by the subsystems that own the events they describe.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	CandidatesDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sentinel_candidates_detected_total", Help: "Stage 1 candidates emitted, by side"},
		[]string{"side"},
	)
	CandidatesExpired = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "sentinel_candidates_expired_total", Help: "Candidates expired past window_deadline_epoch"},
	)
	SignalsConfirmed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sentinel_signals_confirmed_total", Help: "Stage 2 confirmations, by side"},
		[]string{"side"},
	)
	Vetoes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sentinel_vetoes_total", Help: "VetoEvaluator firings, by reason"},
		[]string{"reason"},
	)
	MTFTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sentinel_mtf_transitions_total", Help: "MTF state machine transitions, by to-state"},
		[]string{"to"},
	)
	BacktestRuns = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "sentinel_backtest_runs_total", Help: "Completed backtest runs"},
	)
	EventBusDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sentinel_eventbus_drops_total", Help: "Drop-oldest events, by topic"},
		[]string{"topic"},
	)
	DroppedTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sentinel_dropped_ticks_total", Help: "Ticks dropped by aggregator, by timeframe"},
		[]string{"timeframe"},
	)
	CandlesCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "sentinel_candles_count", Help: "Closed bars currently retained, by timeframe"},
		[]string{"timeframe"},
	)
	MicroStale = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "sentinel_micro_stale", Help: "1 if the current MicroSnapshot is stale, else 0"},
	)
	IngestorCircuitOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "sentinel_ingestor_circuit_open", Help: "1 if the ingestor's circuit breaker is open, else 0"},
		[]string{"feed"},
	)
)

func init() {
	prometheus.MustRegister(
		CandidatesDetected, CandidatesExpired, SignalsConfirmed, Vetoes, MTFTransitions,
		BacktestRuns, EventBusDrops, DroppedTicks, CandlesCount, MicroStale, IngestorCircuitOpen,
	)
}
