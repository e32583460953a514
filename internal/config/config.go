// Package config holds the engine's tunable parameters (spec §6), loaded
// from YAML with field-level defaults — the same load-then-default shape as
// the teacher's provider configuration (internal/config/providers.go).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/sentinel/internal/sentinelerr"
)

// Config is the full set of recognized engine options (spec §6).
type Config struct {
	Symbol string `yaml:"symbol"`

	// Stage 1 / Stage 2 detector gates.
	ATRMin          float64 `yaml:"atr_min"`
	VolZMin         float64 `yaml:"volz_min"`
	BBWMin          float64 `yaml:"bbw_min"`
	ConfirmWindow   int     `yaml:"confirm_window"`
	BreakoutATRMult float64 `yaml:"breakout_atr_mult"`
	VolMult         float64 `yaml:"vol_mult"`
	EnableMicroGate bool    `yaml:"enable_micro_gate"`

	// TP ladder multipliers (risk units).
	TP1R float64 `yaml:"tp1_r"`
	TP2R float64 `yaml:"tp2_r"`
	TP3R float64 `yaml:"tp3_r"`

	// Backtest.
	InitialCapital float64 `yaml:"initial_capital"`
	RiskPerTrade   float64 `yaml:"risk_per_trade"`
	TP1Scale       float64 `yaml:"tp1_scale"`
	TP2Scale       float64 `yaml:"tp2_scale"`
	TP3Scale       float64 `yaml:"tp3_scale"`
	TrailAfterTP   bool    `yaml:"trail_after_tp"`
	BarTimeout     int     `yaml:"bar_timeout"`
	FeeBufferBps   float64 `yaml:"fee_buffer_bps"`
	TakerFeeBps    float64 `yaml:"taker_fee_bps"`
	BarsPerYear    float64 `yaml:"bars_per_year"`

	// Candle store / micro.
	CandleHistoryCap  int   `yaml:"candle_history_cap"`
	StalenessMs       int64 `yaml:"staleness_ms"`
	SubscriberBuffer  int   `yaml:"subscriber_buffer"`
	TickDropThreshold int   `yaml:"tick_drop_threshold"`
	DepthLevels       int   `yaml:"depth_levels"`

	// Veto thresholds.
	VetoDepthImbalance float64 `yaml:"veto_depth_imbalance"`
	VetoMarkDivergence float64 `yaml:"veto_mark_divergence"`
	VetoOBVZ           float64 `yaml:"veto_obv_z"`
	VetoSpreadBps      float64 `yaml:"veto_spread_bps"`
	VetoRSIHigh        float64 `yaml:"veto_rsi_high"`
	VetoRSILow         float64 `yaml:"veto_rsi_low"`
	VetoLiqGapATRMult  float64 `yaml:"veto_liq_gap_atr_mult"`

	// MTF weights and tier thresholds.
	MTF MTFWeights `yaml:"mtf"`

	// CSV import.
	CSVMaxRows int `yaml:"csv_max_rows"`

	OrderPath string `yaml:"order_path"`
}

// MTFWeights carries the confluence group weights (spec §4.7); these are
// not Open Questions — the spec fixes the numbers, this struct just makes
// them overridable for testing.
type MTFWeights struct {
	EMAAlignment        float64 `yaml:"ema_alignment"`
	OscillatorAgreement float64 `yaml:"oscillator_agreement"`
	MacroGate           float64 `yaml:"macro_gate"`
	Trigger5m           float64 `yaml:"trigger_5m"`
	Impulse1m           float64 `yaml:"impulse_1m"`
	TapeMicro           float64 `yaml:"tape_micro"`
	VetoHygiene         float64 `yaml:"veto_hygiene"`
	ContextMin          float64 `yaml:"context_min"`
	MicroMin            float64 `yaml:"micro_min"`
	ConfirmTimeoutBars  int     `yaml:"confirm_timeout_bars"`
	ContextWeight       float64 `yaml:"context_weight"`
	MicroWeight         float64 `yaml:"micro_weight"`
}

// Default returns the spec-documented defaults (spec §6).
func Default() *Config {
	return &Config{
		Symbol:            "SOL-USD",
		ATRMin:            0.006,
		VolZMin:           0.5,
		BBWMin:            0.005,
		ConfirmWindow:     6,
		BreakoutATRMult:   0.5,
		VolMult:           1.5,
		EnableMicroGate:   false,
		TP1R:              1.0,
		TP2R:              2.0,
		TP3R:              3.5,
		InitialCapital:    10000,
		RiskPerTrade:      0.02,
		TP1Scale:          0.5,
		TP2Scale:          0.3,
		TP3Scale:          0.2,
		TrailAfterTP:      true,
		BarTimeout:        288, // 24h of 5m bars
		FeeBufferBps:      2,
		TakerFeeBps:       10,
		BarsPerYear:       365 * 24 * 12, // 5m bars/year
		CandleHistoryCap:  5000,
		StalenessMs:       5000,
		SubscriberBuffer:  64,
		TickDropThreshold: 10000,
		DepthLevels:       10,
		VetoDepthImbalance: 0.5,
		VetoMarkDivergence: 0.0015,
		VetoOBVZ:           1.5,
		VetoSpreadBps:      10,
		VetoRSIHigh:        80,
		VetoRSILow:         20,
		VetoLiqGapATRMult:  4,
		MTF: MTFWeights{
			EMAAlignment:        35,
			OscillatorAgreement: 25,
			MacroGate:           40,
			Trigger5m:           30,
			Impulse1m:           25,
			TapeMicro:           25,
			VetoHygiene:         20,
			ContextMin:          60,
			MicroMin:            60,
			ConfirmTimeoutBars:  12,
			ContextWeight:       0.6,
			MicroWeight:         0.4,
		},
		CSVMaxRows: 200000,
		OrderPath:  "paper/sol-usd/swing",
	}
}

// Load reads a YAML file into a Config starting from Default(), then
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, sentinelerr.Wrap(sentinelerr.KindConfig, err, "reading config file")
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, sentinelerr.Wrap(sentinelerr.KindConfig, err, "parsing config yaml")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the invariants spec §4.9 and §6 require of a config
// combination; violations are E_Config.
func (c *Config) Validate() error {
	if c.TP1Scale+c.TP2Scale+c.TP3Scale > 1.0+1e-9 {
		return sentinelerr.Config(fmt.Sprintf("tp1_scale+tp2_scale+tp3_scale=%.4f exceeds 1.0",
			c.TP1Scale+c.TP2Scale+c.TP3Scale))
	}
	if c.RiskPerTrade <= 0 || c.RiskPerTrade >= 1 {
		return sentinelerr.Config("risk_per_trade must be in (0,1)")
	}
	if c.ConfirmWindow <= 0 {
		return sentinelerr.Config("confirm_window must be positive")
	}
	if c.MTF.ContextWeight+c.MTF.MicroWeight != 1.0 {
		// Spec fixes 0.6/0.4; tolerate override but require it still sums to 1.
		if diff := c.MTF.ContextWeight + c.MTF.MicroWeight - 1.0; diff > 1e-9 || diff < -1e-9 {
			return sentinelerr.Config("mtf context_weight + micro_weight must equal 1.0")
		}
	}
	return nil
}
