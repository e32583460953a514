package model

// MicroSnapshot is an atomic, wholesale-replaced record of microstructure
// state. A reader either gets a fully consistent snapshot or is told
// Available=false; there is no partial read.
type MicroSnapshot struct {
	EpochMicros      int64   `json:"epoch_micros"`
	Mid              float64 `json:"mid"`
	Bid              float64 `json:"bid"`
	Ask              float64 `json:"ask"`
	SpreadBPS        float64 `json:"spread_bps"`
	BidDepth         float64 `json:"bid_depth"`
	AskDepth         float64 `json:"ask_depth"`
	LadderImbalance  float64 `json:"ladder_imbalance"` // [-1, 1]
	CVD              float64 `json:"cvd"`
	CVDSlope         float64 `json:"cvd_slope"`
	LastTradePrice   float64 `json:"last_trade_price"`
	Available        bool    `json:"available"`
}

// VetoReason names one of the seven stable veto tags.
type VetoReason string

const (
	VetoDepth      VetoReason = "depth"
	VetoImbalance  VetoReason = "imbalance"
	VetoOBV        VetoReason = "obv"
	VetoKill       VetoReason = "kill"
	VetoSpread     VetoReason = "spread"
	VetoRSIExtreme VetoReason = "rsi_extreme"
	VetoLiqGap     VetoReason = "liq_gap"
)

// VetoSet maps a fired reason to its scalar/boolean explanation. An empty
// set means the trade passes microstructure review.
type VetoSet map[VetoReason]float64

// Empty reports whether no veto reasons fired.
func (v VetoSet) Empty() bool { return len(v) == 0 }
