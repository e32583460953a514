package model

// ExitReason names why a backtest trade closed.
type ExitReason string

const (
	ExitTP1     ExitReason = "tp1"
	ExitTP2     ExitReason = "tp2"
	ExitTP3     ExitReason = "tp3"
	ExitSL      ExitReason = "sl"
	ExitTrail   ExitReason = "trail"
	ExitTimeout ExitReason = "timeout"
)

// Trade is one closed (or partially closed, in ladder order) backtest position.
type Trade struct {
	EntryEpoch  int64      `json:"entry_epoch"`
	ExitEpoch   int64      `json:"exit_epoch"`
	Side        Side       `json:"side"`
	EntryPrice  float64    `json:"entry_price"`
	ExitPrice   float64    `json:"exit_price"`
	Size        float64    `json:"size"`
	ExitReason  ExitReason `json:"exit_reason"`
	PnLAbs      float64    `json:"pnl_abs"`
	PnLR        float64    `json:"pnl_r"`
	BarsHeld    int        `json:"bars_held"`
	BalanceAfter float64   `json:"balance_after"`
}

// Stats is the aggregate statistics block produced by a backtest run.
type Stats struct {
	TotalTrades          int     `json:"total_trades"`
	Wins                 int     `json:"wins"`
	Losses               int     `json:"losses"`
	WinRate              float64 `json:"win_rate"`
	AvgR                 float64 `json:"avg_r"`
	AvgWin               float64 `json:"avg_win"`
	AvgLoss              float64 `json:"avg_loss"`
	TotalPnLPct          float64 `json:"total_pnl_pct"`
	ProfitFactor         float64 `json:"profit_factor"`
	MaxDrawdown          float64 `json:"max_drawdown"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	MaxConsecutiveWins   int     `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
	FinalBalance         float64 `json:"final_balance"`
	Partial              bool    `json:"partial"`
}
