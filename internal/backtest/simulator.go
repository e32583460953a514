// Package backtest implements BacktestSimulator (spec §4.9): it replays a
// closed bar series through the same SignalDetector and IndicatorEngine the
// live path uses (so no look-ahead is possible — at bar j only bars[0..j]
// are visible), opens one simulated Trade at a time, and advances it
// bar-by-bar through a TP-ladder/trailing-stop exit model grounded on the
// teacher's march_aug/smoke90 backtest harness conventions.
//
// Simplification: at most one trade is open at a time. A signal produced
// while a trade is already open is dropped rather than opening a second
// concurrent position — the spec doesn't define capital allocation across
// overlapping positions, and a single-position book is the common case for
// a swing-trade backtest of one instrument.
package backtest

import (
	"math"

	"github.com/sawpanic/sentinel/internal/detector"
	"github.com/sawpanic/sentinel/internal/indicators"
	"github.com/sawpanic/sentinel/internal/model"
	"github.com/sawpanic/sentinel/internal/sentinelerr"
)

// Config is the subset of engine configuration the simulator needs.
type Config struct {
	InitialCapital float64
	RiskPerTrade   float64
	TP1R, TP2R, TP3R float64
	TP1Scale, TP2Scale, TP3Scale float64
	TrailAfterTP   bool
	BarTimeout     int
	FeeBufferBps   float64
	BarsPerYear    int
}

// Validate enforces the invariant tp1_scale+tp2_scale+tp3_scale<=1 and that
// risk_per_trade is in (0,1).
func (c Config) Validate() error {
	if c.RiskPerTrade <= 0 || c.RiskPerTrade >= 1 {
		return sentinelerr.Config("risk_per_trade must be in (0,1)")
	}
	if c.TP1Scale+c.TP2Scale+c.TP3Scale > 1.0000001 {
		return sentinelerr.Config("tp1_scale+tp2_scale+tp3_scale must be <= 1")
	}
	return nil
}

type openTrade struct {
	side                model.Side
	entryEpoch          int64
	entryIndex          int
	entryPrice          float64
	initialRisk         float64
	remainingSize       float64
	initialSize         float64
	capitalAtEntry      float64
	stop                float64
	tp1, tp2, tp3       float64
	stage               int // 0 none, 1 tp1 filled, 2 tp2 filled
	trailing            bool
	barsHeld            int
	realizedPnL         float64
}

// Run replays bars through detector thresholds th on timeframe tf and
// produces the closed-trade ledger plus aggregate Stats.
func Run(bars []model.Bar, tf model.Timeframe, th detector.Thresholds, cfg Config) ([]model.Trade, model.Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, model.Stats{}, err
	}

	need := th.ConfirmWindow
	if need < 50 {
		need = 50
	}
	need += 12
	if len(bars) < need {
		return nil, model.Stats{}, sentinelerr.InsufficientHistory(len(bars), need)
	}

	det := detector.New(tf, th)
	eng := indicators.New()
	capital := cfg.InitialCapital

	var trades []model.Trade
	var cur *openTrade

	for j := 0; j < len(bars); j++ {
		snap := eng.Update(bars[j])
		prefix := bars[: j+1]
		snaps := allSnapsSoFar(eng, j+1)

		if cur != nil {
			trade, closed := advance(cur, bars[j], snap, cfg)
			if closed {
				capital += trade.PnLAbs
				trade.BalanceAfter = capital
				trades = append(trades, trade)
				cur = nil
			}
		}

		signals, _, err := det.Process(prefix, snaps)
		if err != nil {
			continue // insufficient history this early; detector will retry as more bars close
		}
		if cur == nil {
			for _, sig := range signals {
				cur = openFromSignal(sig, j, bars[j].EpochStart, capital, cfg)
				break // at most one open trade at a time
			}
		}
	}

	// Force-close any still-open trade at the series end (timeout).
	if cur != nil {
		last := bars[len(bars)-1]
		trade := closeRemainder(cur, last.Close, last.EpochStart, model.ExitTimeout)
		capital += trade.PnLAbs
		trade.BalanceAfter = capital
		trades = append(trades, trade)
	}

	stats := computeStats(trades, cfg, capital)
	return trades, stats, nil
}

func allSnapsSoFar(eng *indicators.Engine, n int) []model.IndicatorSnapshot {
	out := make([]model.IndicatorSnapshot, n)
	for i := 0; i < n; i++ {
		s, _ := eng.Snapshot(i)
		out[i] = s
	}
	return out
}

func openFromSignal(sig model.Signal, index int, epoch int64, capital float64, cfg Config) *openTrade {
	risk := sig.Risk()
	size := 0.0
	if risk != 0 {
		size = (capital * cfg.RiskPerTrade) / risk
	}
	return &openTrade{
		side: sig.Side, entryEpoch: epoch, entryIndex: index, entryPrice: sig.Entry,
		initialRisk: risk, remainingSize: size, initialSize: size, capitalAtEntry: capital,
		stop: sig.StopLoss, tp1: sig.TP1, tp2: sig.TP2, tp3: sig.TP3,
	}
}

// advance evaluates one bar against an open trade, filling TP ladder legs
// and the trailing/stop-loss exit with SL-before-TP and TP1-before-TP2
// intrabar ordering.
func advance(t *openTrade, bar model.Bar, snap model.IndicatorSnapshot, cfg Config) (model.Trade, bool) {
	t.barsHeld++
	long := t.side == model.SideLong

	stopHit := (long && bar.Low <= t.stop) || (!long && bar.High >= t.stop)
	if stopHit {
		reason := model.ExitSL
		if t.trailing {
			reason = model.ExitTrail
		}
		return closeRemainder(t, t.stop, bar.EpochStart, reason), true
	}

	if t.stage < 1 && tpHit(bar, t.tp1, long) {
		fill(t, t.tp1, cfg.TP1Scale)
		t.stage = 1
		feeBuf := t.entryPrice * cfg.FeeBufferBps / 10000
		if long {
			t.stop = t.entryPrice + feeBuf
		} else {
			t.stop = t.entryPrice - feeBuf
		}
		if cfg.TrailAfterTP {
			t.trailing = true
		}
	}
	if t.stage == 1 && tpHit(bar, t.tp2, long) {
		fill(t, t.tp2, cfg.TP2Scale)
		t.stage = 2
	}
	if t.stage == 2 && tpHit(bar, t.tp3, long) {
		return closeRemainder(t, t.tp3, bar.EpochStart, model.ExitTP3), true
	}

	if t.trailing && snap.Available {
		if long {
			candidate := bar.Close - snap.ATR5
			if candidate > t.stop {
				t.stop = candidate
			}
		} else {
			candidate := bar.Close + snap.ATR5
			if candidate < t.stop {
				t.stop = candidate
			}
		}
	}

	if t.barsHeld >= cfg.BarTimeout {
		return closeRemainder(t, bar.Close, bar.EpochStart, model.ExitTimeout), true
	}
	return model.Trade{}, false
}

func tpHit(bar model.Bar, level float64, long bool) bool {
	if long {
		return bar.High >= level
	}
	return bar.Low <= level
}

func fill(t *openTrade, price, scale float64) {
	qty := t.initialSize * scale
	if qty > t.remainingSize {
		qty = t.remainingSize
	}
	sign := 1.0
	if t.side == model.SideShort {
		sign = -1.0
	}
	t.realizedPnL += (price - t.entryPrice) * qty * sign
	t.remainingSize -= qty
}

func closeRemainder(t *openTrade, price float64, epoch int64, reason model.ExitReason) model.Trade {
	sign := 1.0
	if t.side == model.SideShort {
		sign = -1.0
	}
	t.realizedPnL += (price - t.entryPrice) * t.remainingSize * sign
	t.remainingSize = 0

	riskDollar := t.initialSize * t.initialRisk
	pnlR := 0.0
	if riskDollar != 0 {
		pnlR = t.realizedPnL / riskDollar
	}

	return model.Trade{
		EntryEpoch: t.entryEpoch, ExitEpoch: epoch, Side: t.side,
		EntryPrice: t.entryPrice, ExitPrice: price, Size: t.initialSize,
		ExitReason: reason, PnLAbs: t.realizedPnL, PnLR: pnlR, BarsHeld: t.barsHeld,
	}
}

func computeStats(trades []model.Trade, cfg Config, finalBalance float64) model.Stats {
	var s model.Stats
	s.TotalTrades = len(trades)
	if len(trades) == 0 {
		s.FinalBalance = cfg.InitialCapital
		return s
	}

	var sumWin, sumLoss, sumR, sumPnLPct, sumBarsHeld float64
	var curWinStreak, curLossStreak int
	balance := cfg.InitialCapital
	peak := balance
	maxDD := 0.0
	returns := make([]float64, 0, len(trades))

	for _, tr := range trades {
		sumR += tr.PnLR
		sumBarsHeld += float64(tr.BarsHeld)
		pnlPct := 0.0
		if balance != 0 {
			pnlPct = tr.PnLAbs / balance * 100
		}
		sumPnLPct += pnlPct
		returns = append(returns, pnlPct)

		if tr.PnLAbs > 0 {
			s.Wins++
			sumWin += tr.PnLAbs
			curWinStreak++
			curLossStreak = 0
		} else if tr.PnLAbs < 0 {
			s.Losses++
			sumLoss += -tr.PnLAbs
			curLossStreak++
			curWinStreak = 0
		}
		if curWinStreak > s.MaxConsecutiveWins {
			s.MaxConsecutiveWins = curWinStreak
		}
		if curLossStreak > s.MaxConsecutiveLosses {
			s.MaxConsecutiveLosses = curLossStreak
		}

		balance += tr.PnLAbs
		if balance > peak {
			peak = balance
		}
		if peak != 0 {
			dd := (peak - balance) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	n := float64(len(trades))
	s.WinRate = float64(s.Wins) / n * 100
	s.AvgR = sumR / n
	if s.Wins > 0 {
		s.AvgWin = sumWin / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = sumLoss / float64(s.Losses)
	}
	s.TotalPnLPct = sumPnLPct
	if sumLoss > 0 {
		s.ProfitFactor = sumWin / sumLoss
	}
	s.MaxDrawdown = maxDD
	s.FinalBalance = finalBalance

	avgBarsHeld := sumBarsHeld / n
	if avgBarsHeld > 0 && cfg.BarsPerYear > 0 {
		mean, sd := meanStdDev(returns)
		if sd != 0 {
			s.SharpeRatio = mean / sd * math.Sqrt(float64(cfg.BarsPerYear)/avgBarsHeld)
		}
	}
	return s
}

func meanStdDev(vals []float64) (mean, stddev float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	mean = sum / float64(len(vals))
	var sq float64
	for _, v := range vals {
		d := v - mean
		sq += d * d
	}
	stddev = math.Sqrt(sq / float64(len(vals)))
	return
}
