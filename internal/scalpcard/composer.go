// Package scalpcard implements ScalpCardComposer (spec §4.8): a pure,
// deterministic projection from a confirmed Signal plus the current
// VetoSet and MicroSnapshot into an immutable trade ticket.
package scalpcard

import (
	"fmt"
	"math"

	"github.com/sawpanic/sentinel/internal/model"
)

// Compose projects signal into a ScalpCard. spreadMaxBps gates
// checks.spread_ok; orderPath and regime are carried from configuration
// and the current regime classification respectively.
func Compose(symbol string, signal model.Signal, vetoes model.VetoSet, mk model.MicroSnapshot,
	regime, orderPath string, spreadMaxBps float64, breakoutATRMult, volMult float64) model.ScalpCard {

	play := model.PlayLong
	if signal.Side == model.SideShort {
		play = model.PlayShort
	}

	spreadOK := mk.Available && mk.SpreadBPS < spreadMaxBps

	confirm := fmt.Sprintf("close%s%.1f·ATR5 & vol≥%.1f·med20",
		sideComparator(signal.Side), breakoutATRMult, volMult)

	return model.ScalpCard{
		Symbol:    symbol,
		Play:      play,
		Regime:    regime,
		SizeTag:   signal.SizeTag,
		Entry:     round4(signal.Entry),
		SL:        round4(signal.StopLoss),
		TP1:       round4(signal.TP1),
		TP2:       round4(signal.TP2),
		TP3:       round4(signal.TP3),
		TrailRule: signal.TrailRule,
		OrderPath: orderPath,
		Confirm:   confirm,
		Indices: model.ScalpCardIndices{
			ExtremumIdx: signal.CandidateRef.ExtremumIndex,
			ConfirmIdx:  signal.ConfirmIndex,
		},
		Checks: model.ScalpCardChecks{
			SpreadOK:  spreadOK,
			MicroVeto: copyVetoSet(vetoes),
		},
		Attempts: signal.Attempts,
	}
}

func sideComparator(side model.Side) string {
	if side == model.SideLong {
		return "≥low+"
	}
	return "≤high−"
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func copyVetoSet(v model.VetoSet) model.VetoSet {
	out := make(model.VetoSet, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}
