package scalpcard

import (
	"testing"

	"github.com/sawpanic/sentinel/internal/model"
)

func TestComposeRoundsAndCopies(t *testing.T) {
	signal := model.Signal{
		CandidateRef: model.Candidate{ExtremumIndex: 20, Side: model.SideLong},
		ConfirmIndex: 22,
		Entry:        100.90001,
		StopLoss:     99.39999,
		TP1:          102.4,
		TP2:          103.9,
		TP3:          106.15,
		SizeTag:      "R:1.49%",
		Attempts:     1,
		Side:         model.SideLong,
		TrailRule:    model.TrailATR5,
	}
	vetoes := model.VetoSet{model.VetoSpread: 12}
	mk := model.MicroSnapshot{Available: true, SpreadBPS: 3}

	card := Compose("SOLUSD", signal, vetoes, mk, "trending", "paper/sol-usd/swing", 10, 0.5, 1.5)

	if card.Entry != 100.9 {
		t.Fatalf("expected entry rounded to 4dp, got %v", card.Entry)
	}
	if card.SL != 99.4 {
		t.Fatalf("expected sl rounded to 4dp, got %v", card.SL)
	}
	if !card.Checks.SpreadOK {
		t.Fatal("expected spread_ok=true when spread_bps < spreadMaxBps")
	}
	vetoes[model.VetoDepth] = 1
	if _, ok := card.Checks.MicroVeto[model.VetoDepth]; ok {
		t.Fatal("card's veto set must be a copy, independent of the caller's map")
	}
	if card.Play != model.PlayLong {
		t.Fatalf("expected PlayLong, got %v", card.Play)
	}
	if card.Indices.ExtremumIdx != 20 || card.Indices.ConfirmIdx != 22 {
		t.Fatalf("unexpected indices: %+v", card.Indices)
	}
}
