// Package detector implements the two-stage SignalDetector (spec §4.4):
// Stage 1 screens closed bars for a qualifying local extremum, Stage 2
// watches each open Candidate for a breakout-and-volume confirmation within
// a bounded window. State is carried in plain structs and advanced by a
// single Process call per newly closed bar, in the style of the teacher's
// stage-gated detectors under internal/domain/gates.
package detector

import (
	"fmt"
	"sort"

	"github.com/sawpanic/sentinel/internal/model"
	"github.com/sawpanic/sentinel/internal/sentinelerr"
)

// extremaWindow must match indicators.extremaWindow: localExtrema only
// decides index i once i+window future bars have closed, so Stage 1 must
// not advance its cursor past indices that aren't decidable yet.
const extremaWindow = 12

// Thresholds carries the subset of config.Config the detector needs,
// decoupled from the config package to keep this package import-light.
type Thresholds struct {
	ATRMin          float64
	VolZMin         float64
	BBWMin          float64
	ConfirmWindow   int
	BreakoutATRMult float64
	VolMult         float64
	TP1R            float64
	TP2R            float64
	TP3R            float64
}

// Detector holds the Stage 1 scan cursor and every open (unconfirmed,
// unexpired) Candidate, sorted by ascending extremum index.
type Detector struct {
	tf   model.Timeframe
	th   Thresholds
	next int
	open []model.Candidate
}

// New creates a Detector for timeframe tf using th as its gate thresholds.
func New(tf model.Timeframe, th Thresholds) *Detector {
	return &Detector{tf: tf, th: th}
}

// Process scans bars/snaps (aligned, oldest-first, the full retained
// history) for newly decidable Stage 1 candidates and advances Stage 2 on
// every currently open candidate against the latest bar. Returns any
// signals confirmed and any candidates expired during this call, both in
// ascending extremum_index order.
func (d *Detector) Process(bars []model.Bar, snaps []model.IndicatorSnapshot) (signals []model.Signal, expired []model.Candidate, err error) {
	n := len(bars)
	need := d.th.ConfirmWindow
	if need < 50 {
		need = 50
	}
	need += extremaWindow
	if n < need {
		return nil, nil, sentinelerr.InsufficientHistory(n, need)
	}

	d.scanStage1(bars, snaps)
	signals, expired = d.advanceStage2(bars, snaps, n-1)
	return signals, expired, nil
}

func (d *Detector) scanStage1(bars []model.Bar, snaps []model.IndicatorSnapshot) {
	// localExtrema only decides indices < n-extremaWindow; stop there and
	// leave the not-yet-decidable tail for a later call, once more bars
	// have closed and those indices become decidable.
	limit := len(bars) - extremaWindow
	for ; d.next < limit; d.next++ {
		i := d.next
		snap := snaps[i]
		if !snap.Available {
			// Warm-up indices never become available (availability depends
			// only on the index); skip past them.
			continue
		}
		if !snap.IsLocalHigh && !snap.IsLocalLow {
			continue
		}
		price := bars[i].Close
		if price == 0 {
			continue
		}
		if snap.ATR14/price < d.th.ATRMin || snap.VolZ50 < d.th.VolZMin || snap.BBWidth < d.th.BBWMin {
			continue
		}
		deadline := bars[i].EpochStart + int64(d.th.ConfirmWindow)*d.tf.Seconds()
		if snap.IsLocalLow {
			d.open = append(d.open, model.Candidate{
				ExtremumIndex: i, Side: model.SideLong, ExtremumPrice: bars[i].Low,
				DetectionEpoch: bars[i].EpochStart, WindowDeadlineEpoch: deadline,
			})
		} else {
			d.open = append(d.open, model.Candidate{
				ExtremumIndex: i, Side: model.SideShort, ExtremumPrice: bars[i].High,
				DetectionEpoch: bars[i].EpochStart, WindowDeadlineEpoch: deadline,
			})
		}
	}
}

func (d *Detector) advanceStage2(bars []model.Bar, snaps []model.IndicatorSnapshot, j int) (signals []model.Signal, expired []model.Candidate) {
	if len(d.open) == 0 {
		return nil, nil
	}
	sort.SliceStable(d.open, func(a, b int) bool { return d.open[a].ExtremumIndex < d.open[b].ExtremumIndex })

	remaining := d.open[:0]
	for _, c := range d.open {
		if j <= c.ExtremumIndex {
			remaining = append(remaining, c)
			continue
		}
		if bars[j].EpochStart > c.WindowDeadlineEpoch {
			expired = append(expired, c)
			continue
		}
		if sig, ok := d.tryConfirm(bars, snaps, c, j); ok {
			signals = append(signals, sig)
			continue
		}
		remaining = append(remaining, c)
	}
	d.open = remaining
	return signals, expired
}

func (d *Detector) tryConfirm(bars []model.Bar, snaps []model.IndicatorSnapshot, c model.Candidate, j int) (model.Signal, bool) {
	atr5 := snaps[j].ATR5
	medVol := medianVolume(bars, j, 20)
	volOK := bars[j].Volume >= d.th.VolMult*medVol

	var confirmed bool
	var stopLoss float64
	switch c.Side {
	case model.SideLong:
		confirmed = volOK && bars[j].Close >= c.ExtremumPrice+d.th.BreakoutATRMult*atr5
		stopLoss = c.ExtremumPrice - atr5
	case model.SideShort:
		confirmed = volOK && bars[j].Close <= c.ExtremumPrice-d.th.BreakoutATRMult*atr5
		stopLoss = c.ExtremumPrice + atr5
	}
	if !confirmed {
		return model.Signal{}, false
	}

	entry := bars[j].Close
	risk := entry - stopLoss
	if risk < 0 {
		risk = -risk
	}
	sign := 1.0
	if c.Side == model.SideShort {
		sign = -1.0
	}
	riskPct := 0.0
	if entry != 0 {
		riskPct = risk / entry * 100
	}

	return model.Signal{
		CandidateRef: c,
		ConfirmIndex: j,
		Entry:        entry,
		StopLoss:     stopLoss,
		TP1:          entry + sign*d.th.TP1R*risk,
		TP2:          entry + sign*d.th.TP2R*risk,
		TP3:          entry + sign*d.th.TP3R*risk,
		SizeTag:      fmt.Sprintf("R:%.2f%%", riskPct),
		Attempts:     1,
		Side:         c.Side,
		TrailRule:    model.TrailATR5,
	}, true
}

func medianVolume(bars []model.Bar, j, window int) float64 {
	start := j - window + 1
	if start < 0 {
		start = 0
	}
	vols := make([]float64, 0, j-start+1)
	for k := start; k <= j; k++ {
		vols = append(vols, bars[k].Volume)
	}
	sort.Float64s(vols)
	m := len(vols)
	if m == 0 {
		return 0
	}
	if m%2 == 1 {
		return vols[m/2]
	}
	return (vols[m/2-1] + vols[m/2]) / 2
}

// Open returns the currently open (unconfirmed, unexpired) candidates,
// ascending by extremum index.
func (d *Detector) Open() []model.Candidate {
	out := make([]model.Candidate, len(d.open))
	copy(out, d.open)
	return out
}
