package model

// Candidate is a potential swing extremum passing Stage 1 of the detector.
// It lives until Stage 2 confirms it, it times out, or it is rejected.
type Candidate struct {
	ExtremumIndex      int     `json:"extremum_index"`
	Side               Side    `json:"side"`
	ExtremumPrice      float64 `json:"extremum_price"`
	DetectionEpoch     int64   `json:"detection_epoch"`
	WindowDeadlineEpoch int64  `json:"window_deadline_epoch"`
}

// TrailRule names the post-TP1 trailing-stop rule carried on a Signal.
type TrailRule string

const TrailATR5 TrailRule = "trail_atr5"

// Signal is a confirmed candidate with entry/SL/TP parameters. Immutable.
type Signal struct {
	CandidateRef Candidate `json:"candidate_ref"`
	ConfirmIndex int       `json:"confirm_index"`
	Entry        float64   `json:"entry"`
	StopLoss     float64   `json:"stop_loss"`
	TP1          float64   `json:"tp1"`
	TP2          float64   `json:"tp2"`
	TP3          float64   `json:"tp3"`
	SizeTag      string    `json:"size_tag"`
	Attempts     int       `json:"attempts"`
	Side         Side      `json:"side"`
	TrailRule    TrailRule `json:"trail_rule"`
}

// Risk returns the per-unit risk distance |entry - stop_loss|.
func (s Signal) Risk() float64 {
	if s.Entry >= s.StopLoss {
		return s.Entry - s.StopLoss
	}
	return s.StopLoss - s.Entry
}
