package model

// Tier is the confluence-driven execution classification.
type Tier string

const (
	TierA    Tier = "A"
	TierB    Tier = "B"
	TierSkip Tier = "SKIP"
)

// ContextScores are the higher-timeframe confluence sub-scores, 0-100 each.
type ContextScores struct {
	EMAAlignment        float64 `json:"ema_alignment"`
	OscillatorAgreement float64 `json:"oscillator_agreement"`
	MacroGate           float64 `json:"macro_gate"`
}

// MicroScores are the lower-timeframe/tape confluence sub-scores, 0-100 each.
type MicroScores struct {
	Trigger5m    float64 `json:"trigger_5m"`
	Impulse1m    float64 `json:"impulse_1m"`
	TapeMicro    float64 `json:"tape_micro"`
	VetoHygiene  float64 `json:"veto_hygiene"`
}

// FinalScore is the weighted synthesis of the context and micro groups.
type FinalScore struct {
	FinalScore float64 `json:"final_score"`
	Tier       Tier    `json:"tier"`
}

// MTFConfluence is the full scoring record produced once per CONFIRMING tick.
type MTFConfluence struct {
	Context struct {
		Total  float64       `json:"total"`
		Scores ContextScores `json:"scores"`
	} `json:"context"`
	Micro struct {
		Total  float64     `json:"total"`
		Scores MicroScores `json:"scores"`
	} `json:"micro"`
	Final FinalScore `json:"final"`
}

// TierFor classifies a final score per the fixed A/B/SKIP thresholds.
func TierFor(finalScore float64) Tier {
	switch {
	case finalScore >= 80:
		return TierA
	case finalScore >= 60:
		return TierB
	default:
		return TierSkip
	}
}

// MTFStateName enumerates the per-instrument state machine states.
type MTFStateName string

const (
	StateIdle        MTFStateName = "IDLE"
	StateCandidate   MTFStateName = "CANDIDATE"
	StateConfirming  MTFStateName = "CONFIRMING"
	StateExecutable  MTFStateName = "EXECUTABLE"
	StateRejected    MTFStateName = "REJECTED"
	StateExpired     MTFStateName = "EXPIRED"
)

// MTFStats accumulates lifetime counters surfaced with MTFState.
type MTFStats struct {
	CandidatesDetected int `json:"candidates_detected"`
	CandidatesExpired  int `json:"candidates_expired"`
	MicroConfirms      int `json:"micro_confirms"`
	MicroRejects       int `json:"micro_rejects"`
	Executions         int `json:"executions"`
	Vetoes             int `json:"vetoes"`
}

// MTFState is the observable state of the per-instrument FSM.
type MTFState struct {
	State        MTFStateName `json:"state"`
	CandidateRef *Candidate   `json:"candidate_ref,omitempty"`
	EnteredAt    int64        `json:"entered_at"`
	Stats        MTFStats     `json:"stats"`
}
