package mtf

import (
	"sync"

	"github.com/sawpanic/sentinel/internal/model"
)

// StateMachine is the per-instrument FSM described in spec §4.7. It is
// driven by NewCandidate, Confirm, EvaluateConfluence and Tick calls; all
// are safe for concurrent use.
type StateMachine struct {
	mu            sync.Mutex
	state         model.MTFState
	confirmTimeout int64 // seconds after entering CONFIRMING
}

// New creates a StateMachine starting in IDLE.
func New(confirmTimeoutSeconds int64) *StateMachine {
	return &StateMachine{state: model.MTFState{State: model.StateIdle}, confirmTimeout: confirmTimeoutSeconds}
}

// Snapshot returns a copy of the current observable state.
func (sm *StateMachine) Snapshot() model.MTFState {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.state
}

// NewCandidate transitions IDLE -> CANDIDATE. No-op from any other state.
func (sm *StateMachine) NewCandidate(c model.Candidate, epoch int64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.state.State != model.StateIdle {
		return
	}
	cc := c
	sm.state = model.MTFState{State: model.StateCandidate, CandidateRef: &cc, EnteredAt: epoch, Stats: sm.state.Stats}
	sm.state.Stats.CandidatesDetected++
}

// Confirm transitions CANDIDATE -> CONFIRMING on a Stage 2 confirmation.
// No-op from any other state.
func (sm *StateMachine) Confirm(epoch int64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.state.State != model.StateCandidate {
		return
	}
	sm.state.State = model.StateConfirming
	sm.state.EnteredAt = epoch
	sm.state.Stats.MicroConfirms++
}

// EvaluateConfluence decides EXECUTABLE/REJECTED from CONFIRMING once a
// fresh MTFConfluence reading and VetoSet are available. No-op from any
// other state.
func (sm *StateMachine) EvaluateConfluence(confluence model.MTFConfluence, vetoes model.VetoSet, contextMin, microMin float64) model.MTFStateName {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.state.State != model.StateConfirming {
		return sm.state.State
	}
	switch {
	case !vetoes.Empty():
		sm.state.State = model.StateRejected
		sm.state.Stats.Vetoes++
	case confluence.Context.Total >= contextMin && confluence.Micro.Total >= microMin:
		sm.state.State = model.StateExecutable
		sm.state.Stats.Executions++
	default:
		sm.state.State = model.StateRejected
		sm.state.Stats.MicroRejects++
	}
	return sm.state.State
}

// Tick drives timeout expiry (CANDIDATE past window_deadline_epoch,
// CONFIRMING past confirm_timeout with no decisive EvaluateConfluence
// call) and resets terminal states back to IDLE on the next tick.
func (sm *StateMachine) Tick(epoch int64) model.MTFStateName {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	switch sm.state.State {
	case model.StateCandidate:
		if sm.state.CandidateRef != nil && epoch > sm.state.CandidateRef.WindowDeadlineEpoch {
			sm.state.State = model.StateExpired
			sm.state.Stats.CandidatesExpired++
		}
	case model.StateConfirming:
		if epoch > sm.state.EnteredAt+sm.confirmTimeout {
			sm.state.State = model.StateExpired
		}
	case model.StateExecutable, model.StateRejected, model.StateExpired:
		sm.state.State = model.StateIdle
		sm.state.CandidateRef = nil
	}
	return sm.state.State
}
