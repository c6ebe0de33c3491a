package entities

import "fmt"

// TransferStage is a state of the bridge transfer state machine
type TransferStage string

const (
	StageIdle             TransferStage = "idle"
	StageLocking          TransferStage = "locking"
	StageLocked           TransferStage = "locked"
	StageProofSubmitted   TransferStage = "proof_submitted"
	StageMonitorTriggered TransferStage = "monitor_triggered"
	StagePolling          TransferStage = "polling"
	StageReleased         TransferStage = "released"
	StageFailed           TransferStage = "failed"
)

// TotalSteps is the number of user visible progress steps of a transfer
const TotalSteps = 5

// ValidTransferTransitions defines allowed stage transitions. Every stage
// may also fail; Polling loops on itself until the release is observed.
var ValidTransferTransitions = map[TransferStage][]TransferStage{
	StageIdle:             {StageLocking},
	StageLocking:          {StageLocked, StageFailed},
	StageLocked:           {StageProofSubmitted, StageFailed},
	StageProofSubmitted:   {StageMonitorTriggered, StageFailed},
	StageMonitorTriggered: {StagePolling, StageFailed},
	StagePolling:          {StagePolling, StageReleased, StageFailed},
	StageReleased:         {}, // Terminal state
	StageFailed:           {}, // Terminal state
}

// IsValid checks if the stage is known
func (s TransferStage) IsValid() bool {
	_, ok := ValidTransferTransitions[s]
	return ok
}

// CanTransitionTo checks if transition to the next stage is allowed
func (s TransferStage) CanTransitionTo(next TransferStage) bool {
	for _, allowed := range ValidTransferTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal returns true for Released and Failed
func (s TransferStage) IsTerminal() bool {
	return s == StageReleased || s == StageFailed
}

// IsHeld returns true for stages a transfer can rest in between runs
func (s TransferStage) IsHeld() bool {
	return s != StageIdle && !s.IsTerminal()
}

// Step maps a stage to its progress step, 0 before the transfer starts and
// TotalSteps once released.
func (s TransferStage) Step() int {
	switch s {
	case StageLocking:
		return 1
	case StageLocked:
		return 2
	case StageProofSubmitted:
		return 3
	case StageMonitorTriggered, StagePolling:
		return 4
	case StageReleased:
		return TotalSteps
	default:
		return 0
	}
}

// ValidateTransition returns an error if moving to next is not allowed
func (s TransferStage) ValidateTransition(next TransferStage) error {
	if !next.IsValid() {
		return fmt.Errorf("invalid transfer stage: %s", next)
	}
	if !s.CanTransitionTo(next) {
		return fmt.Errorf("invalid stage transition from %s to %s", s, next)
	}
	return nil
}
