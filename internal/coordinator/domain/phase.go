package domain

// TurnPhase describes the coordination state of a session's current turn.
type TurnPhase int

const (
	// TurnPhaseUnspecified represents an invalid turn phase value.
	TurnPhaseUnspecified TurnPhase = iota
	// TurnPhaseIdle indicates the session has not started; no turn exists yet.
	TurnPhaseIdle
	// TurnPhaseWaiting indicates a turn exists but action collection has not begun.
	TurnPhaseWaiting
	// TurnPhaseCollecting indicates player actions are being accepted for the current turn.
	TurnPhaseCollecting
	// TurnPhaseProcessing indicates the host is resolving the collected actions.
	TurnPhaseProcessing
	// TurnPhaseCompleted indicates turn resolution finished but the turn has not advanced.
	TurnPhaseCompleted
)

// IsValid reports whether the turn phase is one of the supported values.
func (p TurnPhase) IsValid() bool {
	switch p {
	case TurnPhaseIdle, TurnPhaseWaiting, TurnPhaseCollecting, TurnPhaseProcessing, TurnPhaseCompleted:
		return true
	default:
		return false
	}
}

// String returns the storage representation of the turn phase.
func (p TurnPhase) String() string {
	switch p {
	case TurnPhaseIdle:
		return "idle"
	case TurnPhaseWaiting:
		return "waiting"
	case TurnPhaseCollecting:
		return "collecting"
	case TurnPhaseProcessing:
		return "processing"
	case TurnPhaseCompleted:
		return "completed"
	default:
		return "unspecified"
	}
}

// ParseTurnPhase maps a storage representation back to a turn phase.
// Unknown values map to TurnPhaseUnspecified.
func ParseTurnPhase(value string) TurnPhase {
	switch value {
	case "idle":
		return TurnPhaseIdle
	case "waiting":
		return TurnPhaseWaiting
	case "collecting":
		return TurnPhaseCollecting
	case "processing":
		return TurnPhaseProcessing
	case "completed":
		return TurnPhaseCompleted
	default:
		return TurnPhaseUnspecified
	}
}

// CanStartCollection reports whether the host may begin collecting actions.
func (p TurnPhase) CanStartCollection() bool {
	return p == TurnPhaseWaiting
}

// CanProcess reports whether the host may move the turn into processing.
func (p TurnPhase) CanProcess() bool {
	return p == TurnPhaseCollecting
}

// CanComplete reports whether the turn's resolution may be marked posted.
func (p TurnPhase) CanComplete() bool {
	return p == TurnPhaseProcessing
}

// CanAdvance reports whether the turn may advance to the next waiting turn.
func (p TurnPhase) CanAdvance() bool {
	return p == TurnPhaseProcessing || p == TurnPhaseCompleted
}

// AcceptsActions reports whether player action submissions are accepted.
func (p TurnPhase) AcceptsActions() bool {
	return p == TurnPhaseCollecting
}
