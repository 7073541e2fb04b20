package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrEmptyActionSessionID indicates a missing session id.
	ErrEmptyActionSessionID = errors.New("action session id is required")
	// ErrEmptyActionUserID indicates a missing user id.
	ErrEmptyActionUserID = errors.New("action user id is required")
	// ErrEmptyActionText indicates a blank action submission.
	ErrEmptyActionText = errors.New("action text is required")
	// ErrInvalidActionTurn indicates a turn number before the first turn.
	ErrInvalidActionTurn = errors.New("action turn number must be at least 1")
)

// TurnAction is one player's submitted action for one turn of a session.
// At most one action exists per (session, turn, user); resubmission replaces it.
type TurnAction struct {
	SessionID   string
	TurnNumber  int
	UserID      string
	CharacterID string // empty when submitted without a bound character
	ActionText  string
	Processed   bool
	ProcessedAt *time.Time // nil until the turn is resolved
	SubmittedAt time.Time
}

// NewTurnActionInput describes an action submission.
type NewTurnActionInput struct {
	SessionID   string
	TurnNumber  int
	UserID      string
	CharacterID string
	ActionText  string
}

// NewTurnAction validates and builds a ledger entry for a submission.
func NewTurnAction(input NewTurnActionInput, now func() time.Time) (TurnAction, error) {
	if now == nil {
		now = time.Now
	}

	input.SessionID = strings.TrimSpace(input.SessionID)
	if input.SessionID == "" {
		return TurnAction{}, ErrEmptyActionSessionID
	}
	input.UserID = strings.TrimSpace(input.UserID)
	if input.UserID == "" {
		return TurnAction{}, ErrEmptyActionUserID
	}
	input.ActionText = strings.TrimSpace(input.ActionText)
	if input.ActionText == "" {
		return TurnAction{}, ErrEmptyActionText
	}
	if input.TurnNumber < 1 {
		return TurnAction{}, ErrInvalidActionTurn
	}

	return TurnAction{
		SessionID:   input.SessionID,
		TurnNumber:  input.TurnNumber,
		UserID:      input.UserID,
		CharacterID: strings.TrimSpace(input.CharacterID),
		ActionText:  input.ActionText,
		Processed:   false,
		ProcessedAt: nil,
		SubmittedAt: now().UTC(),
	}, nil
}
