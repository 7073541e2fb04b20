// Package storage defines the persistence contract for the session
// coordinator. Implementations must make every mutating operation a single
// atomic write that re-checks its phase and authorization preconditions at
// commit time; callers' cached views are never trusted.
package storage

import (
	"context"
	"time"

	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/domain"
	apperrors "github.com/Gaeto95/tavernoftaleslive-sub000/internal/platform/errors"
)

// ErrNotFound indicates a requested persistence record is missing.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ErrNotHost indicates a phase-driving operation was attempted by a caller
// who is not the session host. It is distinct from precondition failures so
// clients can explain why the call was rejected.
var ErrNotHost = apperrors.New(apperrors.CodeNotHost, "caller is not the session host")

// ErrWrongPhase indicates the session's turn phase disallows the operation.
var ErrWrongPhase = apperrors.New(apperrors.CodeTurnWrongPhase, "turn phase disallows operation")

// ErrStaleTurn indicates a submission referenced a turn number that is no
// longer the session's current turn.
var ErrStaleTurn = apperrors.New(apperrors.CodeTurnStaleNumber, "turn number is no longer current")

// ErrSessionFull indicates joining would exceed the session player cap.
var ErrSessionFull = apperrors.New(apperrors.CodeSessionFull, "session is full")

// ErrSessionInactive indicates the session has been marked inactive.
var ErrSessionInactive = apperrors.New(apperrors.CodeSessionInactive, "session is inactive")

// ErrAlreadyJoined indicates the user already holds a membership row.
var ErrAlreadyJoined = apperrors.New(apperrors.CodeMemberAlreadyJoined, "user already joined session")

// ErrMemberNotFound indicates no membership row exists for the user.
var ErrMemberNotFound = apperrors.New(apperrors.CodeMemberNotFound, "membership not found")

// ErrObserversNotAllowed indicates the session settings refuse observers.
var ErrObserversNotAllowed = apperrors.New(apperrors.CodeMemberInvalidRole, "session does not allow observers")

// ErrNotAPlayer indicates a player-only operation was attempted by a
// non-player member (an observer, or the host for ready toggles).
var ErrNotAPlayer = apperrors.New(apperrors.CodeMemberObserverAction, "operation requires a player member")

// Snapshot is a consistent read of one session's coordination state: the
// session row, full membership, the current turn's ledger, and the derived
// turn state recomputed from those rows.
type Snapshot struct {
	Session domain.Session
	Members []domain.Member
	Actions []domain.TurnAction
	Derived domain.DerivedTurnState
}

// SessionStore persists session rows and their phase transitions.
//
// Phase-driving operations are conditional writes keyed on the expected
// phase and the host identity. Losing a race surfaces ErrWrongPhase; a
// non-host caller surfaces ErrNotHost; neither mutates state.
type SessionStore interface {
	CreateSession(ctx context.Context, sess domain.Session) error
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	ListActiveSessions(ctx context.Context) ([]domain.Session, error)

	// StartGame moves an idle session to turn 1 in the waiting phase.
	StartGame(ctx context.Context, sessionID, hostUserID string, at time.Time) error
	// StartTurnCollection moves waiting to collecting and records the deadline.
	StartTurnCollection(ctx context.Context, sessionID, hostUserID string, deadline *time.Time, at time.Time) error
	// BeginProcessing moves collecting to processing. Exactly one of two
	// racing calls succeeds; the loser observes ErrWrongPhase.
	BeginProcessing(ctx context.Context, sessionID, hostUserID string, at time.Time) error
	// CompleteProcessing moves processing to completed once the host has
	// posted the turn's resolution. AdvanceTurn accepts either phase.
	CompleteProcessing(ctx context.Context, sessionID, hostUserID string, at time.Time) error
	// AdvanceTurn atomically marks the current turn's ledger processed,
	// resets player ready flags, increments the turn, and returns the
	// session to waiting with no deadline. Returns the new turn number.
	AdvanceTurn(ctx context.Context, sessionID, hostUserID string, at time.Time) (int, error)
	// ForceResetPhase returns any phase to waiting without changing the
	// turn number. It is the host's escape valve for stuck processing.
	ForceResetPhase(ctx context.Context, sessionID, hostUserID string, at time.Time) error
}

// MemberStore persists membership rows.
//
// Join and leave maintain the session's current_players counter in the same
// transaction so it always equals the live count of player-role rows.
type MemberStore interface {
	AddMember(ctx context.Context, member domain.Member) error
	GetMember(ctx context.Context, sessionID, userID string) (domain.Member, error)
	ListMembers(ctx context.Context, sessionID string) ([]domain.Member, error)
	// RemoveMember deletes the membership row. When the departing member
	// hosted the session and players remain, the longest-standing player is
	// promoted to host in the same transaction.
	RemoveMember(ctx context.Context, sessionID, userID string, at time.Time) error
	SetReady(ctx context.Context, sessionID, userID string, ready bool, at time.Time) error
	SwitchCharacter(ctx context.Context, sessionID, userID, characterID string, at time.Time) error
}

// ActionStore persists the per-turn action ledger.
type ActionStore interface {
	// SubmitAction upserts the ledger row for (session, turn, user) in a
	// single conditional write: the row lands only if the session is still
	// collecting and the turn number is still current.
	SubmitAction(ctx context.Context, action domain.TurnAction) error
	ListTurnActions(ctx context.Context, sessionID string, turnNumber int) ([]domain.TurnAction, error)
	CountTurnActions(ctx context.Context, sessionID string, turnNumber int) (int, error)
}

// CleanupStore supports the periodic maintenance sweeps.
type CleanupStore interface {
	// MarkInactiveSessions deactivates sessions with no activity since cutoff.
	MarkInactiveSessions(ctx context.Context, cutoff time.Time) (int64, error)
	// RemoveOrphanedSessions deactivates sessions with zero player members.
	RemoveOrphanedSessions(ctx context.Context) (int64, error)
	// RemoveUserFromAllSessions removes a user's memberships everywhere,
	// applying the same host-handoff and player-count rules as RemoveMember.
	RemoveUserFromAllSessions(ctx context.Context, userID string, at time.Time) (int64, error)
	// ListDueAutoAdvance returns collecting sessions whose deadline elapsed
	// and whose settings opt into automatic turn processing.
	ListDueAutoAdvance(ctx context.Context, now time.Time) ([]domain.Session, error)
}

// SnapshotStore reads a session's full coordination state in one call.
type SnapshotStore interface {
	Snapshot(ctx context.Context, sessionID string) (Snapshot, error)
}

// Store is the composite persistence interface the coordinator service uses.
type Store interface {
	SessionStore
	MemberStore
	ActionStore
	CleanupStore
	SnapshotStore
}
