// Package errors provides structured error handling with machine-readable codes.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Session errors
	CodeSessionNameEmpty        Code = "SESSION_NAME_EMPTY"
	CodeSessionNotFound         Code = "SESSION_NOT_FOUND"
	CodeSessionFull             Code = "SESSION_FULL"
	CodeSessionInactive         Code = "SESSION_INACTIVE"
	CodeSessionInvalidMaxPlayer Code = "SESSION_INVALID_MAX_PLAYERS"
	CodeSessionBadPassword      Code = "SESSION_BAD_PASSWORD"
	CodeSessionAlreadyStarted   Code = "SESSION_ALREADY_STARTED"
	CodeSessionNotStarted       Code = "SESSION_NOT_STARTED"

	// Member errors
	CodeMemberNotFound       Code = "MEMBER_NOT_FOUND"
	CodeMemberAlreadyJoined  Code = "MEMBER_ALREADY_JOINED"
	CodeMemberInvalidRole    Code = "MEMBER_INVALID_ROLE"
	CodeMemberObserverAction Code = "MEMBER_OBSERVER_ACTION"

	// Turn errors
	CodeTurnWrongPhase     Code = "TURN_WRONG_PHASE"
	CodeTurnStaleNumber    Code = "TURN_STALE_NUMBER"
	CodeTurnActionEmpty    Code = "TURN_ACTION_EMPTY"
	CodeTurnNotEnoughReady Code = "TURN_NOT_ENOUGH_READY"

	// Authorization errors
	CodeNotHost Code = "NOT_HOST"

	// Join grant errors
	CodeJoinGrantInvalid  Code = "JOIN_GRANT_INVALID"
	CodeJoinGrantExpired  Code = "JOIN_GRANT_EXPIRED"
	CodeJoinGrantMismatch Code = "JOIN_GRANT_MISMATCH"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
	CodeConflict Code = "CONFLICT"
)
