package domain

import (
	"errors"
	"strings"
	"time"
)

// Role describes a member's part in a session.
type Role int

const (
	// RoleUnspecified represents an invalid role value.
	RoleUnspecified Role = iota
	// RoleHost is the single member authorized to drive phase transitions.
	RoleHost
	// RolePlayer participates in turns and counts toward session capacity.
	RolePlayer
	// RoleObserver watches without a character and never counts as a player.
	RoleObserver
)

var (
	// ErrEmptyMemberSessionID indicates a missing session id.
	ErrEmptyMemberSessionID = errors.New("member session id is required")
	// ErrEmptyMemberUserID indicates a missing user id.
	ErrEmptyMemberUserID = errors.New("member user id is required")
	// ErrInvalidRole indicates a missing or invalid member role.
	ErrInvalidRole = errors.New("member role is required")
	// ErrObserverCharacter indicates an observer attempted to bind a character.
	ErrObserverCharacter = errors.New("observers cannot bind a character")
)

// Member represents one user's membership in a session.
type Member struct {
	SessionID    string
	UserID       string
	Role         Role
	CharacterID  string // empty when no character is bound
	Ready        bool
	JoinedAt     time.Time
	LastActionAt time.Time
}

// IsValid reports whether the role is one of the supported values.
func (r Role) IsValid() bool {
	switch r {
	case RoleHost, RolePlayer, RoleObserver:
		return true
	default:
		return false
	}
}

// IsPlayer reports whether the role counts toward session player capacity.
// The host drives the session but does not occupy a player slot.
func (r Role) IsPlayer() bool {
	return r == RolePlayer
}

// String returns the storage representation of the role.
func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RolePlayer:
		return "player"
	case RoleObserver:
		return "observer"
	default:
		return "unspecified"
	}
}

// ParseRole maps a storage representation back to a role.
// Unknown values map to RoleUnspecified.
func ParseRole(value string) Role {
	switch value {
	case "host":
		return RoleHost
	case "player":
		return RolePlayer
	case "observer":
		return RoleObserver
	default:
		return RoleUnspecified
	}
}

// NewMemberInput describes a membership being created on join.
type NewMemberInput struct {
	SessionID   string
	UserID      string
	Role        Role
	CharacterID string
}

// NewMember validates and builds a membership record for a joining user.
func NewMember(input NewMemberInput, now func() time.Time) (Member, error) {
	if now == nil {
		now = time.Now
	}

	input.SessionID = strings.TrimSpace(input.SessionID)
	if input.SessionID == "" {
		return Member{}, ErrEmptyMemberSessionID
	}
	input.UserID = strings.TrimSpace(input.UserID)
	if input.UserID == "" {
		return Member{}, ErrEmptyMemberUserID
	}
	if !input.Role.IsValid() {
		return Member{}, ErrInvalidRole
	}
	input.CharacterID = strings.TrimSpace(input.CharacterID)
	if input.Role == RoleObserver && input.CharacterID != "" {
		return Member{}, ErrObserverCharacter
	}

	joinedAt := now().UTC()
	return Member{
		SessionID:    input.SessionID,
		UserID:       input.UserID,
		Role:         input.Role,
		CharacterID:  input.CharacterID,
		Ready:        false,
		JoinedAt:     joinedAt,
		LastActionAt: joinedAt,
	}, nil
}
