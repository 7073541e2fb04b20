package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/platform/id"
)

// Visibility describes who can discover and join a session.
type Visibility int

const (
	// VisibilityUnspecified represents an invalid visibility value.
	VisibilityUnspecified Visibility = iota
	// VisibilityPublic indicates the session is listed and joinable by anyone.
	VisibilityPublic
	// VisibilityPrivate indicates joining requires the session password or a join grant.
	VisibilityPrivate
)

const (
	// DefaultMaxPlayers is used when session creation omits a player cap.
	DefaultMaxPlayers = 4
	// MaxPlayersCap bounds the configurable player cap.
	MaxPlayersCap = 16
	// DefaultMinPlayers gates start-game when settings omit a minimum.
	DefaultMinPlayers = 2
)

var (
	// ErrEmptySessionName indicates a missing session name.
	ErrEmptySessionName = errors.New("session name is required")
	// ErrEmptyHostUserID indicates a missing host user id.
	ErrEmptyHostUserID = errors.New("host user id is required")
	// ErrInvalidMaxPlayers indicates an out-of-range player cap.
	ErrInvalidMaxPlayers = errors.New("max players must be between 1 and 16")
	// ErrPrivateNeedsPassword indicates a private session without a password.
	ErrPrivateNeedsPassword = errors.New("private sessions require a password")
)

// Settings holds per-session coordination configuration.
type Settings struct {
	// TurnTimeLimitMinutes is the default collection deadline; 0 means unlimited.
	TurnTimeLimitMinutes int
	// AutoAdvance makes deadline elapse a trigger for processing the turn.
	AutoAdvance bool
	// AllowObservers admits observer-role members.
	AllowObservers bool
	// VoiceEnabled toggles voice narration for the session.
	VoiceEnabled bool
	// MinPlayers gates start-game; defaults to DefaultMinPlayers.
	MinPlayers int
}

// Session represents one shared multiplayer game instance.
type Session struct {
	ID             string
	Name           string
	MaxPlayers     int
	CurrentPlayers int
	Visibility     Visibility
	PasswordHash   string
	Settings       Settings
	CurrentTurn    int
	TurnPhase      TurnPhase
	TurnDeadline   *time.Time // nil when no collection deadline is set
	HostUserID     string
	Active         bool
	LastActivity   time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreateSessionInput describes the metadata needed to create a session.
type CreateSessionInput struct {
	Name       string
	MaxPlayers int
	Visibility Visibility
	// Password is the plaintext join password for private sessions. It is
	// hashed during creation and never stored.
	Password   string
	Settings   Settings
	HostUserID string
}

// CreateSession creates a new session with a generated ID and timestamps.
// The session starts idle with no current turn; StartGame moves it to turn 1.
func CreateSession(input CreateSessionInput, now func() time.Time, idGenerator func() (string, error)) (Session, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateSessionInput(input)
	if err != nil {
		return Session{}, err
	}

	sessionID, err := idGenerator()
	if err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}

	var passwordHash string
	if normalized.Visibility == VisibilityPrivate {
		passwordHash, err = HashPassword(normalized.Password)
		if err != nil {
			return Session{}, fmt.Errorf("hash session password: %w", err)
		}
	}

	createdAt := now().UTC()
	return Session{
		ID:             sessionID,
		Name:           normalized.Name,
		MaxPlayers:     normalized.MaxPlayers,
		CurrentPlayers: 0,
		Visibility:     normalized.Visibility,
		PasswordHash:   passwordHash,
		Settings:       normalized.Settings,
		CurrentTurn:    0,
		TurnPhase:      TurnPhaseIdle,
		TurnDeadline:   nil,
		HostUserID:     normalized.HostUserID,
		Active:         true,
		LastActivity:   createdAt,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}, nil
}

// NormalizeCreateSessionInput trims and validates session input metadata.
func NormalizeCreateSessionInput(input CreateSessionInput) (CreateSessionInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return CreateSessionInput{}, ErrEmptySessionName
	}
	input.HostUserID = strings.TrimSpace(input.HostUserID)
	if input.HostUserID == "" {
		return CreateSessionInput{}, ErrEmptyHostUserID
	}
	if input.MaxPlayers == 0 {
		input.MaxPlayers = DefaultMaxPlayers
	}
	if input.MaxPlayers < 1 || input.MaxPlayers > MaxPlayersCap {
		return CreateSessionInput{}, ErrInvalidMaxPlayers
	}
	if input.Visibility == VisibilityUnspecified {
		input.Visibility = VisibilityPublic
	}
	if input.Visibility == VisibilityPrivate && strings.TrimSpace(input.Password) == "" {
		return CreateSessionInput{}, ErrPrivateNeedsPassword
	}
	if input.Settings.MinPlayers <= 0 {
		input.Settings.MinPlayers = DefaultMinPlayers
	}
	if input.Settings.TurnTimeLimitMinutes < 0 {
		input.Settings.TurnTimeLimitMinutes = 0
	}
	return input, nil
}

// CollectionDeadline computes the deadline for a collection window opened at
// start with the given limit in minutes. A zero or negative limit means no
// deadline and returns nil.
func CollectionDeadline(start time.Time, limitMinutes int) *time.Time {
	if limitMinutes <= 0 {
		return nil
	}
	deadline := start.UTC().Add(time.Duration(limitMinutes) * time.Minute)
	return &deadline
}
