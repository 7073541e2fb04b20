package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/domain"
	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/storage"
)

const sessionColumns = `id, name, max_players, current_players, visibility, password_hash,
turn_time_limit_minutes, auto_advance, allow_observers, voice_enabled, min_players,
current_turn, turn_phase, turn_deadline, host_user_id, active, last_activity, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (domain.Session, error) {
	var sess domain.Session
	var visibility string
	var autoAdvance, allowObservers, voiceEnabled, active int64
	var phase string
	var deadline sql.NullInt64
	var lastActivity, createdAt, updatedAt int64

	err := row.Scan(
		&sess.ID,
		&sess.Name,
		&sess.MaxPlayers,
		&sess.CurrentPlayers,
		&visibility,
		&sess.PasswordHash,
		&sess.Settings.TurnTimeLimitMinutes,
		&autoAdvance,
		&allowObservers,
		&voiceEnabled,
		&sess.Settings.MinPlayers,
		&sess.CurrentTurn,
		&phase,
		&deadline,
		&sess.HostUserID,
		&active,
		&lastActivity,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return domain.Session{}, err
	}

	sess.Visibility = visibilityFromString(visibility)
	sess.Settings.AutoAdvance = autoAdvance != 0
	sess.Settings.AllowObservers = allowObservers != 0
	sess.Settings.VoiceEnabled = voiceEnabled != 0
	sess.TurnPhase = domain.ParseTurnPhase(phase)
	sess.TurnDeadline = fromNullMillis(deadline)
	sess.Active = active != 0
	sess.LastActivity = fromMillis(lastActivity)
	sess.CreatedAt = fromMillis(createdAt)
	sess.UpdatedAt = fromMillis(updatedAt)
	return sess, nil
}

// CreateSession stores a freshly created session row.
func (s *Store) CreateSession(ctx context.Context, sess domain.Session) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(sess.ID) == "" {
		return fmt.Errorf("session id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO sessions (`+sessionColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID,
		sess.Name,
		sess.MaxPlayers,
		sess.CurrentPlayers,
		visibilityToString(sess.Visibility),
		sess.PasswordHash,
		sess.Settings.TurnTimeLimitMinutes,
		boolToInt(sess.Settings.AutoAdvance),
		boolToInt(sess.Settings.AllowObservers),
		boolToInt(sess.Settings.VoiceEnabled),
		sess.Settings.MinPlayers,
		sess.CurrentTurn,
		sess.TurnPhase.String(),
		toNullMillis(sess.TurnDeadline),
		sess.HostUserID,
		boolToInt(sess.Active),
		toMillis(sess.LastActivity),
		toMillis(sess.CreatedAt),
		toMillis(sess.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession loads a session row by id.
func (s *Store) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	if s == nil || s.sqlDB == nil {
		return domain.Session{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, sessionID)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, storage.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// ListActiveSessions returns active sessions ordered by most recent activity.
func (s *Store) ListActiveSessions(ctx context.Context) ([]domain.Session, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+sessionColumns+` FROM sessions WHERE active = 1 ORDER BY last_activity DESC`)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// StartGame moves an idle session to turn 1 in the waiting phase.
func (s *Store) StartGame(ctx context.Context, sessionID, hostUserID string, at time.Time) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE sessions
   SET current_turn = 1,
       turn_phase = 'waiting',
       turn_deadline = NULL,
       last_activity = ?,
       updated_at = ?
 WHERE id = ? AND host_user_id = ? AND turn_phase = 'idle' AND active = 1`,
		toMillis(at), toMillis(at), sessionID, hostUserID)
	if err != nil {
		return fmt.Errorf("start game: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return s.classifyTransitionFailure(ctx, sessionID, hostUserID)
	}
	return nil
}

// StartTurnCollection moves a waiting session into collecting.
func (s *Store) StartTurnCollection(ctx context.Context, sessionID, hostUserID string, deadline *time.Time, at time.Time) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE sessions
   SET turn_phase = 'collecting',
       turn_deadline = ?,
       last_activity = ?,
       updated_at = ?
 WHERE id = ? AND host_user_id = ? AND turn_phase = 'waiting' AND active = 1`,
		toNullMillis(deadline), toMillis(at), toMillis(at), sessionID, hostUserID)
	if err != nil {
		return fmt.Errorf("start turn collection: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return s.classifyTransitionFailure(ctx, sessionID, hostUserID)
	}
	return nil
}

// BeginProcessing moves a collecting session into processing. The conditional
// write settles racing callers: exactly one observes a row change.
func (s *Store) BeginProcessing(ctx context.Context, sessionID, hostUserID string, at time.Time) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE sessions
   SET turn_phase = 'processing',
       turn_deadline = NULL,
       last_activity = ?,
       updated_at = ?
 WHERE id = ? AND host_user_id = ? AND turn_phase = 'collecting' AND active = 1`,
		toMillis(at), toMillis(at), sessionID, hostUserID)
	if err != nil {
		return fmt.Errorf("begin processing: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return s.classifyTransitionFailure(ctx, sessionID, hostUserID)
	}
	return nil
}

// CompleteProcessing marks the current turn's resolution as posted, moving
// the session from processing to completed. The turn itself only advances
// with AdvanceTurn.
func (s *Store) CompleteProcessing(ctx context.Context, sessionID, hostUserID string, at time.Time) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE sessions
   SET turn_phase = 'completed',
       last_activity = ?,
       updated_at = ?
 WHERE id = ? AND host_user_id = ? AND turn_phase = 'processing' AND active = 1`,
		toMillis(at), toMillis(at), sessionID, hostUserID)
	if err != nil {
		return fmt.Errorf("complete processing: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return s.classifyTransitionFailure(ctx, sessionID, hostUserID)
	}
	return nil
}

// AdvanceTurn atomically closes out the current turn: ledger rows are marked
// processed, player ready flags reset, the turn increments, and the phase
// returns to waiting. Either all of it happens or none of it does.
func (s *Store) AdvanceTurn(ctx context.Context, sessionID, hostUserID string, at time.Time) (int, error) {
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
UPDATE sessions
   SET current_turn = current_turn + 1,
       turn_phase = 'waiting',
       turn_deadline = NULL,
       last_activity = ?,
       updated_at = ?
 WHERE id = ? AND host_user_id = ? AND turn_phase IN ('processing', 'completed') AND active = 1`,
		toMillis(at), toMillis(at), sessionID, hostUserID)
	if err != nil {
		return 0, fmt.Errorf("advance turn: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		// Release the connection before the diagnostic read; the store runs
		// with a single writer connection.
		_ = tx.Rollback()
		return 0, s.classifyTransitionFailure(ctx, sessionID, hostUserID)
	}

	var newTurn int
	if err := tx.QueryRowContext(ctx, `SELECT current_turn FROM sessions WHERE id = ?`, sessionID).Scan(&newTurn); err != nil {
		return 0, fmt.Errorf("read advanced turn: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE turn_actions
   SET processed = 1, processed_at = ?
 WHERE session_id = ? AND turn_number = ? AND processed = 0`,
		toMillis(at), sessionID, newTurn-1); err != nil {
		return 0, fmt.Errorf("mark turn processed: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE session_members SET ready = 0 WHERE session_id = ? AND role = 'player'`,
		sessionID); err != nil {
		return 0, fmt.Errorf("reset ready flags: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit advance turn: %w", err)
	}
	return newTurn, nil
}

// ForceResetPhase returns a started session to waiting without advancing the
// turn. It is the host's escape valve when processing gets stuck upstream.
func (s *Store) ForceResetPhase(ctx context.Context, sessionID, hostUserID string, at time.Time) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE sessions
   SET turn_phase = 'waiting',
       turn_deadline = NULL,
       last_activity = ?,
       updated_at = ?
 WHERE id = ? AND host_user_id = ? AND turn_phase != 'idle' AND active = 1`,
		toMillis(at), toMillis(at), sessionID, hostUserID)
	if err != nil {
		return fmt.Errorf("force reset phase: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return s.classifyTransitionFailure(ctx, sessionID, hostUserID)
	}
	return nil
}
