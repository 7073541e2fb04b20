package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/domain"
	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/storage"
)

const memberColumns = `session_id, user_id, role, character_id, ready, joined_at, last_action_at`

func scanMember(row rowScanner) (domain.Member, error) {
	var member domain.Member
	var role string
	var ready int64
	var joinedAt, lastActionAt int64

	err := row.Scan(
		&member.SessionID,
		&member.UserID,
		&role,
		&member.CharacterID,
		&ready,
		&joinedAt,
		&lastActionAt,
	)
	if err != nil {
		return domain.Member{}, err
	}

	member.Role = domain.ParseRole(role)
	member.Ready = ready != 0
	member.JoinedAt = fromMillis(joinedAt)
	member.LastActionAt = fromMillis(lastActionAt)
	return member, nil
}

// AddMember inserts a membership row and maintains the session player count.
//
// The capacity invariant is enforced at commit time: after the insert, the
// player-count recomputation only lands while the count fits under the cap,
// so two racing joins cannot both squeeze into the last slot.
func (s *Store) AddMember(ctx context.Context, member domain.Member) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var allowObservers, active int64
	err = tx.QueryRowContext(ctx,
		`SELECT allow_observers, active FROM sessions WHERE id = ?`, member.SessionID).
		Scan(&allowObservers, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	if active == 0 {
		return storage.ErrSessionInactive
	}
	if member.Role == domain.RoleObserver && allowObservers == 0 {
		return storage.ErrObserversNotAllowed
	}

	result, err := tx.ExecContext(ctx, `
INSERT INTO session_members (`+memberColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (session_id, user_id) DO NOTHING`,
		member.SessionID,
		member.UserID,
		member.Role.String(),
		member.CharacterID,
		boolToInt(member.Ready),
		toMillis(member.JoinedAt),
		toMillis(member.LastActionAt),
	)
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return storage.ErrAlreadyJoined
	}

	result, err = tx.ExecContext(ctx, `
UPDATE sessions
   SET current_players = (SELECT COUNT(*) FROM session_members m WHERE m.session_id = sessions.id AND m.role = 'player'),
       last_activity = ?,
       updated_at = ?
 WHERE id = ?
   AND (SELECT COUNT(*) FROM session_members m WHERE m.session_id = sessions.id AND m.role = 'player') <= max_players`,
		toMillis(member.JoinedAt), toMillis(member.JoinedAt), member.SessionID)
	if err != nil {
		return fmt.Errorf("update player count: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return storage.ErrSessionFull
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit join: %w", err)
	}
	return nil
}

// GetMember loads one membership row.
func (s *Store) GetMember(ctx context.Context, sessionID, userID string) (domain.Member, error) {
	if s == nil || s.sqlDB == nil {
		return domain.Member{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM session_members WHERE session_id = ? AND user_id = ?`,
		sessionID, userID)
	member, err := scanMember(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Member{}, storage.ErrMemberNotFound
		}
		return domain.Member{}, fmt.Errorf("get member: %w", err)
	}
	return member, nil
}

// ListMembers returns a session's membership ordered by join time.
func (s *Store) ListMembers(ctx context.Context, sessionID string) ([]domain.Member, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM session_members WHERE session_id = ? ORDER BY joined_at ASC, user_id ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}

// RemoveMember deletes a membership row, recomputes the player count, and
// promotes the longest-standing player to host when the host departs.
func (s *Store) RemoveMember(ctx context.Context, sessionID, userID string, at time.Time) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := removeMemberTx(ctx, tx, sessionID, userID, at); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit leave: %w", err)
	}
	return nil
}

func removeMemberTx(ctx context.Context, tx *sql.Tx, sessionID, userID string, at time.Time) error {
	var role string
	err := tx.QueryRowContext(ctx,
		`SELECT role FROM session_members WHERE session_id = ? AND user_id = ?`,
		sessionID, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrMemberNotFound
	}
	if err != nil {
		return fmt.Errorf("check member: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM session_members WHERE session_id = ? AND user_id = ?`,
		sessionID, userID); err != nil {
		return fmt.Errorf("delete member: %w", err)
	}

	if domain.ParseRole(role) == domain.RoleHost {
		if err := promoteOldestPlayerTx(ctx, tx, sessionID, at); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE sessions
   SET current_players = (SELECT COUNT(*) FROM session_members m WHERE m.session_id = sessions.id AND m.role = 'player'),
       last_activity = ?,
       updated_at = ?
 WHERE id = ?`,
		toMillis(at), toMillis(at), sessionID); err != nil {
		return fmt.Errorf("update player count: %w", err)
	}
	return nil
}

// promoteOldestPlayerTx hands the host role to the longest-standing player.
// A session left with no players keeps its stale host id until the orphan
// sweep deactivates it.
func promoteOldestPlayerTx(ctx context.Context, tx *sql.Tx, sessionID string, at time.Time) error {
	var successorID string
	err := tx.QueryRowContext(ctx, `
SELECT user_id FROM session_members
 WHERE session_id = ? AND role = 'player'
 ORDER BY joined_at ASC, user_id ASC
 LIMIT 1`, sessionID).Scan(&successorID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find host successor: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE session_members SET role = 'host', last_action_at = ? WHERE session_id = ? AND user_id = ?`,
		toMillis(at), sessionID, successorID); err != nil {
		return fmt.Errorf("promote successor: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET host_user_id = ? WHERE id = ?`,
		successorID, sessionID); err != nil {
		return fmt.Errorf("reassign host: %w", err)
	}
	return nil
}

// SetReady toggles a player's ready flag.
func (s *Store) SetReady(ctx context.Context, sessionID, userID string, ready bool, at time.Time) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE session_members
   SET ready = ?, last_action_at = ?
 WHERE session_id = ? AND user_id = ? AND role = 'player'`,
		boolToInt(ready), toMillis(at), sessionID, userID)
	if err != nil {
		return fmt.Errorf("set ready: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return s.classifyMemberFailure(ctx, sessionID, userID)
	}

	if _, err := s.sqlDB.ExecContext(ctx,
		`UPDATE sessions SET last_activity = ?, updated_at = ? WHERE id = ?`,
		toMillis(at), toMillis(at), sessionID); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// SwitchCharacter rebinds a member's character. Observers cannot bind one.
func (s *Store) SwitchCharacter(ctx context.Context, sessionID, userID, characterID string, at time.Time) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE session_members
   SET character_id = ?, last_action_at = ?
 WHERE session_id = ? AND user_id = ? AND role != 'observer'`,
		characterID, toMillis(at), sessionID, userID)
	if err != nil {
		return fmt.Errorf("switch character: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return s.classifyMemberFailure(ctx, sessionID, userID)
	}
	return nil
}

// classifyMemberFailure explains a zero-row conditional member write.
func (s *Store) classifyMemberFailure(ctx context.Context, sessionID, userID string) error {
	_, err := s.GetMember(ctx, sessionID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrMemberNotFound) {
			return storage.ErrMemberNotFound
		}
		return err
	}
	return storage.ErrNotAPlayer
}
