package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/domain"
)

// MarkInactiveSessions deactivates sessions whose last activity predates cutoff.
func (s *Store) MarkInactiveSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE sessions SET active = 0, updated_at = ? WHERE active = 1 AND last_activity < ?`,
		toMillis(cutoff), toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("mark inactive sessions: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}

// RemoveOrphanedSessions deactivates sessions nobody drives anymore: no host
// and no player-role membership remains. Observer-only sessions count as
// orphaned. Rows are deactivated, not deleted, so history stays queryable.
func (s *Store) RemoveOrphanedSessions(ctx context.Context) (int64, error) {
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE sessions
   SET active = 0
 WHERE active = 1
   AND NOT EXISTS (
       SELECT 1 FROM session_members m
        WHERE m.session_id = sessions.id AND m.role IN ('host', 'player'))`)
	if err != nil {
		return 0, fmt.Errorf("remove orphaned sessions: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}

// RemoveUserFromAllSessions removes every membership a user holds, applying
// the same host-handoff and player-count maintenance as a normal leave.
// It backs the logout cleanup path.
func (s *Store) RemoveUserFromAllSessions(ctx context.Context, userID string, at time.Time) (int64, error) {
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT session_id FROM session_members WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("list user memberships: %w", err)
	}
	var sessionIDs []string
	for rows.Next() {
		var sessionID string
		if err := rows.Scan(&sessionID); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan membership: %w", err)
		}
		sessionIDs = append(sessionIDs, sessionID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate memberships: %w", err)
	}

	var removed int64
	for _, sessionID := range sessionIDs {
		tx, err := s.sqlDB.BeginTx(ctx, nil)
		if err != nil {
			return removed, fmt.Errorf("begin tx: %w", err)
		}
		if err := removeMemberTx(ctx, tx, sessionID, userID, at); err != nil {
			_ = tx.Rollback()
			return removed, fmt.Errorf("remove from session %s: %w", sessionID, err)
		}
		if err := tx.Commit(); err != nil {
			return removed, fmt.Errorf("commit removal: %w", err)
		}
		removed++
	}
	return removed, nil
}

// ListDueAutoAdvance returns collecting sessions opted into auto-advance
// whose collection deadline has elapsed.
func (s *Store) ListDueAutoAdvance(ctx context.Context, now time.Time) ([]domain.Session, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+sessionColumns+` FROM sessions
 WHERE active = 1
   AND turn_phase = 'collecting'
   AND auto_advance = 1
   AND turn_deadline IS NOT NULL
   AND turn_deadline <= ?`,
		toMillis(now))
	if err != nil {
		return nil, fmt.Errorf("list due auto-advance: %w", err)
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
