package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/domain"
	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/storage"
)

// Snapshot reads the session row, membership, and current-turn ledger in one
// transaction and recomputes the derived turn state from those rows. It is
// the baseline read every reconciler refresh uses.
func (s *Store) Snapshot(ctx context.Context, sessionID string) (storage.Snapshot, error) {
	if s == nil || s.sqlDB == nil {
		return storage.Snapshot{}, fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, sessionID)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Snapshot{}, storage.ErrNotFound
		}
		return storage.Snapshot{}, fmt.Errorf("snapshot session: %w", err)
	}

	memberRows, err := tx.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM session_members WHERE session_id = ? ORDER BY joined_at ASC, user_id ASC`,
		sessionID)
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("snapshot members: %w", err)
	}
	var members []domain.Member
	for memberRows.Next() {
		member, err := scanMember(memberRows)
		if err != nil {
			memberRows.Close()
			return storage.Snapshot{}, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, member)
	}
	memberRows.Close()
	if err := memberRows.Err(); err != nil {
		return storage.Snapshot{}, fmt.Errorf("iterate members: %w", err)
	}

	actionRows, err := tx.QueryContext(ctx, `
SELECT `+actionColumns+` FROM turn_actions
 WHERE session_id = ? AND turn_number = ?
 ORDER BY submitted_at ASC, user_id ASC`,
		sessionID, sess.CurrentTurn)
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("snapshot actions: %w", err)
	}
	var actions []domain.TurnAction
	for actionRows.Next() {
		action, err := scanAction(actionRows)
		if err != nil {
			actionRows.Close()
			return storage.Snapshot{}, fmt.Errorf("scan action: %w", err)
		}
		actions = append(actions, action)
	}
	actionRows.Close()
	if err := actionRows.Err(); err != nil {
		return storage.Snapshot{}, fmt.Errorf("iterate actions: %w", err)
	}

	return storage.Snapshot{
		Session: sess,
		Members: members,
		Actions: actions,
		Derived: domain.ComputeDerivedTurnState(members, actions, sess.CurrentTurn),
	}, nil
}
