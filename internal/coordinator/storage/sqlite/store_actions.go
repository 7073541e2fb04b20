package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/domain"
	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/storage"
)

const actionColumns = `session_id, turn_number, user_id, character_id, action_text, processed, processed_at, submitted_at`

func scanAction(row rowScanner) (domain.TurnAction, error) {
	var action domain.TurnAction
	var processed int64
	var processedAt sql.NullInt64
	var submittedAt int64

	err := row.Scan(
		&action.SessionID,
		&action.TurnNumber,
		&action.UserID,
		&action.CharacterID,
		&action.ActionText,
		&processed,
		&processedAt,
		&submittedAt,
	)
	if err != nil {
		return domain.TurnAction{}, err
	}

	action.Processed = processed != 0
	action.ProcessedAt = fromNullMillis(processedAt)
	action.SubmittedAt = fromMillis(submittedAt)
	return action, nil
}

// SubmitAction lands a ledger row for (session, turn, user) in one guarded
// statement: the INSERT ... SELECT only produces a row while the session is
// still collecting the submitted turn, so a submission racing the host's
// process-turn call can never slip into an already-processing turn.
// Resubmission within the window replaces the previous text.
func (s *Store) SubmitAction(ctx context.Context, action domain.TurnAction) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
INSERT INTO turn_actions (`+actionColumns+`)
SELECT s.id, ?, ?, ?, ?, 0, NULL, ?
  FROM sessions s
 WHERE s.id = ? AND s.turn_phase = 'collecting' AND s.current_turn = ? AND s.active = 1
ON CONFLICT (session_id, turn_number, user_id) DO UPDATE SET
    character_id = excluded.character_id,
    action_text = excluded.action_text,
    submitted_at = excluded.submitted_at`,
		action.TurnNumber,
		action.UserID,
		action.CharacterID,
		action.ActionText,
		toMillis(action.SubmittedAt),
		action.SessionID,
		action.TurnNumber,
	)
	if err != nil {
		return fmt.Errorf("submit action: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		// Release the connection before the diagnostic read; the store runs
		// with a single writer connection.
		_ = tx.Rollback()
		return s.classifySubmitFailure(ctx, action)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE session_members SET last_action_at = ? WHERE session_id = ? AND user_id = ?`,
		toMillis(action.SubmittedAt), action.SessionID, action.UserID); err != nil {
		return fmt.Errorf("touch member: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET last_activity = ?, updated_at = ? WHERE id = ?`,
		toMillis(action.SubmittedAt), toMillis(action.SubmittedAt), action.SessionID); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit submit: %w", err)
	}
	return nil
}

// classifySubmitFailure explains a zero-row conditional ledger write.
func (s *Store) classifySubmitFailure(ctx context.Context, action domain.TurnAction) error {
	sess, err := s.GetSession(ctx, action.SessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.ErrNotFound
		}
		return err
	}
	if !sess.Active {
		return storage.ErrSessionInactive
	}
	if !sess.TurnPhase.AcceptsActions() {
		return storage.ErrWrongPhase
	}
	return storage.ErrStaleTurn
}

// ListTurnActions returns the ledger rows for one turn ordered by submission.
func (s *Store) ListTurnActions(ctx context.Context, sessionID string, turnNumber int) ([]domain.TurnAction, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+actionColumns+` FROM turn_actions
 WHERE session_id = ? AND turn_number = ?
 ORDER BY submitted_at ASC, user_id ASC`,
		sessionID, turnNumber)
	if err != nil {
		return nil, fmt.Errorf("list turn actions: %w", err)
	}
	defer rows.Close()

	var actions []domain.TurnAction
	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		actions = append(actions, action)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return actions, nil
}

// CountTurnActions counts distinct submitting users for one turn. The count
// is always recomputed from the ledger so it cannot drift from the rows.
func (s *Store) CountTurnActions(ctx context.Context, sessionID string, turnNumber int) (int, error) {
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	var count int
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT COUNT(DISTINCT user_id) FROM turn_actions WHERE session_id = ? AND turn_number = ?`,
		sessionID, turnNumber).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count turn actions: %w", err)
	}
	return count, nil
}
