package service

import (
	"context"
	"errors"
	"log"

	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/domain"
	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/notify"
	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/storage"
)

// SubmitAction records or replaces the user's action for the given turn.
// The store's conditional upsert rejects submissions once the phase or turn
// has moved on, regardless of what the caller last observed.
func (c *Coordinator) SubmitAction(ctx context.Context, input domain.NewTurnActionInput) (domain.TurnAction, error) {
	member, err := c.store.GetMember(ctx, input.SessionID, input.UserID)
	if err != nil {
		return domain.TurnAction{}, err
	}
	if !member.Role.IsPlayer() {
		return domain.TurnAction{}, storage.ErrNotAPlayer
	}
	if input.CharacterID == "" {
		input.CharacterID = member.CharacterID
	}

	action, err := domain.NewTurnAction(input, c.now)
	if err != nil {
		return domain.TurnAction{}, err
	}

	if err := c.store.SubmitAction(ctx, action); err != nil {
		return domain.TurnAction{}, err
	}

	c.publish(ctx, notify.StreamActions, action.SessionID, action.TurnNumber)
	return action, nil
}

// StartGame evaluates start readiness and, when satisfied, moves the session
// to turn 1. The returned check explains any rejection; it never mutates.
func (c *Coordinator) StartGame(ctx context.Context, sessionID, hostUserID string) (domain.StartCheck, error) {
	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return domain.StartCheck{}, err
	}
	if sess.HostUserID != hostUserID {
		return domain.StartCheck{}, storage.ErrNotHost
	}
	members, err := c.store.ListMembers(ctx, sessionID)
	if err != nil {
		return domain.StartCheck{}, err
	}

	check := domain.EvaluateStartGame(sess, members)
	if !check.CanStart {
		return check, nil
	}

	err = c.store.StartGame(ctx, sessionID, hostUserID, c.now().UTC())
	if errors.Is(err, storage.ErrWrongPhase) {
		// A concurrent start won; report it the same way the evaluation would.
		check.CanStart = false
		check.Code = domain.RejectionCodeStartAlreadyStarted
		check.Reason = "session has already started"
		return check, nil
	}
	if err != nil {
		return domain.StartCheck{}, err
	}

	c.publish(ctx, notify.StreamSession, sessionID, 1)
	return check, nil
}

// StartTurnCollection opens the submission window for the current turn with
// the given time limit in minutes; 0 means no deadline. The session's
// configured turn time limit is only the default clients offer the host, so
// each window can be wider or narrower than the one before it.
func (c *Coordinator) StartTurnCollection(ctx context.Context, sessionID, hostUserID string, deadlineMinutes int) (*domain.Session, error) {
	at := c.now().UTC()
	deadline := domain.CollectionDeadline(at, deadlineMinutes)
	if err := c.store.StartTurnCollection(ctx, sessionID, hostUserID, deadline, at); err != nil {
		return nil, err
	}

	updated, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c.publish(ctx, notify.StreamSession, sessionID, updated.CurrentTurn)
	return &updated, nil
}

// ProcessTurn closes the submission window. When two callers race, the
// store's conditional write picks exactly one winner.
func (c *Coordinator) ProcessTurn(ctx context.Context, sessionID, hostUserID string) error {
	if err := c.store.BeginProcessing(ctx, sessionID, hostUserID, c.now().UTC()); err != nil {
		return err
	}
	c.publish(ctx, notify.StreamSession, sessionID, 0)
	return nil
}

// CompleteProcessing records that the host has posted the turn's resolution.
// The turn stays put until AdvanceTurn; clients use the completed phase to
// show the outcome before the next turn opens.
func (c *Coordinator) CompleteProcessing(ctx context.Context, sessionID, hostUserID string) error {
	if err := c.store.CompleteProcessing(ctx, sessionID, hostUserID, c.now().UTC()); err != nil {
		return err
	}
	c.publish(ctx, notify.StreamSession, sessionID, 0)
	return nil
}

// AdvanceTurn finishes the current turn: ledger rows are marked processed,
// ready flags reset, and the session moves to the next turn's waiting phase.
// Returns the new turn number.
func (c *Coordinator) AdvanceTurn(ctx context.Context, sessionID, hostUserID string) (int, error) {
	newTurn, err := c.store.AdvanceTurn(ctx, sessionID, hostUserID, c.now().UTC())
	if err != nil {
		return 0, err
	}

	c.publish(ctx, notify.StreamSession, sessionID, newTurn)
	c.publish(ctx, notify.StreamActions, sessionID, newTurn)
	c.publish(ctx, notify.StreamMembers, sessionID, newTurn)
	return newTurn, nil
}

// ForceResetPhase returns a stuck session to the waiting phase without
// advancing the turn.
func (c *Coordinator) ForceResetPhase(ctx context.Context, sessionID, hostUserID string) error {
	if err := c.store.ForceResetPhase(ctx, sessionID, hostUserID, c.now().UTC()); err != nil {
		return err
	}
	c.publish(ctx, notify.StreamSession, sessionID, 0)
	return nil
}

// AutoAdvanceDueSessions processes and advances every collecting session
// whose deadline elapsed and whose settings opt into auto-advance. Sessions
// that lose a race with a manual host call are skipped. Returns how many
// sessions advanced.
func (c *Coordinator) AutoAdvanceDueSessions(ctx context.Context) (int, error) {
	due, err := c.store.ListDueAutoAdvance(ctx, c.now().UTC())
	if err != nil {
		return 0, err
	}

	var advanced int
	for _, sess := range due {
		if err := c.ProcessTurn(ctx, sess.ID, sess.HostUserID); err != nil {
			if errors.Is(err, storage.ErrWrongPhase) || errors.Is(err, storage.ErrNotHost) {
				continue
			}
			return advanced, err
		}
		if _, err := c.AdvanceTurn(ctx, sess.ID, sess.HostUserID); err != nil {
			if errors.Is(err, storage.ErrWrongPhase) || errors.Is(err, storage.ErrNotHost) {
				continue
			}
			return advanced, err
		}
		advanced++
		log.Printf("auto-advanced session session_id=%s turn=%d", sess.ID, sess.CurrentTurn+1)
	}
	return advanced, nil
}
