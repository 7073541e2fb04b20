package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/domain"
	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/storage"
)

// TestTwoPlayerGameFlow walks a full round with two players: join, ready up,
// start, open a timed collection window, submit both actions, process, and
// advance into the next turn.
func TestTwoPlayerGameFlow(t *testing.T) {
	coordinator, _ := newTestCoordinator(t)
	ctx := context.Background()

	sess := createTestSession(t, coordinator, domain.CreateSessionInput{
		Settings: domain.Settings{TurnTimeLimitMinutes: 5, MinPlayers: 2},
	})
	joinPlayer(t, coordinator, sess.ID, "player-1")
	joinPlayer(t, coordinator, sess.ID, "player-2")
	readyPlayers(t, coordinator, sess.ID, "player-1", "player-2")

	check, err := coordinator.StartGame(ctx, sess.ID, "host-1")
	if err != nil {
		t.Fatalf("start game: %v", err)
	}
	if !check.CanStart {
		t.Fatalf("expected game to start, got %+v", check)
	}

	started, err := coordinator.StartTurnCollection(ctx, sess.ID, "host-1", 5)
	if err != nil {
		t.Fatalf("start collection: %v", err)
	}
	if started.TurnDeadline == nil {
		t.Fatal("expected a collection deadline")
	}
	if want := serviceBase.Add(5 * time.Minute); !started.TurnDeadline.Equal(want) {
		t.Fatalf("expected deadline %v, got %v", want, started.TurnDeadline)
	}

	for _, userID := range []string{"player-1", "player-2"} {
		if _, err := coordinator.SubmitAction(ctx, domain.NewTurnActionInput{
			SessionID:  sess.ID,
			TurnNumber: 1,
			UserID:     userID,
			ActionText: "search the cellar",
		}); err != nil {
			t.Fatalf("submit action for %s: %v", userID, err)
		}
	}

	snap, err := coordinator.Snapshot(ctx, sess.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Derived.ActionsSubmitted != 2 || snap.Derived.TotalPlayers != 2 {
		t.Fatalf("expected full submission, got %+v", snap.Derived)
	}

	if err := coordinator.ProcessTurn(ctx, sess.ID, "host-1"); err != nil {
		t.Fatalf("process turn: %v", err)
	}
	turn, err := coordinator.AdvanceTurn(ctx, sess.ID, "host-1")
	if err != nil {
		t.Fatalf("advance turn: %v", err)
	}
	if turn != 2 {
		t.Fatalf("expected turn 2, got %d", turn)
	}

	snap, err = coordinator.Snapshot(ctx, sess.ID)
	if err != nil {
		t.Fatalf("snapshot after advance: %v", err)
	}
	if snap.Session.TurnPhase != domain.TurnPhaseWaiting || snap.Session.CurrentTurn != 2 {
		t.Fatalf("expected waiting at turn 2, got %s turn %d", snap.Session.TurnPhase, snap.Session.CurrentTurn)
	}
	if snap.Session.TurnDeadline != nil {
		t.Fatal("advance must clear the collection deadline")
	}
	if snap.Derived.ActionsSubmitted != 0 || snap.Derived.PlayersReady != 0 {
		t.Fatalf("expected a fresh turn, got %+v", snap.Derived)
	}
}

// TestSubmitDuringWaitingLeavesLedgerUntouched covers late submissions: once
// collection closed, a submit must be rejected without inserting a row.
func TestSubmitDuringWaitingLeavesLedgerUntouched(t *testing.T) {
	coordinator, _ := newTestCoordinator(t)
	ctx := context.Background()

	sess := createTestSession(t, coordinator, domain.CreateSessionInput{})
	joinPlayer(t, coordinator, sess.ID, "player-1")
	joinPlayer(t, coordinator, sess.ID, "player-2")
	readyPlayers(t, coordinator, sess.ID, "player-1", "player-2")
	if _, err := coordinator.StartGame(ctx, sess.ID, "host-1"); err != nil {
		t.Fatalf("start game: %v", err)
	}

	_, err := coordinator.SubmitAction(ctx, domain.NewTurnActionInput{
		SessionID:  sess.ID,
		TurnNumber: 1,
		UserID:     "player-1",
		ActionText: "sneak ahead",
	})
	if !errors.Is(err, storage.ErrWrongPhase) {
		t.Fatalf("expected wrong phase, got %v", err)
	}

	snap, err := coordinator.Snapshot(ctx, sess.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Actions) != 0 {
		t.Fatalf("expected empty ledger, got %d actions", len(snap.Actions))
	}
}
