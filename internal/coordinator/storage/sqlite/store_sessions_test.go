package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/domain"
	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/storage"
)

func TestCreateAndGetSessionRoundTrip(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	deadline := testBase.Add(10 * time.Minute)
	sess := testSession("session-1", "host-1")
	sess.Visibility = domain.VisibilityPrivate
	sess.PasswordHash = "hash"
	sess.Settings = domain.Settings{
		TurnTimeLimitMinutes: 10,
		AutoAdvance:          true,
		AllowObservers:       true,
		VoiceEnabled:         true,
		MinPlayers:           3,
	}
	sess.CurrentTurn = 4
	sess.TurnPhase = domain.TurnPhaseCollecting
	sess.TurnDeadline = &deadline

	mustCreateSession(t, store, sess)

	got, err := store.GetSession(ctx, "session-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Name != sess.Name {
		t.Fatalf("expected name %q, got %q", sess.Name, got.Name)
	}
	if got.Visibility != domain.VisibilityPrivate {
		t.Fatalf("expected private visibility, got %v", got.Visibility)
	}
	if got.PasswordHash != "hash" {
		t.Fatalf("expected password hash to round-trip, got %q", got.PasswordHash)
	}
	if got.Settings != sess.Settings {
		t.Fatalf("expected settings %+v, got %+v", sess.Settings, got.Settings)
	}
	if got.CurrentTurn != 4 || got.TurnPhase != domain.TurnPhaseCollecting {
		t.Fatalf("expected turn 4 collecting, got %d %v", got.CurrentTurn, got.TurnPhase)
	}
	if got.TurnDeadline == nil || !got.TurnDeadline.Equal(deadline) {
		t.Fatalf("expected deadline %v, got %v", deadline, got.TurnDeadline)
	}
	if !got.Active {
		t.Fatal("expected session to be active")
	}
	if !got.CreatedAt.Equal(testBase) {
		t.Fatalf("expected created_at %v, got %v", testBase, got.CreatedAt)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	store := openTempStore(t)

	_, err := store.GetSession(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateSessionRequiresID(t *testing.T) {
	store := openTempStore(t)

	sess := testSession("", "host-1")
	if err := store.CreateSession(context.Background(), sess); err == nil {
		t.Fatal("expected error for missing session id")
	}
}

func TestListActiveSessionsSkipsInactive(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	first := testSession("session-1", "host-1")
	first.LastActivity = testBase
	mustCreateSession(t, store, first)

	second := testSession("session-2", "host-2")
	second.LastActivity = testBase.Add(time.Minute)
	mustCreateSession(t, store, second)

	inactive := testSession("session-3", "host-3")
	inactive.Active = false
	mustCreateSession(t, store, inactive)

	sessions, err := store.ListActiveSessions(ctx)
	if err != nil {
		t.Fatalf("list active sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 active sessions, got %d", len(sessions))
	}
	if sessions[0].ID != "session-2" || sessions[1].ID != "session-1" {
		t.Fatalf("expected recent-activity order, got %s then %s", sessions[0].ID, sessions[1].ID)
	}
}

func TestStartGameMovesIdleToWaiting(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	mustCreateSession(t, store, testSession("session-1", "host-1"))

	if err := store.StartGame(ctx, "session-1", "host-1", testBase); err != nil {
		t.Fatalf("start game: %v", err)
	}

	sess, err := store.GetSession(ctx, "session-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.CurrentTurn != 1 {
		t.Fatalf("expected turn 1, got %d", sess.CurrentTurn)
	}
	if sess.TurnPhase != domain.TurnPhaseWaiting {
		t.Fatalf("expected waiting phase, got %v", sess.TurnPhase)
	}
}

func TestStartGameRejectsNonHost(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	mustCreateSession(t, store, testSession("session-1", "host-1"))

	err := store.StartGame(ctx, "session-1", "player-1", testBase)
	if !errors.Is(err, storage.ErrNotHost) {
		t.Fatalf("expected ErrNotHost, got %v", err)
	}

	sess, err := store.GetSession(ctx, "session-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.TurnPhase != domain.TurnPhaseIdle || sess.CurrentTurn != 0 {
		t.Fatalf("expected untouched idle session, got turn %d phase %v", sess.CurrentTurn, sess.TurnPhase)
	}
}

func TestStartGameRejectsStartedSession(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	startedSession(t, store, "session-1", "host-1")

	err := store.StartGame(ctx, "session-1", "host-1", testBase)
	if !errors.Is(err, storage.ErrWrongPhase) {
		t.Fatalf("expected ErrWrongPhase, got %v", err)
	}
}

func TestStartGameRejectsInactiveSession(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	sess := testSession("session-1", "host-1")
	sess.Active = false
	mustCreateSession(t, store, sess)

	err := store.StartGame(ctx, "session-1", "host-1", testBase)
	if !errors.Is(err, storage.ErrSessionInactive) {
		t.Fatalf("expected ErrSessionInactive, got %v", err)
	}
}

func TestStartGameMissingSession(t *testing.T) {
	store := openTempStore(t)

	err := store.StartGame(context.Background(), "missing", "host-1", testBase)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStartTurnCollectionSetsDeadline(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	startedSession(t, store, "session-1", "host-1")

	deadline := testBase.Add(10 * time.Minute)
	if err := store.StartTurnCollection(ctx, "session-1", "host-1", &deadline, testBase); err != nil {
		t.Fatalf("start turn collection: %v", err)
	}

	sess, err := store.GetSession(ctx, "session-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.TurnPhase != domain.TurnPhaseCollecting {
		t.Fatalf("expected collecting phase, got %v", sess.TurnPhase)
	}
	if sess.TurnDeadline == nil || !sess.TurnDeadline.Equal(deadline) {
		t.Fatalf("expected deadline %v, got %v", deadline, sess.TurnDeadline)
	}
}

func TestStartTurnCollectionWithoutDeadline(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	startedSession(t, store, "session-1", "host-1")

	if err := store.StartTurnCollection(ctx, "session-1", "host-1", nil, testBase); err != nil {
		t.Fatalf("start turn collection: %v", err)
	}

	sess, err := store.GetSession(ctx, "session-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.TurnDeadline != nil {
		t.Fatalf("expected no deadline, got %v", sess.TurnDeadline)
	}
}

func TestStartTurnCollectionRequiresWaitingPhase(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	mustCreateSession(t, store, testSession("session-1", "host-1"))

	err := store.StartTurnCollection(ctx, "session-1", "host-1", nil, testBase)
	if !errors.Is(err, storage.ErrWrongPhase) {
		t.Fatalf("expected ErrWrongPhase, got %v", err)
	}
}

func TestBeginProcessingRequiresCollectingPhase(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	startedSession(t, store, "session-1", "host-1")

	err := store.BeginProcessing(ctx, "session-1", "host-1", testBase)
	if !errors.Is(err, storage.ErrWrongPhase) {
		t.Fatalf("expected ErrWrongPhase, got %v", err)
	}
}

func TestBeginProcessingConcurrentCallersOneWinner(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	startedSession(t, store, "session-1", "host-1")
	if err := store.StartTurnCollection(ctx, "session-1", "host-1", nil, testBase); err != nil {
		t.Fatalf("start turn collection: %v", err)
	}

	const callers = 8
	results := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			results[slot] = store.BeginProcessing(ctx, "session-1", "host-1", testBase)
		}(i)
	}
	wg.Wait()

	var wins, wrongPhase int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, storage.ErrWrongPhase):
			wrongPhase++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
	if wrongPhase != callers-1 {
		t.Fatalf("expected %d wrong-phase losers, got %d", callers-1, wrongPhase)
	}

	sess, err := store.GetSession(ctx, "session-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.TurnPhase != domain.TurnPhaseProcessing {
		t.Fatalf("expected processing phase, got %v", sess.TurnPhase)
	}
}

func TestCompleteProcessingMarksResolutionPosted(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	startedSession(t, store, "session-1", "host-1")
	if err := store.StartTurnCollection(ctx, "session-1", "host-1", nil, testBase); err != nil {
		t.Fatalf("start turn collection: %v", err)
	}
	if err := store.BeginProcessing(ctx, "session-1", "host-1", testBase); err != nil {
		t.Fatalf("begin processing: %v", err)
	}

	if err := store.CompleteProcessing(ctx, "session-1", "host-1", testBase.Add(time.Minute)); err != nil {
		t.Fatalf("complete processing: %v", err)
	}

	sess, err := store.GetSession(ctx, "session-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.TurnPhase != domain.TurnPhaseCompleted {
		t.Fatalf("expected completed phase, got %v", sess.TurnPhase)
	}
	if sess.CurrentTurn != 1 {
		t.Fatalf("completion must not advance the turn, got %d", sess.CurrentTurn)
	}

	// The completed turn still advances the usual way.
	newTurn, err := store.AdvanceTurn(ctx, "session-1", "host-1", testBase.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("advance turn: %v", err)
	}
	if newTurn != 2 {
		t.Fatalf("expected turn 2, got %d", newTurn)
	}
}

func TestCompleteProcessingRequiresProcessingPhase(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	startedSession(t, store, "session-1", "host-1")

	err := store.CompleteProcessing(ctx, "session-1", "host-1", testBase)
	if !errors.Is(err, storage.ErrWrongPhase) {
		t.Fatalf("expected ErrWrongPhase, got %v", err)
	}
}

func TestAdvanceTurnMarksLedgerAndResetsReady(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	startedSession(t, store, "session-1", "host-1")
	if err := store.StartTurnCollection(ctx, "session-1", "host-1", nil, testBase); err != nil {
		t.Fatalf("start turn collection: %v", err)
	}

	if err := store.SubmitAction(ctx, domain.TurnAction{
		SessionID:   "session-1",
		TurnNumber:  1,
		UserID:      "player-1",
		ActionText:  "search the cellar",
		SubmittedAt: testBase,
	}); err != nil {
		t.Fatalf("submit action: %v", err)
	}
	if err := store.SetReady(ctx, "session-1", "player-1", true, testBase); err != nil {
		t.Fatalf("set ready: %v", err)
	}

	if err := store.BeginProcessing(ctx, "session-1", "host-1", testBase); err != nil {
		t.Fatalf("begin processing: %v", err)
	}

	newTurn, err := store.AdvanceTurn(ctx, "session-1", "host-1", testBase.Add(time.Minute))
	if err != nil {
		t.Fatalf("advance turn: %v", err)
	}
	if newTurn != 2 {
		t.Fatalf("expected turn 2, got %d", newTurn)
	}

	sess, err := store.GetSession(ctx, "session-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.CurrentTurn != 2 || sess.TurnPhase != domain.TurnPhaseWaiting {
		t.Fatalf("expected turn 2 waiting, got %d %v", sess.CurrentTurn, sess.TurnPhase)
	}
	if sess.TurnDeadline != nil {
		t.Fatalf("expected deadline cleared, got %v", sess.TurnDeadline)
	}

	actions, err := store.ListTurnActions(ctx, "session-1", 1)
	if err != nil {
		t.Fatalf("list turn actions: %v", err)
	}
	if len(actions) != 1 {
		t.Fatalf("expected 1 ledger row, got %d", len(actions))
	}
	if !actions[0].Processed || actions[0].ProcessedAt == nil {
		t.Fatalf("expected processed ledger row, got %+v", actions[0])
	}

	member, err := store.GetMember(ctx, "session-1", "player-1")
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if member.Ready {
		t.Fatal("expected ready flag reset after advance")
	}
}

func TestAdvanceTurnRequiresProcessingPhase(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	startedSession(t, store, "session-1", "host-1")

	_, err := store.AdvanceTurn(ctx, "session-1", "host-1", testBase)
	if !errors.Is(err, storage.ErrWrongPhase) {
		t.Fatalf("expected ErrWrongPhase, got %v", err)
	}
}

func TestAdvanceTurnRejectsNonHost(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	startedSession(t, store, "session-1", "host-1")
	if err := store.StartTurnCollection(ctx, "session-1", "host-1", nil, testBase); err != nil {
		t.Fatalf("start turn collection: %v", err)
	}
	if err := store.BeginProcessing(ctx, "session-1", "host-1", testBase); err != nil {
		t.Fatalf("begin processing: %v", err)
	}

	_, err := store.AdvanceTurn(ctx, "session-1", "player-1", testBase)
	if !errors.Is(err, storage.ErrNotHost) {
		t.Fatalf("expected ErrNotHost, got %v", err)
	}

	sess, err := store.GetSession(ctx, "session-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.CurrentTurn != 1 || sess.TurnPhase != domain.TurnPhaseProcessing {
		t.Fatalf("expected untouched processing turn 1, got %d %v", sess.CurrentTurn, sess.TurnPhase)
	}
}

func TestForceResetPhaseReturnsToWaiting(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	startedSession(t, store, "session-1", "host-1")
	deadline := testBase.Add(10 * time.Minute)
	if err := store.StartTurnCollection(ctx, "session-1", "host-1", &deadline, testBase); err != nil {
		t.Fatalf("start turn collection: %v", err)
	}
	if err := store.BeginProcessing(ctx, "session-1", "host-1", testBase); err != nil {
		t.Fatalf("begin processing: %v", err)
	}

	if err := store.ForceResetPhase(ctx, "session-1", "host-1", testBase); err != nil {
		t.Fatalf("force reset phase: %v", err)
	}

	sess, err := store.GetSession(ctx, "session-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.TurnPhase != domain.TurnPhaseWaiting {
		t.Fatalf("expected waiting phase, got %v", sess.TurnPhase)
	}
	if sess.CurrentTurn != 1 {
		t.Fatalf("expected force reset to keep turn 1, got %d", sess.CurrentTurn)
	}
	if sess.TurnDeadline != nil {
		t.Fatalf("expected deadline cleared, got %v", sess.TurnDeadline)
	}
}

func TestForceResetPhaseRejectsIdleSession(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	mustCreateSession(t, store, testSession("session-1", "host-1"))

	err := store.ForceResetPhase(ctx, "session-1", "host-1", testBase)
	if !errors.Is(err, storage.ErrWrongPhase) {
		t.Fatalf("expected ErrWrongPhase, got %v", err)
	}
}
