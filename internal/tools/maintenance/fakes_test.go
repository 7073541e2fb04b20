package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/domain"
)

// fakeSweepStore satisfies sweepStore with injectable function fields for
// methods exercised by tests. Methods without an injectable field return
// "not implemented".
type fakeSweepStore struct {
	listActive     func(ctx context.Context) ([]domain.Session, error)
	markInactive   func(ctx context.Context, cutoff time.Time) (int64, error)
	removeOrphaned func(ctx context.Context) (int64, error)
	removeUser     func(ctx context.Context, userID string, at time.Time) (int64, error)
	forceReset     func(ctx context.Context, sessionID, hostUserID string, at time.Time) error

	closeErr error
	closed   bool
}

func (f *fakeSweepStore) ListActiveSessions(ctx context.Context) ([]domain.Session, error) {
	if f.listActive != nil {
		return f.listActive(ctx)
	}
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeSweepStore) MarkInactiveSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	if f.markInactive != nil {
		return f.markInactive(ctx, cutoff)
	}
	return 0, fmt.Errorf("not implemented")
}

func (f *fakeSweepStore) RemoveOrphanedSessions(ctx context.Context) (int64, error) {
	if f.removeOrphaned != nil {
		return f.removeOrphaned(ctx)
	}
	return 0, fmt.Errorf("not implemented")
}

func (f *fakeSweepStore) RemoveUserFromAllSessions(ctx context.Context, userID string, at time.Time) (int64, error) {
	if f.removeUser != nil {
		return f.removeUser(ctx, userID, at)
	}
	return 0, fmt.Errorf("not implemented")
}

func (f *fakeSweepStore) ListDueAutoAdvance(_ context.Context, _ time.Time) ([]domain.Session, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeSweepStore) ForceResetPhase(ctx context.Context, sessionID, hostUserID string, at time.Time) error {
	if f.forceReset != nil {
		return f.forceReset(ctx, sessionID, hostUserID, at)
	}
	return fmt.Errorf("not implemented")
}

func (f *fakeSweepStore) Close() error {
	f.closed = true
	return f.closeErr
}
