package maintenance

import (
	"context"
	"time"

	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/domain"
	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/storage"
)

// sweepStore is the slice of the coordinator store the maintenance command
// uses, with a Close method for resource cleanup.
type sweepStore interface {
	storage.CleanupStore
	ListActiveSessions(ctx context.Context) ([]domain.Session, error)
	ForceResetPhase(ctx context.Context, sessionID, hostUserID string, at time.Time) error
	Close() error
}
