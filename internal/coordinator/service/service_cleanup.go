package service

import (
	"context"
	"time"
)

// MarkStaleSessions deactivates sessions idle longer than maxIdle.
// Returns the number of sessions deactivated.
func (c *Coordinator) MarkStaleSessions(ctx context.Context, maxIdle time.Duration) (int64, error) {
	cutoff := c.now().UTC().Add(-maxIdle)
	return c.store.MarkInactiveSessions(ctx, cutoff)
}

// PurgeOrphanedSessions deactivates sessions left with no host or player
// members. Returns the number of sessions deactivated.
func (c *Coordinator) PurgeOrphanedSessions(ctx context.Context) (int64, error) {
	return c.store.RemoveOrphanedSessions(ctx)
}

// EvictUser removes a user from every session they are a member of,
// applying normal leave semantics per session. Backs the logout path.
func (c *Coordinator) EvictUser(ctx context.Context, userID string) (int64, error) {
	return c.store.RemoveUserFromAllSessions(ctx, userID, c.now().UTC())
}
