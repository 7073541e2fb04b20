package service

import (
	"context"
	"fmt"

	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/domain"
	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/invite"
	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/notify"
	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/storage"
	apperrors "github.com/Gaeto95/tavernoftaleslive-sub000/internal/platform/errors"
)

// CreateSession creates a session and seats its creator as the host member.
func (c *Coordinator) CreateSession(ctx context.Context, input domain.CreateSessionInput) (domain.Session, error) {
	sess, err := domain.CreateSession(input, c.now, c.newID)
	if err != nil {
		return domain.Session{}, err
	}

	if err := c.store.CreateSession(ctx, sess); err != nil {
		return domain.Session{}, fmt.Errorf("create session: %w", err)
	}

	host, err := domain.NewMember(domain.NewMemberInput{
		SessionID: sess.ID,
		UserID:    sess.HostUserID,
		Role:      domain.RoleHost,
	}, c.now)
	if err != nil {
		return domain.Session{}, fmt.Errorf("build host membership: %w", err)
	}
	if err := c.store.AddMember(ctx, host); err != nil {
		return domain.Session{}, fmt.Errorf("seat host: %w", err)
	}

	c.publish(ctx, notify.StreamSession, sess.ID, sess.CurrentTurn)
	return sess, nil
}

// GetSession loads one session by id.
func (c *Coordinator) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	return c.store.GetSession(ctx, sessionID)
}

// ListSessions returns the active sessions ordered by recent activity.
func (c *Coordinator) ListSessions(ctx context.Context) ([]domain.Session, error) {
	return c.store.ListActiveSessions(ctx)
}

// Snapshot returns the session's full coordination state plus derived
// turn progress in one consistent read.
func (c *Coordinator) Snapshot(ctx context.Context, sessionID string) (storage.Snapshot, error) {
	return c.store.Snapshot(ctx, sessionID)
}

// IssueJoinGrant mints a signed grant admitting one user to a private
// session. Only the session host may issue grants.
func (c *Coordinator) IssueJoinGrant(ctx context.Context, sessionID, hostUserID, inviteeUserID string) (string, error) {
	if c.grantSigner == nil {
		return "", apperrors.New(apperrors.CodeJoinGrantInvalid, "join grants are not configured")
	}

	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if sess.HostUserID != hostUserID {
		return "", storage.ErrNotHost
	}
	if !sess.Active {
		return "", storage.ErrSessionInactive
	}

	grant, err := invite.IssueJoinGrant(sessionID, inviteeUserID, *c.grantSigner)
	if err != nil {
		return "", fmt.Errorf("issue join grant: %w", err)
	}
	return grant, nil
}
