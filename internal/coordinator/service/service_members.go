package service

import (
	"context"

	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/domain"
	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/invite"
	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/notify"
	apperrors "github.com/Gaeto95/tavernoftaleslive-sub000/internal/platform/errors"
)

// JoinSessionInput describes a user joining a session.
type JoinSessionInput struct {
	SessionID   string
	UserID      string
	Role        domain.Role
	CharacterID string
	// Password is checked against private sessions when no grant is presented.
	Password string
	// JoinGrant is a signed invite token that substitutes for the password.
	JoinGrant string
}

// JoinSession admits a user as a player or observer. Private sessions
// require the session password or a valid join grant; capacity and duplicate
// membership are settled by the store at commit time.
func (c *Coordinator) JoinSession(ctx context.Context, input JoinSessionInput) (domain.Member, error) {
	if input.Role == domain.RoleHost {
		return domain.Member{}, apperrors.New(apperrors.CodeMemberInvalidRole, "hosts are seated at session creation")
	}

	member, err := domain.NewMember(domain.NewMemberInput{
		SessionID:   input.SessionID,
		UserID:      input.UserID,
		Role:        input.Role,
		CharacterID: input.CharacterID,
	}, c.now)
	if err != nil {
		return domain.Member{}, err
	}

	sess, err := c.store.GetSession(ctx, member.SessionID)
	if err != nil {
		return domain.Member{}, err
	}
	if sess.Visibility == domain.VisibilityPrivate {
		if err := c.authorizePrivateJoin(sess, input); err != nil {
			return domain.Member{}, err
		}
	}

	if err := c.store.AddMember(ctx, member); err != nil {
		return domain.Member{}, err
	}

	c.publish(ctx, notify.StreamMembers, member.SessionID, sess.CurrentTurn)
	return member, nil
}

// authorizePrivateJoin accepts either a valid join grant or the session
// password. The access check is advisory; AddMember re-checks the session
// still exists and is active at commit time.
func (c *Coordinator) authorizePrivateJoin(sess domain.Session, input JoinSessionInput) error {
	if input.JoinGrant != "" {
		if c.grantVerifier == nil {
			return apperrors.New(apperrors.CodeJoinGrantInvalid, "join grants are not configured")
		}
		_, err := invite.ValidateJoinGrant(input.JoinGrant, invite.Expectation{
			SessionID: sess.ID,
			UserID:    input.UserID,
		}, *c.grantVerifier)
		return err
	}

	if err := domain.VerifyPassword(sess.PasswordHash, input.Password); err != nil {
		return apperrors.New(apperrors.CodeSessionBadPassword, "session password is incorrect")
	}
	return nil
}

// LeaveSession removes the user's membership. A departing host hands the
// session to the longest-standing player inside the same store transaction.
func (c *Coordinator) LeaveSession(ctx context.Context, sessionID, userID string) error {
	if err := c.store.RemoveMember(ctx, sessionID, userID, c.now().UTC()); err != nil {
		return err
	}
	c.publish(ctx, notify.StreamMembers, sessionID, 0)
	return nil
}

// SetReady toggles a player's ready flag.
func (c *Coordinator) SetReady(ctx context.Context, sessionID, userID string, ready bool) error {
	if err := c.store.SetReady(ctx, sessionID, userID, ready, c.now().UTC()); err != nil {
		return err
	}
	c.publish(ctx, notify.StreamMembers, sessionID, 0)
	return nil
}

// SwitchCharacter rebinds the member's character mid-session.
func (c *Coordinator) SwitchCharacter(ctx context.Context, sessionID, userID, characterID string) error {
	if err := c.store.SwitchCharacter(ctx, sessionID, userID, characterID, c.now().UTC()); err != nil {
		return err
	}
	c.publish(ctx, notify.StreamMembers, sessionID, 0)
	return nil
}

// ListMembers returns a session's membership ordered by join time.
func (c *Coordinator) ListMembers(ctx context.Context, sessionID string) ([]domain.Member, error) {
	return c.store.ListMembers(ctx, sessionID)
}
