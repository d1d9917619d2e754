package ledger

import (
	"context"
	"errors"
	"strings"

	"expense-tracker/models"
	"expense-tracker/store"

	"github.com/google/uuid"
)

// AcceptInvitation joins the invited group and marks the invitation accepted.
// The store applies both together, so a failed accept leaves the invitation
// pending and grants no membership.
func (c *Container) AcceptInvitation(ctx context.Context, id uuid.UUID) error {
	if _, err := c.answerable(ctx, id); err != nil {
		return err
	}

	err := c.store.AcceptInvitation(ctx, id, c.id.UserID)
	if err := c.answerFailed(ctx, err, "Error accepting invitation"); err != nil {
		return err
	}

	c.refreshInvitations(ctx)
	c.refreshGroups(ctx, true)
	c.info(ctx, "Invitation accepted", "You have joined the group.")
	return nil
}

func (c *Container) RejectInvitation(ctx context.Context, id uuid.UUID) error {
	if _, err := c.answerable(ctx, id); err != nil {
		return err
	}
	err := c.store.TransitionInvitation(ctx, id, models.InvitationRejected)
	if err := c.answerFailed(ctx, err, "Error rejecting invitation"); err != nil {
		return err
	}

	c.refreshInvitations(ctx)
	c.info(ctx, "Invitation rejected", "The invitation has been declined.")
	return nil
}

// answerable loads a pending invitation addressed to the caller.
func (c *Container) answerable(ctx context.Context, id uuid.UUID) (*models.Invitation, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	inv, err := c.store.GetInvitation(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, c.fail(ctx, "Error loading invitation", ErrNotFound)
		}
		return nil, c.fail(ctx, "Error loading invitation", remote("fetch invitation", err))
	}
	if !strings.EqualFold(inv.Email, c.id.Email) {
		return nil, c.fail(ctx, "Permission Denied", ErrPermissionDenied)
	}
	if inv.Status != models.InvitationPending {
		return nil, c.fail(ctx, "Invitation already answered", ErrInvalidTransition)
	}
	return inv, nil
}

// answerFailed maps the store error of an accept or reject.
func (c *Container) answerFailed(ctx context.Context, err error, title string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrConflict):
		return c.fail(ctx, title, ErrInvalidTransition)
	case isNotFound(err):
		return c.fail(ctx, title, ErrNotFound)
	default:
		return c.fail(ctx, title, remote("update invitation", err))
	}
}
