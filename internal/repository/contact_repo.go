package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/tree"
)

// ContactRepository handles saved contacts, invitations and the pending-pair guard
type ContactRepository struct {
	store *tree.Store
}

// NewContactRepository creates a new ContactRepository
func NewContactRepository(store *tree.Store) *ContactRepository {
	return &ContactRepository{store: store}
}

// CreateInvitation claims the (from, to) pending slot and stores the invitation.
// It fails with common.ErrDuplicateInvitation while an earlier invitation for
// the same ordered pair is still pending.
func (r *ContactRepository) CreateInvitation(ctx context.Context, inv *domain.ContactInvitation) (*domain.ContactInvitation, error) {
	inv.ID = r.store.NewKey()
	inv.Status = domain.InvitationPending
	inv.CreatedAt = r.store.Now()

	err := r.store.Transact(ctx, domain.PendingInvitationPath(inv.FromUserID, inv.ToUserID), func(cur json.RawMessage) (interface{}, error) {
		if cur != nil {
			var existingID string
			if err := json.Unmarshal(cur, &existingID); err == nil && existingID != "" {
				existing, err := r.FindInvitation(ctx, existingID)
				if err == nil && existing.Status == domain.InvitationPending {
					return nil, common.ErrDuplicateInvitation
				}
			}
		}
		return inv.ID, nil
	})
	if err != nil {
		return nil, err
	}

	if err := r.store.Set(ctx, domain.InvitationPath(inv.ID), inv); err != nil {
		// release the guard so the sender can retry
		_ = r.store.Remove(ctx, domain.PendingInvitationPath(inv.FromUserID, inv.ToUserID))
		return nil, err
	}
	return inv, nil
}

// FindInvitation returns the invitation or common.ErrInvitationNotFound
func (r *ContactRepository) FindInvitation(ctx context.Context, invitationID string) (*domain.ContactInvitation, error) {
	var inv domain.ContactInvitation
	found, err := r.store.Get(ctx, domain.InvitationPath(invitationID), &inv)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", common.ErrInvitationNotFound, invitationID)
	}
	return &inv, nil
}

// FindInvitationsFor returns invitations sent to or by userID
func (r *ContactRepository) FindInvitationsFor(ctx context.Context, userID string) ([]*domain.ContactInvitation, error) {
	snaps, err := r.store.Children(ctx, domain.InvitationsPath())
	if err != nil {
		return nil, err
	}
	var out []*domain.ContactInvitation
	for _, s := range snaps {
		var inv domain.ContactInvitation
		if err := s.Decode(&inv); err != nil {
			continue
		}
		if inv.ToUserID == userID || inv.FromUserID == userID {
			out = append(out, &inv)
		}
	}
	return out, nil
}

// Respond moves a pending invitation to status. Any other current status fails
// with common.ErrInvitationClosed.
func (r *ContactRepository) Respond(ctx context.Context, invitationID string, status domain.InvitationStatus) (*domain.ContactInvitation, error) {
	var result domain.ContactInvitation
	err := r.store.Transact(ctx, domain.InvitationPath(invitationID), func(cur json.RawMessage) (interface{}, error) {
		if cur == nil {
			return nil, fmt.Errorf("%w: %s", common.ErrInvitationNotFound, invitationID)
		}
		var inv domain.ContactInvitation
		if err := json.Unmarshal(cur, &inv); err != nil {
			return nil, err
		}
		if inv.Status != domain.InvitationPending {
			return nil, fmt.Errorf("%w: %s is %s", common.ErrInvitationClosed, invitationID, inv.Status)
		}
		now := r.store.Now()
		inv.Status = status
		inv.RespondedAt = &now
		result = inv
		return &inv, nil
	})
	if err != nil {
		return nil, err
	}
	if err := r.store.Remove(ctx, domain.PendingInvitationPath(result.FromUserID, result.ToUserID)); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateMirroredContacts writes the A->B and B->A rows in one commit
func (r *ContactRepository) CreateMirroredContacts(ctx context.Context, inv *domain.ContactInvitation, fromName, toName string) ([]*domain.Contact, error) {
	now := r.store.Now()
	forward := &domain.Contact{
		ID:            r.store.NewKey(),
		UserID:        inv.FromUserID,
		ContactUserID: inv.ToUserID,
		DisplayName:   toName,
		Type:          domain.ContactTypeSaved,
		Status:        domain.InvitationAccepted,
		InvitationID:  inv.ID,
		CreatedAt:     now,
	}
	backward := &domain.Contact{
		ID:            r.store.NewKey(),
		UserID:        inv.ToUserID,
		ContactUserID: inv.FromUserID,
		DisplayName:   fromName,
		Type:          domain.ContactTypeSaved,
		Status:        domain.InvitationAccepted,
		InvitationID:  inv.ID,
		CreatedAt:     now,
	}
	err := r.store.Commit(ctx,
		tree.SetOp(domain.ContactPath(forward.UserID, forward.ID), forward),
		tree.SetOp(domain.ContactPath(backward.UserID, backward.ID), backward),
	)
	if err != nil {
		return nil, err
	}
	return []*domain.Contact{forward, backward}, nil
}

// FindContacts returns every contact row owned by userID
func (r *ContactRepository) FindContacts(ctx context.Context, userID string) ([]*domain.Contact, error) {
	snaps, err := r.store.Children(ctx, domain.ContactsPath(userID))
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Contact, 0, len(snaps))
	for _, s := range snaps {
		var c domain.Contact
		if err := s.Decode(&c); err != nil {
			continue
		}
		out = append(out, &c)
	}
	return out, nil
}

// DeleteContact removes one contact row
func (r *ContactRepository) DeleteContact(ctx context.Context, userID, contactID string) error {
	return r.store.Remove(ctx, domain.ContactPath(userID, contactID))
}

// SubscribeContacts calls fn on changes to the user's contacts
func (r *ContactRepository) SubscribeContacts(userID string, fn func()) func() {
	return r.store.Watch(domain.ContactsPath(userID), func(string) { fn() })
}

// SubscribeInvitations calls fn on any invitation change
func (r *ContactRepository) SubscribeInvitations(fn func()) func() {
	return r.store.Watch(domain.InvitationsPath(), func(string) { fn() })
}
