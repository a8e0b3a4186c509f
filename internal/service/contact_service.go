package service

import (
	"context"
	"fmt"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/events"
	"github.com/damoang/angple-messenger/internal/repository"
)

// ContactService runs the invitation lifecycle and contact listings
type ContactService struct {
	contacts *repository.ContactRepository
	profiles *repository.ProfileRepository
	statuses *repository.StatusRepository
	bus      *events.Bus
}

// NewContactService creates a new ContactService. bus may be nil.
func NewContactService(contacts *repository.ContactRepository, profiles *repository.ProfileRepository, statuses *repository.StatusRepository, bus *events.Bus) *ContactService {
	if bus == nil {
		bus = events.NewBus()
	}
	return &ContactService{contacts: contacts, profiles: profiles, statuses: statuses, bus: bus}
}

// SendInvitation invites req.ToUserID. A pending invitation for the same
// ordered pair yields common.ErrDuplicateInvitation.
func (s *ContactService) SendInvitation(ctx context.Context, scope domain.Scope, userID string, req *domain.SendInvitationRequest) (*domain.ContactInvitation, error) {
	if userID == "" {
		return nil, common.ErrUnauthenticated
	}
	if req.ToUserID == "" || req.ToUserID == userID {
		return nil, fmt.Errorf("%w: invalid invitee", common.ErrInvalidInput)
	}
	inv, err := s.contacts.CreateInvitation(ctx, &domain.ContactInvitation{
		FromUserID: userID,
		FromName:   s.profiles.DisplayName(ctx, userID),
		ToUserID:   req.ToUserID,
		Message:    req.Message,
	})
	if err != nil {
		return nil, err
	}
	// 알림은 요청 경로 밖에서
	s.bus.PublishAsync(events.TopicInvitationSent, scope, &events.InvitationPayload{Invitation: inv})
	return inv, nil
}

func (s *ContactService) respond(ctx context.Context, userID, invitationID string, status domain.InvitationStatus) (*domain.ContactInvitation, error) {
	if userID == "" {
		return nil, common.ErrUnauthenticated
	}
	inv, err := s.contacts.FindInvitation(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if inv.ToUserID != userID {
		return nil, fmt.Errorf("%w: only the invitee may respond", common.ErrForbidden)
	}
	return s.contacts.Respond(ctx, invitationID, status)
}

// AcceptInvitation accepts and creates the two mirrored contact rows
func (s *ContactService) AcceptInvitation(ctx context.Context, scope domain.Scope, userID, invitationID string) ([]*domain.Contact, error) {
	inv, err := s.respond(ctx, userID, invitationID, domain.InvitationAccepted)
	if err != nil {
		return nil, err
	}
	pair, err := s.contacts.CreateMirroredContacts(ctx, inv,
		s.profiles.DisplayName(ctx, inv.FromUserID),
		s.profiles.DisplayName(ctx, inv.ToUserID),
	)
	if err != nil {
		return nil, err
	}
	s.bus.Publish(events.TopicInvitationAccepted, scope, &events.InvitationPayload{Invitation: inv})
	return pair, nil
}

// DeclineInvitation closes the invitation without creating contacts
func (s *ContactService) DeclineInvitation(ctx context.Context, userID, invitationID string) (*domain.ContactInvitation, error) {
	return s.respond(ctx, userID, invitationID, domain.InvitationDeclined)
}

// ListInvitations returns invitations sent to or by the user
func (s *ContactService) ListInvitations(ctx context.Context, userID string) ([]*domain.ContactInvitation, error) {
	if userID == "" {
		return nil, common.ErrUnauthenticated
	}
	return s.contacts.FindInvitationsFor(ctx, userID)
}

// ListContacts returns all of the user's contact rows
func (s *ContactService) ListContacts(ctx context.Context, userID string) ([]*domain.Contact, error) {
	if userID == "" {
		return nil, common.ErrUnauthenticated
	}
	return s.contacts.FindContacts(ctx, userID)
}

// SavedContacts filters contacts of type saved
func (s *ContactService) SavedContacts(ctx context.Context, userID string) ([]*domain.Contact, error) {
	all, err := s.ListContacts(ctx, userID)
	if err != nil {
		return nil, err
	}
	return FilterSaved(all), nil
}

// FilterSaved keeps the contacts of type saved
func FilterSaved(all []*domain.Contact) []*domain.Contact {
	out := make([]*domain.Contact, 0, len(all))
	for _, c := range all {
		if c.Type == domain.ContactTypeSaved {
			out = append(out, c)
		}
	}
	return out
}

// WorkContacts lists the company's members other than userID with presence
func (s *ContactService) WorkContacts(ctx context.Context, scope domain.Scope, userID string) ([]*domain.WorkContact, error) {
	if userID == "" {
		return nil, common.ErrUnauthenticated
	}
	members, err := s.profiles.FindMembers(ctx, scope)
	if err != nil {
		return nil, err
	}
	statuses, err := s.statuses.FindCompanyStatuses(ctx, scope)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.WorkContact, 0, len(members))
	for _, m := range members {
		if m.UserID == userID {
			continue
		}
		out = append(out, &domain.WorkContact{
			UserID:       m.UserID,
			DisplayName:  m.DisplayName,
			Email:        m.Email,
			DepartmentID: m.DepartmentID,
			RoleID:       m.RoleID,
			Status:       statuses[m.UserID],
		})
	}
	return out, nil
}

// DeleteContact removes one of the user's contact rows
func (s *ContactService) DeleteContact(ctx context.Context, userID, contactID string) error {
	if userID == "" {
		return common.ErrUnauthenticated
	}
	return s.contacts.DeleteContact(ctx, userID, contactID)
}

// Subscribe fires fn when the user's contacts or any invitation change
func (s *ContactService) Subscribe(userID string, fn func()) func() {
	stopContacts := s.contacts.SubscribeContacts(userID, fn)
	stopInvitations := s.contacts.SubscribeInvitations(fn)
	return func() {
		stopContacts()
		stopInvitations()
	}
}
