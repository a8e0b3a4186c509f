package repository

import (
	"context"
	"testing"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactRepository_PendingGuard(t *testing.T) {
	repo := NewContactRepository(setupTestStore(t))
	ctx := context.Background()

	inv, err := repo.CreateInvitation(ctx, &domain.ContactInvitation{FromUserID: "a", ToUserID: "b"})
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationPending, inv.Status)

	_, err = repo.CreateInvitation(ctx, &domain.ContactInvitation{FromUserID: "a", ToUserID: "b"})
	assert.ErrorIs(t, err, common.ErrDuplicateInvitation)

	// the reverse direction is a different pair
	_, err = repo.CreateInvitation(ctx, &domain.ContactInvitation{FromUserID: "b", ToUserID: "a"})
	require.NoError(t, err)

	// once answered the pair is free again
	_, err = repo.Respond(ctx, inv.ID, domain.InvitationDeclined)
	require.NoError(t, err)
	_, err = repo.CreateInvitation(ctx, &domain.ContactInvitation{FromUserID: "a", ToUserID: "b"})
	require.NoError(t, err)
}

func TestContactRepository_RespondOnlyOnce(t *testing.T) {
	repo := NewContactRepository(setupTestStore(t))
	ctx := context.Background()

	inv, err := repo.CreateInvitation(ctx, &domain.ContactInvitation{FromUserID: "a", ToUserID: "b"})
	require.NoError(t, err)

	got, err := repo.Respond(ctx, inv.ID, domain.InvitationAccepted)
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationAccepted, got.Status)
	assert.NotNil(t, got.RespondedAt)

	_, err = repo.Respond(ctx, inv.ID, domain.InvitationDeclined)
	assert.ErrorIs(t, err, common.ErrInvitationClosed)

	_, err = repo.Respond(ctx, "missing", domain.InvitationAccepted)
	assert.ErrorIs(t, err, common.ErrInvitationNotFound)
}

func TestContactRepository_MirroredContacts(t *testing.T) {
	repo := NewContactRepository(setupTestStore(t))
	ctx := context.Background()

	inv, err := repo.CreateInvitation(ctx, &domain.ContactInvitation{FromUserID: "a", ToUserID: "b"})
	require.NoError(t, err)
	pair, err := repo.CreateMirroredContacts(ctx, inv, "Alice", "Bob")
	require.NoError(t, err)
	require.Len(t, pair, 2)
	assert.NotEqual(t, pair[0].ID, pair[1].ID)

	aContacts, err := repo.FindContacts(ctx, "a")
	require.NoError(t, err)
	require.Len(t, aContacts, 1)
	assert.Equal(t, "b", aContacts[0].ContactUserID)
	assert.Equal(t, "Bob", aContacts[0].DisplayName)
	assert.Equal(t, domain.InvitationAccepted, aContacts[0].Status)

	bContacts, err := repo.FindContacts(ctx, "b")
	require.NoError(t, err)
	require.Len(t, bContacts, 1)
	assert.Equal(t, "a", bContacts[0].ContactUserID)

	invs, err := repo.FindInvitationsFor(ctx, "b")
	require.NoError(t, err)
	assert.Len(t, invs, 1)
}
