package repository

import (
	"context"
	"testing"
	"time"

	"couple-games-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySeedsSyntheticPartner(t *testing.T) {
	store := NewMemory()

	partner, err := store.GetUser(context.Background(), SyntheticPartnerID)
	require.NoError(t, err)
	assert.Equal(t, SyntheticPartnerID, partner.ID)
	assert.Equal(t, 25, partner.GamesPlayed)
	assert.Equal(t, 85, partner.SyncScore)
	require.NotNil(t, partner.TelegramID)
	assert.Equal(t, "test_partner_999", *partner.TelegramID)
}

func TestMemoryUserLookupAndUpdate(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	created, err := store.CreateUser(ctx, &models.User{Username: "alice", Avatar: "1"})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	byName, err := store.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)

	_, err = store.GetUser(ctx, 12345)
	assert.ErrorIs(t, err, ErrNotFound)

	partnerID := SyntheticPartnerID
	updated, err := store.UpdateUser(ctx, created.ID, UserUpdate{PartnerID: &partnerID})
	require.NoError(t, err)
	require.NotNil(t, updated.PartnerID)
	assert.Equal(t, SyntheticPartnerID, *updated.PartnerID)
	// Untouched fields survive a partial update
	assert.Equal(t, "alice", updated.Username)
}

func TestMemorySearchIsCaseInsensitive(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	_, err := store.CreateUser(ctx, &models.User{Username: "Alice", Avatar: "0"})
	require.NoError(t, err)

	users, err := store.SearchUsersByUsername(ctx, "ali")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Alice", users[0].Username)
}

func TestMemoryReturnsCopies(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	created, err := store.CreateUser(ctx, &models.User{Username: "alice", Avatar: "0"})
	require.NoError(t, err)

	created.Username = "mutated"
	fresh, err := store.GetUser(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", fresh.Username)
}

func TestMemoryActiveRoomForUser(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	room, err := store.CreateRoom(ctx, &models.GameRoom{
		Player1ID:     1,
		Player2ID:     2,
		GameType:      models.GameTypeSync,
		CurrentPlayer: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusWaiting, room.Status)

	// Waiting rooms are not active
	_, err = store.ActiveRoomForUser(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	status := models.RoomStatusActive
	_, err = store.UpdateRoom(ctx, room.ID, RoomUpdate{Status: &status})
	require.NoError(t, err)

	active, err := store.ActiveRoomForUser(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, room.ID, active.ID)

	_, err = store.ActiveRoomForUser(ctx, 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryAnswerFor(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	_, err := store.CreateAnswer(ctx, &models.GameAnswer{
		RoomID:     7,
		PlayerID:   1,
		QuestionID: "s1",
		Answer:     "Pizza",
	})
	require.NoError(t, err)

	answer, err := store.AnswerFor(ctx, 7, 1, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Pizza", answer.Answer)

	_, err = store.AnswerFor(ctx, 7, 2, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.AnswerFor(ctx, 7, 1, "s2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryPartnerInvitationRespondedAt(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	inv, err := store.CreatePartnerInvitation(ctx, &models.PartnerInvitation{FromUserID: 1, ToUserID: 2})
	require.NoError(t, err)
	assert.Equal(t, models.InvitationPending, inv.Status)
	assert.Nil(t, inv.RespondedAt)

	status := models.InvitationDeclined
	updated, err := store.UpdatePartnerInvitation(ctx, inv.ID, InvitationUpdate{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, models.InvitationDeclined, updated.Status)
	assert.NotNil(t, updated.RespondedAt)
}

func TestMemoryGameInvitationDefaultExpiry(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	inv, err := store.CreateGameInvitation(ctx, &models.GameInvitation{
		FromUserID: 1,
		ToUserID:   2,
		GameType:   models.GameTypeSync,
	})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), inv.ExpiresAt, 5*time.Second)
}

func TestMemoryExpireGameInvitations(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	stale, err := store.CreateGameInvitation(ctx, &models.GameInvitation{
		FromUserID: 1,
		ToUserID:   2,
		GameType:   models.GameTypeSync,
		ExpiresAt:  time.Now().Add(-time.Minute),
	})
	require.NoError(t, err)
	fresh, err := store.CreateGameInvitation(ctx, &models.GameInvitation{
		FromUserID: 1,
		ToUserID:   2,
		GameType:   models.GameTypeTruthOrDare,
		ExpiresAt:  time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	// Expired invitations are filtered even before the sweep runs
	pending, err := store.PendingGameInvitationsFor(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, fresh.ID, pending[0].ID)

	require.NoError(t, store.ExpireGameInvitations(ctx, time.Now()))

	swept, err := store.GetGameInvitation(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationExpired, swept.Status)
	assert.NotNil(t, swept.RespondedAt)

	kept, err := store.GetGameInvitation(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationPending, kept.Status)
}

func TestMemoryAcceptedUnlinkedGameInvitation(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	inv, err := store.CreateGameInvitation(ctx, &models.GameInvitation{
		FromUserID: 1,
		ToUserID:   2,
		GameType:   models.GameTypeSync,
	})
	require.NoError(t, err)

	// Pending invitations do not qualify
	_, err = store.AcceptedUnlinkedGameInvitation(ctx, 1, 2, models.GameTypeSync)
	assert.ErrorIs(t, err, ErrNotFound)

	status := models.InvitationAccepted
	_, err = store.UpdateGameInvitation(ctx, inv.ID, InvitationUpdate{Status: &status})
	require.NoError(t, err)

	found, err := store.AcceptedUnlinkedGameInvitation(ctx, 1, 2, models.GameTypeSync)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, found.ID)

	// Linking a room consumes the invitation for this lookup
	roomID := int64(10)
	_, err = store.UpdateGameInvitation(ctx, inv.ID, InvitationUpdate{RoomID: &roomID})
	require.NoError(t, err)
	_, err = store.AcceptedUnlinkedGameInvitation(ctx, 1, 2, models.GameTypeSync)
	assert.ErrorIs(t, err, ErrNotFound)
}
