package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"couple-games-backend/internal/models"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

// UserUpdate describes a partial update of a user. Nil fields are left
// unchanged.
type UserUpdate struct {
	Username    *string
	FirstName   *string
	LastName    *string
	Avatar      *string
	PartnerID   *int64
	GamesPlayed *int
	SyncScore   *int
}

// RoomUpdate describes a partial update of a game room. GameData, when
// non-nil, replaces the stored payload wholesale; callers supply a complete,
// internally consistent state on every write.
type RoomUpdate struct {
	Status        *string
	CurrentPlayer *int64
	GameData      json.RawMessage
}

// InvitationUpdate describes a status transition on an invitation. The store
// stamps RespondedAt whenever Status moves out of pending.
type InvitationUpdate struct {
	Status *string
	RoomID *int64
}

// Storage is the single source of truth for users, rooms, answers and
// invitations. The in-memory implementation is the reference; Postgres backs
// the same contract for durable deployments.
type Storage interface {
	// Users
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID string) (*models.User, error)
	UpdateUser(ctx context.Context, id int64, update UserUpdate) (*models.User, error)
	SearchUsersByUsername(ctx context.Context, partial string) ([]*models.User, error)

	// Game rooms
	CreateRoom(ctx context.Context, room *models.GameRoom) (*models.GameRoom, error)
	GetRoom(ctx context.Context, id int64) (*models.GameRoom, error)
	UpdateRoom(ctx context.Context, id int64, update RoomUpdate) (*models.GameRoom, error)
	ActiveRoomForUser(ctx context.Context, userID int64) (*models.GameRoom, error)
	RoomsForUser(ctx context.Context, userID int64) ([]*models.GameRoom, error)

	// Game answers
	CreateAnswer(ctx context.Context, answer *models.GameAnswer) (*models.GameAnswer, error)
	AnswersForRoom(ctx context.Context, roomID int64) ([]*models.GameAnswer, error)
	AnswerFor(ctx context.Context, roomID, playerID int64, questionID string) (*models.GameAnswer, error)

	// Partner invitations
	CreatePartnerInvitation(ctx context.Context, inv *models.PartnerInvitation) (*models.PartnerInvitation, error)
	GetPartnerInvitation(ctx context.Context, id int64) (*models.PartnerInvitation, error)
	PendingPartnerInvitationsFor(ctx context.Context, toUserID int64) ([]*models.PartnerInvitation, error)
	PendingPartnerInvitationsFrom(ctx context.Context, fromUserID int64) ([]*models.PartnerInvitation, error)
	UpdatePartnerInvitation(ctx context.Context, id int64, update InvitationUpdate) (*models.PartnerInvitation, error)

	// Game invitations
	CreateGameInvitation(ctx context.Context, inv *models.GameInvitation) (*models.GameInvitation, error)
	GetGameInvitation(ctx context.Context, id int64) (*models.GameInvitation, error)
	PendingGameInvitationsFor(ctx context.Context, toUserID int64) ([]*models.GameInvitation, error)
	AcceptedUnlinkedGameInvitation(ctx context.Context, fromUserID, toUserID int64, gameType string) (*models.GameInvitation, error)
	UpdateGameInvitation(ctx context.Context, id int64, update InvitationUpdate) (*models.GameInvitation, error)
	ExpireGameInvitations(ctx context.Context, now time.Time) error
}
