package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"couple-games-backend/internal/models"
	"couple-games-backend/internal/questions"
	"couple-games-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// InvitationService manages partner pairing and game-start invitations,
// independent of live connectivity: invitations can be created and responded
// to while the other side is offline.
type InvitationService struct {
	storage   repository.Storage
	notifier  *Notifier
	registry  *Registry
	synthetic *SyntheticOpponent
	locks     *PairLocker
}

// NewInvitationService creates a new invitation service
func NewInvitationService(storage repository.Storage, notifier *Notifier, registry *Registry, synthetic *SyntheticOpponent, locks *PairLocker) *InvitationService {
	return &InvitationService{
		storage:   storage,
		notifier:  notifier,
		registry:  registry,
		synthetic: synthetic,
		locks:     locks,
	}
}

// CreatePartnerInvitation creates a pending partner invitation and notifies
// the recipient's live connections. A pending invitation in either direction
// between the two users blocks a new one.
func (s *InvitationService) CreatePartnerInvitation(ctx context.Context, fromUserID, toUserID int64) (*models.PartnerInvitation, error) {
	if fromUserID == toUserID {
		return nil, fmt.Errorf("%w: cannot invite yourself", ErrValidation)
	}
	fromUser, err := s.storage.GetUser(ctx, fromUserID)
	if err != nil {
		return nil, fmt.Errorf("%w: sender", ErrNotFound)
	}
	if _, err := s.storage.GetUser(ctx, toUserID); err != nil {
		return nil, fmt.Errorf("%w: recipient", ErrNotFound)
	}

	unlock := s.locks.Lock(fromUserID, toUserID)
	defer unlock()

	pending, err := s.storage.PendingPartnerInvitationsFor(ctx, toUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to check pending invitations: %w", err)
	}
	for _, inv := range pending {
		if inv.FromUserID == fromUserID {
			return nil, ErrDuplicateInvitation
		}
	}
	// Inverse direction counts as a duplicate too: the recipient already has
	// a pending invitation toward the sender.
	inverse, err := s.storage.PendingPartnerInvitationsFor(ctx, fromUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to check pending invitations: %w", err)
	}
	for _, inv := range inverse {
		if inv.FromUserID == toUserID {
			return nil, ErrDuplicateInvitation
		}
	}

	invitation, err := s.storage.CreatePartnerInvitation(ctx, &models.PartnerInvitation{
		FromUserID: fromUserID,
		ToUserID:   toUserID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create partner invitation: %w", err)
	}

	s.notifier.Notify(toUserID, &models.Notification{
		ID:           fmt.Sprintf("partner_pending_%d", invitation.ID),
		Type:         models.NotificationPartnerInvitationReceived,
		FromUser:     fromUser.Ref(),
		InvitationID: invitation.ID,
		CreatedAt:    invitation.CreatedAt,
	})

	return invitation, nil
}

// PendingPartnerInvitationsFor lists pending partner invitations addressed
// to the user.
func (s *InvitationService) PendingPartnerInvitationsFor(ctx context.Context, userID int64) ([]*models.PartnerInvitation, error) {
	return s.storage.PendingPartnerInvitationsFor(ctx, userID)
}

// PendingPartnerInvitationsFrom lists pending partner invitations sent by
// the user.
func (s *InvitationService) PendingPartnerInvitationsFrom(ctx context.Context, userID int64) ([]*models.PartnerInvitation, error) {
	return s.storage.PendingPartnerInvitationsFrom(ctx, userID)
}

// RespondToPartnerInvitation accepts or declines a pending partner
// invitation. Accept sets PartnerID symmetrically on both users and notifies
// both sides; either transition is terminal.
func (s *InvitationService) RespondToPartnerInvitation(ctx context.Context, invitationID int64, accept bool) error {
	invitation, err := s.storage.GetPartnerInvitation(ctx, invitationID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: invitation %d", ErrNotFound, invitationID)
	}
	if err != nil {
		return fmt.Errorf("failed to get invitation: %w", err)
	}

	// The pair on an invitation never changes, so locking after the first
	// read is safe; the status must be re-read under the lock because a
	// parallel respond may have consumed the invitation in between.
	unlock := s.locks.Lock(invitation.FromUserID, invitation.ToUserID)
	defer unlock()

	invitation, err = s.storage.GetPartnerInvitation(ctx, invitationID)
	if err != nil {
		return fmt.Errorf("failed to get invitation: %w", err)
	}
	if invitation.Status != models.InvitationPending {
		return fmt.Errorf("%w: invitation already responded to", ErrInvalidState)
	}

	if !accept {
		status := models.InvitationDeclined
		if _, err := s.storage.UpdatePartnerInvitation(ctx, invitationID, repository.InvitationUpdate{Status: &status}); err != nil {
			return fmt.Errorf("failed to update invitation: %w", err)
		}
		if toUser, err := s.storage.GetUser(ctx, invitation.ToUserID); err == nil {
			s.notifier.Notify(invitation.FromUserID, &models.Notification{
				ID:           fmt.Sprintf("partner_decline_%d", invitationID),
				Type:         models.NotificationPartnerDeclined,
				FromUser:     toUser.Ref(),
				InvitationID: invitationID,
			})
		}
		return nil
	}

	fromUser, err := s.storage.GetUser(ctx, invitation.FromUserID)
	if err != nil {
		return fmt.Errorf("%w: inviter", ErrNotFound)
	}
	toUser, err := s.storage.GetUser(ctx, invitation.ToUserID)
	if err != nil {
		return fmt.Errorf("%w: invitee", ErrNotFound)
	}
	// A user has at most one partner; accepting must not silently orphan an
	// existing pairing on either side.
	if fromUser.PartnerID != nil || toUser.PartnerID != nil {
		return fmt.Errorf("%w: one of the users already has a partner", ErrInvalidState)
	}

	// Pair first: if the pairing writes fail the invitation stays pending
	// and can be accepted again, instead of being accepted with no partners
	// set.
	if err := s.pairUsers(ctx, invitation.FromUserID, invitation.ToUserID); err != nil {
		return err
	}

	status := models.InvitationAccepted
	if _, err := s.storage.UpdatePartnerInvitation(ctx, invitationID, repository.InvitationUpdate{Status: &status}); err != nil {
		return fmt.Errorf("failed to update invitation: %w", err)
	}

	fromUser, _ = s.storage.GetUser(ctx, invitation.FromUserID)
	toUser, _ = s.storage.GetUser(ctx, invitation.ToUserID)

	s.notifier.Notify(invitation.FromUserID, &models.Notification{
		ID:      fmt.Sprintf("partner_update_%d", invitationID),
		Type:    models.NotificationPartnerUpdate,
		Partner: toUser,
	})
	s.notifier.Notify(invitation.ToUserID, &models.Notification{
		ID:      fmt.Sprintf("partner_update_accepted_%d", invitationID),
		Type:    models.NotificationPartnerUpdate,
		Partner: fromUser,
	})

	log.Info().
		Int64("from_user_id", invitation.FromUserID).
		Int64("to_user_id", invitation.ToUserID).
		Msg("Partner invitation accepted")

	return nil
}

// pairUsers sets PartnerID on both users; both writes or the pairing is not
// reported as done.
func (s *InvitationService) pairUsers(ctx context.Context, userA, userB int64) error {
	if _, err := s.storage.UpdateUser(ctx, userA, repository.UserUpdate{PartnerID: &userB}); err != nil {
		return fmt.Errorf("failed to set partner: %w", err)
	}
	if _, err := s.storage.UpdateUser(ctx, userB, repository.UserUpdate{PartnerID: &userA}); err != nil {
		return fmt.Errorf("failed to set partner: %w", err)
	}
	return nil
}

// PairWithUser is the legacy pairing entry point. Choosing the synthetic
// test partner pairs immediately and synchronously with no invitation
// object; any other target creates a regular partner invitation.
func (s *InvitationService) PairWithUser(ctx context.Context, userID, partnerID int64) (*models.User, *models.PartnerInvitation, error) {
	if s.synthetic.IsSynthetic(partnerID) {
		if _, err := s.storage.GetUser(ctx, userID); err != nil {
			return nil, nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
		}
		unlock := s.locks.Lock(userID, partnerID)
		defer unlock()
		if err := s.pairUsers(ctx, userID, partnerID); err != nil {
			return nil, nil, err
		}
		user, err := s.storage.GetUser(ctx, userID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get user: %w", err)
		}
		log.Info().Int64("user_id", userID).Msg("Paired with synthetic partner")
		return user, nil, nil
	}

	invitation, err := s.CreatePartnerInvitation(ctx, userID, partnerID)
	if err != nil {
		return nil, nil, err
	}
	return nil, invitation, nil
}

// CreateGameInvitation creates a pending game invitation between current
// partners and notifies the recipient.
func (s *InvitationService) CreateGameInvitation(ctx context.Context, fromUserID, toUserID int64, gameType string, expiresAt time.Time) (*models.GameInvitation, error) {
	if gameType != models.GameTypeTruthOrDare && gameType != models.GameTypeSync {
		return nil, fmt.Errorf("%w: unknown game type %q", ErrValidation, gameType)
	}

	fromUser, err := s.storage.GetUser(ctx, fromUserID)
	if err != nil {
		return nil, fmt.Errorf("%w: sender", ErrNotFound)
	}
	toUser, err := s.storage.GetUser(ctx, toUserID)
	if err != nil {
		return nil, fmt.Errorf("%w: recipient", ErrNotFound)
	}
	if fromUser.PartnerID == nil || *fromUser.PartnerID != toUser.ID ||
		toUser.PartnerID == nil || *toUser.PartnerID != fromUser.ID {
		return nil, ErrNotPartnered
	}

	unlock := s.locks.Lock(fromUserID, toUserID)
	defer unlock()

	if err := s.storage.ExpireGameInvitations(ctx, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to sweep expired invitations: %w", err)
	}
	for _, dir := range [][2]int64{{fromUserID, toUserID}, {toUserID, fromUserID}} {
		pending, err := s.storage.PendingGameInvitationsFor(ctx, dir[1])
		if err != nil {
			return nil, fmt.Errorf("failed to check pending invitations: %w", err)
		}
		for _, inv := range pending {
			if inv.FromUserID == dir[0] && inv.GameType == gameType {
				return nil, ErrDuplicateInvitation
			}
		}
	}

	invitation, err := s.storage.CreateGameInvitation(ctx, &models.GameInvitation{
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		GameType:   gameType,
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create game invitation: %w", err)
	}

	s.notifier.Notify(toUserID, &models.Notification{
		ID:           fmt.Sprintf("game_inv_%d", invitation.ID),
		Type:         models.NotificationGameInvitation,
		FromUser:     fromUser.Ref(),
		GameType:     gameType,
		InvitationID: invitation.ID,
		CreatedAt:    invitation.CreatedAt,
	})

	return invitation, nil
}

// PendingGameInvitationsFor lists pending game invitations for the user,
// sweeping lazily expired ones first so nothing stale is trusted.
func (s *InvitationService) PendingGameInvitationsFor(ctx context.Context, userID int64) ([]*models.GameInvitation, error) {
	if err := s.storage.ExpireGameInvitations(ctx, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to sweep expired invitations: %w", err)
	}
	return s.storage.PendingGameInvitationsFor(ctx, userID)
}

// RespondToGameInvitation accepts or declines a pending game invitation. On
// accept, exactly one game room is created and linked, and both participants
// are told a room now exists: the inviter may be on a completely different
// connection than the one that sent the invitation.
func (s *InvitationService) RespondToGameInvitation(ctx context.Context, invitationID int64, accept bool) (*models.GameRoom, error) {
	if err := s.storage.ExpireGameInvitations(ctx, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to sweep expired invitations: %w", err)
	}

	invitation, err := s.storage.GetGameInvitation(ctx, invitationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: invitation %d", ErrNotFound, invitationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}

	// Re-read under the pair lock: two parallel accepts must not both see
	// a pending invitation and create two rooms for it.
	unlock := s.locks.Lock(invitation.FromUserID, invitation.ToUserID)
	defer unlock()

	invitation, err = s.storage.GetGameInvitation(ctx, invitationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	if invitation.Status == models.InvitationExpired {
		return nil, fmt.Errorf("%w: invitation has expired", ErrInvalidState)
	}
	if invitation.Status != models.InvitationPending {
		return nil, fmt.Errorf("%w: invitation already responded to", ErrInvalidState)
	}

	if !accept {
		status := models.InvitationDeclined
		if _, err := s.storage.UpdateGameInvitation(ctx, invitationID, repository.InvitationUpdate{Status: &status}); err != nil {
			return nil, fmt.Errorf("failed to update invitation: %w", err)
		}
		if toUser, err := s.storage.GetUser(ctx, invitation.ToUserID); err == nil {
			s.notifier.Notify(invitation.FromUserID, &models.Notification{
				ID:           fmt.Sprintf("game_decline_%d", invitationID),
				Type:         models.NotificationGameDeclined,
				FromUser:     toUser.Ref(),
				GameType:     invitation.GameType,
				InvitationID: invitationID,
			})
		}
		return nil, nil
	}

	gameData, err := initialGameData(invitation.GameType)
	if err != nil {
		return nil, err
	}
	room, err := s.storage.CreateRoom(ctx, &models.GameRoom{
		Player1ID:     invitation.FromUserID,
		Player2ID:     invitation.ToUserID,
		GameType:      invitation.GameType,
		CurrentPlayer: invitation.FromUserID,
		GameData:      gameData,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create game room: %w", err)
	}

	status := models.InvitationAccepted
	if _, err := s.storage.UpdateGameInvitation(ctx, invitationID, repository.InvitationUpdate{
		Status: &status,
		RoomID: &room.ID,
	}); err != nil {
		return nil, fmt.Errorf("failed to update invitation: %w", err)
	}

	if toUser, err := s.storage.GetUser(ctx, invitation.ToUserID); err == nil {
		s.notifier.Notify(invitation.FromUserID, &models.Notification{
			ID:           fmt.Sprintf("game_accept_%d", invitationID),
			Type:         models.NotificationGameAccepted,
			FromUser:     toUser.Ref(),
			GameType:     invitation.GameType,
			InvitationID: invitationID,
			RoomID:       room.ID,
		})
	}

	// Neither player has joined the room yet, so game_start goes to the
	// user-level connections of both participants.
	player1, _ := s.storage.GetUser(ctx, room.Player1ID)
	player2, _ := s.storage.GetUser(ctx, room.Player2ID)
	gameStart := map[string]any{
		"type":     "game_start",
		"roomId":   room.ID,
		"gameType": room.GameType,
		"players": map[string]any{
			"player1": player1,
			"player2": player2,
		},
	}
	s.registry.SendToUser(room.Player1ID, gameStart)
	s.registry.SendToUser(room.Player2ID, gameStart)

	log.Info().
		Int64("invitation_id", invitationID).
		Int64("room_id", room.ID).
		Str("game_type", room.GameType).
		Msg("Game invitation accepted")

	return room, nil
}

// CreateRoomDirect creates a game room outside the invitation flow. Allowed
// only against the synthetic partner, or as the follow-up to an invitation
// already accepted but not yet linked to a room.
func (s *InvitationService) CreateRoomDirect(ctx context.Context, player1ID, player2ID int64, gameType string, currentPlayer int64) (*models.GameRoom, error) {
	if gameType != models.GameTypeTruthOrDare && gameType != models.GameTypeSync {
		return nil, fmt.Errorf("%w: unknown game type %q", ErrValidation, gameType)
	}
	if currentPlayer == 0 {
		currentPlayer = player1ID
	}

	unlock := s.locks.Lock(player1ID, player2ID)
	defer unlock()

	gameData, err := initialGameData(gameType)
	if err != nil {
		return nil, err
	}
	newRoom := &models.GameRoom{
		Player1ID:     player1ID,
		Player2ID:     player2ID,
		GameType:      gameType,
		CurrentPlayer: currentPlayer,
		GameData:      gameData,
	}

	if s.synthetic.IsSynthetic(player2ID) {
		room, err := s.storage.CreateRoom(ctx, newRoom)
		if err != nil {
			return nil, fmt.Errorf("failed to create game room: %w", err)
		}
		return room, nil
	}

	// For real partners, an invitation must already have been accepted and
	// not yet produced a room.
	invitation, err := s.storage.AcceptedUnlinkedGameInvitation(ctx, player1ID, player2ID, gameType)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: game invitation required", ErrInvalidState)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check invitations: %w", err)
	}

	room, err := s.storage.CreateRoom(ctx, newRoom)
	if err != nil {
		return nil, fmt.Errorf("failed to create game room: %w", err)
	}
	if _, err := s.storage.UpdateGameInvitation(ctx, invitation.ID, repository.InvitationUpdate{RoomID: &room.ID}); err != nil {
		return nil, fmt.Errorf("failed to link invitation: %w", err)
	}
	return room, nil
}

// initialGameData builds the zero state for a new room of the given type
func initialGameData(gameType string) (json.RawMessage, error) {
	var state any
	switch gameType {
	case models.GameTypeTruthOrDare:
		state = models.TruthOrDareState{}
	case models.GameTypeSync:
		state = models.SyncState{TotalQuestions: questions.SyncCount()}
	default:
		return nil, fmt.Errorf("%w: unknown game type %q", ErrValidation, gameType)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal game data: %w", err)
	}
	return data, nil
}
