package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"couple-games-backend/internal/models"
)

// SyntheticPartnerID is the well-known id of the system-provided test
// partner seeded into every store.
const SyntheticPartnerID int64 = 999

// Memory is the reference in-memory Storage implementation. All state lives
// in maps guarded by a single RWMutex; ids are per-entity sequences.
type Memory struct {
	mu sync.RWMutex

	users              map[int64]*models.User
	rooms              map[int64]*models.GameRoom
	answers            map[int64]*models.GameAnswer
	partnerInvitations map[int64]*models.PartnerInvitation
	gameInvitations    map[int64]*models.GameInvitation

	nextUserID    int64
	nextRoomID    int64
	nextAnswerID  int64
	nextPartnerID int64
	nextGameInvID int64
}

// NewMemory creates an empty in-memory store with the synthetic test partner
// pre-seeded.
func NewMemory() *Memory {
	m := &Memory{
		users:              make(map[int64]*models.User),
		rooms:              make(map[int64]*models.GameRoom),
		answers:            make(map[int64]*models.GameAnswer),
		partnerInvitations: make(map[int64]*models.PartnerInvitation),
		gameInvitations:    make(map[int64]*models.GameInvitation),
		nextUserID:         1,
		nextRoomID:         1,
		nextAnswerID:       1,
		nextPartnerID:      1,
		nextGameInvID:      1,
	}
	m.seedSyntheticPartner()
	return m
}

func (m *Memory) seedSyntheticPartner() {
	telegramID := "test_partner_999"
	first := "Test"
	last := "Partner"
	m.users[SyntheticPartnerID] = &models.User{
		ID:          SyntheticPartnerID,
		TelegramID:  &telegramID,
		Username:    "Test Partner",
		FirstName:   &first,
		LastName:    &last,
		Avatar:      "0",
		GamesPlayed: 25,
		SyncScore:   85,
		CreatedAt:   time.Now(),
	}
}

func (m *Memory) CreateUser(_ context.Context, user *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := *user
	out.ID = m.nextUserID
	m.nextUserID++
	out.CreatedAt = time.Now()
	m.users[out.ID] = &out

	copied := out
	return &copied, nil
}

func (m *Memory) GetUser(_ context.Context, id int64) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *Memory) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) GetUserByTelegramID(_ context.Context, telegramID string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.users {
		if user.TelegramID != nil && *user.TelegramID == telegramID {
			copied := *user
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UpdateUser(_ context.Context, id int64, update UserUpdate) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if update.Username != nil {
		user.Username = *update.Username
	}
	if update.FirstName != nil {
		user.FirstName = update.FirstName
	}
	if update.LastName != nil {
		user.LastName = update.LastName
	}
	if update.Avatar != nil {
		user.Avatar = *update.Avatar
	}
	if update.PartnerID != nil {
		partnerID := *update.PartnerID
		user.PartnerID = &partnerID
	}
	if update.GamesPlayed != nil {
		user.GamesPlayed = *update.GamesPlayed
	}
	if update.SyncScore != nil {
		user.SyncScore = *update.SyncScore
	}
	copied := *user
	return &copied, nil
}

func (m *Memory) SearchUsersByUsername(_ context.Context, partial string) ([]*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(partial)
	var out []*models.User
	for _, user := range m.users {
		if strings.Contains(strings.ToLower(user.Username), needle) {
			copied := *user
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *Memory) CreateRoom(_ context.Context, room *models.GameRoom) (*models.GameRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := *room
	out.ID = m.nextRoomID
	m.nextRoomID++
	out.Status = models.RoomStatusWaiting
	out.CreatedAt = time.Now()
	m.rooms[out.ID] = &out

	copied := out
	return &copied, nil
}

func (m *Memory) GetRoom(_ context.Context, id int64) (*models.GameRoom, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room, ok := m.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *room
	return &copied, nil
}

func (m *Memory) UpdateRoom(_ context.Context, id int64, update RoomUpdate) (*models.GameRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	if update.Status != nil {
		room.Status = *update.Status
	}
	if update.CurrentPlayer != nil {
		room.CurrentPlayer = *update.CurrentPlayer
	}
	if update.GameData != nil {
		room.GameData = update.GameData
	}
	copied := *room
	return &copied, nil
}

func (m *Memory) ActiveRoomForUser(_ context.Context, userID int64) (*models.GameRoom, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, room := range m.rooms {
		if room.HasPlayer(userID) && room.Status == models.RoomStatusActive {
			copied := *room
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) RoomsForUser(_ context.Context, userID int64) ([]*models.GameRoom, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.GameRoom
	for _, room := range m.rooms {
		if room.HasPlayer(userID) {
			copied := *room
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *Memory) CreateAnswer(_ context.Context, answer *models.GameAnswer) (*models.GameAnswer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := *answer
	out.ID = m.nextAnswerID
	m.nextAnswerID++
	out.CreatedAt = time.Now()
	m.answers[out.ID] = &out

	copied := out
	return &copied, nil
}

func (m *Memory) AnswersForRoom(_ context.Context, roomID int64) ([]*models.GameAnswer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.GameAnswer
	for _, answer := range m.answers {
		if answer.RoomID == roomID {
			copied := *answer
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *Memory) AnswerFor(_ context.Context, roomID, playerID int64, questionID string) (*models.GameAnswer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, answer := range m.answers {
		if answer.RoomID == roomID && answer.PlayerID == playerID && answer.QuestionID == questionID {
			copied := *answer
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) CreatePartnerInvitation(_ context.Context, inv *models.PartnerInvitation) (*models.PartnerInvitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := *inv
	out.ID = m.nextPartnerID
	m.nextPartnerID++
	out.Status = models.InvitationPending
	out.CreatedAt = time.Now()
	out.RespondedAt = nil
	m.partnerInvitations[out.ID] = &out

	copied := out
	return &copied, nil
}

func (m *Memory) GetPartnerInvitation(_ context.Context, id int64) (*models.PartnerInvitation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inv, ok := m.partnerInvitations[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *inv
	return &copied, nil
}

func (m *Memory) PendingPartnerInvitationsFor(_ context.Context, toUserID int64) ([]*models.PartnerInvitation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.PartnerInvitation
	for _, inv := range m.partnerInvitations {
		if inv.ToUserID == toUserID && inv.Status == models.InvitationPending {
			copied := *inv
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *Memory) PendingPartnerInvitationsFrom(_ context.Context, fromUserID int64) ([]*models.PartnerInvitation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.PartnerInvitation
	for _, inv := range m.partnerInvitations {
		if inv.FromUserID == fromUserID && inv.Status == models.InvitationPending {
			copied := *inv
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *Memory) UpdatePartnerInvitation(_ context.Context, id int64, update InvitationUpdate) (*models.PartnerInvitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.partnerInvitations[id]
	if !ok {
		return nil, ErrNotFound
	}
	if update.Status != nil {
		inv.Status = *update.Status
		if *update.Status != models.InvitationPending && inv.RespondedAt == nil {
			now := time.Now()
			inv.RespondedAt = &now
		}
	}
	copied := *inv
	return &copied, nil
}

func (m *Memory) CreateGameInvitation(_ context.Context, inv *models.GameInvitation) (*models.GameInvitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := *inv
	out.ID = m.nextGameInvID
	m.nextGameInvID++
	out.Status = models.InvitationPending
	out.RoomID = nil
	out.CreatedAt = time.Now()
	out.RespondedAt = nil
	if out.ExpiresAt.IsZero() {
		out.ExpiresAt = time.Now().Add(5 * time.Minute)
	}
	m.gameInvitations[out.ID] = &out

	copied := out
	return &copied, nil
}

func (m *Memory) GetGameInvitation(_ context.Context, id int64) (*models.GameInvitation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inv, ok := m.gameInvitations[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *inv
	return &copied, nil
}

func (m *Memory) PendingGameInvitationsFor(_ context.Context, toUserID int64) ([]*models.GameInvitation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	var out []*models.GameInvitation
	for _, inv := range m.gameInvitations {
		if inv.ToUserID == toUserID && inv.Status == models.InvitationPending && inv.ExpiresAt.After(now) {
			copied := *inv
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *Memory) AcceptedUnlinkedGameInvitation(_ context.Context, fromUserID, toUserID int64, gameType string) (*models.GameInvitation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, inv := range m.gameInvitations {
		if inv.FromUserID == fromUserID && inv.ToUserID == toUserID &&
			inv.GameType == gameType && inv.Status == models.InvitationAccepted && inv.RoomID == nil {
			copied := *inv
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UpdateGameInvitation(_ context.Context, id int64, update InvitationUpdate) (*models.GameInvitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.gameInvitations[id]
	if !ok {
		return nil, ErrNotFound
	}
	if update.Status != nil {
		inv.Status = *update.Status
		if *update.Status != models.InvitationPending && inv.RespondedAt == nil {
			now := time.Now()
			inv.RespondedAt = &now
		}
	}
	if update.RoomID != nil {
		roomID := *update.RoomID
		inv.RoomID = &roomID
	}
	copied := *inv
	return &copied, nil
}

func (m *Memory) ExpireGameInvitations(_ context.Context, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, inv := range m.gameInvitations {
		if inv.Status == models.InvitationPending && !inv.ExpiresAt.After(now) {
			inv.Status = models.InvitationExpired
			stamped := now
			inv.RespondedAt = &stamped
		}
	}
	return nil
}
