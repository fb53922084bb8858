package models

import (
	"encoding/json"
	"time"
)

// Game types
const (
	GameTypeTruthOrDare = "truth_or_dare"
	GameTypeSync        = "sync"
)

// Room statuses
const (
	RoomStatusWaiting  = "waiting"
	RoomStatusActive   = "active"
	RoomStatusFinished = "finished"
)

// Invitation statuses
const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationDeclined = "declined"
	InvitationExpired  = "expired"
)

// User represents a registered player
type User struct {
	ID          int64     `json:"id"`
	TelegramID  *string   `json:"telegramId,omitempty"`
	Username    string    `json:"username"`
	FirstName   *string   `json:"firstName,omitempty"`
	LastName    *string   `json:"lastName,omitempty"`
	Avatar      string    `json:"avatar"`
	PartnerID   *int64    `json:"partnerId,omitempty"`
	GamesPlayed int       `json:"gamesPlayed"`
	SyncScore   int       `json:"syncScore"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UserRef is the slim user payload embedded in notifications
type UserRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// Ref returns the notification-sized view of a user
func (u *User) Ref() *UserRef {
	return &UserRef{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}

// PartnerInvitation represents a request to pair two users
type PartnerInvitation struct {
	ID          int64      `json:"id"`
	FromUserID  int64      `json:"fromUserId"`
	ToUserID    int64      `json:"toUserId"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	RespondedAt *time.Time `json:"respondedAt,omitempty"`
}

// GameInvitation represents an invitation from one partner to the other to
// start a game. Expires if not responded to in time.
type GameInvitation struct {
	ID          int64      `json:"id"`
	FromUserID  int64      `json:"fromUserId"`
	ToUserID    int64      `json:"toUserId"`
	GameType    string     `json:"gameType"`
	Status      string     `json:"status"`
	RoomID      *int64     `json:"roomId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	RespondedAt *time.Time `json:"respondedAt,omitempty"`
	ExpiresAt   time.Time  `json:"expiresAt"`
}

// GameRoom represents a two-player game session. GameData holds the
// game-type-specific state; only the engine owning the room's game type
// reads or writes it.
type GameRoom struct {
	ID            int64           `json:"id"`
	Player1ID     int64           `json:"player1Id"`
	Player2ID     int64           `json:"player2Id"`
	GameType      string          `json:"gameType"`
	Status        string          `json:"status"`
	CurrentPlayer int64           `json:"currentPlayer"`
	GameData      json.RawMessage `json:"gameData,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// HasPlayer reports whether the given user is one of the room's participants
func (r *GameRoom) HasPlayer(userID int64) bool {
	return r.Player1ID == userID || r.Player2ID == userID
}

// OtherPlayer returns the participant that is not the given user
func (r *GameRoom) OtherPlayer(userID int64) int64 {
	if r.Player1ID == userID {
		return r.Player2ID
	}
	return r.Player1ID
}

// GameAnswer is an append-only record of one player's answer or task
// completion for a single question
type GameAnswer struct {
	ID         int64     `json:"id"`
	RoomID     int64     `json:"roomId"`
	PlayerID   int64     `json:"playerId"`
	QuestionID string    `json:"questionId"`
	Answer     string    `json:"answer"`
	Completed  bool      `json:"completed"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TruthOrDareQuestion is a single prompt from the truth-or-dare pool
type TruthOrDareQuestion struct {
	ID   string `json:"id"`
	Type string `json:"type"` // "truth" or "dare"
	Text string `json:"text"`
}

// SyncQuestion is a single multiple-choice prompt from the sync pool
type SyncQuestion struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// TurnRecord is one entry in the truth-or-dare turn history
type TurnRecord struct {
	PlayerID    int64     `json:"playerId"`
	QuestionID  string    `json:"questionId"`
	Completed   bool      `json:"completed"`
	Description string    `json:"description"`
	At          time.Time `json:"at"`
}

// TruthOrDareState is the GameData variant for truth_or_dare rooms
type TruthOrDareState struct {
	CurrentQuestionIndex int                  `json:"currentQuestionIndex"`
	Player1Score         int                  `json:"player1Score"`
	Player2Score         int                  `json:"player2Score"`
	CurrentQuestion      *TruthOrDareQuestion `json:"currentQuestion,omitempty"`
	TurnHistory          []TurnRecord         `json:"turnHistory,omitempty"`
}

// SyncState is the GameData variant for sync rooms
type SyncState struct {
	CurrentQuestionIndex int           `json:"currentQuestionIndex"`
	Player1Score         int           `json:"player1Score"`
	Player2Score         int           `json:"player2Score"`
	TotalQuestions       int           `json:"totalQuestions"`
	CurrentQuestion      *SyncQuestion `json:"currentQuestion,omitempty"`
}

// Notification types pushed to all of a user's live connections
const (
	NotificationPartnerInvitationReceived = "partner_invitation_received"
	NotificationPartnerUpdate             = "partner_update"
	NotificationPartnerDeclined           = "partner_declined"
	NotificationGameInvitation            = "game_invitation"
	NotificationGameAccepted              = "game_accepted"
	NotificationGameDeclined              = "game_declined"
)

// Notification is the one-shot payload delivered by the fan-out. Fields
// beyond ID/Type/CreatedAt are set depending on the type.
type Notification struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	FromUser     *UserRef  `json:"fromUser,omitempty"`
	Partner      *User     `json:"partner,omitempty"`
	GameType     string    `json:"gameType,omitempty"`
	InvitationID int64     `json:"invitationId,omitempty"`
	RoomID       int64     `json:"roomId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
