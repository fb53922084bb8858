package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"couple-games-backend/internal/models"
	"couple-games-backend/internal/questions"
	"couple-games-backend/internal/repository"
	"couple-games-backend/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for MVP
	},
}

// wsConn wraps a websocket connection behind the registry's Sender
// interface. gorilla/websocket allows one concurrent writer, so every write
// goes through the mutex.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSMessage is the inbound real-time message, multiplexed by Type
type WSMessage struct {
	Type       string `json:"type"`
	UserID     int64  `json:"userId,omitempty"`
	RoomID     int64  `json:"roomId,omitempty"`
	PlayerID   int64  `json:"playerId,omitempty"`
	Choice     string `json:"choice,omitempty"`
	Completed  bool   `json:"completed,omitempty"`
	QuestionID string `json:"questionId,omitempty"`
	Answer     string `json:"answer,omitempty"`
}

// WebSocketHandler handles the duplex real-time channel
type WebSocketHandler struct {
	registry    *services.Registry
	userService *services.UserService
	storage     repository.Storage
	truthOrDare *services.TruthOrDareEngine
	syncEngine  *services.SyncEngine
	synthetic   *services.SyntheticOpponent
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	registry *services.Registry,
	userService *services.UserService,
	storage repository.Storage,
	truthOrDare *services.TruthOrDareEngine,
	syncEngine *services.SyncEngine,
	synthetic *services.SyntheticOpponent,
) *WebSocketHandler {
	return &WebSocketHandler{
		registry:    registry,
		userService: userService,
		storage:     storage,
		truthOrDare: truthOrDare,
		syncEngine:  syncEngine,
		synthetic:   synthetic,
	}
}

// HandleWebSocket handles GET /ws
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, "token required", http.StatusUnauthorized)
		return
	}
	userID, err := h.userService.ValidateJWT(token)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	connID := uuid.New().String()
	sender := &wsConn{conn: conn}
	defer h.registry.Unregister(connID)

	log.Info().Str("connection_id", connID).Int64("user_id", userID).Msg("WebSocket connection established")

	ctx := r.Context()
	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Int64("user_id", userID).Msg("WebSocket error")
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			log.Error().Err(err).Int64("user_id", userID).Msg("Failed to parse WebSocket message")
			h.sendError(sender, "Invalid message format")
			continue
		}

		// A stale or malformed real-time message is logged and dropped; the
		// channel stays open for subsequent valid messages.
		if err := h.handleMessage(ctx, connID, userID, sender, msg); err != nil {
			log.Error().
				Err(err).
				Int64("user_id", userID).
				Str("type", msg.Type).
				Msg("Failed to handle message")
		}
	}
}

// handleMessage processes inbound real-time messages
func (h *WebSocketHandler) handleMessage(ctx context.Context, connID string, userID int64, sender *wsConn, msg WSMessage) error {
	switch msg.Type {
	case "join":
		return h.handleJoin(ctx, connID, userID, sender, msg)
	case "join_user_session":
		h.registry.Register(connID, userID, 0, sender)
		return nil
	case "truth_or_dare_choice":
		return h.handleTruthOrDareChoice(ctx, userID, msg)
	case "truth_or_dare_complete":
		return h.handleTruthOrDareComplete(ctx, userID, msg)
	case "sync_answer":
		return h.handleSyncAnswer(ctx, userID, msg)
	case "start_sync_game":
		return h.handleStartSyncGame(ctx, msg)
	case "leave_game":
		return h.handleLeaveGame(ctx, userID, msg)
	default:
		log.Debug().Str("type", msg.Type).Int64("user_id", userID).Msg("Unknown message type")
		h.sendError(sender, "Unknown message type")
		return nil
	}
}

// handleJoin binds the connection to a room and sends the full room
// snapshot to this connection before any incremental broadcast, so a
// reconnecting client resynchronizes mid-round state.
func (h *WebSocketHandler) handleJoin(ctx context.Context, connID string, userID int64, sender *wsConn, msg WSMessage) error {
	if msg.RoomID == 0 {
		h.sendError(sender, "roomId is required")
		return nil
	}
	room, err := h.storage.GetRoom(ctx, msg.RoomID)
	if err != nil {
		h.sendError(sender, "Room not found")
		return nil
	}
	if !room.HasPlayer(userID) {
		h.sendError(sender, "Not a participant of this room")
		return nil
	}

	h.registry.Register(connID, userID, room.ID, sender)

	player1, _ := h.storage.GetUser(ctx, room.Player1ID)
	player2, _ := h.storage.GetUser(ctx, room.Player2ID)
	h.registry.SendToConnection(connID, map[string]any{
		"type": "room_state",
		"room": room,
		"players": map[string]any{
			"player1": player1,
			"player2": player2,
		},
	})

	log.Info().
		Str("connection_id", connID).
		Int64("user_id", userID).
		Int64("room_id", room.ID).
		Msg("Connection joined room")
	return nil
}

func (h *WebSocketHandler) handleTruthOrDareChoice(ctx context.Context, userID int64, msg WSMessage) error {
	if msg.Choice != questions.CategoryTruth && msg.Choice != questions.CategoryDare {
		return nil
	}
	return h.truthOrDare.ChooseCategory(ctx, msg.RoomID, userID, msg.Choice)
}

func (h *WebSocketHandler) handleTruthOrDareComplete(ctx context.Context, userID int64, msg WSMessage) error {
	room, err := h.truthOrDare.CompleteTurn(ctx, msg.RoomID, userID, msg.Completed)
	if err != nil {
		return err
	}
	if room != nil && h.synthetic.IsSynthetic(room.CurrentPlayer) {
		h.synthetic.PlayTurn(room.ID)
	}
	return nil
}

func (h *WebSocketHandler) handleSyncAnswer(ctx context.Context, userID int64, msg WSMessage) error {
	if msg.QuestionID == "" {
		return nil
	}
	result, err := h.syncEngine.SubmitAnswer(ctx, msg.RoomID, userID, msg.QuestionID, msg.Answer)
	if err != nil {
		return err
	}
	if result != nil && !result.Resolved && result.Room != nil &&
		h.synthetic.InRoom(result.Room) && !h.synthetic.IsSynthetic(userID) {
		h.synthetic.AnswerSync(msg.RoomID, msg.QuestionID)
	}
	return nil
}

func (h *WebSocketHandler) handleStartSyncGame(ctx context.Context, msg WSMessage) error {
	if err := h.syncEngine.StartGame(ctx, msg.RoomID); err != nil {
		return err
	}
	room, err := h.storage.GetRoom(ctx, msg.RoomID)
	if err == nil && h.synthetic.InRoom(room) {
		if first := questions.SyncAt(0); first != nil {
			h.synthetic.AnswerSync(msg.RoomID, first.ID)
		}
	}
	return nil
}

func (h *WebSocketHandler) handleLeaveGame(ctx context.Context, userID int64, msg WSMessage) error {
	room, err := h.storage.GetRoom(ctx, msg.RoomID)
	if err != nil {
		return nil
	}
	switch room.GameType {
	case models.GameTypeTruthOrDare:
		return h.truthOrDare.EndGame(ctx, msg.RoomID, userID)
	case models.GameTypeSync:
		return h.syncEngine.AbandonGame(ctx, msg.RoomID, userID)
	}
	return nil
}

// sendError sends an error message down a single connection
func (h *WebSocketHandler) sendError(sender *wsConn, message string) {
	data, _ := json.Marshal(map[string]string{
		"type":    "error",
		"message": message,
	})
	sender.Send(data)
}
