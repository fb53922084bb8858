package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"couple-games-backend/internal/models"
	"couple-games-backend/internal/repository"
	"couple-games-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// GameHandler handles game room HTTP requests
type GameHandler struct {
	storage           repository.Storage
	invitationService *services.InvitationService
}

// NewGameHandler creates a new game handler
func NewGameHandler(storage repository.Storage, invitationService *services.InvitationService) *GameHandler {
	return &GameHandler{
		storage:           storage,
		invitationService: invitationService,
	}
}

// CreateRoomRequest represents the request body for direct room creation
type CreateRoomRequest struct {
	Player1ID     int64  `json:"player1Id"`
	Player2ID     int64  `json:"player2Id"`
	GameType      string `json:"gameType"`
	CurrentPlayer int64  `json:"currentPlayer"`
}

// CreateRoom handles POST /api/v1/games/create. Direct creation is only
// permitted against the synthetic test partner or following an accepted,
// not-yet-linked game invitation.
func (h *GameHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Player1ID == 0 || req.Player2ID == 0 || req.GameType == "" {
		respondError(w, "player1Id, player2Id and gameType are required", http.StatusBadRequest)
		return
	}

	room, err := h.invitationService.CreateRoomDirect(r.Context(), req.Player1ID, req.Player2ID, req.GameType, req.CurrentPlayer)
	if err != nil {
		log.Error().
			Err(err).
			Int64("player1_id", req.Player1ID).
			Int64("player2_id", req.Player2ID).
			Msg("Failed to create game room")
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, room)
}

// GetRoom handles GET /api/v1/games/{id}
func (h *GameHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, "Invalid room ID", http.StatusBadRequest)
		return
	}

	room, err := h.storage.GetRoom(r.Context(), roomID)
	if errors.Is(err, repository.ErrNotFound) {
		respondError(w, "Game room not found", http.StatusNotFound)
		return
	}
	if err != nil {
		respondError(w, "Failed to get game room", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, room)
}

// GetActiveRoom handles GET /api/v1/games/user/{userId}/active, the
// reconnection aid: any room where the user participates and play is live.
func (h *GameHandler) GetActiveRoom(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		respondError(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	room, err := h.storage.ActiveRoomForUser(r.Context(), userID)
	if errors.Is(err, repository.ErrNotFound) {
		respondJSON(w, http.StatusOK, nil)
		return
	}
	if err != nil {
		respondError(w, "Failed to get active room", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, room)
}

// GetHistory handles GET /api/v1/games/history/{userId}: finished rooms for
// the user, most recent first.
func (h *GameHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		respondError(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	rooms, err := h.storage.RoomsForUser(r.Context(), userID)
	if err != nil {
		respondError(w, "Failed to get game history", http.StatusInternalServerError)
		return
	}

	finished := make([]*models.GameRoom, 0, len(rooms))
	for _, room := range rooms {
		if room.Status == models.RoomStatusFinished {
			finished = append(finished, room)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].CreatedAt.After(finished[j].CreatedAt)
	})
	respondJSON(w, http.StatusOK, finished)
}

// CreateAnswerRequest represents the request body for recording an answer
type CreateAnswerRequest struct {
	RoomID     int64  `json:"roomId"`
	PlayerID   int64  `json:"playerId"`
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
	Completed  bool   `json:"completed"`
}

// CreateAnswer handles POST /api/v1/game-answers
func (h *GameHandler) CreateAnswer(w http.ResponseWriter, r *http.Request) {
	var req CreateAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.RoomID == 0 || req.PlayerID == 0 || req.QuestionID == "" {
		respondError(w, "roomId, playerId and questionId are required", http.StatusBadRequest)
		return
	}

	answer, err := h.storage.CreateAnswer(r.Context(), &models.GameAnswer{
		RoomID:     req.RoomID,
		PlayerID:   req.PlayerID,
		QuestionID: req.QuestionID,
		Answer:     req.Answer,
		Completed:  req.Completed,
	})
	if err != nil {
		log.Error().Err(err).Int64("room_id", req.RoomID).Msg("Failed to save answer")
		respondError(w, "Failed to save answer", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, answer)
}
