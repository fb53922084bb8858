package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"couple-games-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// InvitationHandler handles partner and game invitation HTTP requests
type InvitationHandler struct {
	invitationService *services.InvitationService
}

// NewInvitationHandler creates a new invitation handler
func NewInvitationHandler(invitationService *services.InvitationService) *InvitationHandler {
	return &InvitationHandler{invitationService: invitationService}
}

// CreatePartnerInvitationRequest represents the request body for creating a
// partner invitation
type CreatePartnerInvitationRequest struct {
	FromUserID int64 `json:"fromUserId"`
	ToUserID   int64 `json:"toUserId"`
}

// CreatePartnerInvitation handles POST /api/v1/partner-invitations
func (h *InvitationHandler) CreatePartnerInvitation(w http.ResponseWriter, r *http.Request) {
	var req CreatePartnerInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.FromUserID == 0 || req.ToUserID == 0 {
		respondError(w, "fromUserId and toUserId are required", http.StatusBadRequest)
		return
	}

	invitation, err := h.invitationService.CreatePartnerInvitation(r.Context(), req.FromUserID, req.ToUserID)
	if err != nil {
		log.Error().
			Err(err).
			Int64("from_user_id", req.FromUserID).
			Int64("to_user_id", req.ToUserID).
			Msg("Failed to create partner invitation")
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, invitation)
}

// ListPartnerInvitations handles GET /api/v1/partner-invitations/{userId}
func (h *InvitationHandler) ListPartnerInvitations(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		respondError(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	invitations, err := h.invitationService.PendingPartnerInvitationsFor(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, invitations)
}

// ListSentPartnerInvitations handles GET /api/v1/partner-invitations/sent/{userId}
func (h *InvitationHandler) ListSentPartnerInvitations(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		respondError(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	invitations, err := h.invitationService.PendingPartnerInvitationsFrom(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, invitations)
}

// RespondRequest represents the accept/decline body shared by both
// invitation kinds
type RespondRequest struct {
	Action string `json:"action"`
}

func (req *RespondRequest) accept() (bool, bool) {
	switch req.Action {
	case "accept":
		return true, true
	case "decline":
		return false, true
	default:
		return false, false
	}
}

// RespondToPartnerInvitation handles POST /api/v1/partner-invitations/{id}/respond
func (h *InvitationHandler) RespondToPartnerInvitation(w http.ResponseWriter, r *http.Request) {
	invitationID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, "Invalid invitation ID", http.StatusBadRequest)
		return
	}

	var req RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	accept, ok := req.accept()
	if !ok {
		respondError(w, "action must be accept or decline", http.StatusBadRequest)
		return
	}

	if err := h.invitationService.RespondToPartnerInvitation(r.Context(), invitationID, accept); err != nil {
		log.Error().Err(err).Int64("invitation_id", invitationID).Msg("Failed to respond to partner invitation")
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// CreateGameInvitationRequest represents the request body for creating a
// game invitation
type CreateGameInvitationRequest struct {
	FromUserID int64      `json:"fromUserId"`
	ToUserID   int64      `json:"toUserId"`
	GameType   string     `json:"gameType"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

// CreateGameInvitation handles POST /api/v1/game-invitations
func (h *InvitationHandler) CreateGameInvitation(w http.ResponseWriter, r *http.Request) {
	var req CreateGameInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.FromUserID == 0 || req.ToUserID == 0 || req.GameType == "" {
		respondError(w, "fromUserId, toUserId and gameType are required", http.StatusBadRequest)
		return
	}

	var expiresAt time.Time
	if req.ExpiresAt != nil {
		expiresAt = *req.ExpiresAt
	}

	invitation, err := h.invitationService.CreateGameInvitation(r.Context(), req.FromUserID, req.ToUserID, req.GameType, expiresAt)
	if err != nil {
		log.Error().
			Err(err).
			Int64("from_user_id", req.FromUserID).
			Int64("to_user_id", req.ToUserID).
			Str("game_type", req.GameType).
			Msg("Failed to create game invitation")
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, invitation)
}

// ListGameInvitations handles GET /api/v1/game-invitations/{userId}
func (h *InvitationHandler) ListGameInvitations(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		respondError(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	invitations, err := h.invitationService.PendingGameInvitationsFor(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, invitations)
}

// RespondToGameInvitation handles POST /api/v1/game-invitations/{id}/respond
func (h *InvitationHandler) RespondToGameInvitation(w http.ResponseWriter, r *http.Request) {
	invitationID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, "Invalid invitation ID", http.StatusBadRequest)
		return
	}

	var req RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	accept, ok := req.accept()
	if !ok {
		respondError(w, "action must be accept or decline", http.StatusBadRequest)
		return
	}

	room, err := h.invitationService.RespondToGameInvitation(r.Context(), invitationID, accept)
	if err != nil {
		log.Error().Err(err).Int64("invitation_id", invitationID).Msg("Failed to respond to game invitation")
		respondServiceError(w, err)
		return
	}

	response := map[string]any{"success": true}
	if room != nil {
		response["roomId"] = room.ID
	}
	respondJSON(w, http.StatusOK, response)
}
