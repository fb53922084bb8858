package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"couple-games-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const searchResultLimit = 10

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userService       *services.UserService
	invitationService *services.InvitationService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService, invitationService *services.InvitationService) *UserHandler {
	return &UserHandler{
		userService:       userService,
		invitationService: invitationService,
	}
}

// DemoAuthRequest represents the request body for demo authentication
type DemoAuthRequest struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// DemoAuth handles POST /api/v1/auth/demo
func (h *UserHandler) DemoAuth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req DemoAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username == "" {
		respondError(w, "username is required", http.StatusBadRequest)
		return
	}

	user, err := h.userService.DemoAuth(ctx, req.Username, req.Avatar)
	if err != nil {
		log.Error().Err(err).Str("username", req.Username).Msg("Failed to authenticate user")
		respondServiceError(w, err)
		return
	}

	token, err := h.userService.GenerateJWT(user.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to generate token")
		respondError(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	log.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("User authenticated")

	respondJSON(w, http.StatusOK, map[string]any{
		"user":  user,
		"token": token,
	})
}

// TelegramAuthRequest carries an externally verified Telegram identity.
// Signature verification happens upstream; this endpoint only maps the
// identity onto a user record.
type TelegramAuthRequest struct {
	TelegramID string  `json:"telegramId"`
	Username   string  `json:"username"`
	FirstName  *string `json:"firstName"`
	LastName   *string `json:"lastName"`
}

// TelegramAuth handles POST /api/v1/auth/telegram
func (h *UserHandler) TelegramAuth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req TelegramAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.TelegramID == "" {
		respondError(w, "telegramId is required", http.StatusBadRequest)
		return
	}

	user, err := h.userService.TelegramAuth(ctx, req.TelegramID, req.Username, req.FirstName, req.LastName)
	if err != nil {
		log.Error().Err(err).Str("telegram_id", req.TelegramID).Msg("Failed to authenticate user")
		respondServiceError(w, err)
		return
	}

	token, err := h.userService.GenerateJWT(user.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to generate token")
		respondError(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	log.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("User authenticated")

	respondJSON(w, http.StatusOK, map[string]any{
		"user":  user,
		"token": token,
	})
}

// GetUser handles GET /api/v1/users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	user, err := h.userService.GetUser(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// SearchUsers handles GET /api/v1/users/search
func (h *UserHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		respondError(w, "q is required", http.StatusBadRequest)
		return
	}

	users, err := h.userService.SearchUsers(r.Context(), query, searchResultLimit)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("Failed to search users")
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// SetPartnerRequest represents the request body for the legacy pairing path
type SetPartnerRequest struct {
	PartnerID int64 `json:"partnerId"`
}

// SetPartner handles POST /api/v1/users/{id}/partner. Choosing the synthetic
// test partner pairs instantly; anyone else gets a partner invitation.
func (h *UserHandler) SetPartner(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	var req SetPartnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, invitation, err := h.invitationService.PairWithUser(r.Context(), userID, req.PartnerID)
	if err != nil {
		log.Error().
			Err(err).
			Int64("user_id", userID).
			Int64("partner_id", req.PartnerID).
			Msg("Failed to pair user")
		respondServiceError(w, err)
		return
	}

	if user != nil {
		respondJSON(w, http.StatusOK, user)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message":    "Partner invitation sent",
		"invitation": invitation,
	})
}
