package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/MetallVersion/foodstuffs-rating-backend/internal/domain"
	"github.com/MetallVersion/foodstuffs-rating-backend/internal/service"
	apperrors "github.com/MetallVersion/foodstuffs-rating-backend/pkg/errors"
	"github.com/MetallVersion/foodstuffs-rating-backend/pkg/httputil"
	"github.com/MetallVersion/foodstuffs-rating-backend/pkg/middleware"
	"github.com/MetallVersion/foodstuffs-rating-backend/pkg/validator"
)

// ProfileManager reads and edits user profiles.
type ProfileManager interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, input service.UpdateProfileInput) (*domain.User, error)
}

// SessionManager lists and revokes a user's refresh tokens.
type SessionManager interface {
	ListActiveSessions(ctx context.Context, userID string) ([]domain.RefreshToken, error)
	RevokeAllRefreshTokens(ctx context.Context, userID string, reason domain.RevokeReason) (int64, error)
}

// UserHandler handles HTTP requests for the signed-in user.
type UserHandler struct {
	profiles ProfileManager
	sessions SessionManager
	logger   *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(profiles ProfileManager, sessions SessionManager, logger *slog.Logger) *UserHandler {
	return &UserHandler{profiles: profiles, sessions: sessions, logger: logger}
}

// --- Request DTOs ---

// UpdateProfileRequest is the JSON request body for updating the profile.
type UpdateProfileRequest struct {
	FirstName string `json:"first_name" validate:"max=50"`
	LastName  string `json:"last_name" validate:"max=50"`
}

// --- Response types ---

// SessionResponse describes one active refresh token.
type SessionResponse struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RevokeSessionsResponse reports how many sessions were ended.
type RevokeSessionsResponse struct {
	Revoked int64 `json:"revoked"`
}

// --- Handlers ---

// GetProfile handles GET /api/v1/user/profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	user, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toProfileResponse(user)})
}

// UpdateProfile handles PUT /api/v1/user/profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	user, err := h.profiles.Update(r.Context(), userID, service.UpdateProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toProfileResponse(user)})
}

// ListSessions handles GET /api/v1/user/sessions
func (h *UserHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	tokens, err := h.sessions.ListActiveSessions(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	out := make([]SessionResponse, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, SessionResponse{ID: t.ID, CreatedAt: t.CreatedAt, ExpiresAt: t.ExpiresAt})
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: out})
}

// RevokeSessions handles DELETE /api/v1/user/sessions. Access tokens already
// issued stay valid until they expire.
func (h *UserHandler) RevokeSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	n, err := h.sessions.RevokeAllRefreshTokens(r.Context(), userID, domain.RevokeReasonRevoked)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.LoggerFor(r, h.logger).InfoContext(r.Context(), "sessions revoked", slog.Int64("revoked", n))
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: RevokeSessionsResponse{Revoked: n}})
}

func (h *UserHandler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		httputil.WriteError(w, r, apperrors.Unauthorized("user not authenticated"), h.logger)
		return "", false
	}
	return userID, true
}
