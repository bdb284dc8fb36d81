package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/MetallVersion/foodstuffs-rating-backend/internal/domain"
	"github.com/MetallVersion/foodstuffs-rating-backend/internal/service"
	apperrors "github.com/MetallVersion/foodstuffs-rating-backend/pkg/errors"
	"github.com/MetallVersion/foodstuffs-rating-backend/pkg/httputil"
	"github.com/MetallVersion/foodstuffs-rating-backend/pkg/middleware"
	"github.com/MetallVersion/foodstuffs-rating-backend/pkg/validator"
)

// OAuth grant types accepted by the token endpoint.
const (
	grantTypePassword     = "password"
	grantTypeRefreshToken = "refresh_token"
)

// TokenGranter runs the token grants.
type TokenGranter interface {
	PasswordGrant(ctx context.Context, username, password string) (*domain.TokenPair, error)
	RefreshToken(ctx context.Context, accessToken, refreshToken string) (*domain.TokenPair, error)
	ExternalGrant(ctx context.Context, user *domain.User) (*domain.TokenPair, error)
}

// Registrar creates password accounts.
type Registrar interface {
	Register(ctx context.Context, input service.RegisterInput) (*domain.User, error)
}

// AuthHandler serves the token endpoint and password registration.
type AuthHandler struct {
	tokens    TokenGranter
	registrar Registrar
	logger    *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(tokens TokenGranter, registrar Registrar, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{tokens: tokens, registrar: registrar, logger: logger}
}

// --- Request DTOs ---

// RegisterRequest is the JSON request body for user registration.
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,min=5,max=256"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"first_name" validate:"max=50"`
	LastName  string `json:"last_name" validate:"max=50"`
}

// --- Response types ---

// ProfileResponse is the public view of a user.
type ProfileResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func toProfileResponse(u *domain.User) ProfileResponse {
	return ProfileResponse{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

type oauthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// --- Handlers ---

// Token handles POST /oauth/token
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, validator.MaxBodyBytes)
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, r, apperrors.InvalidGrant(err), h.logger)
		return
	}

	var (
		pair *domain.TokenPair
		err  error
	)
	switch grantType := r.PostForm.Get("grant_type"); grantType {
	case grantTypePassword:
		pair, err = h.tokens.PasswordGrant(r.Context(), r.PostForm.Get("username"), r.PostForm.Get("password"))
	case grantTypeRefreshToken:
		accessToken, _ := middleware.BearerToken(r)
		pair, err = h.tokens.RefreshToken(r.Context(), accessToken, r.PostForm.Get("refresh_token"))
	default:
		err = apperrors.UnsupportedGrantType(grantType)
	}
	if err != nil {
		writeOAuthError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pair)
}

// Register handles POST /api/v1/user/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	user, err := h.registrar.Register(r.Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.Header().Set("Location", "/api/v1/user/profile")
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: toProfileResponse(user)})
}

// writeOAuthError writes a token endpoint failure. Only invalid_grant and
// unsupported_grant_type reach clients; the cause stays in the logs.
func writeOAuthError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	kind := apperrors.KindOf(err)
	body := oauthError{Error: apperrors.KindInvalidGrant.Code()}
	status := http.StatusBadRequest

	switch kind {
	case apperrors.KindUnsupportedGrantType:
		body.Error = kind.Code()
	case apperrors.KindTooManyRequests:
		status = http.StatusTooManyRequests
		body.ErrorDescription = "too many attempts"
	case apperrors.KindInternal:
		status = http.StatusInternalServerError
		body.Error = "server_error"
		httputil.LoggerFor(r, fallback).ErrorContext(r.Context(), "token request failed",
			slog.String("error", err.Error()),
		)
	}

	httputil.WriteJSON(w, status, body)
}
