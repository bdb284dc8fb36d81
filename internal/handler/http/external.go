package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/MetallVersion/foodstuffs-rating-backend/internal/auth"
	"github.com/MetallVersion/foodstuffs-rating-backend/internal/domain"
	"github.com/MetallVersion/foodstuffs-rating-backend/internal/service"
	apperrors "github.com/MetallVersion/foodstuffs-rating-backend/pkg/errors"
	"github.com/MetallVersion/foodstuffs-rating-backend/pkg/httputil"
	"github.com/MetallVersion/foodstuffs-rating-backend/pkg/middleware"
	"github.com/MetallVersion/foodstuffs-rating-backend/pkg/validator"
)

// IdentityVerifier verifies a provider-issued ID token.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*auth.ExternalIdentity, error)
}

// FederatedLogins registers and resolves provider identities.
type FederatedLogins interface {
	Register(ctx context.Context, input service.ExternalRegisterInput) (*domain.User, error)
	FindByExternalLogin(ctx context.Context, provider domain.ExternalProvider, externalUserID, email string) (*domain.User, error)
}

// ExternalLoginHandler serves sign-up and sign-in with a provider ID token
// presented as a bearer credential.
type ExternalLoginHandler struct {
	verifier IdentityVerifier
	logins   FederatedLogins
	tokens   TokenGranter
	logger   *slog.Logger
}

// NewExternalLoginHandler creates a new external login HTTP handler.
func NewExternalLoginHandler(verifier IdentityVerifier, logins FederatedLogins, tokens TokenGranter, logger *slog.Logger) *ExternalLoginHandler {
	return &ExternalLoginHandler{verifier: verifier, logins: logins, tokens: tokens, logger: logger}
}

// ExternalRegisterRequest is the JSON request body for a federated sign-up.
type ExternalRegisterRequest struct {
	FirstName string `json:"first_name" validate:"max=50"`
	LastName  string `json:"last_name" validate:"max=50"`
}

// Register handles POST /api/v1/oauth/google/register
func (h *ExternalLoginHandler) Register(w http.ResponseWriter, r *http.Request) {
	identity, err := h.verify(r)
	if err != nil {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if !identity.EmailVerified {
		httputil.WriteError(w, r, apperrors.InvalidInput("the email address is not verified"), h.logger)
		return
	}

	var req ExternalRegisterRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	_, err = h.logins.Register(r.Context(), service.ExternalRegisterInput{
		Provider:       identity.Provider,
		ExternalUserID: identity.Subject,
		Email:          identity.Email,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Login handles POST /api/v1/oauth/google/login. Failures use the token
// endpoint's error shape.
func (h *ExternalLoginHandler) Login(w http.ResponseWriter, r *http.Request) {
	identity, err := h.verify(r)
	if err != nil {
		httputil.LoggerFor(r, h.logger).WarnContext(r.Context(), "external login rejected",
			slog.String("error", err.Error()),
		)
		writeOAuthError(w, r, apperrors.InvalidGrant(err), h.logger)
		return
	}

	user, err := h.logins.FindByExternalLogin(r.Context(), identity.Provider, identity.Subject, identity.Email)
	if err != nil {
		writeOAuthError(w, r, err, h.logger)
		return
	}

	pair, err := h.tokens.ExternalGrant(r.Context(), user)
	if err != nil {
		writeOAuthError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pair)
}

func (h *ExternalLoginHandler) verify(r *http.Request) (*auth.ExternalIdentity, error) {
	idToken, ok := middleware.BearerToken(r)
	if !ok {
		return nil, apperrors.Unauthorized("missing bearer token")
	}
	identity, err := h.verifier.Verify(r.Context(), idToken)
	if err != nil {
		return nil, apperrors.New(apperrors.KindInvalidToken, "invalid id token", err)
	}
	return identity, nil
}
