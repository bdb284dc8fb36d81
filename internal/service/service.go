package service

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MetallVersion/foodstuffs-rating-backend/internal/auth"
	"github.com/MetallVersion/foodstuffs-rating-backend/internal/domain"
	"github.com/MetallVersion/foodstuffs-rating-backend/internal/password"
	"github.com/MetallVersion/foodstuffs-rating-backend/pkg/tracing"
)

var tracer = tracing.Tracer("github.com/MetallVersion/foodstuffs-rating-backend/internal/service")

// Grant types reported in metrics.
const (
	GrantTypePassword     = "password"
	GrantTypeRefreshToken = "refresh_token"
	GrantTypeExternal     = "external"
)

// AccessTokenSigner signs and verifies access tokens.
type AccessTokenSigner interface {
	Sign(subject, email string) (string, int, error)
	Verify(token string, validateExpiry bool) (*auth.Claims, error)
}

// TokenGenerator produces opaque refresh token values.
type TokenGenerator interface {
	Generate() (string, error)
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) password.VerifyResult
}

// PasswordValidator checks candidate passwords.
type PasswordValidator interface {
	Validate(password string) []password.Violation
}

// EventPublisher publishes identity events.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, user *domain.User, provider *domain.ExternalProvider) error
	PublishRefreshTokenReused(ctx context.Context, userID string, tokenID, revoked int64) error
}

// AttemptLimiter throttles failed password grants.
type AttemptLimiter interface {
	Allow(ctx context.Context, username string) bool
	RecordFailure(ctx context.Context, username string)
	Reset(ctx context.Context, username string)
}

// Metrics holds the auth counters.
type Metrics struct {
	grants        *prometheus.CounterVec
	reuseDetected prometheus.Counter
	rehashed      prometheus.Counter
}

// NewMetrics registers the auth counters with reg. A nil reg leaves them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		grants: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_grants_total",
			Help: "Token grant attempts by grant type and result.",
		}, []string{"grant_type", "result"}),
		reuseDetected: f.NewCounter(prometheus.CounterOpts{
			Name: "auth_refresh_reuse_detected_total",
			Help: "Refresh token replays that revoked every session of a user.",
		}),
		rehashed: f.NewCounter(prometheus.CounterOpts{
			Name: "auth_password_rehash_total",
			Help: "Password hashes upgraded to the current work factor.",
		}),
	}
}

func (m *Metrics) observeGrant(grantType string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.grants.WithLabelValues(grantType, result).Inc()
}
