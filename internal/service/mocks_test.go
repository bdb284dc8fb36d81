package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/MetallVersion/foodstuffs-rating-backend/internal/auth"
	"github.com/MetallVersion/foodstuffs-rating-backend/internal/domain"
	"github.com/MetallVersion/foodstuffs-rating-backend/internal/password"
	apperrors "github.com/MetallVersion/foodstuffs-rating-backend/pkg/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestSigner(t *testing.T) *auth.JWTSigner {
	t.Helper()
	s, err := auth.NewJWTSigner(auth.SignerConfig{
		Secret:   testSecret,
		Issuer:   "foodstuffs-rating",
		Audience: "foodstuffs-rating-api",
		TTL:      15 * time.Minute,
	})
	require.NoError(t, err)
	return s
}

func newTestHasher(t *testing.T) *password.Hasher {
	t.Helper()
	h, err := password.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) Update(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

// --- Mock Refresh Token Repository ---

type mockRefreshTokenRepository struct {
	mock.Mock
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *mockRefreshTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefreshToken), args.Error(1)
}

func (m *mockRefreshTokenRepository) ListActiveByUser(ctx context.Context, userID string) ([]domain.RefreshToken, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RefreshToken), args.Error(1)
}

func (m *mockRefreshTokenRepository) Deactivate(ctx context.Context, id int64, reason domain.RevokeReason) (bool, error) {
	args := m.Called(ctx, id, reason)
	return args.Bool(0), args.Error(1)
}

func (m *mockRefreshTokenRepository) DeactivateAllByUser(ctx context.Context, userID string, reason domain.RevokeReason) (int64, error) {
	args := m.Called(ctx, userID, reason)
	return args.Get(0).(int64), args.Error(1)
}

// --- Mock External Login Repository ---

type mockExternalLoginRepository struct {
	mock.Mock
}

func (m *mockExternalLoginRepository) Create(ctx context.Context, login *domain.ExternalLogin) error {
	args := m.Called(ctx, login)
	return args.Error(0)
}

func (m *mockExternalLoginRepository) Get(ctx context.Context, provider domain.ExternalProvider, externalUserID string) (*domain.ExternalLogin, error) {
	args := m.Called(ctx, provider, externalUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExternalLogin), args.Error(1)
}

// --- Mock Event Publisher ---

type mockEvents struct {
	mock.Mock
}

func (m *mockEvents) PublishUserRegistered(ctx context.Context, user *domain.User, provider *domain.ExternalProvider) error {
	args := m.Called(ctx, user, provider)
	return args.Error(0)
}

func (m *mockEvents) PublishRefreshTokenReused(ctx context.Context, userID string, tokenID, revoked int64) error {
	args := m.Called(ctx, userID, tokenID, revoked)
	return args.Error(0)
}

// --- Fakes ---

// inlineTx runs fn without a transaction.
type inlineTx struct{}

func (inlineTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memLimiter struct {
	mu       sync.Mutex
	max      int
	failures map[string]int
}

func newMemLimiter(max int) *memLimiter {
	return &memLimiter{max: max, failures: map[string]int{}}
}

func (l *memLimiter) Allow(_ context.Context, username string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failures[username] < l.max
}

func (l *memLimiter) RecordFailure(_ context.Context, username string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[username]++
}

func (l *memLimiter) Reset(_ context.Context, username string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, username)
}

// memStore is an in-memory backing for the three repositories.
type memStore struct {
	mu     sync.Mutex
	users  map[string]domain.User
	tokens map[int64]domain.RefreshToken
	logins map[string]domain.ExternalLogin
	nextID int64
}

func newMemStore() *memStore {
	return &memStore{
		users:  map[string]domain.User{},
		tokens: map[int64]domain.RefreshToken{},
		logins: map[string]domain.ExternalLogin{},
	}
}

type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.EmailMatches(u.Email) {
			return apperrors.Conflict("a user with this email already exists")
		}
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &u, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.EmailMatches(email) {
			return &u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r memUsers) Update(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[u.ID]; !ok {
		return apperrors.NotFound("user", u.ID)
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r memUsers) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return apperrors.NotFound("user", id)
	}
	u.LastLoginAt = &at
	r.s.users[id] = u
	return nil
}

type memTokens struct{ s *memStore }

func (r memTokens) Create(_ context.Context, t *domain.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.tokens {
		if existing.TokenHash == t.TokenHash {
			return apperrors.Conflict("refresh token already exists")
		}
	}
	r.s.nextID++
	now := time.Now().UTC()
	t.ID, t.IsActive, t.CreatedAt, t.UpdatedAt = r.s.nextID, true, now, now
	r.s.tokens[t.ID] = *t
	return nil
}

func (r memTokens) GetByHash(_ context.Context, hash string) (*domain.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tokens {
		if t.TokenHash == hash {
			return &t, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r memTokens) ListActiveByUser(_ context.Context, userID string) ([]domain.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.RefreshToken{}
	for _, t := range r.s.tokens {
		if t.UserID == userID && t.IsActive {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r memTokens) Deactivate(_ context.Context, id int64, reason domain.RevokeReason) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tokens[id]
	if !ok || !t.IsActive {
		return false, nil
	}
	t.IsActive, t.RevokedReason = false, reason
	r.s.tokens[id] = t
	return true, nil
}

func (r memTokens) DeactivateAllByUser(_ context.Context, userID string, reason domain.RevokeReason) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, t := range r.s.tokens {
		if t.UserID == userID && t.IsActive {
			t.IsActive, t.RevokedReason = false, reason
			r.s.tokens[id] = t
			n++
		}
	}
	return n, nil
}

type memLogins struct{ s *memStore }

func loginKey(p domain.ExternalProvider, id string) string {
	return fmt.Sprintf("%d:%s", p, id)
}

func (r memLogins) Create(_ context.Context, l *domain.ExternalLogin) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := loginKey(l.Provider, l.ExternalUserID)
	if _, ok := r.s.logins[key]; ok {
		return apperrors.Conflict("external login is already linked")
	}
	r.s.logins[key] = *l
	return nil
}

func (r memLogins) Get(_ context.Context, p domain.ExternalProvider, id string) (*domain.ExternalLogin, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.logins[loginKey(p, id)]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &l, nil
}

// testEnv wires every service over a memStore.
type testEnv struct {
	store        *memStore
	events       *mockEvents
	limiter      *memLimiter
	signer       *auth.JWTSigner
	metrics      *Metrics
	refresh      *RefreshTokenService
	registration *RegistrationService
	federated    *FederatedLoginService
	tokens       *UserTokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newMemStore()
	events := &mockEvents{}
	events.On("PublishUserRegistered", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	events.On("PublishRefreshTokenReused", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	signer := newTestSigner(t)
	metrics := NewMetrics(prometheus.NewRegistry())
	limiter := newMemLimiter(3)
	users := memUsers{store}

	refresh := NewRefreshTokenService(memTokens{store}, auth.NewRefreshTokenGenerator(), 720*time.Hour)
	registration := NewRegistrationService(users, newTestHasher(t), password.NewPolicy(password.DefaultPolicyOptions()), events, metrics, testLogger())
	federated := NewFederatedLoginService(users, memLogins{store}, inlineTx{}, events, testLogger())
	tokens := NewUserTokenService(users, NewAccessTokenService(signer), refresh, inlineTx{}, registration, limiter, events, metrics, testLogger())

	return &testEnv{
		store:        store,
		events:       events,
		limiter:      limiter,
		signer:       signer,
		metrics:      metrics,
		refresh:      refresh,
		registration: registration,
		federated:    federated,
		tokens:       tokens,
	}
}
