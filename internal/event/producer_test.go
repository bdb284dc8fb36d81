package event

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MetallVersion/foodstuffs-rating-backend/internal/domain"
	pkgkafka "github.com/MetallVersion/foodstuffs-rating-backend/pkg/kafka"
	"github.com/MetallVersion/foodstuffs-rating-backend/pkg/logger"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, event *pkgkafka.Event) error {
	args := m.Called(ctx, topic, event)
	return args.Error(0)
}

func newTestProducer() (*Producer, *mockPublisher) {
	pub := &mockPublisher{}
	return NewProducer(pub, slog.New(slog.NewTextHandler(io.Discard, nil))), pub
}

func TestPublishUserRegistered_Federated(t *testing.T) {
	p, pub := newTestProducer()
	provider := domain.ProviderGoogle
	user := &domain.User{ID: "u-1", Email: "a@example.com", FirstName: "A", LastName: "B"}
	ctx := logger.WithCorrelationID(context.Background(), "corr-1")

	pub.On("Publish", mock.Anything, TopicUserRegistered, mock.MatchedBy(func(e *pkgkafka.Event) bool {
		var data UserRegisteredData
		require.NoError(t, json.Unmarshal(e.Data, &data))
		return e.EventType == TypeUserRegistered &&
			e.AggregateID == "u-1" &&
			e.CorrelationID == "corr-1" &&
			data.Provider == "google" &&
			data.Email == "a@example.com"
	})).Return(nil)

	require.NoError(t, p.PublishUserRegistered(ctx, user, &provider))
	pub.AssertExpectations(t)
}

func TestPublishUserRegistered_PasswordOmitsProvider(t *testing.T) {
	p, pub := newTestProducer()
	user := &domain.User{ID: "u-1", Email: "a@example.com"}

	pub.On("Publish", mock.Anything, TopicUserRegistered, mock.MatchedBy(func(e *pkgkafka.Event) bool {
		return json.Valid(e.Data) && !containsKey(e.Data, "provider")
	})).Return(nil)

	require.NoError(t, p.PublishUserRegistered(context.Background(), user, nil))
	pub.AssertExpectations(t)
}

func TestPublishRefreshTokenReused(t *testing.T) {
	p, pub := newTestProducer()

	pub.On("Publish", mock.Anything, TopicRefreshTokenReused, mock.MatchedBy(func(e *pkgkafka.Event) bool {
		var data RefreshTokenReusedData
		require.NoError(t, json.Unmarshal(e.Data, &data))
		return e.EventType == TypeRefreshTokenReused && data.TokenID == 7 && data.RevokedCount == 3
	})).Return(nil)

	require.NoError(t, p.PublishRefreshTokenReused(context.Background(), "u-1", 7, 3))
	pub.AssertExpectations(t)
}

func TestPublish_WrapsBrokerError(t *testing.T) {
	p, pub := newTestProducer()
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	err := p.PublishRefreshTokenReused(context.Background(), "u-1", 7, 0)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh_token.reuse_detected")
}

func TestDiscardPublisher(t *testing.T) {
	p := NewProducer(DiscardPublisher{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := p.PublishUserRegistered(context.Background(), &domain.User{ID: "u-1", Email: "a@example.com"}, nil)
	assert.NoError(t, err)
}

func containsKey(raw json.RawMessage, key string) bool {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return false
	}
	_, ok := m[key]
	return ok
}
