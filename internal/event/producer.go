package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MetallVersion/foodstuffs-rating-backend/internal/domain"
	pkgkafka "github.com/MetallVersion/foodstuffs-rating-backend/pkg/kafka"
	"github.com/MetallVersion/foodstuffs-rating-backend/pkg/logger"
)

// Kafka topic constants for identity events.
const (
	TopicUserRegistered     = "identity.user.registered"
	TopicRefreshTokenReused = "identity.refresh_token.reuse_detected"
)

// Event type constants.
const (
	TypeUserRegistered     = "user.registered"
	TypeRefreshTokenReused = "refresh_token.reuse_detected"
)

// Aggregate type constant.
const AggregateTypeUser = "user"

// SourceIdentityService identifies events originating from this service.
const SourceIdentityService = "identity-service"

// UserRegisteredData is the payload for a user.registered event. Provider is
// empty for password registrations.
type UserRegisteredData struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Provider  string `json:"provider,omitempty"`
}

// RefreshTokenReusedData is the payload for a refresh_token.reuse_detected event.
type RefreshTokenReusedData struct {
	UserID       string `json:"user_id"`
	TokenID      int64  `json:"token_id"`
	RevokedCount int64  `json:"revoked_count"`
}

// Publisher is the subset of the kafka producer used here.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// DiscardPublisher drops every event. It replaces Kafka when publishing is
// disabled.
type DiscardPublisher struct {
	Logger *slog.Logger
}

// Publish logs the event at debug level and returns nil.
func (d DiscardPublisher) Publish(ctx context.Context, topic string, event *pkgkafka.Event) error {
	d.Logger.DebugContext(ctx, "event publishing disabled, dropping event",
		slog.String("topic", topic),
		slog.String("event_type", event.EventType),
	)
	return nil
}

// Producer publishes identity events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the identity service.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User, provider *domain.ExternalProvider) error {
	data := UserRegisteredData{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
	if provider != nil {
		data.Provider = provider.String()
	}
	return p.publish(ctx, TopicUserRegistered, TypeUserRegistered, user.ID, data)
}

// PublishRefreshTokenReused publishes a refresh_token.reuse_detected event.
func (p *Producer) PublishRefreshTokenReused(ctx context.Context, userID string, tokenID, revoked int64) error {
	data := RefreshTokenReusedData{
		UserID:       userID,
		TokenID:      tokenID,
		RevokedCount: revoked,
	}
	return p.publish(ctx, TopicRefreshTokenReused, TypeRefreshTokenReused, userID, data)
}

func (p *Producer) publish(ctx context.Context, topic, eventType, aggregateID string, data any) error {
	event, err := pkgkafka.NewEvent(eventType, aggregateID, AggregateTypeUser, SourceIdentityService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	p.logger.InfoContext(ctx, "published event",
		slog.String("event_type", eventType),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}
