package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event types consumed by downstream notification and reporting services.
const (
	TypeRequestApproved      = "request.approved"
	TypeAllocationCreated    = "allocation.created"
	TypeAllocationRolledBack = "allocation.rolled_back"
	TypeRequestPaymentStale  = "request.payment_stale"
)

const channel = "agridist.events"

type Event struct {
	Type       string                 `json:"type"`
	OccurredAt time.Time              `json:"occurred_at"`
	Payload    map[string]interface{} `json:"payload"`
}

// Publisher emits domain events. Delivery is best-effort: the core never
// awaits or retries a publish, and a failed publish never fails the
// operation that produced it.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload map[string]interface{})
}

type redisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) Publisher {
	return &redisPublisher{client: client}
}

func (p *redisPublisher) Publish(ctx context.Context, eventType string, payload map[string]interface{}) {
	event := Event{
		Type:       eventType,
		OccurredAt: time.Now(),
		Payload:    payload,
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("WARN: failed to marshal event %s: %v", eventType, err)
		return
	}
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		log.Printf("WARN: failed to publish event %s: %v", eventType, err)
	}
}

// NopPublisher discards events. Used in tests and when Redis is not
// configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, eventType string, payload map[string]interface{}) {}
