package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spaolacci/murmur3"
	"go.uber.org/zap"

	"toilet-map-service/internal/client"
	"toilet-map-service/internal/util"
)

// eventBuckets partitions abuse events for downstream consumers.
const eventBuckets = 64

type EventType string

const (
	EventTargetLimited       EventType = "target_rate_limited"
	EventGlobalLimited       EventType = "global_rate_limited"
	EventPasswordDeactivated EventType = "password_deactivated"
)

// AbuseEvent is the moderation-facing record of a denied or flagged action.
// It carries the pseudonymous identity hash, never a raw address.
type AbuseEvent struct {
	EventBucket  int       `json:"event_bucket"`
	EventType    EventType `json:"event_type"`
	IdentityHash string    `json:"identity_hash"`
	Action       string    `json:"action"`
	TargetID     string    `json:"target_id,omitempty"`
	EventTime    time.Time `json:"event_time"`
	Details      string    `json:"details,omitempty"`
}

// Publisher writes abuse events to Kafka, best-effort. A nil producer
// disables publishing entirely; the service runs fine without it.
type Publisher struct {
	producer *client.KafkaProducer
	logger   *zap.Logger
}

func NewPublisher(producer *client.KafkaProducer, logger *zap.Logger) *Publisher {
	return &Publisher{producer: producer, logger: logger}
}

// Publish fills in the event time and bucket, then hands the event to the
// producer. Failures are logged and dropped; no caller waits on this.
func (p *Publisher) Publish(ctx context.Context, event AbuseEvent) {
	if p == nil || p.producer == nil {
		return
	}

	event.EventTime = time.Now().UTC()
	event.EventBucket = bucketFor(event.IdentityHash)

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("Failed to marshal abuse event", util.ErrorField(err))
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := p.producer.WriteMessage(writeCtx, []byte(event.IdentityHash), payload); err != nil {
		p.logger.Warn("Failed to publish abuse event",
			util.String("event_type", string(event.EventType)),
			util.ErrorField(err))
	}
}

func bucketFor(identityHash string) int {
	hasher := murmur3.New64()
	_, _ = hasher.Write([]byte(identityHash))
	return int(hasher.Sum64() % uint64(eventBuckets))
}
