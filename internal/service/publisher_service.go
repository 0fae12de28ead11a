package service

import (
	"context"
	"encoding/json"
	"log"

	"caseforge-be/internal/dto"
	"caseforge-be/pkg/events"
	pktNats "caseforge-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

type IPublisherService interface {
	// Publish fans an analytics event out to the in-process bus and,
	// when configured, the external NATS bus. It never returns an error:
	// analytics must not fail the operation being recorded.
	Publish(ctx context.Context, event events.Event)
}

type publisherService struct {
	pubSub         *gochannel.GoChannel
	topicName      string
	eventPublisher *pktNats.Publisher
}

func NewPublisherService(
	pubSub *gochannel.GoChannel,
	topicName string,
	eventPublisher *pktNats.Publisher,
) IPublisherService {
	return &publisherService{
		pubSub:         pubSub,
		topicName:      topicName,
		eventPublisher: eventPublisher,
	}
}

func (p *publisherService) Publish(ctx context.Context, event events.Event) {
	sessionId := uuid.Nil
	if raw, ok := event.Payload()["session_id"].(string); ok {
		sessionId, _ = uuid.Parse(raw)
	}

	envelope := dto.AnalyticsEventMessage{
		EventType:  event.EventType(),
		SessionId:  sessionId,
		Payload:    event.Payload(),
		OccurredAt: event.Timestamp(),
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		log.Printf("[ERROR] Failed to marshal analytics event %s: %v", event.EventType(), err)
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	if err := p.pubSub.Publish(p.topicName, msg); err != nil {
		log.Printf("[ERROR] Failed to publish analytics event %s: %v", event.EventType(), err)
	}

	if p.eventPublisher != nil {
		if err := p.eventPublisher.Publish(ctx, event); err != nil {
			log.Printf("[WARN] Failed to publish event %s to NATS: %v", event.EventType(), err)
		}
	}
}
