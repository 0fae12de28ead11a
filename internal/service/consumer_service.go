package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"caseforge-be/internal/dto"
	"caseforge-be/internal/entity"
	"caseforge-be/internal/repository/contract"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub          *gochannel.GoChannel
	topicName       string
	analyticsEvents contract.IAnalyticsEventRepository
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	analyticsEvents contract.IAnalyticsEventRepository,
) IConsumerService {
	return &consumerService{
		pubSub:          pubSub,
		topicName:       topicName,
		analyticsEvents: analyticsEvents,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var envelope dto.AnalyticsEventMessage
	err := json.Unmarshal(msg.Payload, &envelope)
	if err != nil {
		log.Printf("[ERROR] Failed to unmarshal analytics message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	payload, err := json.Marshal(envelope.Payload)
	if err != nil {
		log.Printf("[ERROR] Failed to marshal analytics payload: %v", err)
		msg.Ack()
		return
	}

	event := entity.AnalyticsEvent{
		Id:         uuid.New(),
		SessionId:  envelope.SessionId,
		EventType:  envelope.EventType,
		Payload:    datatypes.JSON(payload),
		OccurredAt: envelope.OccurredAt,
		CreatedAt:  time.Now(),
	}

	if err := cs.analyticsEvents.Create(ctx, &event); err != nil {
		log.Printf("[ERROR] Failed to persist analytics event %s: %v", envelope.EventType, err)
		msg.Nack() // Nack for retriable errors
		return
	}

	msg.Ack()
}
