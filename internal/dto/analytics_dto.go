package dto

import (
	"time"

	"github.com/google/uuid"
)

// AnalyticsEventMessage is the envelope published on the in-process bus for
// the analytics consumer to persist.
type AnalyticsEventMessage struct {
	EventType  string                 `json:"event_type"`
	SessionId  uuid.UUID              `json:"session_id"`
	Payload    map[string]interface{} `json:"payload"`
	OccurredAt time.Time              `json:"occurred_at"`
}
