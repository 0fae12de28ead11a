package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AnalyticsEvent is one recorded product event (case_submitted,
// review_generated, ...). Written by the analytics consumer, never on the
// request path.
type AnalyticsEvent struct {
	Id         uuid.UUID `gorm:"type:uuid;primaryKey"`
	SessionId  uuid.UUID `gorm:"type:uuid;index"`
	EventType  string    `gorm:"index"`
	Payload    datatypes.JSON
	OccurredAt time.Time
	CreatedAt  time.Time
}
