package entity

import (
	"time"

	"github.com/google/uuid"
)

type Feedback struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	SessionId uuid.UUID `gorm:"type:uuid;index"`
	Comment   string
	Email     string
	CreatedAt time.Time
}
