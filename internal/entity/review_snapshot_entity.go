package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Snapshot slots. Each client session owns at most one row per slot.
const (
	SnapshotSlotDocument         = "document"
	SnapshotSlotExperienceGroups = "experience_groups"
)

// ReviewSnapshot is the durable mirror of one in-memory value. The in-memory
// state stays the source of truth; snapshots are read back only when a
// session's runtime state is gone.
type ReviewSnapshot struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	SessionId uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_review_snapshots_session_slot"`
	Slot      string    `gorm:"uniqueIndex:idx_review_snapshots_session_slot"`
	Payload   datatypes.JSON
	CreatedAt time.Time
	UpdatedAt *time.Time
}
