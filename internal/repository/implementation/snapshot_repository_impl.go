package implementation

import (
	"context"
	"errors"
	"time"

	"caseforge-be/internal/entity"
	"caseforge-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type snapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) contract.ISnapshotRepository {
	return &snapshotRepository{db: db}
}

func (r *snapshotRepository) Save(ctx context.Context, sessionId uuid.UUID, slot string, payload []byte) error {
	now := time.Now()
	snapshot := entity.ReviewSnapshot{
		Id:        uuid.New(),
		SessionId: sessionId,
		Slot:      slot,
		Payload:   datatypes.JSON(payload),
		CreatedAt: now,
		UpdatedAt: &now,
	}
	// One row per (session, slot); a later save overwrites the payload.
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "slot"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
		}).
		Create(&snapshot).Error
}

func (r *snapshotRepository) Load(ctx context.Context, sessionId uuid.UUID, slot string) ([]byte, bool, error) {
	var snapshot entity.ReviewSnapshot
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND slot = ?", sessionId, slot).
		First(&snapshot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(snapshot.Payload), true, nil
}

func (r *snapshotRepository) Clear(ctx context.Context, sessionId uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("session_id = ?", sessionId).
		Delete(&entity.ReviewSnapshot{}).Error
}
