package implementation

import (
	"context"

	"caseforge-be/internal/entity"
	"caseforge-be/internal/repository/contract"

	"gorm.io/gorm"
)

type analyticsEventRepository struct {
	db *gorm.DB
}

func NewAnalyticsEventRepository(db *gorm.DB) contract.IAnalyticsEventRepository {
	return &analyticsEventRepository{db: db}
}

func (r *analyticsEventRepository) Create(ctx context.Context, event *entity.AnalyticsEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}
