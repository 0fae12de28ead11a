package contract

import (
	"context"

	"caseforge-be/internal/entity"
)

type IAnalyticsEventRepository interface {
	Create(ctx context.Context, event *entity.AnalyticsEvent) error
}
