package contract

import (
	"context"

	"caseforge-be/internal/entity"
)

type IFeedbackRepository interface {
	Create(ctx context.Context, feedback *entity.Feedback) error
}
