package service

import (
	"context"
	"time"

	"caseforge-be/internal/dto"
	"caseforge-be/internal/entity"
	"caseforge-be/internal/pkg/logger"
	"caseforge-be/internal/pkg/mailer"
	"caseforge-be/internal/repository/contract"
	"caseforge-be/pkg/events"

	"github.com/google/uuid"
)

type IFeedbackService interface {
	Create(ctx context.Context, sessionId uuid.UUID, req *dto.CreateFeedbackRequest) (*dto.CreateFeedbackResponse, error)
}

type feedbackService struct {
	feedbacks    contract.IFeedbackRepository
	emailService mailer.IEmailService
	publisher    IPublisherService
	logger       logger.ILogger
}

func NewFeedbackService(
	feedbacks contract.IFeedbackRepository,
	emailService mailer.IEmailService,
	publisher IPublisherService,
	appLogger logger.ILogger,
) IFeedbackService {
	return &feedbackService{
		feedbacks:    feedbacks,
		emailService: emailService,
		publisher:    publisher,
		logger:       appLogger,
	}
}

func (s *feedbackService) Create(ctx context.Context, sessionId uuid.UUID, req *dto.CreateFeedbackRequest) (*dto.CreateFeedbackResponse, error) {
	feedback := entity.Feedback{
		Id:        uuid.New(),
		SessionId: sessionId,
		Comment:   req.Comment,
		Email:     req.Email,
		CreatedAt: time.Now(),
	}

	if err := s.feedbacks.Create(ctx, &feedback); err != nil {
		return nil, err
	}

	// The ops notice must not delay or fail the submission.
	if s.emailService != nil {
		go func(comment, email string) {
			if err := s.emailService.SendFeedbackNotice(comment, email); err != nil {
				s.logger.Warn("feedback-service", "failed to send feedback notice", map[string]interface{}{
					"feedback_id": feedback.Id.String(),
					"error":       err.Error(),
				})
			}
		}(req.Comment, req.Email)
	}

	s.publisher.Publish(ctx, events.NewFeedbackSubmitted(sessionId, req.Email != ""))

	return &dto.CreateFeedbackResponse{Id: feedback.Id}, nil
}
