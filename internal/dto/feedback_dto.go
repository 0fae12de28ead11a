package dto

import "github.com/google/uuid"

type CreateFeedbackRequest struct {
	Comment string `json:"comment" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
}

type CreateFeedbackResponse struct {
	Id uuid.UUID `json:"id"`
}
