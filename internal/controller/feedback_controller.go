package controller

import (
	"caseforge-be/internal/dto"
	"caseforge-be/internal/pkg/serverutils"
	"caseforge-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IFeedbackController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
}

type feedbackController struct {
	feedbackService service.IFeedbackService
}

func NewFeedbackController(feedbackService service.IFeedbackService) IFeedbackController {
	return &feedbackController{
		feedbackService: feedbackService,
	}
}

func (c *feedbackController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/feedback/v1")
	h.Use(serverutils.SessionMiddleware)
	h.Post("", c.Create)
}

func (c *feedbackController) Create(ctx *fiber.Ctx) error {
	sessionId := serverutils.SessionID(ctx)

	var req dto.CreateFeedbackRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.feedbackService.Create(ctx.Context(), sessionId, &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create feedback", res))
}
