package controller

import (
	"caseforge-be/internal/dto"
	"caseforge-be/internal/pkg/serverutils"
	"caseforge-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IReviewController interface {
	RegisterRoutes(r fiber.Router)
	Generate(ctx *fiber.Ctx) error
	Current(ctx *fiber.Ctx) error
	Improve(ctx *fiber.Ctx) error
	BeginSectionEdit(ctx *fiber.Ctx) error
	CancelSectionEdit(ctx *fiber.Ctx) error
	ImproveSection(ctx *fiber.Ctx) error
	State(ctx *fiber.Ctx) error
	NewCase(ctx *fiber.Ctx) error
}

type reviewController struct {
	reviewService service.IReviewService
}

func NewReviewController(reviewService service.IReviewService) IReviewController {
	return &reviewController{
		reviewService: reviewService,
	}
}

func (c *reviewController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/review/v1")
	h.Use(serverutils.SessionMiddleware)
	h.Post("generate", c.Generate)
	h.Get("", c.Current)
	h.Post("improve", c.Improve)
	h.Post("section/begin", c.BeginSectionEdit)
	h.Post("section/cancel", c.CancelSectionEdit)
	h.Post("section/improve", c.ImproveSection)
	h.Get("state", c.State)
	h.Post("new-case", c.NewCase)
}

func (c *reviewController) Generate(ctx *fiber.Ctx) error {
	sessionId := serverutils.SessionID(ctx)

	var req dto.GenerateReviewRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.reviewService.Generate(ctx.Context(), sessionId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success generate review", res))
}

func (c *reviewController) Current(ctx *fiber.Ctx) error {
	sessionId := serverutils.SessionID(ctx)

	res, err := c.reviewService.Current(ctx.Context(), sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show review", res))
}

func (c *reviewController) Improve(ctx *fiber.Ctx) error {
	sessionId := serverutils.SessionID(ctx)

	var req dto.ImproveReviewRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.reviewService.ImproveWhole(ctx.Context(), sessionId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success improve review", res))
}

func (c *reviewController) BeginSectionEdit(ctx *fiber.Ctx) error {
	sessionId := serverutils.SessionID(ctx)

	var req dto.SectionTargetRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.reviewService.BeginSectionEdit(ctx.Context(), sessionId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success begin section edit", res))
}

func (c *reviewController) CancelSectionEdit(ctx *fiber.Ctx) error {
	sessionId := serverutils.SessionID(ctx)

	var req dto.SectionTargetRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.reviewService.CancelSectionEdit(ctx.Context(), sessionId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success cancel section edit", res))
}

func (c *reviewController) ImproveSection(ctx *fiber.Ctx) error {
	sessionId := serverutils.SessionID(ctx)

	var req dto.ImproveSectionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.reviewService.ImproveSection(ctx.Context(), sessionId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success improve section", res))
}

func (c *reviewController) State(ctx *fiber.Ctx) error {
	sessionId := serverutils.SessionID(ctx)

	res, err := c.reviewService.State(ctx.Context(), sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show session state", res))
}

func (c *reviewController) NewCase(ctx *fiber.Ctx) error {
	sessionId := serverutils.SessionID(ctx)

	err := c.reviewService.NewCase(ctx.Context(), sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success start new case", nil))
}
