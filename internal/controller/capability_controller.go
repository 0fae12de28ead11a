package controller

import (
	"caseforge-be/internal/dto"
	"caseforge-be/internal/pkg/serverutils"
	"caseforge-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ICapabilityController interface {
	RegisterRoutes(r fiber.Router)
	Catalog(ctx *fiber.Ctx) error
	Select(ctx *fiber.Ctx) error
	SelectExperienceGroups(ctx *fiber.Ctx) error
}

type capabilityController struct {
	capabilityService service.ICapabilityService
}

func NewCapabilityController(capabilityService service.ICapabilityService) ICapabilityController {
	return &capabilityController{
		capabilityService: capabilityService,
	}
}

func (c *capabilityController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/capability/v1")
	h.Use(serverutils.SessionMiddleware)
	h.Get("", c.Catalog)
	h.Post("select", c.Select)
	h.Post("experience-groups", c.SelectExperienceGroups)
}

func (c *capabilityController) Catalog(ctx *fiber.Ctx) error {
	res := c.capabilityService.Catalog(ctx.Context())
	return ctx.JSON(serverutils.SuccessResponse("Success list capabilities", res))
}

func (c *capabilityController) Select(ctx *fiber.Ctx) error {
	var req dto.SelectCapabilitiesRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.capabilityService.SelectCapabilities(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success select capabilities", res))
}

func (c *capabilityController) SelectExperienceGroups(ctx *fiber.Ctx) error {
	var req dto.SelectExperienceGroupsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.capabilityService.SelectExperienceGroups(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success select experience groups", res))
}
