package controller

import (
	"second-brain/internal/dto"
	"second-brain/internal/pkg/serverutils"
	"second-brain/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IJournalController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	GetContext(ctx *fiber.Ctx) error
}

type journalController struct {
	contextService service.IContextService
}

func NewJournalController(contextService service.IContextService) IJournalController {
	return &journalController{
		contextService: contextService,
	}
}

func (c *journalController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/journal/v1")
	h.Use(auth)
	h.Get("context", c.GetContext)
}

// GetContext returns the fused journal context for ?q=. An unreachable journal is a 503.
func (c *journalController) GetContext(ctx *fiber.Ctx) error {
	var req dto.GetContextRequest
	if err := ctx.QueryParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.contextService.GetContext(ctx.UserContext(), req.Query)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get journal context", res))
}
