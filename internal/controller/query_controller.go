package controller

import (
	"ai-docquery-be/internal/dto"
	"ai-docquery-be/internal/pkg/serverutils"
	"ai-docquery-be/internal/service"
	"ai-docquery-be/pkg/rag"

	"github.com/gofiber/fiber/v2"
)

type IQueryController interface {
	RegisterRoutes(r fiber.Router)
	Query(ctx *fiber.Ctx) error
}

type queryController struct {
	queryService service.IQueryService
}

func NewQueryController(queryService service.IQueryService) IQueryController {
	return &queryController{
		queryService: queryService,
	}
}

func (c *queryController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/query/v1")
	h.Post("", c.Query)
}

func (c *queryController) Query(ctx *fiber.Ctx) error {
	var req dto.QueryRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewBadRequestError("invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.queryService.Query(ctx.Context(), &req)
	if err != nil {
		if rag.IsClientError(err) {
			return serverutils.NewBadRequestError(err.Error())
		}
		return serverutils.NewInternalError(err.Error())
	}

	return ctx.JSON(serverutils.SuccessResponse("Success query documents", res))
}
