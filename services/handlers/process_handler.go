package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/riddlehouse/riddle_api/dto"
	"github.com/riddlehouse/riddle_api/shared"
)

type ProcessHandler struct {
	progressionSvc ProgressionServiceInterface
}

func NewProcessHandler(progressionSvc ProgressionServiceInterface) *ProcessHandler {
	return &ProcessHandler{
		progressionSvc: progressionSvc,
	}
}

// @Summary Process Page Visit
// @Description Report a page visit from the browser extension and apply any progression transitions it triggers
// @Tags progression
// @Accept json
// @Produce json
// @Param request body dto.ProcessRequest true "Visited page"
// @Success 200 {object} shared.Response{data=dto.ProcessResponse}
// @Failure 400 {object} shared.Response
// @Failure 401 {object} shared.Response
// @Security BearerAuth
// @Router /api/v1/process [post]
func (h *ProcessHandler) ProcessVisit(c *fiber.Ctx) error {
	username := c.Locals(shared.Username).(string)

	var req dto.ProcessRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "invalid request body")
	}

	if err := dto.GetValidator().Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.CreateValidationErrorResponse(err))
	}

	resp, err := h.progressionSvc.ProcessVisit(username, req)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", resp)
}
