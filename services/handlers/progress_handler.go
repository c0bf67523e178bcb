package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/riddlehouse/riddle_api/dto"
	"github.com/riddlehouse/riddle_api/shared"
)

type ProgressHandler struct {
	progressionSvc ProgressionServiceInterface
}

func NewProgressHandler(progressionSvc ProgressionServiceInterface) *ProgressHandler {
	return &ProgressHandler{
		progressionSvc: progressionSvc,
	}
}

// @Summary Get Player Progress
// @Description Get the authenticated player's progress in one riddle
// @Tags progression
// @Accept json
// @Produce json
// @Param riddle path string true "Riddle alias"
// @Success 200 {object} shared.Response{data=dto.ProgressResponse}
// @Failure 404 {object} shared.Response
// @Security BearerAuth
// @Router /api/v1/progress/{riddle} [get]
func (h *ProgressHandler) GetProgress(c *fiber.Ctx) error {
	username := c.Locals(shared.Username).(string)
	riddle := c.Params("riddle")

	resp, err := h.progressionSvc.GetProgress(riddle, username)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", resp)
}

// @Summary Rate Level
// @Description Rate a level the player has already solved
// @Tags progression
// @Accept json
// @Produce json
// @Param riddle path string true "Riddle alias"
// @Param level path string true "Level name"
// @Param request body dto.RateLevelRequest true "Rating"
// @Success 200 {object} shared.Response{data=string}
// @Failure 404 {object} shared.Response
// @Failure 409 {object} shared.Response
// @Security BearerAuth
// @Router /api/v1/rate/{riddle}/{level} [post]
func (h *ProgressHandler) RateLevel(c *fiber.Ctx) error {
	username := c.Locals(shared.Username).(string)
	riddle := c.Params("riddle")
	level := c.Params("level")

	var req dto.RateLevelRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "invalid request body")
	}

	if err := dto.GetValidator().Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.CreateValidationErrorResponse(err))
	}

	if err := h.progressionSvc.RateLevel(riddle, username, level, req.Rating); err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", "rated")
}

// @Summary Get Leaderboard
// @Description Get the top players of one riddle by score
// @Tags progression
// @Accept json
// @Produce json
// @Param riddle path string true "Riddle alias"
// @Param limit query int false "Limit results (default 20)"
// @Success 200 {object} shared.Response{data=dto.LeaderboardResponse}
// @Router /api/v1/leaderboard/{riddle} [get]
func (h *ProgressHandler) Leaderboard(c *fiber.Ctx) error {
	riddle := c.Params("riddle")

	limit := 20
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	resp, err := h.progressionSvc.Leaderboard(riddle, limit)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", resp)
}
