package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/riddlehouse/riddle_api/shared"
)

type AdminHandler struct {
	catalogSvc CatalogServiceInterface
	mediaSvc   MediaServiceInterface
}

func NewAdminHandler(catalogSvc CatalogServiceInterface, mediaSvc MediaServiceInterface) *AdminHandler {
	return &AdminHandler{
		catalogSvc: catalogSvc,
		mediaSvc:   mediaSvc,
	}
}

// @Summary Reload Riddle Catalog
// @Description Rebuild one riddle's in-memory catalog after its levels changed in the database
// @Tags admin
// @Accept json
// @Produce json
// @Param riddle path string true "Riddle alias"
// @Success 200 {object} shared.Response{data=string}
// @Failure 404 {object} shared.Response
// @Security BearerAuth
// @Router /api/v1/admin/reload/{riddle} [post]
func (h *AdminHandler) ReloadRiddle(c *fiber.Ctx) error {
	riddle := c.Params("riddle")

	if err := h.catalogSvc.ReloadRiddle(riddle); err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", "reloaded")
}

// @Summary Upload Achievement Media
// @Description Store an achievement image in object storage under the given object key
// @Tags admin
// @Accept octet-stream
// @Produce json
// @Param object path string true "Object key"
// @Success 201 {object} shared.Response{data=string}
// @Failure 400 {object} shared.Response
// @Security BearerAuth
// @Router /api/v1/admin/media/{object} [post]
func (h *AdminHandler) UploadMedia(c *fiber.Ctx) error {
	object := c.Params("object")

	body := c.Body()
	if len(body) == 0 {
		return shared.NewBadRequestError(nil, "empty upload body")
	}

	if !h.mediaSvc.Enabled() {
		return shared.NewBadRequestError(nil, "media storage is not configured")
	}

	contentType := c.Get(fiber.HeaderContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := h.mediaSvc.UploadMedia(object, body, contentType); err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusCreated, "Success", object)
}
