package handlers

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/seuros/pathflow/internal/httpx"
	"github.com/seuros/pathflow/internal/logging"
)

// HandleListFunnels returns the saved funnels of a website, newest first.
func (a *API) HandleListFunnels(c fiber.Ctx) error {
	websiteID, err := uuid.Parse(c.Params("website_id"))
	if err != nil {
		return httpx.Error(c, fiber.StatusBadRequest, "Invalid website ID")
	}

	funnels, err := a.funnels.ListFunnels(c.Context(), websiteID)
	if err != nil {
		logging.L().Error("failed to list funnels", "website_id", websiteID, "error", err)
		return httpx.Error(c, fiber.StatusInternalServerError, "Failed to query funnels")
	}
	return c.JSON(funnels)
}
