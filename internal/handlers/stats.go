package handlers

import (
	"github.com/gofiber/fiber/v3"

	"github.com/seuros/pathflow/internal/cache"
)

type statsResponse struct {
	FlowCache cache.MetricsSnapshot `json:"flow_cache"`
	Sessions  int                   `json:"sessions"`
}

// HandleStats reports flow cache counters and the number of live sessions.
func (a *API) HandleStats(c fiber.Ctx) error {
	return c.JSON(statsResponse{
		FlowCache: a.flows.Snapshot(),
		Sessions:  a.sessions.Len(),
	})
}
