package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/seuros/pathflow/internal/httpx"
	"github.com/seuros/pathflow/internal/journey"
	"github.com/seuros/pathflow/internal/logging"
	"github.com/seuros/pathflow/internal/store"
)

// HandleJourney returns the derived flow for a website and time range. The
// optional selected/active parameters drill into it the way clicks and
// hovers would.
func (a *API) HandleJourney(c fiber.Ctx) error {
	websiteID, err := uuid.Parse(c.Params("website_id"))
	if err != nil {
		return httpx.Error(c, fiber.StatusBadRequest, "Invalid website ID")
	}

	q, err := a.queryFromRequest(c, websiteID)
	if err != nil {
		return httpx.Error(c, fiber.StatusBadRequest, err.Error())
	}

	records, err := a.paths.Paths(c.Context(), q)
	if err != nil {
		logging.L().Error("failed to load paths", "website_id", websiteID, "error", err)
		return httpx.Error(c, fiber.StatusInternalServerError, "Failed to query journeys")
	}

	sel, err := httpx.QuerySelection(c, records)
	if err != nil {
		return httpx.Error(c, fiber.StatusBadRequest, err.Error())
	}

	key := flowKey(q, sel)
	if flow, ok := a.flows.Flow(key); ok {
		c.Set("X-Cache", "HIT")
		return c.JSON(flow)
	}

	flow := journey.Derive(records, q.Steps, sel)
	a.flows.SetFlow(key, flow)
	c.Set("X-Cache", "MISS")
	return c.JSON(flow)
}

func (a *API) queryFromRequest(c fiber.Ctx, websiteID uuid.UUID) (store.PathQuery, error) {
	end, err := httpx.QueryTime(c, "end_at", a.now().UTC())
	if err != nil {
		return store.PathQuery{}, err
	}
	start, err := httpx.QueryTime(c, "start_at", end.Add(-a.opts.DefaultRange))
	if err != nil {
		return store.PathQuery{}, err
	}

	q := store.PathQuery{
		WebsiteID: websiteID,
		StartAt:   start,
		EndAt:     end,
		Steps:     fiber.Query[int](c, "steps", a.opts.DefaultSteps),
		StartStep: c.Query("start_step"),
		EndStep:   c.Query("end_step"),
	}
	if err := q.Validate(); err != nil {
		if errors.Is(err, journey.ErrInvalidSteps) {
			return q, errors.New("steps must be between 2 and 8")
		}
		return q, err
	}
	return q, nil
}

func flowKey(q store.PathQuery, sel journey.Selection) string {
	var b strings.Builder
	b.WriteString(q.Key())
	for _, ref := range []*journey.NodeRef{sel.Selected, sel.Active} {
		b.WriteByte('|')
		if ref != nil {
			b.WriteString(refKey(*ref))
		}
	}
	return b.String()
}

func refKey(ref journey.NodeRef) string {
	return strconv.Itoa(ref.Column) + ":" + strconv.Quote(ref.Name)
}
