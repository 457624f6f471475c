package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/seuros/pathflow/internal/httpx"
	"github.com/seuros/pathflow/internal/journey"
	"github.com/seuros/pathflow/internal/logging"
	"github.com/seuros/pathflow/internal/realtime"
	"github.com/seuros/pathflow/internal/session"
	"github.com/seuros/pathflow/internal/store"
)

// Event types accepted by HandleSessionEvent.
const (
	EventClick        = "click"
	EventHover        = "hover"
	EventUnhover      = "unhover"
	EventEscape       = "escape"
	EventFunnelEnter  = "funnel_enter"
	EventFunnelSelect = "funnel_select"
	EventFunnelCancel = "funnel_cancel"
	EventFunnelSave   = "funnel_save"
	EventRefresh      = "refresh"
)

type createSessionRequest struct {
	WebsiteID string          `json:"website_id"`
	StartAt   httpx.Timestamp `json:"start_at"`
	EndAt     httpx.Timestamp `json:"end_at"`
	Steps     int             `json:"steps"`
	StartStep string          `json:"start_step"`
	EndStep   string          `json:"end_step"`
}

type sessionResponse struct {
	ID   string       `json:"id"`
	View journey.View `json:"view"`
}

// eventRequest carries a node for click, hover and funnel_select. Name is a
// pointer because an empty name is a valid node.
type eventRequest struct {
	Type   string  `json:"type"`
	Column *int    `json:"column"`
	Name   *string `json:"name"`
}

type eventResponse struct {
	Changed bool                      `json:"changed"`
	View    journey.View              `json:"view"`
	Funnel  *journey.FunnelDefinition `json:"funnel,omitempty"`
}

// HandleCreateSession loads the records for a query and starts a session.
func (a *API) HandleCreateSession(c fiber.Ctx) error {
	var req createSessionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return httpx.Error(c, fiber.StatusBadRequest, "Invalid request body")
	}

	websiteID, err := uuid.Parse(req.WebsiteID)
	if err != nil {
		return httpx.Error(c, fiber.StatusBadRequest, "Invalid website ID")
	}

	q := store.PathQuery{
		WebsiteID: websiteID,
		StartAt:   req.StartAt.Time,
		EndAt:     req.EndAt.Time,
		Steps:     req.Steps,
		StartStep: req.StartStep,
		EndStep:   req.EndStep,
	}
	if q.EndAt.IsZero() {
		q.EndAt = a.now().UTC()
	}
	if q.StartAt.IsZero() {
		q.StartAt = q.EndAt.Add(-a.opts.DefaultRange)
	}
	if q.Steps == 0 {
		q.Steps = a.opts.DefaultSteps
	}
	if err := q.Validate(); err != nil {
		return httpx.Error(c, fiber.StatusBadRequest, err.Error())
	}

	records, err := a.paths.Paths(c.Context(), q)
	if err != nil {
		logging.L().Error("failed to load paths", "website_id", websiteID, "error", err)
		return httpx.Error(c, fiber.StatusInternalServerError, "Failed to query journeys")
	}

	s, err := journey.NewSession(records, q.Steps, a.saver(),
		journey.WithWebsite(websiteID.String()),
		journey.WithWindow(a.opts.FunnelWindow),
	)
	if err != nil {
		return httpx.Error(c, fiber.StatusBadRequest, err.Error())
	}

	entry := a.sessions.Create(q, s)
	return c.Status(fiber.StatusCreated).JSON(sessionResponse{ID: entry.ID, View: entry.View()})
}

func (a *API) HandleGetSession(c fiber.Ctx) error {
	entry, err := a.sessions.Get(c.Params("id"))
	if err != nil {
		return httpx.Error(c, fiber.StatusNotFound, "Session not found")
	}
	return c.JSON(sessionResponse{ID: entry.ID, View: entry.View()})
}

func (a *API) HandleDeleteSession(c fiber.Ctx) error {
	if !a.sessions.Delete(c.Params("id")) {
		return httpx.Error(c, fiber.StatusNotFound, "Session not found")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleSessionEvent applies one interaction event and returns the new view.
// Rejected interactions are not errors; they report changed=false.
func (a *API) HandleSessionEvent(c fiber.Ctx) error {
	entry, err := a.sessions.Get(c.Params("id"))
	if err != nil {
		return httpx.Error(c, fiber.StatusNotFound, "Session not found")
	}

	var req eventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return httpx.Error(c, fiber.StatusBadRequest, "Invalid request body")
	}

	switch req.Type {
	case EventFunnelSave:
		return a.saveFunnel(c, entry)
	case EventRefresh:
		return a.refresh(c, entry)
	}

	var ref journey.NodeRef
	if needsNode(req.Type) {
		if req.Column == nil || req.Name == nil {
			return httpx.Error(c, fiber.StatusBadRequest, "column and name are required")
		}
		ref = journey.NodeRef{Column: *req.Column, Name: *req.Name}
	}

	var (
		changed bool
		saving  bool
		unknown bool
	)
	entry.Do(func(s *journey.Session) {
		switch req.Type {
		case EventClick:
			changed = s.Click(ref)
		case EventHover:
			changed = s.Hover(ref)
		case EventUnhover:
			s.Unhover()
			changed = true
		case EventEscape:
			changed = s.Escape()
		case EventFunnelEnter:
			changed = s.EnterFunnel()
		case EventFunnelSelect:
			changed = s.SelectFunnelStep(ref)
		case EventFunnelCancel:
			changed = s.CancelFunnel()
		default:
			unknown = true
		}
		if draft, ok := s.Draft(); ok {
			saving = draft.Saving()
		}
	})

	if unknown {
		return httpx.Error(c, fiber.StatusBadRequest, "Unknown event type")
	}
	if !changed && saving && mutatesDraft(req.Type) {
		return httpx.Error(c, fiber.StatusConflict, journey.ErrSaveInProgress.Error())
	}
	return c.JSON(eventResponse{Changed: changed, View: entry.View()})
}

func (a *API) saveFunnel(c fiber.Ctx, entry *session.Entry) error {
	def, err := entry.Save(c.Context())
	switch {
	case err == nil:
		return c.JSON(eventResponse{Changed: true, View: entry.View(), Funnel: def})
	case errors.Is(err, journey.ErrNotDrafting), errors.Is(err, journey.ErrSaveInProgress):
		return httpx.Error(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, journey.ErrInvalidSave):
		return httpx.Error(c, fiber.StatusUnprocessableEntity, err.Error())
	default:
		logging.L().Error("funnel save failed", "session_id", entry.ID, "error", err)
		return httpx.Error(c, fiber.StatusBadGateway, journey.ErrPersistence.Error())
	}
}

// refresh drops any cached result for the session's query before reloading,
// so the session sees the store's current records.
func (a *API) refresh(c fiber.Ctx, entry *session.Entry) error {
	if inv, ok := a.paths.(PathInvalidator); ok {
		if err := inv.Invalidate(c.Context(), entry.Query); err != nil {
			logging.L().Warn("failed to invalidate cached paths", "session_id", entry.ID, "error", err)
		}
	}
	a.flows.Clear()

	records, err := a.paths.Paths(c.Context(), entry.Query)
	if err != nil {
		logging.L().Error("failed to refresh paths", "session_id", entry.ID, "error", err)
		return httpx.Error(c, fiber.StatusInternalServerError, "Failed to query journeys")
	}
	entry.Do(func(s *journey.Session) { s.SetRecords(records) })
	return c.JSON(eventResponse{Changed: true, View: entry.View()})
}

// saver persists a funnel and announces it. A lost announcement does not
// fail the save.
func (a *API) saver() journey.FunnelSaver {
	return journey.FunnelSaverFunc(func(ctx context.Context, def journey.FunnelDefinition) error {
		if err := a.funnels.SaveFunnel(ctx, def); err != nil {
			return err
		}
		if a.notifier != nil {
			_ = a.notifier.NotifyFunnel(ctx, realtime.NewFunnelEvent(def, a.now().UTC()))
		}
		return nil
	})
}

func needsNode(eventType string) bool {
	switch eventType {
	case EventClick, EventHover, EventFunnelSelect:
		return true
	}
	return false
}

func mutatesDraft(eventType string) bool {
	switch eventType {
	case EventClick, EventFunnelSelect, EventFunnelCancel, EventEscape:
		return true
	}
	return false
}
