package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/seuros/pathflow/internal/cache"
	"github.com/seuros/pathflow/internal/journey"
	"github.com/seuros/pathflow/internal/realtime"
	"github.com/seuros/pathflow/internal/session"
	"github.com/seuros/pathflow/internal/store"
)

// PathSource loads path records for a query.
type PathSource interface {
	Paths(ctx context.Context, q store.PathQuery) ([]journey.PathRecord, error)
}

// PathInvalidator is implemented by path sources that cache query results.
type PathInvalidator interface {
	Invalidate(ctx context.Context, q store.PathQuery) error
}

// FunnelStore persists and lists funnels.
type FunnelStore interface {
	SaveFunnel(ctx context.Context, def journey.FunnelDefinition) error
	ListFunnels(ctx context.Context, websiteID uuid.UUID) ([]store.SavedFunnel, error)
}

// Notifier announces saved funnels to other dashboards.
type Notifier interface {
	NotifyFunnel(ctx context.Context, event realtime.FunnelEvent) error
}

// Options tune request defaults.
type Options struct {
	DefaultSteps int
	FunnelWindow int
	DefaultRange time.Duration
}

// API serves the journey endpoints.
type API struct {
	paths    PathSource
	funnels  FunnelStore
	notifier Notifier
	flows    *cache.Cache
	sessions *session.Registry
	opts     Options
	now      func() time.Time
}

// New wires the API. notifier and flows may be nil.
func New(paths PathSource, funnels FunnelStore, notifier Notifier, flows *cache.Cache, sessions *session.Registry, opts Options) *API {
	if opts.DefaultSteps == 0 {
		opts.DefaultSteps = 5
	}
	if opts.FunnelWindow == 0 {
		opts.FunnelWindow = journey.DefaultFunnelWindow
	}
	if opts.DefaultRange == 0 {
		opts.DefaultRange = 7 * 24 * time.Hour
	}
	return &API{
		paths:    paths,
		funnels:  funnels,
		notifier: notifier,
		flows:    flows,
		sessions: sessions,
		opts:     opts,
		now:      time.Now,
	}
}

// Register mounts the journey, session and funnel routes. The websocket
// route is only mounted when hub is not nil.
func (a *API) Register(app *fiber.App, hub *realtime.Hub) {
	app.Get("/api/journey/:website_id", a.HandleJourney)

	app.Post("/api/journey/sessions", a.HandleCreateSession)
	app.Get("/api/journey/sessions/:id", a.HandleGetSession)
	app.Delete("/api/journey/sessions/:id", a.HandleDeleteSession)
	app.Post("/api/journey/sessions/:id/events", a.HandleSessionEvent)

	app.Get("/api/funnels/:website_id", a.HandleListFunnels)
	app.Get("/api/stats", a.HandleStats)

	if hub != nil {
		app.Get("/ws/funnels", realtime.Upgrade, hub.Handler())
	}
}
