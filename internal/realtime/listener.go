package realtime

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/seuros/pathflow/internal/journey"
	"github.com/seuros/pathflow/internal/logging"
)

const ChannelName = "pathflow_funnel_events"

// EventFunnelCreated is sent after a funnel draft is saved.
const EventFunnelCreated = "funnel.created"

// FunnelEvent is the NOTIFY payload and the websocket message.
type FunnelEvent struct {
	Type      string                   `json:"type"`
	WebsiteID string                   `json:"website_id"`
	Funnel    journey.FunnelDefinition `json:"funnel"`
	CreatedAt time.Time                `json:"created_at"`
}

func NewFunnelEvent(def journey.FunnelDefinition, createdAt time.Time) FunnelEvent {
	return FunnelEvent{
		Type:      EventFunnelCreated,
		WebsiteID: def.WebsiteID,
		Funnel:    def,
		CreatedAt: createdAt,
	}
}

// Notifier publishes funnel events through PostgreSQL NOTIFY so every
// instance's listener sees them.
type Notifier struct {
	db *sql.DB
}

func NewNotifier(db *sql.DB) *Notifier {
	return &Notifier{db: db}
}

// NotifyFunnel sends the event. Failures are logged and returned; a saved
// funnel stays saved even when the notification is lost.
func (n *Notifier) NotifyFunnel(ctx context.Context, event FunnelEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal funnel event: %w", err)
	}

	if _, err := n.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", ChannelName, string(data)); err != nil {
		logging.L().Warn("failed to send realtime notification", "error", err)
		return err
	}
	return nil
}

// StartListener relays notifications on ChannelName to hub until ctx ends.
func StartListener(ctx context.Context, databaseURL string, hub *Hub) error {
	listener := pq.NewListener(databaseURL, 5*time.Second, time.Minute, func(event pq.ListenerEventType, err error) {
		if err != nil {
			logging.L().Warn("realtime listener event", "event", event, "error", err)
		}
	})

	if err := listener.Listen(ChannelName); err != nil {
		_ = listener.Close()
		return err
	}

	go relay(ctx, listener.Notify, listener.Ping, hub)
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	return nil
}

func relay(ctx context.Context, notify <-chan *pq.Notification, ping func() error, hub *Hub) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notify:
			if !ok {
				return
			}
			if n == nil {
				continue
			}
			hub.Publish([]byte(n.Extra))
		case <-time.After(time.Minute):
			if err := ping(); err != nil {
				logging.L().Warn("realtime listener ping failed", "error", err)
			}
		}
	}
}
