package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFunnelEventCarriesWebsite(t *testing.T) {
	event := testEvent("site-a")

	assert.Equal(t, EventFunnelCreated, event.Type)
	assert.Equal(t, "site-a", event.WebsiteID)
	assert.Equal(t, "f-1", event.Funnel.ID)
}

func TestNotifyFunnelPublishesPayload(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	event := testEvent("site-a")
	data, err := json.Marshal(event)
	require.NoError(t, err)

	mock.ExpectExec("SELECT pg_notify").
		WithArgs(ChannelName, string(data)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewNotifier(db).NotifyFunnel(context.Background(), event))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotifyFunnelReturnsExecError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("SELECT pg_notify").WillReturnError(assert.AnError)

	err = NewNotifier(db).NotifyFunnel(context.Background(), testEvent("site-a"))
	require.ErrorIs(t, err, assert.AnError)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelayForwardsNotificationsToHub(t *testing.T) {
	hub := NewHub()
	t.Cleanup(hub.Stop)
	client := newTestClient(hub, "site-a", 1)
	hub.register <- client
	waitForCondition(t, time.Second, func() bool { return hub.ClientCount() == 1 })

	notify := make(chan *pq.Notification, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go relay(ctx, notify, func() error { return nil }, hub)

	notify <- nil
	notify <- &pq.Notification{Channel: ChannelName, Extra: `{"type":"funnel.created","website_id":"site-a"}`}

	select {
	case got := <-client.send:
		assert.Contains(t, string(got), "site-a")
	case <-time.After(time.Second):
		t.Fatal("notification was not relayed")
	}
}

func TestRelayStopsWhenChannelCloses(t *testing.T) {
	notify := make(chan *pq.Notification)
	done := make(chan struct{})
	go func() {
		relay(context.Background(), notify, func() error { return nil }, nil)
		close(done)
	}()

	close(notify)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
