package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/seuros/pathflow/internal/cache"
	"github.com/seuros/pathflow/internal/journey"
	"github.com/seuros/pathflow/internal/realtime"
	"github.com/seuros/pathflow/internal/session"
	"github.com/seuros/pathflow/internal/store"
)

var testWebsiteID = uuid.MustParse("6f1c2d9e-3b7a-4c1e-9d2f-0a1b2c3d4e5f")

type fakeStore struct {
	mu        sync.Mutex
	records   []journey.PathRecord
	pathsErr  error
	queries   []store.PathQuery
	saved     []journey.FunnelDefinition
	saveErr   error
	saveGate  chan struct{}
	saveStart chan struct{}
	listed    []store.SavedFunnel
	listErr   error
}

func (f *fakeStore) Paths(_ context.Context, q store.PathQuery) ([]journey.PathRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return f.records, f.pathsErr
}

func (f *fakeStore) SaveFunnel(_ context.Context, def journey.FunnelDefinition) error {
	if f.saveStart != nil {
		close(f.saveStart)
	}
	if f.saveGate != nil {
		<-f.saveGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, def)
	return nil
}

func (f *fakeStore) ListFunnels(_ context.Context, websiteID uuid.UUID) ([]store.SavedFunnel, error) {
	return f.listed, f.listErr
}

func (f *fakeStore) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []realtime.FunnelEvent
	err    error
}

func (n *fakeNotifier) NotifyFunnel(_ context.Context, event realtime.FunnelEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

func pricingRecords() []journey.PathRecord {
	return []journey.PathRecord{
		journey.MustPathRecord(50, "/", "/pricing", "/signup"),
		journey.MustPathRecord(30, "/", "/docs", "/api"),
		journey.MustPathRecord(20, "/blog", "/pricing", "/signup"),
		journey.MustPathRecord(10, "/", "/pricing"),
	}
}

type testEnv struct {
	app      *fiber.App
	api      *API
	store    *fakeStore
	notifier *fakeNotifier
	sessions *session.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	flows, err := cache.New(1, time.Minute)
	require.NoError(t, err)
	t.Cleanup(flows.Close)

	fs := &fakeStore{records: pricingRecords()}
	notifier := &fakeNotifier{}
	sessions := session.NewRegistry(time.Minute)
	api := New(fs, fs, notifier, flows, sessions, Options{DefaultSteps: 3})
	api.now = func() time.Time { return time.Date(2025, time.March, 8, 0, 0, 0, 0, time.UTC) }

	app := fiber.New()
	api.Register(app, nil)
	return &testEnv{app: app, api: api, store: fs, notifier: notifier, sessions: sessions}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

var errBoom = errors.New("boom")
