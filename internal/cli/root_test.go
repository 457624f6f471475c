package cli

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seuros/pathflow/internal/config"
	"github.com/seuros/pathflow/internal/handlers"
	"github.com/seuros/pathflow/internal/session"
)

func stubPingDatabase(t *testing.T, fn func() error) {
	t.Helper()
	original := pingDatabase
	pingDatabase = fn
	t.Cleanup(func() {
		pingDatabase = original
	})
}

func get(t *testing.T, target string, origin string) (*http.Response, []byte) {
	t.Helper()
	api := handlers.New(nil, nil, nil, nil, session.NewRegistry(time.Minute), handlers.Options{})
	app := newApp(&config.Config{AllowedOrigins: []string{"https://app.example.com"}}, api, nil)

	req := httptest.NewRequest(http.MethodGet, target, nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestHandleHealthPayload(t *testing.T) {
	resp, body := get(t, "/health", "")

	var payload map[string]any
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", payload["status"])
	assert.Equal(t, "pathflow", payload["service"])
}

func TestHandleUpReturnsOKWhenDatabaseHealthy(t *testing.T) {
	stubPingDatabase(t, func() error { return nil })

	resp, _ := get(t, "/up", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleUpReturnsServiceUnavailableWhenPingFails(t *testing.T) {
	stubPingDatabase(t, func() error { return errors.New("boom") })

	resp, body := get(t, "/up", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "database unavailable", string(body))
}

func TestHandleVersionReturnsCurrentVersion(t *testing.T) {
	originalVersion := Version
	Version = "1.2.3"
	t.Cleanup(func() {
		Version = originalVersion
	})

	resp, body := get(t, "/api/version", "")

	var payload map[string]string
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "1.2.3", payload["version"])
	assert.Equal(t, "1.2.3", resp.Header.Get("X-Pathflow-Version"))
}

func TestNewAppAppliesCORSOrigins(t *testing.T) {
	resp, _ := get(t, "/health", "https://app.example.com")
	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, _ = get(t, "/health", "https://evil.example.com")
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestNewAppMountsJourneyRoutes(t *testing.T) {
	resp, _ := get(t, "/api/journey/sessions/unknown", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = get(t, "/api/journey/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range RootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"serve", "flow", "funnels", "doctor", "healthcheck"} {
		assert.True(t, names[want], "missing %s command", want)
	}
}

func TestCheckHealth(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()
	assert.NoError(t, checkHealth(ok.URL))

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	assert.Error(t, checkHealth(down.URL))
}
