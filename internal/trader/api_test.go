package trader

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"hyperliquid-trade-bot-go/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupAPI(t *testing.T) (*Engine, *httptest.Server) {
	t.Helper()
	engine, venue, _, _, _, _ := setupEngine(t)
	// Start fires an immediate first cycle; give it an empty universe.
	venue.On("GetSpotMeta").Return(universe(), nil)
	hub := notify.NewHub(zap.NewNop(), nil)
	api := NewAPIServer(engine, hub, zap.NewNop())
	server := httptest.NewServer(api.server.Handler)
	t.Cleanup(func() {
		engine.Stop()
		server.Close()
	})
	return engine, server
}

func TestHealthEndpoint(t *testing.T) {
	_, server := setupAPI(t)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusEndpoint(t *testing.T) {
	engine, server := setupAPI(t)

	resp, err := http.Get(server.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var status Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, engine.UUID, status.UUID)
	assert.False(t, status.Running)
	assert.Equal(t, 0, status.OpenPositions)
}

func TestStartStopEndpoints(t *testing.T) {
	engine, server := setupAPI(t)

	var result struct {
		Started bool   `json:"started"`
		Stopped bool   `json:"stopped"`
		Status  Status `json:"status"`
	}

	resp, err := http.Post(server.URL+"/start", "application/json", nil)
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	resp.Body.Close()
	assert.True(t, result.Started)
	assert.True(t, result.Status.Running)
	assert.True(t, engine.Running())

	// Starting again is a no-op with observable status.
	resp, err = http.Post(server.URL+"/start", "application/json", nil)
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	resp.Body.Close()
	assert.False(t, result.Started)
	assert.True(t, result.Status.Running)

	resp, err = http.Post(server.URL+"/stop", "application/json", nil)
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	resp.Body.Close()
	assert.True(t, result.Stopped)
	assert.False(t, engine.Running())

	resp, err = http.Post(server.URL+"/stop", "application/json", nil)
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	resp.Body.Close()
	assert.False(t, result.Stopped)
}

func TestTradeEndpoint(t *testing.T) {
	_, server := setupAPI(t)

	resp, err := http.Post(server.URL+"/trade", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var result map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "cycle triggered", result["status"])
}

func TestApiKeyGuard(t *testing.T) {
	engine, server := setupAPI(t)
	engine.cfg.Trading.ApiKey = "secret"

	// The guard reads the key at request time through the engine config.
	resp, err := http.Post(server.URL+"/start", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodPost, server.URL+"/start", nil)
	req.Header.Set("x-api-key", "secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, engine.Running())
}
