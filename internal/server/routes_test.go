package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picguess/picguess-backend/internal"
	"github.com/picguess/picguess-backend/internal/game"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	registry := game.NewRegistry(game.SystemClock(), 0, zerolog.Nop())
	srv := New(registry, internal.Settings{
		RoundDurationMs: internal.DefaultRoundDuration.Milliseconds(),
		TotalRounds:     internal.DefaultTotalRounds,
	}, zerolog.Nop())

	ts := httptest.NewServer(srv.RegisterRoutes())
	t.Cleanup(ts.Close)
	return ts
}

func createRoom(t *testing.T, ts *httptest.Server, body string) createRoomResponse {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString(body)
	resp, err := http.Post(ts.URL+"/rooms", "application/json", &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created createRoomResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	return created
}

func doJSON(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(hostTokenHeader, token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthHandler(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestCreateRoomHandler(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	t.Run("defaults without body", func(t *testing.T) {
		created := createRoom(t, ts, "")
		assert.NotEmpty(t, created.RoomID)
		assert.NotEmpty(t, created.HostToken)
		assert.Equal(t, internal.DefaultRoundDuration.Milliseconds(), created.Settings.RoundDurationMs)
		assert.Equal(t, internal.DefaultTotalRounds, created.Settings.TotalRounds)
	})

	t.Run("body overrides defaults", func(t *testing.T) {
		created := createRoom(t, ts, `{"round_duration_ms": 45000, "total_rounds": 3}`)
		assert.Equal(t, int64(45_000), created.Settings.RoundDurationMs)
		assert.Equal(t, 3, created.Settings.TotalRounds)
	})

	t.Run("malformed body rejected", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/rooms", "application/json", bytes.NewBufferString("{"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAddAssetHandler(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	created := createRoom(t, ts, "")
	assetsURL := ts.URL + "/rooms/" + created.RoomID + "/assets"

	t.Run("valid asset", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, assetsURL, created.HostToken,
			`{"reference": "https://img.example/eiffel.jpg", "answer_text": "Eiffel Tower"}`)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("wrong host token", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, assetsURL, "not-the-token",
			`{"reference": "x", "answer_text": "y"}`)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("answer with no matchable text", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, assetsURL, created.HostToken,
			`{"reference": "x", "answer_text": "!!!"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown room", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, ts.URL+"/rooms/nope/assets", created.HostToken,
			`{"reference": "x", "answer_text": "y"}`)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestUpdateSettingsHandler(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	created := createRoom(t, ts, "")
	settingsURL := ts.URL + "/rooms/" + created.RoomID + "/settings"

	t.Run("valid update", func(t *testing.T) {
		resp := doJSON(t, http.MethodPatch, settingsURL, created.HostToken,
			`{"round_duration_ms": 20000, "total_rounds": 2}`)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("zero duration rejected", func(t *testing.T) {
		resp := doJSON(t, http.MethodPatch, settingsURL, created.HostToken,
			`{"round_duration_ms": 0, "total_rounds": 2}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown room", func(t *testing.T) {
		resp := doJSON(t, http.MethodPatch, ts.URL+"/rooms/nope/settings", created.HostToken,
			`{"round_duration_ms": 20000, "total_rounds": 2}`)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/rooms", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), hostTokenHeader)
}
