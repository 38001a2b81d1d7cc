package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/picguess/picguess-backend/internal"
	"github.com/picguess/picguess-backend/internal/game"
)

const hostTokenHeader = "X-Host-Token"

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", s.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/rooms", s.CreateRoomHandler).Methods(http.MethodPost)
	r.HandleFunc("/rooms/{roomId}/assets", s.AddAssetHandler).Methods(http.MethodPost)
	r.HandleFunc("/rooms/{roomId}/settings", s.UpdateSettingsHandler).Methods(http.MethodPatch)
	r.HandleFunc("/ws/{roomId}", s.HandleWebSocket)

	// Wrapping the router rather than using r.Use so preflight requests
	// get CORS headers even when no route method matches.
	return s.corsMiddleware(r)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, "+hostTokenHeader)

		// Websocket upgrades bypass the preflight handling.
		if strings.ToLower(r.Header.Get("Upgrade")) == "websocket" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "rooms": s.registry.Len()})
}

type createRoomRequest struct {
	RoundDurationMs int64 `json:"round_duration_ms"`
	TotalRounds     int   `json:"total_rounds"`
}

type createRoomResponse struct {
	RoomID    string            `json:"room_id"`
	HostToken string            `json:"host_token"`
	Settings  internal.Settings `json:"settings"`
}

// CreateRoomHandler makes a room in the setup state and hands the caller
// the host token used for edits and the host socket.
func (s *Server) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	settings := s.defaults
	if req.RoundDurationMs > 0 {
		settings.RoundDurationMs = req.RoundDurationMs
	}
	if req.TotalRounds > 0 {
		settings.TotalRounds = req.TotalRounds
	}

	room := s.registry.Create(settings)
	writeJSON(w, http.StatusCreated, createRoomResponse{
		RoomID:    room.ID(),
		HostToken: room.HostToken(),
		Settings:  settings,
	})
}

func (s *Server) AddAssetHandler(w http.ResponseWriter, r *http.Request) {
	room, ok := s.registry.Get(mux.Vars(r)["roomId"])
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "room not found"})
		return
	}

	var asset internal.Asset
	if err := json.NewDecoder(r.Body).Decode(&asset); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := room.AddAsset(r.Header.Get(hostTokenHeader), asset); err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

func (s *Server) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	room, ok := s.registry.Get(mux.Vars(r)["roomId"])
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "room not found"})
		return
	}

	var settings internal.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := room.UpdateSettings(r.Header.Get(hostTokenHeader), settings); err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeGameError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, game.ErrBadHostToken):
		status = http.StatusUnauthorized
	case errors.Is(err, game.ErrRoomNotEditable):
		status = http.StatusConflict
	case errors.Is(err, game.ErrInvalidAsset), errors.Is(err, game.ErrInvalidSettings):
		status = http.StatusBadRequest
	case errors.Is(err, game.ErrRoomNotFound):
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
