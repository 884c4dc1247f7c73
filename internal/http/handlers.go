// Package httpapi exposes the session-management REST surface and the
// realtime websocket endpoint.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/restaurant-matching/internal/dispatch"
	"github.com/example/restaurant-matching/internal/models"
	"github.com/example/restaurant-matching/internal/search"
	"github.com/example/restaurant-matching/internal/session"
)

type Server struct {
	sessions *session.Service
	geocoder search.Geocoder
	wsreg    *dispatch.WSRegistry
	logger   *slog.Logger
	mux      *mux.Router
}

func NewServer(sessions *session.Service, geocoder search.Geocoder, wsreg *dispatch.WSRegistry, logger *slog.Logger) *Server {
	s := &Server{
		sessions: sessions,
		geocoder: geocoder,
		wsreg:    wsreg,
		logger:   logger,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/sessions/create", s.handleCreateSession).Methods("POST")
	s.mux.HandleFunc("/sessions/{session_id}/join", s.handleJoinSession).Methods("POST")
	s.mux.HandleFunc("/sessions/{session_id}", s.handleGetSession).Methods("GET")
	s.mux.HandleFunc("/geocode", s.handleGeocode).Methods("POST")
	s.mux.HandleFunc("/autocomplete_location", s.handleAutocomplete).Methods("GET")
	s.mux.HandleFunc("/ws/{session_id}/{player_id}", s.handleWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type createSessionRequest struct {
	HostName            string  `json:"host_name"`
	LocationDescription string  `json:"location_description"`
	Lat                 float64 `json:"lat"`
	Lng                 float64 `json:"lng"`
	RadiusM             int     `json:"radius"`
	Price               string  `json:"price"`
	MinRating           float64 `json:"min_rating"`
	SortBy              string  `json:"sort_by"`
	Categories          string  `json:"categories"`
	MaxPlayers          int     `json:"max_players"`
	ConsensusThreshold  float64 `json:"consensus_threshold"`
	Mode                string  `json:"mode"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.HostName = strings.TrimSpace(req.HostName)
	if req.HostName == "" {
		writeDetail(w, http.StatusBadRequest, "host_name is required")
		return
	}
	if req.RadiusM <= 0 {
		writeDetail(w, http.StatusBadRequest, "radius must be positive")
		return
	}

	cfg := models.SearchConfig{
		LocationDescription: req.LocationDescription,
		Lat:                 req.Lat,
		Lng:                 req.Lng,
		RadiusM:             req.RadiusM,
		Price:               req.Price,
		MinRating:           req.MinRating,
		SortBy:              req.SortBy,
		Categories:          req.Categories,
	}
	sessionID, playerID, inviteURL, err := s.sessions.CreateSession(cfg, req.HostName, req.MaxPlayers, req.ConsensusThreshold, models.Mode(req.Mode))
	if err != nil {
		if errors.Is(err, session.ErrInvalidConfig) {
			writeDetail(w, http.StatusBadRequest, "consensus_threshold must be in (0,1] and max_players at least 2")
			return
		}
		s.logger.Error("create session", "error", err)
		writeDetail(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": sessionID,
		"player_id":  playerID,
		"invite_url": inviteURL,
	})
}

func (s *Server) handleJoinSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]
	var req struct {
		PlayerName string `json:"player_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.PlayerName = strings.TrimSpace(req.PlayerName)
	if req.PlayerName == "" {
		writeDetail(w, http.StatusBadRequest, "player_name is required")
		return
	}

	playerID, err := s.sessions.JoinSession(sessionID, req.PlayerName)
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeDetail(w, http.StatusNotFound, session.ErrNotFound.Error())
		return
	case errors.Is(err, session.ErrSessionFull):
		writeDetail(w, http.StatusConflict, session.ErrSessionFull.Error())
		return
	case err != nil:
		s.logger.Error("join session", "session_id", sessionID, "error", err)
		writeDetail(w, http.StatusInternalServerError, "failed to join session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"player_id": playerID})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]
	snap, err := s.sessions.GetSnapshot(sessionID)
	if err != nil {
		writeDetail(w, http.StatusNotFound, session.ErrNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Location string `json:"location"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Location) == "" {
		writeDetail(w, http.StatusBadRequest, "location is required")
		return
	}

	coord, err := s.geocoder.Geocode(r.Context(), req.Location)
	switch {
	case errors.Is(err, search.ErrNoResults):
		writeDetail(w, http.StatusNotFound, "Location not found.")
		return
	case err != nil:
		s.logger.Error("geocode", "error", err)
		writeDetail(w, http.StatusBadGateway, "geocoding provider unavailable")
		return
	}
	writeJSON(w, http.StatusOK, coord)
}

func (s *Server) handleAutocomplete(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(q) < 2 {
		writeJSON(w, http.StatusOK, map[string]any{"suggestions": []string{}})
		return
	}
	suggestions, err := s.geocoder.Suggest(r.Context(), q)
	if err != nil {
		s.logger.Error("autocomplete", "error", err)
		writeDetail(w, http.StatusServiceUnavailable, "geocoding provider unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeDetail matches the error envelope the original clients expect.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
