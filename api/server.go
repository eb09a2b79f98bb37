package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/wricardo/mcp-training/railroad/game/engine"
	"github.com/wricardo/mcp-training/railroad/game/service"
	"github.com/wricardo/mcp-training/railroad/transport/websocket"
)

// Server represents the REST API server
type Server struct {
	service service.SimulationService
	hub     *websocket.Hub
	router  *mux.Router
}

// NewServer creates a new API server. hub may be nil to disable live updates.
func NewServer(simService service.SimulationService, hub *websocket.Hub) *Server {
	s := &Server{
		service: simService,
		hub:     hub,
		router:  mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Session management
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	// Overview must be registered before the {id} pattern
	api.HandleFunc("/sessions/overview", s.handleSessionsOverview).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")

	// Simulation
	api.HandleFunc("/sessions/{id}/state", s.handleGetState).Methods("GET")
	api.HandleFunc("/sessions/{id}/snapshot", s.handleGetSnapshot).Methods("GET")
	api.HandleFunc("/sessions/{id}/tick", s.handleTick).Methods("POST")
	api.HandleFunc("/sessions/{id}/run", s.handleRun).Methods("POST")
	api.HandleFunc("/sessions/{id}/crashes", s.handleGetCrashes).Methods("GET")

	// Tracks
	api.HandleFunc("/tracks", s.handleListTracks).Methods("GET")
	api.HandleFunc("/tracks", s.handleCreateTrack).Methods("POST")
	api.HandleFunc("/tracks/{name}", s.handleGetTrack).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the underlying router so callers can mount extra handlers
func (s *Server) Router() *mux.Router {
	return s.router
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrTrackNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrSessionFaulted), errors.Is(err, service.ErrDerailed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeOptional decodes a JSON body, treating an empty body as no input
func decodeOptional(r *http.Request, target interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(target)
	if err == io.EOF {
		return nil
	}
	return err
}

// Session Handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req service.CreateOptions
	if err := decodeOptional(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := s.service.CreateSession(r.Context(), req)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	query := r.URL.Query()
	sortBy := query.Get("sort")    // "created", "accessed" (default)
	order := query.Get("order")    // "asc", "desc" (default: "desc")
	limitStr := query.Get("limit") // number of sessions to return

	if sortBy == "" {
		sortBy = "accessed"
	}
	if order == "" {
		order = "desc"
	}

	sort.Slice(sessions, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = sessions[i].CreatedAt, sessions[j].CreatedAt
		} else {
			ti, tj = sessions[i].LastAccessedAt, sessions[j].LastAccessedAt
		}

		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	total := len(sessions)
	limit := total
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < total {
			limit = l
		}
	}
	sessions = sessions[:limit]

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(sessions),
		"total":    total,
		"sessions": sessions,
		"sort":     sortBy,
		"order":    order,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	session, err := s.service.GetSession(r.Context(), sessionID)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := s.service.DeleteSession(r.Context(), sessionID); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	if s.hub != nil {
		s.hub.BroadcastEvent(sessionID, websocket.EventDeleted, nil)
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s deleted", sessionID),
	})
}

// Simulation Handlers

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	state, err := s.service.GetState(r.Context(), sessionID)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	state, err := s.service.GetState(r.Context(), sessionID)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	for _, line := range state.Snapshot {
		io.WriteString(w, line)
		io.WriteString(w, "\n")
	}
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		Count int `json:"count"`
	}
	if err := decodeOptional(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Count < 0 {
		respondError(w, http.StatusBadRequest, "count must not be negative")
		return
	}

	result, err := s.service.Tick(r.Context(), sessionID, req.Count)
	if err != nil {
		// Ticks made before a derailment or cancellation still reach watchers
		if result != nil {
			s.broadcastTick(sessionID, result)
		}
		if errors.Is(err, service.ErrDerailed) {
			s.broadcastDerailment(r.Context(), sessionID, err, result)
		}
		respondError(w, statusFor(err), err.Error())
		return
	}

	s.broadcastTick(sessionID, result)

	log.Info().
		Str("session", sessionID).
		Int("exec", result.TicksExecuted).
		Int("requested", result.RequestedTicks).
		Int("tick", result.State.Tick).
		Int("carts", result.State.CartCount).
		Int("crashes", len(result.NewCrashes)).
		Bool("done", result.Done).
		Msg("[TICK]")

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		MaxTicks int `json:"max_ticks"`
	}
	if err := decodeOptional(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.Run(r.Context(), sessionID, req.MaxTicks)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	if s.hub != nil {
		s.hub.BroadcastState(sessionID, result.State)
		switch result.StopReasonCode {
		case service.StopDone:
			s.hub.BroadcastEvent(sessionID, websocket.EventDone, result.Survivor)
		case service.StopDerailed:
			s.hub.BroadcastEvent(sessionID, websocket.EventDerail, result.StoppedReason)
		}
	}

	log.Info().
		Str("session", sessionID).
		Int("exec", result.TicksExecuted).
		Str("stop", result.StopReasonCode).
		Int("tick", result.State.Tick).
		Int("carts", result.State.CartCount).
		Msg("[RUN]")

	respondJSON(w, http.StatusOK, result)
}

// broadcastTick pushes a tick result to the session's watchers
func (s *Server) broadcastTick(sessionID string, result *service.TickResult) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastState(sessionID, result.State)
	for _, crash := range result.NewCrashes {
		s.hub.BroadcastEvent(sessionID, websocket.EventCrash, crash)
	}
	if result.Done && result.TicksExecuted > 0 {
		s.hub.BroadcastEvent(sessionID, websocket.EventDone, result.State.Survivor)
	}
}

// broadcastDerailment tells watchers a tick failed. Without a partial
// result the state the simulation was left in is fetched and pushed.
func (s *Server) broadcastDerailment(ctx context.Context, sessionID string, cause error, result *service.TickResult) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastEvent(sessionID, websocket.EventDerail, cause.Error())
	if result != nil {
		return
	}
	if state, err := s.service.GetState(ctx, sessionID); err == nil {
		s.hub.BroadcastState(sessionID, state)
	}
}

func (s *Server) handleGetCrashes(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	opts := service.HistoryOptions{
		Page:  1,
		Limit: 20,
		Order: "desc",
	}

	query := r.URL.Query()
	if pageStr := query.Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			opts.Page = p
		}
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			opts.Limit = l
		}
	}
	if order := query.Get("order"); order == "asc" || order == "desc" {
		opts.Order = order
	}

	history, err := s.service.GetCrashHistory(r.Context(), sessionID, opts)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, history)
}

// Track Handlers

func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.service.ListTracks(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, tracks)
}

func (s *Server) handleGetTrack(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	track, err := s.service.LoadTrack(r.Context(), name)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, track)
}

func (s *Server) handleCreateTrack(w http.ResponseWriter, r *http.Request) {
	var track engine.TrackConfig
	if err := json.NewDecoder(r.Body).Decode(&track); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if track.Name == "" {
		respondError(w, http.StatusBadRequest, "Track name is required")
		return
	}

	// The file name defaults to the display name
	trackID := r.URL.Query().Get("id")
	if trackID == "" {
		trackID = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(track.Name), " ", "_"))
	}

	if err := s.service.SaveTrack(r.Context(), trackID, &track); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Failed to save track: %v", err))
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":  "Track saved successfully",
		"track_id": trackID,
	})
}

// Overview Handler

// handleSessionsOverview returns a compact summary of several sessions for
// side-by-side dashboards
func (s *Server) handleSessionsOverview(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var sessions []*service.SessionInfo

	if sessionIDs := query.Get("sessionIds"); sessionIDs != "" {
		for _, id := range strings.Split(sessionIDs, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if session, err := s.service.GetSession(r.Context(), id); err == nil {
				sessions = append(sessions, session)
			}
		}
	} else {
		all, err := s.service.ListSessions(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		trackID := query.Get("track")
		for _, session := range all {
			if trackID == "" || session.TrackID == trackID {
				sessions = append(sessions, session)
			}
		}
	}

	summaries := make([]map[string]interface{}, 0, len(sessions))
	for _, session := range sessions {
		summary := map[string]interface{}{
			"session_id":    session.ID,
			"track_id":      session.TrackID,
			"policy":        session.Policy,
			"created_at":    session.CreatedAt,
			"last_accessed": session.LastAccessedAt,
		}
		if session.State != nil {
			summary["tick"] = session.State.Tick
			summary["carts"] = session.State.CartCount
			summary["crashes"] = len(session.State.Crashes)
			summary["done"] = session.State.Done
		}
		if session.Fault != "" {
			summary["fault"] = session.Fault
		}
		summaries = append(summaries, summary)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(summaries),
		"sessions": summaries,
	})
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}
	if s.hub == nil {
		http.Error(w, "live updates disabled", http.StatusServiceUnavailable)
		return
	}

	session, err := s.service.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "Invalid session", http.StatusNotFound)
		return
	}

	s.hub.ServeWS(w, r, session.ID)
	s.hub.BroadcastState(session.ID, session.State)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
