package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ogulcanaydogan/norway-alerts/pkg/model"
	"github.com/ogulcanaydogan/norway-alerts/pkg/poller"
	"github.com/ogulcanaydogan/norway-alerts/pkg/sources"
	"github.com/ogulcanaydogan/norway-alerts/pkg/storage"
)

// Server provides the health check, sensor and notification API endpoints.
type Server struct {
	scheduler *poller.Scheduler
	store     storage.Storage
	hub       *Hub
	mux       *http.ServeMux
	logger    *slog.Logger
}

// NewServer creates an API server. hub may be nil to disable the websocket
// endpoint.
func NewServer(s *poller.Scheduler, store storage.Storage, hub *Hub, logger *slog.Logger) *Server {
	srv := &Server{
		scheduler: s,
		store:     store,
		hub:       hub,
		mux:       http.NewServeMux(),
		logger:    logger,
	}
	srv.routes()
	return srv
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/sensors", s.handleSensors)
	s.mux.HandleFunc("GET /api/v1/sensors/{id}", s.handleSensor)
	s.mux.HandleFunc("POST /api/v1/instances/{id}/refresh", s.handleRefresh)
	s.mux.HandleFunc("GET /api/v1/notifications", s.handleNotifications)
	s.mux.HandleFunc("GET /api/v1/counties", s.handleCounties)
	if s.hub != nil {
		s.mux.HandleFunc("GET /api/v1/ws", s.hub.ServeWS)
	}
}

// Handler returns the HTTP handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSensors(w http.ResponseWriter, _ *http.Request) {
	sensors, err := s.scheduler.Sensors()
	if err != nil {
		s.logger.Error("compute sensors", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if sensors == nil {
		sensors = []poller.Sensor{}
	}
	writeJSON(w, http.StatusOK, sensors)
}

func (s *Server) handleSensor(w http.ResponseWriter, r *http.Request) {
	sensor, ok, err := s.scheduler.Sensor(r.PathValue("id"))
	if err != nil {
		s.logger.Error("compute sensor", "id", r.PathValue("id"), "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "sensor not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sensor)
}

// handleRefresh answers 200 with the fresh sensors, or 502 with the retained
// sensors when the upstream cycle failed.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.scheduler.HasInstance(id) {
		http.Error(w, "instance not found", http.StatusNotFound)
		return
	}

	sensors, err := s.scheduler.Refresh(r.Context(), id)
	switch {
	case sensors == nil && err != nil:
		s.logger.Error("refresh instance", "instance", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	case err != nil:
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "sensors": sensors})
	default:
		writeJSON(w, http.StatusOK, sensors)
	}
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	q := r.URL.Query()
	filter := model.NotificationFilter{
		InstanceID: q.Get("instance"),
		Kind:       model.NotificationKind(q.Get("kind")),
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "invalid since: expected RFC3339", http.StatusBadRequest)
			return
		}
		filter.Since = since
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}

	records, err := s.store.QueryNotifications(ctx, filter)
	if err != nil {
		s.logger.Error("query notifications", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []model.Notification{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleCounties(w http.ResponseWriter, _ *http.Request) {
	counties, err := sources.LoadCounties()
	if err != nil {
		s.logger.Error("load counties", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, counties)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
