package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"scams/internal/config"
	"scams/internal/events"
	"scams/internal/metrics"
	"scams/internal/service"

	"github.com/google/uuid"
	"github.com/r3labs/sse/v2"
	"github.com/rs/zerolog"
)

// Services is everything the HTTP API calls into.
type Services struct {
	Bookings      *service.BookingService
	Rooms         *service.RoomService
	Users         *service.UserService
	Maintenance   *service.MaintenanceService
	Notifications *service.NotificationService
	Analytics     *service.AnalyticsService
	Health        func(ctx context.Context) error
}

// HTTPServer exposes the booking API as JSON over HTTP.
type HTTPServer struct {
	cfg     config.APIConfig
	svc     Services
	server  *http.Server
	stream  *sse.Server
	limiter *rateLimiter
	logger  *zerolog.Logger
	handler http.Handler
}

func NewHTTPServer(cfg config.APIConfig, svc Services, bus *events.EventBus, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:     cfg,
		svc:     svc,
		limiter: newRateLimiter(&cfg),
		logger:  logger,
	}
	srv.stream = newEventStream(bus, logger)

	mux := http.NewServeMux()
	srv.routes(mux)
	srv.handler = srv.requestID(srv.loggingMiddleware(srv.rateLimit(mux)))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /signup", s.handleSignUp)
	mux.HandleFunc("POST /signin", s.handleSignIn)

	mux.Handle("POST /signout", s.authed(s.handleSignOut))
	mux.Handle("GET /me", s.authed(s.handleMe))
	mux.Handle("POST /me/password", s.authed(s.handleChangePassword))

	mux.Handle("GET /rooms", s.authed(s.handleListRooms))
	mux.Handle("GET /rooms/{$}", s.authed(s.handleListRooms))
	mux.Handle("GET /rooms/{id}", s.authed(s.handleGetRoom))
	mux.Handle("GET /rooms/{id}/schedule", s.authed(s.handleRoomSchedule))
	mux.Handle("GET /rooms/{id}/slots", s.authed(s.handleRoomSlots))
	mux.Handle("GET /buildings", s.authed(s.handleBuildings))
	mux.Handle("GET /devices", s.authed(s.handleDevices))

	mux.Handle("GET /schedules", s.authed(s.handleListSchedules))
	mux.Handle("GET /schedules/{$}", s.authed(s.handleListSchedules))
	mux.Handle("POST /schedules", s.authed(s.handleCreateSchedule))
	mux.Handle("POST /schedules/{$}", s.authed(s.handleCreateSchedule))
	mux.Handle("GET /schedules/me", s.authed(s.handleMySchedules))
	mux.Handle("POST /schedules/check", s.authed(s.handleCheckConflict))
	mux.Handle("GET /schedules/{id}", s.authed(s.handleGetSchedule))
	mux.Handle("PUT /schedules/{id}", s.authed(s.handleUpdateSchedule))
	mux.Handle("POST /schedules/{id}/cancel", s.authed(s.handleCancelSchedule))

	mux.Handle("GET /notifications", s.authed(s.handleListNotifications))
	mux.Handle("POST /notifications/{id}/read", s.authed(s.handleMarkRead))
	mux.Handle("POST /notifications/read-all", s.authed(s.handleMarkAllRead))

	mux.Handle("GET /events", s.authed(s.handleEvents))

	mux.Handle("POST /admin/rooms", s.admin(s.handleCreateRoom))
	mux.Handle("PUT /admin/rooms/{id}", s.admin(s.handleUpdateRoom))
	mux.Handle("DELETE /admin/rooms/{id}", s.admin(s.handleDeleteRoom))
	mux.Handle("GET /admin/users", s.admin(s.handleListUsers))
	mux.Handle("PUT /admin/users/{id}", s.admin(s.handleUpdateUser))
	mux.Handle("GET /admin/maintenance", s.admin(s.handleListMaintenance))
	mux.Handle("POST /admin/maintenance", s.admin(s.handleCreateMaintenance))
	mux.Handle("PUT /admin/maintenance/{id}/status", s.admin(s.handleMaintenanceStatus))
	mux.Handle("DELETE /admin/maintenance/{id}", s.admin(s.handleDeleteMaintenance))
	mux.Handle("POST /admin/schedules/{id}/complete", s.admin(s.handleCompleteSchedule))
	mux.Handle("GET /admin/analytics/utilization", s.admin(s.handleUtilization))
	mux.Handle("GET /admin/analytics/departments", s.admin(s.handleDepartments))
	mux.Handle("GET /admin/analytics/overview", s.admin(s.handleOverview))
	mux.Handle("GET /admin/exports/bookings", s.admin(s.handleExportBookings))
	mux.Handle("GET /admin/exports/users", s.admin(s.handleExportUsers))
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown closes event streams first so open SSE connections do not hold the server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.stream.Close()
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.svc.Health != nil {
		if err := s.svc.Health(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ctxKey int

const (
	userKey ctxKey = iota
	requestIDKey
	tokenKey
)

func (s *HTTPServer) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.IncHTTP(endpoint, recorder.status)

		reqID, _ := r.Context().Value(requestIDKey).(string)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Str("request_id", reqID).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
