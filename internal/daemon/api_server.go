package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"glimpse/internal/config"
	"glimpse/internal/entries"
	"glimpse/internal/logging"
	"glimpse/internal/services"
)

const (
	defaultEntryLimit = 50
	maxEntryLimit     = 500
)

// EntryListResponse is the body of GET /api/entries.
type EntryListResponse struct {
	Entries []entries.Entry `json:"entries"`
}

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	server *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// newAPIServer returns nil when no bind address is configured.
func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}
	if _, _, err := net.SplitHostPort(bind); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "api", "bind", fmt.Sprintf("invalid api_bind %q", bind), err)
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg.Paths.APIToken),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes(token string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(authMiddleware(token))

	r.Get("/api/status", s.handleStatus)
	r.Get("/api/entries", s.handleEntries)
	r.Get("/api/entries/{id}", s.handleEntry)
	r.Get("/api/entries/{id}/image", s.handleEntryImage)
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return services.Wrap(services.ErrResourceUnavailable, "api", "listen", s.bind, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_server_failed", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_server_started"),
		logging.String("address", listener.Addr().String()),
	)
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleEntries(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := entries.Filter{
		Text:       strings.TrimSpace(query.Get("q")),
		AppName:    strings.TrimSpace(query.Get("app")),
		Limit:      defaultEntryLimit,
		Descending: true,
	}
	if raw := strings.TrimSpace(query.Get("since")); raw != "" {
		since, err := parseSince(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Since = since
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = min(limit, maxEntryLimit)
	}

	list, err := s.daemon.Entries(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []entries.Entry{}
	}
	s.writeJSON(w, http.StatusOK, EntryListResponse{Entries: list})
}

func (s *apiServer) handleEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.daemon.Entry(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, entries.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, entry)
}

func (s *apiServer) handleEntryImage(w http.ResponseWriter, r *http.Request) {
	_, data, err := s.daemon.EntryImage(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, entries.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "entry not found")
		return
	case errors.Is(err, services.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "image unavailable")
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Debug("image response write failed", logging.Error(err))
	}
}

// parseSince accepts RFC3339 timestamps or unix seconds.
func parseSince(raw string) (time.Time, error) {
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid since %q: want RFC3339 or unix seconds", raw)
	}
	return t, nil
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
