// Package www serves the HTTP API: status, meters, diagnostics, the log,
// service actions, Prometheus metrics and a websocket pushing every fresh
// snapshot.
package www

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angas/glowbridge/config"
	"github.com/angas/glowbridge/coordinator"
	"github.com/angas/glowbridge/database"
	"github.com/angas/glowbridge/issues"
)

// Refresher is the slice of the coordinator the handlers read from.
type Refresher interface {
	Status() coordinator.Status
	LastError() error
	LastSuccess() time.Time
	LastUpdateSuccess() bool
	Data() *coordinator.Snapshot
	MeterCount() int
	RequestRefresh(ctx context.Context) coordinator.RefreshResult
}

type Server struct {
	logger *slog.Logger
	config *config.AppConfig
	db     *database.Database
	coord  Refresher
	issues *issues.Registry
	hub    *Hub
	mux    *http.ServeMux

	startedAt time.Time
}

func NewServer(db *database.Database, coord Refresher, reg *issues.Registry, cnfg *config.AppConfig) *Server {
	logger := slog.Default().With("module", "www")

	s := &Server{
		logger:    logger,
		config:    cnfg,
		db:        db,
		coord:     coord,
		issues:    reg,
		hub:       NewHub(logger),
		mux:       http.NewServeMux(),
		startedAt: time.Now(),
	}

	go s.hub.Run()

	logReqMW := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.logger.Debug("http request",
				slog.String("method", r.Method),
				slog.String("url", r.URL.String()),
				slog.String("remoteAddr", r.RemoteAddr))
			next.ServeHTTP(w, r)
		})
	}

	s.mux.Handle("/api/status", logReqMW(NewStatusHandler(
		logger.With(slog.String("handler", "status")), s)))

	s.mux.Handle("/api/meters", logReqMW(NewMetersHandler(
		logger.With(slog.String("handler", "meters")), coord)))

	s.mux.Handle("/api/diagnostics", logReqMW(NewDiagnosticsHandler(
		logger.With(slog.String("handler", "diagnostics")), s)))

	s.mux.Handle("/api/log", logReqMW(NewLogHandler(
		logger.With(slog.String("handler", "log")), db)))

	s.mux.Handle("/api/actions/example", logReqMW(NewExampleActionHandler(
		logger.With(slog.String("handler", "example_action")))))

	s.mux.Handle("/api/actions/refresh", logReqMW(NewRefreshActionHandler(
		logger.With(slog.String("handler", "refresh_action")), coord)))

	s.mux.Handle("/metrics", promhttp.Handler())

	s.mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		name := r.Header.Get("User-Agent")
		client, err := NewClient(s.hub, w, r, name)
		if err != nil {
			s.logger.Error("new websocket client failed", slog.Any("error", err))
			return
		}
		s.hub.Register <- client
		go client.WritePump()
	})

	return s
}

// BroadcastSnapshot pushes a fresh snapshot to all websocket clients. Wired
// to the coordinator's refresh listeners.
func (s *Server) BroadcastSnapshot(snap *coordinator.Snapshot) {
	data, err := marshalEvent("snapshot", snap)
	if err != nil {
		s.logger.Error("marshalling snapshot event", slog.Any("error", err))
		return
	}
	s.hub.Broadcast <- data
}

func (s *Server) Run(ctx context.Context) {
	s.logger.Info("starting server...", "port", s.config.Api.Port)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Api.Port),
		Handler: s.mux,
	}

	srvErrors := make(chan error, 1)

	go func() {
		srvErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-srvErrors:
		if err != nil {
			s.logger.Error("server error", slog.Any("error", err))
		}

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown failed", slog.Any("error", err))
		}
	}
}
