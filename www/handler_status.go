package www

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/angas/glowbridge/issues"
)

type statusResponse struct {
	InstanceId  string         `json:"instance_id"`
	Status      string         `json:"status"`
	LastSuccess *time.Time     `json:"last_success,omitempty"`
	LastError   string         `json:"last_error,omitempty"`
	MeterCount  int            `json:"meter_count"`
	UptimeSecs  int64          `json:"uptime_seconds"`
	Issues      []issues.Issue `json:"issues"`
}

func NewStatusHandler(logger *slog.Logger, s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		resp := statusResponse{
			InstanceId: s.config.GetInstanceId(),
			Status:     string(s.coord.Status()),
			MeterCount: s.coord.MeterCount(),
			UptimeSecs: int64(time.Since(s.startedAt).Seconds()),
			Issues:     s.issues.List(),
		}
		if t := s.coord.LastSuccess(); !t.IsZero() {
			resp.LastSuccess = &t
		}
		if err := s.coord.LastError(); err != nil {
			resp.LastError = err.Error()
		}

		if err := writeJSON(w, http.StatusOK, resp); err != nil {
			logger.Error("handling status request", slog.Any("error", err))
		}
	}
}
