package www

import (
	"log/slog"
	"net/http"
	"time"
)

// NewExampleActionHandler is the no-op demo action: it logs the call and
// acknowledges.
func NewExampleActionHandler(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		logger.Info("example action called")

		resp := struct {
			Status    string    `json:"status"`
			Timestamp time.Time `json:"timestamp"`
		}{Status: "ok", Timestamp: time.Now()}

		if err := writeJSON(w, http.StatusOK, resp); err != nil {
			logger.Error("handling example action", slog.Any("error", err))
		}
	}
}

// NewRefreshActionHandler forces a fetch cycle and reports its outcome.
func NewRefreshActionHandler(logger *slog.Logger, coord Refresher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		logger.Info("force reload requested")
		result := coord.RequestRefresh(r.Context())

		if err := writeJSON(w, http.StatusOK, result); err != nil {
			logger.Error("handling refresh action", slog.Any("error", err))
		}
	}
}
