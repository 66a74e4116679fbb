package www

import (
	"log/slog"
	"net/http"

	"github.com/angas/glowbridge/database"
)

func NewLogHandler(logger *slog.Logger, db *database.Database) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		page := intOrDefault(r.URL, "page", 1)
		pageSize := intOrDefault(r.URL, "pageSize", 25)
		if page < 1 || pageSize < 1 {
			http.Error(w, "page and pageSize must be positive", http.StatusBadRequest)
			return
		}

		minLevel := slog.LevelDebug
		if lvl := r.URL.Query().Get("level"); lvl != "" {
			if err := minLevel.UnmarshalText([]byte(lvl)); err != nil {
				http.Error(w, "unknown level", http.StatusBadRequest)
				return
			}
		}

		entries, err := db.GetLogEntries(r.Context(), minLevel, page, pageSize)
		if err != nil {
			logger.Error("handling log request", slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		resp := struct {
			Page     int                    `json:"page"`
			PageSize int                    `json:"page_size"`
			Entries  []database.LogEntryRow `json:"entries"`
		}{Page: page, PageSize: pageSize, Entries: entries}

		if err := writeJSON(w, http.StatusOK, resp); err != nil {
			logger.Error("handling log request", slog.Any("error", err))
		}
	}
}
