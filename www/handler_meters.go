package www

import (
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/angas/glowbridge/coordinator"
)

type metersResponse struct {
	FetchedAt time.Time                    `json:"fetched_at"`
	Available bool                         `json:"available"`
	Meters    []*coordinator.MeterSnapshot `json:"meters"`
}

func NewMetersHandler(logger *slog.Logger, coord Refresher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		snap := coord.Data()
		if snap == nil {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		resp := metersResponse{
			FetchedAt: snap.FetchedAt,
			Available: coord.LastUpdateSuccess(),
			Meters:    make([]*coordinator.MeterSnapshot, 0, len(snap.Meters)),
		}
		for _, m := range snap.Meters {
			resp.Meters = append(resp.Meters, m)
		}
		sort.Slice(resp.Meters, func(i, j int) bool {
			return resp.Meters[i].MeterId < resp.Meters[j].MeterId
		})

		if err := writeJSON(w, http.StatusOK, resp); err != nil {
			logger.Error("handling meters request", slog.Any("error", err))
		}
	}
}
