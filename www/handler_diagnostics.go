package www

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/angas/glowbridge/config"
	"github.com/angas/glowbridge/issues"
)

const redacted = "**REDACTED**"

type diagnosticsResponse struct {
	GoVersion   string         `json:"go_version"`
	InstanceId  string         `json:"instance_id"`
	Config      map[string]any `json:"config"`
	Coordinator map[string]any `json:"coordinator"`
	Issues      []issues.Issue `json:"issues"`
	MeterIds    []string       `json:"meter_ids"`
}

func NewDiagnosticsHandler(logger *slog.Logger, s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		resp := diagnosticsResponse{
			GoVersion:   runtime.Version(),
			InstanceId:  s.config.GetInstanceId(),
			Config:      redactedConfig(s.config),
			Coordinator: coordinatorDiagnostics(s),
			Issues:      s.issues.List(),
			MeterIds:    []string{},
		}
		if snap := s.coord.Data(); snap != nil {
			for id := range snap.Meters {
				resp.MeterIds = append(resp.MeterIds, id)
			}
		}

		if err := writeJSON(w, http.StatusOK, resp); err != nil {
			logger.Error("handling diagnostics request", slog.Any("error", err))
		}
	}
}

// redactedConfig exposes the runtime configuration for support dumps with
// every credential masked.
func redactedConfig(cnfg *config.AppConfig) map[string]any {
	return map[string]any{
		"api": map[string]any{
			"port": cnfg.Api.Port,
		},
		"glow": map[string]any{
			"username":       redacted,
			"password":       redacted,
			"application_id": redacted,
			"api_url":        cnfg.Glow.GetApiUrl(),
			"interval":       cnfg.Glow.GetUpdateInterval().String(),
			"token_lifetime": cnfg.Glow.GetTokenLifetime().String(),
		},
		"mqtt": map[string]any{
			"enabled":          cnfg.Mqtt.Enabled,
			"host":             cnfg.Mqtt.Host,
			"port":             cnfg.Mqtt.Port,
			"username":         redacted,
			"password":         redacted,
			"discovery_prefix": cnfg.Mqtt.GetDiscoveryPrefix(),
			"base_topic":       cnfg.Mqtt.GetBaseTopic(),
		},
		"purifier": map[string]any{
			"enabled":  cnfg.Purifier.Enabled,
			"name":     cnfg.Purifier.GetName(),
			"interval": cnfg.Purifier.GetUpdateInterval().String(),
		},
	}
}

func coordinatorDiagnostics(s *Server) map[string]any {
	out := map[string]any{
		"status":      string(s.coord.Status()),
		"meter_count": s.coord.MeterCount(),
	}
	if err := s.coord.LastError(); err != nil {
		out["last_error"] = err.Error()
		out["last_error_type"] = fmt.Sprintf("%T", err)
	}
	if t := s.coord.LastSuccess(); !t.IsZero() {
		out["last_success"] = t.Format(time.RFC3339)
	}
	return out
}
