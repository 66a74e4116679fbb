// Package issues tracks active operational problems that need operator
// attention, like expired credentials. Issues are keyed and idempotent:
// raising the same key again updates the entry in place.
package issues

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

const (
	KeyReauthRequired = "reauth_required"
	KeyApiUnreachable = "api_unreachable"
	KeyMqttDown       = "mqtt_down"
)

type Issue struct {
	Key      string    `json:"key"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	RaisedAt time.Time `json:"raised_at"`
}

type Registry struct {
	logger *slog.Logger

	mu     sync.RWMutex
	active map[string]Issue

	now func() time.Time
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger: logger,
		active: make(map[string]Issue),
		now:    time.Now,
	}
}

// Raise records an issue under key. Re-raising refreshes the message but
// keeps the original RaisedAt so the operator sees how long it has been open.
func (r *Registry) Raise(key string, severity Severity, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.active[key]; ok {
		existing.Severity = severity
		existing.Message = message
		r.active[key] = existing
		return
	}

	r.active[key] = Issue{
		Key:      key,
		Severity: severity,
		Message:  message,
		RaisedAt: r.now(),
	}
	r.logger.Warn("issue raised",
		slog.String("key", key),
		slog.String("severity", string(severity)),
		slog.String("message", message))
}

// Clear removes an issue, a no-op when the key is not active.
func (r *Registry) Clear(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.active[key]; !ok {
		return
	}
	delete(r.active, key)
	r.logger.Info("issue cleared", slog.String("key", key))
}

// List returns the active issues sorted by key. Always non-nil, so it
// serializes as an empty JSON array rather than null.
func (r *Registry) List() []Issue {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Issue, 0, len(r.active))
	for _, issue := range r.active {
		out = append(out, issue)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (r *Registry) IsActive(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.active[key]
	return ok
}
