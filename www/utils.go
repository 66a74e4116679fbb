package www

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func marshalEvent(eventType string, data any) ([]byte, error) {
	return json.Marshal(struct {
		Type string    `json:"type"`
		Time time.Time `json:"time"`
		Data any       `json:"data"`
	}{Type: eventType, Time: time.Now(), Data: data})
}

func intOrDefault(u *url.URL, key string, defaultValue int) int {
	if v := u.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}
