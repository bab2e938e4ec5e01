package handlers

import (
	"net/http"

	"github.com/tgrall/gears-explorer/internal/httpserver/deps"
	"github.com/tgrall/gears-explorer/internal/redis"
)

type readyzResponse struct {
	Ready bool   `json:"ready"`
	State string `json:"state"`
}

// Readyz is 200 only while a Redis session is established.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := d.Explorer.State()
		status := http.StatusOK
		if state != redis.Connected {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, d, status, readyzResponse{
			Ready: state == redis.Connected,
			State: state.String(),
		})
	}
}
