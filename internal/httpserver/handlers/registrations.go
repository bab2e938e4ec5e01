package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tgrall/gears-explorer/internal/httpserver/deps"
	"github.com/tgrall/gears-explorer/internal/logger"
)

// maxSourceBytes caps inline gear sources.
const maxSourceBytes = 1 << 20

type registerRequest struct {
	Path   string `json:"path"`
	Source string `json:"source"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// Register submits a gear either from a server-side path or inline source.
// Paths are read from the server's own filesystem, so they are refused
// unless mutating calls are restricted to an IP allow-list.
func Register(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSourceBytes)).Decode(&req); err != nil {
			writeError(w, d, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}

		if req.Source == "" && req.Path != "" && len(d.AllowedCIDRS) == 0 {
			d.Logger.Warn("path registration refused without an IP allow-list",
				logger.String("remote_ip", r.RemoteAddr))
			writeError(w, d, fmt.Errorf("%w: registering from a server path requires GEARS_ALLOWED_CIDRS", errForbidden))
			return
		}

		var err error
		if req.Source != "" {
			err = d.Explorer.RegisterSource(r.Context(), []byte(req.Source))
		} else {
			err = d.Explorer.RegisterFile(r.Context(), req.Path)
		}
		if err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, d, http.StatusCreated, statusResponse{Status: "registered"})
	}
}

// Unregister starts removal of a registration. The outcome is only logged,
// so success here means the request was sent.
func Unregister(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := d.Explorer.Unregister(id); err != nil {
			writeError(w, d, err)
			return
		}
		d.Logger.Info("unregister requested",
			logger.String("id", id),
			logger.String("remote_ip", r.RemoteAddr))
		writeJSON(w, d, http.StatusAccepted, statusResponse{Status: "accepted"})
	}
}
