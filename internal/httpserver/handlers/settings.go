package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tgrall/gears-explorer/internal/gears"
	"github.com/tgrall/gears-explorer/internal/httpserver/deps"
	"github.com/tgrall/gears-explorer/internal/logger"
)

type endpointRequest struct {
	URL string `json:"url"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type stateResponse struct {
	State string `json:"state"`
}

// Refresh reconnects to the configured endpoint.
func Refresh(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d.Logger.Info("manual refresh triggered via endpoint",
			logger.String("remote_ip", r.RemoteAddr))
		if err := d.Explorer.Refresh(r.Context()); err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, d, http.StatusOK, stateResponse{State: d.Explorer.State().String()})
	}
}

// ReloadSettings queues a re-read of the settings file.
func ReloadSettings(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d.Logger.Info("settings reload triggered via endpoint",
			logger.String("remote_ip", r.RemoteAddr))
		d.Explorer.ReloadSettings()
		writeJSON(w, d, http.StatusAccepted, statusResponse{Status: "reload queued"})
	}
}

// Endpoint changes the Redis URL.
func Endpoint(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req endpointRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, d, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		if err := d.Explorer.SetEndpoint(r.Context(), req.URL); err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, d, http.StatusOK, stateResponse{State: d.Explorer.State().String()})
	}
}

// Mode changes where the registration fold runs.
func Mode(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req modeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, d, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		if _, ok := gears.ParseMode(req.Mode); !ok {
			writeError(w, d, fmt.Errorf("%w: unknown mode %q", errBadRequest, req.Mode))
			return
		}
		if err := d.Explorer.SetAggregationMode(r.Context(), req.Mode); err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, d, http.StatusOK, modeRequest{Mode: req.Mode})
	}
}
