package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tgrall/gears-explorer/internal/errs"
	"github.com/tgrall/gears-explorer/internal/explorer"
	"github.com/tgrall/gears-explorer/internal/httpserver/deps"
	"github.com/tgrall/gears-explorer/internal/logger"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, d deps.Deps, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		d.Logger.Debug("failed to write response", logger.Error(err))
	}
}

// writeError maps an error kind to its HTTP status.
func writeError(w http.ResponseWriter, d deps.Deps, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, explorer.ErrNoSource), errors.Is(err, explorer.ErrEmptyEndpoint), errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, errForbidden):
		status = http.StatusForbidden
	case errors.Is(err, errs.ErrNotConnected), errors.Is(err, errs.ErrConnectFailed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, errs.ErrRemoteExecution):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrTransport), errors.Is(err, errs.ErrParse):
		status = http.StatusBadGateway
	}

	resp := errorResponse{Error: err.Error()}
	if kind := errs.Kind(err); kind != nil {
		resp.Kind = kind.Error()
	}
	writeJSON(w, d, status, resp)
}

var (
	errBadRequest = errors.New("bad request")
	errForbidden  = errors.New("forbidden")
)
