package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tgrall/gears-explorer/internal/explorer"
	"github.com/tgrall/gears-explorer/internal/httpserver/deps"
)

// Tree returns the top-level server node.
func Tree(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, d, http.StatusOK, d.Explorer.TopLevel(r.Context()))
	}
}

// Children lists the registrations under a node. ?type=item asks for the
// children of a registration, which has none.
func Children(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parent := explorer.Node{Key: chi.URLParam(r, "key"), Type: explorer.Server}
		if r.URL.Query().Get("type") == string(explorer.Item) {
			parent.Type = explorer.Item
		}
		nodes := d.Explorer.Children(r.Context(), parent)
		if nodes == nil {
			nodes = []explorer.Node{}
		}
		writeJSON(w, d, http.StatusOK, nodes)
	}
}
