package handlers

import (
	"net/http"
	"strconv"

	"github.com/tgrall/gears-explorer/internal/httpserver/deps"
	"github.com/tgrall/gears-explorer/internal/notify"
)

type notificationsResponse struct {
	Total uint64                `json:"total"`
	Items []notify.Notification `json:"items"`
}

// Notifications returns the most recent user messages, newest first.
// ?limit=n caps the list; 0 or absent returns everything retained.
func Notifications(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, d, errBadRequest)
				return
			}
			limit = n
		}
		items := d.Notifications.Recent(limit)
		if items == nil {
			items = []notify.Notification{}
		}
		writeJSON(w, d, http.StatusOK, notificationsResponse{
			Total: d.Notifications.Count(),
			Items: items,
		})
	}
}
