package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/tgrall/gears-explorer/internal/httpserver/deps"
	"github.com/tgrall/gears-explorer/internal/httpserver/handlers"
	"github.com/tgrall/gears-explorer/internal/httpserver/mw"
)

func init() { Register(registerAPI) }

func registerAPI(r chi.Router, d deps.Deps) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/tree", handlers.Tree(d))
		r.Get("/tree/{key}/children", handlers.Children(d))
		r.Get("/notifications", handlers.Notifications(d))

		r.Group(func(r chi.Router) {
			r.Use(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
			r.Post("/registrations", handlers.Register(d))
			r.Delete("/registrations/{id}", handlers.Unregister(d))
			r.Post("/refresh", handlers.Refresh(d))
			r.Put("/endpoint", handlers.Endpoint(d))
			r.Put("/mode", handlers.Mode(d))
			r.Post("/settings/reload", handlers.ReloadSettings(d))
		})
	})
}
