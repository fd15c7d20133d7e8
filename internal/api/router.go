// Package api serves a small HTTP view of the companion: status, the latest
// frame and the zone configuration.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(app.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/ping", PingHandler)
	r.Get("/status", app.StatusHandler)
	r.Get("/image/latest", app.LatestImageHandler)
	r.Get("/overlay", app.OverlayHandler)

	r.Route("/zones", func(r chi.Router) {
		r.Get("/", app.ExportZonesHandler)
		r.Post("/", app.ImportZonesHandler)
	})
	r.Post("/servo/{command}", app.ServoHandler)

	return r
}
