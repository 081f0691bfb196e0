package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/kalendar/internal/eventservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /stream inside the auth group.
// calendarName is written to X-WR-CALNAME in the iCalendar export.
func NewRouter(svc *eventservice.Service, authEnabled bool, token string, sseHandler http.Handler, calendarName string) chi.Router {
	h := NewHandler(svc, calendarName)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Events CRUD.
	r.Get("/events", h.ListEvents)
	r.Post("/events", h.CreateEvent)
	r.Get("/events/{id}", h.GetEvent)
	r.Put("/events/{id}", h.UpdateEvent)
	r.Delete("/events/{id}", h.DeleteEvent)
	r.Post("/events/{id}/move", h.MoveEvent)
	r.Get("/events/{id}/occurrences", h.Occurrences)

	// Month view.
	r.Get("/calendar/current", h.CurrentMonth)
	r.Get("/calendar/{year}/{month}", h.Month)

	// Search.
	r.Get("/search", h.Search)

	// iCalendar.
	r.Get("/calendar.ics", h.ExportICS)
	r.Post("/import", h.ImportICS)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/stream", sseHandler.ServeHTTP)
	}

	return r
}
