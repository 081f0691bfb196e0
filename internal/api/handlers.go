package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/kalendar/internal/calendar"
	"github.com/starford/kalendar/internal/eventservice"
	"github.com/starford/kalendar/internal/ical"
	"github.com/starford/kalendar/internal/models"
)

const maxBody = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc          *eventservice.Service
	calendarName string
}

// NewHandler creates a new Handler.
func NewHandler(svc *eventservice.Service, calendarName string) *Handler {
	return &Handler{svc: svc, calendarName: calendarName}
}

// decodeEvent reads an event body and returns it as service input.
func decodeEvent(w http.ResponseWriter, r *http.Request) (eventservice.Input, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	var ev models.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body: "+err.Error()))
		return eventservice.Input{}, false
	}
	return eventservice.InputFromEvent(ev), true
}

func setETag(w http.ResponseWriter, ev models.Event) {
	w.Header().Set("ETag", strconv.Quote(eventservice.ETag(ev)))
}

// ListEvents handles GET /api/events.
//
//	@Summary		List events in collection order
//	@Tags			events
//	@Produce		json
//	@Param			q	query		string	false	"Case-insensitive title/description filter"
//	@Success		200	{object}	EventListResponse
//	@Security		BearerAuth
//	@Router			/events [get]
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events := h.svc.List(r.Context(), r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, EventListResponse{Events: events, Total: len(events)})
}

// GetEvent handles GET /api/events/{id}.
//
//	@Summary		Get a single event
//	@Tags			events
//	@Produce		json
//	@Param			id	path		string	true	"Event id"
//	@Success		200	{object}	Event
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/events/{id} [get]
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ev, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, "get event", err, slog.String("id", id))
		return
	}
	setETag(w, ev)
	writeJSON(w, http.StatusOK, ev)
}

// CreateEvent handles POST /api/events.
//
//	@Summary		Create an event
//	@Tags			events
//	@Accept			json
//	@Produce		json
//	@Param			body	body		Event	true	"Event to create"
//	@Success		201		{object}	Event
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse	"Another event has the same date"
//	@Security		BearerAuth
//	@Router			/events [post]
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeEvent(w, r)
	if !ok {
		return
	}
	ev, err := h.svc.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, "create event", err, slog.String("title", in.Title))
		return
	}
	setETag(w, ev)
	writeJSON(w, http.StatusCreated, ev)
}

// UpdateEvent handles PUT /api/events/{id}.
//
//	@Summary		Replace an event with optimistic concurrency
//	@Tags			events
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string	true	"Event id"
//	@Param			If-Match	header		string	false	"ETag from a previous read"
//	@Param			body		body		Event	true	"Updated event"
//	@Success		200			{object}	Event
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Failure		412			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/events/{id} [put]
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	in, ok := decodeEvent(w, r)
	if !ok {
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	ev, err := h.svc.Update(r.Context(), id, in, ifMatch)
	if err != nil {
		writeServiceError(w, "update event", err, slog.String("id", id))
		return
	}
	setETag(w, ev)
	writeJSON(w, http.StatusOK, ev)
}

// DeleteEvent handles DELETE /api/events/{id}.
//
//	@Summary		Delete an event
//	@Tags			events
//	@Param			id	path	string	true	"Event id"
//	@Success		204	"Event deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/events/{id} [delete]
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, "delete event", err, slog.String("id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveEvent handles POST /api/events/{id}/move.
//
//	@Summary		Move an event to another day, keeping its time
//	@Tags			events
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Event id"
//	@Param			body	body		MoveRequest	true	"Target day"
//	@Success		200		{object}	Event
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/events/{id}/move [post]
func (h *Handler) MoveEvent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	id := chi.URLParam(r, "id")
	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Date == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("date is required"))
		return
	}
	ev, err := h.svc.Move(r.Context(), id, req.Date)
	if err != nil {
		writeServiceError(w, "move event", err, slog.String("id", id))
		return
	}
	setETag(w, ev)
	writeJSON(w, http.StatusOK, ev)
}

// Occurrences handles GET /api/events/{id}/occurrences.
//
//	@Summary		Days on which an event occurs
//	@Tags			events
//	@Produce		json
//	@Param			id		path		string	true	"Event id"
//	@Param			from	query		string	true	"First day (YYYY-MM-DD)"
//	@Param			to		query		string	true	"Last day (YYYY-MM-DD)"
//	@Success		200		{object}	OccurrencesResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/events/{id}/occurrences [get]
func (h *Handler) Occurrences(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameters 'from' and 'to' are required"))
		return
	}
	days, err := h.svc.Occurrences(r.Context(), id, from, to)
	if err != nil {
		writeServiceError(w, "occurrences", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, OccurrencesResponse{ID: id, From: from, To: to, Days: days})
}

// Month handles GET /api/calendar/{year}/{month}.
//
//	@Summary		Month grid with events placed on every day they occur
//	@Tags			calendar
//	@Produce		json
//	@Param			year	path		int		true	"Year"
//	@Param			month	path		int		true	"Month 1-12"
//	@Param			q		query		string	false	"Search filter"
//	@Success		200		{object}	calendar.Grid
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/calendar/{year}/{month} [get]
func (h *Handler) Month(w http.ResponseWriter, r *http.Request) {
	year, yerr := strconv.Atoi(chi.URLParam(r, "year"))
	month, merr := strconv.Atoi(chi.URLParam(r, "month"))
	if yerr != nil || merr != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("year and month must be numbers"))
		return
	}
	m, err := calendar.NewMonth(year, month)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Month(r.Context(), m, r.URL.Query().Get("q")))
}

// CurrentMonth handles GET /api/calendar/current.
//
//	@Summary		Month grid for the current month
//	@Tags			calendar
//	@Produce		json
//	@Param			q	query		string	false	"Search filter"
//	@Success		200	{object}	calendar.Grid
//	@Security		BearerAuth
//	@Router			/calendar/current [get]
func (h *Handler) CurrentMonth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Month(r.Context(), h.svc.CurrentMonth(), r.URL.Query().Get("q")))
}

// Search handles GET /api/search.
//
//	@Summary		Search event titles and descriptions
//	@Tags			search
//	@Produce		json
//	@Param			q	query		string	true	"Search query"
//	@Success		200	{object}	SearchResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: h.svc.List(r.Context(), q)})
}

// ExportICS handles GET /api/calendar.ics.
//
//	@Summary		Export all events as iCalendar
//	@Tags			ical
//	@Produce		text/calendar
//	@Success		200	{string}	string
//	@Security		BearerAuth
//	@Router			/calendar.ics [get]
func (h *Handler) ExportICS(w http.ResponseWriter, r *http.Request) {
	body, err := ical.Export(h.svc.List(r.Context(), ""), ical.ExportOptions{
		Name:     h.calendarName,
		Location: h.svc.Location(),
	})
	if err != nil {
		writeServiceError(w, "ical export", err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

// ImportICS handles POST /api/import.
//
//	@Summary		Import VEVENTs from an iCalendar body
//	@Tags			ical
//	@Accept			text/calendar
//	@Produce		json
//	@Success		200	{object}	ImportResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/import [post]
func (h *Handler) ImportICS(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	events, warnings, err := ical.Import(bytes.NewReader(data), h.svc.Location())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	res, err := h.svc.Import(r.Context(), events)
	if err != nil {
		writeServiceError(w, "ical import", err)
		return
	}
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, ImportResponse{ImportResult: res, Warnings: warnings})
}
