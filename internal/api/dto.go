package api

import (
	"github.com/starford/kalendar/internal/eventservice"
	"github.com/starford/kalendar/internal/models"
)

// Event is the event representation used in request and response bodies.
// On create and update the id is ignored.
type Event = models.Event

// MoveRequest is the request body for moving an event to another day.
type MoveRequest struct {
	Date string `json:"date" example:"2026-10-20" validate:"required"`
}

// EventListResponse wraps event listings.
type EventListResponse struct {
	Events []Event `json:"events" validate:"required"`
	Total  int     `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []Event `json:"results" validate:"required"`
}

// OccurrencesResponse lists the days an event occurs on within a range.
type OccurrencesResponse struct {
	ID   string   `json:"id" validate:"required"`
	From string   `json:"from" example:"2026-10-01" validate:"required"`
	To   string   `json:"to" example:"2026-10-31" validate:"required"`
	Days []string `json:"days" validate:"required"`
}

// ImportResponse reports the outcome of an iCalendar import.
type ImportResponse struct {
	eventservice.ImportResult
	Warnings []string `json:"warnings"`
}
