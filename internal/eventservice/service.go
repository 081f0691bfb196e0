// Package eventservice owns the event collection: validation, conflict
// rejection, write-through snapshot persistence and change notifications.
package eventservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/kalendar/internal/apperr"
	"github.com/starford/kalendar/internal/calendar"
	"github.com/starford/kalendar/internal/checksum"
	"github.com/starford/kalendar/internal/models"
	"github.com/starford/kalendar/internal/recurrence"
	"github.com/starford/kalendar/internal/storage"
)

// Change kinds passed to listeners.
const (
	ChangeCreated  = "created"
	ChangeUpdated  = "updated"
	ChangeDeleted  = "deleted"
	ChangeMoved    = "moved"
	ChangeReloaded = "reloaded"
	ChangeImported = "imported"
)

// DefaultColor is used when neither the input nor the options name a color.
const DefaultColor = "#007bff"

// Change describes a successful mutation. ID is empty for bulk changes.
// Events holds the versions the change touched, the previous one first; it
// is empty when the whole collection was replaced.
type Change struct {
	Kind   string
	ID     string
	Events []models.Event
}

// ChangeFunc observes successful mutations.
type ChangeFunc func(Change)

// Options configure a Service.
type Options struct {
	Key          string
	Location     *time.Location
	WeekStart    time.Weekday
	DefaultColor string
	Now          func() time.Time
	Logger       *slog.Logger
}

// Service coordinates the in-memory collection and its snapshot.
type Service struct {
	store storage.Provider
	opts  Options
	newID func() string

	mu        sync.RWMutex
	events    []models.Event
	lastSaved string

	lmu       sync.RWMutex
	listeners []ChangeFunc
}

// New creates a service and loads the current snapshot. A missing snapshot
// starts an empty collection; a malformed one is an error.
func New(store storage.Provider, opts Options) (*Service, error) {
	if opts.Key == "" {
		opts.Key = "events"
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.DefaultColor == "" {
		opts.DefaultColor = DefaultColor
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Service{store: store, opts: opts, newID: uuid.NewString}
	events, sum, err := s.load()
	if err != nil {
		return nil, err
	}
	s.events = events
	s.lastSaved = sum
	return s, nil
}

// OnChange registers fn to be called after every successful mutation.
func (s *Service) OnChange(fn ChangeFunc) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Location returns the calendar location.
func (s *Service) Location() *time.Location {
	return s.opts.Location
}

// List returns all events matching q in collection order.
func (s *Service) List(_ context.Context, q string) []models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return calendar.Filter(s.events, q)
}

// Get returns the event with id.
func (s *Service) Get(_ context.Context, id string) (models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return models.Event{}, apperr.ErrNotFound
	}
	return s.events[i], nil
}

// Create validates input and appends a new event.
func (s *Service) Create(_ context.Context, in Input) (models.Event, error) {
	ev, err := s.normalize(in)
	if err != nil {
		return models.Event{}, err
	}

	s.mu.Lock()
	ev.ID = s.newID()
	if err := s.checkConflict(ev); err != nil {
		s.mu.Unlock()
		return models.Event{}, err
	}
	next := append(slices.Clone(s.events), ev)
	err = s.commit(next)
	s.mu.Unlock()
	if err != nil {
		return models.Event{}, err
	}

	s.notify(Change{Kind: ChangeCreated, ID: ev.ID, Events: []models.Event{ev}})
	return ev, nil
}

// Update replaces the event with id. A non-empty ifMatch must equal the
// event's current ETag.
func (s *Service) Update(_ context.Context, id string, in Input, ifMatch string) (models.Event, error) {
	ev, err := s.normalize(in)
	if err != nil {
		return models.Event{}, err
	}
	ev.ID = id

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return models.Event{}, apperr.ErrNotFound
	}
	if ifMatch != "" && ifMatch != ETag(s.events[i]) {
		s.mu.Unlock()
		return models.Event{}, apperr.ErrPreconditionFailed
	}
	if err := s.checkConflict(ev); err != nil {
		s.mu.Unlock()
		return models.Event{}, err
	}
	prev := s.events[i]
	next := slices.Clone(s.events)
	next[i] = ev
	err = s.commit(next)
	s.mu.Unlock()
	if err != nil {
		return models.Event{}, err
	}

	s.notify(Change{Kind: ChangeUpdated, ID: id, Events: []models.Event{prev, ev}})
	return ev, nil
}

// Delete removes the event with id.
func (s *Service) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return apperr.ErrNotFound
	}
	prev := s.events[i]
	next := slices.Delete(slices.Clone(s.events), i, i+1)
	err := s.commit(next)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.notify(Change{Kind: ChangeDeleted, ID: id, Events: []models.Event{prev}})
	return nil
}

// Move puts the event's anchor on the calendar day of target, keeping the
// anchor's time of day. Recurrence is unchanged.
func (s *Service) Move(_ context.Context, id, target string) (models.Event, error) {
	day, err := models.ParseAnchor(target, s.opts.Location)
	if err != nil {
		return models.Event{}, fmt.Errorf("%w: date: %s", apperr.ErrInvalid, err.Error())
	}

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return models.Event{}, apperr.ErrNotFound
	}
	prev := s.events[i]
	ev := prev
	anchor, err := ev.Anchor(s.opts.Location)
	if err != nil {
		anchor = day
	}
	moved := time.Date(day.Year(), day.Month(), day.Day(), anchor.Hour(), anchor.Minute(), 0, 0, s.opts.Location)
	ev.Date = moved.Format(models.AnchorLayout)
	if err := s.checkConflict(ev); err != nil {
		s.mu.Unlock()
		return models.Event{}, err
	}
	next := slices.Clone(s.events)
	next[i] = ev
	err = s.commit(next)
	s.mu.Unlock()
	if err != nil {
		return models.Event{}, err
	}

	s.notify(Change{Kind: ChangeMoved, ID: id, Events: []models.Event{prev, ev}})
	return ev, nil
}

// Month returns the grid for m with events matching q.
func (s *Service) Month(_ context.Context, m calendar.Month, q string) calendar.Grid {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return calendar.Build(m, s.events, calendar.Options{
		WeekStart: s.opts.WeekStart,
		Location:  s.opts.Location,
		Now:       s.opts.Now(),
		Query:     q,
	})
}

// CurrentMonth returns the month containing now in the calendar location.
func (s *Service) CurrentMonth() calendar.Month {
	return calendar.MonthOf(s.opts.Now().In(s.opts.Location))
}

// Occurrences lists the days in [from, to] on which the event occurs, as
// calendar.DateLayout strings.
func (s *Service) Occurrences(ctx context.Context, id, from, to string) ([]string, error) {
	ev, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	start, err := models.ParseAnchor(from, s.opts.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: from: %s", apperr.ErrInvalid, err.Error())
	}
	end, err := models.ParseAnchor(to, s.opts.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: to: %s", apperr.ErrInvalid, err.Error())
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: to is before from", apperr.ErrInvalid)
	}
	if end.Sub(start) > 3*366*24*time.Hour {
		return nil, fmt.Errorf("%w: range longer than three years", apperr.ErrInvalid)
	}
	anchor, err := ev.Anchor(s.opts.Location)
	if err != nil {
		return []string{}, nil
	}
	days := recurrence.Occurrences(anchor, ev.Rule(), start, end)
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.Format(calendar.DateLayout)
	}
	return out, nil
}

// ImportResult reports the outcome of Import.
type ImportResult struct {
	Imported []models.Event `json:"imported"`
	Skipped  []string       `json:"skipped"`
}

// Import adds each event that validates, does not reuse an existing id and
// does not conflict. All accepted events are saved in one snapshot.
func (s *Service) Import(_ context.Context, events []models.Event) (ImportResult, error) {
	res := ImportResult{Imported: []models.Event{}, Skipped: []string{}}

	s.mu.Lock()
	next := slices.Clone(s.events)
	for _, raw := range events {
		ev, err := s.normalize(InputFromEvent(raw))
		if err != nil {
			res.Skipped = append(res.Skipped, fmt.Sprintf("%s: %v", raw.Title, err))
			continue
		}
		ev.ID = raw.ID
		if ev.ID == "" {
			ev.ID = s.newID()
		}
		if slices.ContainsFunc(next, func(e models.Event) bool { return e.ID == ev.ID }) {
			res.Skipped = append(res.Skipped, fmt.Sprintf("%s: id %s already exists", ev.Title, ev.ID))
			continue
		}
		if other, ok := recurrence.FindConflict(next, ev); ok {
			res.Skipped = append(res.Skipped, fmt.Sprintf("%s: conflicts with %q at %s", ev.Title, other.Title, ev.Date))
			continue
		}
		next = append(next, ev)
		res.Imported = append(res.Imported, ev)
	}
	var err error
	if len(res.Imported) > 0 {
		err = s.commit(next)
	}
	s.mu.Unlock()
	if err != nil {
		return ImportResult{}, err
	}

	if len(res.Imported) > 0 {
		s.notify(Change{Kind: ChangeImported, Events: res.Imported})
	}
	return res, nil
}

// Reload re-reads the snapshot. It reports false when the stored snapshot is
// the one this service last wrote. On a decode failure the current
// collection is kept. The lock is held across the read so a mutation cannot
// commit between reading and installing the snapshot.
func (s *Service) Reload(_ context.Context) (bool, error) {
	s.mu.Lock()
	changed, count, err := s.reloadLocked()
	s.mu.Unlock()
	if err != nil || !changed {
		return false, err
	}

	s.opts.Logger.Info("events reloaded from storage", slog.Int("count", count))
	s.notify(Change{Kind: ChangeReloaded})
	return true, nil
}

// reloadLocked installs the stored snapshot if it differs from the last one
// saved. Providers that keep a checksum are asked for it first so an
// unchanged snapshot is never read. Callers hold s.mu.
func (s *Service) reloadLocked() (bool, int, error) {
	if cs, ok := s.store.(storage.Checksummer); ok {
		sum, err := cs.Checksum(s.opts.Key)
		if err != nil {
			return false, 0, fmt.Errorf("eventservice: %w", err)
		}
		if sum == s.lastSaved {
			return false, 0, nil
		}
	}
	events, sum, err := s.load()
	if err != nil {
		return false, 0, err
	}
	if sum == s.lastSaved {
		return false, 0, nil
	}
	s.events = events
	s.lastSaved = sum
	return true, len(events), nil
}

// ETag returns a strong validator for ev.
func ETag(ev models.Event) string {
	data, err := json.Marshal(ev)
	if err != nil {
		return ""
	}
	return checksum.Sum(data)
}

func (s *Service) load() ([]models.Event, string, error) {
	data, err := s.store.Load(s.opts.Key)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return []models.Event{}, "", nil
		}
		return nil, "", fmt.Errorf("eventservice: load: %w", err)
	}
	events, err := models.DecodeCollection(data)
	if err != nil {
		return nil, "", fmt.Errorf("eventservice: %w", err)
	}
	return events, checksum.Sum(data), nil
}

// commit saves next and installs it. Callers hold s.mu.
func (s *Service) commit(next []models.Event) error {
	data, err := models.EncodeCollection(next)
	if err != nil {
		return fmt.Errorf("eventservice: encode: %w", err)
	}
	if err := s.store.Save(s.opts.Key, data); err != nil {
		return fmt.Errorf("eventservice: save: %w", err)
	}
	s.events = next
	s.lastSaved = checksum.Sum(data)
	return nil
}

// checkConflict reports apperr.ErrConflict when ev collides. Callers hold s.mu.
func (s *Service) checkConflict(ev models.Event) error {
	if other, ok := recurrence.FindConflict(s.events, ev); ok {
		return fmt.Errorf("%w: %q is already scheduled at %s", apperr.ErrConflict, other.Title, strings.TrimSpace(ev.Date))
	}
	return nil
}

func (s *Service) indexOf(id string) int {
	return slices.IndexFunc(s.events, func(e models.Event) bool { return e.ID == id })
}

func (s *Service) notify(c Change) {
	s.lmu.RLock()
	defer s.lmu.RUnlock()
	for _, fn := range s.listeners {
		fn(c)
	}
}
