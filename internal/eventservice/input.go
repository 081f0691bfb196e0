package eventservice

import (
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/kalendar/internal/apperr"
	"github.com/starford/kalendar/internal/models"
)

// Input carries the editable fields of an event.
type Input struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Date        string            `json:"date"`
	Color       string            `json:"color"`
	Recurrence  models.Recurrence `json:"recurrence"`
}

// InputFromEvent copies the editable fields of ev.
func InputFromEvent(ev models.Event) Input {
	return Input{
		Title:       ev.Title,
		Description: ev.Description,
		Date:        ev.Date,
		Color:       ev.Color,
		Recurrence:  ev.Recurrence,
	}
}

func (in *Input) validate(loc *time.Location) error {
	return validation.ValidateStruct(in,
		validation.Field(&in.Title, validation.Required.Error("title is required")),
		validation.Field(&in.Date,
			validation.Required.Error("date is required"),
			validation.By(func(v any) error {
				if _, err := models.ParseAnchor(v.(string), loc); err != nil {
					return errors.New("must be YYYY-MM-DDTHH:MM, RFC 3339 or YYYY-MM-DD")
				}
				return nil
			}),
		),
		validation.Field(&in.Color, validation.Match(models.HexColor).Error("must be a hex color like #007bff")),
		validation.Field(&in.Recurrence, validation.By(validateRecurrence)),
	)
}

func validateRecurrence(v any) error {
	w, ok := v.(models.Weekly)
	if !ok {
		return nil
	}
	for _, d := range w.Days {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("weekday %d out of range 0-6", d)
		}
	}
	return nil
}

// normalize trims, validates and fills defaults the way the submit form does:
// weekly without days repeats on the anchor's weekday and custom intervals
// below 1 become 1.
func (s *Service) normalize(in Input) (models.Event, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Date = strings.TrimSpace(in.Date)
	in.Color = strings.TrimSpace(in.Color)
	if in.Recurrence == nil {
		in.Recurrence = models.None{}
	}

	if err := in.validate(s.opts.Location); err != nil {
		return models.Event{}, fmt.Errorf("%w: %s", apperr.ErrInvalid, err.Error())
	}

	if in.Color == "" {
		in.Color = s.opts.DefaultColor
	}
	anchor, _ := models.ParseAnchor(in.Date, s.opts.Location)

	rule := in.Recurrence
	switch r := rule.(type) {
	case models.Weekly:
		if len(r.Days) == 0 {
			rule = models.Weekly{Days: []time.Weekday{anchor.Weekday()}}
		}
	case models.Custom:
		if r.Interval < 1 {
			rule = models.Custom{Interval: 1}
		}
	}

	return models.Event{
		Title:       in.Title,
		Description: in.Description,
		Date:        in.Date,
		Color:       in.Color,
		Recurrence:  rule,
	}, nil
}
