// Package plan holds saved meal plans and the rules for decoding them from
// a shared sheet and reconciling them with locally held copies.
package plan

import (
	"strings"
	"time"

	"nutriplan/internal/catalogue"

	"github.com/google/uuid"
)

// DateLayout is the calendar-date format used in plans.
const DateLayout = "2006-01-02"

// Origin records where a plan is held. It is custody, not content.
type Origin string

const (
	OriginLocal Origin = "local"
	OriginCloud Origin = "cloud"
)

// DayAssignment is one calendar date with its lunch and dinner dish.
type DayAssignment struct {
	Date   string         `json:"date"`
	Lunch  catalogue.Dish `json:"lunch"`
	Dinner catalogue.Dish `json:"dinner"`
}

// Plan is a named, dated sequence of day assignments.
type Plan struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	CreatedAt string          `json:"createdAt"`
	StartDate string          `json:"startDate"`
	Days      int             `json:"days"`
	Plan      []DayAssignment `json:"plan"`
	Origin    Origin          `json:"origin,omitempty"`
}

// New creates a local plan from committed assignments.
func New(name, startDate string, days []DayAssignment, now time.Time) Plan {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Plan " + displayDate(startDate, now)
	}

	return Plan{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now.UTC().Format(time.RFC3339Nano),
		StartDate: startDate,
		Days:      len(days),
		Plan:      days,
		Origin:    OriginLocal,
	}
}

// Created parses CreatedAt. Unparsable values sort as the zero time.
func (p Plan) Created() time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, DateLayout} {
		if t, err := time.Parse(layout, p.CreatedAt); err == nil {
			return t
		}
	}
	return time.Time{}
}

// LocalOnly returns the plans not yet held remotely.
func LocalOnly(plans []Plan) []Plan {
	var out []Plan
	for _, p := range plans {
		if p.Origin != OriginCloud {
			out = append(out, p)
		}
	}
	return out
}

func displayDate(startDate string, fallback time.Time) string {
	if t, err := time.Parse(DateLayout, startDate); err == nil {
		return t.Format("02/01/2006")
	}
	return fallback.Format("02/01/2006")
}
