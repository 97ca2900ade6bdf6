package planner

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"nutriplan/internal/catalogue"
	"nutriplan/internal/plan"
	"nutriplan/internal/shared"

	"go.uber.org/zap"
)

const (
	// RecentPlans is how many of the latest saved plans feed the recency set.
	RecentPlans = 3
	// MaxDays is the longest plan that can be assigned in one run.
	MaxDays = 31
)

// ErrInsufficientCatalogue means there is no lunch-eligible or no
// dinner-eligible dish to plan with.
var ErrInsufficientCatalogue = errors.New("insufficient catalogue: need at least one lunch and one dinner dish")

// ErrTooManyDays means a plan longer than MaxDays was requested.
var ErrTooManyDays = fmt.Errorf("a plan covers at most %d days", MaxDays)

// Option is a dish offered to the generator for one mealtime.
type Option struct {
	ID           string
	Name         string
	SaturdayOnly bool
	SundayOnly   bool
}

// Request is what the generator is asked to plan.
type Request struct {
	Days      int
	StartDate string
	Recent    []string
	Lunch     []Option
	Dinner    []Option
}

// Slot is one generated day. Ids are unverified.
type Slot struct {
	Date     string `json:"date"`
	LunchID  string `json:"lunchId"`
	DinnerID string `json:"dinnerId"`
}

// Response is the generator's answer.
type Response struct {
	Slots []Slot
	Meta  shared.AgentMeta
}

// Generator makes the creative dish choice for a plan.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// Result is a complete assignment run.
type Result struct {
	Days     []plan.DayAssignment
	FellBack bool
	Meta     shared.AgentMeta
}

// Engine assigns dishes to lunch and dinner slots.
type Engine struct {
	gen    Generator
	logger *zap.Logger
	pick   func(n int) int
}

// NewEngine creates an Engine. A nil generator always uses the
// deterministic rotation.
func NewEngine(gen Generator, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{gen: gen, logger: logger, pick: rand.Intn}
}

// Assign produces one assignment per day starting at start. It fails only
// with ErrInsufficientCatalogue or ErrTooManyDays, before the generator is
// called; generator failures fall back to a round-robin over the eligible
// dishes.
func (e *Engine) Assign(ctx context.Context, dishes []catalogue.Dish, start time.Time, days int, history []plan.Plan) (Result, error) {
	lunch := catalogue.Eligible(dishes, catalogue.Lunch)
	dinner := catalogue.Eligible(dishes, catalogue.Dinner)
	if len(lunch) == 0 || len(dinner) == 0 {
		return Result{}, ErrInsufficientCatalogue
	}
	if days <= 0 {
		return Result{}, nil
	}
	if days > MaxDays {
		return Result{}, ErrTooManyDays
	}

	start = dateOnly(start)
	if e.gen == nil {
		return Result{Days: rotate(lunch, dinner, start, 0, days), FellBack: true}, nil
	}

	req := Request{
		Days:      days,
		StartDate: start.Format(plan.DateLayout),
		Recent:    plan.RecentDishNames(history, RecentPlans),
		Lunch:     options(lunch),
		Dinner:    options(dinner),
	}

	resp, err := e.gen.Generate(ctx, req)
	if err != nil {
		e.logger.Warn("Menu generation failed, using rotation",
			zap.Int("days", days),
			zap.String("start", req.StartDate),
			zap.Error(err))
		return Result{Days: rotate(lunch, dinner, start, 0, days), FellBack: true, Meta: resp.Meta}, nil
	}

	return Result{
		Days: e.realize(resp.Slots, dishes, lunch, dinner, start, days),
		Meta: resp.Meta,
	}, nil
}

// realize resolves generated ids against the catalogue, replacing any id
// that is unknown or not eligible for its slot with a random eligible dish.
func (e *Engine) realize(slots []Slot, dishes, lunch, dinner []catalogue.Dish, start time.Time, days int) []plan.DayAssignment {
	byID := make(map[string]catalogue.Dish, len(dishes))
	for _, d := range dishes {
		byID[d.ID] = d
	}

	if len(slots) > days {
		slots = slots[:days]
	}

	out := make([]plan.DayAssignment, 0, days)
	substituted := 0
	for i, s := range slots {
		l, ok := byID[s.LunchID]
		if !ok || !l.CanBeLunch {
			l = lunch[e.pick(len(lunch))]
			substituted++
		}
		d, ok := byID[s.DinnerID]
		if !ok || !d.CanBeDinner {
			d = dinner[e.pick(len(dinner))]
			substituted++
		}
		out = append(out, plan.DayAssignment{
			Date:   start.AddDate(0, 0, i).Format(plan.DateLayout),
			Lunch:  l,
			Dinner: d,
		})
	}

	if missing := days - len(out); missing > 0 {
		e.logger.Warn("Generated plan is short, completing with rotation",
			zap.Int("generated", len(out)),
			zap.Int("days", days))
		out = append(out, rotate(lunch, dinner, start, len(out), days)...)
	}
	if substituted > 0 {
		e.logger.Info("Replaced ineligible generated dishes", zap.Int("count", substituted))
	}

	return out
}

// rotate is the deterministic plan for day offsets [from, to).
func rotate(lunch, dinner []catalogue.Dish, start time.Time, from, to int) []plan.DayAssignment {
	out := make([]plan.DayAssignment, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, plan.DayAssignment{
			Date:   start.AddDate(0, 0, i).Format(plan.DateLayout),
			Lunch:  lunch[i%len(lunch)],
			Dinner: dinner[i%len(dinner)],
		})
	}
	return out
}

func options(dishes []catalogue.Dish) []Option {
	out := make([]Option, len(dishes))
	for i, d := range dishes {
		out[i] = Option{
			ID:           d.ID,
			Name:         d.Name,
			SaturdayOnly: d.IsSaturdayOnly,
			SundayOnly:   d.IsSundayOnly,
		}
	}
	return out
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseStartDate parses a plan start date in the 2006-01-02 layout.
func ParseStartDate(s string) (time.Time, error) {
	return time.Parse(plan.DateLayout, s)
}
