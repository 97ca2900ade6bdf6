package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"nutriplan/internal/catalogue"
	"nutriplan/internal/plan"
	"nutriplan/internal/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockGenerator struct {
	calls   int
	lastReq Request
	resp    Response
	err     error
}

func (m *mockGenerator) Generate(ctx context.Context, req Request) (Response, error) {
	m.calls++
	m.lastReq = req
	return m.resp, m.err
}

func lunchDish(id, name string) catalogue.Dish {
	return catalogue.Dish{ID: id, Name: name, CanBeLunch: true, Category: catalogue.DefaultCategory}
}

func dinnerDish(id, name string) catalogue.Dish {
	return catalogue.Dish{ID: id, Name: name, CanBeDinner: true, Category: catalogue.DefaultCategory}
}

// Two lunch-only and three dinner-only dishes.
func testCatalogue() []catalogue.Dish {
	return []catalogue.Dish{
		lunchDish("l-1", "Lentejas"),
		dinnerDish("d-1", "Tortilla"),
		lunchDish("l-2", "Paella"),
		dinnerDish("d-2", "Crema de calabacín"),
		dinnerDish("d-3", "Merluza"),
	}
}

var testStart = time.Date(2024, 6, 3, 15, 30, 0, 0, time.UTC)

func TestAssign_FallbackDeterminism(t *testing.T) {
	gen := &mockGenerator{err: errors.New("model unavailable")}
	e := NewEngine(gen, nil)

	res, err := e.Assign(context.Background(), testCatalogue(), testStart, 4, nil)
	require.NoError(t, err)
	assert.True(t, res.FellBack)
	assert.Equal(t, 1, gen.calls)
	require.Len(t, res.Days, 4)

	wantLunch := []string{"l-1", "l-2", "l-1", "l-2"}
	wantDinner := []string{"d-1", "d-2", "d-3", "d-1"}
	wantDates := []string{"2024-06-03", "2024-06-04", "2024-06-05", "2024-06-06"}
	for i, day := range res.Days {
		assert.Equal(t, wantDates[i], day.Date)
		assert.Equal(t, wantLunch[i], day.Lunch.ID)
		assert.Equal(t, wantDinner[i], day.Dinner.ID)
	}
}

func TestAssign_NilGeneratorRotates(t *testing.T) {
	e := NewEngine(nil, nil)

	res, err := e.Assign(context.Background(), testCatalogue(), testStart, 3, nil)
	require.NoError(t, err)
	assert.True(t, res.FellBack)
	require.Len(t, res.Days, 3)
	assert.Equal(t, "d-3", res.Days[2].Dinner.ID)
}

func TestAssign_ValidationSubstitution(t *testing.T) {
	gen := &mockGenerator{resp: Response{
		Slots: []Slot{
			{Date: "2024-06-03", LunchID: "d-1", DinnerID: "d-2"},
			{Date: "2024-06-04", LunchID: "nope", DinnerID: "l-1"},
		},
		Meta: shared.AgentMeta{AgentName: agentName},
	}}
	e := NewEngine(gen, nil)

	for i := 0; i < 20; i++ {
		res, err := e.Assign(context.Background(), testCatalogue(), testStart, 2, nil)
		require.NoError(t, err)
		assert.False(t, res.FellBack)
		require.Len(t, res.Days, 2)
		for _, day := range res.Days {
			assert.True(t, day.Lunch.CanBeLunch, "lunch %q", day.Lunch.ID)
			assert.True(t, day.Dinner.CanBeDinner, "dinner %q", day.Dinner.ID)
		}
		assert.Equal(t, "d-2", res.Days[0].Dinner.ID)
	}
}

func TestAssign_ValidIDsKept(t *testing.T) {
	gen := &mockGenerator{resp: Response{Slots: []Slot{
		{Date: "2024-06-03", LunchID: "l-2", DinnerID: "d-3"},
	}}}
	e := NewEngine(gen, nil)

	res, err := e.Assign(context.Background(), testCatalogue(), testStart, 1, nil)
	require.NoError(t, err)
	require.Len(t, res.Days, 1)
	assert.Equal(t, "Paella", res.Days[0].Lunch.Name)
	assert.Equal(t, "Merluza", res.Days[0].Dinner.Name)
}

func TestAssign_SubstitutionUsesPick(t *testing.T) {
	gen := &mockGenerator{resp: Response{Slots: []Slot{
		{LunchID: "d-1", DinnerID: "missing"},
	}}}
	e := NewEngine(gen, nil)
	e.pick = func(n int) int { return n - 1 }

	res, err := e.Assign(context.Background(), testCatalogue(), testStart, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "l-2", res.Days[0].Lunch.ID)
	assert.Equal(t, "d-3", res.Days[0].Dinner.ID)
}

func TestAssign_SlotCountNormalized(t *testing.T) {
	t.Run("Short", func(t *testing.T) {
		gen := &mockGenerator{resp: Response{Slots: []Slot{
			{LunchID: "l-2", DinnerID: "d-2"},
		}}}
		res, err := NewEngine(gen, nil).Assign(context.Background(), testCatalogue(), testStart, 3, nil)
		require.NoError(t, err)
		require.Len(t, res.Days, 3)
		assert.Equal(t, "l-2", res.Days[0].Lunch.ID)
		// Padding continues the rotation at the missing offsets.
		assert.Equal(t, "l-2", res.Days[1].Lunch.ID)
		assert.Equal(t, "d-3", res.Days[2].Dinner.ID)
		assert.Equal(t, "2024-06-05", res.Days[2].Date)
	})

	t.Run("Long", func(t *testing.T) {
		gen := &mockGenerator{resp: Response{Slots: []Slot{
			{LunchID: "l-1", DinnerID: "d-1"},
			{LunchID: "l-2", DinnerID: "d-2"},
			{LunchID: "l-1", DinnerID: "d-3"},
		}}}
		res, err := NewEngine(gen, nil).Assign(context.Background(), testCatalogue(), testStart, 2, nil)
		require.NoError(t, err)
		require.Len(t, res.Days, 2)
	})

	t.Run("DatesFollowStart", func(t *testing.T) {
		gen := &mockGenerator{resp: Response{Slots: []Slot{
			{Date: "1999-01-01", LunchID: "l-1", DinnerID: "d-1"},
		}}}
		res, err := NewEngine(gen, nil).Assign(context.Background(), testCatalogue(), testStart, 1, nil)
		require.NoError(t, err)
		assert.Equal(t, "2024-06-03", res.Days[0].Date)
	})
}

func TestAssign_InsufficientCatalogue(t *testing.T) {
	cases := []struct {
		name   string
		dishes []catalogue.Dish
	}{
		{"NoLunch", []catalogue.Dish{dinnerDish("d-1", "Tortilla")}},
		{"NoDinner", []catalogue.Dish{lunchDish("l-1", "Paella")}},
		{"Empty", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen := &mockGenerator{}
			_, err := NewEngine(gen, nil).Assign(context.Background(), tc.dishes, testStart, 7, nil)
			assert.ErrorIs(t, err, ErrInsufficientCatalogue)
			assert.Zero(t, gen.calls)
		})
	}
}

func TestAssign_ZeroDays(t *testing.T) {
	gen := &mockGenerator{}
	res, err := NewEngine(gen, nil).Assign(context.Background(), testCatalogue(), testStart, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Days)
	assert.Zero(t, gen.calls)
}

func TestAssign_TooManyDays(t *testing.T) {
	gen := &mockGenerator{}
	engine := NewEngine(gen, nil)

	_, err := engine.Assign(context.Background(), testCatalogue(), testStart, MaxDays+1, nil)
	assert.ErrorIs(t, err, ErrTooManyDays)
	assert.Zero(t, gen.calls)

	res, err := NewEngine(nil, nil).Assign(context.Background(), testCatalogue(), testStart, MaxDays, nil)
	require.NoError(t, err)
	assert.Len(t, res.Days, MaxDays)
}

func TestAssign_Request(t *testing.T) {
	weekend := catalogue.Dish{ID: "l-3", Name: "Cocido", CanBeLunch: true, IsSundayOnly: true}
	dishes := append(testCatalogue(), weekend)

	history := []plan.Plan{
		{ID: "old", CreatedAt: "2024-01-01T00:00:00Z", Plan: []plan.DayAssignment{
			{Lunch: lunchDish("x", "Garbanzos"), Dinner: dinnerDish("y", "Sopa")},
		}},
		{ID: "new", CreatedAt: "2024-05-01T00:00:00Z", Plan: []plan.DayAssignment{
			{Lunch: lunchDish("l-1", "Lentejas"), Dinner: dinnerDish("d-1", "Tortilla")},
		}},
	}

	gen := &mockGenerator{err: errors.New("boom")}
	_, err := NewEngine(gen, nil).Assign(context.Background(), dishes, testStart, 5, history)
	require.NoError(t, err)

	req := gen.lastReq
	assert.Equal(t, 5, req.Days)
	assert.Equal(t, "2024-06-03", req.StartDate)
	assert.Equal(t, []string{"Lentejas", "Tortilla", "Garbanzos", "Sopa"}, req.Recent)
	require.Len(t, req.Lunch, 3)
	assert.Equal(t, Option{ID: "l-3", Name: "Cocido", SundayOnly: true}, req.Lunch[2])
	assert.Len(t, req.Dinner, 3)
}
