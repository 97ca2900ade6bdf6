package catalogue

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Extract builds a catalogue from a lunch table and a dinner table. The
// lunch table is folded first, so it owns the id and category of any dish
// present in both. Output keeps first-insertion order.
func Extract(lunchRows, dinnerRows [][]string) []Dish {
	acc := newAccumulator()
	acc.fold(lunchRows, Lunch)
	acc.fold(dinnerRows, Dinner)
	return acc.dishes
}

// accumulator owns the mapping from normalized name to dish.
type accumulator struct {
	index  map[string]int
	dishes []Dish
}

func newAccumulator() *accumulator {
	return &accumulator{index: make(map[string]int)}
}

func (a *accumulator) upsert(d Dish) {
	key := Key(d.Name)
	if i, ok := a.index[key]; ok {
		a.dishes[i] = MergeDish(a.dishes[i], d)
		return
	}
	a.index[key] = len(a.dishes)
	a.dishes = append(a.dishes, d)
}

func (a *accumulator) fold(rows [][]string, meal Meal) {
	if len(rows) == 0 {
		return
	}

	cols := DetectColumns(rows[0])
	start := 1
	if !cols.NameFound && len(rows[0]) > 0 && utf8.RuneCountInString(rows[0][0]) > 3 {
		start = 0
	}

	prefix := "d"
	if meal == Lunch {
		prefix = "l"
	}

	for i := start; i < len(rows); i++ {
		row := rows[i]
		if len(row) <= cols.Name {
			continue
		}

		name := strings.TrimSpace(row[cols.Name])
		if name == "" || isHeaderWord(name) {
			continue
		}

		category := cell(row, cols.Category)
		if category == "" {
			category = DefaultCategory
		}

		a.upsert(Dish{
			ID:             fmt.Sprintf("%s-%d", prefix, i),
			Name:           name,
			CanBeLunch:     meal == Lunch,
			CanBeDinner:    meal == Dinner,
			Category:       category,
			IsSaturdayOnly: cols.Saturday != -1 && truthy(cell(row, cols.Saturday)),
			IsSundayOnly:   cols.Sunday != -1 && truthy(cell(row, cols.Sunday)),
		})
	}
}

func isHeaderWord(name string) bool {
	lower := strings.ToLower(name)
	return lower == "nombre" || lower == "plato"
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
