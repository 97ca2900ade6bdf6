// Package catalogue turns lunch and dinner tables into one deduplicated
// list of dishes.
package catalogue

import (
	"strings"
)

// DefaultCategory is used when a table has no category column or the cell is blank.
const DefaultCategory = "General"

// Meal is a mealtime slot.
type Meal string

const (
	Lunch  Meal = "comida"
	Dinner Meal = "cena"
)

// Dish is a named menu item.
type Dish struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	CanBeLunch     bool   `json:"canBeLunch"`
	CanBeDinner    bool   `json:"canBeDinner"`
	Category       string `json:"category,omitempty"`
	IsSaturdayOnly bool   `json:"isSaturdayOnly,omitempty"`
	IsSundayOnly   bool   `json:"isSundayOnly,omitempty"`
}

// Key is the catalogue's natural key for a dish name.
func Key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Allows reports whether the dish may be served at meal.
func (d Dish) Allows(meal Meal) bool {
	if meal == Lunch {
		return d.CanBeLunch
	}
	return d.CanBeDinner
}

// MergeDish folds incoming into existing. Flags are OR-ed and never
// downgraded; id, name and category stay with the first-seen entry.
func MergeDish(existing, incoming Dish) Dish {
	existing.CanBeLunch = existing.CanBeLunch || incoming.CanBeLunch
	existing.CanBeDinner = existing.CanBeDinner || incoming.CanBeDinner
	existing.IsSaturdayOnly = existing.IsSaturdayOnly || incoming.IsSaturdayOnly
	existing.IsSundayOnly = existing.IsSundayOnly || incoming.IsSundayOnly
	return existing
}

// Eligible returns the dishes usable for meal, in catalogue order.
func Eligible(dishes []Dish, meal Meal) []Dish {
	var out []Dish
	for _, d := range dishes {
		if d.Allows(meal) {
			out = append(out, d)
		}
	}
	return out
}

// Search returns dishes whose name or category contains query, case-insensitively.
func Search(dishes []Dish, query string) []Dish {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return dishes
	}

	var out []Dish
	for _, d := range dishes {
		if strings.Contains(strings.ToLower(d.Name), q) ||
			strings.Contains(strings.ToLower(d.Category), q) {
			out = append(out, d)
		}
	}
	return out
}
