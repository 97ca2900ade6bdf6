package catalogue

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// IssueKind classifies a suspicious catalogue entry.
type IssueKind string

const (
	IssueBothWeekendDays IssueKind = "both_weekend_days"
	IssueNoMealtime      IssueKind = "no_mealtime"
)

// Issue describes a dish that is legal but probably mis-entered.
type Issue struct {
	DishID string
	Name   string
	Kind   IssueKind
}

// Validate flags suspicious dishes. Nothing is rejected; a dish restricted
// to both Saturday and Sunday is kept as-is and only reported.
func Validate(dishes []Dish) []Issue {
	var issues []Issue
	for _, d := range dishes {
		if d.IsSaturdayOnly && d.IsSundayOnly {
			issues = append(issues, Issue{DishID: d.ID, Name: d.Name, Kind: IssueBothWeekendDays})
		}
		if !d.CanBeLunch && !d.CanBeDinner {
			issues = append(issues, Issue{DishID: d.ID, Name: d.Name, Kind: IssueNoMealtime})
		}
	}
	return issues
}

// SortByName orders dishes alphabetically using Spanish collation, ignoring
// case and accents.
func SortByName(dishes []Dish) {
	c := collate.New(language.Spanish, collate.IgnoreCase, collate.IgnoreDiacritics)
	sort.SliceStable(dishes, func(i, j int) bool {
		return c.CompareString(dishes[i].Name, dishes[j].Name) < 0
	})
}
