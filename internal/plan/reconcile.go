package plan

import (
	"sort"
)

// Reconcile merges freshly decoded remote plans with the previous merged
// view. Stale cloud entries of the previous view are dropped, fresh remote
// plans come first, then surviving local plans; the first occurrence of an
// id wins.
func Reconcile(previousMerged, freshRemote []Plan) []Plan {
	combined := make([]Plan, 0, len(freshRemote)+len(previousMerged))
	combined = append(combined, freshRemote...)
	combined = append(combined, LocalOnly(previousMerged)...)

	seen := make(map[string]struct{}, len(combined))
	out := make([]Plan, 0, len(combined))
	for _, p := range combined {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

// RecentDishNames returns the distinct dish names used in the n most
// recently created plans, as lunch or dinner, in first-seen order.
func RecentDishNames(history []Plan, n int) []string {
	if n <= 0 || len(history) == 0 {
		return nil
	}

	sorted := make([]Plan, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Created().After(sorted[j].Created())
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}

	var names []string
	seen := make(map[string]struct{})
	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	for _, p := range sorted {
		for _, day := range p.Plan {
			add(day.Lunch.Name)
			add(day.Dinner.Name)
		}
	}
	return names
}

// MealStat counts how often a dish appears across plans.
type MealStat struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Stats counts dish usage across history, most used first.
func Stats(history []Plan) []MealStat {
	counts := make(map[string]int)
	for _, p := range history {
		for _, day := range p.Plan {
			if day.Lunch.Name != "" {
				counts[day.Lunch.Name]++
			}
			if day.Dinner.Name != "" {
				counts[day.Dinner.Name]++
			}
		}
	}

	stats := make([]MealStat, 0, len(counts))
	for name, c := range counts {
		stats = append(stats, MealStat{Name: name, Count: c})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Name < stats[j].Name
	})
	return stats
}
