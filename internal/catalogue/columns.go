package catalogue

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nameKeywords     = []string{"plato", "nombre", "comida", "cena", "listado", "receta"}
	categoryKeywords = []string{"categor", "tipo", "grupo"}
	saturdayKeywords = []string{"sabado", "saturday"}
	sundayKeywords   = []string{"domingo", "sunday"}
)

// Columns maps column roles to indexes in a table. Absent roles are -1.
type Columns struct {
	Name      int
	NameFound bool
	Category  int
	Saturday  int
	Sunday    int
}

// DetectColumns infers column roles from a header row. The name column
// defaults to 0 when no header matches; NameFound records whether it did.
func DetectColumns(header []string) Columns {
	folded := make([]string, len(header))
	for i, h := range header {
		folded[i] = fold(h)
	}

	name := findColumn(folded, nameKeywords)
	cols := Columns{
		Name:      name,
		NameFound: name != -1,
		Category:  findColumn(folded, categoryKeywords),
		Saturday:  findColumn(folded, saturdayKeywords),
		Sunday:    findColumn(folded, sundayKeywords),
	}
	if !cols.NameFound {
		cols.Name = 0
	}
	return cols
}

func findColumn(header []string, keywords []string) int {
	for i, h := range header {
		for _, kw := range keywords {
			if strings.Contains(h, kw) {
				return i
			}
		}
	}
	return -1
}

// fold lower-cases, trims and strips diacritics so "Sábado" matches "sabado".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return out
}

// truthy reports whether a restriction cell marks the flag as set.
func truthy(cell string) bool {
	v := fold(cell)
	return strings.Contains(v, "si") || strings.Contains(v, "true") || v == "1"
}
