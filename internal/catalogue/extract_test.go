package catalogue

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectColumns(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		want   Columns
	}{
		{
			name:   "mixed case and accents",
			header: []string{"  NOMBRE DEL PLATO ", "Categoría", "SÁBADO", "Domingo?"},
			want:   Columns{Name: 0, NameFound: true, Category: 1, Saturday: 2, Sunday: 3},
		},
		{
			name:   "english weekend synonyms",
			header: []string{"Grupo", "Receta", "Saturday only", "Sunday only"},
			want:   Columns{Name: 1, NameFound: true, Category: 0, Saturday: 2, Sunday: 3},
		},
		{
			name:   "unaccented sabado",
			header: []string{"Listado", "solo sabado"},
			want:   Columns{Name: 0, NameFound: true, Category: -1, Saturday: 1, Sunday: -1},
		},
		{
			name:   "no recognizable header",
			header: []string{"Precio", "Descripción"},
			want:   Columns{Name: 0, NameFound: false, Category: -1, Saturday: -1, Sunday: -1},
		},
		{
			name:   "first match wins for ambiguous header",
			header: []string{"Tipo de comida", "Plato"},
			want:   Columns{Name: 0, NameFound: true, Category: 0, Saturday: -1, Sunday: -1},
		},
		{
			name:   "empty header",
			header: nil,
			want:   Columns{Name: 0, NameFound: false, Category: -1, Saturday: -1, Sunday: -1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectColumns(tt.header))
		})
	}
}

func TestMergeDish(t *testing.T) {
	existing := Dish{ID: "l-1", Name: "Cocido", CanBeLunch: true, Category: "legumbres", IsSundayOnly: true}
	incoming := Dish{ID: "d-4", Name: "cocido", CanBeDinner: true, Category: "cuchara", IsSaturdayOnly: true}

	got := MergeDish(existing, incoming)

	want := Dish{
		ID:             "l-1",
		Name:           "Cocido",
		CanBeLunch:     true,
		CanBeDinner:    true,
		Category:       "legumbres",
		IsSaturdayOnly: true,
		IsSundayOnly:   true,
	}
	assert.Equal(t, want, got)

	t.Run("NeverDowngrades", func(t *testing.T) {
		again := MergeDish(got, Dish{Name: "Cocido"})
		assert.Equal(t, want, again)
	})
}

func TestExtract(t *testing.T) {
	t.Run("SameDishInBothTables", func(t *testing.T) {
		lunch := [][]string{
			{"Plato", "Categoría"},
			{"Tortilla", "huevos"},
			{"Lentejas", "legumbres"},
		}
		dinner := [][]string{
			{"Cena"},
			{"tortilla "},
			{"Sopa de picadillo"},
		}

		got := Extract(lunch, dinner)

		want := []Dish{
			{ID: "l-1", Name: "Tortilla", CanBeLunch: true, CanBeDinner: true, Category: "huevos"},
			{ID: "l-2", Name: "Lentejas", CanBeLunch: true, Category: "legumbres"},
			{ID: "d-2", Name: "Sopa de picadillo", CanBeDinner: true, Category: DefaultCategory},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("HeaderlessTableStartsAtRowZero", func(t *testing.T) {
		got := Extract([][]string{{"Lentejas con verduras"}, {"Paella"}}, nil)
		require.Len(t, got, 2)
		assert.Equal(t, "l-0", got[0].ID)
		assert.Equal(t, "Lentejas con verduras", got[0].Name)
		assert.Equal(t, "l-1", got[1].ID)
	})

	t.Run("ShortFirstCellIsTreatedAsHeader", func(t *testing.T) {
		got := Extract(nil, [][]string{{"Pan"}, {"Pizza artesana"}})
		require.Len(t, got, 1)
		assert.Equal(t, Dish{ID: "d-1", Name: "Pizza artesana", CanBeDinner: true, Category: DefaultCategory}, got[0])
	})

	t.Run("SkipsBlankShortAndHeaderWordRows", func(t *testing.T) {
		lunch := [][]string{
			{"Tipo", "Plato"},
			{"Tipo", "Nombre"},
			{"legumbres", "Lentejas"},
			{"arroz", ""},
			{"pasta"},
			{"carne", "PLATO"},
		}

		got := Extract(lunch, nil)
		want := []Dish{{ID: "l-2", Name: "Lentejas", CanBeLunch: true, Category: "legumbres"}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("RestrictionFlagsAreOred", func(t *testing.T) {
		lunch := [][]string{
			{"Plato", "Sábado", "Domingo"},
			{"Paella", "Sí", ""},
			{"Cocido", "no", "1"},
			{"Asado", "TRUE", "true"},
			{"Arroz al horno"},
		}
		dinner := [][]string{
			{"Cena", "Solo sabado"},
			{"Cocido", "si"},
		}

		got := Extract(lunch, dinner)
		byName := make(map[string]Dish)
		for _, d := range got {
			byName[d.Name] = d
		}

		require.Len(t, got, 4)
		assert.True(t, byName["Paella"].IsSaturdayOnly)
		assert.False(t, byName["Paella"].IsSundayOnly)

		cocido := byName["Cocido"]
		assert.True(t, cocido.CanBeLunch)
		assert.True(t, cocido.CanBeDinner)
		assert.True(t, cocido.IsSaturdayOnly)
		assert.True(t, cocido.IsSundayOnly)
		assert.Equal(t, "l-2", cocido.ID)

		assert.True(t, byName["Asado"].IsSaturdayOnly)
		assert.True(t, byName["Asado"].IsSundayOnly)
		assert.False(t, byName["Arroz al horno"].IsSaturdayOnly)
	})

	t.Run("NoDuplicateNormalizedNames", func(t *testing.T) {
		lunch := [][]string{{"Plato"}, {"Tortilla"}, {"TORTILLA"}, {" tortilla"}}
		dinner := [][]string{{"Plato"}, {"Tortilla"}}

		got := Extract(lunch, dinner)
		require.Len(t, got, 1)
		assert.Equal(t, "l-1", got[0].ID)
		assert.True(t, got[0].CanBeLunch)
		assert.True(t, got[0].CanBeDinner)
	})

	t.Run("EmptyTables", func(t *testing.T) {
		assert.Empty(t, Extract(nil, [][]string{}))
	})
}

func TestEligibleAndSearch(t *testing.T) {
	dishes := []Dish{
		{ID: "1", Name: "Lentejas", CanBeLunch: true, Category: "legumbres"},
		{ID: "2", Name: "Tortilla", CanBeLunch: true, CanBeDinner: true, Category: "huevos"},
		{ID: "3", Name: "Sopa", CanBeDinner: true, Category: "sopa"},
	}

	assert.Equal(t, []Dish{dishes[0], dishes[1]}, Eligible(dishes, Lunch))
	assert.Equal(t, []Dish{dishes[1], dishes[2]}, Eligible(dishes, Dinner))

	assert.Equal(t, []Dish{dishes[1]}, Search(dishes, "HUEVO"))
	assert.Equal(t, []Dish{dishes[0]}, Search(dishes, "lent"))
	assert.Len(t, Search(dishes, "  "), 3)
}

func TestValidate(t *testing.T) {
	dishes := []Dish{
		{ID: "l-1", Name: "Asado", CanBeLunch: true, IsSaturdayOnly: true, IsSundayOnly: true},
		{ID: "l-2", Name: "Paella", CanBeLunch: true, IsSundayOnly: true},
		{ID: "x", Name: "Huérfano"},
	}

	issues := Validate(dishes)
	assert.Equal(t, []Issue{
		{DishID: "l-1", Name: "Asado", Kind: IssueBothWeekendDays},
		{DishID: "x", Name: "Huérfano", Kind: IssueNoMealtime},
	}, issues)
}

func TestSortByName(t *testing.T) {
	dishes := []Dish{
		{Name: "Tortilla"},
		{Name: "Ensalada César"},
		{Name: "albóndigas"},
		{Name: "Crema de calabacín"},
	}

	SortByName(dishes)

	var names []string
	for _, d := range dishes {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"albóndigas", "Crema de calabacín", "Ensalada César", "Tortilla"}, names)
}
