package aggregate

import (
	"sort"
	"wakaproof/internal/models"
)

// dimensionSums accumulates integer milliseconds per dimension and exact entry name.
type dimensionSums map[models.Dimension]map[string]int64

func newDimensionSums() dimensionSums {
	s := make(dimensionSums, len(models.Dimensions))
	for _, d := range models.Dimensions {
		s[d] = make(map[string]int64)
	}
	return s
}

func (s dimensionSums) addPayload(p *models.Payload) {
	for _, d := range models.Dimensions {
		for _, e := range p.Entries(d) {
			s[d][e.Name] += models.ToMillis(e.TotalSeconds)
		}
	}
}

func (s dimensionSums) addTotals(t *models.DimensionTotals) {
	for _, d := range models.Dimensions {
		for _, e := range t.Get(d) {
			s[d][e.Name] += e.TotalMs
		}
	}
}

func (s dimensionSums) totals() models.DimensionTotals {
	var out models.DimensionTotals
	for _, d := range models.Dimensions {
		out.Set(d, SortTotals(s[d]))
	}
	return out
}

// SortTotals orders entries by duration descending, then name ascending.
func SortTotals(m map[string]int64) []models.Total {
	out := make([]models.Total, 0, len(m))
	for name, ms := range m {
		out = append(out, models.Total{Name: name, TotalMs: ms})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalMs != out[j].TotalMs {
			return out[i].TotalMs > out[j].TotalMs
		}
		return out[i].Name < out[j].Name
	})
	return out
}
