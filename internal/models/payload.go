package models

import "math"

// Entry is one row of a WakaTime breakdown (a language, an editor, a project...).
// Percent and the display strings are kept so the stored payload matches what the
// source returned; aggregation only ever reads TotalSeconds.
type Entry struct {
	Name         string  `json:"name"`
	TotalSeconds float64 `json:"total_seconds"`
	Percent      float64 `json:"percent,omitempty"`
	Digital      string  `json:"digital,omitempty"`
	Text         string  `json:"text,omitempty"`
	Hours        int     `json:"hours,omitempty"`
	Minutes      int     `json:"minutes,omitempty"`
}

type GrandTotal struct {
	TotalSeconds float64 `json:"total_seconds"`
	Digital      string  `json:"digital,omitempty"`
	Text         string  `json:"text,omitempty"`
	Hours        int     `json:"hours,omitempty"`
	Minutes      int     `json:"minutes,omitempty"`
}

type Range struct {
	Date     string `json:"date,omitempty"`
	Start    string `json:"start,omitempty"`
	End      string `json:"end,omitempty"`
	Text     string `json:"text,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// Payload is a single day summary as returned by the source API.
type Payload struct {
	Range            *Range      `json:"range,omitempty"`
	GrandTotal       *GrandTotal `json:"grand_total,omitempty"`
	Categories       []Entry     `json:"categories,omitempty"`
	Languages        []Entry     `json:"languages,omitempty"`
	Editors          []Entry     `json:"editors,omitempty"`
	OperatingSystems []Entry     `json:"operating_systems,omitempty"`
	Machines         []Entry     `json:"machines,omitempty"`
	Projects         []Entry     `json:"projects,omitempty"`
	Dependencies     []Entry     `json:"dependencies,omitempty"`
}

// Dimension names a breakdown of the payload.
type Dimension string

const (
	DimensionLanguages        Dimension = "languages"
	DimensionCategories       Dimension = "categories"
	DimensionEditors          Dimension = "editors"
	DimensionOperatingSystems Dimension = "operating_systems"
	DimensionMachines         Dimension = "machines"
	DimensionProjects         Dimension = "projects"
)

// Dimensions lists the aggregated breakdowns in their canonical order.
var Dimensions = []Dimension{
	DimensionLanguages,
	DimensionCategories,
	DimensionEditors,
	DimensionOperatingSystems,
	DimensionMachines,
	DimensionProjects,
}

func (p *Payload) Entries(d Dimension) []Entry {
	switch d {
	case DimensionLanguages:
		return p.Languages
	case DimensionCategories:
		return p.Categories
	case DimensionEditors:
		return p.Editors
	case DimensionOperatingSystems:
		return p.OperatingSystems
	case DimensionMachines:
		return p.Machines
	case DimensionProjects:
		return p.Projects
	}
	return nil
}

// TotalMs returns the grand total in whole milliseconds, or 0 when absent.
func (p *Payload) TotalMs() int64 {
	if p == nil || p.GrandTotal == nil {
		return 0
	}
	return ToMillis(p.GrandTotal.TotalSeconds)
}

// ToMillis converts source seconds to the integer unit used for every sum.
func ToMillis(seconds float64) int64 {
	return int64(math.Round(seconds * 1000))
}
