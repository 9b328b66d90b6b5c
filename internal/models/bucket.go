package models

// Total is a summed duration for one named entry of a dimension.
type Total struct {
	Name    string `json:"name"`
	TotalMs int64  `json:"total_ms"`
}

type DimensionTotals struct {
	Languages        []Total `json:"languages"`
	Categories       []Total `json:"categories"`
	Editors          []Total `json:"editors"`
	OperatingSystems []Total `json:"operating_systems"`
	Machines         []Total `json:"machines"`
	Projects         []Total `json:"projects"`
}

func (d *DimensionTotals) Get(dim Dimension) []Total {
	switch dim {
	case DimensionLanguages:
		return d.Languages
	case DimensionCategories:
		return d.Categories
	case DimensionEditors:
		return d.Editors
	case DimensionOperatingSystems:
		return d.OperatingSystems
	case DimensionMachines:
		return d.Machines
	case DimensionProjects:
		return d.Projects
	}
	return nil
}

func (d *DimensionTotals) Set(dim Dimension, totals []Total) {
	switch dim {
	case DimensionLanguages:
		d.Languages = totals
	case DimensionCategories:
		d.Categories = totals
	case DimensionEditors:
		d.Editors = totals
	case DimensionOperatingSystems:
		d.OperatingSystems = totals
	case DimensionMachines:
		d.Machines = totals
	case DimensionProjects:
		d.Projects = totals
	}
}

type DayTotal struct {
	Date    string `json:"date"`
	TotalMs int64  `json:"total_ms"`
}

// WeekBucket is a derived view over the daily records of one week.
type WeekBucket struct {
	Year            int             `json:"year"`
	Month           int             `json:"month"`
	Week            int             `json:"week"`
	StartDate       string          `json:"start_date"`
	EndDate         string          `json:"end_date"`
	Dates           []string        `json:"dates"`
	DayCount        int             `json:"day_count"`
	ExpectedDays    int             `json:"expected_days"`
	TotalMs         int64           `json:"total_ms"`
	Days            []DayTotal      `json:"days"`
	Dimensions      DimensionTotals `json:"dimensions"`
	UnverifiedDates []string        `json:"unverified_dates"`
}

type WeekTotal struct {
	Week      int    `json:"week"`
	StartDate string `json:"start_date"`
	DayCount  int    `json:"day_count"`
	TotalMs   int64  `json:"total_ms"`
}

// MonthBucket is a derived view over the week buckets that start in one month.
type MonthBucket struct {
	Year            int             `json:"year"`
	Month           int             `json:"month"`
	Weeks           []WeekTotal     `json:"weeks"`
	WeekCount       int             `json:"week_count"`
	ExpectedWeeks   int             `json:"expected_weeks"`
	DayCount        int             `json:"day_count"`
	TotalMs         int64           `json:"total_ms"`
	Dimensions      DimensionTotals `json:"dimensions"`
	UnverifiedDates []string        `json:"unverified_dates"`
}
