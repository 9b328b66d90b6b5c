// Package calendar decides which week and month folder a date belongs to.
//
// Weeks run Monday to Sunday. A week is keyed by the month its Monday falls in,
// so the first Monday on or after the 1st opens week 1 of a month, days before it
// belong to the previous month's last week, and a week that runs past the end of
// a month stays in the month it started in.
package calendar

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// Day truncates t to midnight UTC of its own calendar date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

func Format(t time.Time) string {
	return t.Format(DateLayout)
}

func AddDays(t time.Time, n int) time.Time {
	return Day(t).AddDate(0, 0, n)
}

// Monday returns the Monday on or before t.
func Monday(t time.Time) time.Time {
	d := Day(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// FirstMonday returns the first Monday on or after the 1st of the month.
func FirstMonday(year int, month time.Month) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (8 - int(first.Weekday())) % 7
	return first.AddDate(0, 0, offset)
}

type WeekKey struct {
	Year  int
	Month time.Month
	Index int
}

func WeekKeyFor(t time.Time) WeekKey {
	m := Monday(t)
	return WeekKey{Year: m.Year(), Month: m.Month(), Index: (m.Day()-1)/7 + 1}
}

func (k WeekKey) Start() time.Time {
	return FirstMonday(k.Year, k.Month).AddDate(0, 0, (k.Index-1)*7)
}

func (k WeekKey) End() time.Time {
	return k.Start().AddDate(0, 0, 6)
}

func (k WeekKey) Dates() []time.Time {
	start := k.Start()
	out := make([]time.Time, 7)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

func (k WeekKey) MonthKey() MonthKey {
	return MonthKey{Year: k.Year, Month: k.Month}
}

func (k WeekKey) Folder() string {
	return fmt.Sprintf("week_%d", k.Index)
}

func (k WeekKey) String() string {
	return fmt.Sprintf("%04d-%02d/%s", k.Year, int(k.Month), k.Folder())
}

// Valid reports whether the key names a week that actually starts in its month.
func (k WeekKey) Valid() bool {
	if k.Index < 1 || k.Month < time.January || k.Month > time.December {
		return false
	}
	return k.Start().Month() == k.Month
}

type MonthKey struct {
	Year  int
	Month time.Month
}

func MonthKeyFor(t time.Time) MonthKey {
	return MonthKey{Year: t.Year(), Month: t.Month()}
}

func ParseMonth(s string) (MonthKey, error) {
	t, err := time.ParseInLocation("2006-01", s, time.UTC)
	if err != nil {
		return MonthKey{}, fmt.Errorf("invalid month %q: %w", s, err)
	}
	return MonthKeyFor(t), nil
}

func (k MonthKey) Start() time.Time {
	return time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, time.UTC)
}

func (k MonthKey) End() time.Time {
	return k.Start().AddDate(0, 1, -1)
}

func (k MonthKey) Days() []time.Time {
	var out []time.Time
	for d := k.Start(); d.Month() == k.Month; d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// Weeks returns the week keys whose Monday falls in this month, in order.
func (k MonthKey) Weeks() []WeekKey {
	var out []WeekKey
	for m := FirstMonday(k.Year, k.Month); m.Month() == k.Month; m = m.AddDate(0, 0, 7) {
		out = append(out, WeekKeyFor(m))
	}
	return out
}

func (k MonthKey) Folder() string {
	return fmt.Sprintf("%02d_%s", int(k.Month), k.Month.String())
}

func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

// IsWeekBoundaryDay reports whether t is the first day of an ISO week.
func IsWeekBoundaryDay(t time.Time) bool {
	return t.Weekday() == time.Monday
}

// IsMonthBoundaryDay reports whether t is the first day of a calendar month.
func IsMonthBoundaryDay(t time.Time) bool {
	return t.Day() == 1
}
