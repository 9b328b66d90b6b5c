// Package report renders buckets as markdown summaries.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"wakaproof/internal/models"
)

var dimensionTitles = map[models.Dimension]string{
	models.DimensionLanguages:        "Languages",
	models.DimensionCategories:       "Categories",
	models.DimensionEditors:          "Editors",
	models.DimensionOperatingSystems: "Operating Systems",
	models.DimensionMachines:         "Machines",
	models.DimensionProjects:         "Projects",
}

// FormatClock renders milliseconds as HH:MM:SS, truncating sub-second parts.
func FormatClock(ms int64) string {
	secs := ms / 1000
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
}

// FormatShort renders milliseconds as "2h 30m" or "30m".
func FormatShort(ms int64) string {
	secs := ms / 1000
	h, m := secs/3600, secs%3600/60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// Percent of part in whole, 0 when whole is 0.
func Percent(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) * 100 / float64(whole)
}

func RenderWeek(b *models.WeekBucket) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# Week Summary: %s to %s\n\n", b.StartDate, b.EndDate)
	buf.WriteString("## Weekly Totals\n")
	fmt.Fprintf(&buf, "- **Total Coding Time**: %s\n", FormatClock(b.TotalMs))
	fmt.Fprintf(&buf, "- **Daily Average Coding Time**: %s\n", FormatClock(average(b.TotalMs, b.DayCount)))
	fmt.Fprintf(&buf, "- **Days with data**: %d/%d\n", b.DayCount, b.ExpectedDays)
	writeUnverified(&buf, b.UnverifiedDates)

	buf.WriteString("\n## Daily Breakdown\n\n")
	for _, d := range b.Days {
		fmt.Fprintf(&buf, "- %s: %s\n", d.Date, FormatClock(d.TotalMs))
	}

	writeDimensions(&buf, &b.Dimensions)
	return buf.Bytes()
}

func RenderMonth(b *models.MonthBucket) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# Month Summary: %04d-%02d\n\n", b.Year, b.Month)
	buf.WriteString("## Monthly Totals\n")
	fmt.Fprintf(&buf, "- **Total Coding Time**: %s\n", FormatClock(b.TotalMs))
	fmt.Fprintf(&buf, "- **Weekly Average Coding Time**: %s\n", FormatClock(average(b.TotalMs, b.WeekCount)))
	fmt.Fprintf(&buf, "- **Daily Average Coding Time**: %s\n", FormatClock(average(b.TotalMs, b.DayCount)))
	fmt.Fprintf(&buf, "- **Weeks with data**: %d/%d\n", b.WeekCount, b.ExpectedWeeks)
	writeUnverified(&buf, b.UnverifiedDates)

	buf.WriteString("\n## Weekly Breakdown\n\n")
	for _, w := range b.Weeks {
		fmt.Fprintf(&buf, "- week_%d (from %s, %d days): %s\n", w.Week, w.StartDate, w.DayCount, FormatClock(w.TotalMs))
	}

	writeDimensions(&buf, &b.Dimensions)
	return buf.Bytes()
}

func writeUnverified(buf *bytes.Buffer, dates []string) {
	if len(dates) == 0 {
		return
	}
	fmt.Fprintf(buf, "- **Unverified days**: %s\n", strings.Join(dates, ", "))
}

func writeDimensions(buf *bytes.Buffer, dims *models.DimensionTotals) {
	for _, d := range models.Dimensions {
		totals := dims.Get(d)
		fmt.Fprintf(buf, "\n## %s\n\n", dimensionTitles[d])
		if len(totals) == 0 {
			buf.WriteString("No data\n")
			continue
		}
		var whole int64
		for _, t := range totals {
			whole += t.TotalMs
		}
		for _, t := range totals {
			fmt.Fprintf(buf, "- %s - %s (%.2f%%)\n", t.Name, FormatShort(t.TotalMs), Percent(t.TotalMs, whole))
		}
	}
}

func average(total int64, n int) int64 {
	if n <= 0 {
		return 0
	}
	return total / int64(n)
}
