// Package aggregate folds stored daily records into week and month buckets.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
	"wakaproof/internal/calendar"
	"wakaproof/internal/models"
	"wakaproof/internal/providers"
	"wakaproof/internal/store"

	"github.com/RoaringBitmap/roaring/v2"
)

const daysPerWeek = 7

type AggregatorInterface interface {
	AggregateWeek(ctx context.Context, key calendar.WeekKey) (*models.WeekBucket, error)
	AggregateMonth(ctx context.Context, key calendar.MonthKey) (*models.MonthBucket, error)
	Regenerate(ctx context.Context, date time.Time) (*models.WeekBucket, *models.MonthBucket, error)
}

// Aggregator buckets are pure functions of the stored records: the same
// records always produce byte-identical buckets.
type Aggregator struct {
	store   store.Store
	logger  providers.Logger
	metrics providers.MetricsProviderInterface
}

func NewAggregator(st store.Store, logger providers.Logger, metrics providers.MetricsProviderInterface) *Aggregator {
	return &Aggregator{store: st, logger: logger, metrics: metrics}
}

// AggregateWeek rebuilds and stores the bucket of key. When days are missing
// the bucket is still stored and returned together with an IncompleteRangeError.
func (a *Aggregator) AggregateWeek(ctx context.Context, key calendar.WeekKey) (*models.WeekBucket, error) {
	if !key.Valid() {
		return nil, models.Invalidf("week", "%s does not start in its month", key)
	}

	bucket := &models.WeekBucket{
		Year:            key.Year,
		Month:           int(key.Month),
		Week:            key.Index,
		StartDate:       calendar.Format(key.Start()),
		EndDate:         calendar.Format(key.End()),
		Dates:           []string{},
		ExpectedDays:    daysPerWeek,
		Days:            []models.DayTotal{},
		UnverifiedDates: []string{},
	}
	sums := newDimensionSums()
	present := roaring.New()

	for _, d := range key.Dates() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := a.store.ReadDaily(d)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("week %s: %w", key, err)
		}
		if rec.Payload == nil {
			return nil, fmt.Errorf("week %s: record %s has no payload", key, rec.Date)
		}

		present.Add(ordinal(d))
		total := rec.Payload.TotalMs()
		bucket.Dates = append(bucket.Dates, rec.Date)
		bucket.Days = append(bucket.Days, models.DayTotal{Date: rec.Date, TotalMs: total})
		bucket.TotalMs += total
		if rec.Proof == nil || rec.Proof.Status != models.ProofConsistent {
			bucket.UnverifiedDates = append(bucket.UnverifiedDates, rec.Date)
		}
		sums.addPayload(rec.Payload)
	}
	bucket.DayCount = int(present.GetCardinality())
	bucket.Dimensions = sums.totals()

	if err := a.store.WriteWeek(bucket); err != nil {
		return nil, fmt.Errorf("write week %s: %w", key, err)
	}
	a.logger.Infof(providers.TypeAggregate, "week %s: %d/%d days, %d ms", key, bucket.DayCount, daysPerWeek, bucket.TotalMs)

	if bucket.DayCount < daysPerWeek {
		var missing []string
		for _, d := range key.Dates() {
			if !present.Contains(ordinal(d)) {
				missing = append(missing, calendar.Format(d))
			}
		}
		return bucket, a.incomplete("week", key.String(), daysPerWeek, bucket.DayCount, missing)
	}
	return bucket, nil
}

// AggregateMonth rebuilds the month bucket from the stored buckets of the
// weeks that start in key. Weeks are not re-aggregated here.
func (a *Aggregator) AggregateMonth(ctx context.Context, key calendar.MonthKey) (*models.MonthBucket, error) {
	weeks := key.Weeks()
	bucket := &models.MonthBucket{
		Year:            key.Year,
		Month:           int(key.Month),
		Weeks:           []models.WeekTotal{},
		ExpectedWeeks:   len(weeks),
		UnverifiedDates: []string{},
	}
	sums := newDimensionSums()

	var missing []string
	for _, wk := range weeks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		wb, err := a.store.ReadWeek(wk)
		if errors.Is(err, models.ErrNotFound) {
			missing = append(missing, wk.String())
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("month %s: %w", key, err)
		}

		bucket.Weeks = append(bucket.Weeks, models.WeekTotal{
			Week:      wb.Week,
			StartDate: wb.StartDate,
			DayCount:  wb.DayCount,
			TotalMs:   wb.TotalMs,
		})
		bucket.DayCount += wb.DayCount
		bucket.TotalMs += wb.TotalMs
		bucket.UnverifiedDates = append(bucket.UnverifiedDates, wb.UnverifiedDates...)
		sums.addTotals(&wb.Dimensions)
		if wb.DayCount < daysPerWeek {
			missing = append(missing, fmt.Sprintf("%s (%d/%d days)", wk, wb.DayCount, daysPerWeek))
		}
	}
	bucket.WeekCount = len(bucket.Weeks)
	bucket.Dimensions = sums.totals()
	sort.Strings(bucket.UnverifiedDates)

	if err := a.store.WriteMonth(bucket); err != nil {
		return nil, fmt.Errorf("write month %s: %w", key, err)
	}
	a.logger.Infof(providers.TypeAggregate, "month %s: %d/%d weeks, %d days, %d ms",
		key, bucket.WeekCount, bucket.ExpectedWeeks, bucket.DayCount, bucket.TotalMs)

	if len(missing) > 0 {
		return bucket, a.incomplete("month", key.String(), bucket.ExpectedWeeks, bucket.WeekCount, missing)
	}
	return bucket, nil
}

// Regenerate rebuilds the week containing date and then the month that week
// belongs to. Incomplete ranges in either are joined into the returned error.
func (a *Aggregator) Regenerate(ctx context.Context, date time.Time) (*models.WeekBucket, *models.MonthBucket, error) {
	wk := calendar.WeekKeyFor(date)
	week, weekErr := a.AggregateWeek(ctx, wk)
	if week == nil {
		return nil, nil, weekErr
	}
	month, monthErr := a.AggregateMonth(ctx, wk.MonthKey())
	if month == nil {
		return week, nil, monthErr
	}
	return week, month, errors.Join(weekErr, monthErr)
}

func (a *Aggregator) incomplete(kind, key string, expected, present int, missing []string) error {
	a.metrics.IncIncompleteRanges(kind)
	err := &models.IncompleteRangeError{Kind: kind, Key: key, Expected: expected, Present: present, Missing: missing}
	a.logger.Warnf(providers.TypeAggregate, "%v", err)
	return err
}

// IsIncomplete reports whether err only signals missing days or weeks.
func IsIncomplete(err error) bool {
	if err == nil {
		return false
	}
	var ire *models.IncompleteRangeError
	if !errors.As(err, &ire) {
		return false
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if !IsIncomplete(e) {
				return false
			}
		}
	}
	return true
}

func ordinal(d time.Time) uint32 {
	return uint32(calendar.Day(d).Unix() / 86400)
}
