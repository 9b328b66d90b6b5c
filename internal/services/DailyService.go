package services

import (
	"context"
	"errors"
	"fmt"
	"time"
	"wakaproof/internal/aggregate"
	"wakaproof/internal/calendar"
	"wakaproof/internal/models"
	"wakaproof/internal/proof"
	"wakaproof/internal/providers"
	"wakaproof/internal/records"
	"wakaproof/internal/report"
	"wakaproof/internal/source"
	"wakaproof/internal/store"
	"wakaproof/internal/structures"
)

const (
	PolicyReject    = "reject"
	PolicySupersede = "supersede"
)

type DailyServiceInterface interface {
	FetchDay(ctx context.Context, date time.Time) (*FetchResult, error)
	ImportRange(ctx context.Context, from, to time.Time) (*ImportSummary, error)
	AggregateWeek(ctx context.Context, key calendar.WeekKey) (*models.WeekBucket, error)
	AggregateMonth(ctx context.Context, key calendar.MonthKey) (*models.MonthBucket, error)
	RunScheduled(ctx context.Context) (*ScheduledRun, error)
	Verify(date time.Time) (*proof.Report, error)
}

type FetchResult struct {
	Date   string             `json:"date"`
	Result store.WriteResult  `json:"result"`
	Status models.ProofStatus `json:"status"`
	Digest string             `json:"digest"`
}

type ImportSummary struct {
	Created   []string          `json:"created"`
	Unchanged []string          `json:"unchanged"`
	Skipped   []string          `json:"skipped"`
	Failed    map[string]string `json:"failed,omitempty"`
}

type ScheduledRun struct {
	Date       string       `json:"date"`
	Fetch      *FetchResult `json:"fetch,omitempty"`
	Aggregated []string     `json:"aggregated,omitempty"`
}

// DailyService runs the fetch, prove, build, store pipeline and keeps the
// derived buckets in step with the stored days.
type DailyService struct {
	client     source.ClientInterface
	collector  proof.CollectorInterface
	builder    records.BuilderInterface
	store      store.Store
	aggregator aggregate.AggregatorInterface
	clock      providers.Clock
	logger     providers.Logger
	policy     string
	reports    bool
}

func NewDailyService(
	conf *structures.Config,
	client source.ClientInterface,
	collector proof.CollectorInterface,
	builder records.BuilderInterface,
	st store.Store,
	aggregator aggregate.AggregatorInterface,
	clock providers.Clock,
	logger providers.Logger,
) *DailyService {
	return &DailyService{
		client:     client,
		collector:  collector,
		builder:    builder,
		store:      st,
		aggregator: aggregator,
		clock:      clock,
		logger:     logger,
		policy:     conf.Store.ConflictPolicy,
		reports:    conf.Store.Reports,
	}
}

// FetchDay fetches, proves and stores date. A conflicting record is returned as
// a ConflictError unless the supersede policy is configured, in which case the
// new record is stored as a new revision and the buckets of its week and month
// are rebuilt.
func (s *DailyService) FetchDay(ctx context.Context, date time.Time) (*FetchResult, error) {
	day := calendar.Day(date)

	payload, evidence, err := s.client.FetchDay(ctx, day)
	if err != nil {
		return nil, err
	}
	bundle, err := s.collector.Collect(ctx, payload)
	if err != nil {
		return nil, err
	}
	rec, err := s.builder.Build(day, payload, bundle, models.SourceMeta{
		Source:    source.Name,
		FetchedAt: s.clock.Now(),
		Request:   evidence,
	})
	if err != nil {
		return nil, err
	}

	res, err := s.store.WriteDaily(ctx, rec)
	var conflict *models.ConflictError
	if errors.As(err, &conflict) && s.policy == PolicySupersede {
		s.logger.Warnf(providers.TypeFetch, "%v, storing superseding record", err)
		res, err = s.store.Supersede(ctx, rec)
		if err == nil {
			if _, _, rerr := s.regenerate(ctx, day); rerr != nil && !aggregate.IsIncomplete(rerr) {
				s.logger.Errorf(providers.TypeAggregate, "regenerate after supersede of %s: %v", rec.Date, rerr)
			}
		}
	}
	if err != nil {
		s.logger.Errorf(providers.TypeFetch, "store %s: %v", rec.Date, err)
		return nil, err
	}

	s.logger.Infof(providers.TypeFetch, "%s %s: proof %s", rec.Date, res, bundle.Status)
	return &FetchResult{Date: rec.Date, Result: res, Status: bundle.Status, Digest: rec.ContentDigest}, nil
}

// ImportRange fetches every day in [from, to] that is not stored yet and then
// rebuilds the buckets the new days fall into. A failing day does not stop the
// import; all failures are returned joined.
func (s *DailyService) ImportRange(ctx context.Context, from, to time.Time) (*ImportSummary, error) {
	from, to = calendar.Day(from), calendar.Day(to)
	if to.Before(from) {
		return nil, models.Invalidf("range", "%s is after %s", calendar.Format(from), calendar.Format(to))
	}

	existing, err := s.store.ListDaily(from, to)
	if err != nil {
		return nil, err
	}
	stored := make(map[string]bool, len(existing))
	for _, d := range existing {
		stored[d] = true
	}

	summary := &ImportSummary{Failed: map[string]string{}}
	var errs []error
	var touched []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		name := calendar.Format(d)
		if stored[name] {
			summary.Skipped = append(summary.Skipped, name)
			continue
		}

		res, err := s.FetchDay(ctx, d)
		if err != nil {
			summary.Failed[name] = err.Error()
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		switch res.Result {
		case store.WriteUnchanged:
			summary.Unchanged = append(summary.Unchanged, name)
		default:
			summary.Created = append(summary.Created, name)
			touched = append(touched, d)
		}
	}

	if err := s.rebuild(ctx, touched); err != nil {
		errs = append(errs, err)
	}
	s.logger.Infof(providers.TypeFetch, "import %s..%s: %d created, %d skipped, %d failed",
		calendar.Format(from), calendar.Format(to), len(summary.Created), len(summary.Skipped), len(summary.Failed))
	return summary, errors.Join(errs...)
}

func (s *DailyService) AggregateWeek(ctx context.Context, key calendar.WeekKey) (*models.WeekBucket, error) {
	b, err := s.aggregator.AggregateWeek(ctx, key)
	return b, errors.Join(err, s.writeWeekReport(b))
}

func (s *DailyService) AggregateMonth(ctx context.Context, key calendar.MonthKey) (*models.MonthBucket, error) {
	b, err := s.aggregator.AggregateMonth(ctx, key)
	return b, errors.Join(err, s.writeMonthReport(b))
}

// RunScheduled is one daily trigger: store yesterday, and on the first day of
// a week or a month rebuild the week that just ended and its month. A failed
// fetch does not prevent the rebuild. Incomplete ranges are only logged.
func (s *DailyService) RunScheduled(ctx context.Context) (*ScheduledRun, error) {
	today := calendar.Day(s.clock.Now())
	yesterday := calendar.AddDays(today, -1)
	run := &ScheduledRun{Date: calendar.Format(yesterday)}

	var errs []error
	res, err := s.FetchDay(ctx, yesterday)
	if err != nil {
		errs = append(errs, fmt.Errorf("fetch %s: %w", run.Date, err))
	}
	run.Fetch = res

	if calendar.IsWeekBoundaryDay(today) || calendar.IsMonthBoundaryDay(today) {
		week, month, err := s.regenerate(ctx, yesterday)
		if week != nil {
			run.Aggregated = append(run.Aggregated, calendar.WeekKeyFor(yesterday).String())
		}
		if month != nil {
			run.Aggregated = append(run.Aggregated, calendar.WeekKeyFor(yesterday).MonthKey().String())
		}
		if err != nil && !aggregate.IsIncomplete(err) {
			errs = append(errs, err)
		}
	}
	return run, errors.Join(errs...)
}

func (s *DailyService) Verify(date time.Time) (*proof.Report, error) {
	rec, err := s.store.ReadDaily(date)
	if err != nil {
		return nil, err
	}
	rep := proof.Verify(rec)
	if !rep.Ok() {
		s.logger.Warnf(providers.TypeProof, "verify %s: %v", rec.Date, rep.Problems)
	}
	return rep, nil
}

func (s *DailyService) regenerate(ctx context.Context, date time.Time) (*models.WeekBucket, *models.MonthBucket, error) {
	week, month, err := s.aggregator.Regenerate(ctx, date)
	return week, month, errors.Join(err, s.writeWeekReport(week), s.writeMonthReport(month))
}

func (s *DailyService) writeWeekReport(b *models.WeekBucket) error {
	if b == nil || !s.reports {
		return nil
	}
	key := calendar.WeekKey{Year: b.Year, Month: time.Month(b.Month), Index: b.Week}
	return s.store.WriteWeekReport(key, report.RenderWeek(b))
}

func (s *DailyService) writeMonthReport(b *models.MonthBucket) error {
	if b == nil || !s.reports {
		return nil
	}
	key := calendar.MonthKey{Year: b.Year, Month: time.Month(b.Month)}
	return s.store.WriteMonthReport(key, report.RenderMonth(b))
}

// rebuild regenerates each distinct week in dates and then each distinct month.
func (s *DailyService) rebuild(ctx context.Context, dates []time.Time) error {
	var weeks []calendar.WeekKey
	seenWeek := map[calendar.WeekKey]bool{}
	var months []calendar.MonthKey
	seenMonth := map[calendar.MonthKey]bool{}
	for _, d := range dates {
		wk := calendar.WeekKeyFor(d)
		if !seenWeek[wk] {
			seenWeek[wk] = true
			weeks = append(weeks, wk)
		}
		if mk := wk.MonthKey(); !seenMonth[mk] {
			seenMonth[mk] = true
			months = append(months, mk)
		}
	}

	var errs []error
	for _, wk := range weeks {
		if _, err := s.AggregateWeek(ctx, wk); err != nil && !aggregate.IsIncomplete(err) {
			errs = append(errs, err)
		}
	}
	for _, mk := range months {
		if _, err := s.AggregateMonth(ctx, mk); err != nil && !aggregate.IsIncomplete(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
