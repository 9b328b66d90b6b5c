package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	"wakaproof/internal/aggregate"
	"wakaproof/internal/calendar"
	"wakaproof/internal/models"
	"wakaproof/internal/proof"
	"wakaproof/internal/records"
	"wakaproof/internal/report"
	"wakaproof/internal/store"
	"wakaproof/internal/structures"
	"wakaproof/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubClient serves canned payloads keyed by date; unknown dates are unavailable.
type stubClient struct {
	mu       sync.Mutex
	payloads map[string]*models.Payload
	calls    []string
}

func (c *stubClient) set(date string, seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads[date] = &models.Payload{
		Range:      &models.Range{Date: date, Timezone: "UTC"},
		GrandTotal: &models.GrandTotal{TotalSeconds: seconds},
		Categories: []models.Entry{{Name: "Coding", TotalSeconds: seconds, Percent: 100}},
		Languages:  []models.Entry{{Name: "Go", TotalSeconds: seconds}},
	}
}

func (c *stubClient) FetchDay(_ context.Context, date time.Time) (*models.Payload, *models.Evidence, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name := calendar.Format(date)
	c.calls = append(c.calls, name)
	p, ok := c.payloads[name]
	if !ok {
		return nil, nil, &models.SourceUnavailableError{Date: name, Err: errors.New("503")}
	}
	return p, &models.Evidence{Endpoint: "stub", StatusCode: 200}, nil
}

type harness struct {
	svc    *DailyService
	client *stubClient
	store  *store.FileStore
	clock  *testutil.FixedClock
	logger *testutil.MockLogger
}

func newHarness(t *testing.T, policy string, now time.Time) *harness {
	t.Helper()
	conf := &structures.Config{
		Proof: structures.ProofConfig{Tolerance: 5 * time.Second, SourceTimeout: time.Second},
		Store: structures.StoreConfig{
			Dir:            t.TempDir(),
			LockTimeout:    time.Second,
			ConflictPolicy: policy,
			HistoryDays:    365,
			Reports:        true,
		},
	}
	clock := testutil.NewFixedClock(now)
	logger := &testutil.MockLogger{}
	metrics := testutil.NewMockMetrics()

	sources := []proof.TimestampSource{
		proof.NewSourceFunc("ntp:test", func(context.Context) (proof.Observation, error) {
			return proof.Observation{Time: clock.Now()}, nil
		}),
		proof.NewSourceFunc("http_date:test", func(context.Context) (proof.Observation, error) {
			return proof.Observation{Time: clock.Now().Add(time.Second)}, nil
		}),
	}
	st := store.NewFileStore(conf, logger, metrics)
	client := &stubClient{payloads: map[string]*models.Payload{}}
	svc := NewDailyService(
		conf,
		client,
		proof.NewCollector(sources, conf, clock, logger, metrics),
		records.NewBuilder(conf, clock),
		st,
		aggregate.NewAggregator(st, logger, metrics),
		clock,
		logger,
	)
	return &harness{svc: svc, client: client, store: st, clock: clock, logger: logger}
}

func day(s string) time.Time {
	d, err := calendar.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

var july22 = time.Date(2025, 7, 22, 0, 10, 0, 0, time.UTC)

func TestFetchDay_CreateRefetchConflict(t *testing.T) {
	h := newHarness(t, PolicyReject, july22)
	// 7h44m38s
	h.client.set("2025-07-21", 27878)

	res, err := h.svc.FetchDay(context.Background(), day("2025-07-21"))
	require.NoError(t, err)
	assert.Equal(t, store.WriteCreated, res.Result)
	assert.Equal(t, models.ProofConsistent, res.Status)

	rec, err := h.store.ReadDaily(day("2025-07-21"))
	require.NoError(t, err)
	assert.Equal(t, "07:44:38", report.FormatClock(rec.Payload.TotalMs()))
	assert.Equal(t, res.Digest, rec.ContentDigest)
	assert.Equal(t, rec.ContentDigest, rec.Proof.ContentHash)
	assert.Len(t, rec.Proof.Timestamps, 2)
	assert.Equal(t, "wakatime", rec.Metadata.Source)
	require.NotNil(t, rec.RequestProof)
	assert.Equal(t, 200, rec.RequestProof.StatusCode)

	res, err = h.svc.FetchDay(context.Background(), day("2025-07-21"))
	require.NoError(t, err)
	assert.Equal(t, store.WriteUnchanged, res.Result)

	h.client.set("2025-07-21", 27000)
	_, err = h.svc.FetchDay(context.Background(), day("2025-07-21"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConflict))

	rec, err = h.store.ReadDaily(day("2025-07-21"))
	require.NoError(t, err)
	assert.Equal(t, 27878.0, rec.Payload.GrandTotal.TotalSeconds)
}

func TestFetchDay_SupersedePolicy(t *testing.T) {
	h := newHarness(t, PolicySupersede, july22)
	h.client.set("2025-07-21", 27878)
	_, err := h.svc.FetchDay(context.Background(), day("2025-07-21"))
	require.NoError(t, err)
	_, err = h.svc.AggregateWeek(context.Background(), calendar.WeekKeyFor(day("2025-07-21")))
	require.True(t, aggregate.IsIncomplete(err))

	h.client.set("2025-07-21", 30000)
	res, err := h.svc.FetchDay(context.Background(), day("2025-07-21"))
	require.NoError(t, err)
	assert.Equal(t, store.WriteSuperseded, res.Result)

	revs, err := h.store.ReadRevisions(day("2025-07-21"))
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, revs[0].ContentDigest, revs[1].Metadata.Supersedes)

	week, err := h.store.ReadWeek(calendar.WeekKeyFor(day("2025-07-21")))
	require.NoError(t, err)
	assert.Equal(t, int64(30000000), week.TotalMs)
}

func TestFetchDay_SourceUnavailable(t *testing.T) {
	h := newHarness(t, PolicyReject, july22)

	_, err := h.svc.FetchDay(context.Background(), day("2025-07-21"))
	assert.ErrorIs(t, err, models.ErrSourceUnavailable)

	_, err = h.store.ReadDaily(day("2025-07-21"))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestFetchDay_FutureDate(t *testing.T) {
	h := newHarness(t, PolicyReject, july22)
	h.client.set("2025-07-25", 10)

	_, err := h.svc.FetchDay(context.Background(), day("2025-07-25"))
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestImportRange(t *testing.T) {
	h := newHarness(t, PolicyReject, july22)
	for _, d := range []string{"2025-07-14", "2025-07-15", "2025-07-17", "2025-07-18", "2025-07-19", "2025-07-20"} {
		h.client.set(d, 3600)
	}
	_, err := h.svc.FetchDay(context.Background(), day("2025-07-14"))
	require.NoError(t, err)
	h.client.calls = nil

	summary, err := h.svc.ImportRange(context.Background(), day("2025-07-14"), day("2025-07-20"))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrSourceUnavailable)

	assert.Equal(t, []string{"2025-07-14"}, summary.Skipped)
	assert.Equal(t, []string{"2025-07-15", "2025-07-17", "2025-07-18", "2025-07-19", "2025-07-20"}, summary.Created)
	assert.Contains(t, summary.Failed, "2025-07-16")
	assert.NotContains(t, h.client.calls, "2025-07-14")

	week, err := h.store.ReadWeek(calendar.WeekKeyFor(day("2025-07-14")))
	require.NoError(t, err)
	assert.Equal(t, 6, week.DayCount)
	assert.Equal(t, int64(6*3600000), week.TotalMs)
	assert.FileExists(t, h.store.WeekReportPath(calendar.WeekKeyFor(day("2025-07-14"))))

	month, err := h.store.ReadMonth(calendar.MonthKey{Year: 2025, Month: time.July})
	require.NoError(t, err)
	assert.Equal(t, 6, month.DayCount)
}

func TestImportRange_Reversed(t *testing.T) {
	h := newHarness(t, PolicyReject, july22)
	_, err := h.svc.ImportRange(context.Background(), day("2025-07-20"), day("2025-07-14"))
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestRunScheduled_WeekBoundary(t *testing.T) {
	// Monday: yesterday closes July week_3
	h := newHarness(t, PolicyReject, time.Date(2025, 7, 28, 0, 10, 0, 0, time.UTC))
	for _, d := range calendar.WeekKeyFor(day("2025-07-21")).Dates() {
		h.client.set(calendar.Format(d), 1800)
	}
	_, err := h.svc.ImportRange(context.Background(), day("2025-07-21"), day("2025-07-26"))
	require.NoError(t, err)

	run, err := h.svc.RunScheduled(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2025-07-27", run.Date)
	assert.Equal(t, store.WriteCreated, run.Fetch.Result)
	assert.Equal(t, []string{"2025-07/week_3", "2025-07"}, run.Aggregated)

	week, err := h.store.ReadWeek(calendar.WeekKeyFor(day("2025-07-27")))
	require.NoError(t, err)
	assert.Equal(t, 7, week.DayCount)
	assert.Equal(t, int64(7*1800000), week.TotalMs)
	assert.FileExists(t, h.store.MonthReportPath(calendar.MonthKey{Year: 2025, Month: time.July}))
}

func TestRunScheduled_MonthBoundary(t *testing.T) {
	// Friday 1 August: yesterday is in July week_4, which runs into August
	h := newHarness(t, PolicyReject, time.Date(2025, 8, 1, 6, 0, 0, 0, time.UTC))
	h.client.set("2025-07-31", 100)

	run, err := h.svc.RunScheduled(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"2025-07/week_4", "2025-07"}, run.Aggregated)
	month, err := h.store.ReadMonth(calendar.MonthKey{Year: 2025, Month: time.July})
	require.NoError(t, err)
	assert.Equal(t, int64(100000), month.TotalMs)
}

func TestRunScheduled_OrdinaryDay(t *testing.T) {
	h := newHarness(t, PolicyReject, july22)
	h.client.set("2025-07-21", 100)

	run, err := h.svc.RunScheduled(context.Background())
	require.NoError(t, err)

	assert.Empty(t, run.Aggregated)
	_, err = h.store.ReadWeek(calendar.WeekKeyFor(day("2025-07-21")))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRunScheduled_FetchFailureStillAggregates(t *testing.T) {
	h := newHarness(t, PolicyReject, time.Date(2025, 7, 28, 0, 10, 0, 0, time.UTC))

	run, err := h.svc.RunScheduled(context.Background())
	assert.ErrorIs(t, err, models.ErrSourceUnavailable)
	assert.Nil(t, run.Fetch)
	assert.Len(t, run.Aggregated, 2)
}

func TestVerify(t *testing.T) {
	h := newHarness(t, PolicyReject, july22)
	h.client.set("2025-07-21", 27878)
	_, err := h.svc.FetchDay(context.Background(), day("2025-07-21"))
	require.NoError(t, err)

	rep, err := h.svc.Verify(day("2025-07-21"))
	require.NoError(t, err)
	assert.True(t, rep.Ok())

	_, err = h.svc.Verify(day("2025-07-20"))
	assert.ErrorIs(t, err, models.ErrNotFound)
}
