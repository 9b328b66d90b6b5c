package proof

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"wakaproof/internal/models"
	"wakaproof/internal/structures"
	"wakaproof/internal/testutil"

	"github.com/beevik/ntp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var refTime = time.Date(2025, 7, 22, 0, 10, 0, 0, time.UTC)

func testPayload() *models.Payload {
	return &models.Payload{
		Range:      &models.Range{Date: "2025-07-21", Timezone: "UTC"},
		GrandTotal: &models.GrandTotal{TotalSeconds: 27878, Digital: "7:44", Text: "7 hrs 44 mins"},
		Categories: []models.Entry{{Name: "Coding", TotalSeconds: 27878, Percent: 100}},
		Languages: []models.Entry{
			{Name: "Go", TotalSeconds: 20000.5, Percent: 71.74},
			{Name: "YAML", TotalSeconds: 7877.5, Percent: 28.26},
		},
	}
}

func testConfig() *structures.Config {
	return &structures.Config{
		Proof: structures.ProofConfig{
			Tolerance:     5 * time.Second,
			SourceTimeout: 150 * time.Millisecond,
		},
	}
}

func fixedSource(name string, t time.Time) TimestampSource {
	return NewSourceFunc(name, func(ctx context.Context) (Observation, error) {
		return Observation{Time: t, Evidence: models.Evidence{Endpoint: name, LatencyMs: 1}}, nil
	})
}

func newCollector(sources ...TimestampSource) (*Collector, *testutil.MockLogger, *testutil.MockMetrics) {
	logger := &testutil.MockLogger{}
	metrics := testutil.NewMockMetrics()
	return NewCollector(sources, testConfig(), testutil.NewFixedClock(refTime), logger, metrics), logger, metrics
}

func TestDigest_Deterministic(t *testing.T) {
	a, err := Digest(testPayload())
	require.NoError(t, err)
	b, err := Digest(testPayload())
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestDigest_ChangesWithPayload(t *testing.T) {
	p := testPayload()
	before, err := Digest(p)
	require.NoError(t, err)

	p.GrandTotal.TotalSeconds = 27879
	after, err := Digest(p)
	require.NoError(t, err)

	assert.NotEqual(t, before, after)
}

func TestCanonicalize_SortsKeys(t *testing.T) {
	out, err := Canonicalize(&models.Payload{GrandTotal: &models.GrandTotal{TotalSeconds: 60, Text: "1 min"}})
	require.NoError(t, err)

	assert.Equal(t, `{"grand_total":{"text":"1 min","total_seconds":60}}`, string(out))
}

func TestDigest_NilPayload(t *testing.T) {
	_, err := Digest(nil)
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	tol := 5 * time.Second
	tests := []struct {
		name string
		ts   []time.Time
		want models.ProofStatus
	}{
		{"none", nil, models.ProofUnverified},
		{"single", []time.Time{refTime}, models.ProofUnverified},
		{"agree", []time.Time{refTime, refTime.Add(2 * time.Second)}, models.ProofConsistent},
		{"exactly at tolerance", []time.Time{refTime, refTime.Add(tol)}, models.ProofConsistent},
		{"one outlier", []time.Time{refTime, refTime.Add(time.Second), refTime.Add(-10 * time.Second)}, models.ProofInconsistent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.ts, tol))
		})
	}
}

func TestCollect_TwoAgreeOneTimesOut(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	// ignores its context entirely
	stuck := NewSourceFunc("stuck", func(ctx context.Context) (Observation, error) {
		<-release
		return Observation{Time: refTime}, nil
	})
	c, _, metrics := newCollector(
		fixedSource("ntp:test", refTime),
		stuck,
		fixedSource("http_date:test", refTime.Add(time.Second)),
	)

	start := time.Now()
	bundle, err := c.Collect(context.Background(), testPayload())
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, models.ProofConsistent, bundle.Status)
	assert.Len(t, bundle.Sources, 3)
	assert.Len(t, bundle.Timestamps, 2)
	assert.Equal(t, "stuck", bundle.Sources[1].Name)
	assert.Contains(t, bundle.Sources[1].Error, "timed out")
	assert.Nil(t, bundle.Sources[1].Timestamp)

	failures := bundle.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "stuck", failures[0].Name)
	assert.Equal(t, 1, metrics.SourceFailures["stuck"])
	assert.Equal(t, 1, metrics.ProofStatuses["consistent"])

	digest, _ := Digest(testPayload())
	assert.Equal(t, digest, bundle.ContentHash)
	assert.Equal(t, Algorithm, bundle.Algorithm)
	assert.Equal(t, int64(5000), bundle.ToleranceMs)
	assert.Equal(t, refTime, bundle.CollectedAt)
}

func TestCollect_Inconsistent(t *testing.T) {
	c, _, _ := newCollector(
		fixedSource("a", refTime),
		fixedSource("b", refTime.Add(time.Minute)),
	)

	bundle, err := c.Collect(context.Background(), testPayload())
	require.NoError(t, err)

	assert.Equal(t, models.ProofInconsistent, bundle.Status)
	assert.False(t, bundle.Verified())
}

func TestCollect_AllFailStillReturnsBundle(t *testing.T) {
	failing := func(name string) TimestampSource {
		return NewSourceFunc(name, func(ctx context.Context) (Observation, error) {
			return Observation{}, errors.New("connection refused")
		})
	}
	c, logger, _ := newCollector(failing("a"), failing("b"))

	bundle, err := c.Collect(context.Background(), testPayload())
	require.NoError(t, err)

	assert.Equal(t, models.ProofUnverified, bundle.Status)
	assert.Empty(t, bundle.Timestamps)
	assert.Len(t, bundle.Failures(), 2)
	assert.Equal(t, "connection refused", bundle.Sources[0].Error)
	assert.True(t, logger.Contains("warn", "timestamp source a failed"))
}

func TestCollect_ZeroTimeIsFailure(t *testing.T) {
	c, _, _ := newCollector(fixedSource("zero", time.Time{}), fixedSource("ok", refTime))

	bundle, err := c.Collect(context.Background(), testPayload())
	require.NoError(t, err)

	assert.Equal(t, models.ProofUnverified, bundle.Status)
	assert.Equal(t, "source returned zero time", bundle.Sources[0].Error)
}

func TestCollect_NilPayload(t *testing.T) {
	c, _, _ := newCollector(fixedSource("a", refTime))

	_, err := c.Collect(context.Background(), nil)
	assert.Error(t, err)
}

func TestHTTPDateSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "wakaproof/")
		w.Header().Set("Date", "Tue, 22 Jul 2025 00:10:00 GMT")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	src := NewHTTPDateSource(srv.URL, srv.Client())
	obs, err := src.Now(context.Background())
	require.NoError(t, err)

	assert.True(t, refTime.Equal(obs.Time))
	assert.Equal(t, http.StatusOK, obs.Evidence.StatusCode)
	assert.Equal(t, srv.URL, obs.Evidence.Endpoint)
	assert.Equal(t, "Tue, 22 Jul 2025 00:10:00 GMT", obs.Evidence.Headers["Date"])
}

func TestHTTPDateSource_BadHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Date", "yesterday")
	}))
	defer srv.Close()

	_, err := NewHTTPDateSource(srv.URL, srv.Client()).Now(context.Background())
	assert.Error(t, err)
}

func TestWorldTimeSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"utc_datetime":"2025-07-22T00:10:00.000000+00:00","unixtime":1753143000}`))
	}))
	defer srv.Close()

	obs, err := NewWorldTimeSource(srv.URL, srv.Client()).Now(context.Background())
	require.NoError(t, err)

	assert.True(t, refTime.Equal(obs.Time))
	assert.Positive(t, obs.Evidence.ResponseSize)
}

func TestWorldTimeSource_UnixFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"unixtime":"1753143000"}`))
	}))
	defer srv.Close()

	obs, err := NewWorldTimeSource(srv.URL, srv.Client()).Now(context.Background())
	require.NoError(t, err)

	assert.True(t, refTime.Equal(obs.Time))
}

func TestWorldTimeSource_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	obs, err := NewWorldTimeSource(srv.URL, srv.Client()).Now(context.Background())
	assert.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, obs.Evidence.StatusCode)
}

func TestNTPSource(t *testing.T) {
	src := NewNTPSource("pool.example")
	src.query = func(address string, opt ntp.QueryOptions) (*ntp.Response, error) {
		assert.Equal(t, "pool.example", address)
		assert.Positive(t, opt.Timeout)
		return &ntp.Response{
			Time:          refTime,
			ReferenceTime: refTime.Add(-time.Minute),
			Stratum:       2,
			RTT:           20 * time.Millisecond,
		}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	obs, err := src.Now(ctx)
	require.NoError(t, err)

	assert.Equal(t, refTime, obs.Time)
	assert.Equal(t, "NTP", obs.Evidence.Method)
	assert.Equal(t, "2", obs.Evidence.Extra["stratum"])
	assert.Equal(t, "ntp:pool.example", src.Name())
}

func TestNTPSource_KissOfDeath(t *testing.T) {
	src := NewNTPSource("pool.example")
	src.query = func(string, ntp.QueryOptions) (*ntp.Response, error) {
		return &ntp.Response{Time: refTime, Stratum: 0}, nil
	}

	_, err := src.Now(context.Background())
	assert.Error(t, err)
}

func TestNewSources(t *testing.T) {
	conf := testConfig()
	conf.Proof.NtpServer = "pool.ntp.org"
	conf.Proof.HttpDateURLs = []string{"https://api.github.com", ""}
	conf.Proof.WorldTimeURL = "http://worldtimeapi.org/api/timezone/Etc/UTC"

	sources := NewSources(conf)
	require.Len(t, sources, 3)
	assert.Equal(t, "ntp:pool.ntp.org", sources[0].Name())
	assert.Equal(t, "http_date:api.github.com", sources[1].Name())
	assert.Equal(t, "worldtime:worldtimeapi.org", sources[2].Name())
}

func TestVerify(t *testing.T) {
	c, _, _ := newCollector(fixedSource("a", refTime), fixedSource("b", refTime.Add(time.Second)))
	bundle, err := c.Collect(context.Background(), testPayload())
	require.NoError(t, err)

	rec := &models.DailyRecord{
		Date:          "2025-07-21",
		ContentDigest: bundle.ContentHash,
		Payload:       testPayload(),
		Proof:         bundle,
	}
	rep := Verify(rec)
	assert.True(t, rep.Ok())
	assert.Empty(t, rep.Problems)

	rec.Payload.GrandTotal.TotalSeconds = 1
	rep = Verify(rec)
	assert.False(t, rep.Ok())
	assert.False(t, rep.DigestMatches)
	assert.True(t, rep.ProofMatches)
}

func TestCollect_DuplicateSourceNamesCountOnce(t *testing.T) {
	c, logger, _ := newCollector(
		fixedSource("http_date:api.github.com", refTime),
		fixedSource("http_date:api.github.com", refTime.Add(time.Minute)),
		fixedSource("ntp:pool.ntp.org", refTime.Add(time.Second)),
	)
	bundle, err := c.Collect(context.Background(), testPayload())
	require.NoError(t, err)

	assert.True(t, logger.Contains("warn", "configured more than once"))
	assert.Len(t, bundle.Sources, 2)
	assert.Len(t, bundle.Timestamps, 2)
	assert.Equal(t, refTime, bundle.Timestamps["http_date:api.github.com"])
	assert.Equal(t, models.ProofConsistent, bundle.Status)

	rep := Verify(&models.DailyRecord{
		Date:          "2025-07-21",
		ContentDigest: bundle.ContentHash,
		Payload:       testPayload(),
		Proof:         bundle,
	})
	assert.True(t, rep.Ok())
	assert.Equal(t, bundle.Status, rep.ComputedStatus)
}

func TestCollect_DuplicateNamesAloneStayUnverified(t *testing.T) {
	c, _, _ := newCollector(
		fixedSource("http_date:api.github.com", refTime),
		fixedSource("http_date:api.github.com", refTime.Add(time.Minute)),
	)
	bundle, err := c.Collect(context.Background(), testPayload())
	require.NoError(t, err)

	assert.Equal(t, models.ProofUnverified, bundle.Status)
	assert.Len(t, bundle.Timestamps, 1)
	rep := Verify(&models.DailyRecord{
		Date:          "2025-07-21",
		ContentDigest: bundle.ContentHash,
		Payload:       testPayload(),
		Proof:         bundle,
	})
	assert.Empty(t, rep.Problems)
}

func TestVerify_MissingProof(t *testing.T) {
	rep := Verify(&models.DailyRecord{Date: "2025-07-21", Payload: testPayload()})
	assert.False(t, rep.Ok())
	assert.Equal(t, models.ProofUnverified, rep.ComputedStatus)
}
