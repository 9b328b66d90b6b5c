package proof

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
	"wakaproof/internal/models"
	"wakaproof/internal/providers"
	"wakaproof/internal/structures"
)

var errSourceTimeout = errors.New("timed out")

type CollectorInterface interface {
	Collect(ctx context.Context, payload *models.Payload) (*models.ProofBundle, error)
}

// Collector queries every configured timestamp source in parallel and folds
// the answers into a ProofBundle. A failing source is recorded, never fatal.
type Collector struct {
	sources   []TimestampSource
	tolerance time.Duration
	timeout   time.Duration
	clock     providers.Clock
	logger    providers.Logger
	metrics   providers.MetricsProviderInterface
}

func NewCollector(
	sources []TimestampSource,
	conf *structures.Config,
	clock providers.Clock,
	logger providers.Logger,
	metrics providers.MetricsProviderInterface,
) *Collector {
	return &Collector{
		sources:   distinctSources(sources, logger),
		tolerance: conf.Proof.Tolerance,
		timeout:   conf.Proof.SourceTimeout,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// distinctSources keeps the first source of each name. Timestamps are keyed
// by source name, so a second source with the same name is the same authority.
func distinctSources(sources []TimestampSource, logger providers.Logger) []TimestampSource {
	seen := make(map[string]bool, len(sources))
	out := make([]TimestampSource, 0, len(sources))
	for _, src := range sources {
		name := src.Name()
		if seen[name] {
			logger.Warnf(providers.TypeProof, "timestamp source %s configured more than once, ignoring duplicate", name)
			continue
		}
		seen[name] = true
		out = append(out, src)
	}
	return out
}

// NewSources builds the timestamp sources named in the proof config.
func NewSources(conf *structures.Config) []TimestampSource {
	client := &http.Client{Timeout: conf.Proof.SourceTimeout}

	var sources []TimestampSource
	if conf.Proof.NtpServer != "" {
		sources = append(sources, NewNTPSource(conf.Proof.NtpServer))
	}
	for _, u := range conf.Proof.HttpDateURLs {
		if u != "" {
			sources = append(sources, NewHTTPDateSource(u, client))
		}
	}
	if conf.Proof.WorldTimeURL != "" {
		sources = append(sources, NewWorldTimeSource(conf.Proof.WorldTimeURL, client))
	}
	return sources
}

// Collect returns an error only when the payload itself cannot be digested.
func (c *Collector) Collect(ctx context.Context, payload *models.Payload) (*models.ProofBundle, error) {
	digest, err := Digest(payload)
	if err != nil {
		return nil, fmt.Errorf("digest payload: %w", err)
	}

	results := make([]models.SourceResult, len(c.sources))
	var wg sync.WaitGroup
	for i, src := range c.sources {
		wg.Add(1)
		go func(i int, src TimestampSource) {
			defer wg.Done()
			results[i] = c.query(ctx, src)
		}(i, src)
	}
	wg.Wait()

	bundle := &models.ProofBundle{
		ContentHash: digest,
		Algorithm:   Algorithm,
		ToleranceMs: c.tolerance.Milliseconds(),
		Timestamps:  make(map[string]time.Time, len(results)),
		Sources:     results,
		CollectedAt: c.clock.Now().UTC(),
	}
	var observed []time.Time
	for _, r := range results {
		if !r.Ok() {
			c.metrics.IncSourceFailures(r.Name)
			c.logger.Warnf(providers.TypeProof, "timestamp source %s failed: %s", r.Name, r.Error)
			continue
		}
		bundle.Timestamps[r.Name] = *r.Timestamp
		observed = append(observed, *r.Timestamp)
	}
	bundle.Status = Evaluate(observed, c.tolerance)

	c.metrics.IncProofStatus(string(bundle.Status))
	c.logger.Infof(providers.TypeProof, "proof for %.12s: %s (%d/%d sources)",
		digest, bundle.Status, len(observed), len(results))
	return bundle, nil
}

// query runs one source under its own deadline. The source runs in a separate
// goroutine so one that ignores ctx cannot hold the collection past the timeout.
func (c *Collector) query(ctx context.Context, src TimestampSource) models.SourceResult {
	name := src.Name()
	sctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type answer struct {
		obs Observation
		err error
	}
	ch := make(chan answer, 1)
	start := time.Now()
	go func() {
		obs, err := src.Now(sctx)
		ch <- answer{obs: obs, err: err}
	}()

	result := models.SourceResult{Name: name}
	select {
	case a := <-ch:
		result.Evidence = a.obs.Evidence
		switch {
		case a.err != nil:
			result.Error = a.err.Error()
		case a.obs.Time.IsZero():
			result.Error = "source returned zero time"
		default:
			t := a.obs.Time.UTC()
			result.Timestamp = &t
		}
	case <-sctx.Done():
		result.Error = fmt.Sprintf("%v after %s", errSourceTimeout, c.timeout)
		if errors.Is(sctx.Err(), context.Canceled) {
			result.Error = "cancelled"
		}
		result.Evidence = models.Evidence{LatencyMs: time.Since(start).Milliseconds()}
	}
	if result.Evidence.Endpoint == "" {
		result.Evidence.Endpoint = name
	}
	c.metrics.ObserveSourceLatency(name, time.Since(start))
	return result
}

// Evaluate applies the agreement rule: two or more readings whose spread is
// within tolerance are consistent, any wider spread is inconsistent, and fewer
// than two readings cannot be verified.
func Evaluate(timestamps []time.Time, tolerance time.Duration) models.ProofStatus {
	if len(timestamps) < 2 {
		return models.ProofUnverified
	}
	lo, hi := timestamps[0], timestamps[0]
	for _, t := range timestamps[1:] {
		if t.Before(lo) {
			lo = t
		}
		if t.After(hi) {
			hi = t
		}
	}
	if hi.Sub(lo) <= tolerance {
		return models.ProofConsistent
	}
	return models.ProofInconsistent
}
