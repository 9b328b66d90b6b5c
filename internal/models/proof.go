package models

import "time"

type ProofStatus string

const (
	ProofConsistent   ProofStatus = "consistent"
	ProofInconsistent ProofStatus = "inconsistent"
	ProofUnverified   ProofStatus = "unverified"
)

// Evidence is the request/response metadata of one outbound call.
type Evidence struct {
	Endpoint     string            `json:"endpoint"`
	Method       string            `json:"method,omitempty"`
	StatusCode   int               `json:"status_code,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	LatencyMs    int64             `json:"latency_ms"`
	ResponseSize int64             `json:"response_size,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// SourceResult is the outcome of querying one timestamp source.
type SourceResult struct {
	Name      string     `json:"name"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Error     string     `json:"error,omitempty"`
	Evidence  Evidence   `json:"evidence"`
}

func (s SourceResult) Ok() bool {
	return s.Timestamp != nil && s.Error == ""
}

// ProofBundle is built once per DailyRecord and never mutated afterwards.
type ProofBundle struct {
	ContentHash string               `json:"content_hash"`
	Algorithm   string               `json:"algorithm"`
	Status      ProofStatus          `json:"status"`
	ToleranceMs int64                `json:"tolerance_ms"`
	Timestamps  map[string]time.Time `json:"timestamps"`
	Sources     []SourceResult       `json:"sources"`
	CollectedAt time.Time            `json:"collected_at"`
}

// Failures returns the sources that did not produce a timestamp.
func (b *ProofBundle) Failures() []SourceResult {
	var out []SourceResult
	for _, s := range b.Sources {
		if !s.Ok() {
			out = append(out, s)
		}
	}
	return out
}

func (b *ProofBundle) Verified() bool {
	return b != nil && b.Status == ProofConsistent
}
