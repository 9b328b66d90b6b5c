package testutil

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"wakaproof/internal/providers"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (e LogEntry) Message() string {
	return fmt.Sprintf(e.Format, e.Args...)
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// Contains reports whether any entry at level has a message containing substr.
func (m *MockLogger) Contains(level, substr string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Logs {
		if e.Level == level && strings.Contains(e.Message(), substr) {
			return true
		}
	}
	return false
}

// MockCache implements providers.CacheProviderInterface.
type MockCache struct {
	mu   sync.Mutex
	Data map[string][]byte
}

func NewMockCache() *MockCache {
	return &MockCache{Data: make(map[string][]byte)}
}

func (m *MockCache) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.Data[key]
	return val, ok
}

func (m *MockCache) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[key] = value
}

func (m *MockCache) Delete(keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.Data, key)
	}
}

// MockCompressor implements archive.Compressor with injectable behavior.
type MockCompressor struct {
	CompressFn   func([]byte) ([]byte, error)
	DecompressFn func([]byte) ([]byte, error)
}

func (m *MockCompressor) Compress(val []byte) ([]byte, error) {
	if m.CompressFn != nil {
		return m.CompressFn(val)
	}
	// Default: return as-is (identity)
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Decompress(val []byte) ([]byte, error) {
	if m.DecompressFn != nil {
		return m.DecompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

// FixedClock implements providers.Clock and can be moved by tests.
type FixedClock struct {
	mu sync.Mutex
	T  time.Time
}

func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{T: t}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.T
}

func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.T = t
}

// MockMetrics implements providers.MetricsProviderInterface and counts calls by label.
type MockMetrics struct {
	mu               sync.Mutex
	Requests         map[string]int
	CacheHits        int
	CacheMisses      int
	RecordsWritten   map[string]int
	ProofStatuses    map[string]int
	SourceFailures   map[string]int
	SourceLatencies  map[string]int
	IncompleteRanges map[string]int
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		Requests:         make(map[string]int),
		RecordsWritten:   make(map[string]int),
		ProofStatuses:    make(map[string]int),
		SourceFailures:   make(map[string]int),
		SourceLatencies:  make(map[string]int),
		IncompleteRanges: make(map[string]int),
	}
}

func (m *MockMetrics) IncRequestsTotal(endpoint string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests[fmt.Sprintf("%s:%d", endpoint, status)]++
}

func (m *MockMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}

func (m *MockMetrics) IncCacheHits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheHits++
}

func (m *MockMetrics) IncCacheMisses() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheMisses++
}

func (m *MockMetrics) IncRecordsWritten(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordsWritten[result]++
}

func (m *MockMetrics) IncProofStatus(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProofStatuses[status]++
}

func (m *MockMetrics) ObserveSourceLatency(source string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SourceLatencies[source]++
}

func (m *MockMetrics) IncSourceFailures(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SourceFailures[source]++
}

func (m *MockMetrics) IncIncompleteRanges(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IncompleteRanges[kind]++
}
