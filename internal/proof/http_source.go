package proof

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"wakaproof/internal/models"

	json "github.com/goccy/go-json"
	"github.com/spf13/cast"
)

const (
	userAgent       = "wakaproof/" + models.SchemaVersion
	maxResponseSize = 1 << 20
)

// HTTPDateSource reads the Date header of an HTTP authority (for example
// the GitHub API), which is stamped by the remote server.
type HTTPDateSource struct {
	url    string
	client *http.Client
}

func NewHTTPDateSource(rawURL string, client *http.Client) *HTTPDateSource {
	return &HTTPDateSource{url: rawURL, client: client}
}

func (s *HTTPDateSource) Name() string { return "http_date:" + hostOf(s.url) }

func (s *HTTPDateSource) Now(ctx context.Context) (Observation, error) {
	resp, _, ev, err := fetch(ctx, s.client, s.url)
	if err != nil {
		return Observation{Evidence: ev}, err
	}
	header := resp.Header.Get("Date")
	if header == "" {
		return Observation{Evidence: ev}, fmt.Errorf("%s: response has no Date header", s.url)
	}
	t, err := http.ParseTime(header)
	if err != nil {
		return Observation{Evidence: ev}, fmt.Errorf("%s: bad Date header %q: %w", s.url, header, err)
	}
	return Observation{Time: t, Evidence: ev}, nil
}

// WorldTimeSource reads a worldtimeapi-style JSON document.
type WorldTimeSource struct {
	url    string
	client *http.Client
}

func NewWorldTimeSource(rawURL string, client *http.Client) *WorldTimeSource {
	return &WorldTimeSource{url: rawURL, client: client}
}

func (s *WorldTimeSource) Name() string { return "worldtime:" + hostOf(s.url) }

func (s *WorldTimeSource) Now(ctx context.Context) (Observation, error) {
	resp, body, ev, err := fetch(ctx, s.client, s.url)
	if err != nil {
		return Observation{Evidence: ev}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Observation{Evidence: ev}, fmt.Errorf("%s: unexpected status %d", s.url, resp.StatusCode)
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return Observation{Evidence: ev}, fmt.Errorf("%s: decode body: %w", s.url, err)
	}
	if raw, ok := doc["utc_datetime"].(string); ok && raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return Observation{Time: t, Evidence: ev}, nil
		}
	}
	if raw, ok := doc["unixtime"]; ok {
		secs, err := cast.ToInt64E(raw)
		if err == nil && secs > 0 {
			return Observation{Time: time.Unix(secs, 0).UTC(), Evidence: ev}, nil
		}
	}
	return Observation{Evidence: ev}, fmt.Errorf("%s: no usable time field", s.url)
}

func fetch(ctx context.Context, client *http.Client, rawURL string) (*http.Response, []byte, models.Evidence, error) {
	ev := models.Evidence{Endpoint: rawURL, Method: http.MethodGet}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, ev, err
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		ev.LatencyMs = time.Since(start).Milliseconds()
		return nil, nil, ev, err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(resp.Body, maxResponseSize))
	ev.LatencyMs = time.Since(start).Milliseconds()
	ev.StatusCode = resp.StatusCode
	ev.ResponseSize = n
	ev.Headers = FlattenHeaders(resp.Header)
	if err != nil && !errors.Is(err, io.EOF) {
		return resp, nil, ev, fmt.Errorf("%s: read body: %w", rawURL, err)
	}
	return resp, buf.Bytes(), ev, nil
}

// FlattenHeaders joins multi-valued headers so they serialize as plain strings.
func FlattenHeaders(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = strings.Join(v, ", ")
	}
	return out
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
