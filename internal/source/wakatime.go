// Package source fetches one day of summary data from the WakaTime API.
package source

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"wakaproof/internal/calendar"
	"wakaproof/internal/models"
	"wakaproof/internal/proof"
	"wakaproof/internal/providers"
	"wakaproof/internal/structures"

	json "github.com/goccy/go-json"
)

const (
	Name            = "wakatime"
	summariesPath   = "/users/current/summaries"
	maxResponseSize = 16 << 20
)

type ClientInterface interface {
	FetchDay(ctx context.Context, date time.Time) (*models.Payload, *models.Evidence, error)
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  providers.Logger
}

type summariesResponse struct {
	Data []*models.Payload `json:"data"`
}

func NewClient(conf *structures.Config, logger providers.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(conf.Source.BaseURL, "/"),
		apiKey:  conf.Source.ApiKey,
		http:    &http.Client{Timeout: conf.Source.Timeout},
		logger:  logger,
	}
}

// FetchDay returns the summary of date and the evidence of the request that
// produced it. Every failure is a SourceUnavailableError; no record should be
// written for the day.
func (c *Client) FetchDay(ctx context.Context, date time.Time) (*models.Payload, *models.Evidence, error) {
	day := calendar.Format(date)
	unavailable := func(err error) error {
		c.logger.Errorf(providers.TypeFetch, "fetch %s: %v", day, err)
		return &models.SourceUnavailableError{Date: day, Err: err}
	}
	if c.apiKey == "" {
		return nil, nil, unavailable(fmt.Errorf("no API key configured"))
	}

	q := url.Values{}
	q.Set("start", day)
	q.Set("end", day)
	endpoint := c.baseURL + summariesPath + "?" + q.Encode()
	ev := &models.Evidence{Endpoint: endpoint, Method: http.MethodGet}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil, unavailable(err)
	}
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.apiKey)))
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, ev, unavailable(err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(resp.Body, maxResponseSize))
	ev.LatencyMs = time.Since(start).Milliseconds()
	ev.StatusCode = resp.StatusCode
	ev.ResponseSize = n
	ev.Headers = proof.FlattenHeaders(resp.Header)
	if err != nil {
		return nil, ev, unavailable(fmt.Errorf("read body: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, ev, unavailable(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var body summariesResponse
	if err := json.Unmarshal(buf.Bytes(), &body); err != nil {
		return nil, ev, unavailable(fmt.Errorf("decode body: %w", err))
	}
	if len(body.Data) == 0 || body.Data[0] == nil {
		return nil, ev, unavailable(fmt.Errorf("response has no summary for %s", day))
	}

	c.logger.Infof(providers.TypeFetch, "fetched %s: %d bytes in %dms", day, n, ev.LatencyMs)
	return body.Data[0], ev, nil
}
