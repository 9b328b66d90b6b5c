package proof

import (
	"context"
	"fmt"
	"strconv"
	"time"
	"wakaproof/internal/models"

	"github.com/beevik/ntp"
)

type ntpQueryFunc func(address string, opt ntp.QueryOptions) (*ntp.Response, error)

type NTPSource struct {
	server string
	query  ntpQueryFunc
}

func NewNTPSource(server string) *NTPSource {
	return &NTPSource{server: server, query: ntp.QueryWithOptions}
}

func (s *NTPSource) Name() string { return "ntp:" + s.server }

func (s *NTPSource) Now(ctx context.Context) (Observation, error) {
	var opts ntp.QueryOptions
	if deadline, ok := ctx.Deadline(); ok {
		opts.Timeout = time.Until(deadline)
	}

	start := time.Now()
	resp, err := s.query(s.server, opts)
	ev := models.Evidence{
		Endpoint:  s.server,
		Method:    "NTP",
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		return Observation{Evidence: ev}, fmt.Errorf("ntp query %s: %w", s.server, err)
	}
	if err := resp.Validate(); err != nil {
		return Observation{Evidence: ev}, fmt.Errorf("ntp response from %s: %w", s.server, err)
	}

	ev.Extra = map[string]string{
		"stratum":      strconv.Itoa(int(resp.Stratum)),
		"rtt":          resp.RTT.String(),
		"clock_offset": resp.ClockOffset.String(),
		"reference_id": fmt.Sprintf("%08x", resp.ReferenceID),
	}
	return Observation{Time: resp.Time, Evidence: ev}, nil
}
