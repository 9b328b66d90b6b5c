// Package cli implements the one-shot commands of the wakaproof binary.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
	"wakaproof/internal/aggregate"
	"wakaproof/internal/archive"
	"wakaproof/internal/calendar"
	"wakaproof/internal/models"
	"wakaproof/internal/providers"
	"wakaproof/internal/services"

	json "github.com/goccy/go-json"
)

// ErrVerification is returned when a stored record or archive fails verification.
var ErrVerification = errors.New("verification failed")

type Commands struct {
	logger   providers.Logger
	service  services.DailyServiceInterface
	archiver *archive.FileManager
	clock    providers.Clock
	out      io.Writer
}

func NewCommands(logger providers.Logger, service services.DailyServiceInterface, archiver *archive.FileManager, clock providers.Clock) *Commands {
	return &Commands{
		logger:   logger,
		service:  service,
		archiver: archiver,
		clock:    clock,
		out:      os.Stdout,
	}
}

func (c *Commands) Logger() providers.Logger { return c.logger }

func (c *Commands) print(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.out, string(data))
	return err
}

// dateOrYesterday parses s, or returns yesterday when s is empty.
func (c *Commands) dateOrYesterday(s string) (time.Time, error) {
	if s == "" {
		return calendar.AddDays(calendar.Day(c.clock.Now()), -1), nil
	}
	d, err := calendar.ParseDate(s)
	if err != nil {
		return time.Time{}, models.Invalidf("date", "%q is not YYYY-MM-DD", s)
	}
	return d, nil
}

func (c *Commands) Fetch(ctx context.Context, date string) error {
	d, err := c.dateOrYesterday(date)
	if err != nil {
		return err
	}
	res, err := c.service.FetchDay(ctx, d)
	if err != nil {
		return err
	}
	return c.print(res)
}

// Import fetches [from, to]. With days > 0 it fetches the last N days ending
// yesterday instead.
func (c *Commands) Import(ctx context.Context, from, to string, days int) error {
	var start, end time.Time
	if days > 0 {
		end = calendar.AddDays(calendar.Day(c.clock.Now()), -1)
		start = calendar.AddDays(end, -(days - 1))
	} else {
		var err error
		if start, err = calendar.ParseDate(from); err != nil {
			return models.Invalidf("from", "%q is not YYYY-MM-DD", from)
		}
		if end, err = c.dateOrYesterday(to); err != nil {
			return err
		}
	}

	summary, err := c.service.ImportRange(ctx, start, end)
	if summary != nil {
		if perr := c.print(summary); perr != nil {
			return perr
		}
	}
	return err
}

func (c *Commands) Run(ctx context.Context) error {
	run, err := c.service.RunScheduled(ctx)
	if run != nil {
		if perr := c.print(run); perr != nil {
			return perr
		}
	}
	return err
}

// Aggregate rebuilds the week containing date, or the month when month is
// set. Missing days only produce a warning.
func (c *Commands) Aggregate(ctx context.Context, date, month string) error {
	var bucket any
	var err error
	if month != "" {
		key, perr := calendar.ParseMonth(month)
		if perr != nil {
			return models.Invalidf("month", "%q is not YYYY-MM", month)
		}
		bucket, err = c.service.AggregateMonth(ctx, key)
	} else {
		d, perr := c.dateOrYesterday(date)
		if perr != nil {
			return perr
		}
		bucket, err = c.service.AggregateWeek(ctx, calendar.WeekKeyFor(d))
	}

	if aggregate.IsIncomplete(err) {
		c.logger.Warnf(providers.TypeAggregate, "%v", err)
		err = nil
	}
	if err != nil {
		return err
	}
	return c.print(bucket)
}

func (c *Commands) Verify(date string) error {
	d, err := c.dateOrYesterday(date)
	if err != nil {
		return err
	}
	rep, err := c.service.Verify(d)
	if err != nil {
		return err
	}
	if err := c.print(rep); err != nil {
		return err
	}
	if !rep.Ok() {
		return fmt.Errorf("%s: %w", rep.Date, ErrVerification)
	}
	return nil
}

func (c *Commands) Archive(month, file string) error {
	key, err := calendar.ParseMonth(month)
	if err != nil {
		return models.Invalidf("month", "%q is not YYYY-MM", month)
	}
	if file == "" {
		file = key.String() + ".wpa"
	}
	arc, err := c.archiver.SaveMonth(key, file)
	if err != nil {
		return err
	}
	return c.print(map[string]any{
		"file":    file,
		"month":   arc.Month,
		"records": len(arc.Records),
		"weeks":   len(arc.Weeks),
	})
}

// Inspect loads an archive and prints the verification report of each record.
func (c *Commands) Inspect(file string) error {
	_, reports, err := c.archiver.LoadFromFile(file)
	if err != nil {
		return err
	}
	if err := c.print(reports); err != nil {
		return err
	}
	for _, rep := range reports {
		if !rep.Ok() {
			return fmt.Errorf("%s: %w", file, ErrVerification)
		}
	}
	return nil
}
