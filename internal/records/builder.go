// Package records assembles daily records from a fetched payload and its proof.
package records

import (
	"time"
	"wakaproof/internal/calendar"
	"wakaproof/internal/models"
	"wakaproof/internal/providers"
	"wakaproof/internal/structures"

	"github.com/google/uuid"
)

type BuilderInterface interface {
	Build(date time.Time, payload *models.Payload, bundle *models.ProofBundle, meta models.SourceMeta) (*models.DailyRecord, error)
}

type Builder struct {
	clock       providers.Clock
	horizonDays int
}

func NewBuilder(conf *structures.Config, clock providers.Clock) *Builder {
	return &Builder{clock: clock, horizonDays: conf.Store.HistoryDays}
}

// Build validates its inputs and returns a record whose digest is the one the
// proof bundle was computed over.
func (b *Builder) Build(date time.Time, payload *models.Payload, bundle *models.ProofBundle, meta models.SourceMeta) (*models.DailyRecord, error) {
	day := calendar.Day(date)
	if err := b.checkDate(day); err != nil {
		return nil, err
	}
	if err := ValidatePayload(day, payload); err != nil {
		return nil, err
	}
	if bundle == nil || bundle.ContentHash == "" {
		return nil, models.Invalidf("authenticity_proof", "missing content hash")
	}

	fetchedAt := meta.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = b.clock.Now()
	}
	fetchID := meta.FetchID
	if fetchID == "" {
		fetchID = uuid.NewString()
	}

	return &models.DailyRecord{
		Date:          calendar.Format(day),
		ContentDigest: bundle.ContentHash,
		Payload:       payload,
		Proof:         bundle,
		RequestProof:  meta.Request,
		Metadata: models.Metadata{
			Version:     models.SchemaVersion,
			DateFetched: calendar.Format(day),
			FetchedAt:   fetchedAt.UTC(),
			Source:      meta.Source,
			FetchID:     fetchID,
			Revision:    1,
		},
	}, nil
}

func (b *Builder) checkDate(day time.Time) error {
	today := calendar.Day(b.clock.Now())
	if day.After(today) {
		return models.Invalidf("date", "%s is in the future", calendar.Format(day))
	}
	if b.horizonDays > 0 && day.Before(calendar.AddDays(today, -b.horizonDays)) {
		return models.Invalidf("date", "%s is more than %d days in the past", calendar.Format(day), b.horizonDays)
	}
	return nil
}

// ValidatePayload checks the fields every stored day must carry.
func ValidatePayload(day time.Time, p *models.Payload) error {
	if p == nil {
		return models.Invalidf("wakatime_data", "missing payload")
	}
	if p.GrandTotal == nil {
		return models.Invalidf("grand_total", "missing")
	}
	if p.GrandTotal.TotalSeconds < 0 {
		return models.Invalidf("grand_total", "negative duration %v", p.GrandTotal.TotalSeconds)
	}
	if len(p.Categories) == 0 {
		return models.Invalidf("categories", "at least one category is required")
	}
	for _, d := range models.Dimensions {
		for _, e := range p.Entries(d) {
			if e.TotalSeconds < 0 {
				return models.Invalidf(string(d), "%q has negative duration %v", e.Name, e.TotalSeconds)
			}
		}
	}
	if p.Range != nil && p.Range.Date != "" && p.Range.Date != calendar.Format(day) {
		return models.Invalidf("range", "payload covers %s, not %s", p.Range.Date, calendar.Format(day))
	}
	return nil
}
