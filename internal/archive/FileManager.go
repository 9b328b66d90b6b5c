// Package archive packs a month of records and buckets into one compressed file.
package archive

import (
	"errors"
	"fmt"
	"os"
	"wakaproof/internal/calendar"
	"wakaproof/internal/models"
	"wakaproof/internal/proof"
	"wakaproof/internal/providers"
	"wakaproof/internal/store"

	json "github.com/goccy/go-json"
)

const archivePerm = 0o644

// MonthArchive holds the head record of every stored day of a calendar month
// and the buckets of the weeks that start in it.
type MonthArchive struct {
	Version string                `json:"version"`
	Month   string                `json:"month"`
	Records []*models.DailyRecord `json:"records"`
	Weeks   []*models.WeekBucket  `json:"weeks"`
	Bucket  *models.MonthBucket   `json:"month_bucket,omitempty"`
}

type FileManager struct {
	store      store.Store
	compressor Compressor
	logger     providers.Logger
}

func NewFileManager(compressor Compressor, st store.Store, logger providers.Logger) *FileManager {
	return &FileManager{
		compressor: compressor,
		store:      st,
		logger:     logger,
	}
}

func (f *FileManager) SaveMonth(key calendar.MonthKey, fileName string) (*MonthArchive, error) {
	arc := &MonthArchive{Version: models.SchemaVersion, Month: key.String()}

	for _, d := range key.Days() {
		rec, err := f.store.ReadDaily(d)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		arc.Records = append(arc.Records, rec)
	}
	if len(arc.Records) == 0 {
		return nil, fmt.Errorf("month %s has no records: %w", key, models.ErrNotFound)
	}

	for _, wk := range key.Weeks() {
		wb, err := f.store.ReadWeek(wk)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		arc.Weeks = append(arc.Weeks, wb)
	}
	mb, err := f.store.ReadMonth(key)
	switch {
	case err == nil:
		arc.Bucket = mb
	case !errors.Is(err, models.ErrNotFound):
		return nil, err
	}

	jsonData, err := json.Marshal(arc)
	if err != nil {
		return nil, err
	}
	data, err := f.compressor.Compress(jsonData)
	if err != nil {
		return nil, err
	}
	if err := store.WriteFileAtomic(fileName, data, archivePerm); err != nil {
		return nil, err
	}

	f.logger.Infof(providers.TypeStore, "archived %s: %d records, %d weeks to %s", key, len(arc.Records), len(arc.Weeks), fileName)
	return arc, nil
}

// LoadFromFile reads an archive and re-verifies every record in it.
func (f *FileManager) LoadFromFile(fileName string) (*MonthArchive, []*proof.Report, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return nil, nil, err
	}

	decompressedData, err := f.compressor.Decompress(data)
	if err != nil {
		return nil, nil, fmt.Errorf("decompress %s: %w", fileName, err)
	}

	var arc MonthArchive
	if err := json.Unmarshal(decompressedData, &arc); err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", fileName, err)
	}

	reports := make([]*proof.Report, 0, len(arc.Records))
	for _, rec := range arc.Records {
		rep := proof.Verify(rec)
		if len(rep.Problems) > 0 {
			f.logger.Warnf(providers.TypeStore, "archive %s: %s: %v", fileName, rec.Date, rep.Problems)
		}
		reports = append(reports, rep)
	}
	return &arc, reports, nil
}
