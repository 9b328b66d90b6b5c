// Package store persists daily records and derived buckets on the local filesystem.
//
// Layout, keyed by the week a date belongs to:
//
//	<dir>/2025/07_July/week_3/2025-07-21.json
//	<dir>/2025/07_July/week_3/2025-07-21.r2.json   superseding revision
//	<dir>/2025/07_July/week_3/week_3.json
//	<dir>/2025/07_July/07_July.json
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"wakaproof/internal/calendar"
	"wakaproof/internal/models"
	"wakaproof/internal/providers"
	"wakaproof/internal/structures"

	json "github.com/goccy/go-json"
)

type WriteResult string

const (
	WriteCreated    WriteResult = "created"
	WriteUnchanged  WriteResult = "unchanged"
	WriteSuperseded WriteResult = "superseded"
)

const (
	dirPerm          = 0o755
	filePerm         = 0o644
	lockPollInterval = 25 * time.Millisecond
)

type Store interface {
	ReadDaily(date time.Time) (*models.DailyRecord, error)
	ReadRevisions(date time.Time) ([]*models.DailyRecord, error)
	WriteDaily(ctx context.Context, rec *models.DailyRecord) (WriteResult, error)
	Supersede(ctx context.Context, rec *models.DailyRecord) (WriteResult, error)
	ListDaily(from, to time.Time) ([]string, error)
	ReadWeek(key calendar.WeekKey) (*models.WeekBucket, error)
	WriteWeek(bucket *models.WeekBucket) error
	ReadMonth(key calendar.MonthKey) (*models.MonthBucket, error)
	WriteMonth(bucket *models.MonthBucket) error
	WriteWeekReport(key calendar.WeekKey, data []byte) error
	WriteMonthReport(key calendar.MonthKey, data []byte) error
}

type FileStore struct {
	dir         string
	lockTimeout time.Duration
	logger      providers.Logger
	metrics     providers.MetricsProviderInterface

	mu    sync.Mutex
	dates map[string]chan struct{}
}

func NewFileStore(conf *structures.Config, logger providers.Logger, metrics providers.MetricsProviderInterface) *FileStore {
	return &FileStore{
		dir:         conf.Store.Dir,
		lockTimeout: conf.Store.LockTimeout,
		logger:      logger,
		metrics:     metrics,
		dates:       make(map[string]chan struct{}),
	}
}

func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) WeekDir(key calendar.WeekKey) string {
	return filepath.Join(s.MonthDir(key.MonthKey()), key.Folder())
}

func (s *FileStore) MonthDir(key calendar.MonthKey) string {
	return filepath.Join(s.dir, strconv.Itoa(key.Year), key.Folder())
}

// DailyPath is where revision rev of date lives. Revision 1 has no suffix.
func (s *FileStore) DailyPath(date time.Time, rev int) string {
	name := calendar.Format(date)
	if rev > 1 {
		name += ".r" + strconv.Itoa(rev)
	}
	return filepath.Join(s.WeekDir(calendar.WeekKeyFor(date)), name+".json")
}

func (s *FileStore) WeekPath(key calendar.WeekKey) string {
	return filepath.Join(s.WeekDir(key), key.Folder()+".json")
}

func (s *FileStore) MonthPath(key calendar.MonthKey) string {
	return filepath.Join(s.MonthDir(key), key.Folder()+".json")
}

func (s *FileStore) WeekReportPath(key calendar.WeekKey) string {
	return filepath.Join(s.WeekDir(key), key.Folder()+"_summary.md")
}

func (s *FileStore) MonthReportPath(key calendar.MonthKey) string {
	return filepath.Join(s.MonthDir(key), key.Folder()+"_summary.md")
}

// ReadDaily returns the newest revision stored for date.
func (s *FileStore) ReadDaily(date time.Time) (*models.DailyRecord, error) {
	revs, err := s.revisions(date)
	if err != nil {
		return nil, err
	}
	if len(revs) == 0 {
		return nil, fmt.Errorf("daily record %s: %w", calendar.Format(date), models.ErrNotFound)
	}
	return s.readRecord(s.DailyPath(date, revs[len(revs)-1]))
}

// ReadRevisions returns every stored revision of date, oldest first.
func (s *FileStore) ReadRevisions(date time.Time) ([]*models.DailyRecord, error) {
	revs, err := s.revisions(date)
	if err != nil {
		return nil, err
	}
	out := make([]*models.DailyRecord, 0, len(revs))
	for _, rev := range revs {
		rec, err := s.readRecord(s.DailyPath(date, rev))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// WriteDaily stores rec if its date has no record yet. Re-writing the same
// digest is a no-op; a different digest is a ConflictError.
func (s *FileStore) WriteDaily(ctx context.Context, rec *models.DailyRecord) (WriteResult, error) {
	date, err := calendar.ParseDate(rec.Date)
	if err != nil {
		return "", models.Invalidf("date", "%v", err)
	}

	unlock, err := s.lock(ctx, date)
	if err != nil {
		return "", err
	}
	defer unlock()

	head, _, err := s.head(date)
	switch {
	case errors.Is(err, models.ErrNotFound):
	case err != nil:
		return "", err
	case head.ContentDigest == rec.ContentDigest:
		s.logger.Debugf(providers.TypeStore, "record %s unchanged (%.12s)", rec.Date, rec.ContentDigest)
		s.metrics.IncRecordsWritten(string(WriteUnchanged))
		return WriteUnchanged, nil
	default:
		s.metrics.IncRecordsWritten("conflict")
		return "", &models.ConflictError{Date: rec.Date, ExistingDigest: head.ContentDigest, NewDigest: rec.ContentDigest}
	}

	if err := s.writeJSON(s.DailyPath(date, 1), rec); err != nil {
		return "", err
	}
	s.logger.Infof(providers.TypeStore, "stored record %s (%.12s, %s)", rec.Date, rec.ContentDigest, statusOf(rec))
	s.metrics.IncRecordsWritten(string(WriteCreated))
	return WriteCreated, nil
}

// Supersede stores rec as a new revision that points at the current head.
// Earlier revisions stay on disk.
func (s *FileStore) Supersede(ctx context.Context, rec *models.DailyRecord) (WriteResult, error) {
	date, err := calendar.ParseDate(rec.Date)
	if err != nil {
		return "", models.Invalidf("date", "%v", err)
	}

	unlock, err := s.lock(ctx, date)
	if err != nil {
		return "", err
	}
	defer unlock()

	head, rev, err := s.head(date)
	switch {
	case errors.Is(err, models.ErrNotFound):
		rec.Metadata.Revision = 1
		if err := s.writeJSON(s.DailyPath(date, 1), rec); err != nil {
			return "", err
		}
		s.metrics.IncRecordsWritten(string(WriteCreated))
		return WriteCreated, nil
	case err != nil:
		return "", err
	case head.ContentDigest == rec.ContentDigest:
		s.metrics.IncRecordsWritten(string(WriteUnchanged))
		return WriteUnchanged, nil
	}

	rec.Supersede(head)
	rec.Metadata.Revision = max(rec.Metadata.Revision, rev+1)
	if err := s.writeJSON(s.DailyPath(date, rec.Metadata.Revision), rec); err != nil {
		return "", err
	}
	s.logger.Warnf(providers.TypeStore, "record %s superseded: revision %d (%.12s) replaces %.12s",
		rec.Date, rec.Metadata.Revision, rec.ContentDigest, head.ContentDigest)
	s.metrics.IncRecordsWritten(string(WriteSuperseded))
	return WriteSuperseded, nil
}

// ListDaily returns the dates in [from, to] that have a stored record, ascending.
func (s *FileStore) ListDaily(from, to time.Time) ([]string, error) {
	var dates []string
	for d := calendar.Day(from); !d.After(calendar.Day(to)); d = d.AddDate(0, 0, 1) {
		_, err := os.Stat(s.DailyPath(d, 1))
		if err == nil {
			dates = append(dates, calendar.Format(d))
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return dates, nil
}

func (s *FileStore) ReadWeek(key calendar.WeekKey) (*models.WeekBucket, error) {
	var b models.WeekBucket
	if err := s.readJSON(s.WeekPath(key), &b); err != nil {
		return nil, fmt.Errorf("week %s: %w", key, err)
	}
	return &b, nil
}

func (s *FileStore) WriteWeek(bucket *models.WeekBucket) error {
	key := calendar.WeekKey{Year: bucket.Year, Month: time.Month(bucket.Month), Index: bucket.Week}
	return s.writeJSON(s.WeekPath(key), bucket)
}

func (s *FileStore) ReadMonth(key calendar.MonthKey) (*models.MonthBucket, error) {
	var b models.MonthBucket
	if err := s.readJSON(s.MonthPath(key), &b); err != nil {
		return nil, fmt.Errorf("month %s: %w", key, err)
	}
	return &b, nil
}

func (s *FileStore) WriteMonth(bucket *models.MonthBucket) error {
	key := calendar.MonthKey{Year: bucket.Year, Month: time.Month(bucket.Month)}
	return s.writeJSON(s.MonthPath(key), bucket)
}

func (s *FileStore) WriteWeekReport(key calendar.WeekKey, data []byte) error {
	return WriteFileAtomic(s.WeekReportPath(key), data, filePerm)
}

func (s *FileStore) WriteMonthReport(key calendar.MonthKey, data []byte) error {
	return WriteFileAtomic(s.MonthReportPath(key), data, filePerm)
}

// revisions lists the revision numbers stored for date, ascending.
func (s *FileStore) revisions(date time.Time) ([]int, error) {
	dir := s.WeekDir(calendar.WeekKeyFor(date))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	prefix := calendar.Format(date)
	var revs []int
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		middle := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json")
		switch {
		case middle == "":
			revs = append(revs, 1)
		case strings.HasPrefix(middle, ".r"):
			if n, err := strconv.Atoi(middle[2:]); err == nil && n > 1 {
				revs = append(revs, n)
			}
		}
	}
	sort.Ints(revs)
	return revs, nil
}

func (s *FileStore) head(date time.Time) (*models.DailyRecord, int, error) {
	revs, err := s.revisions(date)
	if err != nil {
		return nil, 0, err
	}
	if len(revs) == 0 {
		return nil, 0, models.ErrNotFound
	}
	rev := revs[len(revs)-1]
	rec, err := s.readRecord(s.DailyPath(date, rev))
	return rec, rev, err
}

func (s *FileStore) readRecord(path string) (*models.DailyRecord, error) {
	var rec models.DailyRecord
	if err := s.readJSON(path, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *FileStore) readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.ErrNotFound
		}
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, append(data, '\n'), filePerm)
}

// lock serializes writers of one date: a channel per date inside this process
// and an O_EXCL lock file against other processes.
func (s *FileStore) lock(ctx context.Context, date time.Time) (func(), error) {
	name := calendar.Format(date)
	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	sem := s.semaphore(name)
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", name, models.ErrLocked)
	}

	dir := s.WeekDir(calendar.WeekKeyFor(date))
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		<-sem
		return nil, err
	}
	path := filepath.Join(dir, name+".lock")
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
		if err == nil {
			_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
			_ = f.Close()
			return func() {
				if err := os.Remove(path); err != nil {
					s.logger.Errorf(providers.TypeStore, "release lock %s: %v", path, err)
				}
				<-sem
			}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			<-sem
			return nil, err
		}

		select {
		case <-ctx.Done():
			<-sem
			s.logger.Warnf(providers.TypeStore, "lock %s still held after %s", path, s.lockTimeout)
			return nil, fmt.Errorf("%s (remove %s if no other writer is running): %w", name, path, models.ErrLocked)
		case <-time.After(lockPollInterval):
		}
	}
}

func (s *FileStore) semaphore(name string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	sem, ok := s.dates[name]
	if !ok {
		sem = make(chan struct{}, 1)
		s.dates[name] = sem
	}
	return sem
}

func statusOf(rec *models.DailyRecord) models.ProofStatus {
	if rec.Proof == nil {
		return models.ProofUnverified
	}
	return rec.Proof.Status
}
