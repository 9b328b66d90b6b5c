package archive

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
	"wakaproof/internal/calendar"
	"wakaproof/internal/models"
	"wakaproof/internal/proof"
	"wakaproof/internal/store"
	"wakaproof/internal/structures"
	"wakaproof/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var july = calendar.MonthKey{Year: 2025, Month: time.July}

func newTestFileManager(t *testing.T, compressor Compressor) (*FileManager, *store.FileStore) {
	t.Helper()
	conf := &structures.Config{Store: structures.StoreConfig{Dir: t.TempDir(), LockTimeout: time.Second}}
	logger := &testutil.MockLogger{}
	st := store.NewFileStore(conf, logger, testutil.NewMockMetrics())
	return NewFileManager(compressor, st, logger), st
}

func putRecord(t *testing.T, st *store.FileStore, date string, seconds float64) {
	t.Helper()
	payload := &models.Payload{
		GrandTotal: &models.GrandTotal{TotalSeconds: seconds},
		Categories: []models.Entry{{Name: "Coding", TotalSeconds: seconds}},
	}
	digest, err := proof.Digest(payload)
	require.NoError(t, err)
	now := time.Date(2025, 7, 22, 0, 0, 0, 0, time.UTC)
	rec := &models.DailyRecord{
		Date:          date,
		ContentDigest: digest,
		Payload:       payload,
		Proof: &models.ProofBundle{
			ContentHash: digest,
			Status:      models.ProofConsistent,
			ToleranceMs: 5000,
			Timestamps:  map[string]time.Time{"a": now, "b": now.Add(time.Second)},
		},
		Metadata: models.Metadata{Version: models.SchemaVersion, Revision: 1},
	}
	_, err = st.WriteDaily(context.Background(), rec)
	require.NoError(t, err)
}

func TestFileManager_SaveAndLoad(t *testing.T) {
	comp, err := NewZstdCompressor()
	require.NoError(t, err)
	defer comp.Close()
	fm, st := newTestFileManager(t, comp)

	putRecord(t, st, "2025-07-01", 100)
	putRecord(t, st, "2025-07-21", 27878)
	// outside the calendar month, though July 1 shares its week folder
	putRecord(t, st, "2025-06-30", 50)
	require.NoError(t, st.WriteWeek(&models.WeekBucket{Year: 2025, Month: 7, Week: 3, TotalMs: 27878000}))

	path := filepath.Join(t.TempDir(), "2025-07.wpa")
	arc, err := fm.SaveMonth(july, path)
	require.NoError(t, err)
	assert.Len(t, arc.Records, 2)
	assert.Len(t, arc.Weeks, 1)
	assert.Nil(t, arc.Bucket)

	loaded, reports, err := fm.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "2025-07", loaded.Month)
	require.Len(t, loaded.Records, 2)
	assert.Equal(t, "2025-07-01", loaded.Records[0].Date)
	assert.Equal(t, "2025-07-21", loaded.Records[1].Date)
	require.Len(t, reports, 2)
	for _, rep := range reports {
		assert.True(t, rep.Ok(), rep.Problems)
	}
}

func TestFileManager_LoadDetectsTampering(t *testing.T) {
	fm, st := newTestFileManager(t, &testutil.MockCompressor{})
	putRecord(t, st, "2025-07-21", 27878)
	path := filepath.Join(t.TempDir(), "2025-07.wpa")
	_, err := fm.SaveMonth(july, path)
	require.NoError(t, err)

	// identity compressor leaves the JSON readable
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := bytes.Replace(data, []byte(`"total_seconds":27878`), []byte(`"total_seconds":99999`), 1)
	require.NotEqual(t, data, tampered)
	require.NoError(t, os.WriteFile(path, tampered, 0o644))

	_, reports, err := fm.LoadFromFile(path)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.False(t, reports[0].DigestMatches)
	assert.False(t, reports[0].Ok())
}

func TestFileManager_SaveEmptyMonth(t *testing.T) {
	fm, _ := newTestFileManager(t, &testutil.MockCompressor{})

	_, err := fm.SaveMonth(july, filepath.Join(t.TempDir(), "x.wpa"))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestFileManager_CompressError(t *testing.T) {
	comp := &testutil.MockCompressor{CompressFn: func([]byte) ([]byte, error) { return nil, errors.New("boom") }}
	fm, st := newTestFileManager(t, comp)
	putRecord(t, st, "2025-07-21", 1)
	path := filepath.Join(t.TempDir(), "x.wpa")

	_, err := fm.SaveMonth(july, path)
	assert.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFileManager_LoadCorrupt(t *testing.T) {
	comp, err := NewZstdCompressor()
	require.NoError(t, err)
	defer comp.Close()
	fm, _ := newTestFileManager(t, comp)

	path := filepath.Join(t.TempDir(), "bad.wpa")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	_, _, err = fm.LoadFromFile(path)
	assert.Error(t, err)
}
