package history

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borzov/photo-validation-service/pkg/schema"
)

// memStore is an in-memory Store for recorder tests.
type memStore struct {
	mu      sync.Mutex
	records []*Record
}

func (m *memStore) Insert(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memStore) Get(_ context.Context, requestID string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.RequestID == requestID {
			return rec, nil
		}
	}
	return nil, schema.NewErrorf(schema.ErrCodeNotFound, "validation record %q not found", requestID)
}

func (m *memStore) List(_ context.Context, _ Filter) ([]*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Record(nil), m.records...), nil
}

func (m *memStore) Prune(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*Record
	var removed int64
	for _, rec := range m.records {
		if rec.CompletedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	m.records = kept
	return removed, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) snapshot() []*Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Record(nil), m.records...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleVerdict(id string) *schema.Verdict {
	return &schema.Verdict{
		RequestID:    id,
		Status:       schema.VerdictRejected,
		ChecksPassed: 1,
		TotalChecks:  2,
		Issues:       []string{"image is blurry"},
		CheckResults: []schema.Outcome{
			{Check: "face_count", Status: schema.StatusPassed, Duration: 12 * time.Millisecond},
			{Check: "blurriness", Status: schema.StatusFailed, Reason: "image is blurry", Duration: 48 * time.Millisecond},
		},
		ProcessingTime: 60 * time.Millisecond,
		CompletedAt:    time.Now().UTC(),
	}
}

func TestRecorder_PersistsVerdict(t *testing.T) {
	store := &memStore{}
	rec, err := NewRecorder(store, testLogger())
	require.NoError(t, err)

	rec.Record(context.Background(), sampleVerdict("req-1"))
	require.NoError(t, rec.Close())

	records := store.snapshot()
	require.Len(t, records, 1)
	assert.Equal(t, "req-1", records[0].RequestID)
	assert.Equal(t, schema.VerdictRejected, records[0].Status)
	assert.Equal(t, []string{"image is blurry"}, records[0].Issues)
}

func TestRecorder_SummaryProjection(t *testing.T) {
	store := &memStore{}
	rec, err := NewRecorder(store, testLogger())
	require.NoError(t, err)

	rec.Record(context.Background(), sampleVerdict("req-2"))
	require.NoError(t, rec.Close())

	records := store.snapshot()
	require.Len(t, records, 1)

	summary := records[0].Summary
	require.NotNil(t, summary)

	statuses, ok := summary["statuses"].(map[string]any)
	require.True(t, ok, "summary statuses: %+v", summary)
	assert.Equal(t, "PASSED", statuses["face_count"])
	assert.Equal(t, "FAILED", statuses["blurriness"])
	assert.Equal(t, "blurriness", summary["slowest"])
}

func TestRecorder_CloseDrainsQueue(t *testing.T) {
	store := &memStore{}
	rec, err := NewRecorder(store, testLogger())
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		rec.Record(context.Background(), sampleVerdict("req"))
	}
	require.NoError(t, rec.Close())

	assert.Len(t, store.snapshot(), 50)
}

func TestRecorder_CloseIsIdempotent(t *testing.T) {
	rec, err := NewRecorder(&memStore{}, testLogger())
	require.NoError(t, err)
	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())
}
