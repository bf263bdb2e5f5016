package report

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/immune"
)

type fakeStore struct {
	mu      sync.Mutex
	metrics []domain.GenerationMetrics
	err     error
}

func (s *fakeStore) InsertGenerationMetrics(metrics *domain.GenerationMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	s.metrics = append(s.metrics, *metrics)
	return nil
}

func sampleMetrics(generation int) domain.GenerationMetrics {
	return domain.GenerationMetrics{
		Generation:  generation,
		MinFitness:  float64(1000 - generation),
		AvgFitness:  float64(1200 - generation),
		AvgAffinity: 12.5,
	}
}

func TestLogReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogReporter(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, r.Report(context.Background(), sampleMetrics(3)))
	assert.Contains(t, buf.String(), "generation=3")
	assert.Contains(t, buf.String(), "minFitness=997")
}

func TestRepositoryReporterFillsRunID(t *testing.T) {
	store := &fakeStore{}
	r := NewRepositoryReporter(store, 42)

	require.NoError(t, r.Report(context.Background(), sampleMetrics(1)))
	require.NoError(t, r.Report(context.Background(), sampleMetrics(2)))

	require.Len(t, store.metrics, 2)
	for _, m := range store.metrics {
		assert.Equal(t, int64(42), m.RunID)
	}
}

func TestMultiReportsToEverySink(t *testing.T) {
	first := &fakeStore{}
	second := &fakeStore{}
	plot := NewPlotReporter("test")

	var multi immune.Reporter = Multi{
		NewRepositoryReporter(first, 1),
		NewRepositoryReporter(second, 2),
		plot,
		nil,
	}

	for gen := 1; gen <= 5; gen++ {
		require.NoError(t, multi.Report(context.Background(), sampleMetrics(gen)))
	}
	assert.Len(t, first.metrics, 5)
	assert.Len(t, second.metrics, 5)
	assert.Len(t, plot.metrics, 5)
}

func TestMultiJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	ok := &fakeStore{}

	multi := Multi{
		NewRepositoryReporter(&fakeStore{err: boom}, 1),
		NewRepositoryReporter(ok, 1),
	}

	err := multi.Report(context.Background(), sampleMetrics(1))
	require.ErrorIs(t, err, boom)
	assert.Len(t, ok.metrics, 1)
}

func TestPlotReporterSave(t *testing.T) {
	plot := NewPlotReporter("optimization progress")
	path := filepath.Join(t.TempDir(), "progress.pdf")

	require.Error(t, plot.Save(path))

	for gen := 1; gen <= 10; gen++ {
		require.NoError(t, plot.Report(context.Background(), sampleMetrics(gen)))
	}
	require.NoError(t, plot.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestProgressKey(t *testing.T) {
	assert.Equal(t, "run_7_progress", ProgressKey(7))
}
