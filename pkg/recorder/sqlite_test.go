package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"sales-forecast-api/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	rec, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { rec.Close() })
	return rec
}

func sampleResult(runID string) *models.PipelineResult {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return &models.PipelineResult{
		RunID:       runID,
		ModelKind:   "ensemble",
		SeriesStart: base.AddDate(0, 0, -90),
		SeriesEnd:   base,
		SeriesDays:  91,
		Report: models.EvaluationReport{
			MAE: 12.5, RMSE: 20.1, R2: 0.87, ResidualStd: 18.0, TestRows: 14,
		},
		Forecast: []models.ForecastPoint{
			{Date: base.AddDate(0, 0, 1), Estimate: 100, Lower: 80, Upper: 120},
			{Date: base.AddDate(0, 0, 2), Estimate: 105, Lower: 78, Upper: 132},
		},
		GeneratedAt: time.Now().UTC(),
	}
}

func TestRecordRunAndListRuns(t *testing.T) {
	rec := newTestRecorder(t)

	require.NoError(t, rec.RecordRun(sampleResult("run-1")))
	require.NoError(t, rec.RecordRun(sampleResult("run-2")))

	runs, err := rec.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	for _, run := range runs {
		assert.Equal(t, "ensemble", run.ModelKind)
		assert.Equal(t, 2, run.HorizonDays)
		assert.InDelta(t, 12.5, run.MAE, 1e-9)
		assert.InDelta(t, 0.87, run.R2, 1e-9)
		assert.False(t, run.RecordedAt.IsZero())
	}
}

func TestListRunsLimit(t *testing.T) {
	rec := newTestRecorder(t)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, rec.RecordRun(sampleResult(id)))
	}

	runs, err := rec.ListRuns(2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	// limit 0以下はデフォルトに丸める
	runs, err = rec.ListRuns(0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestListForecastRoundTrip(t *testing.T) {
	rec := newTestRecorder(t)

	result := sampleResult("run-points")
	require.NoError(t, rec.RecordRun(result))

	points, err := rec.ListForecast("run-points")
	require.NoError(t, err)
	require.Len(t, points, 2)

	// 日付昇順で返る
	assert.True(t, points[0].Date.Before(points[1].Date))
	assert.InDelta(t, result.Forecast[0].Estimate, points[0].Estimate, 1e-9)
	assert.InDelta(t, result.Forecast[0].Lower, points[0].Lower, 1e-9)
	assert.InDelta(t, result.Forecast[1].Upper, points[1].Upper, 1e-9)
}

func TestListForecastUnknownRun(t *testing.T) {
	rec := newTestRecorder(t)

	points, err := rec.ListForecast("missing")
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestDuplicateRunIDRejected(t *testing.T) {
	rec := newTestRecorder(t)

	require.NoError(t, rec.RecordRun(sampleResult("dup")))
	assert.Error(t, rec.RecordRun(sampleResult("dup")))
}

func TestNoopRecorder(t *testing.T) {
	rec := NewNoopRecorder()

	assert.NoError(t, rec.RecordRun(sampleResult("x")))

	runs, err := rec.ListRuns(5)
	assert.NoError(t, err)
	assert.Empty(t, runs)

	points, err := rec.ListForecast("x")
	assert.NoError(t, err)
	assert.Empty(t, points)

	assert.NoError(t, rec.Close())
}
