package recorder

import "sales-forecast-api/pkg/models"

// NoopRecorder 何も保存しないRecorder。永続化を無効にした構成で使う。
type NoopRecorder struct{}

// NewNoopRecorder creates a recorder that discards everything.
func NewNoopRecorder() *NoopRecorder {
	return &NoopRecorder{}
}

func (r *NoopRecorder) RecordRun(result *models.PipelineResult) error { return nil }

func (r *NoopRecorder) ListRuns(limit int) ([]models.RecordedRun, error) { return nil, nil }

func (r *NoopRecorder) ListForecast(runID string) ([]models.ForecastPoint, error) { return nil, nil }

func (r *NoopRecorder) Close() error { return nil }
