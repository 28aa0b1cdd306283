// Package recorder は完了したパイプライン実行（評価指標と予測テーブル）を
// ダッシュボード等の下流から参照できるよう永続化する。
package recorder

import "sales-forecast-api/pkg/models"

// Recorder persists completed forecast runs for later analysis.
type Recorder interface {
	RecordRun(result *models.PipelineResult) error
	ListRuns(limit int) ([]models.RecordedRun, error)
	ListForecast(runID string) ([]models.ForecastPoint, error)
	Close() error
}
