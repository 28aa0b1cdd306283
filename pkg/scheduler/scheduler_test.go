package scheduler

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sales-forecast-api/pkg/models"
	"sales-forecast-api/pkg/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureRecorder 記録された実行をメモリに保持するテスト用Recorder
type captureRecorder struct {
	runs []*models.PipelineResult
}

func (r *captureRecorder) RecordRun(result *models.PipelineResult) error {
	r.runs = append(r.runs, result)
	return nil
}

func (r *captureRecorder) ListRuns(limit int) ([]models.RecordedRun, error) { return nil, nil }

func (r *captureRecorder) ListForecast(runID string) ([]models.ForecastPoint, error) {
	return nil, nil
}

func (r *captureRecorder) Close() error { return nil }

func writeTestCSV(t *testing.T, days int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.csv")

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	fmt.Fprintln(f, "order_date,category,customer_id,region,quantity,unit_price")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < days; i++ {
		fmt.Fprintf(f, "%s,Books,C%03d,East,1,%.0f\n",
			base.AddDate(0, 0, i).Format("02/01/2006"), i%10, 100+2*float64(i))
	}
	return path
}

func testPipeline() *services.PipelineService {
	return services.NewPipelineService(services.NewIngestionService())
}

func testOptions() services.PipelineOptions {
	opts := services.DefaultPipelineOptions()
	opts.HorizonDays = 7
	opts.ModelKind = services.ModelLinear
	return opts
}

func TestRunNowRecordsRun(t *testing.T) {
	rec := &captureRecorder{}
	path := writeTestCSV(t, 90)

	sched := NewScheduler(testPipeline(), rec, path, testOptions())
	sched.RunNow()

	require.Len(t, rec.runs, 1)
	assert.NotEmpty(t, rec.runs[0].RunID)
	assert.Len(t, rec.runs[0].Forecast, 7)
}

func TestRunNowMissingFileDoesNotRecord(t *testing.T) {
	rec := &captureRecorder{}

	sched := NewScheduler(testPipeline(), rec, "/nonexistent/sales.csv", testOptions())
	sched.RunNow()

	assert.Empty(t, rec.runs)
}

func TestRegisterInvalidCron(t *testing.T) {
	sched := NewScheduler(testPipeline(), &captureRecorder{}, "sales.csv", testOptions())

	assert.Error(t, sched.Register("not a cron expression"))
	assert.NoError(t, sched.Register("0 6 * * *"))
}
