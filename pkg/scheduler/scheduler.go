package scheduler

import (
	"fmt"
	"log"

	"sales-forecast-api/pkg/loader"
	"sales-forecast-api/pkg/recorder"
	"sales-forecast-api/pkg/services"

	"github.com/robfig/cron/v3"
)

// Scheduler 定期的な売上予測リフレッシュを管理する
type Scheduler struct {
	Cron     *cron.Cron
	Pipeline *services.PipelineService
	Recorder recorder.Recorder
	DataPath string
	Options  services.PipelineOptions
}

// NewScheduler creates a new Scheduler.
func NewScheduler(pipeline *services.PipelineService, rec recorder.Recorder, dataPath string, opts services.PipelineOptions) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(),
		Pipeline: pipeline,
		Recorder: rec,
		DataPath: dataPath,
		Options:  opts,
	}
}

// Register registers the refresh task on the given cron expression.
func (s *Scheduler) Register(refreshCron string) error {
	if _, err := s.Cron.AddFunc(refreshCron, s.refreshTask); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

// RunNow executes the refresh task immediately (for manual trigger / RUN_ON_START).
func (s *Scheduler) RunNow() {
	s.refreshTask()
}

func (s *Scheduler) refreshTask() {
	log.Println("[INFO] running scheduled forecast refresh")

	records, err := loader.LoadFile(s.DataPath)
	if err != nil {
		log.Printf("[ERROR] refresh load %s: %v", s.DataPath, err)
		return
	}

	result, err := s.Pipeline.Run(records, s.Options)
	if err != nil {
		log.Printf("[ERROR] refresh pipeline: %v", err)
		return
	}

	if err := s.Recorder.RecordRun(result); err != nil {
		log.Printf("[ERROR] record run %s: %v", result.RunID, err)
		return
	}

	log.Printf("✅ scheduled refresh complete: run=%s model=%s mae=%.2f r2=%.3f",
		result.RunID, result.ModelKind, result.Report.MAE, result.Report.R2)
}
