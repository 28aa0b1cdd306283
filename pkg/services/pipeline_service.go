package services

import (
	"log"
	"time"

	"sales-forecast-api/pkg/models"

	"github.com/google/uuid"
)

// PipelineOptions 1回のパイプライン実行の設定。
type PipelineOptions struct {
	HorizonDays      int       `json:"horizon_days"`
	ModelKind        ModelKind `json:"model_kind"`
	OutlierThreshold float64   `json:"outlier_threshold"`
	MinTrainingRows  int       `json:"min_training_rows"`
	ConfidenceLevel  float64   `json:"confidence_level"`
	RandomSeed       int64     `json:"random_seed"`
}

// DefaultPipelineOptions 既定値のオプションを返す。
func DefaultPipelineOptions() PipelineOptions {
	return PipelineOptions{
		HorizonDays:      30,
		ModelKind:        ModelEnsemble,
		OutlierThreshold: 3.0,
		MinTrainingRows:  DefaultMinTrainingRows,
		ConfidenceLevel:  0.90,
		RandomSeed:       42,
	}
}

// Validate 設定値の範囲チェック。範囲外は ValidationError。
func (o PipelineOptions) Validate() error {
	if o.HorizonDays < 1 || o.HorizonDays > 365 {
		return models.NewValidationError("horizon_days", "1〜365の範囲で指定してください")
	}
	if o.ModelKind != ModelEnsemble && o.ModelKind != ModelLinear {
		return models.NewValidationError("model_kind", "ensemble または linear を指定してください")
	}
	if o.OutlierThreshold <= 0 {
		return models.NewValidationError("outlier_threshold", "0より大きい値を指定してください")
	}
	if o.MinTrainingRows < 2 {
		return models.NewValidationError("min_training_rows", "2以上を指定してください")
	}
	switch o.ConfidenceLevel {
	case 0.90, 0.95, 0.99:
	default:
		return models.NewValidationError("confidence_level", "0.90 / 0.95 / 0.99 のいずれかを指定してください")
	}
	return nil
}

// PipelineService クレンジング → 系列構築 → 特徴量 → 学習/評価 → 予測 を
// 順に実行するオーケストレーター。学習済みモデルと予測テーブルのライフ
// サイクルはこのサービスが所有する。いずれかの段階が失敗したら即座に
// 中断して最初のエラーをそのまま返す（部分結果での復旧は行わない —
// 壊れた特徴量の上に築いた予測は静かに間違うため）。リトライもしない
// （同じ入力からは同じ結果しか出ない）。
type PipelineService struct {
	ingestion *IngestionService
}

// NewPipelineService 新しいパイプラインサービスを作成
func NewPipelineService(ingestion *IngestionService) *PipelineService {
	return &PipelineService{ingestion: ingestion}
}

// Run パイプライン全体を実行して成果物一式を返す。
// 実行は (入力レコード, オプション, シード) の決定的関数になる。
func (p *PipelineService) Run(raw []models.RawSalesRecord, opts PipelineOptions) (*models.PipelineResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	runID := uuid.New().String()
	log.Printf("🚀 [パイプライン %s] 実行開始（%d行, モデル: %s, 期間: %d日）",
		runID[:8], len(raw), opts.ModelKind, opts.HorizonDays)

	records, cleaning, err := p.ingestion.LoadAndClean(raw)
	if err != nil {
		return nil, err
	}

	series, err := p.ingestion.BuildTimeSeries(records)
	if err != nil {
		return nil, err
	}

	features, err := p.ingestion.EngineerFeatures(series)
	if err != nil {
		return nil, err
	}

	outliers := p.ingestion.DetectOutliers(series, opts.OutlierThreshold)

	segments, err := p.ingestion.SegmentCustomers(records)
	if err != nil {
		return nil, err
	}

	forecaster := NewForecasterService(opts.MinTrainingRows)

	train, test, err := forecaster.PrepareTrainingData(features, series)
	if err != nil {
		return nil, err
	}

	model, err := forecaster.Train(train, opts.ModelKind, opts.RandomSeed)
	if err != nil {
		return nil, err
	}

	report, err := forecaster.Evaluate(model, test)
	if err != nil {
		return nil, err
	}

	forecast, err := forecaster.Forecast(model, series, opts.HorizonDays, opts.ConfidenceLevel, report.ResidualStd)
	if err != nil {
		return nil, err
	}

	baseline, err := forecaster.MovingAverageForecast(series, opts.HorizonDays, shortWindow, opts.ConfidenceLevel)
	if err != nil {
		return nil, err
	}

	result := &models.PipelineResult{
		RunID:           runID,
		ModelKind:       string(opts.ModelKind),
		Cleaning:        *cleaning,
		SeriesStart:     series[0].Date,
		SeriesEnd:       series[len(series)-1].Date,
		SeriesDays:      len(series),
		Report:          *report,
		Forecast:        forecast,
		Baseline:        baseline,
		Outliers:        outliers,
		Segments:        segments,
		CategorySummary: p.ingestion.SummarizeByCategory(records),
		RegionSummary:   p.ingestion.SummarizeByRegion(records),
		GeneratedAt:     time.Now().UTC(),
	}

	log.Printf("🎉 [パイプライン %s] 完了（所要時間: %v, R²=%.3f）", runID[:8], time.Since(start), report.R2)

	return result, nil
}
