package models

import "time"

// RawSalesRecord 取り込み前の1トランザクション（外部入力のままの形）。
// 数値フィールドは欠損を表現できるようポインタで持つ。
type RawSalesRecord struct {
	OrderDate       string   `json:"order_date"` // 日/月/年 形式（例: "14/03/2023"）
	Category        string   `json:"category"`
	CustomerID      string   `json:"customer_id"`
	CustomerSegment string   `json:"customer_segment,omitempty"`
	Region          string   `json:"region"`
	Quantity        *float64 `json:"quantity"`
	UnitPrice       *float64 `json:"unit_price"`
	Discount        *float64 `json:"discount,omitempty"` // [0,1]、欠損時は0
}

// SalesRecord represents a single cleaned sales transaction.
type SalesRecord struct {
	OrderDate       time.Time `json:"order_date"`
	Category        string    `json:"category"`
	CustomerID      string    `json:"customer_id"`
	CustomerSegment string    `json:"customer_segment"`
	Region          string    `json:"region"`
	Quantity        int       `json:"quantity"`
	UnitPrice       float64   `json:"unit_price"`
	Discount        float64   `json:"discount"`
	Revenue         float64   `json:"revenue"` // quantity × unit_price × (1 − discount)
	Profit          float64   `json:"profit"`  // 売上の20%（固定マージン）
}

// CleaningSummary クレンジング処理の結果サマリー。
// 補完・除外はデータとして記録し、処理は中断しない。
type CleaningSummary struct {
	InputRows          int `json:"input_rows"`
	CleanRows          int `json:"clean_rows"`
	ImputedNumeric     int `json:"imputed_numeric"`     // 中央値で補完した数値フィールド数
	ImputedCategorical int `json:"imputed_categorical"` // 最頻値で補完したカテゴリフィールド数
	RejectedQuantities int `json:"rejected_quantities"` // 数量が0以下で除外した行数
}

// TimeSeriesPoint represents one calendar-day aggregate of the sales series.
// Dates are strictly increasing with zero-activity days filled in.
type TimeSeriesPoint struct {
	Date       time.Time `json:"date"`
	Revenue    float64   `json:"revenue"`
	Profit     float64   `json:"profit"`
	OrderCount int       `json:"order_count"`
}

// FeatureVector 1学習行分の特徴量。TimeSeriesPoint と1:1で対応する。
// FeatureNames() の並びと Values の並びは常に一致する。
type FeatureVector struct {
	Date   time.Time `json:"date"`
	Values []float64 `json:"values"`
}

// FeatureNames returns the fixed feature schema, in column order.
// モデルバージョンごとに固定。学習と予測で同一でなければならない。
func FeatureNames() []string {
	return []string{
		"day_of_week",
		"month",
		"is_weekend",
		"lag_1",
		"lag_7",
		"lag_30",
		"rolling_mean_7",
		"rolling_std_7",
		"rolling_mean_30",
		"rolling_std_30",
	}
}

// OutlierFlag 1日分の外れ値判定。あくまで注釈であり、系列からの除去は行わない。
type OutlierFlag struct {
	Date    time.Time `json:"date"`
	Value   float64   `json:"value"`
	ZScore  float64   `json:"z_score"`
	Flagged bool      `json:"flagged"`
}

// CustomerSegment RFM指標に基づく顧客セグメント。
type CustomerSegment struct {
	CustomerID  string  `json:"customer_id"`
	Segment     string  `json:"segment"`      // "VIP", "High Value", "Frequent", "New", "Regular"
	RecencyDays int     `json:"recency_days"` // 最終注文からの経過日数
	Frequency   int     `json:"frequency"`    // 注文回数
	Monetary    float64 `json:"monetary"`     // 売上合計
}

// ForecastPoint represents one predicted future day with confidence bounds.
// Invariant: Lower ≤ Estimate ≤ Upper.
type ForecastPoint struct {
	Date     time.Time `json:"date"`
	Estimate float64   `json:"point_estimate"`
	Lower    float64   `json:"lower_bound"`
	Upper    float64   `json:"upper_bound"`
}

// FeatureScore 特徴量重要度の1エントリ。
type FeatureScore struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// EvaluationReport 学習済みモデルのホールドアウト評価結果。
type EvaluationReport struct {
	MAE               float64        `json:"mae"`
	RMSE              float64        `json:"rmse"`
	R2                float64        `json:"r2"`
	ResidualStd       float64        `json:"residual_std"` // 予測区間の幅に使う残差標準偏差
	TestRows          int            `json:"test_rows"`
	FeatureImportance []FeatureScore `json:"feature_importance"` // スコア降順
}

// CategorySummary カテゴリ/地域別の売上集計。
type CategorySummary struct {
	Name       string  `json:"name"`
	Revenue    float64 `json:"revenue"`
	Profit     float64 `json:"profit"`
	OrderCount int     `json:"order_count"`
}

// PipelineResult 1回のパイプライン実行の成果物一式。
// 学習済みモデルと予測テーブルのライフサイクルはオーケストレーターが所有する。
type PipelineResult struct {
	RunID           string                     `json:"run_id"`
	ModelKind       string                     `json:"model_kind"`
	Cleaning        CleaningSummary            `json:"cleaning"`
	SeriesStart     time.Time                  `json:"series_start"`
	SeriesEnd       time.Time                  `json:"series_end"`
	SeriesDays      int                        `json:"series_days"`
	Report          EvaluationReport           `json:"report"`
	Forecast        []ForecastPoint            `json:"forecast"`
	Baseline        []ForecastPoint            `json:"baseline"` // 移動平均ベースライン（比較用）
	Outliers        []OutlierFlag              `json:"outliers"`
	Segments        map[string]CustomerSegment `json:"segments"`
	CategorySummary []CategorySummary          `json:"category_summary"`
	RegionSummary   []CategorySummary          `json:"region_summary"`
	GeneratedAt     time.Time                  `json:"generated_at"`
}

// ForecastRunRequest /forecast/run リクエストボディ。
type ForecastRunRequest struct {
	Records         []RawSalesRecord `json:"records" binding:"required"`
	HorizonDays     int              `json:"horizon_days,omitempty"`
	ModelKind       string           `json:"model_kind,omitempty"` // "ensemble" or "linear"
	ConfidenceLevel float64          `json:"confidence_level,omitempty"`
	RandomSeed      *int64           `json:"random_seed,omitempty"`
}

// ForecastRunResponse /forecast/run レスポンス。
type ForecastRunResponse struct {
	Success bool            `json:"success"`
	Cached  bool            `json:"cached"`
	Result  *PipelineResult `json:"result,omitempty"`
	Message string          `json:"message,omitempty"`
}

// RecordedRun 保存済み実行履歴の1件（recorder から読み出す形）。
type RecordedRun struct {
	RunID       string    `json:"run_id"`
	ModelKind   string    `json:"model_kind"`
	SeriesEnd   time.Time `json:"series_end"`
	HorizonDays int       `json:"horizon_days"`
	MAE         float64   `json:"mae"`
	RMSE        float64   `json:"rmse"`
	R2          float64   `json:"r2"`
	RecordedAt  time.Time `json:"recorded_at"`
}
