package services

import (
	"fmt"
	"log"
	"math"

	"sales-forecast-api/pkg/models"
)

// Forecast 観測系列の翌日から horizon 日分を再帰的に予測する。
// 各ステップの特徴量は学習時と同じ featureRow で構築し、観測範囲を超える
// ラグには実測値ではなくモデル自身の過去の予測値を使う（自己回帰）。
// 信頼区間はホールドアウト残差の標準偏差から z·σ·√h で構成し、ステップが
// 進むほど広がる（再帰予測の不確実性の累積を反映）。
func (f *ForecasterService) Forecast(model *TrainedModel, series []models.TimeSeriesPoint, horizon int, confidence float64, residualStd float64) ([]models.ForecastPoint, error) {
	const op = "forecast"

	if model == nil || model.reg == nil {
		return nil, models.NewModelError(op, "モデルが学習されていません", nil)
	}
	if horizon <= 0 {
		return nil, models.NewValidationError("horizon_days", "予測期間は1日以上でなければなりません")
	}
	if len(series) < longWindow {
		return nil, models.NewDataError(op, -1, "",
			fmt.Sprintf("観測系列が短すぎます（%d日 < 最低%d日）", len(series), longWindow))
	}
	if err := checkSchema(model, models.FeatureNames()); err != nil {
		return nil, err
	}
	if confidence == 0 {
		confidence = 0.90
	}

	// 実測値で初期化した履歴バッファ。以降は予測値を積んでいく。
	history := make([]float64, 0, len(series)+horizon)
	for _, p := range series {
		history = append(history, p.Revenue)
	}
	lastDate := truncateToDay(series[len(series)-1].Date)

	z := zScoreForConfidence(confidence)
	points := make([]models.ForecastPoint, 0, horizon)

	for h := 1; h <= horizon; h++ {
		date := lastDate.AddDate(0, 0, h)
		estimate := model.reg.predictRow(featureRow(date, history))
		estimate = math.Max(0, estimate) // 売上は負にならない

		margin := z * residualStd * math.Sqrt(float64(h))
		points = append(points, models.ForecastPoint{
			Date:     date,
			Estimate: estimate,
			Lower:    math.Max(0, estimate-margin),
			Upper:    estimate + margin,
		})

		history = append(history, estimate)
	}

	log.Printf("🔮 [予測] %s から %d日分を予測しました（信頼水準 %.0f%%）",
		points[0].Date.Format("2006-01-02"), horizon, confidence*100)

	return points, nil
}

// MovingAverageForecast 直近 window 日の平均をそのまま先に延ばす移動平均
// ベースライン。window が0以下なら7日。
// 区間は窓内の標準偏差から構成する。
func (f *ForecasterService) MovingAverageForecast(series []models.TimeSeriesPoint, horizon, window int, confidence float64) ([]models.ForecastPoint, error) {
	const op = "moving_average_forecast"

	if horizon <= 0 {
		return nil, models.NewValidationError("horizon_days", "予測期間は1日以上でなければなりません")
	}
	if window <= 0 {
		window = shortWindow
	}
	if len(series) < window {
		return nil, models.NewDataError(op, -1, "",
			fmt.Sprintf("観測系列が短すぎます（%d日 < 窓%d日）", len(series), window))
	}
	if confidence == 0 {
		confidence = 0.90
	}

	tail := make([]float64, 0, window)
	for _, p := range series[len(series)-window:] {
		tail = append(tail, p.Revenue)
	}
	estimate := math.Max(0, calculateMean(tail))
	stdDev := calculateStandardDeviation(tail)
	z := zScoreForConfidence(confidence)
	lastDate := truncateToDay(series[len(series)-1].Date)

	points := make([]models.ForecastPoint, 0, horizon)
	for h := 1; h <= horizon; h++ {
		margin := z * stdDev * math.Sqrt(float64(h))
		points = append(points, models.ForecastPoint{
			Date:     lastDate.AddDate(0, 0, h),
			Estimate: estimate,
			Lower:    math.Max(0, estimate-margin),
			Upper:    estimate + margin,
		})
	}
	return points, nil
}
