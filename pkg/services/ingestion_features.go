package services

import (
	"log"
	"time"

	"sales-forecast-api/pkg/models"
)

const (
	shortWindow = 7
	longWindow  = 30

	// featureWarmup 最長のラグ/ローリング窓。これより前の行は完全な履歴を
	// 持てないため、補完せずに落とす（将来データからの補間は行わない）。
	featureWarmup = longWindow
)

// EngineerFeatures 日次系列からモデル学習用の特徴量行列を構築する。
// カレンダー特徴・ラグ特徴（t−1, t−7, t−30）・ローリング統計（7/30日）を
// 計算する。ローリング窓は当日を含まない直前の値のみを使う（目的変数の
// 混入を防ぐため）。先頭 featureWarmup 行は履歴不足のため出力しない。
func (s *IngestionService) EngineerFeatures(series []models.TimeSeriesPoint) ([]models.FeatureVector, error) {
	const op = "engineer_features"

	if len(series) <= featureWarmup {
		return nil, models.NewDataError(op, -1, "",
			"系列が短すぎます（ラグ特徴量には最低31日分が必要です）")
	}

	revenues := make([]float64, len(series))
	for i, p := range series {
		revenues[i] = p.Revenue
	}

	features := make([]models.FeatureVector, 0, len(series)-featureWarmup)
	for i := featureWarmup; i < len(series); i++ {
		features = append(features, models.FeatureVector{
			Date:   series[i].Date,
			Values: featureRow(series[i].Date, revenues[:i]),
		})
	}

	log.Printf("🧮 [特徴量] %d行 × %d列を構築しました（ウォームアップ %d日を除外）",
		len(features), len(models.FeatureNames()), featureWarmup)

	return features, nil
}

// featureRow 対象日のカレンダー特徴と、history（対象日より前の売上列）から
// 計算したラグ・ローリング特徴を FeatureNames() の並びで返す。
// 再帰予測でも同じ関数を使い、学習時と予測時の特徴定義を一致させる。
func featureRow(date time.Time, history []float64) []float64 {
	n := len(history)
	isWeekend := 0.0
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		isWeekend = 1.0
	}
	shortTail := history[n-shortWindow:]
	longTail := history[n-longWindow:]
	return []float64{
		float64(date.Weekday()),
		float64(date.Month()),
		isWeekend,
		history[n-1],
		history[n-shortWindow],
		history[n-longWindow],
		calculateMean(shortTail),
		calculateStandardDeviation(shortTail),
		calculateMean(longTail),
		calculateStandardDeviation(longTail),
	}
}
