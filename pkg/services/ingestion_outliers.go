package services

import (
	"log"
	"math"

	"sales-forecast-api/pkg/models"
)

const (
	outlierWindow    = 30 // 外れ値判定に使う直前窓の最大長
	outlierMinPoints = 7  // 判定に必要な最低履歴点数
)

// DetectOutliers 直前窓の移動平均からの乖離（Zスコア）で外れ値を判定する。
// threshold は標準偏差の倍数（0以下ならデフォルト3.0）。あくまで注釈であり、
// 系列からの除去は行わない（時間的連続性を保つため）。
func (s *IngestionService) DetectOutliers(series []models.TimeSeriesPoint, threshold float64) []models.OutlierFlag {
	if threshold <= 0 {
		threshold = 3.0
	}

	flags := make([]models.OutlierFlag, 0, len(series))
	flaggedCount := 0

	for i, point := range series {
		flag := models.OutlierFlag{Date: point.Date, Value: point.Revenue}

		// 当日を含まない直前窓で期待値と散らばりを計算
		start := i - outlierWindow
		if start < 0 {
			start = 0
		}
		window := make([]float64, 0, i-start)
		for j := start; j < i; j++ {
			window = append(window, series[j].Revenue)
		}

		if len(window) >= outlierMinPoints {
			mean := calculateMean(window)
			stdDev := calculateStandardDeviation(window)
			if stdDev > 0 {
				flag.ZScore = (point.Revenue - mean) / stdDev
				if math.Abs(flag.ZScore) > threshold {
					flag.Flagged = true
					flaggedCount++
				}
			}
		}

		flags = append(flags, flag)
	}

	log.Printf("🔍 [外れ値検知] %d点中 %d点をフラグしました（閾値: %.1fσ）", len(series), flaggedCount, threshold)

	return flags
}
