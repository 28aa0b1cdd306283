package services

import (
	"log"
	"math"
	"sort"
	"time"

	"sales-forecast-api/pkg/models"
)

// 入力の日付形式は 日/月/年 固定（売上データのエクスポート形式）。
var orderDateLayouts = []string{"02/01/2006", "2/1/2006"}

// IngestionService 売上データの取り込みと特徴量エンジニアリングを担当するサービス
type IngestionService struct{}

// NewIngestionService 新しい取り込みサービスを作成
func NewIngestionService() *IngestionService {
	return &IngestionService{}
}

// LoadAndClean 生レコードをクレンジングして正規化済みのSalesRecordに変換する。
// 欠損数値は列中央値、欠損カテゴリは列最頻値で補完し、数量が0以下の行は
// 異常としてカウントした上で除外する（処理は中断しない）。
func (s *IngestionService) LoadAndClean(raw []models.RawSalesRecord) ([]models.SalesRecord, *models.CleaningSummary, error) {
	const op = "load_and_clean"

	if len(raw) == 0 {
		return nil, nil, models.NewDataError(op, -1, "", "入力が空です")
	}

	// 必須列の存在チェック（全行で欠損している列は「列が無い」とみなす）
	hasDate, hasQuantity, hasPrice := false, false, false
	for _, r := range raw {
		if r.OrderDate != "" {
			hasDate = true
		}
		if r.Quantity != nil {
			hasQuantity = true
		}
		if r.UnitPrice != nil {
			hasPrice = true
		}
	}
	if !hasDate {
		return nil, nil, models.NewDataError(op, -1, "order_date", "必須列が存在しません")
	}
	if !hasQuantity {
		return nil, nil, models.NewDataError(op, -1, "quantity", "必須列が存在しません")
	}
	if !hasPrice {
		return nil, nil, models.NewDataError(op, -1, "unit_price", "必須列が存在しません")
	}

	// 補完用の統計量を先に計算（数値は中央値、カテゴリは最頻値）
	var quantities, prices []float64
	categoryCounts := make(map[string]int)
	regionCounts := make(map[string]int)
	for _, r := range raw {
		if r.Quantity != nil {
			quantities = append(quantities, *r.Quantity)
		}
		if r.UnitPrice != nil {
			prices = append(prices, *r.UnitPrice)
		}
		if r.Category != "" {
			categoryCounts[r.Category]++
		}
		if r.Region != "" {
			regionCounts[r.Region]++
		}
	}
	medianQuantity := calculateMedian(quantities)
	medianPrice := calculateMedian(prices)
	modeCategory := modeOf(categoryCounts)
	modeRegion := modeOf(regionCounts)

	summary := &models.CleaningSummary{InputRows: len(raw)}
	records := make([]models.SalesRecord, 0, len(raw))

	for i, r := range raw {
		orderDate, err := parseOrderDate(r.OrderDate)
		if err != nil {
			return nil, nil, models.NewDataError(op, i, "order_date", "日付を解析できません: "+r.OrderDate)
		}

		quantity := medianQuantity
		if r.Quantity != nil {
			quantity = *r.Quantity
		} else {
			summary.ImputedNumeric++
		}
		unitPrice := medianPrice
		if r.UnitPrice != nil {
			unitPrice = *r.UnitPrice
		} else {
			summary.ImputedNumeric++
		}
		discount := 0.0
		if r.Discount != nil {
			discount = *r.Discount
		}
		if discount < 0 || discount > 1 {
			return nil, nil, models.NewDataError(op, i, "discount", "割引率は[0,1]の範囲でなければなりません")
		}

		// 数量0以下は異常として除外（ハードエラーにはしない）
		if quantity <= 0 {
			summary.RejectedQuantities++
			continue
		}

		category := r.Category
		if category == "" {
			category = modeCategory
			summary.ImputedCategorical++
		}
		region := r.Region
		if region == "" {
			region = modeRegion
			summary.ImputedCategorical++
		}
		segment := r.CustomerSegment
		if segment == "" {
			segment = "Unknown"
		}

		qty := int(math.Round(quantity))
		revenue := float64(qty) * unitPrice * (1 - discount)

		records = append(records, models.SalesRecord{
			OrderDate:       orderDate,
			Category:        category,
			CustomerID:      r.CustomerID,
			CustomerSegment: segment,
			Region:          region,
			Quantity:        qty,
			UnitPrice:       unitPrice,
			Discount:        discount,
			Revenue:         revenue,
			Profit:          revenue * profitMargin,
		})
	}

	if len(records) == 0 {
		return nil, nil, models.NewDataError(op, -1, "quantity", "有効な行が残りませんでした")
	}

	summary.CleanRows = len(records)
	log.Printf("📂 [取り込み] %d行 → %d行（数値補完: %d, カテゴリ補完: %d, 数量異常で除外: %d）",
		summary.InputRows, summary.CleanRows, summary.ImputedNumeric, summary.ImputedCategorical, summary.RejectedQuantities)

	return records, summary, nil
}

// profitMargin 粗利計算に使う固定利益率
const profitMargin = 0.2

// BuildTimeSeries 日次の売上系列を構築する。取引の無い日は0埋めし、
// 日付が厳密に単調増加する欠損なしの系列を返す（ラグ特徴量の前提条件）。
func (s *IngestionService) BuildTimeSeries(records []models.SalesRecord) ([]models.TimeSeriesPoint, error) {
	const op = "build_time_series"

	if len(records) == 0 {
		return nil, models.NewDataError(op, -1, "", "レコードが空です")
	}

	type dayAgg struct {
		revenue float64
		profit  float64
		orders  int
	}
	byDay := make(map[time.Time]*dayAgg)
	var minDate, maxDate time.Time
	for _, r := range records {
		day := truncateToDay(r.OrderDate)
		if minDate.IsZero() || day.Before(minDate) {
			minDate = day
		}
		if maxDate.IsZero() || day.After(maxDate) {
			maxDate = day
		}
		agg := byDay[day]
		if agg == nil {
			agg = &dayAgg{}
			byDay[day] = agg
		}
		agg.revenue += r.Revenue
		agg.profit += r.Profit
		agg.orders++
	}

	var series []models.TimeSeriesPoint
	for day := minDate; !day.After(maxDate); day = day.AddDate(0, 0, 1) {
		point := models.TimeSeriesPoint{Date: day}
		if agg, ok := byDay[day]; ok {
			point.Revenue = agg.revenue
			point.Profit = agg.profit
			point.OrderCount = agg.orders
		}
		series = append(series, point)
	}

	log.Printf("📈 [系列構築] %s 〜 %s の %d日分（取引あり: %d日）",
		minDate.Format("2006-01-02"), maxDate.Format("2006-01-02"), len(series), len(byDay))

	return series, nil
}

// SummarizeByCategory カテゴリ別の売上集計を返す（売上降順）。
func (s *IngestionService) SummarizeByCategory(records []models.SalesRecord) []models.CategorySummary {
	return summarizeBy(records, func(r models.SalesRecord) string { return r.Category })
}

// SummarizeByRegion 地域別の売上集計を返す（売上降順）。
func (s *IngestionService) SummarizeByRegion(records []models.SalesRecord) []models.CategorySummary {
	return summarizeBy(records, func(r models.SalesRecord) string { return r.Region })
}

func summarizeBy(records []models.SalesRecord, keyFn func(models.SalesRecord) string) []models.CategorySummary {
	byKey := make(map[string]*models.CategorySummary)
	for _, r := range records {
		key := keyFn(r)
		sum := byKey[key]
		if sum == nil {
			sum = &models.CategorySummary{Name: key}
			byKey[key] = sum
		}
		sum.Revenue += r.Revenue
		sum.Profit += r.Profit
		sum.OrderCount++
	}
	out := make([]models.CategorySummary, 0, len(byKey))
	for _, sum := range byKey {
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func parseOrderDate(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range orderDateLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func modeOf(counts map[string]int) string {
	best := ""
	bestCount := 0
	for v, c := range counts {
		if c > bestCount || (c == bestCount && v < best) {
			best = v
			bestCount = c
		}
	}
	if best == "" {
		return "Unknown"
	}
	return best
}
