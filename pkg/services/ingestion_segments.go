package services

import (
	"log"
	"time"

	"sales-forecast-api/pkg/models"
)

// セグメント境界は固定の数値閾値。monetary/frequency は入力全体の0.8分位、
// "New" は注文1回かつ直近30日以内の顧客。
const (
	segmentQuantile   = 0.8
	newCustomerWindow = 30 // days
)

// SegmentCustomers 顧客ごとにRFM指標（最終注文からの日数・注文回数・売上合計）を
// 計算し、固定閾値でセグメントに割り当てる。評価時点は入力中の最終注文日。
// 顧客IDが空のレコードは除外する（デフォルトセグメントへの割り当ては行わない）。
// 判定の優先順位: VIP > High Value > Frequent > New > Regular。
func (s *IngestionService) SegmentCustomers(records []models.SalesRecord) (map[string]models.CustomerSegment, error) {
	const op = "segment_customers"

	if len(records) == 0 {
		return nil, models.NewDataError(op, -1, "", "レコードが空です")
	}

	type rfm struct {
		lastOrder time.Time
		frequency int
		monetary  float64
	}
	byCustomer := make(map[string]*rfm)
	var evalDate time.Time
	for _, r := range records {
		if r.OrderDate.After(evalDate) {
			evalDate = r.OrderDate
		}
		if r.CustomerID == "" {
			continue
		}
		c := byCustomer[r.CustomerID]
		if c == nil {
			c = &rfm{}
			byCustomer[r.CustomerID] = c
		}
		if r.OrderDate.After(c.lastOrder) {
			c.lastOrder = r.OrderDate
		}
		c.frequency++
		c.monetary += r.Revenue
	}

	if len(byCustomer) == 0 {
		return map[string]models.CustomerSegment{}, nil
	}

	monetaries := make([]float64, 0, len(byCustomer))
	frequencies := make([]float64, 0, len(byCustomer))
	for _, c := range byCustomer {
		monetaries = append(monetaries, c.monetary)
		frequencies = append(frequencies, float64(c.frequency))
	}
	highMonetary := calculateQuantile(monetaries, segmentQuantile)
	highFrequency := calculateQuantile(frequencies, segmentQuantile)

	segments := make(map[string]models.CustomerSegment, len(byCustomer))
	for id, c := range byCustomer {
		recency := int(evalDate.Sub(c.lastOrder).Hours() / 24)

		var name string
		switch {
		case c.monetary >= highMonetary && float64(c.frequency) >= highFrequency:
			name = "VIP"
		case c.monetary >= highMonetary:
			name = "High Value"
		case float64(c.frequency) >= highFrequency:
			name = "Frequent"
		case c.frequency == 1 && recency <= newCustomerWindow:
			name = "New"
		default:
			name = "Regular"
		}

		segments[id] = models.CustomerSegment{
			CustomerID:  id,
			Segment:     name,
			RecencyDays: recency,
			Frequency:   c.frequency,
			Monetary:    c.monetary,
		}
	}

	log.Printf("👥 [セグメント] %d顧客を割り当てました（monetary閾値: %.0f, frequency閾値: %.0f）",
		len(segments), highMonetary, highFrequency)

	return segments, nil
}
