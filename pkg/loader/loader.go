// Package loader はCSV/Excelファイルから生の売上レコード列を読み取る薄い
// 入力ラッパー。列名の検出と値の取り出しだけを行い、クレンジングや検証は
// コア（IngestionService）に委ねる。
package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"sales-forecast-api/pkg/models"

	"github.com/xuri/excelize/v2"
)

// ParseFile 拡張子でフォーマットを判別してレコード列を読み取る。
func ParseFile(fileName string, r io.Reader) ([]models.RawSalesRecord, error) {
	lower := strings.ToLower(fileName)
	switch {
	case strings.HasSuffix(lower, ".xlsx"):
		return ParseXLSX(r)
	case strings.HasSuffix(lower, ".csv"):
		return ParseCSV(r)
	default:
		return nil, fmt.Errorf("サポートされていないファイル形式です: %s（.csv または .xlsx を指定してください）", fileName)
	}
}

// LoadFile パスからファイルを開いて読み取る（スケジューラー・CLI用）。
func LoadFile(path string) ([]models.RawSalesRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ファイルを開けません: %w", err)
	}
	defer f.Close()
	return ParseFile(path, f)
}

// ParseCSV CSVからレコード列を読み取る。
func ParseCSV(r io.Reader) ([]models.RawSalesRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("CSVの解析に失敗しました: %w", err)
	}
	return parseRows(rows)
}

// ParseXLSX Excelブックの先頭シートからレコード列を読み取る。
func ParseXLSX(r io.Reader) ([]models.RawSalesRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("Excelファイルの読み込みに失敗しました: %w", err)
	}
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("Excelシートの行取得に失敗しました: %w", err)
	}
	return parseRows(rows)
}

// parseRows ヘッダー行から列を検出し、各行を RawSalesRecord に変換する。
// 列の並びは問わない。必須列（日付・数量・単価）が無ければ DataError。
func parseRows(rows [][]string) ([]models.RawSalesRecord, error) {
	const op = "parse_rows"

	if len(rows) < 2 {
		return nil, models.NewDataError(op, -1, "", "ヘッダー行と最低1行のデータが必要です")
	}

	header := rows[0]
	dateCol := findIndex(header, "order_date", "date", "日付", "注文日")
	categoryCol := findIndex(header, "category", "カテゴリ", "カテゴリー")
	customerCol := findIndex(header, "customer_id", "customer", "顧客ID", "顧客id")
	segmentCol := findIndex(header, "customer_segment", "segment", "セグメント")
	regionCol := findIndex(header, "region", "地域")
	quantityCol := findIndex(header, "quantity", "数量", "販売数")
	priceCol := findIndex(header, "unit_price", "price", "単価")
	discountCol := findIndex(header, "discount", "割引", "割引率")

	var missing []string
	if dateCol == -1 {
		missing = append(missing, "order_date")
	}
	if quantityCol == -1 {
		missing = append(missing, "quantity")
	}
	if priceCol == -1 {
		missing = append(missing, "unit_price")
	}
	if len(missing) > 0 {
		return nil, models.NewDataError(op, -1, strings.Join(missing, ","),
			"必要な列が見つかりませんでした。ヘッダー: "+strings.Join(header, ", "))
	}

	records := make([]models.RawSalesRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		record := models.RawSalesRecord{
			OrderDate:       cell(row, dateCol),
			Category:        cell(row, categoryCol),
			CustomerID:      cell(row, customerCol),
			CustomerSegment: cell(row, segmentCol),
			Region:          cell(row, regionCol),
			Quantity:        numericCell(row, quantityCol),
			UnitPrice:       numericCell(row, priceCol),
			Discount:        numericCell(row, discountCol),
		}
		records = append(records, record)
	}
	return records, nil
}

// findIndex ヘッダーから候補名のいずれかに一致する列を探す（大文字小文字・
// 前後空白は無視）。見つからなければ -1。
func findIndex(header []string, candidates ...string) int {
	for i, name := range header {
		normalized := strings.ToLower(strings.TrimSpace(name))
		for _, candidate := range candidates {
			if normalized == strings.ToLower(candidate) {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func numericCell(row []string, idx int) *float64 {
	raw := cell(row, idx)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return nil // 数値として読めないセルは欠損扱い（中央値補完に回す）
	}
	return &v
}
