package loader

import (
	"errors"
	"strings"
	"testing"

	"sales-forecast-api/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV(t *testing.T) {
	csvData := `order_date,category,customer_id,region,quantity,unit_price,discount
01/01/2024,Electronics,C001,East,2,1500,0.1
02/01/2024,Books,C002,West,1,"2,000",
03/01/2024,Books,C003,West,,500,0`

	records, err := ParseCSV(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "01/01/2024", records[0].OrderDate)
	assert.Equal(t, "Electronics", records[0].Category)
	assert.Equal(t, "C001", records[0].CustomerID)
	require.NotNil(t, records[0].Quantity)
	assert.Equal(t, 2.0, *records[0].Quantity)
	require.NotNil(t, records[0].Discount)
	assert.Equal(t, 0.1, *records[0].Discount)

	// カンマ付き数値は正規化して読む
	require.NotNil(t, records[1].UnitPrice)
	assert.Equal(t, 2000.0, *records[1].UnitPrice)
	// 空セルは欠損（nil）として扱う
	assert.Nil(t, records[1].Discount)
	assert.Nil(t, records[2].Quantity)
}

func TestParseCSVJapaneseHeaders(t *testing.T) {
	csvData := `日付,カテゴリ,顧客ID,地域,数量,単価
01/01/2024,飲料,C001,関東,3,120`

	records, err := ParseCSV(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "飲料", records[0].Category)
	assert.Equal(t, "関東", records[0].Region)
	require.NotNil(t, records[0].Quantity)
	assert.Equal(t, 3.0, *records[0].Quantity)
}

func TestParseCSVMissingRequiredColumns(t *testing.T) {
	csvData := `category,region
Books,East`

	_, err := ParseCSV(strings.NewReader(csvData))
	require.Error(t, err)

	var dataErr *models.DataError
	require.True(t, errors.As(err, &dataErr))
	assert.Contains(t, dataErr.Field, "order_date")
	assert.Contains(t, dataErr.Field, "quantity")
	assert.Contains(t, dataErr.Field, "unit_price")
}

func TestParseCSVHeaderOnly(t *testing.T) {
	csvData := `order_date,quantity,unit_price`

	_, err := ParseCSV(strings.NewReader(csvData))
	require.Error(t, err)
}

func TestParseFileUnsupportedExtension(t *testing.T) {
	_, err := ParseFile("sales.pdf", strings.NewReader("data"))
	require.Error(t, err)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := LoadFile("/nonexistent/sales.csv")
	require.Error(t, err)
}
