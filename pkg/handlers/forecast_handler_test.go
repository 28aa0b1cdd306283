package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"sales-forecast-api/pkg/models"
	"sales-forecast-api/pkg/recorder"
	"sales-forecast-api/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestRouter() *gin.Engine {
	pipeline := services.NewPipelineService(services.NewIngestionService())
	opts := services.DefaultPipelineOptions()
	opts.HorizonDays = 7
	opts.ModelKind = services.ModelLinear

	forecastHandler := NewForecastHandler(pipeline, recorder.NewNoopRecorder(), opts)
	monitoringHandler := NewMonitoringHandler(services.NewMonitoringService())

	r := gin.New()
	r.GET("/health", HealthCheck)
	v1 := r.Group("/api/v1")
	{
		v1.POST("/forecast/run", forecastHandler.RunForecast)
		v1.POST("/forecast/upload", forecastHandler.UploadForecast)
		v1.GET("/forecast/runs", forecastHandler.ListRuns)
		v1.GET("/monitoring/logs", monitoringHandler.GetLogs)
	}
	return r
}

func rampRequestBody(days int) []byte {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	qty, discount := 1.0, 0.0
	records := make([]models.RawSalesRecord, 0, days)
	for i := 0; i < days; i++ {
		price := 100 + 2*float64(i)
		records = append(records, models.RawSalesRecord{
			OrderDate:  base.AddDate(0, 0, i).Format("02/01/2006"),
			Category:   "Electronics",
			CustomerID: fmt.Sprintf("C%03d", i%10),
			Region:     "East",
			Quantity:   &qty,
			UnitPrice:  &price,
			Discount:   &discount,
		})
	}
	body, _ := json.Marshal(models.ForecastRunRequest{Records: records})
	return body
}

func TestHealthCheckEndpoint(t *testing.T) {
	r := newTestRouter()

	req, _ := http.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRunForecastEndpoint(t *testing.T) {
	r := newTestRouter()

	req, _ := http.NewRequest("POST", "/api/v1/forecast/run", bytes.NewReader(rampRequestBody(90)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.ForecastRunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.False(t, resp.Cached)
	require.NotNil(t, resp.Result)
	assert.Len(t, resp.Result.Forecast, 7)
	assert.Equal(t, 90, resp.Result.SeriesDays)
}

func TestRunForecastCacheHit(t *testing.T) {
	r := newTestRouter()
	body := rampRequestBody(90)

	for i, wantCached := range []bool{false, true} {
		req, _ := http.NewRequest("POST", "/api/v1/forecast/run", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp models.ForecastRunResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, wantCached, resp.Cached, "request %d", i)
	}
}

func TestRunForecastBadBody(t *testing.T) {
	r := newTestRouter()

	req, _ := http.NewRequest("POST", "/api/v1/forecast/run", bytes.NewReader([]byte(`{"records": "oops"`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunForecastShortHistory(t *testing.T) {
	r := newTestRouter()

	// ウォームアップに満たない履歴は処理できない
	req, _ := http.NewRequest("POST", "/api/v1/forecast/run", bytes.NewReader(rampRequestBody(10)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRunForecastInvalidModelKind(t *testing.T) {
	r := newTestRouter()

	var request models.ForecastRunRequest
	require.NoError(t, json.Unmarshal(rampRequestBody(90), &request))
	request.ModelKind = "quantum"
	body, _ := json.Marshal(request)

	req, _ := http.NewRequest("POST", "/api/v1/forecast/run", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadForecastCSV(t *testing.T) {
	r := newTestRouter()

	var csvBuf bytes.Buffer
	csvBuf.WriteString("order_date,category,customer_id,region,quantity,unit_price\n")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 90; i++ {
		fmt.Fprintf(&csvBuf, "%s,Books,C%03d,East,1,%.0f\n",
			base.AddDate(0, 0, i).Format("02/01/2006"), i%10, 100+2*float64(i))
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "sales.csv")
	require.NoError(t, err)
	_, err = fw.Write(csvBuf.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("horizon_days", "5"))
	require.NoError(t, mw.Close())

	req, _ := http.NewRequest("POST", "/api/v1/forecast/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.ForecastRunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Result)
	assert.Len(t, resp.Result.Forecast, 5)
}

func TestUploadForecastMissingColumns(t *testing.T) {
	r := newTestRouter()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "sales.csv")
	require.NoError(t, err)
	fw.Write([]byte("category,region\nBooks,East\n"))
	require.NoError(t, mw.Close())

	req, _ := http.NewRequest("POST", "/api/v1/forecast/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadForecastMissingFile(t *testing.T) {
	r := newTestRouter()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("horizon_days", "5"))
	require.NoError(t, mw.Close())

	req, _ := http.NewRequest("POST", "/api/v1/forecast/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListRunsWithNoopRecorder(t *testing.T) {
	r := newTestRouter()

	req, _ := http.NewRequest("GET", "/api/v1/forecast/runs", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool                 `json:"success"`
		Count   int                  `json:"count"`
		Data    []models.RecordedRun `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 0, resp.Count)
}

func TestMonitoringLogsEndpoint(t *testing.T) {
	r := newTestRouter()

	req, _ := http.NewRequest("GET", "/api/v1/monitoring/logs?period=1h", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
