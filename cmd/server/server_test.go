package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	config "sales-forecast-api/configs"
	"sales-forecast-api/pkg/handlers"
	"sales-forecast-api/pkg/recorder"
	"sales-forecast-api/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	// テスト環境の設定
	gin.SetMode(gin.TestMode)

	// .envファイルを読み込み（テスト環境では無視される可能性がある）
	godotenv.Load("../../.env")

	// テスト実行
	code := m.Run()

	// 終了
	os.Exit(code)
}

func TestApplicationSetup(t *testing.T) {
	// 設定の読み込みテスト
	cfg := config.LoadConfig()
	assert.NotNil(t, cfg, "Config should not be nil")

	opts, err := cfg.ForecastOptions()
	require.NoError(t, err, "Default forecast options should be valid")

	// サービスの初期化テスト
	ingestionService := services.NewIngestionService()
	assert.NotNil(t, ingestionService, "IngestionService should not be nil")

	pipelineService := services.NewPipelineService(ingestionService)
	assert.NotNil(t, pipelineService, "PipelineService should not be nil")

	// ハンドラーの初期化テスト
	forecastHandler := handlers.NewForecastHandler(pipelineService, recorder.NewNoopRecorder(), opts)
	assert.NotNil(t, forecastHandler, "ForecastHandler should not be nil")

	monitoringHandler := handlers.NewMonitoringHandler(services.NewMonitoringService())
	assert.NotNil(t, monitoringHandler, "MonitoringHandler should not be nil")
}

func TestRouterSetup(t *testing.T) {
	// ルーターの初期化
	r := gin.New()

	// ヘルスチェックエンドポイント
	r.GET("/health", handlers.HealthCheck)

	// ヘルスチェックのテスト
	req, _ := http.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware(t *testing.T) {
	r := gin.New()

	apiKey := "secret"
	r.Use(func(c *gin.Context) {
		if c.GetHeader("X-API-KEY") != apiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	})
	r.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	// キー無し → 401
	req, _ := http.NewRequest("GET", "/protected", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// 正しいキー → 200
	req, _ = http.NewRequest("GET", "/protected", nil)
	req.Header.Set("X-API-KEY", apiKey)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
