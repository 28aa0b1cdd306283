package main

import (
	"log"
	"net/http"

	config "sales-forecast-api/configs"
	"sales-forecast-api/pkg/handlers"
	"sales-forecast-api/pkg/recorder"
	"sales-forecast-api/pkg/scheduler"
	"sales-forecast-api/pkg/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	// 設定の読み込み
	cfg := config.LoadConfig()
	opts, err := cfg.ForecastOptions()
	if err != nil {
		log.Fatalf("Invalid forecast configuration: %v", err)
	}

	// Ginルーターの初期化
	r := gin.Default()

	// サービスの初期化
	monitoringService := services.NewMonitoringService()
	ingestionService := services.NewIngestionService()
	pipelineService := services.NewPipelineService(ingestionService)

	// 実行履歴の保存先（SQLITE_PATH未設定なら記録しない）
	var rec recorder.Recorder
	if cfg.SQLitePath != "" {
		sqliteRec, err := recorder.NewSQLiteRecorder(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("Failed to open recorder database: %v", err)
		}
		defer sqliteRec.Close()
		rec = sqliteRec
	} else {
		log.Println("[INFO] SQLITE_PATH not set, run history disabled")
		rec = recorder.NewNoopRecorder()
	}

	// 定期リフレッシュ（REFRESH_CRONとSALES_DATA_PATHの両方が必要）
	if cfg.RefreshCron != "" && cfg.SalesDataPath != "" {
		sched := scheduler.NewScheduler(pipelineService, rec, cfg.SalesDataPath, opts)
		if err := sched.Register(cfg.RefreshCron); err != nil {
			log.Fatalf("Failed to register refresh schedule: %v", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	// ハンドラーの初期化
	forecastHandler := handlers.NewForecastHandler(pipelineService, rec, opts)
	adminHandler := handlers.NewAdminHandler(cfg)
	monitoringHandler := handlers.NewMonitoringHandler(monitoringService)

	// ミドルウェアの登録
	r.Use(monitoringService.LoggingMiddleware()) // ロギングミドルウェアをグローバルに適用
	r.Use(cors.Default())

	// 認証ミドルウェア
	authMiddleware := func(apiKey string) gin.HandlerFunc {
		return func(c *gin.Context) {
			if apiKey == "" {
				c.Next()
				return
			}
			providedKey := c.GetHeader("X-API-KEY")
			if providedKey != apiKey {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
				return
			}
			c.Next()
		}
	}

	// ヘルスチェックエンドポイント
	r.GET("/health", handlers.HealthCheck)

	// APIバージョン1のルートグループ
	v1 := r.Group("/api/v1")
	v1.Use(authMiddleware(cfg.APIKey))
	{
		// 管理者向けAPI
		admin := v1.Group("/admin")
		{
			admin.GET("/health-status", adminHandler.GetHealthStatus)
			admin.POST("/maintenance/start", adminHandler.StartMaintenance)
			admin.POST("/maintenance/stop", adminHandler.StopMaintenance)
		}

		// モニタリングAPI
		monitoring := v1.Group("/monitoring")
		{
			monitoring.GET("/logs", monitoringHandler.GetLogs)
		}

		// 売上予測API
		forecast := v1.Group("/forecast")
		{
			forecast.POST("/run", forecastHandler.RunForecast)
			forecast.POST("/upload", forecastHandler.UploadForecast)
			forecast.GET("/runs", forecastHandler.ListRuns)
			forecast.GET("/runs/:runId", forecastHandler.GetRunForecast)
		}
	}

	log.Printf("Starting sales-forecast-api server on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
