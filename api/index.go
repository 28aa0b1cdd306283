package handler

import (
	"log"
	"net/http"
	"sync"

	config "sales-forecast-api/configs"
	"sales-forecast-api/pkg/handlers"
	"sales-forecast-api/pkg/recorder"
	"sales-forecast-api/pkg/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var (
	app  *gin.Engine
	once sync.Once
)

// setupApp はGinアプリケーションを初期化します。
// サーバーレス環境では、リクエストごとに初期化が走らないようsync.Onceで一度だけ実行します。
func setupApp() *gin.Engine {
	once.Do(func() {
		log.Printf("🟢 [setupApp] Initializing sales-forecast-api")

		// 環境変数はホスティング側の設定から読み込まれるため、ここではgodotenvを呼び出しません。
		cfg := config.LoadConfig()
		opts, err := cfg.ForecastOptions()
		if err != nil {
			log.Printf("WARNING: invalid forecast configuration, falling back to defaults: %v", err)
			opts = services.DefaultPipelineOptions()
		}

		gin.SetMode(gin.ReleaseMode)
		r := gin.New()
		r.Use(gin.Recovery())

		monitoringService := services.NewMonitoringService()
		pipelineService := services.NewPipelineService(services.NewIngestionService())

		// サーバーレスではローカルディスクが永続しないため、既定では実行履歴を持たない
		rec := recorder.Recorder(recorder.NewNoopRecorder())
		if cfg.SQLitePath != "" {
			if sqliteRec, err := recorder.NewSQLiteRecorder(cfg.SQLitePath); err != nil {
				log.Printf("WARNING: recorder unavailable: %v", err)
			} else {
				rec = sqliteRec
			}
		}

		forecastHandler := handlers.NewForecastHandler(pipelineService, rec, opts)
		adminHandler := handlers.NewAdminHandler(cfg)
		monitoringHandler := handlers.NewMonitoringHandler(monitoringService)

		r.Use(monitoringService.LoggingMiddleware())
		r.Use(cors.Default())

		authMiddleware := func(apiKey string) gin.HandlerFunc {
			return func(c *gin.Context) {
				if apiKey == "" {
					c.Next()
					return
				}
				if c.GetHeader("X-API-KEY") != apiKey {
					c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
					return
				}
				c.Next()
			}
		}

		r.GET("/health", handlers.HealthCheck)

		v1 := r.Group("/api/v1")
		v1.Use(authMiddleware(cfg.APIKey))
		{
			admin := v1.Group("/admin")
			{
				admin.GET("/health-status", adminHandler.GetHealthStatus)
				admin.POST("/maintenance/start", adminHandler.StartMaintenance)
				admin.POST("/maintenance/stop", adminHandler.StopMaintenance)
			}

			monitoring := v1.Group("/monitoring")
			{
				monitoring.GET("/logs", monitoringHandler.GetLogs)
			}

			forecast := v1.Group("/forecast")
			{
				forecast.POST("/run", forecastHandler.RunForecast)
				forecast.POST("/upload", forecastHandler.UploadForecast)
				forecast.GET("/runs", forecastHandler.ListRuns)
				forecast.GET("/runs/:runId", forecastHandler.GetRunForecast)
			}
		}

		app = r
	})
	return app
}

// Handler はサーバーレス関数のエントリーポイントです。
func Handler(w http.ResponseWriter, r *http.Request) {
	setupApp().ServeHTTP(w, r)
}
