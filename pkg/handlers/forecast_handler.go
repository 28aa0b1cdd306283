package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"sales-forecast-api/pkg/loader"
	"sales-forecast-api/pkg/models"
	"sales-forecast-api/pkg/recorder"
	"sales-forecast-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// ForecastHandler 売上予測ハンドラー
type ForecastHandler struct {
	pipeline *services.PipelineService
	cache    *services.RunCache
	recorder recorder.Recorder
	defaults services.PipelineOptions
}

// NewForecastHandler 新しい売上予測ハンドラーを作成
func NewForecastHandler(pipeline *services.PipelineService, rec recorder.Recorder, defaults services.PipelineOptions) *ForecastHandler {
	return &ForecastHandler{
		pipeline: pipeline,
		cache:    services.NewRunCache(),
		recorder: rec,
		defaults: defaults,
	}
}

// RunForecast 予測パイプラインを実行
func (fh *ForecastHandler) RunForecast(c *gin.Context) {
	var request models.ForecastRunRequest

	// リクエストボディをバインド
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "リクエストの解析に失敗しました: " + err.Error(),
		})
		return
	}

	opts := fh.buildOptions(&request)
	fh.execute(c, request.Records, opts)
}

// UploadForecast CSV/XLSXファイルをアップロードして予測を実行
func (fh *ForecastHandler) UploadForecast(c *gin.Context) {
	c.Request.ParseMultipartForm(10 << 20) // 10MB limit

	file, fileHeader, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ファイルの取得に失敗しました。"})
		return
	}
	defer file.Close()

	records, err := loader.ParseFile(fileHeader.Filename, file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "ファイルの解析に失敗しました: " + err.Error(),
		})
		return
	}

	log.Printf("📊 [アップロード] %s: %d行", fileHeader.Filename, len(records))

	opts := fh.defaults
	if daysStr := c.PostForm("horizon_days"); daysStr != "" {
		if days, err := strconv.Atoi(daysStr); err == nil && days > 0 && days <= 365 {
			opts.HorizonDays = days
		}
	}
	if kind := c.PostForm("model_kind"); kind != "" {
		opts.ModelKind = services.ModelKind(kind)
	}

	fh.execute(c, records, opts)
}

// ListRuns 保存済みの実行履歴を取得
func (fh *ForecastHandler) ListRuns(c *gin.Context) {
	limit := 20
	if limitStr := c.Query("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	runs, err := fh.recorder.ListRuns(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "実行履歴の取得に失敗しました: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    runs,
		"count":   len(runs),
	})
}

// GetRunForecast 指定実行の予測テーブルを取得
func (fh *ForecastHandler) GetRunForecast(c *gin.Context) {
	runID := c.Param("runId")

	points, err := fh.recorder.ListForecast(runID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "予測データの取得に失敗しました: " + err.Error(),
		})
		return
	}
	if len(points) == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "指定された実行が見つかりません: " + runID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"run_id":  runID,
		"data":    points,
	})
}

// execute パイプラインを（キャッシュ経由で）実行し、結果を返す
func (fh *ForecastHandler) execute(c *gin.Context, records []models.RawSalesRecord, opts services.PipelineOptions) {
	key := fh.cache.Key(records, opts)
	if cached, ok := fh.cache.Get(key); ok {
		log.Printf("✅ [予測] キャッシュヒット: run=%s", cached.RunID)
		c.JSON(http.StatusOK, models.ForecastRunResponse{
			Success: true,
			Cached:  true,
			Result:  cached,
		})
		return
	}

	result, err := fh.pipeline.Run(records, opts)
	if err != nil {
		status, msg := classifyPipelineError(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	fh.cache.Put(key, result)

	if err := fh.recorder.RecordRun(result); err != nil {
		// 記録失敗は予測結果の返却を妨げない
		log.Printf("[ERROR] record run %s: %v", result.RunID, err)
	}

	log.Printf("✅ [予測] 完了: run=%s model=%s mae=%.2f r2=%.3f",
		result.RunID, result.ModelKind, result.Report.MAE, result.Report.R2)

	c.JSON(http.StatusOK, models.ForecastRunResponse{
		Success: true,
		Cached:  false,
		Result:  result,
	})
}

// classifyPipelineError エラーの種類に応じてHTTPステータスを選ぶ
func classifyPipelineError(err error) (int, string) {
	var dataErr *models.DataError
	var validationErr *models.ValidationError
	var modelErr *models.ModelError

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, "パラメータが不正です: " + err.Error()
	case errors.As(err, &dataErr):
		return http.StatusUnprocessableEntity, "データの前処理に失敗しました: " + err.Error()
	case errors.As(err, &modelErr):
		return http.StatusUnprocessableEntity, "モデルの学習に失敗しました: " + err.Error()
	default:
		return http.StatusInternalServerError, "予測の実行に失敗しました: " + err.Error()
	}
}

// buildOptions リクエストのオーバーライドをデフォルト設定に重ねる
func (fh *ForecastHandler) buildOptions(request *models.ForecastRunRequest) services.PipelineOptions {
	opts := fh.defaults
	if request.HorizonDays > 0 {
		opts.HorizonDays = request.HorizonDays
	}
	if request.ModelKind != "" {
		opts.ModelKind = services.ModelKind(request.ModelKind)
	}
	if request.ConfidenceLevel > 0 {
		opts.ConfidenceLevel = request.ConfidenceLevel
	}
	if request.RandomSeed != nil {
		opts.RandomSeed = *request.RandomSeed
	}
	return opts
}
