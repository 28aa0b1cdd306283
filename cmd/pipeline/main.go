package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	config "sales-forecast-api/configs"
	"sales-forecast-api/pkg/loader"
	"sales-forecast-api/pkg/models"
	"sales-forecast-api/pkg/recorder"
	"sales-forecast-api/pkg/services"

	"github.com/joho/godotenv"
)

// バッチ実行用CLI。サーバーを立てずに1回だけパイプラインを回す。
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	cfg := config.LoadConfig()

	filePath := flag.String("file", cfg.SalesDataPath, "path to sales CSV/XLSX file")
	horizon := flag.Int("horizon", cfg.HorizonDays, "forecast horizon in days")
	modelKind := flag.String("model", cfg.ModelKind, "model kind: ensemble or linear")
	asJSON := flag.Bool("json", false, "print full result as JSON")
	record := flag.Bool("record", false, "record the run to SQLITE_PATH")
	flag.Parse()

	if *filePath == "" {
		log.Fatal("no input file: pass -file or set SALES_DATA_PATH")
	}

	opts, err := cfg.ForecastOptions()
	if err != nil {
		log.Fatalf("Invalid forecast configuration: %v", err)
	}
	opts.HorizonDays = *horizon
	opts.ModelKind = services.ModelKind(*modelKind)

	records, err := loader.LoadFile(*filePath)
	if err != nil {
		log.Fatalf("Failed to load %s: %v", *filePath, err)
	}
	log.Printf("📊 loaded %d rows from %s", len(records), *filePath)

	pipeline := services.NewPipelineService(services.NewIngestionService())
	result, err := pipeline.Run(records, opts)
	if err != nil {
		log.Fatalf("Pipeline failed: %v", err)
	}

	if *record && cfg.SQLitePath != "" {
		rec, err := recorder.NewSQLiteRecorder(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("Failed to open recorder database: %v", err)
		}
		defer rec.Close()
		if err := rec.RecordRun(result); err != nil {
			log.Fatalf("Failed to record run: %v", err)
		}
		log.Printf("✅ run %s recorded to %s", result.RunID, cfg.SQLitePath)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			log.Fatalf("Failed to encode result: %v", err)
		}
		return
	}

	printSummary(result)
}

func printSummary(result *models.PipelineResult) {
	fmt.Printf("Run %s (%s)\n", result.RunID, result.ModelKind)
	fmt.Printf("  series: %s 〜 %s (%d days)\n",
		result.SeriesStart.Format("2006-01-02"), result.SeriesEnd.Format("2006-01-02"), result.SeriesDays)
	fmt.Printf("  cleaning: %d rows in, %d clean, %d rejected\n",
		result.Cleaning.InputRows, result.Cleaning.CleanRows, result.Cleaning.RejectedQuantities)
	fmt.Printf("  evaluation: MAE=%.2f RMSE=%.2f R2=%.3f (test rows: %d)\n",
		result.Report.MAE, result.Report.RMSE, result.Report.R2, result.Report.TestRows)

	if len(result.Report.FeatureImportance) > 0 {
		fmt.Println("  top features:")
		for i, fs := range result.Report.FeatureImportance {
			if i >= 5 {
				break
			}
			fmt.Printf("    %-16s %.3f\n", fs.Name, fs.Score)
		}
	}

	fmt.Printf("  outliers flagged: %d\n", len(result.Outliers))
	fmt.Printf("  customer segments: %d\n", len(result.Segments))

	fmt.Println("  forecast:")
	for _, p := range result.Forecast {
		fmt.Printf("    %s  %10.2f  [%10.2f, %10.2f]\n",
			p.Date.Format("2006-01-02"), p.Estimate, p.Lower, p.Upper)
	}
}
