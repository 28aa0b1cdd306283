package config

import (
	"os"
	"strconv"

	"sales-forecast-api/pkg/services"
)

// Config holds the application configuration
type Config struct {
	Port             string
	Environment      string
	APIKey           string
	HorizonDays      int
	ModelKind        string
	OutlierThreshold float64
	MinTrainingRows  int
	ConfidenceLevel  float64
	RandomSeed       int64
	SalesDataPath    string
	RefreshCron      string
	SQLitePath       string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	defaults := services.DefaultPipelineOptions()
	return &Config{
		Port:             getEnv("PORT", "8080"),
		Environment:      getEnv("ENVIRONMENT", "development"),
		APIKey:           getEnv("API_KEY", ""),
		HorizonDays:      getEnvInt("FORECAST_HORIZON_DAYS", defaults.HorizonDays),
		ModelKind:        getEnv("MODEL_KIND", string(defaults.ModelKind)),
		OutlierThreshold: getEnvFloat("OUTLIER_THRESHOLD", defaults.OutlierThreshold),
		MinTrainingRows:  getEnvInt("MIN_TRAINING_ROWS", defaults.MinTrainingRows),
		ConfidenceLevel:  getEnvFloat("CONFIDENCE_LEVEL", defaults.ConfidenceLevel),
		RandomSeed:       int64(getEnvInt("RANDOM_SEED", int(defaults.RandomSeed))),
		SalesDataPath:    getEnv("SALES_DATA_PATH", ""),
		RefreshCron:      getEnv("REFRESH_CRON", ""),
		SQLitePath:       getEnv("SQLITE_PATH", ""),
	}
}

// ForecastOptions 環境変数から組み立てたパイプライン設定を返す
func (c *Config) ForecastOptions() (services.PipelineOptions, error) {
	opts := services.PipelineOptions{
		HorizonDays:      c.HorizonDays,
		ModelKind:        services.ModelKind(c.ModelKind),
		OutlierThreshold: c.OutlierThreshold,
		MinTrainingRows:  c.MinTrainingRows,
		ConfidenceLevel:  c.ConfidenceLevel,
		RandomSeed:       c.RandomSeed,
	}
	if err := opts.Validate(); err != nil {
		return services.PipelineOptions{}, err
	}
	return opts, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
