package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"sales-forecast-api/pkg/models"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists forecast runs to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode for better concurrent read performance (dashboards read while the API writes).
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS forecast_runs (
			run_id       TEXT PRIMARY KEY,
			model_kind   TEXT NOT NULL,
			series_start INTEGER NOT NULL,
			series_end   INTEGER NOT NULL,
			series_days  INTEGER NOT NULL,
			horizon_days INTEGER NOT NULL,
			mae          REAL,
			rmse         REAL,
			r2           REAL,
			residual_std REAL,
			recorded_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_recorded ON forecast_runs(recorded_at)`,

		`CREATE TABLE IF NOT EXISTS forecast_points (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      TEXT NOT NULL,
			date        INTEGER NOT NULL,
			estimate    REAL NOT NULL,
			lower_bound REAL NOT NULL,
			upper_bound REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_points_run ON forecast_points(run_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordRun 実行結果のサマリーと予測テーブルを保存する。
func (r *SQLiteRecorder) RecordRun(result *models.PipelineResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO forecast_runs
		(run_id, model_kind, series_start, series_end, series_days, horizon_days,
		 mae, rmse, r2, residual_std, recorded_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		result.RunID, result.ModelKind,
		result.SeriesStart.Unix(), result.SeriesEnd.Unix(), result.SeriesDays,
		len(result.Forecast),
		result.Report.MAE, result.Report.RMSE, result.Report.R2, result.Report.ResidualStd,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, p := range result.Forecast {
		if _, err := tx.Exec(`INSERT INTO forecast_points
			(run_id, date, estimate, lower_bound, upper_bound)
			VALUES (?,?,?,?,?)`,
			result.RunID, p.Date.Unix(), p.Estimate, p.Lower, p.Upper,
		); err != nil {
			return fmt.Errorf("insert point: %w", err)
		}
	}

	return tx.Commit()
}

// ListRuns 保存済み実行を新しい順に返す。
func (r *SQLiteRecorder) ListRuns(limit int) ([]models.RecordedRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(`SELECT run_id, model_kind, series_end, horizon_days,
		mae, rmse, r2, recorded_at
		FROM forecast_runs ORDER BY recorded_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RecordedRun
	for rows.Next() {
		var run models.RecordedRun
		var seriesEnd, recordedAt int64
		if err := rows.Scan(&run.RunID, &run.ModelKind, &seriesEnd, &run.HorizonDays,
			&run.MAE, &run.RMSE, &run.R2, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.SeriesEnd = time.Unix(seriesEnd, 0).UTC()
		run.RecordedAt = time.Unix(recordedAt, 0).UTC()
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListForecast 指定実行の予測テーブルを日付順に返す。
func (r *SQLiteRecorder) ListForecast(runID string) ([]models.ForecastPoint, error) {
	rows, err := r.db.Query(`SELECT date, estimate, lower_bound, upper_bound
		FROM forecast_points WHERE run_id = ? ORDER BY date ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	defer rows.Close()

	var points []models.ForecastPoint
	for rows.Next() {
		var p models.ForecastPoint
		var date int64
		if err := rows.Scan(&date, &p.Estimate, &p.Lower, &p.Upper); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		p.Date = time.Unix(date, 0).UTC()
		points = append(points, p)
	}
	return points, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
