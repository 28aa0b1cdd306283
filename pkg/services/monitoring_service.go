package services

import (
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// maxLogEntries 保持するリクエストログの上限（リングバッファ）。
const maxLogEntries = 1000

// LogEntry は単一のリクエストログを表します。
type LogEntry struct {
	Timestamp    time.Time     `json:"timestamp"`
	Path         string        `json:"path"`
	Method       string        `json:"method"`
	StatusCode   int           `json:"status_code"`
	ResponseTime time.Duration `json:"response_time"`
}

// MonitoringService はAPIのモニタリング機能を提供します。
type MonitoringService struct {
	logs []LogEntry
	mu   sync.RWMutex
}

// NewMonitoringService は新しいMonitoringServiceを生成します。
func NewMonitoringService() *MonitoringService {
	return &MonitoringService{
		logs: make([]LogEntry, 0, maxLogEntries),
	}
}

// LogRequest はリクエストを記録します。上限を超えた分は古い順に捨てます。
func (s *MonitoringService) LogRequest(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxLogEntries {
		s.logs = s.logs[len(s.logs)-maxLogEntries:]
	}
}

// LoggingMiddleware はリクエスト情報を記録するGinミドルウェアです。
func (s *MonitoringService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// モニタリング自身のリクエストは記録しない
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/v1/monitoring") {
			return
		}

		s.LogRequest(LogEntry{
			Timestamp:    start,
			Path:         path,
			Method:       c.Request.Method,
			StatusCode:   c.Writer.Status(),
			ResponseTime: time.Since(start),
		})
	}
}

// MonitoringSnapshot は集計済みのモニタリングデータです。
type MonitoringSnapshot struct {
	TotalRequests int              `json:"total_requests"`
	Endpoints     map[string]int   `json:"endpoints"`
	StatusClasses map[string]int   `json:"status_classes"`
	RecentErrors  []LogEntry       `json:"recent_errors"`
	AvgLatencyMs  map[string]int64 `json:"avg_latency_ms"`
}

// Snapshot は指定時間内のログを集計して返します。
func (s *MonitoringService) Snapshot(periodHours int) MonitoringSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	since := time.Now().Add(-time.Duration(periodHours) * time.Hour)

	snap := MonitoringSnapshot{
		Endpoints:     make(map[string]int),
		StatusClasses: map[string]int{"2xx": 0, "4xx": 0, "5xx": 0},
		AvgLatencyMs:  make(map[string]int64),
	}

	latencySum := make(map[string]time.Duration)
	for _, entry := range s.logs {
		if entry.Timestamp.Before(since) {
			continue
		}
		snap.TotalRequests++
		snap.Endpoints[entry.Path]++
		latencySum[entry.Path] += entry.ResponseTime
		switch {
		case entry.StatusCode >= 200 && entry.StatusCode < 300:
			snap.StatusClasses["2xx"]++
		case entry.StatusCode >= 400 && entry.StatusCode < 500:
			snap.StatusClasses["4xx"]++
		case entry.StatusCode >= 500:
			snap.StatusClasses["5xx"]++
		}
		if entry.StatusCode >= 500 && len(snap.RecentErrors) < 10 {
			snap.RecentErrors = append(snap.RecentErrors, entry)
		}
	}
	for path, total := range latencySum {
		if count := snap.Endpoints[path]; count > 0 {
			snap.AvgLatencyMs[path] = total.Milliseconds() / int64(count)
		}
	}
	return snap
}
