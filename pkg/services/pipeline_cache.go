package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	"sales-forecast-api/pkg/models"
)

// RunCache 実行結果の明示的なキャッシュ。キーは入力データと設定の内容ハッシュ。
// コアはプロセス全体の暗黙キャッシュを一切持たないため、メモ化したい呼び出し側
// （ハンドラーやスケジューラー）がこのオブジェクトを保持して使う。
type RunCache struct {
	mu      sync.RWMutex
	entries map[string]*models.PipelineResult
}

// NewRunCache 新しいキャッシュを作成
func NewRunCache() *RunCache {
	return &RunCache{entries: make(map[string]*models.PipelineResult)}
}

// Key 入力レコードとオプションから決定的なキャッシュキーを計算する。
// 同じ入力・同じ設定・同じシードなら同じキーになる。
func (c *RunCache) Key(raw []models.RawSalesRecord, opts PipelineOptions) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	// 構造体のJSON表現はフィールド順が固定なのでキーは安定する
	_ = enc.Encode(raw)
	_ = enc.Encode(opts)
	return hex.EncodeToString(h.Sum(nil))
}

// Get キーに対応する結果を返す。
func (c *RunCache) Get(key string) (*models.PipelineResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result, ok := c.entries[key]
	return result, ok
}

// Put 実行結果を保存する。
func (c *RunCache) Put(key string, result *models.PipelineResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = result
}

// Invalidate 指定キーのエントリを破棄する。
func (c *RunCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear 全エントリを破棄する。
func (c *RunCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*models.PipelineResult)
}

// Len 保持しているエントリ数を返す。
func (c *RunCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
