// Package cache provides caching for loaded stage tables and rendered
// exports. The manager is an injected collaborator; generation stays correct
// with every call missing.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/allegro/bigcache/v3"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/stageheat/server/internal/data/expr"
)

// Config contains cache configuration.
type Config struct {
	ExportCacheSizeMB int
	ExportTTL         time.Duration
	TableCacheSize    int
}

// Manager holds the table and export caches.
type Manager struct {
	exportCache *bigcache.BigCache
	tableCache  *lru.Cache[string, *expr.Table]
}

// NewManager creates a cache manager.
func NewManager(cfg Config) (*Manager, error) {
	exportCacheConfig := bigcache.Config{
		Shards:             64,
		LifeWindow:         cfg.ExportTTL,
		CleanWindow:        cfg.ExportTTL / 2,
		MaxEntriesInWindow: 10000,
		MaxEntrySize:       512 * 1024, // rendered heatmaps are small
		HardMaxCacheSize:   cfg.ExportCacheSizeMB,
		Verbose:            false,
	}

	exportCache, err := bigcache.New(context.Background(), exportCacheConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create export cache: %w", err)
	}

	tableCache, err := lru.New[string, *expr.Table](cfg.TableCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create table cache: %w", err)
	}

	return &Manager{
		exportCache: exportCache,
		tableCache:  tableCache,
	}, nil
}

// GetTable retrieves a loaded table by key.
func (m *Manager) GetTable(key string) (*expr.Table, bool) {
	return m.tableCache.Get(key)
}

// SetTable stores a loaded table.
func (m *Manager) SetTable(key string, t *expr.Table) {
	m.tableCache.Add(key, t)
}

// GetExport retrieves a rendered export from cache.
func (m *Manager) GetExport(key string) ([]byte, bool) {
	data, err := m.exportCache.Get(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetExport stores a rendered export.
func (m *Manager) SetExport(key string, data []byte) error {
	return m.exportCache.Set(key, data)
}

// TableKey builds the cache key for a stage table: path plus file size and
// modification time, so a changed file invalidates by construction.
func TableKey(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return "table:" + path + "|" + strconv.FormatInt(info.Size(), 10) +
		"|" + strconv.FormatInt(info.ModTime().UnixNano(), 10), nil
}

// ExportKey builds the cache key for a rendered export. The gene list is
// order-sensitive: input order is a sort key, so reordered requests are
// distinct results.
func ExportKey(genes []string, threshold float64, sortMode, format string) string {
	h := sha256.New()
	for _, g := range genes {
		h.Write([]byte(g))
		h.Write([]byte{0})
	}
	fmt.Fprintf(h, "t=%g|s=%s", threshold, sortMode)
	return "export:" + format + ":" + hex.EncodeToString(h.Sum(nil))[:16]
}

// Stats returns cache statistics.
func (m *Manager) Stats() map[string]interface{} {
	return map[string]interface{}{
		"export_cache_len": m.exportCache.Len(),
		"export_cache_cap": m.exportCache.Capacity(),
		"table_cache_len":  m.tableCache.Len(),
	}
}

// Close closes the cache manager.
func (m *Manager) Close() error {
	return m.exportCache.Close()
}
