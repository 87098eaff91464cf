// Package config handles configuration loading for the stageheat server.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Data    DataConfig    `yaml:"data"`
	Cache   CacheConfig   `yaml:"cache"`
	Render  RenderConfig  `yaml:"render"`
	Heatmap HeatmapConfig `yaml:"heatmap"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// DataConfig locates the three stage CSVs and fixes the parsing schema.
type DataConfig struct {
	L1Path string `yaml:"l1_path"`
	L4Path string `yaml:"l4_path"`
	D1Path string `yaml:"d1_path"`
	// GeneColumn is the required gene-identifier column header.
	GeneColumn string `yaml:"gene_column"`
	// Aggregation collapses cell-type columns to one value per gene
	// ("max" or "mean"); applied identically to all three stages.
	Aggregation string `yaml:"aggregation"`
}

// CacheConfig contains caching settings.
type CacheConfig struct {
	ExportSizeMB     int `yaml:"export_size_mb"`
	ExportTTLMinutes int `yaml:"export_ttl_minutes"`
	TableCacheSize   int `yaml:"table_cache_size"`
}

// RenderConfig contains rendering settings.
type RenderConfig struct {
	CellSize int `yaml:"cell_size"`
	Margin   int `yaml:"margin"`
}

// HeatmapConfig contains classification defaults.
type HeatmapConfig struct {
	DefaultThreshold float64 `yaml:"default_threshold"`
	DefaultSort      string  `yaml:"default_sort"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		return DefaultConfig(), nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)

	return &cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Data: DataConfig{
			L1Path:      "./data/L1CENGEN.csv",
			L4Path:      "./data/L4CENGEN.csv",
			D1Path:      "./data/D1CENGEN.csv",
			GeneColumn:  "gene_name",
			Aggregation: "max",
		},
		Cache: CacheConfig{
			ExportSizeMB:     64,
			ExportTTLMinutes: 10,
			TableCacheSize:   8,
		},
		Render: RenderConfig{
			CellSize: 24,
			Margin:   12,
		},
		Heatmap: HeatmapConfig{
			DefaultThreshold: 0.0,
			DefaultSort:      "pattern",
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if cfg.Data.L1Path == "" {
		cfg.Data.L1Path = defaults.Data.L1Path
	}
	if cfg.Data.L4Path == "" {
		cfg.Data.L4Path = defaults.Data.L4Path
	}
	if cfg.Data.D1Path == "" {
		cfg.Data.D1Path = defaults.Data.D1Path
	}
	if cfg.Data.GeneColumn == "" {
		cfg.Data.GeneColumn = defaults.Data.GeneColumn
	}
	if cfg.Data.Aggregation == "" {
		cfg.Data.Aggregation = defaults.Data.Aggregation
	}
	if cfg.Cache.ExportSizeMB == 0 {
		cfg.Cache.ExportSizeMB = defaults.Cache.ExportSizeMB
	}
	if cfg.Cache.ExportTTLMinutes == 0 {
		cfg.Cache.ExportTTLMinutes = defaults.Cache.ExportTTLMinutes
	}
	if cfg.Cache.TableCacheSize == 0 {
		cfg.Cache.TableCacheSize = defaults.Cache.TableCacheSize
	}
	if cfg.Render.CellSize == 0 {
		cfg.Render.CellSize = defaults.Render.CellSize
	}
	if cfg.Render.Margin == 0 {
		cfg.Render.Margin = defaults.Render.Margin
	}
	if cfg.Heatmap.DefaultSort == "" {
		cfg.Heatmap.DefaultSort = defaults.Heatmap.DefaultSort
	}
}
