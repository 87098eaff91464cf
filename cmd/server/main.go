// Package main is the entry point for the stageheat server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/stageheat/server/internal/api"
	"github.com/stageheat/server/internal/cache"
	"github.com/stageheat/server/internal/config"
	"github.com/stageheat/server/internal/data/expr"
	"github.com/stageheat/server/internal/heatmap"
	"github.com/stageheat/server/internal/render"
	"github.com/stageheat/server/internal/service"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/server.yaml", "Path to configuration file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Starting stageheat server", zap.Int("port", cfg.Server.Port))

	aggregation, err := expr.ParseAggregation(cfg.Data.Aggregation)
	if err != nil {
		logger.Fatal("Invalid aggregation policy", zap.Error(err))
	}
	defaultSort, err := heatmap.ParseSortMode(cfg.Heatmap.DefaultSort)
	if err != nil {
		logger.Fatal("Invalid default sort mode", zap.Error(err))
	}

	// Initialize cache manager
	cacheManager, err := cache.NewManager(cache.Config{
		ExportCacheSizeMB: cfg.Cache.ExportSizeMB,
		ExportTTL:         time.Duration(cfg.Cache.ExportTTLMinutes) * time.Minute,
		TableCacheSize:    cfg.Cache.TableCacheSize,
	})
	if err != nil {
		logger.Fatal("Failed to initialize cache", zap.Error(err))
	}
	defer cacheManager.Close()

	// Initialize renderer
	renderer := render.NewRenderer(render.Config{
		CellSize: cfg.Render.CellSize,
		Margin:   cfg.Render.Margin,
	})

	// Initialize heatmap service
	svc := service.NewHeatmapService(service.Config{
		Paths: [expr.NumStages]string{
			expr.StageL1: cfg.Data.L1Path,
			expr.StageL4: cfg.Data.L4Path,
			expr.StageD1: cfg.Data.D1Path,
		},
		Options: expr.Options{
			GeneColumn: cfg.Data.GeneColumn,
			Aggregate:  aggregation,
		},
		DefaultThreshold: cfg.Heatmap.DefaultThreshold,
		DefaultSort:      defaultSort,
		Cache:            cacheManager,
		Renderer:         renderer,
	})
	svc.SetLogger(logger)

	// Fail fast on unreadable or malformed stage tables.
	stages, err := svc.Stages(context.Background())
	if err != nil {
		logger.Fatal("Failed to load stage tables", zap.Error(err))
	}
	for _, st := range stages {
		logger.Info("Stage table loaded",
			zap.String("stage", st.Stage),
			zap.String("path", st.Path),
			zap.Int("genes", st.Genes),
			zap.Int("columns", len(st.Columns)))
	}

	// Set up HTTP router
	router := api.NewRouter(api.RouterConfig{
		Service:     svc,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server listening", zap.String("addr", fmt.Sprintf("http://localhost:%d", cfg.Server.Port)))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}
