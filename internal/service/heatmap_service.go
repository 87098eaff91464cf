// Package service runs the heatmap generation pipeline: resolve the gene
// list against the stage tables, classify, sort, render.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/stageheat/server/internal/cache"
	"github.com/stageheat/server/internal/data/expr"
	"github.com/stageheat/server/internal/heatmap"
	"github.com/stageheat/server/internal/render"
)

// ErrUnsupportedFormat rejects unknown export formats.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Export formats.
const (
	FormatPNG = "png"
	FormatSVG = "svg"
	FormatCSV = "csv"
)

// Config contains heatmap service configuration.
type Config struct {
	// Paths locates the three stage tables, indexed by expr.Stage.
	Paths [expr.NumStages]string
	// Options is the shared table parsing policy.
	Options expr.Options
	// DefaultThreshold applies when a request carries no threshold.
	DefaultThreshold float64
	// DefaultSort applies when a request carries no sort mode.
	DefaultSort heatmap.SortMode
	// Cache is optional; generation works with every lookup missing.
	Cache    *cache.Manager
	Renderer *render.Renderer
}

// HeatmapService generates heatmap results and exports.
type HeatmapService struct {
	paths            [expr.NumStages]string
	opts             expr.Options
	defaultThreshold float64
	defaultSort      heatmap.SortMode
	cache            *cache.Manager
	renderer         *render.Renderer
	logger           *zap.Logger
}

// NewHeatmapService creates a heatmap service.
func NewHeatmapService(cfg Config) *HeatmapService {
	defaultSort := cfg.DefaultSort
	if defaultSort == "" {
		defaultSort = heatmap.SortByPattern
	}
	renderer := cfg.Renderer
	if renderer == nil {
		renderer = render.NewRenderer(render.DefaultConfig())
	}
	return &HeatmapService{
		paths:            cfg.Paths,
		opts:             cfg.Options,
		defaultThreshold: cfg.DefaultThreshold,
		defaultSort:      defaultSort,
		cache:            cfg.Cache,
		renderer:         renderer,
		logger:           zap.NewNop(),
	}
}

// SetLogger sets the logger used for per-request reporting.
func (s *HeatmapService) SetLogger(l *zap.Logger) {
	s.logger = l
}

// Request is one generation request from the caller: an ordered gene list, an
// optional threshold (inclusive cutoff) and an optional sort mode.
type Request struct {
	Genes     []string `json:"genes"`
	Threshold *float64 `json:"threshold,omitempty"`
	Sort      string   `json:"sort,omitempty"`
}

func (s *HeatmapService) threshold(req Request) float64 {
	if req.Threshold != nil {
		return *req.Threshold
	}
	return s.defaultThreshold
}

func (s *HeatmapService) sortMode(req Request) (heatmap.SortMode, error) {
	if strings.TrimSpace(req.Sort) == "" {
		return s.defaultSort, nil
	}
	return heatmap.ParseSortMode(req.Sort)
}

// cleanGenes trims the requested identifiers and drops empty lines, keeping
// input order.
func cleanGenes(genes []string) []string {
	out := make([]string, 0, len(genes))
	for _, g := range genes {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}

// Generate runs the pipeline up to the sorted result. The sort mode is
// validated before any table work; unresolved genes are reported in the
// result, never as an error. File and schema errors abort the request.
func (s *HeatmapService) Generate(ctx context.Context, req Request) (*heatmap.Result, error) {
	mode, err := s.sortMode(req)
	if err != nil {
		return nil, err
	}
	threshold := s.threshold(req)
	genes := cleanGenes(req.Genes)

	store, err := s.loadStore(ctx)
	if err != nil {
		return nil, err
	}

	res := heatmap.ClassifyAll(genes, store, threshold)
	res.Sort = mode
	if err := heatmap.SortRows(res.Rows, mode); err != nil {
		return nil, err
	}

	s.logger.Info("heatmap generated",
		zap.Int("requested", len(genes)),
		zap.Int("rows", len(res.Rows)),
		zap.Int("unresolved", len(res.Unresolved)),
		zap.Float64("threshold", threshold),
		zap.String("sort", string(mode)))

	return res, nil
}

// loadStore loads the three stage tables, cache-aside keyed by file path,
// size and mtime. Reloading is idempotent; tables are immutable once loaded.
func (s *HeatmapService) loadStore(ctx context.Context) (*expr.Store, error) {
	var tables [expr.NumStages]*expr.Table
	for _, stage := range expr.Stages {
		path := s.paths[stage]
		key := ""
		if s.cache != nil {
			k, err := cache.TableKey(path)
			if err != nil {
				return nil, fmt.Errorf("stage %s: %w: %s: %v", stage, expr.ErrMissingFile, path, err)
			}
			key = k
			if t, ok := s.cache.GetTable(key); ok {
				tables[stage] = t
				continue
			}
		}

		t, err := expr.LoadTable(path, s.opts)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", stage, err)
		}
		if s.cache != nil {
			s.cache.SetTable(key, t)
		}
		tables[stage] = t
	}
	return expr.NewStore(tables[expr.StageL1], tables[expr.StageL4], tables[expr.StageD1]), nil
}

// Export renders one format through the export cache. Returns the bytes, the
// content type and any error; an all-unresolved request surfaces
// render.ErrEmptyResult.
func (s *HeatmapService) Export(ctx context.Context, req Request, format string) ([]byte, string, error) {
	contentType, ok := contentTypes[format]
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	mode, err := s.sortMode(req)
	if err != nil {
		return nil, "", err
	}
	key := cache.ExportKey(cleanGenes(req.Genes), s.threshold(req), string(mode), format)
	if s.cache != nil {
		if data, ok := s.cache.GetExport(key); ok {
			return data, contentType, nil
		}
	}

	res, err := s.Generate(ctx, req)
	if err != nil {
		return nil, "", err
	}

	data, err := s.renderFormat(res, format)
	if err != nil {
		return nil, "", err
	}
	if s.cache != nil {
		if err := s.cache.SetExport(key, data); err != nil {
			s.logger.Warn("export cache set failed", zap.Error(err))
		}
	}
	return data, contentType, nil
}

var contentTypes = map[string]string{
	FormatPNG: "image/png",
	FormatSVG: "image/svg+xml",
	FormatCSV: "text/csv",
}

func (s *HeatmapService) renderFormat(res *heatmap.Result, format string) ([]byte, error) {
	switch format {
	case FormatPNG:
		return s.renderer.PNG(res)
	case FormatSVG:
		return s.renderer.SVG(res)
	case FormatCSV:
		return s.renderer.CSV(res)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// ExportAll renders the raster and vector exports of one result
// concurrently. Both renders are pure functions over the same immutable
// result, so they share no state and need no ordering.
func (s *HeatmapService) ExportAll(ctx context.Context, req Request) (png, svg []byte, err error) {
	res, err := s.Generate(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	var wg sync.WaitGroup
	var pngErr, svgErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		png, pngErr = s.renderer.PNG(res)
	}()
	go func() {
		defer wg.Done()
		svg, svgErr = s.renderer.SVG(res)
	}()
	wg.Wait()

	if pngErr != nil {
		return nil, nil, pngErr
	}
	if svgErr != nil {
		return nil, nil, svgErr
	}
	return png, svg, nil
}

// StageInfo describes one loaded stage table for the metadata endpoint.
type StageInfo struct {
	Stage   string   `json:"stage"`
	Path    string   `json:"path"`
	Genes   int      `json:"genes"`
	Columns []string `json:"columns"`
}

// Stages reports the three loaded tables.
func (s *HeatmapService) Stages(ctx context.Context) ([]StageInfo, error) {
	store, err := s.loadStore(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]StageInfo, 0, expr.NumStages)
	for _, stage := range expr.Stages {
		t := store.Table(stage)
		out = append(out, StageInfo{
			Stage:   stage.String(),
			Path:    t.Path(),
			Genes:   t.Len(),
			Columns: t.Columns(),
		})
	}
	return out, nil
}

// GeneStageInfo is one stage's view of a gene.
type GeneStageInfo struct {
	Stage   string             `json:"stage"`
	Present bool               `json:"present"`
	Value   float64            `json:"value"`
	Values  map[string]float64 `json:"values,omitempty"`
}

// GeneInfo resolves one gene against every stage table, exposing both the
// aggregated value used for classification and the per-column values.
// found is false when the gene is absent from all three tables.
func (s *HeatmapService) GeneInfo(ctx context.Context, gene string) ([]GeneStageInfo, bool, error) {
	store, err := s.loadStore(ctx)
	if err != nil {
		return nil, false, err
	}

	out := make([]GeneStageInfo, 0, expr.NumStages)
	found := false
	for _, stage := range expr.Stages {
		t := store.Table(stage)
		info := GeneStageInfo{Stage: stage.String()}
		if v, ok := t.Lookup(gene); ok {
			info.Present = true
			info.Value = v
			info.Values, _ = t.Values(gene)
			found = true
		}
		out = append(out, info)
	}
	return out, found, nil
}
