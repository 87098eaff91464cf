// Package api provides HTTP handlers for the stageheat server.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/stageheat/server/internal/heatmap"
	"github.com/stageheat/server/internal/render"
	"github.com/stageheat/server/internal/service"
	"github.com/stageheat/server/pkg/colormap"
)

// RouterConfig contains router configuration.
type RouterConfig struct {
	Service     *service.HeatmapService
	CORSOrigins []string
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/stages", stagesHandler(cfg.Service))
		r.Get("/patterns", patternsHandler)
		r.Get("/genes/{gene}", geneInfoHandler(cfg.Service))
		r.Post("/heatmap", heatmapHandler(cfg.Service))
		r.Post("/heatmap/export/{format}", exportHandler(cfg.Service))
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, heatmap.ErrUnsupportedSortMode),
		errors.Is(err, service.ErrUnsupportedFormat):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, render.ErrEmptyResult):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

// stagesHandler reports the loaded stage tables.
func stagesHandler(svc *service.HeatmapService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stages, err := svc.Stages(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"stages": stages})
	}
}

// patternsHandler reports the fixed pattern table with its colors.
func patternsHandler(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		Label       string `json:"label"`
		Bits        string `json:"bits"`
		Description string `json:"description"`
		Color       string `json:"color"`
	}
	out := make([]entry, 0, heatmap.NumPatterns)
	for _, p := range heatmap.Patterns() {
		out = append(out, entry{
			Label:       p.Label(),
			Bits:        p.Bits(),
			Description: p.Description(),
			Color:       colormap.Hex(colormap.Pattern.AtIndex(p.Code())),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"patterns": out})
}

// geneInfoHandler resolves one gene against every stage table.
func geneInfoHandler(svc *service.HeatmapService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gene := strings.TrimSpace(chi.URLParam(r, "gene"))
		if gene == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing gene"})
			return
		}
		stages, found, err := svc.GeneInfo(r.Context(), gene)
		if err != nil {
			writeError(w, err)
			return
		}
		if !found {
			writeJSON(w, http.StatusNotFound, map[string]interface{}{
				"gene":  gene,
				"error": "gene not found in any stage table",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"gene":   gene,
			"stages": stages,
		})
	}
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (service.Request, bool) {
	var req service.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return req, false
	}
	if len(req.Genes) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "genes list is empty"})
		return req, false
	}
	return req, true
}

// heatmapHandler returns the classified, sorted rows as JSON. The response
// always carries the unresolved list, so callers can tell "no genes matched"
// from "succeeded with N skipped".
func heatmapHandler(svc *service.HeatmapService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeRequest(w, r)
		if !ok {
			return
		}
		res, err := svc.Generate(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// exportHandler streams a rendered export (png, svg or csv).
func exportHandler(svc *service.HeatmapService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format := strings.ToLower(chi.URLParam(r, "format"))
		req, ok := decodeRequest(w, r)
		if !ok {
			return
		}
		data, contentType, err := svc.Export(r.Context(), req, format)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", `attachment; filename="gene_heatmap.`+format+`"`)
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}
