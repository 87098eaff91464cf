package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stageheat/server/internal/data/expr"
	"github.com/stageheat/server/internal/heatmap"
	"github.com/stageheat/server/internal/render"
	"github.com/stageheat/server/internal/service"
)

// newTestRouter serves a three-stage fixture without listening. With
// threshold 1.0 the patterns are: unc-54 A, inx-7 C, inx-1 E, act-1 H.
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"L1.csv": "gene_name,neuronA,neuronB\ninx-1,5,0\nact-1,2,3\nunc-54,0.5,0.2\n",
		"L4.csv": "gene_name,neuronA,neuronB\ninx-1,0.4,0.2\nact-1,4,1\ninx-7,2,2\n",
		"D1.csv": "gene_name,neuronA,neuronB\nact-1,1,0\ninx-7,0,0\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	svc := service.NewHeatmapService(service.Config{
		Paths: [expr.NumStages]string{
			expr.StageL1: filepath.Join(dir, "L1.csv"),
			expr.StageL4: filepath.Join(dir, "L4.csv"),
			expr.StageD1: filepath.Join(dir, "D1.csv"),
		},
		DefaultSort: heatmap.SortByPattern,
		Renderer:    render.NewRenderer(render.DefaultConfig()),
	})

	return NewRouter(RouterConfig{
		Service:     svc,
		CORSOrigins: []string{"http://localhost:3000"},
	})
}

func postJSON(t *testing.T, router http.Handler, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestHeatmapEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := postJSON(t, router, "/api/heatmap",
		`{"genes":["inx-1","act-1","nonexistentgene123"],"threshold":1.0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var payload struct {
		Rows []struct {
			Gene    string `json:"gene"`
			Pattern string `json:"pattern"`
		} `json:"rows"`
		Unresolved []string `json:"unresolved"`
		Threshold  float64  `json:"threshold"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}

	if len(payload.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(payload.Rows))
	}
	// Default sort groups by pattern: inx-1 (E) before act-1 (H).
	if payload.Rows[0].Gene != "inx-1" || payload.Rows[0].Pattern != "E" {
		t.Errorf("unexpected first row: %+v", payload.Rows[0])
	}
	if payload.Rows[1].Gene != "act-1" || payload.Rows[1].Pattern != "H" {
		t.Errorf("unexpected second row: %+v", payload.Rows[1])
	}
	if len(payload.Unresolved) != 1 || payload.Unresolved[0] != "nonexistentgene123" {
		t.Errorf("unexpected unresolved list: %v", payload.Unresolved)
	}
	if payload.Threshold != 1.0 {
		t.Errorf("unexpected threshold: %g", payload.Threshold)
	}
}

func TestHeatmapEndpoint_AllUnresolved(t *testing.T) {
	router := newTestRouter(t)

	// Generation itself succeeds with zero rows; the caller sees the
	// unresolved list and must not request an export.
	rec := postJSON(t, router, "/api/heatmap", `{"genes":["nonexistentgene123"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var payload struct {
		Rows       []json.RawMessage `json:"rows"`
		Unresolved []string          `json:"unresolved"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if len(payload.Rows) != 0 {
		t.Errorf("expected no rows, got %d", len(payload.Rows))
	}
	if len(payload.Unresolved) != 1 {
		t.Errorf("expected 1 unresolved gene, got %v", payload.Unresolved)
	}
}

func TestHeatmapEndpoint_BadRequests(t *testing.T) {
	router := newTestRouter(t)

	t.Run("emptyGenes", func(t *testing.T) {
		rec := postJSON(t, router, "/api/heatmap", `{"genes":[]}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("invalidBody", func(t *testing.T) {
		rec := postJSON(t, router, "/api/heatmap", `{"genes": not-json`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("unsupportedSortMode", func(t *testing.T) {
		rec := postJSON(t, router, "/api/heatmap", `{"genes":["act-1"],"sort":"by_magic"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected %d, got %d: %s", http.StatusBadRequest, rec.Code, rec.Body.String())
		}
	})
}

func TestExportEndpoint(t *testing.T) {
	router := newTestRouter(t)
	body := `{"genes":["inx-1","act-1"],"threshold":1.0}`

	t.Run("png", func(t *testing.T) {
		rec := postJSON(t, router, "/api/heatmap/export/png", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("unexpected content type: %s", ct)
		}
		if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "gene_heatmap.png") {
			t.Errorf("unexpected content disposition: %s", cd)
		}
		if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
			t.Error("body is not a PNG")
		}
	})

	t.Run("svg", func(t *testing.T) {
		rec := postJSON(t, router, "/api/heatmap/export/svg", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected %d, got %d", http.StatusOK, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "image/svg+xml" {
			t.Errorf("unexpected content type: %s", ct)
		}
	})

	t.Run("csv", func(t *testing.T) {
		rec := postJSON(t, router, "/api/heatmap/export/csv", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected %d, got %d", http.StatusOK, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "act-1") {
			t.Error("csv missing expected gene row")
		}
	})

	t.Run("unknownFormat", func(t *testing.T) {
		rec := postJSON(t, router, "/api/heatmap/export/pdf", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("emptyResult", func(t *testing.T) {
		rec := postJSON(t, router, "/api/heatmap/export/png", `{"genes":["nonexistentgene123"]}`)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected %d, got %d: %s", http.StatusNotFound, rec.Code, rec.Body.String())
		}
	})
}

func TestStagesEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/stages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var payload struct {
		Stages []struct {
			Stage string `json:"stage"`
			Genes int    `json:"genes"`
		} `json:"stages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if len(payload.Stages) != 3 {
		t.Fatalf("expected 3 stages, got %d", len(payload.Stages))
	}
	if payload.Stages[0].Stage != "L1" || payload.Stages[0].Genes != 3 {
		t.Errorf("unexpected L1 entry: %+v", payload.Stages[0])
	}
}

func TestPatternsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/patterns", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, rec.Code)
	}

	var payload struct {
		Patterns []struct {
			Label string `json:"label"`
			Bits  string `json:"bits"`
			Color string `json:"color"`
		} `json:"patterns"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if len(payload.Patterns) != 8 {
		t.Fatalf("expected 8 patterns, got %d", len(payload.Patterns))
	}
	if payload.Patterns[0].Label != "A" || payload.Patterns[0].Bits != "000" || payload.Patterns[0].Color != "#66c2a5" {
		t.Errorf("unexpected first pattern: %+v", payload.Patterns[0])
	}
	if payload.Patterns[7].Label != "H" || payload.Patterns[7].Bits != "111" {
		t.Errorf("unexpected last pattern: %+v", payload.Patterns[7])
	}
}

func TestGeneInfoEndpoint(t *testing.T) {
	router := newTestRouter(t)

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/genes/inx-1", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
		}

		var payload struct {
			Gene   string `json:"gene"`
			Stages []struct {
				Stage   string  `json:"stage"`
				Present bool    `json:"present"`
				Value   float64 `json:"value"`
			} `json:"stages"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("failed to decode JSON: %v", err)
		}
		if payload.Gene != "inx-1" || len(payload.Stages) != 3 {
			t.Fatalf("unexpected payload: %+v", payload)
		}
		if !payload.Stages[0].Present || payload.Stages[0].Value != 5 {
			t.Errorf("unexpected L1 entry: %+v", payload.Stages[0])
		}
		if payload.Stages[2].Present {
			t.Errorf("expected inx-1 absent from D1: %+v", payload.Stages[2])
		}
	})

	t.Run("notFound", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/genes/nonexistentgene123", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}
