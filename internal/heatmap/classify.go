package heatmap

import (
	"github.com/stageheat/server/internal/data/expr"
)

// DefaultThreshold is the expression cutoff used when the caller supplies
// none. A value equal to the threshold counts as expressed.
const DefaultThreshold = 0.0

// Row is one classified gene: the three stage calls, the aggregated values
// behind them, and the resulting pattern. Row order is a display concern
// handled by the sorter.
type Row struct {
	Gene    string                  `json:"gene"`
	Calls   [expr.NumStages]bool    `json:"calls"`
	Values  [expr.NumStages]float64 `json:"values"`
	Present [expr.NumStages]bool    `json:"present"`
	Pattern Pattern                 `json:"pattern"`
}

// Result is the outcome of one generation request. Unresolved lists requested
// genes absent from every stage table; they are reported, never dropped
// silently.
type Result struct {
	Rows       []Row    `json:"rows"`
	Threshold  float64  `json:"threshold"`
	Sort       SortMode `json:"sort"`
	Unresolved []string `json:"unresolved"`
}

// Classify computes the stage calls and pattern for one gene. The call for a
// stage is true iff the gene is present in that stage's table and its value
// meets the threshold (inclusive, identical for all stages). A gene absent
// from one table is non-expressed at that stage; ok is false only when the
// gene resolved to no data in all three tables, in which case the row must be
// skipped and the gene reported as unresolved.
func Classify(gene string, store *expr.Store, threshold float64) (Row, bool) {
	sv, ok := store.Resolve(gene)
	if !ok {
		return Row{}, false
	}

	row := Row{Gene: gene}
	for _, stage := range expr.Stages {
		row.Values[stage] = sv[stage].Value
		row.Present[stage] = sv[stage].Present
		row.Calls[stage] = sv[stage].Present && sv[stage].Value >= threshold
	}
	row.Pattern = PatternOf(row.Calls[expr.StageL1], row.Calls[expr.StageL4], row.Calls[expr.StageD1])
	return row, true
}

// ClassifyAll classifies the requested genes in input order, accumulating
// unresolved identifiers into the result metadata.
func ClassifyAll(genes []string, store *expr.Store, threshold float64) *Result {
	res := &Result{
		Rows:       make([]Row, 0, len(genes)),
		Threshold:  threshold,
		Unresolved: []string{},
	}
	for _, gene := range genes {
		if row, ok := Classify(gene, store, threshold); ok {
			res.Rows = append(res.Rows, row)
		} else {
			res.Unresolved = append(res.Unresolved, gene)
		}
	}
	return res
}
