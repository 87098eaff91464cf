// Package expr loads per-stage gene expression tables from CSV files.
package expr

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Sentinel errors for table loading. Both abort heatmap generation; a gene
// missing from a loaded table is not an error.
var (
	ErrMissingFile    = errors.New("expression table file missing")
	ErrMalformedTable = errors.New("malformed expression table")
)

// DefaultGeneColumn is the header of the gene-identifier column.
const DefaultGeneColumn = "gene_name"

// Aggregation collapses the per-cell-type columns of a table into one
// representative value per gene. The same policy applies to every stage so
// that threshold calls stay comparable across stages.
type Aggregation string

const (
	// AggregateMax takes the maximum across cell-type columns: a gene counts
	// as expressed at a stage if any cell type expresses it.
	AggregateMax Aggregation = "max"
	// AggregateMean takes the mean across cell-type columns.
	AggregateMean Aggregation = "mean"
)

// ParseAggregation validates an aggregation policy name.
func ParseAggregation(s string) (Aggregation, error) {
	switch Aggregation(strings.ToLower(strings.TrimSpace(s))) {
	case AggregateMax:
		return AggregateMax, nil
	case AggregateMean:
		return AggregateMean, nil
	default:
		return "", fmt.Errorf("unknown aggregation policy %q", s)
	}
}

// Options controls table parsing.
type Options struct {
	// GeneColumn is the header of the gene-identifier column,
	// matched case-insensitively. Defaults to DefaultGeneColumn.
	GeneColumn string
	// Aggregate is the column aggregation policy. Defaults to AggregateMax.
	Aggregate Aggregation
}

func (o Options) withDefaults() Options {
	if o.GeneColumn == "" {
		o.GeneColumn = DefaultGeneColumn
	}
	if o.Aggregate == "" {
		o.Aggregate = AggregateMax
	}
	return o
}

// Table is one stage's expression table, indexed by normalized gene
// identifier. Loaded once, immutable afterwards.
type Table struct {
	path    string
	columns []string
	genes   map[string]geneRecord
}

type geneRecord struct {
	name   string // identifier as written in the file
	agg    float64
	values map[string]float64
}

// Normalize canonicalizes a gene identifier for lookup: trimmed, lower-cased.
func Normalize(gene string) string {
	return strings.ToLower(strings.TrimSpace(gene))
}

// LoadTable parses a CSV (or gzip-compressed CSV) expression table. The file
// must contain the gene-identifier column and at least one numeric column.
// Duplicate gene rows keep the first occurrence.
func LoadTable(path string, opts Options) (*Table, error) {
	opts = opts.withDefaults()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMissingFile, path, err)
	}
	defer f.Close()

	r, err := maybeGunzip(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedTable, path, err)
	}

	t, err := parseTable(r, path, opts)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// maybeGunzip sniffs the gzip magic bytes and wraps the reader if present.
func maybeGunzip(f *os.File) (io.Reader, error) {
	magic := make([]byte, 2)
	n, err := f.Read(magic)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if n == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		return gzip.NewReader(f)
	}
	return f, nil
}

func parseTable(r io.Reader, path string, opts Options) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: empty or unreadable header: %v", ErrMalformedTable, path, err)
	}

	geneIdx := -1
	for i, col := range header {
		header[i] = strings.TrimSpace(col)
		if strings.EqualFold(header[i], opts.GeneColumn) {
			geneIdx = i
		}
	}
	if geneIdx < 0 {
		return nil, fmt.Errorf("%w: %s: gene column %q not found", ErrMalformedTable, path, opts.GeneColumn)
	}

	var columns []string
	for i, col := range header {
		if i != geneIdx {
			columns = append(columns, col)
		}
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: %s: no expression columns", ErrMalformedTable, path)
	}

	genes := make(map[string]geneRecord)
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: line %d: %v", ErrMalformedTable, path, line, err)
		}

		name := strings.TrimSpace(record[geneIdx])
		if name == "" {
			continue
		}
		key := Normalize(name)
		if _, dup := genes[key]; dup {
			// First occurrence wins.
			continue
		}

		values := make(map[string]float64, len(columns))
		col := 0
		for i, field := range record {
			if i == geneIdx {
				continue
			}
			if v, err := strconv.ParseFloat(strings.TrimSpace(field), 64); err == nil {
				values[columns[col]] = v
			}
			col++
		}
		genes[key] = geneRecord{
			name:   name,
			agg:    aggregate(values, opts.Aggregate),
			values: values,
		}
	}

	return &Table{path: path, columns: columns, genes: genes}, nil
}

// aggregate collapses the parsed column values to the representative value.
// A gene row with no parsable numeric cells aggregates to 0.
func aggregate(values map[string]float64, policy Aggregation) float64 {
	if len(values) == 0 {
		return 0
	}
	switch policy {
	case AggregateMean:
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	default:
		first := true
		max := 0.0
		for _, v := range values {
			if first || v > max {
				max = v
				first = false
			}
		}
		return max
	}
}

// Lookup returns the aggregated expression value for a gene.
func (t *Table) Lookup(gene string) (float64, bool) {
	rec, ok := t.genes[Normalize(gene)]
	if !ok {
		return 0, false
	}
	return rec.agg, true
}

// Values returns the per-column values for a gene. Columns whose cell failed
// numeric parsing are omitted.
func (t *Table) Values(gene string) (map[string]float64, bool) {
	rec, ok := t.genes[Normalize(gene)]
	if !ok {
		return nil, false
	}
	out := make(map[string]float64, len(rec.values))
	for k, v := range rec.values {
		out[k] = v
	}
	return out, true
}

// Columns returns the expression column headers in file order.
func (t *Table) Columns() []string {
	return t.columns
}

// Len returns the number of distinct genes in the table.
func (t *Table) Len() int {
	return len(t.genes)
}

// Path returns the file the table was loaded from.
func (t *Table) Path() string {
	return t.path
}
