package render

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/stageheat/server/internal/data/expr"
	"github.com/stageheat/server/internal/heatmap"
)

// CSV exports the underlying row table for non-image use: gene identifier,
// the three stage calls as 0/1, the aggregated values (empty when the gene is
// absent from that stage's table), and the pattern label.
func (r *Renderer) CSV(res *heatmap.Result) ([]byte, error) {
	if len(res.Rows) == 0 {
		return nil, ErrEmptyResult
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"gene"}
	for _, stage := range expr.Stages {
		header = append(header, stage.String()+"_call")
	}
	for _, stage := range expr.Stages {
		header = append(header, stage.String()+"_value")
	}
	header = append(header, "pattern", "pattern_bits")
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, row := range res.Rows {
		record := []string{row.Gene}
		for _, stage := range expr.Stages {
			record = append(record, boolBit(row.Calls[stage]))
		}
		for _, stage := range expr.Stages {
			if row.Present[stage] {
				record = append(record, strconv.FormatFloat(row.Values[stage], 'g', -1, 64))
			} else {
				record = append(record, "")
			}
		}
		record = append(record, row.Pattern.Label(), row.Pattern.Bits())
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func boolBit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
