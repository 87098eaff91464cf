// Package heatmap classifies genes into stage expression patterns and orders
// them for display.
package heatmap

import (
	"fmt"

	"github.com/stageheat/server/internal/data/expr"
)

// Pattern is a 3-bit stage expression code: L1 is bit 2, L4 is bit 1, D1 is
// bit 0. Each of the eight codes carries a fixed label A through H.
type Pattern uint8

// NumPatterns is the number of distinct stage patterns.
const NumPatterns = 8

// patternTable is the single source of truth for the code -> label mapping.
// Indexed by code, so the mapping is total over all eight codes.
var patternTable = [NumPatterns]struct {
	label       string
	description string
}{
	{"A", "none (no stage)"},
	{"B", "D1 only"},
	{"C", "L4 only"},
	{"D", "L4 + D1"},
	{"E", "L1 only"},
	{"F", "L1 + D1"},
	{"G", "L1 + L4"},
	{"H", "L1 + L4 + D1"},
}

// PatternOf combines the three stage calls into a pattern.
func PatternOf(l1, l4, d1 bool) Pattern {
	var code Pattern
	if l1 {
		code |= 4
	}
	if l4 {
		code |= 2
	}
	if d1 {
		code |= 1
	}
	return code
}

// Code returns the 3-bit code value (0-7).
func (p Pattern) Code() int {
	return int(p & 7)
}

// Label returns the fixed letter label (A-H).
func (p Pattern) Label() string {
	return patternTable[p.Code()].label
}

// Description returns the human-readable stage combination.
func (p Pattern) Description() string {
	return patternTable[p.Code()].description
}

// Bits renders the code as a 3-character bit string, L1 first.
func (p Pattern) Bits() string {
	return fmt.Sprintf("%03b", p.Code())
}

// Call reports whether the pattern includes the given stage.
func (p Pattern) Call(stage expr.Stage) bool {
	return p.Code()&(1<<(expr.NumStages-1-int(stage))) != 0
}

// String implements fmt.Stringer.
func (p Pattern) String() string {
	return p.Label()
}

// MarshalJSON renders the pattern as its letter label.
func (p Pattern) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.Label() + `"`), nil
}

// Patterns lists all eight patterns in code order.
func Patterns() [NumPatterns]Pattern {
	var out [NumPatterns]Pattern
	for i := range out {
		out[i] = Pattern(i)
	}
	return out
}
