package expr

import "fmt"

// Stage is a developmental time point with its own expression table.
type Stage int

// The three stages, in bit order (L1 most significant).
const (
	StageL1 Stage = iota
	StageL4
	StageD1
)

// NumStages is the number of developmental stages.
const NumStages = 3

// Stages lists all stages in order.
var Stages = [NumStages]Stage{StageL1, StageL4, StageD1}

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageL1:
		return "L1"
	case StageL4:
		return "L4"
	case StageD1:
		return "D1"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// StageValue is a gene's aggregated value at one stage. Present is false when
// the gene is absent from that stage's table.
type StageValue struct {
	Value   float64
	Present bool
}

// StageValues holds one StageValue per stage, indexed by Stage.
type StageValues [NumStages]StageValue

// Store holds the three immutable stage tables for one dataset.
type Store struct {
	tables [NumStages]*Table
}

// NewStore builds a store from already-loaded tables.
func NewStore(l1, l4, d1 *Table) *Store {
	return &Store{tables: [NumStages]*Table{l1, l4, d1}}
}

// LoadStore loads all three stage tables with a shared parsing policy.
func LoadStore(paths [NumStages]string, opts Options) (*Store, error) {
	var tables [NumStages]*Table
	for _, stage := range Stages {
		t, err := LoadTable(paths[stage], opts)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", stage, err)
		}
		tables[stage] = t
	}
	return &Store{tables: tables}, nil
}

// Table returns the table for a stage.
func (s *Store) Table(stage Stage) *Table {
	return s.tables[stage]
}

// Resolve looks a gene up in every stage table. A gene absent from one table
// resolves to Present=false for that stage; ok is false only when the gene is
// absent from all three, in which case the caller reports it as unresolved.
func (s *Store) Resolve(gene string) (StageValues, bool) {
	var sv StageValues
	any := false
	for _, stage := range Stages {
		v, ok := s.tables[stage].Lookup(gene)
		sv[stage] = StageValue{Value: v, Present: ok}
		any = any || ok
	}
	return sv, any
}
