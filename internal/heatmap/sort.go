package heatmap

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnsupportedSortMode rejects unrecognized sort modes before any table
// work happens.
var ErrUnsupportedSortMode = errors.New("unsupported sort mode")

// SortMode selects the row ordering of a rendered heatmap.
type SortMode string

const (
	// SortByInput preserves the caller's gene list order.
	SortByInput SortMode = "input"
	// SortByPattern groups rows by pattern label A..H, ties by input order.
	SortByPattern SortMode = "pattern"
	// SortAlphabetical orders rows by gene identifier.
	SortAlphabetical SortMode = "alphabetical"
)

// ParseSortMode validates a sort mode name. The empty string selects
// SortByPattern, matching the original tool's default of grouping similar
// patterns together.
func ParseSortMode(s string) (SortMode, error) {
	switch SortMode(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return SortByPattern, nil
	case SortByInput:
		return SortByInput, nil
	case SortByPattern:
		return SortByPattern, nil
	case SortAlphabetical:
		return SortAlphabetical, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSortMode, s)
	}
}

// SortRows orders rows in place. Every mode is stable: equal keys keep their
// prior relative order.
func SortRows(rows []Row, mode SortMode) error {
	switch mode {
	case SortByInput:
		// Rows are classified in input order already.
		return nil
	case SortByPattern:
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Pattern.Code() < rows[j].Pattern.Code()
		})
		return nil
	case SortAlphabetical:
		sort.SliceStable(rows, func(i, j int) bool {
			return strings.ToLower(rows[i].Gene) < strings.ToLower(rows[j].Gene)
		})
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedSortMode, mode)
	}
}
