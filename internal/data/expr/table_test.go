package expr

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleCSV = `gene_name,neuronA,neuronB
inx-1,5,0
act-1,2,3
unc-54,0.5,0.2
`

func TestLoadTable_Lookup(t *testing.T) {
	path := writeCSV(t, "L1.csv", sampleCSV)

	table, err := LoadTable(path, Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, table.Len())
	assert.Equal(t, path, table.Path())
	assert.Equal(t, []string{"neuronA", "neuronB"}, table.Columns())

	// Default aggregation is max across columns.
	v, ok := table.Lookup("inx-1")
	require.True(t, ok)
	assert.Equal(t, 5.0, v)

	v, ok = table.Lookup("act-1")
	require.True(t, ok)
	assert.Equal(t, 3.0, v)

	_, ok = table.Lookup("nonexistentgene123")
	assert.False(t, ok)
}

func TestLoadTable_LookupNormalization(t *testing.T) {
	path := writeCSV(t, "L1.csv", "gene_name,n1\nINX-1,2\n")

	table, err := LoadTable(path, Options{})
	require.NoError(t, err)

	// Lookups are trimmed and case-insensitive.
	for _, q := range []string{"inx-1", "INX-1", "  Inx-1 "} {
		v, ok := table.Lookup(q)
		require.True(t, ok, "lookup %q", q)
		assert.Equal(t, 2.0, v)
	}
}

func TestLoadTable_MeanAggregation(t *testing.T) {
	path := writeCSV(t, "L1.csv", sampleCSV)

	table, err := LoadTable(path, Options{Aggregate: AggregateMean})
	require.NoError(t, err)

	v, ok := table.Lookup("act-1")
	require.True(t, ok)
	assert.InDelta(t, 2.5, v, 1e-9)
}

func TestLoadTable_DuplicateGeneKeepsFirst(t *testing.T) {
	path := writeCSV(t, "L1.csv", "gene_name,n1\ninx-1,7\ninx-1,9\n")

	table, err := LoadTable(path, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, table.Len())
	v, ok := table.Lookup("inx-1")
	require.True(t, ok)
	assert.Equal(t, 7.0, v)
}

func TestLoadTable_CustomGeneColumn(t *testing.T) {
	path := writeCSV(t, "L1.csv", "id,n1\ninx-1,2\n")

	_, err := LoadTable(path, Options{})
	require.ErrorIs(t, err, ErrMalformedTable)

	table, err := LoadTable(path, Options{GeneColumn: "id"})
	require.NoError(t, err)
	_, ok := table.Lookup("inx-1")
	assert.True(t, ok)
}

func TestLoadTable_GeneColumnCaseInsensitive(t *testing.T) {
	path := writeCSV(t, "L1.csv", "Gene_Name,n1\ninx-1,2\n")

	table, err := LoadTable(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
}

func TestLoadTable_UnparsableCellsIgnored(t *testing.T) {
	path := writeCSV(t, "L1.csv", "gene_name,n1,n2\ninx-1,NA,3\nact-1,NA,NA\n")

	table, err := LoadTable(path, Options{})
	require.NoError(t, err)

	v, ok := table.Lookup("inx-1")
	require.True(t, ok)
	assert.Equal(t, 3.0, v)

	// A row with no parsable cells aggregates to 0 but stays present.
	v, ok = table.Lookup("act-1")
	require.True(t, ok)
	assert.Equal(t, 0.0, v)

	values, ok := table.Values("inx-1")
	require.True(t, ok)
	assert.Equal(t, map[string]float64{"n2": 3}, values)
}

func TestLoadTable_Gzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(sampleCSV))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "L1.csv.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	table, err := LoadTable(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())

	v, ok := table.Lookup("inx-1")
	require.True(t, ok)
	assert.Equal(t, 5.0, v)
}

func TestLoadTable_MissingFile(t *testing.T) {
	_, err := LoadTable(filepath.Join(t.TempDir(), "nope.csv"), Options{})
	require.ErrorIs(t, err, ErrMissingFile)
}

func TestLoadTable_Malformed(t *testing.T) {
	t.Run("noGeneColumn", func(t *testing.T) {
		path := writeCSV(t, "bad.csv", "id,n1\ninx-1,2\n")
		_, err := LoadTable(path, Options{})
		require.ErrorIs(t, err, ErrMalformedTable)
	})

	t.Run("noExpressionColumns", func(t *testing.T) {
		path := writeCSV(t, "bad.csv", "gene_name\ninx-1\n")
		_, err := LoadTable(path, Options{})
		require.ErrorIs(t, err, ErrMalformedTable)
	})

	t.Run("raggedRow", func(t *testing.T) {
		path := writeCSV(t, "bad.csv", "gene_name,n1\ninx-1,2,3,4\n")
		_, err := LoadTable(path, Options{})
		require.ErrorIs(t, err, ErrMalformedTable)
	})
}

func TestParseAggregation(t *testing.T) {
	for in, want := range map[string]Aggregation{
		"max":   AggregateMax,
		"MEAN ": AggregateMean,
	} {
		got, err := ParseAggregation(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseAggregation("median")
	require.Error(t, err)
}
