package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"colony-counter/internal/models"
)

func sampleTable() *models.Table {
	table := models.NewTable()
	table.Append(models.Result{Name: "plate b", Count: 12})
	table.Append(models.Result{Name: "plate,a", Count: 4})
	table.Append(models.Result{Name: "empty", Count: 0})
	return table
}

func TestEncodeWritesHeaderAndRowsInOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleTable()))

	require.Equal(t, "Name,Count\nplate b,12\n\"plate,a\",4\nempty,0\n", buf.String())
}

func TestEncodeEmptyTableWritesHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, models.NewTable()))
	require.Equal(t, "Name,Count\n", buf.String())
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Output.csv")
	require.NoError(t, WriteCSV(path, sampleTable()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "plate b,12\n")
}

func TestWriteCSVMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "Output.csv")
	require.Error(t, WriteCSV(path, sampleTable()))
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleTable())

	require.Equal(t, 3, s.Images)
	require.Equal(t, 16, s.Total)
	require.InDelta(t, 16.0/3.0, s.Mean, 1e-9)
	require.InDelta(t, 6.110100927, s.StdDev, 1e-6)
	require.Equal(t, 0, s.Min)
	require.Equal(t, 12, s.Max)
}

func TestSummarizeSmallTables(t *testing.T) {
	require.Equal(t, Summary{}, Summarize(models.NewTable()))

	one := models.NewTable()
	one.Append(models.Result{Name: "only", Count: 7})
	s := Summarize(one)
	require.Equal(t, 7, s.Total)
	require.Zero(t, s.StdDev)
}
