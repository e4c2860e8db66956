package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"colony-counter/internal/models"
)

var header = []string{"Name", "Count"}

// WriteCSV writes the table to path with a Name,Count header, replacing any
// existing file.
func WriteCSV(path string, table *models.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}

	if err := Encode(f, table); err != nil {
		f.Close()
		return fmt.Errorf("failed to write summary file %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close summary file %s: %w", path, err)
	}
	return nil
}

// Encode writes the table as CSV to w.
func Encode(w io.Writer, table *models.Table) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range table.Rows() {
		if err := cw.Write([]string{row.Name, strconv.Itoa(row.Count)}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
