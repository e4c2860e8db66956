package models

import (
	"sync"
	"time"
)

// Coordinate is a pixel position, row first.
type Coordinate struct {
	Row int
	Col int
}

// Detection is the outcome of analysing one image.
type Detection struct {
	Name        string
	Path        string
	Width       int
	Height      int
	Coordinates []Coordinate
	ProcessTime time.Duration
}

// Count returns the number of detected colonies.
func (d *Detection) Count() int {
	return len(d.Coordinates)
}

// Result is one row of the summary table. It is not modified after it has
// been appended.
type Result struct {
	Name  string
	Count int
}

// Table accumulates results in processing order.
type Table struct {
	rows []Result
	mu   sync.RWMutex
}

func NewTable() *Table {
	return &Table{}
}

func (t *Table) Append(r Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = append(t.rows, r)
}

// Rows returns a copy of the accumulated results.
func (t *Table) Rows() []Result {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Result, len(t.rows))
	copy(out, t.rows)
	return out
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Counts returns the colony counts as float64 for statistics.
func (t *Table) Counts() []float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]float64, len(t.rows))
	for i, r := range t.rows {
		out[i] = float64(r.Count)
	}
	return out
}
