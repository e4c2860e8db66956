package report

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"colony-counter/internal/models"
)

// Summary describes the colony counts of a batch.
type Summary struct {
	Images int
	Total  int
	Mean   float64
	StdDev float64
	Min    int
	Max    int
}

// Summarize computes batch statistics. StdDev is the sample standard
// deviation and is zero for fewer than two images.
func Summarize(table *models.Table) Summary {
	counts := table.Counts()
	if len(counts) == 0 {
		return Summary{}
	}

	s := Summary{
		Images: len(counts),
		Total:  int(floats.Sum(counts)),
		Mean:   stat.Mean(counts, nil),
		Min:    int(floats.Min(counts)),
		Max:    int(floats.Max(counts)),
	}
	if len(counts) > 1 {
		s.StdDev = stat.StdDev(counts, nil)
	}
	return s
}
