package peaks

import (
	"fmt"
	"image"
	"sort"

	"colony-counter/internal/config"
	"colony-counter/internal/models"
	"colony-counter/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// Detector finds colony peaks in a background-suppressed image.
type Detector struct {
	// MinDistance is the Chebyshev radius of the local-maximum window; two
	// kept peaks are always at least MinDistance pixels apart.
	MinDistance int
	// RelThreshold is the fraction of the image's dynamic range a peak must
	// rise above the image minimum.
	RelThreshold float64
	// ExcludeBorder drops peaks within max(MinDistance, 1) pixels of the edge.
	ExcludeBorder bool
}

func NewDetector(params config.Pipeline) *Detector {
	return &Detector{
		MinDistance:   params.MinDistance,
		RelThreshold:  params.PeakRelThreshold,
		ExcludeBorder: true,
	}
}

// Detect returns peak coordinates ordered by descending intensity, ties in
// row-major order. An image with no dynamic range has no peaks.
func (d *Detector) Detect(src *safe.Mat) ([]models.Coordinate, error) {
	if err := safe.ValidateFloatImage(src, "peak detection"); err != nil {
		return nil, err
	}
	if d.MinDistance < 1 {
		return nil, fmt.Errorf("min distance must be at least 1, got %d", d.MinDistance)
	}

	size := 2*d.MinDistance + 1
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: size, Y: size})
	defer kernel.Close()

	srcMat := src.GetMat()
	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(srcMat, &dilated, kernel)

	minVal, maxVal, _, _ := gocv.MinMaxLoc(srcMat)
	if maxVal <= minVal {
		return []models.Coordinate{}, nil
	}

	values, err := src.Float32s()
	if err != nil {
		return nil, err
	}
	localMax, err := dilated.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to access dilated data: %w", err)
	}

	floor := float64(minVal) + d.RelThreshold*float64(maxVal-minVal)
	candidates := d.collect(values, localMax, src.Rows(), src.Cols(), floor)

	return d.enforceSpacing(candidates, src.Cols()), nil
}

type candidate struct {
	models.Coordinate
	value float32
}

func (d *Detector) collect(values, localMax []float32, rows, cols int, floor float64) []candidate {
	border := 0
	if d.ExcludeBorder {
		border = max(d.MinDistance, 1)
	}

	var out []candidate
	for r := border; r < rows-border; r++ {
		for c := border; c < cols-border; c++ {
			i := r*cols + c
			v := values[i]
			if v != localMax[i] || float64(v) <= floor {
				continue
			}
			out = append(out, candidate{Coordinate: models.Coordinate{Row: r, Col: c}, value: v})
		}
	}

	// candidates are in row-major order; a stable sort keeps that for ties
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].value > out[j].value
	})
	return out
}

// enforceSpacing keeps candidates greedily from the brightest down, dropping
// any closer than MinDistance (Chebyshev) to one already kept. Points exactly
// MinDistance apart both survive. Plateaus collapse to their first pixel.
func (d *Detector) enforceSpacing(candidates []candidate, cols int) []models.Coordinate {
	md := d.MinDistance
	cell := md + 1
	gridCols := cols/cell + 1
	grid := make(map[int][]models.Coordinate)

	kept := make([]models.Coordinate, 0, len(candidates))
	for _, cand := range candidates {
		gr, gc := cand.Row/cell, cand.Col/cell

		if d.conflicts(grid, gridCols, gr, gc, cand.Coordinate) {
			continue
		}

		key := gr*gridCols + gc
		grid[key] = append(grid[key], cand.Coordinate)
		kept = append(kept, cand.Coordinate)
	}

	return kept
}

func (d *Detector) conflicts(grid map[int][]models.Coordinate, gridCols, gr, gc int, p models.Coordinate) bool {
	md := d.MinDistance
	for r := gr - 1; r <= gr+1; r++ {
		for c := gc - 1; c <= gc+1; c++ {
			if r < 0 || c < 0 || c >= gridCols {
				continue
			}
			for _, q := range grid[r*gridCols+c] {
				if abs(q.Row-p.Row) < md && abs(q.Col-p.Col) < md {
					return true
				}
			}
		}
	}
	return false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
