package histogram

import (
	"fmt"
	"math"

	"colony-counter/internal/opencv/safe"
)

// Histogram is a fixed-bin intensity histogram spanning [Min, Max] of the
// source image.
type Histogram struct {
	Counts []int
	Min    float64
	Max    float64
}

// FromValues bins values into nbins equal-width bins over their own range.
// Values equal to the maximum fall into the last bin.
func FromValues(values []float32, nbins int) (*Histogram, error) {
	if nbins <= 0 {
		return nil, fmt.Errorf("bin count must be positive, got %d", nbins)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("cannot build histogram of empty input")
	}

	minVal, maxVal := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		f := float64(v)
		if f < minVal {
			minVal = f
		}
		if f > maxVal {
			maxVal = f
		}
	}

	h := &Histogram{Counts: make([]int, nbins), Min: minVal, Max: maxVal}

	span := maxVal - minVal
	if span == 0 {
		h.Counts[0] = len(values)
		return h, nil
	}

	scale := float64(nbins) / span
	for _, v := range values {
		idx := int((float64(v) - minVal) * scale)
		if idx >= nbins {
			idx = nbins - 1
		}
		h.Counts[idx]++
	}

	return h, nil
}

// FromMat builds a histogram of a CV_32FC1 Mat.
func FromMat(src *safe.Mat, nbins int) (*Histogram, error) {
	if err := safe.ValidateFloatImage(src, "histogram"); err != nil {
		return nil, err
	}

	values, err := src.Float32s()
	if err != nil {
		return nil, fmt.Errorf("failed to access pixel data: %w", err)
	}

	return FromValues(values, nbins)
}

func (h *Histogram) Bins() int {
	return len(h.Counts)
}

func (h *Histogram) BinWidth() float64 {
	return (h.Max - h.Min) / float64(len(h.Counts))
}

// BinCenter returns the intensity at the centre of bin i.
func (h *Histogram) BinCenter(i int) float64 {
	return h.Min + (float64(i)+0.5)*h.BinWidth()
}

// Constant reports whether every sample had the same value.
func (h *Histogram) Constant() bool {
	return h.Max == h.Min
}
