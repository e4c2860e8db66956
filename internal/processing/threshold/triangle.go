package threshold

import (
	"math"

	"colony-counter/internal/processing/histogram"
)

// Triangle returns the triangle-method threshold of h: the bin centre
// farthest below the line joining the histogram peak to the far end of its
// longer tail. A constant histogram returns its single value.
func Triangle(h *histogram.Histogram) float64 {
	if h == nil || h.Bins() == 0 {
		return 0
	}
	if h.Constant() {
		return h.Min
	}

	nbins := h.Bins()
	counts := h.Counts

	// Find histogram peak
	peakIndex := 0
	for i, count := range counts {
		if count > counts[peakIndex] {
			peakIndex = i
		}
	}
	peakHeight := float64(counts[peakIndex])

	// Find histogram endpoints
	lowEnd, highEnd := 0, nbins-1
	for i := 0; i < nbins; i++ {
		if counts[i] > 0 {
			lowEnd = i
			break
		}
	}
	for i := nbins - 1; i >= 0; i-- {
		if counts[i] > 0 {
			highEnd = i
			break
		}
	}

	// Work on the longer tail; mirror the histogram so it lies left of the peak.
	flip := peakIndex-lowEnd < highEnd-peakIndex
	at := func(i int) float64 { return float64(counts[i]) }
	if flip {
		at = func(i int) float64 { return float64(counts[nbins-1-i]) }
		lowEnd = nbins - 1 - highEnd
		peakIndex = nbins - 1 - peakIndex
	}

	width := float64(peakIndex - lowEnd)
	if width == 0 {
		return h.BinCenter(peakIndex)
	}

	norm := math.Sqrt(peakHeight*peakHeight + width*width)
	nh, nw := peakHeight/norm, width/norm

	level := lowEnd
	best := math.Inf(-1)
	for x := 0; x < peakIndex-lowEnd; x++ {
		distance := nh*float64(x) - nw*at(x+lowEnd)
		if distance > best {
			best = distance
			level = x + lowEnd
		}
	}

	if flip {
		level = nbins - 1 - level
	}

	return h.BinCenter(level)
}
