package filters

import (
	"context"
	"fmt"

	"colony-counter/internal/config"
	"colony-counter/internal/opencv/safe"
	"colony-counter/internal/processing/histogram"
	"colony-counter/internal/processing/threshold"

	"gocv.io/x/gocv"
)

const maskHistogramBins = 256

// PlateMaskFilter zeroes every pixel outside the plate. The plate is the
// triangle-thresholded foreground with holes filled, eroded to drop the rim.
type PlateMaskFilter struct{}

func NewPlateMaskFilter() *PlateMaskFilter {
	return &PlateMaskFilter{}
}

func (p *PlateMaskFilter) Name() string {
	return "plate_mask"
}

func (p *PlateMaskFilter) ShouldExecute(params config.Pipeline) bool {
	return true
}

func (p *PlateMaskFilter) Apply(ctx context.Context, input *safe.Mat, params config.Pipeline) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	mask, err := PlateMask(input, params.ErosionRadius)
	if err != nil {
		return nil, err
	}
	defer mask.Close()

	return ApplyMask(input, mask)
}

// PlateMask returns the 0/255 CV_8UC1 plate mask of a CV_32FC1 image.
func PlateMask(src *safe.Mat, erosionRadius int) (*safe.Mat, error) {
	if err := safe.ValidateFloatImage(src, "plate mask"); err != nil {
		return nil, err
	}

	hist, err := histogram.FromMat(src, maskHistogramBins)
	if err != nil {
		return nil, err
	}
	level := float32(threshold.Triangle(hist))

	values, err := src.Float32s()
	if err != nil {
		return nil, fmt.Errorf("failed to access pixel data: %w", err)
	}

	binary, err := src.Derive(gocv.MatTypeCV8UC1, "plate_threshold")
	if err != nil {
		return nil, fmt.Errorf("failed to create threshold Mat: %w", err)
	}
	defer binary.Close()

	bits, err := binary.Uint8s()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		if v > level {
			bits[i] = 255
		} else {
			bits[i] = 0
		}
	}

	filled, err := FillHoles(binary)
	if err != nil {
		return nil, fmt.Errorf("hole filling failed: %w", err)
	}
	defer filled.Close()

	eroded, err := ErodeBinary(filled, erosionRadius)
	if err != nil {
		return nil, fmt.Errorf("rim erosion failed: %w", err)
	}

	return eroded, nil
}

// ApplyMask returns a copy of src with every pixel outside mask set to zero.
func ApplyMask(src, mask *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateFloatImage(src, "apply mask"); err != nil {
		return nil, err
	}
	if err := safe.ValidateSameSize(src, mask, "apply mask"); err != nil {
		return nil, err
	}

	in, err := src.Float32s()
	if err != nil {
		return nil, err
	}
	keep, err := mask.Uint8s()
	if err != nil {
		return nil, err
	}

	dst, err := src.Derive(gocv.MatTypeCV32FC1, "masked")
	if err != nil {
		return nil, fmt.Errorf("failed to create masked Mat: %w", err)
	}

	out, err := dst.Float32s()
	if err != nil {
		dst.Close()
		return nil, err
	}

	for i, v := range in {
		if keep[i] != 0 {
			out[i] = v
		} else {
			out[i] = 0
		}
	}

	return dst, nil
}
