package filters

import (
	"context"
	"fmt"
	"image"

	"colony-counter/internal/config"
	"colony-counter/internal/opencv/safe"

	"gocv.io/x/gocv"
)

type GaussianFilter struct{}

func NewGaussianFilter() *GaussianFilter {
	return &GaussianFilter{}
}

func (g *GaussianFilter) Name() string {
	return "gaussian_filter"
}

func (g *GaussianFilter) ShouldExecute(params config.Pipeline) bool {
	return params.SmoothingSigma > 0
}

func (g *GaussianFilter) Apply(ctx context.Context, input *safe.Mat, params config.Pipeline) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := safe.ValidateFloatImage(input, "gaussian filter"); err != nil {
		return nil, err
	}

	return g.applyGaussianBlur(input, params.SmoothingSigma)
}

// KernelSize returns the odd kernel width covering four standard deviations
// on each side of the centre.
func KernelSize(sigma float64) int {
	return 2*int(4*sigma+0.5) + 1
}

func (g *GaussianFilter) applyGaussianBlur(src *safe.Mat, sigma float64) (*safe.Mat, error) {
	dst, err := src.Derive(gocv.MatTypeCV32FC1, "smoothed")
	if err != nil {
		return nil, fmt.Errorf("failed to create destination Mat: %w", err)
	}

	kernelSize := KernelSize(sigma)

	srcMat := src.GetMat()
	dstMat := dst.GetMat()

	gocv.GaussianBlur(srcMat, &dstMat, image.Point{X: kernelSize, Y: kernelSize}, sigma, sigma, gocv.BorderReplicate)

	return dst, nil
}
