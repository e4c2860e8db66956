package filters

import (
	"context"
	"fmt"

	"colony-counter/internal/config"
	"colony-counter/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// BackgroundSuppressor isolates colony-sized bright features. It takes the
// white top-hat of the masked plate, then subtracts whatever of the top-hat
// is reachable from the image border by reconstruction, which removes
// residue connected to the frame.
type BackgroundSuppressor struct{}

func NewBackgroundSuppressor() *BackgroundSuppressor {
	return &BackgroundSuppressor{}
}

func (b *BackgroundSuppressor) Name() string {
	return "background_suppression"
}

func (b *BackgroundSuppressor) ShouldExecute(params config.Pipeline) bool {
	return true
}

func (b *BackgroundSuppressor) Apply(ctx context.Context, input *safe.Mat, params config.Pipeline) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	tophat, err := WhiteTopHat(input, params.ColonySize)
	if err != nil {
		return nil, fmt.Errorf("top-hat failed: %w", err)
	}
	defer tophat.Close()

	values, err := tophat.Float32s()
	if err != nil {
		return nil, err
	}

	rows, cols := tophat.Rows(), tophat.Cols()
	reconstructed := BorderSeed(values, rows, cols)
	if err := ReconstructByDilation(reconstructed, values, rows, cols); err != nil {
		return nil, fmt.Errorf("reconstruction failed: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	dst, err := input.Derive(gocv.MatTypeCV32FC1, "suppressed")
	if err != nil {
		return nil, fmt.Errorf("failed to create suppressed Mat: %w", err)
	}

	out, err := dst.Float32s()
	if err != nil {
		dst.Close()
		return nil, err
	}

	for i, v := range values {
		out[i] = max(v-reconstructed[i], 0)
	}

	return dst, nil
}
