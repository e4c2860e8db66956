package filters

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"colony-counter/internal/config"
	"colony-counter/internal/opencv/safe"
)

func newFloatMat(t *testing.T, rows, cols int, fill func(r, c int) float32) *safe.Mat {
	t.Helper()

	mat, err := safe.NewMat(rows, cols, gocv.MatTypeCV32FC1)
	require.NoError(t, err)
	t.Cleanup(mat.Close)

	values, err := mat.Float32s()
	require.NoError(t, err)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			values[r*cols+c] = fill(r, c)
		}
	}
	return mat
}

func newMask(t *testing.T, rows, cols int, on func(r, c int) bool) *safe.Mat {
	t.Helper()

	mat, err := safe.NewMat(rows, cols, gocv.MatTypeCV8UC1)
	require.NoError(t, err)
	t.Cleanup(mat.Close)

	bits, err := mat.Uint8s()
	require.NoError(t, err)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if on(r, c) {
				bits[r*cols+c] = 255
			} else {
				bits[r*cols+c] = 0
			}
		}
	}
	return mat
}

func TestKernelSize(t *testing.T) {
	require.Equal(t, 3, KernelSize(0.3))
	require.Equal(t, 9, KernelSize(1))
	require.Equal(t, 17, KernelSize(2))
}

func TestGaussianFilterDisabledAtZeroSigma(t *testing.T) {
	params := config.DefaultPipeline()
	require.True(t, NewGaussianFilter().ShouldExecute(params))

	params.SmoothingSigma = 0
	require.False(t, NewGaussianFilter().ShouldExecute(params))
}

func TestGaussianFilterKeepsConstantImage(t *testing.T) {
	src := newFloatMat(t, 20, 20, func(int, int) float32 { return 12 })

	out, err := NewGaussianFilter().Apply(context.Background(), src, config.DefaultPipeline())
	require.NoError(t, err)
	defer out.Close()

	values, err := out.Float32s()
	require.NoError(t, err)
	for _, v := range values {
		require.InDelta(t, 12, v, 1e-4)
	}
}

func TestDiskKernel(t *testing.T) {
	kernel := DiskKernel(2)
	defer kernel.Close()

	require.Equal(t, 5, kernel.Rows())
	require.Equal(t, 5, kernel.Cols())
	require.Equal(t, uint8(1), kernel.GetUCharAt(2, 2))
	require.Equal(t, uint8(1), kernel.GetUCharAt(0, 2))
	require.Equal(t, uint8(1), kernel.GetUCharAt(2, 4))
	require.Equal(t, uint8(0), kernel.GetUCharAt(0, 0))
	require.Equal(t, uint8(0), kernel.GetUCharAt(4, 4))
}

func TestErodeBinaryShrinksMask(t *testing.T) {
	const size, radius = 60, 5
	mask := newMask(t, size, size, func(int, int) bool { return true })

	eroded, err := ErodeBinary(mask, radius)
	require.NoError(t, err)
	defer eroded.Close()

	before, err := mask.Uint8s()
	require.NoError(t, err)
	after, err := eroded.Uint8s()
	require.NoError(t, err)

	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			i := r*size + c
			if after[i] != 0 {
				require.NotZero(t, before[i], "erosion added pixel (%d,%d)", r, c)
			}
			inside := r >= radius && r < size-radius && c >= radius && c < size-radius
			if inside {
				require.Equal(t, uint8(255), after[i], "pixel (%d,%d)", r, c)
			} else {
				require.Zero(t, after[i], "pixel (%d,%d)", r, c)
			}
		}
	}
}

func TestErodeBinaryZeroRadiusCopies(t *testing.T) {
	mask := newMask(t, 10, 10, func(r, c int) bool { return r == c })

	eroded, err := ErodeBinary(mask, 0)
	require.NoError(t, err)
	defer eroded.Close()

	want, _ := mask.Uint8s()
	got, _ := eroded.Uint8s()
	require.Equal(t, want, got)
}

func TestFillHolesFillsEnclosedRegion(t *testing.T) {
	// a square ring enclosing a hole
	ring := func(r, c int) bool {
		if r < 5 || r > 25 || c < 5 || c > 25 {
			return false
		}
		return r <= 7 || r >= 23 || c <= 7 || c >= 23
	}
	mask := newMask(t, 40, 40, ring)

	filled, err := FillHoles(mask)
	require.NoError(t, err)
	defer filled.Close()

	bits, err := filled.Uint8s()
	require.NoError(t, err)

	require.Equal(t, uint8(255), bits[15*40+15])
	require.Equal(t, uint8(255), bits[6*40+6])
	require.Zero(t, bits[0])
	require.Zero(t, bits[30*40+30])
}

func TestPlateMaskOfConstantImageIsEmpty(t *testing.T) {
	src := newFloatMat(t, 30, 30, func(int, int) float32 { return 5 })

	mask, err := PlateMask(src, 3)
	require.NoError(t, err)
	defer mask.Close()

	bits, err := mask.Uint8s()
	require.NoError(t, err)
	for _, b := range bits {
		require.Zero(t, b)
	}
}

func TestPlateMaskKeepsPlateInterior(t *testing.T) {
	const size = 120
	src := newFloatMat(t, size, size, func(r, c int) float32 {
		dr, dc := r-60, c-60
		if dr*dr+dc*dc <= 40*40 {
			return 10
		}
		return 0
	})

	mask, err := PlateMask(src, 10)
	require.NoError(t, err)
	defer mask.Close()

	bits, err := mask.Uint8s()
	require.NoError(t, err)

	require.Equal(t, uint8(255), bits[60*size+60])
	require.Equal(t, uint8(255), bits[60*size+85])
	// rim stripped by erosion
	require.Zero(t, bits[60*size+98])
	require.Zero(t, bits[5*size+5])
}

func TestApplyMaskZeroesOutside(t *testing.T) {
	src := newFloatMat(t, 10, 10, func(int, int) float32 { return 3 })
	mask := newMask(t, 10, 10, func(r, c int) bool { return r < 5 })

	out, err := ApplyMask(src, mask)
	require.NoError(t, err)
	defer out.Close()

	values, err := out.Float32s()
	require.NoError(t, err)
	require.Equal(t, float32(3), values[0])
	require.Equal(t, float32(0), values[9*10+9])
}

// naiveReconstruct dilates and clips until nothing changes.
func naiveReconstruct(marker, mask []float32, rows, cols int) []float32 {
	cur := make([]float32, len(marker))
	for i := range marker {
		cur[i] = min(marker[i], mask[i])
	}

	for {
		next := make([]float32, len(cur))
		changed := false
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				v := cur[r*cols+c]
				for dr := -1; dr <= 1; dr++ {
					for dc := -1; dc <= 1; dc++ {
						nr, nc := r+dr, c+dc
						if nr >= 0 && nr < rows && nc >= 0 && nc < cols {
							v = max(v, cur[nr*cols+nc])
						}
					}
				}
				v = min(v, mask[r*cols+c])
				next[r*cols+c] = v
				if v != cur[r*cols+c] {
					changed = true
				}
			}
		}
		cur = next
		if !changed {
			return cur
		}
	}
}

func TestReconstructByDilationMatchesIterativeDefinition(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const rows, cols = 23, 31

	for trial := 0; trial < 5; trial++ {
		mask := make([]float32, rows*cols)
		for i := range mask {
			mask[i] = float32(rng.Intn(50))
		}
		marker := BorderSeed(mask, rows, cols)
		want := naiveReconstruct(marker, mask, rows, cols)

		require.NoError(t, ReconstructByDilation(marker, mask, rows, cols))
		require.Equal(t, want, marker)

		for i := range marker {
			require.LessOrEqual(t, marker[i], mask[i])
		}
	}
}

func TestReconstructByDilationIsFixedPoint(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	const rows, cols = 17, 17

	mask := make([]float32, rows*cols)
	for i := range mask {
		mask[i] = rng.Float32()
	}
	marker := BorderSeed(mask, rows, cols)
	require.NoError(t, ReconstructByDilation(marker, mask, rows, cols))

	again := append([]float32(nil), marker...)
	require.NoError(t, ReconstructByDilation(again, mask, rows, cols))
	require.Equal(t, marker, again)
}

func TestReconstructByDilationRejectsSizeMismatch(t *testing.T) {
	err := ReconstructByDilation(make([]float32, 4), make([]float32, 5), 2, 2)
	require.Error(t, err)
}

func TestBorderSeedKeepsFrame(t *testing.T) {
	src := []float32{
		5, 6, 7,
		8, 9, 1,
		2, 3, 4,
	}
	seed := BorderSeed(src, 3, 3)

	require.Equal(t, []float32{5, 6, 7, 8, 1, 1, 2, 3, 4}, seed)
	require.Equal(t, float32(9), src[4])
}

func TestBackgroundSuppressorConstantImageIsZero(t *testing.T) {
	src := newFloatMat(t, 40, 40, func(int, int) float32 { return 17 })

	out, err := NewBackgroundSuppressor().Apply(context.Background(), src, config.DefaultPipeline())
	require.NoError(t, err)
	defer out.Close()

	values, err := out.Float32s()
	require.NoError(t, err)
	for _, v := range values {
		require.Zero(t, v)
	}
}

func TestBackgroundSuppressorKeepsIsolatedSpike(t *testing.T) {
	src := newFloatMat(t, 40, 40, func(r, c int) float32 {
		if r == 20 && c == 20 {
			return 100
		}
		return float32(c) * 0.5
	})

	out, err := NewBackgroundSuppressor().Apply(context.Background(), src, config.DefaultPipeline())
	require.NoError(t, err)
	defer out.Close()

	values, err := out.Float32s()
	require.NoError(t, err)

	spike := values[20*40+20]
	require.Greater(t, spike, float32(50))
	for i, v := range values {
		require.GreaterOrEqual(t, v, float32(0))
		if i != 20*40+20 {
			require.Less(t, v, spike)
		}
	}
}
