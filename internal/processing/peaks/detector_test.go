package peaks

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"colony-counter/internal/config"
	"colony-counter/internal/models"
	"colony-counter/internal/opencv/safe"
)

type blob struct {
	row, col  int
	amplitude float64
}

func gaussianImage(t *testing.T, rows, cols int, blobs ...blob) *safe.Mat {
	t.Helper()

	mat, err := safe.NewMat(rows, cols, gocv.MatTypeCV32FC1)
	require.NoError(t, err)
	t.Cleanup(mat.Close)

	values, err := mat.Float32s()
	require.NoError(t, err)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			var v float64
			for _, b := range blobs {
				dr, dc := float64(r-b.row), float64(c-b.col)
				v += b.amplitude * math.Exp(-(dr*dr+dc*dc)/(2*1.5*1.5))
			}
			values[r*cols+c] = float32(v)
		}
	}
	return mat
}

func TestDetectFlatImageHasNoPeaks(t *testing.T) {
	img := gaussianImage(t, 50, 50)

	coords, err := NewDetector(config.DefaultPipeline()).Detect(img)
	require.NoError(t, err)
	require.Empty(t, coords)
}

func TestDetectFindsSeparatedBlobs(t *testing.T) {
	img := gaussianImage(t, 80, 80,
		blob{20, 20, 100},
		blob{20, 60, 90},
		blob{60, 20, 80},
		blob{60, 60, 70},
	)

	coords, err := NewDetector(config.DefaultPipeline()).Detect(img)
	require.NoError(t, err)
	require.Equal(t, []models.Coordinate{
		{Row: 20, Col: 20},
		{Row: 20, Col: 60},
		{Row: 60, Col: 20},
		{Row: 60, Col: 60},
	}, coords)
}

func TestDetectCollapsesBlobsCloserThanMinDistance(t *testing.T) {
	img := gaussianImage(t, 100, 100,
		blob{50, 50, 100},
		blob{50, 56, 80},
	)

	params := config.DefaultPipeline()
	params.MinDistance = 10

	coords, err := NewDetector(params).Detect(img)
	require.NoError(t, err)
	require.Len(t, coords, 1)
	require.Equal(t, models.Coordinate{Row: 50, Col: 50}, coords[0])
}

func TestDetectExcludesBorder(t *testing.T) {
	img := gaussianImage(t, 40, 40,
		blob{1, 20, 100},
		blob{20, 20, 90},
	)

	coords, err := NewDetector(config.DefaultPipeline()).Detect(img)
	require.NoError(t, err)
	require.Equal(t, []models.Coordinate{{Row: 20, Col: 20}}, coords)
}

func TestDetectAppliesRelativeThreshold(t *testing.T) {
	img := gaussianImage(t, 60, 60,
		blob{15, 15, 100},
		blob{45, 45, 5},
	)

	coords, err := NewDetector(config.DefaultPipeline()).Detect(img)
	require.NoError(t, err)
	require.Equal(t, []models.Coordinate{{Row: 15, Col: 15}}, coords)
}

func TestDetectPlateauKeepsOnePeak(t *testing.T) {
	mat, err := safe.NewMat(20, 20, gocv.MatTypeCV32FC1)
	require.NoError(t, err)
	defer mat.Close()

	values, err := mat.Float32s()
	require.NoError(t, err)
	for i := range values {
		values[i] = 0
	}
	values[10*20+10] = 50
	values[10*20+11] = 50

	coords, err := NewDetector(config.DefaultPipeline()).Detect(mat)
	require.NoError(t, err)
	require.Equal(t, []models.Coordinate{{Row: 10, Col: 10}}, coords)
}

func TestDetectKeepsEqualPeaksExactlyMinDistanceApart(t *testing.T) {
	tests := []struct {
		name     string
		second   models.Coordinate
		expected int
	}{
		{"same row", models.Coordinate{Row: 10, Col: 12}, 2},
		{"diagonal", models.Coordinate{Row: 12, Col: 12}, 2},
		{"one pixel short", models.Coordinate{Row: 11, Col: 11}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mat, err := safe.NewMat(24, 24, gocv.MatTypeCV32FC1)
			require.NoError(t, err)
			defer mat.Close()

			values, err := mat.Float32s()
			require.NoError(t, err)
			for i := range values {
				values[i] = 0
			}
			values[10*24+10] = 50
			values[tt.second.Row*24+tt.second.Col] = 50

			coords, err := NewDetector(config.DefaultPipeline()).Detect(mat)
			require.NoError(t, err)
			require.Len(t, coords, tt.expected)
			require.Equal(t, models.Coordinate{Row: 10, Col: 10}, coords[0])
			if tt.expected == 2 {
				require.Equal(t, tt.second, coords[1])
			}
		})
	}
}

func TestDetectIsDeterministic(t *testing.T) {
	img := gaussianImage(t, 64, 64, blob{16, 16, 50}, blob{40, 30, 60}, blob{50, 50, 55})
	detector := NewDetector(config.DefaultPipeline())

	first, err := detector.Detect(img)
	require.NoError(t, err)
	second, err := detector.Detect(img)
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestDetectRejectsNonFloatInput(t *testing.T) {
	mat, err := safe.NewMat(10, 10, gocv.MatTypeCV8UC1)
	require.NoError(t, err)
	defer mat.Close()

	_, err = NewDetector(config.DefaultPipeline()).Detect(mat)
	require.Error(t, err)
}
