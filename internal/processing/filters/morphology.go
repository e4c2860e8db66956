package filters

import (
	"fmt"
	"image"
	"image/color"

	"colony-counter/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// DiskKernel returns a (2r+1)x(2r+1) CV_8UC1 structuring element that is one
// wherever x*x+y*y <= r*r. The caller closes it.
func DiskKernel(radius int) gocv.Mat {
	size := 2*radius + 1
	kernel := gocv.NewMatWithSize(size, size, gocv.MatTypeCV8U)

	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			var v uint8
			if x*x+y*y <= radius*radius {
				v = 1
			}
			kernel.SetUCharAt(y+radius, x+radius, v)
		}
	}

	return kernel
}

// ErodeBinary erodes a 0/255 CV_8UC1 mask with a disk of the given radius.
// Pixels outside the image count as background, so the mask also shrinks
// away from the image edges.
func ErodeBinary(mask *safe.Mat, radius int) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(mask, "binary erosion"); err != nil {
		return nil, err
	}
	if mask.Type() != gocv.MatTypeCV8UC1 {
		return nil, fmt.Errorf("binary erosion requires CV_8UC1 input, got type %d", int(mask.Type()))
	}
	if radius <= 0 {
		return mask.CloneAs("eroded_mask")
	}

	kernel := DiskKernel(radius)
	defer kernel.Close()

	padded := gocv.NewMat()
	defer padded.Close()
	gocv.CopyMakeBorder(mask.GetMat(), &padded, radius, radius, radius, radius, gocv.BorderConstant, color.RGBA{})

	eroded := gocv.NewMat()
	defer eroded.Close()
	gocv.Erode(padded, &eroded, kernel)

	region := eroded.Region(image.Rect(radius, radius, radius+mask.Cols(), radius+mask.Rows()))
	defer region.Close()

	return safe.NewMatFromMatWithTracker(region, mask.Tracker(), "eroded_mask")
}

// FillHoles sets every background region of a 0/255 CV_8UC1 mask that does
// not touch the image border. Regions are 4-connected.
func FillHoles(mask *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(mask, "hole filling"); err != nil {
		return nil, err
	}
	if mask.Type() != gocv.MatTypeCV8UC1 {
		return nil, fmt.Errorf("hole filling requires CV_8UC1 input, got type %d", int(mask.Type()))
	}

	inverted := gocv.NewMat()
	defer inverted.Close()
	gocv.BitwiseNot(mask.GetMat(), &inverted)

	labels := gocv.NewMat()
	defer labels.Close()
	n := gocv.ConnectedComponentsWithParams(inverted, &labels, 4, gocv.MatTypeCV32S, gocv.CCL_DEFAULT)

	ids, err := labels.DataPtrInt32()
	if err != nil {
		return nil, fmt.Errorf("failed to access component labels: %w", err)
	}

	rows, cols := mask.Rows(), mask.Cols()
	touchesBorder := make([]bool, n)
	for c := 0; c < cols; c++ {
		touchesBorder[ids[c]] = true
		touchesBorder[ids[(rows-1)*cols+c]] = true
	}
	for r := 0; r < rows; r++ {
		touchesBorder[ids[r*cols]] = true
		touchesBorder[ids[r*cols+cols-1]] = true
	}

	filled, err := mask.CloneAs("filled_mask")
	if err != nil {
		return nil, err
	}

	out, err := filled.Uint8s()
	if err != nil {
		filled.Close()
		return nil, err
	}

	// label 0 is the foreground of the input mask
	for i, id := range ids {
		if id != 0 && !touchesBorder[id] {
			out[i] = 255
		}
	}

	return filled, nil
}

// WhiteTopHat returns src minus its morphological opening by a disk of the
// given radius. The result is non-negative.
func WhiteTopHat(src *safe.Mat, radius int) (*safe.Mat, error) {
	if err := safe.ValidateFloatImage(src, "white top-hat"); err != nil {
		return nil, err
	}

	kernel := DiskKernel(radius)
	defer kernel.Close()

	dst, err := src.Derive(gocv.MatTypeCV32FC1, "tophat")
	if err != nil {
		return nil, fmt.Errorf("failed to create top-hat Mat: %w", err)
	}

	dstMat := dst.GetMat()
	gocv.MorphologyEx(src.GetMat(), &dstMat, gocv.MorphTophat, kernel)

	return dst, nil
}
