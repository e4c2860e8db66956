package conversion

import (
	"fmt"
	"image"
	"image/color"

	"colony-counter/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// MatProperties contains information about Mat characteristics
type MatProperties struct {
	Rows     int
	Cols     int
	Channels int
	Type     gocv.MatType
	DataType string
	Empty    bool
}

// GetMatProperties returns detailed information about a Mat
func GetMatProperties(mat *safe.Mat) MatProperties {
	if mat == nil {
		return MatProperties{Empty: true}
	}

	return MatProperties{
		Rows:     mat.Rows(),
		Cols:     mat.Cols(),
		Channels: mat.Channels(),
		Type:     mat.Type(),
		DataType: getDataTypeName(mat.Type()),
		Empty:    mat.Empty(),
	}
}

// ToFloat32 returns a new CV_32FC1 copy of src, keeping the pixel range.
func ToFloat32(src *safe.Mat, tag string) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(src, "float conversion"); err != nil {
		return nil, err
	}
	if src.Channels() != 1 {
		return nil, fmt.Errorf("float conversion requires a single channel Mat, got %d channels", src.Channels())
	}

	if src.Type() == gocv.MatTypeCV32FC1 {
		return src.CloneAs(tag)
	}

	dst, err := src.Derive(gocv.MatTypeCV32FC1, tag)
	if err != nil {
		return nil, fmt.Errorf("destination Mat creation failed: %w", err)
	}

	srcMat := src.GetMat()
	dstMat := dst.GetMat()
	srcMat.ConvertTo(&dstMat, gocv.MatTypeCV32F)

	return dst, nil
}

// StretchTo8U maps the [min, max] range of a single channel Mat onto
// [0, 255]. A constant image maps to zero.
func StretchTo8U(src *safe.Mat, tag string) (*safe.Mat, error) {
	values, err := ToFloat32(src, tag+"_float")
	if err != nil {
		return nil, err
	}
	defer values.Close()

	minVal, maxVal, _, _ := gocv.MinMaxLoc(values.GetMat())

	dst, err := src.Derive(gocv.MatTypeCV8UC1, tag)
	if err != nil {
		return nil, fmt.Errorf("destination Mat creation failed: %w", err)
	}

	in, err := values.Float32s()
	if err != nil {
		dst.Close()
		return nil, err
	}
	out, err := dst.Uint8s()
	if err != nil {
		dst.Close()
		return nil, err
	}

	low, span := float64(minVal), float64(maxVal-minVal)
	for i, v := range in {
		if span <= 0 {
			out[i] = 0
			continue
		}
		out[i] = uint8((float64(v)-low)/span*255 + 0.5)
	}

	return dst, nil
}

// ImageToFloatMat converts any Go image into a CV_32FC1 Mat of 16-bit
// luminance values. Used when OpenCV cannot decode a file itself.
func ImageToFloatMat(img image.Image, tracker safe.MemoryTracker, tag string) (*safe.Mat, error) {
	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}

	bounds := img.Bounds()
	if err := safe.ValidateDimensions(bounds.Dx(), bounds.Dy(), "image conversion"); err != nil {
		return nil, err
	}

	dst, err := safe.NewMatWithTracker(bounds.Dy(), bounds.Dx(), gocv.MatTypeCV32FC1, tracker, tag)
	if err != nil {
		return nil, err
	}

	out, err := dst.Float32s()
	if err != nil {
		dst.Close()
		return nil, err
	}

	cols := bounds.Dx()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := (y - bounds.Min.Y) * cols
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
			out[row+x-bounds.Min.X] = float32(gray.Y)
		}
	}

	return dst, nil
}

// getDataTypeName returns human-readable name for MatType
func getDataTypeName(matType gocv.MatType) string {
	switch matType {
	case gocv.MatTypeCV8UC1:
		return "8-bit unsigned single channel"
	case gocv.MatTypeCV8UC3:
		return "8-bit unsigned 3-channel"
	case gocv.MatTypeCV16UC1:
		return "16-bit unsigned single channel"
	case gocv.MatTypeCV32FC1:
		return "32-bit float single channel"
	case gocv.MatTypeCV64FC1:
		return "64-bit float single channel"
	default:
		return fmt.Sprintf("unknown type %d", int(matType))
	}
}
