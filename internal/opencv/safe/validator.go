package safe

import (
	"fmt"

	"gocv.io/x/gocv"
)

func ValidateMatForOperation(mat *Mat, operation string) error {
	if mat == nil {
		return fmt.Errorf("Mat is nil for operation: %s", operation)
	}

	if !mat.IsValid() {
		return fmt.Errorf("Mat is invalid for operation: %s", operation)
	}

	if mat.Empty() {
		return fmt.Errorf("Mat is empty for operation: %s", operation)
	}

	if mat.Rows() <= 0 || mat.Cols() <= 0 {
		return fmt.Errorf("Mat has invalid dimensions %dx%d for operation: %s",
			mat.Cols(), mat.Rows(), operation)
	}

	return nil
}

// ValidateFloatImage checks that mat is a usable CV_32FC1 image.
func ValidateFloatImage(mat *Mat, operation string) error {
	if err := ValidateMatForOperation(mat, operation); err != nil {
		return err
	}

	if mat.Type() != gocv.MatTypeCV32FC1 {
		return fmt.Errorf("%s requires a 32-bit float single channel Mat, got type %d",
			operation, int(mat.Type()))
	}

	return nil
}

func ValidateSameSize(a, b *Mat, operation string) error {
	if a.Rows() != b.Rows() || a.Cols() != b.Cols() {
		return fmt.Errorf("Mat size mismatch for operation %s: %dx%d vs %dx%d",
			operation, a.Cols(), a.Rows(), b.Cols(), b.Rows())
	}
	return nil
}

func ValidateDimensions(width, height int, operation string) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d for operation: %s", width, height, operation)
	}

	if width > 32768 || height > 32768 {
		return fmt.Errorf("dimensions %dx%d exceed maximum size for operation: %s", width, height, operation)
	}

	return nil
}

func ValidateMatType(matType gocv.MatType, operation string) error {
	switch matType {
	case gocv.MatTypeCV8UC1, gocv.MatTypeCV16UC1, gocv.MatTypeCV32FC1:
		return nil
	default:
		return fmt.Errorf("unsupported MatType %d for operation: %s", int(matType), operation)
	}
}
