package pipeline

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"colony-counter/internal/logger"
	"colony-counter/internal/opencv/conversion"
	"colony-counter/internal/opencv/safe"

	"gocv.io/x/gocv"
	_ "golang.org/x/image/tiff"
)

// Loader reads image files into single-channel Mats at their native depth.
type Loader struct {
	tracker safe.MemoryTracker
	logger  logger.Logger
}

func NewLoader(tracker safe.MemoryTracker, log logger.Logger) *Loader {
	if log == nil {
		log = logger.Nop()
	}
	return &Loader{tracker: tracker, logger: log}
}

// Load decodes path with OpenCV, falling back to the Go image decoders for
// files OpenCV cannot read. The returned Mat is owned by the caller.
func (l *Loader) Load(path string) (*safe.Mat, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to access image: %w", err)
	}

	mat := gocv.IMRead(path, gocv.IMReadGrayScale|gocv.IMReadAnyDepth)
	if mat.Empty() {
		mat.Close()

		l.logger.Debug("ImageLoader", "OpenCV could not decode file, trying Go decoders", map[string]interface{}{
			"path": path,
		})
		return l.decodeWithGo(path)
	}

	if mat.Channels() != 1 {
		mat.Close()
		return nil, fmt.Errorf("expected a single channel image, got %d channels", mat.Channels())
	}

	if err := safe.ValidateMatType(mat.Type(), "image load"); err != nil {
		mat.Close()
		return nil, err
	}

	if err := safe.ValidateDimensions(mat.Cols(), mat.Rows(), "image load"); err != nil {
		mat.Close()
		return nil, err
	}

	raw, err := safe.Adopt(mat, l.tracker, "raw")
	if err != nil {
		return nil, fmt.Errorf("failed to create safe Mat: %w", err)
	}

	l.logger.Debug("ImageLoader", "image loaded", map[string]interface{}{
		"path":   path,
		"width":  raw.Cols(),
		"height": raw.Rows(),
		"type":   conversion.GetMatProperties(raw).DataType,
	})

	return raw, nil
}

func (l *Loader) decodeWithGo(path string) (*safe.Mat, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrEmptyImage, path, err)
	}

	raw, err := conversion.ImageToFloatMat(img, l.tracker, "raw")
	if err != nil {
		return nil, fmt.Errorf("failed to convert %s image: %w", format, err)
	}

	l.logger.Debug("ImageLoader", "image loaded with Go decoder", map[string]interface{}{
		"path":   path,
		"format": format,
		"width":  raw.Cols(),
		"height": raw.Rows(),
	})

	return raw, nil
}
