package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"colony-counter/internal/logger"
	"colony-counter/internal/models"
	"colony-counter/internal/opencv/conversion"
	"colony-counter/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// PreviewRenderer draws detected colonies over the raw plate image.
type PreviewRenderer struct {
	MarkerRadius int
	Opacity      float64
	Color        color.RGBA
	logger       logger.Logger
}

func NewPreviewRenderer(log logger.Logger) *PreviewRenderer {
	if log == nil {
		log = logger.Nop()
	}
	return &PreviewRenderer{
		MarkerRadius: 2,
		Opacity:      0.3,
		Color:        color.RGBA{R: 255, A: 255},
		logger:       log,
	}
}

// Compose returns an 8-bit BGR preview: the raw image stretched to its full
// range with a filled dot per coordinate. raw is not modified.
func (r *PreviewRenderer) Compose(raw *safe.Mat, coords []models.Coordinate) (*safe.Mat, error) {
	gray, err := conversion.StretchTo8U(raw, "preview_gray")
	if err != nil {
		return nil, fmt.Errorf("failed to stretch preview: %w", err)
	}
	defer gray.Close()

	base := gocv.NewMat()
	defer base.Close()
	gocv.CvtColor(gray.GetMat(), &base, gocv.ColorGrayToBGR)

	overlay := base.Clone()
	defer overlay.Close()
	for _, c := range coords {
		gocv.Circle(&overlay, image.Point{X: c.Col, Y: c.Row}, r.MarkerRadius, r.Color, -1)
	}

	blended := gocv.NewMat()
	gocv.AddWeighted(overlay, r.Opacity, base, 1-r.Opacity, 0, &blended)

	return safe.Adopt(blended, raw.Tracker(), "preview")
}

// Save composes the preview and writes it to path. The encoder is chosen
// from the path's extension.
func (r *PreviewRenderer) Save(raw *safe.Mat, coords []models.Coordinate, path string) error {
	preview, err := r.Compose(raw, coords)
	if err != nil {
		return err
	}
	defer preview.Close()

	ext := strings.ToLower(filepath.Ext(path))
	buf, err := gocv.IMEncode(gocv.FileExt(ext), preview.GetMat())
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, path, err)
	}
	defer buf.Close()

	if err := os.WriteFile(path, buf.GetBytes(), 0o644); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, path, err)
	}

	r.logger.Debug("PreviewRenderer", "preview saved", map[string]interface{}{
		"path":    path,
		"markers": len(coords),
	})

	return nil
}

// PreviewPath returns <dir>/<stem><suffix><ext> for an input file.
func PreviewPath(dir, input, suffix, ext string) string {
	return filepath.Join(dir, Stem(input)+suffix+ext)
}
