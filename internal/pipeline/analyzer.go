package pipeline

import (
	"context"
	"fmt"

	"colony-counter/internal/config"
	"colony-counter/internal/debug/timing"
	"colony-counter/internal/logger"
	"colony-counter/internal/models"
	"colony-counter/internal/opencv/conversion"
	"colony-counter/internal/opencv/memory"
	"colony-counter/internal/opencv/safe"
	"colony-counter/internal/processing/chain"
	"colony-counter/internal/processing/filters"
	"colony-counter/internal/processing/peaks"
)

// Analyzer runs the image-to-count pipeline on single files.
type Analyzer struct {
	cfg      *config.Config
	loader   *Loader
	chain    *chain.ProcessingChain
	detector *peaks.Detector
	renderer *PreviewRenderer
	memory   *memory.Manager
	timing   *timing.Tracker
	logger   logger.Logger
}

func NewAnalyzer(cfg *config.Config, log logger.Logger) *Analyzer {
	if log == nil {
		log = logger.Nop()
	}

	mem := memory.NewManager(log)

	return &Analyzer{
		cfg:    cfg,
		loader: NewLoader(mem, log),
		chain: chain.NewProcessingChain([]chain.ProcessingStep{
			filters.NewGaussianFilter(),
			filters.NewPlateMaskFilter(),
			filters.NewBackgroundSuppressor(),
		}, log),
		detector: peaks.NewDetector(cfg.Pipeline),
		renderer: NewPreviewRenderer(log),
		memory:   mem,
		timing:   timing.NewTracker(),
		logger:   log,
	}
}

func (a *Analyzer) Memory() *memory.Manager {
	return a.memory
}

func (a *Analyzer) Timing() *timing.Tracker {
	return a.timing
}

// Analyze loads path, counts its colonies and writes the preview next to
// the other outputs. Every Mat it allocates is closed before it returns.
func (a *Analyzer) Analyze(ctx context.Context, path string) (*models.Detection, error) {
	total := a.timing.Start("analyze")

	sw := a.timing.Start("load")
	raw, err := a.loader.Load(path)
	sw.Stop()
	if err != nil {
		return nil, err
	}
	defer raw.Close()

	coords, err := a.Detect(ctx, raw)
	if err != nil {
		return nil, err
	}

	preview := PreviewPath(a.cfg.OutputDir, path, a.cfg.PreviewSuffix, a.cfg.PreviewExt)
	sw = a.timing.Start("render")
	err = a.renderer.Save(raw, coords, preview)
	sw.Stop()
	if err != nil {
		return nil, err
	}

	return &models.Detection{
		Name:        Stem(path),
		Path:        path,
		Width:       raw.Cols(),
		Height:      raw.Rows(),
		Coordinates: coords,
		ProcessTime: total.Stop(),
	}, nil
}

// Detect counts colonies in a raw image without writing anything. raw is
// copied into a separate float working buffer and left untouched.
func (a *Analyzer) Detect(ctx context.Context, raw *safe.Mat) ([]models.Coordinate, error) {
	working, err := conversion.ToFloat32(raw, "working")
	if err != nil {
		return nil, fmt.Errorf("failed to create working copy: %w", err)
	}
	defer working.Close()

	sw := a.timing.Start("suppress")
	suppressed, err := a.chain.Execute(ctx, working, a.cfg.Pipeline)
	sw.Stop()
	if err != nil {
		return nil, err
	}
	defer suppressed.Close()

	sw = a.timing.Start("peaks")
	coords, err := a.detector.Detect(suppressed)
	sw.Stop()
	if err != nil {
		return nil, fmt.Errorf("peak detection failed: %w", err)
	}

	return coords, nil
}
