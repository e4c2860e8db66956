package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"colony-counter/internal/config"
	"colony-counter/internal/logger"
	"colony-counter/internal/models"
	"colony-counter/internal/report"
)

// Failure is a file the batch could not analyse under the skip policy.
type Failure struct {
	Path string
	Err  error
}

// Outcome is what a batch run produced.
type Outcome struct {
	Table       *models.Table
	Failures    []Failure
	SummaryPath string
}

// Batch processes every image of the input directory in order.
type Batch struct {
	cfg      *config.Config
	analyzer *Analyzer
	progress io.Writer
	logger   logger.Logger
}

func NewBatch(cfg *config.Config, log logger.Logger, progress io.Writer) *Batch {
	if log == nil {
		log = logger.Nop()
	}
	if progress == nil {
		progress = io.Discard
	}
	return &Batch{
		cfg:      cfg,
		analyzer: NewAnalyzer(cfg, log),
		progress: progress,
		logger:   log,
	}
}

func (b *Batch) Analyzer() *Analyzer {
	return b.analyzer
}

// Run enumerates the input directory, analyses each file and writes the
// summary table. Under the skip policy a failing file is recorded in the
// outcome and the run continues; under abort it ends the run. A cancelled
// run returns ctx.Err() and writes no summary.
func (b *Batch) Run(ctx context.Context) (*Outcome, error) {
	files, err := ListImages(b.cfg.InputDir, b.cfg.Extension)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(b.cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", b.cfg.OutputDir, err)
	}

	b.analyzer.Timing().Reset()

	b.logger.Info("Batch", "batch started", map[string]interface{}{
		"input_dir":  b.cfg.InputDir,
		"output_dir": b.cfg.OutputDir,
		"files":      len(files),
		"on_error":   string(b.cfg.OnError),
		"steps":      b.analyzer.chain.GetStepNames(),
	})

	outcome := &Outcome{Table: models.NewTable()}

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}

		fmt.Fprintf(b.progress, "Analyzing %d out of %d\n", i+1, len(files))

		detection, err := b.analyzer.Analyze(ctx, path)
		b.checkLeaks(path)
		if err != nil {
			wrapped := fmt.Errorf("analyze %s: %w", filepath.Base(path), err)
			// an unwritable output directory fails every file the same way
			if b.cfg.OnError == config.AbortOnError || errors.Is(err, ErrWriteFailed) {
				return outcome, wrapped
			}

			b.logger.Warning("Batch", "skipping file", map[string]interface{}{
				"file":  filepath.Base(path),
				"error": err.Error(),
			})
			outcome.Failures = append(outcome.Failures, Failure{Path: path, Err: wrapped})
			continue
		}

		outcome.Table.Append(models.Result{Name: detection.Name, Count: detection.Count()})
		fmt.Fprintf(b.progress, "The number of colonies for %s is: %d\n", detection.Name, detection.Count())

		b.logger.Debug("Batch", "file analyzed", map[string]interface{}{
			"file":     filepath.Base(path),
			"count":    detection.Count(),
			"width":    detection.Width,
			"height":   detection.Height,
			"duration": detection.ProcessTime.String(),
		})
	}

	if err := ctx.Err(); err != nil {
		return outcome, err
	}

	outcome.SummaryPath = filepath.Join(b.cfg.OutputDir, b.cfg.SummaryFile)
	fmt.Fprintf(b.progress, "Saving outputs to %s\n", b.cfg.SummaryFile)
	if err := report.WriteCSV(outcome.SummaryPath, outcome.Table); err != nil {
		return outcome, err
	}

	b.logSummary(outcome)

	return outcome, nil
}

func (b *Batch) checkLeaks(path string) {
	if leaked := b.analyzer.Memory().ReportLeaks("Batch"); leaked > 0 {
		b.logger.Warning("Batch", "Mats outlived their image", map[string]interface{}{
			"file":  filepath.Base(path),
			"count": leaked,
		})
	}
}

func (b *Batch) logSummary(outcome *Outcome) {
	summary := report.Summarize(outcome.Table)

	fields := map[string]interface{}{
		"images":   summary.Images,
		"failures": len(outcome.Failures),
		"total":    summary.Total,
		"mean":     summary.Mean,
		"stddev":   summary.StdDev,
		"min":      summary.Min,
		"max":      summary.Max,
		"summary":  outcome.SummaryPath,
	}

	tracker := b.analyzer.Timing()
	for _, op := range tracker.Operations() {
		fields["avg_"+op] = tracker.GetAverageTime(op).String()
	}

	stats := b.analyzer.Memory().GetStats()
	fields["peak_mats"] = stats.PeakActiveMats
	fields["peak_bytes"] = stats.PeakBytes

	b.logger.Info("Batch", "batch completed", fields)
}
