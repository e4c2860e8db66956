package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"colony-counter/internal/config"
	"colony-counter/internal/logger"
	"colony-counter/internal/pipeline"
	"colony-counter/internal/shutdown"
)

const (
	exitOK = iota
	exitFatal
	exitPartial
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to a YAML config file")
	input := flag.String("input", "", "Directory holding the plate images")
	output := flag.String("output", "", "Directory for previews and the summary table")
	extension := flag.String("ext", "", "Image file extension to process")
	colonySize := flag.Int("colony-size", 0, "Expected colony radius in pixels")
	minDistance := flag.Int("min-distance", 0, "Minimum distance in pixels between two colonies")
	erosionRadius := flag.Int("erosion-radius", 0, "Disk radius used to strip the plate rim")
	sigma := flag.Float64("sigma", 0, "Gaussian smoothing sigma (0 disables smoothing)")
	threshold := flag.Float64("threshold", 0, "Fraction of the dynamic range a peak must exceed")
	onError := flag.String("on-error", "", "What to do when a file fails: skip or abort")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("Configuration failed: %v", err)
		return exitFatal
	}

	// Flags override the file and environment, but only when given.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.InputDir = *input
		case "output":
			cfg.OutputDir = *output
		case "ext":
			cfg.Extension = *extension
		case "colony-size":
			cfg.Pipeline.ColonySize = *colonySize
		case "min-distance":
			cfg.Pipeline.MinDistance = *minDistance
		case "erosion-radius":
			cfg.Pipeline.ErosionRadius = *erosionRadius
		case "sigma":
			cfg.Pipeline.SmoothingSigma = *sigma
		case "threshold":
			cfg.Pipeline.PeakRelThreshold = *threshold
		case "on-error":
			cfg.OnError = config.FailurePolicy(*onError)
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})

	if err := cfg.Validate(); err != nil {
		log.Printf("Configuration failed: %v", err)
		return exitFatal
	}

	appLogger := logger.New(cfg.LogFormat, logger.ParseLevel(cfg.LogLevel))

	shutdownManager := shutdown.NewManager(context.Background(), appLogger)
	shutdownManager.Listen()
	defer shutdownManager.Shutdown()

	batch := pipeline.NewBatch(cfg, appLogger, os.Stdout)
	shutdownManager.Register("memory_report", func() {
		batch.Analyzer().Memory().ReportLeaks("Main")
	})

	outcome, err := batch.Run(shutdownManager.Context())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			appLogger.Warning("Main", "batch cancelled, summary not written", nil)
		} else {
			appLogger.Error("Main", err, nil)
		}
		return exitFatal
	}

	if len(outcome.Failures) > 0 {
		for _, failure := range outcome.Failures {
			fmt.Fprintf(os.Stderr, "failed: %v\n", failure.Err)
		}
		return exitPartial
	}

	return exitOK
}
