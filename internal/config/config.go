package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// FailurePolicy decides what the batch driver does when a single file fails.
type FailurePolicy string

const (
	// SkipOnError logs the failing file and continues with the next one.
	SkipOnError FailurePolicy = "skip"
	// AbortOnError stops the batch at the first failing file.
	AbortOnError FailurePolicy = "abort"
)

// Pipeline holds the numeric parameters of the image-to-count pipeline.
type Pipeline struct {
	// ColonySize is the expected colony pixel radius; it sizes the top-hat disk.
	ColonySize int `yaml:"colony_size"`
	// MinDistance is the minimum number of pixels between two detected peaks.
	MinDistance int `yaml:"min_distance"`
	// ErosionRadius is the disk radius used to strip the plate rim.
	ErosionRadius int `yaml:"erosion_radius"`
	// SmoothingSigma is the Gaussian pre-filter strength. Zero disables it.
	SmoothingSigma float64 `yaml:"smoothing_sigma"`
	// PeakRelThreshold is the fraction of the dynamic range a peak must exceed.
	PeakRelThreshold float64 `yaml:"peak_rel_threshold"`
}

type Config struct {
	InputDir      string        `yaml:"input_dir"`
	OutputDir     string        `yaml:"output_dir"`
	Extension     string        `yaml:"extension"`
	PreviewSuffix string        `yaml:"preview_suffix"`
	PreviewExt    string        `yaml:"preview_ext"`
	SummaryFile   string        `yaml:"summary_file"`
	OnError       FailurePolicy `yaml:"on_error"`
	LogLevel      string        `yaml:"log_level"`
	LogFormat     string        `yaml:"log_format"`
	Pipeline      Pipeline      `yaml:"pipeline"`
}

func DefaultPipeline() Pipeline {
	return Pipeline{
		ColonySize:       5,
		MinDistance:      2,
		ErosionRadius:    50,
		SmoothingSigma:   0.3,
		PeakRelThreshold: 0.1,
	}
}

func Default() *Config {
	return &Config{
		InputDir:      "Inputs",
		OutputDir:     "Outputs",
		Extension:     ".tif",
		PreviewSuffix: " results",
		PreviewExt:    ".png",
		SummaryFile:   "Output.csv",
		OnError:       SkipOnError,
		LogLevel:      "info",
		LogFormat:     "console",
		Pipeline:      DefaultPipeline(),
	}
}

// Load builds a Config from defaults, an optional YAML file and the
// environment (a .env file in the working directory is honoured).
func Load(path string) (*Config, error) {
	// A missing .env file is fine.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("COLONY_INPUT_DIR"); v != "" {
		c.InputDir = v
	}
	if v := os.Getenv("COLONY_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("COLONY_ON_ERROR"); v != "" {
		c.OnError = FailurePolicy(strings.ToLower(v))
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = strings.ToLower(v)
	}
}

func (c *Config) Validate() error {
	if c.InputDir == "" {
		return fmt.Errorf("%w: input directory is empty", ErrInvalidConfig)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("%w: output directory is empty", ErrInvalidConfig)
	}
	if !strings.HasPrefix(c.Extension, ".") {
		return fmt.Errorf("%w: extension %q must start with a dot", ErrInvalidConfig, c.Extension)
	}
	if !strings.HasPrefix(c.PreviewExt, ".") {
		return fmt.Errorf("%w: preview extension %q must start with a dot", ErrInvalidConfig, c.PreviewExt)
	}
	if c.SummaryFile == "" {
		return fmt.Errorf("%w: summary file name is empty", ErrInvalidConfig)
	}

	switch c.OnError {
	case SkipOnError, AbortOnError:
	default:
		return fmt.Errorf("%w: unknown failure policy %q", ErrInvalidConfig, c.OnError)
	}

	return c.Pipeline.Validate()
}

func (p Pipeline) Validate() error {
	if p.ColonySize < 1 {
		return fmt.Errorf("%w: colony_size must be at least 1, got %d", ErrInvalidConfig, p.ColonySize)
	}
	if p.MinDistance < 1 {
		return fmt.Errorf("%w: min_distance must be at least 1, got %d", ErrInvalidConfig, p.MinDistance)
	}
	if p.ErosionRadius < 0 {
		return fmt.Errorf("%w: erosion_radius must not be negative, got %d", ErrInvalidConfig, p.ErosionRadius)
	}
	if p.SmoothingSigma < 0 {
		return fmt.Errorf("%w: smoothing_sigma must not be negative, got %g", ErrInvalidConfig, p.SmoothingSigma)
	}
	if p.PeakRelThreshold < 0 || p.PeakRelThreshold >= 1 {
		return fmt.Errorf("%w: peak_rel_threshold must be in [0, 1), got %g", ErrInvalidConfig, p.PeakRelThreshold)
	}
	return nil
}
