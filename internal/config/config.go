// Package config loads and normalizes batch configuration.
//
// Values come from three layers, highest priority first: command line flags,
// a YAML file, and the defaults below. The transform bound is clamped to
// model.MaxCPUWorkers no matter which layer set it.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"go-image-pipeline/internal/model"
	"go-image-pipeline/pkg/utils"
)

// Default configuration values.
const (
	DefaultItemCount      = 150
	DefaultBaseURL        = "https://raw.githubusercontent.com/HybridShivam/Pokemon/master/assets/imagesHQ"
	DefaultFilePattern    = "%03d.png"
	DefaultRawDir         = "pokemon_dataset"
	DefaultProcessedDir   = "pokemon_processed"
	DefaultFetchTimeout   = 10 * time.Second
	DefaultMaxAttempts    = 2
	DefaultBackoff        = time.Second
	DefaultMaxBackoff     = 30 * time.Second
	DefaultReportInterval = 10
	DefaultDBPath         = "pipeline.db"
	DefaultQuality        = 95
)

// ErrInvalidConfig is returned by Validate for unusable configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete runtime configuration of the CLI and API server
type Config struct {
	model.BatchSpec `yaml:",inline"`

	DBPath    string `yaml:"db_path"`
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // text or json
	Addr      string `yaml:"addr"`
}

// Default returns the revised design configuration
func Default() Config {
	return Config{
		BatchSpec: DefaultSpec(),
		DBPath:    DefaultDBPath,
		LogLevel:  "info",
		LogFormat: "text",
		Addr:      ":8080",
	}
}

// DefaultSpec returns a fully populated batch spec
func DefaultSpec() model.BatchSpec {
	return model.BatchSpec{
		ItemCount: DefaultItemCount,
		Mode:      model.ModeSequential,
		Workers: model.Workers{
			IO:  model.DefaultIOWorkers,
			CPU: model.DefaultCPUWorkers,
		},
		Source: model.Source{
			BaseURL:     DefaultBaseURL,
			FilePattern: DefaultFilePattern,
		},
		Output: model.Output{
			RawDir:       DefaultRawDir,
			ProcessedDir: DefaultProcessedDir,
		},
		Fetch: model.FetchPolicy{
			Timeout:           DefaultFetchTimeout.String(),
			MaxAttempts:       DefaultMaxAttempts,
			Backoff:           DefaultBackoff.String(),
			BackoffMultiplier: 1.0,
			MaxBackoff:        DefaultMaxBackoff.String(),
		},
		Transform: model.TransformSettings{
			BlurRadius:       10,
			SecondBlurRadius: 5,
			ContrastFactor:   1.5,
			UpscaleFactor:    2,
			Quality:          DefaultQuality,
			Optimize:         true,
		},
		ReportInterval: DefaultReportInterval,
	}
}

// Preset returns the spec of one of the observed designs: "baseline" or "revised"
func Preset(name string) (model.BatchSpec, error) {
	spec := DefaultSpec()
	switch strings.ToLower(name) {
	case "", "revised":
		spec.Workers.IO = 32
	case "baseline":
		spec.Workers.IO = model.DefaultIOWorkers
		spec.Fetch.MaxAttempts = model.BaselineRetry.MaxAttempts
	default:
		return spec, fmt.Errorf("%w: unknown preset %q", ErrInvalidConfig, name)
	}
	return spec, nil
}

// Load reads a YAML file on top of the defaults
func Load(path string) (Config, error) {
	return LoadOver(path, Default())
}

// LoadOver reads a YAML file on top of base. Keys missing from the file keep
// the value from base.
func LoadOver(path string, base Config) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return DecodeOver(f, base)
}

// Decode reads YAML from r on top of the defaults
func Decode(r io.Reader) (Config, error) {
	return DecodeOver(r, Default())
}

// DecodeOver reads YAML from r on top of base
func DecodeOver(r io.Reader, base Config) (Config, error) {
	cfg := base
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Logger builds the slog logger described by the config
func (c Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Normalize fills zero values with defaults and clamps worker bounds.
// It returns a warning for every value it had to change. The item count is
// never filled: a zero count is left for Validate to reject.
func Normalize(spec *model.BatchSpec) []string {
	var warnings []string
	def := DefaultSpec()

	if spec.Mode == "" {
		spec.Mode = def.Mode
	}
	if spec.Workers.IO <= 0 {
		spec.Workers.IO = def.Workers.IO
	}
	if cpu := model.ClampCPU(spec.Workers.CPU); cpu != spec.Workers.CPU {
		if spec.Workers.CPU > model.MaxCPUWorkers {
			warnings = append(warnings, fmt.Sprintf("cpu_workers %d exceeds the hard ceiling, clamped to %d", spec.Workers.CPU, cpu))
		}
		spec.Workers.CPU = cpu
	}
	if spec.Source.BaseURL == "" {
		spec.Source.BaseURL = def.Source.BaseURL
	}
	if spec.Source.FilePattern == "" {
		spec.Source.FilePattern = def.Source.FilePattern
	}
	if spec.Output.RawDir == "" {
		spec.Output.RawDir = def.Output.RawDir
	}
	if spec.Output.ProcessedDir == "" {
		spec.Output.ProcessedDir = def.Output.ProcessedDir
	}
	if spec.Fetch.Timeout == "" {
		spec.Fetch.Timeout = def.Fetch.Timeout
	}
	if spec.Fetch.MaxAttempts <= 0 {
		spec.Fetch.MaxAttempts = def.Fetch.MaxAttempts
	}
	if spec.Fetch.Backoff == "" {
		spec.Fetch.Backoff = def.Fetch.Backoff
	}
	if spec.Fetch.BackoffMultiplier < 1 {
		spec.Fetch.BackoffMultiplier = 1
	}
	if spec.Fetch.MaxBackoff == "" {
		spec.Fetch.MaxBackoff = def.Fetch.MaxBackoff
	}
	if spec.Transform.BlurRadius == 0 && spec.Transform.SecondBlurRadius == 0 &&
		spec.Transform.ContrastFactor == 0 && spec.Transform.UpscaleFactor == 0 {
		timeout := spec.Transform.Timeout
		spec.Transform = def.Transform
		spec.Transform.Timeout = timeout
	}
	if spec.Transform.UpscaleFactor <= 0 {
		spec.Transform.UpscaleFactor = def.Transform.UpscaleFactor
	}
	if spec.Transform.Quality <= 0 || spec.Transform.Quality > 100 {
		spec.Transform.Quality = def.Transform.Quality
	}
	if spec.ReportInterval <= 0 {
		spec.ReportInterval = def.ReportInterval
	}
	return warnings
}

// Validate rejects specs the pipeline cannot run. Call Normalize first.
func Validate(spec model.BatchSpec) error {
	var errs []error
	if spec.ItemCount < 1 {
		errs = append(errs, fmt.Errorf("item_count must be positive, got %d", spec.ItemCount))
	}
	if spec.Mode != model.ModeSequential && spec.Mode != model.ModePipelined {
		errs = append(errs, fmt.Errorf("unknown mode %q", spec.Mode))
	}
	if spec.Workers.CPU > model.MaxCPUWorkers {
		errs = append(errs, fmt.Errorf("cpu_workers %d exceeds %d", spec.Workers.CPU, model.MaxCPUWorkers))
	}
	for name, d := range map[string]string{
		"fetch_timeout":     spec.Fetch.Timeout,
		"retry_backoff":     spec.Fetch.Backoff,
		"retry_max_backoff": spec.Fetch.MaxBackoff,
		"transform_timeout": spec.Transform.Timeout,
	} {
		if _, err := utils.ParseDuration(d, 0); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if spec.Transform.ContrastFactor < 0 {
		errs = append(errs, fmt.Errorf("contrast_factor must not be negative"))
	}
	if spec.Transform.BlurRadius < 0 || spec.Transform.SecondBlurRadius < 0 {
		errs = append(errs, fmt.Errorf("blur radius must not be negative"))
	}
	om := utils.NewOutputManager(spec.Source.BaseURL, spec.Source.FilePattern, spec.Output.RawDir, spec.Output.ProcessedDir)
	if err := om.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// RetryPolicy converts the fetch section of spec into a retry config
func RetryPolicy(spec model.BatchSpec) model.RetryConfig {
	return model.RetryConfig{
		MaxAttempts:       spec.Fetch.MaxAttempts,
		Timeout:           utils.MustDuration(spec.Fetch.Timeout, DefaultFetchTimeout),
		InitialDelay:      utils.MustDuration(spec.Fetch.Backoff, DefaultBackoff),
		MaxDelay:          utils.MustDuration(spec.Fetch.MaxBackoff, DefaultMaxBackoff),
		BackoffMultiplier: spec.Fetch.BackoffMultiplier,
	}
}

// TransformTimeout returns the per-item transform deadline, zero meaning none
func TransformTimeout(spec model.BatchSpec) time.Duration {
	return utils.MustDuration(spec.Transform.Timeout, 0)
}
