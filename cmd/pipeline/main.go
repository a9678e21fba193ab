package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"go-image-pipeline/internal/config"
	"go-image-pipeline/internal/model"
	"go-image-pipeline/internal/pipeline"
	"go-image-pipeline/internal/storage"
	"go-image-pipeline/internal/store"
)

const (
	exitFailure   = 1
	exitCancelled = 130
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// options are the command line settings that are not part of config.Config
type options struct {
	export string
}

// loadConfig layers the configuration: defaults, then the preset, then the
// YAML file, then flags. The ledger stays off unless the file or -db names one.
func loadConfig(args []string) (config.Config, options, error) {
	fs := flag.NewFlagSet("pipeline", flag.ContinueOnError)
	var (
		configPath = fs.String("config", "", "YAML config file")
		preset     = fs.String("preset", "", "baseline or revised")
		count      = fs.Int("n", 0, "number of items to fetch")
		ioWorkers  = fs.Int("io-workers", 0, "concurrent fetches")
		cpuWorkers = fs.Int("cpu-workers", 0, "concurrent transforms (at most 8)")
		mode       = fs.String("mode", "", "sequential or pipelined")
		baseURL    = fs.String("base-url", "", "remote image collection")
		dbPath     = fs.String("db", "", "record the batch in this sqlite ledger")
		export     = fs.String("export", "", "write the batch report to this .json or .csv file")
		logLevel   = fs.String("log-level", "", "debug, info, warn or error")
		logFormat  = fs.String("log-format", "", "text or json")
	)
	if err := fs.Parse(args); err != nil {
		return config.Config{}, options{}, err
	}

	cfg := config.Default()
	cfg.DBPath = ""
	if *preset != "" {
		spec, err := config.Preset(*preset)
		if err != nil {
			return config.Config{}, options{}, err
		}
		cfg.BatchSpec = spec
	}
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadOver(*configPath, cfg); err != nil {
			return config.Config{}, options{}, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "n":
			cfg.ItemCount = *count
		case "io-workers":
			cfg.Workers.IO = *ioWorkers
		case "cpu-workers":
			cfg.Workers.CPU = *cpuWorkers
		case "mode":
			cfg.Mode = model.Mode(*mode)
		case "base-url":
			cfg.Source.BaseURL = *baseURL
		case "db":
			cfg.DBPath = *dbPath
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		}
	})
	return cfg, options{export: *export}, nil
}

func run(args []string) int {
	cfg, opts, err := loadConfig(args)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	logger := cfg.Logger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	batchID := uuid.New().String()
	deps := pipeline.Deps{
		Storage:  storage.NewOS("."),
		Logger:   logger,
		Reporter: pipeline.LogReporter{Logger: logger},
	}

	ledger := cfg.DBPath != ""
	if ledger {
		if err := store.InitDB(cfg.DBPath); err != nil {
			logger.Error("open ledger", "path", cfg.DBPath, "error", err)
			return exitFailure
		}
		defer store.Close()
		if err := store.SaveBatch(batchID, cfg.BatchSpec); err != nil {
			logger.Error("save batch", "error", err)
			return exitFailure
		}
		deps.Reporter = pipeline.Reporters{store.Reporter{}, deps.Reporter}
	}

	report, err := pipeline.Run(ctx, batchID, cfg.BatchSpec, deps)
	if err != nil {
		logger.Error("batch failed", "batch", batchID, "error", err)
		if ledger {
			if serr := store.SaveBatchError(batchID, err); serr != nil {
				logger.Error("save batch error", "batch", batchID, "error", serr)
			}
		}
		return exitFailure
	}

	if err := pipeline.WriteSummary(os.Stdout, report); err != nil {
		logger.Error("write summary", "error", err)
	}

	if opts.export != "" {
		res := pipeline.ExportReport(deps.Storage, opts.export, report)
		if !res.Success {
			logger.Error("export report", "path", res.Path, "error", res.Error)
		} else {
			logger.Info("report exported", "path", res.Path, "type", res.Type, "records", res.RecordCount)
		}
	}

	if report.Status == model.StatusCancelled || errors.Is(ctx.Err(), context.Canceled) {
		return exitCancelled
	}
	return 0
}
