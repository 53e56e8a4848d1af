// Package main implements the easymoney-bi binary. It runs a full analysis of a
// monthly product snapshot, describes a snapshot, or lists available snapshots,
// depending on the -mode flag.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/easymoney/easymoney-bi/internal/config"
	apperrors "github.com/easymoney/easymoney-bi/internal/errors"
	"github.com/easymoney/easymoney-bi/internal/logger"
	"github.com/easymoney/easymoney-bi/internal/pipeline"
)

var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes follow sysexits.h so a scheduler can re-run transient failures.
const (
	exitFailure  = 1
	exitDataErr  = 65
	exitIOErr    = 74
	exitTempFail = 75
	exitConfig   = 78
)

func main() {
	var (
		configFile  string
		dataDir     string
		input       string
		mode        string
		workers     int
		products    string
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for storage, work files and reports")
	flag.StringVar(&input, "input", "", "Snapshot object to analyse (.csv, .sz, .db)")
	flag.StringVar(&mode, "mode", "", "Run mode: analyze, describe, list")
	flag.IntVar(&workers, "workers", 0, "History evaluation workers")
	flag.StringVar(&products, "products", "", "Comma-separated products for the growth series")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "EasyMoney BI - retail banking product analytics\n\n")
		fmt.Fprintf(os.Stderr, "Usage: easymoney-bi [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  easymoney-bi -data-dir /data/easymoney -input products_df.csv\n")
		fmt.Fprintf(os.Stderr, "  easymoney-bi -mode describe -input products_df.csv.sz\n")
		fmt.Fprintf(os.Stderr, "  easymoney-bi -config /etc/easymoney/config.yaml -products debit_card,payroll\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  EASYMONEY_MODE          Run mode (analyze, describe, list)\n")
		fmt.Fprintf(os.Stderr, "  EASYMONEY_DATA_DIR      Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  EASYMONEY_INPUT         Snapshot object to analyse\n")
		fmt.Fprintf(os.Stderr, "  EASYMONEY_WORKERS       History evaluation workers\n")
		fmt.Fprintf(os.Stderr, "  EASYMONEY_STORAGE_TYPE  Storage type (local, s3)\n")
		fmt.Fprintf(os.Stderr, "  EASYMONEY_S3_BUCKET     Bucket for s3 storage\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("easymoney-bi version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	_ = godotenv.Load()

	cfg, err := loadConfig(configFile, dataDir, input, mode, workers, products)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(exitConfig)
	}

	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("run failed", "mode", cfg.Mode, "code", apperrors.GetCode(err),
			"retryable", apperrors.IsRetryable(err), "error", err)
		log.Sync()
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case apperrors.IsRetryable(err):
		return exitTempFail
	case apperrors.IsDataAccess(err):
		return exitIOErr
	}
	switch apperrors.GetCategory(err) {
	case apperrors.ErrCategoryValidation:
		return exitDataErr
	case apperrors.ErrCategoryConfig:
		return exitConfig
	}
	return exitFailure
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return err
	}

	store, err := pipeline.OpenStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.Info("storage initialized", "type", cfg.Storage.Type, "bucket", cfg.Storage.S3.Bucket, "path", cfg.Storage.Path)

	p, err := pipeline.New(cfg, store, log)
	if err != nil {
		return err
	}

	switch cfg.Mode {
	case config.ModeDescribe:
		sum, err := p.Describe(ctx)
		if err != nil {
			return err
		}
		printSummary(os.Stdout, cfg.Input.Object, sum)
	case config.ModeList:
		objects, err := p.List(ctx)
		if err != nil {
			return err
		}
		printObjects(os.Stdout, objects)
	default:
		res, err := p.Run(ctx)
		if err != nil {
			return err
		}
		printResult(os.Stdout, res)
	}
	return nil
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(configFile, dataDir, input, mode string, workers int, products string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	// Command line flags have the highest priority
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if input != "" {
		cfg.Input.Object = input
	}
	if mode != "" {
		cfg.Mode = config.Mode(mode)
	}
	if workers > 0 {
		cfg.Analysis.Workers = workers
	}
	if products != "" {
		cfg.Analysis.Products = config.SplitList(products)
	}

	return cfg, nil
}
