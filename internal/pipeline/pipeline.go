// Package pipeline wires storage, the snapshot loader, the analytics and the
// report writer into a single analysis run.
package pipeline

import (
	"context"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/easymoney/easymoney-bi/internal/analytics/adoption"
	"github.com/easymoney/easymoney-bi/internal/analytics/growth"
	"github.com/easymoney/easymoney-bi/internal/analytics/history"
	"github.com/easymoney/easymoney-bi/internal/analytics/presence"
	"github.com/easymoney/easymoney-bi/internal/analytics/tenure"
	"github.com/easymoney/easymoney-bi/internal/config"
	"github.com/easymoney/easymoney-bi/internal/logger"
	"github.com/easymoney/easymoney-bi/internal/observability"
	"github.com/easymoney/easymoney-bi/internal/report"
	"github.com/easymoney/easymoney-bi/internal/snapshot"
	"github.com/easymoney/easymoney-bi/internal/storage"
	"github.com/easymoney/easymoney-bi/pkg/types"
)

// Pipeline runs the analysis described by a Config.
type Pipeline struct {
	cfg    *config.Config
	store  storage.ObjectStorage
	loader *snapshot.Loader
	writer *report.Writer
	log    *logger.Logger
	newID  func() string
}

// Result holds everything a run computed.
type Result struct {
	RunID         string
	Snapshot      *types.Snapshot
	Matrix        *presence.Matrix
	Tenure        []tenure.Record
	Buckets       []tenure.Share
	Months        []tenure.Share
	History       []history.Record
	Aggregates    *growth.Aggregates
	Growth        []growth.Record
	ContractIndex []adoption.Index
	Files         []string
	Uploaded      []string
	Manifest      *report.Manifest
}

// New resolves and validates cfg, creates the local directories and returns a
// pipeline reading from and publishing to store.
func New(cfg *config.Config, store storage.ObjectStorage, log *logger.Logger) (*Pipeline, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Pipeline{
		cfg:    cfg,
		store:  store,
		loader: snapshot.NewLoader(store, SnapshotOptions(cfg), cfg.Input.WorkDir, log),
		writer: report.NewWriter(report.Options{
			Dir:      cfg.Output.Dir,
			Compress: cfg.Output.Compress,
			XLSX:     cfg.Output.XLSX,
		}, log),
		log:   log,
		newID: uuid.NewString,
	}, nil
}

// OpenStorage builds the ObjectStorage selected by the configuration.
func OpenStorage(ctx context.Context, cfg *config.Config) (storage.ObjectStorage, error) {
	switch cfg.Storage.Type {
	case "local":
		return storage.NewLocalStorage(cfg.Storage.Path)
	case "s3":
		return storage.NewS3Storage(ctx, cfg.Storage.S3.Bucket, storage.S3Config{
			Region:       cfg.Storage.S3.Region,
			Endpoint:     cfg.Storage.S3.Endpoint,
			UsePathStyle: cfg.Storage.S3.UsePathStyle,
			MaxRetries:   cfg.Storage.S3.MaxRetries,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

// SnapshotOptions maps the input configuration onto loader options.
func SnapshotOptions(cfg *config.Config) snapshot.Options {
	opts := snapshot.DefaultOptions()
	if r := []rune(cfg.Input.Delimiter); len(r) == 1 {
		opts.Delimiter = r[0]
	}
	if cfg.Input.CustomerColumn != "" {
		opts.CustomerColumn = cfg.Input.CustomerColumn
	}
	if cfg.Input.PartitionColumn != "" {
		opts.PartitionColumn = cfg.Input.PartitionColumn
	}
	if len(cfg.Input.DateLayouts) > 0 {
		opts.DateLayouts = cfg.Input.DateLayouts
	}
	if cfg.Input.DropColumns != nil {
		opts.DropColumns = cfg.Input.DropColumns
	}
	if cfg.Input.Renames != nil {
		opts.Renames = cfg.Input.Renames
	}
	if cfg.Input.Table != "" {
		opts.Table = cfg.Input.Table
	}
	return opts
}

// Boundaries maps the configured buckets onto tenure ranges.
func Boundaries(cfg *config.Config) tenure.Boundaries {
	out := make(tenure.Boundaries, len(cfg.Analysis.Buckets))
	for i, b := range cfg.Analysis.Buckets {
		out[i] = tenure.Range{Bucket: tenure.Bucket(b.Name), Min: b.Min, Max: b.Max}
	}
	return out
}

// Run loads the configured snapshot, computes every table, writes the reports
// and, when an upload prefix is set, publishes them.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	res := &Result{RunID: p.newID()}
	log := p.log.With("run_id", res.RunID)
	stats := observability.NewRunStats()
	started := time.Now().UTC()

	log.Info("analysis started", "input", p.cfg.Input.Object, "workers", p.cfg.Analysis.Workers)

	stop := stats.Track("load")
	snap, err := p.loader.Load(ctx, p.cfg.Input.Object)
	stop()
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", p.cfg.Input.Object, err)
	}
	res.Snapshot = snap
	stats.Set("rows", int64(snap.Len()))
	stats.Set("products", int64(len(snap.Products)))

	stop = stats.Track("tenure")
	res.Matrix = presence.Build(snap.Rows)
	bounds := Boundaries(p.cfg)
	res.Tenure, err = tenure.Score(res.Matrix, p.cfg.Analysis.PeriodLength, bounds)
	if err != nil {
		stop()
		return nil, fmt.Errorf("tenure: %w", err)
	}
	res.Buckets = tenure.Distribution(res.Tenure, bounds)
	res.Months = tenure.MonthsDistribution(res.Tenure)
	stop()
	stats.Set("customers", int64(res.Matrix.Rows()))
	stats.Set("partitions", int64(res.Matrix.Cols()))

	stop = stats.Track("history")
	evaluator := history.NewEvaluator(p.cfg.Analysis.Workers, p.cfg.Analysis.ProgressEvery, log)
	res.History, err = evaluator.EvaluateAll(ctx, snap, nil)
	stop()
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	stats.Set("history_records", int64(len(res.History)))

	stop = stats.Track("growth")
	res.Aggregates, err = growth.Aggregate(snap)
	if err == nil {
		if len(p.cfg.Analysis.Products) > 0 {
			res.Growth, err = growth.Select(res.Aggregates, p.cfg.Analysis.Products)
		} else {
			res.Growth, err = growth.Compute(res.Aggregates.Inputs())
		}
	}
	stop()
	if err != nil {
		return nil, fmt.Errorf("growth: %w", err)
	}

	stop = stats.Track("adoption")
	res.ContractIndex, err = adoption.ContractIndex(snap)
	stop()
	if err != nil {
		return nil, fmt.Errorf("adoption: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.Manifest = &report.Manifest{
		RunID:      res.RunID,
		Input:      p.cfg.Input.Object,
		StartedAt:  started,
		Rows:       snap.Len(),
		Customers:  res.Matrix.Rows(),
		Partitions: res.Matrix.Cols(),
		Products:   snap.Products,
		Selected:   p.cfg.Analysis.Products,
	}

	stop = stats.Track("report")
	res.Files, err = p.writer.WriteTables(ctx, res.RunID, Tables(res), res.Manifest)
	stop()
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	res.Manifest.Stats = stats.Snapshot()
	manifestPath, err := p.writer.WriteManifest(res.RunID, res.Manifest)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	res.Files = append(res.Files, manifestPath)

	if prefix := p.cfg.Output.UploadPrefix; prefix != "" {
		stop = stats.Track("upload")
		uploader := storage.NewBatchUploader(p.store, p.cfg.Analysis.Workers)
		res.Uploaded, err = report.Publish(ctx, uploader, path.Join(prefix, res.RunID), res.Files)
		stop()
		if err != nil {
			return nil, fmt.Errorf("upload: %w", err)
		}
		stats.Set("uploaded", int64(len(res.Uploaded)))
	}

	log.Info("analysis finished", stats.Snapshot().Fields()...)
	return res, nil
}

// Tables renders a result into the output tables, in file order.
func Tables(res *Result) []report.Table {
	return []report.Table{
		report.TenureTable(res.Tenure),
		report.BucketTable(res.Buckets),
		report.MonthsTable(res.Months),
		report.HistoryTable(res.History),
		report.GrowthTable(res.Growth),
		report.ActiveTable(res.Aggregates),
		report.InactiveTable(res.Aggregates),
		report.CustomerTypesTable(res.History),
		report.ContractIndexTable(res.ContractIndex),
		report.ProductsTable(res.Snapshot.Products),
	}
}

// Describe loads the configured snapshot and summarizes it.
func (p *Pipeline) Describe(ctx context.Context) (snapshot.Summary, error) {
	snap, err := p.loader.Load(ctx, p.cfg.Input.Object)
	if err != nil {
		return snapshot.Summary{}, fmt.Errorf("load %s: %w", p.cfg.Input.Object, err)
	}
	return snapshot.Describe(snap), nil
}

// List returns the snapshot objects under the input prefix, skipping files
// the loader cannot read.
func (p *Pipeline) List(ctx context.Context) ([]string, error) {
	objects, err := p.store.ListObjects(ctx, p.cfg.Input.Prefix)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", p.cfg.Input.Prefix, err)
	}
	var out []string
	for _, o := range objects {
		if _, err := snapshot.DetectFormat(o); err == nil {
			out = append(out, o)
		}
	}
	sort.Strings(out)
	return out, nil
}
