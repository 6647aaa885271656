// Package runner coordinates one access tally run: collect availability,
// count accesses, write and publish the output layer.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dbsmedya/accesstally/internal/collector"
	"github.com/dbsmedya/accesstally/internal/config"
	"github.com/dbsmedya/accesstally/internal/database"
	"github.com/dbsmedya/accesstally/internal/export"
	"github.com/dbsmedya/accesstally/internal/layer"
	"github.com/dbsmedya/accesstally/internal/lock"
	"github.com/dbsmedya/accesstally/internal/logger"
	"github.com/dbsmedya/accesstally/internal/observability"
	"github.com/dbsmedya/accesstally/internal/provider"
	"github.com/dbsmedya/accesstally/internal/publish"
	"github.com/dbsmedya/accesstally/internal/selection"
	"github.com/dbsmedya/accesstally/internal/tally"
	"github.com/dbsmedya/accesstally/internal/verifier"
)

// Result contains the outcome of a run.
type Result struct {
	RunID         string
	JobName       string
	Source        string
	DryRun        bool
	StartedAt     time.Time
	CompletedAt   time.Time
	Duration      time.Duration
	Orders        int
	Availability  tally.Availability[tally.Key, string]
	Skipped       []tally.Key
	Counts        map[string]int
	Unmatched     []string
	VisibleOrders int
	Accesses      int64
	StagedPath    string
	OutputPath    string
	Verification  *verifier.VerifyResult
	CatalogWrite  *export.WriteStats
	Success       bool
}

// Options carries the collaborators of a Runner. Zero values fall back to
// the OS filesystem, a nop logger and no metrics.
type Options struct {
	Fs        afero.Fs
	Logger    *logger.Logger
	DBManager *database.Manager
	Metrics   *observability.RunMetrics
	// Provider replaces the provider built from the job source.
	Provider provider.Provider
	DryRun   bool
	Now      func() time.Time
}

// Runner executes one job.
type Runner struct {
	config        *config.Config
	jobConfig     *config.JobConfig
	jobName       string
	opts          Options
	logger        *logger.Logger
	processingCfg config.ProcessingConfig
	selectionCfg  config.SelectionConfig

	store       *layer.Store
	orders      *layer.OrderLayer
	buckets     selection.Buckets
	provider    provider.Provider
	initialized bool
}

// New creates a runner for jobName. Initialize must be called before Execute.
func New(cfg *config.Config, jobName string, opts Options) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	jobCfg, err := cfg.GetJob(jobName)
	if err != nil {
		return nil, err
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Runner{
		config:        cfg,
		jobConfig:     jobCfg,
		jobName:       jobName,
		opts:          opts,
		logger:        opts.Logger.WithJob(jobName),
		processingCfg: jobCfg.GetJobProcessing(cfg.Processing),
		selectionCfg:  jobCfg.GetJobSelection(cfg.Selection),
		store:         layer.NewStore(opts.Fs),
	}, nil
}

// UpdateProcessingConfig replaces the effective processing configuration.
// Call it after applying CLI overrides and before Initialize.
func (r *Runner) UpdateProcessingConfig(cfg config.ProcessingConfig) {
	r.processingCfg = cfg
}

// Initialize loads the orders layer and builds the availability provider.
func (r *Runner) Initialize(ctx context.Context) error {
	if r.initialized {
		return nil
	}

	r.logger.Infow("Initializing runner",
		"source", r.jobConfig.SourceKind(),
		"orders_layer", r.jobConfig.OrdersLayer,
		"spacecraft", r.jobConfig.SpacecraftIDs(),
		"lookahead_days", r.jobConfig.LookaheadDays,
	)

	buckets, err := selection.NewBuckets(r.selectionCfg.ONAThresholds)
	if err != nil {
		return fmt.Errorf("invalid selection: %w", err)
	}
	r.buckets = buckets

	orders, err := r.store.LoadOrders(r.jobConfig.OrdersLayer)
	if err != nil {
		return fmt.Errorf("failed to load orders layer: %w", err)
	}
	r.orders = orders

	if r.opts.Provider != nil {
		r.provider = r.opts.Provider
	} else {
		p, err := r.buildProvider(ctx)
		if err != nil {
			return err
		}
		r.provider = p
	}

	r.initialized = true
	r.logger.Infow("Runner initialized",
		"orders", orders.Len(),
		"provider", r.provider.Name(),
		"ona_thresholds", buckets.Thresholds(),
	)
	return nil
}

func (r *Runner) layerNames() map[string]string {
	names := make(map[string]string, len(r.jobConfig.Spacecraft))
	for _, sc := range r.jobConfig.Spacecraft {
		names[sc.ID] = sc.LayerName()
	}
	return names
}

func (r *Runner) buildProvider(ctx context.Context) (provider.Provider, error) {
	switch r.jobConfig.SourceKind() {
	case config.SourceLayers:
		return provider.NewLayerProvider(r.store, r.jobConfig.RevDir, r.jobConfig.RevPattern, r.layerNames(), r.orders, r.buckets)

	case config.SourceCatalog:
		db, err := r.catalogDB(ctx)
		if err != nil {
			return nil, err
		}
		return provider.NewCatalogProvider(db.Catalog, r.config.Catalog.Database, r.config.Catalog.OrdersTable,
			r.jobConfig.RevTablePattern, r.layerNames(), r.buckets)

	case config.SourceOrbit:
		start, err := r.startDate()
		if err != nil {
			return nil, err
		}
		tles := make(map[string]provider.TLE, len(r.jobConfig.Spacecraft))
		for _, sc := range r.jobConfig.Spacecraft {
			tles[sc.ID] = provider.TLE{Line1: sc.TLELine1, Line2: sc.TLELine2}
		}
		step := time.Duration(r.processingCfg.OrbitStepSeconds * float64(time.Second))
		return provider.NewOrbitProvider(tles, r.orders, r.buckets, start, step)

	default:
		return nil, fmt.Errorf("unknown source %q", r.jobConfig.Source)
	}
}

func (r *Runner) startDate() (time.Time, error) {
	if r.jobConfig.StartDate == "" {
		return r.opts.Now().UTC(), nil
	}
	start, err := time.Parse(config.StartDateLayout, r.jobConfig.StartDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start_date %q: %w", r.jobConfig.StartDate, err)
	}
	return start, nil
}

func (r *Runner) catalogDB(ctx context.Context) (*database.Manager, error) {
	if r.opts.DBManager == nil {
		return nil, fmt.Errorf("catalog source requires a database manager")
	}
	if err := r.opts.DBManager.Connect(ctx); err != nil {
		return nil, err
	}
	return r.opts.DBManager, nil
}

// Execute runs the job. In dry-run mode it stops after counting.
func (r *Runner) Execute(ctx context.Context) (result *Result, err error) {
	if !r.initialized {
		return nil, fmt.Errorf("runner not initialized")
	}

	result = &Result{
		RunID:     uuid.NewString(),
		JobName:   r.jobName,
		Source:    r.provider.Name(),
		DryRun:    r.opts.DryRun,
		StartedAt: r.opts.Now(),
		Orders:    r.orders.Len(),
	}
	log := r.logger.WithRun(result.RunID)

	ctx, span := observability.StartSpan(ctx, "accesstally.run",
		attribute.String("job", r.jobName),
		attribute.String("run_id", result.RunID),
		attribute.String("source", result.Source),
		attribute.Bool("dry_run", r.opts.DryRun),
	)
	defer func() {
		result.CompletedAt = r.opts.Now()
		result.Duration = result.CompletedAt.Sub(result.StartedAt)
		result.Success = err == nil
		observability.EndSpan(span, err)
		r.recordMetrics(result, log)
	}()

	log.Infow("Starting run",
		"source", result.Source,
		"orders", result.Orders,
		"workers", r.processingCfg.Workers,
		"dry_run", r.opts.DryRun,
	)

	// Collect
	stageCtx, stage := observability.StartSpan(ctx, "accesstally.collect")
	collected, err := collector.New(r.provider, r.processingCfg.Workers, log).
		Collect(stageCtx, r.jobConfig.SpacecraftIDs(), r.jobConfig.LookaheadDays)
	observability.EndSpan(stage, err)
	if err != nil {
		return result, fmt.Errorf("collect failed: %w", err)
	}
	result.Availability = collected.Availability
	result.Skipped = collected.Skipped

	// Tally
	counts := tally.Count(collected.Availability)
	result.Counts = counts
	result.VisibleOrders = len(counts)
	result.Accesses = sumCounts(counts)

	if r.opts.DryRun {
		log.Infow("Dry run complete",
			"keys", len(result.Availability),
			"skipped", len(result.Skipped),
			"visible_orders", result.VisibleOrders,
			"accesses", result.Accesses,
		)
		return result, nil
	}

	// Annotate and stage
	annotation := export.Annotate(r.orders, counts, r.config.Output.Field)
	result.Counts = annotation.Counts
	result.Unmatched = annotation.Unmatched
	if len(annotation.Unmatched) > 0 {
		log.Warnw("Visible orders missing from the orders layer", "count", len(annotation.Unmatched), "ids", annotation.Unmatched)
	}

	staged, err := export.StageGeoJSON(r.opts.Fs, r.jobConfig.StagingDir, r.jobConfig.FeatureName, annotation.Collection)
	if err != nil {
		return result, fmt.Errorf("stage failed: %w", err)
	}
	result.StagedPath = staged
	log.Infow("Output layer staged", "path", staged, "features", len(annotation.Collection.Features))

	// Verify
	if !r.config.Output.SkipVerification {
		v, err := r.newVerifier(log)
		if err != nil {
			return result, err
		}
		result.Verification, err = v.VerifyLayer(ctx, r.opts.Fs, staged, annotation.Counts)
		if err != nil {
			return result, fmt.Errorf("verification failed: %w", err)
		}
	}

	// Publish
	published, err := publish.New(r.opts.Fs, log).Publish(r.jobConfig.OutputDir, staged)
	if err != nil {
		return result, fmt.Errorf("publish failed: %w", err)
	}
	if len(published.Published) > 0 {
		result.OutputPath = published.Published[0]
	}

	// Catalog write-back
	if r.jobConfig.WriteCatalog {
		stats, err := r.writeCatalog(ctx, annotation.Counts, log)
		if err != nil {
			return result, fmt.Errorf("catalog write failed: %w", err)
		}
		result.CatalogWrite = stats
	}

	log.Infow("Run completed",
		"visible_orders", result.VisibleOrders,
		"accesses", result.Accesses,
		"skipped_keys", len(result.Skipped),
		"output", result.OutputPath,
	)
	return result, nil
}

func (r *Runner) newVerifier(log *logger.Logger) (*verifier.Verifier, error) {
	v, err := verifier.NewVerifier(verifier.VerificationMethod(r.config.Output.VerificationMethod), r.config.Output.Field, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create verifier: %w", err)
	}
	return v, nil
}

// writeCatalog writes counts back and verifies them while holding the job lock.
func (r *Runner) writeCatalog(ctx context.Context, counts map[string]int, log *logger.Logger) (*export.WriteStats, error) {
	ctx, span := observability.StartSpan(ctx, "accesstally.catalog_write")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	mgr, err := r.catalogDB(ctx)
	if err != nil {
		return nil, err
	}
	db := mgr.Catalog

	writer, err := export.NewCatalogWriter(db, r.config.Catalog.OrdersTable, provider.OrderIDColumn,
		r.config.Catalog.AccessesColumn, r.processingCfg.CatalogBatchSize, log)
	if err != nil {
		return nil, err
	}

	var stats *export.WriteStats
	err = lock.WithJobLock(ctx, db, r.jobName, log, func() error {
		var werr error
		if stats, werr = writer.Write(ctx, counts); werr != nil {
			return werr
		}
		if r.config.Output.SkipVerification {
			return nil
		}
		v, werr := r.newVerifier(log)
		if werr != nil {
			return werr
		}
		_, werr = v.VerifyCatalog(ctx, db, r.config.Catalog.OrdersTable, provider.OrderIDColumn, r.config.Catalog.AccessesColumn, counts)
		return werr
	})
	return stats, err
}

func (r *Runner) recordMetrics(result *Result, log *logger.Logger) {
	if r.opts.Metrics == nil {
		return
	}
	r.opts.Metrics.Record(observability.RunSummary{
		Job:           result.JobName,
		Source:        result.Source,
		Orders:        result.Orders,
		VisibleOrders: result.VisibleOrders,
		Keys:          len(result.Availability),
		SkippedKeys:   len(result.Skipped),
		Accesses:      result.Accesses,
		Duration:      result.Duration,
		Success:       result.Success,
	})
	if err := r.opts.Metrics.WriteTextfile(r.config.Metrics.Textfile); err != nil {
		log.Warnw("Failed to write metrics textfile", "error", err)
	}
}

func sumCounts(counts map[string]int) int64 {
	var total int64
	for _, n := range counts {
		total += int64(n)
	}
	return total
}

// IsInitialized reports whether Initialize has completed.
func (r *Runner) IsInitialized() bool {
	return r.initialized
}

// GetJobConfig returns the job configuration.
func (r *Runner) GetJobConfig() *config.JobConfig {
	return r.jobConfig
}

// GetProcessingConfig returns the effective processing configuration.
func (r *Runner) GetProcessingConfig() config.ProcessingConfig {
	return r.processingCfg
}

// Orders returns the loaded orders layer, nil before Initialize.
func (r *Runner) Orders() *layer.OrderLayer {
	return r.orders
}
