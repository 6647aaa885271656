package runner

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/dbsmedya/accesstally/internal/config"
	"github.com/dbsmedya/accesstally/internal/layer"
	"github.com/dbsmedya/accesstally/internal/lock"
	"github.com/dbsmedya/accesstally/internal/logger"
	"github.com/dbsmedya/accesstally/internal/provider"
	"github.com/dbsmedya/accesstally/internal/selection"
	"github.com/dbsmedya/accesstally/internal/tally"
)

// PreflightError represents a preflight check failure.
type PreflightError struct {
	Check   string
	Message string
	Items   []string
}

func (e *PreflightError) Error() string {
	if len(e.Items) > 0 {
		return fmt.Sprintf("%s: %s (%s)", e.Check, e.Message, strings.Join(e.Items, ", "))
	}
	return fmt.Sprintf("%s: %s", e.Check, e.Message)
}

// spatialTypes are the MySQL column types accepted for geometry columns.
var spatialTypes = map[string]bool{
	"geometry":           true,
	"polygon":            true,
	"multipolygon":       true,
	"point":              true,
	"multipoint":         true,
	"linestring":         true,
	"multilinestring":    true,
	"geomcollection":     true,
	"geometrycollection": true,
}

// PreflightChecker verifies that a job's inputs exist before running it.
// db may be nil when the catalog is not used.
type PreflightChecker struct {
	fs     afero.Fs
	db     *sql.DB
	schema string
	logger *logger.Logger
}

// NewPreflightChecker creates a new preflight checker.
func NewPreflightChecker(fs afero.Fs, db *sql.DB, schema string, log *logger.Logger) (*PreflightChecker, error) {
	if fs == nil {
		return nil, fmt.Errorf("filesystem is nil")
	}
	if db != nil && schema == "" {
		return nil, fmt.Errorf("catalog database name is required")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &PreflightChecker{fs: fs, db: db, schema: schema, logger: log}, nil
}

// RunAllChecks runs every check that applies to the job. Missing rev sources
// only produce warnings since the run skips them.
func (p *PreflightChecker) RunAllChecks(ctx context.Context, cfg *config.Config, jobName string) error {
	job, err := cfg.GetJob(jobName)
	if err != nil {
		return err
	}
	p.logger.Infof("Running preflight checks for job %s...", jobName)

	orders, err := p.ValidateOrdersLayer(job.OrdersLayer)
	if err != nil {
		return err
	}

	usesCatalog := job.SourceKind() == config.SourceCatalog || job.WriteCatalog
	if usesCatalog && p.db == nil {
		return &PreflightError{Check: "CATALOG_CHECK", Message: "job needs the catalog but no connection is available"}
	}

	var missing []string
	switch job.SourceKind() {
	case config.SourceLayers:
		missing, err = p.ValidateRevLayers(job)
	case config.SourceCatalog:
		missing, err = p.validateCatalogSource(ctx, cfg, job)
	case config.SourceOrbit:
		err = p.ValidateTLEs(job)
	}
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		p.logger.Warnf("%d rev sources are missing and will be skipped: %v", len(missing), missing)
	}

	if job.WriteCatalog {
		if err := p.ValidateTablesExist(ctx, []string{cfg.Catalog.OrdersTable}); err != nil {
			return err
		}
		if err := p.ValidateColumnsExist(ctx, cfg.Catalog.OrdersTable, provider.OrderIDColumn, cfg.Catalog.AccessesColumn); err != nil {
			return err
		}
		if err := p.CheckJobNotRunning(ctx, jobName); err != nil {
			return err
		}
	}

	p.logger.Infof("All preflight checks PASSED (%d orders)", orders.Len())
	return nil
}

// ValidateOrdersLayer loads the orders layer.
func (p *PreflightChecker) ValidateOrdersLayer(path string) (*layer.OrderLayer, error) {
	orders, err := layer.NewStore(p.fs).LoadOrders(path)
	if err != nil {
		return nil, &PreflightError{Check: "ORDERS_LAYER_CHECK", Message: err.Error()}
	}
	if orders.Len() == 0 {
		p.logger.Warnf("Orders layer %s has no features", path)
	}
	return orders, nil
}

// ValidateRevLayers checks the rev directory and returns the keys of the
// window that have no matching rev layer.
func (p *PreflightChecker) ValidateRevLayers(job *config.JobConfig) ([]string, error) {
	ok, err := afero.DirExists(p.fs, job.RevDir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat rev dir: %w", err)
	}
	if !ok {
		return nil, &PreflightError{Check: "REV_DIR_CHECK", Message: "rev directory not found", Items: []string{job.RevDir}}
	}

	var missing []string
	for _, sc := range job.Spacecraft {
		for day := 0; day < job.LookaheadDays; day++ {
			pattern := filepath.Join(job.RevDir, layer.ResolvePattern(job.RevPattern, sc.LayerName(), day))
			matches, err := afero.Glob(p.fs, pattern)
			if err != nil {
				return nil, &PreflightError{Check: "REV_PATTERN_CHECK", Message: err.Error(), Items: []string{job.RevPattern}}
			}
			if len(matches) == 0 {
				missing = append(missing, tally.Key{Spacecraft: sc.ID, Day: day}.String())
			}
		}
	}
	return missing, nil
}

func (p *PreflightChecker) validateCatalogSource(ctx context.Context, cfg *config.Config, job *config.JobConfig) ([]string, error) {
	if err := p.ValidateTablesExist(ctx, []string{cfg.Catalog.OrdersTable}); err != nil {
		return nil, err
	}
	if err := p.ValidateSpatialColumn(ctx, cfg.Catalog.OrdersTable, provider.GeometryColumn); err != nil {
		return nil, err
	}

	names := make(map[string]string, len(job.Spacecraft))
	for _, sc := range job.Spacecraft {
		names[sc.ID] = sc.LayerName()
	}
	cp, err := provider.NewCatalogProvider(p.db, p.schema, cfg.Catalog.OrdersTable, job.RevTablePattern, names, selection.Buckets{})
	if err != nil {
		return nil, &PreflightError{Check: "REV_TABLE_CHECK", Message: err.Error()}
	}

	tableKeys := make(map[string][]string)
	var tables []string
	for _, key := range keysOf(job) {
		table := cp.RevTable(key)
		if _, seen := tableKeys[table]; !seen {
			tables = append(tables, table)
		}
		tableKeys[table] = append(tableKeys[table], key.String())
	}

	existing, err := p.existingTables(ctx, tables)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, table := range tables {
		if !existing[table] {
			missing = append(missing, tableKeys[table]...)
		}
	}
	return missing, nil
}

func keysOf(job *config.JobConfig) []tally.Key {
	keys := make([]tally.Key, 0, len(job.Spacecraft)*job.LookaheadDays)
	for _, id := range job.SpacecraftIDs() {
		for day := 0; day < job.LookaheadDays; day++ {
			keys = append(keys, tally.Key{Spacecraft: id, Day: day})
		}
	}
	return keys
}

// ValidateTLEs parses the TLE of every spacecraft of an orbit job.
func (p *PreflightChecker) ValidateTLEs(job *config.JobConfig) error {
	var bad []string
	for _, sc := range job.Spacecraft {
		tle := provider.TLE{Line1: sc.TLELine1, Line2: sc.TLELine2}
		if err := tle.Validate(); err != nil {
			bad = append(bad, fmt.Sprintf("%s: %v", sc.ID, err))
		}
	}
	if len(bad) > 0 {
		return &PreflightError{Check: "TLE_CHECK", Message: "spacecraft TLEs failed to parse", Items: bad}
	}
	return nil
}

func (p *PreflightChecker) existingTables(ctx context.Context, tables []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(tables) == 0 {
		return existing, nil
	}

	placeholders := make([]string, len(tables))
	args := make([]interface{}, len(tables)+1)
	args[0] = p.schema
	for i, table := range tables {
		placeholders[i] = "?"
		args[i+1] = table
	}
	query := fmt.Sprintf(`
		SELECT TABLE_NAME
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ?
		AND TABLE_NAME IN (%s)`, strings.Join(placeholders, ","))

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		existing[name] = true
	}
	return existing, rows.Err()
}

// ValidateTablesExist checks that all tables exist in the catalog database.
func (p *PreflightChecker) ValidateTablesExist(ctx context.Context, tables []string) error {
	p.logger.Debug("Checking table existence...")

	existing, err := p.existingTables(ctx, tables)
	if err != nil {
		return err
	}

	var missing []string
	for _, table := range tables {
		if !existing[table] {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		return &PreflightError{
			Check:   "TABLE_EXISTENCE_CHECK",
			Message: "Tables not found in catalog database",
			Items:   missing,
		}
	}
	return nil
}

func (p *PreflightChecker) columnTypes(ctx context.Context, table string, columns []string) (map[string]string, error) {
	placeholders := make([]string, len(columns))
	args := make([]interface{}, len(columns)+2)
	args[0], args[1] = p.schema, table
	for i, c := range columns {
		placeholders[i] = "?"
		args[i+2] = c
	}
	query := fmt.Sprintf(`
		SELECT COLUMN_NAME, DATA_TYPE
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ?
		AND TABLE_NAME = ?
		AND COLUMN_NAME IN (%s)`, strings.Join(placeholders, ","))

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	types := make(map[string]string)
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return nil, err
		}
		types[name] = strings.ToLower(dataType)
	}
	return types, rows.Err()
}

// ValidateColumnsExist checks that every column exists on table.
func (p *PreflightChecker) ValidateColumnsExist(ctx context.Context, table string, columns ...string) error {
	types, err := p.columnTypes(ctx, table, columns)
	if err != nil {
		return err
	}
	var missing []string
	for _, c := range columns {
		if _, ok := types[c]; !ok {
			missing = append(missing, table+"."+c)
		}
	}
	if len(missing) > 0 {
		return &PreflightError{Check: "COLUMN_EXISTENCE_CHECK", Message: "Columns not found", Items: missing}
	}
	return nil
}

// ValidateSpatialColumn checks that column holds a MySQL spatial type.
func (p *PreflightChecker) ValidateSpatialColumn(ctx context.Context, table, column string) error {
	types, err := p.columnTypes(ctx, table, []string{column})
	if err != nil {
		return err
	}
	dataType, ok := types[column]
	if !ok {
		return &PreflightError{Check: "SPATIAL_COLUMN_CHECK", Message: "geometry column not found", Items: []string{table + "." + column}}
	}
	if !spatialTypes[dataType] {
		return &PreflightError{
			Check:   "SPATIAL_COLUMN_CHECK",
			Message: fmt.Sprintf("column has type %s, expected a spatial type", dataType),
			Items:   []string{table + "." + column},
		}
	}
	return nil
}

// CheckJobNotRunning fails when another run of the job holds its lock.
func (p *PreflightChecker) CheckJobNotRunning(ctx context.Context, jobName string) error {
	running, err := lock.IsJobRunning(ctx, p.db, jobName)
	if err != nil {
		return fmt.Errorf("failed to check job lock: %w", err)
	}
	if running {
		return &PreflightError{
			Check:   "JOB_LOCK_CHECK",
			Message: "job is already running",
			Items:   []string{lock.GenerateJobLockName(jobName)},
		}
	}
	return nil
}
