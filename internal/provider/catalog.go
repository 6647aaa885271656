package provider

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/dbsmedya/accesstally/internal/layer"
	"github.com/dbsmedya/accesstally/internal/selection"
	"github.com/dbsmedya/accesstally/internal/sqlutil"
	"github.com/dbsmedya/accesstally/internal/tally"
	"github.com/dbsmedya/accesstally/internal/types"
)

// Column names of the catalog tables.
const (
	OrderIDColumn  = "id"
	MaxONAColumn   = "max_ona"
	GeometryColumn = "geom"
	SegmentColumn  = "ona"
)

// erNoSuchTable is MySQL's ER_NO_SUCH_TABLE.
const erNoSuchTable = 1146

// CatalogProvider selects orders under rev tables in a MySQL spatial catalog.
// Each rev is a table named after rev_table_pattern holding one row per
// segment with its ONA and geometry.
type CatalogProvider struct {
	db           *sql.DB
	schema       string
	ordersTable  string
	tablePattern string
	layerNames   map[string]string
	buckets      selection.Buckets
}

// NewCatalogProvider creates a provider over db.
func NewCatalogProvider(db *sql.DB, schema, ordersTable, tablePattern string, layerNames map[string]string, buckets selection.Buckets) (*CatalogProvider, error) {
	if db == nil {
		return nil, fmt.Errorf("catalog database is nil")
	}
	if !sqlutil.IsValidIdentifier(ordersTable) {
		return nil, &sqlutil.InvalidIdentifierError{Name: ordersTable}
	}
	return &CatalogProvider{
		db:           db,
		schema:       schema,
		ordersTable:  ordersTable,
		tablePattern: tablePattern,
		layerNames:   layerNames,
		buckets:      buckets,
	}, nil
}

// RevTable returns the rev table name for a key.
func (p *CatalogProvider) RevTable(key tally.Key) string {
	name := key.Spacecraft
	if n, ok := p.layerNames[key.Spacecraft]; ok && n != "" {
		name = n
	}
	return layer.ResolvePattern(p.tablePattern, sqlutil.SanitizeIdentifier(name), key.Day)
}

// Availability implements Provider.
func (p *CatalogProvider) Availability(ctx context.Context, key tally.Key) (tally.Set[string], bool, error) {
	table := p.RevTable(key)
	quoted, err := sqlutil.QuoteIdentifierSafe(table)
	if err != nil {
		return nil, false, fmt.Errorf("rev %s: %w", key, err)
	}

	exists, err := p.tableExists(ctx, table)
	if err != nil {
		return nil, false, fmt.Errorf("rev %s: %w", key, err)
	}
	if !exists {
		return nil, false, nil
	}

	query := fmt.Sprintf(
		"SELECT o.%s, o.%s, s.%s FROM %s o JOIN %s s ON ST_Intersects(o.%s, s.%s)",
		sqlutil.QuoteIdentifier(OrderIDColumn),
		sqlutil.QuoteIdentifier(MaxONAColumn),
		sqlutil.QuoteIdentifier(SegmentColumn),
		sqlutil.QuoteIdentifier(p.ordersTable),
		quoted,
		sqlutil.QuoteIdentifier(GeometryColumn),
		sqlutil.QuoteIdentifier(GeometryColumn),
	)

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		// The table can disappear between the existence check and the query
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == erNoSuchTable {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("rev %s: failed to query %s: %w", key, table, err)
	}
	defer rows.Close()

	visible := tally.NewSet[string]()
	for rows.Next() {
		var rawID interface{}
		var maxONA, segONA sql.NullFloat64
		if err := rows.Scan(&rawID, &maxONA, &segONA); err != nil {
			return nil, false, fmt.Errorf("rev %s: failed to scan row: %w", key, err)
		}
		id, ok := types.ToOrderID(rawID)
		if !ok {
			continue
		}
		if !maxONA.Valid || !segONA.Valid {
			continue
		}
		floor, ok := p.buckets.Floor(maxONA.Float64)
		if !ok || segONA.Float64 > floor {
			continue
		}
		visible.Add(id)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("rev %s: row iteration failed: %w", key, err)
	}

	return visible, true, nil
}

func (p *CatalogProvider) tableExists(ctx context.Context, table string) (bool, error) {
	query := `SELECT COUNT(*) FROM information_schema.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?`

	var count int
	if err := p.db.QueryRowContext(ctx, query, p.schema, table).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	return count > 0, nil
}

// Name implements Provider.
func (p *CatalogProvider) Name() string {
	return "catalog"
}
