// Package verifier checks that written access counts match the count table.
package verifier

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/spf13/afero"

	"github.com/dbsmedya/accesstally/internal/layer"
	"github.com/dbsmedya/accesstally/internal/logger"
	"github.com/dbsmedya/accesstally/internal/sqlutil"
	"github.com/dbsmedya/accesstally/internal/tally"
	"github.com/dbsmedya/accesstally/internal/types"
)

// VerificationMethod defines how to verify written counts.
type VerificationMethod string

const (
	// MethodCount compares the number of orders and the sum of accesses (fast)
	MethodCount VerificationMethod = "count"
	// MethodSHA256 compares a digest of every id=count pair
	MethodSHA256 VerificationMethod = "sha256"
	// MethodSkip skips verification entirely
	MethodSkip VerificationMethod = "skip"
)

// VerifyResult holds the outcome of one verification.
type VerifyResult struct {
	Target        string
	Method        VerificationMethod
	ExpectedCount int64
	ActualCount   int64
	ExpectedSum   int64
	ActualSum     int64
	ExpectedHash  string
	ActualHash    string
	Match         bool
	ErrorMessage  string
}

// Verifier compares a count table against what was written.
type Verifier struct {
	method    VerificationMethod
	field     string
	chunkSize int
	logger    *logger.Logger
}

// NewVerifier creates a verifier. field is the attribute holding the count in
// the output layer.
func NewVerifier(method VerificationMethod, field string, log *logger.Logger) (*Verifier, error) {
	if method == "" {
		method = MethodCount
	}
	switch method {
	case MethodCount, MethodSHA256, MethodSkip:
	default:
		return nil, fmt.Errorf("unsupported verification method: %s", method)
	}
	if field == "" {
		return nil, fmt.Errorf("field is empty")
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &Verifier{
		method:    method,
		field:     field,
		chunkSize: 1000,
		logger:    log,
	}, nil
}

// VerifyLayer re-reads the layer at path and checks it against expected.
func (v *Verifier) VerifyLayer(ctx context.Context, fs afero.Fs, path string, expected map[string]int) (*VerifyResult, error) {
	if v.method == MethodSkip {
		v.logger.Info("Verification SKIPPED (method=skip)")
		return &VerifyResult{Target: path, Method: MethodSkip, Match: true}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("verification interrupted: %w", err)
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	actual := make(map[string]int, len(fc.Features))
	for i, f := range fc.Features {
		id, ok := types.ToOrderID(f.Properties[layer.OrderIDProperty])
		if !ok {
			return nil, fmt.Errorf("%s feature %d: missing %s", path, i, layer.OrderIDProperty)
		}
		n, ok := types.ToFloat64(f.Properties[v.field])
		if !ok {
			return nil, fmt.Errorf("%s feature %d: missing or non-numeric %s", path, i, v.field)
		}
		actual[id] = int(n)
	}

	return v.finish(v.compare(path, expected, actual, len(fc.Features)))
}

// VerifyCatalog reads table.column for every expected order and checks it.
func (v *Verifier) VerifyCatalog(ctx context.Context, db *sql.DB, table, idColumn, column string, expected map[string]int) (*VerifyResult, error) {
	target := table + "." + column
	if v.method == MethodSkip {
		v.logger.Info("Verification SKIPPED (method=skip)")
		return &VerifyResult{Target: target, Method: MethodSkip, Match: true}, nil
	}
	if db == nil {
		return nil, fmt.Errorf("database is nil")
	}

	actual, err := v.readCatalog(ctx, db, table, idColumn, column, expected)
	if err != nil {
		return nil, err
	}
	return v.finish(v.compare(target, expected, actual, len(actual)))
}

// readCatalog fetches the stored counts in chunks of ids.
func (v *Verifier) readCatalog(ctx context.Context, db *sql.DB, table, idColumn, column string, expected map[string]int) (map[string]int, error) {
	entries := tally.Sorted(expected)
	actual := make(map[string]int, len(entries))

	for i := 0; i < len(entries); i += v.chunkSize {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("verification interrupted: %w", err)
		}
		chunk := entries[i:min(i+v.chunkSize, len(entries))]

		placeholders := make([]string, len(chunk))
		args := make([]interface{}, len(chunk))
		for j, e := range chunk {
			placeholders[j] = "?"
			args[j] = e.ID
		}

		query := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s IN (%s)",
			sqlutil.QuoteIdentifier(idColumn),
			sqlutil.QuoteIdentifier(column),
			sqlutil.QuoteIdentifier(table),
			sqlutil.QuoteIdentifier(idColumn),
			strings.Join(placeholders, ","),
		)

		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("query failed: %w", err)
		}
		for rows.Next() {
			var rawID, rawCount interface{}
			if err := rows.Scan(&rawID, &rawCount); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan row: %w", err)
			}
			id, ok := types.ToOrderID(rawID)
			if !ok {
				continue
			}
			n, _ := types.ToFloat64(rawCount)
			actual[id] = int(n)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("error iterating rows: %w", err)
		}
		rows.Close()
	}
	return actual, nil
}

func (v *Verifier) compare(target string, expected, actual map[string]int, actualRows int) *VerifyResult {
	result := &VerifyResult{
		Target:        target,
		Method:        v.method,
		ExpectedCount: int64(len(expected)),
		ActualCount:   int64(actualRows),
		ExpectedSum:   sum(expected),
		ActualSum:     sum(actual),
	}

	switch v.method {
	case MethodSHA256:
		result.ExpectedHash = Digest(expected)
		result.ActualHash = Digest(actual)
		result.Match = result.ExpectedCount == result.ActualCount && result.ExpectedHash == result.ActualHash
	default:
		result.Match = result.ExpectedCount == result.ActualCount && result.ExpectedSum == result.ActualSum
	}

	if !result.Match {
		switch {
		case result.ExpectedCount != result.ActualCount:
			result.ErrorMessage = fmt.Sprintf("count mismatch: expected=%d, actual=%d", result.ExpectedCount, result.ActualCount)
		case result.ExpectedSum != result.ActualSum:
			result.ErrorMessage = fmt.Sprintf("access sum mismatch: expected=%d, actual=%d", result.ExpectedSum, result.ActualSum)
		default:
			result.ErrorMessage = fmt.Sprintf("hash mismatch: expected=%s, actual=%s", result.ExpectedHash[:16], result.ActualHash[:16])
		}
	}
	return result
}

func (v *Verifier) finish(result *VerifyResult) (*VerifyResult, error) {
	if !result.Match {
		v.logger.Errorf("Verification FAILED for %q: %s", result.Target, result.ErrorMessage)
		return result, fmt.Errorf("verification mismatch in %s: %s", result.Target, result.ErrorMessage)
	}
	v.logger.Infof("Verification PASSED for %q (method=%s, %d orders, %d accesses)",
		result.Target, result.Method, result.ActualCount, result.ActualSum)
	return result, nil
}

// Digest returns the SHA256 of the table serialised as sorted id=count lines.
func Digest(counts map[string]int) string {
	hasher := sha256.New()
	for _, e := range tally.Sorted(counts) {
		fmt.Fprintf(hasher, "%s=%d\n", e.ID, e.Count)
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

func sum(counts map[string]int) int64 {
	var total int64
	for _, n := range counts {
		total += int64(n)
	}
	return total
}

// SetChunkSize sets how many ids are read per catalog query.
func (v *Verifier) SetChunkSize(size int) {
	if size > 0 {
		v.chunkSize = size
	}
}

// GetMethod returns the configured verification method.
func (v *Verifier) GetMethod() VerificationMethod {
	return v.method
}
