// Package query runs validated SQL against the sales store.
package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const DefaultMaxRows = 1000

type Result struct {
	Columns   []string
	Rows      [][]any
	Truncated bool
	Duration  time.Duration
}

// Scalar reports whether the result is exactly one row with one column.
func (r Result) Scalar() bool {
	return len(r.Rows) == 1 && len(r.Columns) == 1
}

// Records returns each row keyed by column name.
func (r Result) Records() []map[string]any {
	out := make([]map[string]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		record := make(map[string]any, len(r.Columns))
		for i, column := range r.Columns {
			if i < len(row) {
				record[column] = row[i]
			}
		}
		out = append(out, record)
	}
	return out
}

type Executor interface {
	Execute(ctx context.Context, sql string) (Result, error)
	Ping(ctx context.Context) error
}

// DatabaseError is the single error kind returned for store failures.
type DatabaseError struct {
	Err error
}

func (e *DatabaseError) Error() string {
	if e.Err == nil {
		return "database error"
	}
	return "database error: " + e.Err.Error()
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// Wrap returns err as a *DatabaseError unless it already is one.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		return err
	}
	return &DatabaseError{Err: err}
}

// ScanRows reads up to maxRows rows. Truncated is set when more rows were
// available. normalize is applied to each value after the generic conversions.
func ScanRows(rows *sql.Rows, maxRows int, normalize func(value any, dbType string) any) (Result, error) {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("query columns: %w", err)
	}
	dbTypes := make([]string, len(columns))
	if columnTypes, err := rows.ColumnTypes(); err == nil {
		for i, columnType := range columnTypes {
			dbTypes[i] = strings.ToUpper(columnType.DatabaseTypeName())
		}
	}

	result := Result{Columns: columns, Rows: make([][]any, 0)}
	for rows.Next() {
		if len(result.Rows) == maxRows {
			result.Truncated = true
			break
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, fmt.Errorf("scan row: %w", err)
		}
		for i, value := range values {
			value = NormalizeValue(value, dbTypes[i])
			if normalize != nil {
				value = normalize(value, dbTypes[i])
			}
			values[i] = value
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

// NormalizeValue converts driver values into plain Go scalars: text becomes
// string, NUMERIC/DECIMAL text becomes float64 and big integers become int64
// or float64.
func NormalizeValue(value any, dbType string) any {
	switch typed := value.(type) {
	case []byte:
		return NormalizeValue(string(typed), dbType)
	case string:
		if isDecimalType(dbType) {
			if parsed, err := strconv.ParseFloat(typed, 64); err == nil {
				return parsed
			}
		}
		return typed
	case *big.Int:
		if typed == nil {
			return nil
		}
		if typed.IsInt64() {
			return typed.Int64()
		}
		f, _ := new(big.Float).SetInt(typed).Float64()
		return f
	case int32:
		return int64(typed)
	case float32:
		return float64(typed)
	default:
		return typed
	}
}

func isDecimalType(dbType string) bool {
	return strings.HasPrefix(dbType, "NUMERIC") || strings.HasPrefix(dbType, "DECIMAL")
}

func StripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
