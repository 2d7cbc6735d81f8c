// Package duckdb serves sales_data from parquet snapshots held in object
// storage, using an embedded DuckDB database.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	goduckdb "github.com/marcboeker/go-duckdb/v2"

	"github.com/salesbot/salesbot/internal/query"
	"github.com/salesbot/salesbot/internal/schema"
	"github.com/salesbot/salesbot/internal/storage"
)

type Options struct {
	ObjectKeys   []string
	MaxRows      int
	QueryTimeout time.Duration
}

// Engine downloads the configured snapshot objects once, exposes them as the
// sales_data view and answers queries from memory.
type Engine struct {
	store storage.ObjectStore
	opts  Options

	mu      sync.RWMutex
	db      *sql.DB
	workDir string
	loaded  []storage.ObjectInfo
}

func Open(ctx context.Context, store storage.ObjectStore, opts Options) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if len(opts.ObjectKeys) == 0 {
		return nil, fmt.Errorf("at least one snapshot object key is required")
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = query.DefaultMaxRows
	}
	e := &Engine{store: store, opts: opts}
	if err := e.Reload(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Reload fetches the snapshot objects again and swaps in a fresh database.
func (e *Engine) Reload(ctx context.Context) error {
	workDir, err := os.MkdirTemp("", "salesbot-snapshot-")
	if err != nil {
		return fmt.Errorf("create snapshot temp dir: %w", err)
	}

	db, loaded, err := e.materialize(ctx, workDir)
	if err != nil {
		_ = os.RemoveAll(workDir)
		return err
	}

	e.mu.Lock()
	oldDB, oldDir := e.db, e.workDir
	e.db, e.workDir, e.loaded = db, workDir, loaded
	e.mu.Unlock()

	if oldDB != nil {
		_ = oldDB.Close()
	}
	if oldDir != "" {
		_ = os.RemoveAll(oldDir)
	}
	return nil
}

func (e *Engine) materialize(ctx context.Context, workDir string) (*sql.DB, []storage.ObjectInfo, error) {
	localPaths := make([]string, 0, len(e.opts.ObjectKeys))
	loaded := make([]storage.ObjectInfo, 0, len(e.opts.ObjectKeys))
	for index, key := range e.opts.ObjectKeys {
		localPath := filepath.Join(workDir, fmt.Sprintf("%s_%d.parquet", schema.Table, index))
		info, err := e.download(ctx, key, localPath)
		if err != nil {
			return nil, nil, err
		}
		localPaths = append(localPaths, localPath)
		loaded = append(loaded, info)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, nil, fmt.Errorf("open duckdb: %w", err)
	}
	if _, err := db.ExecContext(ctx, viewSQL(localPaths)); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("create %s view: %w", schema.Table, err)
	}
	return db, loaded, nil
}

// download copies one snapshot object to localPath.
func (e *Engine) download(ctx context.Context, key, localPath string) (storage.ObjectInfo, error) {
	body, info, err := e.store.Open(ctx, key)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("open snapshot %q: %w", key, err)
	}
	defer func() { _ = body.Close() }()

	file, err := os.Create(localPath)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("create local parquet file: %w", err)
	}
	written, err := io.Copy(file, body)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("download snapshot %q: %w", key, err)
	}
	if info.Size > 0 && written != info.Size {
		return storage.ObjectInfo{}, fmt.Errorf("download snapshot %q: got %d of %d bytes", key, written, info.Size)
	}
	return info, nil
}

// Snapshots reports the objects currently loaded.
func (e *Engine) Snapshots() []storage.ObjectInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]storage.ObjectInfo, len(e.loaded))
	copy(out, e.loaded)
	return out
}

func (e *Engine) Execute(ctx context.Context, sqlText string) (query.Result, error) {
	sqlText = query.StripTrailingSemicolons(sqlText)
	if sqlText == "" {
		return query.Result{}, query.Wrap(fmt.Errorf("sql is required"))
	}
	if e.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.QueryTimeout)
		defer cancel()
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.db == nil {
		return query.Result{}, query.Wrap(fmt.Errorf("engine is closed"))
	}

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{}, query.Wrap(fmt.Errorf("execute query: %w", err))
	}
	defer func() { _ = rows.Close() }()

	result, err := query.ScanRows(rows, e.opts.MaxRows, normalizeValue)
	if err != nil {
		return query.Result{}, query.Wrap(err)
	}
	result.Duration = time.Since(start)
	return result, nil
}

func (e *Engine) Ping(ctx context.Context) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.db == nil {
		return query.Wrap(fmt.Errorf("engine is closed"))
	}
	var one int
	if err := e.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return query.Wrap(err)
	}
	return nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var err error
	if e.db != nil {
		err = e.db.Close()
		e.db = nil
	}
	if e.workDir != "" {
		_ = os.RemoveAll(e.workDir)
		e.workDir = ""
	}
	return err
}

// viewSQL casts the snapshot columns to the declared sales_data types. Dates
// are stored as ISO strings in the snapshot.
func viewSQL(localPaths []string) string {
	return fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT
	CAST(id AS BIGINT) AS id,
	CAST(sale_date AS DATE) AS sale_date,
	product_name,
	category,
	country,
	CAST(revenue AS DECIMAL(10,2)) AS revenue,
	CAST(rating AS DECIMAL(3,2)) AS rating,
	CAST(quantity_sold AS INTEGER) AS quantity_sold
FROM read_parquet(%s)`, quoteIdent(schema.Table), quoteStringArray(localPaths))
}

func normalizeValue(value any, _ string) any {
	switch typed := value.(type) {
	case goduckdb.Decimal:
		return typed.Float64()
	case *goduckdb.Decimal:
		if typed == nil {
			return nil
		}
		return typed.Float64()
	default:
		return value
	}
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, `'`+strings.ReplaceAll(value, `'`, `''`)+`'`)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}
