package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/salesbot/salesbot/internal/query"
)

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

func Open(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store dsn is required")
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping store db: %w", err)
	}

	return db, nil
}

type Options struct {
	MaxRows      int
	QueryTimeout time.Duration
}

// Executor runs queries over a pooled database/sql handle.
type Executor struct {
	db   *sql.DB
	opts Options
}

func NewExecutor(db *sql.DB, opts Options) *Executor {
	if opts.MaxRows <= 0 {
		opts.MaxRows = query.DefaultMaxRows
	}
	return &Executor{db: db, opts: opts}
}

func (e *Executor) Execute(ctx context.Context, sqlText string) (query.Result, error) {
	sqlText = query.StripTrailingSemicolons(sqlText)
	if sqlText == "" {
		return query.Result{}, query.Wrap(fmt.Errorf("sql is required"))
	}
	if e.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.QueryTimeout)
		defer cancel()
	}

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{}, query.Wrap(err)
	}
	defer func() { _ = rows.Close() }()

	result, err := query.ScanRows(rows, e.opts.MaxRows, normalizeDate)
	if err != nil {
		return query.Result{}, query.Wrap(err)
	}
	result.Duration = time.Since(start)
	return result, nil
}

func (e *Executor) Ping(ctx context.Context) error {
	var one int
	if err := e.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return query.Wrap(err)
	}
	return nil
}

func (e *Executor) Close() error {
	return e.db.Close()
}

// normalizeDate keeps DATE columns as UTC midnight so rendering does not
// shift them across time zones.
func normalizeDate(value any, dbType string) any {
	if t, ok := value.(time.Time); ok && strings.EqualFold(dbType, "DATE") {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return value
}
