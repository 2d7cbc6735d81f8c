// Package seed fills the sales dataset with synthetic records, either into
// the Postgres table or as a parquet snapshot in object storage.
package seed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/salesbot/salesbot/internal/schema"
)

type Sink interface {
	Write(ctx context.Context, records []schema.SalesRecord) error
}

type Summary struct {
	Records  int
	Batches  int
	Duration time.Duration
}

type Service struct {
	cfg       Config
	log       *slog.Logger
	sink      Sink
	generator *Generator
}

func NewService(cfg Config, sink Sink, logger *slog.Logger) (*Service, error) {
	if sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if cfg.Count <= 0 || cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("count and batch size must be > 0")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		cfg:       cfg,
		log:       logger,
		sink:      sink,
		generator: NewGenerator(cfg.Seed, cfg.StartDate, cfg.Days),
	}, nil
}

// Run writes cfg.Count records in batches of cfg.BatchSize. It stops at the
// first failed batch.
func (s *Service) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	summary := Summary{}
	for summary.Records < s.cfg.Count {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		size := min(s.cfg.BatchSize, s.cfg.Count-summary.Records)
		if err := s.sink.Write(ctx, s.generator.Batch(size)); err != nil {
			return summary, fmt.Errorf("write batch %d: %w", summary.Batches+1, err)
		}
		summary.Records += size
		summary.Batches++
		s.log.Debug("wrote seed batch", slog.Int("batch", summary.Batches), slog.Int("size", size))
	}
	summary.Duration = time.Since(start)
	s.log.Info(
		"seeded sales data",
		slog.String("sink", s.cfg.Sink),
		slog.Int("records", summary.Records),
		slog.Int("batches", summary.Batches),
		slog.Duration("duration", summary.Duration),
	)
	return summary, nil
}
