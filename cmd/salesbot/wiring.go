package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/salesbot/salesbot/internal/chart"
	"github.com/salesbot/salesbot/internal/config"
	"github.com/salesbot/salesbot/internal/conversation"
	"github.com/salesbot/salesbot/internal/insight"
	"github.com/salesbot/salesbot/internal/llm"
	"github.com/salesbot/salesbot/internal/nl2sql"
	"github.com/salesbot/salesbot/internal/query"
	duckdbengine "github.com/salesbot/salesbot/internal/query/duckdb"
	"github.com/salesbot/salesbot/internal/query/postgres"
	"github.com/salesbot/salesbot/internal/relevance"
	s3store "github.com/salesbot/salesbot/internal/storage/s3"
)

type salesStore struct {
	Executor query.Executor
	io.Closer
}

// openStore connects the configured backend and pings it once. There is no
// retry: an unreachable store at startup is fatal.
func openStore(ctx context.Context, cfg config.Config) (salesStore, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		db, err := postgres.Open(ctx, postgres.DBConfig{
			DSN:             cfg.Store.DSN,
			MaxOpenConns:    cfg.Store.MaxOpenConns,
			MaxIdleConns:    cfg.Store.MaxIdleConns,
			ConnMaxIdleTime: cfg.Store.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
		})
		if err != nil {
			return salesStore{}, err
		}
		executor := postgres.NewExecutor(db, postgres.Options{
			MaxRows:      cfg.Store.MaxRows,
			QueryTimeout: cfg.Store.QueryTimeout,
		})
		return salesStore{Executor: executor, Closer: db}, nil
	case config.StoreDriverDuckDB:
		objects, err := s3store.New(ctx, cfg.ObjectStore)
		if err != nil {
			return salesStore{}, fmt.Errorf("object store: %w", err)
		}
		engine, err := duckdbengine.Open(ctx, objects, duckdbengine.Options{
			ObjectKeys:   cfg.Dataset.ObjectKeys,
			MaxRows:      cfg.Store.MaxRows,
			QueryTimeout: cfg.Store.QueryTimeout,
		})
		if err != nil {
			return salesStore{}, err
		}
		if err := engine.Ping(ctx); err != nil {
			_ = engine.Close()
			return salesStore{}, err
		}
		return salesStore{Executor: engine, Closer: engine}, nil
	default:
		return salesStore{}, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

type pipeline struct {
	Handler *conversation.Handler
	History nl2sql.History
}

func buildPipeline(cfg config.Config, executor query.Executor, logger *slog.Logger) (pipeline, error) {
	history := nl2sql.NewRingHistory(cfg.AI.HistorySize)
	deps := conversation.Deps{
		Heuristic: nl2sql.NewHeuristic(nil),
		Relevance: relevance.New(),
		Executor:  executor,
		Charts: chart.NewRenderer(chart.Config{
			BaseURL:     cfg.Chart.BaseURL,
			Width:       cfg.Chart.Width,
			Height:      cfg.Chart.Height,
			LabelBudget: cfg.Chart.LabelBudget,
		}),
		Logger: logger,
	}

	client, err := llm.New(cfg.AI)
	if err != nil {
		return pipeline{}, fmt.Errorf("llm client: %w", err)
	}
	if client != nil {
		translator, err := nl2sql.NewLLMTranslator(client, history, nl2sql.LLMConfig{
			Temperature:    cfg.AI.TranslateTemperature,
			MaxTokens:      cfg.AI.TranslateMaxTokens,
			PromptExamples: cfg.AI.PromptExamples,
		})
		if err != nil {
			return pipeline{}, fmt.Errorf("llm translator: %w", err)
		}
		deps.LLM = translator
		deps.Summarizer = insight.NewSummarizer(client, insight.Config{
			Temperature: cfg.AI.SummaryTemperature,
			MaxTokens:   cfg.AI.SummaryMaxTokens,
		}, logger)
		logger.Info("llm translation enabled", slog.String("provider", client.Provider()), slog.String("model", client.Model()))
	} else {
		logger.Info("no llm configured; using heuristic translation only")
	}

	handler, err := conversation.New(deps, conversation.Flags{
		RelevanceFilter: cfg.Pipeline.RelevanceFilter,
		Charts:          cfg.Pipeline.Charts,
		Summaries:       cfg.Pipeline.Summaries && client != nil,
		ChartRows:       cfg.Pipeline.ChartRows,
	})
	if err != nil {
		return pipeline{}, err
	}
	return pipeline{Handler: handler, History: history}, nil
}
