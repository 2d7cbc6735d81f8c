package nl2sql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/salesbot/salesbot/internal/llm"
	"github.com/salesbot/salesbot/internal/sqlguard"
)

type LLMConfig struct {
	Temperature    float64
	MaxTokens      int
	PromptExamples int
}

// LLMTranslator asks a language model for a translation. Successful
// translations are recorded in history and replayed as few-shot examples.
type LLMTranslator struct {
	client  llm.Client
	history History
	cfg     LLMConfig
	now     func() time.Time
}

func NewLLMTranslator(client llm.Client, history History, cfg LLMConfig) (*LLMTranslator, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if history == nil {
		history = NewRingHistory(DefaultHistorySize)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.PromptExamples < 0 {
		cfg.PromptExamples = 0
	}
	return &LLMTranslator{
		client:  client,
		history: history,
		cfg:     cfg,
		now:     time.Now,
	}, nil
}

func (t *LLMTranslator) History() History {
	return t.history
}

func (t *LLMTranslator) Translate(ctx context.Context, question string) (Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Result{}, ErrNoMatch
	}

	system, user := buildPrompt(question, t.history.Recent(t.cfg.PromptExamples))
	raw, err := t.client.Complete(ctx, llm.Request{
		System:      system,
		User:        user,
		Temperature: t.cfg.Temperature,
		MaxTokens:   t.cfg.MaxTokens,
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	out, err := parseModelOutput(raw)
	if err != nil {
		return Result{}, err
	}
	sql, err := sqlguard.Validate(out.SQL)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrUnsafeSQL, err)
	}

	t.history.Add(HistoryEntry{Question: question, SQL: sql, CreatedAt: t.now().UTC()})
	return Result{
		SQL:         sql,
		ChartKind:   out.ChartKind,
		Explanation: out.Explanation,
		Source:      SourceLLM,
		Provider:    t.client.Provider(),
		Model:       t.client.Model(),
	}, nil
}
