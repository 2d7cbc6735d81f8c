// Package insight asks the model for a short narrative about a result set.
package insight

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/salesbot/salesbot/internal/llm"
	"github.com/salesbot/salesbot/internal/observability"
	"github.com/salesbot/salesbot/internal/render"
)

const (
	PreviewRows = 5

	DefaultTemperature = 0.7
	DefaultMaxTokens   = 250
)

const systemPrompt = `You are a retail sales analyst. Summarize query results for a business audience in 2-3 sentences.
Lead with the key finding, include one comparison between rows, and add a short recommendation only if the data supports it.
Do not invent numbers that are not in the data. Plain text only.`

type Config struct {
	Temperature float64
	MaxTokens   int
}

type Summarizer struct {
	client llm.Client
	cfg    Config
	logger *slog.Logger
}

func NewSummarizer(client llm.Client, cfg Config, logger *slog.Logger) *Summarizer {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{client: client, cfg: cfg, logger: logger}
}

// Summarize returns "" when there is nothing worth narrating or the model
// call fails. Failures are logged and counted, never returned.
func (s *Summarizer) Summarize(ctx context.Context, question string, columns []string, rows [][]any) string {
	if s == nil || s.client == nil || len(rows) == 0 || len(columns) == 0 {
		return ""
	}
	if len(rows) == 1 && len(columns) == 1 {
		return ""
	}

	text, err := s.client.Complete(ctx, llm.Request{
		System:      systemPrompt,
		User:        BuildPrompt(question, columns, rows),
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	})
	if err != nil {
		observability.IncrementLLMError("summary")
		s.logger.WarnContext(ctx, "insight summary failed", slog.Any("error", err))
		return ""
	}
	return strings.TrimSpace(text)
}

func BuildPrompt(question string, columns []string, rows [][]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", strings.TrimSpace(question))
	fmt.Fprintf(&b, "Total rows: %d\n", len(rows))
	b.WriteString("Preview:\n")
	for i, row := range rows {
		if i == PreviewRows {
			break
		}
		fmt.Fprintf(&b, "Row %d:\n", i+1)
		for j, column := range columns {
			var value any
			if j < len(row) {
				value = row[j]
			}
			fmt.Fprintf(&b, "  %s: %s\n", column, render.FormatValue(column, value))
		}
	}
	return b.String()
}
