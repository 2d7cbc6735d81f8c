package nl2sql

import (
	"context"
	"errors"

	"github.com/salesbot/salesbot/internal/chart"
)

const (
	SourceLLM       = "llm"
	SourceHeuristic = "heuristic"
)

var (
	// ErrNoMatch means the translator has nothing for the question. Callers
	// fall back to the next translator or to canned guidance.
	ErrNoMatch = errors.New("no translation for question")
	// ErrModelUnavailable wraps transport and API failures of the language model.
	ErrModelUnavailable = errors.New("language model unavailable")
	// ErrMalformedOutput means the model answered with something that is not a
	// valid translation object.
	ErrMalformedOutput = errors.New("malformed model output")
	// ErrUnsafeSQL means the model produced a statement the guard rejected.
	ErrUnsafeSQL = errors.New("model produced disallowed sql")
)

type Result struct {
	SQL         string     `json:"sql"`
	ChartKind   chart.Kind `json:"chart_kind,omitempty"`
	Explanation string     `json:"explanation,omitempty"`
	Source      string     `json:"source"`
	Rule        string     `json:"rule,omitempty"`
	Provider    string     `json:"provider,omitempty"`
	Model       string     `json:"model,omitempty"`
}

type Translator interface {
	Translate(ctx context.Context, question string) (Result, error)
}
