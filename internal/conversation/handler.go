// Package conversation runs one question through the full pipeline:
// greeting check, relevance filter, translation with fallback, SQL guard,
// execution, chart, rendering and summary.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/salesbot/salesbot/internal/chart"
	"github.com/salesbot/salesbot/internal/nl2sql"
	"github.com/salesbot/salesbot/internal/observability"
	"github.com/salesbot/salesbot/internal/query"
	"github.com/salesbot/salesbot/internal/relevance"
	"github.com/salesbot/salesbot/internal/render"
	"github.com/salesbot/salesbot/internal/sqlguard"
)

type ReplyKind string

const (
	ReplyGreeting      ReplyKind = "greeting"
	ReplyIrrelevant    ReplyKind = "irrelevant"
	ReplyNoTranslation ReplyKind = "no_translation"
	ReplyAnswer        ReplyKind = "answer"
	ReplyError         ReplyKind = "error"
)

const (
	WelcomeText = "👋 Hi! I answer questions about our sales data. Try asking:\n" +
		"• What are the total sales?\n" +
		"• Top 5 best-selling products in Electronics\n" +
		"• Sales by country as a pie chart\n" +
		"• Monthly revenue trend line graph"
	RedirectText = "🤔 I can only help with questions about our sales data: revenue, products, " +
		"categories, countries and ratings. Try something like \"sales by category\"."
	CannotHelpText = "😕 I couldn't turn that into a query. Try rephrasing with terms like " +
		"\"total sales\", \"top products\", \"sales by category\" or \"sales by country\"."
	ErrorPrefix = "❌ Sorry, something went wrong while answering that: "

	HealthyText       = "✅ Sales bot is healthy. Database connection OK."
	UnhealthyTextFmt  = "❌ Sales bot health check failed: %s"
	defaultChartRows  = 50
	defaultHealthWait = 5 * time.Second
)

var greetingPattern = regexp.MustCompile(`^(?:hi|hello|hey|hiya|howdy|greetings|yo|help|good\s+(?:morning|afternoon|evening))(?:\s+(?:there|team|all|everyone|bot|salesbot))?[\s!.,?]*$`)

// Summarizer produces an optional narrative for a result set.
type Summarizer interface {
	Summarize(ctx context.Context, question string, columns []string, rows [][]any) string
}

type Flags struct {
	RelevanceFilter bool
	Charts          bool
	Summaries       bool
	// ChartRows caps the rows handed to the chart renderer.
	ChartRows int
}

type Deps struct {
	// LLM is optional. Without it the handler is heuristic-only.
	LLM        nl2sql.Translator
	Heuristic  nl2sql.Translator
	Relevance  *relevance.Classifier
	Executor   query.Executor
	Charts     *chart.Renderer
	Summarizer Summarizer
	Logger     *slog.Logger
}

type Reply struct {
	Kind        ReplyKind       `json:"kind"`
	Text        string          `json:"text"`
	Payload     *render.Payload `json:"payload,omitempty"`
	ChartURL    string          `json:"chart_url,omitempty"`
	Summary     string          `json:"summary,omitempty"`
	Translation *nl2sql.Result  `json:"translation,omitempty"`
	Truncated   bool            `json:"truncated,omitempty"`
	Duration    time.Duration   `json:"duration_ns"`
}

type Handler struct {
	llm        nl2sql.Translator
	heuristic  nl2sql.Translator
	relevance  *relevance.Classifier
	executor   query.Executor
	charts     *chart.Renderer
	summarizer Summarizer
	flags      Flags
	logger     *slog.Logger
}

func New(deps Deps, flags Flags) (*Handler, error) {
	if deps.Executor == nil {
		return nil, fmt.Errorf("query executor is required")
	}
	if deps.Heuristic == nil {
		deps.Heuristic = nl2sql.NewHeuristic(nil)
	}
	if deps.Relevance == nil {
		deps.Relevance = relevance.New()
	}
	if deps.Charts == nil {
		deps.Charts = chart.NewRenderer(chart.Config{})
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if flags.ChartRows <= 0 {
		flags.ChartRows = defaultChartRows
	}
	return &Handler{
		llm:        deps.LLM,
		heuristic:  deps.Heuristic,
		relevance:  deps.Relevance,
		executor:   deps.Executor,
		charts:     deps.Charts,
		summarizer: deps.Summarizer,
		flags:      flags,
		logger:     deps.Logger,
	}, nil
}

// Handle always returns a reply. Failures become an error reply and panics
// are recovered.
func (h *Handler) Handle(ctx context.Context, question string) (reply Reply) {
	start := time.Now()
	logger := h.logger.With(slog.String("trace_id", observability.TraceIDFromContext(ctx)))
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.ErrorContext(ctx, "conversation panicked", slog.Any("panic", recovered))
			reply = errorReply(fmt.Errorf("internal error: %v", recovered))
		}
		reply.Duration = time.Since(start)
		observability.IncrementQuestion(string(reply.Kind))
	}()

	question = strings.TrimSpace(question)
	if isGreeting(question) {
		return Reply{Kind: ReplyGreeting, Text: WelcomeText}
	}

	if h.flags.RelevanceFilter {
		decision := h.relevance.Classify(question)
		if !decision.Relevant {
			logger.InfoContext(ctx, "question rejected as off topic", slog.String("match", decision.Match))
			return Reply{Kind: ReplyIrrelevant, Text: RedirectText}
		}
	}

	translation, err := h.translate(ctx, logger, question)
	if err != nil {
		logger.InfoContext(ctx, "no translation for question", slog.String("question", question))
		return Reply{Kind: ReplyNoTranslation, Text: CannotHelpText}
	}

	sqlText, err := sqlguard.Validate(translation.SQL)
	if err != nil {
		observability.IncrementGuardRejection(translation.Source)
		logger.WarnContext(ctx, "translated sql rejected", slog.String("source", translation.Source), slog.Any("error", err))
		return errorReply(err)
	}
	translation.SQL = sqlText

	result, err := h.executor.Execute(ctx, sqlText)
	observability.ObserveQuery(result.Duration, err)
	if err != nil {
		logger.ErrorContext(ctx, "query failed", slog.String("sql", sqlText), slog.Any("error", err))
		return errorReply(query.Wrap(err))
	}
	logger.DebugContext(ctx, "query executed",
		slog.String("source", translation.Source),
		slog.Int("rows", len(result.Rows)),
		slog.Duration("elapsed", result.Duration),
	)

	reply = Reply{Kind: ReplyAnswer, Translation: &translation, Truncated: result.Truncated}

	if h.flags.Charts && translation.ChartKind != chart.KindNone && !result.Scalar() {
		rows := result.Rows
		if len(rows) > h.flags.ChartRows {
			rows = rows[:h.flags.ChartRows]
		}
		chartURL, err := h.charts.URL(translation.ChartKind, result.Columns, rows, question)
		switch {
		case err == nil:
			reply.ChartURL = chartURL
		case errors.Is(err, chart.ErrNotChartable):
			logger.DebugContext(ctx, "result not chartable", slog.Any("error", err))
		default:
			return errorReply(err)
		}
	}

	payload := render.Render(result.Columns, result.Rows, question)
	reply.Payload = &payload
	reply.Text = payload.Text()

	if h.flags.Summaries && h.summarizer != nil && payload.Kind != render.KindScalar {
		reply.Summary = h.summarizer.Summarize(ctx, question, result.Columns, result.Rows)
		if reply.Summary != "" {
			reply.Text += "\n\n💡 " + reply.Summary
		}
	}
	return reply
}

func (h *Handler) translate(ctx context.Context, logger *slog.Logger, question string) (nl2sql.Result, error) {
	if h.llm != nil {
		result, err := h.llm.Translate(ctx, question)
		if err == nil {
			observability.ObserveTranslation(nl2sql.SourceLLM, "ok")
			return result, nil
		}
		kind := llmFailureKind(err)
		observability.ObserveTranslation(nl2sql.SourceLLM, kind)
		if errors.Is(err, nl2sql.ErrUnsafeSQL) {
			observability.IncrementGuardRejection(nl2sql.SourceLLM)
		} else {
			observability.IncrementLLMError(kind)
		}
		logger.WarnContext(ctx, "llm translation failed, falling back to heuristics",
			slog.String("kind", kind),
			slog.Any("error", err),
		)
	}

	result, err := h.heuristic.Translate(ctx, question)
	if err != nil {
		observability.ObserveTranslation(nl2sql.SourceHeuristic, "no_match")
		return nl2sql.Result{}, err
	}
	observability.ObserveTranslation(nl2sql.SourceHeuristic, "ok")
	return result, nil
}

func llmFailureKind(err error) string {
	switch {
	case errors.Is(err, nl2sql.ErrModelUnavailable):
		return "unavailable"
	case errors.Is(err, nl2sql.ErrMalformedOutput):
		return "malformed"
	case errors.Is(err, nl2sql.ErrUnsafeSQL):
		return "unsafe"
	case errors.Is(err, nl2sql.ErrNoMatch):
		return "no_match"
	default:
		return "unknown"
	}
}

// Health runs a trivial store query and returns the admin health string.
func (h *Handler) Health(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, defaultHealthWait)
	defer cancel()
	if err := h.executor.Ping(ctx); err != nil {
		h.logger.WarnContext(ctx, "health check failed", slog.Any("error", err))
		return fmt.Sprintf(UnhealthyTextFmt, err.Error())
	}
	return HealthyText
}

func errorReply(err error) Reply {
	return Reply{Kind: ReplyError, Text: ErrorPrefix + err.Error()}
}

func isGreeting(question string) bool {
	return greetingPattern.MatchString(strings.ToLower(question))
}
