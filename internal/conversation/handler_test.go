package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/salesbot/salesbot/internal/chart"
	"github.com/salesbot/salesbot/internal/nl2sql"
	"github.com/salesbot/salesbot/internal/query"
	"github.com/salesbot/salesbot/internal/render"
)

type fakeExecutor struct {
	mu      sync.Mutex
	results []query.Result
	errs    []error
	queries []string
	pingErr error
}

func (f *fakeExecutor) Execute(_ context.Context, sqlText string) (query.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := len(f.queries)
	f.queries = append(f.queries, sqlText)
	var err error
	if idx < len(f.errs) {
		err = f.errs[idx]
	}
	if err != nil {
		return query.Result{}, err
	}
	if idx < len(f.results) {
		return f.results[idx], nil
	}
	return f.results[len(f.results)-1], nil
}

func (f *fakeExecutor) Ping(context.Context) error { return f.pingErr }

type fakeTranslator struct {
	result nl2sql.Result
	err    error
	calls  int
}

func (f *fakeTranslator) Translate(context.Context, string) (nl2sql.Result, error) {
	f.calls++
	return f.result, f.err
}

type fakeSummarizer struct {
	text  string
	calls int
}

func (f *fakeSummarizer) Summarize(context.Context, string, []string, [][]any) string {
	f.calls++
	return f.text
}

var allFlags = Flags{RelevanceFilter: true, Charts: true, Summaries: true}

func newTestHandler(t *testing.T, deps Deps, flags Flags) *Handler {
	t.Helper()
	handler, err := New(deps, flags)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return handler
}

func TestNewRequiresExecutor(t *testing.T) {
	if _, err := New(Deps{}, Flags{}); err == nil {
		t.Fatalf("expected missing executor error")
	}
}

func TestHandleGreeting(t *testing.T) {
	llm := &fakeTranslator{}
	exec := &fakeExecutor{}
	handler := newTestHandler(t, Deps{LLM: llm, Executor: exec}, allFlags)

	for _, msg := range []string{"hi", "Hello there!", "good morning", "hey salesbot"} {
		reply := handler.Handle(context.Background(), msg)
		if reply.Kind != ReplyGreeting || reply.Text != WelcomeText {
			t.Fatalf("Handle(%q) = %+v", msg, reply)
		}
	}
	if llm.calls != 0 || len(exec.queries) != 0 {
		t.Fatalf("greeting reached translator/store: %d/%d", llm.calls, len(exec.queries))
	}
}

func TestHandleOffTopicNeverTranslates(t *testing.T) {
	llm := &fakeTranslator{result: nl2sql.Result{SQL: "SELECT 1", Source: nl2sql.SourceLLM}}
	heuristic := &fakeTranslator{err: nl2sql.ErrNoMatch}
	exec := &fakeExecutor{}
	handler := newTestHandler(t, Deps{LLM: llm, Heuristic: heuristic, Executor: exec}, allFlags)

	reply := handler.Handle(context.Background(), "tell me a joke")
	if reply.Kind != ReplyIrrelevant || reply.Text != RedirectText {
		t.Fatalf("reply = %+v", reply)
	}
	if llm.calls != 0 || heuristic.calls != 0 || len(exec.queries) != 0 {
		t.Fatalf("off-topic question reached pipeline: llm=%d heuristic=%d queries=%d", llm.calls, heuristic.calls, len(exec.queries))
	}
}

func TestHandleRelevanceFilterDisabled(t *testing.T) {
	heuristic := &fakeTranslator{err: nl2sql.ErrNoMatch}
	handler := newTestHandler(t, Deps{Heuristic: heuristic, Executor: &fakeExecutor{}}, Flags{})

	reply := handler.Handle(context.Background(), "tell me a joke")
	if reply.Kind != ReplyNoTranslation || reply.Text != CannotHelpText {
		t.Fatalf("reply = %+v", reply)
	}
	if heuristic.calls != 1 {
		t.Fatalf("heuristic calls = %d", heuristic.calls)
	}
}

func TestHandleTotalSalesWithHeuristicsOnly(t *testing.T) {
	exec := &fakeExecutor{results: []query.Result{{
		Columns: []string{"total_revenue", "total_sales"},
		Rows:    [][]any{{98765.4, int64(1200)}},
	}}}
	summarizer := &fakeSummarizer{text: "unused"}
	handler := newTestHandler(t, Deps{Executor: exec, Summarizer: summarizer}, allFlags)

	reply := handler.Handle(context.Background(), "What are the total sales?")
	if reply.Kind != ReplyAnswer {
		t.Fatalf("reply = %+v", reply)
	}
	want := "SELECT ROUND(SUM(revenue), 2) as total_revenue, COUNT(*) as total_sales FROM sales_data"
	if len(exec.queries) != 1 || exec.queries[0] != want {
		t.Fatalf("queries = %q", exec.queries)
	}
	if reply.Translation.Source != nl2sql.SourceHeuristic {
		t.Fatalf("source = %q", reply.Translation.Source)
	}
	if reply.Payload.Kind != render.KindScalar || reply.Payload.Value != "$98,765.40" {
		t.Fatalf("payload = %+v", reply.Payload)
	}
	if reply.ChartURL != "" || reply.Summary != "" || summarizer.calls != 0 {
		t.Fatalf("scalar answer should carry no chart or summary: %+v", reply)
	}
}

func TestHandleFallsBackWhenLLMFails(t *testing.T) {
	for _, llmErr := range []error{nl2sql.ErrModelUnavailable, nl2sql.ErrMalformedOutput, nl2sql.ErrUnsafeSQL} {
		llm := &fakeTranslator{err: llmErr}
		exec := &fakeExecutor{results: []query.Result{{
			Columns: []string{"category", "total_revenue", "total_quantity"},
			Rows:    [][]any{{"Electronics", 500.0, int64(5)}, {"Books", 100.0, int64(9)}},
		}}}
		handler := newTestHandler(t, Deps{LLM: llm, Executor: exec}, allFlags)

		reply := handler.Handle(context.Background(), "sales by category as a pie chart")
		if reply.Kind != ReplyAnswer {
			t.Fatalf("%v: reply = %+v", llmErr, reply)
		}
		if llm.calls != 1 || reply.Translation.Source != nl2sql.SourceHeuristic {
			t.Fatalf("%v: llm calls=%d source=%q", llmErr, llm.calls, reply.Translation.Source)
		}
		if !strings.HasPrefix(reply.ChartURL, chart.DefaultBaseURL+"/chart?c=") {
			t.Fatalf("%v: ChartURL = %q", llmErr, reply.ChartURL)
		}
	}
}

func TestHandleUsesLLMTranslation(t *testing.T) {
	llm := &fakeTranslator{result: nl2sql.Result{
		SQL:       "SELECT country, SUM(revenue) AS revenue FROM sales_data GROUP BY country;",
		ChartKind: chart.KindBar,
		Source:    nl2sql.SourceLLM,
	}}
	heuristic := &fakeTranslator{err: nl2sql.ErrNoMatch}
	exec := &fakeExecutor{results: []query.Result{{
		Columns: []string{"country", "revenue"},
		Rows:    [][]any{{"USA", 10.0}, {"UK", 5.0}},
	}}}
	summarizer := &fakeSummarizer{text: "USA leads."}
	handler := newTestHandler(t, Deps{LLM: llm, Heuristic: heuristic, Executor: exec, Summarizer: summarizer}, allFlags)

	reply := handler.Handle(context.Background(), "revenue by country")
	if reply.Kind != ReplyAnswer || heuristic.calls != 0 {
		t.Fatalf("reply = %+v heuristic calls = %d", reply, heuristic.calls)
	}
	if exec.queries[0] != "SELECT country, SUM(revenue) AS revenue FROM sales_data GROUP BY country" {
		t.Fatalf("executed %q", exec.queries[0])
	}
	if reply.Summary != "USA leads." || !strings.HasSuffix(reply.Text, "💡 USA leads.") {
		t.Fatalf("summary = %q text = %q", reply.Summary, reply.Text)
	}
	if reply.ChartURL == "" {
		t.Fatalf("expected chart url")
	}
}

func TestHandleFeatureFlagsOff(t *testing.T) {
	llm := &fakeTranslator{result: nl2sql.Result{
		SQL:       "SELECT country, SUM(revenue) AS revenue FROM sales_data GROUP BY country",
		ChartKind: chart.KindPie,
		Source:    nl2sql.SourceLLM,
	}}
	exec := &fakeExecutor{results: []query.Result{{
		Columns: []string{"country", "revenue"},
		Rows:    [][]any{{"USA", 10.0}, {"UK", 5.0}},
	}}}
	summarizer := &fakeSummarizer{text: "USA leads."}
	handler := newTestHandler(t, Deps{LLM: llm, Executor: exec, Summarizer: summarizer}, Flags{})

	reply := handler.Handle(context.Background(), "revenue by country")
	if reply.ChartURL != "" || reply.Summary != "" || summarizer.calls != 0 {
		t.Fatalf("reply = %+v", reply)
	}
}

func TestHandleRejectsUnsafeHeuristicSQL(t *testing.T) {
	heuristic := &fakeTranslator{result: nl2sql.Result{SQL: "DELETE FROM sales_data", Source: nl2sql.SourceHeuristic}}
	exec := &fakeExecutor{}
	handler := newTestHandler(t, Deps{Heuristic: heuristic, Executor: exec}, allFlags)

	reply := handler.Handle(context.Background(), "total sales")
	if reply.Kind != ReplyError || !strings.HasPrefix(reply.Text, ErrorPrefix) {
		t.Fatalf("reply = %+v", reply)
	}
	if len(exec.queries) != 0 {
		t.Fatalf("unsafe sql executed: %q", exec.queries)
	}
}

func TestHandleStoreErrorThenRecovers(t *testing.T) {
	exec := &fakeExecutor{
		errs: []error{errors.New("connection refused"), nil},
		results: []query.Result{{
			Columns: []string{"total_revenue", "total_sales"},
			Rows:    [][]any{{10.0, int64(1)}},
		}},
	}
	handler := newTestHandler(t, Deps{Executor: exec}, allFlags)

	first := handler.Handle(context.Background(), "total sales")
	if first.Kind != ReplyError {
		t.Fatalf("first reply = %+v", first)
	}
	if first.Text != ErrorPrefix+"database error: connection refused" {
		t.Fatalf("first text = %q", first.Text)
	}

	second := handler.Handle(context.Background(), "total sales")
	if second.Kind != ReplyAnswer {
		t.Fatalf("second reply = %+v", second)
	}
}

func TestHandleRecoversFromPanics(t *testing.T) {
	exec := &fakeExecutor{}
	handler := newTestHandler(t, Deps{Executor: exec, Heuristic: panicTranslator{}}, allFlags)

	reply := handler.Handle(context.Background(), "total sales")
	if reply.Kind != ReplyError || !strings.Contains(reply.Text, "internal error: boom") {
		t.Fatalf("reply = %+v", reply)
	}
}

type panicTranslator struct{}

func (panicTranslator) Translate(context.Context, string) (nl2sql.Result, error) {
	panic("boom")
}

func TestHealth(t *testing.T) {
	exec := &fakeExecutor{}
	handler := newTestHandler(t, Deps{Executor: exec}, allFlags)
	if got := handler.Health(context.Background()); got != HealthyText {
		t.Fatalf("Health() = %q", got)
	}

	exec.pingErr = errors.New("database error: timeout")
	got := handler.Health(context.Background())
	if !strings.HasPrefix(got, "❌") || !strings.Contains(got, "timeout") {
		t.Fatalf("Health() = %q", got)
	}
}
