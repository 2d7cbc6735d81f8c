package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/salesbot/salesbot/internal/config"
	"github.com/salesbot/salesbot/internal/conversation"
	"github.com/salesbot/salesbot/internal/nl2sql"
)

type stubAnswerer struct {
	questions []string
	reply     conversation.Reply
	health    string
}

func (s *stubAnswerer) Handle(_ context.Context, question string) conversation.Reply {
	s.questions = append(s.questions, question)
	return s.reply
}

func (s *stubAnswerer) Health(context.Context) string { return s.health }

func loadTestConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("salesbot", mapLookup(map[string]string{"SALESBOT_PROFILE": "test"}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	return cfg
}

func TestHealthEndpoint(t *testing.T) {
	h := NewHandler(loadTestConfig(t), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Header().Get("X-Trace-Id") == "" {
		t.Fatalf("missing trace header")
	}
}

func TestReadyEndpointReturns503WhenDependencyFails(t *testing.T) {
	h := NewHandler(loadTestConfig(t), Dependencies{
		Readiness: func(context.Context) error {
			return errors.New("database error: connection refused")
		},
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if body["error_code"] != "NOT_READY" || body["retryable"] != true {
		t.Fatalf("body = %#v", body)
	}
}

func TestStatusEndpointReturnsHealthString(t *testing.T) {
	h := NewHandler(loadTestConfig(t), Dependencies{Answerer: &stubAnswerer{health: conversation.HealthyText}})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/status", nil))

	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Database connection OK") {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
}

func TestAskEndpoint(t *testing.T) {
	answerer := &stubAnswerer{reply: conversation.Reply{
		Kind:     conversation.ReplyNoTranslation,
		Text:     conversation.CannotHelpText,
		Duration: 15 * time.Millisecond,
	}}
	h := NewHandler(loadTestConfig(t), Dependencies{Answerer: answerer})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"  what is blorp?  "}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	if len(answerer.questions) != 1 || answerer.questions[0] != "what is blorp?" {
		t.Fatalf("questions = %q", answerer.questions)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if body["kind"] != "no_translation" || body["duration_ms"] != float64(15) {
		t.Fatalf("body = %#v", body)
	}
}

func TestAskEndpointValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		deps Dependencies
		code int
		want string
	}{
		{"not configured", `{"question":"q"}`, Dependencies{}, http.StatusNotImplemented, "ASK_NOT_CONFIGURED"},
		{"invalid json", `{`, Dependencies{Answerer: &stubAnswerer{}}, http.StatusBadRequest, "INVALID_JSON"},
		{"unknown field", `{"question":"q","sql":"DROP"}`, Dependencies{Answerer: &stubAnswerer{}}, http.StatusBadRequest, "INVALID_JSON"},
		{"empty question", `{"question":"   "}`, Dependencies{Answerer: &stubAnswerer{}}, http.StatusBadRequest, "QUESTION_REQUIRED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(loadTestConfig(t), tt.deps)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(tt.body)))
			if rr.Code != tt.code || !strings.Contains(rr.Body.String(), tt.want) {
				t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestHistoryEndpoint(t *testing.T) {
	history := nl2sql.NewRingHistory(2)
	history.Add(nl2sql.HistoryEntry{Question: "q1", SQL: "SELECT 1"})
	history.Add(nl2sql.HistoryEntry{Question: "q2", SQL: "SELECT 2"})
	history.Add(nl2sql.HistoryEntry{Question: "q3", SQL: "SELECT 3"})

	h := NewHandler(loadTestConfig(t), Dependencies{History: history})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/history", nil))

	var body struct {
		Entries []nl2sql.HistoryEntry `json:"entries"`
		Count   int                   `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if body.Count != 2 || body.Entries[0].Question != "q2" || body.Entries[1].Question != "q3" {
		t.Fatalf("body = %+v", body)
	}

	empty := NewHandler(loadTestConfig(t), Dependencies{})
	rr = httptest.NewRecorder()
	empty.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/history", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"count":0`) {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
}

func TestSlackEventsMountedAtConfiguredPath(t *testing.T) {
	cfg := loadTestConfig(t)
	h := NewHandler(cfg, Dependencies{
		SlackEvents: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "slack")
		}),
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, cfg.Slack.EventsPath, strings.NewReader("{}")))
	if rr.Code != http.StatusOK || rr.Body.String() != "slack" {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewHandler(loadTestConfig(t), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/metrics", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "salesbot_") {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestCombineReadinessChecksStopsOnFirstFailure(t *testing.T) {
	order := make([]int, 0, 3)
	combined := CombineReadinessChecks(
		func(_ context.Context) error {
			order = append(order, 1)
			return nil
		},
		nil,
		func(_ context.Context) error {
			order = append(order, 2)
			return errors.New("boom")
		},
		func(_ context.Context) error {
			order = append(order, 3)
			return nil
		},
	)

	err := combined(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("execution order = %#v", order)
	}
}

func TestConfigReadinessChecks(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.Store.DSN = ""
	if err := CheckStoreDSN(cfg)(context.Background()); err == nil {
		t.Fatalf("expected missing dsn error")
	}

	cfg.Store.Driver = config.StoreDriverDuckDB
	cfg.ObjectStore.Bucket = ""
	if err := CheckObjectStoreConfig(cfg)(context.Background()); err == nil {
		t.Fatalf("expected missing bucket error")
	}
	cfg.Store.Driver = config.StoreDriverPostgres
	if err := CheckObjectStoreConfig(cfg)(context.Background()); err != nil {
		t.Fatalf("postgres driver should skip object store check: %v", err)
	}
}

func mapLookup(values map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
