package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/salesbot/salesbot/internal/config"
)

func TestNewReturnsNilWithoutProvider(t *testing.T) {
	client, err := New(config.AIConfig{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if client != nil {
		t.Fatalf("New() = %#v, want nil", client)
	}
}

func TestNewSelectsProvider(t *testing.T) {
	client, err := New(config.AIConfig{Provider: config.AIProviderAnthropic, APIKey: "k", Model: "claude-test"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if client.Provider() != "anthropic" || client.Model() != "claude-test" {
		t.Fatalf("client = %s/%s", client.Provider(), client.Model())
	}
	if _, err := New(config.AIConfig{Provider: "cohere", APIKey: "k", Model: "m"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestConstructorsRequireKeyAndModel(t *testing.T) {
	if _, err := NewOpenAIClient(Config{Model: "m"}); err == nil {
		t.Fatal("expected error for missing api key")
	}
	if _, err := NewAnthropicClient(Config{APIKey: "k"}); err == nil {
		t.Fatal("expected error for missing model")
	}
}

func TestOpenAIClientComplete(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("Authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  {\"sql\":\"SELECT 1\"}  "},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(Config{BaseURL: server.URL + "/v1", APIKey: "test-key", Model: "gpt-test"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	out, err := client.Complete(context.Background(), Request{System: "sys", User: "question", Temperature: 0.1, MaxTokens: 1000})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != `{"sql":"SELECT 1"}` {
		t.Fatalf("Complete() = %q", out)
	}
	if captured["model"] != "gpt-test" {
		t.Fatalf("model = %v", captured["model"])
	}
	messages, _ := captured["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("messages = %#v", captured["messages"])
	}
	if captured["max_tokens"] != float64(1000) {
		t.Fatalf("max_tokens = %v", captured["max_tokens"])
	}
}

func TestOpenAIClientEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","choices":[]}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(Config{BaseURL: server.URL + "/v1", APIKey: "k", Model: "m"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	if _, err := client.Complete(context.Background(), Request{User: "q"}); err != ErrEmptyResponse {
		t.Fatalf("Complete() error = %v, want ErrEmptyResponse", err)
	}
}

func TestOpenAIClientHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(Config{BaseURL: server.URL + "/v1", APIKey: "k", Model: "m"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	_, err = client.Complete(context.Background(), Request{User: "q"})
	if err == nil || !strings.Contains(err.Error(), "openai chat completion") {
		t.Fatalf("Complete() error = %v", err)
	}
}

func TestAnthropicClientComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["model"] != "claude-test" {
			t.Fatalf("model = %v", body["model"])
		}
		if body["temperature"] != 0.7 {
			t.Fatalf("temperature = %v", body["temperature"])
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-test","content":[{"type":"text","text":"Electronics leads revenue."}],"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":5}}`))
	}))
	defer server.Close()

	client, err := NewAnthropicClient(Config{BaseURL: server.URL, APIKey: "k", Model: "claude-test"})
	if err != nil {
		t.Fatalf("NewAnthropicClient() error = %v", err)
	}
	out, err := client.Complete(context.Background(), Request{System: "sys", User: "rows", Temperature: 0.7, MaxTokens: 250})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != "Electronics leads revenue." {
		t.Fatalf("Complete() = %q", out)
	}
}
