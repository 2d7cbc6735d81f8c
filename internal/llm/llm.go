// Package llm wraps the chat-completion backends the bot talks to behind a
// single Complete call.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/salesbot/salesbot/internal/config"
)

var ErrEmptyResponse = errors.New("model returned no text")

type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	Provider() string
	Model() string
}

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// New builds the client for cfg.Provider. It returns nil and no error when no
// provider is configured.
func New(cfg config.AIConfig) (Client, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	clientCfg := Config{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}
	switch cfg.Provider {
	case config.AIProviderOpenAI:
		client, err := NewOpenAIClient(clientCfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.AIProviderAnthropic:
		client, err := NewAnthropicClient(clientCfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.Provider)
	}
}

func validate(cfg Config) (Config, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.APIKey == "" {
		return Config{}, fmt.Errorf("api key is required")
	}
	if cfg.Model == "" {
		return Config{}, fmt.Errorf("model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return cfg, nil
}
