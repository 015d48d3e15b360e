// Package llm provides access to chat models over the OpenAI-compatible
// protocol. Hosted models (OpenAI) and the locally hosted compliance model
// (LM Studio / Ollama style endpoints) share one client.
package llm

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// Message is a chat message in provider-neutral form.
type Message struct {
	Role    string // system, user, assistant
	Content string
}

// Service is the model access interface.
type Service interface {
	// Chat performs a synchronous completion and returns the full reply.
	Chat(ctx context.Context, model string, messages []Message) (string, error)

	// ChatStream performs a streaming completion. Fragments arrive on the
	// content channel in order; the error channel delivers at most one
	// error. Both channels are closed when the stream ends.
	ChatStream(ctx context.Context, model string, messages []Message) (<-chan string, <-chan error)
}

// Config holds provider settings.
type Config struct {
	Provider    string // openai, lmstudio, ollama, or any OpenAI-compatible endpoint
	APIKey      string
	BaseURL     string
	MaxTokens   int     // default 1000
	Temperature float32 // default 0.7
	Timeout     int     // request timeout in seconds, default 120
}

type service struct {
	client      *openai.Client
	provider    string
	maxTokens   int
	temperature float32
	timeout     time.Duration
}

// Provider base URL defaults, applied when Config.BaseURL is empty.
var providerDefaults = map[string]string{
	"openai":   "https://api.openai.com/v1",
	"lmstudio": "http://localhost:1234/v1",
	"ollama":   "http://localhost:11434/v1",
}

// NewService creates a Service for one provider endpoint.
func NewService(cfg *Config) (Service, error) {
	if cfg.Provider == "" {
		return nil, errors.New("llm provider is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = providerDefaults[cfg.Provider]
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	clientConfig.HTTPClient = newHTTPClient()

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = 0.7
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120
	}

	return &service{
		client:      openai.NewClientWithConfig(clientConfig),
		provider:    cfg.Provider,
		maxTokens:   maxTokens,
		temperature: temperature,
		timeout:     time.Duration(timeout) * time.Second,
	}, nil
}

func (s *service) Chat(ctx context.Context, model string, messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	slog.Debug("llm.chat", "provider", s.provider, "model", model, "messages", len(messages))

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		Messages:    convertMessages(messages),
	})
	if err != nil {
		return "", errors.Wrap(err, "llm chat failed")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty response from model")
	}
	return resp.Choices[0].Message.Content, nil
}

func (s *service) ChatStream(ctx context.Context, model string, messages []Message) (<-chan string, <-chan error) {
	contentChan := make(chan string, 10)
	errChan := make(chan error, 1)

	go func() {
		defer close(contentChan)
		defer close(errChan)

		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		slog.Debug("llm.chat_stream starting", "provider", s.provider, "model", model)
		stream, err := s.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model:       model,
			MaxTokens:   s.maxTokens,
			Temperature: s.temperature,
			Messages:    convertMessages(messages),
		})
		if err != nil {
			errChan <- errors.Wrap(err, "create stream failed")
			return
		}
		defer func() { _ = stream.Close() }()

		chunks := 0
		for {
			resp, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					slog.Debug("llm.chat_stream completed", "chunks", chunks)
					return
				}
				select {
				case errChan <- errors.Wrap(err, "stream recv failed"):
				case <-ctx.Done():
				}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			chunks++
			select {
			case contentChan <- delta:
			case <-ctx.Done():
				slog.Warn("llm.chat_stream cancelled mid-send", "chunks", chunks)
				return
			}
		}
	}()

	return contentChan, errChan
}

func convertMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		role := m.Role
		switch role {
		case "system", "user", "assistant":
		default:
			role = openai.ChatMessageRoleUser
		}
		out[i] = openai.ChatCompletionMessage{Role: role, Content: m.Content}
	}
	return out
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// SystemPrompt builds a system message.
func SystemPrompt(content string) Message {
	return Message{Role: "system", Content: content}
}

// UserMessage builds a user message.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}
