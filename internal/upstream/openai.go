// ABOUTME: OpenAI-compatible client for /chat/completions with stream=true
// ABOUTME: Request bodies use go-openai wire types; the raw stream is handed back undecoded

package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/2389/chat-relay/internal/store"
	"github.com/2389/chat-relay/internal/transcode"
)

// DefaultOpenAIBaseURL is the public OpenAI API root.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	BaseURL    string
	APIToken   string
	Model      string
	HTTPClient *http.Client
}

// OpenAIClient streams chat completions from any OpenAI-compatible server.
type OpenAIClient struct {
	endpoint   string
	apiToken   string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenAIClient builds a client. Model is required.
func NewOpenAIClient(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai: model is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultOpenAIBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &OpenAIClient{
		endpoint:   strings.TrimRight(base, "/") + "/chat/completions",
		apiToken:   cfg.APIToken,
		model:      cfg.Model,
		httpClient: httpClient,
		logger:     logger.With("component", "upstream", "provider", "openai"),
	}, nil
}

// Open submits history as a streaming chat completion request.
func (c *OpenAIClient) Open(ctx context.Context, history store.History) (Opened, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toChatMessages(history),
		Stream:   true,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.apiToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	c.logger.Debug("opening upstream stream", "model", c.model, "messages", len(history))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamRejected, err)
	}

	return classify(resp, transcode.OpenAI, c.logger), nil
}

func toChatMessages(history store.History) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, m := range history {
		var role string
		switch m.Role {
		case store.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case store.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		default:
			role = openai.ChatMessageRoleUser
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}
