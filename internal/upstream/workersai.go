// ABOUTME: Workers AI client: POSTs the conversation to the model run endpoint with stream=true
// ABOUTME: Returns the raw event stream untouched so the transcoder can decode it lazily

package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/2389/chat-relay/internal/store"
	"github.com/2389/chat-relay/internal/transcode"
)

const (
	// DefaultWorkersAIBaseURL is the public Cloudflare API root.
	DefaultWorkersAIBaseURL = "https://api.cloudflare.com/client/v4"
	// DefaultModel is the instruction-tuned model the relay talks to.
	DefaultModel = "@cf/meta/llama-3.1-8b-instruct"
)

// WorkersAIConfig configures a WorkersAIClient.
type WorkersAIConfig struct {
	BaseURL    string
	AccountID  string
	APIToken   string
	Model      string
	HTTPClient *http.Client
}

// WorkersAIClient talks to the Workers AI run endpoint.
type WorkersAIClient struct {
	endpoint   string
	apiToken   string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

type workersAIRequest struct {
	Messages []store.Message `json:"messages"`
	Stream   bool            `json:"stream"`
}

// NewWorkersAIClient builds a client. AccountID is required.
func NewWorkersAIClient(cfg WorkersAIConfig, logger *slog.Logger) (*WorkersAIClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultWorkersAIBaseURL
	}
	if cfg.AccountID == "" {
		return nil, fmt.Errorf("workers ai: account id is required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// No overall timeout: the body is read for as long as generation runs.
		httpClient = &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: 60 * time.Second,
		}}
	}

	endpoint := strings.TrimRight(base, "/") + "/accounts/" + url.PathEscape(cfg.AccountID) + "/ai/run/" + model

	return &WorkersAIClient{
		endpoint:   endpoint,
		apiToken:   cfg.APIToken,
		model:      model,
		httpClient: httpClient,
		logger:     logger.With("component", "upstream", "provider", "workers-ai"),
	}, nil
}

// Open submits history with stream=true. The returned stream is bound to ctx.
func (c *WorkersAIClient) Open(ctx context.Context, history store.History) (Opened, error) {
	body, err := json.Marshal(workersAIRequest{Messages: history, Stream: true})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	c.logger.Debug("opening upstream stream", "model", c.model, "messages", len(history))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamRejected, err)
	}

	return classify(resp, transcode.WorkersAI, c.logger), nil
}

// classify decides whether resp is a usable stream. Non-streaming bodies are
// drained for a short detail and closed.
func classify(resp *http.Response, dialect transcode.Dialect, logger *slog.Logger) Opened {
	contentType := resp.Header.Get("Content-Type")
	if resp.StatusCode >= 200 && resp.StatusCode < 300 && isEventStream(contentType) {
		return &StreamOpened{Stream: resp.Body, Dialect: dialect}
	}

	detail := readDetail(resp.Body)
	_ = resp.Body.Close()
	logger.Warn("upstream did not open a stream",
		"status", resp.StatusCode,
		"content_type", contentType,
	)
	return &NotStreaming{Status: resp.StatusCode, ContentType: contentType, Detail: detail}
}
