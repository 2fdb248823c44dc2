package llm

import (
	"context"
	"net/http"
	"strings"

	httputils "medibridge/medibridge/utils/http"
	"medibridge/medibridge/utils/logging"
)

// Client runs a single non-streaming chat completion.
type Client interface {
	Run(ctx context.Context, req ChatRequest) (string, error)
}

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio []byte) (string, error)
}

type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

type OllamaClient struct {
	baseURL string
	http    *http.Client
}

func NewOllamaClient(baseURL string) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434/api"
	}
	return &OllamaClient{baseURL: strings.TrimRight(baseURL, "/"), http: http.DefaultClient}
}

func (c *OllamaClient) Run(ctx context.Context, req ChatRequest) (string, error) {
	defer logging.LogDuration(ctx, "ollama_service_run")()
	req.Stream = false
	body := struct {
		ChatRequest
		Options map[string]any `json:"options,omitempty"`
	}{ChatRequest: req}
	if req.Temperature != nil {
		body.Options = map[string]any{"temperature": *req.Temperature}
		body.Temperature = nil
	}
	var resp ChatResponse
	if err := httputils.PostJSON(ctx, c.http, c.baseURL+"/chat", "", body, &resp); err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}
