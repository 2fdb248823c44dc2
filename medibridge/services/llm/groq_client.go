package llm

import (
	"context"
	"fmt"
	"net/http"

	httputils "medibridge/medibridge/utils/http"
	"medibridge/medibridge/utils/logging"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

type GroqClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	// Groq hosts Whisper behind the same OpenAI-compatible routes
	transcriber *GPTClient
}

func NewGroqClient(apiKey, transcribeModel string) *GroqClient {
	return &GroqClient{
		baseURL:     groqBaseURL,
		apiKey:      apiKey,
		http:        http.DefaultClient,
		transcriber: NewGPTClient(groqBaseURL, apiKey, transcribeModel),
	}
}

// Run (non-streaming) chat completion
func (c *GroqClient) Run(ctx context.Context, req ChatRequest) (string, error) {
	defer logging.LogDuration(ctx, "groq_service_run")()

	url := fmt.Sprintf("%s/chat/completions", c.baseURL)
	var resp struct {
		ID      string `json:"id"`
		Model   string `json:"model"`
		Choices []struct {
			Message Message `json:"message"`
		} `json:"choices"`
	}
	req.Stream = false
	if err := httputils.PostJSON(ctx, c.http, url, c.apiKey, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) > 0 {
		return resp.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("no choices returned")
}

func (c *GroqClient) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	return c.transcriber.Transcribe(ctx, filename, audio)
}
