package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	httputils "medibridge/medibridge/utils/http"
	"medibridge/medibridge/utils/logging"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// GPTClient talks to any OpenAI-compatible endpoint.
type GPTClient struct {
	apiKey          string
	baseURL         string
	transcribeModel string
	http            *http.Client
}

func NewGPTClient(baseURL, apiKey, transcribeModel string) *GPTClient {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &GPTClient{
		apiKey:          apiKey,
		baseURL:         strings.TrimRight(baseURL, "/"),
		transcribeModel: transcribeModel,
		http:            http.DefaultClient,
	}
}

type gptResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Run executes a single GPT completion request (non-streaming)
func (c *GPTClient) Run(ctx context.Context, req ChatRequest) (string, error) {
	defer logging.LogDuration(ctx, "gpt_service_run")()

	req.Stream = false
	var parsed gptResponse
	if err := httputils.PostJSON(ctx, c.http, c.baseURL+"/chat/completions", c.apiKey, req, &parsed); err != nil {
		return "", fmt.Errorf("GPT request failed: %w", err)
	}
	if len(parsed.Choices) > 0 {
		return parsed.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("no content in GPT response")
}

// Transcribe posts audio to the Whisper-style transcription endpoint.
func (c *GPTClient) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	defer logging.LogDuration(ctx, "gpt_service_transcribe")()

	var parsed struct {
		Text string `json:"text"`
	}
	fields := map[string]string{"model": c.transcribeModel}
	err := httputils.PostFile(ctx, c.http, c.baseURL+"/audio/transcriptions", c.apiKey, filename, audio, fields, &parsed)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	return strings.TrimSpace(parsed.Text), nil
}
