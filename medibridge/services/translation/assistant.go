package translation

import (
	"context"
	"strings"

	"medibridge/medibridge/config"
	"medibridge/medibridge/services/llm"
)

const (
	TranscriptionFailed = "[Audio transcription failed]"
	mockTranscription   = "[Mock transcription of audio]"
	mockSummary         = "[Mock Summary] This is a placeholder summary."
)

type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

type LLMSummarizer struct {
	client llm.Client
	model  string
}

func (s *LLMSummarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	temperature := 0.3
	out, err := s.client.Run(ctx, llm.ChatRequest{
		Model: s.model,
		Messages: []llm.Message{
			{
				Role: "system",
				Content: "You are a medical documentation assistant. " +
					"Summarize the following doctor-patient conversation into a " +
					"concise clinical summary. Include: chief complaint, " +
					"symptoms discussed, any recommendations or next steps.",
			},
			{Role: "user", Content: transcript},
		},
		Temperature: &temperature,
		MaxTokens:   1024,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

type mockAssistant struct{ MockTranslator }

func (mockAssistant) Summarize(context.Context, string) (string, error) { return mockSummary, nil }

func (mockAssistant) Transcribe(context.Context, string, []byte) (string, error) {
	return mockTranscription, nil
}

// Services bundles the AI capabilities for one provider.
type Services struct {
	Translator  Translator
	Summarizer  Summarizer
	Transcriber llm.Transcriber
}

// NewServices wires the provider named in cfg. Ollama has no transcription endpoint,
// so audio falls back to the mock transcriber there.
func NewServices(cfg config.Config) Services {
	var client llm.Client
	var transcriber llm.Transcriber = mockAssistant{}
	switch cfg.AIProvider {
	case "openai":
		gpt := llm.NewGPTClient(cfg.AIEndpoint, cfg.AIAPIKey, cfg.AITranscribeModel)
		client, transcriber = gpt, gpt
	case "groq":
		groq := llm.NewGroqClient(cfg.AIAPIKey, cfg.AITranscribeModel)
		client, transcriber = groq, groq
	case "ollama":
		client = llm.NewOllamaClient(cfg.AIEndpoint)
	default:
		return Services{Translator: mockAssistant{}, Summarizer: mockAssistant{}, Transcriber: mockAssistant{}}
	}
	return Services{
		Translator:  NewLLMTranslator(client, cfg.AIModel),
		Summarizer:  &LLMSummarizer{client: client, model: cfg.AIModel},
		Transcriber: transcriber,
	}
}
