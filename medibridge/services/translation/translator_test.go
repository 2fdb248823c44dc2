package translation

import (
	"context"
	"errors"
	"testing"

	"medibridge/medibridge/config"
	"medibridge/medibridge/services/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	out  string
	err  error
	last llm.ChatRequest
}

func (f *fakeClient) Run(_ context.Context, req llm.ChatRequest) (string, error) {
	f.last = req
	return f.out, f.err
}

func TestLanguageName(t *testing.T) {
	assert.Equal(t, "Spanish", LanguageName("es"))
	assert.Equal(t, "English", LanguageName(" EN "))
	assert.Equal(t, "tl", LanguageName("tl"))
}

func TestLLMTranslatorPrompt(t *testing.T) {
	client := &fakeClient{out: "  Hello doctor\n"}
	tr := NewLLMTranslator(client, "gpt-4o")

	out, err := tr.Translate(context.Background(), "Hola doctor", "en")
	require.NoError(t, err)
	assert.Equal(t, "Hello doctor", out)

	require.Len(t, client.last.Messages, 2)
	assert.Equal(t, "gpt-4o", client.last.Model)
	assert.Contains(t, client.last.Messages[0].Content, "into English")
	assert.Equal(t, "Hola doctor", client.last.Messages[1].Content)
	require.NotNil(t, client.last.Temperature)
	assert.InDelta(t, 0.2, *client.last.Temperature, 1e-9)
}

func TestLLMTranslatorFailures(t *testing.T) {
	_, err := NewLLMTranslator(&fakeClient{out: "   "}, "m").Translate(context.Background(), "x", "fr")
	assert.ErrorIs(t, err, ErrEmptyTranslation)

	boom := errors.New("boom")
	_, err = NewLLMTranslator(&fakeClient{err: boom}, "m").Translate(context.Background(), "x", "fr")
	assert.ErrorIs(t, err, boom)
}

func TestMockTranslator(t *testing.T) {
	out, err := MockTranslator{}.Translate(context.Background(), "Hola", "en")
	require.NoError(t, err)
	assert.Equal(t, "[Mock Translation to en]: Hola", out)
}

func TestNewServices(t *testing.T) {
	cfg := config.DefaultConfig()
	svc := NewServices(cfg)
	text, err := svc.Transcriber.Transcribe(context.Background(), "a.webm", nil)
	require.NoError(t, err)
	assert.Equal(t, mockTranscription, text)
	summary, err := svc.Summarizer.Summarize(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, mockSummary, summary)

	cfg.AIProvider = "openai"
	cfg.AIAPIKey = "k"
	svc = NewServices(cfg)
	assert.IsType(t, &LLMTranslator{}, svc.Translator)
	assert.IsType(t, &llm.GPTClient{}, svc.Transcriber)

	cfg.AIProvider = "ollama"
	svc = NewServices(cfg)
	assert.IsType(t, &LLMTranslator{}, svc.Translator)
	assert.IsType(t, mockAssistant{}, svc.Transcriber)
}
