package translation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"medibridge/medibridge/services/llm"
	"medibridge/medibridge/utils/logging"

	"go.uber.org/zap"
)

//go:generate mockgen -destination=mocks/mock_translator.go -package=mocks medibridge/medibridge/services/translation Translator,Summarizer

// Translator is the gateway the pipeline calls. It may be slow and it may fail.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}

var ErrEmptyTranslation = errors.New("empty translation")

var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"hi": "Hindi",
	"fr": "French",
	"de": "German",
	"zh": "Chinese",
	"ja": "Japanese",
	"ar": "Arabic",
	"pt": "Portuguese",
	"ru": "Russian",
}

// LanguageName maps a language code to its English name. Unknown codes pass through.
func LanguageName(code string) string {
	if name, ok := languageNames[strings.ToLower(strings.TrimSpace(code))]; ok {
		return name
	}
	return code
}

type LLMTranslator struct {
	client llm.Client
	model  string
}

func NewLLMTranslator(client llm.Client, model string) *LLMTranslator {
	return &LLMTranslator{client: client, model: model}
}

func (t *LLMTranslator) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	langName := LanguageName(targetLanguage)
	temperature := 0.2
	req := llm.ChatRequest{
		Model: t.model,
		Messages: []llm.Message{
			{
				Role: "system",
				Content: fmt.Sprintf("You are a medical translator. Your ONLY job is to translate text from one language into %s. "+
					"Do NOT reply, do NOT answer questions, do NOT explain. "+
					"Output ONLY the %s translation of the user's message, nothing else.", langName, langName),
			},
			{Role: "user", Content: text},
		},
		Temperature: &temperature,
		MaxTokens:   2048,
	}
	out, err := t.client.Run(ctx, req)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptyTranslation
	}
	logging.AppLogger.Debug("translated", zap.String("target", targetLanguage), zap.Int("chars", len(out)))
	return out, nil
}

// MockTranslator is used when no AI provider is configured.
type MockTranslator struct{}

func (MockTranslator) Translate(_ context.Context, text, targetLanguage string) (string, error) {
	return fmt.Sprintf("[Mock Translation to %s]: %s", targetLanguage, text), nil
}
