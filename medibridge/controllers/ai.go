package controllers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"medibridge/medibridge/services/translation"
	"medibridge/medibridge/types"
	"medibridge/medibridge/utils/logging"
)

// AIController exposes the translation gateway directly, outside any session.
type AIController struct {
	translator translation.Translator
	timeout    time.Duration
}

func NewAIController(translator translation.Translator, timeout time.Duration) *AIController {
	return &AIController{translator: translator, timeout: timeout}
}

// Translate returns the gateway's answer. Unlike the message pipeline a failure is
// reported to the caller instead of degrading.
func (c *AIController) Translate(ctx context.Context, req types.TranslateRequest) (*types.TranslateResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: text is required", ErrValidation)
	}
	target := strings.TrimSpace(req.TargetLanguage)
	if target == "" {
		return nil, fmt.Errorf("%w: targetLanguage is required", ErrValidation)
	}

	tctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	defer logging.LogDuration(tctx, "ai_translate")()
	out, err := c.translator.Translate(tctx, req.Text, target)
	if err != nil {
		return nil, fmt.Errorf("translate: %w", err)
	}
	if strings.TrimSpace(out) == "" {
		return nil, translation.ErrEmptyTranslation
	}
	return &types.TranslateResponse{TranslatedText: strings.TrimSpace(out)}, nil
}
