package controllers

import (
	"context"
	"fmt"
	"strings"

	"medibridge/medibridge/services/llm"
	"medibridge/medibridge/services/pipeline"
	"medibridge/medibridge/services/translation"
	"medibridge/medibridge/sources/psql/dao"
	"medibridge/medibridge/sources/psql/models"
	"medibridge/medibridge/sources/storage"
	"medibridge/medibridge/types"
	"medibridge/medibridge/utils/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ChatController struct {
	pipeline    *pipeline.Pipeline
	sessions    *dao.ConsultationDAO
	messages    *dao.MessageDAO
	audio       storage.AudioStore
	transcriber llm.Transcriber
}

// NewChatController wires the chat endpoints. audio may be nil when object storage is
// not configured; voice uploads are then refused.
func NewChatController(p *pipeline.Pipeline, sessions *dao.ConsultationDAO, messages *dao.MessageDAO,
	audio storage.AudioStore, transcriber llm.Transcriber) *ChatController {
	return &ChatController{
		pipeline:    p,
		sessions:    sessions,
		messages:    messages,
		audio:       audio,
		transcriber: transcriber,
	}
}

func (c *ChatController) Send(ctx context.Context, senderID, sessionID uuid.UUID, req types.SendMessageRequest) (*models.Message, error) {
	return c.pipeline.Submit(ctx, pipeline.SubmitRequest{
		SessionID:      sessionID,
		SenderID:       senderID,
		Content:        req.Content,
		SenderLanguage: req.SenderLanguage,
	})
}

// History returns one page of a session's messages to a participant.
func (c *ChatController) History(ctx context.Context, userID, sessionID uuid.UUID, limit int, cursor string) (*types.MessagePage, error) {
	if _, err := c.sessions.ResolveParticipant(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	limit = dao.PageSize(limit)
	messages, err := c.messages.Page(ctx, sessionID, limit, cursor)
	if err != nil {
		return nil, err
	}
	page := &types.MessagePage{Messages: messages}
	if len(messages) == limit {
		page.NextCursor = messages[len(messages)-1].ID.String()
	}
	return page, nil
}

// SendAudio stores a voice note, transcribes it and submits the transcript through the
// same two-phase pipeline as text, with the audio URL attached.
func (c *ChatController) SendAudio(ctx context.Context, senderID, sessionID uuid.UUID, filename, contentType string,
	data []byte, senderLanguage *string) (*models.Message, error) {
	if c.audio == nil {
		return nil, ErrStorageDisabled
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: audio file is empty", ErrValidation)
	}
	if _, err := c.sessions.ResolveParticipant(ctx, sessionID, senderID); err != nil {
		return nil, err
	}

	url, err := c.audio.UploadAudio(ctx, filename, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("upload audio: %w", err)
	}

	text := translation.TranscriptionFailed
	transcript, err := c.transcriber.Transcribe(ctx, filename, data)
	switch {
	case err != nil:
		logging.AppLogger.Warn("transcription failed", zap.String("session_id", sessionID.String()), zap.Error(err))
	case strings.TrimSpace(transcript) == "":
		logging.AppLogger.Warn("transcription empty", zap.String("session_id", sessionID.String()))
	default:
		text = strings.TrimSpace(transcript)
	}

	return c.pipeline.Submit(ctx, pipeline.SubmitRequest{
		SessionID:      sessionID,
		SenderID:       senderID,
		Content:        text,
		SenderLanguage: senderLanguage,
		AudioURL:       &url,
	})
}

func (c *ChatController) Search(ctx context.Context, userID uuid.UUID, query string, limit int) (*types.SearchResult, error) {
	messages, err := c.messages.Search(ctx, userID, query, limit)
	if err != nil {
		return nil, err
	}
	return &types.SearchResult{Query: strings.TrimSpace(query), Messages: messages}, nil
}
