package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"medibridge/medibridge/config"
	"medibridge/medibridge/services/ratelimit"
	"medibridge/medibridge/services/realtime"
	"medibridge/medibridge/services/translation"
	"medibridge/medibridge/sources/psql/dao"
	"medibridge/medibridge/sources/psql/models"
	"medibridge/medibridge/utils/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UnavailableMarker replaces a failed translation under the marker fallback policy.
const UnavailableMarker = "[Translation temporarily unavailable]"

const settleTimeout = 5 * time.Second

type Directory interface {
	GetSession(ctx context.Context, id uuid.UUID) (*models.Consultation, error)
	ResolveParticipant(ctx context.Context, sessionID, userID uuid.UUID) (models.Role, error)
	ClaimLanguages(ctx context.Context, sessionID, userID uuid.UUID, declared string) (*dao.LanguageClaim, error)
}

type MessageStore interface {
	Append(ctx context.Context, sessionID, senderID uuid.UUID, content string, audioURL *string) (*models.Message, error)
	SetTranslation(ctx context.Context, id uuid.UUID, text string) error
	ListUnsettled(ctx context.Context, limit int) ([]models.Message, error)
}

type Broadcaster interface {
	Emit(room, event string, payload any) error
}

type Scheduler interface {
	Submit(job Job) error
}

type SubmitRequest struct {
	SessionID      uuid.UUID
	SenderID       uuid.UUID
	Content        string
	SenderLanguage *string
	AudioURL       *string
}

// Pipeline delivers a message in two phases: the original immediately, then its
// translation once the gateway answers or fails.
type Pipeline struct {
	directory  Directory
	messages   MessageStore
	broadcast  Broadcaster
	translator translation.Translator
	scheduler  Scheduler
	limiter    *ratelimit.Limiter
	timeout    time.Duration
	fallback   string
}

func New(cfg config.Config, directory Directory, messages MessageStore, broadcast Broadcaster,
	translator translation.Translator, scheduler Scheduler, limiter *ratelimit.Limiter) *Pipeline {
	return &Pipeline{
		directory:  directory,
		messages:   messages,
		broadcast:  broadcast,
		translator: translator,
		scheduler:  scheduler,
		limiter:    limiter,
		timeout:    cfg.TranslationTimeout,
		fallback:   cfg.TranslationFallback,
	}
}

// Submit runs phase one synchronously and returns the stored message with a null
// translation. Phase two is scheduled and never reports errors to the caller.
func (p *Pipeline) Submit(ctx context.Context, req SubmitRequest) (*models.Message, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, ErrEmptyContent
	}
	if _, err := p.directory.ResolveParticipant(ctx, req.SessionID, req.SenderID); err != nil {
		if errors.Is(err, dao.ErrForbidden) {
			logging.AppLogger.Warn("non-participant submit refused",
				zap.String("session_id", req.SessionID.String()), zap.String("user_id", req.SenderID.String()))
		}
		return nil, err
	}
	if p.limiter != nil && !p.limiter.Allow(req.SenderID.String()) {
		return nil, ErrRateLimited
	}

	declared := ""
	if req.SenderLanguage != nil {
		declared = *req.SenderLanguage
	}
	claim, err := p.directory.ClaimLanguages(ctx, req.SessionID, req.SenderID, declared)
	if err != nil {
		return nil, err
	}

	msg, err := p.messages.Append(ctx, req.SessionID, req.SenderID, req.Content, req.AudioURL)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return nil, err
		}
		logging.ErrorLogger.Error("phase 1 persist failed", zap.String("session_id", req.SessionID.String()), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	room := models.Room(msg.SessionID)
	if err := p.broadcast.Emit(room, realtime.EventMessageCreated, realtime.NewMessageCreated(msg)); err != nil {
		// history reads still return the message
		logging.ErrorLogger.Error("phase 1 broadcast failed", zap.String("message_id", msg.ID.String()), zap.Error(err))
	}

	if strings.EqualFold(strings.TrimSpace(claim.SenderLanguage), strings.TrimSpace(claim.TargetLanguage)) {
		p.settle(msg, msg.Content)
		return msg, nil
	}

	snapshot := *msg
	target := claim.TargetLanguage
	err = p.scheduler.Submit(func(ctx context.Context) {
		p.translateAndSettle(ctx, &snapshot, target)
	})
	if err != nil {
		logging.AppLogger.Warn("translation not scheduled, settling with fallback",
			zap.String("message_id", msg.ID.String()), zap.Error(err))
		p.settle(msg, p.fallbackFor(msg.Content))
	}
	return msg, nil
}

// HandleSendMessage is the websocket entry point.
func (p *Pipeline) HandleSendMessage(ctx context.Context, senderID uuid.UUID, payload realtime.SendMessagePayload) error {
	sessionID, err := uuid.Parse(payload.SessionID)
	if err != nil {
		return dao.ErrNotFound
	}
	_, err = p.Submit(ctx, SubmitRequest{
		SessionID:      sessionID,
		SenderID:       senderID,
		Content:        payload.Content,
		SenderLanguage: payload.SenderLanguage,
	})
	return err
}

func (p *Pipeline) translateAndSettle(ctx context.Context, msg *models.Message, target string) {
	p.settle(msg, p.translate(ctx, msg, target))
}

// translate calls the gateway once. Any failure, panic, timeout or blank answer yields the fallback.
func (p *Pipeline) translate(ctx context.Context, msg *models.Message, target string) string {
	tctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	defer logging.LogDuration(logging.WithTraceID(tctx, msg.ID.String()), "pipeline_translate")()

	out, err := p.callGateway(tctx, msg.Content, target)
	if err == nil && strings.TrimSpace(out) == "" {
		err = translation.ErrEmptyTranslation
	}
	if err != nil {
		logging.AppLogger.Warn("translation failed, using fallback",
			zap.String("message_id", msg.ID.String()),
			zap.String("target", target),
			zap.String("policy", p.fallback),
			zap.Error(err))
		return p.fallbackFor(msg.Content)
	}
	return out
}

// callGateway turns a panicking translator into an ordinary failure.
func (p *Pipeline) callGateway(ctx context.Context, text, target string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("translation gateway panic: %v", r)
		}
	}()
	return p.translator.Translate(ctx, text, target)
}

// settle writes the translation once and announces it. A failed write skips the
// announcement; the message stays unsettled for the recovery command.
func (p *Pipeline) settle(msg *models.Message, text string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()

	if err := p.messages.SetTranslation(ctx, msg.ID, text); err != nil {
		if errors.Is(err, dao.ErrAlreadySettled) {
			logging.AppLogger.Info("message already settled", zap.String("message_id", msg.ID.String()))
			return false
		}
		logging.ErrorLogger.Error("phase 2 persist failed", zap.String("message_id", msg.ID.String()), zap.Error(err))
		return false
	}
	update := realtime.MessageUpdated{ID: msg.ID, TranslatedContent: text}
	if err := p.broadcast.Emit(models.Room(msg.SessionID), realtime.EventMessageUpdated, update); err != nil {
		logging.ErrorLogger.Error("phase 2 broadcast failed", zap.String("message_id", msg.ID.String()), zap.Error(err))
	}
	return true
}

func (p *Pipeline) fallbackFor(content string) string {
	if p.fallback == config.FallbackMarker {
		return UnavailableMarker
	}
	return content
}

// SettlePending re-runs phase two for up to limit messages that never got a translation,
// typically after an abrupt shutdown. It returns how many were settled.
func (p *Pipeline) SettlePending(ctx context.Context, limit int) (int, error) {
	pending, err := p.messages.ListUnsettled(ctx, limit)
	if err != nil {
		return 0, err
	}
	settled := 0
	for i := range pending {
		msg := &pending[i]
		session, err := p.directory.GetSession(ctx, msg.SessionID)
		if err != nil {
			logging.ErrorLogger.Error("settle: session lookup failed", zap.String("message_id", msg.ID.String()), zap.Error(err))
			continue
		}
		text := msg.Content
		role, ok := session.RoleOf(msg.SenderID)
		if ok {
			sender := models.DefaultLanguage
			if lang := session.LanguageOf(role); lang != nil && *lang != "" {
				sender = *lang
			}
			if target := session.TargetLanguageFor(role); !strings.EqualFold(sender, target) {
				text = p.translate(ctx, msg, target)
			}
		}
		if p.settle(msg, text) {
			settled++
		}
	}
	return settled, nil
}
