package controllers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"medibridge/medibridge/middlewares"
	"medibridge/medibridge/services/pipeline"
	"medibridge/medibridge/services/realtime"
	"medibridge/medibridge/services/translation"
	"medibridge/medibridge/sources/psql/dao"
	"medibridge/medibridge/sources/psql/models"
	"medibridge/medibridge/types"
	"medibridge/medibridge/utils/logging"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const summaryTimeout = 60 * time.Second

const noMessagesSummary = "No messages to summarize."

type ConsultationController struct {
	sessions   *dao.ConsultationDAO
	messages   *dao.MessageDAO
	broadcast  pipeline.Broadcaster
	summarizer translation.Summarizer
	scheduler  pipeline.Scheduler
}

func NewConsultationController(sessions *dao.ConsultationDAO, messages *dao.MessageDAO, broadcast pipeline.Broadcaster,
	summarizer translation.Summarizer, scheduler pipeline.Scheduler) *ConsultationController {
	return &ConsultationController{
		sessions:   sessions,
		messages:   messages,
		broadcast:  broadcast,
		summarizer: summarizer,
		scheduler:  scheduler,
	}
}

func (c *ConsultationController) Request(ctx context.Context, id middlewares.Identity, req types.RequestConsultationRequest) (*models.Consultation, error) {
	if id.Role != models.RolePatient {
		return nil, fmt.Errorf("%w: only patients can request a consultation", ErrRoleNotAllowed)
	}
	session, err := c.sessions.RequestSession(ctx, id.UserID, normalizeLanguage(req.PatientLanguage))
	if err != nil {
		return nil, err
	}
	logging.AppLogger.Info("consultation requested", zap.String("session_id", session.ID.String()))
	return session, nil
}

func (c *ConsultationController) Accept(ctx context.Context, id middlewares.Identity, sessionID uuid.UUID, req types.AcceptConsultationRequest) (*models.Consultation, error) {
	if id.Role != models.RoleDoctor {
		return nil, fmt.Errorf("%w: only doctors can accept a consultation", ErrRoleNotAllowed)
	}
	session, err := c.sessions.AcceptSession(ctx, sessionID, id.UserID, normalizeLanguage(req.DoctorLanguage))
	if err != nil {
		return nil, err
	}
	c.announce(session)
	return session, nil
}

// End completes the session. Without a summary from the caller one is generated in the
// background and announced with a second session_update.
func (c *ConsultationController) End(ctx context.Context, id middlewares.Identity, sessionID uuid.UUID, req types.EndConsultationRequest) (*models.Consultation, error) {
	session, err := c.sessions.EndSession(ctx, sessionID, id.UserID, req.Summary)
	if err != nil {
		return nil, err
	}
	c.announce(session)

	if session.Summary == nil && c.summarizer != nil {
		err := c.scheduler.Submit(func(ctx context.Context) {
			c.autoSummarize(ctx, sessionID)
		})
		if err != nil {
			logging.AppLogger.Warn("summary not scheduled", zap.String("session_id", sessionID.String()), zap.Error(err))
		}
	}
	return session, nil
}

func (c *ConsultationController) List(ctx context.Context, id middlewares.Identity, status string) ([]types.ConsultationView, error) {
	filter := models.Status(strings.TrimSpace(status))
	switch filter {
	case "", models.StatusWaiting, models.StatusActive, models.StatusCompleted:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	sessions, err := c.sessions.ListSessions(ctx, id.UserID, id.Role, filter)
	if err != nil {
		return nil, err
	}
	return lo.Map(sessions, func(s models.Consultation, _ int) types.ConsultationView {
		return toView(s)
	}), nil
}

func (c *ConsultationController) Get(ctx context.Context, id middlewares.Identity, sessionID uuid.UUID) (*models.Consultation, error) {
	return c.sessions.GetSessionFor(ctx, sessionID, id.UserID, id.Role)
}

// Summarize regenerates the clinical summary on demand and stores it, replacing any
// previous one.
func (c *ConsultationController) Summarize(ctx context.Context, id middlewares.Identity, sessionID uuid.UUID) (string, error) {
	if _, err := c.sessions.ResolveParticipant(ctx, sessionID, id.UserID); err != nil {
		return "", err
	}
	summary, err := c.generateSummary(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if summary == noMessagesSummary {
		return summary, nil
	}
	if err := c.sessions.ReplaceSummary(ctx, sessionID, summary); err != nil {
		return "", err
	}
	if session, err := c.sessions.GetSession(ctx, sessionID); err == nil {
		c.announce(session)
	}
	return summary, nil
}

func (c *ConsultationController) autoSummarize(ctx context.Context, sessionID uuid.UUID) {
	summary, err := c.generateSummary(ctx, sessionID)
	if err != nil {
		logging.AppLogger.Warn("summary generation failed", zap.String("session_id", sessionID.String()), zap.Error(err))
		return
	}
	if summary == noMessagesSummary {
		return
	}
	written, err := c.sessions.SetSummary(ctx, sessionID, summary)
	if err != nil {
		logging.ErrorLogger.Error("summary persist failed", zap.String("session_id", sessionID.String()), zap.Error(err))
		return
	}
	if !written {
		return
	}
	session, err := c.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return
	}
	c.announce(session)
}

func (c *ConsultationController) generateSummary(ctx context.Context, sessionID uuid.UUID) (string, error) {
	if c.summarizer == nil {
		return "", fmt.Errorf("%w: no summarizer configured", ErrValidation)
	}
	session, err := c.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	messages, err := c.messages.Transcript(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if len(messages) == 0 {
		return noMessagesSummary, nil
	}

	transcript := strings.Join(lo.Map(messages, func(m models.Message, _ int) string {
		speaker := "Patient"
		if role, _ := session.RoleOf(m.SenderID); role == models.RoleDoctor {
			speaker = "Doctor"
		}
		return speaker + ": " + m.Content
	}), "\n")

	sctx, cancel := context.WithTimeout(ctx, summaryTimeout)
	defer cancel()
	defer logging.LogDuration(logging.WithTraceID(sctx, sessionID.String()), "consultation_summarize")()
	summary, err := c.summarizer.Summarize(sctx, transcript)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	if strings.TrimSpace(summary) == "" {
		return "", fmt.Errorf("summarize: empty summary")
	}
	return summary, nil
}

func (c *ConsultationController) announce(session *models.Consultation) {
	err := c.broadcast.Emit(models.Room(session.ID), realtime.EventSessionUpdate, realtime.SessionUpdate{Session: session})
	if err != nil {
		logging.ErrorLogger.Error("emit session_update failed", zap.String("session_id", session.ID.String()), zap.Error(err))
	}
}

func toView(s models.Consultation) types.ConsultationView {
	v := types.ConsultationView{
		ID:              s.ID,
		Status:          s.Status,
		PatientID:       s.PatientID,
		DoctorID:        s.DoctorID,
		PatientLanguage: s.PatientLanguage,
		DoctorLanguage:  s.DoctorLanguage,
		Summary:         s.Summary,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
	if s.Patient != nil {
		v.PatientName = s.Patient.FullName
	}
	if s.Doctor != nil {
		v.DoctorName = lo.ToPtr(s.Doctor.FullName)
	}
	return v
}

func normalizeLanguage(lang *string) *string {
	if lang == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*lang)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
