package dao

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"medibridge/medibridge/sources/psql/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConsultationDAO is the session directory: participants, status and per-role languages.
type ConsultationDAO struct {
	DB *gorm.DB
}

func NewConsultationDAO(db *gorm.DB) *ConsultationDAO {
	return &ConsultationDAO{DB: db}
}

// LanguageClaim is the language state a send observed inside its own transaction.
type LanguageClaim struct {
	Session        models.Consultation
	Role           models.Role
	SenderLanguage string
	TargetLanguage string
}

func (dao *ConsultationDAO) GetSession(ctx context.Context, id uuid.UUID) (*models.Consultation, error) {
	var c models.Consultation
	err := dao.DB.WithContext(ctx).
		Preload("Patient").
		Preload("Doctor").
		First(&c, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// ResolveParticipant returns the role userID plays in the session.
func (dao *ConsultationDAO) ResolveParticipant(ctx context.Context, sessionID, userID uuid.UUID) (models.Role, error) {
	var c models.Consultation
	if err := dao.DB.WithContext(ctx).First(&c, "id = ?", sessionID).Error; err != nil {
		return "", notFound(err)
	}
	role, ok := c.RoleOf(userID)
	if !ok {
		return "", ErrForbidden
	}
	return role, nil
}

// ClaimLanguages locks the session row, records a declared sender language that differs
// from the stored one, and reads back both languages before commit. Concurrent sends from
// the same participant serialize on the row lock.
func (dao *ConsultationDAO) ClaimLanguages(ctx context.Context, sessionID, userID uuid.UUID, declared string) (*LanguageClaim, error) {
	var claim *LanguageClaim
	err := dao.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Consultation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, "id = ?", sessionID).Error
		if err != nil {
			return notFound(err)
		}
		role, ok := c.RoleOf(userID)
		if !ok {
			return ErrForbidden
		}

		declared = strings.TrimSpace(declared)
		if declared != "" {
			if current := c.LanguageOf(role); current == nil || *current != declared {
				column := "patient_language"
				if role == models.RoleDoctor {
					column = "doctor_language"
				}
				if err := tx.Model(&c).Update(column, declared).Error; err != nil {
					return fmt.Errorf("update %s: %w", column, err)
				}
				if role == models.RoleDoctor {
					c.DoctorLanguage = &declared
				} else {
					c.PatientLanguage = &declared
				}
			}
		}

		sender := models.DefaultLanguage
		if lang := c.LanguageOf(role); lang != nil && *lang != "" {
			sender = *lang
		}
		claim = &LanguageClaim{
			Session:        c,
			Role:           role,
			SenderLanguage: sender,
			TargetLanguage: c.TargetLanguageFor(role),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claim, nil
}

// RequestSession opens a waiting session for the patient.
func (dao *ConsultationDAO) RequestSession(ctx context.Context, patientID uuid.UUID, patientLanguage *string) (*models.Consultation, error) {
	c := models.Consultation{
		PatientID:       patientID,
		Status:          models.StatusWaiting,
		PatientLanguage: patientLanguage,
	}
	err := dao.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open int64
		err := tx.Model(&models.Consultation{}).
			Where("patient_id = ? AND status IN ?", patientID, []models.Status{models.StatusWaiting, models.StatusActive}).
			Count(&open).Error
		if err != nil {
			return err
		}
		if open > 0 {
			return ErrSessionOpen
		}
		return tx.Create(&c).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrSessionOpen
	}
	if err != nil {
		return nil, err
	}
	return dao.GetSession(ctx, c.ID)
}

// AcceptSession assigns the doctor and moves waiting to active. The status guard in the
// WHERE clause makes a second accept fail instead of reassigning the doctor.
func (dao *ConsultationDAO) AcceptSession(ctx context.Context, id, doctorID uuid.UUID, doctorLanguage *string) (*models.Consultation, error) {
	updates := map[string]any{
		"doctor_id": doctorID,
		"status":    models.StatusActive,
	}
	if doctorLanguage != nil {
		updates["doctor_language"] = *doctorLanguage
	}
	res := dao.DB.WithContext(ctx).Model(&models.Consultation{}).
		Where("id = ? AND status = ? AND doctor_id IS NULL", id, models.StatusWaiting).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("accept session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := dao.GetSession(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrInvalidTransition
	}
	return dao.GetSession(ctx, id)
}

// EndSession completes a waiting or active session on behalf of a participant.
func (dao *ConsultationDAO) EndSession(ctx context.Context, id, userID uuid.UUID, summary *string) (*models.Consultation, error) {
	err := dao.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Consultation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		if _, ok := c.RoleOf(userID); !ok {
			return ErrForbidden
		}
		if !c.Status.Open() {
			return ErrInvalidTransition
		}
		updates := map[string]any{"status": models.StatusCompleted}
		if summary != nil && strings.TrimSpace(*summary) != "" {
			updates["summary"] = *summary
		}
		return tx.Model(&c).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return dao.GetSession(ctx, id)
}

// SetSummary stores a generated summary unless one was already written.
func (dao *ConsultationDAO) SetSummary(ctx context.Context, id uuid.UUID, summary string) (bool, error) {
	res := dao.DB.WithContext(ctx).Model(&models.Consultation{}).
		Where("id = ? AND summary IS NULL", id).
		Update("summary", summary)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReplaceSummary overwrites the summary, as an explicit regeneration does.
func (dao *ConsultationDAO) ReplaceSummary(ctx context.Context, id uuid.UUID, summary string) error {
	res := dao.DB.WithContext(ctx).Model(&models.Consultation{}).
		Where("id = ?", id).
		Update("summary", summary)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSessions returns the sessions visible to a user, newest first. Doctors also see the
// unclaimed waiting queue.
func (dao *ConsultationDAO) ListSessions(ctx context.Context, userID uuid.UUID, role models.Role, status models.Status) ([]models.Consultation, error) {
	q := dao.DB.WithContext(ctx).Preload("Patient").Preload("Doctor")
	if role == models.RoleDoctor {
		q = q.Where("doctor_id = ? OR (status = ? AND doctor_id IS NULL)", userID, models.StatusWaiting)
	} else {
		q = q.Where("patient_id = ?", userID)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var sessions []models.Consultation
	if err := q.Order("created_at DESC").Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetSessionFor returns the session if the viewer may see it: participants always,
// any doctor while the session is still unclaimed.
func (dao *ConsultationDAO) GetSessionFor(ctx context.Context, id, userID uuid.UUID, role models.Role) (*models.Consultation, error) {
	c, err := dao.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, ok := c.RoleOf(userID); ok {
		return c, nil
	}
	if role == models.RoleDoctor && c.Status == models.StatusWaiting && c.DoctorID == nil {
		return c, nil
	}
	return nil, ErrForbidden
}
