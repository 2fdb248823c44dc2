package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Open reports whether the session still counts against the one-open-session-per-patient rule.
func (s Status) Open() bool {
	return s == StatusWaiting || s == StatusActive
}

// Consultation is a session pairing one patient with at most one doctor.
type Consultation struct {
	ID              uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	PatientID       uuid.UUID  `json:"patientId" gorm:"type:uuid;not null;index"`
	Patient         *User      `json:"patient,omitempty" gorm:"foreignKey:PatientID;references:ID;constraint:OnDelete:CASCADE"`
	DoctorID        *uuid.UUID `json:"doctorId" gorm:"type:uuid;index"`
	Doctor          *User      `json:"doctor,omitempty" gorm:"foreignKey:DoctorID;references:ID;constraint:OnDelete:SET NULL"`
	Status          Status     `json:"status" gorm:"type:varchar(20);not null;default:'waiting';index"`
	PatientLanguage *string    `json:"patientLanguage" gorm:"type:varchar(10)"`
	DoctorLanguage  *string    `json:"doctorLanguage" gorm:"type:varchar(10)"`
	Summary         *string    `json:"summary" gorm:"type:text"`
	CreatedAt       time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt       time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (Consultation) TableName() string {
	return "consultations"
}

func (c *Consultation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// RoleOf returns the role userID plays in the session, or false if they are not a participant.
func (c *Consultation) RoleOf(userID uuid.UUID) (Role, bool) {
	switch {
	case c.PatientID == userID:
		return RolePatient, true
	case c.DoctorID != nil && *c.DoctorID == userID:
		return RoleDoctor, true
	}
	return "", false
}

// LanguageOf returns the stored language of the participant with the given role.
func (c *Consultation) LanguageOf(role Role) *string {
	if role == RolePatient {
		return c.PatientLanguage
	}
	return c.DoctorLanguage
}

// TargetLanguageFor returns the language messages from role should be translated into:
// the other participant's stored language, "en" when unset.
func (c *Consultation) TargetLanguageFor(role Role) string {
	other := RoleDoctor
	if role == RoleDoctor {
		other = RolePatient
	}
	if lang := c.LanguageOf(other); lang != nil && *lang != "" {
		return *lang
	}
	return DefaultLanguage
}

const DefaultLanguage = "en"

// Room is the realtime fan-out key for a session.
func Room(sessionID uuid.UUID) string {
	return "session_" + sessionID.String()
}
