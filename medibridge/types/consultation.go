package types

import (
	"time"

	"medibridge/medibridge/sources/psql/models"

	"github.com/google/uuid"
)

type RequestConsultationRequest struct {
	PatientLanguage *string `json:"patientLanguage,omitempty"`
}

type AcceptConsultationRequest struct {
	DoctorLanguage *string `json:"doctorLanguage,omitempty"`
}

type EndConsultationRequest struct {
	Summary *string `json:"summary,omitempty"`
}

// ConsultationView is the list representation: participant names instead of nested users.
type ConsultationView struct {
	ID              uuid.UUID     `json:"id"`
	Status          models.Status `json:"status"`
	PatientID       uuid.UUID     `json:"patientId"`
	PatientName     string        `json:"patientName"`
	DoctorID        *uuid.UUID    `json:"doctorId"`
	DoctorName      *string       `json:"doctorName"`
	PatientLanguage *string       `json:"patientLanguage"`
	DoctorLanguage  *string       `json:"doctorLanguage"`
	Summary         *string       `json:"summary"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}
