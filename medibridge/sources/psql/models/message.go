package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is append-only. Content never changes and TranslatedContent is written once.
type Message struct {
	ID                uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey"`
	SessionID         uuid.UUID     `json:"sessionId" gorm:"type:uuid;not null;index:idx_messages_session_created,priority:1"`
	Session           *Consultation `json:"-" gorm:"foreignKey:SessionID;references:ID;constraint:OnDelete:CASCADE"`
	SenderID          uuid.UUID     `json:"senderId" gorm:"type:uuid;not null"`
	Content           string        `json:"content" gorm:"type:text;not null"`
	TranslatedContent *string       `json:"translatedContent" gorm:"type:text"`
	AudioURL          *string       `json:"audioUrl" gorm:"type:varchar(512)"`
	CreatedAt         time.Time     `json:"createdAt" gorm:"not null;index:idx_messages_session_created,priority:2"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Settled reports whether phase 2 has written the translation.
func (m *Message) Settled() bool {
	return m.TranslatedContent != nil
}
