package realtime

import (
	"encoding/json"
	"time"

	"medibridge/medibridge/sources/psql/models"

	"github.com/google/uuid"
)

const (
	EventAuth        = "auth"
	EventJoinRoom    = "join_room"
	EventLeaveRoom   = "leave_room"
	EventSendMessage = "send_message"

	EventMessageCreated = "message_created"
	EventMessageUpdated = "message_updated"
	EventUserJoined     = "user_joined"
	EventSessionUpdate  = "session_update"
)

// Frame is the envelope for every websocket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type AuthPayload struct {
	Token string `json:"token"`
}

type RoomPayload struct {
	SessionID string `json:"sessionId"`
}

type SendMessagePayload struct {
	SessionID      string  `json:"sessionId"`
	Content        string  `json:"content"`
	SenderLanguage *string `json:"senderLanguage,omitempty"`
}

type MessageCreated struct {
	ID                uuid.UUID `json:"id"`
	SessionID         uuid.UUID `json:"sessionId"`
	SenderID          uuid.UUID `json:"senderId"`
	Content           string    `json:"content"`
	TranslatedContent *string   `json:"translatedContent"`
	AudioURL          *string   `json:"audioUrl"`
	CreatedAt         time.Time `json:"createdAt"`
}

// NewMessageCreated builds the phase-one payload. The translation is always null here.
func NewMessageCreated(m *models.Message) MessageCreated {
	return MessageCreated{
		ID:        m.ID,
		SessionID: m.SessionID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		AudioURL:  m.AudioURL,
		CreatedAt: m.CreatedAt,
	}
}

type MessageUpdated struct {
	ID                uuid.UUID `json:"id"`
	TranslatedContent string    `json:"translatedContent"`
}

type UserJoined struct {
	UserID uuid.UUID `json:"userId"`
}

type SessionUpdate struct {
	Session *models.Consultation `json:"session"`
}

func encodeFrame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: data})
}
