package dao

import (
	"context"
	"fmt"
	"strings"
	"time"

	"medibridge/medibridge/sources/psql/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

type MessageDAO struct {
	DB *gorm.DB
}

func NewMessageDAO(db *gorm.DB) *MessageDAO {
	return &MessageDAO{DB: db}
}

// Append stores a new message with no translation. createdAt is strictly increasing within
// a session: on a clock collision it is bumped one microsecond past the latest message.
func (dao *MessageDAO) Append(ctx context.Context, sessionID, senderID uuid.UUID, content string, audioURL *string) (*models.Message, error) {
	msg := models.Message{
		SessionID: sessionID,
		SenderID:  senderID,
		Content:   content,
		AudioURL:  audioURL,
	}
	err := dao.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// the session row lock serializes appends so the timestamp read below is current
		var session models.Consultation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&session, "id = ?", sessionID).Error
		if err != nil {
			return notFound(err)
		}

		var last models.Message
		err = tx.Select("created_at").
			Where("session_id = ?", sessionID).
			Order("created_at DESC").
			Limit(1).
			Find(&last).Error
		if err != nil {
			return err
		}

		now := time.Now().UTC().Truncate(time.Microsecond)
		if !last.CreatedAt.IsZero() && !now.After(last.CreatedAt) {
			now = last.CreatedAt.UTC().Add(time.Microsecond)
		}
		msg.CreatedAt = now
		return tx.Create(&msg).Error
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (dao *MessageDAO) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var msg models.Message
	if err := dao.DB.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &msg, nil
}

// SetTranslation settles a message. Only the first call writes; later calls return
// ErrAlreadySettled and leave the stored value untouched.
func (dao *MessageDAO) SetTranslation(ctx context.Context, id uuid.UUID, text string) error {
	res := dao.DB.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND translated_content IS NULL", id).
		Update("translated_content", text)
	if res.Error != nil {
		return fmt.Errorf("set translation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := dao.GetMessage(ctx, id); err != nil {
			return err
		}
		return ErrAlreadySettled
	}
	return nil
}

// PageSize applies the history page bounds: non-positive means the default, anything
// above the maximum is capped.
func PageSize(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	return min(limit, MaxPageSize)
}

// Page returns up to limit messages oldest first. With a cursor, only messages created
// strictly after the cursor message are returned.
func (dao *MessageDAO) Page(ctx context.Context, sessionID uuid.UUID, limit int, cursor string) ([]models.Message, error) {
	limit = PageSize(limit)

	q := dao.DB.WithContext(ctx).Where("session_id = ?", sessionID)
	if cursor != "" {
		cursorID, err := uuid.Parse(cursor)
		if err != nil {
			return nil, ErrInvalidCursor
		}
		var anchor models.Message
		err = dao.DB.WithContext(ctx).
			Select("created_at").
			Where("id = ? AND session_id = ?", cursorID, sessionID).
			First(&anchor).Error
		if err != nil {
			if notFound(err) == ErrNotFound {
				return nil, ErrInvalidCursor
			}
			return nil, err
		}
		q = q.Where("created_at > ?", anchor.CreatedAt)
	}

	messages := make([]models.Message, 0, limit)
	if err := q.Order("created_at ASC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// ListUnsettled returns the oldest messages whose translation was never written.
func (dao *MessageDAO) ListUnsettled(ctx context.Context, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := dao.DB.WithContext(ctx).
		Where("translated_content IS NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// Transcript returns every message of a session, oldest first.
func (dao *MessageDAO) Transcript(ctx context.Context, sessionID uuid.UUID) ([]models.Message, error) {
	var messages []models.Message
	err := dao.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// Search finds text messages containing q in the sessions userID takes part in, newest first.
func (dao *MessageDAO) Search(ctx context.Context, userID uuid.UUID, q string, limit int) ([]models.Message, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []models.Message{}, nil
	}
	if limit <= 0 || limit > MaxPageSize {
		limit = DefaultPageSize
	}
	sessions := dao.DB.Model(&models.Consultation{}).
		Select("id").
		Where("patient_id = ? OR doctor_id = ?", userID, userID)

	var messages []models.Message
	err := dao.DB.WithContext(ctx).
		Where("session_id IN (?)", sessions).
		Where("LOWER(content) LIKE ?", "%"+strings.ToLower(q)+"%").
		Where("audio_url IS NULL").
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}
