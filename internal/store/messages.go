package store

import (
	"context"

	"socialflow/internal/models"

	"gorm.io/gorm"
)

// MessageRepository is the append-only message log.
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Log(ctx context.Context, msg *models.Message) error {
	if msg.MessageType == "" {
		msg.MessageType = "text"
	}
	return r.db.WithContext(ctx).Create(msg).Error
}

type MessageFilter struct {
	FlowID    *uint
	Platform  models.Platform
	Direction models.Direction
	Limit     int
}

func (r *MessageRepository) List(ctx context.Context, tenantID string, f MessageFilter) ([]models.Message, error) {
	q := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if f.FlowID != nil {
		q = q.Where("flow_id = ?", *f.FlowID)
	}
	if f.Platform != "" {
		q = q.Where("platform = ?", f.Platform)
	}
	if f.Direction != "" {
		q = q.Where("direction = ?", f.Direction)
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	var messages []models.Message
	err := q.Order("id DESC").Limit(f.Limit).Find(&messages).Error
	return messages, err
}
