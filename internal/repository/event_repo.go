package repository

import (
	"Converge/internal/model"
	"context"

	"gorm.io/gorm"
)

type EventRepo interface {
	CreateEvent(ctx context.Context, event *model.ConversationEvent) error
	ListByConversation(ctx context.Context, convID uint64, limit int) ([]*model.ConversationEvent, error)
}

type eventRepoImpl struct {
	db *gorm.DB
}

func NewEventRepo(db *gorm.DB) EventRepo {
	return &eventRepoImpl{db: db}
}

func (s *eventRepoImpl) CreateEvent(ctx context.Context, event *model.ConversationEvent) error {
	return s.db.WithContext(ctx).Create(event).Error
}

func (s *eventRepoImpl) ListByConversation(ctx context.Context, convID uint64, limit int) ([]*model.ConversationEvent, error) {
	var events []*model.ConversationEvent
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", convID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}
