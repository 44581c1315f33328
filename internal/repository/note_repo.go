package repository

import (
	"Converge/internal/model"
	"context"

	"gorm.io/gorm"
)

type NoteRepo interface {
	CreateNote(ctx context.Context, note *model.ConversationNote) error
	GetNote(ctx context.Context, id uint64) (*model.ConversationNote, error)
	ListByConversation(ctx context.Context, convID uint64) ([]*model.ConversationNote, error)
	DeleteNote(ctx context.Context, id uint64) error
}

type noteRepoImpl struct {
	db *gorm.DB
}

func NewNoteRepo(db *gorm.DB) NoteRepo {
	return &noteRepoImpl{db: db}
}

func (s *noteRepoImpl) CreateNote(ctx context.Context, note *model.ConversationNote) error {
	return s.db.WithContext(ctx).Create(note).Error
}

func (s *noteRepoImpl) GetNote(ctx context.Context, id uint64) (*model.ConversationNote, error) {
	var note model.ConversationNote
	err := s.db.WithContext(ctx).First(&note, id).Error
	if err != nil {
		return nil, err
	}
	return &note, nil
}

func (s *noteRepoImpl) ListByConversation(ctx context.Context, convID uint64) ([]*model.ConversationNote, error) {
	var notes []*model.ConversationNote
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", convID).
		Order("created_at ASC").
		Find(&notes).Error
	return notes, err
}

func (s *noteRepoImpl) DeleteNote(ctx context.Context, id uint64) error {
	return s.db.WithContext(ctx).Delete(&model.ConversationNote{}, id).Error
}
