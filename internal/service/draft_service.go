package service

import (
	"Converge/internal/api/dto"
	redisPkg "Converge/internal/pkg/redis"
	"context"
	"time"
)

// DraftService 草稿服务：按 (会话, 客服) 存储，后写覆盖
type DraftService interface {
	SaveDraft(ctx context.Context, convID, userID uint64, content string) (*dto.DraftDTO, error)
	GetDraft(ctx context.Context, convID, userID uint64) (*dto.DraftDTO, error)
	DeleteDraft(ctx context.Context, convID, userID uint64) error
}

type draftServiceImpl struct {
	store redisPkg.DraftStore
	now   func() time.Time
}

func NewDraftService(store redisPkg.DraftStore) DraftService {
	return &draftServiceImpl{
		store: store,
		now:   time.Now,
	}
}

func (s *draftServiceImpl) SaveDraft(ctx context.Context, convID, userID uint64, content string) (*dto.DraftDTO, error) {
	if content == "" {
		return nil, ErrParamInvalid
	}

	draft := &redisPkg.Draft{
		ConversationID: convID,
		UserID:         userID,
		Content:        content,
		UpdatedAt:      s.now(),
	}
	if err := s.store.Save(ctx, draft); err != nil {
		return nil, err
	}

	return &dto.DraftDTO{
		ConversationID: convID,
		UserID:         userID,
		Content:        content,
		UpdatedAt:      draft.UpdatedAt,
	}, nil
}

func (s *draftServiceImpl) GetDraft(ctx context.Context, convID, userID uint64) (*dto.DraftDTO, error) {
	draft, err := s.store.Get(ctx, convID, userID)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, nil
	}
	return &dto.DraftDTO{
		ConversationID: draft.ConversationID,
		UserID:         draft.UserID,
		Content:        draft.Content,
		UpdatedAt:      draft.UpdatedAt,
	}, nil
}

func (s *draftServiceImpl) DeleteDraft(ctx context.Context, convID, userID uint64) error {
	return s.store.Delete(ctx, convID, userID)
}
