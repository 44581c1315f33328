package redis

import (
	"Converge/internal/pkg/consts"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// Draft 消息草稿，按 (会话, 客服) 维度存储，后写覆盖
type Draft struct {
	ConversationID uint64    `json:"conversation_id"`
	UserID         uint64    `json:"user_id"`
	Content        string    `json:"content"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type DraftStore interface {
	Save(ctx context.Context, draft *Draft) error
	Get(ctx context.Context, convID, userID uint64) (*Draft, error)
	Delete(ctx context.Context, convID, userID uint64) error
}

type draftStoreImpl struct {
	client *redis.Client
}

func NewDraftStore(client *redis.Client) DraftStore {
	return &draftStoreImpl{client: client}
}

func draftKey(convID, userID uint64) string {
	return fmt.Sprintf("%s%d:%d", consts.DraftKey, convID, userID)
}

func (s *draftStoreImpl) Save(ctx context.Context, draft *Draft) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, draftKey(draft.ConversationID, draft.UserID), data, 0).Err()
}

func (s *draftStoreImpl) Get(ctx context.Context, convID, userID uint64) (*Draft, error) {
	data, err := s.client.Get(ctx, draftKey(convID, userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var draft Draft
	if err := json.Unmarshal([]byte(data), &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

func (s *draftStoreImpl) Delete(ctx context.Context, convID, userID uint64) error {
	return s.client.Del(ctx, draftKey(convID, userID)).Err()
}
