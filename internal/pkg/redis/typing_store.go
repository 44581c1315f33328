package redis

import (
	"Converge/internal/pkg/consts"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// TypingState 输入状态信号，主体为客服或客户二选一
type TypingState struct {
	ConversationID uint64    `json:"conversation_id"`
	UserID         uint64    `json:"user_id,omitempty"`
	CustomerID     uint64    `json:"customer_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// ActorKey 同一会话内每个主体只保留最新一条信号
func (s *TypingState) ActorKey() string {
	if s.UserID > 0 {
		return "u" + strconv.FormatUint(s.UserID, 10)
	}
	return "c" + strconv.FormatUint(s.CustomerID, 10)
}

type TypingStore interface {
	Set(ctx context.Context, state *TypingState, ttl time.Duration) error
	Clear(ctx context.Context, convID uint64, actorKey string) error
	List(ctx context.Context, convID uint64) ([]*TypingState, error)
}

type typingStoreImpl struct {
	client *redis.Client
}

func NewTypingStore(client *redis.Client) TypingStore {
	return &typingStoreImpl{client: client}
}

func typingKey(convID uint64, actorKey string) string {
	return fmt.Sprintf("%s%d:%s", consts.TypingKey, convID, actorKey)
}

// Set 写入信号并附带 TTL，Redis 过期与读取侧时间戳校验双重兜底
func (s *typingStoreImpl) Set(ctx context.Context, state *TypingState, ttl time.Duration) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, typingKey(state.ConversationID, state.ActorKey()), data, ttl).Err()
}

func (s *typingStoreImpl) Clear(ctx context.Context, convID uint64, actorKey string) error {
	return s.client.Del(ctx, typingKey(convID, actorKey)).Err()
}

func (s *typingStoreImpl) List(ctx context.Context, convID uint64) ([]*TypingState, error) {
	pattern := fmt.Sprintf("%s%d:*", consts.TypingKey, convID)
	keys, err := s.client.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	states := make([]*TypingState, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var state TypingState
		if err := json.Unmarshal([]byte(str), &state); err != nil {
			continue
		}
		states = append(states, &state)
	}
	return states, nil
}
