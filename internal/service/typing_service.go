package service

import (
	"Converge/internal/api/dto"
	redisPkg "Converge/internal/pkg/redis"
	"context"
	log "log/slog"
	"time"
)

// TypingService 输入状态通道：短 TTL 信号，无需确认，过期自动消失
type TypingService interface {
	SetTyping(ctx context.Context, convID uint64, req *dto.TypingReq) error
	GetTyping(ctx context.Context, convID uint64) ([]*dto.TypingStateDTO, error)
}

type typingServiceImpl struct {
	store     redisPkg.TypingStore
	publisher EventPublisher
	ttl       time.Duration
	now       func() time.Time
}

func NewTypingService(store redisPkg.TypingStore, publisher EventPublisher, ttl time.Duration) TypingService {
	return &typingServiceImpl{
		store:     store,
		publisher: publisher,
		ttl:       ttl,
		now:       time.Now,
	}
}

func (s *typingServiceImpl) SetTyping(ctx context.Context, convID uint64, req *dto.TypingReq) error {
	// 主体必须是客服或客户，二者有且仅有其一
	if (req.UserID == 0) == (req.CustomerID == 0) {
		return ErrTypingActorInvalid
	}

	state := &redisPkg.TypingState{
		ConversationID: convID,
		UserID:         req.UserID,
		CustomerID:     req.CustomerID,
		Timestamp:      s.now(),
	}

	var err error
	if req.IsTyping {
		err = s.store.Set(ctx, state, s.ttl)
	} else {
		err = s.store.Clear(ctx, convID, state.ActorKey())
	}
	if err != nil {
		return err
	}

	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		pubErr := s.publisher.PublishToConversation(pubCtx, convID, &PushEvent{
			Type: EventTyping,
			Payload: &dto.TypingStateDTO{
				ConversationID: convID,
				UserID:         req.UserID,
				CustomerID:     req.CustomerID,
				IsTyping:       req.IsTyping,
				Timestamp:      state.Timestamp,
			},
		})
		if pubErr != nil {
			log.Error("Failed to publish typing event", "conv_id", convID, "err", pubErr)
		}
	}()

	return nil
}

// GetTyping Redis TTL 之外再按时间戳过滤一次，过期信号绝不回流
func (s *typingServiceImpl) GetTyping(ctx context.Context, convID uint64) ([]*dto.TypingStateDTO, error) {
	states, err := s.store.List(ctx, convID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	res := make([]*dto.TypingStateDTO, 0, len(states))
	for _, state := range states {
		if !state.Timestamp.Add(s.ttl).After(now) {
			continue
		}
		res = append(res, &dto.TypingStateDTO{
			ConversationID: state.ConversationID,
			UserID:         state.UserID,
			CustomerID:     state.CustomerID,
			IsTyping:       true,
			Timestamp:      state.Timestamp,
		})
	}
	return res, nil
}
