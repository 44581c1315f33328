package service

import (
	"Converge/internal/pkg/consts"
	"Converge/internal/pkg/kafka"
	"Converge/internal/pkg/mongo"
	"context"
	"errors"
	log "log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongoDB "go.mongodb.org/mongo-driver/mongo"
)

// statusRank 正常生命周期的先后次序，failed 不在序列内单独判定
var statusRank = map[string]int{
	consts.MessageStatusSending:   0,
	consts.MessageStatusSent:      1,
	consts.MessageStatusDelivered: 2,
	consts.MessageStatusRead:      3,
}

// DeliveryService 投递追踪：消息状态单调推进，落后回执静默忽略，矛盾回执报错
type DeliveryService interface {
	RecordSent(ctx context.Context, msgID string) error
	RecordDelivered(ctx context.Context, msgID string, at time.Time) error
	RecordRead(ctx context.Context, msgID string, at time.Time) error
	RecordFailed(ctx context.Context, msgID, reason string) error
	MarkConversationMessagesRead(ctx context.Context, convID, uptoSeq uint64) error
	ApplyReceipt(ctx context.Context, receipt *kafka.DeliveryReceipt) error
}

type deliveryServiceImpl struct {
	messageRepo mongo.MessageRepo
	publisher   EventPublisher
	now         func() time.Time
}

func NewDeliveryService(messageRepo mongo.MessageRepo, publisher EventPublisher) DeliveryService {
	return &deliveryServiceImpl{
		messageRepo: messageRepo,
		publisher:   publisher,
		now:         time.Now,
	}
}

func (s *deliveryServiceImpl) RecordSent(ctx context.Context, msgID string) error {
	return s.transition(ctx, msgID, consts.MessageStatusSent,
		[]string{consts.MessageStatusSending}, bson.M{})
}

func (s *deliveryServiceImpl) RecordDelivered(ctx context.Context, msgID string, at time.Time) error {
	if at.IsZero() {
		at = s.now()
	}
	return s.transition(ctx, msgID, consts.MessageStatusDelivered,
		[]string{consts.MessageStatusSent}, bson.M{"delivered_at": at})
}

// RecordRead 允许跳过 delivered (部分渠道不上报送达)，deliveredAt 保持缺省
func (s *deliveryServiceImpl) RecordRead(ctx context.Context, msgID string, at time.Time) error {
	if at.IsZero() {
		at = s.now()
	}
	return s.transition(ctx, msgID, consts.MessageStatusRead,
		[]string{consts.MessageStatusSent, consts.MessageStatusDelivered}, bson.M{"read_at": at})
}

func (s *deliveryServiceImpl) RecordFailed(ctx context.Context, msgID, reason string) error {
	return s.transition(ctx, msgID, consts.MessageStatusFailed,
		[]string{consts.MessageStatusSending}, bson.M{"fail_reason": reason})
}

// transition 条件更新推进状态；未命中时重读判定是落后回执还是矛盾回执
func (s *deliveryServiceImpl) transition(ctx context.Context, msgID, to string, allowedFrom []string, set bson.M) error {
	ok, err := s.messageRepo.UpdateStatusIf(ctx, msgID, to, allowedFrom, set)
	if err != nil {
		return err
	}

	if !ok {
		current, err := s.messageRepo.GetMessage(ctx, msgID)
		if err != nil {
			if errors.Is(err, mongoDB.ErrNoDocuments) {
				return ErrMessageNotFound
			}
			return err
		}
		if s.isBehind(current.Status, to) {
			// 重复或乱序到达的旧回执，幂等忽略
			return nil
		}
		return ErrInvalidTransition
	}

	s.notifyStatus(ctx, msgID, to)
	return nil
}

// isBehind 判定目标状态是否不晚于当前状态 (即回执落后于事实)
func (s *deliveryServiceImpl) isBehind(current, to string) bool {
	if to == consts.MessageStatusFailed || current == consts.MessageStatusFailed {
		return current == to
	}
	return statusRank[current] >= statusRank[to]
}

// MarkConversationMessagesRead 批量推进入站消息为已读，由客服查看会话时触发
func (s *deliveryServiceImpl) MarkConversationMessagesRead(ctx context.Context, convID, uptoSeq uint64) error {
	modified, err := s.messageRepo.MarkConversationRead(ctx, convID, uptoSeq, s.now())
	if err != nil {
		return err
	}
	if modified > 0 {
		s.publishToConversation(convID, &PushEvent{
			Type:    EventConversationUpdated,
			Payload: map[string]uint64{"conversation_id": convID},
		})
	}
	return nil
}

// ApplyReceipt Kafka 回执入口。语义冲突在此消化，避免消费侧无效重试。
func (s *deliveryServiceImpl) ApplyReceipt(ctx context.Context, receipt *kafka.DeliveryReceipt) error {
	var err error
	switch receipt.Status {
	case consts.MessageStatusSent:
		err = s.RecordSent(ctx, receipt.MessageID)
	case consts.MessageStatusDelivered:
		err = s.RecordDelivered(ctx, receipt.MessageID, receipt.Timestamp)
	case consts.MessageStatusRead:
		err = s.RecordRead(ctx, receipt.MessageID, receipt.Timestamp)
	case consts.MessageStatusFailed:
		err = s.RecordFailed(ctx, receipt.MessageID, receipt.Reason)
	default:
		log.WarnContext(ctx, "unknown receipt status", "status", receipt.Status, "msg_id", receipt.MessageID)
		return nil
	}

	if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrMessageNotFound) {
		log.WarnContext(ctx, "receipt rejected", "msg_id", receipt.MessageID, "status", receipt.Status, "err", err)
		return nil
	}
	return err
}

func (s *deliveryServiceImpl) notifyStatus(ctx context.Context, msgID, status string) {
	msg, err := s.messageRepo.GetMessage(ctx, msgID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load message for status push", "msg_id", msgID, "err", err)
		return
	}
	s.publishToConversation(msg.ConversationID, &PushEvent{
		Type: EventMessageStatus,
		Payload: map[string]interface{}{
			"message_id":      msgID,
			"conversation_id": msg.ConversationID,
			"status":          status,
		},
	})
}

func (s *deliveryServiceImpl) publishToConversation(convID uint64, event *PushEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.publisher.PublishToConversation(ctx, convID, event); err != nil {
			log.Error("Failed to publish message status", "conv_id", convID, "err", err)
		}
	}()
}
