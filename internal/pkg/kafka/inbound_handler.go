package kafka

import (
	"context"
	log "log/slog"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
)

// InboundProcessor 入站消息处理入口，由服务层实现
type InboundProcessor interface {
	ReceiveInbound(ctx context.Context, msg *InboundMessage) error
}

type InboundHandler struct {
	processor InboundProcessor
}

func NewInboundHandler(processor InboundProcessor) *InboundHandler {
	return &InboundHandler{processor: processor}
}

func (s *InboundHandler) Setup(sarama.ConsumerGroupSession) error {
	log.Info("inbound consumer setup")
	return nil
}

func (s *InboundHandler) Cleanup(sarama.ConsumerGroupSession) error {
	log.Info("inbound consumer cleanup")
	return nil
}

func (s *InboundHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	log.Info("topic-inbound consume claim")
	err := pullMessageBatch(session, claim, s.logic)
	if err != nil {
		log.Error("topic-inbound process batch error", "err", err)
		return err
	}
	log.Info("topic-inbound consume claim end")
	return nil
}

func (s *InboundHandler) logic(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var inbound InboundMessage
	if err := json.Unmarshal(msg.Value, &inbound); err != nil {
		// 坏消息无法通过重试修复，记录后跳过
		log.ErrorContext(ctx, "unmarshal inbound message error", "err", err)
		return nil
	}
	return s.processor.ReceiveInbound(ctx, &inbound)
}
