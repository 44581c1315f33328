package kafka

import (
	"context"
	log "log/slog"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
)

// ReceiptProcessor 投递回执处理入口，由投递追踪服务实现。
// 返回的错误应只包含可重试的基础设施错误，状态语义冲突需在内部消化。
type ReceiptProcessor interface {
	ApplyReceipt(ctx context.Context, receipt *DeliveryReceipt) error
}

type ReceiptHandler struct {
	processor ReceiptProcessor
}

func NewReceiptHandler(processor ReceiptProcessor) *ReceiptHandler {
	return &ReceiptHandler{processor: processor}
}

func (s *ReceiptHandler) Setup(sarama.ConsumerGroupSession) error {
	log.Info("receipt consumer setup")
	return nil
}

func (s *ReceiptHandler) Cleanup(sarama.ConsumerGroupSession) error {
	log.Info("receipt consumer cleanup")
	return nil
}

func (s *ReceiptHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	log.Info("topic-receipt consume claim")
	err := pullMessageBatch(session, claim, s.logic)
	if err != nil {
		log.Error("topic-receipt process batch error", "err", err)
		return err
	}
	log.Info("topic-receipt consume claim end")
	return nil
}

func (s *ReceiptHandler) logic(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var receipt DeliveryReceipt
	if err := json.Unmarshal(msg.Value, &receipt); err != nil {
		log.ErrorContext(ctx, "unmarshal receipt error", "err", err)
		return nil
	}
	return s.processor.ApplyReceipt(ctx, &receipt)
}
