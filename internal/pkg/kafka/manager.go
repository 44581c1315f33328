package kafka

import (
	"Converge/internal/api/config"
	"context"
	log "log/slog"

	"github.com/IBM/sarama"
)

// ConsumerManager 管理所有 Kafka 消费者
type ConsumerManager struct {
	inboundConsumer sarama.ConsumerGroup
	inboundHandler  sarama.ConsumerGroupHandler

	receiptConsumer sarama.ConsumerGroup
	receiptHandler  sarama.ConsumerGroupHandler
}

// NewConsumerManager 构造函数
func NewConsumerManager(
	cfg *config.Config,
	inboundProcessor InboundProcessor,
	receiptProcessor ReceiptProcessor,
) (*ConsumerManager, error) {
	saramaCfg := newSaramaConfig(cfg.Kafka)

	inboundConsumer, err := sarama.NewConsumerGroup(cfg.Kafka.Brokers, cfg.KafkaInboundConsumer.GroupID, saramaCfg)
	if err != nil {
		return nil, err
	}
	inboundHandler := NewInboundHandler(inboundProcessor)

	receiptConsumer, err := sarama.NewConsumerGroup(cfg.Kafka.Brokers, cfg.KafkaReceiptConsumer.GroupID, saramaCfg)
	if err != nil {
		return nil, err
	}
	receiptHandler := NewReceiptHandler(receiptProcessor)

	return &ConsumerManager{
		inboundConsumer: inboundConsumer,
		inboundHandler:  inboundHandler,
		receiptConsumer: receiptConsumer,
		receiptHandler:  receiptHandler,
	}, nil
}

// Start 启动所有消费者
func (m *ConsumerManager) Start(ctx context.Context, cfg *config.Config) error {
	// 启动 Inbound Consumer
	go func() {
		topic := cfg.KafkaInboundConsumer.Topic
		log.Info("Inbound consumer started", "topic", topic)
		for {
			if err := m.inboundConsumer.Consume(ctx, []string{topic}, m.inboundHandler); err != nil {
				log.Error("Error from consumer", "err", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	// 启动 Receipt Consumer
	go func() {
		topic := cfg.KafkaReceiptConsumer.Topic
		log.Info("Receipt consumer started", "topic", topic)
		for {
			if err := m.receiptConsumer.Consume(ctx, []string{topic}, m.receiptHandler); err != nil {
				log.Error("Error from consumer", "err", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	<-ctx.Done()
	log.Info("Kafka Manager shutting down...")

	if err := m.inboundConsumer.Close(); err != nil {
		log.Error("Failed to close inbound consumer", "err", err)
	}
	if err := m.receiptConsumer.Close(); err != nil {
		log.Error("Failed to close receipt consumer", "err", err)
	}

	return nil
}
