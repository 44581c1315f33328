package kafka

import (
	"Converge/internal/api/config"
	log "log/slog"
	"strconv"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
)

// Producer 出站消息生产者，交由渠道适配器消费后投递到各平台
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewProducer(cfg *config.Config) (*Producer, error) {
	saramaCfg := newSaramaConfig(cfg.Kafka)
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, saramaCfg)
	if err != nil {
		return nil, err
	}

	return &Producer{
		producer: producer,
		topic:    cfg.KafkaOutbound.Topic,
	}, nil
}

// PublishOutbound 按会话 ID 分区，保证同一会话的出站消息有序
func (p *Producer) PublishOutbound(msg *OutboundMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(msg.ConversationID, 10)),
		Value: sarama.ByteEncoder(data),
	})
	return err
}

func (p *Producer) Close() {
	if err := p.producer.Close(); err != nil {
		log.Error("Failed to close kafka producer", "err", err)
	}
}
