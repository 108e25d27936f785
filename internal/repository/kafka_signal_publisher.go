package repository

import (
	"context"
	"fmt"

	"LevelScan/internal/domain/models"
	domrepo "LevelScan/internal/domain/repository"
	pkgkafka "LevelScan/pkg/kafka"
)

// KafkaSignalPublisher fans persisted signal batches out to a Kafka topic,
// keyed by instrument so per-symbol ordering survives partitioning.
type KafkaSignalPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

var _ domrepo.SignalPublisher = (*KafkaSignalPublisher)(nil)

func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic}
}

func (p *KafkaSignalPublisher) PublishBatch(ctx context.Context, signals []models.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(signals))
	for _, sig := range signals {
		msgs = append(msgs, pkgkafka.Message{
			Key:   []byte(sig.Symbol),
			Value: sig,
		})
	}
	if err := p.producer.PublishBatch(ctx, p.topic, msgs); err != nil {
		return fmt.Errorf("publish signals: %w", err)
	}
	return nil
}

func (p *KafkaSignalPublisher) Close() error {
	return p.producer.Close()
}
