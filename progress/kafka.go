package progress

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
)

// NewKafkaProducer creates a sync producer that waits for all in-sync replicas.
func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = "wfgen"
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return producer, nil
}

// KafkaSink writes events as JSON to a topic, keyed by request id so one
// generation's events stay ordered within a partition.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

// NewKafka creates a Kafka sink. Wrap it with Async.
func NewKafka(producer sarama.SyncProducer, topic string, logger *slog.Logger) *KafkaSink {
	if topic == "" {
		topic = "wfgen.progress"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaSink{producer: producer, topic: topic, logger: logger}
}

// Report sends e. Failures are logged.
func (s *KafkaSink) Report(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		s.logger.Error("marshal progress event", "error", err)
		return
	}
	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(e.RequestID),
		Value: sarama.ByteEncoder(data),
	}
	if _, _, err := s.producer.SendMessage(msg); err != nil {
		s.logger.Warn("send progress event to Kafka", "topic", s.topic, "error", err)
	}
}

// Close closes the underlying producer.
func (s *KafkaSink) Close() error {
	return s.producer.Close()
}
