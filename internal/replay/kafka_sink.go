package replay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
)

// KafkaSinkConfig holds the producer configuration for streaming replay
// records onto a Kafka topic, where a separate offline pipeline fans
// them out to long-term storage and live spectator/replay consumers.
type KafkaSinkConfig struct {
	Brokers        []string
	Topic          string
	MaxRetries     int
	RetryBackoff   time.Duration
	FlushFrequency time.Duration
	FlushMessages  int
	RequiredAcks   sarama.RequiredAcks
	Compression    sarama.CompressionCodec
}

// KafkaSink publishes Records to Kafka asynchronously. Errors surfaced
// by the broker are counted rather than returned to the caller, since
// Recorder already treats Write as fire-and-forget.
type KafkaSink struct {
	producer sarama.AsyncProducer
	topic    string

	mu     sync.Mutex
	closed bool
	failed int64
}

// NewKafkaSink starts an async Sarama producer and a background error
// collector.
func NewKafkaSink(cfg KafkaSinkConfig) (*KafkaSink, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = false
	saramaCfg.Producer.Return.Errors = true
	saramaCfg.Producer.Retry.Max = cfg.MaxRetries
	saramaCfg.Producer.Retry.Backoff = cfg.RetryBackoff
	saramaCfg.Producer.Flush.Frequency = cfg.FlushFrequency
	saramaCfg.Producer.Flush.Messages = cfg.FlushMessages
	saramaCfg.Producer.RequiredAcks = cfg.RequiredAcks
	saramaCfg.Producer.Compression = cfg.Compression

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("replay: create kafka producer: %w", err)
	}

	s := &KafkaSink{producer: producer, topic: cfg.Topic}
	go s.handleErrors()
	return s, nil
}

func (s *KafkaSink) handleErrors() {
	for range s.producer.Errors() {
		s.mu.Lock()
		s.failed++
		s.mu.Unlock()
	}
}

// Write marshals rec to JSON and enqueues it for async delivery, keyed
// by game id so all of one table's events land on the same partition
// and preserve their sequence order.
func (s *KafkaSink) Write(_ context.Context, rec Record) error {
	data, err := rec.Marshal()
	if err != nil {
		return fmt.Errorf("replay: marshal record: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(rec.GameID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(rec.Type)},
		},
		Timestamp: time.UnixMilli(rec.Timestamp),
	}

	s.producer.Input() <- msg
	return nil
}

// Failed reports how many messages Kafka rejected after delivery.
func (s *KafkaSink) Failed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

// Close shuts the producer down gracefully.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.producer.Close()
}
