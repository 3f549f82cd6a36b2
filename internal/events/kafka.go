package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	kafkaGo "github.com/segmentio/kafka-go"
)

type KafkaPublisher struct {
	writer      *kafkaGo.Writer
	topicPrefix string
}

// NewKafkaPublisher writes each event type to its own topic, named
// topicPrefix + eventType.
func NewKafkaPublisher(brokers []string, topicPrefix string) *KafkaPublisher {
	return &KafkaPublisher{
		// events are written one per commit, so batches are flushed almost
		// immediately rather than after the writer's 1s default
		writer: &kafkaGo.Writer{
			Addr:                   kafkaGo.TCP(brokers...),
			Balancer:               &kafkaGo.LeastBytes{},
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
			WriteTimeout:           5 * time.Second,
		},
		topicPrefix: topicPrefix,
	}
}

func (p *KafkaPublisher) Topic(eventType string) string {
	return p.topicPrefix + eventType
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, key string, payload any) error {
	body, err := json.Marshal(Envelope{
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafkaGo.Message{
		Topic: p.Topic(eventType),
		Key:   []byte(key),
		Value: body,
	}); err != nil {
		slog.Error("Error publishing event", "topic", p.Topic(eventType), "key", key, "err", err)
		return err
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// ParseBrokers splits a comma separated broker list.
func ParseBrokers(raw string) []string {
	brokers := make([]string, 0, 4)
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
