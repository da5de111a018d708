package event_publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"go.uber.org/zap"
	"ordertracker/apps/ordertracker/internal/events"
	"ordertracker/apps/ordertracker/internal/model"
)

type OutboxRepository interface {
	GetUnsentEventsForProcessing(limit int) ([]model.OutboxEvent, error)
	MarkEventAsSent(eventID string) error
	MarkEventAsFailed(eventID string) error
}

type EventPublisher struct {
	logger        *zap.Logger
	kafkaProducer *kafka.Producer
	kafkaTopic    string
	repository    OutboxRepository
	batchSize     int
	send          func(msg *kafka.Message) error
	mu            sync.Mutex // Protects concurrent access to publishing operations
}

func NewEventPublisher(kafkaBroker, kafkaTopic string, logger *zap.Logger, repository OutboxRepository) (*EventPublisher, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": kafkaBroker,
		"acks":              "all",
		"retries":           3,
		"retry.backoff.ms":  100,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	ep := &EventPublisher{
		logger:        logger,
		kafkaProducer: producer,
		kafkaTopic:    kafkaTopic,
		repository:    repository,
		batchSize:     100,
	}
	ep.send = ep.produce
	return ep, nil
}

func (ep *EventPublisher) StartPublishing(ctx context.Context) {
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ep.publishUnsentEvents(); err != nil {
				ep.logger.Error("Error publishing events to Kafka", zap.Error(err))
			}
		}
	}
}

func (ep *EventPublisher) publishUnsentEvents() error {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	outboxEvents, err := ep.repository.GetUnsentEventsForProcessing(ep.batchSize)
	if err != nil {
		return err
	}

	successCount := 0
	for _, event := range outboxEvents {
		if err := ep.publishEvent(event); err != nil {
			ep.logger.Error("Failed to publish event to Kafka", zap.String("event_id", event.EventID), zap.String("event_type", event.EventType), zap.Error(err))
			if markErr := ep.repository.MarkEventAsFailed(event.EventID); markErr != nil {
				ep.logger.Error("Failed to mark event as failed", zap.String("event_id", event.EventID), zap.Error(markErr))
			}
			continue
		}

		if err := ep.repository.MarkEventAsSent(event.EventID); err != nil {
			// published but still marked processing: it will not be resent
			ep.logger.Error("Failed to mark event as sent", zap.String("event_id", event.EventID), zap.Error(err))
		} else {
			successCount++
		}
	}

	if successCount > 0 {
		ep.logger.Info("Published events to Kafka", zap.Int("success_count", successCount), zap.Int("attempted", len(outboxEvents)))
	}

	return nil
}

func (ep *EventPublisher) publishEvent(event model.OutboxEvent) error {
	msg, err := ep.buildMessage(event, time.Now())
	if err != nil {
		return err
	}
	return ep.send(msg)
}

// buildMessage keys messages by chain id so each chain's events stay ordered
func (ep *EventPublisher) buildMessage(event model.OutboxEvent, now time.Time) (*kafka.Message, error) {
	msgBytes, err := json.Marshal(events.OrderEvent{
		EventID:   event.EventID,
		EventType: event.EventType,
		ChainID:   event.ChainID,
		EventData: event.Payload,
		CreatedAt: event.CreatedAt,
		Timestamp: now,
	})
	if err != nil {
		return nil, err
	}

	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &ep.kafkaTopic, Partition: kafka.PartitionAny},
		Key:            []byte(event.ChainID.String()),
		Value:          msgBytes,
	}, nil
}

func (ep *EventPublisher) produce(msg *kafka.Message) error {
	deliveryChan := make(chan kafka.Event, 1)

	if err := ep.kafkaProducer.Produce(msg, deliveryChan); err != nil {
		return err
	}

	e := <-deliveryChan
	switch ev := e.(type) {
	case *kafka.Message:
		if ev.TopicPartition.Error != nil {
			return ev.TopicPartition.Error
		}
		return nil
	default:
		return fmt.Errorf("unexpected kafka event type: %T", e)
	}
}

func (ep *EventPublisher) Close() error {
	if ep.kafkaProducer != nil {
		ep.kafkaProducer.Flush(5000)
		ep.kafkaProducer.Close()
	}
	return nil
}
