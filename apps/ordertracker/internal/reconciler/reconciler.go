package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"go.uber.org/zap"
	"ordertracker/apps/ordertracker/internal/events"
	"ordertracker/apps/ordertracker/internal/model"
	"ordertracker/apps/ordertracker/internal/orders"
)

var ErrEmptyBatch = errors.New("status batch has no orders")

type Dispatcher interface {
	Dispatch(event orders.Event)
}

// StatusReconciler consumes order status batches from Kafka and merges them into the store
type StatusReconciler struct {
	logger        *zap.Logger
	kafkaConsumer *kafka.Consumer
	kafkaTopic    string
	store         Dispatcher
	chains        map[model.ChainID]bool
}

func NewStatusReconciler(kafkaBroker, kafkaTopic string, chains []model.ChainID, store Dispatcher, logger *zap.Logger) (*StatusReconciler, error) {
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": kafkaBroker,
		"group.id":          "order-status-reconciler",
		"auto.offset.reset": "earliest",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	r := newStatusReconciler(kafkaTopic, chains, store, logger)
	r.kafkaConsumer = consumer
	return r, nil
}

func newStatusReconciler(kafkaTopic string, chains []model.ChainID, store Dispatcher, logger *zap.Logger) *StatusReconciler {
	accepted := make(map[model.ChainID]bool, len(chains))
	for _, chainID := range chains {
		accepted[chainID] = true
	}
	return &StatusReconciler{
		logger:     logger,
		kafkaTopic: kafkaTopic,
		store:      store,
		chains:     accepted,
	}
}

func (r *StatusReconciler) Start(ctx context.Context) error {
	r.logger.Info("Starting order status reconciler...", zap.String("topic", r.kafkaTopic))

	if err := r.kafkaConsumer.Subscribe(r.kafkaTopic, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", r.kafkaTopic, err)
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		msg, err := r.kafkaConsumer.ReadMessage(time.Second)
		if err != nil {
			var kafkaErr kafka.Error
			if errors.As(err, &kafkaErr) && kafkaErr.Code() == kafka.ErrTimedOut {
				continue
			}
			r.logger.Error("Error reading message from Kafka", zap.Error(err))
			continue
		}

		if err := r.processMessage(msg.Value); err != nil {
			r.logger.Error("Error processing message",
				zap.String("topic", *msg.TopicPartition.Topic),
				zap.Int32("partition", msg.TopicPartition.Partition),
				zap.String("key", string(msg.Key)),
				zap.Error(err))
		}
	}
}

func (r *StatusReconciler) processMessage(value []byte) error {
	var batch events.OrderStatusBatch
	if err := json.Unmarshal(value, &batch); err != nil {
		return fmt.Errorf("failed to unmarshal order status batch: %w", err)
	}

	if len(r.chains) > 0 && !r.chains[batch.ChainID] {
		r.logger.Debug("Skipping status batch for untracked chain", zap.Stringer("chain_id", batch.ChainID))
		return nil
	}

	if len(batch.Orders) == 0 {
		return ErrEmptyBatch
	}

	for _, order := range batch.Orders {
		if order.ID == "" {
			return fmt.Errorf("order without id in status batch for chain %s", batch.ChainID)
		}
	}

	r.logger.Info("Processing order status batch",
		zap.Stringer("chain_id", batch.ChainID),
		zap.Int("orders", len(batch.Orders)))

	r.store.Dispatch(orders.AddOrUpdateOrdersBatch{ChainID: batch.ChainID, Orders: batch.Orders})
	return nil
}

func (r *StatusReconciler) Close() error {
	if r.kafkaConsumer != nil {
		return r.kafkaConsumer.Close()
	}
	return nil
}
