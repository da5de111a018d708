package repository

import (
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"ordertracker/apps/ordertracker/internal/model"
	"ordertracker/apps/ordertracker/internal/orders"
)

type ChainStateRecorder interface {
	SaveChainStateWithEvent(chainID model.ChainID, chain model.ChainState, event model.OutboxEvent) error
}

// NewStoreRecorder returns a store listener that snapshots the touched chain
// and queues the event in the outbox, atomically. Failures are logged; the
// in-memory store stays authoritative.
func NewStoreRecorder(states ChainStateRecorder, logger *zap.Logger) orders.Listener {
	return func(event orders.Event, chain model.ChainState) {
		chainID := event.Chain()

		payload, err := json.Marshal(event)
		if err != nil {
			logger.Error("Failed to encode order event", zap.String("event_type", event.Type()), zap.Error(err))
			return
		}

		outboxEvent := model.OutboxEvent{
			EventID:   uuid.New().String(),
			EventType: event.Type(),
			ChainID:   chainID,
			Payload:   payload,
			Status:    OutboxStatusUnsent,
		}
		if err := states.SaveChainStateWithEvent(chainID, chain, outboxEvent); err != nil {
			logger.Error("Failed to persist order state",
				zap.Stringer("chain_id", chainID),
				zap.String("event_id", outboxEvent.EventID),
				zap.String("event_type", event.Type()),
				zap.Error(err))
		}
	}
}
