package events

import (
	"encoding/json"
	"time"

	"ordertracker/apps/ordertracker/internal/model"
)

// OrderEvent is published for every transition applied to the order store
type OrderEvent struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	ChainID   model.ChainID   `json:"chain_id"`
	EventData json.RawMessage `json:"event_data"`
	CreatedAt time.Time       `json:"created_at"`
	Timestamp time.Time       `json:"timestamp"`
}

// OrderStatusBatch is an inbound feed message carrying relay order statuses
type OrderStatusBatch struct {
	ChainID model.ChainID `json:"chain_id"`
	Orders  []model.Order `json:"orders"`
}
