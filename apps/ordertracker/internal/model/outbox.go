package model

import (
	"encoding/json"
	"time"
)

type OutboxEvent struct {
	EventID   string          `db:"event_id"`
	EventType string          `db:"event_type"`
	ChainID   ChainID         `db:"chain_id"`
	Payload   json.RawMessage `db:"payload"`
	Status    string          `db:"status"`
	CreatedAt time.Time       `db:"created_at"`
}
