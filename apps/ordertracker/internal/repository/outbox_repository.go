package repository

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"ordertracker/apps/ordertracker/internal/model"
)

const (
	OutboxStatusUnsent     = "unsent"
	OutboxStatusProcessing = "processing"
	OutboxStatusSent       = "sent"
)

type OutboxRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewOutboxRepository(db *sql.DB, logger *zap.Logger) *OutboxRepository {
	return &OutboxRepository{db: db, logger: logger}
}

// execer is satisfied by both *sql.DB and *sql.Tx
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func insertOutboxEvent(exec execer, event model.OutboxEvent) error {
	status := event.Status
	if status == "" {
		status = OutboxStatusUnsent
	}

	_, err := exec.Exec(`
		INSERT INTO event_outbox (event_id, event_type, chain_id, payload, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING
	`, event.EventID, event.EventType, uint64(event.ChainID), []byte(event.Payload), status)
	if err != nil {
		return fmt.Errorf("failed to store outbox event: %w", err)
	}
	return nil
}

// GetUnsentEventsForProcessing claims up to limit unsent events by moving them
// to processing. Rows locked by another publisher are skipped.
func (r *OutboxRepository) GetUnsentEventsForProcessing(limit int) ([]model.OutboxEvent, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() // Will be ignored if tx.Commit() succeeds

	rows, err := tx.Query(`
		SELECT event_id, event_type, chain_id, payload, status, created_at
		FROM event_outbox
		WHERE status = 'unsent'
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		events   []model.OutboxEvent
		eventIDs []string
	)
	for rows.Next() {
		var (
			event   model.OutboxEvent
			chainID uint64
		)
		if err := rows.Scan(&event.EventID, &event.EventType, &chainID, &event.Payload, &event.Status, &event.CreatedAt); err != nil {
			return nil, err
		}
		event.ChainID = model.ChainID(chainID)
		events = append(events, event)
		eventIDs = append(eventIDs, event.EventID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if len(eventIDs) > 0 {
		_, err = tx.Exec(`
			UPDATE event_outbox
			SET status = 'processing'
			WHERE event_id = ANY($1::uuid[]) AND status = 'unsent'
		`, pq.Array(eventIDs))
		if err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	return events, nil
}

func (r *OutboxRepository) MarkEventAsSent(eventID string) error {
	_, err := r.db.Exec(`
		UPDATE event_outbox
		SET status = 'sent'
		WHERE event_id = $1
	`, eventID)
	return err
}

// MarkEventAsFailed returns a claimed event to the unsent pool for a retry
func (r *OutboxRepository) MarkEventAsFailed(eventID string) error {
	_, err := r.db.Exec(`
		UPDATE event_outbox
		SET status = 'unsent'
		WHERE event_id = $1 AND status = 'processing'
	`, eventID)
	return err
}
