package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"ordertracker/apps/ordertracker/internal/model"
	"ordertracker/apps/ordertracker/internal/orders"
)

// StateRepository keeps one JSONB snapshot of the order store per chain
type StateRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewStateRepository(db *sql.DB, logger *zap.Logger) *StateRepository {
	return &StateRepository{db: db, logger: logger}
}

// SaveChainStateWithEvent writes the chain snapshot and its outbox event in one transaction
func (r *StateRepository) SaveChainStateWithEvent(chainID model.ChainID, chain model.ChainState, event model.OutboxEvent) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be ignored if tx.Commit() succeeds

	if err := upsertChainState(tx, chainID, chain); err != nil {
		return err
	}
	if err := insertOutboxEvent(tx, event); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order state: %w", err)
	}

	r.logger.Debug("Persisted order state", zap.Stringer("chain_id", chainID), zap.String("event_id", event.EventID), zap.String("event_type", event.EventType))
	return nil
}

func upsertChainState(exec execer, chainID model.ChainID, chain model.ChainState) error {
	blob, err := json.Marshal(chain)
	if err != nil {
		return fmt.Errorf("failed to encode state for chain %s: %w", chainID, err)
	}

	_, err = exec.Exec(`
		INSERT INTO order_state (chain_id, state, last_checked_block, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (chain_id) DO UPDATE SET
			state = EXCLUDED.state,
			last_checked_block = EXCLUDED.last_checked_block,
			updated_at = NOW()
	`, uint64(chainID), blob, chain.LastCheckedBlock)
	if err != nil {
		return fmt.Errorf("failed to save state for chain %s: %w", chainID, err)
	}

	return nil
}

// LoadState reads every persisted chain. Old or partial snapshots are
// completed the same way the store completes them on first touch.
func (r *StateRepository) LoadState() (model.State, error) {
	rows, err := r.db.Query(`SELECT chain_id, state FROM order_state`)
	if err != nil {
		return nil, fmt.Errorf("failed to load order state: %w", err)
	}
	defer rows.Close()

	state := make(model.State)
	for rows.Next() {
		var (
			chainID uint64
			blob    []byte
		)
		if err := rows.Scan(&chainID, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan order state: %w", err)
		}

		chain, err := orders.DecodeChainJSON(model.ChainID(chainID), blob)
		if err != nil {
			r.logger.Error("Discarding unreadable order state", zap.Uint64("chain_id", chainID), zap.Error(err))
			continue
		}
		state[model.ChainID(chainID)] = chain
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order state: %w", err)
	}

	r.logger.Info("Loaded order state", zap.Int("chains", len(state)))
	return state, nil
}
