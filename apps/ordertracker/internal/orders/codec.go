package orders

import (
	"encoding/json"
	"fmt"

	"ordertracker/apps/ordertracker/internal/model"
)

// persistedChainState tolerates snapshots written by older clients, which may
// lack partitions or the watermark entirely.
type persistedChainState struct {
	Pending          model.OrdersMap `json:"pending"`
	Fulfilled        model.OrdersMap `json:"fulfilled"`
	Expired          model.OrdersMap `json:"expired"`
	Cancelled        model.OrdersMap `json:"cancelled"`
	LastCheckedBlock *uint64         `json:"lastCheckedBlock"`
}

func EncodeState(state model.State) ([]byte, error) {
	return json.Marshal(state)
}

// DecodeState parses the persisted {chainId: {pending, fulfilled, expired, cancelled, lastCheckedBlock}} layout
func DecodeState(data []byte) (model.State, error) {
	var raw map[model.ChainID]*persistedChainState
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode order state: %w", err)
	}

	state := make(model.State, len(raw))
	for chainID, persisted := range raw {
		if persisted == nil {
			continue
		}
		state[chainID] = fromPersisted(chainID, persisted)
	}
	return state, nil
}

// DecodeChainJSON parses a single chain entry of the persisted layout
func DecodeChainJSON(chainID model.ChainID, data []byte) (*model.ChainState, error) {
	var persisted persistedChainState
	if err := json.Unmarshal(data, &persisted); err != nil {
		return nil, fmt.Errorf("failed to decode state for chain %s: %w", chainID, err)
	}
	return fromPersisted(chainID, &persisted), nil
}

func fromPersisted(chainID model.ChainID, persisted *persistedChainState) *model.ChainState {
	lastCheckedBlock := DeploymentBlock(chainID)
	if persisted.LastCheckedBlock != nil {
		lastCheckedBlock = *persisted.LastCheckedBlock
	}

	chain := &model.ChainState{
		Pending:          persisted.Pending,
		Fulfilled:        persisted.Fulfilled,
		Expired:          persisted.Expired,
		Cancelled:        persisted.Cancelled,
		LastCheckedBlock: lastCheckedBlock,
	}
	ensureChain(model.State{chainID: chain}, chainID)

	for _, status := range []model.OrderStatus{
		model.OrderStatusPending,
		model.OrderStatusFulfilled,
		model.OrderStatusExpired,
		model.OrderStatusCancelled,
	} {
		for id, obj := range chain.Partition(status) {
			if obj.ID == "" {
				obj.ID = id
				chain.Partition(status)[id] = obj
			}
		}
	}

	return chain
}
