package orders

import (
	"sort"
	"sync"

	"go.uber.org/zap"
	"ordertracker/apps/ordertracker/internal/model"
)

// Listener is notified after every dispatch with a copy of the affected chain
type Listener func(event Event, chain model.ChainState)

// Store serializes events into the order state
type Store struct {
	mu        sync.Mutex
	state     model.State
	listeners []Listener
	logger    *zap.Logger
}

// NewStore creates a store, optionally hydrated from previously persisted state
func NewStore(initial model.State, logger *zap.Logger) *Store {
	if initial == nil {
		initial = model.State{}
	}
	return &Store{state: initial, logger: logger}
}

// Subscribe registers a listener. Listeners run synchronously, in dispatch order.
func (s *Store) Subscribe(listener Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

func (s *Store) Dispatch(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	Reduce(s.state, event, s.logger)

	s.logger.Debug("Dispatched order event",
		zap.String("event_type", event.Type()),
		zap.Stringer("chain_id", event.Chain()))

	if len(s.listeners) == 0 {
		return
	}

	chain := s.state[event.Chain()].Clone()
	for _, listener := range s.listeners {
		listener(event, chain)
	}
}

// Chain returns a copy of the chain's state. Unknown chains yield empty partitions
// and the deployment-block watermark, without touching the stored state.
func (s *Store) Chain(chainID model.ChainID) model.ChainState {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain, ok := s.state[chainID]
	if !ok || chain == nil {
		return *newChainState(DeploymentBlock(chainID))
	}

	snapshot := chain.Clone()
	ensureChain(model.State{chainID: &snapshot}, chainID)
	return snapshot
}

func (s *Store) Snapshot() model.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(model.State, len(s.state))
	for chainID, chain := range s.state {
		if chain == nil {
			continue
		}
		snapshot := chain.Clone()
		out[chainID] = &snapshot
	}
	return out
}

// Order looks id up across all partitions of the chain
func (s *Store) Order(chainID model.ChainID, id model.OrderID) (*model.OrderObject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain, ok := s.state[chainID]
	if !ok || chain == nil {
		return nil, false
	}

	for _, partition := range []model.OrdersMap{chain.Pending, chain.Fulfilled, chain.Expired, chain.Cancelled} {
		if obj, ok := partition[id]; ok {
			found := obj.Clone()
			return &found, true
		}
	}
	return nil, false
}

// PendingOwners returns the distinct owners of pending orders, sorted
func (s *Store) PendingOwners(chainID model.ChainID) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain, ok := s.state[chainID]
	if !ok || chain == nil {
		return nil
	}

	seen := make(map[string]struct{})
	owners := make([]string, 0)
	for _, obj := range chain.Pending {
		if obj.Order.Owner == "" {
			continue
		}
		if _, dup := seen[obj.Order.Owner]; dup {
			continue
		}
		seen[obj.Order.Owner] = struct{}{}
		owners = append(owners, obj.Order.Owner)
	}
	sort.Strings(owners)
	return owners
}
