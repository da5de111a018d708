package orders

import (
	"go.uber.org/zap"
	"ordertracker/apps/ordertracker/internal/model"
)

// Reduce applies one event to state in place. It performs no I/O and never fails:
// events whose order is not where the transition expects it are ignored.
func Reduce(state model.State, event Event, logger *zap.Logger) {
	if _, ok := event.(ClearOrders); !ok {
		ensureChain(state, event.Chain())
	}

	switch e := event.(type) {
	case AddPendingOrder:
		// a resubmitted id must not linger in a terminal partition
		takeOrder(state[e.ChainID], e.ID)
		state[e.ChainID].Pending[e.ID] = model.OrderObject{ID: e.ID, Order: e.Order}.Clone()

	case RemoveOrder:
		chain := state[e.ChainID]
		delete(chain.Pending, e.ID)
		delete(chain.Fulfilled, e.ID)
		delete(chain.Expired, e.ID)
		delete(chain.Cancelled, e.ID)

	case AddOrUpdateOrdersBatch:
		addOrUpdateOrders(state[e.ChainID], e, logger)

	case FulfillOrder:
		chain := state[e.ChainID]
		moveOrder(chain.Pending, chain.Fulfilled, e.ID, func(order *model.Order) {
			order.Status = model.OrderStatusFulfilled
			order.FulfillmentTime = e.FulfillmentTime
			order.FulfilledTransactionHash = e.TransactionHash
			order.IsCancelling = false
		})

	case FulfillOrdersBatch:
		chain := state[e.ChainID]
		for _, data := range e.OrdersData {
			fulfill := func(order *model.Order) {
				order.Status = model.OrderStatusFulfilled
				order.FulfillmentTime = data.FulfillmentTime
				order.FulfilledTransactionHash = data.TransactionHash
				order.IsCancelling = false
				order.APIAdditionalInfo = data.APIAdditionalInfo
			}
			// a cancellation can lose the race against settlement
			if !moveOrder(chain.Pending, chain.Fulfilled, data.ID, fulfill) {
				moveOrder(chain.Cancelled, chain.Fulfilled, data.ID, fulfill)
			}
		}

	case ExpireOrder:
		chain := state[e.ChainID]
		moveOrder(chain.Pending, chain.Expired, e.ID, expire)

	case ExpireOrdersBatch:
		chain := state[e.ChainID]
		for _, id := range e.IDs {
			moveOrder(chain.Pending, chain.Expired, id, expire)
		}

	case RequestOrderCancellation:
		updatePending(state[e.ChainID], e.ID, func(order *model.Order) {
			order.IsCancelling = true
		})

	case CancelOrder:
		chain := state[e.ChainID]
		moveOrder(chain.Pending, chain.Cancelled, e.ID, cancel)

	case CancelOrdersBatch:
		chain := state[e.ChainID]
		for _, id := range e.IDs {
			moveOrder(chain.Pending, chain.Cancelled, id, cancel)
		}

	case ClearOrders:
		lastCheckedBlock := DeploymentBlock(e.ChainID)
		if chain, ok := state[e.ChainID]; ok && chain != nil {
			lastCheckedBlock = chain.LastCheckedBlock
		}
		state[e.ChainID] = newChainState(lastCheckedBlock)

	case UpdateLastCheckedBlock:
		state[e.ChainID].LastCheckedBlock = e.LastCheckedBlock

	case SetIsOrderUnfillable:
		updatePending(state[e.ChainID], e.ID, func(order *model.Order) {
			order.IsUnfillable = e.IsUnfillable
		})

	default:
		logger.Warn("Unhandled order event", zap.String("event_type", event.Type()))
	}
}

func addOrUpdateOrders(chain *model.ChainState, e AddOrUpdateOrdersBatch, logger *zap.Logger) {
	for _, incoming := range e.Orders {
		id := incoming.ID

		order := incoming
		if existing, found := takeOrder(chain, id); found {
			order = existing.Order
			order.Status = incoming.Status
			order.APIAdditionalInfo = incoming.APIAdditionalInfo
		}

		target := chain.Partition(incoming.Status)
		if target == nil {
			logger.Warn("Unknown status for order, dropping it",
				zap.Stringer("chain_id", e.ChainID),
				zap.String("order_id", id),
				zap.String("status", string(incoming.Status)))
			continue
		}

		if order.Status != model.OrderStatusPending {
			order.IsCancelling = false
		}

		target[id] = model.OrderObject{ID: id, Order: order}.Clone()
	}
}

// takeOrder removes id from whichever partition holds it, searching
// pending, fulfilled, expired and cancelled in that order.
func takeOrder(chain *model.ChainState, id model.OrderID) (model.OrderObject, bool) {
	for _, partition := range []model.OrdersMap{chain.Pending, chain.Fulfilled, chain.Expired, chain.Cancelled} {
		if obj, ok := partition[id]; ok {
			delete(partition, id)
			return obj, true
		}
	}
	return model.OrderObject{}, false
}

func moveOrder(from, to model.OrdersMap, id model.OrderID, update func(*model.Order)) bool {
	obj, ok := from[id]
	if !ok {
		return false
	}
	delete(from, id)
	update(&obj.Order)
	to[id] = obj
	return true
}

func updatePending(chain *model.ChainState, id model.OrderID, update func(*model.Order)) {
	obj, ok := chain.Pending[id]
	if !ok {
		return
	}
	update(&obj.Order)
	chain.Pending[id] = obj
}

func expire(order *model.Order) {
	order.Status = model.OrderStatusExpired
	order.IsCancelling = false
}

func cancel(order *model.Order) {
	order.Status = model.OrderStatusCancelled
	order.IsCancelling = false
}

func newChainState(lastCheckedBlock uint64) *model.ChainState {
	return &model.ChainState{
		Pending:          model.OrdersMap{},
		Fulfilled:        model.OrdersMap{},
		Expired:          model.OrdersMap{},
		Cancelled:        model.OrdersMap{},
		LastCheckedBlock: lastCheckedBlock,
	}
}

// ensureChain makes sure state[chainID] and all of its partitions exist
func ensureChain(state model.State, chainID model.ChainID) *model.ChainState {
	chain, ok := state[chainID]
	if !ok || chain == nil {
		chain = newChainState(DeploymentBlock(chainID))
		state[chainID] = chain
		return chain
	}

	if chain.Pending == nil {
		chain.Pending = model.OrdersMap{}
	}
	if chain.Fulfilled == nil {
		chain.Fulfilled = model.OrdersMap{}
	}
	if chain.Expired == nil {
		chain.Expired = model.OrdersMap{}
	}
	if chain.Cancelled == nil {
		chain.Cancelled = model.OrdersMap{}
	}

	return chain
}
