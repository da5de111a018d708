package orders

import (
	"ordertracker/apps/ordertracker/internal/model"
)

// Event is a single order-lifecycle transition dispatched into the store
type Event interface {
	Chain() model.ChainID
	Type() string
}

type AddPendingOrder struct {
	ChainID model.ChainID `json:"chainId"`
	ID      model.OrderID `json:"id"`
	Order   model.Order   `json:"order"`
}

type RemoveOrder struct {
	ChainID model.ChainID `json:"chainId"`
	ID      model.OrderID `json:"id"`
}

// AddOrUpdateOrdersBatch merges authoritative relay state into the store
type AddOrUpdateOrdersBatch struct {
	ChainID model.ChainID `json:"chainId"`
	Orders  []model.Order `json:"orders"`
}

type FulfillOrder struct {
	ChainID         model.ChainID `json:"chainId"`
	ID              model.OrderID `json:"id"`
	FulfillmentTime string        `json:"fulfillmentTime"`
	TransactionHash string        `json:"transactionHash"`
}

type FulfillOrderData struct {
	ID                model.OrderID            `json:"id"`
	FulfillmentTime   string                   `json:"fulfillmentTime"`
	TransactionHash   string                   `json:"transactionHash"`
	APIAdditionalInfo *model.APIAdditionalInfo `json:"apiAdditionalInfo,omitempty"`
}

type FulfillOrdersBatch struct {
	ChainID    model.ChainID      `json:"chainId"`
	OrdersData []FulfillOrderData `json:"ordersData"`
}

type ExpireOrder struct {
	ChainID model.ChainID `json:"chainId"`
	ID      model.OrderID `json:"id"`
}

type ExpireOrdersBatch struct {
	ChainID model.ChainID   `json:"chainId"`
	IDs     []model.OrderID `json:"ids"`
}

type RequestOrderCancellation struct {
	ChainID model.ChainID `json:"chainId"`
	ID      model.OrderID `json:"id"`
}

type CancelOrder struct {
	ChainID model.ChainID `json:"chainId"`
	ID      model.OrderID `json:"id"`
}

type CancelOrdersBatch struct {
	ChainID model.ChainID   `json:"chainId"`
	IDs     []model.OrderID `json:"ids"`
}

type ClearOrders struct {
	ChainID model.ChainID `json:"chainId"`
}

type UpdateLastCheckedBlock struct {
	ChainID          model.ChainID `json:"chainId"`
	LastCheckedBlock uint64        `json:"lastCheckedBlock"`
}

type SetIsOrderUnfillable struct {
	ChainID      model.ChainID `json:"chainId"`
	ID           model.OrderID `json:"id"`
	IsUnfillable bool          `json:"isUnfillable"`
}

func (e AddPendingOrder) Chain() model.ChainID          { return e.ChainID }
func (e RemoveOrder) Chain() model.ChainID              { return e.ChainID }
func (e AddOrUpdateOrdersBatch) Chain() model.ChainID   { return e.ChainID }
func (e FulfillOrder) Chain() model.ChainID             { return e.ChainID }
func (e FulfillOrdersBatch) Chain() model.ChainID       { return e.ChainID }
func (e ExpireOrder) Chain() model.ChainID              { return e.ChainID }
func (e ExpireOrdersBatch) Chain() model.ChainID        { return e.ChainID }
func (e RequestOrderCancellation) Chain() model.ChainID { return e.ChainID }
func (e CancelOrder) Chain() model.ChainID              { return e.ChainID }
func (e CancelOrdersBatch) Chain() model.ChainID        { return e.ChainID }
func (e ClearOrders) Chain() model.ChainID              { return e.ChainID }
func (e UpdateLastCheckedBlock) Chain() model.ChainID   { return e.ChainID }
func (e SetIsOrderUnfillable) Chain() model.ChainID     { return e.ChainID }

func (AddPendingOrder) Type() string          { return "order/addPendingOrder" }
func (RemoveOrder) Type() string              { return "order/removeOrder" }
func (AddOrUpdateOrdersBatch) Type() string   { return "order/addOrUpdateOrdersBatch" }
func (FulfillOrder) Type() string             { return "order/fulfillOrder" }
func (FulfillOrdersBatch) Type() string       { return "order/fulfillOrdersBatch" }
func (ExpireOrder) Type() string              { return "order/expireOrder" }
func (ExpireOrdersBatch) Type() string        { return "order/expireOrdersBatch" }
func (RequestOrderCancellation) Type() string { return "order/requestOrderCancellation" }
func (CancelOrder) Type() string              { return "order/cancelOrder" }
func (CancelOrdersBatch) Type() string        { return "order/cancelOrdersBatch" }
func (ClearOrders) Type() string              { return "order/clearOrders" }
func (UpdateLastCheckedBlock) Type() string   { return "order/updateLastCheckedBlock" }
func (SetIsOrderUnfillable) Type() string     { return "order/setIsOrderUnfillable" }
