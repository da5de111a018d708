package model

import (
	"strconv"
)

type ChainID uint64

const (
	Mainnet ChainID = 1
	Rinkeby ChainID = 4
	XDai    ChainID = 100
)

func (c ChainID) String() string {
	return strconv.FormatUint(uint64(c), 10)
}

// OrderID is the relay-assigned order uid
type OrderID = string

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusFulfilled OrderStatus = "fulfilled"
	OrderStatusExpired   OrderStatus = "expired"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type OrderKind string

const (
	OrderKindSell OrderKind = "sell"
	OrderKindBuy  OrderKind = "buy"
)

// Token describes an ERC20 token as the client knows it
type Token struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name,omitempty"`
	Decimals int    `json:"decimals"`
}

// UnsignedOrder is the order payload that gets signed and posted to the relay.
// Amounts are raw integer token units in base 10.
type UnsignedOrder struct {
	SellToken         string    `json:"sellToken"`
	BuyToken          string    `json:"buyToken"`
	Receiver          string    `json:"receiver,omitempty"`
	SellAmount        string    `json:"sellAmount"`
	BuyAmount         string    `json:"buyAmount"`
	ValidTo           uint32    `json:"validTo"`
	AppData           string    `json:"appData"`
	FeeAmount         string    `json:"feeAmount"`
	Kind              OrderKind `json:"kind"`
	PartiallyFillable bool      `json:"partiallyFillable"`
}

// SignedOrder is what the relay API accepts
type SignedOrder struct {
	UnsignedOrder
	Signature string `json:"signature"`
	From      string `json:"from,omitempty"`
}

// APIAdditionalInfo is the metadata the relay reports for an order
type APIAdditionalInfo struct {
	CreationDate       string `json:"creationDate,omitempty"`
	AvailableBalance   string `json:"availableBalance,omitempty"`
	ExecutedBuyAmount  string `json:"executedBuyAmount,omitempty"`
	ExecutedSellAmount string `json:"executedSellAmount,omitempty"`
	ExecutedFeeAmount  string `json:"executedFeeAmount,omitempty"`
	Invalidated        bool   `json:"invalidated,omitempty"`
}

// Order is the record kept in the order store.
// InputToken and OutputToken are absent on records written by older clients.
type Order struct {
	UnsignedOrder

	ID           OrderID     `json:"id"`
	Owner        string      `json:"owner"`
	CreationTime string      `json:"creationTime"`
	Signature    string      `json:"signature"`
	Status       OrderStatus `json:"status"`
	Summary      string      `json:"summary,omitempty"`

	InputToken  *Token `json:"inputToken,omitempty"`
	OutputToken *Token `json:"outputToken,omitempty"`

	FulfillmentTime          string `json:"fulfillmentTime,omitempty"`
	FulfilledTransactionHash string `json:"fulfilledTransactionHash,omitempty"`
	IsCancelling             bool   `json:"isCancelling,omitempty"`
	IsUnfillable             bool   `json:"isUnfillable,omitempty"`

	APIAdditionalInfo *APIAdditionalInfo `json:"apiAdditionalInfo,omitempty"`
}

type OrderObject struct {
	ID    OrderID `json:"id"`
	Order Order   `json:"order"`
}

type OrdersMap map[OrderID]OrderObject

// ChainState holds the orders of one chain partitioned by status
type ChainState struct {
	Pending          OrdersMap `json:"pending"`
	Fulfilled        OrdersMap `json:"fulfilled"`
	Expired          OrdersMap `json:"expired"`
	Cancelled        OrdersMap `json:"cancelled"`
	LastCheckedBlock uint64    `json:"lastCheckedBlock"`
}

type State map[ChainID]*ChainState

// Clone returns a deep copy of the chain state
func (c *ChainState) Clone() ChainState {
	return ChainState{
		Pending:          c.Pending.clone(),
		Fulfilled:        c.Fulfilled.clone(),
		Expired:          c.Expired.clone(),
		Cancelled:        c.Cancelled.clone(),
		LastCheckedBlock: c.LastCheckedBlock,
	}
}

// Partition returns the map holding orders of the given status, or nil
func (c *ChainState) Partition(status OrderStatus) OrdersMap {
	switch status {
	case OrderStatusPending:
		return c.Pending
	case OrderStatusFulfilled:
		return c.Fulfilled
	case OrderStatusExpired:
		return c.Expired
	case OrderStatusCancelled:
		return c.Cancelled
	default:
		return nil
	}
}

func (m OrdersMap) clone() OrdersMap {
	if m == nil {
		return nil
	}
	out := make(OrdersMap, len(m))
	for id, obj := range m {
		out[id] = obj.Clone()
	}
	return out
}

// Clone copies the record including its pointer fields
func (o OrderObject) Clone() OrderObject {
	if o.Order.InputToken != nil {
		t := *o.Order.InputToken
		o.Order.InputToken = &t
	}
	if o.Order.OutputToken != nil {
		t := *o.Order.OutputToken
		o.Order.OutputToken = &t
	}
	if o.Order.APIAdditionalInfo != nil {
		info := *o.Order.APIAdditionalInfo
		o.Order.APIAdditionalInfo = &info
	}
	return o
}
