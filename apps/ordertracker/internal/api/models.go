package api

import (
	"ordertracker/apps/ordertracker/internal/model"
)

// PostOrderRequest represents the request body for submitting a new order.
// Tokens may be given by symbol or address; amounts are raw integer units.
// Account defaults to the service signing account; SlippageBips defaults to 50.
type PostOrderRequest struct {
	ChainID                model.ChainID `json:"chain_id" validate:"required"`
	Account                string        `json:"account" validate:"omitempty,eth_addr"`
	Kind                   string        `json:"kind" validate:"required,oneof=sell buy"`
	SellToken              string        `json:"sell_token" validate:"required"`
	BuyToken               string        `json:"buy_token" validate:"required,nefield=SellToken"`
	SellAmount             string        `json:"sell_amount" validate:"required,number"`
	BuyAmount              string        `json:"buy_amount" validate:"required,number"`
	FeeAmount              string        `json:"fee_amount" validate:"omitempty,number"`
	ValidTo                uint32        `json:"valid_to"`
	SlippageBips           *uint32       `json:"slippage_bips" validate:"omitnil,max=5000"`
	Recipient              string        `json:"recipient" validate:"omitempty,eth_addr"`
	RecipientAddressOrName *string       `json:"recipient_address_or_name"`
}

// PostOrderResponse carries the relay-assigned order uid
type PostOrderResponse struct {
	ID model.OrderID `json:"id"`
}

// OrderResponse represents a single stored order
type OrderResponse struct {
	ChainID model.ChainID `json:"chain_id"`
	ID      model.OrderID `json:"id"`
	Order   model.Order   `json:"order"`
}

// ChainOrdersResponse represents the order state of one chain
type ChainOrdersResponse struct {
	ChainID model.ChainID `json:"chain_id"`
	model.ChainState
}

// TokensResponse lists the tokens tradable on a chain
type TokensResponse struct {
	ChainID model.ChainID `json:"chain_id"`
	Tokens  []model.Token `json:"tokens"`
}

// BalanceResponse represents the API response for wallet balance information
type BalanceResponse struct {
	WalletAddress string                  `json:"wallet_address"`
	ChainID       model.ChainID           `json:"chain_id"`
	Balances      map[string]TokenBalance `json:"balances"`
}

// TokenBalance represents balance information for a specific token
type TokenBalance struct {
	Balance  string `json:"balance"`
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
}

// ErrorResponse represents the API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
