package test

import (
	"os"
	"testing"
)

const (
	// Default test server address
	DefaultBaseURL = "http://localhost:8080"

	// Test wallet address (example address)
	TestWalletAddress = "0x0B8fA6F76eB75ae3a4ca28eb3020DFC4503F2136"

	// Chains served by the running instance
	MainnetChainID = 1
	XDaiChainID    = 100

	// Mainnet WETH and USDC
	TestSellToken = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	TestBuyToken  = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
)

// baseURL returns the server under test and skips when integration tests are disabled
func baseURL(t *testing.T) string {
	t.Helper()

	if os.Getenv("ORDERTRACKER_INTEGRATION") == "" {
		t.Skip("set ORDERTRACKER_INTEGRATION=1 to run against a live server")
	}
	if url := os.Getenv("ORDERTRACKER_BASE_URL"); url != "" {
		return url
	}
	return DefaultBaseURL
}

// PostOrderRequest represents the request body for submitting an order
type PostOrderRequest struct {
	ChainID    uint64 `json:"chain_id"`
	Account    string `json:"account,omitempty"`
	Kind       string `json:"kind"`
	SellToken  string `json:"sell_token"`
	BuyToken   string `json:"buy_token"`
	SellAmount string `json:"sell_amount"`
	BuyAmount  string `json:"buy_amount"`
	FeeAmount  string `json:"fee_amount,omitempty"`
	ValidTo    uint32 `json:"valid_to,omitempty"`
	// SlippageBips is omitted to use the server default
	SlippageBips *uint32 `json:"slippage_bips,omitempty"`
}

// Order represents a stored order as returned by the API
type Order struct {
	ID           string `json:"id"`
	Owner        string `json:"owner"`
	CreationTime string `json:"creationTime"`
	Status       string `json:"status"`
	Summary      string `json:"summary"`
	IsCancelling bool   `json:"isCancelling"`
}

// OrderObject pairs an order id with its order
type OrderObject struct {
	ID    string `json:"id"`
	Order Order  `json:"order"`
}

// ChainOrdersResponse represents the order state of one chain
type ChainOrdersResponse struct {
	ChainID          uint64                  `json:"chain_id"`
	Pending          map[string]*OrderObject `json:"pending"`
	Fulfilled        map[string]*OrderObject `json:"fulfilled"`
	Expired          map[string]*OrderObject `json:"expired"`
	Cancelled        map[string]*OrderObject `json:"cancelled"`
	LastCheckedBlock uint64                  `json:"lastCheckedBlock"`
}

// Token represents a tradable token
type Token struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// TokensResponse lists the tokens of a chain
type TokensResponse struct {
	ChainID uint64  `json:"chain_id"`
	Tokens  []Token `json:"tokens"`
}

// BalanceResponse represents the API response for wallet balance information
type BalanceResponse struct {
	WalletAddress string                  `json:"wallet_address"`
	ChainID       uint64                  `json:"chain_id"`
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
