package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"ordertracker/apps/ordertracker/internal/model"
	"ordertracker/apps/ordertracker/internal/tokens"
)

// ERC20 ABI for balanceOf function
const ERC20ABI = `[
	{
		"constant": true,
		"inputs": [{"name": "_owner", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "balance", "type": "uint256"}],
		"type": "function"
	}
]`

// ContractCaller is satisfied by ethclient.Client
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// TokenHandler serves the token registry and wallet balances. Balances are
// only available for the chain the RPC client is connected to.
type TokenHandler struct {
	registry *tokens.Registry
	client   ContractCaller
	chainID  model.ChainID
	erc20ABI abi.ABI
	logger   *zap.Logger
}

// NewTokenHandler creates a new TokenHandler; client may be nil to disable balances
func NewTokenHandler(registry *tokens.Registry, client ContractCaller, chainID model.ChainID, logger *zap.Logger) (*TokenHandler, error) {
	parsedABI, err := abi.JSON(strings.NewReader(ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}

	return &TokenHandler{
		registry: registry,
		client:   client,
		chainID:  chainID,
		erc20ABI: parsedABI,
		logger:   logger,
	}, nil
}

// GetTokens handles GET /api/tokens/{chain_id}
func (h *TokenHandler) GetTokens(w http.ResponseWriter, r *http.Request) {
	chainID, err := strconv.ParseUint(mux.Vars(r)["chain_id"], 10, 64)
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "invalid_chain_id", "Chain id must be a positive integer")
		return
	}

	list := h.registry.GetAll(model.ChainID(chainID))
	if len(list) == 0 {
		h.writeErrorResponse(w, http.StatusNotFound, "unsupported_chain", "No tokens known for this chain")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, TokensResponse{ChainID: model.ChainID(chainID), Tokens: list})
}

// GetBalance handles GET /api/balance/{wallet_address}
func (h *TokenHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	walletAddress := mux.Vars(r)["wallet_address"]

	if h.client == nil {
		h.writeErrorResponse(w, http.StatusServiceUnavailable, "balances_unavailable", "No RPC client configured")
		return
	}

	if !common.IsHexAddress(walletAddress) {
		h.writeErrorResponse(w, http.StatusBadRequest, "invalid_wallet_address", "Invalid Ethereum address format")
		return
	}

	address := common.HexToAddress(walletAddress)
	balances := make(map[string]TokenBalance)

	for _, token := range h.registry.GetAll(h.chainID) {
		balance, err := h.getTokenBalance(r.Context(), address, token)
		if err != nil {
			h.logger.Error("Failed to get token balance",
				zap.String("token", token.Symbol),
				zap.String("address", walletAddress),
				zap.Error(err))
			// Continue with other tokens instead of failing completely
			balance = "0"
		}

		balances[token.Symbol] = TokenBalance{
			Balance:  balance,
			Symbol:   token.Symbol,
			Address:  token.Address,
			Decimals: token.Decimals,
		}
	}

	h.logger.Info("Retrieved wallet balances",
		zap.String("wallet_address", walletAddress),
		zap.Int("token_count", len(balances)))

	h.writeJSONResponse(w, http.StatusOK, BalanceResponse{
		WalletAddress: walletAddress,
		ChainID:       h.chainID,
		Balances:      balances,
	})
}

// getTokenBalance retrieves the balance for a specific ERC20 token
func (h *TokenHandler) getTokenBalance(ctx context.Context, walletAddress common.Address, token model.Token) (string, error) {
	tokenAddress := common.HexToAddress(token.Address)

	data, err := h.erc20ABI.Pack("balanceOf", walletAddress)
	if err != nil {
		return "", fmt.Errorf("failed to pack balanceOf call: %w", err)
	}

	result, err := h.client.CallContract(ctx, ethereum.CallMsg{
		To:   &tokenAddress,
		Data: data,
	}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to call balanceOf: %w", err)
	}

	var balance *big.Int
	if err := h.erc20ABI.UnpackIntoInterface(&balance, "balanceOf", result); err != nil {
		return "", fmt.Errorf("failed to unpack balanceOf result: %w", err)
	}

	return decimal.NewFromBigInt(balance, -int32(token.Decimals)).String(), nil
}

// writeJSONResponse writes a JSON response with the specified status code
func (h *TokenHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

// writeErrorResponse writes an error response
func (h *TokenHandler) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	errorResponse := ErrorResponse{
		Error:   errorCode,
		Message: message,
	}
	h.writeJSONResponse(w, statusCode, errorResponse)
}
