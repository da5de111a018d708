package api

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"ordertracker/apps/ordertracker/internal/model"
	"ordertracker/apps/ordertracker/internal/orders"
	"ordertracker/apps/ordertracker/internal/relay"
	"ordertracker/apps/ordertracker/internal/tokens"
	"ordertracker/apps/ordertracker/internal/trade"
)

type OrderStore interface {
	Chain(chainID model.ChainID) model.ChainState
	Order(chainID model.ChainID, id model.OrderID) (*model.OrderObject, bool)
	Dispatch(event orders.Event)
}

type OrderSubmitter interface {
	Account() string
	PostOrder(ctx context.Context, params trade.PostOrderParams) (model.OrderID, error)
}

// OrderHandler handles order-related API endpoints
type OrderHandler struct {
	store     OrderStore
	submitter OrderSubmitter
	registry  *tokens.Registry
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(store OrderStore, submitter OrderSubmitter, registry *tokens.Registry, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		store:     store,
		submitter: submitter,
		registry:  registry,
		validate:  validator.New(),
		logger:    logger,
	}
}

// GetChainOrders handles GET /api/orders/{chain_id}
func (h *OrderHandler) GetChainOrders(w http.ResponseWriter, r *http.Request) {
	chainID, ok := h.chainIDParam(w, r)
	if !ok {
		return
	}

	h.writeJSONResponse(w, http.StatusOK, ChainOrdersResponse{
		ChainID:    chainID,
		ChainState: h.store.Chain(chainID),
	})
}

// GetOrder handles GET /api/orders/{chain_id}/{order_id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	chainID, ok := h.chainIDParam(w, r)
	if !ok {
		return
	}
	orderID := mux.Vars(r)["order_id"]

	obj, found := h.store.Order(chainID, orderID)
	if !found {
		h.writeErrorResponse(w, http.StatusNotFound, "order_not_found", "Order not found")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, OrderResponse{ChainID: chainID, ID: obj.ID, Order: obj.Order})
}

// CreateOrder handles POST /api/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req PostOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "invalid_request_body", "Invalid JSON in request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	params, errorCode, message := h.buildParams(req)
	if errorCode != "" {
		h.writeErrorResponse(w, http.StatusBadRequest, errorCode, message)
		return
	}

	orderID, err := h.submitter.PostOrder(r.Context(), params)
	if err != nil {
		h.writeSubmissionError(w, req, err)
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, PostOrderResponse{ID: orderID})
}

// RequestCancellation handles POST /api/orders/{chain_id}/{order_id}/cancellation
func (h *OrderHandler) RequestCancellation(w http.ResponseWriter, r *http.Request) {
	chainID, ok := h.chainIDParam(w, r)
	if !ok {
		return
	}
	orderID := mux.Vars(r)["order_id"]

	obj, found := h.store.Order(chainID, orderID)
	if !found {
		h.writeErrorResponse(w, http.StatusNotFound, "order_not_found", "Order not found")
		return
	}
	if obj.Order.Status != model.OrderStatusPending {
		h.writeErrorResponse(w, http.StatusConflict, "order_not_pending", "Only pending orders can be cancelled")
		return
	}

	h.store.Dispatch(orders.RequestOrderCancellation{ChainID: chainID, ID: orderID})
	h.logger.Info("Requested order cancellation", zap.Stringer("chain_id", chainID), zap.String("order_id", orderID))

	w.WriteHeader(http.StatusAccepted)
}

// DeleteOrder handles DELETE /api/orders/{chain_id}/{order_id}
func (h *OrderHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	chainID, ok := h.chainIDParam(w, r)
	if !ok {
		return
	}
	orderID := mux.Vars(r)["order_id"]

	h.store.Dispatch(orders.RemoveOrder{ChainID: chainID, ID: orderID})
	w.WriteHeader(http.StatusNoContent)
}

// ClearChain handles DELETE /api/orders/{chain_id}
func (h *OrderHandler) ClearChain(w http.ResponseWriter, r *http.Request) {
	chainID, ok := h.chainIDParam(w, r)
	if !ok {
		return
	}

	h.store.Dispatch(orders.ClearOrders{ChainID: chainID})
	h.logger.Info("Cleared orders", zap.Stringer("chain_id", chainID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandler) buildParams(req PostOrderRequest) (trade.PostOrderParams, string, string) {
	sellToken, ok := h.registry.Resolve(req.ChainID, req.SellToken)
	if !ok {
		return trade.PostOrderParams{}, "unsupported_token", "Sell token not supported on chain " + req.ChainID.String()
	}
	buyToken, ok := h.registry.Resolve(req.ChainID, req.BuyToken)
	if !ok {
		return trade.PostOrderParams{}, "unsupported_token", "Buy token not supported on chain " + req.ChainID.String()
	}

	sellAmount, ok := new(big.Int).SetString(req.SellAmount, 10)
	if !ok || sellAmount.Sign() <= 0 {
		return trade.PostOrderParams{}, "invalid_amount", "Sell amount must be a positive integer"
	}
	buyAmount, ok := new(big.Int).SetString(req.BuyAmount, 10)
	if !ok || buyAmount.Sign() <= 0 {
		return trade.PostOrderParams{}, "invalid_amount", "Buy amount must be a positive integer"
	}
	feeAmount := new(big.Int)
	if req.FeeAmount != "" {
		if _, ok := feeAmount.SetString(req.FeeAmount, 10); !ok {
			return trade.PostOrderParams{}, "invalid_amount", "Fee amount must be an integer"
		}
	}

	account := h.submitter.Account()
	if req.Account != "" && !strings.EqualFold(req.Account, account) {
		return trade.PostOrderParams{}, "account_mismatch", "Orders are signed by " + account
	}

	recipient := req.Recipient
	if recipient == "" {
		recipient = account
	}

	slippage := uint32(trade.DefaultSlippageBips)
	if req.SlippageBips != nil {
		slippage = *req.SlippageBips
	}

	return trade.PostOrderParams{
		Account:                account,
		ChainID:                req.ChainID,
		Kind:                   model.OrderKind(req.Kind),
		InputAmount:            trade.CurrencyAmount{Token: sellToken, Raw: sellAmount},
		OutputAmount:           trade.CurrencyAmount{Token: buyToken, Raw: buyAmount},
		FeeAmount:              trade.CurrencyAmount{Token: sellToken, Raw: feeAmount},
		SellToken:              sellToken,
		BuyToken:               buyToken,
		ValidTo:                req.ValidTo,
		SlippageBips:           slippage,
		Recipient:              recipient,
		RecipientAddressOrName: req.RecipientAddressOrName,
	}, "", ""
}

func (h *OrderHandler) writeSubmissionError(w http.ResponseWriter, req PostOrderRequest, err error) {
	h.logger.Error("Failed to submit order",
		zap.Stringer("chain_id", req.ChainID),
		zap.String("account", req.Account),
		zap.Error(err))

	var apiErr *relay.APIError
	switch {
	case errors.Is(err, trade.ErrAccountMismatch):
		h.writeErrorResponse(w, http.StatusBadRequest, "account_mismatch", err.Error())
	case errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError:
		h.writeErrorResponse(w, http.StatusBadRequest, "order_rejected", apiErr.Description)
	case errors.Is(err, trade.ErrPostOrder):
		h.writeErrorResponse(w, http.StatusBadGateway, "relay_error", "Failed to post order to relay")
	case errors.Is(err, trade.ErrSignOrder):
		h.writeErrorResponse(w, http.StatusInternalServerError, "signing_error", "Failed to sign order")
	default:
		h.writeErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to submit order")
	}
}

func (h *OrderHandler) chainIDParam(w http.ResponseWriter, r *http.Request) (model.ChainID, bool) {
	chainID, err := strconv.ParseUint(mux.Vars(r)["chain_id"], 10, 64)
	if err != nil || chainID == 0 {
		h.writeErrorResponse(w, http.StatusBadRequest, "invalid_chain_id", "Chain id must be a positive integer")
		return 0, false
	}
	return model.ChainID(chainID), true
}

// writeJSONResponse writes a JSON response with the specified status code
func (h *OrderHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

// writeErrorResponse writes an error response
func (h *OrderHandler) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	errorResponse := ErrorResponse{
		Error:   errorCode,
		Message: message,
	}
	h.writeJSONResponse(w, statusCode, errorResponse)
}
