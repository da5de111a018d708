package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"ordertracker/apps/ordertracker/internal/model"
	"ordertracker/apps/ordertracker/internal/orders"
	"ordertracker/apps/ordertracker/internal/relay"
	"ordertracker/apps/ordertracker/internal/tokens"
	"ordertracker/apps/ordertracker/internal/trade"
)

const (
	account   = "0x0b8fa6f76eb75ae3a4ca28eb3020dfc4503f2136"
	recipient = "0x9008d19f58aabd9ed0d60971565aa8510560ab41"
)

type fakeSubmitter struct {
	id     model.OrderID
	err    error
	params []trade.PostOrderParams
}

func (f *fakeSubmitter) Account() string {
	return common.HexToAddress(account).Hex()
}

func (f *fakeSubmitter) PostOrder(_ context.Context, params trade.PostOrderParams) (model.OrderID, error) {
	f.params = append(f.params, params)
	return f.id, f.err
}

type fakeCaller struct {
	balances map[common.Address]*big.Int
	handler  *TokenHandler
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	balance, ok := f.balances[*msg.To]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return f.handler.erc20ABI.Methods["balanceOf"].Outputs.Pack(balance)
}

type testServer struct {
	router    http.Handler
	store     *orders.Store
	submitter *fakeSubmitter
}

func newTestServer(t *testing.T, caller *fakeCaller) *testServer {
	store := orders.NewStore(nil, zap.NewNop())
	submitter := &fakeSubmitter{id: "0x123"}
	registry := tokens.NewRegistry()

	var client ContractCaller
	if caller != nil {
		client = caller
	}
	tokenHandler, err := NewTokenHandler(registry, client, model.Mainnet, zap.NewNop())
	require.NoError(t, err)
	if caller != nil {
		caller.handler = tokenHandler
	}

	server := NewServer(0, NewOrderHandler(store, submitter, registry, zap.NewNop()), tokenHandler, zap.NewNop())
	return &testServer{router: server.setupRoutes(), store: store, submitter: submitter}
}

func (ts *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader bytes.Buffer
	if body != nil {
		json.NewEncoder(&reader).Encode(body)
	}
	req := httptest.NewRequest(method, path, &reader)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func validRequest() PostOrderRequest {
	return PostOrderRequest{
		ChainID:    model.Mainnet,
		Account:    account,
		Kind:       "sell",
		SellToken:  "WETH",
		BuyToken:   "usdc",
		SellAmount: "1500000000000000000",
		BuyAmount:  "2987654321",
		FeeAmount:  "1000000000000000",
	}
}

func addPending(store *orders.Store, id model.OrderID) {
	store.Dispatch(orders.AddPendingOrder{
		ChainID: model.Mainnet,
		ID:      id,
		Order:   model.Order{ID: id, Owner: account, Status: model.OrderStatusPending},
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCreateOrder(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/api/orders", validRequest())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp PostOrderResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "0x123", resp.ID)

	require.Len(t, ts.submitter.params, 1)
	params := ts.submitter.params[0]
	assert.Equal(t, "WETH", params.InputAmount.Token.Symbol)
	assert.Equal(t, "USDC", params.OutputAmount.Token.Symbol)
	assert.Equal(t, "1500000000000000000", params.InputAmount.RawString())
	assert.Equal(t, "1000000000000000", params.FeeAmount.RawString())
	assert.Equal(t, model.OrderKindSell, params.Kind)
	assert.Equal(t, ts.submitter.Account(), params.Account)
	assert.True(t, strings.EqualFold(account, params.Recipient), "recipient defaults to the account")
	assert.Equal(t, uint32(trade.DefaultSlippageBips), params.SlippageBips)
}

func TestCreateOrderDefaultsToSigningAccount(t *testing.T) {
	ts := newTestServer(t, nil)
	req := validRequest()
	req.Account = ""
	slippage := uint32(0)
	req.SlippageBips = &slippage

	rec := ts.do(http.MethodPost, "/api/orders", req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	require.Len(t, ts.submitter.params, 1)
	params := ts.submitter.params[0]
	assert.Equal(t, ts.submitter.Account(), params.Account)
	assert.Equal(t, ts.submitter.Account(), params.Recipient)
	assert.Zero(t, params.SlippageBips)
}

func TestCreateOrderRejectsForeignAccount(t *testing.T) {
	ts := newTestServer(t, nil)
	req := validRequest()
	req.Account = recipient

	rec := ts.do(http.MethodPost, "/api/orders", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "account_mismatch", decodeError(t, rec).Error)
	assert.Empty(t, ts.submitter.params)
}

func TestCreateOrderValidation(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(req *PostOrderRequest)
		errorCode string
	}{
		{"BadAccount", func(req *PostOrderRequest) { req.Account = "vitalik.eth" }, "validation_error"},
		{"BadKind", func(req *PostOrderRequest) { req.Kind = "limit" }, "validation_error"},
		{"SameTokens", func(req *PostOrderRequest) { req.BuyToken = "WETH" }, "validation_error"},
		{"DecimalAmount", func(req *PostOrderRequest) { req.SellAmount = "1.5" }, "validation_error"},
		{"BadRecipient", func(req *PostOrderRequest) { req.Recipient = "nobody" }, "validation_error"},
		{"UnknownToken", func(req *PostOrderRequest) { req.SellToken = "DOGE" }, "unsupported_token"},
		{"TokenOnOtherChain", func(req *PostOrderRequest) { req.BuyToken = "WXDAI" }, "unsupported_token"},
		{"ZeroAmount", func(req *PostOrderRequest) { req.BuyAmount = "0" }, "invalid_amount"},
		{"SlippageTooHigh", func(req *PostOrderRequest) { bips := uint32(6000); req.SlippageBips = &bips }, "validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			req := validRequest()
			tt.modify(&req)

			rec := ts.do(http.MethodPost, "/api/orders", req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.errorCode, decodeError(t, rec).Error)
			assert.Empty(t, ts.submitter.params)
		})
	}
}

func TestCreateOrderInvalidJSON(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request_body", decodeError(t, rec).Error)
}

func TestCreateOrderSubmissionErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		errorCode  string
	}{
		{
			name:       "RelayRejects",
			err:        fmt.Errorf("%w: %w", trade.ErrPostOrder, &relay.APIError{StatusCode: 400, ErrorType: "InsufficientFee", Description: "fee too low"}),
			statusCode: http.StatusBadRequest,
			errorCode:  "order_rejected",
		},
		{
			name:       "RelayDown",
			err:        fmt.Errorf("%w: %w", trade.ErrPostOrder, errors.New("connection refused")),
			statusCode: http.StatusBadGateway,
			errorCode:  "relay_error",
		},
		{
			name:       "AccountMismatch",
			err:        fmt.Errorf("%w: got 0x1, signing as 0x2", trade.ErrAccountMismatch),
			statusCode: http.StatusBadRequest,
			errorCode:  "account_mismatch",
		},
		{
			name:       "SignerFails",
			err:        fmt.Errorf("%w: %w", trade.ErrSignOrder, errors.New("rejected")),
			statusCode: http.StatusInternalServerError,
			errorCode:  "signing_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			ts.submitter.err = tt.err

			rec := ts.do(http.MethodPost, "/api/orders", validRequest())
			assert.Equal(t, tt.statusCode, rec.Code)
			assert.Equal(t, tt.errorCode, decodeError(t, rec).Error)
		})
	}
}

func TestGetOrders(t *testing.T) {
	ts := newTestServer(t, nil)
	addPending(ts.store, "0xabc")

	rec := ts.do(http.MethodGet, "/api/orders/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var chainResp ChainOrdersResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&chainResp))
	assert.Equal(t, model.Mainnet, chainResp.ChainID)
	assert.Contains(t, chainResp.Pending, "0xabc")
	assert.Equal(t, orders.DeploymentBlock(model.Mainnet), chainResp.LastCheckedBlock)

	rec = ts.do(http.MethodGet, "/api/orders/1/0xabc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var orderResp OrderResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&orderResp))
	assert.Equal(t, "0xabc", orderResp.ID)
	assert.Equal(t, model.OrderStatusPending, orderResp.Order.Status)

	rec = ts.do(http.MethodGet, "/api/orders/1/0xmissing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodGet, "/api/orders/0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestCancellation(t *testing.T) {
	ts := newTestServer(t, nil)
	addPending(ts.store, "0xabc")

	rec := ts.do(http.MethodPost, "/api/orders/1/0xabc/cancellation", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	obj, ok := ts.store.Order(model.Mainnet, "0xabc")
	require.True(t, ok)
	assert.True(t, obj.Order.IsCancelling)

	ts.store.Dispatch(orders.CancelOrder{ChainID: model.Mainnet, ID: "0xabc"})
	rec = ts.do(http.MethodPost, "/api/orders/1/0xabc/cancellation", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(http.MethodPost, "/api/orders/1/0xmissing/cancellation", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteOrderAndClearChain(t *testing.T) {
	ts := newTestServer(t, nil)
	addPending(ts.store, "0xabc")
	addPending(ts.store, "0xdef")
	ts.store.Dispatch(orders.UpdateLastCheckedBlock{ChainID: model.Mainnet, LastCheckedBlock: 13000000})

	rec := ts.do(http.MethodDelete, "/api/orders/1/0xabc", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, ok := ts.store.Order(model.Mainnet, "0xabc")
	assert.False(t, ok)

	rec = ts.do(http.MethodDelete, "/api/orders/1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	chainState := ts.store.Chain(model.Mainnet)
	assert.Empty(t, chainState.Pending)
	assert.Equal(t, uint64(13000000), chainState.LastCheckedBlock)
}

func TestGetTokens(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/api/tokens/100", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TokensResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, model.XDai, resp.ChainID)
	assert.Len(t, resp.Tokens, 4)

	rec = ts.do(http.MethodGet, "/api/tokens/5", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetBalance(t *testing.T) {
	registry := tokens.NewRegistry()
	weth, _ := registry.GetBySymbol(model.Mainnet, "WETH")
	usdc, _ := registry.GetBySymbol(model.Mainnet, "USDC")

	caller := &fakeCaller{balances: map[common.Address]*big.Int{
		common.HexToAddress(weth.Address): new(big.Int).Mul(big.NewInt(15), big.NewInt(1e17)),
		common.HexToAddress(usdc.Address): big.NewInt(2500000),
	}}
	ts := newTestServer(t, caller)

	rec := ts.do(http.MethodGet, "/api/balance/"+account, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp BalanceResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "1.5", resp.Balances["WETH"].Balance)
	assert.Equal(t, "2.5", resp.Balances["USDC"].Balance)
	assert.Equal(t, "0", resp.Balances["DAI"].Balance, "failed calls report zero")

	rec = ts.do(http.MethodGet, "/api/balance/nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetBalanceWithoutClient(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/api/balance/"+recipient, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
