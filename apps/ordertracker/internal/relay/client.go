package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"ordertracker/apps/ordertracker/internal/model"
)

var DefaultBaseURLs = map[model.ChainID]string{
	model.Mainnet: "https://protocol-mainnet.gnosis.io",
	model.Rinkeby: "https://protocol-rinkeby.gnosis.io",
	model.XDai:    "https://protocol-xdai.gnosis.io",
}

const signingSchemeEIP712 = "eip712"

// APIError is the error body the relay returns with a non-2xx status
type APIError struct {
	StatusCode  int    `json:"-"`
	ErrorType   string `json:"errorType"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	if e.ErrorType == "" {
		return fmt.Sprintf("relay API error (status %d): %s", e.StatusCode, e.Description)
	}
	return fmt.Sprintf("relay API error %s (status %d): %s", e.ErrorType, e.StatusCode, e.Description)
}

// APIOrder is an order as listed by the relay
type APIOrder struct {
	model.UnsignedOrder
	UID                string `json:"uid"`
	Owner              string `json:"owner"`
	CreationDate       string `json:"creationDate"`
	Signature          string `json:"signature"`
	Status             string `json:"status"`
	AvailableBalance   string `json:"availableBalance"`
	ExecutedBuyAmount  string `json:"executedBuyAmount"`
	ExecutedSellAmount string `json:"executedSellAmount"`
	ExecutedFeeAmount  string `json:"executedFeeAmount"`
	Invalidated        bool   `json:"invalidated"`
}

type postOrderRequest struct {
	model.SignedOrder
	SigningScheme string `json:"signingScheme"`
}

type Client struct {
	baseURLs map[model.ChainID]string
	http     *http.Client
	logger   *zap.Logger
}

// NewClient creates a relay client. Entries in baseURLs override the defaults.
func NewClient(baseURLs map[model.ChainID]string, logger *zap.Logger) *Client {
	urls := make(map[model.ChainID]string, len(DefaultBaseURLs)+len(baseURLs))
	for chainID, base := range DefaultBaseURLs {
		urls[chainID] = base
	}
	for chainID, base := range baseURLs {
		urls[chainID] = base
	}

	return &Client{
		baseURLs: urls,
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

func (c *Client) baseURL(chainID model.ChainID) (string, error) {
	base, ok := c.baseURLs[chainID]
	if !ok {
		return "", fmt.Errorf("no relay API configured for chain %s", chainID)
	}
	return base, nil
}

// PostSignedOrder submits the order and returns the uid assigned by the relay
func (c *Client) PostSignedOrder(ctx context.Context, chainID model.ChainID, order model.SignedOrder) (model.OrderID, error) {
	base, err := c.baseURL(chainID)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(postOrderRequest{SignedOrder: order, SigningScheme: signingSchemeEIP712})
	if err != nil {
		return "", fmt.Errorf("failed to encode order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/v1/orders", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var uid model.OrderID
	if err := c.do(req, &uid); err != nil {
		return "", err
	}

	c.logger.Debug("Relay accepted order", zap.Stringer("chain_id", chainID), zap.String("order_id", uid))
	return uid, nil
}

// GetOrders lists the orders the relay knows for an owner
func (c *Client) GetOrders(ctx context.Context, chainID model.ChainID, owner string) ([]APIOrder, error) {
	base, err := c.baseURL(chainID)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/api/v1/account/%s/orders", base, url.PathEscape(owner))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	var orders []APIOrder
	if err := c.do(req, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("relay request %s %s failed: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(data, apiErr); err != nil || (apiErr.ErrorType == "" && apiErr.Description == "") {
			apiErr.Description = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode relay response: %w", err)
	}
	return nil
}

// ToOrder maps a relay order onto a store record. Statuses the store does not
// know are kept verbatim.
func ToOrder(apiOrder APIOrder) model.Order {
	return model.Order{
		UnsignedOrder: apiOrder.UnsignedOrder,
		ID:            apiOrder.UID,
		Owner:         apiOrder.Owner,
		CreationTime:  apiOrder.CreationDate,
		Signature:     apiOrder.Signature,
		Status:        toStatus(apiOrder.Status),
		APIAdditionalInfo: &model.APIAdditionalInfo{
			CreationDate:       apiOrder.CreationDate,
			AvailableBalance:   apiOrder.AvailableBalance,
			ExecutedBuyAmount:  apiOrder.ExecutedBuyAmount,
			ExecutedSellAmount: apiOrder.ExecutedSellAmount,
			ExecutedFeeAmount:  apiOrder.ExecutedFeeAmount,
			Invalidated:        apiOrder.Invalidated,
		},
	}
}

func toStatus(status string) model.OrderStatus {
	switch status {
	case "open", "presignaturePending":
		return model.OrderStatusPending
	default:
		return model.OrderStatus(status)
	}
}
