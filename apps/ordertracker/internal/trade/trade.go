package trade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"ordertracker/apps/ordertracker/internal/model"
	"ordertracker/apps/ordertracker/internal/orders"
)

// MaxValidTo is the largest uint32 epoch, used when no deadline is requested
const MaxValidTo uint32 = 0xFFFFFFFF

var (
	ErrSignOrder       = errors.New("failed to sign order")
	ErrPostOrder       = errors.New("failed to post signed order")
	ErrAccountMismatch = errors.New("account does not match the signing key")
)

// RelayClient submits signed orders and returns the relay-assigned uid
type RelayClient interface {
	PostSignedOrder(ctx context.Context, chainID model.ChainID, order model.SignedOrder) (model.OrderID, error)
}

// Dispatcher is the part of the order store the submission flow writes to
type Dispatcher interface {
	Dispatch(event orders.Event)
}

type PostOrderParams struct {
	// Account defaults to the signer address
	Account      string
	ChainID      model.ChainID
	Kind         model.OrderKind
	InputAmount  CurrencyAmount
	OutputAmount CurrencyAmount
	FeeAmount    CurrencyAmount
	SellToken    model.Token
	BuyToken     model.Token
	// ValidTo of zero means MaxValidTo
	ValidTo uint32
	// SlippageBips widens the limit amount: sell orders accept less, buy orders pay more
	SlippageBips uint32
	Recipient    string
	// RecipientAddressOrName is what the user typed: an address, a name, or nil for "send to myself"
	RecipientAddressOrName *string
}

// Submitter runs the sign -> post -> register flow for new orders
type Submitter struct {
	signer  Signer
	relay   RelayClient
	store   Dispatcher
	appData string
	logger  *zap.Logger
	now     func() time.Time
}

func NewSubmitter(signer Signer, relay RelayClient, store Dispatcher, appID uint64, logger *zap.Logger) *Submitter {
	return &Submitter{
		signer:  signer,
		relay:   relay,
		store:   store,
		appData: AppDataHash(appID),
		logger:  logger,
		now:     time.Now,
	}
}

// Summary describes the trade for activity lists, e.g. "Swap 1 WETH for 3000 DAI to 0x0B8f...2136"
func Summary(params PostOrderParams) string {
	base := fmt.Sprintf("Swap %s %s for %s %s",
		params.InputAmount.ToSignificant(ShortestPrecision), params.InputAmount.Token.Symbol,
		params.OutputAmount.ToSignificant(ShortestPrecision), params.OutputAmount.Token.Symbol)

	if params.Recipient == "" || sameAddress(params.Recipient, params.Account) {
		return base
	}

	return fmt.Sprintf("%s to %s", base, recipientDisplay(params))
}

func recipientDisplay(params PostOrderParams) string {
	if params.RecipientAddressOrName == nil {
		return ShortenAddress(params.Recipient)
	}
	name := *params.RecipientAddressOrName
	if IsAddress(name) {
		return ShortenAddress(name)
	}
	return name
}

// BuildUnsignedOrder assembles the fill-or-kill order for params
func BuildUnsignedOrder(params PostOrderParams, appData string) model.UnsignedOrder {
	validTo := params.ValidTo
	if validTo == 0 {
		validTo = MaxValidTo
	}

	var receiver string
	if params.Recipient != "" && !sameAddress(params.Recipient, params.Account) {
		receiver = params.Recipient
	}

	return model.UnsignedOrder{
		SellToken:         params.SellToken.Address,
		BuyToken:          params.BuyToken.Address,
		Receiver:          receiver,
		SellAmount:        params.InputAmount.RawString(),
		BuyAmount:         params.OutputAmount.RawString(),
		ValidTo:           validTo,
		AppData:           appData,
		FeeAmount:         params.FeeAmount.RawString(),
		Kind:              params.Kind,
		PartiallyFillable: false,
	}
}

// Account is the owner of every order this submitter signs
func (s *Submitter) Account() string {
	return s.signer.Address().Hex()
}

// PostOrder signs and submits the order, then registers it as pending.
// The store is only touched once the relay has accepted the order.
func (s *Submitter) PostOrder(ctx context.Context, params PostOrderParams) (model.OrderID, error) {
	account := s.Account()
	if params.Account == "" {
		params.Account = account
	} else if !sameAddress(params.Account, account) {
		return "", fmt.Errorf("%w: got %s, signing as %s", ErrAccountMismatch, params.Account, account)
	}

	params.InputAmount, params.OutputAmount = ApplySlippage(params.Kind, params.InputAmount, params.OutputAmount, params.SlippageBips)

	summary := Summary(params)
	unsignedOrder := BuildUnsignedOrder(params, s.appData)

	signature, err := s.signer.SignOrder(ctx, params.ChainID, unsignedOrder)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSignOrder, err)
	}
	creationTime := s.now().UTC().Format(time.RFC3339)

	orderID, err := s.relay.PostSignedOrder(ctx, params.ChainID, model.SignedOrder{
		UnsignedOrder: unsignedOrder,
		Signature:     signature,
		From:          params.Account,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPostOrder, err)
	}

	inputToken := params.InputAmount.Token
	outputToken := params.OutputAmount.Token

	s.store.Dispatch(orders.AddPendingOrder{
		ChainID: params.ChainID,
		ID:      orderID,
		Order: model.Order{
			UnsignedOrder: unsignedOrder,
			ID:            orderID,
			Owner:         params.Account,
			CreationTime:  creationTime,
			Signature:     signature,
			Status:        model.OrderStatusPending,
			Summary:       summary,
			InputToken:    &inputToken,
			OutputToken:   &outputToken,
		},
	})

	s.logger.Info("Posted order",
		zap.String("order_id", orderID),
		zap.Stringer("chain_id", params.ChainID),
		zap.String("owner", params.Account),
		zap.String("kind", string(params.Kind)),
		zap.String("summary", summary))

	return orderID, nil
}
