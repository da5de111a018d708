package trade

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"ordertracker/apps/ordertracker/internal/model"
	"ordertracker/apps/ordertracker/internal/orders"
)

const (
	testAccount   = "0x0b8fa6f76eb75ae3a4ca28eb3020dfc4503f2136"
	testRecipient = "0x9008d19f58aabd9ed0d60971565aa8510560ab41"
)

var (
	weth = model.Token{Address: "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", Symbol: "WETH", Decimals: 18}
	usdc = model.Token{Address: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", Symbol: "USDC", Decimals: 6}
)

type stubSigner struct {
	signature string
	err       error
	calls     int
}

func (s *stubSigner) Address() common.Address {
	return common.HexToAddress(testAccount)
}

func (s *stubSigner) SignOrder(_ context.Context, _ model.ChainID, _ model.UnsignedOrder) (string, error) {
	s.calls++
	return s.signature, s.err
}

type stubRelay struct {
	id     model.OrderID
	err    error
	posted []model.SignedOrder
}

func (r *stubRelay) PostSignedOrder(_ context.Context, _ model.ChainID, order model.SignedOrder) (model.OrderID, error) {
	r.posted = append(r.posted, order)
	return r.id, r.err
}

type recordingDispatcher struct {
	events []orders.Event
}

func (d *recordingDispatcher) Dispatch(event orders.Event) {
	d.events = append(d.events, event)
}

func amount(token model.Token, raw string) CurrencyAmount {
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		panic("bad amount " + raw)
	}
	return CurrencyAmount{Token: token, Raw: value}
}

func sellParams() PostOrderParams {
	return PostOrderParams{
		Account:      testAccount,
		ChainID:      model.Mainnet,
		Kind:         model.OrderKindSell,
		InputAmount:  amount(weth, "1500000000000000000"),
		OutputAmount: amount(usdc, "2987654321"),
		FeeAmount:    amount(weth, "1000000000000000"),
		SellToken:    weth,
		BuyToken:     usdc,
		Recipient:    testAccount,
	}
}

func TestSummary(t *testing.T) {
	name := "vitalik.eth"
	address := testRecipient

	tests := []struct {
		name     string
		modify   func(p *PostOrderParams)
		expected string
	}{
		{
			name:     "SelfRecipient",
			modify:   func(p *PostOrderParams) {},
			expected: "Swap 1.5 WETH for 2990 USDC",
		},
		{
			name: "SelfRecipientDifferentCase",
			modify: func(p *PostOrderParams) {
				p.Recipient = "0x0B8fA6F76eB75ae3a4ca28eb3020DFC4503F2136"
			},
			expected: "Swap 1.5 WETH for 2990 USDC",
		},
		{
			name: "AddressRecipient",
			modify: func(p *PostOrderParams) {
				p.Recipient = testRecipient
				p.RecipientAddressOrName = &address
			},
			expected: "Swap 1.5 WETH for 2990 USDC to 0x9008...ab41",
		},
		{
			name: "NamedRecipient",
			modify: func(p *PostOrderParams) {
				p.Recipient = testRecipient
				p.RecipientAddressOrName = &name
			},
			expected: "Swap 1.5 WETH for 2990 USDC to vitalik.eth",
		},
		{
			name: "RecipientWithoutName",
			modify: func(p *PostOrderParams) {
				p.Recipient = testRecipient
			},
			expected: "Swap 1.5 WETH for 2990 USDC to 0x9008...ab41",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := sellParams()
			tt.modify(&params)
			assert.Equal(t, tt.expected, Summary(params))
		})
	}
}

func TestToSignificant(t *testing.T) {
	tests := []struct {
		raw      string
		decimals int
		expected string
	}{
		{"1000000000000000000", 18, "1"},
		{"1234567", 6, "1.23"},
		{"1235000", 6, "1.24"},
		{"123456789", 0, "123000000"},
		{"1234", 6, "0.00123"},
		{"999600", 3, "1000"},
		{"0", 18, "0"},
	}

	for _, tt := range tests {
		a := amount(model.Token{Decimals: tt.decimals}, tt.raw)
		assert.Equal(t, tt.expected, a.ToSignificant(ShortestPrecision), "raw=%s decimals=%d", tt.raw, tt.decimals)
	}
	assert.Equal(t, "0", CurrencyAmount{}.ToSignificant(3))
}

func TestShortenAddress(t *testing.T) {
	assert.Equal(t, "0x9008...ab41", ShortenAddress(testRecipient))
	assert.True(t, strings.EqualFold("0x0b8f...2136", ShortenAddress(testAccount)))
	assert.Equal(t, "not-an-address", ShortenAddress("not-an-address"))
	assert.True(t, IsAddress(testAccount))
	assert.False(t, IsAddress("vitalik.eth"))
}

func TestBuildUnsignedOrder(t *testing.T) {
	params := sellParams()
	order := BuildUnsignedOrder(params, AppDataHash(1))

	assert.Equal(t, weth.Address, order.SellToken)
	assert.Equal(t, usdc.Address, order.BuyToken)
	assert.Equal(t, "1500000000000000000", order.SellAmount)
	assert.Equal(t, "2987654321", order.BuyAmount)
	assert.Equal(t, "1000000000000000", order.FeeAmount)
	assert.Equal(t, MaxValidTo, order.ValidTo)
	assert.Equal(t, "0x0000000000000000000000000000000000000000000000000000000000000001", order.AppData)
	assert.Equal(t, model.OrderKindSell, order.Kind)
	assert.False(t, order.PartiallyFillable)
	assert.Empty(t, order.Receiver)

	params.ValidTo = 1700000000
	params.Recipient = testRecipient
	order = BuildUnsignedOrder(params, AppDataHash(1))
	assert.Equal(t, uint32(1700000000), order.ValidTo)
	assert.Equal(t, testRecipient, order.Receiver)
}

func TestPostOrderRegistersPendingOrder(t *testing.T) {
	signer := &stubSigner{signature: "0xsig"}
	relay := &stubRelay{id: "0x123"}
	store := &recordingDispatcher{}

	submitter := NewSubmitter(signer, relay, store, 1, zap.NewNop())
	submitter.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	id, err := submitter.PostOrder(context.Background(), sellParams())
	require.NoError(t, err)
	assert.Equal(t, "0x123", id)

	require.Len(t, relay.posted, 1)
	assert.Equal(t, "0xsig", relay.posted[0].Signature)
	assert.Equal(t, testAccount, relay.posted[0].From)

	require.Len(t, store.events, 1)
	added, ok := store.events[0].(orders.AddPendingOrder)
	require.True(t, ok)
	assert.Equal(t, model.Mainnet, added.ChainID)
	assert.Equal(t, "0x123", added.ID)
	assert.Equal(t, "0x123", added.Order.ID)
	assert.Equal(t, model.OrderStatusPending, added.Order.Status)
	assert.Equal(t, "0xsig", added.Order.Signature)
	assert.Equal(t, testAccount, added.Order.Owner)
	assert.Equal(t, "2024-01-01T00:00:00Z", added.Order.CreationTime)
	assert.Equal(t, "Swap 1.5 WETH for 2990 USDC", added.Order.Summary)
	require.NotNil(t, added.Order.InputToken)
	assert.Equal(t, "WETH", added.Order.InputToken.Symbol)
	assert.Equal(t, "USDC", added.Order.OutputToken.Symbol)
}

func TestPostOrderIntoRealStore(t *testing.T) {
	store := orders.NewStore(nil, zap.NewNop())
	submitter := NewSubmitter(&stubSigner{signature: "0xsig"}, &stubRelay{id: "0x123"}, store, 1, zap.NewNop())

	_, err := submitter.PostOrder(context.Background(), sellParams())
	require.NoError(t, err)

	chainState := store.Chain(model.Mainnet)
	require.Contains(t, chainState.Pending, "0x123")
	assert.Equal(t, model.OrderStatusPending, chainState.Pending["0x123"].Order.Status)
}

func TestPostOrderRelayRejection(t *testing.T) {
	relayErr := errors.New("InsufficientFee")
	signer := &stubSigner{signature: "0xsig"}
	store := &recordingDispatcher{}
	submitter := NewSubmitter(signer, &stubRelay{err: relayErr}, store, 1, zap.NewNop())

	id, err := submitter.PostOrder(context.Background(), sellParams())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPostOrder)
	assert.ErrorIs(t, err, relayErr)
	assert.Empty(t, id)
	assert.Empty(t, store.events, "no order is registered when the relay rejects it")
}

func TestPostOrderSignerRejection(t *testing.T) {
	signErr := errors.New("user rejected signing")
	relay := &stubRelay{id: "0x123"}
	store := &recordingDispatcher{}
	submitter := NewSubmitter(&stubSigner{err: signErr}, relay, store, 1, zap.NewNop())

	_, err := submitter.PostOrder(context.Background(), sellParams())
	assert.ErrorIs(t, err, ErrSignOrder)
	assert.ErrorIs(t, err, signErr)
	assert.Empty(t, relay.posted, "nothing is posted without a signature")
	assert.Empty(t, store.events)
}

func TestApplySlippage(t *testing.T) {
	tests := []struct {
		name           string
		kind           model.OrderKind
		bips           uint32
		expectedInput  string
		expectedOutput string
	}{
		{name: "SellDefault", kind: model.OrderKindSell, bips: DefaultSlippageBips, expectedInput: "1500000000000000000", expectedOutput: "2972790369"},
		{name: "SellOnePercent", kind: model.OrderKindSell, bips: 100, expectedInput: "1500000000000000000", expectedOutput: "2958073585"},
		{name: "BuyDefault", kind: model.OrderKindBuy, bips: DefaultSlippageBips, expectedInput: "1507500000000000000", expectedOutput: "2987654321"},
		{name: "ZeroSlippage", kind: model.OrderKindSell, bips: 0, expectedInput: "1500000000000000000", expectedOutput: "2987654321"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := amount(weth, "1500000000000000000")
			output := amount(usdc, "2987654321")

			gotInput, gotOutput := ApplySlippage(tt.kind, input, output, tt.bips)
			assert.Equal(t, tt.expectedInput, gotInput.RawString())
			assert.Equal(t, tt.expectedOutput, gotOutput.RawString())
			assert.Equal(t, "1500000000000000000", input.RawString(), "caller amounts are not mutated")
			assert.Equal(t, "2987654321", output.RawString(), "caller amounts are not mutated")
		})
	}
}

func TestApplySlippageFloors(t *testing.T) {
	_, output := ApplySlippage(model.OrderKindSell, amount(weth, "1"), amount(usdc, "1000"), DefaultSlippageBips)
	assert.Equal(t, "995", output.RawString())

	input, _ := ApplySlippage(model.OrderKindBuy, amount(weth, "999"), amount(usdc, "1"), DefaultSlippageBips)
	assert.Equal(t, "1003", input.RawString())
}

func TestPostOrderAppliesSlippage(t *testing.T) {
	relay := &stubRelay{id: "0x123"}
	store := &recordingDispatcher{}
	submitter := NewSubmitter(&stubSigner{signature: "0xsig"}, relay, store, 1, zap.NewNop())

	params := sellParams()
	params.SlippageBips = DefaultSlippageBips
	_, err := submitter.PostOrder(context.Background(), params)
	require.NoError(t, err)

	require.Len(t, relay.posted, 1)
	assert.Equal(t, "1500000000000000000", relay.posted[0].SellAmount)
	assert.Equal(t, "2972790369", relay.posted[0].BuyAmount)

	added := store.events[0].(orders.AddPendingOrder)
	assert.Equal(t, "2972790369", added.Order.BuyAmount)
	assert.Equal(t, "Swap 1.5 WETH for 2970 USDC", added.Order.Summary)
}

func TestPostOrderOwnerMatchesSignature(t *testing.T) {
	signer, err := NewKeySignerFromHex(testKey)
	require.NoError(t, err)
	relay := &stubRelay{id: "0x123"}
	store := &recordingDispatcher{}
	submitter := NewSubmitter(signer, relay, store, 1, zap.NewNop())

	params := sellParams()
	params.Account = ""
	params.Recipient = ""
	_, err = submitter.PostOrder(context.Background(), params)
	require.NoError(t, err)

	require.Len(t, store.events, 1)
	added := store.events[0].(orders.AddPendingOrder)
	recovered, err := RecoverSigner(model.Mainnet, added.Order.UnsignedOrder, added.Order.Signature)
	require.NoError(t, err)
	assert.Equal(t, recovered.Hex(), added.Order.Owner)
	assert.Equal(t, recovered.Hex(), relay.posted[0].From)
	assert.Equal(t, submitter.Account(), added.Order.Owner)
	assert.Empty(t, added.Order.Receiver)
}

func TestPostOrderRejectsForeignAccount(t *testing.T) {
	signer, err := NewKeySignerFromHex(testKey)
	require.NoError(t, err)
	relay := &stubRelay{id: "0x123"}
	store := &recordingDispatcher{}
	submitter := NewSubmitter(signer, relay, store, 1, zap.NewNop())

	_, err = submitter.PostOrder(context.Background(), sellParams())
	assert.ErrorIs(t, err, ErrAccountMismatch)
	assert.Empty(t, relay.posted)
	assert.Empty(t, store.events)
}

func TestPostOrderAcceptsAccountInAnyCase(t *testing.T) {
	store := &recordingDispatcher{}
	submitter := NewSubmitter(&stubSigner{signature: "0xsig"}, &stubRelay{id: "0x123"}, store, 1, zap.NewNop())

	params := sellParams()
	params.Account = "0x" + strings.ToUpper(testAccount[2:])
	_, err := submitter.PostOrder(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, store.events, 1)
}
