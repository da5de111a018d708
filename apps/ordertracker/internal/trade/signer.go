package trade

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"ordertracker/apps/ordertracker/internal/model"
)

// Signer produces a signature over an unsigned order. Implementations may
// prompt a user, so a rejection surfaces as an error.
type Signer interface {
	Address() common.Address
	SignOrder(ctx context.Context, chainID model.ChainID, order model.UnsignedOrder) (string, error)
}

// SettlementContract is the EIP-712 verifying contract, identical on every supported chain
const SettlementContract = "0x9008D19f58AAbD9eD0D60971565AA8510560ab41"

const (
	domainName    = "Gnosis Protocol"
	domainVersion = "v2"
	balanceERC20  = "erc20"
)

var orderTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Order": {
		{Name: "sellToken", Type: "address"},
		{Name: "buyToken", Type: "address"},
		{Name: "receiver", Type: "address"},
		{Name: "sellAmount", Type: "uint256"},
		{Name: "buyAmount", Type: "uint256"},
		{Name: "validTo", Type: "uint32"},
		{Name: "appData", Type: "bytes32"},
		{Name: "feeAmount", Type: "uint256"},
		{Name: "kind", Type: "string"},
		{Name: "partiallyFillable", Type: "bool"},
		{Name: "sellTokenBalance", Type: "string"},
		{Name: "buyTokenBalance", Type: "string"},
	},
}

// OrderTypedData builds the EIP-712 payload for an order on the given chain
func OrderTypedData(chainID model.ChainID, order model.UnsignedOrder) apitypes.TypedData {
	receiver := order.Receiver
	if receiver == "" {
		receiver = common.Address{}.Hex()
	}

	return apitypes.TypedData{
		Types:       orderTypes,
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              domainName,
			Version:           domainVersion,
			ChainId:           math.NewHexOrDecimal256(int64(chainID)),
			VerifyingContract: SettlementContract,
		},
		Message: apitypes.TypedDataMessage{
			"sellToken":         order.SellToken,
			"buyToken":          order.BuyToken,
			"receiver":          receiver,
			"sellAmount":        order.SellAmount,
			"buyAmount":         order.BuyAmount,
			"validTo":           strconv.FormatUint(uint64(order.ValidTo), 10),
			"appData":           order.AppData,
			"feeAmount":         order.FeeAmount,
			"kind":              string(order.Kind),
			"partiallyFillable": order.PartiallyFillable,
			"sellTokenBalance":  balanceERC20,
			"buyTokenBalance":   balanceERC20,
		},
	}
}

// OrderDigest returns the EIP-712 hash that gets signed for an order
func OrderDigest(chainID model.ChainID, order model.UnsignedOrder) ([]byte, error) {
	digest, _, err := apitypes.TypedDataAndHash(OrderTypedData(chainID, order))
	if err != nil {
		return nil, fmt.Errorf("failed to hash order: %w", err)
	}
	return digest, nil
}

// KeySigner signs orders with a locally held private key
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// NewKeySignerFromHex parses a hex private key, with or without 0x prefix
func NewKeySignerFromHex(hexKey string) (*KeySigner, error) {
	if has0xPrefix(hexKey) {
		hexKey = hexKey[2:]
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid signer private key: %w", err)
	}
	return NewKeySigner(key), nil
}

func (s *KeySigner) Address() common.Address {
	return s.address
}

// SignOrder returns the 65-byte r||s||v signature, v being 27 or 28
func (s *KeySigner) SignOrder(ctx context.Context, chainID model.ChainID, order model.UnsignedOrder) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	digest, err := OrderDigest(chainID, order)
	if err != nil {
		return "", err
	}

	signature, err := crypto.Sign(digest, s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign order: %w", err)
	}
	signature[crypto.RecoveryIDOffset] += 27

	return hexutil.Encode(signature), nil
}

// RecoverSigner returns the address that produced signature over the order
func RecoverSigner(chainID model.ChainID, order model.UnsignedOrder, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length %d", len(sig))
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	digest, err := OrderDigest(chainID, order)
	if err != nil {
		return common.Address{}, err
	}

	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// AppDataHash encodes a numeric application id as the bytes32 appData field
func AppDataHash(appID uint64) string {
	return common.BigToHash(new(big.Int).SetUint64(appID)).Hex()
}

func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
