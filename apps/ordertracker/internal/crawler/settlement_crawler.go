package crawler

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
	"ordertracker/apps/ordertracker/internal/model"
	"ordertracker/apps/ordertracker/internal/orders"
	"ordertracker/apps/ordertracker/internal/trade"
)

const SettlementABI = `[
	{
		"type": "event",
		"name": "Trade",
		"inputs": [
			{"internalType": "address", "name": "owner", "type": "address", "indexed": true},
			{"internalType": "contract IERC20", "name": "sellToken", "type": "address", "indexed": false},
			{"internalType": "contract IERC20", "name": "buyToken", "type": "address", "indexed": false},
			{"internalType": "uint256", "name": "sellAmount", "type": "uint256", "indexed": false},
			{"internalType": "uint256", "name": "buyAmount", "type": "uint256", "indexed": false},
			{"internalType": "uint256", "name": "feeAmount", "type": "uint256", "indexed": false},
			{"internalType": "bytes", "name": "orderUid", "type": "bytes", "indexed": false}
		]
	},
	{
		"type": "event",
		"name": "OrderInvalidated",
		"inputs": [
			{"internalType": "address", "name": "owner", "type": "address", "indexed": true},
			{"internalType": "bytes", "name": "orderUid", "type": "bytes", "indexed": false}
		]
	}
]`

// Event signatures
var (
	TradeEventSig            = crypto.Keccak256Hash([]byte("Trade(address,address,address,uint256,uint256,uint256,bytes)"))
	OrderInvalidatedEventSig = crypto.Keccak256Hash([]byte("OrderInvalidated(address,bytes)"))
)

// ChainReader is the subset of ethclient.Client the crawler needs
type ChainReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

type OrderStore interface {
	Chain(chainID model.ChainID) model.ChainState
	PendingOwners(chainID model.ChainID) []string
	Dispatch(event orders.Event)
}

type Config struct {
	ChunkSize      uint64
	FinalityOffset uint64
	Interval       time.Duration
}

// SettlementCrawler follows settlement contract logs from the chain's
// lastCheckedBlock and settles or cancels the pending orders they mention.
type SettlementCrawler struct {
	chainID           model.ChainID
	client            ChainReader
	store             OrderStore
	logger            *zap.Logger
	config            Config
	settlementAddress common.Address
	settlementABI     abi.ABI
}

func NewSettlementCrawler(chainID model.ChainID, client ChainReader, store OrderStore, config Config, logger *zap.Logger) (*SettlementCrawler, error) {
	parsedABI, err := abi.JSON(strings.NewReader(SettlementABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse settlement ABI: %w", err)
	}

	if config.ChunkSize == 0 {
		config.ChunkSize = 100
	}
	if config.Interval == 0 {
		config.Interval = 12 * time.Second
	}

	return &SettlementCrawler{
		chainID:           chainID,
		client:            client,
		store:             store,
		logger:            logger,
		config:            config,
		settlementAddress: common.HexToAddress(trade.SettlementContract),
		settlementABI:     parsedABI,
	}, nil
}

// Start crawls on every tick until ctx is cancelled
func (c *SettlementCrawler) Start(ctx context.Context) error {
	c.logger.Info("Starting settlement crawler",
		zap.Stringer("chain_id", c.chainID),
		zap.Uint64("from_block", c.store.Chain(c.chainID).LastCheckedBlock))

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.CrawlOnce(ctx); err != nil {
				c.logger.Error("Error crawling settlement logs", zap.Stringer("chain_id", c.chainID), zap.Error(err))
			}
		}
	}
}

// CrawlOnce scans every finalized block past the watermark. The watermark
// only moves forward, one chunk at a time, after the chunk was applied.
func (c *SettlementCrawler) CrawlOnce(ctx context.Context) error {
	latestBlock, err := c.client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("failed to get latest block: %w", err)
	}
	if latestBlock < c.config.FinalityOffset {
		return nil
	}
	safeBlock := latestBlock - c.config.FinalityOffset

	lastCheckedBlock := c.store.Chain(c.chainID).LastCheckedBlock
	if safeBlock <= lastCheckedBlock {
		return nil
	}

	for start := lastCheckedBlock + 1; start <= safeBlock; start += c.config.ChunkSize {
		end := start + c.config.ChunkSize - 1
		if end > safeBlock {
			end = safeBlock
		}

		if err := c.processBlockRange(ctx, start, end); err != nil {
			return fmt.Errorf("failed to process blocks %d-%d: %w", start, end, err)
		}

		if end > c.store.Chain(c.chainID).LastCheckedBlock {
			c.store.Dispatch(orders.UpdateLastCheckedBlock{ChainID: c.chainID, LastCheckedBlock: end})
		}
	}

	return nil
}

func (c *SettlementCrawler) processBlockRange(ctx context.Context, fromBlock, toBlock uint64) error {
	owners := c.store.PendingOwners(c.chainID)
	if len(owners) == 0 {
		return nil
	}

	ownerTopics := make([]common.Hash, 0, len(owners))
	for _, owner := range owners {
		ownerTopics = append(ownerTopics, common.BytesToHash(common.HexToAddress(owner).Bytes()))
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{c.settlementAddress},
		Topics: [][]common.Hash{
			{TradeEventSig, OrderInvalidatedEventSig},
			ownerTopics,
		},
	}

	logs, err := c.client.FilterLogs(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to filter logs: %w", err)
	}

	var (
		fulfilled  []orders.FulfillOrderData
		cancelled  []model.OrderID
		blockTimes = make(map[uint64]string)
	)

	for _, eventLog := range logs {
		if eventLog.Removed || len(eventLog.Topics) == 0 {
			continue
		}

		switch eventLog.Topics[0] {
		case TradeEventSig:
			data, err := c.parseTradeEvent(ctx, eventLog, blockTimes)
			if err != nil {
				return err
			}
			fulfilled = append(fulfilled, data)
		case OrderInvalidatedEventSig:
			id, err := c.parseOrderInvalidatedEvent(eventLog)
			if err != nil {
				return err
			}
			cancelled = append(cancelled, id)
		}
	}

	if len(fulfilled) > 0 {
		c.logger.Info("Found settled orders", zap.Stringer("chain_id", c.chainID), zap.Int("count", len(fulfilled)), zap.Uint64("to_block", toBlock))
		c.store.Dispatch(orders.FulfillOrdersBatch{ChainID: c.chainID, OrdersData: fulfilled})
	}
	if len(cancelled) > 0 {
		c.logger.Info("Found invalidated orders", zap.Stringer("chain_id", c.chainID), zap.Int("count", len(cancelled)), zap.Uint64("to_block", toBlock))
		c.store.Dispatch(orders.CancelOrdersBatch{ChainID: c.chainID, IDs: cancelled})
	}

	return nil
}

func (c *SettlementCrawler) parseTradeEvent(ctx context.Context, eventLog types.Log, blockTimes map[uint64]string) (orders.FulfillOrderData, error) {
	var eventData struct {
		SellToken  common.Address
		BuyToken   common.Address
		SellAmount *big.Int
		BuyAmount  *big.Int
		FeeAmount  *big.Int
		OrderUid   []byte
	}

	if err := c.settlementABI.UnpackIntoInterface(&eventData, "Trade", eventLog.Data); err != nil {
		c.logger.Error("Failed to unpack Trade event data", zap.String("tx_hash", eventLog.TxHash.Hex()), zap.Error(err), zap.Int("data_length", len(eventLog.Data)))
		return orders.FulfillOrderData{}, err
	}

	fulfillmentTime, ok := blockTimes[eventLog.BlockNumber]
	if !ok {
		header, err := c.client.HeaderByNumber(ctx, new(big.Int).SetUint64(eventLog.BlockNumber))
		if err != nil {
			return orders.FulfillOrderData{}, fmt.Errorf("failed to get block %d: %w", eventLog.BlockNumber, err)
		}
		fulfillmentTime = time.Unix(int64(header.Time), 0).UTC().Format(time.RFC3339)
		blockTimes[eventLog.BlockNumber] = fulfillmentTime
	}

	return orders.FulfillOrderData{
		ID:              hexutil.Encode(eventData.OrderUid),
		FulfillmentTime: fulfillmentTime,
		TransactionHash: eventLog.TxHash.Hex(),
		APIAdditionalInfo: &model.APIAdditionalInfo{
			ExecutedSellAmount: eventData.SellAmount.String(),
			ExecutedBuyAmount:  eventData.BuyAmount.String(),
			ExecutedFeeAmount:  eventData.FeeAmount.String(),
		},
	}, nil
}

func (c *SettlementCrawler) parseOrderInvalidatedEvent(eventLog types.Log) (model.OrderID, error) {
	var eventData struct {
		OrderUid []byte
	}

	if err := c.settlementABI.UnpackIntoInterface(&eventData, "OrderInvalidated", eventLog.Data); err != nil {
		c.logger.Error("Failed to unpack OrderInvalidated event data", zap.String("tx_hash", eventLog.TxHash.Hex()), zap.Error(err))
		return "", err
	}

	return hexutil.Encode(eventData.OrderUid), nil
}
