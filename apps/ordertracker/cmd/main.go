package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"ordertracker/apps/ordertracker/internal/api"
	"ordertracker/apps/ordertracker/internal/config"
	"ordertracker/apps/ordertracker/internal/crawler"
	"ordertracker/apps/ordertracker/internal/event_publisher"
	"ordertracker/apps/ordertracker/internal/model"
	"ordertracker/apps/ordertracker/internal/orders"
	"ordertracker/apps/ordertracker/internal/poller"
	"ordertracker/apps/ordertracker/internal/reconciler"
	"ordertracker/apps/ordertracker/internal/relay"
	"ordertracker/apps/ordertracker/internal/repository"
	"ordertracker/apps/ordertracker/internal/tokens"
	"ordertracker/apps/ordertracker/internal/trade"
)

func main() {
	// Initialize zap logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	// Load configuration from environment variables
	cfg := config.NewConfig()

	logger.Info("Starting application with configuration",
		zap.String("rpc_url", cfg.RpcURL),
		zap.String("kafka_broker", cfg.KafkaBroker),
		zap.String("kafka_topic", cfg.KafkaTopic),
		zap.String("kafka_status_topic", cfg.KafkaStatusTopic),
		zap.Uint64("chain_id", uint64(cfg.ChainID)),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Duration("expiry_grace", cfg.ExpiryGrace),
		zap.Uint64("chunk_size", cfg.ChunkSize),
		zap.Uint64("finality_offset", cfg.FinalityOffset),
		zap.Int("api_port", cfg.APIPort),
	)

	// Connect to database
	db, err := sql.Open("postgres", cfg.DbURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize database tables
	if err := repository.InitMigration(db); err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	stateRepository := repository.NewStateRepository(db, logger)
	outboxRepository := repository.NewOutboxRepository(db, logger)

	// Hydrate the order store from the last persisted snapshot
	initialState, err := stateRepository.LoadState()
	if err != nil {
		logger.Fatal("Failed to load order state", zap.Error(err))
	}
	store := orders.NewStore(initialState, logger)
	store.Subscribe(repository.NewStoreRecorder(stateRepository, logger))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create event publisher
	eventPublisher, err := event_publisher.NewEventPublisher(cfg.KafkaBroker, cfg.KafkaTopic, logger, outboxRepository)
	if err != nil {
		logger.Fatal("Failed to create event publisher", zap.Error(err))
	}
	defer eventPublisher.Close()

	// Start event publisher in background
	go eventPublisher.StartPublishing(ctx)

	relayURLs := map[model.ChainID]string{}
	if cfg.RelayURL != "" {
		relayURLs[cfg.ChainID] = cfg.RelayURL
	}
	relayClient := relay.NewClient(relayURLs, logger)

	signer, err := trade.NewKeySignerFromHex(cfg.SignerPrivateKey)
	if err != nil {
		logger.Fatal("Failed to load signing key", zap.Error(err))
	}
	logger.Info("Signing orders", zap.String("account", signer.Address().Hex()))

	submitter := trade.NewSubmitter(signer, relayClient, store, cfg.AppID, logger)
	registry := tokens.NewRegistry()

	client, err := ethclient.Dial(cfg.RpcURL)
	if err != nil {
		logger.Fatal("Failed to connect to Ethereum client", zap.Error(err))
	}
	defer client.Close()

	// Create settlement crawler
	settlementCrawler, err := crawler.NewSettlementCrawler(cfg.ChainID, client, store, crawler.Config{
		ChunkSize:      cfg.ChunkSize,
		FinalityOffset: cfg.FinalityOffset,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create crawler", zap.Error(err))
	}

	// Start crawler in background
	go func() {
		if err := settlementCrawler.Start(ctx); err != nil {
			logger.Error("Crawler stopped", zap.Error(err))
		}
	}()

	// Start relay poller in background
	orderPoller := poller.NewPoller(cfg.ChainID, relayClient, store, cfg.PollInterval, cfg.ExpiryGrace, logger)
	go func() {
		if err := orderPoller.Start(ctx); err != nil {
			logger.Error("Poller stopped", zap.Error(err))
		}
	}()

	if cfg.KafkaStatusTopic != "" {
		statusReconciler, err := reconciler.NewStatusReconciler(cfg.KafkaBroker, cfg.KafkaStatusTopic, registry.SupportedChains(), store, logger)
		if err != nil {
			logger.Fatal("Failed to create status reconciler", zap.Error(err))
		}
		defer statusReconciler.Close()

		go func() {
			if err := statusReconciler.Start(ctx); err != nil {
				logger.Error("Status reconciler stopped", zap.Error(err))
			}
		}()
	}

	// Create and start API server
	tokenHandler, err := api.NewTokenHandler(registry, client, cfg.ChainID, logger)
	if err != nil {
		logger.Fatal("Failed to create token handler", zap.Error(err))
	}
	orderHandler := api.NewOrderHandler(store, submitter, registry, logger)
	apiServer := api.NewServer(cfg.APIPort, orderHandler, tokenHandler, logger)
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Fatal("API server failed", zap.Error(err))
		}
	}()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	<-sigChan
	logger.Info("Received shutdown signal, starting graceful shutdown...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown API server gracefully
	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error shutting down API server", zap.Error(err))
	}

	logger.Info("Application shutdown complete")
}
