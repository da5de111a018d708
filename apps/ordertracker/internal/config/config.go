package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"ordertracker/apps/ordertracker/internal/model"
)

type Config struct {
	RpcURL           string
	DbURL            string
	KafkaBroker      string
	KafkaTopic       string
	KafkaStatusTopic string
	ChainID          model.ChainID
	RelayURL         string
	SignerPrivateKey string
	AppID            uint64
	PollInterval     time.Duration
	ExpiryGrace      time.Duration
	ChunkSize        uint64
	FinalityOffset   uint64
	APIPort          int
}

// NewConfig loads configuration from environment variables
func NewConfig() *Config {
	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Could not load .env file: %v", err)
	}

	return &Config{
		RpcURL:           getEnvOrFatal("RPC_URL"),
		DbURL:            getEnvOrFatal("DB_URL"),
		KafkaBroker:      getEnvOrFatal("KAFKA_BROKER"),
		KafkaTopic:       getEnvOrFatal("KAFKA_TOPIC"),
		KafkaStatusTopic: os.Getenv("KAFKA_STATUS_TOPIC"),
		ChainID:          model.ChainID(getEnvUint64("CHAIN_ID", uint64(model.Mainnet))),
		RelayURL:         os.Getenv("RELAY_URL"),
		SignerPrivateKey: getEnvOrFatal("SIGNER_PRIVATE_KEY"),
		AppID:            getEnvUint64("APP_ID", 1),
		PollInterval:     getEnvDuration("POLL_INTERVAL", 10*time.Second),
		ExpiryGrace:      getEnvDuration("EXPIRY_GRACE", 3*time.Minute),
		ChunkSize:        getEnvUint64("CHUNK_SIZE", 100),
		FinalityOffset:   getEnvUint64("FINALITY_OFFSET", 12),
		APIPort:          getEnvInt("API_PORT", 8080),
	}
}

func getEnvOrFatal(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	log.Fatalf("Warning: environment variable %s not set", key)

	return ""
}

func getEnvUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseUint(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}
