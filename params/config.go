package params

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Process modes. "all" runs the engine, REST gateway and websocket hub in one process.
const (
	ModeAll     = "all"
	ModeEngine  = "engine"
	ModeGateway = "gateway"
	ModeStream  = "stream"
)

type API struct {
	Addr        string
	CORSOrigins []string
}

type Kafka struct {
	Brokers       []string
	OrdersTopic   string // order and admin commands
	SnapshotTopic string // order book snapshots keyed by symbol
	Group         string
}

// Enabled reports whether any broker is configured
func (k Kafka) Enabled() bool { return len(k.Brokers) > 0 }

type Engine struct {
	// CommandBuffer bounds the command channel in front of the matching loop
	CommandBuffer int
	// EventBuffer bounds the snapshot dispatcher queue. When it is full new
	// snapshots are dropped (and logged) rather than stalling matching.
	EventBuffer int
	SeedSymbols []string
	// LoadGen feeds simulated traders into the engine (ENABLE_LOADGEN=true)
	LoadGen     bool
	LoadGenMode string // "default" or "high"
}

type Storage struct {
	// TradeDBPath is the pebble directory of the trade journal. Empty keeps it in memory.
	TradeDBPath string
}

type Config struct {
	Mode    string
	LogFile string
	API     API
	Kafka   Kafka
	Engine  Engine
	Storage Storage
}

func Default() Config {
	return Config{
		Mode: ModeAll,
		API: API{
			Addr:        ":8080",
			CORSOrigins: []string{"*"},
		},
		Kafka: Kafka{
			OrdersTopic:   "orders",
			SnapshotTopic: "orderbook-snapshots",
			Group:         "yesno-engine",
		},
		Engine: Engine{
			CommandBuffer: 1024,
			EventBuffer:   4096,
			LoadGenMode:   "default",
		},
		Storage: Storage{
			TradeDBPath: "data/trades",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	cfg.Mode = getEnv("MODE", cfg.Mode)
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)
	cfg.API.Addr = getEnv("API_ADDR", cfg.API.Addr)
	cfg.API.CORSOrigins = getList("CORS_ORIGINS", cfg.API.CORSOrigins)

	cfg.Kafka.Brokers = getList("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.OrdersTopic = getEnv("ORDERS_TOPIC", cfg.Kafka.OrdersTopic)
	cfg.Kafka.SnapshotTopic = getEnv("SNAPSHOT_TOPIC", cfg.Kafka.SnapshotTopic)
	cfg.Kafka.Group = getEnv("KAFKA_GROUP", cfg.Kafka.Group)

	cfg.Engine.CommandBuffer = getInt("ENGINE_BUFFER", cfg.Engine.CommandBuffer)
	cfg.Engine.EventBuffer = getInt("EVENT_BUFFER", cfg.Engine.EventBuffer)
	cfg.Engine.SeedSymbols = getList("SEED_SYMBOLS", cfg.Engine.SeedSymbols)
	cfg.Engine.LoadGen = os.Getenv("ENABLE_LOADGEN") == "true"
	cfg.Engine.LoadGenMode = getEnv("LOADGEN_MODE", cfg.Engine.LoadGenMode)

	if v, ok := os.LookupEnv("TRADE_DB_PATH"); ok {
		cfg.Storage.TradeDBPath = v
	}

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getInt parses a positive integer, keeping the default on junk
func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

// getList splits a comma-separated variable, e.g. "localhost:9092,localhost:9093"
func getList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
