package params

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Engine struct {
	// MaxOpenOrders bounds every trader's open-order collection.
	MaxOpenOrders int
	// OracleMaxAge is the staleness tolerance for signed price input.
	OracleMaxAge time.Duration
	// OraclePublisher is the trusted price publisher address (0x hex).
	OraclePublisher string
	// AttestorSeed seeds the accelerated context's BLS commitment key.
	// Devnet only; production contexts load keys from a keystore.
	AttestorSeed string
}

type Node struct {
	DBPath  string
	WALPath string
	LogPath string
	APIAddr string
}

type Config struct {
	Engine Engine
	Node   Node
}

func Default() Config {
	return Config{
		Engine: Engine{
			MaxOpenOrders: 32,
			OracleMaxAge:  5 * time.Second,
			AttestorSeed:  "tierdex-devnet-attestor-seed-0001",
		},
		Node: Node{
			DBPath:  "./data/base.db",
			WALPath: "./data/settlement.wal",
			LogPath: "./data/node.log",
			APIAddr: ":8080",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("ENGINE_MAX_OPEN_ORDERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Engine.MaxOpenOrders = n
		}
	}
	if v := os.Getenv("ORACLE_MAX_AGE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.Engine.OracleMaxAge = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("ORACLE_PUBLISHER"); v != "" {
		cfg.Engine.OraclePublisher = v
	}
	if v := os.Getenv("ATTESTOR_SEED"); v != "" {
		cfg.Engine.AttestorSeed = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Node.DBPath = v
	}
	if v := os.Getenv("WAL_PATH"); v != "" {
		cfg.Node.WALPath = v
	}
	if v := os.Getenv("LOG_PATH"); v != "" {
		cfg.Node.LogPath = v
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.Node.APIAddr = v
	}

	return cfg
}
