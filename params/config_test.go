package params

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Engine.MaxOpenOrders != 32 {
		t.Fatalf("MaxOpenOrders = %d, want 32", cfg.Engine.MaxOpenOrders)
	}
	if cfg.Engine.OracleMaxAge != 5*time.Second {
		t.Fatalf("OracleMaxAge = %v, want 5s", cfg.Engine.OracleMaxAge)
	}
	if cfg.Node.APIAddr != ":8080" {
		t.Fatalf("APIAddr = %q, want :8080", cfg.Node.APIAddr)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ENGINE_MAX_OPEN_ORDERS", "8")
	t.Setenv("ORACLE_MAX_AGE_MS", "250")
	t.Setenv("ORACLE_PUBLISHER", "0x00000000000000000000000000000000000000ab")
	t.Setenv("API_ADDR", ":9090")

	cfg := LoadFromEnv("")

	if cfg.Engine.MaxOpenOrders != 8 {
		t.Fatalf("MaxOpenOrders = %d, want 8", cfg.Engine.MaxOpenOrders)
	}
	if cfg.Engine.OracleMaxAge != 250*time.Millisecond {
		t.Fatalf("OracleMaxAge = %v, want 250ms", cfg.Engine.OracleMaxAge)
	}
	if cfg.Engine.OraclePublisher != "0x00000000000000000000000000000000000000ab" {
		t.Fatalf("OraclePublisher = %q", cfg.Engine.OraclePublisher)
	}
	if cfg.Node.APIAddr != ":9090" {
		t.Fatalf("APIAddr = %q, want :9090", cfg.Node.APIAddr)
	}
}

func TestInvalidEnvValuesIgnored(t *testing.T) {
	t.Setenv("ENGINE_MAX_OPEN_ORDERS", "not-a-number")
	t.Setenv("ORACLE_MAX_AGE_MS", "-1")

	cfg := LoadFromEnv("")

	if cfg.Engine.MaxOpenOrders != 32 {
		t.Fatalf("MaxOpenOrders = %d, want default 32", cfg.Engine.MaxOpenOrders)
	}
	if cfg.Engine.OracleMaxAge != 5*time.Second {
		t.Fatalf("OracleMaxAge = %v, want default 5s", cfg.Engine.OracleMaxAge)
	}
}
