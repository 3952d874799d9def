package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tierdex/tierdex/params"
	"github.com/tierdex/tierdex/pkg/api"
	"github.com/tierdex/tierdex/pkg/custody"
	"github.com/tierdex/tierdex/pkg/engine"
	"github.com/tierdex/tierdex/pkg/engine/delegation"
	"github.com/tierdex/tierdex/pkg/engine/oracle"
	"github.com/tierdex/tierdex/pkg/storage"
	"github.com/tierdex/tierdex/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	if err := os.MkdirAll(filepath.Dir(cfg.Node.DBPath), 0o755); err != nil {
		log.Fatalf("data dir: %v", err)
	}

	// Setup logging (write to both console and file)
	logger, err := util.NewLoggerWithFile(cfg.Node.LogPath)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogPath)

	// ---- Base-layer store + settlement journal ----
	store, err := storage.NewStore(cfg.Node.DBPath)
	if err != nil {
		sugar.Fatalw("store_init_failed", "err", err)
	}
	defer store.Close()

	wal, err := storage.NewFileWAL(cfg.Node.WALPath)
	if err != nil {
		sugar.Fatalw("wal_init_failed", "err", err)
	}

	// ---- Collaborators ----
	bank := custody.NewBank()

	if cfg.Engine.OraclePublisher == "" {
		sugar.Fatal("ORACLE_PUBLISHER not set - run cmd/sign-price to generate a publisher key")
	}
	validator := oracle.NewECDSAValidator(
		common.HexToAddress(cfg.Engine.OraclePublisher),
		cfg.Engine.OracleMaxAge,
		util.RealClock{},
	)

	attestor := delegation.NewBLSAttestor([]byte(cfg.Engine.AttestorSeed))

	// ---- Engine ----
	eng := engine.New(
		engine.Config{MaxOpenOrders: cfg.Engine.MaxOpenOrders},
		engine.Deps{
			Store:    store,
			WAL:      wal,
			Custody:  bank,
			Oracle:   validator,
			Attestor: attestor,
			Clock:    util.RealClock{},
			Logger:   logger,
		},
	)
	if err := eng.Recover(); err != nil {
		sugar.Fatalw("recovery_failed", "err", err)
	}

	sugar.Infow("node_starting",
		"max_open_orders", cfg.Engine.MaxOpenOrders,
		"oracle_max_age", cfg.Engine.OracleMaxAge,
		"oracle_publisher", cfg.Engine.OraclePublisher,
		"db_path", cfg.Node.DBPath)

	// ---- API Server ----
	apiServer := api.NewServer(eng)
	go func() {
		sugar.Infow("api_server_starting", "addr", cfg.Node.APIAddr)
		if err := apiServer.Start(cfg.Node.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	sugar.Info("shutting down")
}
