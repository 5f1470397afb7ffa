// Package main runs a fit-token ledger node: the runtime with the system,
// token and reward programs behind a JSON-RPC and WebSocket endpoint.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"fit-token/internal/config"
	"fit-token/internal/programs/fittoken"
	"fit-token/internal/programs/system"
	"fit-token/internal/programs/token"
	"fit-token/internal/rpcserver"
	"fit-token/internal/runtime"
	"fit-token/internal/storage"
	"fit-token/internal/storage/cache"
	chstore "fit-token/internal/storage/clickhouse"
	"fit-token/internal/storage/memory"
	"fit-token/internal/storage/migrations"
	pgstore "fit-token/internal/storage/postgres"
)

// stores holds the storage backends selected by configuration.
type stores struct {
	accounts storage.AccountStore
	txLog    storage.TransactionLogStore
	progress storage.LedgerProgressStore
}

func main() {
	logger := log.New(os.Stdout, "[node] ", log.LstdFlags|log.Lshortfile)

	// Load .env file if exists
	if err := config.LoadEnvFile(".env"); err != nil {
		logger.Fatalf("Failed to load .env: %v", err)
	}

	cfg, err := config.LoadNode(os.Args[1:])
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	registry, err := runtime.NewRegistry(
		system.New(),
		token.New(),
		fittoken.New(fittoken.Options{StrictAuthority: cfg.StrictAuthority}),
	)
	if err != nil {
		logger.Fatalf("Failed to register programs: %v", err)
	}

	hub := rpcserver.NewHub(nil, log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lshortfile))

	rt, err := runtime.New(runtime.Options{
		Store:     st.accounts,
		Registry:  registry,
		TxLog:     st.txLog,
		Progress:  st.progress,
		Publisher: hub,
		Logger:    log.New(os.Stdout, "[runtime] ", log.LstdFlags|log.Lshortfile),
	})
	if err != nil {
		logger.Fatalf("Failed to create runtime: %v", err)
	}
	if err := rt.Restore(ctx); err != nil {
		logger.Fatalf("Failed to restore ledger progress: %v", err)
	}
	logger.Printf("Ledger at slot %d, programs %v", rt.Slot(), registry.IDs())

	server, err := rpcserver.New(rpcserver.Options{
		Runtime: rt,
		TxLog:   st.txLog,
		Hub:     hub,
		Logger:  log.New(os.Stdout, "[rpc] ", log.LstdFlags|log.Lshortfile),
	})
	if err != nil {
		logger.Fatalf("Failed to create RPC server: %v", err)
	}

	// Channel to signal completion
	done := make(chan struct{})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-done:
		}
	}()

	err = server.ListenAndServe(ctx, cfg.ListenAddr, cfg.ShutdownTimeout)
	close(done)
	if err != nil {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores opens the configured backends and applies migrations.
func createStores(ctx context.Context, cfg *config.Node, logger *log.Logger) (*stores, func(), error) {
	st := &stores{}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.UseMemory {
		logger.Println("Using in-memory account storage")
		st.accounts = memory.NewAccountStore()
		st.progress = memory.NewLedgerProgressStore()
	} else {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, int32(cfg.PGMaxConns))
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, pool.Close)

		applied, err := migrations.ApplyPostgres(ctx, pool)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		for _, v := range applied {
			logger.Printf("Applied migration %s", v)
		}
		st.accounts = pgstore.NewAccountStore(pool)
		st.progress = pgstore.NewLedgerProgressStore(pool)
		logger.Println("Using PostgreSQL account storage")
	}

	if cfg.CacheSize > 0 {
		cached, err := cache.NewAccountStore(st.accounts, cfg.CacheSize)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		st.accounts = cached
	}

	if cfg.ClickHouseDSN == "" {
		st.txLog = memory.NewTransactionLogStore()
		logger.Println("Using in-memory transaction log")
	} else {
		conn, err := chstore.OpenDatabase(ctx, cfg.ClickHouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { conn.Close() })

		if err := migrations.ApplyClickhouse(ctx, conn); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		st.txLog = chstore.NewTransactionLogStore(conn)
		logger.Println("Using ClickHouse transaction log")
	}

	return st, cleanup, nil
}
