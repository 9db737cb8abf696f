package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/rawblock/dlc-engine/internal/api"
	"github.com/rawblock/dlc-engine/internal/chainwatch"
	"github.com/rawblock/dlc-engine/internal/oraclefeed"
	"github.com/rawblock/dlc-engine/internal/storage"
	"github.com/rawblock/dlc-engine/internal/walletrpc"
)

func main() {
	log.Println("Starting DLC contract engine...")

	// ─── Required Environment Variables ─────────────────────────────────
	// All credentials MUST come from environment variables. No fallback
	// defaults for security-sensitive values. Use a .env file for local
	// development: cp .env.example .env && edit .env
	// ────────────────────────────────────────────────────────────────────

	dbURL := requireEnv("DATABASE_URL")

	dbConn, err := storage.Connect(dbURL)
	if err != nil {
		log.Printf("Warning: failed to connect to PostgreSQL, continuing without contract persistence. Error: %v", err)
	} else {
		defer dbConn.Close()
		if err := dbConn.InitSchema(); err != nil {
			log.Printf("Warning: DB schema init failed: %v", err)
		}
	}

	btcHost := getEnvOrDefault("BTC_RPC_HOST", "localhost:8332")
	btcUser := requireEnv("BTC_RPC_USER")
	btcPass := requireEnv("BTC_RPC_PASS")
	chainParams := chainParamsFromEnv()

	walletCfg := walletrpc.Config{
		Host:        btcHost,
		User:        btcUser,
		Pass:        btcPass,
		ChainParams: chainParams,
		WalletName:  getEnvOrDefault("WALLET_NAME", "dlc_engine"),
	}
	wallet, err := walletrpc.NewClient(walletCfg)
	if err != nil {
		log.Printf("Warning: failed to connect to Bitcoin RPC: %v", err)
	} else {
		defer wallet.Shutdown()
	}

	wsHub := api.NewHub()
	go wsHub.Run()

	var watcher *chainwatch.Watcher
	if wallet != nil {
		watcher = chainwatch.NewWatcher(wallet, broadcastConfirmation(wsHub))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go watcher.Run(ctx, 15*time.Second)
	} else {
		log.Println("WARNING: Bitcoin RPC unavailable — engine running without confirmation tracking")
	}

	if oracleURL := os.Getenv("ORACLE_BASE_URL"); oracleURL != "" {
		eventIDs := splitCSV(os.Getenv("ORACLE_EVENT_IDS"))
		poller := oraclefeed.NewPoller(oracleURL, wsHub, dbConn)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go poller.Run(ctx, eventIDs, 10*time.Second)
	} else {
		log.Println("ORACLE_BASE_URL not set — oracle feed poller disabled")
	}

	r := api.SetupRouter(dbConn, wallet, wsHub, watcher)

	port := getEnvOrDefault("PORT", "5339")
	log.Printf("Engine running on :%s\n", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func broadcastConfirmation(wsHub *api.Hub) func(chainwatch.ConfirmationEvent) {
	return func(ev chainwatch.ConfirmationEvent) {
		log.Printf("[chainwatch] %s reached %d confirmations (contract %s)", ev.Txid, ev.Confirmations, ev.ContractID)
		data, err := json.Marshal(map[string]interface{}{"type": "tx_confirmed", "confirmation": ev})
		if err != nil {
			log.Printf("[chainwatch] failed to marshal confirmation payload: %v", err)
			return
		}
		wsHub.Broadcast(data)
	}
}

func chainParamsFromEnv() *chaincfg.Params {
	switch getEnvOrDefault("BTC_NETWORK", "mainnet") {
	case "testnet":
		return &chaincfg.TestNet3Params
	case "signet":
		return &chaincfg.SigNetParams
	case "regtest":
		return &chaincfg.RegressionNetParams
	default:
		return &chaincfg.MainNetParams
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// requireEnv reads a required environment variable and exits if it is not set.
// This prevents the binary from starting with missing critical configuration.
func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set. "+
			"Copy .env.example to .env and fill in your values: cp .env.example .env", key)
	}
	return val
}

// getEnvOrDefault returns the env var value or a safe default for non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
