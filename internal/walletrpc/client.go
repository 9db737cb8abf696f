// Package walletrpc wraps a Bitcoin Core JSON-RPC connection for the pieces
// of wallet and chain access the contract engine needs: funding input
// selection, fee estimation, and CET/funding transaction broadcast and
// confirmation lookups.
package walletrpc

import (
	"fmt"
	"log"
	"math"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
)

// Client holds the node RPC connection plus an optional dedicated wallet
// connection for signing and UTXO operations.
type Client struct {
	RPC       *rpcclient.Client
	WalletRPC *rpcclient.Client
	Config    Config
}

// Config carries the Bitcoin Core RPC endpoint and credentials.
type Config struct {
	Host          string
	User          string
	Pass          string
	ChainParams   *chaincfg.Params
	WalletName    string
}

// NewClient connects to the node, verifies the connection, and ensures a
// wallet is loaded for funding-input and signing operations.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ChainParams == nil {
		cfg.ChainParams = &chaincfg.MainNetParams
	}
	if cfg.WalletName == "" {
		cfg.WalletName = "dlc_engine"
	}

	connCfg := &rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Pass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}

	log.Printf("Connecting to Bitcoin RPC at %s...", cfg.Host)
	client, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, err
	}

	blockCount, err := client.GetBlockCount()
	if err != nil {
		client.Shutdown()
		return nil, err
	}
	log.Printf("Connected to Bitcoin node. Current block height: %d", blockCount)

	c := &Client{RPC: client, Config: cfg}
	if err := c.initializeWallet(); err != nil {
		log.Printf("Warning: failed to initialize wallet: %v. Funding operations will fail until resolved.", err)
	} else {
		log.Println("Wallet initialized successfully.")
	}

	return c, nil
}

// Shutdown closes the RPC connections.
func (c *Client) Shutdown() {
	c.RPC.Shutdown()
	if c.WalletRPC != nil {
		c.WalletRPC.Shutdown()
	}
}

func (c *Client) initializeWallet() error {
	wallets, err := c.RPC.ListWallets()
	if err != nil {
		return err
	}
	for _, w := range wallets {
		if w == c.Config.WalletName || w == "" {
			return c.dialWalletRPC()
		}
	}

	if _, err := c.RPC.LoadWallet(c.Config.WalletName); err != nil {
		if _, err := c.RPC.CreateWallet(c.Config.WalletName); err != nil {
			return err
		}
	}
	return c.dialWalletRPC()
}

func (c *Client) dialWalletRPC() error {
	walletConnCfg := &rpcclient.ConnConfig{
		Host:         c.Config.Host + "/wallet/" + c.Config.WalletName,
		User:         c.Config.User,
		Pass:         c.Config.Pass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}
	walletClient, err := rpcclient.New(walletConnCfg, nil)
	if err != nil {
		return err
	}
	c.WalletRPC = walletClient
	return nil
}

func (c *Client) walletOrNode() *rpcclient.Client {
	if c.WalletRPC != nil {
		return c.WalletRPC
	}
	return c.RPC
}

// ListUnspentForFunding returns wallet UTXOs spendable for contract funding
// inputs, optionally restricted to a set of addresses.
func (c *Client) ListUnspentForFunding(addresses []string) ([]btcjson.ListUnspentResult, error) {
	if len(addresses) == 0 {
		return c.walletOrNode().ListUnspentMin(1)
	}
	decoded := make([]btcutil.Address, 0, len(addresses))
	for _, addr := range addresses {
		a, err := btcutil.DecodeAddress(addr, c.Config.ChainParams)
		if err != nil {
			return nil, err
		}
		decoded = append(decoded, a)
	}
	return c.walletOrNode().ListUnspentMinMaxAddresses(1, 9999999, decoded)
}

// GetNewAddress derives a fresh wallet address for change or payout.
func (c *Client) GetNewAddress(label string) (btcutil.Address, error) {
	return c.walletOrNode().GetNewAddress(label)
}

// SignRawTransactionWithWallet signs the funding-input portions of a
// transaction the wallet owns keys for (the offer/accept funding inputs).
func (c *Client) SignRawTransactionWithWallet(tx *wire.MsgTx) (*wire.MsgTx, bool, error) {
	return c.walletOrNode().SignRawTransactionWithWallet(tx)
}

// SendRawTransaction broadcasts a fully-signed funding or CET transaction.
func (c *Client) SendRawTransaction(tx *wire.MsgTx) (*chainhash.Hash, error) {
	return c.RPC.SendRawTransaction(tx, false)
}

// GetRawTransactionVerbose fetches a transaction with confirmation and
// block metadata, used to track CET/funding confirmation depth.
func (c *Client) GetRawTransactionVerbose(txHash *chainhash.Hash) (*btcjson.TxRawResult, error) {
	return c.RPC.GetRawTransactionVerbose(txHash)
}

// GetBlockCount returns the current chain tip height.
func (c *Client) GetBlockCount() (int64, error) {
	return c.RPC.GetBlockCount()
}

// GetBlockHash resolves a height to its block hash.
func (c *Client) GetBlockHash(height int64) (*chainhash.Hash, error) {
	return c.RPC.GetBlockHash(height)
}

// GetBlockVerbose fetches a block's transaction list and metadata.
func (c *Client) GetBlockVerbose(hash *chainhash.Hash) (*btcjson.GetBlockVerboseResult, error) {
	return c.RPC.GetBlockVerboseTx(hash)
}

func (c *Client) estimateSmartFeeByMode(confTarget int64, mode *btcjson.EstimateSmartFeeMode) (float64, error) {
	res, err := c.RPC.EstimateSmartFee(confTarget, mode)
	if err != nil {
		return 0, err
	}
	if res == nil || res.FeeRate == nil || !isFinitePositive(*res.FeeRate) {
		return 0, nil
	}
	return *res.FeeRate, nil
}

func isFinitePositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

func btcPerKVbToSatPerVB(v float64) float64 {
	return v * 100_000
}

// EstimateFeeRateSatPerVb estimates a contract funding/CET fee rate, falling
// back from CONSERVATIVE to ECONOMICAL to a hardcoded floor if both fail.
func (c *Client) EstimateFeeRateSatPerVb(confTarget int64) (int64, error) {
	conservative := btcjson.EstimateModeConservative
	if fee, err := c.estimateSmartFeeByMode(confTarget, &conservative); err == nil && fee > 0 {
		return int64(btcPerKVbToSatPerVB(fee)), nil
	}
	economical := btcjson.EstimateModeEconomical
	if fee, err := c.estimateSmartFeeByMode(confTarget, &economical); err == nil && fee > 0 {
		return int64(btcPerKVbToSatPerVB(fee)), nil
	}
	return 1, fmt.Errorf("no fee estimate available for conf target %d, using floor rate", confTarget)
}
