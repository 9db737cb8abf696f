// Package chainwatch tracks confirmation depth for contract funding and CET
// transactions, firing a callback once a watched transaction reaches the
// depth the caller asked for.
package chainwatch

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/rawblock/dlc-engine/internal/walletrpc"
)

// ConfirmationEvent is emitted once a watched transaction reaches its
// required confirmation depth.
type ConfirmationEvent struct {
	Txid          string
	ContractID    string
	Confirmations int64
	BlockHeight   int64
}

type watchedTx struct {
	contractID   string
	requiredConf int64
	fired        bool
}

// Watcher polls the node for confirmation counts on a set of watched
// transactions and fires an alert callback once each reaches its required
// depth. Progress counters are atomic so they can be read concurrently by
// the API's health/status endpoint while the poll loop runs.
type Watcher struct {
	client    *walletrpc.Client
	alertFunc func(ConfirmationEvent)

	mu      sync.Mutex
	watched map[string]*watchedTx

	totalPolled    atomic.Int64
	totalConfirmed atomic.Int64
	lastHeight     atomic.Int64
}

// NewWatcher builds a confirmation watcher. alertFunc may be nil if no
// broadcast is needed.
func NewWatcher(client *walletrpc.Client, alertFunc func(ConfirmationEvent)) *Watcher {
	return &Watcher{
		client:    client,
		alertFunc: alertFunc,
		watched:   make(map[string]*watchedTx),
	}
}

// Watch registers a transaction to be tracked until it reaches
// requiredConf confirmations.
func (w *Watcher) Watch(contractID, txid string, requiredConf int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watched[txid] = &watchedTx{contractID: contractID, requiredConf: requiredConf}
}

// Unwatch stops tracking a transaction, e.g. once the contract has moved
// past the stage that depended on it.
func (w *Watcher) Unwatch(txid string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.watched, txid)
}

// Progress reports the watcher's poll counters for the health endpoint.
type Progress struct {
	WatchedCount   int   `json:"watchedCount"`
	TotalPolled    int64 `json:"totalPolled"`
	TotalConfirmed int64 `json:"totalConfirmed"`
	LastHeight     int64 `json:"lastHeight"`
}

func (w *Watcher) Progress() Progress {
	w.mu.Lock()
	count := len(w.watched)
	w.mu.Unlock()
	return Progress{
		WatchedCount:   count,
		TotalPolled:    w.totalPolled.Load(),
		TotalConfirmed: w.totalConfirmed.Load(),
		LastHeight:     w.lastHeight.Load(),
	}
}

// Run polls every interval until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, interval time.Duration) {
	if w.client == nil {
		log.Println("[chainwatch] wallet RPC client is nil; watcher will not start")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Stopping chain watcher...")
			return
		case <-ticker.C:
			w.pollOnce()
		}
	}
}

func (w *Watcher) pollOnce() {
	if height, err := w.client.GetBlockCount(); err == nil {
		w.lastHeight.Store(height)
	}

	w.mu.Lock()
	txids := make([]string, 0, len(w.watched))
	for txid := range w.watched {
		txids = append(txids, txid)
	}
	w.mu.Unlock()

	for _, txid := range txids {
		w.totalPolled.Add(1)
		hash, err := chainhash.NewHashFromStr(txid)
		if err != nil {
			continue
		}
		result, err := w.client.GetRawTransactionVerbose(hash)
		if err != nil {
			// Not yet broadcast/visible, or node lost it from its index; keep waiting.
			continue
		}

		w.mu.Lock()
		entry, ok := w.watched[txid]
		w.mu.Unlock()
		if !ok || entry.fired {
			continue
		}

		if int64(result.Confirmations) >= entry.requiredConf {
			w.mu.Lock()
			entry.fired = true
			w.mu.Unlock()
			w.totalConfirmed.Add(1)

			if w.alertFunc != nil {
				w.alertFunc(ConfirmationEvent{
					Txid:          txid,
					ContractID:    entry.contractID,
					Confirmations: int64(result.Confirmations),
					BlockHeight:   w.lastHeight.Load(),
				})
			}
		}
	}
}
