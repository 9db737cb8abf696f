// Package oraclefeed polls an oracle's HTTP endpoint for new event
// announcements and, once an event has occurred, its attestation.
package oraclefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/rawblock/dlc-engine/internal/api"
	"github.com/rawblock/dlc-engine/internal/storage"
	"github.com/rawblock/dlc-engine/pkg/models"
)

// Poller periodically fetches announcements and attestations from a single
// oracle server and broadcasts newly seen ones over the websocket hub.
type Poller struct {
	baseURL    string
	httpClient *http.Client
	wsHub      *api.Hub
	dbStore    *storage.ContractStore

	seenAnnouncements map[string]bool
	seenAttestations  map[string]bool
}

// NewPoller builds a poller against the oracle server rooted at baseURL
// (e.g. "https://oracle.example.com").
func NewPoller(baseURL string, wsHub *api.Hub, dbStore *storage.ContractStore) *Poller {
	return &Poller{
		baseURL:           baseURL,
		httpClient:        &http.Client{Timeout: 10 * time.Second},
		wsHub:             wsHub,
		dbStore:           dbStore,
		seenAnnouncements: make(map[string]bool),
		seenAttestations:  make(map[string]bool),
	}
}

// Run polls the oracle every interval for new announcements and
// attestations until ctx is cancelled.
func (p *Poller) Run(ctx context.Context, eventIDs []string, interval time.Duration) {
	if p.baseURL == "" {
		log.Println("[oraclefeed] oracle base URL is empty; poller will not start")
		return
	}

	log.Printf("Starting oracle feed poller against %s...", p.baseURL)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(1 * time.Hour)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Stopping oracle feed poller...")
			return
		case <-cleanupTicker.C:
			p.seenAnnouncements = make(map[string]bool)
		case <-ticker.C:
			for _, eventID := range eventIDs {
				p.pollAnnouncement(ctx, eventID)
				p.pollAttestation(ctx, eventID)
			}
		}
	}
}

func (p *Poller) pollAnnouncement(ctx context.Context, eventID string) {
	if p.seenAnnouncements[eventID] {
		return
	}

	var ann models.OracleAnnouncement
	if err := p.fetchJSON(ctx, "/v1/announcement/"+eventID, &ann); err != nil {
		log.Printf("[oraclefeed] error fetching announcement %s: %v", eventID, err)
		return
	}

	p.seenAnnouncements[eventID] = true

	payload, err := json.Marshal(map[string]interface{}{
		"type":         "oracle_announcement",
		"announcement": ann,
	})
	if err != nil {
		log.Printf("[oraclefeed] failed to marshal announcement payload: %v", err)
		return
	}
	if p.wsHub != nil {
		p.wsHub.Broadcast(payload)
	}
}

func (p *Poller) pollAttestation(ctx context.Context, eventID string) {
	if p.seenAttestations[eventID] {
		return
	}

	var att models.OracleAttestation
	if err := p.fetchJSON(ctx, "/v1/attestation/"+eventID, &att); err != nil {
		// Most events simply haven't occurred yet; not an error worth logging loudly.
		return
	}

	p.seenAttestations[eventID] = true

	if p.dbStore != nil {
		if err := p.dbStore.SaveAttestation(ctx, att, time.Now().Unix()); err != nil {
			log.Printf("[oraclefeed] failed to persist attestation %s: %v", eventID, err)
		}
	}

	payload, err := json.Marshal(map[string]interface{}{
		"type":        "oracle_attestation",
		"attestation": att,
	})
	if err != nil {
		log.Printf("[oraclefeed] failed to marshal attestation payload: %v", err)
		return
	}
	if p.wsHub != nil {
		p.wsHub.Broadcast(payload)
	}
}

func (p *Poller) fetchJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("oracle returned status %d for %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
