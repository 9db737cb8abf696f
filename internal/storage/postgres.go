package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/dlc-engine/pkg/models"
)

// ContractStore persists contract lifecycle state to PostgreSQL.
type ContractStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx.
func Connect(connStr string) (*ContractStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %v", err)
	}

	log.Println("Successfully connected to PostgreSQL for DLC contract store")
	return &ContractStore{pool: pool}, nil
}

// Close gracefully closes the connection pool.
func (s *ContractStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema loads and executes the schema.sql file.
func (s *ContractStore) InitSchema() error {
	schemaBytes, err := os.ReadFile("internal/storage/schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %v", err)
	}

	_, err = s.pool.Exec(context.Background(), string(schemaBytes))
	if err != nil {
		return fmt.Errorf("failed to execute schema migrations: %v", err)
	}

	log.Println("Contract store schema initialized")
	return nil
}

// SaveContract upserts the full contract row, including its current offer,
// accept and sign payloads.
func (s *ContractStore) SaveContract(ctx context.Context, c models.StoredContract) error {
	offerJSON, err := json.Marshal(c.Offer)
	if err != nil {
		return fmt.Errorf("failed to marshal offer: %v", err)
	}
	var acceptJSON, signJSON []byte
	if c.Accept != nil {
		if acceptJSON, err = json.Marshal(c.Accept); err != nil {
			return fmt.Errorf("failed to marshal accept: %v", err)
		}
	}
	if c.Sign != nil {
		if signJSON, err = json.Marshal(c.Sign); err != nil {
			return fmt.Errorf("failed to marshal sign: %v", err)
		}
	}

	sql := `
		INSERT INTO contracts
			(contract_id, state, offer, accept, sign, funding_txid, funding_vout,
			 fund_output_value, executed_cet_txid, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (contract_id) DO UPDATE
		SET state = EXCLUDED.state,
		    offer = EXCLUDED.offer,
		    accept = EXCLUDED.accept,
		    sign = EXCLUDED.sign,
		    funding_txid = EXCLUDED.funding_txid,
		    funding_vout = EXCLUDED.funding_vout,
		    fund_output_value = EXCLUDED.fund_output_value,
		    executed_cet_txid = EXCLUDED.executed_cet_txid,
		    updated_at = EXCLUDED.updated_at;
	`
	_, err = s.pool.Exec(ctx, sql,
		c.ContractID, c.State, offerJSON, acceptJSON, signJSON,
		c.FundingTxid, c.FundingVout, c.FundOutputValue, c.ExecutedCetTxid,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert contract: %v", err)
	}
	return nil
}

// LoadContract fetches a single contract by ID.
func (s *ContractStore) LoadContract(ctx context.Context, contractID string) (*models.StoredContract, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT contract_id, state, offer, accept, sign, funding_txid, funding_vout,
		       fund_output_value, executed_cet_txid, created_at, updated_at
		FROM contracts WHERE contract_id = $1
	`, contractID)

	var c models.StoredContract
	var offerJSON, acceptJSON, signJSON []byte
	var fundingTxid, executedCetTxid *string
	var fundingVout *uint32
	var fundOutputValue *int64

	if err := row.Scan(&c.ContractID, &c.State, &offerJSON, &acceptJSON, &signJSON,
		&fundingTxid, &fundingVout, &fundOutputValue, &executedCetTxid,
		&c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to load contract %s: %v", contractID, err)
	}

	if err := json.Unmarshal(offerJSON, &c.Offer); err != nil {
		return nil, fmt.Errorf("failed to unmarshal offer: %v", err)
	}
	if len(acceptJSON) > 0 {
		var accept models.ContractAccept
		if err := json.Unmarshal(acceptJSON, &accept); err != nil {
			return nil, fmt.Errorf("failed to unmarshal accept: %v", err)
		}
		c.Accept = &accept
	}
	if len(signJSON) > 0 {
		var sign models.ContractSign
		if err := json.Unmarshal(signJSON, &sign); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sign: %v", err)
		}
		c.Sign = &sign
	}
	if fundingTxid != nil {
		c.FundingTxid = *fundingTxid
	}
	if fundingVout != nil {
		c.FundingVout = *fundingVout
	}
	if fundOutputValue != nil {
		c.FundOutputValue = *fundOutputValue
	}
	if executedCetTxid != nil {
		c.ExecutedCetTxid = *executedCetTxid
	}
	return &c, nil
}

// UpdateContractState transitions a contract's lifecycle state.
func (s *ContractStore) UpdateContractState(ctx context.Context, contractID string, state models.ContractState, updatedAt int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE contracts SET state = $1, updated_at = $2 WHERE contract_id = $3`,
		state, updatedAt, contractID)
	return err
}

// ListContractsByState paginates contracts currently in a given state, most
// recently updated first.
func (s *ContractStore) ListContractsByState(ctx context.Context, state models.ContractState, page, limit int) ([]models.StoredContract, int, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	var totalCount int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM contracts WHERE state = $1`, state).Scan(&totalCount); err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT contract_id, state, offer, funding_txid, created_at, updated_at
		FROM contracts WHERE state = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3
	`, state, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var contracts []models.StoredContract
	for rows.Next() {
		var c models.StoredContract
		var offerJSON []byte
		var fundingTxid *string
		if err := rows.Scan(&c.ContractID, &c.State, &offerJSON, &fundingTxid, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		if err := json.Unmarshal(offerJSON, &c.Offer); err != nil {
			return nil, 0, err
		}
		if fundingTxid != nil {
			c.FundingTxid = *fundingTxid
		}
		contracts = append(contracts, c)
	}
	if contracts == nil {
		contracts = []models.StoredContract{}
	}
	return contracts, totalCount, nil
}

// SaveAttestation records an oracle's published attestation so it survives
// a restart of the oracle feed poller.
func (s *ContractStore) SaveAttestation(ctx context.Context, att models.OracleAttestation, observedAt int64) error {
	outcomesJSON, err := json.Marshal(att.Outcomes)
	if err != nil {
		return fmt.Errorf("failed to marshal attestation outcomes: %v", err)
	}
	sql := `
		INSERT INTO oracle_attestations (event_id, outcomes, signature, observed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO UPDATE
		SET outcomes = EXCLUDED.outcomes, signature = EXCLUDED.signature, observed_at = EXCLUDED.observed_at;
	`
	_, err = s.pool.Exec(ctx, sql, att.EventID, outcomesJSON, att.Signature, observedAt)
	return err
}

// GetPool exposes the connection pool for collaborators that need raw access.
func (s *ContractStore) GetPool() *pgxpool.Pool {
	return s.pool
}
