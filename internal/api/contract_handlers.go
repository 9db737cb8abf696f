package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rawblock/dlc-engine/internal/contractinfo"
	"github.com/rawblock/dlc-engine/pkg/models"
)

var errStoreUnavailable = errors.New("contract store not initialized")

// handleOffer accepts a new contract offer, assigns it an ID if the caller
// didn't supply one, validates it by attempting to build its ContractInfo,
// and persists it in the offered state.
func (h *APIHandler) handleOffer(c *gin.Context) {
	var offer models.ContractOffer
	if err := c.ShouldBindJSON(&offer); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if offer.ContractID == "" {
		offer.ContractID = uuid.New().String()
	}

	if _, err := buildContractInfo(offer); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract descriptor: " + err.Error()})
		return
	}

	now := time.Now().Unix()
	stored := models.StoredContract{
		ContractID: offer.ContractID,
		State:      models.StateOffered,
		Offer:      offer,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if h.dbStore != nil {
		if err := h.dbStore.SaveContract(c.Request.Context(), stored); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	h.broadcastEvent("contract_offered", stored)
	c.JSON(http.StatusCreated, gin.H{"contractId": offer.ContractID, "state": stored.State})
}

// handleAccept records the accepting party's funding commitments against an
// offered contract.
func (h *APIHandler) handleAccept(c *gin.Context) {
	contractID := c.Param("id")
	stored, err := h.loadContract(c, contractID)
	if err != nil {
		return
	}
	if stored.State != models.StateOffered {
		c.JSON(http.StatusConflict, gin.H{"error": "contract is not awaiting acceptance, current state: " + string(stored.State)})
		return
	}

	var accept models.ContractAccept
	if err := c.ShouldBindJSON(&accept); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	accept.ContractID = contractID

	stored.Accept = &accept
	stored.State = models.StateAccepted
	stored.UpdatedAt = time.Now().Unix()
	if err := h.saveContract(c, *stored); err != nil {
		return
	}

	h.broadcastEvent("contract_accepted", stored)
	c.JSON(http.StatusOK, gin.H{"contractId": contractID, "state": stored.State})
}

// signRequest carries the fields the sign step needs but that don't belong
// in the persisted contract: the offerer's funding private key and the
// already-agreed funding outpoint.
type signRequest struct {
	FundPrivKeyHex      string `json:"fundPrivKeyHex"`
	FundingScriptPubKey string `json:"fundingScriptPubKeyHex"`
	FundingTxid         string `json:"fundingTxid"`
	FundingVout         uint32 `json:"fundingVout"`
	FundOutputValue     int64  `json:"fundOutputValue"`
}

// handleSign builds the contract's CETs, computes adaptor signatures over
// them under the offerer's funding key, and stores the resulting sign
// message.
func (h *APIHandler) handleSign(c *gin.Context) {
	contractID := c.Param("id")
	stored, err := h.loadContract(c, contractID)
	if err != nil {
		return
	}
	if stored.State != models.StateAccepted {
		c.JSON(http.StatusConflict, gin.H{"error": "contract is not accepted yet, current state: " + string(stored.State)})
		return
	}
	if stored.Accept == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "contract has no accept message on record"})
		return
	}

	var req signRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ci, err := buildContractInfo(stored.Offer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	fundPriv, err := decodePrivKey(req.FundPrivKeyHex)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fundingScriptPubKey, err := hex.DecodeString(req.FundingScriptPubKey)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid funding script pubkey hex: " + err.Error()})
		return
	}

	payouts, err := ci.GetPayouts(stored.Offer.TotalCollateral)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	cets, err := buildCETs(req.FundingTxid, req.FundingVout, payouts, stored.Offer.PayoutAddress, stored.Accept.PayoutAddress, &chaincfg.MainNetParams)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	_, sigs, err := ci.GetAdaptorInfo(stored.Offer.TotalCollateral, fundPriv, fundingScriptPubKey, req.FundOutputValue, cets, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	sign := &models.ContractSign{
		ContractID:           contractID,
		CetAdaptorSignatures: encodeAdaptorSigs(sigs),
		FundingScriptPubKey:  req.FundingScriptPubKey,
	}
	stored.Sign = sign
	stored.State = models.StateSigned
	stored.FundingTxid = req.FundingTxid
	stored.FundingVout = req.FundingVout
	stored.FundOutputValue = req.FundOutputValue
	stored.UpdatedAt = time.Now().Unix()
	if err := h.saveContract(c, *stored); err != nil {
		return
	}

	if h.watcher != nil && req.FundingTxid != "" {
		h.watcher.Watch(contractID, req.FundingTxid, 1)
	}

	h.broadcastEvent("contract_signed", stored)
	c.JSON(http.StatusOK, gin.H{"contractId": contractID, "state": stored.State, "adaptorSignatureCount": len(sigs)})
}

// executeRequest carries the observed oracle outcomes needed to resolve
// which CET pays out.
type executeRequest struct {
	Outcomes []executeOutcome `json:"outcomes"`
}

type executeOutcome struct {
	OracleIndex int      `json:"oracleIndex"`
	Digits      []string `json:"digits"`
}

// handleExecute resolves observed oracle outcomes against the contract's
// adaptor signatures and reports which CET and adaptor signature satisfy the
// quorum. It rebuilds the CETs and the AdaptorInfo trie from the persisted
// offer and sign messages rather than storing the trie itself, verifying the
// counterparty's signatures against the offerer's funding key in the process.
func (h *APIHandler) handleExecute(c *gin.Context) {
	contractID := c.Param("id")
	stored, err := h.loadContract(c, contractID)
	if err != nil {
		return
	}
	if stored.State != models.StateSigned && stored.State != models.StateConfirmed {
		c.JSON(http.StatusConflict, gin.H{"error": "contract is not ready for execution, current state: " + string(stored.State)})
		return
	}
	if stored.Sign == nil || stored.Accept == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "contract is missing its accept or sign message"})
		return
	}

	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ci, err := buildContractInfo(stored.Offer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	fundingScriptPubKey, err := hex.DecodeString(stored.Sign.FundingScriptPubKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stored funding script pubkey is not valid hex: " + err.Error()})
		return
	}
	offererPubKey, err := decodePubKey(stored.Offer.FundingPubKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	payouts, err := ci.GetPayouts(stored.Offer.TotalCollateral)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	cets, err := buildCETs(stored.FundingTxid, stored.FundingVout, payouts, stored.Offer.PayoutAddress, stored.Accept.PayoutAddress, &chaincfg.MainNetParams)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	sigs, err := decodeAdaptorSigs(stored.Sign.CetAdaptorSignatures)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	adaptorInfo, _, err := ci.VerifyAndGetAdaptorInfo(stored.Offer.TotalCollateral, offererPubKey, fundingScriptPubKey, stored.FundOutputValue, cets, sigs, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "adaptor signature verification failed: " + err.Error()})
		return
	}

	outcomes := make([]contractinfo.Outcome, len(req.Outcomes))
	for i, o := range req.Outcomes {
		outcomes[i] = contractinfo.Outcome{OracleIndex: o.OracleIndex, Digits: o.Digits}
	}
	matched, rangeInfo, err := ci.GetRangeInfoForOutcome(adaptorInfo, outcomes)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if rangeInfo == nil {
		c.JSON(http.StatusOK, gin.H{
			"contractId": contractID,
			"resolved":   false,
			"note":       "no quorum of reported outcomes agreed well enough to resolve the contract yet",
		})
		return
	}

	stored.ExecutedCetTxid = cets[rangeInfo.CetIndex].TxHash().String()
	stored.State = models.StateExecuted
	stored.UpdatedAt = time.Now().Unix()
	if err := h.saveContract(c, *stored); err != nil {
		return
	}

	h.broadcastEvent("contract_executed", stored)
	c.JSON(http.StatusOK, gin.H{
		"contractId":       contractID,
		"resolved":         true,
		"cetIndex":         rangeInfo.CetIndex,
		"cetTxid":          stored.ExecutedCetTxid,
		"adaptorSignature": encodeAdaptorSig(sigs[rangeInfo.AdaptorSigIndex]),
		"matchedOracles":   matched,
	})
}

// handleGetContract returns the full persisted contract record.
func (h *APIHandler) handleGetContract(c *gin.Context) {
	stored, err := h.loadContract(c, c.Param("id"))
	if err != nil {
		return
	}
	c.JSON(http.StatusOK, stored)
}

// handleListContracts paginates contracts by lifecycle state.
func (h *APIHandler) handleListContracts(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "contract store not initialized"})
		return
	}
	state := models.ContractState(c.DefaultQuery("state", string(models.StateOffered)))
	contracts, total, err := h.dbStore.ListContractsByState(c.Request.Context(), state, 1, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"contracts": contracts, "total": total})
}

func (h *APIHandler) loadContract(c *gin.Context, contractID string) (*models.StoredContract, error) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errStoreUnavailable.Error()})
		return nil, errStoreUnavailable
	}
	stored, err := h.dbStore.LoadContract(c.Request.Context(), contractID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "contract not found: " + err.Error()})
		return nil, err
	}
	return stored, nil
}

func (h *APIHandler) saveContract(c *gin.Context, stored models.StoredContract) error {
	if h.dbStore == nil {
		return nil
	}
	if err := h.dbStore.SaveContract(c.Request.Context(), stored); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return err
	}
	return nil
}

func (h *APIHandler) broadcastEvent(eventType string, payload interface{}) {
	if h.wsHub == nil {
		return
	}
	data, err := json.Marshal(map[string]interface{}{"type": eventType, "contract": payload})
	if err != nil {
		return
	}
	h.wsHub.Broadcast(data)
}
