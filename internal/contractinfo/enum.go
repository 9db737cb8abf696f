package contractinfo

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"

	"github.com/rawblock/dlc-engine/internal/dlcerr"
)

// Payout is the offer/accept split of total collateral for one outcome or
// outcome range.
type Payout struct {
	Offer  uint64
	Accept uint64
}

// EnumOutcome is one named outcome of an enum contract and its payout.
type EnumOutcome struct {
	Outcome string
	Payout  Payout
}

// EnumDescriptor lists the finite set of outcome strings an enum contract
// can resolve to.
type EnumDescriptor struct {
	Outcomes []EnumOutcome
}

// GetPayouts returns one Payout per outcome, in declaration order.
func (e *EnumDescriptor) GetPayouts() []Payout {
	out := make([]Payout, len(e.Outcomes))
	for i, o := range e.Outcomes {
		out[i] = o.Payout
	}
	return out
}

func enumSigPoint(oracle OracleInfo, outcome string) (*btcec.PublicKey, error) {
	if len(oracle.Nonces) == 0 {
		return nil, dlcerr.Invalid("enum oracle announcement has no nonce")
	}
	msg := sha256.Sum256([]byte(outcome))
	return schnorrSigPoint(oracle.PublicKey, oracle.Nonces[0], msg[:])
}

func combinedSigPoint(points []*btcec.PublicKey) (*btcec.PublicKey, error) {
	if len(points) == 0 {
		return nil, dlcerr.Invalid("no signature points to combine")
	}
	acc := points[0]
	for _, p := range points[1:] {
		acc = addPoints(acc, p)
	}
	return acc, nil
}

// GetAdaptorSignatures produces one adaptor signature per (outcome, oracle
// quorum) pair: every outcome gets len(combinationsOfOracles(N,threshold))
// signatures, one per T-subset of oracles, each encrypted under that
// subset's joint signature point for the outcome string.
func (e *EnumDescriptor) GetAdaptorSignatures(oracleInfos []OracleInfo, threshold int, cets []*wire.MsgTx, fundPrivKey *btcec.PrivateKey, fundingScriptPubKey []byte, fundOutputValue int64) ([]*AdaptorSignature, error) {
	if len(cets) != len(e.Outcomes) {
		return nil, dlcerr.Invalid("expected one CET per outcome, got %d CETs for %d outcomes", len(cets), len(e.Outcomes))
	}
	selectors := combinationsOfOracles(len(oracleInfos), threshold)
	var sigs []*AdaptorSignature
	for i, outcome := range e.Outcomes {
		sigHash, err := cetSigHash(cets[i], fundingScriptPubKey, fundOutputValue)
		if err != nil {
			return nil, err
		}
		for _, selector := range selectors {
			points := make([]*btcec.PublicKey, len(selector))
			for j, oi := range selector {
				p, err := enumSigPoint(oracleInfos[oi], outcome.Outcome)
				if err != nil {
					return nil, err
				}
				points[j] = p
			}
			joint, err := combinedSigPoint(points)
			if err != nil {
				return nil, err
			}
			sig, err := Sign(fundPrivKey, sigHash, joint)
			if err != nil {
				return nil, err
			}
			sigs = append(sigs, sig)
		}
	}
	return sigs, nil
}

// VerifyAdaptorSignatures re-derives the same joint points and checks every
// signature, failing fast on the first mismatch.
func (e *EnumDescriptor) VerifyAdaptorSignatures(oracleInfos []OracleInfo, threshold int, fundPubKey *btcec.PublicKey, cets []*wire.MsgTx, fundingScriptPubKey []byte, fundOutputValue int64, sigs []*AdaptorSignature, start int) (int, error) {
	if len(cets) != len(e.Outcomes) {
		return start, dlcerr.Invalid("expected one CET per outcome, got %d CETs for %d outcomes", len(cets), len(e.Outcomes))
	}
	selectors := combinationsOfOracles(len(oracleInfos), threshold)
	idx := start
	for i, outcome := range e.Outcomes {
		sigHash, err := cetSigHash(cets[i], fundingScriptPubKey, fundOutputValue)
		if err != nil {
			return idx, err
		}
		for _, selector := range selectors {
			points := make([]*btcec.PublicKey, len(selector))
			for j, oi := range selector {
				p, err := enumSigPoint(oracleInfos[oi], outcome.Outcome)
				if err != nil {
					return idx, err
				}
				points[j] = p
			}
			joint, err := combinedSigPoint(points)
			if err != nil {
				return idx, err
			}
			if idx >= len(sigs) {
				return idx, dlcerr.State("ran out of adaptor signatures to verify at index %d", idx)
			}
			if err := Verify(sigs[idx], fundPubKey, sigHash, joint); err != nil {
				return idx, err
			}
			idx++
		}
	}
	return idx, nil
}
