package contractinfo

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"

	"github.com/rawblock/dlc-engine/internal/dlcerr"
)

// ContractDescriptor is the tagged Enum/Numerical variant describing how a
// contract's outcome space maps to payouts.
type ContractDescriptor struct {
	Enum      *EnumDescriptor
	Numerical *NumericalDescriptor
}

// ContractInfo binds a contract descriptor to the set of oracle
// announcements and the threshold of oracles required to resolve it; it is
// the orchestrator for adaptor signature generation, verification, and
// outcome resolution.
type ContractInfo struct {
	ContractDescriptor  ContractDescriptor
	OracleAnnouncements []OracleAnnouncement
	Threshold           int
}

// GetPayouts returns the contract's payouts in outcome/range order.
func (ci *ContractInfo) GetPayouts(totalCollateral uint64) ([]Payout, error) {
	switch {
	case ci.ContractDescriptor.Enum != nil:
		return ci.ContractDescriptor.Enum.GetPayouts(), nil
	case ci.ContractDescriptor.Numerical != nil:
		return ci.ContractDescriptor.Numerical.GetPayouts(totalCollateral), nil
	default:
		return nil, dlcerr.Invalid("contract descriptor has neither enum nor numerical variant set")
	}
}

// GetOracleInfos projects the contract's announcements to the reduced
// OracleInfo view.
func (ci *ContractInfo) GetOracleInfos() []OracleInfo {
	return OracleInfos(ci.OracleAnnouncements)
}

func (ci *ContractInfo) precomputePoints() (SignaturePoints, error) {
	if ci.ContractDescriptor.Numerical == nil {
		return nil, nil
	}
	return PrecomputePoints(ci.OracleAnnouncements)
}

// GetAdaptorInfo builds the AdaptorInfo and the adaptor signatures for every
// CET, signing with fundPrivKey.
func (ci *ContractInfo) GetAdaptorInfo(
	totalCollateral uint64,
	fundPrivKey *btcec.PrivateKey,
	fundingScriptPubKey []byte,
	fundOutputValue int64,
	cets []*wire.MsgTx,
	adaptorIndexStart int,
) (AdaptorInfo, []*AdaptorSignature, error) {
	switch {
	case ci.ContractDescriptor.Enum != nil:
		sigs, err := ci.ContractDescriptor.Enum.GetAdaptorSignatures(ci.GetOracleInfos(), ci.Threshold, cets, fundPrivKey, fundingScriptPubKey, fundOutputValue)
		if err != nil {
			return AdaptorInfo{}, nil, err
		}
		return AdaptorInfo{Enum: true}, sigs, nil
	case ci.ContractDescriptor.Numerical != nil:
		points, err := ci.precomputePoints()
		if err != nil {
			return AdaptorInfo{}, nil, err
		}
		return ci.ContractDescriptor.Numerical.GetAdaptorInfo(totalCollateral, fundPrivKey, fundingScriptPubKey, fundOutputValue, ci.Threshold, points, cets, adaptorIndexStart)
	default:
		return AdaptorInfo{}, nil, dlcerr.Invalid("contract descriptor has neither enum nor numerical variant set")
	}
}

// VerifyAndGetAdaptorInfo independently reconstructs the AdaptorInfo and
// verifies the supplied adaptor signatures against it, returning the index
// past the last signature consumed.
func (ci *ContractInfo) VerifyAndGetAdaptorInfo(
	totalCollateral uint64,
	fundPubKey *btcec.PublicKey,
	fundingScriptPubKey []byte,
	fundOutputValue int64,
	cets []*wire.MsgTx,
	adaptorSigs []*AdaptorSignature,
	adaptorSigStart int,
) (AdaptorInfo, int, error) {
	switch {
	case ci.ContractDescriptor.Enum != nil:
		next, err := ci.ContractDescriptor.Enum.VerifyAdaptorSignatures(ci.GetOracleInfos(), ci.Threshold, fundPubKey, cets, fundingScriptPubKey, fundOutputValue, adaptorSigs, adaptorSigStart)
		if err != nil {
			return AdaptorInfo{}, next, err
		}
		return AdaptorInfo{Enum: true}, next, nil
	case ci.ContractDescriptor.Numerical != nil:
		points, err := ci.precomputePoints()
		if err != nil {
			return AdaptorInfo{}, adaptorSigStart, err
		}
		return ci.ContractDescriptor.Numerical.VerifyAndGetAdaptorInfo(totalCollateral, fundPubKey, fundingScriptPubKey, fundOutputValue, ci.Threshold, points, cets, adaptorSigs, adaptorSigStart)
	default:
		return AdaptorInfo{}, adaptorSigStart, dlcerr.Invalid("contract descriptor has neither enum nor numerical variant set")
	}
}

// VerifyAdaptorInfo verifies the given adaptor signatures against an
// already-built AdaptorInfo, re-deriving each entry's joint signature point
// from the trie it was stored under rather than rebuilding that trie from
// scratch (the difference from VerifyAndGetAdaptorInfo).
func (ci *ContractInfo) VerifyAdaptorInfo(
	adaptorInfo AdaptorInfo,
	fundPubKey *btcec.PublicKey,
	fundingScriptPubKey []byte,
	fundOutputValue int64,
	cets []*wire.MsgTx,
	adaptorSigs []*AdaptorSignature,
) (int, error) {
	switch {
	case ci.ContractDescriptor.Enum != nil:
		return ci.ContractDescriptor.Enum.VerifyAdaptorSignatures(ci.GetOracleInfos(), ci.Threshold, fundPubKey, cets, fundingScriptPubKey, fundOutputValue, adaptorSigs, 0)
	case ci.ContractDescriptor.Numerical != nil:
		points, err := ci.precomputePoints()
		if err != nil {
			return 0, err
		}
		return VerifyFromAdaptorInfo(adaptorInfo, points, fundPubKey, fundingScriptPubKey, fundOutputValue, cets, adaptorSigs, ci.Threshold)
	default:
		return 0, dlcerr.Invalid("contract descriptor has neither enum nor numerical variant set")
	}
}

// OracleIndexAndPrefixLength records, for one matched oracle, which oracle
// it was and how many digits of its report matched the winning path.
type OracleIndexAndPrefixLength struct {
	OracleIndex  int
	PrefixLength int
}

// GetRangeInfoForOutcome resolves observed oracle outcomes to the CET and
// adaptor signature that satisfy them, along with which oracles (and how
// much of their report) were used to reach that resolution. A nil RangeInfo
// with a nil error means no quorum of oracles agreed well enough to resolve
// the contract yet.
func (ci *ContractInfo) GetRangeInfoForOutcome(adaptorInfo AdaptorInfo, outcomes []Outcome) ([]OracleIndexAndPrefixLength, *RangeInfo, error) {
	switch {
	case adaptorInfo.Enum:
		return ci.rangeInfoForEnum(outcomes)
	case adaptorInfo.DifferenceTrie != nil:
		return rangeInfoForDifference(adaptorInfo.DifferenceTrie, outcomes)
	case adaptorInfo.NumericalTrie != nil:
		return rangeInfoForMajority(adaptorInfo.NumericalTrie, outcomes, len(ci.OracleAnnouncements), ci.Threshold)
	default:
		return nil, nil, dlcerr.Invalid("adaptor info has no populated variant")
	}
}

func (ci *ContractInfo) rangeInfoForEnum(outcomes []Outcome) ([]OracleIndexAndPrefixLength, *RangeInfo, error) {
	if ci.ContractDescriptor.Enum == nil {
		return nil, nil, dlcerr.State("enum adaptor info paired with non-enum descriptor")
	}
	digits, oracleIdxs, err := majorityCombination(outcomes)
	if err != nil {
		return nil, nil, err
	}
	if len(oracleIdxs) < ci.Threshold {
		return nil, nil, nil
	}
	if len(digits) != 1 {
		return nil, nil, dlcerr.Invalid("enum outcome must be a single string, got %d parts", len(digits))
	}
	outcomeStr := digits[0]

	cetIndex := -1
	for i, o := range ci.ContractDescriptor.Enum.Outcomes {
		if o.Outcome == outcomeStr {
			cetIndex = i
			break
		}
	}
	if cetIndex < 0 {
		return nil, nil, nil
	}

	sufficient := oracleIdxs[:ci.Threshold]
	nbOracles := len(ci.OracleAnnouncements)
	selectors := combinationsOfOracles(nbOracles, ci.Threshold)
	rank := indexForCombination(nbOracles, sufficient)
	if rank < 0 || rank >= len(selectors) {
		return nil, nil, dlcerr.State("majority combination is not a valid %d-subset of %d oracles", ci.Threshold, nbOracles)
	}

	selection := make([]OracleIndexAndPrefixLength, len(sufficient))
	for i, oi := range sufficient {
		selection[i] = OracleIndexAndPrefixLength{OracleIndex: oi, PrefixLength: 1}
	}
	ri := RangeInfo{CetIndex: cetIndex, AdaptorSigIndex: cetIndex*len(selectors) + rank}
	return selection, &ri, nil
}
