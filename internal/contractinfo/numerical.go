package contractinfo

import (
	"strconv"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"

	"github.com/rawblock/dlc-engine/internal/digittrie"
	"github.com/rawblock/dlc-engine/internal/dlcerr"
	"github.com/rawblock/dlc-engine/internal/multitrie"
	"github.com/rawblock/dlc-engine/internal/payoutcurve"
)

// DifferenceParams, when present on a NumericalDescriptor, selects the
// NumericalWithDifference adaptor-info variant: oracles may disagree on the
// least-significant digits of their attestation within the given tolerance
// window, per internal/multitrie's combination expansion.
type DifferenceParams struct {
	MinSupportExp    int
	MaxErrorExp      int
	MaximizeCoverage bool
}

// NumericalDescriptor describes a contract whose payout is a function of a
// numeric oracle outcome.
type NumericalDescriptor struct {
	PayoutFunction    *payoutcurve.PayoutFunction
	RoundingIntervals payoutcurve.RoundingIntervals
	Base              int
	NbDigits          int
	Difference        *DifferenceParams
}

// GetPayouts returns one Payout per materialized range payout, in ascending
// outcome order.
func (n *NumericalDescriptor) GetPayouts(totalCollateral uint64) []Payout {
	ranges := n.PayoutFunction.ToRangePayouts(totalCollateral, n.RoundingIntervals)
	out := make([]Payout, len(ranges))
	for i, r := range ranges {
		out[i] = Payout{Offer: r.Payout.Offer, Accept: r.Payout.Accept}
	}
	return out
}

// RangeInfo points at the CET and adaptor signature that satisfy the
// outcome range/combination it was stored under.
type RangeInfo struct {
	CetIndex        int
	AdaptorSigIndex int
}

func pow(base uint64, exp int) uint64 {
	r := uint64(1)
	for i := 0; i < exp; i++ {
		r *= base
	}
	return r
}

func encodeDigitsBase(value, base uint64, width int) []int {
	out := make([]int, width)
	for i := width - 1; i >= 0; i-- {
		out[i] = int(value % base)
		value /= base
	}
	return out
}

// rangeToPaths splits the outcome range [start, start+count) into maximal
// base-aligned blocks, each representable as a single truncated digit path
// (a prefix of length nbDigits-k covering a base^k-sized block). This is the
// inverse of the digit trie's prefix-as-range convention: a shorter stored
// path denotes every outcome beginning with that prefix.
func rangeToPaths(start, count uint64, base uint64, nbDigits int) [][]int {
	var paths [][]int
	end := start + count
	cur := start
	for cur < end {
		remaining := end - cur
		k := 0
		for {
			blockSize := pow(base, k+1)
			if blockSize > remaining || cur%blockSize != 0 {
				break
			}
			k++
		}
		blockSize := pow(base, k)
		truncLen := nbDigits - k
		if truncLen < 0 {
			truncLen = 0
		}
		full := encodeDigitsBase(cur, base, nbDigits)
		paths = append(paths, append([]int(nil), full[:truncLen]...))
		cur += blockSize
	}
	return paths
}

// combinedPointForPath sums an oracle's per-digit signature points along
// path: revealing every digit in path and summing the corresponding
// adaptor secrets recovers the scalar needed to decrypt a signature
// encrypted under this point.
func combinedPointForPath(points SignaturePoints, oracleIndex int, path []int) (*btcec.PublicKey, error) {
	if oracleIndex >= len(points) {
		return nil, dlcerr.State("oracle index %d out of range for %d precomputed point tables", oracleIndex, len(points))
	}
	oraclePoints := points[oracleIndex]
	if len(path) > len(oraclePoints) {
		return nil, dlcerr.State("path length %d exceeds precomputed digit positions %d", len(path), len(oraclePoints))
	}
	if len(path) == 0 {
		return nil, dlcerr.Invalid("empty digit path has no signature point")
	}
	acc := oraclePoints[0][path[0]]
	for i := 1; i < len(path); i++ {
		acc = addPoints(acc, oraclePoints[i][path[i]])
	}
	return acc, nil
}

// AdaptorInfo is the tagged Enum/Numerical/NumericalWithDifference variant
// produced alongside a contract's adaptor signatures.
type AdaptorInfo struct {
	Enum           bool
	NumericalTrie  *digittrie.DigitTrie[[]RangeInfo]
	DifferenceTrie *multitrie.MultiTrie[RangeInfo]
}

// GetAdaptorInfo builds the AdaptorInfo and adaptor signatures for a
// numerical descriptor: materialize range payouts, then for every range and
// every tolerated oracle combination, sign the corresponding CET encrypted
// under that combination's joint signature point.
func (n *NumericalDescriptor) GetAdaptorInfo(
	totalCollateral uint64,
	fundPrivKey *btcec.PrivateKey,
	fundingScriptPubKey []byte,
	fundOutputValue int64,
	threshold int,
	points SignaturePoints,
	cets []*wire.MsgTx,
	adaptorIndexStart int,
) (AdaptorInfo, []*AdaptorSignature, error) {
	ranges := n.PayoutFunction.ToRangePayouts(totalCollateral, n.RoundingIntervals)
	if len(ranges) != len(cets) {
		return AdaptorInfo{}, nil, dlcerr.Invalid("expected one CET per range payout, got %d CETs for %d ranges", len(cets), len(ranges))
	}
	nbOracles := len(points)
	var sigs []*AdaptorSignature
	sigIndex := adaptorIndexStart

	if n.Difference != nil {
		trie, err := multitrie.New[RangeInfo](nbOracles, threshold, n.Base, n.Difference.MinSupportExp, n.Difference.MaxErrorExp, n.NbDigits, n.Difference.MaximizeCoverage)
		if err != nil {
			return AdaptorInfo{}, nil, err
		}
		var insertErr error
		for ci, rp := range ranges {
			sigHash, err := cetSigHash(cets[ci], fundingScriptPubKey, fundOutputValue)
			if err != nil {
				return AdaptorInfo{}, nil, err
			}
			for _, path := range rangeToPaths(rp.Start, rp.Count, uint64(n.Base), n.NbDigits) {
				err := trie.Insert(path, func(paths [][]int, trieIndexes []int) RangeInfo {
					if insertErr != nil {
						return RangeInfo{}
					}
					jointPoints := make([]*btcec.PublicKey, len(paths))
					for i, oraclePath := range paths {
						p, err := combinedPointForPath(points, trieIndexes[i], oraclePath)
						if err != nil {
							insertErr = err
							return RangeInfo{}
						}
						jointPoints[i] = p
					}
					joint, err := combinedSigPoint(jointPoints)
					if err != nil {
						insertErr = err
						return RangeInfo{}
					}
					sig, err := Sign(fundPrivKey, sigHash, joint)
					if err != nil {
						insertErr = err
						return RangeInfo{}
					}
					sigs = append(sigs, sig)
					ri := RangeInfo{CetIndex: ci, AdaptorSigIndex: sigIndex}
					sigIndex++
					return ri
				})
				if err != nil {
					return AdaptorInfo{}, nil, err
				}
				if insertErr != nil {
					return AdaptorInfo{}, nil, insertErr
				}
			}
		}
		return AdaptorInfo{DifferenceTrie: trie}, sigs, nil
	}

	trie := digittrie.New[[]RangeInfo](n.Base)
	selectors := combinationsOfOracles(nbOracles, threshold)
	for ci, rp := range ranges {
		sigHash, err := cetSigHash(cets[ci], fundingScriptPubKey, fundOutputValue)
		if err != nil {
			return AdaptorInfo{}, nil, err
		}
		for _, path := range rangeToPaths(rp.Start, rp.Count, uint64(n.Base), n.NbDigits) {
			values := make([]RangeInfo, len(selectors))
			for rank, selector := range selectors {
				jointPoints := make([]*btcec.PublicKey, len(selector))
				for i, oi := range selector {
					p, err := combinedPointForPath(points, oi, path)
					if err != nil {
						return AdaptorInfo{}, nil, err
					}
					jointPoints[i] = p
				}
				joint, err := combinedSigPoint(jointPoints)
				if err != nil {
					return AdaptorInfo{}, nil, err
				}
				sig, err := Sign(fundPrivKey, sigHash, joint)
				if err != nil {
					return AdaptorInfo{}, nil, err
				}
				sigs = append(sigs, sig)
				values[rank] = RangeInfo{CetIndex: ci, AdaptorSigIndex: sigIndex}
				sigIndex++
			}
			if err := trie.Insert(path, func(_ *[]RangeInfo) []RangeInfo { return values }); err != nil {
				return AdaptorInfo{}, nil, err
			}
		}
	}
	return AdaptorInfo{NumericalTrie: trie}, sigs, nil
}

// VerifyAndGetAdaptorInfo is the receiver-side symmetric counterpart of
// GetAdaptorInfo: it independently recomputes the same range payouts, digit
// paths and joint signature points, but verifies against received adaptor
// signatures (consumed sequentially from adaptorSigStart) instead of
// producing new ones, since the verifier does not hold the signer's key.
func (n *NumericalDescriptor) VerifyAndGetAdaptorInfo(
	totalCollateral uint64,
	fundPubKey *btcec.PublicKey,
	fundingScriptPubKey []byte,
	fundOutputValue int64,
	threshold int,
	points SignaturePoints,
	cets []*wire.MsgTx,
	adaptorSigs []*AdaptorSignature,
	adaptorSigStart int,
) (AdaptorInfo, int, error) {
	ranges := n.PayoutFunction.ToRangePayouts(totalCollateral, n.RoundingIntervals)
	if len(ranges) != len(cets) {
		return AdaptorInfo{}, adaptorSigStart, dlcerr.Invalid("expected one CET per range payout, got %d CETs for %d ranges", len(cets), len(ranges))
	}
	nbOracles := len(points)
	sigIndex := adaptorSigStart

	consume := func(sigHash [32]byte, joint *btcec.PublicKey) error {
		if sigIndex >= len(adaptorSigs) {
			return dlcerr.State("ran out of adaptor signatures to verify at index %d", sigIndex)
		}
		if err := Verify(adaptorSigs[sigIndex], fundPubKey, sigHash, joint); err != nil {
			return err
		}
		sigIndex++
		return nil
	}

	if n.Difference != nil {
		trie, err := multitrie.New[RangeInfo](nbOracles, threshold, n.Base, n.Difference.MinSupportExp, n.Difference.MaxErrorExp, n.NbDigits, n.Difference.MaximizeCoverage)
		if err != nil {
			return AdaptorInfo{}, adaptorSigStart, err
		}
		var walkErr error
		for ci, rp := range ranges {
			sigHash, err := cetSigHash(cets[ci], fundingScriptPubKey, fundOutputValue)
			if err != nil {
				return AdaptorInfo{}, adaptorSigStart, err
			}
			for _, path := range rangeToPaths(rp.Start, rp.Count, uint64(n.Base), n.NbDigits) {
				err := trie.Insert(path, func(paths [][]int, trieIndexes []int) RangeInfo {
					if walkErr != nil {
						return RangeInfo{}
					}
					jointPoints := make([]*btcec.PublicKey, len(paths))
					for i, oraclePath := range paths {
						p, err := combinedPointForPath(points, trieIndexes[i], oraclePath)
						if err != nil {
							walkErr = err
							return RangeInfo{}
						}
						jointPoints[i] = p
					}
					joint, err := combinedSigPoint(jointPoints)
					if err != nil {
						walkErr = err
						return RangeInfo{}
					}
					if err := consume(sigHash, joint); err != nil {
						walkErr = err
						return RangeInfo{}
					}
					return RangeInfo{CetIndex: ci, AdaptorSigIndex: sigIndex - 1}
				})
				if err != nil {
					return AdaptorInfo{}, adaptorSigStart, err
				}
				if walkErr != nil {
					return AdaptorInfo{}, adaptorSigStart, walkErr
				}
			}
		}
		return AdaptorInfo{DifferenceTrie: trie}, sigIndex, nil
	}

	trie := digittrie.New[[]RangeInfo](n.Base)
	selectors := combinationsOfOracles(nbOracles, threshold)
	for ci, rp := range ranges {
		sigHash, err := cetSigHash(cets[ci], fundingScriptPubKey, fundOutputValue)
		if err != nil {
			return AdaptorInfo{}, adaptorSigStart, err
		}
		for _, path := range rangeToPaths(rp.Start, rp.Count, uint64(n.Base), n.NbDigits) {
			values := make([]RangeInfo, len(selectors))
			for rank, selector := range selectors {
				jointPoints := make([]*btcec.PublicKey, len(selector))
				for i, oi := range selector {
					p, err := combinedPointForPath(points, oi, path)
					if err != nil {
						return AdaptorInfo{}, adaptorSigStart, err
					}
					jointPoints[i] = p
				}
				joint, err := combinedSigPoint(jointPoints)
				if err != nil {
					return AdaptorInfo{}, adaptorSigStart, err
				}
				if err := consume(sigHash, joint); err != nil {
					return AdaptorInfo{}, adaptorSigStart, err
				}
				values[rank] = RangeInfo{CetIndex: ci, AdaptorSigIndex: sigIndex - 1}
			}
			if err := trie.Insert(path, func(_ *[]RangeInfo) []RangeInfo { return values }); err != nil {
				return AdaptorInfo{}, adaptorSigStart, err
			}
		}
	}
	return AdaptorInfo{NumericalTrie: trie}, sigIndex, nil
}

// VerifyFromAdaptorInfo re-verifies every adaptor signature referenced by an
// already-built AdaptorInfo, re-deriving each entry's joint signature point
// from its stored digit path rather than rebuilding the trie from scratch.
// This is the counterpart used when a peer has handed over an adaptor_info
// it built itself and only the signatures need checking against it.
func VerifyFromAdaptorInfo(
	adaptorInfo AdaptorInfo,
	points SignaturePoints,
	fundPubKey *btcec.PublicKey,
	fundingScriptPubKey []byte,
	fundOutputValue int64,
	cets []*wire.MsgTx,
	sigs []*AdaptorSignature,
	threshold int,
) (int, error) {
	count := 0
	verifyOne := func(ri RangeInfo, joint *btcec.PublicKey) error {
		if ri.CetIndex < 0 || ri.CetIndex >= len(cets) {
			return dlcerr.State("range info references CET index %d out of range for %d CETs", ri.CetIndex, len(cets))
		}
		if ri.AdaptorSigIndex < 0 || ri.AdaptorSigIndex >= len(sigs) {
			return dlcerr.State("range info references adaptor signature index %d out of range for %d signatures", ri.AdaptorSigIndex, len(sigs))
		}
		sigHash, err := cetSigHash(cets[ri.CetIndex], fundingScriptPubKey, fundOutputValue)
		if err != nil {
			return err
		}
		if err := Verify(sigs[ri.AdaptorSigIndex], fundPubKey, sigHash, joint); err != nil {
			return err
		}
		count++
		return nil
	}

	switch {
	case adaptorInfo.DifferenceTrie != nil:
		for res := range adaptorInfo.DifferenceTrie.All() {
			jointPoints := make([]*btcec.PublicKey, len(res.Path))
			for i, entry := range res.Path {
				p, err := combinedPointForPath(points, entry.OracleIndex, entry.Digits)
				if err != nil {
					return count, err
				}
				jointPoints[i] = p
			}
			joint, err := combinedSigPoint(jointPoints)
			if err != nil {
				return count, err
			}
			if err := verifyOne(*res.Value, joint); err != nil {
				return count, err
			}
		}
		return count, nil
	case adaptorInfo.NumericalTrie != nil:
		nbOracles := len(points)
		selectors := combinationsOfOracles(nbOracles, threshold)
		for res := range adaptorInfo.NumericalTrie.All() {
			if len(*res.Value) != len(selectors) {
				return count, dlcerr.State("stored range info count %d does not match %d oracle combinations", len(*res.Value), len(selectors))
			}
			for rank, selector := range selectors {
				jointPoints := make([]*btcec.PublicKey, len(selector))
				for i, oi := range selector {
					p, err := combinedPointForPath(points, oi, res.Path)
					if err != nil {
						return count, err
					}
					jointPoints[i] = p
				}
				joint, err := combinedSigPoint(jointPoints)
				if err != nil {
					return count, err
				}
				if err := verifyOne((*res.Value)[rank], joint); err != nil {
					return count, err
				}
			}
		}
		return count, nil
	default:
		return 0, dlcerr.Invalid("adaptor info has neither difference trie nor numerical trie populated")
	}
}

func digitsToInts(s []string) ([]int, error) {
	out := make([]int, len(s))
	for i, v := range s {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, dlcerr.Invalid("invalid outcome digit %q: not a valid number", v)
		}
		out[i] = n
	}
	return out, nil
}

// rangeInfoForDifference resolves execution-time outcomes against a
// NumericalWithDifference adaptor info by converting each reported digit
// sequence to an ObservedPath and delegating to the multi-trie's tolerant
// lookup.
func rangeInfoForDifference(trie *multitrie.MultiTrie[RangeInfo], outcomes []Outcome) ([]OracleIndexAndPrefixLength, *RangeInfo, error) {
	observed := make([]multitrie.ObservedPath, len(outcomes))
	for i, o := range outcomes {
		digits, err := digitsToInts(o.Digits)
		if err != nil {
			return nil, nil, err
		}
		observed[i] = multitrie.ObservedPath{OracleIndex: o.OracleIndex, Digits: digits}
	}
	res, ok := trie.LookUp(observed)
	if !ok {
		return nil, nil, nil
	}
	selection := make([]OracleIndexAndPrefixLength, len(res.Path))
	for i, entry := range res.Path {
		selection[i] = OracleIndexAndPrefixLength{OracleIndex: entry.OracleIndex, PrefixLength: len(entry.Digits)}
	}
	return selection, res.Value, nil
}

// rangeInfoForMajority resolves execution-time outcomes against a plain
// Numerical adaptor info: the oracles that agree on a majority digit
// sequence form the quorum, and that combination's rank selects which of
// the leaf's per-combination RangeInfo entries applies.
func rangeInfoForMajority(trie *digittrie.DigitTrie[[]RangeInfo], outcomes []Outcome, nbOracles, threshold int) ([]OracleIndexAndPrefixLength, *RangeInfo, error) {
	digits, oracleIdxs, err := majorityCombination(outcomes)
	if err != nil {
		return nil, nil, err
	}
	if len(oracleIdxs) < threshold {
		return nil, nil, nil
	}
	sufficient := oracleIdxs[:threshold]
	path, err := digitsToInts(digits)
	if err != nil {
		return nil, nil, err
	}
	var matched *digittrie.LookupResult[[]RangeInfo]
	for res := range trie.LookUp(path) {
		r := res
		matched = &r
	}
	if matched == nil {
		return nil, nil, nil
	}
	selectors := combinationsOfOracles(nbOracles, threshold)
	rank := indexForCombination(nbOracles, sufficient)
	if rank < 0 || rank >= len(selectors) {
		return nil, nil, dlcerr.State("majority combination is not a valid %d-subset of %d oracles", threshold, nbOracles)
	}
	values := *matched.Value
	if rank >= len(values) {
		return nil, nil, dlcerr.State("stored range info count %d too small for combination rank %d", len(values), rank)
	}
	selection := make([]OracleIndexAndPrefixLength, len(sufficient))
	for i, oi := range sufficient {
		selection[i] = OracleIndexAndPrefixLength{OracleIndex: oi, PrefixLength: len(path)}
	}
	ri := values[rank]
	return selection, &ri, nil
}
