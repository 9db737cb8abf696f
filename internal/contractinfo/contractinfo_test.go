package contractinfo

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/rawblock/dlc-engine/internal/payoutcurve"
)

func mustPrivKey(t *testing.T) *btcec.PrivateKey {
	t.Helper()
	k, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	return k
}

func testFundingScriptPubKey() []byte {
	return []byte{0x00, 0x20,
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c,
		0x0d, 0x0e, 0x0f, 0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18,
		0x19, 0x1a, 0x1b, 0x1c, 0x1d, 0x1e, 0x1f, 0x20,
	}
}

func testCET(fundOutputValue int64) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{}, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(fundOutputValue-1000, []byte{0x00, 0x14}))
	return tx
}

func nonceKeys(t *testing.T, n int) []*btcec.PublicKey {
	t.Helper()
	out := make([]*btcec.PublicKey, n)
	for i := range out {
		out[i] = mustPrivKey(t).PubKey()
	}
	return out
}

func TestEnumContractAdaptorRoundTrip(t *testing.T) {
	fundPriv := mustPrivKey(t)
	fundPub := fundPriv.PubKey()
	fundingScriptPubKey := testFundingScriptPubKey()
	const fundOutputValue = 200_000

	oracle1 := mustPrivKey(t)
	oracle2 := mustPrivKey(t)
	announcements := []OracleAnnouncement{
		{
			OraclePublicKey: oracle1.PubKey(),
			OracleEvent: OracleEvent{
				OracleNonces:    nonceKeys(t, 1),
				EventDescriptor: EventDescriptor{Enum: []string{"win", "lose"}},
				EventID:         "game-1",
			},
		},
		{
			OraclePublicKey: oracle2.PubKey(),
			OracleEvent: OracleEvent{
				OracleNonces:    nonceKeys(t, 1),
				EventDescriptor: EventDescriptor{Enum: []string{"win", "lose"}},
				EventID:         "game-1",
			},
		},
	}

	ci := &ContractInfo{
		ContractDescriptor: ContractDescriptor{Enum: &EnumDescriptor{Outcomes: []EnumOutcome{
			{Outcome: "win", Payout: Payout{Offer: 200_000, Accept: 0}},
			{Outcome: "lose", Payout: Payout{Offer: 0, Accept: 200_000}},
		}}},
		OracleAnnouncements: announcements,
		Threshold:           2,
	}

	cets := []*wire.MsgTx{testCET(fundOutputValue), testCET(fundOutputValue)}

	adaptorInfo, sigs, err := ci.GetAdaptorInfo(fundOutputValue, fundPriv, fundingScriptPubKey, fundOutputValue, cets, 0)
	if err != nil {
		t.Fatal(err)
	}
	wantSigs := len(ci.ContractDescriptor.Enum.Outcomes) * len(combinationsOfOracles(2, 2))
	if len(sigs) != wantSigs {
		t.Fatalf("expected %d adaptor signatures, got %d", wantSigs, len(sigs))
	}

	verifiedInfo, next, err := ci.VerifyAndGetAdaptorInfo(fundOutputValue, fundPub, fundingScriptPubKey, fundOutputValue, cets, sigs, 0)
	if err != nil {
		t.Fatal(err)
	}
	if next != len(sigs) {
		t.Fatalf("expected to consume all %d signatures, consumed %d", len(sigs), next)
	}
	if !verifiedInfo.Enum {
		t.Fatal("expected enum adaptor info")
	}

	outcomes := []Outcome{
		{OracleIndex: 0, Digits: []string{"win"}},
		{OracleIndex: 1, Digits: []string{"win"}},
	}
	selection, ri, err := ci.GetRangeInfoForOutcome(adaptorInfo, outcomes)
	if err != nil {
		t.Fatal(err)
	}
	if ri == nil {
		t.Fatal("expected a resolved range info for a 2-of-2 agreeing outcome")
	}
	if ri.CetIndex != 0 {
		t.Fatalf("expected CET index 0 for the \"win\" outcome, got %d", ri.CetIndex)
	}
	if len(selection) != 2 {
		t.Fatalf("expected both oracles in the quorum selection, got %d", len(selection))
	}
	if ri.AdaptorSigIndex < 0 || ri.AdaptorSigIndex >= len(sigs) {
		t.Fatalf("adaptor sig index %d out of range", ri.AdaptorSigIndex)
	}
}

func TestNumericalContractAdaptorRoundTrip(t *testing.T) {
	fundPriv := mustPrivKey(t)
	fundPub := fundPriv.PubKey()
	fundingScriptPubKey := testFundingScriptPubKey()
	const fundOutputValue = 100_000
	const totalCollateral = 100_000

	const base = 2
	const nbDigits = 3 // outcomes 0..7

	oracleKey := mustPrivKey(t)
	announcements := []OracleAnnouncement{
		{
			OraclePublicKey: oracleKey.PubKey(),
			OracleEvent: OracleEvent{
				OracleNonces:    nonceKeys(t, nbDigits),
				EventDescriptor: EventDescriptor{Digit: &DigitDecomposition{Base: base, NbDigits: nbDigits}},
				EventID:         "price-1",
			},
		},
	}

	poly, err := payoutcurve.NewPolynomialPiece([]payoutcurve.PayoutPoint{
		{EventOutcome: 0, OutcomePayout: 0},
		{EventOutcome: 7, OutcomePayout: 70_000},
	})
	if err != nil {
		t.Fatal(err)
	}
	fn, err := payoutcurve.NewPayoutFunction([]payoutcurve.FunctionPiece{{Polynomial: poly}})
	if err != nil {
		t.Fatal(err)
	}
	ri := payoutcurve.RoundingIntervals{Intervals: []payoutcurve.RoundingInterval{{BeginInterval: 0, RoundingMod: 1}}}

	ci := &ContractInfo{
		ContractDescriptor: ContractDescriptor{Numerical: &NumericalDescriptor{
			PayoutFunction:    fn,
			RoundingIntervals: ri,
			Base:              base,
			NbDigits:          nbDigits,
		}},
		OracleAnnouncements: announcements,
		Threshold:           1,
	}

	ranges := fn.ToRangePayouts(totalCollateral, ri)
	cets := make([]*wire.MsgTx, len(ranges))
	for i := range cets {
		cets[i] = testCET(fundOutputValue)
	}

	adaptorInfo, sigs, err := ci.GetAdaptorInfo(totalCollateral, fundPriv, fundingScriptPubKey, fundOutputValue, cets, 0)
	if err != nil {
		t.Fatal(err)
	}
	if adaptorInfo.NumericalTrie == nil {
		t.Fatal("expected a populated numerical trie (no difference params set)")
	}
	if len(sigs) == 0 {
		t.Fatal("expected at least one adaptor signature")
	}

	verifiedInfo, next, err := ci.VerifyAndGetAdaptorInfo(totalCollateral, fundPub, fundingScriptPubKey, fundOutputValue, cets, sigs, 0)
	if err != nil {
		t.Fatal(err)
	}
	if next != len(sigs) {
		t.Fatalf("expected to consume all %d signatures, consumed %d", len(sigs), next)
	}
	if verifiedInfo.NumericalTrie == nil {
		t.Fatal("expected a populated numerical trie from verification")
	}

	points, err := PrecomputePoints(announcements)
	if err != nil {
		t.Fatal(err)
	}
	verifiedCount, err := VerifyFromAdaptorInfo(adaptorInfo, points, fundPub, fundingScriptPubKey, fundOutputValue, cets, sigs, ci.Threshold)
	if err != nil {
		t.Fatal(err)
	}
	if verifiedCount != len(sigs) {
		t.Fatalf("expected to re-verify all %d signatures against the built adaptor info, got %d", len(sigs), verifiedCount)
	}

	outcomes := []Outcome{{OracleIndex: 0, Digits: []string{"1", "0", "1"}}} // outcome 5
	selection, matchedRI, err := ci.GetRangeInfoForOutcome(adaptorInfo, outcomes)
	if err != nil {
		t.Fatal(err)
	}
	if matchedRI == nil {
		t.Fatal("expected a resolved range info for a single-oracle 1-of-1 threshold")
	}
	if len(selection) != 1 || selection[0].OracleIndex != 0 {
		t.Fatalf("expected the single oracle in the quorum selection, got %+v", selection)
	}
	if matchedRI.CetIndex < 0 || matchedRI.CetIndex >= len(cets) {
		t.Fatalf("matched CET index %d out of range", matchedRI.CetIndex)
	}
}

func TestNumericalContractWithDifferenceToleranceRoundTrip(t *testing.T) {
	fundPriv := mustPrivKey(t)
	fundingScriptPubKey := testFundingScriptPubKey()
	const fundOutputValue = 100_000
	const totalCollateral = 100_000
	const base = 2
	const nbDigits = 4

	oracle1 := mustPrivKey(t)
	oracle2 := mustPrivKey(t)
	announcements := []OracleAnnouncement{
		{
			OraclePublicKey: oracle1.PubKey(),
			OracleEvent: OracleEvent{
				OracleNonces:    nonceKeys(t, nbDigits),
				EventDescriptor: EventDescriptor{Digit: &DigitDecomposition{Base: base, NbDigits: nbDigits}},
				EventID:         "price-2",
			},
		},
		{
			OraclePublicKey: oracle2.PubKey(),
			OracleEvent: OracleEvent{
				OracleNonces:    nonceKeys(t, nbDigits),
				EventDescriptor: EventDescriptor{Digit: &DigitDecomposition{Base: base, NbDigits: nbDigits}},
				EventID:         "price-2",
			},
		},
	}

	poly, err := payoutcurve.NewPolynomialPiece([]payoutcurve.PayoutPoint{
		{EventOutcome: 0, OutcomePayout: 0},
		{EventOutcome: 15, OutcomePayout: 150_000},
	})
	if err != nil {
		t.Fatal(err)
	}
	fn, err := payoutcurve.NewPayoutFunction([]payoutcurve.FunctionPiece{{Polynomial: poly}})
	if err != nil {
		t.Fatal(err)
	}
	ri := payoutcurve.RoundingIntervals{Intervals: []payoutcurve.RoundingInterval{{BeginInterval: 0, RoundingMod: 1}}}

	ci := &ContractInfo{
		ContractDescriptor: ContractDescriptor{Numerical: &NumericalDescriptor{
			PayoutFunction:    fn,
			RoundingIntervals: ri,
			Base:              base,
			NbDigits:          nbDigits,
			Difference:        &DifferenceParams{MinSupportExp: 1, MaxErrorExp: 2, MaximizeCoverage: true},
		}},
		OracleAnnouncements: announcements,
		Threshold:           2,
	}

	ranges := fn.ToRangePayouts(totalCollateral, ri)
	cets := make([]*wire.MsgTx, len(ranges))
	for i := range cets {
		cets[i] = testCET(fundOutputValue)
	}

	adaptorInfo, sigs, err := ci.GetAdaptorInfo(totalCollateral, fundPriv, fundingScriptPubKey, fundOutputValue, cets, 0)
	if err != nil {
		t.Fatal(err)
	}
	if adaptorInfo.DifferenceTrie == nil {
		t.Fatal("expected a populated difference trie")
	}
	if len(sigs) == 0 {
		t.Fatal("expected at least one adaptor signature")
	}

	verifiedInfo, next, err := ci.VerifyAndGetAdaptorInfo(totalCollateral, fundPriv.PubKey(), fundingScriptPubKey, fundOutputValue, cets, sigs, 0)
	if err != nil {
		t.Fatal(err)
	}
	if next != len(sigs) {
		t.Fatalf("expected to consume all %d signatures, consumed %d", len(sigs), next)
	}
	if verifiedInfo.DifferenceTrie == nil {
		t.Fatal("expected a populated difference trie from verification")
	}
}
