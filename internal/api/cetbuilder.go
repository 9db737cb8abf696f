package api

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/rawblock/dlc-engine/internal/contractinfo"
)

// dustLimit mirrors Bitcoin Core's default dust relay threshold for a P2WPKH
// output; a payout below this is dropped rather than paid out, the same way
// a wallet would refuse to create the output at broadcast time.
const dustLimit = 546

// buildCETs constructs one contract execution transaction per payout,
// spending the shared funding outpoint into the offerer's and accepter's
// payout addresses.
func buildCETs(
	fundingTxid string,
	fundingVout uint32,
	payouts []contractinfo.Payout,
	offerAddr, acceptAddr string,
	params *chaincfg.Params,
) ([]*wire.MsgTx, error) {
	fundingHash, err := chainhash.NewHashFromStr(fundingTxid)
	if err != nil {
		return nil, err
	}
	offerDecoded, err := btcutil.DecodeAddress(offerAddr, params)
	if err != nil {
		return nil, err
	}
	acceptDecoded, err := btcutil.DecodeAddress(acceptAddr, params)
	if err != nil {
		return nil, err
	}
	offerScript, err := txscript.PayToAddrScript(offerDecoded)
	if err != nil {
		return nil, err
	}
	acceptScript, err := txscript.PayToAddrScript(acceptDecoded)
	if err != nil {
		return nil, err
	}

	cets := make([]*wire.MsgTx, len(payouts))
	for i, p := range payouts {
		tx := wire.NewMsgTx(wire.TxVersion)
		in := wire.NewTxIn(wire.NewOutPoint(fundingHash, fundingVout), nil, nil)
		in.Sequence = 0 // disables RBF in favor of the CET/refund timelock contest
		tx.AddTxIn(in)

		if p.Offer >= dustLimit {
			tx.AddTxOut(wire.NewTxOut(int64(p.Offer), offerScript))
		}
		if p.Accept >= dustLimit {
			tx.AddTxOut(wire.NewTxOut(int64(p.Accept), acceptScript))
		}
		cets[i] = tx
	}
	return cets, nil
}
