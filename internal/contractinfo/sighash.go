package contractinfo

import (
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/rawblock/dlc-engine/internal/dlcerr"
)

// cetSigHash computes the segwit v0 sighash a CET's funding-input signature
// must cover, given the funding output's script and value.
func cetSigHash(cet *wire.MsgTx, fundingScriptPubKey []byte, fundOutputValue int64) ([32]byte, error) {
	fetcher := txscript.NewCannedPrevOutputFetcher(fundingScriptPubKey, fundOutputValue)
	sigHashes := txscript.NewTxSigHashes(cet, fetcher)
	hash, err := txscript.CalcWitnessSigHash(fundingScriptPubKey, sigHashes, txscript.SigHashAll, cet, 0, fundOutputValue)
	if err != nil {
		return [32]byte{}, dlcerr.Crypto(err, "computing CET sighash")
	}
	var out [32]byte
	copy(out[:], hash)
	return out, nil
}
