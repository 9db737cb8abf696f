package api

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/rawblock/dlc-engine/internal/contractinfo"
)

// adaptorSigWireSize is the fixed-width serialization of an AdaptorSignature:
// two compressed points (33 bytes each) and three 32-byte scalars.
const adaptorSigWireSize = 33 + 33 + 32 + 32 + 32

func encodeAdaptorSig(sig *contractinfo.AdaptorSignature) string {
	buf := make([]byte, 0, adaptorSigWireSize)
	buf = append(buf, sig.R.SerializeCompressed()...)
	buf = append(buf, sig.RAdapted.SerializeCompressed()...)
	sigmaBytes := sig.Sigma.Bytes()
	eBytes := sig.ProofE.Bytes()
	sBytes := sig.ProofS.Bytes()
	buf = append(buf, sigmaBytes[:]...)
	buf = append(buf, eBytes[:]...)
	buf = append(buf, sBytes[:]...)
	return hex.EncodeToString(buf)
}

func decodeAdaptorSig(s string) (*contractinfo.AdaptorSignature, error) {
	buf, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid adaptor signature hex: %w", err)
	}
	if len(buf) != adaptorSigWireSize {
		return nil, fmt.Errorf("adaptor signature has wrong length: got %d, want %d", len(buf), adaptorSigWireSize)
	}

	r, err := btcec.ParsePubKey(buf[0:33])
	if err != nil {
		return nil, fmt.Errorf("invalid R point: %w", err)
	}
	rAdapted, err := btcec.ParsePubKey(buf[33:66])
	if err != nil {
		return nil, fmt.Errorf("invalid RAdapted point: %w", err)
	}

	var sigma, e, sVal btcec.ModNScalar
	sigma.SetByteSlice(buf[66:98])
	e.SetByteSlice(buf[98:130])
	sVal.SetByteSlice(buf[130:162])

	return &contractinfo.AdaptorSignature{
		R:        r,
		RAdapted: rAdapted,
		Sigma:    &sigma,
		ProofE:   &e,
		ProofS:   &sVal,
	}, nil
}

func encodeAdaptorSigs(sigs []*contractinfo.AdaptorSignature) []string {
	out := make([]string, len(sigs))
	for i, s := range sigs {
		out[i] = encodeAdaptorSig(s)
	}
	return out
}

func decodeAdaptorSigs(hexSigs []string) ([]*contractinfo.AdaptorSignature, error) {
	out := make([]*contractinfo.AdaptorSignature, len(hexSigs))
	for i, s := range hexSigs {
		sig, err := decodeAdaptorSig(s)
		if err != nil {
			return nil, fmt.Errorf("signature %d: %w", i, err)
		}
		out[i] = sig
	}
	return out, nil
}
