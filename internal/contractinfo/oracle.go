// Package contractinfo implements the orchestrator binding a contract
// descriptor and a set of oracle announcements to adaptor-signature
// generation/verification and outcome resolution.
package contractinfo

import (
	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/rawblock/dlc-engine/internal/dlcerr"
)

// DigitDecomposition is the only event descriptor the numerical path
// recognizes: the oracle commits to signing a numeric outcome one digit at a
// time, in the given base, with nb_digits nonces.
type DigitDecomposition struct {
	Base     int
	NbDigits int
}

// EventDescriptor is the tagged variant of oracle event commitments; only
// Digit is populated for numerical contracts, Enum for enum contracts.
type EventDescriptor struct {
	Digit *DigitDecomposition
	Enum  []string
}

// OracleEvent carries the nonces committed for one oracle event, plus its
// descriptor.
type OracleEvent struct {
	OracleNonces     []*btcec.PublicKey
	EventDescriptor  EventDescriptor
	EventID          string
}

// OracleAnnouncement is an oracle's signed commitment to a future event: its
// public key plus the event it will attest to.
type OracleAnnouncement struct {
	OraclePublicKey *btcec.PublicKey
	OracleEvent     OracleEvent
}

func (a OracleAnnouncement) digitDecomposition() (*DigitDecomposition, error) {
	d := a.OracleEvent.EventDescriptor.Digit
	if d == nil {
		return nil, dlcerr.Invalid("expected digit decomposition event")
	}
	return d, nil
}

// OracleInfo is the reduced view of an announcement C4 needs once past
// precomputation: just the public key and nonces.
type OracleInfo struct {
	PublicKey *btcec.PublicKey
	Nonces    []*btcec.PublicKey
}

// OracleInfos projects announcements down to the OracleInfo the rest of the
// engine needs.
func OracleInfos(announcements []OracleAnnouncement) []OracleInfo {
	out := make([]OracleInfo, len(announcements))
	for i, a := range announcements {
		out[i] = OracleInfo{PublicKey: a.OraclePublicKey, Nonces: a.OracleEvent.OracleNonces}
	}
	return out
}
