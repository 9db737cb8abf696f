package contractinfo

import (
	"crypto/rand"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/rawblock/dlc-engine/internal/dlcerr"
)

var dleqTag = []byte("DLC/adaptor-dleq")

// AdaptorSignature is an ECDSA signature "encrypted" under an encryption
// point Y (an oracle signature point, or the sum of several for a T-of-N
// quorum): it cannot be turned into a valid ECDSA signature without knowing
// Y's discrete log, but anyone can verify it was correctly constructed.
//
// R is the ordinary ECDSA-style nonce point k*G; RAdapted is k*Y; Sigma is
// the encrypted s-value; the proof fields are a Schnorr-style DLEQ NIZK
// proving R and RAdapted share the same discrete log k relative to G and Y
// respectively.
type AdaptorSignature struct {
	R         *btcec.PublicKey
	RAdapted  *btcec.PublicKey
	Sigma     *btcec.ModNScalar
	ProofE    *btcec.ModNScalar
	ProofS    *btcec.ModNScalar
}

func randomScalar() (*btcec.ModNScalar, error) {
	for i := 0; i < 16; i++ {
		var buf [32]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return nil, dlcerr.Crypto(err, "reading randomness for nonce")
		}
		var s btcec.ModNScalar
		if overflow := s.SetBytes((*[32]byte)(&buf)); overflow == 0 && !s.IsZero() {
			return &s, nil
		}
	}
	return nil, dlcerr.State("failed to generate a non-zero nonce after 16 attempts")
}

func mulG(k *btcec.ModNScalar) *btcec.PublicKey {
	var p btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(k, &p)
	p.ToAffine()
	return btcec.NewPublicKey(&p.X, &p.Y)
}

func mulPoint(k *btcec.ModNScalar, point *btcec.PublicKey) *btcec.PublicKey {
	var pJ, result btcec.JacobianPoint
	point.AsJacobian(&pJ)
	btcec.ScalarMultNonConst(k, &pJ, &result)
	result.ToAffine()
	return btcec.NewPublicKey(&result.X, &result.Y)
}

func addPoints(a, b *btcec.PublicKey) *btcec.PublicKey {
	var aJ, bJ, result btcec.JacobianPoint
	a.AsJacobian(&aJ)
	b.AsJacobian(&bJ)
	btcec.AddNonConst(&aJ, &bJ, &result)
	result.ToAffine()
	return btcec.NewPublicKey(&result.X, &result.Y)
}

func scalarFromXCoordinate(p *btcec.PublicKey) *btcec.ModNScalar {
	xBytes := p.X().Bytes()
	var s btcec.ModNScalar
	s.SetByteSlice(xBytes[:])
	return &s
}

// dleqChallenge hashes the four public points of the DLEQ proof (the
// commitments U, V and the points R, RAdapted) into a scalar. The encryption
// point Y is not part of the hash.
func dleqChallenge(u, v, r, rAdapted *btcec.PublicKey) *btcec.ModNScalar {
	h := chainhash.TaggedHash(dleqTag, u.SerializeCompressed(), v.SerializeCompressed(), r.SerializeCompressed(), rAdapted.SerializeCompressed())
	var e btcec.ModNScalar
	e.SetByteSlice(h[:])
	return &e
}

// Sign produces an adaptor signature over msgHash (32 bytes), encrypted
// under encryptionPoint, using the signer's secret key.
func Sign(seckey *btcec.PrivateKey, msgHash [32]byte, encryptionPoint *btcec.PublicKey) (*AdaptorSignature, error) {
	var h btcec.ModNScalar
	h.SetByteSlice(msgHash[:])

	k, err := randomScalar()
	if err != nil {
		return nil, err
	}
	r := mulG(k)
	rAdapted := mulPoint(k, encryptionPoint)
	rVal := scalarFromXCoordinate(rAdapted)

	var x btcec.ModNScalar
	x.Set(&seckey.Key)

	var sigma btcec.ModNScalar
	sigma.Mul2(&x, rVal).Add(&h)
	kInv := new(btcec.ModNScalar).Set(k).InverseNonConst()
	sigma.Mul(kInv)

	rho, err := randomScalar()
	if err != nil {
		return nil, err
	}
	u := mulG(rho)
	v := mulPoint(rho, encryptionPoint)
	e := dleqChallenge(u, v, r, rAdapted)

	var s btcec.ModNScalar
	s.Mul2(e, k).Add(rho)

	return &AdaptorSignature{R: r, RAdapted: rAdapted, Sigma: &sigma, ProofE: e, ProofS: &s}, nil
}

// Verify checks the DLEQ proof and the encrypted ECDSA equation against
// pubkey, msgHash and encryptionPoint, without decrypting the signature.
func Verify(sig *AdaptorSignature, pubkey *btcec.PublicKey, msgHash [32]byte, encryptionPoint *btcec.PublicKey) error {
	// Recompute U = s*G - e*R and V = s*Y - e*RAdapted; the DLEQ proof
	// checks out iff the challenge recomputed from (U, V, R, RAdapted)
	// matches e.
	negE := new(btcec.ModNScalar).Set(sig.ProofE).Negate()
	sG := mulG(sig.ProofS)
	eR := mulPoint(negE, sig.R)
	u := addPoints(sG, eR)

	sY := mulPoint(sig.ProofS, encryptionPoint)
	eRAdapted := mulPoint(negE, sig.RAdapted)
	v := addPoints(sY, eRAdapted)

	recomputedE := dleqChallenge(u, v, sig.R, sig.RAdapted)
	if !recomputedE.Equals(sig.ProofE) {
		return dlcerr.Crypto(nil, "adaptor signature DLEQ proof verification failed")
	}

	var h btcec.ModNScalar
	h.SetByteSlice(msgHash[:])
	rVal := scalarFromXCoordinate(sig.RAdapted)

	sigmaInv := new(btcec.ModNScalar).Set(sig.Sigma).InverseNonConst()
	var u1 btcec.ModNScalar
	u1.Mul2(&h, sigmaInv)
	var u2 btcec.ModNScalar
	u2.Mul2(rVal, sigmaInv)

	p1 := mulG(&u1)
	p2 := mulPoint(&u2, pubkey)
	candidateR := addPoints(p1, p2)
	if !candidateR.IsEqual(sig.R) {
		return dlcerr.Crypto(nil, "adaptor signature verification failed")
	}
	return nil
}

// Decrypt turns an adaptor signature into an ordinary ECDSA signature once
// the adaptor secret (the discrete log of encryptionPoint, i.e. the
// revealed oracle attestation scalar) is known.
func Decrypt(sig *AdaptorSignature, adaptorSecret *btcec.ModNScalar) (r, s *btcec.ModNScalar) {
	r = scalarFromXCoordinate(sig.RAdapted)
	yInv := new(btcec.ModNScalar).Set(adaptorSecret).InverseNonConst()
	s = new(btcec.ModNScalar).Set(sig.Sigma).Mul(yInv)
	return r, s
}
