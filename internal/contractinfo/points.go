package contractinfo

import (
	"crypto/sha256"
	"strconv"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/rawblock/dlc-engine/internal/dlcerr"
)

var bip340ChallengeTag = []byte("BIP0340/challenge")

// schnorrSigPoint computes the signature point S = R + e*P an oracle's
// eventual Schnorr signature over msg would produce, without knowing the
// oracle's private key: e = H(R.x || P.x || msg) mod n. This is what lets a
// CET's adaptor signature be "encrypted" against an outcome the oracle has
// not attested to yet.
func schnorrSigPoint(pubKey, nonce *btcec.PublicKey, msg []byte) (*btcec.PublicKey, error) {
	e := chainhash.TaggedHash(bip340ChallengeTag, schnorr.SerializePubKey(nonce), schnorr.SerializePubKey(pubKey), msg)

	var eScalar btcec.ModNScalar
	eScalar.SetByteSlice(e[:])

	var pJ, eP, rJ, result btcec.JacobianPoint
	pubKey.AsJacobian(&pJ)
	btcec.ScalarMultNonConst(&eScalar, &pJ, &eP)
	nonce.AsJacobian(&rJ)
	btcec.AddNonConst(&rJ, &eP, &result)
	result.ToAffine()

	return btcec.NewPublicKey(&result.X, &result.Y), nil
}

// SignaturePoints is the [oracle][digit position][digit value] table
// returned by PrecomputePoints.
type SignaturePoints [][][]*btcec.PublicKey

// PrecomputePoints computes, for every oracle announcement, every digit
// position and every digit value in that oracle's base, the signature point
// the oracle's eventual attestation to that digit would produce. Every
// announcement must describe a DigitDecomposition event whose nonce count
// matches nb_digits.
func PrecomputePoints(announcements []OracleAnnouncement) (SignaturePoints, error) {
	points := make(SignaturePoints, len(announcements))
	for oi, ann := range announcements {
		d, err := ann.digitDecomposition()
		if err != nil {
			return nil, err
		}
		nonces := ann.OracleEvent.OracleNonces
		if d.NbDigits != len(nonces) {
			return nil, dlcerr.Invalid("number of digits and nonces must be equal (got %d digits, %d nonces)", d.NbDigits, len(nonces))
		}

		dPoints := make([][]*btcec.PublicKey, d.NbDigits)
		for i, nonce := range nonces {
			row := make([]*btcec.PublicKey, d.Base)
			for j := 0; j < d.Base; j++ {
				msg := sha256.Sum256([]byte(strconv.Itoa(j)))
				sp, err := schnorrSigPoint(ann.OraclePublicKey, nonce, msg[:])
				if err != nil {
					return nil, dlcerr.Crypto(err, "computing signature point for oracle %d digit %d value %d", oi, i, j)
				}
				row[j] = sp
			}
			dPoints[i] = row
		}
		points[oi] = dPoints
	}
	return points, nil
}
