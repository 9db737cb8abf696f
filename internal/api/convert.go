package api

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/rawblock/dlc-engine/internal/contractinfo"
	"github.com/rawblock/dlc-engine/internal/payoutcurve"
	"github.com/rawblock/dlc-engine/pkg/models"
)

func decodePubKey(hexKey string) (*btcec.PublicKey, error) {
	b, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid public key hex: %w", err)
	}
	return btcec.ParsePubKey(b)
}

func decodePrivKey(hexKey string) (*btcec.PrivateKey, error) {
	b, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}
	priv, _ := btcec.PrivKeyFromBytes(b)
	return priv, nil
}

func convertOracleAnnouncement(w models.OracleAnnouncement) (contractinfo.OracleAnnouncement, error) {
	pub, err := decodePubKey(w.OraclePublicKey)
	if err != nil {
		return contractinfo.OracleAnnouncement{}, err
	}
	nonces := make([]*btcec.PublicKey, len(w.OracleEvent.OracleNonces))
	for i, n := range w.OracleEvent.OracleNonces {
		np, err := decodePubKey(n)
		if err != nil {
			return contractinfo.OracleAnnouncement{}, fmt.Errorf("nonce %d: %w", i, err)
		}
		nonces[i] = np
	}

	desc := contractinfo.EventDescriptor{Enum: w.OracleEvent.EventDescriptor.Enum}
	if w.OracleEvent.EventDescriptor.Digit != nil {
		desc.Digit = &contractinfo.DigitDecomposition{
			Base:     w.OracleEvent.EventDescriptor.Digit.Base,
			NbDigits: w.OracleEvent.EventDescriptor.Digit.NbDigits,
		}
	}

	return contractinfo.OracleAnnouncement{
		OraclePublicKey: pub,
		OracleEvent: contractinfo.OracleEvent{
			OracleNonces:    nonces,
			EventDescriptor: desc,
			EventID:         w.OracleEvent.EventID,
		},
	}, nil
}

func convertContractDescriptor(w models.ContractDescriptor) (contractinfo.ContractDescriptor, error) {
	if len(w.EnumOutcomes) > 0 {
		outcomes := make([]contractinfo.EnumOutcome, len(w.EnumOutcomes))
		for i, o := range w.EnumOutcomes {
			outcomes[i] = contractinfo.EnumOutcome{
				Outcome: o.Outcome,
				Payout:  contractinfo.Payout{Offer: o.Offer, Accept: o.Accept},
			}
		}
		return contractinfo.ContractDescriptor{Enum: &contractinfo.EnumDescriptor{Outcomes: outcomes}}, nil
	}

	if w.Numerical == nil {
		return contractinfo.ContractDescriptor{}, fmt.Errorf("contract descriptor has neither enum outcomes nor a numerical descriptor")
	}

	pieces := make([]payoutcurve.FunctionPiece, len(w.Numerical.Pieces))
	for i, p := range w.Numerical.Pieces {
		switch {
		case len(p.PolynomialPoints) > 0:
			points := make([]payoutcurve.PayoutPoint, len(p.PolynomialPoints))
			for j, pt := range p.PolynomialPoints {
				points[j] = payoutcurve.PayoutPoint{
					EventOutcome:   pt.EventOutcome,
					OutcomePayout:  pt.OutcomePayout,
					ExtraPrecision: pt.ExtraPrecision,
				}
			}
			poly, err := payoutcurve.NewPolynomialPiece(points)
			if err != nil {
				return contractinfo.ContractDescriptor{}, fmt.Errorf("piece %d: %w", i, err)
			}
			pieces[i] = payoutcurve.FunctionPiece{Polynomial: poly}
		case p.Hyperbola != nil:
			h := p.Hyperbola
			hp, err := payoutcurve.NewHyperbolaPiece(
				payoutcurve.PayoutPoint{EventOutcome: h.LeftEndPoint.EventOutcome, OutcomePayout: h.LeftEndPoint.OutcomePayout, ExtraPrecision: h.LeftEndPoint.ExtraPrecision},
				payoutcurve.PayoutPoint{EventOutcome: h.RightEndPoint.EventOutcome, OutcomePayout: h.RightEndPoint.OutcomePayout, ExtraPrecision: h.RightEndPoint.ExtraPrecision},
				h.UsePositivePiece, h.TranslateOutcome, h.TranslatePayout, h.A, h.B, h.C, h.D,
			)
			if err != nil {
				return contractinfo.ContractDescriptor{}, fmt.Errorf("piece %d: %w", i, err)
			}
			pieces[i] = payoutcurve.FunctionPiece{Hyperbola: hp}
		default:
			return contractinfo.ContractDescriptor{}, fmt.Errorf("piece %d has neither polynomial points nor a hyperbola", i)
		}
	}

	fn, err := payoutcurve.NewPayoutFunction(pieces)
	if err != nil {
		return contractinfo.ContractDescriptor{}, fmt.Errorf("payout function: %w", err)
	}

	intervals := make([]payoutcurve.RoundingInterval, len(w.Numerical.RoundingIntervals))
	for i, ri := range w.Numerical.RoundingIntervals {
		intervals[i] = payoutcurve.RoundingInterval{BeginInterval: ri.BeginInterval, RoundingMod: ri.RoundingMod}
	}

	nd := &contractinfo.NumericalDescriptor{
		PayoutFunction:    fn,
		RoundingIntervals: payoutcurve.RoundingIntervals{Intervals: intervals},
		Base:              w.Numerical.Base,
		NbDigits:          w.Numerical.NbDigits,
	}
	if w.Numerical.Difference != nil {
		nd.Difference = &contractinfo.DifferenceParams{
			MinSupportExp:    w.Numerical.Difference.MinSupportExp,
			MaxErrorExp:      w.Numerical.Difference.MaxErrorExp,
			MaximizeCoverage: w.Numerical.Difference.MaximizeCoverage,
		}
	}
	return contractinfo.ContractDescriptor{Numerical: nd}, nil
}

func buildContractInfo(offer models.ContractOffer) (*contractinfo.ContractInfo, error) {
	descriptor, err := convertContractDescriptor(offer.ContractDescriptor)
	if err != nil {
		return nil, err
	}
	announcements := make([]contractinfo.OracleAnnouncement, len(offer.OracleAnnouncements))
	for i, a := range offer.OracleAnnouncements {
		ann, err := convertOracleAnnouncement(a)
		if err != nil {
			return nil, fmt.Errorf("announcement %d: %w", i, err)
		}
		announcements[i] = ann
	}
	return &contractinfo.ContractInfo{
		ContractDescriptor:  descriptor,
		OracleAnnouncements: announcements,
		Threshold:           offer.Threshold,
	}, nil
}
