// Package payoutcurve implements the piecewise payout function: a sequence
// of polynomial and hyperbola pieces describing offer-side payout as a
// function of event outcome, plus rounding and range materialization into
// the flat RangePayout list CETs are built from.
package payoutcurve

import (
	"math"
	"sort"

	"github.com/rawblock/dlc-engine/internal/dlcerr"
)

// PayoutPoint is one knot of a polynomial piece: the outcome, its payout,
// and 1/65536ths of extra precision on that payout (matching the oracle's
// fixed-point sub-payout precision).
type PayoutPoint struct {
	EventOutcome   uint64
	OutcomePayout  uint64
	ExtraPrecision uint16
}

func (p PayoutPoint) outcomePayout() float64 {
	return float64(p.OutcomePayout) + float64(p.ExtraPrecision)/float64(1<<16)
}

// Payout is the split of total collateral between offerer and accepter for
// a given outcome.
type Payout struct {
	Offer  uint64
	Accept uint64
}

// RangePayout is a contiguous run of outcomes sharing a rounded payout.
type RangePayout struct {
	Start  uint64
	Count  uint64
	Payout Payout
}

// evaluable is the shared piece interface: evaluate the unrounded curve at
// an outcome, and report the outcome range the piece covers.
type evaluable interface {
	evaluate(outcome uint64) float64
	firstOutcome() uint64
	lastOutcome() uint64
}

func roundedPayout(e evaluable, outcome uint64, ri RoundingIntervals) uint64 {
	return ri.Round(outcome, e.evaluate(outcome))
}

// toRangePayouts runs the "pop last range, keep absorbing or push a new one"
// algorithm: outcome-by-outcome rounded payouts are merged into runs, and the
// last run already accumulated by a previous piece is picked back up so two
// pieces meeting at a shared boundary outcome don't produce a duplicate
// single-outcome range.
func toRangePayouts(e evaluable, totalCollateral uint64, ri RoundingIntervals, out []RangePayout) []RangePayout {
	first := e.firstOutcome()
	last := e.lastOutcome()

	var cur RangePayout
	if len(out) > 0 {
		cur = out[len(out)-1]
		out = out[:len(out)-1]
	} else {
		p := roundedPayout(e, first, ri)
		cur = RangePayout{Start: first, Count: 1, Payout: Payout{Offer: p, Accept: totalCollateral - p}}
	}

	for outcome := first + 1; outcome <= last; outcome++ {
		p := roundedPayout(e, outcome, ri)
		if cur.Payout.Offer == p {
			cur.Count++
		} else {
			out = append(out, cur)
			cur = RangePayout{Start: outcome, Count: 1, Payout: Payout{Offer: p, Accept: totalCollateral - p}}
		}
	}
	out = append(out, cur)
	return out
}

// PolynomialPiece interpolates its payout points with the Lagrange formula.
type PolynomialPiece struct {
	PayoutPoints []PayoutPoint
}

// NewPolynomialPiece validates that points have strictly ascending outcomes.
func NewPolynomialPiece(points []PayoutPoint) (*PolynomialPiece, error) {
	if len(points) > 1 {
		for i := 1; i < len(points); i++ {
			if points[i-1].EventOutcome >= points[i].EventOutcome {
				return nil, dlcerr.Invalid("payout points must have ascending event outcome value")
			}
		}
	}
	return &PolynomialPiece{PayoutPoints: points}, nil
}

func (p *PolynomialPiece) evaluate(outcome uint64) float64 {
	n := len(p.PayoutPoints)
	result := 0.0
	x := float64(outcome)
	for i := 0; i < n; i++ {
		l := p.PayoutPoints[i].outcomePayout()
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			iOutcome := float64(p.PayoutPoints[i].EventOutcome)
			jOutcome := float64(p.PayoutPoints[j].EventOutcome)
			l *= (x - jOutcome) / (iOutcome - jOutcome)
		}
		result += l
	}
	return result
}

func (p *PolynomialPiece) firstOutcome() uint64 { return p.PayoutPoints[0].EventOutcome }
func (p *PolynomialPiece) lastOutcome() uint64 {
	return p.PayoutPoints[len(p.PayoutPoints)-1].EventOutcome
}

// Evaluate exposes the Lagrange interpolation for tests/callers that need
// the raw unrounded value.
func (p *PolynomialPiece) Evaluate(outcome uint64) float64 { return p.evaluate(outcome) }

// HyperbolaPiece is a piece described by a translated, rotated hyperbola,
// used for curves symmetric about a non-axis-aligned center (e.g. option
// payouts).
type HyperbolaPiece struct {
	LeftEndPoint     PayoutPoint
	RightEndPoint    PayoutPoint
	UsePositivePiece bool
	TranslateOutcome float64
	TranslatePayout  float64
	A, B, C, D       float64
}

// NewHyperbolaPiece validates the transform is non-degenerate and the
// endpoints are properly ordered.
//
// The degeneracy check matches the source literally: a*b == d*c. This is not
// the determinant test a*d - b*c == 0 and rejects a different set of
// parameters (a=2, b=3, c=1, d=6 is rejected although a*d - b*c = 9).
func NewHyperbolaPiece(left, right PayoutPoint, usePositivePiece bool, translateOutcome, translatePayout, a, b, c, d float64) (*HyperbolaPiece, error) {
	if a*b == d*c {
		return nil, dlcerr.Invalid("a * b cannot equal d * c")
	}
	if left.EventOutcome >= right.EventOutcome {
		return nil, dlcerr.Invalid("left end point outcome must be strictly less than right end point outcome")
	}
	return &HyperbolaPiece{
		LeftEndPoint:     left,
		RightEndPoint:    right,
		UsePositivePiece: usePositivePiece,
		TranslateOutcome: translateOutcome,
		TranslatePayout:  translatePayout,
		A:                a,
		B:                b,
		C:                c,
		D:                d,
	}, nil
}

func (h *HyperbolaPiece) evaluate(outcome uint64) float64 {
	x := float64(outcome) - h.TranslateOutcome
	sqrtAbs := math.Sqrt(x*x - 4.0*h.A*h.B)
	sqrtTerm := sqrtAbs
	if !h.UsePositivePiece {
		sqrtTerm = -sqrtAbs
	}
	first := h.C * (x + sqrtTerm) / (2.0 * h.A)
	second := 2.0 * h.A * h.D / (x + sqrtTerm)
	return first + second + h.TranslatePayout
}

func (h *HyperbolaPiece) firstOutcome() uint64 { return h.LeftEndPoint.EventOutcome }
func (h *HyperbolaPiece) lastOutcome() uint64  { return h.RightEndPoint.EventOutcome }

// Evaluate exposes the raw unrounded hyperbola value.
func (h *HyperbolaPiece) Evaluate(outcome uint64) float64 { return h.evaluate(outcome) }

// FunctionPiece is the tagged Polynomial/Hyperbola variant making up one
// segment of a PayoutFunction.
type FunctionPiece struct {
	Polynomial *PolynomialPiece
	Hyperbola  *HyperbolaPiece
}

func (fp FunctionPiece) asEvaluable() evaluable {
	if fp.Polynomial != nil {
		return fp.Polynomial
	}
	return fp.Hyperbola
}

func (fp FunctionPiece) firstPoint() PayoutPoint {
	if fp.Polynomial != nil {
		return fp.Polynomial.PayoutPoints[0]
	}
	return fp.Hyperbola.LeftEndPoint
}

func (fp FunctionPiece) lastPoint() PayoutPoint {
	if fp.Polynomial != nil {
		return fp.Polynomial.PayoutPoints[len(fp.Polynomial.PayoutPoints)-1]
	}
	return fp.Hyperbola.RightEndPoint
}

// PayoutFunction is the full piecewise curve across the outcome space.
type PayoutFunction struct {
	Pieces []FunctionPiece
}

// NewPayoutFunction validates that consecutive pieces share their boundary
// point (same event outcome, payout and precision), so the curve has no
// gap or overlap at piece boundaries.
func NewPayoutFunction(pieces []FunctionPiece) (*PayoutFunction, error) {
	for i := 1; i < len(pieces); i++ {
		if pieces[i-1].lastPoint() != pieces[i].firstPoint() {
			return nil, dlcerr.Invalid("function pieces are not continuous")
		}
	}
	return &PayoutFunction{Pieces: pieces}, nil
}

// ToRangePayouts materializes the full curve into a flat, rounded,
// run-length-compressed list of RangePayout covering every outcome.
func (f *PayoutFunction) ToRangePayouts(totalCollateral uint64, ri RoundingIntervals) []RangePayout {
	var out []RangePayout
	for _, piece := range f.Pieces {
		out = toRangePayouts(piece.asEvaluable(), totalCollateral, ri, out)
	}
	return out
}

// RoundingInterval is one rounding band starting at BeginInterval with
// modulus RoundingMod; a modulus of 1 means no rounding.
type RoundingInterval struct {
	BeginInterval uint64
	RoundingMod   uint64
}

// RoundingIntervals is an ascending sequence of RoundingInterval, each
// applying from its BeginInterval up to (not including) the next interval's.
type RoundingIntervals struct {
	Intervals []RoundingInterval
}

// Round rounds payout (the raw curve evaluation at outcome) to the nearest
// multiple of the rounding modulus in effect at outcome, rounding half up:
// a remainder of at least half the modulus rounds toward +infinity.
func (ri RoundingIntervals) Round(outcome uint64, payout float64) uint64 {
	idx := sort.Search(len(ri.Intervals), func(i int) bool {
		return ri.Intervals[i].BeginInterval >= outcome
	})
	var modIdx int
	if idx < len(ri.Intervals) && ri.Intervals[idx].BeginInterval == outcome {
		modIdx = idx
	} else {
		modIdx = idx - 1
	}
	roundingMod := float64(ri.Intervals[modIdx].RoundingMod)

	var m float64
	if payout >= 0 {
		m = math.Mod(payout, roundingMod)
	} else {
		m = math.Mod(payout, roundingMod) + roundingMod
	}

	if m >= roundingMod/2.0 {
		return uint64(math.Round(payout + roundingMod - m))
	}
	return uint64(math.Round(payout - m))
}
