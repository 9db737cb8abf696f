package payoutcurve

import "testing"

func noRounding() RoundingIntervals {
	return RoundingIntervals{Intervals: []RoundingInterval{{BeginInterval: 0, RoundingMod: 1}}}
}

func TestLagrangeInterpolate(t *testing.T) {
	poly := &PolynomialPiece{PayoutPoints: []PayoutPoint{
		{EventOutcome: 0, OutcomePayout: 1},
		{EventOutcome: 2, OutcomePayout: 5},
		{EventOutcome: 4, OutcomePayout: 17},
	}}
	if got := poly.Evaluate(10); got != 101.0 {
		t.Errorf("evaluate(10) = %v, want 101", got)
	}
	if got := poly.Evaluate(100); got != 10001.0 {
		t.Errorf("evaluate(100) = %v, want 10001", got)
	}
}

func TestPolynomialToRangePayouts(t *testing.T) {
	cases := []struct {
		points            []PayoutPoint
		totalCollateral   uint64
		wantLen           int
		wantFirstStart    uint64
		wantFirstPayout   uint64
		wantLastStart     uint64
		wantLastPayout    uint64
	}{
		{
			points: []PayoutPoint{
				{EventOutcome: 0, OutcomePayout: 0},
				{EventOutcome: 20, OutcomePayout: 20},
			},
			totalCollateral: 20,
			wantLen:         21,
			wantFirstStart:  0,
			wantFirstPayout: 0,
			wantLastStart:   20,
			wantLastPayout:  20,
		},
		{
			points: []PayoutPoint{
				{EventOutcome: 10, OutcomePayout: 10},
				{EventOutcome: 20, OutcomePayout: 10},
			},
			totalCollateral: 10,
			wantLen:         1,
			wantFirstStart:  10,
			wantFirstPayout: 10,
			wantLastStart:   10,
			wantLastPayout:  10,
		},
		{
			points: []PayoutPoint{
				{EventOutcome: 50000, OutcomePayout: 0},
				{EventOutcome: 1048575, OutcomePayout: 0},
			},
			totalCollateral: 200000000,
			wantLen:         1,
			wantFirstStart:  50000,
			wantFirstPayout: 0,
			wantLastStart:   50000,
			wantLastPayout:  0,
		},
	}

	for i, c := range cases {
		poly, err := NewPolynomialPiece(c.points)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		out := toRangePayouts(poly, c.totalCollateral, noRounding(), nil)
		if len(out) != c.wantLen {
			t.Fatalf("case %d: len = %d, want %d", i, len(out), c.wantLen)
		}
		first, last := out[0], out[len(out)-1]
		if first.Start != c.wantFirstStart || first.Payout.Offer != c.wantFirstPayout {
			t.Errorf("case %d: first = %+v, want start=%d payout=%d", i, first, c.wantFirstStart, c.wantFirstPayout)
		}
		if last.Start != c.wantLastStart || last.Payout.Offer != c.wantLastPayout {
			t.Errorf("case %d: last = %+v, want start=%d payout=%d", i, last, c.wantLastStart, c.wantLastPayout)
		}
	}
}

func TestHyperbolaDegenerateRejected(t *testing.T) {
	left := PayoutPoint{EventOutcome: 0, OutcomePayout: 0}
	right := PayoutPoint{EventOutcome: 100, OutcomePayout: 100}
	// a*b == d*c with a=2,b=3,c=1,d=6
	_, err := NewHyperbolaPiece(left, right, true, 0, 0, 2, 3, 1, 6)
	if err == nil {
		t.Fatal("expected error for a*b == d*c")
	}
}

func TestHyperbolaEndpointOrderRejected(t *testing.T) {
	left := PayoutPoint{EventOutcome: 100, OutcomePayout: 0}
	right := PayoutPoint{EventOutcome: 0, OutcomePayout: 100}
	_, err := NewHyperbolaPiece(left, right, true, 0, 0, 1, 2, 3, 4)
	if err == nil {
		t.Fatal("expected error for non-ascending endpoints")
	}
}

func TestPayoutFunctionRequiresContinuity(t *testing.T) {
	p1, _ := NewPolynomialPiece([]PayoutPoint{
		{EventOutcome: 0, OutcomePayout: 0},
		{EventOutcome: 10, OutcomePayout: 10},
	})
	p2, _ := NewPolynomialPiece([]PayoutPoint{
		{EventOutcome: 11, OutcomePayout: 11},
		{EventOutcome: 20, OutcomePayout: 20},
	})
	_, err := NewPayoutFunction([]FunctionPiece{{Polynomial: p1}, {Polynomial: p2}})
	if err == nil {
		t.Fatal("expected continuity error")
	}
}

func TestPayoutFunctionToRangePayoutsAbsorbsBoundary(t *testing.T) {
	p1, _ := NewPolynomialPiece([]PayoutPoint{
		{EventOutcome: 0, OutcomePayout: 0},
		{EventOutcome: 10, OutcomePayout: 0},
	})
	p2, _ := NewPolynomialPiece([]PayoutPoint{
		{EventOutcome: 10, OutcomePayout: 0},
		{EventOutcome: 20, OutcomePayout: 20},
	})
	fn, err := NewPayoutFunction([]FunctionPiece{{Polynomial: p1}, {Polynomial: p2}})
	if err != nil {
		t.Fatal(err)
	}
	out := fn.ToRangePayouts(20, noRounding())

	total := uint64(0)
	for _, r := range out {
		total += r.Count
	}
	if total != 21 {
		t.Fatalf("expected 21 outcomes covered (0..=20), got %d", total)
	}
	// The boundary outcome 10 (payout 0 on both sides) must be absorbed into
	// one range, not duplicated as two adjacent single-outcome ranges.
	for i := 1; i < len(out); i++ {
		if out[i].Start == out[i-1].Start+out[i-1].Count && out[i].Payout.Offer == out[i-1].Payout.Offer {
			t.Fatalf("adjacent ranges %+v and %+v should have merged", out[i-1], out[i])
		}
	}
}

func TestRoundingIntervalsRound(t *testing.T) {
	ri := RoundingIntervals{Intervals: []RoundingInterval{
		{BeginInterval: 0, RoundingMod: 1},
		{BeginInterval: 100, RoundingMod: 10},
	}}
	if got := ri.Round(50, 7.4); got != 7 {
		t.Errorf("Round(50, 7.4) = %d, want 7 (mod 1 band)", got)
	}
	if got := ri.Round(150, 23.0); got != 20 {
		t.Errorf("Round(150, 23.0) = %d, want 20 (mod 10 band, round down)", got)
	}
	if got := ri.Round(150, 26.0); got != 30 {
		t.Errorf("Round(150, 26.0) = %d, want 30 (mod 10 band, round up)", got)
	}
}
