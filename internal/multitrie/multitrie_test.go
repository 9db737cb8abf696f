package multitrie

import "testing"

func TestOneOfOneDegeneratesToSingleTrie(t *testing.T) {
	mt, err := New[int](1, 1, 2, 1, 2, 5, true)
	if err != nil {
		t.Fatal(err)
	}
	if err := mt.Insert([]int{0, 1, 1, 1}, func(_ [][]int, _ []int) int { return 7 }); err != nil {
		t.Fatal(err)
	}
	res, ok := mt.LookUp([]ObservedPath{{OracleIndex: 0, Digits: []int{0, 1, 1, 1, 0}}})
	if !ok || *res.Value != 7 {
		t.Fatalf("expected match with value 7, got %+v ok=%v", res, ok)
	}
}

func TestOneOfTwoAnyOracleMatches(t *testing.T) {
	mt, err := New[int](2, 1, 2, 1, 2, 4, true)
	if err != nil {
		t.Fatal(err)
	}
	if err := mt.Insert([]int{0, 1}, func(_ [][]int, _ []int) int { return 3 }); err != nil {
		t.Fatal(err)
	}
	for _, oracle := range []int{0, 1} {
		res, ok := mt.LookUp([]ObservedPath{{OracleIndex: oracle, Digits: []int{0, 1, 1, 0}}})
		if !ok || *res.Value != 3 {
			t.Fatalf("oracle %d: expected match with value 3, got %+v ok=%v", oracle, res, ok)
		}
	}
}

// TestTwoOfTwoWithTolerance reproduces the literal 2-of-2 scenario: the
// anchor outcome is reported exactly by one oracle and, within tolerance, by
// the other, and the stored combination is reachable via lookup.
func TestTwoOfTwoWithTolerance(t *testing.T) {
	mt, err := New[int](2, 2, 2, 2, 3, 5, true)
	if err != nil {
		t.Fatal(err)
	}
	if err := mt.Insert([]int{0, 1, 1, 1}, func(_ [][]int, _ []int) int { return 11 }); err != nil {
		t.Fatal(err)
	}

	// Exact agreement on both oracles must match.
	res, ok := mt.LookUp([]ObservedPath{
		{OracleIndex: 0, Digits: []int{0, 1, 1, 1, 0}},
		{OracleIndex: 1, Digits: []int{0, 1, 1, 1, 1}},
	})
	if !ok || *res.Value != 11 {
		t.Fatalf("expected exact-agreement match, got %+v ok=%v", res, ok)
	}

	// Oracle 1 reporting the coarse tolerated prefix [0,1] (k=maxErrorExp
	// band) must still match per the design note on computeOutcomeCombinations.
	res2, ok2 := mt.LookUp([]ObservedPath{
		{OracleIndex: 0, Digits: []int{0, 1, 1, 1, 0}},
		{OracleIndex: 1, Digits: []int{0, 1, 0, 0, 0}},
	})
	if !ok2 || *res2.Value != 11 {
		t.Fatalf("expected tolerated-band match, got %+v ok=%v", res2, ok2)
	}
}

func TestAllMatchesEveryLookup(t *testing.T) {
	mt, err := New[int](3, 2, 2, 2, 3, 5, true)
	if err != nil {
		t.Fatal(err)
	}
	if err := mt.Insert([]int{1, 0, 1, 1}, func(_ [][]int, _ []int) int { return 42 }); err != nil {
		t.Fatal(err)
	}

	var all []LookupResult[int]
	for r := range mt.All() {
		all = append(all, r)
	}
	if len(all) == 0 {
		t.Fatal("expected at least one stored combination")
	}
	for _, r := range all {
		paths := make([]ObservedPath, len(r.Path))
		for i, p := range r.Path {
			paths[i] = ObservedPath{OracleIndex: p.OracleIndex, Digits: p.Digits}
		}
		if _, ok := mt.LookUp(paths); !ok {
			t.Errorf("All() entry %+v not reproducible via LookUp", r)
		}
	}
}

func TestDumpRoundTripPreservesLookups(t *testing.T) {
	mt, err := New[string](2, 2, 2, 2, 3, 5, true)
	if err != nil {
		t.Fatal(err)
	}
	if err := mt.Insert([]int{0, 1, 1, 1}, func(_ [][]int, _ []int) string { return "outcome-a" }); err != nil {
		t.Fatal(err)
	}

	d := mt.Dump()
	rebuilt, err := FromDump(d)
	if err != nil {
		t.Fatal(err)
	}

	var before, after []LookupResult[string]
	for r := range mt.All() {
		before = append(before, r)
	}
	for r := range rebuilt.All() {
		after = append(after, r)
	}
	if len(before) != len(after) {
		t.Fatalf("dump round-trip changed entry count: %d vs %d", len(before), len(after))
	}
	for i := range before {
		if *before[i].Value != *after[i].Value {
			t.Errorf("entry %d: value mismatch %q vs %q", i, *before[i].Value, *after[i].Value)
		}
	}
}

func TestInvalidQuorumRejected(t *testing.T) {
	if _, err := New[int](2, 3, 2, 1, 2, 4, true); err == nil {
		t.Fatal("expected error when nb_required exceeds nb_tries")
	}
	if _, err := New[int](2, 0, 2, 1, 2, 4, true); err == nil {
		t.Fatal("expected error when nb_required is zero")
	}
}
