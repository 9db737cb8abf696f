package digittrie

import "testing"

func TestInsertLookupExact(t *testing.T) {
	tr := New[int](2)
	if err := tr.Insert([]int{0, 1, 1, 1}, func(_ *int) int { return 7 }); err != nil {
		t.Fatal(err)
	}

	var got []LookupResult[int]
	for r := range tr.LookUp([]int{0, 1, 1, 1, 1}) {
		got = append(got, r)
	}
	if len(got) != 1 || *got[0].Value != 7 {
		t.Fatalf("expected one match with value 7, got %+v", got)
	}
}

func TestInsertSplitAndMerge(t *testing.T) {
	tr := New[int](2)
	must := func(err error) {
		if err != nil {
			t.Fatal(err)
		}
	}
	must(tr.Insert([]int{0, 1, 1, 1}, func(_ *int) int { return 1 }))
	must(tr.Insert([]int{0, 1, 0, 0}, func(_ *int) int { return 2 }))

	cases := []struct {
		query []int
		want  int
	}{
		{[]int{0, 1, 1, 1}, 1},
		{[]int{0, 1, 0, 0}, 2},
	}
	for _, c := range cases {
		var found bool
		for r := range tr.LookUp(c.query) {
			if len(r.Path) == len(c.query) && *r.Value == c.want {
				found = true
			}
		}
		if !found {
			t.Errorf("query %v: expected value %d", c.query, c.want)
		}
	}

	// re-inserting the same path merges via getValue(old).
	must(tr.Insert([]int{0, 1, 1, 1}, func(old *int) int {
		if old == nil || *old != 1 {
			t.Fatalf("expected old value 1, got %v", old)
		}
		return 99
	}))
	var merged int
	for r := range tr.LookUp([]int{0, 1, 1, 1}) {
		if len(r.Path) == 4 {
			merged = *r.Value
		}
	}
	if merged != 99 {
		t.Fatalf("expected merged value 99, got %d", merged)
	}
}

func TestInvalidDigitRejected(t *testing.T) {
	tr := New[int](2)
	err := tr.Insert([]int{0, 2, 1}, func(_ *int) int { return 1 })
	if err == nil {
		t.Fatal("expected error for digit >= base")
	}
}

func TestPrefixLookupMatchesShorterStoredRange(t *testing.T) {
	tr := New[int](2)
	if err := tr.Insert([]int{0, 1}, func(_ *int) int { return 42 }); err != nil {
		t.Fatal(err)
	}
	var got []int
	for r := range tr.LookUp([]int{0, 1, 1, 0, 1}) {
		got = append(got, *r.Value)
	}
	if len(got) != 1 || got[0] != 42 {
		t.Fatalf("expected prefix match to 42, got %v", got)
	}
}

func TestAllIsLexicographicAndRestartable(t *testing.T) {
	tr := New[int](2)
	inputs := [][]int{{1, 0}, {0, 0}, {0, 1}, {1, 1}}
	for i, p := range inputs {
		v := i
		if err := tr.Insert(p, func(_ *int) int { return v }); err != nil {
			t.Fatal(err)
		}
	}

	var first, second [][]int
	for r := range tr.All() {
		first = append(first, r.Path)
	}
	for r := range tr.All() {
		second = append(second, r.Path)
	}
	if len(first) != 4 || len(second) != 4 {
		t.Fatalf("expected 4 entries each pass, got %d and %d", len(first), len(second))
	}
	want := [][]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}}
	for i := range want {
		if first[i][0] != want[i][0] || first[i][1] != want[i][1] {
			t.Fatalf("pass1[%d] = %v, want %v", i, first[i], want[i])
		}
		if second[i][0] != want[i][0] || second[i][1] != want[i][1] {
			t.Fatalf("pass2[%d] = %v, want %v", i, second[i], want[i])
		}
	}
}

func TestDumpRoundTrip(t *testing.T) {
	tr := New[int](2)
	inputs := map[int][]int{0: {0, 0, 1}, 1: {0, 1}, 2: {1, 1, 0}}
	for v, p := range inputs {
		v := v
		if err := tr.Insert(p, func(_ *int) int { return v }); err != nil {
			t.Fatal(err)
		}
	}

	dump := tr.Dump()
	rebuilt, err := FromDump(dump)
	if err != nil {
		t.Fatal(err)
	}

	var orig, again []LookupResult[int]
	for r := range tr.All() {
		orig = append(orig, r)
	}
	for r := range rebuilt.All() {
		again = append(again, r)
	}
	if len(orig) != len(again) {
		t.Fatalf("dump round-trip changed entry count: %d vs %d", len(orig), len(again))
	}
	for i := range orig {
		if *orig[i].Value != *again[i].Value {
			t.Errorf("entry %d: value mismatch %d vs %d", i, *orig[i].Value, *again[i].Value)
		}
	}
}
