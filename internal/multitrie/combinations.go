package multitrie

// combinations enumerates all k-element subsets of {0,...,n-1} in ascending
// lexicographic order (each subset itself sorted ascending): for T-of-N
// quorums it picks which T oracle slots a given combination chain binds to.
func combinations(n, k int) [][]int {
	if k <= 0 || k > n {
		return nil
	}
	combo := make([]int, k)
	for i := range combo {
		combo[i] = i
	}
	var out [][]int
	for {
		out = append(out, append([]int(nil), combo...))
		i := k - 1
		for i >= 0 && combo[i] == n-k+i {
			i--
		}
		if i < 0 {
			break
		}
		combo[i]++
		for j := i + 1; j < k; j++ {
			combo[j] = combo[j-1] + 1
		}
	}
	return out
}

// indexForCombination returns the 0-based rank of combo within the
// lexicographic enumeration produced by combinations(n, len(combo)), or -1
// if combo does not appear in that enumeration (wrong size, out of range,
// or not strictly ascending).
func indexForCombination(n int, combo []int) int {
	k := len(combo)
	for i, c := range combo {
		if c < 0 || c >= n {
			return -1
		}
		if i > 0 && c <= combo[i-1] {
			return -1
		}
	}
	for idx, candidate := range combinations(n, k) {
		if equalInts(candidate, combo) {
			return idx
		}
	}
	return -1
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// decodeDigits interprets a big-endian base-b digit sequence as an integer.
func decodeDigits(digits []int, base int) uint64 {
	var v uint64
	for _, d := range digits {
		v = v*uint64(base) + uint64(d)
	}
	return v
}

// encodeDigits renders value as a big-endian base-b digit sequence of the
// given width, most-significant digit first.
func encodeDigits(value uint64, base, width int) []int {
	out := make([]int, width)
	for i := width - 1; i >= 0; i-- {
		out[i] = int(value % uint64(base))
		value /= uint64(base)
	}
	return out
}

// outcomeCombination is one candidate path to assign to a non-lead slot of a
// quorum chain. It carries only the digits; computeOutcomeCombinations works
// on plain [][]int and does not use this type.
type outcomeCombination struct {
	digits []int
}

// computeOutcomeCombinations builds the set of T-tuples of digit paths that
// tolerate small per-oracle disagreement: position 0 always carries the
// exact anchor path (the lead oracle's reported outcome); positions 1..T-1
// each carry one tolerated variant, chosen so that the numeric difference
// between the variant and the anchor's represented range falls in
// [2^minSupportExp, 2^maxErrorExp].
//
// The per-slot variant set is built by walking exponents k from
// maxErrorExp down to minSupportExp (inclusive), so the coarsest band comes
// first: at k == maxErrorExp the variant is the anchor path itself truncated
// to nbDigits-k digits (the catch-all band); for k < maxErrorExp the variant
// is the anchor's low endpoint shifted up by 2^k, truncated the same way.
// When maximizeCoverage is false, each shifted variant (k < maxErrorExp)
// additionally gets a mirrored, shifted-down counterpart, provided the low
// endpoint is at least 2^k; the k == maxErrorExp variant is never mirrored.
//
// The full combination set is every assignment of one variant per non-lead
// slot (independently), i.e. the Cartesian product across slots 1..T-1.
func computeOutcomeCombinations(nbDigits int, path []int, maxErrorExp, minSupportExp int, maximizeCoverage bool, nbRequired int) [][][]int {
	if nbRequired <= 1 {
		return [][][]int{{append([]int(nil), path...)}}
	}

	const base = 2 // tolerance windows are defined over binary exponents of the digit range
	rangeDigits := nbDigits - len(path)
	low := decodeDigits(path, base) << uint(rangeDigits)

	variants := make([][]int, 0, maxErrorExp-minSupportExp+1)
	for k := maxErrorExp; k >= minSupportExp; k-- {
		truncLen := nbDigits - k
		if truncLen < 0 {
			truncLen = 0
		}
		if truncLen > nbDigits {
			truncLen = nbDigits
		}
		var shifted uint64
		if k == maxErrorExp {
			shifted = low
		} else {
			shifted = low + (uint64(1) << uint(k))
		}
		full := encodeDigits(shifted, base, nbDigits)
		variants = append(variants, append([]int(nil), full[:truncLen]...))

		if !maximizeCoverage && k != maxErrorExp {
			offset := uint64(1) << uint(k)
			if offset <= low {
				downFull := encodeDigits(low-offset, base, nbDigits)
				variants = append(variants, append([]int(nil), downFull[:truncLen]...))
			}
		}
	}

	slots := nbRequired - 1
	combos := [][][]int{{append([]int(nil), path...)}}
	for s := 0; s < slots; s++ {
		var next [][][]int
		for _, existing := range combos {
			for _, v := range variants {
				tuple := make([][]int, len(existing)+1)
				copy(tuple, existing)
				tuple[len(existing)] = append([]int(nil), v...)
				next = append(next, tuple)
			}
		}
		combos = next
	}
	return combos
}
