package contractinfo

// combinationsOfOracles enumerates all k-element subsets of {0,...,n-1} in
// ascending lexicographic order, mirroring multitrie's combinatorial
// selector (duplicated here rather than exported cross-package, since both
// are small and package-private by design).
func combinationsOfOracles(n, k int) [][]int {
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
	for idx, candidate := range combinationsOfOracles(n, k) {
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
