package contractinfo

import (
	"sort"
	"strings"

	"github.com/rawblock/dlc-engine/internal/dlcerr"
)

// Outcome is one oracle's reported outcome at execution time: its index
// among the contract's oracle announcements, and the digit strings (or, for
// enum contracts, the single outcome string) it attested to.
type Outcome struct {
	OracleIndex int
	Digits      []string
}

// majorityCombination groups outcomes by their exact digit sequence and
// returns the digits and oracle indices (ascending) of the largest group,
// breaking ties by whichever group's digit sequence was reported first.
// Because groups are scanned in first-seen order and replaced only on a
// strictly larger count, the first-seen group already wins every tie.
func majorityCombination(outcomes []Outcome) ([]string, []int, error) {
	type group struct {
		digits     []string
		oracleIdxs []int
	}
	groups := make(map[string]*group)
	var order []string
	for _, o := range outcomes {
		key := strings.Join(o.Digits, ",")
		g, ok := groups[key]
		if !ok {
			g = &group{digits: o.Digits}
			groups[key] = g
			order = append(order, key)
		}
		g.oracleIdxs = append(g.oracleIdxs, o.OracleIndex)
	}
	if len(groups) == 0 {
		return nil, nil, dlcerr.Invalid("no outcomes supplied for majority vote")
	}

	var best *group
	for _, key := range order {
		g := groups[key]
		if best == nil || len(g.oracleIdxs) > len(best.oracleIdxs) {
			best = g
		}
	}
	sorted := append([]int(nil), best.oracleIdxs...)
	sort.Ints(sorted)
	return best.digits, sorted, nil
}
