// Package multitrie implements the trie-of-tries that indexes which
// combination of oracle attestations satisfies a T-of-N quorum, tolerating
// small per-oracle digit disagreement.
//
// Each arena node owns one digit-trie (a leaf trie of values, or an inner
// trie whose values link to the next oracle's arena node). Nodes live in a
// flat arena; a node being mutated is swapped out for a tombstone and written
// back to the same slot, so live indices never shift. Slots are never freed.
// Insert, LookUp and All walk the quorum chain recursively, one call per
// oracle in the chain.
package multitrie

import (
	"iter"

	"github.com/rawblock/dlc-engine/internal/digittrie"
	"github.com/rawblock/dlc-engine/internal/dlcerr"
)

// TrieNodeInfo links a digit-trie child to the next arena node in a quorum
// chain: trie_index identifies which oracle extends the chain next,
// store_index addresses the arena slot.
type TrieNodeInfo struct {
	TrieIndex  int
	StoreIndex int
}

func findStoreIndex(children []TrieNodeInfo, trieIndex int) (int, bool) {
	for _, c := range children {
		if c.TrieIndex == trieIndex {
			return c.StoreIndex, true
		}
	}
	return 0, false
}

type kind int

const (
	kindLeaf kind = iota
	kindNode
	kindTombstone
)

// arenaNode is a tagged union: a Leaf digit-trie, an inner Node digit-trie
// whose values link to child arena slots, or a Tombstone. The tombstone
// exists purely to let Insert take a node out of the arena (to mutate it
// without a recursive borrow) and write it back in place.
type arenaNode[T any] struct {
	kind  kind
	leaf  *digittrie.DigitTrie[T]
	inner *digittrie.DigitTrie[[]TrieNodeInfo]
}

func newLeafNode[T any](base int) arenaNode[T] {
	return arenaNode[T]{kind: kindLeaf, leaf: digittrie.New[T](base)}
}

func newInnerNode[T any](base int) arenaNode[T] {
	return arenaNode[T]{kind: kindNode, inner: digittrie.New[[]TrieNodeInfo](base)}
}

// MultiTrie is the flat-arena trie-of-tries over N oracles with a T-of-N
// threshold and bounded digit tolerance.
type MultiTrie[T any] struct {
	store            []arenaNode[T]
	base             int
	nbTries          int
	nbRequired       int
	minSupportExp    int
	maxErrorExp      int
	nbDigits         int
	maximizeCoverage bool
}

// New creates an empty MultiTrie. nbRequired must be > 0 and nbTries must be
// >= nbRequired.
func New[T any](nbTries, nbRequired, base, minSupportExp, maxErrorExp, nbDigits int, maximizeCoverage bool) (*MultiTrie[T], error) {
	if nbRequired <= 0 || nbTries < nbRequired {
		return nil, dlcerr.Invalid("nb_required must be > 0 and <= nb_tries (got %d of %d)", nbRequired, nbTries)
	}
	nbRoots := nbTries - nbRequired + 1
	store := make([]arenaNode[T], nbRoots)
	for i := range store {
		if nbRequired > 1 {
			store[i] = newInnerNode[T](base)
		} else {
			store[i] = newLeafNode[T](base)
		}
	}
	return &MultiTrie[T]{
		store:            store,
		base:             base,
		nbTries:          nbTries,
		nbRequired:       nbRequired,
		minSupportExp:    minSupportExp,
		maxErrorExp:      maxErrorExp,
		nbDigits:         nbDigits,
		maximizeCoverage: maximizeCoverage,
	}, nil
}

func (t *MultiTrie[T]) nbRoots() int { return t.nbTries - t.nbRequired + 1 }

// take removes the node at index from the arena, leaving a tombstone, and
// returns what was there. Mirrors the source's swap-remove-then-push-back
// pattern with a direct replace, since Go has no borrow checker to appease.
func (t *MultiTrie[T]) take(index int) arenaNode[T] {
	old := t.store[index]
	t.store[index] = arenaNode[T]{kind: kindTombstone}
	return old
}

func (t *MultiTrie[T]) allocate(isLeaf bool) int {
	if isLeaf {
		t.store = append(t.store, newLeafNode[T](t.base))
	} else {
		t.store = append(t.store, newInnerNode[T](t.base))
	}
	return len(t.store) - 1
}

// GetValue produces the value stored at a quorum chain's terminal leaf,
// given the per-oracle digit paths chosen for the combination (indexed the
// same way as trieIndexes) and the oracle indexes making up the quorum.
type GetValue[T any] func(paths [][]int, trieIndexes []int) T

// Insert inserts path (the digit decomposition of an outcome, possibly
// shorter than nb_digits to denote a range) for every tolerated T-of-N
// quorum combination.
func (t *MultiTrie[T]) Insert(path []int, getValue GetValue[T]) error {
	var combinations_ [][][]int
	if t.nbRequired > 1 {
		combinations_ = computeOutcomeCombinations(t.nbDigits, path, t.maxErrorExp, t.minSupportExp, t.maximizeCoverage, t.nbRequired)
	} else {
		combinations_ = [][][]int{{append([]int(nil), path...)}}
	}

	for _, combo := range combinations_ {
		for _, selector := range combinations(t.nbTries, t.nbRequired) {
			if err := t.insertInternal(selector[0], combo, 0, selector, getValue); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *MultiTrie[T]) insertInternal(curIndex int, paths [][]int, pathIndex int, trieIndexes []int, getValue GetValue[T]) error {
	if pathIndex >= len(paths) {
		return dlcerr.State("multitrie: path index %d out of range for %d paths", pathIndex, len(paths))
	}
	cur := t.take(curIndex)
	switch cur.kind {
	case kindTombstone:
		return dlcerr.State("multitrie: arena slot %d is a tombstone mid-insert", curIndex)
	case kindLeaf:
		if pathIndex != len(paths)-1 {
			return dlcerr.State("multitrie: leaf reached before exhausting quorum chain")
		}
		if err := cur.leaf.Insert(paths[pathIndex], func(_ *T) T {
			return getValue(paths, trieIndexes)
		}); err != nil {
			return err
		}
		t.store[curIndex] = cur
		return nil
	default: // kindNode
		if pathIndex >= len(paths)-1 {
			return dlcerr.State("multitrie: node reached at end of quorum chain")
		}
		var nextStoreIndex int
		nextTrieIndex := trieIndexes[pathIndex+1]
		isLeafNext := pathIndex+1 == len(paths)-1
		err := cur.inner.Insert(paths[pathIndex], func(old *[]TrieNodeInfo) []TrieNodeInfo {
			var children []TrieNodeInfo
			if old != nil {
				children = *old
				if idx, ok := findStoreIndex(children, nextTrieIndex); ok {
					nextStoreIndex = idx
					return children
				}
			}
			nextStoreIndex = t.allocate(isLeafNext)
			return append(append([]TrieNodeInfo(nil), children...), TrieNodeInfo{TrieIndex: nextTrieIndex, StoreIndex: nextStoreIndex})
		})
		if err != nil {
			return err
		}
		t.store[curIndex] = cur
		return t.insertInternal(nextStoreIndex, paths, pathIndex+1, trieIndexes, getValue)
	}
}

// ObservedPath is one oracle's reported digit sequence, paired with its
// index among the contract's oracle announcements.
type ObservedPath struct {
	OracleIndex int
	Digits      []int
}

// PathEntry is one element of a LookupResult's Path: which oracle matched,
// and the digit prefix that matched.
type PathEntry struct {
	OracleIndex int
	Digits      []int
}

// LookupResult is a value found by LookUp or yielded by All, with the
// sequence of (oracle, matched digits) pairs that produced it, ordered by
// quorum chain position (lead oracle first).
type LookupResult[T any] struct {
	Value *T
	Path  []PathEntry
}

// LookUp tries every T-subset of paths (T = nb_required) until one matches a
// stored quorum combination, returning the first success.
func (t *MultiTrie[T]) LookUp(paths []ObservedPath) (LookupResult[T], bool) {
	if len(paths) < t.nbRequired {
		return LookupResult[T]{}, false
	}
	nbRoots := t.nbRoots()
	for _, selector := range combinations(len(paths), t.nbRequired) {
		firstOracle := paths[selector[0]].OracleIndex
		if firstOracle >= nbRoots {
			continue
		}
		filtered := make([]ObservedPath, len(selector))
		for i, s := range selector {
			filtered[i] = paths[s]
		}
		res, ok := t.lookupInternal(t.store[firstOracle], filtered, 0)
		if ok {
			for i, j := 0, len(res.Path)-1; i < j; i, j = i+1, j-1 {
				res.Path[i], res.Path[j] = res.Path[j], res.Path[i]
			}
			return res, true
		}
	}
	return LookupResult[T]{}, false
}

func (t *MultiTrie[T]) lookupInternal(node arenaNode[T], paths []ObservedPath, pathIndex int) (LookupResult[T], bool) {
	trieIndex := paths[pathIndex].OracleIndex
	switch node.kind {
	case kindLeaf:
		for res := range node.leaf.LookUp(paths[pathIndex].Digits) {
			return LookupResult[T]{
				Value: res.Value,
				Path:  []PathEntry{{OracleIndex: trieIndex, Digits: res.Path}},
			}, true
		}
		return LookupResult[T]{}, false
	case kindNode:
		if pathIndex >= len(paths)-1 {
			return LookupResult[T]{}, false
		}
		for res := range node.inner.LookUp(paths[pathIndex].Digits) {
			storeIndex, ok := findStoreIndex(*res.Value, paths[pathIndex+1].OracleIndex)
			if !ok {
				continue
			}
			child, ok := t.lookupInternal(t.store[storeIndex], paths, pathIndex+1)
			if ok {
				child.Path = append(child.Path, PathEntry{OracleIndex: trieIndex, Digits: res.Path})
				return child, true
			}
		}
		return LookupResult[T]{}, false
	default:
		return LookupResult[T]{}, false
	}
}

// All performs a depth-first, left-to-right traversal over every leaf value
// reachable through the trie-of-tries, restartable like digittrie.All.
func (t *MultiTrie[T]) All() iter.Seq[LookupResult[T]] {
	return func(yield func(LookupResult[T]) bool) {
		for i := 0; i < t.nbRoots(); i++ {
			if !t.iterateNode(t.store[i], i, nil, yield) {
				return
			}
		}
	}
}

func (t *MultiTrie[T]) iterateNode(n arenaNode[T], trieIndex int, prefix []PathEntry, yield func(LookupResult[T]) bool) bool {
	switch n.kind {
	case kindLeaf:
		for res := range n.leaf.All() {
			path := append(append([]PathEntry(nil), prefix...), PathEntry{OracleIndex: trieIndex, Digits: res.Path})
			if !yield(LookupResult[T]{Value: res.Value, Path: path}) {
				return false
			}
		}
		return true
	case kindNode:
		for res := range n.inner.All() {
			newPrefix := append(append([]PathEntry(nil), prefix...), PathEntry{OracleIndex: trieIndex, Digits: res.Path})
			for _, info := range *res.Value {
				if !t.iterateNode(t.store[info.StoreIndex], info.TrieIndex, newPrefix, yield) {
					return false
				}
			}
		}
		return true
	default:
		return true
	}
}
