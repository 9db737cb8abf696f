// Package digittrie implements a prefix-compressed trie over base-b digit
// sequences, used to index CET outcomes by the oracle digit decompositions
// that satisfy them.
//
// Shared prefixes collapse onto a single edge labeled with the full digit
// run between branch points, so a sparse outcome set costs one node per
// divergence rather than one per digit. Inserting a path that diverges
// partway through an existing edge splits that edge at the divergence point
// before continuing.
package digittrie

import (
	"fmt"
	"iter"
	"sort"

	"github.com/rawblock/dlc-engine/internal/dlcerr"
)

// node is one edge+vertex of the trie. path is the run-length-compressed
// digit sequence carried by this edge, relative to its parent. value is set
// when this node is a valid terminal (a stored leaf); it may still have
// children, since digit-trie keys can be prefixes of one another (a shorter
// key denotes "any outcome starting with this prefix").
type node[T any] struct {
	path     []int
	children map[int]*node[T]
	value    *T
}

// DigitTrie is a base-b trie with one stored value of type T per leaf path.
type DigitTrie[T any] struct {
	base int
	root *node[T]
}

// New creates an empty trie with the given branching factor.
func New[T any](base int) *DigitTrie[T] {
	return &DigitTrie[T]{base: base}
}

// Base returns the trie's branching factor.
func (t *DigitTrie[T]) Base() int { return t.base }

func (t *DigitTrie[T]) validate(path []int) error {
	for _, d := range path {
		if d < 0 || d >= t.base {
			return dlcerr.Invalid("digit %d out of range for base %d", d, t.base)
		}
	}
	return nil
}

func commonPrefixLen(a, b []int) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// Insert walks from the root, compressing common prefixes with existing
// edges. getValue is called with the current leaf value (nil if none) to
// produce the value to store; this lets callers merge into existing data
// (used by the multi-trie to accumulate TrieNodeInfo children).
func (t *DigitTrie[T]) Insert(path []int, getValue func(old *T) T) error {
	if err := t.validate(path); err != nil {
		return err
	}
	t.root = insertNode(t.root, append([]int(nil), path...), getValue)
	return nil
}

func insertNode[T any](n *node[T], path []int, getValue func(old *T) T) *node[T] {
	if n == nil {
		v := getValue(nil)
		return &node[T]{path: path, value: &v}
	}

	common := commonPrefixLen(n.path, path)

	switch {
	case common == len(n.path) && common == len(path):
		// Exact match: merge into the existing leaf.
		v := getValue(n.value)
		n.value = &v
		return n

	case common == len(n.path):
		// n's edge is fully consumed; continue into (or create) a child
		// keyed by the next digit of path.
		rest := path[common:]
		next := rest[0]
		if n.children == nil {
			n.children = make(map[int]*node[T])
		}
		n.children[next] = insertNode(n.children[next], rest, getValue)
		return n

	default:
		// Divergence partway through n's edge: split it.
		splitAt := common
		tailDigit := n.path[splitAt]
		tail := &node[T]{
			path:     n.path[splitAt:],
			children: n.children,
			value:    n.value,
		}
		branch := &node[T]{
			path:     n.path[:splitAt],
			children: map[int]*node[T]{tailDigit: tail},
		}
		if splitAt == len(path) {
			v := getValue(nil)
			branch.value = &v
			return branch
		}
		rest := path[splitAt:]
		next := rest[0]
		branch.children[next] = insertNode(nil, rest, getValue)
		return branch
	}
}

// LookupResult is one match produced by LookUp or All.
type LookupResult[T any] struct {
	Path  []int
	Value *T
}

func isPrefixOf(full, query []int) bool {
	if len(full) > len(query) {
		return false
	}
	for i, d := range full {
		if query[i] != d {
			return false
		}
	}
	return true
}

// LookUp returns, in lexicographic order, every stored leaf whose path is a
// prefix of query. This is the mechanism by which a shorter stored
// "range" key (fewer digits than the oracle's full decomposition) matches
// a fully-observed outcome.
func (t *DigitTrie[T]) LookUp(query []int) iter.Seq[LookupResult[T]] {
	return func(yield func(LookupResult[T]) bool) {
		walkLookup(t.root, nil, query, yield)
	}
}

func walkLookup[T any](n *node[T], prefix []int, query []int, yield func(LookupResult[T]) bool) bool {
	if n == nil {
		return true
	}
	full := append(append([]int(nil), prefix...), n.path...)
	if !isPrefixOf(full, query) {
		return true
	}
	if n.value != nil {
		if !yield(LookupResult[T]{Path: full, Value: n.value}) {
			return false
		}
	}
	if len(full) == len(query) || n.children == nil {
		return true
	}
	next := query[len(full)]
	child, ok := n.children[next]
	if !ok {
		return true
	}
	return walkLookup(child, full, query, yield)
}

// All iterates every (path, value) pair stored in the trie, in lexicographic
// order over paths. The sequence is restartable: calling All() again starts
// a fresh traversal.
func (t *DigitTrie[T]) All() iter.Seq[LookupResult[T]] {
	return func(yield func(LookupResult[T]) bool) {
		walkAll(t.root, nil, yield)
	}
}

func walkAll[T any](n *node[T], prefix []int, yield func(LookupResult[T]) bool) bool {
	if n == nil {
		return true
	}
	full := append(append([]int(nil), prefix...), n.path...)
	if n.value != nil {
		if !yield(LookupResult[T]{Path: full, Value: n.value}) {
			return false
		}
	}
	if n.children == nil {
		return true
	}
	digits := make([]int, 0, len(n.children))
	for d := range n.children {
		digits = append(digits, d)
	}
	sort.Ints(digits)
	for _, d := range digits {
		if !walkAll(n.children[d], full, yield) {
			return false
		}
	}
	return true
}

// Dump is the flat serialization of a trie, used by MultiTrie.Dump and for
// standalone persistence. It records every (path, value) pair; round-tripping
// through Dump/FromDump rebuilds an identical trie (same lookup results) but
// does not preserve the original edge-compression shape, only its leaves.
type Dump[T any] struct {
	Base    int
	Entries []DumpEntry[T]
}

// DumpEntry is one leaf of a Dump.
type DumpEntry[T any] struct {
	Path  []int
	Value T
}

// Dump serializes the trie's leaves in lexicographic path order.
func (t *DigitTrie[T]) Dump() Dump[T] {
	d := Dump[T]{Base: t.base}
	for res := range t.All() {
		d.Entries = append(d.Entries, DumpEntry[T]{Path: res.Path, Value: *res.Value})
	}
	return d
}

// FromDump rebuilds a trie from a Dump produced by Dump.
func FromDump[T any](d Dump[T]) (*DigitTrie[T], error) {
	t := New[T](d.Base)
	for _, e := range d.Entries {
		value := e.Value
		if err := t.Insert(e.Path, func(_ *T) T { return value }); err != nil {
			return nil, fmt.Errorf("digittrie: rebuilding from dump: %w", err)
		}
	}
	return t, nil
}
