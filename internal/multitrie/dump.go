package multitrie

import "github.com/rawblock/dlc-engine/internal/dlcerr"

// Dump is the flat, versioned serialization of a MultiTrie: its scalar
// parameters plus a leaf-only encoding of every stored quorum chain. The
// arena's internal tombstone/index bookkeeping is irrelevant to
// reconstruction and is not serialized.
type Dump[T any] struct {
	Version          int
	Base             int
	NbTries          int
	NbRequired       int
	MinSupportExp    int
	MaxErrorExp      int
	NbDigits         int
	MaximizeCoverage bool
	Entries          []DumpEntry[T]
}

// DumpEntry is one quorum chain: the sequence of (oracle index, digit path)
// pairs leading to Value, in lead-oracle-first order.
type DumpEntry[T any] struct {
	Path  []PathEntry
	Value T
}

const dumpVersion = 1

// Dump serializes every stored quorum chain in depth-first traversal order.
func (t *MultiTrie[T]) Dump() Dump[T] {
	d := Dump[T]{
		Version:          dumpVersion,
		Base:             t.base,
		NbTries:          t.nbTries,
		NbRequired:       t.nbRequired,
		MinSupportExp:    t.minSupportExp,
		MaxErrorExp:      t.maxErrorExp,
		NbDigits:         t.nbDigits,
		MaximizeCoverage: t.maximizeCoverage,
	}
	for res := range t.All() {
		d.Entries = append(d.Entries, DumpEntry[T]{Path: res.Path, Value: *res.Value})
	}
	return d
}

// FromDump rebuilds a MultiTrie from a Dump produced by Dump. Because every
// recorded entry already carries its exact oracle-index/digit-path chain,
// reconstruction re-inserts each leaf directly rather than recomputing
// tolerance combinations.
func FromDump[T any](d Dump[T]) (*MultiTrie[T], error) {
	if d.Version != dumpVersion {
		return nil, dlcerr.Invalid("multitrie: unsupported dump version %d", d.Version)
	}
	t, err := New[T](d.NbTries, d.NbRequired, d.Base, d.MinSupportExp, d.MaxErrorExp, d.NbDigits, d.MaximizeCoverage)
	if err != nil {
		return nil, err
	}
	for _, e := range d.Entries {
		if len(e.Path) == 0 {
			return nil, dlcerr.Invalid("multitrie: dump entry with empty path")
		}
		paths := make([][]int, len(e.Path))
		trieIndexes := make([]int, len(e.Path))
		for i, p := range e.Path {
			paths[i] = p.Digits
			trieIndexes[i] = p.OracleIndex
		}
		value := e.Value
		if err := t.insertInternal(trieIndexes[0], paths, 0, trieIndexes, func(_ [][]int, _ []int) T { return value }); err != nil {
			return nil, err
		}
	}
	return t, nil
}
