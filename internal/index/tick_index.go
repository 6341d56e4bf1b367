// Package index maintains the tick-ordered indices behind tracks and songs.
package index

import (
	"slices"

	"github.com/google/btree"

	"songstore/pkg/domain"
)

const btreeDegree = 16

type bucket struct {
	at  domain.Ticks
	ids []domain.ID
}

func bucketLess(a, b *bucket) bool { return a.at < b.at }

func compareIDs(a, b domain.ID) int { return a.Compare(b) }

// TickIndex maps a tick to the set of event ids keyed there. Ids inside a
// bucket are kept sorted by value; empty buckets are pruned.
type TickIndex struct {
	tree *btree.BTreeG[*bucket]
	n    int
}

// NewTickIndex returns an empty index.
func NewTickIndex() *TickIndex {
	return &TickIndex{tree: btree.NewG(btreeDegree, bucketLess)}
}

// Len returns the number of (tick, id) entries.
func (x *TickIndex) Len() int { return x.n }

// Keys returns the number of distinct ticks with at least one id.
func (x *TickIndex) Keys() int { return x.tree.Len() }

// Add records id under at. It reports false if the pair was already present.
func (x *TickIndex) Add(at domain.Ticks, id domain.ID) bool {
	b, ok := x.tree.Get(&bucket{at: at})
	if !ok {
		x.tree.ReplaceOrInsert(&bucket{at: at, ids: []domain.ID{id}})
		x.n++
		return true
	}
	i, found := slices.BinarySearchFunc(b.ids, id, compareIDs)
	if found {
		return false
	}
	b.ids = slices.Insert(b.ids, i, id)
	x.n++
	return true
}

// Remove deletes id from the bucket at at. It reports false if the pair was
// not present.
func (x *TickIndex) Remove(at domain.Ticks, id domain.ID) bool {
	b, ok := x.tree.Get(&bucket{at: at})
	if !ok {
		return false
	}
	i, found := slices.BinarySearchFunc(b.ids, id, compareIDs)
	if !found {
		return false
	}
	b.ids = slices.Delete(b.ids, i, i+1)
	if len(b.ids) == 0 {
		x.tree.Delete(b)
	}
	x.n--
	return true
}

// Contains reports whether id is recorded under at.
func (x *TickIndex) Contains(at domain.Ticks, id domain.ID) bool {
	b, ok := x.tree.Get(&bucket{at: at})
	if !ok {
		return false
	}
	_, found := slices.BinarySearchFunc(b.ids, id, compareIDs)
	return found
}

// Ascend visits every entry in (tick, id) order until fn returns false.
func (x *TickIndex) Ascend(fn func(at domain.Ticks, id domain.ID) bool) {
	x.tree.Ascend(visitBucket(fn))
}

// AscendRange visits entries with from <= tick < to.
func (x *TickIndex) AscendRange(from, to domain.Ticks, fn func(at domain.Ticks, id domain.ID) bool) {
	if to <= from {
		return
	}
	x.tree.AscendRange(&bucket{at: from}, &bucket{at: to}, visitBucket(fn))
}

// AscendAfter visits entries with tick > after.
func (x *TickIndex) AscendAfter(after domain.Ticks, fn func(at domain.Ticks, id domain.ID) bool) {
	if after == domain.MaxTicks {
		return
	}
	x.tree.AscendGreaterOrEqual(&bucket{at: after + 1}, visitBucket(fn))
}

func visitBucket(fn func(at domain.Ticks, id domain.ID) bool) btree.ItemIteratorG[*bucket] {
	return func(b *bucket) bool {
		for _, id := range b.ids {
			if !fn(b.at, id) {
				return false
			}
		}
		return true
	}
}
