// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package zset

import (
	"math"

	"github.com/quiverkv/core/dict"
	"github.com/quiverkv/core/dlist"
	"github.com/quiverkv/core/listpack"
	"github.com/quiverkv/core/skiplist"
)

// Source is anything UnionStore and IntersectStore can read scored members
// from: an ordered Set, or a plain (unordered) set with an implicit score
// of 1 for every member, wrapped in a small adapter by the caller.
type Source interface {
	Len() int
	Score(member string) (float64, bool)
	Each(fn func(member string, score float64))
}

// Aggregate selects how UnionStore and IntersectStore combine scores for a
// member present in more than one input.
type Aggregate int

const (
	// AggregateSum adds scores together. Summing +Inf and -Inf is defined
	// to produce 0 rather than NaN.
	AggregateSum Aggregate = iota
	AggregateMin
	AggregateMax
)

func combine(agg Aggregate, a, b float64) float64 {
	switch agg {
	case AggregateMin:
		return math.Min(a, b)
	case AggregateMax:
		return math.Max(a, b)
	default:
		sum := a + b
		if math.IsNaN(sum) {
			return 0
		}
		return sum
	}
}

// sortedIndicesByCardinality returns the indices of inputs ordered by
// ascending Len, so callers can do their per-element work against the
// smallest input first. The ordering is built as a dlist, inserting each
// index ahead of the first entry it is smaller than, then flattened by
// walking the list front to back.
func sortedIndicesByCardinality(inputs []Source) []int {
	order := dlist.New[int](dlist.Callbacks[int]{})
	for i := range inputs {
		card := inputs[i].Len()
		placed := false
		for n := order.Front(); n != nil; n = n.Next() {
			if inputs[n.Value()].Len() > card {
				order.InsertBefore(n, i)
				placed = true
				break
			}
		}
		if !placed {
			order.PushBack(i)
		}
	}

	idx := make([]int, 0, order.Len())
	it := order.Iterator(dlist.FromHead)
	for n := it.Next(); n != nil; n = it.Next() {
		idx = append(idx, n.Value())
	}
	return idx
}

// UnionStore replaces s with the union of inputs, weighting each input's
// scores by the corresponding entry in weights before combining with agg.
// The result is always assembled in the dual dict+skiplist representation
// first, since deduplicating members across inputs needs a hash table
// regardless of how small the result turns out to be; after the
// aggregation, s is compacted back to the packed encoding if its final
// size fits the configured thresholds.
func (s *Set) UnionStore(inputs []Source, weights []float64, agg Aggregate) {
	order := sortedIndicesByCardinality(inputs)
	acc := dict.New[string, float64](dict.HashString, stringEqual)
	for _, idx := range order {
		w := weights[idx]
		inputs[idx].Each(func(member string, score float64) {
			val := score * w
			if e, ok := acc.Find(member); ok {
				e.SetValue(combine(agg, e.Value(), val))
				return
			}
			_ = acc.Insert(member, val)
		})
	}
	s.rebuildFromAccumulator(acc)
}

// IntersectStore replaces s with the intersection of inputs: a member must
// be present in every input to appear in the result, with its score the
// weighted combination of its score in each input. Iteration walks the
// smallest input first and probes the rest, minimizing the number of
// probes against the larger inputs.
func (s *Set) IntersectStore(inputs []Source, weights []float64, agg Aggregate) {
	if len(inputs) == 0 {
		s.clear()
		return
	}

	order := sortedIndicesByCardinality(inputs)
	smallest := order[0]
	rest := order[1:]

	acc := dict.New[string, float64](dict.HashString, stringEqual)
	inputs[smallest].Each(func(member string, score float64) {
		total := score * weights[smallest]
		for _, idx := range rest {
			sc, ok := inputs[idx].Score(member)
			if !ok {
				return
			}
			total = combine(agg, total, sc*weights[idx])
		}
		_ = acc.Insert(member, total)
	})
	s.rebuildFromAccumulator(acc)
}

// rebuildFromAccumulator replaces s's contents with acc's, unconditionally
// in the skiplist encoding, then compacts back to packed if the result is
// small enough.
func (s *Set) rebuildFromAccumulator(acc *dict.Dict[string, float64]) {
	if acc.Len() == 0 {
		s.clear()
		return
	}

	members := dict.New[string, float64](dict.HashString, stringEqual)
	order := skiplist.New[string](stringEqual, stringLess)
	it := acc.SafeIterator()
	defer it.Close()
	for e := it.Next(); e != nil; e = it.Next() {
		order.Insert(e.Value(), e.Key())
		_ = members.Insert(e.Key(), e.Value())
	}

	s.members = members
	s.order = order
	s.packed = nil
	s.encoding = EncodingSkiplist
	s.compact()
}

// compact rebuilds a skiplist-encoded Set back into the packed encoding if
// its current contents fit both thresholds. This is the one path that
// ever moves a Set from skiplist back to packed; Add and Remove alone
// never demote.
func (s *Set) compact() {
	if s.encoding == EncodingPacked {
		return
	}
	if s.members.Len() > s.maxEntriesPacked {
		return
	}
	for node := s.order.Front(); node != nil; node = node.Next() {
		if len(node.Value) > s.maxValuePacked {
			return
		}
	}

	packed := listpack.New()
	for node := s.order.Front(); node != nil; node = node.Next() {
		packed.PushBack([]byte(node.Value))
		packed.PushBack([]byte(formatScore(node.Score)))
	}
	s.packed = packed
	s.members = nil
	s.order = nil
	s.encoding = EncodingPacked
}
