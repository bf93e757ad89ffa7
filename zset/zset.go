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

// Package zset is an ordered set of (member, score) pairs, unique by
// member and ordered first by score and then by member. A Set starts in a
// packed encoding backed by a single listpack, cheap to allocate and
// cache-friendly for small sets; once it outgrows configured thresholds it
// promotes once, permanently, to a dict+skiplist pair that trades constant
// factors for logarithmic rank and range queries. A Set is not safe for
// concurrent use.
package zset

import (
	"strconv"

	"github.com/quiverkv/core/dict"
	"github.com/quiverkv/core/listpack"
	"github.com/quiverkv/core/skiplist"
)

// Encoding reports which internal representation a Set currently uses.
type Encoding int

const (
	// EncodingPacked stores every member/score pair in a single listpack,
	// kept sorted by (score, member) on every mutation.
	EncodingPacked Encoding = iota
	// EncodingSkiplist stores members in a dict (for O(1) score lookup) and
	// a parallel skiplist (for ordered and rank-based access).
	EncodingSkiplist
)

func (e Encoding) String() string {
	if e == EncodingSkiplist {
		return "skiplist"
	}
	return "packed"
}

const (
	// DefaultMaxEntriesPacked is the element count above which a packed Set
	// promotes to the skiplist encoding.
	DefaultMaxEntriesPacked = 128
	// DefaultMaxValuePacked is the member byte length above which a packed
	// Set promotes to the skiplist encoding, regardless of element count.
	DefaultMaxValuePacked = 64
)

// Member is one (member, score) pair as returned by range and rank queries.
type Member struct {
	Value string
	Score float64
}

func stringEqual(a, b string) bool { return a == b }
func stringLess(a, b string) bool  { return a < b }

// Set is an ordered set of unique string members, each with a float64
// score. The zero value is not usable; construct one with New.
type Set struct {
	encoding         Encoding
	maxEntriesPacked int
	maxValuePacked   int

	packed *listpack.List

	members *dict.Dict[string, float64]
	order   *skiplist.List[string]
}

// New constructs an empty Set in the packed encoding.
func New(opts ...Option) *Set {
	s := &Set{
		encoding:         EncodingPacked,
		maxEntriesPacked: DefaultMaxEntriesPacked,
		maxValuePacked:   DefaultMaxValuePacked,
		packed:           listpack.New(),
	}
	for _, o := range opts {
		o.apply(s)
	}
	return s
}

// Encoding reports the Set's current internal representation.
func (s *Set) Encoding() Encoding {
	return s.encoding
}

// Len returns the number of members.
func (s *Set) Len() int {
	if s.encoding == EncodingPacked {
		return s.packed.Len() / 2
	}
	return s.members.Len()
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'g', -1, 64)
}

func parseScore(e listpack.Entry) float64 {
	f, _ := strconv.ParseFloat(entryString(e), 64)
	return f
}

func entryString(e listpack.Entry) string {
	if e.IsInt {
		return strconv.FormatInt(e.Int, 10)
	}
	return string(e.Bytes)
}

func (s *Set) packedEntry(index int) listpack.Entry {
	e, err := s.packed.Get(index)
	if err != nil {
		panic("zset: packed index out of range")
	}
	return e
}

func (s *Set) packedMember(pairIndex int) Member {
	member := entryString(s.packedEntry(2 * pairIndex))
	score := parseScore(s.packedEntry(2*pairIndex + 1))
	return Member{Value: member, Score: score}
}

// packedFind returns the pair index of member, its score, and whether it
// was found. Packed sets are small by construction (that is the point of
// the encoding), so a linear scan costs less than the bookkeeping a hash
// table or index would add.
func (s *Set) packedFind(member string) (pairIndex int, score float64, found bool) {
	n := s.packed.Len() / 2
	for i := 0; i < n; i++ {
		if entryString(s.packedEntry(2*i)) == member {
			return i, parseScore(s.packedEntry(2*i + 1)), true
		}
	}
	return -1, 0, false
}

// insertPackedSorted inserts member/score at the position that keeps the
// packed list ordered by (score, member); member must not already be
// present.
func (s *Set) insertPackedSorted(member string, score float64) {
	n := s.packed.Len() / 2
	pos := n
	for i := 0; i < n; i++ {
		sc := parseScore(s.packedEntry(2*i + 1))
		if sc > score || (sc == score && entryString(s.packedEntry(2*i)) > member) {
			pos = i
			break
		}
	}
	_ = s.packed.Insert(2*pos, []byte(member))
	_ = s.packed.Insert(2*pos+1, []byte(formatScore(score)))
}

// Add inserts member with score, or updates its score if already present.
// It reports whether member was newly added; a score change on an existing
// member reports false, matching the added|updated distinction.
func (s *Set) Add(member string, score float64) (added bool) {
	if s.encoding == EncodingPacked {
		added = s.addPacked(member, score)
	} else {
		added = s.addSkiplist(member, score)
	}
	s.maybePromote(member)
	return added
}

func (s *Set) addPacked(member string, score float64) bool {
	idx, old, found := s.packedFind(member)
	if !found {
		s.insertPackedSorted(member, score)
		return true
	}
	if old == score {
		return false
	}
	_ = s.packed.Delete(2 * idx)
	_ = s.packed.Delete(2 * idx)
	s.insertPackedSorted(member, score)
	return false
}

func (s *Set) addSkiplist(member string, score float64) bool {
	if e, ok := s.members.Find(member); ok {
		old := e.Value()
		if old == score {
			return false
		}
		s.order.UpdateScore(old, member, score)
		e.SetValue(score)
		return false
	}
	s.order.Insert(score, member)
	_ = s.members.Insert(member, score)
	return true
}

// maybePromote upgrades a packed Set to the skiplist encoding once it
// crosses either threshold. Promotion is one-way: a Set never demotes on
// its own, only UnionStore/IntersectStore's post-aggregation compaction
// step ever rebuilds a skiplist-encoded Set back into a packed one.
func (s *Set) maybePromote(lastMember string) {
	if s.encoding == EncodingSkiplist {
		return
	}
	if s.packed.Len()/2 > s.maxEntriesPacked || len(lastMember) > s.maxValuePacked {
		s.promote()
	}
}

func (s *Set) promote() {
	n := s.packed.Len() / 2
	members := dict.New[string, float64](dict.HashString, stringEqual)
	order := skiplist.New[string](stringEqual, stringLess)
	for i := 0; i < n; i++ {
		m := s.packedMember(i)
		order.Insert(m.Score, m.Value)
		_ = members.Insert(m.Value, m.Score)
	}
	s.members = members
	s.order = order
	s.packed = nil
	s.encoding = EncodingSkiplist
}

// clear resets s to an empty, packed Set, discarding its current
// representation entirely.
func (s *Set) clear() {
	s.encoding = EncodingPacked
	s.packed = listpack.New()
	s.members = nil
	s.order = nil
}

// Remove deletes member, reporting whether it was present.
func (s *Set) Remove(member string) bool {
	if s.encoding == EncodingPacked {
		idx, _, found := s.packedFind(member)
		if !found {
			return false
		}
		_ = s.packed.Delete(2 * idx)
		_ = s.packed.Delete(2 * idx)
		return true
	}
	e, ok := s.members.Find(member)
	if !ok {
		return false
	}
	s.order.Remove(e.Value(), member)
	_ = s.members.Remove(member)
	return true
}

// Score returns member's score, or false if it is not present.
func (s *Set) Score(member string) (float64, bool) {
	if s.encoding == EncodingPacked {
		_, score, found := s.packedFind(member)
		return score, found
	}
	return s.members.Get(member)
}

// Rank returns member's 1-based position in ascending score order, or
// false if it is not present. reverse gives the position in descending
// order instead.
func (s *Set) Rank(member string, reverse bool) (int, bool) {
	if s.encoding == EncodingPacked {
		idx, _, found := s.packedFind(member)
		if !found {
			return 0, false
		}
		if reverse {
			return s.Len() - idx, true
		}
		return idx + 1, true
	}
	score, ok := s.members.Get(member)
	if !ok {
		return 0, false
	}
	rank := s.order.GetRank(score, member)
	if rank == 0 {
		return 0, false
	}
	if reverse {
		return s.Len() - rank + 1, true
	}
	return rank, true
}

func normalizeRankIndex(i, n int) int {
	if i < 0 {
		i = n + i
		if i < 0 {
			i = 0
		}
	}
	return i
}

// RangeByRank returns members whose 0-based ascending position falls in
// [start, end] (inclusive), or counts positions in descending order if
// reverse is set. Negative start/end count from the last element, as -1
// does for the last member.
func (s *Set) RangeByRank(start, end int, reverse bool) []Member {
	n := s.Len()
	if n == 0 {
		return nil
	}
	start = normalizeRankIndex(start, n)
	end = normalizeRankIndex(end, n)
	if end >= n {
		end = n - 1
	}
	if start > end || start >= n {
		return nil
	}

	out := make([]Member, 0, end-start+1)
	if s.encoding == EncodingPacked {
		for i := start; i <= end; i++ {
			idx := i
			if reverse {
				idx = n - 1 - i
			}
			out = append(out, s.packedMember(idx))
		}
		return out
	}
	for i := start; i <= end; i++ {
		rank := i + 1
		if reverse {
			rank = n - i
		}
		node := s.order.GetByRank(rank)
		out = append(out, Member{Value: node.Value, Score: node.Score})
	}
	return out
}

// eachAscending visits every member in ascending (score, member) order
// until fn returns false.
func (s *Set) eachAscending(fn func(Member) bool) {
	if s.encoding == EncodingPacked {
		n := s.packed.Len() / 2
		for i := 0; i < n; i++ {
			if !fn(s.packedMember(i)) {
				return
			}
		}
		return
	}
	for node := s.order.Front(); node != nil; node = node.Next() {
		if !fn(Member{Value: node.Value, Score: node.Score}) {
			return
		}
	}
}

// eachDescending visits every member in descending (score, member) order
// until fn returns false.
func (s *Set) eachDescending(fn func(Member) bool) {
	if s.encoding == EncodingPacked {
		for i := s.packed.Len()/2 - 1; i >= 0; i-- {
			if !fn(s.packedMember(i)) {
				return
			}
		}
		return
	}
	for node := s.order.Back(); node != nil; node = node.Prev() {
		if !fn(Member{Value: node.Value, Score: node.Score}) {
			return
		}
	}
}

// Each visits every member in ascending order, exposing s as an
// aggregation Source.
func (s *Set) Each(fn func(member string, score float64)) {
	s.eachAscending(func(m Member) bool {
		fn(m.Value, m.Score)
		return true
	})
}

func paginate(all []Member, offset, limit int) []Member {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return nil
	}
	all = all[offset:]
	if limit < 0 || limit > len(all) {
		return all
	}
	return all[:limit]
}
