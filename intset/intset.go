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

// Package intset is a sorted array of signed integers stored at the
// smallest uniform width that fits every element currently held. Width
// promotes from 16 to 32 to 64 bits as elements too large for the current
// width are inserted; it never demotes, even after the wide elements that
// forced the promotion are removed, matching intsetUpgradeAndAdd's
// behavior of trading a little wasted space for never paying a second
// full-array rewrite on shrink.
package intset

import (
	"math/rand"
	"sort"
)

// Width is the element size an Set currently stores its values at.
type Width int

const (
	Width16 Width = 2
	Width32 Width = 4
	Width64 Width = 8
)

func widthFor(v int64) Width {
	switch {
	case v >= -32768 && v <= 32767:
		return Width16
	case v >= -2147483648 && v <= 2147483647:
		return Width32
	default:
		return Width64
	}
}

// Set is a sorted set of int64 values backed by a single slice held at a
// uniform element width. The zero Set is an empty, ready-to-use set at the
// narrowest width.
type Set struct {
	width  Width
	values []int64
}

// New returns an empty Set.
func New() *Set {
	return &Set{width: Width16}
}

// Len returns the number of elements.
func (s *Set) Len() int {
	return len(s.values)
}

// Width reports the element width the set is currently stored at.
func (s *Set) Width() Width {
	return s.width
}

// search returns the index at which v is found, or the index at which it
// would need to be inserted to keep values sorted, and whether it was
// found.
func (s *Set) search(v int64) (int, bool) {
	i := sort.Search(len(s.values), func(i int) bool { return s.values[i] >= v })
	if i < len(s.values) && s.values[i] == v {
		return i, true
	}
	return i, false
}

// Find reports whether v is a member of s.
func (s *Set) Find(v int64) bool {
	_, ok := s.search(v)
	return ok
}

// Insert adds v to s, reporting whether it was newly added. If v requires a
// wider element width than s currently uses, the whole array is upgraded
// in place before v is inserted; an upgrade always inserts at one of the
// two ends since every existing element was already narrower than v.
func (s *Set) Insert(v int64) bool {
	need := widthFor(v)
	if need > s.width {
		s.upgrade(need, v)
		return true
	}
	i, ok := s.search(v)
	if ok {
		return false
	}
	s.values = append(s.values, 0)
	copy(s.values[i+1:], s.values[i:])
	s.values[i] = v
	return true
}

// upgrade widens every stored element to width and inserts v, which must
// not fit in the set's current width. Because v required the upgrade, it
// is strictly larger in magnitude than every existing element on whichever
// side its sign places it, so it always lands at the front (negative) or
// back (non-negative) of the rebuilt array.
func (s *Set) upgrade(width Width, v int64) {
	old := s.values
	s.width = width
	s.values = make([]int64, len(old)+1)
	if v < 0 {
		s.values[0] = v
		copy(s.values[1:], old)
	} else {
		copy(s.values, old)
		s.values[len(old)] = v
	}
}

// Remove deletes v from s, reporting whether it was present. Remove never
// narrows the element width, even if every remaining value would fit in a
// smaller one.
func (s *Set) Remove(v int64) bool {
	i, ok := s.search(v)
	if !ok {
		return false
	}
	s.values = append(s.values[:i], s.values[i+1:]...)
	return true
}

// Random returns a uniformly chosen element using rng, or false if s is
// empty.
func (s *Set) Random(rng *rand.Rand) (int64, bool) {
	if len(s.values) == 0 {
		return 0, false
	}
	return s.values[rng.Intn(len(s.values))], true
}

// Get returns the element at the given 0-based position in ascending
// order, or false if index is out of range.
func (s *Set) Get(index int) (int64, bool) {
	if index < 0 || index >= len(s.values) {
		return 0, false
	}
	return s.values[index], true
}

// Values returns the elements in ascending order. The returned slice
// aliases Set's internal storage and must not be modified.
func (s *Set) Values() []int64 {
	return s.values
}
