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

package dict

import "github.com/quiverkv/core/dlist"

// Iterator walks every entry currently stored in a Dict. A SafeIterator
// pauses incremental rehashing for its lifetime and allows Find/Insert/
// Remove to run concurrently with the walk; an UnsafeIterator lets
// rehashing continue and instead panics if it detects that the dictionary
// was mutated during the walk, following dictGetIterator/dictGetSafeIterator.
type Iterator[K any, V any] struct {
	d       *Dict[K, V]
	safe    bool
	closed  bool
	table   int
	index   int64
	current *Entry[K, V]
	next    *Entry[K, V]

	fingerprint uint64
	started     bool

	// liveNode is this iterator's own node in d.liveIterators, set only for
	// a SafeIterator, so Close can unlink it in O(1) without a scan.
	liveNode *dlist.Node[*Iterator[K, V]]
}

// SafeIterator returns an Iterator that suppresses background rehashing
// until Close is called, so it is safe to call Find, Insert, and Remove
// (including removing the entry last returned by Next) while it is
// outstanding.
func (d *Dict[K, V]) SafeIterator() *Iterator[K, V] {
	it := &Iterator[K, V]{d: d, safe: true, table: 0, index: -1}
	it.liveNode = d.liveIterators.PushBack(it)
	return it
}

// UnsafeIterator returns an Iterator that does not pause rehashing. The
// caller must not add or remove entries while it is outstanding; doing so
// causes a panic, when invariants checking is on, from the next Next call
// that moves on to a new bucket or from Close, once either notices the
// dictionary's fingerprint changed underneath it. Only Next-returned
// entries may have their Value mutated in place via SetValue.
func (d *Dict[K, V]) UnsafeIterator() *Iterator[K, V] {
	return &Iterator[K, V]{d: d, safe: false, table: 0, index: -1}
}

// fingerprint hashes together every field that changes shape when the
// dictionary is structurally mutated (bucket slice identity, mask, used
// count, rehash cursor) for both tables. It exists purely for the
// unsafe-mutation check below and has no relation to the hash function
// used for keys.
func (d *Dict[K, V]) fingerprint() uint64 {
	var h uint64 = 14695981039346656037 // FNV-1a offset basis
	mix := func(x uint64) {
		h ^= x
		h *= 1099511628211 // FNV-1a prime
	}
	for i := range d.tables {
		t := &d.tables[i]
		mix(uint64(len(t.buckets)))
		mix(t.mask)
		mix(uint64(t.used))
	}
	mix(uint64(d.rehashCursor))
	return h
}

// Next advances the iterator and returns the next entry, or nil once the
// walk is exhausted.
func (it *Iterator[K, V]) Next() *Entry[K, V] {
	for {
		if it.current == nil {
			if !it.started {
				it.started = true
				it.fingerprint = it.d.fingerprint()
			} else if !it.safe && invariants {
				if it.d.fingerprint() != it.fingerprint {
					panic("dict: dictionary mutated during unsafe iteration")
				}
			}

			t := &it.d.tables[it.table]
			if it.index == -1 {
				it.index = 0
			}
			for uint64(it.index) >= t.size() {
				if it.table == 0 && it.d.Rehashing() {
					it.table = 1
					it.index = 0
					t = &it.d.tables[it.table]
					continue
				}
				return nil
			}
			it.current = t.buckets[it.index]
			it.index++
			if it.current == nil {
				continue
			}
		}

		e := it.current
		it.current = e.next
		return e
	}
}

// Close releases resources held by the iterator. On a SafeIterator it
// re-enables background rehashing if this was the last outstanding one. On
// an UnsafeIterator it checks the fingerprint one final time, gated by
// invariants: a mismatch here is a fatal programming error even if the
// caller never called Next again after mutating, matching
// dictReleaseIterator's assert at release. Close is idempotent.
func (it *Iterator[K, V]) Close() {
	if it.closed {
		return
	}
	it.closed = true

	if it.safe {
		if it.liveNode != nil {
			it.d.liveIterators.Remove(it.liveNode)
			it.liveNode = nil
		}
		return
	}
	if invariants && it.started && it.d.fingerprint() != it.fingerprint {
		panic("dict: dictionary mutated during unsafe iteration")
	}
}
