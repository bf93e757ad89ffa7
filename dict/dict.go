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

// Package dict is a hash table with chained collision resolution and
// incremental rehashing. Unlike a Swiss table, it never probes: every
// bucket is a singly linked chain, so rehashing a bucket is a pure
// append-to-new-table operation that can be stopped and resumed between any
// two buckets without disturbing entries that have not moved yet.
//
// A Dict holds up to two tables at once, `primary` and `secondary`. Growth
// (or an explicit Resize) allocates `secondary` and sets the dictionary into
// a rehashing state; every subsequent lookup, insert, and delete migrates one
// bucket from `primary` into `secondary` before doing its own work, so the
// cost of rehashing is amortized across ordinary traffic rather than paid in
// one long pause. A Dict is NOT goroutine-safe.
package dict

import (
	"errors"
	"time"

	"golang.org/x/sys/cpu"

	"github.com/quiverkv/core/dlist"
)

// Sentinel errors returned by Dict operations that can fail in an expected
// way. Programmer errors (iterator misuse, negative capacities) panic
// instead; see the package-level invariants flag.
var (
	// ErrDuplicate is returned by Insert when the key already exists.
	ErrDuplicate = errors.New("dict: key already exists")
	// ErrNotFound is returned by Remove when the key is absent.
	ErrNotFound = errors.New("dict: key not found")
	// ErrInvalidInput is the error kind for malformed arguments. No Dict
	// method returns it: WithInitialCapacity takes an unsigned capacity, so a
	// negative one cannot be passed.
	ErrInvalidInput = errors.New("dict: invalid input")
)

// invariants gates expensive self-checks; flipped on in this package's own
// tests but left off otherwise so production builds pay nothing for it.
var invariants = false

const (
	initialCapacity = 4
	// defaultLoadFactorHard is the used/size ratio above which expansion is
	// forced even when resizing has been globally disabled.
	defaultLoadFactorHard = 5
)

// Entry is one key/value pair stored in a Dict. Entries returned by Find,
// InsertRaw, and the iterators alias the Dict's internal storage: mutating
// Value through SetValue is safe, but an Entry must not be retained past the
// next structural mutation of its Dict (insert that triggers a resize,
// Remove, Clear).
type Entry[K any, V any] struct {
	key   K
	value V
	next  *Entry[K, V]
}

// Key returns the entry's key.
func (e *Entry[K, V]) Key() K { return e.key }

// Value returns the entry's current value.
func (e *Entry[K, V]) Value() V { return e.value }

// SetValue overwrites the entry's value in place.
func (e *Entry[K, V]) SetValue(v V) { e.value = v }

// table is one generation of buckets. Two of these live side by side in a
// Dict during incremental rehashing; padding them to separate cache lines
// keeps a lookup against the (hot) primary table from false-sharing with
// bookkeeping writes against the (cold, mid-rehash) secondary table.
type table[K any, V any] struct {
	_       cpu.CacheLinePad
	buckets []*Entry[K, V]
	mask    uint64
	used    int
	_       cpu.CacheLinePad
}

func (t *table[K, V]) size() uint64 {
	if t.buckets == nil {
		return 0
	}
	return t.mask + 1
}

// Dict is a hash table mapping keys of type K to values of type V. The
// zero value is not usable; construct one with New.
type Dict[K any, V any] struct {
	tables [2]table[K, V]
	// rehashCursor is the index of the next primary bucket to migrate, or -1
	// if the dictionary is not currently rehashing.
	rehashCursor int
	// liveIterators holds one entry per outstanding SafeIterator. While it is
	// non-empty, the automatic rehash-step piggybacking on Find/Insert/Remove
	// is suppressed so a safe iterator's mid-rehash snapshot stays coherent;
	// each SafeIterator keeps its own node so Close can unlink itself in O(1).
	liveIterators *dlist.List[*Iterator[K, V]]

	hash  func(key K) uint64
	equal func(a, b K) bool

	allocator Allocator[K, V]

	resizeEnabled  bool
	loadFactorHard int

	rng uint64 // xorshift64 state for RandomEntry and level-free choices
}

// New constructs an empty Dict. hash and equal are mandatory: Go generics
// have no runtime reflection-based hashing the way the source's void* keys
// did, so the type descriptor the source passes per-dictionary is supplied
// here as two plain functions instead of a vtable struct.
func New[K any, V any](hash func(K) uint64, equal func(a, b K) bool, opts ...Option[K, V]) *Dict[K, V] {
	d := &Dict[K, V]{
		rehashCursor:   -1,
		liveIterators:  dlist.New[*Iterator[K, V]](dlist.Callbacks[*Iterator[K, V]]{}),
		hash:           hash,
		equal:          equal,
		allocator:      defaultAllocator[K, V]{},
		resizeEnabled:  true,
		loadFactorHard: defaultLoadFactorHard,
		rng:            0x9e3779b97f4a7c15,
	}
	for _, o := range opts {
		o.apply(d)
	}
	return d
}

// Len returns the total number of entries across both tables.
func (d *Dict[K, V]) Len() int {
	return d.tables[0].used + d.tables[1].used
}

// Rehashing reports whether the dictionary currently owns a secondary table.
func (d *Dict[K, V]) Rehashing() bool {
	return d.rehashCursor != -1
}

// Clear removes every entry and releases both tables, returning their
// bucket slices through the configured Allocator.
func (d *Dict[K, V]) Clear() {
	d.freeTable(&d.tables[0])
	d.freeTable(&d.tables[1])
	d.tables[0] = table[K, V]{}
	d.tables[1] = table[K, V]{}
	d.rehashCursor = -1
}

// Close releases the bucket slices backing both tables through the
// configured Allocator. A Dict using the default allocator need not call
// Close; it exists for an Allocator that manages memory Go's GC does not
// own, mirroring the teacher's Map.Close contract.
func (d *Dict[K, V]) Close() {
	d.freeTable(&d.tables[0])
	d.freeTable(&d.tables[1])
}

func (d *Dict[K, V]) freeTable(t *table[K, V]) {
	if t.buckets != nil {
		d.allocator.FreeBuckets(t.buckets)
	}
}

// rehashStep migrates every entry in one primary bucket into the secondary
// table and advances the cursor. It is a no-op if the dictionary is not
// rehashing. It never runs while a safe iterator is outstanding.
func (d *Dict[K, V]) rehashStep() {
	if d.rehashCursor == -1 || d.liveIterators.Len() > 0 {
		return
	}
	d.rehashN(1)
}

// rehashN performs up to n rehash steps, stopping early once rehashing
// completes. It returns the number of steps actually performed.
func (d *Dict[K, V]) rehashN(n int) int {
	performed := 0
	for ; n > 0; n-- {
		if d.rehashCursor == -1 {
			return performed
		}
		primary, secondary := &d.tables[0], &d.tables[1]
		if primary.used == 0 {
			// Migration finished: the secondary table becomes primary, and
			// the now-empty former primary's buckets go back to the
			// allocator.
			d.allocator.FreeBuckets(primary.buckets)
			d.tables[0] = d.tables[1]
			d.tables[1] = table[K, V]{}
			d.rehashCursor = -1
			return performed
		}

		for primary.buckets[d.rehashCursor] == nil {
			d.rehashCursor++
		}

		e := primary.buckets[d.rehashCursor]
		for e != nil {
			next := e.next
			idx := d.hash(e.key) & secondary.mask
			e.next = secondary.buckets[idx]
			secondary.buckets[idx] = e
			primary.used--
			secondary.used++
			e = next
		}
		primary.buckets[d.rehashCursor] = nil
		d.rehashCursor++
		performed++
		if primary.used == 0 {
			// That was the last occupied bucket: finish the migration now
			// rather than leave the cursor past the end of primary.
			d.allocator.FreeBuckets(primary.buckets)
			d.tables[0] = d.tables[1]
			d.tables[1] = table[K, V]{}
			d.rehashCursor = -1
			return performed
		}
	}
	return performed
}

// RehashStep performs a single bounded rehash step, exactly like the
// piggy-backed step Find/Insert/Remove perform automatically, except it
// runs even while a safe iterator is outstanding. Callers that need to
// drain a rehash deterministically (e.g. before taking a safe iterator for a
// long scan) can loop on this until it returns false.
func (d *Dict[K, V]) RehashStep() (more bool) {
	d.rehashN(1)
	return d.rehashCursor != -1
}

// RehashMilliseconds performs rehash steps in batches of 100 until either
// rehashing completes or budget has elapsed, whichever comes first. It
// returns the number of buckets migrated. Callers use this to cooperate
// with an external soft deadline (e.g. not blocking an event loop tick).
func (d *Dict[K, V]) RehashMilliseconds(budget time.Duration) int {
	deadline := time.Now().Add(budget)
	total := 0
	for d.rehashCursor != -1 {
		total += d.rehashN(100)
		if time.Now().After(deadline) {
			break
		}
	}
	return total
}

// expandIfNeeded grows the dictionary when load crosses the configured
// thresholds. It mirrors _dictExpandIfNeeded: an empty dictionary always
// gets its initial table, and a non-empty one grows to 2x its used count
// once the load factor reaches 1, or unconditionally once it exceeds
// loadFactorHard (the copy-on-write-friendly override).
func (d *Dict[K, V]) expandIfNeeded() {
	if d.Rehashing() {
		return
	}
	if d.tables[0].size() == 0 {
		d.expandTo(initialCapacity)
		return
	}
	used, size := uint64(d.tables[0].used), d.tables[0].size()
	if used >= size && (d.resizeEnabled || used/size > uint64(d.loadFactorHard)) {
		d.expandTo(used * 2)
	}
}

// expandTo begins growing (or, from Resize, shrinking) the dictionary to the
// smallest power of two >= size. If the primary table is empty this just
// allocates it directly; otherwise it allocates the secondary table and
// enters the rehashing state.
func (d *Dict[K, V]) expandTo(size uint64) {
	target := nextPowerOfTwo(size)
	if target < initialCapacity {
		target = initialCapacity
	}

	n := table[K, V]{buckets: d.allocator.AllocBuckets(int(target)), mask: target - 1}
	if d.tables[0].buckets == nil {
		d.tables[0] = n
		return
	}
	d.tables[1] = n
	d.rehashCursor = 0
}

// Resize shrinks the dictionary to the smallest capacity that holds its
// current contents at a load factor near 1, subject to the same minimum
// capacity New starts with. It is a no-op while already rehashing.
func (d *Dict[K, V]) Resize() {
	if d.Rehashing() {
		return
	}
	minimal := uint64(d.tables[0].used)
	if minimal < initialCapacity {
		minimal = initialCapacity
	}
	d.expandTo(minimal)
}

func nextPowerOfTwo(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// find locates the entry for key, reporting which table it lives in (0 or
// 1) alongside the entry and its predecessor in the chain (nil if it is the
// bucket head). It does not trigger a rehash step; callers that want the
// piggy-backed step call rehashStep first.
func (d *Dict[K, V]) find(key K) (e *Entry[K, V], prev *Entry[K, V], tableIdx int) {
	if d.tables[0].size() == 0 {
		return nil, nil, 0
	}
	h := d.hash(key)
	for ti := 0; ti <= 1; ti++ {
		t := &d.tables[ti]
		if t.size() == 0 {
			break
		}
		idx := h & t.mask
		var pv *Entry[K, V]
		for cur := t.buckets[idx]; cur != nil; cur = cur.next {
			if d.equal(cur.key, key) {
				return cur, pv, ti
			}
			pv = cur
		}
		if !d.Rehashing() {
			break
		}
	}
	return nil, nil, 0
}

// Find returns the entry for key, if present.
func (d *Dict[K, V]) Find(key K) (*Entry[K, V], bool) {
	d.rehashStep()
	e, _, _ := d.find(key)
	return e, e != nil
}

// Get is a convenience wrapper over Find returning just the value.
func (d *Dict[K, V]) Get(key K) (value V, ok bool) {
	e, ok := d.Find(key)
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// InsertRaw inserts key with a zero value and returns the new entry for the
// caller to populate, or nil if key is already present. This mirrors
// dictAddRaw, used when constructing the value is cheaper done in place
// (e.g. zset's hash table stores a pointer into a skip-list node that does
// not exist until after the raw entry is reserved).
func (d *Dict[K, V]) InsertRaw(key K) *Entry[K, V] {
	d.rehashStep()
	if e, _, _ := d.find(key); e != nil {
		return nil
	}
	d.expandIfNeeded()

	t := &d.tables[0]
	if d.Rehashing() {
		t = &d.tables[1]
	}
	idx := d.hash(key) & t.mask
	e := &Entry[K, V]{key: key, next: t.buckets[idx]}
	t.buckets[idx] = e
	t.used++
	d.checkInvariants()
	return e
}

// Insert adds key/value, failing with ErrDuplicate if key is already
// present.
func (d *Dict[K, V]) Insert(key K, value V) error {
	e := d.InsertRaw(key)
	if e == nil {
		return ErrDuplicate
	}
	e.value = value
	return nil
}

// Replace inserts key/value, overwriting any existing value. It reports
// true if this created a new key (dictReplace's return value in the
// source).
func (d *Dict[K, V]) Replace(key K, value V) (addedFresh bool) {
	if e := d.InsertRaw(key); e != nil {
		e.value = value
		return true
	}
	e, _, _ := d.find(key)
	e.value = value
	return false
}

// Remove deletes the entry for key, reporting ErrNotFound if absent.
func (d *Dict[K, V]) Remove(key K) error {
	d.rehashStep()
	if d.tables[0].size() == 0 {
		return ErrNotFound
	}
	h := d.hash(key)
	for ti := 0; ti <= 1; ti++ {
		t := &d.tables[ti]
		if t.size() == 0 {
			break
		}
		idx := h & t.mask
		var prev *Entry[K, V]
		for cur := t.buckets[idx]; cur != nil; cur = cur.next {
			if d.equal(cur.key, key) {
				if prev != nil {
					prev.next = cur.next
				} else {
					t.buckets[idx] = cur.next
				}
				t.used--
				d.checkInvariants()
				return nil
			}
			prev = cur
		}
		if !d.Rehashing() {
			break
		}
	}
	return ErrNotFound
}

// RandomEntry returns an approximately uniformly chosen entry, or false if
// the dictionary is empty. It first picks a uniformly random non-empty
// bucket (across both tables while rehashing), then a uniformly random
// entry within that bucket's chain — matching dictGetRandomKey's two-stage
// approach, which is only approximately uniform overall because buckets
// with longer chains are not weighted down.
func (d *Dict[K, V]) RandomEntry() (*Entry[K, V], bool) {
	if d.Len() == 0 {
		return nil, false
	}
	d.rehashStep()

	var bucket *Entry[K, V]
	if d.Rehashing() {
		for bucket == nil {
			total := d.tables[0].size() + d.tables[1].size()
			h := d.nextRand() % total
			if h >= d.tables[0].size() {
				bucket = d.tables[1].buckets[h-d.tables[0].size()]
			} else {
				bucket = d.tables[0].buckets[h]
			}
		}
	} else {
		t := &d.tables[0]
		for bucket == nil {
			bucket = t.buckets[d.nextRand()&t.mask]
		}
	}

	length := 0
	for e := bucket; e != nil; e = e.next {
		length++
	}
	skip := int(d.nextRand() % uint64(length))
	e := bucket
	for ; skip > 0; skip-- {
		e = e.next
	}
	return e, true
}

// nextRand is a small xorshift64 generator; RandomEntry does not need a
// cryptographic or even a statistically rigorous source, just one that does
// not allocate and does not depend on math/rand's global lock.
func (d *Dict[K, V]) nextRand() uint64 {
	x := d.rng
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	d.rng = x
	return x
}

// ScanFunc is called once per entry visited by Scan.
type ScanFunc[K any, V any] func(e *Entry[K, V])

// Scan performs one step of a stateless cursor-based iteration over every
// entry in the dictionary, following dictScan's reversed-bit cursor walk:
// every entry present for the full duration of a 0-to-0 scan is visited at
// least once, even across intervening resizes, though some entries may be
// visited more than once. Start with cursor 0; stop when the returned
// cursor is 0.
func (d *Dict[K, V]) Scan(cursor uint64, fn ScanFunc[K, V]) (next uint64) {
	if d.Len() == 0 {
		return 0
	}
	if !d.Rehashing() {
		t := &d.tables[0]
		emitBucket(t.buckets[cursor&t.mask], fn)
		cursor |= ^t.mask
		cursor = reverseBits(cursor)
		cursor++
		return reverseBits(cursor)
	}

	small, big := &d.tables[0], &d.tables[1]
	if small.size() > big.size() {
		small, big = big, small
	}
	m0, m1 := small.mask, big.mask

	emitBucket(small.buckets[cursor&m0], fn)
	for {
		emitBucket(big.buckets[cursor&m1], fn)
		cursor = ((cursor | m0) + 1) &^ m0 | (cursor & m0)
		if cursor&(m0^m1) == 0 {
			break
		}
	}

	cursor |= ^m0
	cursor = reverseBits(cursor)
	cursor++
	return reverseBits(cursor)
}

func emitBucket[K any, V any](head *Entry[K, V], fn ScanFunc[K, V]) {
	for e := head; e != nil; e = e.next {
		fn(e)
	}
}

// reverseBits reverses the bits of a full 64-bit word, used by Scan to walk
// the cursor from the high-order bits down so growth and shrinkage of the
// table never cause an in-progress scan to skip a live element.
func reverseBits(v uint64) uint64 {
	var r uint64
	for i := 0; i < 64; i++ {
		r = (r << 1) | (v & 1)
		v >>= 1
	}
	return r
}

// checkInvariants walks both tables and panics if their bucket chains
// disagree with the bookkeeping counters or the rehash cursor is out of
// range. It costs a full pass over the dictionary, so it is only called
// from tests with invariants set to true.
func (d *Dict[K, V]) checkInvariants() {
	if !invariants {
		return
	}
	for i := range d.tables {
		t := &d.tables[i]
		if t.buckets == nil {
			continue
		}
		counted := 0
		for idx, head := range t.buckets {
			for e := head; e != nil; e = e.next {
				if d.hash(e.key)&t.mask != uint64(idx) {
					panic("dict: entry stored in wrong bucket")
				}
				counted++
			}
		}
		if counted != t.used {
			panic("dict: used counter disagrees with bucket contents")
		}
	}
	if d.Rehashing() && uint64(d.rehashCursor) >= d.tables[0].size() {
		panic("dict: rehash cursor out of range")
	}
	if !d.Rehashing() && d.tables[1].buckets != nil {
		panic("dict: secondary table present while not rehashing")
	}
}
