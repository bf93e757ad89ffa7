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

// Package dlist is a generic doubly linked list. It exists to serve as
// plumbing for the rest of the core package family (dict's outstanding
// safe-iterator bookkeeping, zset's cardinality-sorted aggregation inputs)
// rather than as a general-purpose container in its own right.
package dlist

// Node is a single element of a List. The zero Node is not meaningful on
// its own; Nodes are only produced by List's mutators.
type Node[T any] struct {
	prev, next *Node[T]
	value      T
}

// Value returns the payload stored at n.
func (n *Node[T]) Value() T {
	return n.value
}

// Next returns the node following n, or nil if n is the tail.
func (n *Node[T]) Next() *Node[T] {
	return n.next
}

// Prev returns the node preceding n, or nil if n is the head.
func (n *Node[T]) Prev() *Node[T] {
	return n.prev
}

// Callbacks bundles the owner-supplied operations a List needs to manage
// values it does not otherwise understand, mirroring adlist.h's dup/free/
// match function pointers. Any field may be left nil; List only invokes a
// callback when the corresponding method is called.
type Callbacks[T any] struct {
	// Dup returns a copy of v. Used by Clone.
	Dup func(v T) T
	// Free is called when a node holding v is removed from the list. Used
	// to release external resources (e.g. reference counts) a value holds.
	Free func(v T)
	// Match reports whether v equals key. Used by Find.
	Match func(v T, key T) bool
}

// List is a generic doubly linked sequence with O(1) access to the head and
// tail and O(1) push/pop at either end.
type List[T any] struct {
	head, tail *Node[T]
	len        int
	callbacks  Callbacks[T]
}

// New creates an empty list. The supplied callbacks are optional; a zero
// Callbacks value is valid and simply disables Clone/Find/Free hooks.
func New[T any](callbacks Callbacks[T]) *List[T] {
	return &List[T]{callbacks: callbacks}
}

// Len returns the number of nodes in the list.
func (l *List[T]) Len() int {
	return l.len
}

// Front returns the head node, or nil if the list is empty.
func (l *List[T]) Front() *Node[T] {
	return l.head
}

// Back returns the tail node, or nil if the list is empty.
func (l *List[T]) Back() *Node[T] {
	return l.tail
}

// PushFront inserts value at the head of the list and returns its node.
func (l *List[T]) PushFront(value T) *Node[T] {
	n := &Node[T]{value: value}
	if l.head == nil {
		l.head, l.tail = n, n
	} else {
		n.next = l.head
		l.head.prev = n
		l.head = n
	}
	l.len++
	return n
}

// PushBack inserts value at the tail of the list and returns its node.
func (l *List[T]) PushBack(value T) *Node[T] {
	n := &Node[T]{value: value}
	if l.tail == nil {
		l.head, l.tail = n, n
	} else {
		n.prev = l.tail
		l.tail.next = n
		l.tail = n
	}
	l.len++
	return n
}

// InsertBefore inserts value immediately before old and returns its node.
// old must belong to l.
func (l *List[T]) InsertBefore(old *Node[T], value T) *Node[T] {
	if old == l.head {
		return l.PushFront(value)
	}
	n := &Node[T]{value: value, prev: old.prev, next: old}
	old.prev.next = n
	old.prev = n
	l.len++
	return n
}

// InsertAfter inserts value immediately after old and returns its node. old
// must belong to l.
func (l *List[T]) InsertAfter(old *Node[T], value T) *Node[T] {
	if old == l.tail {
		return l.PushBack(value)
	}
	n := &Node[T]{value: value, prev: old, next: old.next}
	old.next.prev = n
	old.next = n
	l.len++
	return n
}

// Remove unlinks n from the list and invokes the Free callback, if set, on
// its value. n must belong to l.
func (l *List[T]) Remove(n *Node[T]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	l.len--
	if l.callbacks.Free != nil {
		l.callbacks.Free(n.value)
	}
	n.prev, n.next = nil, nil
}

// Find returns the first node whose value matches key according to the
// Match callback. It returns nil if no callback is configured or no node
// matches.
func (l *List[T]) Find(key T) *Node[T] {
	if l.callbacks.Match == nil {
		return nil
	}
	for n := l.head; n != nil; n = n.next {
		if l.callbacks.Match(n.value, key) {
			return n
		}
	}
	return nil
}

// Index returns the node at the given 0-based index, walking from the head
// for non-negative indices and from the tail for negative ones (-1 is the
// last node), or nil if index is out of range.
func (l *List[T]) Index(index int) *Node[T] {
	if index >= 0 {
		n := l.head
		for ; n != nil && index > 0; index-- {
			n = n.next
		}
		return n
	}
	n := l.tail
	for index = -index - 1; n != nil && index > 0; index-- {
		n = n.prev
	}
	return n
}

// Rotate moves the tail element to the head of the list.
func (l *List[T]) Rotate() {
	if l.len <= 1 {
		return
	}
	tail := l.tail
	l.tail = tail.prev
	l.tail.next = nil

	tail.prev = nil
	tail.next = l.head
	l.head.prev = tail
	l.head = tail
}

// Clone returns a deep copy of l. If Dup is set it is used to copy each
// value; otherwise values are copied by assignment.
func (l *List[T]) Clone() *List[T] {
	out := New[T](l.callbacks)
	for n := l.head; n != nil; n = n.next {
		v := n.value
		if l.callbacks.Dup != nil {
			v = l.callbacks.Dup(v)
		}
		out.PushBack(v)
	}
	return out
}

// Direction selects the order in which an Iterator walks a List.
type Direction int

const (
	// FromHead iterates from the head towards the tail.
	FromHead Direction = iota
	// FromTail iterates from the tail towards the head.
	FromTail
)

// Iterator walks a List in a fixed direction. It is not safe for concurrent
// use, and the list must not be mutated around the current node while an
// Iterator is in use beyond removing the node last returned by Next.
type Iterator[T any] struct {
	next      *Node[T]
	direction Direction
}

// Iterator returns a new Iterator over l starting at the appropriate end
// for dir.
func (l *List[T]) Iterator(dir Direction) *Iterator[T] {
	it := &Iterator[T]{direction: dir}
	if dir == FromHead {
		it.next = l.head
	} else {
		it.next = l.tail
	}
	return it
}

// Next returns the next node in the iteration order, or nil once exhausted.
func (it *Iterator[T]) Next() *Node[T] {
	n := it.next
	if n == nil {
		return nil
	}
	if it.direction == FromHead {
		it.next = n.next
	} else {
		it.next = n.prev
	}
	return n
}
