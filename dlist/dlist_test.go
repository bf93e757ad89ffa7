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

package dlist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func collect[T any](l *List[T], dir Direction) []T {
	var out []T
	it := l.Iterator(dir)
	for n := it.Next(); n != nil; n = it.Next() {
		out = append(out, n.Value())
	}
	return out
}

func TestPushAndIterate(t *testing.T) {
	l := New[int](Callbacks[int]{})
	l.PushBack(1)
	l.PushBack(2)
	l.PushFront(0)
	require.Equal(t, 3, l.Len())
	require.Equal(t, []int{0, 1, 2}, collect(l, FromHead))
	require.Equal(t, []int{2, 1, 0}, collect(l, FromTail))
}

func TestRemove(t *testing.T) {
	var freed []int
	l := New[int](Callbacks[int]{Free: func(v int) { freed = append(freed, v) }})
	a := l.PushBack(1)
	b := l.PushBack(2)
	c := l.PushBack(3)
	l.Remove(b)
	require.Equal(t, []int{1, 3}, collect(l, FromHead))
	require.Equal(t, []int{2}, freed)

	l.Remove(a)
	require.Equal(t, []int{3}, collect(l, FromHead))
	l.Remove(c)
	require.Equal(t, 0, l.Len())
	require.Nil(t, l.Front())
	require.Nil(t, l.Back())
}

func TestInsertBeforeAfter(t *testing.T) {
	l := New[string](Callbacks[string]{})
	mid := l.PushBack("b")
	l.InsertBefore(mid, "a")
	l.InsertAfter(mid, "c")
	require.Equal(t, []string{"a", "b", "c"}, collect(l, FromHead))
}

func TestFind(t *testing.T) {
	l := New[int](Callbacks[int]{Match: func(v, key int) bool { return v == key }})
	l.PushBack(10)
	l.PushBack(20)
	l.PushBack(30)
	n := l.Find(20)
	require.NotNil(t, n)
	require.Equal(t, 20, n.Value())
	require.Nil(t, l.Find(99))
}

func TestIndex(t *testing.T) {
	l := New[int](Callbacks[int]{})
	for i := 0; i < 5; i++ {
		l.PushBack(i)
	}
	require.Equal(t, 0, l.Index(0).Value())
	require.Equal(t, 4, l.Index(-1).Value())
	require.Equal(t, 3, l.Index(-2).Value())
	require.Nil(t, l.Index(10))
}

func TestRotate(t *testing.T) {
	l := New[int](Callbacks[int]{})
	for i := 1; i <= 4; i++ {
		l.PushBack(i)
	}
	l.Rotate()
	require.Equal(t, []int{4, 1, 2, 3}, collect(l, FromHead))
}

func TestClone(t *testing.T) {
	type box struct{ v int }
	l := New[*box](Callbacks[*box]{Dup: func(v *box) *box { b := *v; return &b }})
	l.PushBack(&box{1})
	l.PushBack(&box{2})

	clone := l.Clone()
	clone.Front().Value().v = 100
	require.Equal(t, 1, l.Front().Value().v)
	require.Equal(t, 100, clone.Front().Value().v)
}
