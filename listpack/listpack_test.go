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

package listpack

import (
	"encoding/binary"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPushBackAndGet(t *testing.T) {
	l := New()
	l.PushBack([]byte("hello"))
	l.PushBack([]byte("42"))
	l.PushBack([]byte("world"))

	require.Equal(t, 3, l.Len())

	e, err := l.Get(0)
	require.NoError(t, err)
	require.False(t, e.IsInt)
	require.Equal(t, []byte("hello"), e.Bytes)

	e, err = l.Get(1)
	require.NoError(t, err)
	require.True(t, e.IsInt)
	require.Equal(t, int64(42), e.Int)

	e, err = l.Get(2)
	require.NoError(t, err)
	require.Equal(t, []byte("world"), e.Bytes)

	_, err = l.Get(3)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestPushFront(t *testing.T) {
	l := New()
	l.PushFront([]byte("c"))
	l.PushFront([]byte("b"))
	l.PushFront([]byte("a"))

	require.Equal(t, 3, l.Len())
	for i, want := range []string{"a", "b", "c"} {
		e, err := l.Get(i)
		require.NoError(t, err)
		require.Equal(t, want, string(e.Bytes))
	}
}

func TestIntegerEncodingRoundTrip(t *testing.T) {
	values := []int64{
		0, 1, -1, 12, 13, -1,
		127, 128, -128, -129,
		32767, 32768, -32768, -32769,
		8388607, 8388608, -8388608, -8388609,
		2147483647, 2147483648, -2147483648, -2147483649,
		9223372036854775807, -9223372036854775808,
	}
	l := New()
	for _, v := range values {
		l.PushBack([]byte(strconv.FormatInt(v, 10)))
	}
	require.Equal(t, len(values), l.Len())
	for i, want := range values {
		e, err := l.Get(i)
		require.NoError(t, err)
		require.Truef(t, e.IsInt, "value %d should be stored as an integer", want)
		require.Equal(t, want, e.Int)
	}
}

func TestNonCanonicalIntegerStringsStayStrings(t *testing.T) {
	// zipTryEncoding rejects any decimal string that would not format back
	// to the identical bytes, so these are stored verbatim.
	cases := []string{"007", "+5", " 5", "5 ", "5.0", "", "-0", "0x1"}
	l := New()
	for _, s := range cases {
		l.PushBack([]byte(s))
	}
	for i, s := range cases {
		e, err := l.Get(i)
		require.NoError(t, err)
		require.False(t, e.IsInt, "%q should not be treated as canonical", s)
		require.Equal(t, s, string(e.Bytes))
	}
}

func TestStringLengthEncodings(t *testing.T) {
	l := New()
	short := strings.Repeat("a", 63)   // fits str06B (6 bits, max 63)
	medium := strings.Repeat("b", 300) // needs str14B
	long := strings.Repeat("c", 20000) // needs str32B, big-endian length quirk

	l.PushBack([]byte(short))
	l.PushBack([]byte(medium))
	l.PushBack([]byte(long))

	e, err := l.Get(0)
	require.NoError(t, err)
	require.Equal(t, short, string(e.Bytes))

	e, err = l.Get(1)
	require.NoError(t, err)
	require.Equal(t, medium, string(e.Bytes))

	e, err = l.Get(2)
	require.NoError(t, err)
	require.Equal(t, long, string(e.Bytes))
}

func TestPrevLenBoundary(t *testing.T) {
	// An entry large enough to push the following entry's prevlen field past
	// the 254-byte bigPrevLen threshold forces that field to widen from one
	// byte to five, which is exactly what rebuild must get right on every
	// mutation since there is no cascade to catch a mistake incrementally.
	l := New()
	l.PushBack([]byte(strings.Repeat("x", 253)))
	l.PushBack([]byte("next"))
	l.PushBack([]byte(strings.Repeat("y", 300)))

	require.Equal(t, 3, l.Len())
	e, err := l.Get(1)
	require.NoError(t, err)
	require.Equal(t, "next", string(e.Bytes))
	e, err = l.Get(2)
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("y", 300), string(e.Bytes))
}

func TestInsertAtIndex(t *testing.T) {
	l := New()
	l.PushBack([]byte("a"))
	l.PushBack([]byte("c"))

	require.NoError(t, l.Insert(1, []byte("b")))
	require.Equal(t, 3, l.Len())
	for i, want := range []string{"a", "b", "c"} {
		e, err := l.Get(i)
		require.NoError(t, err)
		require.Equal(t, want, string(e.Bytes))
	}

	require.NoError(t, l.Insert(3, []byte("d")))
	e, err := l.Get(3)
	require.NoError(t, err)
	require.Equal(t, "d", string(e.Bytes))

	require.ErrorIs(t, l.Insert(-1, []byte("x")), ErrIndexOutOfRange)
	require.ErrorIs(t, l.Insert(100, []byte("x")), ErrIndexOutOfRange)
}

func TestDelete(t *testing.T) {
	l := New()
	for _, v := range []string{"a", "b", "c", "d"} {
		l.PushBack([]byte(v))
	}

	require.NoError(t, l.Delete(1))
	require.Equal(t, 3, l.Len())
	for i, want := range []string{"a", "c", "d"} {
		e, err := l.Get(i)
		require.NoError(t, err)
		require.Equal(t, want, string(e.Bytes))
	}

	require.ErrorIs(t, l.Delete(-1), ErrIndexOutOfRange)
	require.ErrorIs(t, l.Delete(10), ErrIndexOutOfRange)
}

func TestDeleteRange(t *testing.T) {
	l := New()
	for _, v := range []string{"a", "b", "c", "d", "e"} {
		l.PushBack([]byte(v))
	}

	require.NoError(t, l.DeleteRange(1, 2))
	require.Equal(t, 3, l.Len())
	for i, want := range []string{"a", "d", "e"} {
		e, err := l.Get(i)
		require.NoError(t, err)
		require.Equal(t, want, string(e.Bytes))
	}

	// A count past the end is truncated rather than erroring.
	require.NoError(t, l.DeleteRange(1, 100))
	require.Equal(t, 1, l.Len())

	require.ErrorIs(t, l.DeleteRange(-1, 1), ErrIndexOutOfRange)
	require.ErrorIs(t, l.DeleteRange(0, -1), ErrIndexOutOfRange)
}

func TestNextAndPrev(t *testing.T) {
	l := New()
	for _, v := range []string{"a", "b", "c"} {
		l.PushBack([]byte(v))
	}

	idx, ok := l.Next(0)
	require.True(t, ok)
	require.Equal(t, 1, idx)

	_, ok = l.Next(2)
	require.False(t, ok, "Next from the last entry has nowhere to go")

	idx, ok = l.Prev(2)
	require.True(t, ok)
	require.Equal(t, 1, idx)

	_, ok = l.Prev(0)
	require.False(t, ok, "Prev from the first entry has nowhere to go")

	idx, ok = l.Prev(l.Len())
	require.True(t, ok, "Prev of the one-past-the-end cursor returns the tail")
	require.Equal(t, 2, idx)

	_, ok = l.Prev(New().Len())
	require.False(t, ok, "an empty list has no tail to return")
}

func TestCompare(t *testing.T) {
	l := New()
	l.PushBack([]byte("hello"))
	l.PushBack([]byte("1024"))

	require.True(t, l.Compare(0, []byte("hello")))
	require.False(t, l.Compare(0, []byte("hella")))
	require.True(t, l.Compare(1, []byte("1024")))
	require.False(t, l.Compare(1, []byte("1025")))
	require.False(t, l.Compare(1, []byte("not-a-number")))
}

func TestFind(t *testing.T) {
	l := New()
	l.PushBack([]byte("a"))
	l.PushBack([]byte("42"))
	l.PushBack([]byte("c"))

	require.Equal(t, 0, l.Find([]byte("a")))
	require.Equal(t, 1, l.Find([]byte("42")))
	require.Equal(t, 2, l.Find([]byte("c")))
	require.Equal(t, -1, l.Find([]byte("missing")))
}

func TestPopFrontAndPopBack(t *testing.T) {
	l := New()
	for _, v := range []string{"a", "b", "c"} {
		l.PushBack([]byte(v))
	}

	e, ok := l.PopFront()
	require.True(t, ok)
	require.Equal(t, "a", string(e.Bytes))
	require.Equal(t, 2, l.Len())

	e, ok = l.PopBack()
	require.True(t, ok)
	require.Equal(t, "c", string(e.Bytes))
	require.Equal(t, 1, l.Len())

	e, ok = l.PopBack()
	require.True(t, ok)
	require.Equal(t, "b", string(e.Bytes))
	require.Equal(t, 0, l.Len())

	_, ok = l.PopFront()
	require.False(t, ok)
	_, ok = l.PopBack()
	require.False(t, ok)
}

func TestBytesRoundTrip(t *testing.T) {
	l := New()
	l.PushBack([]byte("hello"))
	l.PushBack([]byte("42"))
	l.PushBack([]byte(strings.Repeat("z", 20000)))

	raw := l.Bytes()
	cp := make([]byte, len(raw))
	copy(cp, raw)

	l2, err := FromBytes(cp)
	require.NoError(t, err)
	require.Equal(t, l.Len(), l2.Len())
	for i := 0; i < l.Len(); i++ {
		want, err := l.Get(i)
		require.NoError(t, err)
		got, err := l2.Get(i)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestFromBytesRejectsMalformedBuffers(t *testing.T) {
	_, err := FromBytes([]byte{1, 2, 3})
	require.Error(t, err)

	l := New()
	l.PushBack([]byte("a"))
	raw := append([]byte(nil), l.Bytes()...)
	raw[len(raw)-1] = 0x00 // corrupt terminator
	_, err = FromBytes(raw)
	require.Error(t, err)
}

func TestEmptyList(t *testing.T) {
	l := New()
	require.Equal(t, 0, l.Len())
	_, err := l.Get(0)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	require.Equal(t, -1, l.Find([]byte("x")))
}

// TestHeaderCountSaturation exercises Len's fallback walk once the 16-bit
// header count would overflow, without paying for tens of thousands of
// real entries: it fabricates a header claiming the saturation value while
// the buffer holds only a handful of entries.
func TestHeaderCountSaturation(t *testing.T) {
	l := New()
	for _, v := range []string{"a", "b", "c"} {
		l.PushBack([]byte(v))
	}
	binary.LittleEndian.PutUint16(l.buf[8:10], countCapValue)

	require.Equal(t, 3, l.Len())
	e, err := l.Get(2)
	require.NoError(t, err)
	require.Equal(t, "c", string(e.Bytes))
}
