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

// Option configures a Set at construction time.
type Option interface {
	apply(s *Set)
}

type maxEntriesPackedOption struct{ n int }

func (o maxEntriesPackedOption) apply(s *Set) { s.maxEntriesPacked = o.n }

// WithMaxEntriesPacked overrides DefaultMaxEntriesPacked, the element count
// above which a packed Set promotes to the skiplist encoding.
func WithMaxEntriesPacked(n int) Option {
	return maxEntriesPackedOption{n}
}

type maxValuePackedOption struct{ n int }

func (o maxValuePackedOption) apply(s *Set) { s.maxValuePacked = o.n }

// WithMaxValuePacked overrides DefaultMaxValuePacked, the member byte
// length above which a packed Set promotes to the skiplist encoding.
func WithMaxValuePacked(n int) Option {
	return maxValuePackedOption{n}
}
