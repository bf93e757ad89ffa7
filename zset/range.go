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

import "github.com/quiverkv/core/skiplist"

// ScoreRange is a parsed score boundary pair, the struct zslParseRange
// would have produced from "(1.5" / "2.5"-style command arguments; parsing
// query syntax into this shape is command-layer surface and out of scope
// here.
type ScoreRange struct {
	Min, Max         float64
	MinExcl, MaxExcl bool
}

func (r ScoreRange) contains(score float64) bool {
	if r.MinExcl {
		if score <= r.Min {
			return false
		}
	} else if score < r.Min {
		return false
	}
	if r.MaxExcl {
		if score >= r.Max {
			return false
		}
	} else if score > r.Max {
		return false
	}
	return true
}

func (r ScoreRange) toSkiplistRange() skiplist.Range {
	return skiplist.Range{Min: r.Min, Max: r.Max, MinExcl: r.MinExcl, MaxExcl: r.MaxExcl}
}

func (r LexRange) toSkiplistRange() skiplist.LexRange[string] {
	return skiplist.LexRange[string]{
		Min: r.Min, Max: r.Max,
		MinNegInf: r.MinNegInf, MaxPosInf: r.MaxPosInf,
		MinExcl: r.MinExcl, MaxExcl: r.MaxExcl,
	}
}

// LexRange is a parsed member-name boundary pair, the struct
// zslParseLexRange would have produced from "[a" / "(z" / "+" / "-"-style
// command arguments. MinNegInf and MaxPosInf are the '-' and '+'
// sentinels: an unbounded side. Lexicographic ranges are only meaningful
// when every member being compared shares the same score, the same
// constraint ZRANGEBYLEX places on its caller.
type LexRange struct {
	Min, Max             string
	MinNegInf, MaxPosInf bool
	MinExcl, MaxExcl     bool
}

// Contains reports whether member falls within r.
func (r LexRange) Contains(member string) bool {
	if !r.MinNegInf {
		if r.MinExcl {
			if member <= r.Min {
				return false
			}
		} else if member < r.Min {
			return false
		}
	}
	if !r.MaxPosInf {
		if r.MaxExcl {
			if member >= r.Max {
				return false
			}
		} else if member > r.Max {
			return false
		}
	}
	return true
}

// RangeByScore returns members whose score falls within r, in ascending
// score order (descending if reverse is set), after skipping offset
// matches and limiting to at most limit results (a negative limit means
// unlimited), matching ZRANGEBYSCORE/ZREVRANGEBYSCORE's LIMIT clause.
func (s *Set) RangeByScore(r ScoreRange, offset, limit int, reverse bool) []Member {
	var all []Member
	if s.encoding == EncodingSkiplist {
		sr := r.toSkiplistRange()
		if reverse {
			for node := s.order.LastInRange(sr); node != nil && r.contains(node.Score); node = node.Prev() {
				all = append(all, Member{Value: node.Value, Score: node.Score})
			}
		} else {
			for node := s.order.FirstInRange(sr); node != nil && r.contains(node.Score); node = node.Next() {
				all = append(all, Member{Value: node.Value, Score: node.Score})
			}
		}
	} else {
		collect := func(m Member) bool {
			if r.contains(m.Score) {
				all = append(all, m)
			}
			return true
		}
		if reverse {
			s.eachDescending(collect)
		} else {
			s.eachAscending(collect)
		}
	}
	return paginate(all, offset, limit)
}

// CountInScoreRange returns the number of members whose score falls
// within r. In the skiplist encoding this costs two rank lookups rather
// than a full scan.
func (s *Set) CountInScoreRange(r ScoreRange) int {
	if s.encoding == EncodingSkiplist {
		sr := r.toSkiplistRange()
		first := s.order.FirstInRange(sr)
		if first == nil {
			return 0
		}
		last := s.order.LastInRange(sr)
		return s.order.GetRank(last.Score, last.Value) - s.order.GetRank(first.Score, first.Value) + 1
	}
	count := 0
	s.eachAscending(func(m Member) bool {
		if r.contains(m.Score) {
			count++
		}
		return true
	})
	return count
}

// RangeByLex returns members matching r, assuming every member in the set
// carries the same score, in ascending (descending if reverse) member
// order, after skipping offset matches and limiting to at most limit
// results.
func (s *Set) RangeByLex(r LexRange, offset, limit int, reverse bool) []Member {
	var all []Member
	if s.encoding == EncodingSkiplist {
		lr := r.toSkiplistRange()
		if reverse {
			for node := s.order.LastInLexRange(lr); node != nil && r.Contains(node.Value); node = node.Prev() {
				all = append(all, Member{Value: node.Value, Score: node.Score})
			}
		} else {
			for node := s.order.FirstInLexRange(lr); node != nil && r.Contains(node.Value); node = node.Next() {
				all = append(all, Member{Value: node.Value, Score: node.Score})
			}
		}
	} else {
		collect := func(m Member) bool {
			if r.Contains(m.Value) {
				all = append(all, m)
			}
			return true
		}
		if reverse {
			s.eachDescending(collect)
		} else {
			s.eachAscending(collect)
		}
	}
	return paginate(all, offset, limit)
}

// CountInLexRange returns the number of members matching r. In the
// skiplist encoding this costs two rank lookups rather than a full scan.
func (s *Set) CountInLexRange(r LexRange) int {
	if s.encoding == EncodingSkiplist {
		lr := r.toSkiplistRange()
		first := s.order.FirstInLexRange(lr)
		if first == nil {
			return 0
		}
		last := s.order.LastInLexRange(lr)
		return s.order.GetRank(last.Score, last.Value) - s.order.GetRank(first.Score, first.Value) + 1
	}
	count := 0
	s.eachAscending(func(m Member) bool {
		if r.Contains(m.Value) {
			count++
		}
		return true
	})
	return count
}
