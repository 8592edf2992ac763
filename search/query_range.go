// Copyright (c) 2025 LynxDB Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// 		http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package search

import (
	"fmt"
	"strconv"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/lynxsearch/lynxdb/index"
)

// ExistsQueryBuilder 字段存在性查询
type ExistsQueryBuilder struct {
	field string
	name  string
	boost float64
}

// NewExistsQuery 创建存在性查询构建器
func NewExistsQuery(field string) *ExistsQueryBuilder {
	return &ExistsQueryBuilder{field: field, boost: 1.0}
}

// SetBoost 设置权重
func (b *ExistsQueryBuilder) SetBoost(v float64) {
	b.boost = v
}

// SetName 设置命名查询名
func (b *ExistsQueryBuilder) SetName(name string) {
	b.name = name
}

// Boost 返回权重
func (b *ExistsQueryBuilder) Boost() float64 {
	return b.boost
}

// QueryName 返回命名查询名
func (b *ExistsQueryBuilder) QueryName() string {
	return b.name
}

// Rewrite 未映射但放行的字段折叠为空集
func (b *ExistsQueryBuilder) Rewrite(c *ExecutionContext) (QueryBuilder, error) {
	ft, err := c.FieldType(b.field)
	if err != nil {
		return nil, err
	}
	if ft == nil {
		return matchNoneForBuilder(b), nil
	}
	return b, nil
}

// Convert 实现 QueryBuilder 接口
func (b *ExistsQueryBuilder) Convert(c *ExecutionContext) (Query, error) {
	q := &existsQuery{field: b.field, boost: b.boost, scope: c.NestedScope()}
	c.registerNamedQuery(b.name, q)
	return q, nil
}

// existsQuery 可执行存在性查询，常量得分
type existsQuery struct {
	field string
	boost float64
	scope string

	matched *roaring.Bitmap
}

func (q *existsQuery) Match(snap *index.Snapshot) (*roaring.Bitmap, error) {
	if q.matched != nil {
		return q.matched, nil
	}
	postings, err := snap.FieldPostings(q.field)
	if err != nil {
		return nil, fmt.Errorf("failed to load field postings for %s: %w", q.field, err)
	}
	postings.And(scopeBitmap(snap, q.scope))
	q.matched = postings
	return postings, nil
}

func (q *existsQuery) Score(snap *index.Snapshot, ord uint32) (float64, error) {
	if q.matched == nil {
		if _, err := q.Match(snap); err != nil {
			return 0, err
		}
	}
	if !q.matched.Contains(ord) {
		return 0, nil
	}
	return q.boost, nil
}

func (q *existsQuery) String() string {
	return fmt.Sprintf("exists(%s)", q.field)
}

// RangeQueryBuilder 范围查询
// 数值字段按数值比较，其余字段按字节序比较
type RangeQueryBuilder struct {
	field      string
	from, to   interface{}
	includeMin bool
	includeMax bool
	name       string
	boost      float64
}

// NewRangeQuery 创建范围查询构建器
func NewRangeQuery(field string) *RangeQueryBuilder {
	return &RangeQueryBuilder{field: field, includeMin: true, includeMax: true, boost: 1.0}
}

// SetGT 设置开区间下界
func (b *RangeQueryBuilder) SetGT(v interface{}) {
	b.from, b.includeMin = v, false
}

// SetGTE 设置闭区间下界
func (b *RangeQueryBuilder) SetGTE(v interface{}) {
	b.from, b.includeMin = v, true
}

// SetLT 设置开区间上界
func (b *RangeQueryBuilder) SetLT(v interface{}) {
	b.to, b.includeMax = v, false
}

// SetLTE 设置闭区间上界
func (b *RangeQueryBuilder) SetLTE(v interface{}) {
	b.to, b.includeMax = v, true
}

// SetBoost 设置权重
func (b *RangeQueryBuilder) SetBoost(v float64) {
	b.boost = v
}

// SetName 设置命名查询名
func (b *RangeQueryBuilder) SetName(name string) {
	b.name = name
}

// Boost 返回权重
func (b *RangeQueryBuilder) Boost() float64 {
	return b.boost
}

// QueryName 返回命名查询名
func (b *RangeQueryBuilder) QueryName() string {
	return b.name
}

// Rewrite 未映射但放行的字段折叠为空集
func (b *RangeQueryBuilder) Rewrite(c *ExecutionContext) (QueryBuilder, error) {
	ft, err := c.FieldType(b.field)
	if err != nil {
		return nil, err
	}
	if ft == nil {
		return matchNoneForBuilder(b), nil
	}
	return b, nil
}

// Convert 实现 QueryBuilder 接口
func (b *RangeQueryBuilder) Convert(c *ExecutionContext) (Query, error) {
	ft, err := c.FieldType(b.field)
	if err != nil {
		return nil, err
	}
	if ft == nil {
		return nil, nil
	}
	q := &rangeQuery{
		field:      b.field,
		from:       b.from,
		to:         b.to,
		includeMin: b.includeMin,
		includeMax: b.includeMax,
		numeric:    ft.IsNumeric(),
		boost:      b.boost,
		scope:      c.NestedScope(),
	}
	c.registerNamedQuery(b.name, q)
	return q, nil
}

// rangeQuery 可执行范围查询
// 遍历字段词典筛出界内词项，命中位图取它们倒排的并集，常量得分
type rangeQuery struct {
	field      string
	from, to   interface{}
	includeMin bool
	includeMax bool
	numeric    bool
	boost      float64
	scope      string

	matched *roaring.Bitmap
}

func (q *rangeQuery) Match(snap *index.Snapshot) (*roaring.Bitmap, error) {
	if q.matched != nil {
		return q.matched, nil
	}

	terms, err := snap.FieldTerms(q.field)
	if err != nil {
		return nil, fmt.Errorf("failed to load term dictionary for %s: %w", q.field, err)
	}

	rv := roaring.New()
	for _, term := range terms {
		in, err := q.inRange(term)
		if err != nil {
			return nil, err
		}
		if !in {
			continue
		}
		postings, err := snap.TermPostings(q.field, term)
		if err != nil {
			return nil, err
		}
		rv.Or(postings)
	}
	rv.And(scopeBitmap(snap, q.scope))

	q.matched = rv
	return rv, nil
}

func (q *rangeQuery) inRange(term string) (bool, error) {
	if q.numeric {
		v, err := strconv.ParseFloat(term, 64)
		if err != nil {
			return false, fmt.Errorf("non-numeric term %q in numeric field %s", term, q.field)
		}
		if q.from != nil {
			bound, err := toComparableFloat(q.from)
			if err != nil {
				return false, err
			}
			if v < bound || (!q.includeMin && v == bound) {
				return false, nil
			}
		}
		if q.to != nil {
			bound, err := toComparableFloat(q.to)
			if err != nil {
				return false, err
			}
			if v > bound || (!q.includeMax && v == bound) {
				return false, nil
			}
		}
		return true, nil
	}

	if q.from != nil {
		bound := fmt.Sprintf("%v", q.from)
		if term < bound || (!q.includeMin && term == bound) {
			return false, nil
		}
	}
	if q.to != nil {
		bound := fmt.Sprintf("%v", q.to)
		if term > bound || (!q.includeMax && term == bound) {
			return false, nil
		}
	}
	return true, nil
}

func toComparableFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	}
	return 0, fmt.Errorf("cannot compare %T as a number", v)
}

func (q *rangeQuery) Score(snap *index.Snapshot, ord uint32) (float64, error) {
	if q.matched == nil {
		if _, err := q.Match(snap); err != nil {
			return 0, err
		}
	}
	if !q.matched.Contains(ord) {
		return 0, nil
	}
	return q.boost, nil
}

func (q *rangeQuery) String() string {
	lo, hi := "*", "*"
	if q.from != nil {
		lo = fmt.Sprintf("%v", q.from)
	}
	if q.to != nil {
		hi = fmt.Sprintf("%v", q.to)
	}
	lb, rb := "[", "]"
	if !q.includeMin {
		lb = "{"
	}
	if !q.includeMax {
		rb = "}"
	}
	return fmt.Sprintf("%s:%s%s TO %s%s", q.field, lb, lo, hi, rb)
}
