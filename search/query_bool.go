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
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/lynxsearch/lynxdb/index"
)

// BoolQueryBuilder 布尔组合查询
type BoolQueryBuilder struct {
	must    []QueryBuilder
	filter  []QueryBuilder
	should  []QueryBuilder
	mustNot []QueryBuilder
	name    string
	boost   float64
}

// NewBoolQuery 创建布尔查询构建器
func NewBoolQuery() *BoolQueryBuilder {
	return &BoolQueryBuilder{boost: 1.0}
}

// AddMust 添加必须命中且计分的子句
func (b *BoolQueryBuilder) AddMust(q QueryBuilder) {
	b.must = append(b.must, q)
}

// AddFilter 添加必须命中但不计分的子句
func (b *BoolQueryBuilder) AddFilter(q QueryBuilder) {
	b.filter = append(b.filter, q)
}

// AddShould 添加可选命中的计分子句
func (b *BoolQueryBuilder) AddShould(q QueryBuilder) {
	b.should = append(b.should, q)
}

// AddMustNot 添加排除子句
func (b *BoolQueryBuilder) AddMustNot(q QueryBuilder) {
	b.mustNot = append(b.mustNot, q)
}

// SetBoost 设置权重
func (b *BoolQueryBuilder) SetBoost(v float64) {
	b.boost = v
}

// SetName 设置命名查询名
func (b *BoolQueryBuilder) SetName(name string) {
	b.name = name
}

// Boost 返回权重
func (b *BoolQueryBuilder) Boost() float64 {
	return b.boost
}

// QueryName 返回命名查询名
func (b *BoolQueryBuilder) QueryName() string {
	return b.name
}

// Rewrite 递归改写子句并做空集折叠
// 任一 must/filter 子句折叠为空集时整个布尔折叠为空集；
// should 与 mustNot 里的空集直接丢弃
func (b *BoolQueryBuilder) Rewrite(c *ExecutionContext) (QueryBuilder, error) {
	changed := false

	rewriteClause := func(clauses []QueryBuilder) ([]QueryBuilder, error) {
		out := make([]QueryBuilder, len(clauses))
		for i, q := range clauses {
			next, err := q.Rewrite(c)
			if err != nil {
				return nil, err
			}
			if next != q {
				changed = true
			}
			out[i] = next
		}
		return out, nil
	}

	must, err := rewriteClause(b.must)
	if err != nil {
		return nil, err
	}
	filter, err := rewriteClause(b.filter)
	if err != nil {
		return nil, err
	}
	should, err := rewriteClause(b.should)
	if err != nil {
		return nil, err
	}
	mustNot, err := rewriteClause(b.mustNot)
	if err != nil {
		return nil, err
	}

	for _, q := range must {
		if _, none := q.(*MatchNoneQueryBuilder); none {
			return matchNoneForBuilder(b), nil
		}
	}
	for _, q := range filter {
		if _, none := q.(*MatchNoneQueryBuilder); none {
			return matchNoneForBuilder(b), nil
		}
	}
	should = dropMatchNone(should, &changed)
	mustNot = dropMatchNone(mustNot, &changed)

	if !changed {
		return b, nil
	}
	rv := &BoolQueryBuilder{
		must: must, filter: filter, should: should, mustNot: mustNot,
		name: b.name, boost: b.boost,
	}
	return rv, nil
}

func dropMatchNone(clauses []QueryBuilder, changed *bool) []QueryBuilder {
	out := clauses[:0]
	for _, q := range clauses {
		if _, none := q.(*MatchNoneQueryBuilder); none {
			*changed = true
			continue
		}
		out = append(out, q)
	}
	return out
}

// Convert 实现 QueryBuilder 接口
func (b *BoolQueryBuilder) Convert(c *ExecutionContext) (Query, error) {
	convertClause := func(clauses []QueryBuilder) ([]Query, error) {
		var out []Query
		for _, cb := range clauses {
			q, err := cb.Convert(c)
			if err != nil {
				return nil, err
			}
			if q == nil {
				q = &matchNoneQuery{}
			}
			out = append(out, q)
		}
		return out, nil
	}

	must, err := convertClause(b.must)
	if err != nil {
		return nil, err
	}
	filter, err := convertClause(b.filter)
	if err != nil {
		return nil, err
	}
	should, err := convertClause(b.should)
	if err != nil {
		return nil, err
	}
	mustNot, err := convertClause(b.mustNot)
	if err != nil {
		return nil, err
	}

	q := &boolQuery{
		must: must, filter: filter, should: should, mustNot: mustNot,
		boost: b.boost, scope: c.NestedScope(),
	}
	c.registerNamedQuery(b.name, q)
	return q, nil
}

// boolQuery 可执行布尔查询
// must 与 filter 取交，should 在没有必选子句时取并、否则只参与计分，
// mustNot 最后做差；得分为 must 与 should 命中子句得分之和乘权重
type boolQuery struct {
	must    []Query
	filter  []Query
	should  []Query
	mustNot []Query
	boost   float64
	scope   string

	matched *roaring.Bitmap
}

func (q *boolQuery) Match(snap *index.Snapshot) (*roaring.Bitmap, error) {
	if q.matched != nil {
		return q.matched, nil
	}

	var rv *roaring.Bitmap
	for _, child := range append(append([]Query{}, q.must...), q.filter...) {
		bm, err := child.Match(snap)
		if err != nil {
			return nil, err
		}
		if rv == nil {
			rv = bm.Clone()
		} else {
			rv.And(bm)
		}
	}

	if len(q.should) > 0 {
		or := roaring.New()
		for _, child := range q.should {
			bm, err := child.Match(snap)
			if err != nil {
				return nil, err
			}
			or.Or(bm)
		}
		if rv == nil {
			// 没有必选子句时至少命中一个 should
			rv = or
		}
	}

	if rv == nil {
		// 全空子句匹配作用域内全部文档
		rv = scopeBitmap(snap, q.scope).Clone()
	}

	for _, child := range q.mustNot {
		bm, err := child.Match(snap)
		if err != nil {
			return nil, err
		}
		rv.AndNot(bm)
	}

	q.matched = rv
	return rv, nil
}

func (q *boolQuery) Score(snap *index.Snapshot, ord uint32) (float64, error) {
	if q.matched == nil {
		if _, err := q.Match(snap); err != nil {
			return 0, err
		}
	}
	if !q.matched.Contains(ord) {
		return 0, nil
	}
	var sum float64
	for _, child := range q.must {
		s, err := child.Score(snap, ord)
		if err != nil {
			return 0, err
		}
		sum += s
	}
	for _, child := range q.should {
		s, err := child.Score(snap, ord)
		if err != nil {
			return 0, err
		}
		sum += s
	}
	return sum * q.boost, nil
}

// Explain 汇总各计分子句的解释
func (q *boolQuery) Explain(snap *index.Snapshot, ord uint32) (*Explanation, error) {
	score, err := q.Score(snap, ord)
	if err != nil {
		return nil, err
	}
	if score == 0 && !q.matched.Contains(ord) {
		return &Explanation{Value: 0, Description: "no match"}, nil
	}
	rv := &Explanation{Value: score, Description: "sum of:"}
	for _, child := range append(append([]Query{}, q.must...), q.should...) {
		s, err := child.Score(snap, ord)
		if err != nil {
			return nil, err
		}
		if s == 0 {
			continue
		}
		detail, err := Explain(child, snap, ord)
		if err != nil {
			return nil, err
		}
		rv.Details = append(rv.Details, detail)
	}
	return rv, nil
}

func (q *boolQuery) String() string {
	var parts []string
	for _, child := range q.must {
		parts = append(parts, "+"+child.String())
	}
	for _, child := range q.filter {
		parts = append(parts, "#"+child.String())
	}
	for _, child := range q.should {
		parts = append(parts, child.String())
	}
	for _, child := range q.mustNot {
		parts = append(parts, "-"+child.String())
	}
	return fmt.Sprintf("(%s)", strings.Join(parts, " "))
}
