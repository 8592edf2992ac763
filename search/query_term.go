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

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/lynxsearch/lynxdb/index"
)

// TermQueryBuilder 精确词项查询，不做分析
type TermQueryBuilder struct {
	field string
	value interface{}
	name  string
	boost float64
}

// NewTermQuery 创建词项查询构建器
func NewTermQuery(field string, value interface{}) *TermQueryBuilder {
	return &TermQueryBuilder{field: field, value: value, boost: 1.0}
}

// SetBoost 设置权重
func (b *TermQueryBuilder) SetBoost(v float64) {
	b.boost = v
}

// SetName 设置命名查询名
func (b *TermQueryBuilder) SetName(name string) {
	b.name = name
}

// Boost 返回权重
func (b *TermQueryBuilder) Boost() float64 {
	return b.boost
}

// QueryName 返回命名查询名
func (b *TermQueryBuilder) QueryName() string {
	return b.name
}

// Field 返回查询字段
func (b *TermQueryBuilder) Field() string {
	return b.field
}

// Rewrite 未映射但放行的字段折叠为空集
func (b *TermQueryBuilder) Rewrite(c *ExecutionContext) (QueryBuilder, error) {
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
func (b *TermQueryBuilder) Convert(c *ExecutionContext) (Query, error) {
	ft, err := c.FieldType(b.field)
	if err != nil {
		return nil, err
	}
	if ft == nil {
		return nil, nil
	}
	sim := c.Similarity(b.field)
	q := &termQuery{
		field: b.field,
		term:  termForValue(b.value),
		boost: b.boost,
		scope: c.NestedScope(),
		k1:    sim.K1,
	}
	c.registerNamedQuery(b.name, q)
	return q, nil
}

// termQuery 可执行词项查询
// Match 缓存命中位图与作用域内 IDF，Score 复用；
// 转换产物只在单分片单次请求内使用，缓存无需加锁
type termQuery struct {
	field string
	term  string
	boost float64
	scope string
	k1    float64

	matched *roaring.Bitmap
	idf     float64
}

func (q *termQuery) prepare(snap *index.Snapshot) error {
	if q.matched != nil {
		return nil
	}
	postings, err := snap.TermPostings(q.field, q.term)
	if err != nil {
		return fmt.Errorf("failed to load postings for %s:%s: %w", q.field, q.term, err)
	}
	scoped := scopeBitmap(snap, q.scope)
	postings.And(scoped)
	q.idf = bm25IDF(scoped.GetCardinality(), postings.GetCardinality())
	q.matched = postings
	return nil
}

func (q *termQuery) Match(snap *index.Snapshot) (*roaring.Bitmap, error) {
	if err := q.prepare(snap); err != nil {
		return nil, err
	}
	return q.matched, nil
}

func (q *termQuery) Score(snap *index.Snapshot, ord uint32) (float64, error) {
	if err := q.prepare(snap); err != nil {
		return 0, err
	}
	if !q.matched.Contains(ord) {
		return 0, nil
	}
	freq, err := snap.TermFreq(q.field, q.term, ord)
	if err != nil {
		return 0, err
	}
	if freq == 0 {
		freq = 1
	}
	return q.boost * q.idf * bm25TF(freq, q.k1), nil
}

// Explain 输出 idf 与 tf 两项分解
func (q *termQuery) Explain(snap *index.Snapshot, ord uint32) (*Explanation, error) {
	score, err := q.Score(snap, ord)
	if err != nil {
		return nil, err
	}
	if score == 0 {
		return &Explanation{Value: 0, Description: fmt.Sprintf("no match on %s", q)}, nil
	}
	freq, err := snap.TermFreq(q.field, q.term, ord)
	if err != nil {
		return nil, err
	}
	if freq == 0 {
		freq = 1
	}
	return &Explanation{
		Value:       score,
		Description: fmt.Sprintf("weight(%s) [bm25], product of:", q),
		Details: []*Explanation{
			{Value: q.idf, Description: "idf"},
			{Value: bm25TF(freq, q.k1), Description: fmt.Sprintf("tf, freq=%d", freq)},
			{Value: q.boost, Description: "boost"},
		},
	}, nil
}

func (q *termQuery) String() string {
	return fmt.Sprintf("%s:%s", q.field, q.term)
}

// MatchQueryBuilder 全文匹配查询
// 对 text 字段改写为分析后词项的组合，其他类型退化为词项查询
type MatchQueryBuilder struct {
	field string
	text  string
	name  string
	boost float64
}

// NewMatchQuery 创建全文匹配构建器
func NewMatchQuery(field, text string) *MatchQueryBuilder {
	return &MatchQueryBuilder{field: field, text: text, boost: 1.0}
}

// SetBoost 设置权重
func (b *MatchQueryBuilder) SetBoost(v float64) {
	b.boost = v
}

// SetName 设置命名查询名
func (b *MatchQueryBuilder) SetName(name string) {
	b.name = name
}

// Boost 返回权重
func (b *MatchQueryBuilder) Boost() float64 {
	return b.boost
}

// QueryName 返回命名查询名
func (b *MatchQueryBuilder) QueryName() string {
	return b.name
}

// Rewrite 按字段类型展开
// text 字段经分析器取词：零词折叠为空集，单词退化为词项查询，
// 多词展开为 should 组合；非 text 字段直接退化为词项查询
func (b *MatchQueryBuilder) Rewrite(c *ExecutionContext) (QueryBuilder, error) {
	ft, err := c.FieldType(b.field)
	if err != nil {
		return nil, err
	}
	if ft == nil {
		return matchNoneForBuilder(b), nil
	}

	if !ft.IsText() {
		tq := NewTermQuery(b.field, b.text)
		tq.SetBoost(b.boost)
		tq.SetName(b.name)
		return tq, nil
	}

	analyzer, err := c.Analyzer(b.field)
	if err != nil {
		return nil, err
	}
	tokens := analyzer.Analyze([]byte(b.text))
	switch len(tokens) {
	case 0:
		return matchNoneForBuilder(b), nil
	case 1:
		tq := NewTermQuery(b.field, string(tokens[0].Term))
		tq.SetBoost(b.boost)
		tq.SetName(b.name)
		return tq, nil
	}

	bq := NewBoolQuery()
	bq.SetBoost(b.boost)
	bq.SetName(b.name)
	for _, token := range tokens {
		bq.AddShould(NewTermQuery(b.field, string(token.Term)))
	}
	return bq, nil
}

// Convert 正常路径在 Rewrite 中已展开，到这里只剩兜底
func (b *MatchQueryBuilder) Convert(c *ExecutionContext) (Query, error) {
	rewritten, err := b.Rewrite(c)
	if err != nil {
		return nil, err
	}
	if rewritten == b {
		return nil, fmt.Errorf("match query on field [%s] did not rewrite", b.field)
	}
	return rewritten.Convert(c)
}
