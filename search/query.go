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

// Query 可执行查询，针对单个分片快照求值
type Query interface {
	// Match 返回全部命中文档的全局文档号位图
	Match(snap *index.Snapshot) (*roaring.Bitmap, error)
	// Score 计算某命中文档的得分，未命中返回 0
	Score(snap *index.Snapshot, ord uint32) (float64, error)
	String() string
}

// QueryBuilder 查询构建器
// Rewrite 针对执行上下文化简自身，没有变化时必须返回原指针；
// Convert 产出可执行查询，返回 nil 表示匹配空集
type QueryBuilder interface {
	Rewrite(c *ExecutionContext) (QueryBuilder, error)
	Convert(c *ExecutionContext) (Query, error)
	QueryName() string
	Boost() float64
}

// ParsedQuery 转换完成的查询与命名查询快照
type ParsedQuery struct {
	Query Query
	Named map[string]Query
}

// 改写轮数上限，防构建器互相改写成环
const maxRewriteRounds = 16

// RewriteQuery 反复改写直到不动点
func RewriteQuery(builder QueryBuilder, c *ExecutionContext) (QueryBuilder, error) {
	cur := builder
	for round := 0; round < maxRewriteRounds; round++ {
		next, err := cur.Rewrite(c)
		if err != nil {
			return nil, err
		}
		if next == cur {
			return cur, nil
		}
		cur = next
	}
	return nil, fmt.Errorf("query did not reach a rewrite fixpoint after %d rounds", maxRewriteRounds)
}

// scopeBitmap 返回当前嵌套作用域的候选文档位图
// 顶层作用域是根文档位图，嵌套作用域是该路径的子文档位图。
// 返回的位图是快照共享的，调用方不得原地修改
func scopeBitmap(snap *index.Snapshot, scope string) *roaring.Bitmap {
	if scope == "" {
		return snap.RootBitmap()
	}
	return snap.NestedPathBitmap(scope)
}

// termForValue 把查询值转成索引里的词项形式，与写入侧的取词规则一致
func termForValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 64)
	case int:
		return strconv.FormatFloat(float64(v), 'f', -1, 64)
	case int64:
		return strconv.FormatFloat(float64(v), 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// MatchAllQueryBuilder 全量匹配
type MatchAllQueryBuilder struct {
	name  string
	boost float64
}

// NewMatchAllQuery 创建全量匹配构建器
func NewMatchAllQuery() *MatchAllQueryBuilder {
	return &MatchAllQueryBuilder{boost: 1.0}
}

// SetBoost 设置权重
func (b *MatchAllQueryBuilder) SetBoost(v float64) {
	b.boost = v
}

// SetName 设置命名查询名
func (b *MatchAllQueryBuilder) SetName(name string) {
	b.name = name
}

// Boost 返回权重
func (b *MatchAllQueryBuilder) Boost() float64 {
	return b.boost
}

// QueryName 返回命名查询名
func (b *MatchAllQueryBuilder) QueryName() string {
	return b.name
}

// Rewrite 无需化简
func (b *MatchAllQueryBuilder) Rewrite(c *ExecutionContext) (QueryBuilder, error) {
	return b, nil
}

// Convert 实现 QueryBuilder 接口
func (b *MatchAllQueryBuilder) Convert(c *ExecutionContext) (Query, error) {
	q := &matchAllQuery{boost: b.boost, scope: c.NestedScope()}
	c.registerNamedQuery(b.name, q)
	return q, nil
}

type matchAllQuery struct {
	boost float64
	scope string
}

func (q *matchAllQuery) Match(snap *index.Snapshot) (*roaring.Bitmap, error) {
	return scopeBitmap(snap, q.scope).Clone(), nil
}

func (q *matchAllQuery) Score(snap *index.Snapshot, ord uint32) (float64, error) {
	return q.boost, nil
}

func (q *matchAllQuery) String() string {
	return "*:*"
}

// MatchNoneQueryBuilder 空集匹配
type MatchNoneQueryBuilder struct {
	name string
}

// NewMatchNoneQuery 创建空集匹配构建器
func NewMatchNoneQuery() *MatchNoneQueryBuilder {
	return &MatchNoneQueryBuilder{}
}

// SetName 设置命名查询名
func (b *MatchNoneQueryBuilder) SetName(name string) {
	b.name = name
}

// Boost 返回权重
func (b *MatchNoneQueryBuilder) Boost() float64 {
	return 0
}

// QueryName 返回命名查询名
func (b *MatchNoneQueryBuilder) QueryName() string {
	return b.name
}

// Rewrite 无需化简
func (b *MatchNoneQueryBuilder) Rewrite(c *ExecutionContext) (QueryBuilder, error) {
	return b, nil
}

// Convert 实现 QueryBuilder 接口
func (b *MatchNoneQueryBuilder) Convert(c *ExecutionContext) (Query, error) {
	q := &matchNoneQuery{}
	c.registerNamedQuery(b.name, q)
	return q, nil
}

// matchNoneQuery 空集哨兵，转换期 nil 查询统一折叠到它
type matchNoneQuery struct{}

func (q *matchNoneQuery) Match(snap *index.Snapshot) (*roaring.Bitmap, error) {
	return roaring.New(), nil
}

func (q *matchNoneQuery) Score(snap *index.Snapshot, ord uint32) (float64, error) {
	return 0, nil
}

func (q *matchNoneQuery) String() string {
	return "match_none"
}

// IsMatchNone 判断查询是否是空集哨兵
func IsMatchNone(q Query) bool {
	_, ok := q.(*matchNoneQuery)
	return ok
}

// matchNoneForBuilder 保留命名的空集替身，改写期折叠用
func matchNoneForBuilder(b QueryBuilder) *MatchNoneQueryBuilder {
	mn := NewMatchNoneQuery()
	mn.SetName(b.QueryName())
	return mn
}
