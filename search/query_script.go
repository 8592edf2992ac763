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
	"encoding/json"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/lynxsearch/lynxdb/index"
	"github.com/lynxsearch/lynxdb/script"
)

// ScriptQueryBuilder 脚本过滤查询
// 脚本在过滤上下文里编译，对作用域内每篇文档求布尔值
type ScriptQueryBuilder struct {
	script  *script.Script
	factory *script.Factory
	name    string
	boost   float64
}

// NewScriptQuery 创建脚本查询构建器
func NewScriptQuery(s *script.Script) *ScriptQueryBuilder {
	return &ScriptQueryBuilder{script: s, boost: 1.0}
}

// SetBoost 设置权重
func (b *ScriptQueryBuilder) SetBoost(v float64) {
	b.boost = v
}

// SetName 设置命名查询名
func (b *ScriptQueryBuilder) SetName(name string) {
	b.name = name
}

// Boost 返回权重
func (b *ScriptQueryBuilder) Boost() float64 {
	return b.boost
}

// QueryName 返回命名查询名
func (b *ScriptQueryBuilder) QueryName() string {
	return b.name
}

// Rewrite 改写期编译脚本
// 非确定性脚本的编译会经过冻结检查点，冻结后直接报错
func (b *ScriptQueryBuilder) Rewrite(c *ExecutionContext) (QueryBuilder, error) {
	if b.factory != nil {
		return b, nil
	}
	factory, err := c.CompileScript(b.script, script.ContextFilter)
	if err != nil {
		return nil, err
	}
	rv := *b
	rv.factory = factory
	return &rv, nil
}

// Convert 实现 QueryBuilder 接口
func (b *ScriptQueryBuilder) Convert(c *ExecutionContext) (Query, error) {
	factory := b.factory
	if factory == nil {
		var err error
		factory, err = c.CompileScript(b.script, script.ContextFilter)
		if err != nil {
			return nil, err
		}
	}
	q := &scriptQuery{
		script:  b.script,
		factory: factory,
		boost:   b.boost,
		scope:   c.NestedScope(),
	}
	if !factory.IsResultDeterministic() {
		now, err := c.NowInMillis()
		if err != nil {
			return nil, err
		}
		q.now = now
	}
	c.registerNamedQuery(b.name, q)
	return q, nil
}

// scriptQuery 可执行脚本查询
// 遍历作用域位图逐篇执行过滤脚本，doc 绑定存储字段、source 绑定原始文档；
// 单篇文档的脚本执行失败按不命中处理
type scriptQuery struct {
	script  *script.Script
	factory *script.Factory
	boost   float64
	scope   string
	now     int64

	matched *roaring.Bitmap
}

func (q *scriptQuery) Match(snap *index.Snapshot) (*roaring.Bitmap, error) {
	if q.matched != nil {
		return q.matched, nil
	}

	rv := roaring.New()
	it := scopeBitmap(snap, q.scope).Iterator()
	for it.HasNext() {
		ord := it.Next()
		stored, err := snap.StoredFields(ord)
		if err != nil {
			return nil, fmt.Errorf("failed to load doc %d for script query: %w", ord, err)
		}
		var source map[string]interface{}
		raw, err := snap.SourceBytes(ord)
		if err != nil {
			return nil, err
		}
		if raw != nil {
			if err := json.Unmarshal(raw, &source); err != nil {
				return nil, fmt.Errorf("failed to parse source of doc %d: %w", ord, err)
			}
		}

		sctx := q.script.NewContext(stored, source)
		if q.now != 0 {
			sctx.Now = q.now
		}
		pass, err := q.factory.ExecuteFilter(sctx)
		if err != nil {
			continue
		}
		if pass {
			rv.Add(ord)
		}
	}

	q.matched = rv
	return rv, nil
}

func (q *scriptQuery) Score(snap *index.Snapshot, ord uint32) (float64, error) {
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

func (q *scriptQuery) String() string {
	return fmt.Sprintf("script(%s)", q.script.Source)
}
