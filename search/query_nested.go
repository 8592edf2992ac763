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

// 嵌套查询的得分合并方式
const (
	ScoreModeAvg  = "avg"
	ScoreModeSum  = "sum"
	ScoreModeMax  = "max"
	ScoreModeMin  = "min"
	ScoreModeNone = "none"
)

// NestedQueryBuilder 嵌套查询
// 内层查询在指定嵌套路径的子文档上求值，命中折算到外层作用域文档
type NestedQueryBuilder struct {
	path      string
	inner     QueryBuilder
	scoreMode string
	name      string
	boost     float64
}

// NewNestedQuery 创建嵌套查询构建器，默认 avg 得分合并
func NewNestedQuery(path string, inner QueryBuilder) *NestedQueryBuilder {
	return &NestedQueryBuilder{path: path, inner: inner, scoreMode: ScoreModeAvg, boost: 1.0}
}

// SetScoreMode 设置得分合并方式
func (b *NestedQueryBuilder) SetScoreMode(mode string) error {
	switch mode {
	case ScoreModeAvg, ScoreModeSum, ScoreModeMax, ScoreModeMin, ScoreModeNone:
		b.scoreMode = mode
		return nil
	}
	return fmt.Errorf("unknown nested score mode: %s", mode)
}

// SetBoost 设置权重
func (b *NestedQueryBuilder) SetBoost(v float64) {
	b.boost = v
}

// SetName 设置命名查询名
func (b *NestedQueryBuilder) SetName(name string) {
	b.name = name
}

// Boost 返回权重
func (b *NestedQueryBuilder) Boost() float64 {
	return b.boost
}

// QueryName 返回命名查询名
func (b *NestedQueryBuilder) QueryName() string {
	return b.name
}

// Rewrite 校验路径并在嵌套作用域内改写内层查询
func (b *NestedQueryBuilder) Rewrite(c *ExecutionContext) (QueryBuilder, error) {
	ft, err := c.FieldType(b.path)
	if err != nil {
		return nil, err
	}
	if ft == nil {
		return matchNoneForBuilder(b), nil
	}
	if !ft.IsNested() {
		return nil, fmt.Errorf("nested query path [%s] is not a nested field", b.path)
	}

	c.PushNestedScope(b.path)
	inner, err := b.inner.Rewrite(c)
	c.PopNestedScope()
	if err != nil {
		return nil, err
	}
	if inner == b.inner {
		return b, nil
	}
	rv := *b
	rv.inner = inner
	return &rv, nil
}

// Convert 实现 QueryBuilder 接口
func (b *NestedQueryBuilder) Convert(c *ExecutionContext) (Query, error) {
	c.PushNestedScope(b.path)
	inner, err := b.inner.Convert(c)
	c.PopNestedScope()
	if err != nil {
		return nil, err
	}
	if inner == nil {
		inner = &matchNoneQuery{}
	}
	q := &nestedQuery{
		path:        b.path,
		inner:       inner,
		scoreMode:   b.scoreMode,
		boost:       b.boost,
		parentScope: c.NestedScope(),
	}
	c.registerNamedQuery(b.name, q)
	return q, nil
}

// nestedQuery 可执行嵌套查询
// 命中子文档沿位图折算到 parentScope 层的外层文档，
// 外层文档得分按 scoreMode 合并其命中子文档的得分
type nestedQuery struct {
	path        string
	inner       Query
	scoreMode   string
	boost       float64
	parentScope string

	matched  *roaring.Bitmap
	children map[uint32][]uint32
}

func (q *nestedQuery) Match(snap *index.Snapshot) (*roaring.Bitmap, error) {
	if q.matched != nil {
		return q.matched, nil
	}

	inner, err := q.inner.Match(snap)
	if err != nil {
		return nil, err
	}

	rv := roaring.New()
	q.children = make(map[uint32][]uint32)
	it := inner.Iterator()
	for it.HasNext() {
		child := it.Next()
		seg, err := snap.SegmentForOrdinal(child)
		if err != nil {
			return nil, err
		}
		local, err := seg.EnclosingOf(child-seg.DocBase(), q.parentScope)
		if err != nil {
			return nil, fmt.Errorf("failed to join nested doc %d to parent: %w", child, err)
		}
		parent := seg.DocBase() + local
		rv.Add(parent)
		q.children[parent] = append(q.children[parent], child)
	}

	q.matched = rv
	return rv, nil
}

func (q *nestedQuery) Score(snap *index.Snapshot, ord uint32) (float64, error) {
	if q.matched == nil {
		if _, err := q.Match(snap); err != nil {
			return 0, err
		}
	}
	group := q.children[ord]
	if len(group) == 0 {
		return 0, nil
	}
	if q.scoreMode == ScoreModeNone {
		return q.boost, nil
	}

	var combined float64
	for i, child := range group {
		s, err := q.inner.Score(snap, child)
		if err != nil {
			return 0, err
		}
		switch q.scoreMode {
		case ScoreModeSum, ScoreModeAvg:
			combined += s
		case ScoreModeMax:
			if i == 0 || s > combined {
				combined = s
			}
		case ScoreModeMin:
			if i == 0 || s < combined {
				combined = s
			}
		}
	}
	if q.scoreMode == ScoreModeAvg {
		combined /= float64(len(group))
	}
	return combined * q.boost, nil
}

func (q *nestedQuery) String() string {
	return fmt.Sprintf("nested(%s, %s)", q.path, q.inner)
}
