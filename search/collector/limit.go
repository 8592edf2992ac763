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

package collector

import (
	"github.com/lynxsearch/lynxdb/index"
)

// LimitCollector 包在收集链外层的提前终止闸门
//
// 先把文档转发给内层，满 limit 篇后整条链宣告终止，
// 第 limit 篇本身是被采集的。
type LimitCollector struct {
	inner     BucketCollector
	limit     int
	collected int
	early     bool
}

// NewLimit 包装内层收集器，limit 必须为正
func NewLimit(inner BucketCollector, limit int) *LimitCollector {
	return &LimitCollector{inner: inner, limit: limit}
}

// ScoreMode 跟随内层
func (c *LimitCollector) ScoreMode() ScoreMode { return c.inner.ScoreMode() }

// PreCollection 转发给内层
func (c *LimitCollector) PreCollection() error { return c.inner.PreCollection() }

// PostCollection 转发给内层
func (c *LimitCollector) PostCollection() error { return c.inner.PostCollection() }

// Leaf 绑定段，额度已经用完时直接终止
func (c *LimitCollector) Leaf(seg *index.SegmentSnapshot) (LeafBucketCollector, CollectResult, error) {
	if c.collected >= c.limit {
		return nil, CollectTerminated, nil
	}
	leaf, res, err := c.inner.Leaf(seg)
	if err != nil || res == CollectTerminated {
		return nil, res, err
	}
	return &limitLeaf{parent: c, inner: leaf}, CollectContinue, nil
}

// TerminatedEarly 是否因为额度用完而终止
func (c *LimitCollector) TerminatedEarly() bool { return c.early }

// Collected 已采集的文档数
func (c *LimitCollector) Collected() int { return c.collected }

type limitLeaf struct {
	parent *LimitCollector
	inner  LeafBucketCollector
}

func (l *limitLeaf) SetScorer(s Scorer) error {
	return l.inner.SetScorer(s)
}

func (l *limitLeaf) Collect(doc uint32, owningBucketOrd int64) (CollectResult, error) {
	res, err := l.inner.Collect(doc, owningBucketOrd)
	if err != nil || res == CollectTerminated {
		return res, err
	}
	l.parent.collected++
	if l.parent.collected >= l.parent.limit {
		l.parent.early = true
		return CollectTerminated, nil
	}
	return CollectContinue, nil
}
