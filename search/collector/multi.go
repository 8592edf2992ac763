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
	"github.com/bits-and-blooms/bitset"

	"github.com/lynxsearch/lynxdb/index"
)

// MultiBucketCollector 把多个收集器组合成一个
//
// 终止的孩子记在位图里，之后 Collect 和 SetScorer 都不再转发给它；
// 兄弟不受影响。所有孩子都终止时组合整体宣告终止。
// 组合的打分需求取孩子里最强的。
type MultiBucketCollector struct {
	children   []BucketCollector
	terminated *bitset.BitSet
	scoreMode  ScoreMode
}

// Wrap 组合收集器
//
// nil 和 NoOpCollector 孩子被丢弃，嵌套的组合被压平；
// 剩 0 个返回 NoOpCollector，剩 1 个原样返回。
func Wrap(children ...BucketCollector) BucketCollector {
	flat := make([]BucketCollector, 0, len(children))
	for _, c := range children {
		switch cc := c.(type) {
		case nil:
		case NoOpCollector:
		case *MultiBucketCollector:
			flat = append(flat, cc.children...)
		default:
			flat = append(flat, c)
		}
	}
	switch len(flat) {
	case 0:
		return NoOpCollector{}
	case 1:
		return flat[0]
	}
	mode := ScoreModeNone
	for _, c := range flat {
		mode = mode.Combine(c.ScoreMode())
	}
	return &MultiBucketCollector{
		children:   flat,
		terminated: bitset.New(uint(len(flat))),
		scoreMode:  mode,
	}
}

// ScoreMode 组合的打分需求
func (m *MultiBucketCollector) ScoreMode() ScoreMode {
	return m.scoreMode
}

// PreCollection 通知所有孩子
func (m *MultiBucketCollector) PreCollection() error {
	for _, c := range m.children {
		if err := c.PreCollection(); err != nil {
			return err
		}
	}
	return nil
}

// PostCollection 通知所有孩子，包括已终止的
func (m *MultiBucketCollector) PostCollection() error {
	for _, c := range m.children {
		if err := c.PostCollection(); err != nil {
			return err
		}
	}
	return nil
}

// Leaf 给每个还活跃的孩子绑定段，孩子可以在绑定时终止
func (m *MultiBucketCollector) Leaf(seg *index.SegmentSnapshot) (LeafBucketCollector, CollectResult, error) {
	leaves := make([]childLeaf, 0, len(m.children))
	for i, c := range m.children {
		if m.terminated.Test(uint(i)) {
			continue
		}
		leaf, res, err := c.Leaf(seg)
		if err != nil {
			return nil, CollectContinue, err
		}
		if res == CollectTerminated {
			m.terminated.Set(uint(i))
			continue
		}
		leaves = append(leaves, childLeaf{idx: uint(i), leaf: leaf})
	}
	if len(leaves) == 0 {
		return nil, CollectTerminated, nil
	}
	return &multiLeaf{parent: m, leaves: leaves}, CollectContinue, nil
}

type childLeaf struct {
	idx  uint
	leaf LeafBucketCollector
}

type multiLeaf struct {
	parent *MultiBucketCollector
	leaves []childLeaf
}

// SetScorer 只转发给还活跃的孩子
func (l *multiLeaf) SetScorer(s Scorer) error {
	for _, cl := range l.leaves {
		if err := cl.leaf.SetScorer(s); err != nil {
			return err
		}
	}
	return nil
}

// Collect 转发给活跃孩子，途中终止的就地摘除
func (l *multiLeaf) Collect(doc uint32, owningBucketOrd int64) (CollectResult, error) {
	kept := l.leaves[:0]
	for _, cl := range l.leaves {
		res, err := cl.leaf.Collect(doc, owningBucketOrd)
		if err != nil {
			return CollectContinue, err
		}
		if res == CollectTerminated {
			l.parent.terminated.Set(cl.idx)
			continue
		}
		kept = append(kept, cl)
	}
	l.leaves = kept
	if len(l.leaves) == 0 {
		return CollectTerminated, nil
	}
	return CollectContinue, nil
}
