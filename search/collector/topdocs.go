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
	"sort"

	"github.com/lynxsearch/lynxdb/index"
)

// ScoreDoc 带分命中
type ScoreDoc struct {
	Ord   uint32
	Score float64
}

// TopDocsCollector 收集全分片序号空间里得分最高的 size 篇文档
//
// 手写二叉堆，堆顶是当前门槛；同分按全局序号升序靠前。
// size 为 0 时只统计命中数和最高分。
type TopDocsCollector struct {
	size      int
	totalHits uint64
	maxScore  float64
	heap      []ScoreDoc
}

// NewTopDocs 创建 top-k 收集器
func NewTopDocs(size int) *TopDocsCollector {
	if size < 0 {
		size = 0
	}
	return &TopDocsCollector{size: size}
}

// ScoreMode 每篇命中都要分数
func (c *TopDocsCollector) ScoreMode() ScoreMode { return ScoreModeScores }

// PreCollection 无操作
func (c *TopDocsCollector) PreCollection() error { return nil }

// PostCollection 无操作
func (c *TopDocsCollector) PostCollection() error { return nil }

// Leaf 绑定段，记下段基址把局部序号换回全局
func (c *TopDocsCollector) Leaf(seg *index.SegmentSnapshot) (LeafBucketCollector, CollectResult, error) {
	return &topDocsLeaf{parent: c, docBase: seg.DocBase()}, CollectContinue, nil
}

// TotalHits 采集到的命中总数
func (c *TopDocsCollector) TotalHits() uint64 { return c.totalHits }

// MaxScore 所有命中里的最高分
func (c *TopDocsCollector) MaxScore() float64 { return c.maxScore }

// Hits 按名次返回命中，分数降序、同分序号升序
func (c *TopDocsCollector) Hits() []ScoreDoc {
	out := make([]ScoreDoc, len(c.heap))
	copy(out, c.heap)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Ord < out[j].Ord
	})
	return out
}

func (c *TopDocsCollector) collect(ord uint32, score float64) {
	c.totalHits++
	if score > c.maxScore {
		c.maxScore = score
	}
	if c.size == 0 {
		return
	}
	cand := ScoreDoc{Ord: ord, Score: score}
	if len(c.heap) < c.size {
		c.heap = append(c.heap, cand)
		c.siftUp(len(c.heap) - 1)
		return
	}
	if !worseDoc(cand, c.heap[0]) {
		c.heap[0] = cand
		c.siftDown(0)
	}
}

// worseDoc 判断 a 是否排在 b 之后
func worseDoc(a, b ScoreDoc) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Ord > b.Ord
}

func (c *TopDocsCollector) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !worseDoc(c.heap[i], c.heap[parent]) {
			return
		}
		c.heap[i], c.heap[parent] = c.heap[parent], c.heap[i]
		i = parent
	}
}

func (c *TopDocsCollector) siftDown(i int) {
	n := len(c.heap)
	for {
		left := 2*i + 1
		if left >= n {
			return
		}
		w := left
		if right := left + 1; right < n && worseDoc(c.heap[right], c.heap[left]) {
			w = right
		}
		if !worseDoc(c.heap[w], c.heap[i]) {
			return
		}
		c.heap[i], c.heap[w] = c.heap[w], c.heap[i]
		i = w
	}
}

type topDocsLeaf struct {
	parent  *TopDocsCollector
	docBase uint32
	scorer  Scorer
}

func (l *topDocsLeaf) SetScorer(s Scorer) error {
	l.scorer = s
	return nil
}

func (l *topDocsLeaf) Collect(doc uint32, _ int64) (CollectResult, error) {
	var score float64
	if l.scorer != nil {
		s, err := l.scorer.Score(doc)
		if err != nil {
			return CollectContinue, err
		}
		score = s
	}
	l.parent.collect(l.docBase+doc, score)
	return CollectContinue, nil
}
