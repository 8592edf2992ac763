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

// Package collector 定义查询阶段的文档采集协议
//
// 终止用带标签的返回值表达，不走 error 通道：收集器吃饱了就在
// Collect 或 Leaf 的回执里说 Terminated，驱动方保证之后不再调它。
package collector

import (
	"github.com/lynxsearch/lynxdb/index"
)

// CollectResult 采集回执
type CollectResult int

const (
	// CollectContinue 继续喂文档
	CollectContinue CollectResult = iota
	// CollectTerminated 收集器不再需要任何文档
	CollectTerminated
)

// ScoreMode 收集器对打分的需求
type ScoreMode int

const (
	// ScoreModeNone 不需要分数
	ScoreModeNone ScoreMode = iota
	// ScoreModeScores 每篇命中都要分数
	ScoreModeScores
)

// NeedsScores 是否需要驱动方就位打分器
func (m ScoreMode) NeedsScores() bool {
	return m >= ScoreModeScores
}

// Combine 取两个需求里更强的
func (m ScoreMode) Combine(other ScoreMode) ScoreMode {
	if other > m {
		return other
	}
	return m
}

// Scorer 给当前段内的文档打分，doc 用段内局部序号
type Scorer interface {
	Score(doc uint32) (float64, error)
}

// LeafBucketCollector 绑定到单个段的采集器
type LeafBucketCollector interface {
	// SetScorer 注入当前段的打分器
	SetScorer(s Scorer) error
	// Collect 采集一篇文档，doc 是段内局部序号
	Collect(doc uint32, owningBucketOrd int64) (CollectResult, error)
}

// BucketCollector 跨段的采集器
//
// 驱动方按段推进：PreCollection 一次，每段 Leaf 之后顺序 Collect，
// 最后 PostCollection 一次。Leaf 在绑定时就可以宣告终止。
type BucketCollector interface {
	Leaf(seg *index.SegmentSnapshot) (LeafBucketCollector, CollectResult, error)
	PreCollection() error
	PostCollection() error
	ScoreMode() ScoreMode
}

// NoOpCollector 什么都不收的收集器，空组合的占位
type NoOpCollector struct{}

// Leaf 绑定即终止
func (NoOpCollector) Leaf(*index.SegmentSnapshot) (LeafBucketCollector, CollectResult, error) {
	return noopLeaf{}, CollectTerminated, nil
}

// PreCollection 无操作
func (NoOpCollector) PreCollection() error { return nil }

// PostCollection 无操作
func (NoOpCollector) PostCollection() error { return nil }

// ScoreMode 不需要分数
func (NoOpCollector) ScoreMode() ScoreMode { return ScoreModeNone }

type noopLeaf struct{}

func (noopLeaf) SetScorer(Scorer) error { return nil }

func (noopLeaf) Collect(uint32, int64) (CollectResult, error) {
	return CollectTerminated, nil
}
