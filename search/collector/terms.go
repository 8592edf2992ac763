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
	"fmt"
	"sort"
	"strconv"

	"github.com/lynxsearch/lynxdb/index"
	"github.com/lynxsearch/lynxdb/search/aggregations"
)

// TermsCollector 在查询阶段为一个字段累计词项计数
//
// 计数表是全量的，归并端因此能给出精确的 doc_count。
// 多值字段的每个取值各记一次。
type TermsCollector struct {
	name   string
	field  string
	counts map[string]int64
}

// NewTerms 创建词项收集器
func NewTerms(name, field string) *TermsCollector {
	return &TermsCollector{name: name, field: field}
}

// ScoreMode 不需要分数
func (c *TermsCollector) ScoreMode() ScoreMode { return ScoreModeNone }

// PreCollection 重置计数表
func (c *TermsCollector) PreCollection() error {
	c.counts = make(map[string]int64)
	return nil
}

// PostCollection 无操作
func (c *TermsCollector) PostCollection() error { return nil }

// Leaf 绑定段
func (c *TermsCollector) Leaf(seg *index.SegmentSnapshot) (LeafBucketCollector, CollectResult, error) {
	return &termsLeaf{parent: c, seg: seg}, CollectContinue, nil
}

// Shard 产出分片局部聚合结果，桶按计数降序、键升序
func (c *TermsCollector) Shard() *aggregations.StringTermsShard {
	buckets := make([]*aggregations.StringTermsBucket, 0, len(c.counts))
	for key, count := range c.counts {
		buckets = append(buckets, &aggregations.StringTermsBucket{Key: key, Count: count})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Key < buckets[j].Key
	})
	return &aggregations.StringTermsShard{Name: c.name, Field: c.field, Buckets: buckets}
}

func (c *TermsCollector) add(v interface{}) {
	switch vv := v.(type) {
	case string:
		c.counts[vv]++
	case []interface{}:
		for _, e := range vv {
			c.add(e)
		}
	case bool:
		c.counts[strconv.FormatBool(vv)]++
	case float64:
		c.counts[strconv.FormatFloat(vv, 'f', -1, 64)]++
	default:
		c.counts[fmt.Sprintf("%v", vv)]++
	}
}

type termsLeaf struct {
	parent *TermsCollector
	seg    *index.SegmentSnapshot
}

func (l *termsLeaf) SetScorer(Scorer) error { return nil }

func (l *termsLeaf) Collect(doc uint32, _ int64) (CollectResult, error) {
	stored, err := l.seg.StoredFields(doc)
	if err != nil {
		return CollectContinue, fmt.Errorf("failed to load stored fields for terms aggregation [%s]: %w", l.parent.name, err)
	}
	if v, ok := stored[l.parent.field]; ok {
		l.parent.add(v)
	}
	return CollectContinue, nil
}
