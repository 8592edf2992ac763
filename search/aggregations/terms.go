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

package aggregations

import (
	"sort"
	"strings"
	"time"
)

// DefaultTermsSize 词项聚合未指定 size 时的桶数
const DefaultTermsSize = 10

// StringTermsBucket 词项聚合的单个桶
type StringTermsBucket struct {
	Key   string `json:"key"`
	Count int64  `json:"doc_count"`
}

// CompareKey 键的字典序
func (b *StringTermsBucket) CompareKey(other *StringTermsBucket) int {
	return strings.Compare(b.Key, other.Key)
}

// DocCount 桶的命中文档数
func (b *StringTermsBucket) DocCount() int64 {
	return b.Count
}

// StringTermsShard 单分片的词项聚合局部结果，桶是全量的
type StringTermsShard struct {
	Name    string
	Field   string
	Buckets []*StringTermsBucket
}

// StringTermsResult 归并后的词项聚合
//
// 局部结果是全量词表，所以计数是精确的，误差上界恒为 0。
type StringTermsResult struct {
	Buckets                 []*StringTermsBucket `json:"buckets"`
	SumOtherDocCount        int64                `json:"sum_other_doc_count"`
	DocCountErrorUpperBound int64                `json:"doc_count_error_upper_bound"`
}

// betterTerms 词项桶的主序：计数降序，键升序破平
func betterTerms(a, b *DelayedBucket[*StringTermsBucket]) bool {
	ca, cb := a.DocCount(), b.DocCount()
	if ca != cb {
		return ca > cb
	}
	return a.CompareKey(b) < 0
}

// ReduceStringTerms 把各分片的局部词项表归并成全局前 size 名
//
// 每个唯一键向归并上下文记账一个桶，落选键的命中数累进
// sum_other_doc_count，且永远不会被折叠。
func ReduceStringTerms(ctx *ReduceContext, shards []*StringTermsShard, size int) (*StringTermsResult, error) {
	if ctx == nil {
		ctx = NewReduceContext(0, nil)
	}
	if size <= 0 {
		size = DefaultTermsSize
	}
	start := time.Now()
	defer ctx.reduceTimer.UpdateSince(start)

	groups := make(map[string][]*StringTermsBucket)
	for _, shard := range shards {
		if shard == nil {
			continue
		}
		for _, b := range shard.Buckets {
			groups[b.Key] = append(groups[b.Key], b)
		}
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := &StringTermsResult{}
	sink := func(d *DelayedBucket[*StringTermsBucket]) {
		result.SumOtherDocCount += d.DocCount()
	}
	builder, err := NewTopBucketBuilder(size, betterTerms, sink)
	if err != nil {
		return nil, err
	}
	reduceFn := func(_ *ReduceContext, raw []*StringTermsBucket) (*StringTermsBucket, error) {
		out := &StringTermsBucket{Key: raw[0].Key}
		for _, b := range raw {
			out.Count += b.Count
		}
		return out, nil
	}
	for _, key := range keys {
		if err := ctx.CheckCancelled(); err != nil {
			return nil, err
		}
		if err := ctx.ConsumeBucketsAndMaybeBreak(1); err != nil {
			return nil, err
		}
		builder.Add(NewDelayedBucket(groups[key], reduceFn))
	}
	buckets, err := builder.Build(ctx)
	if err != nil {
		return nil, err
	}
	result.Buckets = buckets
	return result, nil
}
