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
	"fmt"
)

// TopBucketBuilder 流式收集前 size 个桶组
//
// better 给出"谁更靠前"的全序，主序之外必须带确定性的键序破平。
// 落选的桶组按淘汰顺序交给 sink，每个恰好一次，且保持 Pending 态。
// 自始至终最多持有 size 个未归并的桶组。
type TopBucketBuilder[B Bucket[B]] struct {
	size   int
	better func(a, b *DelayedBucket[B]) bool
	sink   func(*DelayedBucket[B])
	heap   []*DelayedBucket[B] // 手写二叉堆，堆顶是当前最差的入选者
}

// NewTopBucketBuilder 创建收集器，sink 可以为 nil
func NewTopBucketBuilder[B Bucket[B]](size int, better func(a, b *DelayedBucket[B]) bool, sink func(*DelayedBucket[B])) (*TopBucketBuilder[B], error) {
	if size <= 0 {
		return nil, fmt.Errorf("top bucket builder requires a positive size, got %d", size)
	}
	if sink == nil {
		sink = func(*DelayedBucket[B]) {}
	}
	return &TopBucketBuilder[B]{
		size:   size,
		better: better,
		sink:   sink,
		heap:   make([]*DelayedBucket[B], 0, size),
	}, nil
}

// Add 提交一个候选桶组
//
// 未满时直接入选；满了之后与当前最差的入选者比较，更好则把被挤掉的
// 交给 sink，否则候选自己进 sink。
func (t *TopBucketBuilder[B]) Add(b *DelayedBucket[B]) {
	if len(t.heap) < t.size {
		t.heap = append(t.heap, b)
		t.siftUp(len(t.heap) - 1)
		return
	}
	worst := t.heap[0]
	if t.better(b, worst) {
		t.heap[0] = b
		t.siftDown(0)
		t.sink(worst)
		return
	}
	t.sink(b)
}

// Build 归并所有入选者并按比较器顺序返回，只有入选者会被归并
func (t *TopBucketBuilder[B]) Build(ctx *ReduceContext) ([]B, error) {
	out := make([]B, len(t.heap))
	for i := len(t.heap) - 1; i >= 0; i-- {
		worst := t.heap[0]
		last := len(t.heap) - 1
		t.heap[0] = t.heap[last]
		t.heap = t.heap[:last]
		if last > 0 {
			t.siftDown(0)
		}
		b, err := worst.Reduced(ctx)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// worse 判断下标 i 的桶组是否比下标 j 的差，堆序用
func (t *TopBucketBuilder[B]) worse(i, j int) bool {
	return t.better(t.heap[j], t.heap[i])
}

func (t *TopBucketBuilder[B]) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !t.worse(i, parent) {
			return
		}
		t.heap[i], t.heap[parent] = t.heap[parent], t.heap[i]
		i = parent
	}
}

func (t *TopBucketBuilder[B]) siftDown(i int) {
	n := len(t.heap)
	for {
		left := 2*i + 1
		if left >= n {
			return
		}
		w := left
		if right := left + 1; right < n && t.worse(right, left) {
			w = right
		}
		if !t.worse(w, i) {
			return
		}
		t.heap[i], t.heap[w] = t.heap[w], t.heap[i]
		i = w
	}
}
