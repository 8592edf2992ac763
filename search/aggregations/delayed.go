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

// Bucket 聚合桶的最小契约
//
// CompareKey 只看键，实现里不允许做任何折叠计算。
type Bucket[B any] interface {
	CompareKey(other B) int
	DocCount() int64
}

// ReduceFn 把同键的分片桶折叠成一个最终桶，raw 至少有一个元素
type ReduceFn[B any] func(ctx *ReduceContext, raw []B) (B, error)

// DelayedBucket 延迟归并的同键桶组
//
// 两种状态：Pending 持有各分片送来的原始桶，Reduced 持有折叠结果。
// 键序比较与文档计数都不触发归并，真正的折叠只在 Reduced 里发生一次，
// 之后原始桶被释放。落选的桶组从头到尾不会折叠。
type DelayedBucket[B Bucket[B]] struct {
	raw     []B
	reduce  ReduceFn[B]
	reduced bool
	out     B
}

// NewDelayedBucket 创建 Pending 态桶组，raw 不能为空
func NewDelayedBucket[B Bucket[B]](raw []B, reduce ReduceFn[B]) *DelayedBucket[B] {
	return &DelayedBucket[B]{raw: raw, reduce: reduce}
}

func (d *DelayedBucket[B]) representative() B {
	if d.reduced {
		return d.out
	}
	return d.raw[0]
}

// CompareKey 按键比较两个桶组，不触发归并
func (d *DelayedBucket[B]) CompareKey(other *DelayedBucket[B]) int {
	return d.representative().CompareKey(other.representative())
}

// DocCount 不归并地给出总命中数，Pending 态为原始桶计数之和
func (d *DelayedBucket[B]) DocCount() int64 {
	if d.reduced {
		return d.out.DocCount()
	}
	var total int64
	for _, b := range d.raw {
		total += b.DocCount()
	}
	return total
}

// Reduced 折叠并缓存结果，重复调用返回缓存
func (d *DelayedBucket[B]) Reduced(ctx *ReduceContext) (B, error) {
	if d.reduced {
		return d.out, nil
	}
	out, err := d.reduce(ctx, d.raw)
	if err != nil {
		var zero B
		return zero, err
	}
	d.out = out
	d.reduced = true
	d.raw = nil
	return out, nil
}
