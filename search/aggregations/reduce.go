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

	"github.com/blevesearch/go-metrics"
)

// DefaultMaxBuckets 一次归并允许产生的桶数上限默认值
const DefaultMaxBuckets = 65536

// ReduceContext 协调节点归并聚合时的共享状态
//
// 桶数记账防御高基数聚合打爆内存，取消检查由调用方注入，
// nil 表示本次归并不可取消。
type ReduceContext struct {
	maxBuckets  int
	consumed    int
	checkCancel func() error

	bucketsConsumed metrics.Counter
	reduceTimer     metrics.Timer
}

// NewReduceContext 创建归并上下文，maxBuckets <= 0 表示不设上限
func NewReduceContext(maxBuckets int, checkCancel func() error) *ReduceContext {
	return &ReduceContext{
		maxBuckets:      maxBuckets,
		checkCancel:     checkCancel,
		bucketsConsumed: metrics.NewCounter(),
		reduceTimer:     metrics.NewTimer(),
	}
}

// ConsumeBucketsAndMaybeBreak 记账 n 个桶，超过上限时报错
func (c *ReduceContext) ConsumeBucketsAndMaybeBreak(n int) error {
	c.consumed += n
	c.bucketsConsumed.Inc(int64(n))
	if c.maxBuckets > 0 && c.consumed > c.maxBuckets {
		return fmt.Errorf("too many buckets: must be less than or equal to [%d] but was [%d]", c.maxBuckets, c.consumed)
	}
	return nil
}

// CheckCancelled 透传注入的取消检查
func (c *ReduceContext) CheckCancelled() error {
	if c.checkCancel == nil {
		return nil
	}
	return c.checkCancel()
}

// Stats 返回归并阶段的运行指标
func (c *ReduceContext) Stats() map[string]interface{} {
	return map[string]interface{}{
		"buckets_consumed": c.bucketsConsumed.Count(),
		"reduce_count":     c.reduceTimer.Count(),
		"reduce_mean_ns":   c.reduceTimer.Mean(),
	}
}
