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

package aggregations_test

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lynxsearch/lynxdb/search/aggregations"
)

func termsBetter(a, b *aggregations.DelayedBucket[*aggregations.StringTermsBucket]) bool {
	ca, cb := a.DocCount(), b.DocCount()
	if ca != cb {
		return ca > cb
	}
	return a.CompareKey(b) < 0
}

func singleBucket(key string, count int64, reduceCalls *int) *aggregations.DelayedBucket[*aggregations.StringTermsBucket] {
	return aggregations.NewDelayedBucket(
		[]*aggregations.StringTermsBucket{{Key: key, Count: count}},
		func(_ *aggregations.ReduceContext, raw []*aggregations.StringTermsBucket) (*aggregations.StringTermsBucket, error) {
			if reduceCalls != nil {
				*reduceCalls++
			}
			out := &aggregations.StringTermsBucket{Key: raw[0].Key}
			for _, b := range raw {
				out.Count += b.Count
			}
			return out, nil
		})
}

func TestTopBucketBuilderKeepsBest(t *testing.T) {
	const total = 25
	const size = 10

	counts := rand.New(rand.NewSource(7)).Perm(total)
	var sunk []string
	reduceCalls := 0

	builder, err := aggregations.NewTopBucketBuilder(size, termsBetter,
		func(d *aggregations.DelayedBucket[*aggregations.StringTermsBucket]) {
			sunk = append(sunk, fmt.Sprintf("t%02d", d.DocCount()))
		})
	if err != nil {
		t.Fatalf("Failed to create builder: %v", err)
	}
	for _, c := range counts {
		count := int64(c + 1) // 1..25
		builder.Add(singleBucket(fmt.Sprintf("t%02d", count), count, &reduceCalls))
	}

	got, err := builder.Build(nil)
	require.NoError(t, err)
	require.Len(t, got, size)

	// 入选的是计数 25..16，按比较器顺序排列
	for i, b := range got {
		assert.Equal(t, int64(total-i), b.Count, "bucket %d", i)
	}
	// 只有入选者被归并过
	assert.Equal(t, size, reduceCalls)

	// 落选的 15 个每个恰好进一次 sink
	require.Len(t, sunk, total-size)
	seen := make(map[string]int)
	for _, k := range sunk {
		seen[k]++
	}
	for c := 1; c <= total-size; c++ {
		assert.Equal(t, 1, seen[fmt.Sprintf("t%02d", c)], "count %d", c)
	}
}

func TestTopBucketBuilderEvictionOrder(t *testing.T) {
	var sunk []string
	builder, err := aggregations.NewTopBucketBuilder(1, termsBetter,
		func(d *aggregations.DelayedBucket[*aggregations.StringTermsBucket]) {
			b, rerr := d.Reduced(nil)
			require.NoError(t, rerr)
			sunk = append(sunk, b.Key)
		})
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		builder.Add(singleBucket(fmt.Sprintf("%04d", i), 1, nil))
	}

	got, err := builder.Build(nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "0000", got[0].Key)

	require.Len(t, sunk, 999)
	for i, key := range sunk {
		require.Equal(t, fmt.Sprintf("%04d", i+1), key, "eviction %d", i)
	}
}

func TestTopBucketBuilderRejectsBadSize(t *testing.T) {
	for _, size := range []int{0, -3} {
		if _, err := aggregations.NewTopBucketBuilder[*aggregations.StringTermsBucket](size, termsBetter, nil); err == nil {
			t.Fatalf("Expected error for size %d", size)
		}
	}
}

func TestDelayedBucketReducesOnce(t *testing.T) {
	reduceCalls := 0
	raw := []*aggregations.StringTermsBucket{
		{Key: "go", Count: 2},
		{Key: "go", Count: 3},
		{Key: "go", Count: 5},
	}
	d := aggregations.NewDelayedBucket(raw,
		func(_ *aggregations.ReduceContext, in []*aggregations.StringTermsBucket) (*aggregations.StringTermsBucket, error) {
			reduceCalls++
			out := &aggregations.StringTermsBucket{Key: in[0].Key}
			for _, b := range in {
				out.Count += b.Count
			}
			return out, nil
		})
	other := singleBucket("rust", 100, nil)

	// 键序比较和计数都不触发归并
	assert.Equal(t, -1, d.CompareKey(other))
	assert.Equal(t, int64(10), d.DocCount())
	assert.Equal(t, 0, reduceCalls)

	first, err := d.Reduced(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(10), first.Count)
	assert.Equal(t, 1, reduceCalls)

	again, err := d.Reduced(nil)
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 1, reduceCalls)
	assert.Equal(t, int64(10), d.DocCount())
}

func TestReduceStringTerms(t *testing.T) {
	shards := []*aggregations.StringTermsShard{
		{Name: "langs", Field: "lang", Buckets: []*aggregations.StringTermsBucket{
			{Key: "go", Count: 5}, {Key: "rust", Count: 3}, {Key: "zig", Count: 1},
		}},
		{Name: "langs", Field: "lang", Buckets: []*aggregations.StringTermsBucket{
			{Key: "go", Count: 2}, {Key: "java", Count: 4},
		}},
		{Name: "langs", Field: "lang", Buckets: []*aggregations.StringTermsBucket{
			{Key: "rust", Count: 2}, {Key: "zig", Count: 2}, {Key: "c", Count: 1},
		}},
	}

	got, err := aggregations.ReduceStringTerms(nil, shards, 2)
	require.NoError(t, err)
	require.Len(t, got.Buckets, 2)
	assert.Equal(t, "go", got.Buckets[0].Key)
	assert.Equal(t, int64(7), got.Buckets[0].Count)
	assert.Equal(t, "rust", got.Buckets[1].Key)
	assert.Equal(t, int64(5), got.Buckets[1].Count)
	// java(4) + zig(3) + c(1)
	assert.Equal(t, int64(8), got.SumOtherDocCount)
	assert.Equal(t, int64(0), got.DocCountErrorUpperBound)
}

func TestReduceStringTermsTieBreaksByKey(t *testing.T) {
	shards := []*aggregations.StringTermsShard{
		{Name: "tags", Field: "tag", Buckets: []*aggregations.StringTermsBucket{
			{Key: "b", Count: 2}, {Key: "c", Count: 2}, {Key: "a", Count: 2},
		}},
	}
	got, err := aggregations.ReduceStringTerms(nil, shards, 2)
	require.NoError(t, err)
	require.Len(t, got.Buckets, 2)
	assert.Equal(t, "a", got.Buckets[0].Key)
	assert.Equal(t, "b", got.Buckets[1].Key)
	assert.Equal(t, int64(2), got.SumOtherDocCount)
}

func TestReduceStringTermsMaxBuckets(t *testing.T) {
	buckets := make([]*aggregations.StringTermsBucket, 0, 5)
	for i := 0; i < 5; i++ {
		buckets = append(buckets, &aggregations.StringTermsBucket{Key: fmt.Sprintf("k%d", i), Count: 1})
	}
	shards := []*aggregations.StringTermsShard{{Name: "t", Field: "f", Buckets: buckets}}

	ctx := aggregations.NewReduceContext(3, nil)
	_, err := aggregations.ReduceStringTerms(ctx, shards, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many buckets")
}

func TestReduceStringTermsCancellation(t *testing.T) {
	buckets := make([]*aggregations.StringTermsBucket, 0, 10)
	for i := 0; i < 10; i++ {
		buckets = append(buckets, &aggregations.StringTermsBucket{Key: fmt.Sprintf("k%d", i), Count: 1})
	}
	shards := []*aggregations.StringTermsShard{{Name: "t", Field: "f", Buckets: buckets}}

	cancelErr := errors.New("search cancelled: timeout")
	calls := 0
	ctx := aggregations.NewReduceContext(0, func() error {
		calls++
		if calls > 3 {
			return cancelErr
		}
		return nil
	})
	_, err := aggregations.ReduceStringTerms(ctx, shards, 5)
	require.ErrorIs(t, err, cancelErr)
}

func TestReduceContextStats(t *testing.T) {
	ctx := aggregations.NewReduceContext(0, nil)
	require.NoError(t, ctx.ConsumeBucketsAndMaybeBreak(4))
	stats := ctx.Stats()
	assert.Equal(t, int64(4), stats["buckets_consumed"])
}
