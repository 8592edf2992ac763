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

package search

import (
	"fmt"
	"sync"

	"github.com/lynxsearch/lynxdb/index"
	"github.com/lynxsearch/lynxdb/script"
	"github.com/lynxsearch/lynxdb/search/aggregations"
)

// SearchContext 单分片一次查询的执行状态
//
// 查询阶段填充待取回的序号与得分，取回阶段消费它们并一次性写入结果。
// Cancel 可以从其他 goroutine 调用，其余字段只在分片自己的 goroutine 里使用。
type SearchContext struct {
	RequestID string
	Shard     int
	Request   *Request
	Exec      *ExecutionContext
	Snapshot  *index.Snapshot

	// 查询阶段的产物
	// DocsToFetch 保持排名顺序，取回阶段内部按段升序访问后再还原
	Query        Query
	Named        map[string]Query
	DocsToFetch  []uint32
	DocScores    map[uint32]float64
	DocSorts     map[uint32][]interface{}
	TotalHits    uint64
	MaxScore     float64
	Aggregations map[string]*aggregations.StringTermsShard

	// 冻结前编译好的脚本字段工厂，按脚本字段名索引
	ScriptFactories map[string]*script.Factory

	mu           sync.Mutex
	cancelled    bool
	cancelReason string
	result       *ShardResult
}

// NewSearchContext 创建分片查询上下文
func NewSearchContext(requestID string, shard int, req *Request, exec *ExecutionContext, snap *index.Snapshot) *SearchContext {
	return &SearchContext{
		RequestID: requestID,
		Shard:     shard,
		Request:   req,
		Exec:      exec,
		Snapshot:  snap,
		DocScores: make(map[uint32]float64),
	}
}

// Cancel 标记本次查询取消，幂等，保留第一次的原因
func (s *SearchContext) Cancel(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return
	}
	s.cancelled = true
	s.cancelReason = reason
}

// CheckCancelled 在执行检查点调用，取消后返回 *SearchCancelledError
func (s *SearchContext) CheckCancelled() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return &SearchCancelledError{Reason: s.cancelReason}
	}
	return nil
}

// SetResult 写入分片结果，只允许写一次
func (s *SearchContext) SetResult(r *ShardResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result != nil {
		return fmt.Errorf("result already set for shard %d", s.Shard)
	}
	s.result = r
	return nil
}

// Result 返回已写入的分片结果，未写入时为 nil
func (s *SearchContext) Result() *ShardResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}
