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
	"github.com/lynxsearch/lynxdb/nested"
	"github.com/lynxsearch/lynxdb/search/aggregations"
)

// Hit 单条命中
//
// Source 为 nil 表示没有取回 _source，空 map 表示取回了但裁剪后为空，
// 两者在响应里分别渲染为缺省与 {}。
type Hit struct {
	ID             string                   `json:"_id"`
	Ord            uint32                   `json:"-"`
	Score          float64                  `json:"_score"`
	Source         map[string]interface{}   `json:"_source,omitempty"`
	Fields         map[string][]interface{} `json:"fields,omitempty"`
	Nested         *nested.Identity         `json:"_nested,omitempty"`
	Explanation    *Explanation             `json:"_explanation,omitempty"`
	Highlight      map[string][]string      `json:"highlight,omitempty"`
	MatchedQueries []string                 `json:"matched_queries,omitempty"`
	Sort           []interface{}            `json:"sort,omitempty"`
	Shard          int                      `json:"-"`
}

// ShardResult 单分片的最终结果
type ShardResult struct {
	Shard        int
	TotalHits    uint64
	MaxScore     float64
	Hits         []*Hit
	Aggregations map[string]*aggregations.StringTermsShard
	Cacheable    bool // 冻结协议的产物，供上层缓存决策
}
