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

package es

import (
	"github.com/lynxsearch/lynxdb/nested"
	"github.com/lynxsearch/lynxdb/search"
	"github.com/lynxsearch/lynxdb/search/aggregations"
)

// SearchResponse ES _search 响应体
type SearchResponse struct {
	Took            int64                                      `json:"took"`
	TimedOut        bool                                       `json:"timed_out"`
	TerminatedEarly bool                                       `json:"terminated_early,omitempty"`
	Shards          ShardsInfo                                 `json:"_shards"`
	Hits            HitsInfo                                   `json:"hits"`
	Aggregations    map[string]*aggregations.StringTermsResult `json:"aggregations,omitempty"`
}

// ShardsInfo 分片执行统计
type ShardsInfo struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// HitsInfo 命中块
type HitsInfo struct {
	Total    TotalInfo `json:"total"`
	MaxScore *float64  `json:"max_score"`
	Hits     []Hit     `json:"hits"`
}

// TotalInfo 总命中数，Relation 固定为 eq
type TotalInfo struct {
	Value    int64  `json:"value"`
	Relation string `json:"relation"`
}

// Hit 单条命中
// Score 用指针表达脚本排序下的 null 分值
type Hit struct {
	Index          string                   `json:"_index"`
	ID             string                   `json:"_id"`
	Score          *float64                 `json:"_score"`
	Nested         *nested.Identity         `json:"_nested,omitempty"`
	Source         map[string]interface{}   `json:"_source,omitempty"`
	Fields         map[string][]interface{} `json:"fields,omitempty"`
	Highlight      map[string][]string      `json:"highlight,omitempty"`
	Explanation    *search.Explanation      `json:"_explanation,omitempty"`
	Sort           []interface{}            `json:"sort,omitempty"`
	MatchedQueries []string                 `json:"matched_queries,omitempty"`
}

// NewSearchResponse 把引擎结果组装成 ES 线格式
// 脚本排序时 ES 不回传分值：max_score 为 null，每条命中 _score 为 null
func NewSearchResponse(indexName string, req *search.Request, rv *search.Response) *SearchResponse {
	scoreless := req != nil && req.ScriptSort != nil

	hits := make([]Hit, 0, len(rv.Hits))
	for _, h := range rv.Hits {
		hit := Hit{
			Index:          indexName,
			ID:             h.ID,
			Nested:         h.Nested,
			Source:         h.Source,
			Fields:         h.Fields,
			Highlight:      h.Highlight,
			Explanation:    h.Explanation,
			Sort:           h.Sort,
			MatchedQueries: h.MatchedQueries,
		}
		if !scoreless {
			score := h.Score
			hit.Score = &score
		}
		hits = append(hits, hit)
	}

	var maxScore *float64
	if !scoreless && len(rv.Hits) > 0 {
		ms := rv.MaxScore
		maxScore = &ms
	}

	resp := &SearchResponse{
		Took:            rv.Took.Milliseconds(),
		TerminatedEarly: rv.TerminatedEarly,
		Shards: ShardsInfo{
			Total:      rv.Shards.Total,
			Successful: rv.Shards.Successful,
			Failed:     rv.Shards.Failed,
		},
		Hits: HitsInfo{
			Total:    TotalInfo{Value: int64(rv.TotalHits), Relation: "eq"},
			MaxScore: maxScore,
			Hits:     hits,
		},
	}
	if len(rv.Aggregations) > 0 {
		resp.Aggregations = rv.Aggregations
	}
	return resp
}
