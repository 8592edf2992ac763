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
	"math"

	"github.com/lynxsearch/lynxdb/index"
)

// Explanation 评分解释树
type Explanation struct {
	Value       float64        `json:"value"`
	Description string         `json:"description"`
	Details     []*Explanation `json:"details,omitempty"`
}

// ExplainableQuery 能输出逐项评分解释的查询
type ExplainableQuery interface {
	Explain(snap *index.Snapshot, ord uint32) (*Explanation, error)
}

// Explain 生成某文档的评分解释
// 查询自身支持解释时走逐项分解，否则退化为单节点
func Explain(q Query, snap *index.Snapshot, ord uint32) (*Explanation, error) {
	if eq, ok := q.(ExplainableQuery); ok {
		return eq.Explain(snap, ord)
	}
	score, err := q.Score(snap, ord)
	if err != nil {
		return nil, err
	}
	return &Explanation{Value: score, Description: q.String()}, nil
}

// bm25IDF 逆文档频率，平滑避免负值
func bm25IDF(docCount, docFreq uint64) float64 {
	n := float64(docFreq)
	total := float64(docCount)
	return math.Log(1 + (total-n+0.5)/(n+0.5))
}

// bm25TF 词频饱和项，不做文档长度归一
func bm25TF(freq uint64, k1 float64) float64 {
	tf := float64(freq)
	return tf * (k1 + 1) / (tf + k1)
}
