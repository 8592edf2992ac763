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
	"github.com/lynxsearch/lynxdb/mapping"
	"github.com/lynxsearch/lynxdb/script"
)

// DefaultSize 未指定时的返回条数
const DefaultSize = 10

// Request 一次查询请求
type Request struct {
	Query          QueryBuilder
	Size           int // 负数用默认值，0 表示只要计数
	From           int
	TerminateAfter int // 每分片最多采集的命中数，0 不限

	StoredFields []string
	Source       *SourceSelector
	ScriptFields []ScriptField
	Explain      bool
	Highlight    *HighlightSpec
	Aggregations []*TermsAggSpec
	ScriptSort   *ScriptSort

	// 请求级 runtime 字段与字段可见性控制
	RuntimeFields          map[string]*mapping.FieldType
	AllowedFields          func(string) bool
	MapUnmappedFieldAsText bool
}

// EffectiveSize 返回归一化后的条数
func (r *Request) EffectiveSize() int {
	if r.Size < 0 {
		return DefaultSize
	}
	return r.Size
}

// SourceSelector 控制 _source 的返回与过滤
// nil 选择器等价于完整返回
type SourceSelector struct {
	Fetch    bool
	Includes []string
	Excludes []string
}

// ScriptField 请求级脚本字段
type ScriptField struct {
	Name   string
	Script *script.Script
}

// HighlightSpec 高亮参数
type HighlightSpec struct {
	Fields       []string
	PreTag       string // 默认 <em>
	PostTag      string // 默认 </em>
	FragmentSize int    // 默认 100
	NumFragments int    // 默认 5
}

// TermsAggSpec 词项聚合请求
type TermsAggSpec struct {
	Name  string
	Field string
	Size  int // 默认 10
}

// ScriptSort 脚本排序请求
type ScriptSort struct {
	Script *script.Script
	Desc   bool
}
