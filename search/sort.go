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
	"github.com/lynxsearch/lynxdb/script"
)

// SortScript 脚本排序器
//
// 排序值按文档序号缓存，同一文档在比较中只执行一次脚本。
// 脚本编译走上下文的确定性检查，非确定性脚本会让本次查询失去缓存资格。
type SortScript struct {
	Desc bool

	src     *script.Script
	factory *script.Factory
	lookup  *Lookup
	values  map[uint32]float64
}

// NewSortScript 编译排序脚本并绑定当前快照
func NewSortScript(c *ExecutionContext, spec *ScriptSort) (*SortScript, error) {
	factory, err := c.CompileScript(spec.Script, script.ContextScore)
	if err != nil {
		return nil, err
	}
	return &SortScript{
		Desc:    spec.Desc,
		src:     spec.Script,
		factory: factory,
		lookup:  c.Lookup(),
		values:  make(map[uint32]float64),
	}, nil
}

// Value 计算某文档的排序值，脚本失败按 0 处理
func (s *SortScript) Value(ord uint32, score float64) float64 {
	if v, ok := s.values[ord]; ok {
		return v
	}
	s.lookup.MoveTo(ord)
	fields, err := s.lookup.Fields().Fields()
	if err != nil {
		return 0
	}
	source, err := s.lookup.Source().Source()
	if err != nil {
		return 0
	}
	sctx := s.src.NewContext(fields, source)
	sctx.Score = score
	v, err := s.factory.ExecuteScore(sctx)
	if err != nil {
		return 0
	}
	s.values[ord] = v
	return v
}

// Less 判断文档 a 是否应排在文档 b 之前，排序值相同时退回序号
func (s *SortScript) Less(a, b uint32, scoreA, scoreB float64) bool {
	va := s.Value(a, scoreA)
	vb := s.Value(b, scoreB)
	if va == vb {
		return a < b
	}
	if s.Desc {
		return va > vb
	}
	return va < vb
}
