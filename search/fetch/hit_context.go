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

package fetch

import (
	"encoding/json"
	"fmt"

	"github.com/lynxsearch/lynxdb/index"
	"github.com/lynxsearch/lynxdb/search"
)

// HitContext 单篇文档在子阶段间流转的上下文
//
// 嵌套命中的 Source 是按身份链抽出的最小合成源树，RootOrd 指向
// 所属根文档；根命中两者一致。源读取走惰性单元，只算一次
type HitContext struct {
	Hit       *search.Hit
	Seg       *index.SegmentSnapshot
	LocalOrd  uint32
	GlobalOrd uint32
	RootOrd   uint32

	fields map[string]interface{}
	source *sourceCell
}

// Source 返回本命中视角的 _source，首次访问时加载
func (hc *HitContext) Source() (map[string]interface{}, error) {
	return hc.source.get()
}

// Field 取单个存储字段
func (hc *HitContext) Field(name string) (interface{}, bool) {
	v, ok := hc.fields[name]
	return v, ok
}

// Fields 返回合并加载策略读出的存储字段
func (hc *HitContext) Fields() map[string]interface{} {
	return hc.fields
}

// sourceCell 一次性源加载单元
// 未被索要的单元直接丢弃，不产生任何读取
type sourceCell struct {
	load   func() (map[string]interface{}, error)
	loaded bool
	value  map[string]interface{}
	err    error
}

func newLazyCell(load func() (map[string]interface{}, error)) *sourceCell {
	return &sourceCell{load: load}
}

func newResolvedCell(value map[string]interface{}) *sourceCell {
	return &sourceCell{loaded: true, value: value}
}

func (c *sourceCell) get() (map[string]interface{}, error) {
	if c.loaded {
		return c.value, c.err
	}
	c.loaded = true
	c.value, c.err = c.load()
	c.load = nil
	return c.value, c.err
}

// parseSource 解析原始 _source 字节，nil 给空映射
func parseSource(raw []byte, ord uint32) (map[string]interface{}, error) {
	if raw == nil {
		return map[string]interface{}{}, nil
	}
	var rv map[string]interface{}
	if err := json.Unmarshal(raw, &rv); err != nil {
		return nil, fmt.Errorf("failed to parse source for doc %d: %w", ord, err)
	}
	return rv, nil
}
