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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lynxsearch/lynxdb/index"
)

// Lookup 查询期文档读取器，fetch 与脚本共享
// 同一时刻只指向一篇文档，随取回遍历推进；读取全部惰性
type Lookup struct {
	snap   *index.Snapshot
	source *SourceLookup
	fields *FieldLookup
}

// NewLookup 构建文档读取器
func NewLookup(snap *index.Snapshot) *Lookup {
	return &Lookup{
		snap:   snap,
		source: &SourceLookup{snap: snap},
		fields: &FieldLookup{snap: snap},
	}
}

// MoveTo 切换当前文档，清掉上一篇的缓存
func (l *Lookup) MoveTo(ord uint32) {
	l.source.moveTo(ord)
	l.fields.moveTo(ord)
}

// Source 返回当前文档的 _source 读取器
func (l *Lookup) Source() *SourceLookup {
	return l.source
}

// Fields 返回当前文档的存储字段读取器
func (l *Lookup) Fields() *FieldLookup {
	return l.fields
}

// SourceLookup 惰性读取当前文档的 _source
type SourceLookup struct {
	snap   *index.Snapshot
	ord    uint32
	loaded bool
	source map[string]interface{}
}

func (s *SourceLookup) moveTo(ord uint32) {
	// 同一文档重复定位保留缓存，快照不可变所以内容不会变
	if s.loaded && s.ord == ord {
		return
	}
	s.ord = ord
	s.loaded = false
	s.source = nil
}

// SetSource 直接灌入已解析的 _source，避免二次读盘
func (s *SourceLookup) SetSource(source map[string]interface{}) {
	s.source = source
	s.loaded = true
}

// Source 返回当前文档解析后的 _source，首次访问时读取
// 没有独立 _source 的文档（嵌套子文档）返回空映射
func (s *SourceLookup) Source() (map[string]interface{}, error) {
	if s.loaded {
		return s.source, nil
	}
	raw, err := s.snap.SourceBytes(s.ord)
	if err != nil {
		return nil, fmt.Errorf("failed to load source for doc %d: %w", s.ord, err)
	}
	s.loaded = true
	if raw == nil {
		s.source = map[string]interface{}{}
		return s.source, nil
	}
	if err := json.Unmarshal(raw, &s.source); err != nil {
		return nil, fmt.Errorf("failed to parse source for doc %d: %w", s.ord, err)
	}
	return s.source, nil
}

// Extract 沿点分路径从 _source 取值
func (s *SourceLookup) Extract(path string) (interface{}, bool, error) {
	source, err := s.Source()
	if err != nil {
		return nil, false, err
	}
	var cur interface{} = source
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false, nil
		}
		cur, ok = m[part]
		if !ok {
			return nil, false, nil
		}
	}
	return cur, true, nil
}

// FieldLookup 惰性读取当前文档的存储字段
type FieldLookup struct {
	snap   *index.Snapshot
	ord    uint32
	loaded bool
	fields map[string]interface{}
}

func (f *FieldLookup) moveTo(ord uint32) {
	if f.loaded && f.ord == ord {
		return
	}
	f.ord = ord
	f.loaded = false
	f.fields = nil
}

// Fields 返回当前文档的全部存储字段，首次访问时读取
func (f *FieldLookup) Fields() (map[string]interface{}, error) {
	if f.loaded {
		return f.fields, nil
	}
	fields, err := f.snap.StoredFields(f.ord)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored fields for doc %d: %w", f.ord, err)
	}
	f.loaded = true
	f.fields = fields
	return f.fields, nil
}

// Field 取单个存储字段的值
func (f *FieldLookup) Field(name string) (interface{}, bool, error) {
	fields, err := f.Fields()
	if err != nil {
		return nil, false, err
	}
	v, ok := fields[name]
	return v, ok, nil
}
