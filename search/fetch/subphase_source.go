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
	"sort"
	"strings"

	"github.com/lynxsearch/lynxdb/index"
	"github.com/lynxsearch/lynxdb/mapping"
	"github.com/lynxsearch/lynxdb/search"
)

// SourceSubPhase 把（可能裁剪过的）_source 挂到命中上
type SourceSubPhase struct{}

// Name 实现 SubPhase 接口
func (*SourceSubPhase) Name() string { return "source" }

// Processor 实现 SubPhase 接口，请求明确关掉 _source 时不参与
func (*SourceSubPhase) Processor(sc *search.SearchContext) (Processor, error) {
	sel := sc.Request.Source
	if sel != nil && !sel.Fetch {
		return nil, nil
	}
	var includes, excludes []string
	if sel != nil {
		includes, excludes = sel.Includes, sel.Excludes
	}
	return &sourceProcessor{includes: includes, excludes: excludes}, nil
}

type sourceProcessor struct {
	includes []string
	excludes []string
}

func (p *sourceProcessor) StoredFieldsSpec() StoredFieldsSpec {
	return StoredFieldsSpec{RequiresSource: true, RequiresMetadata: true}
}

func (p *sourceProcessor) SetNextReader(*index.SegmentSnapshot) error { return nil }

func (p *sourceProcessor) Process(hc *HitContext) error {
	src, err := hc.Source()
	if err != nil {
		return err
	}
	if len(p.includes) == 0 && len(p.excludes) == 0 {
		hc.Hit.Source = src
		return nil
	}
	hc.Hit.Source = filterSource(src, p.includes, p.excludes)
	return nil
}

// filterSource 按 include/exclude 模式裁剪源树，模式支持 * 与 ? 通配
// exclude 优先；include 命中的子树整体保留（子树内仍做 exclude）；
// 路径只是某个 include 的前缀时继续下钻。裁剪结果永不为 nil
func filterSource(src map[string]interface{}, includes, excludes []string) map[string]interface{} {
	rv := filterMap(src, "", includes, excludes, len(includes) == 0)
	if rv == nil {
		return map[string]interface{}{}
	}
	return rv
}

func filterMap(m map[string]interface{}, prefix string, includes, excludes []string, included bool) map[string]interface{} {
	var rv map[string]interface{}
	for k, v := range m {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if matchesAny(excludes, path) {
			continue
		}
		keep := included || matchesAny(includes, path)
		if !keep && !prefixOfAny(includes, path) {
			continue
		}
		out, ok := filterValue(v, path, includes, excludes, keep)
		if !ok {
			continue
		}
		if rv == nil {
			rv = make(map[string]interface{})
		}
		rv[k] = out
	}
	return rv
}

func filterValue(v interface{}, path string, includes, excludes []string, included bool) (interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		sub := filterMap(t, path, includes, excludes, included)
		if sub == nil {
			return nil, false
		}
		return sub, true
	case []interface{}:
		var arr []interface{}
		for _, el := range t {
			if out, ok := filterValue(el, path, includes, excludes, included); ok {
				arr = append(arr, out)
			}
		}
		if arr == nil {
			return nil, false
		}
		return arr, true
	default:
		// 标量只有被纳入时保留，前缀下钻到标量说明没命中
		if !included {
			return nil, false
		}
		return v, true
	}
}

func matchesAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if pattern == path || mapping.SimpleMatch(pattern, path) {
			return true
		}
	}
	return false
}

func prefixOfAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if strings.HasPrefix(pattern, path+".") {
			return true
		}
	}
	return false
}

// StoredFieldsSubPhase 把请求的存储字段投影到命中的 fields 上
type StoredFieldsSubPhase struct{}

// Name 实现 SubPhase 接口
func (*StoredFieldsSubPhase) Name() string { return "stored_fields" }

// Processor 实现 SubPhase 接口
func (*StoredFieldsSubPhase) Processor(sc *search.SearchContext) (Processor, error) {
	if len(sc.Request.StoredFields) == 0 {
		return nil, nil
	}
	return &storedFieldsProcessor{names: sc.Request.StoredFields}, nil
}

type storedFieldsProcessor struct {
	names []string
}

func (p *storedFieldsProcessor) StoredFieldsSpec() StoredFieldsSpec {
	return StoredFieldsSpec{RequiresMetadata: true, Fields: p.names}
}

func (p *storedFieldsProcessor) SetNextReader(*index.SegmentSnapshot) error { return nil }

func (p *storedFieldsProcessor) Process(hc *HitContext) error {
	for _, name := range p.names {
		if !mapping.IsSimplePattern(name) {
			if v, ok := hc.Field(name); ok {
				setHitField(hc.Hit, name, v)
			}
			continue
		}
		keys := make([]string, 0, len(hc.fields))
		for k := range hc.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			// 元数据字段不参与通配匹配
			if k == mapping.IDField {
				continue
			}
			if mapping.SimpleMatch(name, k) {
				setHitField(hc.Hit, k, hc.fields[k])
			}
		}
	}
	return nil
}

func setHitField(hit *search.Hit, name string, v interface{}) {
	if hit.Fields == nil {
		hit.Fields = make(map[string][]interface{})
	}
	hit.Fields[name] = asFieldList(v)
}

// asFieldList 字段值统一成列表形式，与存储侧的多值语义一致
func asFieldList(v interface{}) []interface{} {
	if l, ok := v.([]interface{}); ok {
		return l
	}
	return []interface{}{v}
}
