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
	"encoding/json"
	"fmt"
	"sort"

	"github.com/lynxsearch/lynxdb/script"
	"github.com/lynxsearch/lynxdb/search"
)

// SearchRequest ES _search 请求体
// Size 用指针区分"未设置"与显式 0，后者是 count-only 语义
type SearchRequest struct {
	Query          map[string]interface{}            `json:"query"`
	From           int                               `json:"from"`
	Size           *int                              `json:"size"`
	Sort           []interface{}                     `json:"sort"`
	Source         interface{}                       `json:"_source"`
	StoredFields   []string                          `json:"stored_fields"`
	ScriptFields   map[string]interface{}            `json:"script_fields"`
	Highlight      map[string]interface{}            `json:"highlight"`
	Aggregations   map[string]map[string]interface{} `json:"-"`
	Explain        bool                              `json:"explain"`
	TerminateAfter int                               `json:"terminate_after"`
}

// searchRequestRaw 兼容 aggs 与 aggregations 两种写法的中间结构
type searchRequestRaw struct {
	Query          map[string]interface{}            `json:"query"`
	From           int                               `json:"from"`
	Size           *int                              `json:"size"`
	Sort           []interface{}                     `json:"sort"`
	Source         interface{}                       `json:"_source"`
	StoredFields   []string                          `json:"stored_fields"`
	ScriptFields   map[string]interface{}            `json:"script_fields"`
	Highlight      map[string]interface{}            `json:"highlight"`
	Aggs           map[string]map[string]interface{} `json:"aggs"`
	Aggregations   map[string]map[string]interface{} `json:"aggregations"`
	Explain        bool                              `json:"explain"`
	TerminateAfter int                               `json:"terminate_after"`
}

// UnmarshalJSON 两个聚合键都写时 aggregations 优先
func (r *SearchRequest) UnmarshalJSON(data []byte) error {
	var raw searchRequestRaw
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Query = raw.Query
	r.From = raw.From
	r.Size = raw.Size
	r.Sort = raw.Sort
	r.Source = raw.Source
	r.StoredFields = raw.StoredFields
	r.ScriptFields = raw.ScriptFields
	r.Highlight = raw.Highlight
	r.Explain = raw.Explain
	r.TerminateAfter = raw.TerminateAfter
	r.Aggregations = raw.Aggregations
	if r.Aggregations == nil {
		r.Aggregations = raw.Aggs
	}
	return nil
}

// ParseSearchRequest 解析 _search 请求体 JSON
func ParseSearchRequest(data []byte) (*SearchRequest, error) {
	var req SearchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse search request: %w", err)
	}
	return &req, nil
}

// Convert 把 ES 请求转换成引擎请求
func (r *SearchRequest) Convert(p *QueryParser) (*search.Request, error) {
	req := &search.Request{
		From:           r.From,
		Size:           -1,
		TerminateAfter: r.TerminateAfter,
		StoredFields:   r.StoredFields,
		Explain:        r.Explain,
	}
	if r.Size != nil {
		req.Size = *r.Size
	}

	if r.Query != nil {
		builder, err := p.Parse(r.Query)
		if err != nil {
			return nil, err
		}
		req.Query = builder
	}

	selector, err := convertSource(r.Source)
	if err != nil {
		return nil, err
	}
	req.Source = selector

	fields, err := convertScriptFields(r.ScriptFields)
	if err != nil {
		return nil, err
	}
	req.ScriptFields = fields

	highlight, err := convertHighlight(r.Highlight)
	if err != nil {
		return nil, err
	}
	req.Highlight = highlight

	scriptSort, err := convertSort(r.Sort)
	if err != nil {
		return nil, err
	}
	req.ScriptSort = scriptSort

	aggs, err := convertAggregations(r.Aggregations)
	if err != nil {
		return nil, err
	}
	req.Aggregations = aggs

	return req, nil
}

// convertSource 解析 _source 的四种形式：布尔、单字段、字段数组、includes/excludes 对象
func convertSource(raw interface{}) (*search.SourceSelector, error) {
	if raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case bool:
		return &search.SourceSelector{Fetch: v}, nil
	case string:
		return &search.SourceSelector{Fetch: true, Includes: []string{v}}, nil
	case []interface{}:
		includes, err := toStringSlice(v)
		if err != nil {
			return nil, fmt.Errorf("invalid _source: %w", err)
		}
		return &search.SourceSelector{Fetch: true, Includes: includes}, nil
	case map[string]interface{}:
		selector := &search.SourceSelector{Fetch: true}
		if inc, ok := v["includes"]; ok {
			includes, err := toStringList(inc)
			if err != nil {
				return nil, fmt.Errorf("invalid _source includes: %w", err)
			}
			selector.Includes = includes
		}
		if exc, ok := v["excludes"]; ok {
			excludes, err := toStringList(exc)
			if err != nil {
				return nil, fmt.Errorf("invalid _source excludes: %w", err)
			}
			selector.Excludes = excludes
		}
		return selector, nil
	default:
		return nil, fmt.Errorf("_source must be a boolean, string, array or object, got %T", raw)
	}
}

// convertScriptFields 解析 script_fields，按字段名排序保证顺序稳定
func convertScriptFields(raw map[string]interface{}) ([]search.ScriptField, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]search.ScriptField, 0, len(names))
	for _, name := range names {
		body, ok := raw[name].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("script field [%s] must be an object", name)
		}
		scriptData, ok := body["script"]
		if !ok {
			return nil, fmt.Errorf("script field [%s] requires a 'script'", name)
		}
		s, err := script.ParseScript(scriptData)
		if err != nil {
			return nil, fmt.Errorf("invalid script field [%s]: %w", name, err)
		}
		fields = append(fields, search.ScriptField{Name: name, Script: s})
	}
	return fields, nil
}

// convertHighlight 解析 highlight 请求块
func convertHighlight(raw map[string]interface{}) (*search.HighlightSpec, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	fieldsRaw, ok := raw["fields"].(map[string]interface{})
	if !ok || len(fieldsRaw) == 0 {
		return nil, fmt.Errorf("highlight requires a 'fields' object")
	}
	fields := make([]string, 0, len(fieldsRaw))
	for field := range fieldsRaw {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	spec := &search.HighlightSpec{Fields: fields}
	if tags, ok := raw["pre_tags"].([]interface{}); ok && len(tags) > 0 {
		if tag, ok := tags[0].(string); ok {
			spec.PreTag = tag
		}
	}
	if tags, ok := raw["post_tags"].([]interface{}); ok && len(tags) > 0 {
		if tag, ok := tags[0].(string); ok {
			spec.PostTag = tag
		}
	}
	if v, ok := raw["fragment_size"]; ok {
		size, err := toFloat64(v)
		if err != nil {
			return nil, fmt.Errorf("invalid fragment_size: %w", err)
		}
		spec.FragmentSize = int(size)
	}
	if v, ok := raw["number_of_fragments"]; ok {
		n, err := toFloat64(v)
		if err != nil {
			return nil, fmt.Errorf("invalid number_of_fragments: %w", err)
		}
		spec.NumFragments = int(n)
	}
	return spec, nil
}

// convertSort 解析 sort 数组
// 只支持 _score（默认行为，忽略）与 _script 数值排序；字段排序暂不支持
func convertSort(raw []interface{}) (*search.ScriptSort, error) {
	var scriptSort *search.ScriptSort
	for _, entry := range raw {
		switch v := entry.(type) {
		case string:
			if v == "_score" {
				continue
			}
			return nil, fmt.Errorf("unsupported sort field: %s", v)
		case map[string]interface{}:
			if len(v) != 1 {
				return nil, fmt.Errorf("sort entry must contain exactly one key")
			}
			for key, body := range v {
				switch key {
				case "_score":
					continue
				case "_script":
					if scriptSort != nil {
						return nil, fmt.Errorf("only one _script sort is supported")
					}
					parsed, err := convertScriptSort(body)
					if err != nil {
						return nil, err
					}
					scriptSort = parsed
				default:
					return nil, fmt.Errorf("unsupported sort field: %s", key)
				}
			}
		default:
			return nil, fmt.Errorf("sort entry must be a string or an object, got %T", entry)
		}
	}
	return scriptSort, nil
}

func convertScriptSort(body interface{}) (*search.ScriptSort, error) {
	m, ok := body.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("_script sort must be an object")
	}
	scriptData, ok := m["script"]
	if !ok {
		return nil, fmt.Errorf("_script sort requires a 'script'")
	}
	s, err := script.ParseScript(scriptData)
	if err != nil {
		return nil, fmt.Errorf("invalid _script sort: %w", err)
	}
	if t, ok := m["type"].(string); ok && t != "number" {
		return nil, fmt.Errorf("unsupported _script sort type: %s", t)
	}
	desc := false
	if order, ok := m["order"].(string); ok {
		switch order {
		case "asc":
		case "desc":
			desc = true
		default:
			return nil, fmt.Errorf("invalid sort order: %s", order)
		}
	}
	return &search.ScriptSort{Script: s, Desc: desc}, nil
}

// convertAggregations 解析聚合请求，当前只支持 terms，不支持子聚合
func convertAggregations(raw map[string]map[string]interface{}) ([]*search.TermsAggSpec, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	specs := make([]*search.TermsAggSpec, 0, len(names))
	for _, name := range names {
		body := raw[name]
		if _, ok := body["aggs"]; ok {
			return nil, fmt.Errorf("sub-aggregations are not supported in aggregation [%s]", name)
		}
		if _, ok := body["aggregations"]; ok {
			return nil, fmt.Errorf("sub-aggregations are not supported in aggregation [%s]", name)
		}
		termsRaw, ok := body["terms"]
		if !ok {
			types := make([]string, 0, len(body))
			for t := range body {
				types = append(types, t)
			}
			sort.Strings(types)
			return nil, fmt.Errorf("unsupported aggregation type in [%s]: %v", name, types)
		}
		termsMap, ok := termsRaw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("terms aggregation [%s] must be an object", name)
		}
		field, ok := termsMap["field"].(string)
		if !ok {
			return nil, fmt.Errorf("terms aggregation [%s] requires a 'field' string", name)
		}
		spec := &search.TermsAggSpec{Name: name, Field: field}
		if v, ok := termsMap["size"]; ok {
			size, err := toFloat64(v)
			if err != nil {
				return nil, fmt.Errorf("invalid size in aggregation [%s]: %w", name, err)
			}
			spec.Size = int(size)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func toStringSlice(items []interface{}) ([]string, error) {
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %T", item)
		}
		out = append(out, s)
	}
	return out, nil
}

// toStringList 接受单个字符串或字符串数组
func toStringList(raw interface{}) ([]string, error) {
	switch v := raw.(type) {
	case string:
		return []string{v}, nil
	case []interface{}:
		return toStringSlice(v)
	default:
		return nil, fmt.Errorf("expected a string or an array, got %T", raw)
	}
}
