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

// Package es 提供 Elasticsearch 兼容的请求解析与响应组装
// 只处理线格式的双向转换，不含任何网络层
package es

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/lynxsearch/lynxdb/script"
	"github.com/lynxsearch/lynxdb/search"
)

// QueryParser ES Query DSL 解析器，把 JSON 查询对象转换成查询构建器
type QueryParser struct{}

// NewQueryParser 创建查询解析器
func NewQueryParser() *QueryParser {
	return &QueryParser{}
}

// Parse 解析一个查询对象
// 按 ES 规范查询对象只允许包含一种查询类型；空对象等价 match_all
func (p *QueryParser) Parse(queryMap map[string]interface{}) (search.QueryBuilder, error) {
	if len(queryMap) == 0 {
		return search.NewMatchAllQuery(), nil
	}
	if len(queryMap) > 1 {
		types := make([]string, 0, len(queryMap))
		for t := range queryMap {
			types = append(types, t)
		}
		sort.Strings(types)
		return nil, fmt.Errorf("query object must contain exactly one query type, found %d: %v", len(queryMap), types)
	}

	for queryType, body := range queryMap {
		switch queryType {
		case "match_all":
			return p.parseMatchAll(body)
		case "match_none":
			return search.NewMatchNoneQuery(), nil
		case "term":
			return p.parseTerm(body)
		case "match":
			return p.parseMatch(body)
		case "bool":
			return p.parseBool(body)
		case "nested":
			return p.parseNested(body)
		case "range":
			return p.parseRange(body)
		case "exists":
			return p.parseExists(body)
		case "script":
			return p.parseScript(body)
		default:
			return nil, fmt.Errorf("unsupported query type: %s", queryType)
		}
	}
	return search.NewMatchAllQuery(), nil
}

// 可选的 boost 与 _name 设置能力，各构建器按需实现
type boostable interface {
	SetBoost(v float64)
}

type nameable interface {
	SetName(name string)
}

// applyOptions 应用查询对象上的通用参数
func (p *QueryParser) applyOptions(b search.QueryBuilder, m map[string]interface{}) error {
	if raw, ok := m["boost"]; ok {
		v, err := toFloat64(raw)
		if err != nil {
			return fmt.Errorf("invalid boost: %w", err)
		}
		if bb, ok := b.(boostable); ok {
			bb.SetBoost(v)
		}
	}
	if raw, ok := m["_name"]; ok {
		name, ok := raw.(string)
		if !ok {
			return fmt.Errorf("_name must be a string, got %T", raw)
		}
		if nb, ok := b.(nameable); ok {
			nb.SetName(name)
		}
	}
	return nil
}

func (p *QueryParser) parseMatchAll(body interface{}) (search.QueryBuilder, error) {
	q := search.NewMatchAllQuery()
	if body == nil {
		return q, nil
	}
	m, ok := body.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("match_all query body must be a map")
	}
	if err := p.applyOptions(q, m); err != nil {
		return nil, err
	}
	return q, nil
}

// parseTerm 解析 term 查询
// 支持 {"field": value} 与 {"field": {"value": v, "boost": b}} 两种形式
func (p *QueryParser) parseTerm(body interface{}) (search.QueryBuilder, error) {
	termMap, ok := body.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("term query body must be a map")
	}
	for field, raw := range termMap {
		if valueMap, ok := raw.(map[string]interface{}); ok {
			value, exists := valueMap["value"]
			if !exists {
				return nil, fmt.Errorf("term query on field [%s] requires a 'value'", field)
			}
			q := search.NewTermQuery(field, value)
			if err := p.applyOptions(q, valueMap); err != nil {
				return nil, err
			}
			return q, nil
		}
		return search.NewTermQuery(field, raw), nil
	}
	return nil, fmt.Errorf("term query must have a field")
}

// parseMatch 解析 match 查询
// 支持 {"field": "text"} 与 {"field": {"query": "text"}} 两种形式
func (p *QueryParser) parseMatch(body interface{}) (search.QueryBuilder, error) {
	matchMap, ok := body.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("match query body must be a map")
	}
	for field, raw := range matchMap {
		switch v := raw.(type) {
		case string:
			return search.NewMatchQuery(field, v), nil
		case map[string]interface{}:
			text, ok := v["query"].(string)
			if !ok {
				return nil, fmt.Errorf("match query on field [%s] requires a 'query' string", field)
			}
			q := search.NewMatchQuery(field, text)
			if err := p.applyOptions(q, v); err != nil {
				return nil, err
			}
			return q, nil
		default:
			return nil, fmt.Errorf("match query on field [%s] must be a string or an object", field)
		}
	}
	return nil, fmt.Errorf("match query must have a field")
}

// parseBool 解析 bool 查询，各子句允许单个对象或数组
func (p *QueryParser) parseBool(body interface{}) (search.QueryBuilder, error) {
	boolMap, ok := body.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("bool query body must be a map")
	}

	q := search.NewBoolQuery()
	clauses := []struct {
		key string
		add func(search.QueryBuilder)
	}{
		{"must", q.AddMust},
		{"filter", q.AddFilter},
		{"should", q.AddShould},
		{"must_not", q.AddMustNot},
	}
	for _, clause := range clauses {
		raw, ok := boolMap[clause.key]
		if !ok {
			continue
		}
		parsed, err := p.parseClause(clause.key, raw)
		if err != nil {
			return nil, err
		}
		for _, sub := range parsed {
			clause.add(sub)
		}
	}

	// 引擎的固定语义就是 ES 的默认值：无 must 时 should 至少命中一个，
	// 有 must 时 should 只参与打分。只接受与之一致的显式取值
	if raw, ok := boolMap["minimum_should_match"]; ok {
		v, err := toFloat64(raw)
		if err != nil || (v != 0 && v != 1) {
			return nil, fmt.Errorf("unsupported minimum_should_match: %v", raw)
		}
	}
	if err := p.applyOptions(q, boolMap); err != nil {
		return nil, err
	}
	return q, nil
}

// parseClause 解析 bool 子句，返回子查询列表
func (p *QueryParser) parseClause(name string, raw interface{}) ([]search.QueryBuilder, error) {
	var items []interface{}
	switch v := raw.(type) {
	case []interface{}:
		items = v
	case map[string]interface{}:
		items = []interface{}{raw}
	default:
		return nil, fmt.Errorf("bool clause [%s] must be an object or an array", name)
	}

	out := make([]search.QueryBuilder, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("bool clause [%s] contains a non-object entry", name)
		}
		sub, err := p.Parse(m)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s clause: %w", name, err)
		}
		out = append(out, sub)
	}
	return out, nil
}

// parseNested 解析 nested 查询
func (p *QueryParser) parseNested(body interface{}) (search.QueryBuilder, error) {
	nestedMap, ok := body.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("nested query body must be a map")
	}
	path, ok := nestedMap["path"].(string)
	if !ok {
		return nil, fmt.Errorf("nested query requires a 'path' string")
	}
	queryMap, ok := nestedMap["query"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("nested query requires a 'query' object")
	}
	inner, err := p.Parse(queryMap)
	if err != nil {
		return nil, fmt.Errorf("failed to parse nested query on path [%s]: %w", path, err)
	}

	q := search.NewNestedQuery(path, inner)
	if mode, ok := nestedMap["score_mode"].(string); ok {
		if err := q.SetScoreMode(mode); err != nil {
			return nil, err
		}
	}
	if err := p.applyOptions(q, nestedMap); err != nil {
		return nil, err
	}
	return q, nil
}

// parseRange 解析 range 查询
func (p *QueryParser) parseRange(body interface{}) (search.QueryBuilder, error) {
	rangeMap, ok := body.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("range query body must be a map")
	}
	for field, raw := range rangeMap {
		bounds, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("range query on field [%s] must be an object", field)
		}
		q := search.NewRangeQuery(field)
		hasBound := false
		for key, value := range bounds {
			switch key {
			case "gt":
				q.SetGT(value)
				hasBound = true
			case "gte":
				q.SetGTE(value)
				hasBound = true
			case "lt":
				q.SetLT(value)
				hasBound = true
			case "lte":
				q.SetLTE(value)
				hasBound = true
			case "boost", "_name":
				// applyOptions 统一处理
			default:
				return nil, fmt.Errorf("unsupported range parameter [%s] on field [%s]", key, field)
			}
		}
		if !hasBound {
			return nil, fmt.Errorf("range query on field [%s] requires at least one bound", field)
		}
		if err := p.applyOptions(q, bounds); err != nil {
			return nil, err
		}
		return q, nil
	}
	return nil, fmt.Errorf("range query must have a field")
}

// parseExists 解析 exists 查询
func (p *QueryParser) parseExists(body interface{}) (search.QueryBuilder, error) {
	existsMap, ok := body.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("exists query body must be a map")
	}
	field, ok := existsMap["field"].(string)
	if !ok {
		return nil, fmt.Errorf("exists query requires a 'field' string")
	}
	q := search.NewExistsQuery(field)
	if err := p.applyOptions(q, existsMap); err != nil {
		return nil, err
	}
	return q, nil
}

// parseScript 解析 script 查询
// ES 形式 {"script": {"script": {"source": "...", "params": {...}}}}
func (p *QueryParser) parseScript(body interface{}) (search.QueryBuilder, error) {
	scriptMap, ok := body.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("script query body must be a map")
	}
	scriptData, ok := scriptMap["script"]
	if !ok {
		scriptData = scriptMap
	}
	s, err := script.ParseScript(scriptData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	q := search.NewScriptQuery(s)
	if err := p.applyOptions(q, scriptMap); err != nil {
		return nil, err
	}
	return q, nil
}

// toFloat64 宽松数值转换，JSON 数字与数字字符串都接受
func toFloat64(v interface{}) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case string:
		return strconv.ParseFloat(val, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to a number", v)
	}
}
