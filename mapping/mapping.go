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

// Package mapping 实现索引映射的解析、校验与查找
package mapping

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// IndexMapping 索引映射
// 由 ES 风格的 mappings JSON 解析而来，字段按完整点分路径扁平化
type IndexMapping struct {
	Fields      map[string]*FieldType // 全部字段（含 object/nested 路径本身）
	NestedPaths []string              // 嵌套路径，升序
}

// ParseIndexMappingJSON 从 JSON 字节解析索引映射
func ParseIndexMappingJSON(data []byte) (*IndexMapping, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse mappings json: %w", err)
	}
	return ParseIndexMapping(raw)
}

// ParseIndexMapping 从 mappings 对象解析索引映射
// 支持 {"properties": {...}} 或 {"mappings": {"properties": {...}}} 两种外层
func ParseIndexMapping(mappings map[string]interface{}) (*IndexMapping, error) {
	m := &IndexMapping{
		Fields: make(map[string]*FieldType),
	}

	if mappings == nil {
		return m, nil
	}

	if inner, ok := mappings["mappings"].(map[string]interface{}); ok {
		mappings = inner
	}

	properties, ok := mappings["properties"]
	if !ok {
		return m, nil // 没有properties是允许的
	}

	props, ok := properties.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("properties must be an object")
	}

	if err := m.parseProperties("", props); err != nil {
		return nil, err
	}

	sort.Strings(m.NestedPaths)
	return m, nil
}

// parseProperties 递归解析 properties，prefix 为外层路径
func (m *IndexMapping) parseProperties(prefix string, props map[string]interface{}) error {
	for fieldName, fieldMapping := range props {
		fullName := fieldName
		if prefix != "" {
			fullName = prefix + "." + fieldName
		}

		ft, subProps, err := parseFieldMapping(fullName, fieldMapping)
		if err != nil {
			return fmt.Errorf("invalid mapping for field %s: %w", fullName, err)
		}

		m.Fields[fullName] = ft
		if ft.Type == TypeNested {
			m.NestedPaths = append(m.NestedPaths, fullName)
		}

		// object/nested 递归解析子字段
		if subProps != nil {
			if err := m.parseProperties(fullName, subProps); err != nil {
				return err
			}
		}
	}
	return nil
}

// parseFieldMapping 解析并校验单个字段映射
func parseFieldMapping(fullName string, fieldMapping interface{}) (*FieldType, map[string]interface{}, error) {
	fieldMap, ok := fieldMapping.(map[string]interface{})
	if !ok {
		return nil, nil, fmt.Errorf("field mapping must be an object")
	}

	// 带 properties 而缺 type 的字段按 object 处理
	typeStr := TypeObject
	if fieldType, ok := fieldMap["type"]; ok {
		typeStr, ok = fieldType.(string)
		if !ok {
			return nil, nil, fmt.Errorf("field type must be a string")
		}
	} else if _, ok := fieldMap["properties"]; !ok {
		return nil, nil, fmt.Errorf("field type is required")
	}

	if !validTypes[typeStr] {
		return nil, nil, fmt.Errorf("unsupported field type: %s", typeStr)
	}

	ft := &FieldType{
		Name:      fullName,
		Type:      typeStr,
		Index:     true,
		DocValues: typeStr != TypeText, // text 默认无 doc_values，与 ES 一致
	}

	if analyzer, ok := fieldMap["analyzer"].(string); ok {
		ft.Analyzer = analyzer
	} else if typeStr == TypeText {
		ft.Analyzer = "standard"
	}
	if similarity, ok := fieldMap["similarity"].(string); ok {
		ft.Similarity = similarity
	}
	if idx, ok := fieldMap["index"].(bool); ok {
		ft.Index = idx
	}
	if dv, ok := fieldMap["doc_values"].(bool); ok {
		ft.DocValues = dv
	}
	if st, ok := fieldMap["store"].(bool); ok {
		ft.Store = st
	}

	var subProps map[string]interface{}
	if rawProps, ok := fieldMap["properties"]; ok {
		subProps, ok = rawProps.(map[string]interface{})
		if !ok {
			return nil, nil, fmt.Errorf("properties must be an object")
		}
		if typeStr != TypeObject && typeStr != TypeNested {
			return nil, nil, fmt.Errorf("field type %s cannot have properties", typeStr)
		}
	}

	return ft, subProps, nil
}

// FieldType 按完整路径查找字段类型，不存在返回 nil
func (m *IndexMapping) FieldType(name string) *FieldType {
	return m.Fields[name]
}

// HasNested 是否存在嵌套路径
func (m *IndexMapping) HasNested() bool {
	return len(m.NestedPaths) > 0
}

// IsNestedPath 判断给定路径是否是嵌套路径
func (m *IndexMapping) IsNestedPath(path string) bool {
	ft := m.Fields[path]
	return ft != nil && ft.Type == TypeNested
}

// NestedParent 返回 path 的最近嵌套祖先路径，没有则返回空串
func (m *IndexMapping) NestedParent(path string) string {
	for {
		idx := strings.LastIndex(path, ".")
		if idx < 0 {
			return ""
		}
		path = path[:idx]
		if m.IsNestedPath(path) {
			return path
		}
	}
}

// FieldNames 返回全部映射字段名，升序
func (m *IndexMapping) FieldNames() []string {
	names := make([]string, 0, len(m.Fields))
	for name := range m.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
