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

package nested

import "strings"

// ExtractSource 从根文档的 _source 中抽出身份链指向的嵌套元素
// 逐层取相对路径的值：数组按 Offset 取元素，单个对象按整体处理；
// 取到叶元素后按路径层级重新包成外层结构，数组收缩成单元素对象，
// 如 {"comments": [a, b]} 取 Offset 1 得到 {"comments": b}
func ExtractSource(source map[string]interface{}, id *Identity) (map[string]interface{}, bool) {
	if id == nil {
		return nil, false
	}

	var levels []*Identity
	for cur := id; cur != nil; cur = cur.Child {
		levels = append(levels, cur)
	}

	// 自外向内下钻到叶元素
	cur := source
	for _, level := range levels {
		raw, ok := extractValue(cur, level.Field)
		if !ok {
			return nil, false
		}
		switch v := raw.(type) {
		case []interface{}:
			if level.Offset < 0 || level.Offset >= len(v) {
				return nil, false
			}
			m, ok := v[level.Offset].(map[string]interface{})
			if !ok {
				return nil, false
			}
			cur = m
		case map[string]interface{}:
			// 单个对象等价于单元素数组
			if level.Offset != 0 {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}

	// 自内向外把叶元素包回路径结构
	var rv interface{} = cur
	for i := len(levels) - 1; i >= 0; i-- {
		segs := strings.Split(levels[i].Field, ".")
		for j := len(segs) - 1; j >= 0; j-- {
			rv = map[string]interface{}{segs[j]: rv}
		}
	}
	return rv.(map[string]interface{}), true
}

// extractValue 沿点号路径逐层取值，中间层必须是对象
func extractValue(obj map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var cur interface{} = obj
	for _, part := range parts {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
