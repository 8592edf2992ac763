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

package mapping

import (
	"fmt"
)

// IndexSettings 索引级静态配置
// 在一次查询上下文的生命周期内只读
type IndexSettings struct {
	Name                string // 索引名
	NumberOfShards      int    // 分片数
	NumberOfReplicas    int    // 副本数（本核心不使用，保留兼容）
	AllowUnmappedFields bool   // 未映射字段是否按"无类型"放行
	VersionCreated      string // 创建索引的版本号
}

// DefaultIndexSettings 返回默认索引配置
func DefaultIndexSettings(name string) *IndexSettings {
	return &IndexSettings{
		Name:                name,
		NumberOfShards:      1,
		NumberOfReplicas:    0,
		AllowUnmappedFields: false,
		VersionCreated:      "1.0.0",
	}
}

// ParseIndexSettings 从 ES 风格的 settings 对象解析索引配置
func ParseIndexSettings(name string, settings map[string]interface{}) (*IndexSettings, error) {
	s := DefaultIndexSettings(name)
	if settings == nil {
		return s, nil
	}

	// 允许 {"index": {...}} 或扁平两种写法
	if inner, ok := settings["index"].(map[string]interface{}); ok {
		settings = inner
	}

	if v, ok := settings["number_of_shards"]; ok {
		n, err := toInt(v)
		if err != nil {
			return nil, fmt.Errorf("invalid number_of_shards: %v", v)
		}
		if n < 1 {
			return nil, fmt.Errorf("number_of_shards must be >= 1, got %d", n)
		}
		s.NumberOfShards = n
	}

	if v, ok := settings["number_of_replicas"]; ok {
		n, err := toInt(v)
		if err != nil {
			return nil, fmt.Errorf("invalid number_of_replicas: %v", v)
		}
		s.NumberOfReplicas = n
	}

	if v, ok := settings["allow_unmapped_fields"]; ok {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("allow_unmapped_fields must be a boolean")
		}
		s.AllowUnmappedFields = b
	}

	return s, nil
}

// toInt 解析 JSON 数值（兼容 float64 与字符串形式）
func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		var result int
		_, err := fmt.Sscanf(n, "%d", &result)
		return result, err
	}
	return 0, fmt.Errorf("not a number: %v", v)
}
