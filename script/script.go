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

// Package script 实现搜索期脚本引擎
// 支持 Painless 表达式子集，用于脚本字段、脚本排序与过滤；
// 编译产物带确定性标记，供执行上下文做缓存安全检查
package script

import (
	"fmt"
	"time"
)

// 支持的脚本语言
const (
	LangPainless   = "painless"
	LangExpression = "expression"
)

// 脚本编译上下文名称
const (
	ContextScore  = "score"
	ContextField  = "field"
	ContextFilter = "filter"
)

// Script 表示一个脚本
type Script struct {
	Source string                 // 脚本源代码
	Lang   string                 // 脚本语言 (painless, expression)
	Params map[string]interface{} // 脚本参数
}

// NewScript 创建新脚本
func NewScript(source string, params map[string]interface{}) *Script {
	return &Script{
		Source: source,
		Lang:   LangPainless,
		Params: params,
	}
}

// ParseScript 从 ES 格式解析脚本
func ParseScript(data interface{}) (*Script, error) {
	switch v := data.(type) {
	case string:
		return NewScript(v, nil), nil
	case map[string]interface{}:
		script := &Script{Lang: LangPainless}

		if source, ok := v["source"].(string); ok {
			script.Source = source
		} else if inline, ok := v["inline"].(string); ok {
			script.Source = inline
		}

		if lang, ok := v["lang"].(string); ok {
			script.Lang = lang
		}

		if params, ok := v["params"].(map[string]interface{}); ok {
			script.Params = params
		}

		if script.Source == "" {
			return nil, fmt.Errorf("script must have 'source' or 'inline' field")
		}

		return script, nil
	default:
		return nil, fmt.Errorf("invalid script format: %T", data)
	}
}

// Context 脚本执行上下文
type Context struct {
	Doc    map[string]interface{} // 文档字段 (doc['field'].value)
	Source map[string]interface{} // _source 字段
	Params map[string]interface{} // 脚本参数
	Score  float64                // 文档评分
	Now    int64                  // 当前时间戳（毫秒）
}

// NewContext 创建执行上下文，脚本自带的参数会合并进来
func (s *Script) NewContext(doc, source map[string]interface{}) *Context {
	ctx := &Context{
		Doc:    doc,
		Source: source,
		Now:    time.Now().UnixMilli(),
	}
	if s.Params != nil {
		ctx.Params = make(map[string]interface{}, len(s.Params))
		for k, v := range s.Params {
			ctx.Params[k] = v
		}
	}
	return ctx
}
