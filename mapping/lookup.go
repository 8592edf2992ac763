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
	"bytes"
	"fmt"
	"strings"

	"github.com/blevesearch/vellum"
	vregexp "github.com/blevesearch/vellum/regexp"
)

// Lookup 映射查找快照
// 构建后不可变，可在一次请求内被多个组件共享读取；
// 字段名字典编译为 FST，通配符匹配走自动机求交
type Lookup struct {
	mapping *IndexMapping
	names   []string // 全部字段名，升序
	dict    *vellum.FST
}

// NewLookup 基于索引映射构建查找快照
func NewLookup(m *IndexMapping) (*Lookup, error) {
	if m == nil {
		m = &IndexMapping{Fields: make(map[string]*FieldType)}
	}

	names := m.FieldNames()

	var buf bytes.Buffer
	builder, err := vellum.New(&buf, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create field dictionary builder: %w", err)
	}
	for i, name := range names {
		if err := builder.Insert([]byte(name), uint64(i)); err != nil {
			return nil, fmt.Errorf("failed to index field name %s: %w", name, err)
		}
	}
	if err := builder.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish field dictionary: %w", err)
	}

	dict, err := vellum.Load(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to load field dictionary: %w", err)
	}

	return &Lookup{
		mapping: m,
		names:   names,
		dict:    dict,
	}, nil
}

// FieldType 查找字段类型，不存在返回 nil
func (l *Lookup) FieldType(name string) *FieldType {
	return l.mapping.FieldType(name)
}

// HasField 判断字段是否在映射中
func (l *Lookup) HasField(name string) bool {
	return l.mapping.FieldType(name) != nil
}

// FieldNames 返回全部映射字段名，升序
func (l *Lookup) FieldNames() []string {
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

// NestedPaths 返回全部嵌套路径，升序
func (l *Lookup) NestedPaths() []string {
	return l.mapping.NestedPaths
}

// IsNestedPath 判断路径是否是嵌套路径
func (l *Lookup) IsNestedPath(path string) bool {
	return l.mapping.IsNestedPath(path)
}

// NestedParent 返回最近嵌套祖先路径
func (l *Lookup) NestedParent(path string) string {
	return l.mapping.NestedParent(path)
}

// MatchingFieldNames 返回匹配 pattern 的映射字段名，升序
// pattern 支持 * 与 ?；"*" 直接返回全部字段；无通配符时做精确查找
func (l *Lookup) MatchingFieldNames(pattern string) ([]string, error) {
	if pattern == "*" {
		return l.FieldNames(), nil
	}

	if !IsSimplePattern(pattern) {
		// 精确匹配
		if l.HasField(pattern) {
			return []string{pattern}, nil
		}
		return nil, nil
	}

	aut, err := vregexp.New(patternToRegexp(pattern))
	if err != nil {
		return nil, fmt.Errorf("failed to compile field pattern %s: %w", pattern, err)
	}

	var matches []string
	itr, err := l.dict.Search(aut, nil, nil)
	for err == nil {
		key, _ := itr.Current()
		matches = append(matches, string(key))
		err = itr.Next()
	}
	if err != nil && err != vellum.ErrIteratorDone {
		return nil, fmt.Errorf("failed to search field dictionary: %w", err)
	}
	return matches, nil
}

// IsSimplePattern 判断是否是通配符模式
func IsSimplePattern(pattern string) bool {
	return strings.ContainsAny(pattern, "*?")
}

// patternToRegexp 把通配符模式转为正则：* -> .*，? -> .，其余按字面转义
func patternToRegexp(pattern string) string {
	var sb strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		case '.', '+', '(', ')', '[', ']', '{', '}', '|', '^', '$', '\\':
			sb.WriteRune('\\')
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// SimpleMatch 通配符匹配（只认 *），用于 runtime 字段名等非字典集合
func SimpleMatch(pattern, s string) bool {
	if pattern == "" {
		return s == ""
	}
	star := strings.IndexByte(pattern, '*')
	if star == -1 {
		return pattern == s
	}
	if star > 0 {
		// 固定前缀必须吻合
		if !strings.HasPrefix(s, pattern[:star]) {
			return false
		}
		return SimpleMatch(pattern[star:], s[star:])
	}
	// pattern 以 * 开头
	if len(pattern) == 1 {
		return true
	}
	next := strings.IndexByte(pattern[1:], '*')
	if next == -1 {
		return strings.HasSuffix(s, pattern[1:])
	}
	// * 之间的中缀逐个尝试落点
	infix := pattern[1 : next+1]
	offset := 0
	for {
		idx := strings.Index(s[offset:], infix)
		if idx < 0 {
			return false
		}
		if SimpleMatch(pattern[next+1:], s[offset+idx+len(infix):]) {
			return true
		}
		offset += idx + 1
	}
}
