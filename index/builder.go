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

package index

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/klauspost/compress/s2"

	"github.com/lynxsearch/lynxdb/analysis"
	"github.com/lynxsearch/lynxdb/mapping"
)

// builtDoc 展开后的单个待写入文档
// 嵌套子文档与根文档都以这个形式进入段，顺序即局部文档号
type builtDoc struct {
	id         string                       // 仅根文档有值
	source     []byte                       // 原始 JSON，仅根文档有值
	nestedPath string                       // 根文档为空串
	stored     map[string]interface{}       // 全路径 -> 字段值
	terms      map[string]map[string]uint64 // 字段 -> 词项 -> 词频
}

// Builder 段构建器
// 文档按块连接方式展开：对每个嵌套对象，先递归写入它自己的子文档，
// 再写入它本身，根文档最后；同一数组的元素保持出现顺序
type Builder struct {
	index   *Index
	mapping *mapping.IndexMapping
	docs    []*builtDoc
}

// AddDocument 展开一篇 JSON 文档并暂存，Commit 时统一写入
func (b *Builder) AddDocument(id string, source []byte) error {
	if id == "" {
		return fmt.Errorf("document id is required")
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(source, &obj); err != nil {
		return fmt.Errorf("invalid document JSON: %w", err)
	}

	var out []*builtDoc
	root, err := b.expand(obj, "", &out)
	if err != nil {
		return fmt.Errorf("failed to expand document %s: %w", id, err)
	}
	root.id = id
	root.source = source

	b.docs = append(b.docs, out...)
	return nil
}

// DocCount 返回已暂存的文档数（含嵌套子文档）
func (b *Builder) DocCount() int {
	return len(b.docs)
}

// expand 深度优先展开嵌套对象，返回当前作用域自身的文档
func (b *Builder) expand(obj map[string]interface{}, path string, out *[]*builtDoc) (*builtDoc, error) {
	childPaths := b.directNestedChildren(path)

	skip := make(map[string]bool, len(childPaths))
	for _, childPath := range childPaths {
		skip[childPath] = true

		rel := childPath
		if path != "" {
			rel = strings.TrimPrefix(childPath, path+".")
		}
		raw, ok := extractValue(obj, rel)
		if !ok {
			continue
		}

		var elems []interface{}
		switch v := raw.(type) {
		case []interface{}:
			elems = v
		case map[string]interface{}:
			elems = []interface{}{v}
		default:
			continue
		}
		for _, elem := range elems {
			elemObj, ok := elem.(map[string]interface{})
			if !ok {
				continue
			}
			if _, err := b.expand(elemObj, childPath, out); err != nil {
				return nil, err
			}
		}
	}

	stored := make(map[string]interface{})
	flattenFields(obj, path, skip, stored)

	terms := make(map[string]map[string]uint64)
	for field, value := range stored {
		ft := b.mapping.FieldType(field)
		if ft == nil || !ft.Index {
			continue
		}
		fieldTerms, err := b.extractTerms(ft, value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
		if len(fieldTerms) > 0 {
			terms[field] = fieldTerms
		}
	}

	d := &builtDoc{
		nestedPath: path,
		stored:     stored,
		terms:      terms,
	}
	*out = append(*out, d)
	return d, nil
}

// directNestedChildren 返回当前作用域的直接嵌套子路径
func (b *Builder) directNestedChildren(path string) []string {
	var rv []string
	for _, p := range b.mapping.NestedPaths {
		if p == path {
			continue
		}
		if path == "" {
			if b.mapping.NestedParent(p) == "" {
				rv = append(rv, p)
			}
		} else if strings.HasPrefix(p, path+".") && b.mapping.NestedParent(p) == path {
			rv = append(rv, p)
		}
	}
	return rv
}

// extractTerms 按字段类型取词
func (b *Builder) extractTerms(ft *mapping.FieldType, value interface{}) (map[string]uint64, error) {
	rv := make(map[string]uint64)
	for _, v := range asList(value) {
		switch ft.Type {
		case mapping.TypeText:
			s, ok := v.(string)
			if !ok {
				continue
			}
			name := ft.Analyzer
			if name == "" {
				name = "standard"
			}
			az := analysis.AnalyzerNamed(name)
			if az == nil {
				return nil, fmt.Errorf("unknown analyzer: %s", name)
			}
			for _, token := range az.Analyze([]byte(s)) {
				rv[string(token.Term)]++
			}
		case mapping.TypeKeyword, mapping.TypeDate:
			s, ok := v.(string)
			if !ok {
				continue
			}
			rv[s]++
		case mapping.TypeBoolean:
			bv, ok := v.(bool)
			if !ok {
				continue
			}
			rv[strconv.FormatBool(bv)]++
		default:
			if ft.IsNumeric() {
				f, ok := v.(float64)
				if !ok {
					continue
				}
				rv[strconv.FormatFloat(f, 'f', -1, 64)]++
			}
		}
	}
	return rv, nil
}

// Commit 把暂存的文档写成一个新段
func (b *Builder) Commit() error {
	if len(b.docs) == 0 {
		return nil
	}

	i := b.index
	i.mu.Lock()
	seg := i.nextSeg
	i.nextSeg++
	i.mu.Unlock()

	roots := roaring.New()
	nested := make(map[string]*roaring.Bitmap)

	writer, err := i.kv.Writer()
	if err != nil {
		return fmt.Errorf("failed to get store writer: %w", err)
	}
	defer func() { _ = writer.Close() }()

	batch := writer.NewBatch()
	defer func() { _ = batch.Close() }()

	var rootCount uint64
	for ord, d := range b.docs {
		ord32 := uint32(ord)

		if d.nestedPath == "" {
			roots.Add(ord32)
			rootCount++
			d.stored[mapping.IDField] = d.id
			batch.Set(docIDRowKey(seg, d.id), encodeOrdinalValue(ord32))
			batch.Set(sourceRowKey(seg, ord32), s2.Encode(nil, d.source))
		} else {
			bm, ok := nested[d.nestedPath]
			if !ok {
				bm = roaring.New()
				nested[d.nestedPath] = bm
			}
			bm.Add(ord32)
		}

		storedJSON, err := json.Marshal(d.stored)
		if err != nil {
			return fmt.Errorf("failed to encode stored fields: %w", err)
		}
		batch.Set(storedRowKey(seg, ord32), s2.Encode(nil, storedJSON))

		for field, fieldTerms := range d.terms {
			for term, freq := range fieldTerms {
				batch.Set(termRowKey(seg, field, term, ord32), encodeCountValue(freq))
			}
		}
	}

	rootsBytes, err := roots.ToBytes()
	if err != nil {
		return fmt.Errorf("failed to encode roots bitmap: %w", err)
	}
	batch.Set(rootsBitmapKey(seg), rootsBytes)

	for path, bm := range nested {
		bmBytes, err := bm.ToBytes()
		if err != nil {
			return fmt.Errorf("failed to encode nested bitmap for %s: %w", path, err)
		}
		batch.Set(nestedBitmapKey(seg, path), bmBytes)
	}

	info := segmentInfo{
		DocCount:  uint64(len(b.docs)),
		RootCount: rootCount,
	}
	infoJSON, err := json.Marshal(&info)
	if err != nil {
		return fmt.Errorf("failed to encode segment info: %w", err)
	}
	batch.Set(segmentRowKey(seg), infoJSON)
	batch.Merge(statsRowKey(), encodeCountValue(rootCount))

	if err := writer.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to commit segment %d: %w", seg, err)
	}

	i.log.Info("Committed segment %d with %d document(s), %d root(s)", seg, len(b.docs), rootCount)
	b.docs = nil
	return nil
}

// flattenFields 把对象打平成全路径键值，跳过嵌套子树
func flattenFields(obj map[string]interface{}, prefix string, skip map[string]bool, out map[string]interface{}) {
	for k, v := range obj {
		full := k
		if prefix != "" {
			full = prefix + "." + k
		}
		if skip[full] {
			continue
		}
		if m, ok := v.(map[string]interface{}); ok {
			flattenFields(m, full, skip, out)
			continue
		}
		out[full] = v
	}
}

// extractValue 按点号路径从对象里取值
func extractValue(obj map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var cur interface{} = obj
	for _, p := range parts {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func asList(v interface{}) []interface{} {
	if list, ok := v.([]interface{}); ok {
		return list
	}
	return []interface{}{v}
}
