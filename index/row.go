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
	"encoding/binary"
	"fmt"
)

// 行类型前缀，单字节开头保证不同类型的行在键空间里互不交错
const (
	rowKindTerm    = 't' // 词项行: t + seg + field + 0xff + term + 0xff + ord -> 词频
	rowKindStored  = 'd' // 存储字段行: d + seg + ord -> s2(JSON)
	rowKindSource  = 'x' // 原始文档行: x + seg + ord -> s2(JSON)，仅根文档
	rowKindDocID   = 'i' // 文档 ID 行: i + seg + id -> ord，仅根文档
	rowKindBitmap  = 'b' // 位图行: b + seg + 'r' 根位图 / b + seg + 'n' + path 子文档位图
	rowKindSegment = 'g' // 段注册行: g + seg -> 段信息 JSON
	rowKindStats   = 'c' // 全局统计行: c -> 根文档总数，经合并算子累加
)

// 0xff 不会出现在合法 UTF-8 里，用作字段与词项的分隔符
const rowSep = 0xff

func appendSegment(key []byte, seg uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], seg)
	return append(key, buf[:]...)
}

func appendOrdinal(key []byte, ord uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], ord)
	return append(key, buf[:]...)
}

// termRowKey 词项行完整键
func termRowKey(seg uint32, field, term string, ord uint32) []byte {
	key := make([]byte, 0, 1+4+len(field)+1+len(term)+1+4)
	key = append(key, rowKindTerm)
	key = appendSegment(key, seg)
	key = append(key, field...)
	key = append(key, rowSep)
	key = append(key, term...)
	key = append(key, rowSep)
	key = appendOrdinal(key, ord)
	return key
}

// termRowPrefix 某字段某词项的倒排前缀
func termRowPrefix(seg uint32, field, term string) []byte {
	key := make([]byte, 0, 1+4+len(field)+1+len(term)+1)
	key = append(key, rowKindTerm)
	key = appendSegment(key, seg)
	key = append(key, field...)
	key = append(key, rowSep)
	key = append(key, term...)
	key = append(key, rowSep)
	return key
}

// fieldRowPrefix 某字段全部词项的前缀，用于词典遍历
func fieldRowPrefix(seg uint32, field string) []byte {
	key := make([]byte, 0, 1+4+len(field)+1)
	key = append(key, rowKindTerm)
	key = appendSegment(key, seg)
	key = append(key, field...)
	key = append(key, rowSep)
	return key
}

// termRowOrdinal 从词项行键尾部取出局部文档号
func termRowOrdinal(key []byte) (uint32, error) {
	if len(key) < 4 {
		return 0, fmt.Errorf("term row key too short: %d bytes", len(key))
	}
	return binary.BigEndian.Uint32(key[len(key)-4:]), nil
}

// termRowTerm 从词项行键里取出词项，prefixLen 为 fieldRowPrefix 的长度
func termRowTerm(key []byte, prefixLen int) ([]byte, error) {
	// 键尾部固定是分隔符加 4 字节文档号
	if len(key) < prefixLen+1+4 {
		return nil, fmt.Errorf("term row key too short: %d bytes", len(key))
	}
	return key[prefixLen : len(key)-5], nil
}

func storedRowKey(seg, ord uint32) []byte {
	key := make([]byte, 0, 1+4+4)
	key = append(key, rowKindStored)
	key = appendSegment(key, seg)
	key = appendOrdinal(key, ord)
	return key
}

func sourceRowKey(seg, ord uint32) []byte {
	key := make([]byte, 0, 1+4+4)
	key = append(key, rowKindSource)
	key = appendSegment(key, seg)
	key = appendOrdinal(key, ord)
	return key
}

func docIDRowKey(seg uint32, id string) []byte {
	key := make([]byte, 0, 1+4+len(id))
	key = append(key, rowKindDocID)
	key = appendSegment(key, seg)
	key = append(key, id...)
	return key
}

func rootsBitmapKey(seg uint32) []byte {
	key := make([]byte, 0, 1+4+1)
	key = append(key, rowKindBitmap)
	key = appendSegment(key, seg)
	key = append(key, 'r')
	return key
}

func nestedBitmapKey(seg uint32, path string) []byte {
	key := make([]byte, 0, 1+4+1+len(path))
	key = append(key, rowKindBitmap)
	key = appendSegment(key, seg)
	key = append(key, 'n')
	key = append(key, path...)
	return key
}

func segmentRowKey(seg uint32) []byte {
	key := make([]byte, 0, 1+4)
	key = append(key, rowKindSegment)
	key = appendSegment(key, seg)
	return key
}

func segmentRowPrefix() []byte {
	return []byte{rowKindSegment}
}

// segmentRowID 从段注册行键取出段号
func segmentRowID(key []byte) (uint32, error) {
	if len(key) != 5 {
		return 0, fmt.Errorf("segment row key must be 5 bytes, got %d", len(key))
	}
	return binary.BigEndian.Uint32(key[1:]), nil
}

func statsRowKey() []byte {
	return []byte{rowKindStats}
}

func encodeOrdinalValue(ord uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], ord)
	return buf[:]
}

func decodeOrdinalValue(v []byte) (uint32, error) {
	if len(v) != 4 {
		return 0, fmt.Errorf("ordinal value must be 4 bytes, got %d", len(v))
	}
	return binary.BigEndian.Uint32(v), nil
}

func encodeCountValue(n uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	return buf[:]
}

func decodeCountValue(v []byte) (uint64, error) {
	if len(v) != 8 {
		return 0, fmt.Errorf("count value must be 8 bytes, got %d", len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}
