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
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	store "github.com/blevesearch/upsidedown_store_api"
	"github.com/klauspost/compress/s2"
)

// segmentInfo 段注册行内容
type segmentInfo struct {
	DocCount  uint64 `json:"doc_count"`
	RootCount uint64 `json:"root_count"`
}

// SegmentSnapshot 快照中的单段视图
// 局部文档号从 0 连续编号，docBase 是该段在全局序号空间的起点
type SegmentSnapshot struct {
	id       uint32
	docBase  uint32
	info     segmentInfo
	roots    *roaring.Bitmap
	nested   map[string]*roaring.Bitmap
	snapshot *Snapshot
}

// Snapshot 某一时刻的索引只读视图
// 持有底层存储的读事务，段列表与位图在打开时一次加载；
// 底层读事务不支持并发，同一快照只能在单个 goroutine 里使用
type Snapshot struct {
	reader   store.KVReader
	segments []*SegmentSnapshot
	docCount uint64
	roots    uint64

	// 全局位图惰性构建一次后复用
	rootAll   *roaring.Bitmap
	nestedAll map[string]*roaring.Bitmap
}

// Snapshot 打开当前索引的只读快照，用完必须 Close
func (i *Index) Snapshot() (*Snapshot, error) {
	reader, err := i.kv.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to get store reader: %w", err)
	}

	snap := &Snapshot{reader: reader}

	it := reader.PrefixIterator(segmentRowPrefix())
	var segIDs []uint32
	var infos []segmentInfo
	for it.Valid() {
		seg, err := segmentRowID(it.Key())
		if err != nil {
			_ = it.Close()
			_ = reader.Close()
			return nil, err
		}
		var info segmentInfo
		if err := json.Unmarshal(it.Value(), &info); err != nil {
			_ = it.Close()
			_ = reader.Close()
			return nil, fmt.Errorf("failed to decode segment %d info: %w", seg, err)
		}
		segIDs = append(segIDs, seg)
		infos = append(infos, info)
		it.Next()
	}
	_ = it.Close()

	var docBase uint32
	for n, seg := range segIDs {
		ss := &SegmentSnapshot{
			id:       seg,
			docBase:  docBase,
			info:     infos[n],
			snapshot: snap,
		}
		if err := ss.loadBitmaps(reader, i.mapping.NestedPaths); err != nil {
			_ = reader.Close()
			return nil, err
		}
		snap.segments = append(snap.segments, ss)
		snap.docCount += infos[n].DocCount
		snap.roots += infos[n].RootCount
		docBase += uint32(infos[n].DocCount)
	}

	return snap, nil
}

// loadBitmaps 加载根位图与各嵌套路径的子文档位图
func (s *SegmentSnapshot) loadBitmaps(reader store.KVReader, nestedPaths []string) error {
	rootsBytes, err := reader.Get(rootsBitmapKey(s.id))
	if err != nil {
		return err
	}
	if rootsBytes == nil {
		return fmt.Errorf("roots bitmap missing for segment %d", s.id)
	}
	s.roots = roaring.New()
	if _, err := s.roots.ReadFrom(bytes.NewReader(rootsBytes)); err != nil {
		return fmt.Errorf("failed to decode roots bitmap for segment %d: %w", s.id, err)
	}

	s.nested = make(map[string]*roaring.Bitmap)
	for _, path := range nestedPaths {
		bmBytes, err := reader.Get(nestedBitmapKey(s.id, path))
		if err != nil {
			return err
		}
		if bmBytes == nil {
			continue
		}
		bm := roaring.New()
		if _, err := bm.ReadFrom(bytes.NewReader(bmBytes)); err != nil {
			return fmt.Errorf("failed to decode nested bitmap %s for segment %d: %w", path, s.id, err)
		}
		s.nested[path] = bm
	}
	return nil
}

// Close 释放底层读事务
func (s *Snapshot) Close() error {
	return s.reader.Close()
}

// DocCount 全局序号空间大小（含嵌套子文档）
func (s *Snapshot) DocCount() uint64 {
	return s.docCount
}

// RootCount 根文档总数
func (s *Snapshot) RootCount() uint64 {
	return s.roots
}

// Segments 按基址升序返回段列表
func (s *Snapshot) Segments() []*SegmentSnapshot {
	return s.segments
}

// SegmentForOrdinal 按全局文档号定位所属段，二分查找段基址
func (s *Snapshot) SegmentForOrdinal(ord uint32) (*SegmentSnapshot, error) {
	n := sort.Search(len(s.segments), func(n int) bool {
		seg := s.segments[n]
		return uint64(seg.docBase)+seg.info.DocCount > uint64(ord)
	})
	if n >= len(s.segments) || ord < s.segments[n].docBase {
		return nil, fmt.Errorf("ordinal %d out of range", ord)
	}
	return s.segments[n], nil
}

// StoredFields 按全局文档号读取存储字段
func (s *Snapshot) StoredFields(ord uint32) (map[string]interface{}, error) {
	seg, err := s.SegmentForOrdinal(ord)
	if err != nil {
		return nil, err
	}
	return seg.StoredFields(ord - seg.docBase)
}

// SourceBytes 按全局文档号读取原始文档，嵌套子文档没有独立 source
func (s *Snapshot) SourceBytes(ord uint32) ([]byte, error) {
	seg, err := s.SegmentForOrdinal(ord)
	if err != nil {
		return nil, err
	}
	return seg.SourceBytes(ord - seg.docBase)
}

// TermPostings 返回包含该词项的全局文档号位图
func (s *Snapshot) TermPostings(field, term string) (*roaring.Bitmap, error) {
	rv := roaring.New()
	for _, seg := range s.segments {
		it := s.reader.PrefixIterator(termRowPrefix(seg.id, field, term))
		for it.Valid() {
			ord, err := termRowOrdinal(it.Key())
			if err != nil {
				_ = it.Close()
				return nil, err
			}
			rv.Add(seg.docBase + ord)
			it.Next()
		}
		_ = it.Close()
	}
	return rv, nil
}

// RootBitmap 返回全局根文档位图，惰性构建后缓存
func (s *Snapshot) RootBitmap() *roaring.Bitmap {
	if s.rootAll == nil {
		s.rootAll = roaring.New()
		for _, seg := range s.segments {
			it := seg.roots.Iterator()
			for it.HasNext() {
				s.rootAll.Add(seg.docBase + it.Next())
			}
		}
	}
	return s.rootAll
}

// NestedPathBitmap 返回某嵌套路径的全局子文档位图，惰性构建后缓存
func (s *Snapshot) NestedPathBitmap(path string) *roaring.Bitmap {
	if s.nestedAll == nil {
		s.nestedAll = make(map[string]*roaring.Bitmap)
	}
	if bm, ok := s.nestedAll[path]; ok {
		return bm
	}
	rv := roaring.New()
	for _, seg := range s.segments {
		if bm := seg.nested[path]; bm != nil {
			it := bm.Iterator()
			for it.HasNext() {
				rv.Add(seg.docBase + it.Next())
			}
		}
	}
	s.nestedAll[path] = rv
	return rv
}

// FieldPostings 返回该字段出现过任意词项的全局文档号位图
func (s *Snapshot) FieldPostings(field string) (*roaring.Bitmap, error) {
	rv := roaring.New()
	for _, seg := range s.segments {
		it := s.reader.PrefixIterator(fieldRowPrefix(seg.id, field))
		for it.Valid() {
			ord, err := termRowOrdinal(it.Key())
			if err != nil {
				_ = it.Close()
				return nil, err
			}
			rv.Add(seg.docBase + ord)
			it.Next()
		}
		_ = it.Close()
	}
	return rv, nil
}

// FieldTerms 返回该字段的全量词典，跨段去重后升序
func (s *Snapshot) FieldTerms(field string) ([]string, error) {
	seen := make(map[string]struct{})
	var terms []string
	for _, seg := range s.segments {
		prefix := fieldRowPrefix(seg.id, field)
		it := s.reader.PrefixIterator(prefix)
		for it.Valid() {
			term, err := termRowTerm(it.Key(), len(prefix))
			if err != nil {
				_ = it.Close()
				return nil, err
			}
			if _, ok := seen[string(term)]; !ok {
				seen[string(term)] = struct{}{}
				terms = append(terms, string(term))
			}
			it.Next()
		}
		_ = it.Close()
	}
	sort.Strings(terms)
	return terms, nil
}

// TermFreq 返回词项在某篇文档里的词频，未出现时为 0
func (s *Snapshot) TermFreq(field, term string, ord uint32) (uint64, error) {
	seg, err := s.SegmentForOrdinal(ord)
	if err != nil {
		return 0, err
	}
	v, err := s.reader.Get(termRowKey(seg.id, field, term, ord-seg.docBase))
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, nil
	}
	return decodeCountValue(v)
}

// OrdinalForID 按文档 ID 查全局文档号，后写入的段优先
func (s *Snapshot) OrdinalForID(id string) (uint32, bool, error) {
	for n := len(s.segments) - 1; n >= 0; n-- {
		seg := s.segments[n]
		v, err := s.reader.Get(docIDRowKey(seg.id, id))
		if err != nil {
			return 0, false, err
		}
		if v == nil {
			continue
		}
		ord, err := decodeOrdinalValue(v)
		if err != nil {
			return 0, false, err
		}
		return seg.docBase + ord, true, nil
	}
	return 0, false, nil
}

// ID 返回段号
func (s *SegmentSnapshot) ID() uint32 {
	return s.id
}

// DocBase 返回段基址
func (s *SegmentSnapshot) DocBase() uint32 {
	return s.docBase
}

// DocCount 返回段内文档数（含嵌套子文档）
func (s *SegmentSnapshot) DocCount() uint64 {
	return s.info.DocCount
}

// Contains 判断全局文档号是否落在本段
func (s *SegmentSnapshot) Contains(ord uint32) bool {
	return ord >= s.docBase && uint64(ord) < uint64(s.docBase)+s.info.DocCount
}

// IsNested 判断局部文档号是否是嵌套子文档
func (s *SegmentSnapshot) IsNested(local uint32) bool {
	return !s.roots.Contains(local)
}

// Roots 返回根文档位图
func (s *SegmentSnapshot) Roots() *roaring.Bitmap {
	return s.roots
}

// NestedBitmap 返回某嵌套路径的子文档位图，没有则为 nil
func (s *SegmentSnapshot) NestedBitmap(path string) *roaring.Bitmap {
	return s.nested[path]
}

// RootOf 返回局部文档号所属的根文档
// 块连接布局里子文档在前根文档在后，根是下一个置位的根位图位
func (s *SegmentSnapshot) RootOf(local uint32) (uint32, error) {
	if s.roots.Contains(local) {
		return local, nil
	}
	rank := s.roots.Rank(local)
	if rank >= s.roots.GetCardinality() {
		return 0, fmt.Errorf("no enclosing root for doc %d in segment %d", local, s.id)
	}
	return s.roots.Select(uint32(rank))
}

// EnclosingOf 返回 local 在 path 层的直接外层文档，path 为空串时等价 RootOf
func (s *SegmentSnapshot) EnclosingOf(local uint32, path string) (uint32, error) {
	if path == "" {
		return s.RootOf(local)
	}
	bm := s.nested[path]
	if bm == nil {
		return 0, fmt.Errorf("no nested bitmap for path %s in segment %d", path, s.id)
	}
	rank := bm.Rank(local)
	if rank >= bm.GetCardinality() {
		return 0, fmt.Errorf("no enclosing doc at path %s for doc %d in segment %d", path, local, s.id)
	}
	return bm.Select(uint32(rank))
}

// PrevRootBefore 返回严格小于 local 的最近根文档，不存在时 ok 为 false
func (s *SegmentSnapshot) PrevRootBefore(local uint32) (uint32, bool) {
	if local == 0 {
		return 0, false
	}
	rank := s.roots.Rank(local - 1)
	if rank == 0 {
		return 0, false
	}
	v, err := s.roots.Select(uint32(rank - 1))
	if err != nil {
		return 0, false
	}
	return v, true
}

// StoredFields 按局部文档号读取存储字段
func (s *SegmentSnapshot) StoredFields(local uint32) (map[string]interface{}, error) {
	v, err := s.snapshot.reader.Get(storedRowKey(s.id, local))
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("stored fields missing for doc %d in segment %d", local, s.id)
	}
	raw, err := s2.Decode(nil, v)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress stored fields: %w", err)
	}
	var rv map[string]interface{}
	if err := json.Unmarshal(raw, &rv); err != nil {
		return nil, fmt.Errorf("failed to decode stored fields: %w", err)
	}
	return rv, nil
}

// SourceBytes 按局部文档号读取原始文档，嵌套子文档返回 nil
func (s *SegmentSnapshot) SourceBytes(local uint32) ([]byte, error) {
	v, err := s.snapshot.reader.Get(sourceRowKey(s.id, local))
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	raw, err := s2.Decode(nil, v)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress source: %w", err)
	}
	return raw, nil
}
