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

import (
	"fmt"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/lynxsearch/lynxdb/index"
	"github.com/lynxsearch/lynxdb/mapping"
)

// Resolver 基于段内位图解析嵌套子文档的身份链
// 块连接布局下子文档先于其父文档写入，同级兄弟的序号
// 等于本级子文档位图在（上一个父级文档, 当前文档）区间内的置位数
type Resolver struct {
	seg    *index.SegmentSnapshot
	lookup *mapping.Lookup
}

// NewResolver 构建段级嵌套解析器
func NewResolver(seg *index.SegmentSnapshot, lookup *mapping.Lookup) *Resolver {
	return &Resolver{seg: seg, lookup: lookup}
}

// PathOf 返回局部文档号所属的嵌套路径，根文档返回 false
func (r *Resolver) PathOf(local uint32) (string, bool) {
	var found string
	for _, path := range r.lookup.NestedPaths() {
		bm := r.seg.NestedBitmap(path)
		if bm != nil && bm.Contains(local) {
			// 路径升序排列，更深的路径在后
			found = path
		}
	}
	return found, found != ""
}

// Resolve 解析局部文档号的身份链，返回身份与所属根文档号
// 身份链最外层是顶级嵌套字段，Field 取相对于外层作用域的路径
func (r *Resolver) Resolve(local uint32) (*Identity, uint32, error) {
	path, ok := r.PathOf(local)
	if !ok {
		return nil, 0, fmt.Errorf("doc %d in segment %d is not a nested document", local, r.seg.ID())
	}

	var child *Identity
	cur := local
	curPath := path
	for curPath != "" {
		parentPath := r.lookup.NestedParent(curPath)

		children := r.seg.NestedBitmap(curPath)
		if children == nil {
			return nil, 0, fmt.Errorf("missing nested bitmap for path %s in segment %d", curPath, r.seg.ID())
		}
		parents := r.seg.Roots()
		if parentPath != "" {
			parents = r.seg.NestedBitmap(parentPath)
			if parents == nil {
				return nil, 0, fmt.Errorf("missing nested bitmap for path %s in segment %d", parentPath, r.seg.ID())
			}
		}

		// 同级序号：上一个父级文档之后、当前文档之前的同路径子文档数
		start := uint32(0)
		if prev, ok := prevInSet(parents, cur); ok {
			start = prev + 1
		}
		offset := int(countInRange(children, start, cur))

		child = &Identity{
			Field:  relativeField(curPath, parentPath),
			Offset: offset,
			Child:  child,
		}

		// 上升到外层：当前文档之后第一个父级文档就是它的直接外层
		next, ok := nextInSet(parents, cur)
		if !ok {
			return nil, 0, fmt.Errorf("no enclosing document above path %s for doc %d in segment %d", curPath, cur, r.seg.ID())
		}
		cur = next
		curPath = parentPath
	}

	return child, cur, nil
}

// relativeField 返回 path 相对于外层嵌套作用域的字段名
func relativeField(path, parentPath string) string {
	if parentPath == "" {
		return path
	}
	return strings.TrimPrefix(path, parentPath+".")
}

// countInRange 统计位图在 [lo, hi) 区间内的置位数
func countInRange(bm *roaring.Bitmap, lo, hi uint32) uint64 {
	if hi == 0 {
		return 0
	}
	total := bm.Rank(hi - 1)
	if lo == 0 {
		return total
	}
	return total - bm.Rank(lo-1)
}

// prevInSet 返回严格小于 x 的最大置位，不存在时 ok 为 false
func prevInSet(bm *roaring.Bitmap, x uint32) (uint32, bool) {
	if x == 0 {
		return 0, false
	}
	rank := bm.Rank(x - 1)
	if rank == 0 {
		return 0, false
	}
	v, err := bm.Select(uint32(rank - 1))
	if err != nil {
		return 0, false
	}
	return v, true
}

// nextInSet 返回严格大于 x 的最小置位，不存在时 ok 为 false
func nextInSet(bm *roaring.Bitmap, x uint32) (uint32, bool) {
	rank := bm.Rank(x)
	if rank >= bm.GetCardinality() {
		return 0, false
	}
	v, err := bm.Select(uint32(rank))
	if err != nil {
		return 0, false
	}
	return v, true
}
