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

// Package index 实现单分片的段式索引
// 文档按块连接方式展开：嵌套子文档先于所属父文档写入，同段内
// 局部文档号连续；每次提交生成一个新段，快照按段基址拼出全局文档号
package index

import (
	"fmt"
	"sync"

	store "github.com/blevesearch/upsidedown_store_api"

	kvstore "github.com/lynxsearch/lynxdb/index/store"
	"github.com/lynxsearch/lynxdb/logger"
	"github.com/lynxsearch/lynxdb/mapping"
)

// Config 索引打开参数
type Config struct {
	Backend string // 存储后端名称：bolt 或 memory
	Path    string // bolt 后端的数据文件路径，memory 后端留空
	NoSync  bool   // bolt 是否关闭每次提交的 fsync
	Mapping *mapping.IndexMapping
}

// Index 单分片索引
type Index struct {
	mu      sync.Mutex
	kv      store.KVStore
	mapping *mapping.IndexMapping
	lookup  *mapping.Lookup
	nextSeg uint32
	log     *logger.FieldLogger
}

// Open 打开或创建索引
func Open(cfg Config) (*Index, error) {
	if cfg.Mapping == nil {
		return nil, fmt.Errorf("index mapping is required")
	}
	backend := cfg.Backend
	if backend == "" {
		backend = "memory"
	}

	kvConfig := map[string]interface{}{"path": cfg.Path}
	if cfg.NoSync {
		kvConfig["nosync"] = true
	}
	kv, err := kvstore.New(backend, &countMergeOperator{}, kvConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open store backend %s: %w", backend, err)
	}

	lookup, err := mapping.NewLookup(cfg.Mapping)
	if err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("failed to build field lookup: %w", err)
	}

	idx := &Index{
		kv:      kv,
		mapping: cfg.Mapping,
		lookup:  lookup,
		log:     logger.Named("index"),
	}
	if err := idx.loadNextSegment(); err != nil {
		_ = kv.Close()
		return nil, err
	}

	idx.log.Info("Opened index with backend [%s], %d existing segment(s)", backend, idx.nextSeg)
	return idx, nil
}

// loadNextSegment 扫描段注册行，恢复下一个段号
func (i *Index) loadNextSegment() error {
	reader, err := i.kv.Reader()
	if err != nil {
		return fmt.Errorf("failed to get store reader: %w", err)
	}
	defer func() { _ = reader.Close() }()

	it := reader.PrefixIterator(segmentRowPrefix())
	defer func() { _ = it.Close() }()

	var next uint32
	for it.Valid() {
		seg, err := segmentRowID(it.Key())
		if err != nil {
			return err
		}
		if seg >= next {
			next = seg + 1
		}
		it.Next()
	}
	i.nextSeg = next
	return nil
}

// Mapping 返回索引映射
func (i *Index) Mapping() *mapping.IndexMapping {
	return i.mapping
}

// Lookup 返回字段查找表
func (i *Index) Lookup() *mapping.Lookup {
	return i.lookup
}

// NewBuilder 创建一个段构建器，Commit 后成为新段
func (i *Index) NewBuilder() *Builder {
	return &Builder{
		index:   i,
		mapping: i.mapping,
	}
}

// RootDocCount 返回全局统计行里的根文档总数
func (i *Index) RootDocCount() (uint64, error) {
	reader, err := i.kv.Reader()
	if err != nil {
		return 0, fmt.Errorf("failed to get store reader: %w", err)
	}
	defer func() { _ = reader.Close() }()

	v, err := reader.Get(statsRowKey())
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, nil
	}
	return decodeCountValue(v)
}

// Close 关闭索引与底层存储
func (i *Index) Close() error {
	return i.kv.Close()
}
