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

// Package fetch 把查询阶段选出的文档序号物化为命中记录。
//
// 子阶段处理器按注册顺序对每篇文档执行；所有处理器的存储字段需求
// 在取回开始前合并成一份加载策略，整批共用，避免逐处理器重复读盘。
// 文档按段分组、段内升序访问，输出按请求顺序还原。
package fetch

import (
	"fmt"
	"sort"

	"github.com/lynxsearch/lynxdb/index"
	"github.com/lynxsearch/lynxdb/mapping"
	"github.com/lynxsearch/lynxdb/nested"
	"github.com/lynxsearch/lynxdb/search"
)

// StoredFieldsSpec 处理器对存储字段的需求声明
type StoredFieldsSpec struct {
	RequiresSource   bool
	RequiresMetadata bool
	Fields           []string
}

// Merge 合并两份需求：布尔取或，字段名取并
func (s StoredFieldsSpec) Merge(other StoredFieldsSpec) StoredFieldsSpec {
	rv := StoredFieldsSpec{
		RequiresSource:   s.RequiresSource || other.RequiresSource,
		RequiresMetadata: s.RequiresMetadata || other.RequiresMetadata,
	}
	seen := make(map[string]struct{}, len(s.Fields)+len(other.Fields))
	for _, group := range [][]string{s.Fields, other.Fields} {
		for _, f := range group {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			rv.Fields = append(rv.Fields, f)
		}
	}
	return rv
}

// SubPhase 取回子阶段
// Processor 为一次请求构建处理器，不适用的子阶段返回 (nil, nil)
type SubPhase interface {
	Name() string
	Processor(sc *search.SearchContext) (Processor, error)
}

// Processor 子阶段的按请求处理器
// SetNextReader 在进入新段、处理该段任何文档之前调用
type Processor interface {
	StoredFieldsSpec() StoredFieldsSpec
	SetNextReader(seg *index.SegmentSnapshot) error
	Process(hc *HitContext) error
}

// FetchPhase 取回阶段入口，子阶段注册顺序即处理顺序
type FetchPhase struct {
	subPhases []SubPhase
	profiler  *Profiler
}

// New 用给定子阶段构建取回阶段
func New(subPhases ...SubPhase) *FetchPhase {
	names := make([]string, len(subPhases))
	for i, sp := range subPhases {
		names[i] = sp.Name()
	}
	return &FetchPhase{subPhases: subPhases, profiler: newProfiler(names)}
}

// NewDefault 按固定顺序注册全部内建子阶段
func NewDefault() *FetchPhase {
	return New(
		&SourceSubPhase{},
		&StoredFieldsSubPhase{},
		&ScriptFieldsSubPhase{},
		&ExplainSubPhase{},
		&HighlightSubPhase{},
		&MatchedQueriesSubPhase{},
	)
}

// Profiler 返回取回阶段的剖面计量
func (p *FetchPhase) Profiler() *Profiler {
	return p.profiler
}

// boundProcessor 构建完成的处理器及其归属子阶段名
type boundProcessor struct {
	name string
	proc Processor
}

// Execute 物化 DocsToFetch 并把分片结果一次性写入上下文
//
// 取消在三处检查：开始前、逐文档、收尾后；任何一处命中都整体失败，
// 不产出部分结果。空序号表直接产出空批，不构建处理器也不计量
func (p *FetchPhase) Execute(sc *search.SearchContext) error {
	if err := sc.CheckCancelled(); err != nil {
		return err
	}

	if len(sc.DocsToFetch) == 0 {
		return sc.SetResult(&search.ShardResult{
			Shard:        sc.Shard,
			TotalHits:    sc.TotalHits,
			MaxScore:     sc.MaxScore,
			Hits:         []*search.Hit{},
			Aggregations: sc.Aggregations,
			Cacheable:    sc.Exec.IsCacheable(),
		})
	}

	done := p.profiler.startFetch()
	defer done()

	processors, err := p.buildProcessors(sc)
	if err != nil {
		return err
	}
	spec := combinedSpec(sc.Request, processors)

	hits, err := p.fetchDocs(sc, processors, spec)
	if err != nil {
		return err
	}

	if err := sc.CheckCancelled(); err != nil {
		return err
	}
	return sc.SetResult(&search.ShardResult{
		Shard:        sc.Shard,
		TotalHits:    sc.TotalHits,
		MaxScore:     sc.MaxScore,
		Hits:         hits,
		Aggregations: sc.Aggregations,
		Cacheable:    sc.Exec.IsCacheable(),
	})
}

// buildProcessors 实例化各子阶段的处理器，失败按子阶段归属上报
func (p *FetchPhase) buildProcessors(sc *search.SearchContext) ([]boundProcessor, error) {
	var rv []boundProcessor
	for _, sp := range p.subPhases {
		proc, err := sp.Processor(sc)
		if err != nil {
			return nil, &search.FetchPhaseExecutionError{Phase: sp.Name(), Shard: sc.Shard, Err: err}
		}
		if proc == nil {
			continue
		}
		rv = append(rv, boundProcessor{name: sp.Name(), proc: proc})
	}
	return rv, nil
}

// combinedSpec 合并全部处理器的需求与请求自身的 _source 投影
func combinedSpec(req *search.Request, processors []boundProcessor) StoredFieldsSpec {
	spec := StoredFieldsSpec{RequiresMetadata: true}
	if req.Source == nil || req.Source.Fetch {
		spec.RequiresSource = true
	}
	for _, bp := range processors {
		spec = spec.Merge(bp.proc.StoredFieldsSpec())
	}
	return spec
}

// docAndIndex 全局序号及其在请求序列里的位置
type docAndIndex struct {
	ord   uint32
	index int
}

// fetchDocs 按段分组升序取回，命中按请求顺序落位
func (p *FetchPhase) fetchDocs(sc *search.SearchContext, processors []boundProcessor, spec StoredFieldsSpec) ([]*search.Hit, error) {
	docs := make([]docAndIndex, len(sc.DocsToFetch))
	for i, ord := range sc.DocsToFetch {
		docs[i] = docAndIndex{ord: ord, index: i}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ord < docs[j].ord })

	hits := make([]*search.Hit, len(docs))
	rootSources := make(map[uint32]map[string]interface{})

	var (
		seg      *index.SegmentSnapshot
		resolver *nested.Resolver
	)
	for _, d := range docs {
		if err := sc.CheckCancelled(); err != nil {
			return nil, err
		}

		if seg == nil || !seg.Contains(d.ord) {
			var err error
			seg, err = sc.Snapshot.SegmentForOrdinal(d.ord)
			if err != nil {
				return nil, fmt.Errorf("failed to locate segment for doc %d: %w", d.ord, err)
			}
			resolver = nested.NewResolver(seg, sc.Exec.Mapping())
			for _, bp := range processors {
				if err := bp.proc.SetNextReader(seg); err != nil {
					return nil, &search.FetchPhaseExecutionError{Phase: bp.name, Shard: sc.Shard, Err: err}
				}
			}
		}

		hc, err := p.buildHit(sc, seg, resolver, rootSources, d.ord, spec)
		if err != nil {
			return nil, err
		}

		for _, bp := range processors {
			phaseDone := p.profiler.startPhase(bp.name)
			err := bp.proc.Process(hc)
			phaseDone()
			if err != nil {
				return nil, &search.FetchPhaseExecutionError{Phase: bp.name, Shard: sc.Shard, Err: err}
			}
		}

		p.profiler.docFetched()
		hits[d.index] = hc.Hit
	}
	return hits, nil
}

// buildHit 构建单篇文档的命中上下文
//
// 根文档：序号没有稳定 id 时按壳命中处理，源挂成延迟全量读取；
// 需要源时立即解析并发布到脚本源查找器，不需要时装惰性读取单元。
// 嵌套文档：解析身份链，根 id 与根源取自本次取回的根源缓存或直接
// 读取，再按身份链抽出最小合成源树
func (p *FetchPhase) buildHit(sc *search.SearchContext, seg *index.SegmentSnapshot, resolver *nested.Resolver, rootSources map[uint32]map[string]interface{}, ord uint32, spec StoredFieldsSpec) (*HitContext, error) {
	local := ord - seg.DocBase()

	fields, err := seg.StoredFields(local)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored fields for doc %d: %w", ord, err)
	}

	hit := &search.Hit{Ord: ord, Shard: sc.Shard, Score: sc.DocScores[ord], Sort: sc.DocSorts[ord]}
	hc := &HitContext{
		Hit:       hit,
		Seg:       seg,
		LocalOrd:  local,
		GlobalOrd: ord,
		RootOrd:   ord,
		fields:    fields,
	}

	if _, isNested := resolver.PathOf(local); isNested {
		return p.buildNestedHit(sc, seg, resolver, rootSources, hc, spec)
	}

	id, ok := fields[mapping.IDField].(string)
	if !ok || id == "" {
		// 壳命中：源延迟到被索要时全量读取
		hc.source = newLazyCell(fullSourceLoader(sc.Snapshot, ord))
		return hc, nil
	}
	hit.ID = id

	if spec.RequiresSource {
		source, err := fullSourceLoader(sc.Snapshot, ord)()
		if err != nil {
			return nil, err
		}
		rootSources[ord] = source
		hc.source = newResolvedCell(source)
		// 发布到脚本源查找器，子阶段脚本直接复用同一份解析结果
		lk := sc.Exec.Lookup()
		lk.MoveTo(ord)
		lk.Source().SetSource(source)
	} else {
		hc.source = newLazyCell(fullSourceLoader(sc.Snapshot, ord))
	}
	return hc, nil
}

// buildNestedHit 嵌套子文档的命中构建
// 根源优先取本次取回的根源缓存，缺席时直接读取并回填缓存，
// 同一根文档下的多个嵌套命中只解析一次根源
func (p *FetchPhase) buildNestedHit(sc *search.SearchContext, seg *index.SegmentSnapshot, resolver *nested.Resolver, rootSources map[uint32]map[string]interface{}, hc *HitContext, spec StoredFieldsSpec) (*HitContext, error) {
	identity, rootLocal, err := resolver.Resolve(hc.LocalOrd)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve nested identity of doc %d: %w", hc.GlobalOrd, err)
	}
	rootOrd := seg.DocBase() + rootLocal
	hc.RootOrd = rootOrd
	hc.Hit.Nested = identity

	rootFields, err := seg.StoredFields(rootLocal)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored fields for root doc %d: %w", rootOrd, err)
	}
	if id, ok := rootFields[mapping.IDField].(string); ok {
		hc.Hit.ID = id
	}

	loadNested := func() (map[string]interface{}, error) {
		rootSource, ok := rootSources[rootOrd]
		if !ok {
			loaded, err := fullSourceLoader(sc.Snapshot, rootOrd)()
			if err != nil {
				return nil, err
			}
			rootSource = loaded
			rootSources[rootOrd] = rootSource
		}
		extracted, ok := nested.ExtractSource(rootSource, identity)
		if !ok {
			// 抽取不到时给显式空对象，命中的源永不为 nil
			return map[string]interface{}{}, nil
		}
		return extracted, nil
	}

	if spec.RequiresSource {
		source, err := loadNested()
		if err != nil {
			return nil, err
		}
		hc.source = newResolvedCell(source)
	} else {
		hc.source = newLazyCell(loadNested)
	}
	return hc, nil
}

// fullSourceLoader 返回全量读取并解析 _source 的加载函数
func fullSourceLoader(snap *index.Snapshot, ord uint32) func() (map[string]interface{}, error) {
	return func() (map[string]interface{}, error) {
		raw, err := snap.SourceBytes(ord)
		if err != nil {
			return nil, fmt.Errorf("failed to load source for doc %d: %w", ord, err)
		}
		return parseSource(raw, ord)
	}
}
