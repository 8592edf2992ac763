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

package fetch

import (
	"fmt"
	"sort"

	"github.com/lynxsearch/lynxdb/index"
	"github.com/lynxsearch/lynxdb/search"
)

// ExplainSubPhase 给命中挂上评分解释树
type ExplainSubPhase struct{}

// Name 实现 SubPhase 接口
func (*ExplainSubPhase) Name() string { return "explain" }

// Processor 实现 SubPhase 接口
func (*ExplainSubPhase) Processor(sc *search.SearchContext) (Processor, error) {
	if !sc.Request.Explain {
		return nil, nil
	}
	if sc.Query == nil {
		return nil, fmt.Errorf("explain requested but no executable query on shard %d", sc.Shard)
	}
	return &explainProcessor{sc: sc}, nil
}

type explainProcessor struct {
	sc *search.SearchContext
}

func (p *explainProcessor) StoredFieldsSpec() StoredFieldsSpec { return StoredFieldsSpec{} }

func (p *explainProcessor) SetNextReader(*index.SegmentSnapshot) error { return nil }

func (p *explainProcessor) Process(hc *HitContext) error {
	expl, err := search.Explain(p.sc.Query, p.sc.Snapshot, hc.GlobalOrd)
	if err != nil {
		return fmt.Errorf("failed to explain doc %d: %w", hc.GlobalOrd, err)
	}
	hc.Hit.Explanation = expl
	return nil
}

// MatchedQueriesSubPhase 记录每篇命中命中的命名查询
// 命名查询快照在转换期生成，这里对每篇文档复核成员关系；
// 名字按字典序复核，命中列表因此天然有序
type MatchedQueriesSubPhase struct{}

// Name 实现 SubPhase 接口
func (*MatchedQueriesSubPhase) Name() string { return "matched_queries" }

// Processor 实现 SubPhase 接口
func (*MatchedQueriesSubPhase) Processor(sc *search.SearchContext) (Processor, error) {
	if len(sc.Named) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(sc.Named))
	for name := range sc.Named {
		names = append(names, name)
	}
	sort.Strings(names)
	return &matchedQueriesProcessor{sc: sc, names: names}, nil
}

type matchedQueriesProcessor struct {
	sc    *search.SearchContext
	names []string
}

func (p *matchedQueriesProcessor) StoredFieldsSpec() StoredFieldsSpec { return StoredFieldsSpec{} }

func (p *matchedQueriesProcessor) SetNextReader(*index.SegmentSnapshot) error { return nil }

func (p *matchedQueriesProcessor) Process(hc *HitContext) error {
	for _, name := range p.names {
		bm, err := p.sc.Named[name].Match(p.sc.Snapshot)
		if err != nil {
			return fmt.Errorf("failed to evaluate named query [%s]: %w", name, err)
		}
		if bm.Contains(hc.GlobalOrd) {
			hc.Hit.MatchedQueries = append(hc.Hit.MatchedQueries, name)
		}
	}
	return nil
}
