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
	"sort"
	"strings"

	"github.com/lynxsearch/lynxdb/analysis"
	"github.com/lynxsearch/lynxdb/index"
	"github.com/lynxsearch/lynxdb/search"
)

const (
	defaultPreTag       = "<em>"
	defaultPostTag      = "</em>"
	defaultFragmentSize = 100
	defaultNumFragments = 5
)

// HighlightSubPhase 朴素词项高亮
//
// 关键词取自可执行查询树的词项，逐字段用该字段的分析器切分命中的
// 源文本，按词项（分析后形态）比对出命中区间，围绕命中切片段。
// 嵌套命中的源已是身份链抽出的合成树，字段取值天然落在嵌套视角上
type HighlightSubPhase struct{}

// Name 实现 SubPhase 接口
func (*HighlightSubPhase) Name() string { return "highlight" }

// Processor 实现 SubPhase 接口
// 请求的字段在查询里一个词项都没有时整个子阶段不参与
func (*HighlightSubPhase) Processor(sc *search.SearchContext) (Processor, error) {
	spec := sc.Request.Highlight
	if spec == nil || len(spec.Fields) == 0 || sc.Query == nil {
		return nil, nil
	}

	queryTerms := search.CollectQueryTerms(sc.Query)
	var fields []highlightField
	for _, name := range spec.Fields {
		terms := queryTerms[name]
		if len(terms) == 0 {
			continue
		}
		analyzer, err := sc.Exec.Analyzer(name)
		if err != nil {
			return nil, err
		}
		set := make(map[string]struct{}, len(terms))
		for _, t := range terms {
			set[t] = struct{}{}
		}
		fields = append(fields, highlightField{name: name, analyzer: analyzer, terms: set})
	}
	if len(fields) == 0 {
		return nil, nil
	}

	p := &highlightProcessor{
		fields:       fields,
		preTag:       spec.PreTag,
		postTag:      spec.PostTag,
		fragSize:     spec.FragmentSize,
		numFragments: spec.NumFragments,
	}
	if p.preTag == "" {
		p.preTag = defaultPreTag
	}
	if p.postTag == "" {
		p.postTag = defaultPostTag
	}
	if p.fragSize <= 0 {
		p.fragSize = defaultFragmentSize
	}
	if p.numFragments <= 0 {
		p.numFragments = defaultNumFragments
	}
	return p, nil
}

type highlightField struct {
	name     string
	analyzer *analysis.Analyzer
	terms    map[string]struct{}
}

type highlightProcessor struct {
	fields       []highlightField
	preTag       string
	postTag      string
	fragSize     int
	numFragments int
}

func (p *highlightProcessor) StoredFieldsSpec() StoredFieldsSpec {
	return StoredFieldsSpec{RequiresSource: true}
}

func (p *highlightProcessor) SetNextReader(*index.SegmentSnapshot) error { return nil }

func (p *highlightProcessor) Process(hc *HitContext) error {
	src, err := hc.Source()
	if err != nil {
		return err
	}
	for _, f := range p.fields {
		var fragments []string
		for _, v := range extractPathValues(src, strings.Split(f.name, ".")) {
			text, ok := v.(string)
			if !ok {
				continue
			}
			fragments = append(fragments, p.highlightText(f, text)...)
			if len(fragments) >= p.numFragments {
				fragments = fragments[:p.numFragments]
				break
			}
		}
		if len(fragments) == 0 {
			continue
		}
		if hc.Hit.Highlight == nil {
			hc.Hit.Highlight = make(map[string][]string)
		}
		hc.Hit.Highlight[f.name] = fragments
	}
	return nil
}

// extractPathValues 沿点分路径取出全部叶值，数组逐元素展开
func extractPathValues(v interface{}, parts []string) []interface{} {
	if len(parts) == 0 {
		if arr, ok := v.([]interface{}); ok {
			return arr
		}
		return []interface{}{v}
	}
	switch t := v.(type) {
	case map[string]interface{}:
		next, ok := t[parts[0]]
		if !ok {
			return nil
		}
		return extractPathValues(next, parts[1:])
	case []interface{}:
		var rv []interface{}
		for _, el := range t {
			rv = append(rv, extractPathValues(el, parts)...)
		}
		return rv
	default:
		return nil
	}
}

type matchSpan struct {
	start, end int
}

// highlightText 高亮单段文本，返回带标签的片段列表
func (p *highlightProcessor) highlightText(f highlightField, text string) []string {
	spans := p.matchSpans(f, text)
	if len(spans) == 0 {
		return nil
	}

	var fragments []string
	for i := 0; i < len(spans) && len(fragments) < p.numFragments; {
		// 聚集能塞进一个片段窗口的连续命中
		j := i + 1
		for j < len(spans) && spans[j].end-spans[i].start <= p.fragSize {
			j++
		}
		fragments = append(fragments, p.renderFragment(text, spans[i:j]))
		i = j
	}
	return fragments
}

// matchSpans 分析文本并返回命中词项的字节区间，升序去重
func (p *highlightProcessor) matchSpans(f highlightField, text string) []matchSpan {
	var spans []matchSpan
	for _, token := range f.analyzer.Analyze([]byte(text)) {
		if _, ok := f.terms[string(token.Term)]; !ok {
			continue
		}
		spans = append(spans, matchSpan{start: token.Start, end: token.End})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	kept := spans[:0]
	prevEnd := -1
	for _, s := range spans {
		if s.start < prevEnd {
			continue
		}
		kept = append(kept, s)
		prevEnd = s.end
	}
	return kept
}

// renderFragment 围绕一组命中裁出片段并插入标签
// 窗口向词边界对齐，且始终覆盖组内全部命中
func (p *highlightProcessor) renderFragment(text string, spans []matchSpan) string {
	first, last := spans[0], spans[len(spans)-1]

	budget := p.fragSize - (last.end - first.start)
	if budget < 0 {
		budget = 0
	}
	fragStart := first.start - budget/2
	if fragStart < 0 {
		fragStart = 0
	}
	for fragStart > 0 && text[fragStart-1] != ' ' {
		fragStart--
	}
	fragEnd := fragStart + p.fragSize
	if fragEnd < last.end {
		fragEnd = last.end
	}
	if fragEnd > len(text) {
		fragEnd = len(text)
	}
	for fragEnd < len(text) && text[fragEnd] != ' ' {
		fragEnd++
	}

	var sb strings.Builder
	prev := fragStart
	for _, s := range spans {
		sb.WriteString(text[prev:s.start])
		sb.WriteString(p.preTag)
		sb.WriteString(text[s.start:s.end])
		sb.WriteString(p.postTag)
		prev = s.end
	}
	sb.WriteString(text[prev:fragEnd])
	return sb.String()
}
