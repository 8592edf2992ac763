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

package es

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"strings"
	"testing"

	elastic "github.com/olivere/elastic/v7"

	"github.com/lynxsearch/lynxdb/index"
	_ "github.com/lynxsearch/lynxdb/index/store/gtreap"
	"github.com/lynxsearch/lynxdb/mapping"
	"github.com/lynxsearch/lynxdb/search"
	"github.com/lynxsearch/lynxdb/search/fetch"
)

const compatMappingJSON = `{
  "properties": {
    "title": {"type": "text"},
    "tags": {"type": "keyword"},
    "views": {"type": "long"},
    "comments": {
      "type": "nested",
      "properties": {
        "message": {"type": "text"},
        "votes": {
          "type": "nested",
          "properties": {
            "by": {"type": "keyword"}
          }
        }
      }
    }
  }
}`

// 双分片布局：分片 0 存 a、b，分片 1 存 c
func newCompatRunner(t *testing.T) *search.Runner {
	t.Helper()
	batches := [][][2]string{
		{
			{"a", `{"title": "go in action", "tags": ["book", "go"], "views": 100,
			        "comments": [{"message": "great read", "votes": [{"by": "bob"}, {"by": "carol"}]}]}`},
			{"b", `{"title": "rust in practice", "tags": ["book", "rust"], "views": 50,
			        "comments": [{"message": "nice work", "votes": [{"by": "dave"}]}]}`},
		},
		{
			{"c", `{"title": "go tooling deep dive", "tags": ["go"], "views": 200}`},
		},
	}
	shards := make([]*index.Index, len(batches))
	for i, batch := range batches {
		m, err := mapping.ParseIndexMappingJSON([]byte(compatMappingJSON))
		if err != nil {
			t.Fatalf("Failed to parse mapping: %v", err)
		}
		idx, err := index.Open(index.Config{Backend: "memory", Mapping: m})
		if err != nil {
			t.Fatalf("Failed to open shard %d: %v", i, err)
		}
		t.Cleanup(func() { _ = idx.Close() })
		builder := idx.NewBuilder()
		for _, doc := range batch {
			if err := builder.AddDocument(doc[0], []byte(doc[1])); err != nil {
				t.Fatalf("Failed to add document %s: %v", doc[0], err)
			}
		}
		if err := builder.Commit(); err != nil {
			t.Fatalf("Failed to commit shard %d: %v", i, err)
		}
		shards[i] = idx
	}
	runner, err := search.NewRunner(search.RunnerConfig{Shards: shards, Fetch: fetch.NewDefault()})
	if err != nil {
		t.Fatalf("Failed to create runner: %v", err)
	}
	return runner
}

// runCompatSearch 走完整回路：请求 JSON → 引擎执行 → 线格式 → ES 客户端结构
// 响应能被官方 Go 客户端的类型原样解出即视为线格式兼容
func runCompatSearch(t *testing.T, body string) *elastic.SearchResult {
	t.Helper()
	runner := newCompatRunner(t)

	req, err := ParseSearchRequest([]byte(body))
	if err != nil {
		t.Fatalf("Failed to parse search request: %v", err)
	}
	converted, err := req.Convert(NewQueryParser())
	if err != nil {
		t.Fatalf("Failed to convert search request: %v", err)
	}
	rv, err := runner.Execute(context.Background(), converted)
	if err != nil {
		t.Fatalf("Failed to execute search: %v", err)
	}

	data, err := json.Marshal(NewSearchResponse("books", converted, rv))
	if err != nil {
		t.Fatalf("Failed to marshal response: %v", err)
	}
	var sr elastic.SearchResult
	if err := json.Unmarshal(data, &sr); err != nil {
		t.Fatalf("Failed to unmarshal response into the client type: %v", err)
	}
	return &sr
}

func compatHitIDs(sr *elastic.SearchResult) []string {
	ids := make([]string, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		ids = append(ids, h.Id)
	}
	return ids
}

// TestCompatibilityMatchAll 测试 match_all 的基础响应形状
func TestCompatibilityMatchAll(t *testing.T) {
	sr := runCompatSearch(t, `{"query": {"match_all": {}}, "size": 10}`)

	if sr.TotalHits() != 3 {
		t.Fatalf("TotalHits() = %d, want 3", sr.TotalHits())
	}
	if sr.Hits == nil || len(sr.Hits.Hits) != 3 {
		t.Fatalf("expected 3 hits, got %+v", sr.Hits)
	}
	if got := compatHitIDs(sr); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("hit ids = %v, want [a b c]", got)
	}
	if sr.Hits.TotalHits.Relation != "eq" {
		t.Errorf("total relation = %q, want %q", sr.Hits.TotalHits.Relation, "eq")
	}
	if sr.Hits.MaxScore == nil || *sr.Hits.MaxScore != 1.0 {
		t.Errorf("max_score = %v, want 1.0", sr.Hits.MaxScore)
	}
	for _, h := range sr.Hits.Hits {
		if h.Index != "books" {
			t.Errorf("hit %s index = %q, want %q", h.Id, h.Index, "books")
		}
		if h.Score == nil || *h.Score != 1.0 {
			t.Errorf("hit %s score = %v, want 1.0", h.Id, h.Score)
		}
	}

	var src map[string]interface{}
	if err := json.Unmarshal(sr.Hits.Hits[0].Source, &src); err != nil {
		t.Fatalf("Failed to unmarshal hit source: %v", err)
	}
	if src["title"] != "go in action" {
		t.Errorf("source title = %v, want %q", src["title"], "go in action")
	}

	if sr.Shards == nil || sr.Shards.Total != 2 || sr.Shards.Successful != 2 || sr.Shards.Failed != 0 {
		t.Errorf("shards = %+v, want total 2, successful 2, failed 0", sr.Shards)
	}
	if sr.TimedOut {
		t.Error("timed_out = true, want false")
	}
}

// TestCompatibilityHighlightAndAggregations 测试高亮片段与词项聚合的线格式
func TestCompatibilityHighlightAndAggregations(t *testing.T) {
	sr := runCompatSearch(t, `{
		"query": {"match": {"title": "go"}},
		"aggs": {"top_tags": {"terms": {"field": "tags"}}},
		"highlight": {"fields": {"title": {}}}
	}`)

	if sr.TotalHits() != 2 {
		t.Fatalf("TotalHits() = %d, want 2", sr.TotalHits())
	}
	ids := compatHitIDs(sr)
	sort.Strings(ids)
	if !reflect.DeepEqual(ids, []string{"a", "c"}) {
		t.Fatalf("hit ids = %v, want [a c]", ids)
	}

	for _, h := range sr.Hits.Hits {
		fragments, ok := h.Highlight["title"]
		if !ok || len(fragments) == 0 {
			t.Fatalf("hit %s has no title highlight: %+v", h.Id, h.Highlight)
		}
		if !strings.Contains(fragments[0], "<em>go</em>") {
			t.Errorf("hit %s fragment = %q, want a <em>go</em> mark", h.Id, fragments[0])
		}
	}

	agg, ok := sr.Aggregations.Terms("top_tags")
	if !ok {
		t.Fatal("missing top_tags aggregation")
	}
	if len(agg.Buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(agg.Buckets))
	}
	if agg.Buckets[0].Key != "go" || agg.Buckets[0].DocCount != 2 {
		t.Errorf("bucket 0 = %v/%d, want go/2", agg.Buckets[0].Key, agg.Buckets[0].DocCount)
	}
	if agg.Buckets[1].Key != "book" || agg.Buckets[1].DocCount != 1 {
		t.Errorf("bucket 1 = %v/%d, want book/1", agg.Buckets[1].Key, agg.Buckets[1].DocCount)
	}
	if agg.SumOfOtherDocCount != 0 {
		t.Errorf("sum_other_doc_count = %d, want 0", agg.SumOfOtherDocCount)
	}
}

// TestCompatibilityScriptFields 测试脚本字段在 fields 块中的形状
func TestCompatibilityScriptFields(t *testing.T) {
	sr := runCompatSearch(t, `{
		"query": {"term": {"tags": "go"}},
		"script_fields": {"views_doubled": {"script": "doc['views'].value * 2"}}
	}`)

	if sr.TotalHits() != 2 {
		t.Fatalf("TotalHits() = %d, want 2", sr.TotalHits())
	}
	want := map[string]float64{"a": 200, "c": 400}
	for _, h := range sr.Hits.Hits {
		raw, ok := h.Fields["views_doubled"]
		if !ok {
			t.Fatalf("hit %s has no views_doubled field: %+v", h.Id, h.Fields)
		}
		values, ok := raw.([]interface{})
		if !ok || len(values) != 1 {
			t.Fatalf("hit %s views_doubled = %#v, want a single-element array", h.Id, raw)
		}
		if values[0] != want[h.Id] {
			t.Errorf("hit %s views_doubled = %v, want %v", h.Id, values[0], want[h.Id])
		}
		if h.Source == nil {
			t.Errorf("hit %s lost its source", h.Id)
		}
	}
}

// TestCompatibilityNestedHit 测试嵌套命中的 _nested 标识链
func TestCompatibilityNestedHit(t *testing.T) {
	sr := runCompatSearch(t, `{"query": {"term": {"comments.votes.by": "carol"}}}`)

	if sr.TotalHits() != 1 {
		t.Fatalf("TotalHits() = %d, want 1", sr.TotalHits())
	}
	h := sr.Hits.Hits[0]
	if h.Id != "a" {
		t.Errorf("hit id = %q, want %q", h.Id, "a")
	}
	if h.Nested == nil {
		t.Fatal("expected a _nested identity")
	}
	if h.Nested.Field != "comments" || h.Nested.Offset != 0 {
		t.Errorf("identity = %s[%d], want comments[0]", h.Nested.Field, h.Nested.Offset)
	}
	if h.Nested.Child == nil || h.Nested.Child.Field != "votes" || h.Nested.Child.Offset != 1 {
		t.Errorf("child identity = %+v, want votes[1]", h.Nested.Child)
	}
	if h.Nested.Child.Child != nil {
		t.Errorf("identity chain too deep: %+v", h.Nested.Child.Child)
	}

	var src map[string]interface{}
	if err := json.Unmarshal(h.Source, &src); err != nil {
		t.Fatalf("Failed to unmarshal nested source: %v", err)
	}
	want := map[string]interface{}{
		"comments": map[string]interface{}{
			"votes": map[string]interface{}{"by": "carol"},
		},
	}
	if !reflect.DeepEqual(src, want) {
		t.Errorf("nested source = %v, want %v", src, want)
	}
}

// TestCompatibilityScriptSort 测试脚本排序下的 null 分值与 sort 块
func TestCompatibilityScriptSort(t *testing.T) {
	sr := runCompatSearch(t, `{
		"query": {"match_all": {}},
		"sort":  [{"_script": {"script": "doc['views'].value", "type": "number", "order": "asc"}}]
	}`)

	if got := compatHitIDs(sr); !reflect.DeepEqual(got, []string{"b", "a", "c"}) {
		t.Fatalf("hit ids = %v, want [b a c]", got)
	}
	if sr.Hits.MaxScore != nil {
		t.Errorf("max_score = %v, want null under script sort", *sr.Hits.MaxScore)
	}
	wantSort := []float64{50, 100, 200}
	for i, h := range sr.Hits.Hits {
		if h.Score != nil {
			t.Errorf("hit %s score = %v, want null under script sort", h.Id, *h.Score)
		}
		if len(h.Sort) != 1 || h.Sort[0] != wantSort[i] {
			t.Errorf("hit %s sort = %v, want [%v]", h.Id, h.Sort, wantSort[i])
		}
	}
}

// TestCompatibilityCountAndTermination 测试 size 0 与提前终止的响应形状
func TestCompatibilityCountAndTermination(t *testing.T) {
	sr := runCompatSearch(t, `{"size": 0}`)
	if sr.TotalHits() != 3 {
		t.Fatalf("TotalHits() = %d, want 3", sr.TotalHits())
	}
	if len(sr.Hits.Hits) != 0 {
		t.Errorf("expected no hits for size 0, got %d", len(sr.Hits.Hits))
	}
	if sr.Hits.MaxScore != nil {
		t.Errorf("max_score = %v, want null for size 0", *sr.Hits.MaxScore)
	}

	sr = runCompatSearch(t, `{"query": {"match_all": {}}, "terminate_after": 1}`)
	if !sr.TerminatedEarly {
		t.Error("terminated_early = false, want true")
	}
	if sr.TotalHits() != 2 {
		t.Errorf("TotalHits() = %d, want 2 with one doc per shard", sr.TotalHits())
	}
}

// TestCompatibilityExplain 测试 _explanation 块
func TestCompatibilityExplain(t *testing.T) {
	sr := runCompatSearch(t, `{"query": {"term": {"tags": "go"}}, "explain": true, "size": 1}`)

	if len(sr.Hits.Hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(sr.Hits.Hits))
	}
	h := sr.Hits.Hits[0]
	if h.Explanation == nil {
		t.Fatal("expected an explanation")
	}
	if h.Explanation.Value <= 0 {
		t.Errorf("explanation value = %v, want > 0", h.Explanation.Value)
	}
	if h.Explanation.Description == "" {
		t.Error("explanation description is empty")
	}
}

// TestCompatibilitySourceFiltering 测试 _source 过滤与关闭
func TestCompatibilitySourceFiltering(t *testing.T) {
	sr := runCompatSearch(t, `{
		"query":   {"term": {"tags": "rust"}},
		"_source": {"includes": ["title"]}
	}`)
	if len(sr.Hits.Hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(sr.Hits.Hits))
	}
	var src map[string]interface{}
	if err := json.Unmarshal(sr.Hits.Hits[0].Source, &src); err != nil {
		t.Fatalf("Failed to unmarshal hit source: %v", err)
	}
	if src["title"] != "rust in practice" {
		t.Errorf("source title = %v, want %q", src["title"], "rust in practice")
	}
	if _, ok := src["views"]; ok {
		t.Errorf("source kept an excluded field: %v", src)
	}

	sr = runCompatSearch(t, `{"query": {"term": {"tags": "rust"}}, "_source": false}`)
	if sr.Hits.Hits[0].Source != nil {
		t.Errorf("source = %s, want none when _source is false", sr.Hits.Hits[0].Source)
	}
}
