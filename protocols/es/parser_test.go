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
	"reflect"
	"testing"

	"github.com/lynxsearch/lynxdb/search"
)

// TestParseEmptyQuery 测试空查询对象解析为 match_all
func TestParseEmptyQuery(t *testing.T) {
	parser := NewQueryParser()

	q, err := parser.Parse(map[string]interface{}{})
	if err != nil {
		t.Fatalf("Failed to parse empty query: %v", err)
	}
	if _, ok := q.(*search.MatchAllQueryBuilder); !ok {
		t.Errorf("Parse() returned %T, want *search.MatchAllQueryBuilder", q)
	}
}

// TestParseMatchAllQuery 测试 match_all 查询解析
func TestParseMatchAllQuery(t *testing.T) {
	parser := NewQueryParser()

	q, err := parser.Parse(map[string]interface{}{
		"match_all": map[string]interface{}{
			"boost": 2.0,
			"_name": "everything",
		},
	})
	if err != nil {
		t.Fatalf("Failed to parse match_all query: %v", err)
	}
	ma, ok := q.(*search.MatchAllQueryBuilder)
	if !ok {
		t.Fatalf("Parse() returned %T, want *search.MatchAllQueryBuilder", q)
	}
	if ma.Boost() != 2.0 {
		t.Errorf("Boost() = %v, want 2.0", ma.Boost())
	}
	if ma.QueryName() != "everything" {
		t.Errorf("QueryName() = %q, want %q", ma.QueryName(), "everything")
	}

	q, err = parser.Parse(map[string]interface{}{"match_none": map[string]interface{}{}})
	if err != nil {
		t.Fatalf("Failed to parse match_none query: %v", err)
	}
	if _, ok := q.(*search.MatchNoneQueryBuilder); !ok {
		t.Errorf("Parse() returned %T, want *search.MatchNoneQueryBuilder", q)
	}
}

// TestParseTermQuery 测试 term 查询解析
func TestParseTermQuery(t *testing.T) {
	parser := NewQueryParser()

	q, err := parser.Parse(map[string]interface{}{
		"term": map[string]interface{}{"tags": "go"},
	})
	if err != nil {
		t.Fatalf("Failed to parse term query: %v", err)
	}
	tq, ok := q.(*search.TermQueryBuilder)
	if !ok {
		t.Fatalf("Parse() returned %T, want *search.TermQueryBuilder", q)
	}
	if tq.Field() != "tags" {
		t.Errorf("Field() = %q, want %q", tq.Field(), "tags")
	}

	q, err = parser.Parse(map[string]interface{}{
		"term": map[string]interface{}{
			"tags": map[string]interface{}{
				"value": "go",
				"boost": 2.5,
				"_name": "go_tag",
			},
		},
	})
	if err != nil {
		t.Fatalf("Failed to parse term query with options: %v", err)
	}
	tq = q.(*search.TermQueryBuilder)
	if tq.Boost() != 2.5 {
		t.Errorf("Boost() = %v, want 2.5", tq.Boost())
	}
	if tq.QueryName() != "go_tag" {
		t.Errorf("QueryName() = %q, want %q", tq.QueryName(), "go_tag")
	}

	tests := []struct {
		name  string
		query map[string]interface{}
	}{
		{
			name:  "non-map body",
			query: map[string]interface{}{"term": "tags"},
		},
		{
			name: "object form without value",
			query: map[string]interface{}{
				"term": map[string]interface{}{
					"tags": map[string]interface{}{"boost": 2.0},
				},
			},
		},
		{
			name:  "empty body",
			query: map[string]interface{}{"term": map[string]interface{}{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parser.Parse(tt.query); err == nil {
				t.Error("Parse() expected an error, got nil")
			}
		})
	}
}

// TestParseMatchQuery 测试 match 查询解析
func TestParseMatchQuery(t *testing.T) {
	parser := NewQueryParser()

	q, err := parser.Parse(map[string]interface{}{
		"match": map[string]interface{}{"title": "go in action"},
	})
	if err != nil {
		t.Fatalf("Failed to parse match query: %v", err)
	}
	if _, ok := q.(*search.MatchQueryBuilder); !ok {
		t.Fatalf("Parse() returned %T, want *search.MatchQueryBuilder", q)
	}

	q, err = parser.Parse(map[string]interface{}{
		"match": map[string]interface{}{
			"title": map[string]interface{}{
				"query": "go in action",
				"boost": 1.5,
			},
		},
	})
	if err != nil {
		t.Fatalf("Failed to parse match query object form: %v", err)
	}
	mq := q.(*search.MatchQueryBuilder)
	if mq.Boost() != 1.5 {
		t.Errorf("Boost() = %v, want 1.5", mq.Boost())
	}

	if _, err := parser.Parse(map[string]interface{}{
		"match": map[string]interface{}{
			"title": map[string]interface{}{"boost": 1.5},
		},
	}); err == nil {
		t.Error("Parse() expected an error for match without 'query'")
	}
	if _, err := parser.Parse(map[string]interface{}{
		"match": map[string]interface{}{"title": 42},
	}); err == nil {
		t.Error("Parse() expected an error for non-string match value")
	}
}

// TestParseBoolQuery 测试 bool 查询解析
func TestParseBoolQuery(t *testing.T) {
	parser := NewQueryParser()

	q, err := parser.Parse(map[string]interface{}{
		"bool": map[string]interface{}{
			"must": []interface{}{
				map[string]interface{}{"term": map[string]interface{}{"tags": "go"}},
				map[string]interface{}{"match": map[string]interface{}{"title": "action"}},
			},
			"filter": map[string]interface{}{
				"range": map[string]interface{}{
					"views": map[string]interface{}{"gte": 50},
				},
			},
			"should": []interface{}{
				map[string]interface{}{"term": map[string]interface{}{"tags": "book"}},
			},
			"must_not": []interface{}{
				map[string]interface{}{"term": map[string]interface{}{"tags": "draft"}},
			},
			"minimum_should_match": 1,
			"boost":                1.2,
			"_name":                "filtered",
		},
	})
	if err != nil {
		t.Fatalf("Failed to parse bool query: %v", err)
	}
	bq, ok := q.(*search.BoolQueryBuilder)
	if !ok {
		t.Fatalf("Parse() returned %T, want *search.BoolQueryBuilder", q)
	}
	if bq.Boost() != 1.2 {
		t.Errorf("Boost() = %v, want 1.2", bq.Boost())
	}
	if bq.QueryName() != "filtered" {
		t.Errorf("QueryName() = %q, want %q", bq.QueryName(), "filtered")
	}

	tests := []struct {
		name  string
		query map[string]interface{}
	}{
		{
			name: "minimum_should_match above one",
			query: map[string]interface{}{
				"bool": map[string]interface{}{
					"should": []interface{}{
						map[string]interface{}{"term": map[string]interface{}{"tags": "go"}},
					},
					"minimum_should_match": 2,
				},
			},
		},
		{
			name: "non-object clause entry",
			query: map[string]interface{}{
				"bool": map[string]interface{}{
					"must": []interface{}{"not a query"},
				},
			},
		},
		{
			name: "invalid sub-query propagates",
			query: map[string]interface{}{
				"bool": map[string]interface{}{
					"must": map[string]interface{}{
						"term": "broken",
					},
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parser.Parse(tt.query); err == nil {
				t.Error("Parse() expected an error, got nil")
			}
		})
	}
}

// TestParseNestedQuery 测试 nested 查询解析
func TestParseNestedQuery(t *testing.T) {
	parser := NewQueryParser()

	q, err := parser.Parse(map[string]interface{}{
		"nested": map[string]interface{}{
			"path": "comments",
			"query": map[string]interface{}{
				"match": map[string]interface{}{"comments.message": "great"},
			},
			"score_mode": "max",
		},
	})
	if err != nil {
		t.Fatalf("Failed to parse nested query: %v", err)
	}
	if _, ok := q.(*search.NestedQueryBuilder); !ok {
		t.Fatalf("Parse() returned %T, want *search.NestedQueryBuilder", q)
	}

	if _, err := parser.Parse(map[string]interface{}{
		"nested": map[string]interface{}{
			"query": map[string]interface{}{"match_all": map[string]interface{}{}},
		},
	}); err == nil {
		t.Error("Parse() expected an error for nested without 'path'")
	}
	if _, err := parser.Parse(map[string]interface{}{
		"nested": map[string]interface{}{"path": "comments"},
	}); err == nil {
		t.Error("Parse() expected an error for nested without 'query'")
	}
	if _, err := parser.Parse(map[string]interface{}{
		"nested": map[string]interface{}{
			"path":       "comments",
			"query":      map[string]interface{}{"match_all": map[string]interface{}{}},
			"score_mode": "median",
		},
	}); err == nil {
		t.Error("Parse() expected an error for invalid score_mode")
	}
}

// TestParseRangeQuery 测试 range 查询解析
func TestParseRangeQuery(t *testing.T) {
	parser := NewQueryParser()

	q, err := parser.Parse(map[string]interface{}{
		"range": map[string]interface{}{
			"views": map[string]interface{}{
				"gte":   50,
				"lt":    200,
				"boost": 2.0,
			},
		},
	})
	if err != nil {
		t.Fatalf("Failed to parse range query: %v", err)
	}
	rq, ok := q.(*search.RangeQueryBuilder)
	if !ok {
		t.Fatalf("Parse() returned %T, want *search.RangeQueryBuilder", q)
	}
	if rq.Boost() != 2.0 {
		t.Errorf("Boost() = %v, want 2.0", rq.Boost())
	}

	if _, err := parser.Parse(map[string]interface{}{
		"range": map[string]interface{}{
			"views": map[string]interface{}{"around": 100},
		},
	}); err == nil {
		t.Error("Parse() expected an error for unsupported range parameter")
	}
	if _, err := parser.Parse(map[string]interface{}{
		"range": map[string]interface{}{
			"views": map[string]interface{}{"boost": 2.0},
		},
	}); err == nil {
		t.Error("Parse() expected an error for range without bounds")
	}
}

// TestParseExistsQuery 测试 exists 查询解析
func TestParseExistsQuery(t *testing.T) {
	parser := NewQueryParser()

	q, err := parser.Parse(map[string]interface{}{
		"exists": map[string]interface{}{"field": "tags"},
	})
	if err != nil {
		t.Fatalf("Failed to parse exists query: %v", err)
	}
	if _, ok := q.(*search.ExistsQueryBuilder); !ok {
		t.Fatalf("Parse() returned %T, want *search.ExistsQueryBuilder", q)
	}

	if _, err := parser.Parse(map[string]interface{}{
		"exists": map[string]interface{}{},
	}); err == nil {
		t.Error("Parse() expected an error for exists without 'field'")
	}
}

// TestParseScriptQuery 测试 script 查询解析
func TestParseScriptQuery(t *testing.T) {
	parser := NewQueryParser()

	tests := []struct {
		name    string
		query   map[string]interface{}
		wantErr bool
	}{
		{
			name: "script query with source",
			query: map[string]interface{}{
				"script": map[string]interface{}{
					"script": map[string]interface{}{
						"source": "doc['views'].value > 100",
					},
				},
			},
			wantErr: false,
		},
		{
			name: "script query with params",
			query: map[string]interface{}{
				"script": map[string]interface{}{
					"script": map[string]interface{}{
						"source": "doc['views'].value > params.threshold",
						"params": map[string]interface{}{
							"threshold": 100,
						},
					},
				},
			},
			wantErr: false,
		},
		{
			name: "script query inline format",
			query: map[string]interface{}{
				"script": map[string]interface{}{
					"script": "doc['views'].value > 100",
				},
			},
			wantErr: false,
		},
		{
			name: "script query without source",
			query: map[string]interface{}{
				"script": map[string]interface{}{
					"script": map[string]interface{}{
						"params": map[string]interface{}{"threshold": 100},
					},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := parser.Parse(tt.query)
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr {
				if _, ok := q.(*search.ScriptQueryBuilder); !ok {
					t.Errorf("Parse() returned %T, want *search.ScriptQueryBuilder", q)
				}
			}
		})
	}
}

// TestParseQueryErrors 测试顶层解析错误
func TestParseQueryErrors(t *testing.T) {
	parser := NewQueryParser()

	_, err := parser.Parse(map[string]interface{}{
		"term":  map[string]interface{}{"tags": "go"},
		"match": map[string]interface{}{"title": "go"},
	})
	if err == nil {
		t.Fatal("Parse() expected an error for multiple query types")
	}

	_, err = parser.Parse(map[string]interface{}{
		"fuzzy": map[string]interface{}{"title": "go"},
	})
	if err == nil {
		t.Fatal("Parse() expected an error for unsupported query type")
	}
}

// TestParseSearchRequestAggsAlias 测试 aggs 与 aggregations 两种写法
func TestParseSearchRequestAggsAlias(t *testing.T) {
	req, err := ParseSearchRequest([]byte(`{
		"aggs": {"top_tags": {"terms": {"field": "tags"}}}
	}`))
	if err != nil {
		t.Fatalf("Failed to parse search request: %v", err)
	}
	if _, ok := req.Aggregations["top_tags"]; !ok {
		t.Error("expected 'aggs' to populate Aggregations")
	}

	req, err = ParseSearchRequest([]byte(`{
		"aggs":         {"from_aggs": {"terms": {"field": "tags"}}},
		"aggregations": {"from_aggregations": {"terms": {"field": "tags"}}}
	}`))
	if err != nil {
		t.Fatalf("Failed to parse search request: %v", err)
	}
	if _, ok := req.Aggregations["from_aggregations"]; !ok {
		t.Error("expected 'aggregations' to win over 'aggs'")
	}
	if _, ok := req.Aggregations["from_aggs"]; ok {
		t.Error("expected 'aggs' entries to be discarded when 'aggregations' is present")
	}
}

// TestSearchRequestConvert 测试请求整体转换
func TestSearchRequestConvert(t *testing.T) {
	body := []byte(`{
		"query": {"term": {"tags": "go"}},
		"from": 5,
		"terminate_after": 100,
		"stored_fields": ["title"],
		"explain": true
	}`)
	req, err := ParseSearchRequest(body)
	if err != nil {
		t.Fatalf("Failed to parse search request: %v", err)
	}
	converted, err := req.Convert(NewQueryParser())
	if err != nil {
		t.Fatalf("Failed to convert search request: %v", err)
	}
	if converted.From != 5 {
		t.Errorf("From = %d, want 5", converted.From)
	}
	if converted.Size != -1 {
		t.Errorf("Size = %d, want -1 when unset", converted.Size)
	}
	if converted.TerminateAfter != 100 {
		t.Errorf("TerminateAfter = %d, want 100", converted.TerminateAfter)
	}
	if !reflect.DeepEqual(converted.StoredFields, []string{"title"}) {
		t.Errorf("StoredFields = %v, want [title]", converted.StoredFields)
	}
	if !converted.Explain {
		t.Error("Explain = false, want true")
	}
	if _, ok := converted.Query.(*search.TermQueryBuilder); !ok {
		t.Errorf("Query = %T, want *search.TermQueryBuilder", converted.Query)
	}

	req, err = ParseSearchRequest([]byte(`{"size": 0}`))
	if err != nil {
		t.Fatalf("Failed to parse search request: %v", err)
	}
	converted, err = req.Convert(NewQueryParser())
	if err != nil {
		t.Fatalf("Failed to convert search request: %v", err)
	}
	if converted.Size != 0 {
		t.Errorf("Size = %d, want explicit 0 to survive", converted.Size)
	}
	if converted.Query != nil {
		t.Errorf("Query = %v, want nil for an absent query", converted.Query)
	}
}

// TestConvertSource 测试 _source 的四种形式
func TestConvertSource(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *search.SourceSelector
	}{
		{
			name: "absent",
			body: `{}`,
			want: nil,
		},
		{
			name: "disabled",
			body: `{"_source": false}`,
			want: &search.SourceSelector{Fetch: false},
		},
		{
			name: "single field",
			body: `{"_source": "title"}`,
			want: &search.SourceSelector{Fetch: true, Includes: []string{"title"}},
		},
		{
			name: "field array",
			body: `{"_source": ["title", "tags"]}`,
			want: &search.SourceSelector{Fetch: true, Includes: []string{"title", "tags"}},
		},
		{
			name: "includes and excludes",
			body: `{"_source": {"includes": ["title"], "excludes": "comments"}}`,
			want: &search.SourceSelector{Fetch: true, Includes: []string{"title"}, Excludes: []string{"comments"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseSearchRequest([]byte(tt.body))
			if err != nil {
				t.Fatalf("Failed to parse search request: %v", err)
			}
			converted, err := req.Convert(NewQueryParser())
			if err != nil {
				t.Fatalf("Failed to convert search request: %v", err)
			}
			if !reflect.DeepEqual(converted.Source, tt.want) {
				t.Errorf("Source = %+v, want %+v", converted.Source, tt.want)
			}
		})
	}

	req, err := ParseSearchRequest([]byte(`{"_source": 42}`))
	if err != nil {
		t.Fatalf("Failed to parse search request: %v", err)
	}
	if _, err := req.Convert(NewQueryParser()); err == nil {
		t.Error("Convert() expected an error for a numeric _source")
	}
}

// TestConvertScriptFields 测试 script_fields 转换
func TestConvertScriptFields(t *testing.T) {
	req, err := ParseSearchRequest([]byte(`{
		"script_fields": {
			"views_doubled": {"script": "doc['views'].value * 2"},
			"age_days":      {"script": {"source": "doc['views'].value", "params": {"base": 1}}}
		}
	}`))
	if err != nil {
		t.Fatalf("Failed to parse search request: %v", err)
	}
	converted, err := req.Convert(NewQueryParser())
	if err != nil {
		t.Fatalf("Failed to convert search request: %v", err)
	}
	if len(converted.ScriptFields) != 2 {
		t.Fatalf("expected 2 script fields, got %d", len(converted.ScriptFields))
	}
	if converted.ScriptFields[0].Name != "age_days" || converted.ScriptFields[1].Name != "views_doubled" {
		t.Errorf("script fields not sorted by name: %q, %q",
			converted.ScriptFields[0].Name, converted.ScriptFields[1].Name)
	}
	if converted.ScriptFields[1].Script.Source != "doc['views'].value * 2" {
		t.Errorf("unexpected script source: %q", converted.ScriptFields[1].Script.Source)
	}

	req, err = ParseSearchRequest([]byte(`{"script_fields": {"bad": {"lang": "painless"}}}`))
	if err != nil {
		t.Fatalf("Failed to parse search request: %v", err)
	}
	if _, err := req.Convert(NewQueryParser()); err == nil {
		t.Error("Convert() expected an error for a script field without 'script'")
	}
}

// TestConvertHighlight 测试 highlight 转换
func TestConvertHighlight(t *testing.T) {
	req, err := ParseSearchRequest([]byte(`{
		"highlight": {
			"fields":              {"title": {}, "comments.message": {}},
			"pre_tags":            ["<b>"],
			"post_tags":           ["</b>"],
			"fragment_size":       60,
			"number_of_fragments": 2
		}
	}`))
	if err != nil {
		t.Fatalf("Failed to parse search request: %v", err)
	}
	converted, err := req.Convert(NewQueryParser())
	if err != nil {
		t.Fatalf("Failed to convert search request: %v", err)
	}
	want := &search.HighlightSpec{
		Fields:       []string{"comments.message", "title"},
		PreTag:       "<b>",
		PostTag:      "</b>",
		FragmentSize: 60,
		NumFragments: 2,
	}
	if !reflect.DeepEqual(converted.Highlight, want) {
		t.Errorf("Highlight = %+v, want %+v", converted.Highlight, want)
	}

	req, err = ParseSearchRequest([]byte(`{"highlight": {"pre_tags": ["<b>"]}}`))
	if err != nil {
		t.Fatalf("Failed to parse search request: %v", err)
	}
	if _, err := req.Convert(NewQueryParser()); err == nil {
		t.Error("Convert() expected an error for highlight without 'fields'")
	}
}

// TestConvertSort 测试 sort 转换
func TestConvertSort(t *testing.T) {
	req, err := ParseSearchRequest([]byte(`{
		"sort": [
			"_score",
			{"_script": {"script": "doc['views'].value", "type": "number", "order": "desc"}}
		]
	}`))
	if err != nil {
		t.Fatalf("Failed to parse search request: %v", err)
	}
	converted, err := req.Convert(NewQueryParser())
	if err != nil {
		t.Fatalf("Failed to convert search request: %v", err)
	}
	if converted.ScriptSort == nil {
		t.Fatal("expected a script sort")
	}
	if !converted.ScriptSort.Desc {
		t.Error("Desc = false, want true")
	}
	if converted.ScriptSort.Script.Source != "doc['views'].value" {
		t.Errorf("unexpected sort script source: %q", converted.ScriptSort.Script.Source)
	}

	req, err = ParseSearchRequest([]byte(`{
		"sort": [{"_script": {"script": "doc['views'].value", "order": "asc"}}]
	}`))
	if err != nil {
		t.Fatalf("Failed to parse search request: %v", err)
	}
	converted, err = req.Convert(NewQueryParser())
	if err != nil {
		t.Fatalf("Failed to convert search request: %v", err)
	}
	if converted.ScriptSort == nil || converted.ScriptSort.Desc {
		t.Errorf("ScriptSort = %+v, want ascending script sort", converted.ScriptSort)
	}

	errorBodies := []struct {
		name string
		body string
	}{
		{
			name: "field sort",
			body: `{"sort": [{"views": {"order": "desc"}}]}`,
		},
		{
			name: "invalid order",
			body: `{"sort": [{"_script": {"script": "1", "order": "sideways"}}]}`,
		},
		{
			name: "non-number type",
			body: `{"sort": [{"_script": {"script": "1", "type": "string"}}]}`,
		},
		{
			name: "two script sorts",
			body: `{"sort": [{"_script": {"script": "1"}}, {"_script": {"script": "2"}}]}`,
		},
	}
	for _, tt := range errorBodies {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseSearchRequest([]byte(tt.body))
			if err != nil {
				t.Fatalf("Failed to parse search request: %v", err)
			}
			if _, err := req.Convert(NewQueryParser()); err == nil {
				t.Error("Convert() expected an error, got nil")
			}
		})
	}
}

// TestConvertAggregations 测试聚合转换
func TestConvertAggregations(t *testing.T) {
	req, err := ParseSearchRequest([]byte(`{
		"aggs": {
			"top_tags": {"terms": {"field": "tags", "size": 5}},
			"authors":  {"terms": {"field": "comments.votes.by"}}
		}
	}`))
	if err != nil {
		t.Fatalf("Failed to parse search request: %v", err)
	}
	converted, err := req.Convert(NewQueryParser())
	if err != nil {
		t.Fatalf("Failed to convert search request: %v", err)
	}
	want := []*search.TermsAggSpec{
		{Name: "authors", Field: "comments.votes.by"},
		{Name: "top_tags", Field: "tags", Size: 5},
	}
	if !reflect.DeepEqual(converted.Aggregations, want) {
		t.Errorf("Aggregations = %+v, want %+v", converted.Aggregations, want)
	}

	errorBodies := []struct {
		name string
		body string
	}{
		{
			name: "unsupported aggregation type",
			body: `{"aggs": {"views_avg": {"avg": {"field": "views"}}}}`,
		},
		{
			name: "sub-aggregations",
			body: `{"aggs": {"top_tags": {"terms": {"field": "tags"}, "aggs": {"inner": {"terms": {"field": "views"}}}}}}`,
		},
		{
			name: "missing field",
			body: `{"aggs": {"top_tags": {"terms": {"size": 5}}}}`,
		},
	}
	for _, tt := range errorBodies {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseSearchRequest([]byte(tt.body))
			if err != nil {
				t.Fatalf("Failed to parse search request: %v", err)
			}
			if _, err := req.Convert(NewQueryParser()); err == nil {
				t.Error("Convert() expected an error, got nil")
			}
		})
	}
}
