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

package script

import (
	"math"
	"testing"
	"time"
)

// 测试用执行上下文
func testContext() *Context {
	return &Context{
		Doc: map[string]interface{}{
			"price": 10.0,
			"name":  "john",
			"tags":  []interface{}{"a", "b"},
		},
		Source: map[string]interface{}{
			"title": "hello world",
			"user": map[string]interface{}{
				"name": "kimchy",
			},
		},
		Params: map[string]interface{}{
			"factor": 3.0,
			"boost":  2.0,
		},
		Score: 1.5,
		Now:   1700000000000,
	}
}

func evalExpr(t *testing.T, expr string) interface{} {
	t.Helper()
	engine := NewEngine()
	result, err := engine.Execute(NewScript(expr, nil), testContext())
	if err != nil {
		t.Fatalf("Failed to execute script %q: %v", expr, err)
	}
	return result
}

func TestEngineArithmetic(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want float64
	}{
		{"addition", "1 + 2", 3},
		{"precedence", "2 + 3 * 4", 14},
		{"left associative subtraction", "10 - 4 - 3", 3},
		{"unary minus", "-5 + 10", 5},
		{"parentheses", "2 * (3 + 4)", 14},
		{"division", "10 / 4", 2.5},
		{"modulo", "7 % 3", 1},
		{"nested parentheses", "(1 + 2) * 3", 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evalExpr(t, tt.expr)
			f, ok := got.(float64)
			if !ok {
				t.Fatalf("Expected float64 result, got %T", got)
			}
			if math.Abs(f-tt.want) > 1e-9 {
				t.Errorf("Expected %v, got %v", tt.want, f)
			}
		})
	}
}

func TestEngineDivisionByZero(t *testing.T) {
	engine := NewEngine()
	_, err := engine.Execute(NewScript("1 / 0", nil), testContext())
	if err == nil {
		t.Fatal("Expected error for division by zero")
	}
}

func TestEngineStringOps(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want interface{}
	}{
		{"concat", "'a' + 'b'", "ab"},
		{"concat with number", "'price: ' + 10", "price: 10"},
		{"to lower", "'Hello World'.toLowerCase()", "hello world"},
		{"to upper", "'abc'.toUpperCase()", "ABC"},
		{"trim", "'  x  '.trim()", "x"},
		{"substring", "'foobar'.substring(3)", "bar"},
		{"substring range", "'foobar'.substring(1, 3)", "oo"},
		{"contains", "'foobar'.contains('ob')", true},
		{"starts with", "'foobar'.startsWith('foo')", true},
		{"ends with", "'foobar'.endsWith('baz')", false},
		{"index of", "'foobar'.indexOf('bar')", float64(3)},
		{"replace", "'a-b-c'.replace('-', '.')", "a.b.c"},
		{"length", "'hello'.length()", float64(5)},
		{"split then size", "'a,b,c'.split(',').size()", float64(3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evalExpr(t, tt.expr)
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestEngineComparisonAndLogical(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"greater than", "2 > 1", true},
		{"less or equal", "2 <= 1", false},
		{"numeric equality", "3 == 3.0", true},
		{"not equal", "1 != 2", true},
		{"string equality", "'a' == 'a'", true},
		{"string ordering", "'abc' < 'abd'", true},
		{"and", "true && false", false},
		{"or", "false || true", true},
		{"not", "!false", true},
		{"comparison chain with and", "1 > 0 && 2 > 1", true},
		{"precedence or over and", "false && true || true", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evalExpr(t, tt.expr)
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestEngineTernary(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want interface{}
	}{
		{"true branch", "2 > 1 ? 'yes' : 'no'", "yes"},
		{"false branch", "1 > 2 ? 'yes' : 'no'", "no"},
		{"nested", "1 > 2 ? 'a' : 3 > 2 ? 'b' : 'c'", "b"},
		{"numeric branches", "true ? 1 + 1 : 0", float64(2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evalExpr(t, tt.expr)
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestEngineFieldAccess(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		want    interface{}
		wantErr bool
	}{
		{"doc value", "doc['price'].value", 10.0, false},
		{"doc value arithmetic", "doc['price'].value * 2", 20.0, false},
		{"doc multi value takes first", "doc['tags'].value", "a", false},
		{"doc missing value errors", "doc['missing'].value", nil, true},
		{"doc missing size is zero", "doc['missing'].size()", float64(0), false},
		{"doc list size", "doc['tags'].size()", float64(2), false},
		{"doc list contains", "doc['tags'].contains('b')", true, false},
		{"doc dot access", "doc.price", 10.0, false},
		{"params dot access", "params.factor", 3.0, false},
		{"params bracket access", "params['boost']", 2.0, false},
		{"params with doc", "params.factor * doc['price'].value", 30.0, false},
		{"source access", "_source.title", "hello world", false},
		{"source nested path", "_source.user.name", "kimchy", false},
		{"score", "_score * 2", 3.0, false},
		{"string comparison on doc", "doc['name'].value == 'john'", true, false},
	}

	engine := NewEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Execute(NewScript(tt.expr, nil), testContext())
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error for %q, got %v", tt.expr, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Failed to execute script %q: %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestEngineMathBuiltins(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want float64
	}{
		{"abs", "Math.abs(-4)", 4},
		{"ceil", "Math.ceil(1.2)", 2},
		{"floor", "Math.floor(1.8)", 1},
		{"round", "Math.round(2.5)", 3},
		{"sqrt", "Math.sqrt(16)", 4},
		{"pow", "Math.pow(2, 10)", 1024},
		{"min variadic", "Math.min(3, 1, 2)", 1},
		{"max variadic", "Math.max(1, 5, 3)", 5},
		{"builtin in arithmetic", "Math.min(1, 2) + 1", 2},
		{"log10", "Math.log10(1000)", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evalExpr(t, tt.expr)
			f, ok := got.(float64)
			if !ok {
				t.Fatalf("Expected float64 result, got %T", got)
			}
			if math.Abs(f-tt.want) > 1e-9 {
				t.Errorf("Expected %v, got %v", tt.want, f)
			}
		})
	}
}

func TestEngineNowBuiltin(t *testing.T) {
	engine := NewEngine()
	ctx := testContext()
	got, err := engine.Execute(NewScript("now()", nil), ctx)
	if err != nil {
		t.Fatalf("Failed to execute now(): %v", err)
	}
	if got != float64(ctx.Now) {
		t.Errorf("Expected %v, got %v", float64(ctx.Now), got)
	}
}

func TestEngineUnsupportedExpression(t *testing.T) {
	engine := NewEngine()
	for _, expr := range []string{"", "foo bar", "doc['price'].explode()"} {
		if _, err := engine.Execute(NewScript(expr, nil), testContext()); err == nil {
			t.Errorf("Expected error for %q", expr)
		}
	}
}

func TestEngineMergesScriptParams(t *testing.T) {
	engine := NewEngine()
	s := NewScript("params.x + 1", map[string]interface{}{"x": 41.0})
	got, err := engine.Execute(s, &Context{})
	if err != nil {
		t.Fatalf("Failed to execute script: %v", err)
	}
	if got != 42.0 {
		t.Errorf("Expected 42, got %v", got)
	}
}

func TestParseScript(t *testing.T) {
	tests := []struct {
		name    string
		input   interface{}
		wantSrc string
		wantErr bool
	}{
		{"plain string", "doc['a'].value", "doc['a'].value", false},
		{
			"map with source",
			map[string]interface{}{
				"source": "_score * 2",
				"lang":   "painless",
				"params": map[string]interface{}{"f": 2.0},
			},
			"_score * 2",
			false,
		},
		{
			"legacy inline field",
			map[string]interface{}{"inline": "_score"},
			"_score",
			false,
		},
		{
			"missing source",
			map[string]interface{}{"lang": "painless"},
			"",
			true,
		},
		{"invalid type", 42, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseScript(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected parse error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Failed to parse script: %v", err)
			}
			if s.Source != tt.wantSrc {
				t.Errorf("Expected source %q, got %q", tt.wantSrc, s.Source)
			}
			if s.Lang != LangPainless {
				t.Errorf("Expected painless lang, got %q", s.Lang)
			}
		})
	}
}

func TestFactoryDeterminism(t *testing.T) {
	tests := []struct {
		name          string
		source        string
		deterministic bool
	}{
		{"pure arithmetic", "doc['price'].value * 2", true},
		{"random", "_score * Math.random()", false},
		{"now", "now() - doc['price'].value", false},
		{"current time millis", "System.currentTimeMillis()", false},
		{"params only", "params.factor + 1", true},
	}

	engine := NewEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := engine.Compile(NewScript(tt.source, nil))
			if err != nil {
				t.Fatalf("Failed to compile script: %v", err)
			}
			if f.IsResultDeterministic() != tt.deterministic {
				t.Errorf("Expected deterministic=%v for %q", tt.deterministic, tt.source)
			}
		})
	}
}

func TestFactoryExecuteScoreAndFilter(t *testing.T) {
	engine := NewEngine()

	scoreFactory, err := engine.Compile(NewScript("_score + params.boost", nil))
	if err != nil {
		t.Fatalf("Failed to compile score script: %v", err)
	}
	score, err := scoreFactory.ExecuteScore(testContext())
	if err != nil {
		t.Fatalf("Failed to execute score script: %v", err)
	}
	if score != 3.5 {
		t.Errorf("Expected score 3.5, got %v", score)
	}

	filterFactory, err := engine.Compile(NewScript("doc['price'].value > 5 && doc['tags'].size() > 0", nil))
	if err != nil {
		t.Fatalf("Failed to compile filter script: %v", err)
	}
	match, err := filterFactory.ExecuteFilter(testContext())
	if err != nil {
		t.Fatalf("Failed to execute filter script: %v", err)
	}
	if !match {
		t.Error("Expected filter to match")
	}
}

func TestEngineRejectsUnknownLanguage(t *testing.T) {
	engine := NewEngine()
	s := &Script{Source: "_score", Lang: "groovy"}
	if _, err := engine.Compile(s); err == nil {
		t.Fatal("Expected error for unsupported language")
	}
}

func TestCacheHitMissEviction(t *testing.T) {
	cache := NewCache(2, time.Minute)
	engine := NewEngine()

	fa, _ := engine.Compile(NewScript("1 + 1", nil))
	fb, _ := engine.Compile(NewScript("2 + 2", nil))
	fc, _ := engine.Compile(NewScript("3 + 3", nil))

	if _, ok := cache.Get(LangPainless, "1 + 1"); ok {
		t.Fatal("Expected cache miss on empty cache")
	}

	cache.Put(LangPainless, "1 + 1", fa)
	time.Sleep(time.Millisecond)
	cache.Put(LangPainless, "2 + 2", fb)
	time.Sleep(time.Millisecond)

	// 触碰第一条，淘汰时应挑中第二条
	if _, ok := cache.Get(LangPainless, "1 + 1"); !ok {
		t.Fatal("Expected cache hit")
	}
	time.Sleep(time.Millisecond)
	cache.Put(LangPainless, "3 + 3", fc)

	if cache.Size() != 2 {
		t.Errorf("Expected cache size 2, got %d", cache.Size())
	}
	if _, ok := cache.Get(LangPainless, "2 + 2"); ok {
		t.Error("Expected least recently used entry to be evicted")
	}
	if _, ok := cache.Get(LangPainless, "1 + 1"); !ok {
		t.Error("Expected touched entry to survive eviction")
	}

	stats := cache.Stats()
	if stats["size"] != 2 {
		t.Errorf("Expected stats size 2, got %v", stats["size"])
	}
	if stats["hits"].(int64) < 2 {
		t.Errorf("Expected at least 2 hits, got %v", stats["hits"])
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	cache := NewCache(10, 10*time.Millisecond)
	engine := NewEngine()
	f, _ := engine.Compile(NewScript("1 + 1", nil))

	cache.Put(LangPainless, "1 + 1", f)
	time.Sleep(20 * time.Millisecond)

	if _, ok := cache.Get(LangPainless, "1 + 1"); ok {
		t.Error("Expected expired entry to miss")
	}
}

func TestServiceCompileCaches(t *testing.T) {
	service := NewService(10, time.Minute)
	s := NewScript("doc['price'].value * 2", nil)

	f1, err := service.Compile(s, ContextField)
	if err != nil {
		t.Fatalf("Failed to compile script: %v", err)
	}
	f2, err := service.Compile(s, ContextField)
	if err != nil {
		t.Fatalf("Failed to compile script: %v", err)
	}
	if f1 != f2 {
		t.Error("Expected second compile to return cached factory")
	}

	stats := service.CacheStats()
	if stats["hits"].(int64) < 1 {
		t.Errorf("Expected at least 1 cache hit, got %v", stats["hits"])
	}
}

func TestServiceRejectsUnknownContext(t *testing.T) {
	service := NewService(10, time.Minute)
	if _, err := service.Compile(NewScript("_score", nil), "update"); err == nil {
		t.Fatal("Expected error for unknown script context")
	}
}
