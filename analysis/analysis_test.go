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

package analysis

import (
	"reflect"
	"testing"
)

func terms(ts TokenStream) []string {
	out := make([]string, 0, len(ts))
	for _, tok := range ts {
		out = append(out, string(tok.Term))
	}
	return out
}

func TestUnicodeTokenizer(t *testing.T) {
	tokenizer := NewUnicodeTokenizer()
	stream := tokenizer.Tokenize([]byte("Hello, World 42"))

	got := terms(stream)
	want := []string{"Hello", "World", "42"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Failed to tokenize, got %v, want %v", got, want)
	}

	// positions are 1-based and skip punctuation
	for i, tok := range stream {
		if tok.Position != i+1 {
			t.Errorf("token %d position = %d, want %d", i, tok.Position, i+1)
		}
	}
	if stream[2].Type != Numeric {
		t.Errorf("expected numeric token type for 42, got %d", stream[2].Type)
	}
	// offsets cover the original bytes
	if stream[1].Start != 7 || stream[1].End != 12 {
		t.Errorf("World offsets = [%d,%d], want [7,12]", stream[1].Start, stream[1].End)
	}
}

func TestStandardAnalyzer(t *testing.T) {
	a := AnalyzerNamed("standard")
	if a == nil {
		t.Fatalf("Failed to find standard analyzer")
	}

	got := terms(a.Analyze([]byte("The QUICK Brown-Foxes")))
	want := []string{"the", "quick", "brown", "foxes"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Failed to analyze, got %v, want %v", got, want)
	}
}

func TestKeywordAnalyzer(t *testing.T) {
	a := AnalyzerNamed("keyword")
	if a == nil {
		t.Fatalf("Failed to find keyword analyzer")
	}

	got := terms(a.Analyze([]byte("New York City")))
	if !reflect.DeepEqual(got, []string{"New York City"}) {
		t.Fatalf("Failed keyword analysis, got %v", got)
	}
}

func TestEnglishAnalyzer(t *testing.T) {
	a := AnalyzerNamed("english")
	if a == nil {
		t.Fatalf("Failed to find english analyzer")
	}

	// possessive stripped, stop words removed, terms stemmed
	got := terms(a.Analyze([]byte("John's dogs are running")))
	want := []string{"john", "dog", "run"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Failed english analysis, got %v, want %v", got, want)
	}
}

func TestPossessiveFilter(t *testing.T) {
	f := NewPossessiveFilter()
	in := TokenStream{
		{Term: []byte("john's")},
		{Term: []byte("dogs'")},
		{Term: []byte("plain")},
	}
	got := terms(f.Filter(in))
	want := []string{"john", "dogs", "plain"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Failed possessive filtering, got %v, want %v", got, want)
	}
}

func TestUnicodeNormalizeFilter(t *testing.T) {
	f, err := NewUnicodeNormalizeFilter("nfc")
	if err != nil {
		t.Fatalf("Failed to create filter: %v", err)
	}

	// "café" with decomposed e + combining acute normalizes to composed form
	decomposed := []byte("café")
	got := f.Filter(TokenStream{{Term: decomposed}})
	if string(got[0].Term) != "café" {
		t.Fatalf("Failed to normalize, got %q", string(got[0].Term))
	}

	if _, err := NewUnicodeNormalizeFilter("nfx"); err == nil {
		t.Fatalf("Failed to reject unknown normalization form")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	if err := RegisterAnalyzer("standard", &Analyzer{}); err == nil {
		t.Fatalf("Failed to reject duplicate analyzer name")
	}
	if err := RegisterSimilarity("BM25", DefaultSimilarity()); err == nil {
		t.Fatalf("Failed to reject duplicate similarity name")
	}
}

func TestSimilarityRegistry(t *testing.T) {
	s := SimilarityNamed("BM25")
	if s == nil {
		t.Fatalf("Failed to find BM25 similarity")
	}
	if s.K1 != 1.2 || s.B != 0.75 {
		t.Errorf("unexpected BM25 params: k1=%v b=%v", s.K1, s.B)
	}
	if SimilarityNamed("dfr") != nil {
		t.Errorf("expected nil for unregistered similarity")
	}
}
