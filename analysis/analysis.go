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

// Package analysis provides the text analysis pipeline: tokenizers, token
// filters, analyzers and similarity definitions, plus the name registry the
// execution context resolves against.
package analysis

import (
	"fmt"
	"unicode/utf8"
)

// TokenType identifies the kind of text a token was produced from
type TokenType int

const (
	AlphaNumeric TokenType = iota
	Ideographic
	Numeric
)

// Token represents one term produced by analysis
type Token struct {
	// Start specifies the byte offset of the beginning of the term
	Start int
	// End specifies the byte offset of the end of the term
	End      int
	Term     []byte
	Position int
	Type     TokenType
	// KeyWord, if true, protects the term from downstream stemming
	KeyWord bool
}

func (t *Token) String() string {
	return fmt.Sprintf("Start: %d End: %d Position: %d Token: %s Type: %d",
		t.Start, t.End, t.Position, string(t.Term), t.Type)
}

// TokenStream is an ordered sequence of tokens
type TokenStream []*Token

// Tokenizer splits raw input bytes into a token stream
type Tokenizer interface {
	Tokenize(input []byte) TokenStream
}

// TokenFilter transforms a token stream
type TokenFilter interface {
	Filter(input TokenStream) TokenStream
}

// Analyzer combines a tokenizer with an ordered filter chain
type Analyzer struct {
	Tokenizer    Tokenizer
	TokenFilters []TokenFilter
}

// Analyze runs the full pipeline over the input
func (a *Analyzer) Analyze(input []byte) TokenStream {
	tokens := a.Tokenizer.Tokenize(input)
	for _, filter := range a.TokenFilters {
		tokens = filter.Filter(tokens)
	}
	return tokens
}

// BuildTermFromRunes builds a term byte slice from runes without extra
// allocations beyond the final buffer
func BuildTermFromRunes(runes []rune) []byte {
	rv := make([]byte, 0, len(runes)*4)
	for _, r := range runes {
		runeBytes := make([]byte, utf8.RuneLen(r))
		utf8.EncodeRune(runeBytes, r)
		rv = append(rv, runeBytes...)
	}
	return rv
}

// Similarity holds BM25 scoring parameters for a field
type Similarity struct {
	Name string
	K1   float64
	B    float64
}

// DefaultSimilarity returns the standard BM25 parameters
func DefaultSimilarity() *Similarity {
	return &Similarity{Name: "BM25", K1: 1.2, B: 0.75}
}

var (
	analyzers    = make(map[string]*Analyzer)
	similarities = make(map[string]*Similarity)
)

// RegisterAnalyzer adds a named analyzer to the registry; duplicate names
// are a programming error
func RegisterAnalyzer(name string, analyzer *Analyzer) error {
	if _, exists := analyzers[name]; exists {
		return fmt.Errorf("analyzer named '%s' already registered", name)
	}
	analyzers[name] = analyzer
	return nil
}

// AnalyzerNamed returns the analyzer registered under name, or nil
func AnalyzerNamed(name string) *Analyzer {
	return analyzers[name]
}

// RegisterSimilarity adds a named similarity to the registry
func RegisterSimilarity(name string, similarity *Similarity) error {
	if _, exists := similarities[name]; exists {
		return fmt.Errorf("similarity named '%s' already registered", name)
	}
	similarities[name] = similarity
	return nil
}

// SimilarityNamed returns the similarity registered under name, or nil
func SimilarityNamed(name string) *Similarity {
	return similarities[name]
}

func init() {
	err := RegisterAnalyzer("standard", &Analyzer{
		Tokenizer:    NewUnicodeTokenizer(),
		TokenFilters: []TokenFilter{NewLowerCaseFilter()},
	})
	if err != nil {
		panic(err)
	}

	err = RegisterAnalyzer("keyword", &Analyzer{
		Tokenizer: NewSingleTokenTokenizer(),
	})
	if err != nil {
		panic(err)
	}

	normFilter, err := NewUnicodeNormalizeFilter("nfc")
	if err != nil {
		panic(err)
	}
	err = RegisterAnalyzer("english", &Analyzer{
		Tokenizer: NewUnicodeTokenizer(),
		TokenFilters: []TokenFilter{
			normFilter,
			NewLowerCaseFilter(),
			NewPossessiveFilter(),
			NewEnglishStopFilter(),
			NewPorterStemmerFilter(),
		},
	})
	if err != nil {
		panic(err)
	}

	err = RegisterSimilarity("BM25", DefaultSimilarity())
	if err != nil {
		panic(err)
	}
	err = RegisterSimilarity("boolean", &Similarity{Name: "boolean", K1: 0, B: 0})
	if err != nil {
		panic(err)
	}
}
