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
	"bytes"
	"fmt"
	"unicode"

	"github.com/blevesearch/go-porterstemmer"
	"golang.org/x/text/unicode/norm"
)

// LowerCaseFilter lowercases every term
type LowerCaseFilter struct{}

func NewLowerCaseFilter() *LowerCaseFilter {
	return &LowerCaseFilter{}
}

func (f *LowerCaseFilter) Filter(input TokenStream) TokenStream {
	for _, token := range input {
		runes := bytes.Runes(token.Term)
		for i, r := range runes {
			runes[i] = unicode.ToLower(r)
		}
		token.Term = BuildTermFromRunes(runes)
	}
	return input
}

// 's or ' (Apostrophe S or Apostrophe)
var possessive = []byte{39, 115}

// PossessiveFilter strips trailing english possessive markers
type PossessiveFilter struct{}

func NewPossessiveFilter() *PossessiveFilter {
	return &PossessiveFilter{}
}

func (f *PossessiveFilter) Filter(input TokenStream) TokenStream {
	for _, token := range input {
		if len(token.Term) == 0 {
			continue
		}
		// if token ends in 's remove the 's
		if bytes.HasSuffix(token.Term, possessive) {
			token.Term = token.Term[:len(token.Term)-2]
		} else if token.Term[len(token.Term)-1] == 39 { // '
			token.Term = token.Term[:len(token.Term)-1]
		}
	}
	return input
}

// englishStopWords is the usual minimal english stop set
var englishStopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "if": {}, "in": {}, "into": {}, "is": {},
	"it": {}, "no": {}, "not": {}, "of": {}, "on": {}, "or": {}, "such": {},
	"that": {}, "the": {}, "their": {}, "then": {}, "there": {}, "these": {},
	"they": {}, "this": {}, "to": {}, "was": {}, "will": {}, "with": {},
}

// StopTokenFilter removes tokens found in its stop set
type StopTokenFilter struct {
	stopWords map[string]struct{}
}

func NewStopTokenFilter(stopWords map[string]struct{}) *StopTokenFilter {
	return &StopTokenFilter{stopWords: stopWords}
}

func NewEnglishStopFilter() *StopTokenFilter {
	return NewStopTokenFilter(englishStopWords)
}

func (f *StopTokenFilter) Filter(input TokenStream) TokenStream {
	rv := input[:0]
	for _, token := range input {
		if _, stop := f.stopWords[string(token.Term)]; !stop {
			rv = append(rv, token)
		}
	}
	return rv
}

// PorterStemmerFilter reduces english terms to their stems; terms marked
// KeyWord pass through untouched
type PorterStemmerFilter struct{}

func NewPorterStemmerFilter() *PorterStemmerFilter {
	return &PorterStemmerFilter{}
}

func (f *PorterStemmerFilter) Filter(input TokenStream) TokenStream {
	for _, token := range input {
		if token.KeyWord {
			continue
		}
		termRunes := bytes.Runes(token.Term)
		stemmedRunes := porterstemmer.StemWithoutLowerCasing(termRunes)
		token.Term = BuildTermFromRunes(stemmedRunes)
	}
	return input
}

// UnicodeNormalizeFilter applies a unicode normalization form to terms
type UnicodeNormalizeFilter struct {
	form norm.Form
}

var normForms = map[string]norm.Form{
	"nfc":  norm.NFC,
	"nfd":  norm.NFD,
	"nfkc": norm.NFKC,
	"nfkd": norm.NFKD,
}

func NewUnicodeNormalizeFilter(formName string) (*UnicodeNormalizeFilter, error) {
	form, ok := normForms[formName]
	if !ok {
		return nil, fmt.Errorf("unknown unicode normalization form: %s", formName)
	}
	return &UnicodeNormalizeFilter{form: form}, nil
}

func (f *UnicodeNormalizeFilter) Filter(input TokenStream) TokenStream {
	for _, token := range input {
		token.Term = f.form.Bytes(token.Term)
	}
	return input
}
