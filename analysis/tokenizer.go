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
	"github.com/blevesearch/segment"
)

// UnicodeTokenizer splits text on unicode word boundaries using the
// segment library's word segmenter
type UnicodeTokenizer struct{}

func NewUnicodeTokenizer() *UnicodeTokenizer {
	return &UnicodeTokenizer{}
}

func (t *UnicodeTokenizer) Tokenize(input []byte) TokenStream {
	rv := make(TokenStream, 0, 8)

	segmenter := segment.NewWordSegmenterDirect(input)
	start := 0
	pos := 1
	for segmenter.Segment() {
		segmentBytes := segmenter.Bytes()
		end := start + len(segmentBytes)
		if segmenter.Type() != segment.None {
			rv = append(rv, &Token{
				Term:     segmentBytes,
				Start:    start,
				End:      end,
				Position: pos,
				Type:     convertSegmentType(segmenter.Type()),
			})
			pos++
		}
		start = end
	}
	// segmentation over a byte slice cannot fail, but keep the contract
	if err := segmenter.Err(); err != nil {
		return rv
	}
	return rv
}

func convertSegmentType(segmentWordType int) TokenType {
	switch segmentWordType {
	case segment.Ideo, segment.Kana:
		return Ideographic
	case segment.Number:
		return Numeric
	}
	return AlphaNumeric
}

// SingleTokenTokenizer emits the entire input as one token; backs the
// keyword analyzer
type SingleTokenTokenizer struct{}

func NewSingleTokenTokenizer() *SingleTokenTokenizer {
	return &SingleTokenTokenizer{}
}

func (t *SingleTokenTokenizer) Tokenize(input []byte) TokenStream {
	return TokenStream{
		{
			Term:     input,
			Start:    0,
			End:      len(input),
			Position: 1,
			Type:     AlphaNumeric,
		},
	}
}
