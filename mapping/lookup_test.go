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

package mapping

import (
	"reflect"
	"testing"
)

func testLookup(t *testing.T) *Lookup {
	t.Helper()
	m, err := ParseIndexMappingJSON(testMappingJSON())
	if err != nil {
		t.Fatalf("Failed to parse mapping: %v", err)
	}
	l, err := NewLookup(m)
	if err != nil {
		t.Fatalf("Failed to build lookup: %v", err)
	}
	return l
}

func TestMatchingFieldNames(t *testing.T) {
	l := testLookup(t)

	// 前缀通配符走 FST 自动机
	got, err := l.MatchingFieldNames("user.*")
	if err != nil {
		t.Fatalf("Failed to match field names: %v", err)
	}
	want := []string{"user.age", "user.name"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("user.* = %v, want %v", got, want)
	}

	// 全量通配符
	got, err = l.MatchingFieldNames("*")
	if err != nil {
		t.Fatalf("Failed to match all fields: %v", err)
	}
	if len(got) != 10 {
		t.Errorf("* matched %d fields, want 10: %v", len(got), got)
	}

	// 单字符通配符
	got, err = l.MatchingFieldNames("t?g")
	if err != nil {
		t.Fatalf("Failed to match t?g: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"tag"}) {
		t.Errorf("t?g = %v, want [tag]", got)
	}

	// 精确命中与精确未命中
	got, err = l.MatchingFieldNames("title")
	if err != nil {
		t.Fatalf("Failed exact match: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"title"}) {
		t.Errorf("title = %v, want [title]", got)
	}
	got, err = l.MatchingFieldNames("ghost")
	if err != nil {
		t.Fatalf("Failed exact miss: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ghost = %v, want empty", got)
	}

	// 模式中的点是字面量，不能当正则元字符
	got, err = l.MatchingFieldNames("comments.votes.*")
	if err != nil {
		t.Fatalf("Failed to match comments.votes.*: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"comments.votes.by"}) {
		t.Errorf("comments.votes.* = %v, want [comments.votes.by]", got)
	}
}

func TestEmptyLookup(t *testing.T) {
	l, err := NewLookup(nil)
	if err != nil {
		t.Fatalf("Failed to build empty lookup: %v", err)
	}
	got, err := l.MatchingFieldNames("anything*")
	if err != nil {
		t.Fatalf("Failed to search empty lookup: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("empty lookup matched %v", got)
	}
}

func TestSimpleMatch(t *testing.T) {
	cases := []struct {
		pattern string
		s       string
		want    bool
	}{
		{"*", "anything", true},
		{"user.*", "user.name", true},
		{"user.*", "username", false},
		{"*name", "user.name", true},
		{"*name*", "first.name.last", true},
		{"u*e", "uvwxe", true},
		{"u*e", "uvwxf", false},
		{"exact", "exact", true},
		{"exact", "exac", false},
		{"a*b*c", "axxbyyc", true},
		{"a*b*c", "axxcyyb", false},
		{"", "", true},
		{"", "x", false},
	}
	for _, c := range cases {
		if got := SimpleMatch(c.pattern, c.s); got != c.want {
			t.Errorf("SimpleMatch(%q, %q) = %v, want %v", c.pattern, c.s, got, c.want)
		}
	}
}
