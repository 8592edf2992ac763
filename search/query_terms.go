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

package search

// termsProvider 能报出自身词项的查询，高亮按此提取关键词
type termsProvider interface {
	visitTerms(fn func(field, term string))
}

// CollectQueryTerms 收集查询树里的全部词项，按字段归组
// 不含词项的查询（范围、脚本、存在性）贡献为空
func CollectQueryTerms(q Query) map[string][]string {
	rv := make(map[string][]string)
	seen := make(map[string]map[string]struct{})
	visitQueryTerms(q, func(field, term string) {
		set, ok := seen[field]
		if !ok {
			set = make(map[string]struct{})
			seen[field] = set
		}
		if _, dup := set[term]; dup {
			return
		}
		set[term] = struct{}{}
		rv[field] = append(rv[field], term)
	})
	return rv
}

func visitQueryTerms(q Query, fn func(field, term string)) {
	if tp, ok := q.(termsProvider); ok {
		tp.visitTerms(fn)
	}
}

func (q *termQuery) visitTerms(fn func(field, term string)) {
	fn(q.field, q.term)
}

func (q *boolQuery) visitTerms(fn func(field, term string)) {
	for _, child := range q.must {
		visitQueryTerms(child, fn)
	}
	for _, child := range q.filter {
		visitQueryTerms(child, fn)
	}
	for _, child := range q.should {
		visitQueryTerms(child, fn)
	}
	// mustNot 的词项是排除条件，不作为高亮关键词
}

func (q *nestedQuery) visitTerms(fn func(field, term string)) {
	visitQueryTerms(q.inner, fn)
}
