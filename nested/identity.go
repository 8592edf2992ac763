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

package nested

import (
	"fmt"
	"strings"
)

// Identity 嵌套文档身份，从根层到叶层的链
// Field 是相对于外层嵌套作用域的路径，Offset 是该元素在同级兄弟中的序号
type Identity struct {
	Field  string    `json:"field"`
	Offset int       `json:"offset"`
	Child  *Identity `json:"_nested,omitempty"`
}

// Leaf 返回链上最深一级身份
func (id *Identity) Leaf() *Identity {
	cur := id
	for cur.Child != nil {
		cur = cur.Child
	}
	return cur
}

// FullPath 返回叶层的完整嵌套路径
func (id *Identity) FullPath() string {
	var parts []string
	for cur := id; cur != nil; cur = cur.Child {
		parts = append(parts, cur.Field)
	}
	return strings.Join(parts, ".")
}

// String 返回人类可读形式，如 comments[0].votes[1]
func (id *Identity) String() string {
	var sb strings.Builder
	for cur := id; cur != nil; cur = cur.Child {
		if sb.Len() > 0 {
			sb.WriteByte('.')
		}
		fmt.Fprintf(&sb, "%s[%d]", cur.Field, cur.Offset)
	}
	return sb.String()
}
