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

package index

import "encoding/binary"

// countMergeOperator 把并发提交的根文档数累加进全局统计行
// 值为 8 字节大端 uint64
type countMergeOperator struct{}

func (m *countMergeOperator) FullMerge(key, existingValue []byte, operands [][]byte) ([]byte, bool) {
	var total uint64
	if len(existingValue) == 8 {
		total = binary.BigEndian.Uint64(existingValue)
	}
	for _, op := range operands {
		if len(op) != 8 {
			return nil, false
		}
		total += binary.BigEndian.Uint64(op)
	}
	return encodeCountValue(total), true
}

func (m *countMergeOperator) PartialMerge(key, leftOperand, rightOperand []byte) ([]byte, bool) {
	lv := binary.BigEndian.Uint64(leftOperand)
	rv := binary.BigEndian.Uint64(rightOperand)
	return encodeCountValue(lv + rv), true
}

func (m *countMergeOperator) Name() string {
	return "doc_count_merge"
}
