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

import (
	"errors"
	"fmt"
)

// FieldNotFoundError 字段既不在映射里也不是 runtime 字段
type FieldNotFoundError struct {
	Field string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("no field mapping found for field [%s]", e.Field)
}

// Is 按类别匹配，忽略具体字段名
func (e *FieldNotFoundError) Is(target error) bool {
	_, ok := target.(*FieldNotFoundError)
	return ok
}

// FrozenContextViolationError 冻结后的上下文被再次请求可变能力
type FrozenContextViolationError struct {
	Op string
}

func (e *FrozenContextViolationError) Error() string {
	return fmt.Sprintf("frozen search context does not allow [%s]", e.Op)
}

func (e *FrozenContextViolationError) Is(target error) bool {
	_, ok := target.(*FrozenContextViolationError)
	return ok
}

// SearchCancelledError 查询被协作式取消
type SearchCancelledError struct {
	Reason string
}

func (e *SearchCancelledError) Error() string {
	return fmt.Sprintf("search cancelled: %s", e.Reason)
}

func (e *SearchCancelledError) Is(target error) bool {
	_, ok := target.(*SearchCancelledError)
	return ok
}

// FetchPhaseExecutionError 取回阶段失败，带阶段名与分片归属
type FetchPhaseExecutionError struct {
	Phase string
	Shard int
	Err   error
}

func (e *FetchPhaseExecutionError) Error() string {
	return fmt.Sprintf("fetch phase [%s] failed on shard [%d]: %v", e.Phase, e.Shard, e.Err)
}

func (e *FetchPhaseExecutionError) Unwrap() error {
	return e.Err
}

// QueryRewriteError 查询改写或转换失败，带分片归属
type QueryRewriteError struct {
	Shard int
	Err   error
}

func (e *QueryRewriteError) Error() string {
	return fmt.Sprintf("failed to rewrite query on shard [%d]: %v", e.Shard, e.Err)
}

func (e *QueryRewriteError) Unwrap() error {
	return e.Err
}

// wrapRewriteError 给改写错误补上分片归属
// 字段缺失、取消与已带归属的错误原样穿透，避免重复包装掩盖根因
func wrapRewriteError(shard int, err error) error {
	if err == nil {
		return nil
	}
	var fieldErr *FieldNotFoundError
	if errors.As(err, &fieldErr) {
		return err
	}
	var cancelErr *SearchCancelledError
	if errors.As(err, &cancelErr) {
		return err
	}
	var rewriteErr *QueryRewriteError
	if errors.As(err, &rewriteErr) {
		return err
	}
	var fetchErr *FetchPhaseExecutionError
	if errors.As(err, &fetchErr) {
		return err
	}
	return &QueryRewriteError{Shard: shard, Err: err}
}
