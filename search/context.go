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
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lynxsearch/lynxdb/analysis"
	"github.com/lynxsearch/lynxdb/index"
	"github.com/lynxsearch/lynxdb/mapping"
	"github.com/lynxsearch/lynxdb/script"
)

// ContextConfig 执行上下文的构造参数
type ContextConfig struct {
	ShardID                int
	ShardRequestIndex      int            // 分片在一次请求中的序号
	Mapping                *mapping.Lookup
	Settings               *mapping.IndexSettings
	Snapshot               *index.Snapshot
	Scripts                *script.Service
	AllowedFields          func(string) bool              // 字段可见性谓词，nil 放行全部
	RuntimeFields          map[string]*mapping.FieldType  // 请求级 runtime 字段
	MapUnmappedFieldAsText bool                           // 未映射字段兜底按 text 解析
	Now                    func() int64                   // 当前时间毫秒，默认取系统时钟
}

// ExecutionContext 单分片查询执行上下文
// 承载字段解析、脚本编译、查询改写与冻结协议；
// 只在所属 goroutine 内使用，不做任何内部加锁
type ExecutionContext struct {
	shardID           int
	shardRequestIndex int
	mapping           *mapping.Lookup
	settings          *mapping.IndexSettings
	snap              *index.Snapshot
	scripts           *script.Service

	allowedFields          func(string) bool
	runtimeFields          map[string]*mapping.FieldType
	allowUnmappedFields    bool
	mapUnmappedFieldAsText bool

	nowFn     func() int64
	nowMillis int64
	nowSet    bool

	frozen    bool
	cacheable bool

	asyncActions []func(ctx context.Context) error
	namedQueries map[string]Query
	nestedScope  []string
	docLookup    *Lookup
}

// NewExecutionContext 构建执行上下文，初始可缓存
func NewExecutionContext(cfg ContextConfig) *ExecutionContext {
	settings := cfg.Settings
	if settings == nil {
		settings = mapping.DefaultIndexSettings("index")
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = func() int64 { return time.Now().UnixMilli() }
	}
	return &ExecutionContext{
		shardID:                cfg.ShardID,
		shardRequestIndex:      cfg.ShardRequestIndex,
		mapping:                cfg.Mapping,
		settings:               settings,
		snap:                   cfg.Snapshot,
		scripts:                cfg.Scripts,
		allowedFields:          cfg.AllowedFields,
		runtimeFields:          cfg.RuntimeFields,
		allowUnmappedFields:    settings.AllowUnmappedFields,
		mapUnmappedFieldAsText: cfg.MapUnmappedFieldAsText,
		nowFn:                  nowFn,
		cacheable:              true,
		namedQueries:           make(map[string]Query),
	}
}

// ShardID 返回分片号
func (c *ExecutionContext) ShardID() int {
	return c.shardID
}

// ShardRequestIndex 返回分片在一次请求中的序号
func (c *ExecutionContext) ShardRequestIndex() int {
	return c.shardRequestIndex
}

// Mapping 返回映射查找快照
func (c *ExecutionContext) Mapping() *mapping.Lookup {
	return c.mapping
}

// IndexSettings 返回索引配置
func (c *ExecutionContext) IndexSettings() *mapping.IndexSettings {
	return c.settings
}

// Snapshot 返回本分片的索引快照
func (c *ExecutionContext) Snapshot() *index.Snapshot {
	return c.snap
}

// Lookup 返回查询期文档读取器，懒初始化后共享
func (c *ExecutionContext) Lookup() *Lookup {
	if c.docLookup == nil {
		c.docLookup = NewLookup(c.snap)
	}
	return c.docLookup
}

// FieldType 解析字段类型
// 解析顺序：可见性谓词拒绝的按未映射处理，然后 runtime 字段覆盖映射字段；
// 未映射字段按放行开关返回 (nil, nil)、合成 text 类型或报错
func (c *ExecutionContext) FieldType(name string) (*mapping.FieldType, error) {
	if c.allowedFields != nil && !c.allowedFields(name) {
		return c.unmappedFieldType(name)
	}
	if ft, ok := c.runtimeFields[name]; ok {
		return ft, nil
	}
	if ft := c.mapping.FieldType(name); ft != nil {
		return ft, nil
	}
	return c.unmappedFieldType(name)
}

func (c *ExecutionContext) unmappedFieldType(name string) (*mapping.FieldType, error) {
	if c.allowUnmappedFields {
		return nil, nil
	}
	if c.mapUnmappedFieldAsText {
		return mapping.SynthesizeTextFieldType(name), nil
	}
	return nil, &FieldNotFoundError{Field: name}
}

// IsFieldMapped 判断字段是否可解析，谓词拒绝的视为未映射
func (c *ExecutionContext) IsFieldMapped(name string) bool {
	if c.allowedFields != nil && !c.allowedFields(name) {
		return false
	}
	if _, ok := c.runtimeFields[name]; ok {
		return true
	}
	return c.mapping.FieldType(name) != nil
}

// MatchingFieldNames 返回匹配模式的字段名，映射字段与 runtime 字段取并集
// "*" 包含全部 runtime 字段，无通配符时对 runtime 字段做精确探测
func (c *ExecutionContext) MatchingFieldNames(pattern string) ([]string, error) {
	mapped, err := c.mapping.MatchingFieldNames(pattern)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(mapped))
	for _, name := range mapped {
		set[name] = struct{}{}
	}
	switch {
	case pattern == "*":
		for name := range c.runtimeFields {
			set[name] = struct{}{}
		}
	case mapping.IsSimplePattern(pattern):
		for name := range c.runtimeFields {
			if mapping.SimpleMatch(pattern, name) {
				set[name] = struct{}{}
			}
		}
	default:
		if _, ok := c.runtimeFields[pattern]; ok {
			set[pattern] = struct{}{}
		}
	}

	rv := make([]string, 0, len(set))
	for name := range set {
		if c.allowedFields != nil && !c.allowedFields(name) {
			continue
		}
		rv = append(rv, name)
	}
	sort.Strings(rv)
	return rv, nil
}

// Analyzer 返回字段的分析器，未指定时用 standard
func (c *ExecutionContext) Analyzer(field string) (*analysis.Analyzer, error) {
	name := "standard"
	if ft, ok := c.runtimeFields[field]; ok && ft.Analyzer != "" {
		name = ft.Analyzer
	} else if ft := c.mapping.FieldType(field); ft != nil && ft.Analyzer != "" {
		name = ft.Analyzer
	}
	analyzer := analysis.AnalyzerNamed(name)
	if analyzer == nil {
		return nil, fmt.Errorf("unknown analyzer: %s", name)
	}
	return analyzer, nil
}

// Similarity 返回字段的相似度参数，缺省 BM25
func (c *ExecutionContext) Similarity(field string) *analysis.Similarity {
	if ft := c.mapping.FieldType(field); ft != nil && ft.Similarity != "" {
		if sim := analysis.SimilarityNamed(ft.Similarity); sim != nil {
			return sim
		}
	}
	return analysis.DefaultSimilarity()
}

// CompileScript 经脚本服务编译脚本
// 非确定性脚本要经过冻结检查点才会返回
func (c *ExecutionContext) CompileScript(s *script.Script, contextName string) (*script.Factory, error) {
	factory, err := c.scripts.Compile(s, contextName)
	if err != nil {
		return nil, fmt.Errorf("failed to compile script: %w", err)
	}
	if !factory.IsResultDeterministic() {
		if err := c.failIfFrozen("compilation of non-deterministic script"); err != nil {
			return nil, err
		}
	}
	return factory, nil
}

// FreezeContext 冻结上下文，此后可变能力一律报错
func (c *ExecutionContext) FreezeContext() {
	c.frozen = true
}

// failIfFrozen 冻结协议检查点
// 无条件清掉可缓存标记，冻结后再走到这里即报错
func (c *ExecutionContext) failIfFrozen(op string) error {
	c.cacheable = false
	if c.frozen {
		return &FrozenContextViolationError{Op: op}
	}
	return nil
}

// IsCacheable 返回本次查询结果是否可缓存
func (c *ExecutionContext) IsCacheable() bool {
	return c.cacheable
}

// DisableCache 显式关掉可缓存标记，冻结前后调用都合法
func (c *ExecutionContext) DisableCache() {
	c.cacheable = false
}

// NowInMillis 返回本上下文固定的当前时间毫秒
// 首次调用时取值，此后同一上下文内保持不变
func (c *ExecutionContext) NowInMillis() (int64, error) {
	if err := c.failIfFrozen("retrieval of current time"); err != nil {
		return 0, err
	}
	if !c.nowSet {
		c.nowMillis = c.nowFn()
		c.nowSet = true
	}
	return c.nowMillis, nil
}

// RegisterAsyncAction 注册改写期的异步动作，执行阶段前统一清空
func (c *ExecutionContext) RegisterAsyncAction(fn func(ctx context.Context) error) error {
	if err := c.failIfFrozen("registration of async action"); err != nil {
		return err
	}
	c.asyncActions = append(c.asyncActions, fn)
	return nil
}

// ExecuteAsyncActions 依序执行全部注册的异步动作并清空
func (c *ExecutionContext) ExecuteAsyncActions(ctx context.Context) error {
	actions := c.asyncActions
	c.asyncActions = nil
	for _, fn := range actions {
		if err := fn(ctx); err != nil {
			return fmt.Errorf("async action failed: %w", err)
		}
	}
	return nil
}

// PushNestedScope 进入嵌套作用域
func (c *ExecutionContext) PushNestedScope(path string) {
	c.nestedScope = append(c.nestedScope, path)
}

// PopNestedScope 退出最近的嵌套作用域
func (c *ExecutionContext) PopNestedScope() {
	if len(c.nestedScope) > 0 {
		c.nestedScope = c.nestedScope[:len(c.nestedScope)-1]
	}
}

// NestedScope 返回当前嵌套作用域路径，顶层为空串
func (c *ExecutionContext) NestedScope() string {
	if len(c.nestedScope) == 0 {
		return ""
	}
	return c.nestedScope[len(c.nestedScope)-1]
}

// registerNamedQuery 记录命名查询，转换期由各构建器调用
func (c *ExecutionContext) registerNamedQuery(name string, q Query) {
	if name == "" || q == nil {
		return
	}
	c.namedQueries[name] = q
}

// Reset 清空一次转换遗留的查询状态
func (c *ExecutionContext) Reset() {
	c.namedQueries = make(map[string]Query)
	c.nestedScope = nil
}

// ToQuery 把构建器转换为可执行查询
// 流程：清状态、改写到不动点、转换（nil 折叠为空集哨兵）、
// 快照命名查询；无论成败离开前都再清一次状态
func (c *ExecutionContext) ToQuery(builder QueryBuilder) (ParsedQuery, error) {
	c.Reset()
	defer c.Reset()

	rewritten, err := RewriteQuery(builder, c)
	if err != nil {
		return ParsedQuery{}, wrapRewriteError(c.shardID, err)
	}

	q, err := rewritten.Convert(c)
	if err != nil {
		return ParsedQuery{}, wrapRewriteError(c.shardID, err)
	}
	if q == nil {
		q = &matchNoneQuery{}
	}

	named := make(map[string]Query, len(c.namedQueries))
	for name, nq := range c.namedQueries {
		named[name] = nq
	}
	return ParsedQuery{Query: q, Named: named}, nil
}
