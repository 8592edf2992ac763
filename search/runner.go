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

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lynxsearch/lynxdb/index"
	"github.com/lynxsearch/lynxdb/logger"
	"github.com/lynxsearch/lynxdb/mapping"
	"github.com/lynxsearch/lynxdb/script"
	"github.com/lynxsearch/lynxdb/search/aggregations"
	"github.com/lynxsearch/lynxdb/search/collector"
)

// FetchExecutor 取回阶段入口，由 search/fetch 包实现后注入
type FetchExecutor interface {
	Execute(sc *SearchContext) error
}

// RunnerConfig 查询执行器的构造参数
type RunnerConfig struct {
	Shards   []*index.Index
	Settings *mapping.IndexSettings
	Scripts  *script.Service
	Fetch    FetchExecutor

	// MaxBuckets 协调归并的桶数上限，0 用默认值
	MaxBuckets int
	// Workers 同时执行的分片协程数，0 表示每分片一个
	Workers int
}

// Runner 本地多分片查询执行器
//
// 一次请求经历两波并发：查询阶段各分片独立选出局部前排，协调端
// 归并出全局窗口后，第二波只取回各分片被选中的文档。分片间共享
// 请求对象但各有独立的快照、执行上下文与结果槽。
type Runner struct {
	shards     []*index.Index
	settings   *mapping.IndexSettings
	scripts    *script.Service
	fetch      FetchExecutor
	maxBuckets int
	workers    int
	log        *logger.FieldLogger
}

// NewRunner 构建查询执行器
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if len(cfg.Shards) == 0 {
		return nil, fmt.Errorf("at least one shard is required")
	}
	if cfg.Fetch == nil {
		return nil, fmt.Errorf("fetch executor is required")
	}
	scripts := cfg.Scripts
	if scripts == nil {
		scripts = script.NewService(128, 5*time.Minute)
	}
	maxBuckets := cfg.MaxBuckets
	if maxBuckets == 0 {
		maxBuckets = aggregations.DefaultMaxBuckets
	}
	return &Runner{
		shards:     cfg.Shards,
		settings:   cfg.Settings,
		scripts:    scripts,
		fetch:      cfg.Fetch,
		maxBuckets: maxBuckets,
		workers:    cfg.Workers,
		log:        logger.Named("search"),
	}, nil
}

// ShardStats 分片参与统计
type ShardStats struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// Response 协调端归并后的查询响应
type Response struct {
	RequestID       string
	Took            time.Duration
	TotalHits       uint64
	MaxScore        float64
	Hits            []*Hit
	Aggregations    map[string]*aggregations.StringTermsResult
	TerminatedEarly bool
	Cacheable       bool
	Shards          ShardStats
}

// shardState 单分片跨两波执行的私有状态
type shardState struct {
	snap    *index.Snapshot
	sc      *SearchContext
	sorter  *SortScript
	top     []collector.ScoreDoc
	limited bool
}

// rankedDoc 协调端归并用的带分片归属的命中
type rankedDoc struct {
	shard int
	doc   collector.ScoreDoc
}

// Execute 执行一次查询请求
//
// 任一分片失败终止整个请求；取消通过请求 context 传入，
// 分片在段边界与逐文档检查点协作退出
func (r *Runner) Execute(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		req = &Request{}
	}
	start := time.Now()
	requestID := uuid.NewString()
	r.log.Info("Executing search [%s] across %d shard(s)", requestID, len(r.shards))

	states := make([]*shardState, len(r.shards))
	defer func() {
		for _, st := range states {
			if st != nil && st.snap != nil {
				_ = st.snap.Close()
			}
		}
	}()

	// 第一波：各分片查询阶段
	g, gctx := errgroup.WithContext(ctx)
	if r.workers > 0 {
		g.SetLimit(r.workers)
	}
	for i, shard := range r.shards {
		i, shard := i, shard
		g.Go(func() error {
			st := &shardState{}
			states[i] = st

			snap, err := shard.Snapshot()
			if err != nil {
				return fmt.Errorf("failed to open snapshot for shard %d: %w", i, err)
			}
			st.snap = snap

			exec := NewExecutionContext(ContextConfig{
				ShardID:                i,
				ShardRequestIndex:      i,
				Mapping:                shard.Lookup(),
				Settings:               r.settings,
				Snapshot:               snap,
				Scripts:                r.scripts,
				AllowedFields:          req.AllowedFields,
				RuntimeFields:          req.RuntimeFields,
				MapUnmappedFieldAsText: req.MapUnmappedFieldAsText,
			})
			st.sc = NewSearchContext(requestID, i, req, exec, snap)
			if gctx.Err() != nil {
				st.sc.Cancel("request context cancelled")
			}
			return r.runShardQuery(gctx, req, st)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// 协调端：全局归并，切出请求窗口
	window := mergeTops(states, req)

	// 第二波：各分片取回被选中的文档
	g2, gctx2 := errgroup.WithContext(ctx)
	if r.workers > 0 {
		g2.SetLimit(r.workers)
	}
	for i := range states {
		i := i
		g2.Go(func() error {
			st := states[i]
			for _, rd := range window {
				if rd.shard != i {
					continue
				}
				ord := rd.doc.Ord
				st.sc.DocsToFetch = append(st.sc.DocsToFetch, ord)
				if st.sorter == nil {
					st.sc.DocScores[ord] = rd.doc.Score
					continue
				}
				// 脚本排序时堆里存的是排名键，真实得分单独补算
				real, err := st.sc.Query.Score(st.sc.Snapshot, ord)
				if err != nil {
					return err
				}
				st.sc.DocScores[ord] = real
				v := rd.doc.Score
				if !st.sorter.Desc {
					v = -v
				}
				if st.sc.DocSorts == nil {
					st.sc.DocSorts = make(map[uint32][]interface{})
				}
				st.sc.DocSorts[ord] = []interface{}{v}
			}
			if gctx2.Err() != nil {
				st.sc.Cancel("request context cancelled")
			}
			return r.fetch.Execute(st.sc)
		})
	}
	if err := g2.Wait(); err != nil {
		return nil, err
	}

	rv, err := r.assemble(ctx, req, requestID, states, window)
	if err != nil {
		return nil, err
	}
	rv.Took = time.Since(start)
	r.log.Info("Search [%s] completed in %s: %d of %d hit(s) returned",
		requestID, rv.Took, len(rv.Hits), rv.TotalHits)
	return rv, nil
}

// runShardQuery 单分片查询阶段：转换、冻结、采集、产出局部前排
func (r *Runner) runShardQuery(ctx context.Context, req *Request, st *shardState) error {
	sc := st.sc
	if err := sc.CheckCancelled(); err != nil {
		return err
	}

	builder := req.Query
	if builder == nil {
		builder = NewMatchAllQuery()
	}
	parsed, err := sc.Exec.ToQuery(builder)
	if err != nil {
		return err
	}
	sc.Query = parsed.Query
	sc.Named = parsed.Named

	// 脚本字段与排序脚本都在冻结前编译，取回阶段直接复用工厂
	if len(req.ScriptFields) > 0 {
		sc.ScriptFactories = make(map[string]*script.Factory, len(req.ScriptFields))
		for _, sf := range req.ScriptFields {
			factory, err := sc.Exec.CompileScript(sf.Script, script.ContextField)
			if err != nil {
				return fmt.Errorf("failed to compile script field [%s]: %w", sf.Name, err)
			}
			sc.ScriptFactories[sf.Name] = factory
		}
	}
	if req.ScriptSort != nil {
		if st.sorter, err = NewSortScript(sc.Exec, req.ScriptSort); err != nil {
			return fmt.Errorf("failed to compile sort script: %w", err)
		}
	}

	if err := sc.Exec.ExecuteAsyncActions(ctx); err != nil {
		return err
	}
	sc.Exec.FreezeContext()

	matches, err := sc.Query.Match(sc.Snapshot)
	if err != nil {
		return err
	}
	r.log.Debug("Shard %d query phase [%s]: %d match(es)", sc.Shard, sc.RequestID, matches.GetCardinality())

	topDocs := collector.NewTopDocs(queryWindow(req))
	children := []collector.BucketCollector{topDocs}
	termCols := make([]*collector.TermsCollector, 0, len(req.Aggregations))
	for _, spec := range req.Aggregations {
		tc := collector.NewTerms(spec.Name, spec.Field)
		termCols = append(termCols, tc)
		children = append(children, tc)
	}
	chain := collector.Wrap(children...)
	var lim *collector.LimitCollector
	if req.TerminateAfter > 0 {
		lim = collector.NewLimit(chain, req.TerminateAfter)
		chain = lim
	}

	if err := r.drive(ctx, sc, st.sorter, matches, chain); err != nil {
		return err
	}

	sc.TotalHits = topDocs.TotalHits()
	if st.sorter == nil {
		sc.MaxScore = topDocs.MaxScore()
	}
	st.top = topDocs.Hits()
	if lim != nil {
		st.limited = lim.TerminatedEarly()
	}
	if len(termCols) > 0 {
		sc.Aggregations = make(map[string]*aggregations.StringTermsShard, len(termCols))
		for _, tc := range termCols {
			shard := tc.Shard()
			sc.Aggregations[shard.Name] = shard
		}
	}
	return nil
}

// drive 把命中位图按段喂给收集链
//
// 单趟升序遍历，跨段时绑定新叶；链在绑定或采集时宣告终止就整体收手。
// 逐文档查协作取消标记，段边界把外部 context 的取消桥接进来
func (r *Runner) drive(ctx context.Context, sc *SearchContext, sorter *SortScript, matches *roaring.Bitmap, chain collector.BucketCollector) error {
	if err := chain.PreCollection(); err != nil {
		return err
	}
	needScores := chain.ScoreMode().NeedsScores()

	var (
		seg  *index.SegmentSnapshot
		leaf collector.LeafBucketCollector
	)
	it := matches.Iterator()
	for it.HasNext() {
		ord := it.Next()
		if err := sc.CheckCancelled(); err != nil {
			return err
		}

		if seg == nil || !seg.Contains(ord) {
			if ctx.Err() != nil {
				sc.Cancel("request context cancelled")
				return sc.CheckCancelled()
			}
			var err error
			seg, err = sc.Snapshot.SegmentForOrdinal(ord)
			if err != nil {
				return err
			}
			var res collector.CollectResult
			leaf, res, err = chain.Leaf(seg)
			if err != nil {
				return err
			}
			if res == collector.CollectTerminated {
				break
			}
			if needScores {
				if err := leaf.SetScorer(newShardScorer(sc, seg, sorter)); err != nil {
					return err
				}
			}
		}

		res, err := leaf.Collect(ord-seg.DocBase(), 0)
		if err != nil {
			return err
		}
		if res == collector.CollectTerminated {
			break
		}
	}
	return chain.PostCollection()
}

// queryWindow 分片局部必须选出的命中数，翻页窗口整体下推
func queryWindow(req *Request) int {
	from := req.From
	if from < 0 {
		from = 0
	}
	return from + req.EffectiveSize()
}

// mergeTops 归并各分片局部前排并切出请求窗口
// 主序分数降序，分片序号与文档号破平，保证归并结果确定
func mergeTops(states []*shardState, req *Request) []rankedDoc {
	var merged []rankedDoc
	for i, st := range states {
		for _, sd := range st.top {
			merged = append(merged, rankedDoc{shard: i, doc: sd})
		}
	}
	sort.Slice(merged, func(a, b int) bool {
		da, db := merged[a], merged[b]
		if da.doc.Score != db.doc.Score {
			return da.doc.Score > db.doc.Score
		}
		if da.shard != db.shard {
			return da.shard < db.shard
		}
		return da.doc.Ord < db.doc.Ord
	})

	from := req.From
	if from < 0 {
		from = 0
	}
	to := from + req.EffectiveSize()
	if from > len(merged) {
		from = len(merged)
	}
	if to > len(merged) {
		to = len(merged)
	}
	return merged[from:to]
}

// assemble 汇总分片结果：按全局名次交织命中，归并聚合
func (r *Runner) assemble(ctx context.Context, req *Request, requestID string, states []*shardState, window []rankedDoc) (*Response, error) {
	rv := &Response{
		RequestID: requestID,
		Hits:      make([]*Hit, 0, len(window)),
		Cacheable: true,
		Shards:    ShardStats{Total: len(states), Successful: len(states)},
	}
	for _, st := range states {
		shardRv := st.sc.Result()
		if shardRv == nil {
			return nil, fmt.Errorf("shard %d produced no result", st.sc.Shard)
		}
		rv.TotalHits += shardRv.TotalHits
		if shardRv.MaxScore > rv.MaxScore {
			rv.MaxScore = shardRv.MaxScore
		}
		rv.Cacheable = rv.Cacheable && shardRv.Cacheable
		rv.TerminatedEarly = rv.TerminatedEarly || st.limited
	}

	// 各分片命中保持选中顺序，游标交织还原全局名次
	cursors := make([]int, len(states))
	for _, rd := range window {
		shardRv := states[rd.shard].sc.Result()
		rv.Hits = append(rv.Hits, shardRv.Hits[cursors[rd.shard]])
		cursors[rd.shard]++
	}

	if len(req.Aggregations) > 0 {
		reduceCtx := aggregations.NewReduceContext(r.maxBuckets, func() error { return ctx.Err() })
		rv.Aggregations = make(map[string]*aggregations.StringTermsResult, len(req.Aggregations))
		for _, spec := range req.Aggregations {
			shards := make([]*aggregations.StringTermsShard, 0, len(states))
			for _, st := range states {
				shards = append(shards, st.sc.Aggregations[spec.Name])
			}
			reduced, err := aggregations.ReduceStringTerms(reduceCtx, shards, spec.Size)
			if err != nil {
				return nil, fmt.Errorf("failed to reduce aggregation [%s]: %w", spec.Name, err)
			}
			rv.Aggregations[spec.Name] = reduced
		}
	}
	return rv, nil
}

// queryScorer 把查询的全局打分适配成段内局部打分器
type queryScorer struct {
	query   Query
	snap    *index.Snapshot
	docBase uint32
}

func (s *queryScorer) Score(doc uint32) (float64, error) {
	return s.query.Score(s.snap, s.docBase+doc)
}

// scriptRankScorer 脚本排序时替换进收集链的排名键打分器
//
// 排名键取脚本值，升序排序对键取负，归并端就永远按键降序处理；
// 真实查询得分仍会算出来喂给脚本的 _score
type scriptRankScorer struct {
	base    *queryScorer
	sorter  *SortScript
	docBase uint32
}

func (s *scriptRankScorer) Score(doc uint32) (float64, error) {
	real, err := s.base.Score(doc)
	if err != nil {
		return 0, err
	}
	v := s.sorter.Value(s.docBase+doc, real)
	if s.sorter.Desc {
		return v, nil
	}
	return -v, nil
}

func newShardScorer(sc *SearchContext, seg *index.SegmentSnapshot, sorter *SortScript) collector.Scorer {
	base := &queryScorer{query: sc.Query, snap: sc.Snapshot, docBase: seg.DocBase()}
	if sorter == nil {
		return base
	}
	return &scriptRankScorer{base: base, sorter: sorter, docBase: seg.DocBase()}
}
