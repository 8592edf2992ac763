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

package fetch

import (
	"time"

	"github.com/blevesearch/go-metrics"
)

// Profiler 取回阶段剖面：整体耗时、逐子阶段耗时与取回文档数
// 计量器自身并发安全，同一取回阶段可被多个分片 goroutine 共用
type Profiler struct {
	fetchTimer metrics.Timer
	docCount   metrics.Counter
	phases     map[string]metrics.Timer
}

func newProfiler(phaseNames []string) *Profiler {
	p := &Profiler{
		fetchTimer: metrics.NewTimer(),
		docCount:   metrics.NewCounter(),
		phases:     make(map[string]metrics.Timer, len(phaseNames)),
	}
	for _, name := range phaseNames {
		p.phases[name] = metrics.NewTimer()
	}
	return p
}

func (p *Profiler) startFetch() func() {
	start := time.Now()
	return func() { p.fetchTimer.UpdateSince(start) }
}

func (p *Profiler) startPhase(name string) func() {
	timer, ok := p.phases[name]
	if !ok {
		return func() {}
	}
	start := time.Now()
	return func() { timer.UpdateSince(start) }
}

func (p *Profiler) docFetched() {
	p.docCount.Inc(1)
}

// Stats 导出剖面快照
func (p *Profiler) Stats() map[string]interface{} {
	rv := map[string]interface{}{
		"fetch_count":   p.fetchTimer.Count(),
		"fetch_mean_ns": p.fetchTimer.Mean(),
		"docs_fetched":  p.docCount.Count(),
	}
	for name, timer := range p.phases {
		rv["phase_"+name+"_count"] = timer.Count()
		rv["phase_"+name+"_mean_ns"] = timer.Mean()
	}
	return rv
}
