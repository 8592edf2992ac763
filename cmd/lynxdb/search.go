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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/lynxsearch/lynxdb/config"
	"github.com/lynxsearch/lynxdb/index"
	_ "github.com/lynxsearch/lynxdb/index/store/boltdb"
	"github.com/lynxsearch/lynxdb/logger"
	"github.com/lynxsearch/lynxdb/mapping"
	"github.com/lynxsearch/lynxdb/protocols/es"
	"github.com/lynxsearch/lynxdb/script"
	"github.com/lynxsearch/lynxdb/search"
	"github.com/lynxsearch/lynxdb/search/fetch"
)

var (
	searchIndexName string
	searchFile      string
	searchPretty    bool
)

var searchCmd = &cobra.Command{
	Use:   "search [request-json]",
	Short: "Execute a search request against ingested shards",
	Long: `Runs an Elasticsearch style search request over the shards built by
'ingest'. The request body comes from the argument, from --file, or
from stdin, and the response is printed as JSON.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchIndexName, "index", "index", "Index name under the data directory")
	searchCmd.Flags().StringVarP(&searchFile, "file", "f", "", "Read the request body from a file")
	searchCmd.Flags().BoolVar(&searchPretty, "pretty", true, "Indent the JSON response")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	body, err := readRequestBody(args)
	if err != nil {
		return err
	}

	shards, cleanup, err := openShards()
	if err != nil {
		return err
	}
	defer cleanup()

	req, err := es.ParseSearchRequest(body)
	if err != nil {
		return err
	}
	converted, err := req.Convert(es.NewQueryParser())
	if err != nil {
		return err
	}
	if converted.Size < 0 && globalConfig.Search != nil && globalConfig.Search.DefaultSize > 0 {
		converted.Size = globalConfig.Search.DefaultSize
	}

	fetchPhase := fetch.NewDefault()
	runner, err := newRunner(shards, fetchPhase)
	if err != nil {
		return err
	}

	// Ctrl-C 走协作取消，分片在检查点退出
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rv, err := runner.Execute(ctx, converted)
	if err != nil {
		return err
	}
	reportSearch(rv, fetchPhase)

	resp := es.NewSearchResponse(searchIndexName, converted, rv)
	enc := json.NewEncoder(os.Stdout)
	if searchPretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	return nil
}

// openShards 重开 ingest 落盘的全部分片
func openShards() ([]*index.Index, func(), error) {
	indexDir := filepath.Join(globalConfig.GetDataDir(), searchIndexName)
	mappingData, err := os.ReadFile(filepath.Join(indexDir, "mapping.json"))
	if err != nil {
		return nil, nil, fmt.Errorf("no mapping found in %s, run 'ingest' first: %w", indexDir, err)
	}

	paths, err := filepath.Glob(filepath.Join(indexDir, "shard-*.bolt"))
	if err != nil {
		return nil, nil, err
	}
	if len(paths) == 0 {
		return nil, nil, fmt.Errorf("no shards found in %s, run 'ingest' first", indexDir)
	}
	sort.Strings(paths)

	shards := make([]*index.Index, 0, len(paths))
	cleanup := func() {
		for _, idx := range shards {
			_ = idx.Close()
		}
	}
	for _, path := range paths {
		m, err := mapping.ParseIndexMappingJSON(mappingData)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("invalid persisted mapping: %w", err)
		}
		// 检索只打开落盘的 bolt 分片
		idx, err := index.Open(index.Config{
			Backend: config.StoreBackendBolt,
			Path:    path,
			Mapping: m,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to open shard %s: %w", path, err)
		}
		shards = append(shards, idx)
	}
	return shards, cleanup, nil
}

// newRunner 按全局配置装配查询执行器
func newRunner(shards []*index.Index, fetchPhase *fetch.FetchPhase) (*search.Runner, error) {
	settings := mapping.DefaultIndexSettings(searchIndexName)
	settings.NumberOfShards = len(shards)

	cfg := search.RunnerConfig{
		Shards:   shards,
		Settings: settings,
		Fetch:    fetchPhase,
	}
	if sc := globalConfig.Script; sc != nil {
		cfg.Scripts = script.NewService(sc.CacheSize, time.Duration(sc.CacheTTLSeconds)*time.Second)
	}
	if sc := globalConfig.Search; sc != nil {
		cfg.MaxBuckets = sc.MaxBuckets
		cfg.Workers = sc.WorkerPoolSize
	}
	return search.NewRunner(cfg)
}

// reportSearch 慢查询告警与取回剖面输出
func reportSearch(rv *search.Response, fetchPhase *fetch.FetchPhase) {
	if sc := globalConfig.Search; sc != nil && sc.SlowFetchMillis > 0 {
		slow := time.Duration(sc.SlowFetchMillis) * time.Millisecond
		if rv.Took > slow {
			logger.Warn("Slow search [%s]: took %s over %d shard(s)", rv.RequestID, rv.Took, rv.Shards.Total)
		}
	}
	if globalConfig.Metrics != nil && globalConfig.Metrics.Enabled {
		logger.Debug("Fetch profile [%s]: %v", rv.RequestID, fetchPhase.Profiler().Stats())
	}
}

// readRequestBody 取请求体：参数、--file、标准输入三选一
func readRequestBody(args []string) ([]byte, error) {
	if len(args) == 1 && searchFile != "" {
		return nil, fmt.Errorf("request body given both as argument and --file")
	}
	if len(args) == 1 {
		return []byte(args[0]), nil
	}
	if searchFile != "" {
		data, err := os.ReadFile(searchFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read request file: %w", err)
		}
		return data, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read request from stdin: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty request body")
	}
	return data, nil
}
