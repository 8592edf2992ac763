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
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lynxsearch/lynxdb/config"
	"github.com/lynxsearch/lynxdb/index"
	_ "github.com/lynxsearch/lynxdb/index/store/boltdb"
	_ "github.com/lynxsearch/lynxdb/index/store/gtreap"
	"github.com/lynxsearch/lynxdb/logger"
	"github.com/lynxsearch/lynxdb/mapping"
)

var (
	ingestMappingFile string
	ingestIndexName   string
	ingestShards      int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <docs.ndjson>",
	Short: "Build index shards from newline-delimited JSON documents",
	Long: `Reads one JSON document per line and distributes them round-robin
across the requested number of shards. A document may carry its own id
in an "_id" field; documents without one get a generated id. The mapping
file is copied into the index directory so 'search' can reopen the shards.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestMappingFile, "mapping", "", "Mapping file path (required)")
	ingestCmd.Flags().StringVar(&ingestIndexName, "index", "index", "Index name under the data directory")
	ingestCmd.Flags().IntVar(&ingestShards, "shards", 1, "Number of shards to build")
	_ = ingestCmd.MarkFlagRequired("mapping")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestShards <= 0 {
		return fmt.Errorf("shards must be positive, got %d", ingestShards)
	}
	mappingData, err := os.ReadFile(ingestMappingFile)
	if err != nil {
		return fmt.Errorf("failed to read mapping file: %w", err)
	}

	backend := config.StoreBackendBolt
	noSync := false
	if globalConfig.Store != nil {
		backend = globalConfig.Store.Backend
		noSync = globalConfig.Store.NoSync
	}
	if backend == config.StoreBackendMemory {
		logger.Warn("Ingesting into the memory backend, shards will not survive this process")
	}

	indexDir := filepath.Join(globalConfig.GetDataDir(), ingestIndexName)
	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	// 映射随数据落盘，search 子命令据此重开分片
	if err := os.WriteFile(filepath.Join(indexDir, "mapping.json"), mappingData, 0o644); err != nil {
		return fmt.Errorf("failed to persist mapping: %w", err)
	}

	shards := make([]*index.Index, ingestShards)
	builders := make([]*index.Builder, ingestShards)
	for i := range shards {
		m, err := mapping.ParseIndexMappingJSON(mappingData)
		if err != nil {
			return fmt.Errorf("invalid mapping: %w", err)
		}
		idx, err := index.Open(index.Config{
			Backend: backend,
			Path:    filepath.Join(indexDir, fmt.Sprintf("shard-%04d.bolt", i)),
			NoSync:  noSync,
			Mapping: m,
		})
		if err != nil {
			return fmt.Errorf("failed to open shard %d: %w", i, err)
		}
		defer func() { _ = idx.Close() }()
		shards[i] = idx
		builders[i] = idx.NewBuilder()
	}

	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open documents file: %w", err)
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	total := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		// 构建器会持有源切片，扫描器复用缓冲区，必须复制
		line := append([]byte(nil), scanner.Bytes()...)
		id, doc, err := documentID(line)
		if err != nil {
			return fmt.Errorf("invalid document at line %d: %w", lineNo, err)
		}
		if err := builders[total%ingestShards].AddDocument(id, doc); err != nil {
			return fmt.Errorf("failed to add document %s at line %d: %w", id, lineNo, err)
		}
		total++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read documents: %w", err)
	}

	for i, builder := range builders {
		if err := builder.Commit(); err != nil {
			return fmt.Errorf("failed to commit shard %d: %w", i, err)
		}
	}

	logger.Info("Ingested %d document(s) into %d shard(s) under %s", total, ingestShards, indexDir)
	fmt.Printf("Ingested %d document(s) into %d shard(s)\n", total, ingestShards)
	fmt.Printf("Index directory: %s\n", indexDir)
	return nil
}

// documentID 取文档主键
// 行内的 _id 字段作为主键使用并从源中剥离，缺席时生成一个
func documentID(line []byte) (string, []byte, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(line, &fields); err != nil {
		return "", nil, err
	}
	raw, ok := fields["_id"]
	if !ok {
		return uuid.NewString(), line, nil
	}
	id, ok := raw.(string)
	if !ok || id == "" {
		return "", nil, fmt.Errorf("_id must be a non-empty string")
	}
	delete(fields, "_id")
	doc, err := json.Marshal(fields)
	if err != nil {
		return "", nil, err
	}
	return id, doc, nil
}
