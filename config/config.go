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

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// 存储后端名称
const (
	StoreBackendBolt   = "bolt"
	StoreBackendMemory = "memory"
)

// GlobalConfig 全局配置结构
// 包含搜索执行核心的所有配置项
type GlobalConfig struct {
	// 核心配置
	DataDir string `yaml:"data_dir" json:"data_dir"` // 数据目录

	// 子系统配置
	Search *SearchConfig `yaml:"search,omitempty" json:"search,omitempty"` // 搜索执行配置
	Script *ScriptConfig `yaml:"script,omitempty" json:"script,omitempty"` // 脚本引擎配置
	Store  *StoreConfig  `yaml:"store,omitempty" json:"store,omitempty"`   // 存储配置

	// 日志配置（全局）
	Log *LogConfig `yaml:"log,omitempty" json:"log,omitempty"`

	// 监控配置（全局）
	Metrics *MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty"`
}

// SearchConfig 搜索执行配置
type SearchConfig struct {
	WorkerPoolSize  int `yaml:"worker_pool_size" json:"worker_pool_size"`   // 分片并发执行的工作协程数，0 表示等于分片数
	MaxBuckets      int `yaml:"max_buckets" json:"max_buckets"`             // 聚合归并允许的最大桶数
	DefaultSize     int `yaml:"default_size" json:"default_size"`           // 未指定 size 时返回的命中数
	SlowFetchMillis int `yaml:"slow_fetch_millis" json:"slow_fetch_millis"` // 超过该耗时的 fetch 记录慢日志（毫秒）
}

// ScriptConfig 脚本引擎配置
type ScriptConfig struct {
	CacheSize       int `yaml:"cache_size" json:"cache_size"`               // 编译缓存容量
	CacheTTLSeconds int `yaml:"cache_ttl_seconds" json:"cache_ttl_seconds"` // 编译缓存过期时间（秒）
}

// StoreConfig 存储配置
type StoreConfig struct {
	Backend string `yaml:"backend" json:"backend"` // 存储后端：bolt 或 memory
	NoSync  bool   `yaml:"no_sync" json:"no_sync"` // bolt 写入是否跳过 fsync
}

// LogConfig 日志配置
type LogConfig struct {
	Level           string `yaml:"level" json:"level"`                       // 日志级别：debug, info, warn, error, fatal, silent
	Output          string `yaml:"output" json:"output"`                     // 输出目标：stdout, stderr, 或文件路径
	Format          string `yaml:"format" json:"format"`                     // 日志格式：text, json
	EnableCaller    bool   `yaml:"enable_caller" json:"enable_caller"`       // 是否显示调用位置（文件:行号）
	EnableTimestamp bool   `yaml:"enable_timestamp" json:"enable_timestamp"` // 是否显示时间戳
	MaxSize         int    `yaml:"max_size" json:"max_size"`                 // 单个日志文件的最大大小（MB）
	MaxBackups      int    `yaml:"max_backups" json:"max_backups"`           // 保留的旧日志文件数量
	MaxAge          int    `yaml:"max_age" json:"max_age"`                   // 保留旧日志文件的最大天数
	Compress        bool   `yaml:"compress" json:"compress"`                 // 是否压缩旧日志文件
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"` // 是否启用 fetch/归并指标采集
}

// DefaultGlobalConfig 返回默认全局配置
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		DataDir: "./data", // 默认数据目录
		Search: &SearchConfig{
			WorkerPoolSize:  0,
			MaxBuckets:      65535,
			DefaultSize:     10,
			SlowFetchMillis: 500,
		},
		Script: &ScriptConfig{
			CacheSize:       100,
			CacheTTLSeconds: 300,
		},
		Store: &StoreConfig{
			Backend: StoreBackendBolt,
			NoSync:  false,
		},
		Log: &LogConfig{
			Level:           "info",
			Output:          "stdout",
			Format:          "text",
			EnableCaller:    false,
			EnableTimestamp: true,
			MaxSize:         100,
			MaxBackups:      3,
			MaxAge:          7,
			Compress:        true,
		},
		Metrics: &MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate 验证配置
func (c *GlobalConfig) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir cannot be empty")
	}

	// 验证数据目录路径（可以是相对路径或绝对路径）
	if !filepath.IsAbs(c.DataDir) {
		absPath, err := filepath.Abs(c.DataDir)
		if err != nil {
			return fmt.Errorf("failed to resolve data_dir path: %w", err)
		}
		c.DataDir = absPath
	}

	// 验证搜索配置
	if c.Search != nil {
		if c.Search.WorkerPoolSize < 0 {
			return fmt.Errorf("invalid worker_pool_size: %d", c.Search.WorkerPoolSize)
		}
		if c.Search.MaxBuckets <= 0 {
			return fmt.Errorf("invalid max_buckets: %d", c.Search.MaxBuckets)
		}
		if c.Search.DefaultSize < 0 {
			return fmt.Errorf("invalid default_size: %d", c.Search.DefaultSize)
		}
	}

	// 验证脚本配置
	if c.Script != nil {
		if c.Script.CacheSize <= 0 {
			return fmt.Errorf("invalid script cache_size: %d", c.Script.CacheSize)
		}
		if c.Script.CacheTTLSeconds < 0 {
			return fmt.Errorf("invalid script cache_ttl_seconds: %d", c.Script.CacheTTLSeconds)
		}
	}

	// 验证存储配置
	if c.Store != nil {
		switch c.Store.Backend {
		case StoreBackendBolt, StoreBackendMemory:
		default:
			return fmt.Errorf("unknown store backend: %s", c.Store.Backend)
		}
	}

	return nil
}

// GetDataDir 获取数据目录
func (c *GlobalConfig) GetDataDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return "./data"
}

// ApplyEnvOverrides 应用环境变量覆盖
func (c *GlobalConfig) ApplyEnvOverrides() {
	// 数据目录
	if dataDir := os.Getenv("LYNXDB_DATA_DIR"); dataDir != "" {
		c.DataDir = dataDir
	}

	// 存储配置
	if c.Store != nil {
		if backend := os.Getenv("LYNXDB_STORE_BACKEND"); backend != "" {
			c.Store.Backend = backend
		}
		if noSync := os.Getenv("LYNXDB_STORE_NO_SYNC"); noSync != "" {
			c.Store.NoSync = noSync == "true" || noSync == "1"
		}
	}

	// 搜索配置
	if c.Search != nil {
		if poolSize := os.Getenv("LYNXDB_SEARCH_WORKERS"); poolSize != "" {
			if n, err := parseInt(poolSize); err == nil {
				c.Search.WorkerPoolSize = n
			}
		}
		if maxBuckets := os.Getenv("LYNXDB_SEARCH_MAX_BUCKETS"); maxBuckets != "" {
			if n, err := parseInt(maxBuckets); err == nil {
				c.Search.MaxBuckets = n
			}
		}
	}

	// 日志配置
	if c.Log != nil {
		if level := os.Getenv("LYNXDB_LOG_LEVEL"); level != "" {
			c.Log.Level = level
		}
		if output := os.Getenv("LYNXDB_LOG_OUTPUT"); output != "" {
			c.Log.Output = output
		}
	}
}

// LoadFile 从 YAML 文件加载配置，叠加在默认配置之上
func LoadFile(path string) (*GlobalConfig, error) {
	cfg := DefaultGlobalConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// parseInt 解析整数（辅助函数）
func parseInt(s string) (int, error) {
	var result int
	_, err := fmt.Sscanf(s, "%d", &result)
	return result, err
}
