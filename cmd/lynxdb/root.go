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
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lynxsearch/lynxdb/config"
)

var (
	cfgFile  string
	dataDir  string
	logLevel string

	// globalConfig 所有子命令共享的已生效配置
	globalConfig *config.GlobalConfig
)

var rootCmd = &cobra.Command{
	Use:   "lynxdb",
	Short: "LynxDB search execution core",
	Long: `LynxDB is a sharded search execution core with an Elasticsearch
compatible query DSL. Build index shards from newline-delimited JSON
with 'ingest', then run queries against them with 'search'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initGlobalConfig()
	},
}

// Execute 运行命令行入口
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error, fatal)")
}

// initGlobalConfig 装配全局配置
// 配置优先级：命令行参数 > 环境变量 > 配置文件 > 默认值
func initGlobalConfig() error {
	cfg, err := loadGlobalConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cfg.ApplyEnvOverrides()

	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if logLevel != "" {
		if cfg.Log == nil {
			cfg.Log = config.DefaultGlobalConfig().Log
		}
		cfg.Log.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := initLogger(cfg); err != nil {
		return err
	}

	globalConfig = cfg
	return nil
}

// loadGlobalConfig 加载配置文件
// 明确指定的文件必须存在；未指定时自动探测，探测不到就用默认配置
func loadGlobalConfig(path string) (*config.GlobalConfig, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return config.LoadFile(path)
	}
	if detected := autoDetectConfig(); detected != "" {
		return config.LoadFile(detected)
	}
	return config.DefaultGlobalConfig(), nil
}

// autoDetectConfig 自动探测配置文件
func autoDetectConfig() string {
	homeDir, _ := os.UserHomeDir()
	paths := []string{
		"config.yaml",
		"config.yml",
		"lynxdb.yaml",
		"lynxdb.yml",
		filepath.Join(".", "config", "lynxdb.yaml"),
		filepath.Join(homeDir, ".lynxdb", "config.yaml"),
		filepath.Join("/etc", "lynxdb", "config.yaml"),
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}
