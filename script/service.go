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

package script

import (
	"fmt"
	"time"
)

// Service 脚本服务，统一入口：编译走缓存，执行走工厂
type Service struct {
	engine *Engine
	cache  *Cache
}

// NewService 创建脚本服务
func NewService(cacheSize int, cacheTTL time.Duration) *Service {
	return &Service{
		engine: NewEngine(),
		cache:  NewCache(cacheSize, cacheTTL),
	}
}

// Compile 编译脚本，同一份源码的编译结果会被缓存复用
func (s *Service) Compile(sc *Script, contextName string) (*Factory, error) {
	if sc == nil || sc.Source == "" {
		return nil, fmt.Errorf("script is empty")
	}
	switch contextName {
	case ContextScore, ContextField, ContextFilter:
	default:
		return nil, fmt.Errorf("unknown script context: %s", contextName)
	}

	lang := sc.Lang
	if lang == "" {
		lang = LangPainless
	}
	if f, ok := s.cache.Get(lang, sc.Source); ok {
		return f, nil
	}

	f, err := s.engine.Compile(sc)
	if err != nil {
		return nil, err
	}
	s.cache.Put(lang, sc.Source, f)
	return f, nil
}

// CacheStats 返回编译缓存统计
func (s *Service) CacheStats() map[string]interface{} {
	return s.cache.Stats()
}
