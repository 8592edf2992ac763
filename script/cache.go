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
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// 缓存默认参数
const (
	DefaultCacheSize = 100
	DefaultCacheTTL  = 5 * time.Minute
)

// cachedFactory 缓存条目，记录编译产物与使用情况
type cachedFactory struct {
	factory   *Factory
	createdAt time.Time
	lastUsed  time.Time
	useCount  int64
}

// Cache 脚本编译缓存
// 按语言加源码哈希索引，LRU 淘汰，过期条目由后台定期清理
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*cachedFactory
	maxSize int
	ttl     time.Duration
	hits    int64
	misses  int64
}

// NewCache 创建脚本缓存并启动后台清理
func NewCache(maxSize int, ttl time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &Cache{
		entries: make(map[string]*cachedFactory),
		maxSize: maxSize,
		ttl:     ttl,
	}
	go c.cleanupLoop()
	return c
}

// hashScript 计算缓存键，语言参与哈希避免同源不同语言互相污染
func hashScript(lang, source string) string {
	h := sha256.Sum256([]byte(lang + "\x00" + source))
	return hex.EncodeToString(h[:])[:16]
}

// Get 查找编译缓存
func (c *Cache) Get(lang, source string) (*Factory, bool) {
	key := hashScript(lang, source)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}

	// 过期条目按未命中处理
	if time.Since(entry.createdAt) > c.ttl {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}

	entry.lastUsed = time.Now()
	entry.useCount++
	c.hits++
	return entry.factory, true
}

// Put 写入编译缓存，容量满时淘汰最久未用的条目
func (c *Cache) Put(lang, source string, f *Factory) {
	key := hashScript(lang, source)

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	now := time.Now()
	c.entries[key] = &cachedFactory{
		factory:   f,
		createdAt: now,
		lastUsed:  now,
	}
}

// evictOldest 淘汰最久未使用的条目，调用方持锁
func (c *Cache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.lastUsed.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.lastUsed
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Clear 清空缓存
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cachedFactory)
}

// Size 返回缓存条目数
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats 返回缓存统计信息
func (c *Cache) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return map[string]interface{}{
		"size":     len(c.entries),
		"max_size": c.maxSize,
		"hits":     c.hits,
		"misses":   c.misses,
		"hit_rate": hitRate,
	}
}

// cleanupLoop 周期清理过期条目
func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		c.removeExpired()
	}
}

func (c *Cache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for key, entry := range c.entries {
		if now.Sub(entry.createdAt) > c.ttl {
			delete(c.entries, key)
		}
	}
}
