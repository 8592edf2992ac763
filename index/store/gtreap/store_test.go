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

package gtreap

import (
	"encoding/binary"
	"testing"

	store "github.com/blevesearch/upsidedown_store_api"
)

type counterMergeOperator struct{}

func (m *counterMergeOperator) FullMerge(key, existingValue []byte, operands [][]byte) ([]byte, bool) {
	var total uint64
	if len(existingValue) == 8 {
		total = binary.BigEndian.Uint64(existingValue)
	}
	for _, op := range operands {
		if len(op) != 8 {
			return nil, false
		}
		total += binary.BigEndian.Uint64(op)
	}
	rv := make([]byte, 8)
	binary.BigEndian.PutUint64(rv, total)
	return rv, true
}

func (m *counterMergeOperator) PartialMerge(key, leftOperand, rightOperand []byte) ([]byte, bool) {
	return nil, false
}

func (m *counterMergeOperator) Name() string {
	return "counter"
}

func openTestStore(t *testing.T) store.KVStore {
	t.Helper()
	s, err := New(&counterMergeOperator{}, map[string]interface{}{"path": ""})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	return s
}

func executeBatch(t *testing.T, s store.KVStore, fn func(batch store.KVBatch)) {
	t.Helper()
	w, err := s.Writer()
	if err != nil {
		t.Fatalf("Failed to get writer: %v", err)
	}
	defer func() { _ = w.Close() }()

	batch := w.NewBatch()
	defer func() { _ = batch.Close() }()
	fn(batch)

	if err := w.ExecuteBatch(batch); err != nil {
		t.Fatalf("Failed to execute batch: %v", err)
	}
}

func TestMemoryStoreCrudAndIterators(t *testing.T) {
	s := openTestStore(t)
	defer func() { _ = s.Close() }()

	executeBatch(t, s, func(batch store.KVBatch) {
		batch.Set([]byte("a"), []byte("1"))
		batch.Set([]byte("b"), []byte("2"))
		batch.Set([]byte("bb"), []byte("3"))
		batch.Set([]byte("c"), []byte("4"))
	})

	r, err := s.Reader()
	if err != nil {
		t.Fatalf("Failed to get reader: %v", err)
	}
	defer func() { _ = r.Close() }()

	got, err := r.Get([]byte("bb"))
	if err != nil {
		t.Fatalf("Failed to get key: %v", err)
	}
	if string(got) != "3" {
		t.Errorf("Expected 3, got %q", got)
	}

	it := r.PrefixIterator([]byte("b"))
	var keys []string
	for it.Valid() {
		keys = append(keys, string(it.Key()))
		it.Next()
	}
	_ = it.Close()
	if len(keys) != 2 || keys[0] != "b" || keys[1] != "bb" {
		t.Errorf("Unexpected prefix iteration: %v", keys)
	}

	it = r.RangeIterator([]byte("b"), []byte("c"))
	keys = keys[:0]
	for it.Valid() {
		keys = append(keys, string(it.Key()))
		it.Next()
	}
	_ = it.Close()
	if len(keys) != 2 || keys[0] != "b" || keys[1] != "bb" {
		t.Errorf("Unexpected range iteration: %v", keys)
	}
}

func TestMemoryStoreSnapshotIsolation(t *testing.T) {
	s := openTestStore(t)
	defer func() { _ = s.Close() }()

	executeBatch(t, s, func(batch store.KVBatch) {
		batch.Set([]byte("a"), []byte("old"))
	})

	r1, err := s.Reader()
	if err != nil {
		t.Fatalf("Failed to get reader: %v", err)
	}
	defer func() { _ = r1.Close() }()

	executeBatch(t, s, func(batch store.KVBatch) {
		batch.Set([]byte("a"), []byte("new"))
	})

	// the reader opened before the write keeps its snapshot
	got, err := r1.Get([]byte("a"))
	if err != nil {
		t.Fatalf("Failed to get key: %v", err)
	}
	if string(got) != "old" {
		t.Errorf("Expected snapshot value old, got %q", got)
	}

	r2, err := s.Reader()
	if err != nil {
		t.Fatalf("Failed to get reader: %v", err)
	}
	defer func() { _ = r2.Close() }()

	got, err = r2.Get([]byte("a"))
	if err != nil {
		t.Fatalf("Failed to get key: %v", err)
	}
	if string(got) != "new" {
		t.Errorf("Expected new, got %q", got)
	}
}

func TestMemoryStoreMerge(t *testing.T) {
	s := openTestStore(t)
	defer func() { _ = s.Close() }()

	enc := func(n uint64) []byte {
		rv := make([]byte, 8)
		binary.BigEndian.PutUint64(rv, n)
		return rv
	}

	executeBatch(t, s, func(batch store.KVBatch) {
		batch.Merge([]byte("count"), enc(2))
	})
	executeBatch(t, s, func(batch store.KVBatch) {
		batch.Merge([]byte("count"), enc(5))
	})

	r, err := s.Reader()
	if err != nil {
		t.Fatalf("Failed to get reader: %v", err)
	}
	defer func() { _ = r.Close() }()

	got, err := r.Get([]byte("count"))
	if err != nil {
		t.Fatalf("Failed to get merged key: %v", err)
	}
	if n := binary.BigEndian.Uint64(got); n != 7 {
		t.Errorf("Expected merged count 7, got %d", n)
	}
}

func TestMemoryStoreRejectsPath(t *testing.T) {
	if _, err := New(&counterMergeOperator{}, map[string]interface{}{"path": "/tmp/x"}); err == nil {
		t.Fatal("Expected error for non-empty path")
	}
}
