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

package boltdb

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	store "github.com/blevesearch/upsidedown_store_api"
)

// counterMergeOperator treats values as big endian uint64 counters.
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

func encodeCount(n uint64) []byte {
	rv := make([]byte, 8)
	binary.BigEndian.PutUint64(rv, n)
	return rv
}

func openTestStore(t *testing.T) store.KVStore {
	t.Helper()
	s, err := New(&counterMergeOperator{}, map[string]interface{}{
		"path": filepath.Join(t.TempDir(), "test.bolt"),
	})
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

func TestBoltStoreCrud(t *testing.T) {
	s := openTestStore(t)
	defer func() { _ = s.Close() }()

	executeBatch(t, s, func(batch store.KVBatch) {
		batch.Set([]byte("a"), []byte("val-a"))
		batch.Set([]byte("b"), []byte("val-b"))
		batch.Set([]byte("bb"), []byte("val-bb"))
		batch.Set([]byte("c"), []byte("val-c"))
	})

	r, err := s.Reader()
	if err != nil {
		t.Fatalf("Failed to get reader: %v", err)
	}
	defer func() { _ = r.Close() }()

	got, err := r.Get([]byte("a"))
	if err != nil {
		t.Fatalf("Failed to get key: %v", err)
	}
	if string(got) != "val-a" {
		t.Errorf("Expected val-a, got %q", got)
	}

	missing, err := r.Get([]byte("zz"))
	if err != nil {
		t.Fatalf("Failed to get missing key: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for missing key, got %q", missing)
	}

	vals, err := r.MultiGet([][]byte{[]byte("a"), []byte("c")})
	if err != nil {
		t.Fatalf("Failed to multi get: %v", err)
	}
	if len(vals) != 2 || string(vals[0]) != "val-a" || string(vals[1]) != "val-c" {
		t.Errorf("Unexpected multi get result: %v", vals)
	}
}

func TestBoltStoreIterators(t *testing.T) {
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

	it = r.RangeIterator([]byte("a"), []byte("bb"))
	keys = keys[:0]
	for it.Valid() {
		keys = append(keys, string(it.Key()))
		it.Next()
	}
	_ = it.Close()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("Unexpected range iteration: %v", keys)
	}
}

func TestBoltStoreDelete(t *testing.T) {
	s := openTestStore(t)
	defer func() { _ = s.Close() }()

	executeBatch(t, s, func(batch store.KVBatch) {
		batch.Set([]byte("a"), []byte("val-a"))
	})
	executeBatch(t, s, func(batch store.KVBatch) {
		batch.Delete([]byte("a"))
	})

	r, err := s.Reader()
	if err != nil {
		t.Fatalf("Failed to get reader: %v", err)
	}
	defer func() { _ = r.Close() }()

	got, err := r.Get([]byte("a"))
	if err != nil {
		t.Fatalf("Failed to get key: %v", err)
	}
	if got != nil {
		t.Errorf("Expected deleted key to be gone, got %q", got)
	}
}

func TestBoltStoreMerge(t *testing.T) {
	s := openTestStore(t)
	defer func() { _ = s.Close() }()

	executeBatch(t, s, func(batch store.KVBatch) {
		batch.Merge([]byte("count"), encodeCount(1))
		batch.Merge([]byte("count"), encodeCount(1))
	})
	executeBatch(t, s, func(batch store.KVBatch) {
		batch.Merge([]byte("count"), encodeCount(3))
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
	if n := binary.BigEndian.Uint64(got); n != 5 {
		t.Errorf("Expected merged count 5, got %d", n)
	}
}

func TestBoltStoreRequiresPath(t *testing.T) {
	if _, err := New(&counterMergeOperator{}, map[string]interface{}{}); err == nil {
		t.Fatal("Expected error when path is missing")
	}
	if _, err := New(&counterMergeOperator{}, map[string]interface{}{"path": ""}); err == nil {
		t.Fatal("Expected error when path is empty")
	}
}
