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

// Package store wires the pluggable key-value backends that segment
// data is persisted in. Backends register themselves by name in an
// init function and are constructed through New.
package store

import (
	"fmt"

	api "github.com/blevesearch/upsidedown_store_api"
)

// Constructor builds a KVStore backend from its configuration map.
type Constructor func(mo api.MergeOperator, config map[string]interface{}) (api.KVStore, error)

var stores = map[string]Constructor{}

// Register makes a backend available under the given name.
func Register(name string, constructor Constructor) {
	_, exists := stores[name]
	if exists {
		panic(fmt.Errorf("attempted to register duplicate store backend named '%s'", name))
	}
	stores[name] = constructor
}

// New constructs the backend registered under name.
func New(name string, mo api.MergeOperator, config map[string]interface{}) (api.KVStore, error) {
	constructor, ok := stores[name]
	if !ok {
		return nil, fmt.Errorf("unknown store backend: %s", name)
	}
	return constructor(mo, config)
}

// Names returns the registered backend names.
func Names() []string {
	rv := make([]string, 0, len(stores))
	for name := range stores {
		rv = append(rv, name)
	}
	return rv
}
